package services

import (
	"testing"
	"time"

	"trust-game-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestGameService(t *testing.T) (*GameService, *testFixture) {
	t.Helper()
	db := newTestDB(t)
	cfg := testCfg()
	profiles := NewProfileService(db, cfg)
	svc := NewGameService(db, cfg, profiles, testRng())

	game, user, p1, p2, round := seedGame(t, db, cfg)
	return svc, &testFixture{db: db, cfg: cfg, game: game, user: user, p1: p1, p2: p2, round: round}
}

type testFixture struct {
	db     *gorm.DB
	cfg    GameConfig
	game   *models.Game
	user   *models.User
	p1, p2 *models.Player
	round  *models.Round
}

func TestSubmitChoice_BotAnswersAndRoundSettles(t *testing.T) {
	svc, f := newTestGameService(t)

	res, err := svc.SubmitChoice(f.game.ID, f.round.ID, f.p1.ID, models.ChoiceInvest, 100, nil)
	require.NoError(t, err)
	require.True(t, res.Settled)
	require.NotNil(t, res.Outcome)

	assert.True(t, res.Outcome.BothInvested)
	require.NotNil(t, res.NextRound)
	assert.Equal(t, 2, res.NextRound.RoundNumber)
	assert.Equal(t, 40, res.NextRound.TrustBonusPct)
}

func TestSubmitChoice_FullGameRunsThreeRounds(t *testing.T) {
	svc, f := newTestGameService(t)

	roundID := f.round.ID
	for n := 1; n <= models.MaxRounds; n++ {
		res, err := svc.SubmitChoice(f.game.ID, roundID, f.p1.ID, models.ChoiceInvest, 100, nil)
		require.NoError(t, err, "round %d", n)
		require.True(t, res.Settled, "round %d", n)

		if n < models.MaxRounds && !res.Outcome.SomeoneCashedOut {
			require.NotNil(t, res.NextRound)
			// Pot carries over: next round resolves on top of this one's pot.
			assert.Greater(t, res.Outcome.PotAfterBonus, 0.0)
			roundID = res.NextRound.ID
		} else {
			assert.Nil(t, res.NextRound)
			assert.Equal(t, models.GameStatusCompleted, res.GameStatus)
			break
		}
	}

	var game models.Game
	require.NoError(t, f.db.First(&game, "id = ?", f.game.ID).Error)
	assert.Equal(t, models.GameStatusCompleted, game.Status)
	require.NotNil(t, game.EndedAt)

	// Profile absorbed the game exactly once.
	var user models.User
	require.NoError(t, f.db.First(&user, "id = ?", f.user.ID).Error)
	assert.Equal(t, int64(1), user.MatchesPlayed)
}

func TestSubmitChoice_CashOutEndsGameEarly(t *testing.T) {
	svc, f := newTestGameService(t)

	res, err := svc.SubmitChoice(f.game.ID, f.round.ID, f.p1.ID, models.ChoiceCashOut, 0, nil)
	require.NoError(t, err)
	require.True(t, res.Settled)

	assert.True(t, res.Outcome.SomeoneCashedOut)
	assert.Nil(t, res.NextRound)
	assert.Equal(t, models.GameStatusCompleted, res.GameStatus)

	var game models.Game
	require.NoError(t, f.db.First(&game, "id = ?", f.game.ID).Error)
	assert.Equal(t, 1, game.CompletedRounds)
}

func TestSubmitChoice_InsufficientFunds(t *testing.T) {
	svc, f := newTestGameService(t)

	require.NoError(t, f.db.Model(f.user).Update("balance", 40.0).Error)

	_, err := svc.SubmitChoice(f.game.ID, f.round.ID, f.p1.ID, models.ChoiceInvest, 100, nil)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSubmitChoice_GameNotActive(t *testing.T) {
	svc, f := newTestGameService(t)

	require.NoError(t, f.db.Model(f.game).Update("status", models.GameStatusCompleted).Error)

	_, err := svc.SubmitChoice(f.game.ID, f.round.ID, f.p1.ID, models.ChoiceInvest, 100, nil)
	assert.ErrorIs(t, err, ErrGameNotActive)
}

func TestSubmitChoice_TelemetryPersisted(t *testing.T) {
	svc, f := newTestGameService(t)

	telemetry := &ChoiceTelemetry{
		DecisionTimeMs:  1500,
		TimeOnInvestMs:  900,
		TimeOnCashOutMs: 600,
		NumberOfToggles: 2,
		InitialChoice:   models.ChoiceCashOut,
	}
	_, err := svc.SubmitChoice(f.game.ID, f.round.ID, f.p1.ID, models.ChoiceInvest, 100, telemetry)
	require.NoError(t, err)

	var stat models.RoundStat
	require.NoError(t, f.db.First(&stat, "round_id = ? AND player_id = ?", f.round.ID, f.p1.ID).Error)
	assert.Equal(t, models.ChoiceCashOut, stat.InitialChoice)
	assert.Equal(t, models.ChoiceInvest, stat.FinalChoice)
	assert.True(t, stat.ChangedChoice)
	assert.Equal(t, int64(1500), stat.DecisionTimeMs)
	assert.Equal(t, 2, stat.ToggleCount)
	assert.True(t, stat.MadeDecision)
}

func TestSettleExpiredRounds(t *testing.T) {
	svc, f := newTestGameService(t)

	// Push the round past its deadline with neither choice in.
	stale := time.Now().Add(-time.Duration(f.cfg.RoundDurationSec+10) * time.Second)
	require.NoError(t, f.db.Model(f.round).Update("started_at", stale).Error)

	n, err := svc.SettleExpiredRounds()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var round models.Round
	require.NoError(t, f.db.First(&round, "id = ?", f.round.ID).Error)
	assert.True(t, round.Settled())
	assert.True(t, round.BothInvested) // both seats defaulted to invest

	// Defaulted invest on both sides keeps the game going.
	var next models.Round
	require.NoError(t, f.db.First(&next, "game_id = ? AND round_number = ?", f.game.ID, 2).Error)
}

func TestSettleExpiredRounds_SkipsFreshRounds(t *testing.T) {
	svc, _ := newTestGameService(t)

	n, err := svc.SettleExpiredRounds()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
