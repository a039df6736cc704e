package services

import (
	"testing"

	"trust-game-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRound_MutualCooperation(t *testing.T) {
	cfg := testCfg()

	out := ResolveRound(cfg, 1, 0, strPtr(models.ChoiceInvest), strPtr(models.ChoiceInvest), 100, 100)

	assert.True(t, out.BothInvested)
	assert.False(t, out.SomeoneCashedOut)
	assert.Equal(t, 200.0, out.PotBeforeBonus)
	assert.Equal(t, 20, out.TrustBonusPct)
	assert.InDelta(t, 240.0, out.PotAfterBonus, 1e-9)

	// Equal stakes split the bonus evenly.
	assert.InDelta(t, 120.0, out.Player1.Payout, 1e-9)
	assert.InDelta(t, 120.0, out.Player2.Payout, 1e-9)
	assert.InDelta(t, 20.0, out.Player1.NetGain, 1e-9)
	assert.InDelta(t, 20.0, out.Player2.NetGain, 1e-9)
	assert.True(t, out.Player1.Cooperated)
	assert.True(t, out.Player2.Cooperated)
}

func TestResolveRound_FinalRoundBonus(t *testing.T) {
	cfg := testCfg()

	out := ResolveRound(cfg, 3, 0, strPtr(models.ChoiceInvest), strPtr(models.ChoiceInvest), 100, 100)

	assert.Equal(t, 60, out.TrustBonusPct)
	assert.InDelta(t, 320.0, out.PotAfterBonus, 1e-9)
	assert.InDelta(t, 160.0, out.Player1.Payout, 1e-9)
	assert.InDelta(t, 60.0, out.Player1.NetGain, 1e-9)
}

func TestResolveRound_ProportionalSplit(t *testing.T) {
	cfg := testCfg()

	// Round 2 with a carried pot of 240, uneven stakes 100 vs 200.
	out := ResolveRound(cfg, 2, 240, strPtr(models.ChoiceInvest), strPtr(models.ChoiceInvest), 100, 200)

	assert.InDelta(t, 540.0, out.PotBeforeBonus, 1e-9)
	assert.Equal(t, 40, out.TrustBonusPct)
	assert.InDelta(t, 756.0, out.PotAfterBonus, 1e-9)

	assert.InDelta(t, 1.0/3.0, out.Player1.ContributionPct, 1e-9)
	assert.InDelta(t, 2.0/3.0, out.Player2.ContributionPct, 1e-9)

	// Payouts conserve the boosted pot exactly.
	assert.InDelta(t, out.PotAfterBonus, out.Player1.Payout+out.Player2.Payout, 1e-9)
	assert.Greater(t, out.Player2.Payout, out.Player1.Payout)
}

func TestResolveRound_Betrayal(t *testing.T) {
	cfg := testCfg()

	out := ResolveRound(cfg, 1, 0, strPtr(models.ChoiceInvest), strPtr(models.ChoiceCashOut), 100, 0)

	assert.False(t, out.BothInvested)
	assert.True(t, out.SomeoneCashedOut)
	// Defector takes the whole pot, no bonus applies.
	assert.InDelta(t, 100.0, out.PotAfterBonus, 1e-9)
	assert.InDelta(t, 0.0, out.Player1.Payout, 1e-9)
	assert.InDelta(t, 100.0, out.Player2.Payout, 1e-9)

	// Betrayal is zero-sum: one side's loss is the other's gain.
	assert.InDelta(t, 0.0, out.Player1.NetGain+out.Player2.NetGain, 1e-9)
	assert.True(t, out.Player1.WasBetrayed)
	assert.True(t, out.Player2.Defected)
	assert.False(t, out.Player2.WasBetrayed)
}

func TestResolveRound_BothDefect(t *testing.T) {
	cfg := testCfg()

	// Carried pot from a prior cooperative round, then both bail.
	out := ResolveRound(cfg, 2, 240, strPtr(models.ChoiceCashOut), strPtr(models.ChoiceCashOut), 0, 0)

	assert.True(t, out.SomeoneCashedOut)
	assert.InDelta(t, 240.0, out.PotAfterBonus, 1e-9)
	assert.InDelta(t, 120.0, out.Player1.Payout, 1e-9)
	assert.InDelta(t, 120.0, out.Player2.Payout, 1e-9)
	assert.False(t, out.Player1.WasBetrayed)
	assert.False(t, out.Player2.WasBetrayed)
	assert.True(t, out.Player1.Defected)
	assert.True(t, out.Player2.Defected)
}

func TestResolveRound_TimeoutDefaultsToInvest(t *testing.T) {
	cfg := testCfg()

	out := ResolveRound(cfg, 1, 0, nil, nil, 0, 0)

	assert.True(t, out.BothInvested)
	assert.True(t, out.Player1.Defaulted)
	assert.True(t, out.Player2.Defaulted)
	assert.Equal(t, cfg.DefaultInvestment, out.Player1.Invested)
	assert.Equal(t, cfg.DefaultInvestment, out.Player2.Invested)
	assert.InDelta(t, 240.0, out.PotAfterBonus, 1e-9)
}

func TestValidateChoice(t *testing.T) {
	e := NewRoundEngine(testCfg())

	assert.NoError(t, e.ValidateChoice(models.ChoiceInvest, 100))
	assert.NoError(t, e.ValidateChoice(models.ChoiceCashOut, 0))
	assert.ErrorIs(t, e.ValidateChoice("fold", 100), ErrInvalidChoice)
	assert.ErrorIs(t, e.ValidateChoice(models.ChoiceInvest, 10), ErrInvestmentOutOfBounds)
	assert.ErrorIs(t, e.ValidateChoice(models.ChoiceInvest, 600), ErrInvestmentOutOfBounds)
}

func TestRecordChoice_DuplicateRejected(t *testing.T) {
	db := newTestDB(t)
	cfg := testCfg()
	e := NewRoundEngine(cfg)
	_, _, _, _, round := seedGame(t, db, cfg)

	require.NoError(t, e.RecordChoice(db, round, 1, models.ChoiceInvest, 100))
	assert.ErrorIs(t, e.RecordChoice(db, round, 1, models.ChoiceCashOut, 0), ErrAlreadyChose)
}

func TestRecordChoice_CashOutZeroesAmount(t *testing.T) {
	db := newTestDB(t)
	cfg := testCfg()
	e := NewRoundEngine(cfg)
	_, _, _, _, round := seedGame(t, db, cfg)

	require.NoError(t, e.RecordChoice(db, round, 2, models.ChoiceCashOut, 300))
	assert.Equal(t, 0.0, round.Player2Investment)
}

func TestSettle_LedgerAndResults(t *testing.T) {
	db := newTestDB(t)
	cfg := testCfg()
	e := NewRoundEngine(cfg)
	_, user, p1, p2, round := seedGame(t, db, cfg)

	require.NoError(t, e.RecordChoice(db, round, 1, models.ChoiceInvest, 100))
	require.NoError(t, e.RecordChoice(db, round, 2, models.ChoiceInvest, 100))

	out, err := e.Settle(db, round, p1, p2, 0)
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.True(t, round.Settled())

	// Human wallet: −100 stake, +120 payout.
	var fresh models.User
	require.NoError(t, db.First(&fresh, "id = ?", user.ID).Error)
	assert.InDelta(t, cfg.StartingBalance+20, fresh.Balance, 1e-9)

	var results []models.RoundResult
	require.NoError(t, db.Where("round_id = ?", round.ID).Find(&results).Error)
	assert.Len(t, results, 2)

	// Player running totals reconcile.
	var freshP1 models.Player
	require.NoError(t, db.First(&freshP1, "id = ?", p1.ID).Error)
	assert.InDelta(t, freshP1.FinalEarnings-freshP1.TotalInvested, freshP1.NetResult, 1e-9)
}

func TestSettle_Idempotent(t *testing.T) {
	db := newTestDB(t)
	cfg := testCfg()
	e := NewRoundEngine(cfg)
	_, user, p1, p2, round := seedGame(t, db, cfg)

	require.NoError(t, e.RecordChoice(db, round, 1, models.ChoiceInvest, 100))
	require.NoError(t, e.RecordChoice(db, round, 2, models.ChoiceInvest, 100))

	_, err := e.Settle(db, round, p1, p2, 0)
	require.NoError(t, err)

	_, err = e.Settle(db, round, p1, p2, 0)
	assert.ErrorIs(t, err, ErrRoundSettled)

	// Balance applied exactly once.
	var fresh models.User
	require.NoError(t, db.First(&fresh, "id = ?", user.ID).Error)
	assert.InDelta(t, cfg.StartingBalance+20, fresh.Balance, 1e-9)
}

func TestSettle_DefaultedWritesStat(t *testing.T) {
	db := newTestDB(t)
	cfg := testCfg()
	e := NewRoundEngine(cfg)
	_, _, p1, p2, round := seedGame(t, db, cfg)

	// Nobody submitted anything; the timeout policy fills both seats in.
	_, err := e.Settle(db, round, p1, p2, 0)
	require.NoError(t, err)

	var stats []models.RoundStat
	require.NoError(t, db.Where("round_id = ?", round.ID).Find(&stats).Error)
	require.Len(t, stats, 2)
	for _, s := range stats {
		assert.False(t, s.MadeDecision)
		assert.True(t, s.DefaultedToInvest)
		assert.Equal(t, models.ChoiceInvest, s.FinalChoice)
	}
}
