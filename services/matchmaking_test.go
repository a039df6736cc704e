package services

import (
	"fmt"
	"math/rand"
	"testing"

	"trust-game-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateUser(t *testing.T) {
	db := newTestDB(t)
	cfg := testCfg()
	svc := NewMatchmakingService(db, cfg, testRng())

	user, err := svc.GetOrCreateUser("ext-123", "alice")
	require.NoError(t, err)
	assert.Equal(t, cfg.StartingBalance, user.Balance)
	assert.Equal(t, "alice", user.Username)

	again, err := svc.GetOrCreateUser("ext-123", "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSeedBots_Idempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchmakingService(db, testCfg(), testRng())

	require.NoError(t, svc.SeedBots())
	require.NoError(t, svc.SeedBots())

	var count int64
	require.NoError(t, db.Model(&models.Bot{}).Count(&count).Error)
	assert.Equal(t, int64(len(models.DefaultBots)), count)
}

func TestMatchWithBot(t *testing.T) {
	db := newTestDB(t)
	cfg := testCfg()
	svc := NewMatchmakingService(db, cfg, testRng())
	require.NoError(t, svc.SeedBots())

	user, err := svc.GetOrCreateUser("ext-match", "bob")
	require.NoError(t, err)

	game, err := svc.MatchWithBot(user)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusActive, game.Status)
	assert.True(t, game.HasBot)

	var players []models.Player
	require.NoError(t, db.Where("game_id = ?", game.ID).Order("player_number ASC").Find(&players).Error)
	require.Len(t, players, 2)
	assert.Equal(t, 1, players[0].PlayerNumber)
	assert.Equal(t, 2, players[1].PlayerNumber)

	// Exactly one bot seat, and the bot carries its personality snapshot.
	bots := 0
	for _, p := range players {
		if p.IsBot {
			bots++
			assert.NotNil(t, p.BotID)
			assert.Greater(t, p.CooperationTendency, 0)
		} else {
			require.NotNil(t, p.UserID)
			assert.Equal(t, user.ID, *p.UserID)
		}
	}
	assert.Equal(t, 1, bots)

	var round models.Round
	require.NoError(t, db.First(&round, "game_id = ? AND round_number = ?", game.ID, 1).Error)
	assert.Equal(t, 20, round.TrustBonusPct)
	assert.False(t, round.Settled())
}

func TestMatchWithBot_DeterministicUnderSeed(t *testing.T) {
	cfg := testCfg()

	// Same seed over the same roster replays the same bot picks and seat
	// assignments, run for run.
	type pairing struct {
		botName  string
		userSeat int
	}
	run := func(seed int64) []pairing {
		db := newTestDB(t)
		svc := NewMatchmakingService(db, cfg, rand.New(rand.NewSource(seed)))
		require.NoError(t, svc.SeedBots())

		var pairings []pairing
		for i := 0; i < 6; i++ {
			user, err := svc.GetOrCreateUser(fmt.Sprintf("ext-det-%d", i), "dana")
			require.NoError(t, err)
			game, err := svc.MatchWithBot(user)
			require.NoError(t, err)

			var players []models.Player
			require.NoError(t, db.Where("game_id = ?", game.ID).Find(&players).Error)
			p := pairing{}
			for _, pl := range players {
				if pl.IsBot {
					var bot models.Bot
					require.NoError(t, db.First(&bot, "id = ?", *pl.BotID).Error)
					p.botName = bot.Name
				} else {
					p.userSeat = pl.PlayerNumber
				}
			}
			pairings = append(pairings, p)
		}
		return pairings
	}

	assert.Equal(t, run(11), run(11))
}

func TestMatchWithBot_InsufficientBalance(t *testing.T) {
	db := newTestDB(t)
	cfg := testCfg()
	svc := NewMatchmakingService(db, cfg, testRng())
	require.NoError(t, svc.SeedBots())

	user, err := svc.GetOrCreateUser("ext-poor", "carol")
	require.NoError(t, err)
	require.NoError(t, db.Model(user).Update("balance", cfg.MinInvestment-1).Error)
	user.Balance = cfg.MinInvestment - 1

	_, err = svc.MatchWithBot(user)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}
