package services

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"trust-game-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a per-test in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Bot{},
		&models.Game{},
		&models.Player{},
		&models.Round{},
		&models.RoundResult{},
		&models.RoundStat{},
	))
	return db
}

func testCfg() GameConfig {
	return GameConfig{
		RoundDurationSec:   30,
		MinInvestment:      50,
		MaxInvestment:      500,
		DefaultInvestment:  100,
		TrustScoreIncrease: 5,
		TrustScoreDecrease: 10,
		StartingBalance:    1000,
		BotDefaultBalance:  10000,
	}
}

func testRng() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

// seedGame creates an active game with a human (player 1) and a bot seat
// (player 2), round 1 open.
func seedGame(t *testing.T, db *gorm.DB, cfg GameConfig) (*models.Game, *models.User, *models.Player, *models.Player, *models.Round) {
	t.Helper()

	user := &models.User{
		ID:             uuid.NewString(),
		ExternalUserID: uuid.NewString(),
		Username:       "tester",
		Balance:        cfg.StartingBalance,
		Openness:       50, Conscientiousness: 50, Extraversion: 50,
		Agreeableness: 50, Neuroticism: 50,
		TrustScore: 50,
	}
	require.NoError(t, db.Create(user).Error)

	// Trait mix chosen so the cooperation probability saturates in rounds 1
	// and 2: deterministic invest regardless of the rng draw.
	bot := &models.Bot{
		ID: uuid.NewString(), Name: "Test Bot " + uuid.NewString()[:8], IsActive: true,
		Openness: 50, Conscientiousness: 50, Extraversion: 50,
		Agreeableness: 90, Neuroticism: 10,
		CooperationTendency: 85, RiskTolerance: 50,
	}
	require.NoError(t, db.Create(bot).Error)

	game := &models.Game{
		ID:        uuid.NewString(),
		Status:    models.GameStatusActive,
		HasBot:    true,
		StartedAt: time.Now(),
	}
	require.NoError(t, db.Create(game).Error)

	p1 := &models.Player{
		ID: uuid.NewString(), GameID: game.ID, PlayerNumber: 1,
		UserID:   &user.ID,
		Openness: 50, Conscientiousness: 50, Extraversion: 50,
		Agreeableness: 50, Neuroticism: 50,
	}
	require.NoError(t, db.Create(p1).Error)

	p2seat := BotSeat(bot, game.ID, 2)
	require.NoError(t, db.Create(&p2seat).Error)

	round := &models.Round{
		ID:            uuid.NewString(),
		GameID:        game.ID,
		RoundNumber:   1,
		TrustBonusPct: cfg.TrustBonusPct(1),
		StartedAt:     time.Now(),
	}
	require.NoError(t, db.Create(round).Error)

	return game, user, p1, &p2seat, round
}

func strPtr(s string) *string { return &s }
