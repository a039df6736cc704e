package services

import (
	"testing"

	"trust-game-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDataset(t *testing.T) {
	db := newTestDB(t)
	cfg := testCfg()
	require.NoError(t, NewMatchmakingService(db, cfg, testRng()).SeedBots())

	sim := NewSimulatorService(db, cfg, testRng())
	_, err := sim.RunBatch(SimModeBotVsBot, 3)
	require.NoError(t, err)

	export := NewExportService(db)
	rows, err := export.BuildDataset(true)
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	var settledRounds int64
	require.NoError(t, db.Model(&models.Round{}).Where("ended_at IS NOT NULL").Count(&settledRounds).Error)
	assert.Equal(t, int(settledRounds*2), len(rows))

	for _, row := range rows {
		assert.True(t, row.IsSimulated)
		assert.Contains(t, []string{models.ChoiceInvest, models.ChoiceCashOut}, row.Choice)
		assert.GreaterOrEqual(t, row.RoundNumber, 1)
		assert.LessOrEqual(t, row.RoundNumber, models.MaxRounds)
		// Telemetry joined onto the payout row.
		assert.True(t, row.MadeDecision)
	}
}

func TestBuildDataset_ExcludesLiveGamesWhenSimulatedOnly(t *testing.T) {
	db := newTestDB(t)
	cfg := testCfg()

	// One completed live game, nothing simulated.
	game, _, p1, p2, round := seedGame(t, db, cfg)
	engine := NewRoundEngine(cfg)
	require.NoError(t, engine.RecordChoice(db, round, 1, models.ChoiceInvest, 100))
	require.NoError(t, engine.RecordChoice(db, round, 2, models.ChoiceCashOut, 0))
	_, err := engine.Settle(db, round, p1, p2, 0)
	require.NoError(t, err)
	require.NoError(t, db.Model(game).Update("status", models.GameStatusCompleted).Error)

	export := NewExportService(db)

	simOnly, err := export.BuildDataset(true)
	require.NoError(t, err)
	assert.Empty(t, simOnly)

	all, err := export.BuildDataset(false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	// The betrayed cooperator is visible in the flattened row.
	betrayed := 0
	for _, row := range all {
		if row.WasBetrayed {
			betrayed++
		}
	}
	assert.Equal(t, 1, betrayed)
}
