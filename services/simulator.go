// services/simulator.go
package services

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"trust-game-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SimModeBotVsBot  = "bot_vs_bot"
	SimModeBotVsUser = "bot_vs_synthetic_user"
)

// SimulatorService plays complete games with no human in the loop to grow
// the behavioral dataset: bot vs bot, or bot vs a synthetic user whose OCEAN
// profile is drawn fresh per game. Every simulated game goes through the same
// engine and persistence path as a live one, flagged is_simulated.
type SimulatorService struct {
	DB     *gorm.DB
	Cfg    GameConfig
	Engine *RoundEngine
	Rng    *rand.Rand
}

func NewSimulatorService(db *gorm.DB, cfg GameConfig, rng *rand.Rand) *SimulatorService {
	return &SimulatorService{DB: db, Cfg: cfg, Engine: NewRoundEngine(cfg), Rng: rng}
}

// BatchResult summarizes one simulation batch.
type BatchResult struct {
	Mode           string `json:"mode"`
	GamesRequested int    `json:"games_requested"`
	GamesCompleted int    `json:"games_completed"`
	RoundsPlayed   int    `json:"rounds_played"`
	ElapsedMs      int64 `json:"elapsed_ms"`
	FailureCount   int   `json:"failure_count"`
}

// RunBatch plays count games in the given mode. A per-game failure is logged
// and counted, never aborts the batch.
func (s *SimulatorService) RunBatch(mode string, count int) (*BatchResult, error) {
	if mode != SimModeBotVsBot && mode != SimModeBotVsUser {
		return nil, fmt.Errorf("unknown simulation mode %q", mode)
	}
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", count)
	}

	start := time.Now()
	res := &BatchResult{Mode: mode, GamesRequested: count}

	for i := 0; i < count; i++ {
		rounds, err := s.playOneGame(mode)
		if err != nil {
			log.Printf("❌ [SIM] game %d/%d failed: %v", i+1, count, err)
			res.FailureCount++
			continue
		}
		res.GamesCompleted++
		res.RoundsPlayed += rounds
	}

	res.ElapsedMs = time.Since(start).Milliseconds()
	log.Printf("✅ [SIM] batch done: %d/%d games, %d rounds, %dms",
		res.GamesCompleted, res.GamesRequested, res.RoundsPlayed, res.ElapsedMs)
	return res, nil
}

// playOneGame runs a full simulated game and returns the number of rounds
// played.
func (s *SimulatorService) playOneGame(mode string) (int, error) {
	bots, err := s.pickBots(2)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	game := models.Game{
		ID:          uuid.NewString(),
		Status:      models.GameStatusActive,
		HasBot:      true,
		IsSimulated: true,
		StartedAt:   now,
	}

	seat1 := BotSeat(&bots[0], game.ID, 1)
	var seat2 models.Player
	if mode == SimModeBotVsBot {
		seat2 = BotSeat(&bots[1], game.ID, 2)
	} else {
		seat2 = s.syntheticUserSeat(game.ID, 2)
	}

	if err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&game).Error; err != nil {
			return err
		}
		if err := tx.Create(&seat1).Error; err != nil {
			return err
		}
		return tx.Create(&seat2).Error
	}); err != nil {
		return 0, fmt.Errorf("failed to create simulated game: %w", err)
	}

	dm1 := NewBotDecisionMaker(seat1, s.Cfg, s.Rng)
	var dm2 *DecisionMaker
	if mode == SimModeBotVsBot {
		dm2 = NewBotDecisionMaker(seat2, s.Cfg, s.Rng)
	} else {
		dm2 = NewSyntheticUserDecisionMaker(seat2, s.Cfg, s.Rng)
	}

	rounds := 0
	carried := 0.0
	for roundNumber := 1; roundNumber <= models.MaxRounds; roundNumber++ {
		round := models.Round{
			ID:            uuid.NewString(),
			GameID:        game.ID,
			RoundNumber:   roundNumber,
			TrustBonusPct: s.Cfg.TrustBonusPct(roundNumber),
			StartedAt:     time.Now(),
		}

		d1 := dm1.Decide(roundNumber)
		d2 := dm2.Decide(roundNumber)

		var outcome *RoundOutcome
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&round).Error; err != nil {
				return err
			}
			if err := s.Engine.RecordChoice(tx, &round, 1, d1.Choice, d1.Investment); err != nil {
				return err
			}
			if err := s.Engine.RecordChoice(tx, &round, 2, d2.Choice, d2.Investment); err != nil {
				return err
			}
			if err := writeDecisionStat(tx, &round, seat1.ID, d1); err != nil {
				return err
			}
			if err := writeDecisionStat(tx, &round, seat2.ID, d2); err != nil {
				return err
			}
			var settleErr error
			outcome, settleErr = s.Engine.Settle(tx, &round, &seat1, &seat2, carried)
			return settleErr
		})
		if err != nil {
			return rounds, fmt.Errorf("round %d failed: %w", roundNumber, err)
		}

		rounds++
		game.CompletedRounds = rounds
		carried = outcome.PotAfterBonus
		if outcome.SomeoneCashedOut {
			break
		}
	}

	end := time.Now()
	game.Status = models.GameStatusCompleted
	game.EndedAt = &end
	if err := s.DB.Save(&game).Error; err != nil {
		return rounds, err
	}
	return rounds, nil
}

func (s *SimulatorService) pickBots(n int) ([]models.Bot, error) {
	var bots []models.Bot
	if err := s.DB.Where("is_active = ?", true).Order("RANDOM()").Limit(n).Find(&bots).Error; err != nil {
		return nil, err
	}
	if len(bots) < n {
		return nil, fmt.Errorf("need %d active bots, have %d", n, len(bots))
	}
	return bots, nil
}

// syntheticUserSeat draws a fresh OCEAN profile. Risk tolerance leans on
// openness and calm (inverted neuroticism) so the investment sizing stays
// personality-consistent.
func (s *SimulatorService) syntheticUserSeat(gameID string, playerNumber int) models.Player {
	o := s.Rng.Intn(101)
	c := s.Rng.Intn(101)
	e := s.Rng.Intn(101)
	a := s.Rng.Intn(101)
	n := s.Rng.Intn(101)

	return models.Player{
		ID:                uuid.NewString(),
		GameID:            gameID,
		PlayerNumber:      playerNumber,
		IsBot:             true, // no wallet ledger for synthetic seats
		Openness:          o,
		Conscientiousness: c,
		Extraversion:      e,
		Agreeableness:     a,
		Neuroticism:       n,
		RiskTolerance:     (o + (100 - n)) / 2,
	}
}

// SimulationStats aggregates the accumulated dataset. Rates are round
// granularity: a round either was mutual cooperation or it was not.
type SimulationStats struct {
	TotalGames      int64   `json:"total_games"`
	CompletedGames  int64   `json:"completed_games"`
	SimulatedGames  int64   `json:"simulated_games"`
	TotalRounds     int64   `json:"total_rounds"`
	CooperationRate float64 `json:"cooperation_rate"` // share of settled rounds where both invested
	BetrayalRate    float64 `json:"betrayal_rate"`    // share of settled rounds where someone cashed out
	AvgNetGain      float64 `json:"avg_net_gain"`
}

// Stats computes dataset-level aggregates across live and simulated games.
func (s *SimulatorService) Stats() (*SimulationStats, error) {
	stats := &SimulationStats{}

	if err := s.DB.Model(&models.Game{}).Count(&stats.TotalGames).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.Game{}).Where("status = ?", models.GameStatusCompleted).
		Count(&stats.CompletedGames).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.Game{}).Where("is_simulated = ?", true).
		Count(&stats.SimulatedGames).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.Round{}).Where("ended_at IS NOT NULL").
		Count(&stats.TotalRounds).Error; err != nil {
		return nil, err
	}

	if stats.TotalRounds > 0 {
		var coopRounds, cashOutRounds int64
		if err := s.DB.Model(&models.Round{}).
			Where("ended_at IS NOT NULL AND both_invested = ?", true).
			Count(&coopRounds).Error; err != nil {
			return nil, err
		}
		if err := s.DB.Model(&models.Round{}).
			Where("ended_at IS NOT NULL AND someone_cashed_out = ?", true).
			Count(&cashOutRounds).Error; err != nil {
			return nil, err
		}
		stats.CooperationRate = float64(coopRounds) / float64(stats.TotalRounds)
		stats.BetrayalRate = float64(cashOutRounds) / float64(stats.TotalRounds)

		var avg *float64
		if err := s.DB.Model(&models.RoundResult{}).
			Select("AVG(net_gain)").Scan(&avg).Error; err != nil {
			return nil, err
		}
		if avg != nil {
			stats.AvgNetGain = *avg
		}
	}

	return stats, nil
}

// ===== HTTP handlers =====

type runSimulationRequest struct {
	Mode  string `json:"mode"`
	Count int    `json:"count"`
}

// RunSimulationHandler runs a synchronous batch. Large batches belong to the
// background worker; this endpoint caps the count to keep the request bounded.
func (s *SimulatorService) RunSimulationHandler(c *fiber.Ctx) error {
	var req runSimulationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.Mode == "" {
		req.Mode = SimModeBotVsBot
	}
	if req.Count <= 0 {
		req.Count = 10
	}
	if req.Count > 200 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "count capped at 200 per request"})
	}

	res, err := s.RunBatch(req.Mode, req.Count)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(res)
}

// StatsHandler exposes the dataset aggregates.
func (s *SimulatorService) StatsHandler(c *fiber.Ctx) error {
	stats, err := s.Stats()
	if err != nil {
		log.Printf("❌ [SIM] stats query failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(stats)
}
