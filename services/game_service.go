// services/game_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"trust-game-system/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GameService orchestrates a 3-round session: it accepts human choices,
// resolves the opposing bot's decision, hands the round to the RoundEngine,
// then either opens the next round or finalizes the game and pushes the
// result into the players' long-run profiles.
type GameService struct {
	DB       *gorm.DB
	Cfg      GameConfig
	Engine   *RoundEngine
	Profiles *ProfileService
	Rng      *rand.Rand
}

func NewGameService(db *gorm.DB, cfg GameConfig, profiles *ProfileService, rng *rand.Rand) *GameService {
	return &GameService{
		DB:       db,
		Cfg:      cfg,
		Engine:   NewRoundEngine(cfg),
		Profiles: profiles,
		Rng:      rng,
	}
}

// ChoiceTelemetry is the client-side behavioral payload submitted with a
// choice. Persisted as RoundStat only — settlement never reads it.
type ChoiceTelemetry struct {
	DecisionTimeMs  int64  `json:"decision_time_ms"`
	TimeOnInvestMs  int64  `json:"time_on_invest_ms"`
	TimeOnCashOutMs int64  `json:"time_on_cash_out_ms"`
	NumberOfToggles int    `json:"number_of_toggles"`
	InitialChoice   string `json:"initial_choice"`
}

// SubmitResult is what a choice submission returns to the client: either
// "waiting for opponent" or the settled outcome plus the next round (nil when
// the game ended).
type SubmitResult struct {
	Settled    bool          `json:"settled"`
	Outcome    *RoundOutcome `json:"outcome,omitempty"`
	NextRound  *models.Round `json:"next_round,omitempty"`
	GameStatus string        `json:"game_status"`
}

// SubmitChoice records one player's choice for a round. If the opponent is a
// bot its decision is computed immediately; once both choices are present the
// round settles and the game advances — all inside one transaction.
func (s *GameService) SubmitChoice(gameID, roundID, playerID, choice string, amount float64, telemetry *ChoiceTelemetry) (*SubmitResult, error) {
	var result *SubmitResult

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		game, round, p1, p2, err := s.loadRoundContext(tx, gameID, roundID)
		if err != nil {
			return err
		}
		if game.Status != models.GameStatusActive {
			return ErrGameNotActive
		}

		player, opponent := p1, p2
		if p2.ID == playerID {
			player, opponent = p2, p1
		} else if p1.ID != playerID {
			return gorm.ErrRecordNotFound
		}

		// Humans cannot stake more than they hold. Timeout defaults are the
		// only path allowed to overdraw.
		if choice == models.ChoiceInvest && !player.IsBot && player.UserID != nil {
			var user models.User
			if err := tx.First(&user, "id = ?", *player.UserID).Error; err != nil {
				return err
			}
			if amount > user.Balance {
				return ErrInsufficientFunds
			}
		}

		if err := s.Engine.RecordChoice(tx, round, player.PlayerNumber, choice, amount); err != nil {
			return err
		}
		if telemetry != nil {
			if err := s.writeTelemetry(tx, round, player.ID, choice, telemetry); err != nil {
				return err
			}
		}

		// A bot opponent answers synchronously instead of waiting for a tick.
		if opponent.IsBot && roundChoice(round, opponent.PlayerNumber) == nil {
			if err := s.recordBotChoice(tx, round, opponent); err != nil {
				return err
			}
		}

		if round.Player1Choice == nil || round.Player2Choice == nil {
			result = &SubmitResult{Settled: false, GameStatus: game.Status}
			return nil
		}

		outcome, next, err := s.settleAndAdvance(tx, game, round, p1, p2)
		if err != nil {
			return err
		}
		result = &SubmitResult{Settled: true, Outcome: outcome, NextRound: next, GameStatus: game.Status}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return result, nil
}

// recordBotChoice runs the personality model for a bot seat and persists
// both the choice and the synthesized telemetry.
func (s *GameService) recordBotChoice(tx *gorm.DB, round *models.Round, bot *models.Player) error {
	dm := NewBotDecisionMaker(*bot, s.Cfg, s.Rng)
	decision := dm.Decide(round.RoundNumber)

	if err := s.Engine.RecordChoice(tx, round, bot.PlayerNumber, decision.Choice, decision.Investment); err != nil {
		return err
	}
	return writeDecisionStat(tx, round, bot.ID, decision)
}

// settleAndAdvance settles the round then applies the termination rule:
// a cash-out ends the game immediately, otherwise play continues until
// the third settled round.
func (s *GameService) settleAndAdvance(tx *gorm.DB, game *models.Game, round *models.Round, p1, p2 *models.Player) (*RoundOutcome, *models.Round, error) {
	carried, err := s.carriedPot(tx, game.ID, round.RoundNumber)
	if err != nil {
		return nil, nil, err
	}

	outcome, err := s.Engine.Settle(tx, round, p1, p2, carried)
	if err != nil {
		return nil, nil, err
	}

	game.CompletedRounds++
	if outcome.SomeoneCashedOut || game.CompletedRounds >= models.MaxRounds {
		if err := s.finalizeGame(tx, game, p1, p2); err != nil {
			return nil, nil, err
		}
		if err := tx.Save(game).Error; err != nil {
			return nil, nil, err
		}
		return outcome, nil, nil
	}

	next := &models.Round{
		ID:            uuid.NewString(),
		GameID:        game.ID,
		RoundNumber:   round.RoundNumber + 1,
		TrustBonusPct: s.Cfg.TrustBonusPct(round.RoundNumber + 1),
		StartedAt:     time.Now(),
	}
	if err := tx.Create(next).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create round %d: %w", next.RoundNumber, err)
	}
	if err := tx.Save(game).Error; err != nil {
		return nil, nil, err
	}
	return outcome, next, nil
}

func (s *GameService) finalizeGame(tx *gorm.DB, game *models.Game, players ...*models.Player) error {
	now := time.Now()
	game.Status = models.GameStatusCompleted
	game.EndedAt = &now

	for _, p := range players {
		if p.IsBot || p.UserID == nil {
			continue
		}
		if err := s.Profiles.ApplyGameResult(tx, game.ID, p); err != nil {
			return fmt.Errorf("profile update failed for player %s: %w", p.ID, err)
		}
	}
	return nil
}

// carriedPot returns the previous round's pot-after-bonus; round 1 starts
// from nothing.
func (s *GameService) carriedPot(tx *gorm.DB, gameID string, roundNumber int) (float64, error) {
	if roundNumber <= 1 {
		return 0, nil
	}
	var prev models.Round
	if err := tx.First(&prev, "game_id = ? AND round_number = ?", gameID, roundNumber-1).Error; err != nil {
		return 0, fmt.Errorf("previous round missing for game %s: %w", gameID, err)
	}
	return prev.PotAfterBonus, nil
}

func (s *GameService) loadRoundContext(tx *gorm.DB, gameID, roundID string) (*models.Game, *models.Round, *models.Player, *models.Player, error) {
	var game models.Game
	if err := tx.First(&game, "id = ?", gameID).Error; err != nil {
		return nil, nil, nil, nil, err
	}
	var round models.Round
	if err := tx.First(&round, "id = ? AND game_id = ?", roundID, gameID).Error; err != nil {
		return nil, nil, nil, nil, err
	}
	var players []models.Player
	if err := tx.Where("game_id = ?", gameID).Order("player_number ASC").Find(&players).Error; err != nil {
		return nil, nil, nil, nil, err
	}
	if len(players) != 2 {
		return nil, nil, nil, nil, fmt.Errorf("game %s has %d players, want 2", gameID, len(players))
	}
	return &game, &round, &players[0], &players[1], nil
}

func (s *GameService) writeTelemetry(tx *gorm.DB, round *models.Round, playerID, finalChoice string, t *ChoiceTelemetry) error {
	initial := t.InitialChoice
	if initial == "" {
		initial = finalChoice
	}
	stat := models.RoundStat{
		ID:              uuid.NewString(),
		RoundID:         round.ID,
		PlayerID:        playerID,
		GameID:          round.GameID,
		InitialChoice:   initial,
		FinalChoice:     finalChoice,
		ChangedChoice:   initial != finalChoice,
		DecisionTimeMs:  t.DecisionTimeMs,
		TimeOnInvestMs:  t.TimeOnInvestMs,
		TimeOnCashOutMs: t.TimeOnCashOutMs,
		ToggleCount:     t.NumberOfToggles,
		MadeDecision:    true,
	}
	return tx.Create(&stat).Error
}

// writeDecisionStat persists the telemetry a decision maker synthesized for
// a bot or simulated seat.
func writeDecisionStat(tx *gorm.DB, round *models.Round, playerID string, d Decision) error {
	stat := models.RoundStat{
		ID:              uuid.NewString(),
		RoundID:         round.ID,
		PlayerID:        playerID,
		GameID:          round.GameID,
		InitialChoice:   d.InitialChoice,
		FinalChoice:     d.Choice,
		ChangedChoice:   d.InitialChoice != d.Choice,
		DecisionTimeMs:  d.DecisionTimeMs,
		ToggleCount:     d.ToggleCount,
		HesitationScore: d.HesitationScore,
		MadeDecision:    true,
	}
	return tx.Create(&stat).Error
}

func roundChoice(round *models.Round, playerNumber int) *string {
	if playerNumber == 1 {
		return round.Player1Choice
	}
	return round.Player2Choice
}

// ===== Round timeout sweeper =====

// StartTimeoutSweeper settles rounds whose wall-clock deadline passed with
// defaulted choices, every few seconds. Safe to fire even when one or both
// choices are already present.
func (s *GameService) StartTimeoutSweeper() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(5*time.Second),
		gocron.NewTask(func() {
			if n, err := s.SettleExpiredRounds(); err != nil {
				log.Printf("[Sweeper] error settling expired rounds: %v", err)
			} else if n > 0 {
				log.Printf("✅ [Sweeper] settled %d expired round(s)", n)
			}
		}),
	)
}

// SettleExpiredRounds finds unsettled rounds past their deadline in active
// games and settles each one with the timeout policy.
func (s *GameService) SettleExpiredRounds() (int, error) {
	deadline := time.Now().Add(-time.Duration(s.Cfg.RoundDurationSec) * time.Second)

	var expired []models.Round
	err := s.DB.
		Joins("JOIN games ON games.id = rounds.game_id AND games.status = ?", models.GameStatusActive).
		Where("rounds.ended_at IS NULL AND rounds.started_at <= ?", deadline).
		Find(&expired).Error
	if err != nil {
		return 0, err
	}

	settled := 0
	for i := range expired {
		round := expired[i]
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			game, fresh, p1, p2, err := s.loadRoundContext(tx, round.GameID, round.ID)
			if err != nil {
				return err
			}
			if fresh.Settled() || game.Status != models.GameStatusActive {
				return nil // lost the race to a submission, fine
			}
			_, _, err = s.settleAndAdvance(tx, game, fresh, p1, p2)
			return err
		})
		if err != nil {
			log.Printf("[Sweeper] failed to settle round %s: %v", round.ID, err)
			continue
		}
		settled++
	}
	return settled, nil
}

// ===== HTTP handlers =====

type submitChoiceRequest struct {
	PlayerID  string           `json:"player_id"`
	Choice    string           `json:"choice"`
	Amount    float64          `json:"amount"`
	Telemetry *ChoiceTelemetry `json:"telemetry"`
}

// SubmitChoiceHandler is the client-facing wrapper around SubmitChoice.
func (s *GameService) SubmitChoiceHandler(c *fiber.Ctx) error {
	gameID := c.Params("id")
	roundID := c.Params("round_id")

	var req submitChoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
	}

	result, err := s.SubmitChoice(gameID, roundID, req.PlayerID, req.Choice, req.Amount, req.Telemetry)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(result)
}

// GetGame returns a game with players and rounds.
func (s *GameService) GetGame(c *fiber.Ctx) error {
	var game models.Game
	if err := s.DB.Preload("Players").Preload("Rounds").First(&game, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(game)
}

// GetCurrentRound returns the presentation snapshot: pots, bonus % and the
// seconds left on the round timer.
func (s *GameService) GetCurrentRound(c *fiber.Ctx) error {
	gameID := c.Params("id")

	var round models.Round
	err := s.DB.Where("game_id = ? AND ended_at IS NULL", gameID).
		Order("round_number ASC").
		First(&round).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no open round"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	carried, err := s.carriedPot(s.DB, gameID, round.RoundNumber)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	remaining := float64(s.Cfg.RoundDurationSec) - time.Since(round.StartedAt).Seconds()
	if remaining < 0 {
		remaining = 0
	}

	return c.JSON(fiber.Map{
		"round_id":          round.ID,
		"round_number":      round.RoundNumber,
		"carried_pot":       carried,
		"trust_bonus_pct":   round.TrustBonusPct,
		"remaining_seconds": remaining,
	})
}

// GetRoundOutcome returns the settled outcome of a round, or 409 if it is
// still open.
func (s *GameService) GetRoundOutcome(c *fiber.Ctx) error {
	gameID := c.Params("id")
	roundID := c.Params("round_id")

	var round models.Round
	if err := s.DB.First(&round, "id = ? AND game_id = ?", roundID, gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "round not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if !round.Settled() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "round not settled yet"})
	}

	var results []models.RoundResult
	if err := s.DB.Where("round_id = ?", roundID).Find(&results).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var nextNumber *int
	var next models.Round
	if err := s.DB.First(&next, "game_id = ? AND round_number = ?", gameID, round.RoundNumber+1).Error; err == nil {
		nextNumber = &next.RoundNumber
	}

	return c.JSON(fiber.Map{
		"round":             round,
		"results":           results,
		"next_round_number": nextNumber,
	})
}

func (s *GameService) mapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrInvalidChoice),
		errors.Is(err, ErrInvestmentOutOfBounds),
		errors.Is(err, ErrAlreadyChose),
		errors.Is(err, ErrGameNotActive):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrInsufficientFunds):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrRoundSettled):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	default:
		log.Printf("❌ [GAME] unexpected error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
