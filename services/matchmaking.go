// services/matchmaking.go
package services

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"trust-game-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MatchmakingService creates games. Human players are always paired with a
// bot drawn at random from the active roster; the bot's seat (player 1 or 2)
// is also random so the dataset never encodes "humans are always player 1".
// Both draws come from the injected source so test runs replay under a seed.
type MatchmakingService struct {
	DB  *gorm.DB
	Cfg GameConfig
	Rng *rand.Rand
}

func NewMatchmakingService(db *gorm.DB, cfg GameConfig, rng *rand.Rand) *MatchmakingService {
	return &MatchmakingService{DB: db, Cfg: cfg, Rng: rng}
}

// GetOrCreateUser looks up the local user row by the external profile-service
// id, creating it with the starting balance on first contact.
func (s *MatchmakingService) GetOrCreateUser(externalUserID, username string) (*models.User, error) {
	var user models.User
	err := s.DB.First(&user, "external_user_id = ?", externalUserID).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = models.User{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		Username:       username,
		Balance:        s.Cfg.StartingBalance,
	}
	if err := s.DB.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", externalUserID, err)
	}
	log.Printf("✅ [MATCH] created user %s (%s) with balance %.0f", user.Username, user.ID, user.Balance)
	return &user, nil
}

// SeedBots upserts the default roster by name so boot is idempotent and
// personality tweaks in the seed list propagate.
func (s *MatchmakingService) SeedBots() error {
	for i := range models.DefaultBots {
		bot := models.DefaultBots[i]
		bot.ID = uuid.NewString()
		bot.IsActive = true
		bot.Balance = s.Cfg.BotDefaultBalance

		err := s.DB.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"openness", "conscientiousness", "extraversion", "agreeableness",
				"neuroticism", "cooperation_tendency", "risk_tolerance", "is_active",
			}),
		}).Create(&bot).Error
		if err != nil {
			return fmt.Errorf("failed to seed bot %s: %w", bot.Name, err)
		}
	}
	log.Printf("✅ [MATCH] bot roster seeded (%d bots)", len(models.DefaultBots))
	return nil
}

// MatchWithBot creates an active game pairing the user against a random
// active bot, with round 1 opened. The user must hold at least the minimum
// investment.
func (s *MatchmakingService) MatchWithBot(user *models.User) (*models.Game, error) {
	if user.Balance < s.Cfg.MinInvestment {
		return nil, ErrInsufficientFunds
	}

	var bots []models.Bot
	if err := s.DB.Where("is_active = ?", true).Order("name ASC").Find(&bots).Error; err != nil {
		return nil, fmt.Errorf("failed to load bot roster: %w", err)
	}
	if len(bots) == 0 {
		return nil, fmt.Errorf("no active bot available")
	}
	bot := bots[s.Rng.Intn(len(bots))]

	now := time.Now()
	game := &models.Game{
		ID:        uuid.NewString(),
		Status:    models.GameStatusActive,
		HasBot:    true,
		StartedAt: now,
	}

	userNumber, botNumber := 1, 2
	if s.Rng.Intn(2) == 1 {
		userNumber, botNumber = 2, 1
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(game).Error; err != nil {
			return err
		}

		human := models.Player{
			ID:                uuid.NewString(),
			GameID:            game.ID,
			PlayerNumber:      userNumber,
			UserID:            &user.ID,
			Openness:          user.Openness,
			Conscientiousness: user.Conscientiousness,
			Extraversion:      user.Extraversion,
			Agreeableness:     user.Agreeableness,
			Neuroticism:       user.Neuroticism,
		}
		if err := tx.Create(&human).Error; err != nil {
			return err
		}

		seat := BotSeat(&bot, game.ID, botNumber)
		if err := tx.Create(&seat).Error; err != nil {
			return err
		}

		round := models.Round{
			ID:            uuid.NewString(),
			GameID:        game.ID,
			RoundNumber:   1,
			TrustBonusPct: s.Cfg.TrustBonusPct(1),
			StartedAt:     now,
		}
		return tx.Create(&round).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	log.Printf("✅ [MATCH] game %s: %s vs %s", game.ID, user.Username, bot.Name)
	return game, nil
}

// BotSeat snapshots a bot's personality onto a player row.
func BotSeat(bot *models.Bot, gameID string, playerNumber int) models.Player {
	return models.Player{
		ID:                  uuid.NewString(),
		GameID:              gameID,
		PlayerNumber:        playerNumber,
		BotID:               &bot.ID,
		IsBot:               true,
		Openness:            bot.Openness,
		Conscientiousness:   bot.Conscientiousness,
		Extraversion:        bot.Extraversion,
		Agreeableness:       bot.Agreeableness,
		Neuroticism:         bot.Neuroticism,
		CooperationTendency: bot.CooperationTendency,
		RiskTolerance:       bot.RiskTolerance,
	}
}

// ===== HTTP handlers =====

type joinQueueRequest struct {
	ExternalUserID string `json:"external_user_id"`
	Username       string `json:"username"`
}

// JoinQueue is the matchmaking entry point. There is no waiting pool: the
// caller is matched with a bot immediately and gets the game plus the open
// round back.
func (s *MatchmakingService) JoinQueue(c *fiber.Ctx) error {
	var req joinQueueRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.ExternalUserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "external_user_id required"})
	}

	user, err := s.GetOrCreateUser(req.ExternalUserID, req.Username)
	if err != nil {
		log.Printf("❌ [MATCH] user lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	game, err := s.MatchWithBot(user)
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "balance below minimum investment"})
		}
		log.Printf("❌ [MATCH] match failed for user %s: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "matchmaking failed"})
	}

	var full models.Game
	if err := s.DB.Preload("Players").Preload("Rounds").First(&full, "id = ?", game.ID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.Status(fiber.StatusCreated).JSON(full)
}
