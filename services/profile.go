// services/profile.go
package services

import (
	"errors"
	"fmt"
	"log"

	"trust-game-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ProfileService maintains the long-run behavioral stats on the user row:
// trust score, cooperation/defection counters, betrayal count and the
// running mean of per-game net earnings.
type ProfileService struct {
	DB  *gorm.DB
	Cfg GameConfig
}

func NewProfileService(db *gorm.DB, cfg GameConfig) *ProfileService {
	return &ProfileService{DB: db, Cfg: cfg}
}

// ApplyGameResult folds one finished game into the player's user profile.
// Called exactly once per human player, inside the finalizing transaction, so
// a crash mid-finalize never leaves a half-counted game.
func (s *ProfileService) ApplyGameResult(tx *gorm.DB, gameID string, player *models.Player) error {
	if player.UserID == nil {
		return fmt.Errorf("player %s has no user", player.ID)
	}

	var results []models.RoundResult
	if err := tx.Where("game_id = ? AND player_id = ?", gameID, player.ID).Find(&results).Error; err != nil {
		return err
	}

	var cooperated, defected, betrayed int64
	for _, r := range results {
		if r.Cooperated {
			cooperated++
		}
		if r.Defected {
			defected++
		}
		if r.WasBetrayed {
			betrayed++
		}
	}

	var user models.User
	if err := tx.First(&user, "id = ?", *player.UserID).Error; err != nil {
		return err
	}

	user.MatchesPlayed++
	user.CooperationCount += cooperated
	user.DefectionCount += defected
	user.TimesBetrayed += betrayed

	// Running mean: old*(n-1) folds the previous total back in.
	n := float64(user.MatchesPlayed)
	user.AverageEarnings = (user.AverageEarnings*(n-1) + player.NetResult) / n

	// Trust score moves once per game, not per round: cooperating throughout
	// earns the increase, any defection takes the larger decrease.
	if defected > 0 {
		user.TrustScore -= s.Cfg.TrustScoreDecrease
	} else if cooperated > 0 {
		user.TrustScore += s.Cfg.TrustScoreIncrease
	}
	user.TrustScore = clampFloat(user.TrustScore, 0, 100)

	if err := tx.Save(&user).Error; err != nil {
		return fmt.Errorf("failed to save profile for user %s: %w", user.ID, err)
	}
	return nil
}

// ===== HTTP handlers =====

// GetProfile returns a user's wallet, personality and behavioral stats by
// external id.
func (s *ProfileService) GetProfile(c *fiber.Ctx) error {
	var user models.User
	err := s.DB.First(&user, "external_user_id = ?", c.Params("external_id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
		}
		log.Printf("❌ [PROFILE] lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(user)
}

type updatePersonalityRequest struct {
	Openness          *int `json:"openness"`
	Conscientiousness *int `json:"conscientiousness"`
	Extraversion      *int `json:"extraversion"`
	Agreeableness     *int `json:"agreeableness"`
	Neuroticism       *int `json:"neuroticism"`
}

// UpdatePersonality stores quiz results on the user row. Only provided traits
// change; all values are clamped to 0–100. Does not touch games in flight,
// since seats carry their own snapshot.
func (s *ProfileService) UpdatePersonality(c *fiber.Ctx) error {
	var req updatePersonalityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}

	var user models.User
	err := s.DB.First(&user, "external_user_id = ?", c.Params("external_id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	apply := func(dst *int, src *int) {
		if src != nil {
			*dst = int(clampFloat(float64(*src), 0, 100))
		}
	}
	apply(&user.Openness, req.Openness)
	apply(&user.Conscientiousness, req.Conscientiousness)
	apply(&user.Extraversion, req.Extraversion)
	apply(&user.Agreeableness, req.Agreeableness)
	apply(&user.Neuroticism, req.Neuroticism)

	if err := s.DB.Save(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(user)
}
