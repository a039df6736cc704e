// services/export.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"trust-game-system/models"
	"trust-game-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// ExportService flattens the accumulated games into a training-ready JSON
// dataset and ships it to R2. One row per (round, player): personality
// snapshot, choice, telemetry and payout together, so a model can train
// without joining.
type ExportService struct {
	DB *gorm.DB
}

func NewExportService(db *gorm.DB) *ExportService {
	return &ExportService{DB: db}
}

// DatasetRow is one observation in the exported dataset.
type DatasetRow struct {
	GameID      string `json:"game_id"`
	IsSimulated bool   `json:"is_simulated"`
	RoundNumber int    `json:"round_number"`
	PlayerID    string `json:"player_id"`
	IsBot       bool   `json:"is_bot"`

	// Personality snapshot
	Openness            int `json:"openness"`
	Conscientiousness   int `json:"conscientiousness"`
	Extraversion        int `json:"extraversion"`
	Agreeableness       int `json:"agreeableness"`
	Neuroticism         int `json:"neuroticism"`
	CooperationTendency int `json:"cooperation_tendency"`
	RiskTolerance       int `json:"risk_tolerance"`

	// Round context
	PotBeforeBonus float64 `json:"pot_before_bonus"`
	TrustBonusPct  int     `json:"trust_bonus_pct"`
	PotAfterBonus  float64 `json:"pot_after_bonus"`

	// Outcome
	Choice          string  `json:"choice"`
	Invested        float64 `json:"invested"`
	Payout          float64 `json:"payout"`
	NetGain         float64 `json:"net_gain"`
	Cooperated      bool    `json:"cooperated"`
	Defected        bool    `json:"defected"`
	WasBetrayed     bool    `json:"was_betrayed"`
	ContributionPct float64 `json:"contribution_pct"`

	// Telemetry (zero values when the round defaulted)
	InitialChoice     string `json:"initial_choice,omitempty"`
	ChangedChoice     bool   `json:"changed_choice"`
	DecisionTimeMs    int64  `json:"decision_time_ms"`
	ToggleCount       int    `json:"toggle_count"`
	HesitationScore   int    `json:"hesitation_score"`
	MadeDecision      bool   `json:"made_decision"`
	DefaultedToInvest bool   `json:"defaulted_to_invest"`
}

// BuildDataset flattens every settled round of completed games. Pass
// simulatedOnly to exclude live human games from the export.
func (s *ExportService) BuildDataset(simulatedOnly bool) ([]DatasetRow, error) {
	var games []models.Game
	q := s.DB.Where("status = ?", models.GameStatusCompleted)
	if simulatedOnly {
		q = q.Where("is_simulated = ?", true)
	}
	if err := q.Find(&games).Error; err != nil {
		return nil, err
	}

	rows := make([]DatasetRow, 0, len(games)*2*models.MaxRounds)
	for i := range games {
		gameRows, err := s.gameRows(&games[i])
		if err != nil {
			return nil, err
		}
		rows = append(rows, gameRows...)
	}
	return rows, nil
}

func (s *ExportService) gameRows(game *models.Game) ([]DatasetRow, error) {
	var players []models.Player
	if err := s.DB.Where("game_id = ?", game.ID).Find(&players).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Player, len(players))
	for i := range players {
		byID[players[i].ID] = &players[i]
	}

	var rounds []models.Round
	if err := s.DB.Where("game_id = ? AND ended_at IS NOT NULL", game.ID).
		Order("round_number ASC").Find(&rounds).Error; err != nil {
		return nil, err
	}

	var rows []DatasetRow
	for i := range rounds {
		round := &rounds[i]

		var results []models.RoundResult
		if err := s.DB.Where("round_id = ?", round.ID).Find(&results).Error; err != nil {
			return nil, err
		}
		var stats []models.RoundStat
		if err := s.DB.Where("round_id = ?", round.ID).Find(&stats).Error; err != nil {
			return nil, err
		}
		statByPlayer := make(map[string]*models.RoundStat, len(stats))
		for j := range stats {
			statByPlayer[stats[j].PlayerID] = &stats[j]
		}

		for _, r := range results {
			player := byID[r.PlayerID]
			if player == nil {
				continue
			}

			row := DatasetRow{
				GameID:      game.ID,
				IsSimulated: game.IsSimulated,
				RoundNumber: round.RoundNumber,
				PlayerID:    r.PlayerID,
				IsBot:       player.IsBot,

				Openness:            player.Openness,
				Conscientiousness:   player.Conscientiousness,
				Extraversion:        player.Extraversion,
				Agreeableness:       player.Agreeableness,
				Neuroticism:         player.Neuroticism,
				CooperationTendency: player.CooperationTendency,
				RiskTolerance:       player.RiskTolerance,

				PotBeforeBonus: round.PotBeforeBonus,
				TrustBonusPct:  round.TrustBonusPct,
				PotAfterBonus:  round.PotAfterBonus,

				Invested:        r.Invested,
				Payout:          r.Payout,
				NetGain:         r.NetGain,
				Cooperated:      r.Cooperated,
				Defected:        r.Defected,
				WasBetrayed:     r.WasBetrayed,
				ContributionPct: r.ContributionPct,
			}
			if r.Cooperated {
				row.Choice = models.ChoiceInvest
			} else {
				row.Choice = models.ChoiceCashOut
			}

			if stat := statByPlayer[r.PlayerID]; stat != nil {
				row.InitialChoice = stat.InitialChoice
				row.ChangedChoice = stat.ChangedChoice
				row.DecisionTimeMs = stat.DecisionTimeMs
				row.ToggleCount = stat.ToggleCount
				row.HesitationScore = stat.HesitationScore
				row.MadeDecision = stat.MadeDecision
				row.DefaultedToInvest = stat.DefaultedToInvest
			}

			rows = append(rows, row)
		}
	}
	return rows, nil
}

// ExportToR2 builds the dataset and uploads it as JSON. The object key comes
// from the slugged dataset name plus a timestamp, so repeated exports never
// overwrite each other.
func (s *ExportService) ExportToR2(ctx context.Context, name string, simulatedOnly bool) (string, int, error) {
	rows, err := s.BuildDataset(simulatedOnly)
	if err != nil {
		return "", 0, err
	}

	payload, err := json.Marshal(fiber.Map{
		"name":         name,
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"row_count":    len(rows),
		"rows":         rows,
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to marshal dataset: %w", err)
	}

	key := fmt.Sprintf("datasets/%s-%d.json", slug.Make(name), time.Now().Unix())
	url, err := utils.UploadBytesToR2(ctx, key, payload, "application/json")
	if err != nil {
		return "", 0, err
	}

	log.Printf("✅ [EXPORT] dataset %q: %d rows → %s", name, len(rows), url)
	return url, len(rows), nil
}

// ===== HTTP handlers =====

type exportRequest struct {
	Name          string `json:"name"`
	SimulatedOnly bool   `json:"simulated_only"`
}

// ExportHandler uploads a fresh dataset snapshot to R2.
func (s *ExportService) ExportHandler(c *fiber.Ctx) error {
	var req exportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.Name == "" {
		req.Name = "trust-game-dataset"
	}
	if !utils.R2Ready() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "R2 not configured"})
	}

	url, count, err := s.ExportToR2(c.Context(), req.Name, req.SimulatedOnly)
	if err != nil {
		log.Printf("❌ [EXPORT] failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "export failed"})
	}
	return c.JSON(fiber.Map{"url": url, "row_count": count})
}
