// models/game.go
package models

import (
	"time"
)

const (
	GameStatusWaiting   = "waiting"
	GameStatusActive    = "active"
	GameStatusCompleted = "completed"
	GameStatusCancelled = "cancelled"
)

// Game is one 3-round trust-game session between two players.
// Status only ever moves waiting → active → completed (or → cancelled);
// once completed the row is immutable.
type Game struct {
	ID              string     `json:"id" gorm:"primaryKey"`
	Status          string     `json:"status" gorm:"default:'waiting';index"`
	CompletedRounds int        `json:"completed_rounds" gorm:"default:0"` // never exceeds MaxRounds
	HasBot          bool       `json:"has_bot" gorm:"default:false"`
	IsSimulated     bool       `json:"is_simulated" gorm:"default:false;index"` // bot-vs-bot / bot-vs-synthetic-user
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`

	Players []Player `json:"players,omitempty" gorm:"foreignKey:GameID"`
	Rounds  []Round  `json:"rounds,omitempty" gorm:"foreignKey:GameID"`

	Timestamps
}

// Player is one seat in a game. Exactly two per game, with player numbers
// 1 and 2. The personality columns are a snapshot taken at game creation —
// they never track later changes to the live user/bot profile.
type Player struct {
	ID           string  `json:"id" gorm:"primaryKey"`
	GameID       string  `json:"game_id" gorm:"not null;uniqueIndex:idx_players_game_number,priority:1"`
	PlayerNumber int     `json:"player_number" gorm:"not null;uniqueIndex:idx_players_game_number,priority:2"` // 1 or 2
	UserID       *string `json:"user_id,omitempty" gorm:"index"` // nil ⇔ IsBot
	BotID        *string `json:"bot_id,omitempty" gorm:"index"`
	IsBot        bool    `json:"is_bot" gorm:"default:false"`

	// Personality snapshot (0–100)
	Openness            int `json:"openness"`
	Conscientiousness   int `json:"conscientiousness"`
	Extraversion        int `json:"extraversion"`
	Agreeableness       int `json:"agreeableness"`
	Neuroticism         int `json:"neuroticism"`
	CooperationTendency int `json:"cooperation_tendency"`
	RiskTolerance       int `json:"risk_tolerance"`

	// Running totals across the game's rounds.
	// NetResult is always recomputed as FinalEarnings − TotalInvested.
	TotalInvested float64 `json:"total_invested" gorm:"default:0"`
	FinalEarnings float64 `json:"final_earnings" gorm:"default:0"`
	NetResult     float64 `json:"net_result" gorm:"default:0"`
	WasBetrayed   bool    `json:"was_betrayed" gorm:"default:false"`

	Timestamps
}
