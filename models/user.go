package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the local snapshot of a player account needed for trust games.
// Identity lives in the profile service; the game service owns balance and
// long-run behavioral stats.
type User struct {
	ID             string `gorm:"primaryKey" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // profile service UUID
	Username       string `gorm:"index;not null" json:"username"`

	// 💰 Wallet — mutated only inside round-settlement transactions
	Balance float64 `json:"balance" gorm:"default:0"`

	// 🧠 Personality profile (0–100), captured from the onboarding quiz.
	// Snapshotted onto Player rows at game creation.
	Openness          int `json:"openness" gorm:"default:50"`
	Conscientiousness int `json:"conscientiousness" gorm:"default:50"`
	Extraversion      int `json:"extraversion" gorm:"default:50"`
	Agreeableness     int `json:"agreeableness" gorm:"default:50"`
	Neuroticism       int `json:"neuroticism" gorm:"default:50"`

	// 📊 Long-run behavioral stats, maintained by ProfileService
	TrustScore       float64 `json:"trust_score" gorm:"default:50"` // clamped [0,100]
	MatchesPlayed    int64   `json:"matches_played" gorm:"default:0"`
	CooperationCount int64   `json:"cooperation_count" gorm:"default:0"`
	DefectionCount   int64   `json:"defection_count" gorm:"default:0"`
	TimesBetrayed    int64   `json:"times_betrayed" gorm:"default:0"`
	AverageEarnings  float64 `json:"average_earnings" gorm:"default:0"` // running mean of per-game net result

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
