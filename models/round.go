package models

import (
	"time"
)

const (
	ChoiceInvest  = "invest"
	ChoiceCashOut = "cash_out"
)

const MaxRounds = 3

// TrustBonusTable maps round number → bonus percentage applied to the pot
// when both players invest. Strictly increasing by round.
var TrustBonusTable = map[int]int{1: 20, 2: 40, 3: 60}

// Round is one round of a game. A round is terminal once EndedAt is set and
// both choices are non-nil; PotAfterBonus = PotBeforeBonus × (1+bonus/100)
// iff BothInvested, else it equals PotBeforeBonus.
type Round struct {
	ID          string `json:"id" gorm:"primaryKey"`
	GameID      string `json:"game_id" gorm:"not null;uniqueIndex:idx_rounds_game_number,priority:1"`
	RoundNumber int    `json:"round_number" gorm:"not null;uniqueIndex:idx_rounds_game_number,priority:2"` // 1..3

	PotBeforeBonus float64 `json:"pot_before_bonus" gorm:"default:0"`
	TrustBonusPct  int     `json:"trust_bonus_pct"` // fixed by round number: 20/40/60
	PotAfterBonus  float64 `json:"pot_after_bonus" gorm:"default:0"`

	Player1Choice     *string `json:"player1_choice,omitempty"` // invest | cash_out | nil = pending
	Player2Choice     *string `json:"player2_choice,omitempty"`
	Player1Investment float64 `json:"player1_investment" gorm:"default:0"`
	Player2Investment float64 `json:"player2_investment" gorm:"default:0"`

	BothInvested     bool `json:"both_invested" gorm:"default:false"`
	SomeoneCashedOut bool `json:"someone_cashed_out" gorm:"default:false"`

	DurationMs int64      `json:"duration_ms" gorm:"default:0"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`

	Timestamps
}

// Settled reports whether the round has already been through settlement.
func (r *Round) Settled() bool {
	return r.EndedAt != nil
}

// RoundResult is the settlement outcome for one player in one round.
// Exactly one row per (round, player). NetGain = Payout − Invested.
type RoundResult struct {
	ID       string `json:"id" gorm:"primaryKey"`
	RoundID  string `json:"round_id" gorm:"not null;uniqueIndex:idx_round_results_round_player,priority:1"`
	PlayerID string `json:"player_id" gorm:"not null;uniqueIndex:idx_round_results_round_player,priority:2"`
	GameID   string `json:"game_id" gorm:"index;not null"`

	Invested float64 `json:"invested"`
	Payout   float64 `json:"payout"`
	NetGain  float64 `json:"net_gain"`

	Cooperated  bool `json:"cooperated"`
	Defected    bool `json:"defected"`
	WasBetrayed bool `json:"was_betrayed"`

	// Share of the round's total investment, used for the proportional split
	// of the remaining pot on mutual cooperation.
	ContributionPct float64 `json:"contribution_pct"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// RoundStat is behavioral telemetry for one player in one round. Purely
// observational — never read by settlement math.
type RoundStat struct {
	ID       string `json:"id" gorm:"primaryKey"`
	RoundID  string `json:"round_id" gorm:"not null;uniqueIndex:idx_round_stats_round_player,priority:1"`
	PlayerID string `json:"player_id" gorm:"not null;uniqueIndex:idx_round_stats_round_player,priority:2"`
	GameID   string `json:"game_id" gorm:"index;not null"`

	InitialChoice string `json:"initial_choice"`
	FinalChoice   string `json:"final_choice"`
	ChangedChoice bool   `json:"changed_choice"`

	DecisionTimeMs  int64 `json:"decision_time_ms"`
	TimeOnInvestMs  int64 `json:"time_on_invest_ms"`
	TimeOnCashOutMs int64 `json:"time_on_cash_out_ms"`
	ToggleCount     int   `json:"toggle_count"`
	HesitationScore int   `json:"hesitation_score"` // 0–100

	MadeDecision      bool `json:"made_decision"`
	DefaultedToInvest bool `json:"defaulted_to_invest"` // timeout policy fired

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
