package models

// Bot is an AI opponent with a fixed OCEAN personality plus the two derived
// tendencies the decision model consumes directly.
type Bot struct {
	ID       string `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"uniqueIndex;not null" json:"name"`
	IsActive bool   `json:"is_active" gorm:"default:true;index"`

	// Nominal wallet — bots never touch the real ledger, but simulated games
	// report earnings against this figure.
	Balance float64 `json:"balance" gorm:"default:0"`

	// OCEAN traits (0–100)
	Openness          int `json:"openness" gorm:"not null"`
	Conscientiousness int `json:"conscientiousness" gorm:"not null"`
	Extraversion      int `json:"extraversion" gorm:"not null"`
	Agreeableness     int `json:"agreeableness" gorm:"not null"`
	Neuroticism       int `json:"neuroticism" gorm:"not null"`

	// Derived tendencies (0–100)
	CooperationTendency int `json:"cooperation_tendency" gorm:"not null"`
	RiskTolerance       int `json:"risk_tolerance" gorm:"not null"`

	Timestamps
}

// DefaultBots is the seed roster upserted at boot so matchmaking always has
// an active pool. Names double as dataset labels, so keep them stable.
var DefaultBots = []Bot{
	{Name: "Steady Sam", Openness: 45, Conscientiousness: 85, Extraversion: 40, Agreeableness: 80, Neuroticism: 20, CooperationTendency: 85, RiskTolerance: 30},
	{Name: "Gambler Gail", Openness: 75, Conscientiousness: 35, Extraversion: 70, Agreeableness: 50, Neuroticism: 55, CooperationTendency: 50, RiskTolerance: 90},
	{Name: "Cutthroat Cole", Openness: 40, Conscientiousness: 60, Extraversion: 65, Agreeableness: 20, Neuroticism: 45, CooperationTendency: 25, RiskTolerance: 70},
	{Name: "Anxious Andy", Openness: 35, Conscientiousness: 50, Extraversion: 25, Agreeableness: 60, Neuroticism: 85, CooperationTendency: 55, RiskTolerance: 20},
	{Name: "Open Olivia", Openness: 90, Conscientiousness: 55, Extraversion: 60, Agreeableness: 70, Neuroticism: 30, CooperationTendency: 70, RiskTolerance: 60},
}
