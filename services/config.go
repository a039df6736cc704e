// services/config.go
package services

import (
	"log"
	"os"
	"strconv"

	"trust-game-system/models"
)

// GameConfig is the tunable surface of the trust game. Values come from the
// environment with sane defaults; the trust-bonus table is fixed by design
// and not configurable per-deployment.
type GameConfig struct {
	RoundDurationSec  int
	MinInvestment     float64
	MaxInvestment     float64
	DefaultInvestment float64 // timeout policy: defaulted invest amount

	TrustScoreIncrease float64
	TrustScoreDecrease float64

	StartingBalance   float64
	BotDefaultBalance float64
}

// LoadGameConfig reads config from env (godotenv is loaded in main).
func LoadGameConfig() GameConfig {
	cfg := GameConfig{
		RoundDurationSec:   envInt("ROUND_DURATION_SEC", 30),
		MinInvestment:      envFloat("MIN_INVESTMENT", 50),
		MaxInvestment:      envFloat("MAX_INVESTMENT", 500),
		DefaultInvestment:  envFloat("DEFAULT_INVESTMENT", 100),
		TrustScoreIncrease: envFloat("TRUST_SCORE_INCREASE", 5),
		TrustScoreDecrease: envFloat("TRUST_SCORE_DECREASE", 10),
		StartingBalance:    envFloat("STARTING_BALANCE", 1000),
		BotDefaultBalance:  envFloat("BOT_DEFAULT_BALANCE", 10000),
	}

	if cfg.MinInvestment <= 0 || cfg.MaxInvestment < cfg.MinInvestment {
		log.Fatalf("invalid investment bounds: min=%.2f max=%.2f", cfg.MinInvestment, cfg.MaxInvestment)
	}
	if cfg.DefaultInvestment < cfg.MinInvestment || cfg.DefaultInvestment > cfg.MaxInvestment {
		log.Fatalf("DEFAULT_INVESTMENT %.2f outside [%.2f, %.2f]", cfg.DefaultInvestment, cfg.MinInvestment, cfg.MaxInvestment)
	}
	return cfg
}

// TrustBonusPct returns the bonus percentage for a round number.
func (c GameConfig) TrustBonusPct(roundNumber int) int {
	return models.TrustBonusTable[roundNumber]
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("⚠️  %s=%q is not an integer, using default %d", key, os.Getenv(key), def)
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("⚠️  %s=%q is not a number, using default %g", key, os.Getenv(key), def)
	}
	return def
}
