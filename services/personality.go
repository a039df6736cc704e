// services/personality.go
package services

import (
	"math"
	"math/rand"

	"trust-game-system/models"
)

// Decision is the output of one decision-maker invocation: the choice itself
// plus the behavioral telemetry a real client would have produced while
// deciding. Pure function of the personality snapshot and the random source.
type Decision struct {
	Choice          string  `json:"choice"`
	Investment      float64 `json:"investment"`
	InitialChoice   string  `json:"initial_choice"`
	DecisionTimeMs  int64   `json:"decision_time_ms"`
	HesitationScore int     `json:"hesitation_score"`
	ToggleCount     int     `json:"toggle_count"`
}

// DecisionProfile parameterizes the shared probability algorithm per actor
// type. Bots and synthetic users run the exact same code path with different
// weight tables instead of duplicated methods.
type DecisionProfile struct {
	// BaseCooperation returns the starting cooperation probability (0–100).
	BaseCooperation func(p models.Player) float64
	// PenaltyTrait is the trait checked for the "selfish early defection" and
	// endgame penalties (cooperation tendency for bots, agreeableness for users).
	PenaltyTrait func(p models.Player) float64

	AgreeablenessWeight float64
	NeuroticismWeight   float64
	OpennessWeight      float64 // user-only nudge; zero for bots

	// LatencyExtraversionWeight reduces decision time for extraverted users;
	// zero for bots.
	LatencyExtraversionWeight float64
	// HesitationLowConscientiousness adds extra hesitation when C is low
	// (user path only).
	HesitationLowConscientiousness bool

	// RoundingStep is the investment granularity: 10 for bots, 100 for
	// synthetic users. Kept as a per-actor policy on purpose.
	RoundingStep float64

	// ToggleCalmThreshold is the hesitation score at or below which no
	// toggling happens: 40 for bots, 30 for synthetic users (humans fidget
	// at lower hesitation than bots).
	ToggleCalmThreshold int
}

// BotProfile uses the stored cooperation tendency directly as the base.
func BotProfile() DecisionProfile {
	return DecisionProfile{
		BaseCooperation: func(p models.Player) float64 { return float64(p.CooperationTendency) },
		PenaltyTrait:    func(p models.Player) float64 { return float64(p.CooperationTendency) },

		AgreeablenessWeight: 0.3,
		NeuroticismWeight:   0.25,
		RoundingStep:        10,
		ToggleCalmThreshold: 40,
	}
}

// SyntheticUserProfile derives cooperation from agreeableness and
// conscientiousness instead of a stored tendency.
func SyntheticUserProfile() DecisionProfile {
	return DecisionProfile{
		BaseCooperation: func(p models.Player) float64 {
			return float64(p.Agreeableness)*0.6 + float64(p.Conscientiousness)*0.4
		},
		PenaltyTrait: func(p models.Player) float64 { return float64(p.Agreeableness) },

		AgreeablenessWeight:            0.3,
		NeuroticismWeight:              0.2,
		OpennessWeight:                 0.1,
		LatencyExtraversionWeight:      4,
		HesitationLowConscientiousness: true,
		RoundingStep:                   100,
		ToggleCalmThreshold:            30,
	}
}

// DecisionMaker produces stochastic decisions for one player snapshot.
// All randomness flows through the injected source so simulations replay
// deterministically under a fixed seed.
type DecisionMaker struct {
	Player  models.Player
	Profile DecisionProfile
	Cfg     GameConfig
	Rng     *rand.Rand
}

func NewBotDecisionMaker(p models.Player, cfg GameConfig, rng *rand.Rand) *DecisionMaker {
	return &DecisionMaker{Player: p, Profile: BotProfile(), Cfg: cfg, Rng: rng}
}

func NewSyntheticUserDecisionMaker(p models.Player, cfg GameConfig, rng *rand.Rand) *DecisionMaker {
	return &DecisionMaker{Player: p, Profile: SyntheticUserProfile(), Cfg: cfg, Rng: rng}
}

// lowTendencyThreshold gates the round-2/round-3 defection penalties.
const lowTendencyThreshold = 40

// earlyDefectionChance is how often a low-tendency actor takes the big
// round-2 penalty (selfish early cash-out behavior).
const earlyDefectionChance = 0.35

// rawCooperationProbability is the pre-clamp probability: base + round
// adjustment + trait corrections. Split out so tests can assert on the
// unclamped value.
func (d *DecisionMaker) rawCooperationProbability(roundNumber int) float64 {
	p := d.Profile.BaseCooperation(d.Player)
	tendency := d.Profile.PenaltyTrait(d.Player)

	switch roundNumber {
	case 1:
		// Build the pot early.
		p += d.randRange(25, 30)
	case 2:
		p += d.randRange(5, 10)
		if tendency < lowTendencyThreshold && d.Rng.Float64() < earlyDefectionChance {
			p -= d.randRange(40, 50)
		}
	default:
		// Endgame defection effect.
		p -= d.randRange(10, 15)
		if tendency < lowTendencyThreshold {
			p -= d.randRange(20, 25)
		}
	}

	p += (float64(d.Player.Agreeableness) - 50) * d.Profile.AgreeablenessWeight
	p -= (float64(d.Player.Neuroticism) - 50) * d.Profile.NeuroticismWeight
	p += (float64(d.Player.Openness) - 50) * d.Profile.OpennessWeight

	return p
}

// Decide runs the full personality algorithm for one round. No side effects.
func (d *DecisionMaker) Decide(roundNumber int) Decision {
	prob := clampFloat(d.rawCooperationProbability(roundNumber), 0, 100)

	choice := models.ChoiceCashOut
	if float64(d.Rng.Intn(101)) <= prob {
		choice = models.ChoiceInvest
	}

	var investment float64
	if choice == models.ChoiceInvest {
		investment = d.investmentAmount(roundNumber)
	}

	hesitation := d.hesitationScore(roundNumber, choice)
	toggles := d.toggleCount(hesitation)

	initial := choice
	// High hesitation actors often flip from their first instinct.
	if hesitation > 70 && d.Rng.Float64() < 0.4 {
		initial = opposite(choice)
	}

	return Decision{
		Choice:          choice,
		Investment:      investment,
		InitialChoice:   initial,
		DecisionTimeMs:  d.decisionTimeMs(),
		HesitationScore: hesitation,
		ToggleCount:     toggles,
	}
}

// investmentAmount widens the random fraction with round number: conservative
// in round 1, aggressive in round 3. Rounded to the profile's granularity and
// clamped to the configured bounds.
func (d *DecisionMaker) investmentAmount(roundNumber int) float64 {
	var frac float64
	switch roundNumber {
	case 1:
		frac = d.randRange(0.2, 0.5)
	case 2:
		frac = d.randRange(0.3, 0.7)
	default:
		frac = d.randRange(0.5, 1.0)
	}

	riskFrac := float64(d.Player.RiskTolerance) / 100
	amount := d.Cfg.MinInvestment + (d.Cfg.MaxInvestment-d.Cfg.MinInvestment)*riskFrac*frac

	step := d.Profile.RoundingStep
	if step > 0 {
		amount = math.Round(amount/step) * step
	}
	return clampFloat(amount, d.Cfg.MinInvestment, d.Cfg.MaxInvestment)
}

func (d *DecisionMaker) decisionTimeMs() int64 {
	base := 600 + float64(100-d.Player.Conscientiousness)*8 + float64(d.Player.Neuroticism)*6
	base -= float64(d.Player.Extraversion) * d.Profile.LatencyExtraversionWeight
	if base < 200 {
		base = 200
	}
	jitter := d.randRange(0.7, 1.3)
	return int64(base * jitter)
}

func (d *DecisionMaker) hesitationScore(roundNumber int, choice string) int {
	score := float64(d.Player.Neuroticism)
	if choice == models.ChoiceCashOut {
		score += d.randRange(15, 20)
	}
	if roundNumber == models.MaxRounds {
		score += d.randRange(10, 15)
	}
	if d.Profile.HesitationLowConscientiousness && d.Player.Conscientiousness < 30 {
		score += d.randRange(10, 15)
	}
	return int(clampFloat(score, 0, 100))
}

func (d *DecisionMaker) toggleCount(hesitation int) int {
	switch {
	case hesitation <= d.Profile.ToggleCalmThreshold:
		return 0
	case hesitation <= 70:
		return 1 + d.Rng.Intn(3) // 1..3
	default:
		return 2 + d.Rng.Intn(5) // 2..6
	}
}

func (d *DecisionMaker) randRange(lo, hi float64) float64 {
	return lo + d.Rng.Float64()*(hi-lo)
}

func opposite(choice string) string {
	if choice == models.ChoiceInvest {
		return models.ChoiceCashOut
	}
	return models.ChoiceInvest
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
