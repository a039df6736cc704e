// services/round_engine.go
package services

import (
	"fmt"
	"time"

	"trust-game-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoundEngine is the round settlement state machine: choice recording,
// timeout defaulting, pot/bonus/payout arithmetic, the balance ledger and
// RoundResult rows. Settlement is idempotent — a settled round is never
// re-applied.
type RoundEngine struct {
	Cfg GameConfig
}

func NewRoundEngine(cfg GameConfig) *RoundEngine {
	return &RoundEngine{Cfg: cfg}
}

// PlayerOutcome is one player's side of a settled round.
type PlayerOutcome struct {
	Choice          string  `json:"choice"`
	Invested        float64 `json:"invested"`
	Payout          float64 `json:"payout"`
	NetGain         float64 `json:"net_gain"`
	Cooperated      bool    `json:"cooperated"`
	Defected        bool    `json:"defected"`
	WasBetrayed     bool    `json:"was_betrayed"`
	ContributionPct float64 `json:"contribution_pct"`
	Defaulted       bool    `json:"defaulted"` // timeout policy substituted the choice
}

// RoundOutcome is the full settlement result for a round.
type RoundOutcome struct {
	RoundNumber      int           `json:"round_number"`
	PotBeforeBonus   float64       `json:"pot_before_bonus"`
	TrustBonusPct    int           `json:"trust_bonus_pct"`
	PotAfterBonus    float64       `json:"pot_after_bonus"`
	BothInvested     bool          `json:"both_invested"`
	SomeoneCashedOut bool          `json:"someone_cashed_out"`
	Player1          PlayerOutcome `json:"player1"`
	Player2          PlayerOutcome `json:"player2"`
}

// ValidateChoice rejects malformed choices and out-of-bounds investments
// before any state is touched.
func (e *RoundEngine) ValidateChoice(choice string, amount float64) error {
	if choice != models.ChoiceInvest && choice != models.ChoiceCashOut {
		return ErrInvalidChoice
	}
	if choice == models.ChoiceInvest && (amount < e.Cfg.MinInvestment || amount > e.Cfg.MaxInvestment) {
		return ErrInvestmentOutOfBounds
	}
	return nil
}

// RecordChoice stores a player's choice on the round row. Duplicate
// submissions for the same seat are rejected (idempotent "already chose"
// lock). The round must not be settled yet.
func (e *RoundEngine) RecordChoice(tx *gorm.DB, round *models.Round, playerNumber int, choice string, amount float64) error {
	if round.Settled() {
		return ErrRoundSettled
	}
	if err := e.ValidateChoice(choice, amount); err != nil {
		return err
	}
	if choice == models.ChoiceCashOut {
		// A defector commits nothing to the pot.
		amount = 0
	}

	switch playerNumber {
	case 1:
		if round.Player1Choice != nil {
			return ErrAlreadyChose
		}
		round.Player1Choice = &choice
		round.Player1Investment = amount
	case 2:
		if round.Player2Choice != nil {
			return ErrAlreadyChose
		}
		round.Player2Choice = &choice
		round.Player2Investment = amount
	default:
		return fmt.Errorf("invalid player number %d", playerNumber)
	}

	return tx.Save(round).Error
}

// ResolveRound is the pure settlement arithmetic. carriedPot is the previous
// round's pot-after-bonus (0 for round 1). Nil choices default to invest with
// the configured amount — the timeout policy. No money is created or
// destroyed: on mutual cooperation payouts sum to the boosted pot, on a
// cash-out the pot moves whole (or, when both defect, splits evenly).
func ResolveRound(cfg GameConfig, roundNumber int, carriedPot float64, choice1, choice2 *string, inv1, inv2 float64) RoundOutcome {
	p1 := resolveChoice(cfg, choice1, inv1)
	p2 := resolveChoice(cfg, choice2, inv2)

	out := RoundOutcome{
		RoundNumber:   roundNumber,
		TrustBonusPct: models.TrustBonusTable[roundNumber],
		Player1:       p1,
		Player2:       p2,
	}

	out.PotBeforeBonus = carriedPot + out.Player1.Invested + out.Player2.Invested
	out.BothInvested = out.Player1.Choice == models.ChoiceInvest && out.Player2.Choice == models.ChoiceInvest
	out.SomeoneCashedOut = out.Player1.Choice == models.ChoiceCashOut || out.Player2.Choice == models.ChoiceCashOut

	if out.BothInvested {
		out.PotAfterBonus = out.PotBeforeBonus * (1 + float64(out.TrustBonusPct)/100)
		settleCooperation(&out)
	} else {
		out.PotAfterBonus = out.PotBeforeBonus
		settleCashOut(&out)
	}

	out.Player1.NetGain = out.Player1.Payout - out.Player1.Invested
	out.Player2.NetGain = out.Player2.Payout - out.Player2.Invested
	return out
}

func resolveChoice(cfg GameConfig, choice *string, invested float64) PlayerOutcome {
	po := PlayerOutcome{}
	if choice == nil {
		// Timeout policy: absent players invest the default amount.
		po.Choice = models.ChoiceInvest
		po.Invested = cfg.DefaultInvestment
		po.Defaulted = true
		return po
	}
	po.Choice = *choice
	if po.Choice == models.ChoiceInvest {
		po.Invested = invested
	}
	return po
}

func settleCooperation(out *RoundOutcome) {
	out.Player1.Cooperated = true
	out.Player2.Cooperated = true

	total := out.Player1.Invested + out.Player2.Invested
	if total > 0 {
		out.Player1.ContributionPct = out.Player1.Invested / total
		out.Player2.ContributionPct = out.Player2.Invested / total
	} else {
		out.Player1.ContributionPct = 0.5
		out.Player2.ContributionPct = 0.5
	}

	// Each cooperator gets their stake back plus a proportional share of
	// whatever the bonus grew on top.
	remaining := out.PotAfterBonus - total
	out.Player1.Payout = out.Player1.Invested + remaining*out.Player1.ContributionPct
	out.Player2.Payout = out.Player2.Invested + remaining*out.Player2.ContributionPct
}

func settleCashOut(out *RoundOutcome) {
	d1 := out.Player1.Choice == models.ChoiceCashOut
	d2 := out.Player2.Choice == models.ChoiceCashOut

	switch {
	case d1 && d2:
		// Mutual defection tie-break: the unboosted pot splits evenly and
		// nobody is betrayed.
		out.Player1.Defected = true
		out.Player2.Defected = true
		out.Player1.Payout = out.PotAfterBonus / 2
		out.Player2.Payout = out.PotAfterBonus / 2
	case d1:
		out.Player1.Defected = true
		out.Player1.Payout = out.PotAfterBonus
		out.Player2.Cooperated = true
		out.Player2.WasBetrayed = true
	default:
		out.Player2.Defected = true
		out.Player2.Payout = out.PotAfterBonus
		out.Player1.Cooperated = true
		out.Player1.WasBetrayed = true
	}
}

// Settle applies a round's settlement inside the caller's transaction:
// pot math, the debit-then-credit balance ledger for human players,
// RoundResult rows, player running totals and the terminal round state.
// Calling it on a settled round is a no-op signalled by ErrRoundSettled.
//
// carriedPot must be the previous round's pot-after-bonus (0 for round 1).
func (e *RoundEngine) Settle(tx *gorm.DB, round *models.Round, p1, p2 *models.Player, carriedPot float64) (*RoundOutcome, error) {
	if round.Settled() {
		return nil, ErrRoundSettled
	}
	if p1.PlayerNumber != 1 || p2.PlayerNumber != 2 {
		return nil, fmt.Errorf("players passed out of order for round %s", round.ID)
	}

	out := ResolveRound(e.Cfg, round.RoundNumber, carriedPot,
		round.Player1Choice, round.Player2Choice,
		round.Player1Investment, round.Player2Investment)

	now := time.Now()
	round.PotBeforeBonus = out.PotBeforeBonus
	round.PotAfterBonus = out.PotAfterBonus
	round.TrustBonusPct = out.TrustBonusPct
	round.BothInvested = out.BothInvested
	round.SomeoneCashedOut = out.SomeoneCashedOut
	round.Player1Choice = &out.Player1.Choice
	round.Player2Choice = &out.Player2.Choice
	round.Player1Investment = out.Player1.Invested
	round.Player2Investment = out.Player2.Invested
	round.EndedAt = &now
	round.DurationMs = now.Sub(round.StartedAt).Milliseconds()

	if err := tx.Save(round).Error; err != nil {
		return nil, fmt.Errorf("failed to finalize round: %w", err)
	}

	for _, side := range []struct {
		player  *models.Player
		outcome *PlayerOutcome
	}{{p1, &out.Player1}, {p2, &out.Player2}} {
		if err := e.settlePlayer(tx, round, side.player, side.outcome); err != nil {
			return nil, err
		}
	}

	return &out, nil
}

func (e *RoundEngine) settlePlayer(tx *gorm.DB, round *models.Round, player *models.Player, po *PlayerOutcome) error {
	// Ledger: the stake leaves the wallet at commit time regardless of
	// outcome, then the payout lands. Both legs stay inside the settlement
	// transaction — no other code path touches balance.
	if !player.IsBot && player.UserID != nil {
		if err := debitUser(tx, *player.UserID, po.Invested); err != nil {
			return err
		}
		if err := creditUser(tx, *player.UserID, po.Payout); err != nil {
			return err
		}
	}

	player.TotalInvested += po.Invested
	player.FinalEarnings += po.Payout
	player.NetResult = player.FinalEarnings - player.TotalInvested
	if po.WasBetrayed {
		player.WasBetrayed = true
	}
	if err := tx.Save(player).Error; err != nil {
		return fmt.Errorf("failed to update player totals: %w", err)
	}

	result := models.RoundResult{
		ID:              uuid.NewString(),
		RoundID:         round.ID,
		PlayerID:        player.ID,
		GameID:          round.GameID,
		Invested:        po.Invested,
		Payout:          po.Payout,
		NetGain:         po.NetGain,
		Cooperated:      po.Cooperated,
		Defected:        po.Defected,
		WasBetrayed:     po.WasBetrayed,
		ContributionPct: po.ContributionPct,
	}
	if err := tx.Create(&result).Error; err != nil {
		return fmt.Errorf("failed to write round result: %w", err)
	}

	if po.Defaulted {
		// The player never answered; record the timeout as telemetry so the
		// dataset distinguishes silence from a deliberate invest.
		stat := models.RoundStat{
			ID:                uuid.NewString(),
			RoundID:           round.ID,
			PlayerID:          player.ID,
			GameID:            round.GameID,
			FinalChoice:       models.ChoiceInvest,
			MadeDecision:      false,
			DefaultedToInvest: true,
		}
		if err := tx.Create(&stat).Error; err != nil {
			return fmt.Errorf("failed to write defaulted round stat: %w", err)
		}
	}

	return nil
}

func debitUser(tx *gorm.DB, userID string, amount float64) error {
	if amount == 0 {
		return nil
	}
	if err := tx.Model(&models.User{}).Where("id = ?", userID).
		Update("balance", gorm.Expr("balance - ?", amount)).Error; err != nil {
		return fmt.Errorf("ledger debit failed for user %s: %w", userID, err)
	}
	return nil
}

func creditUser(tx *gorm.DB, userID string, amount float64) error {
	if amount == 0 {
		return nil
	}
	if err := tx.Model(&models.User{}).Where("id = ?", userID).
		Update("balance", gorm.Expr("balance + ?", amount)).Error; err != nil {
		return fmt.Errorf("ledger credit failed for user %s: %w", userID, err)
	}
	return nil
}
