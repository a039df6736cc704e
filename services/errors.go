package services

import "errors"

// Settlement / submission error taxonomy. Validation errors are returned
// before any state mutation; ErrRoundSettled signals an idempotent no-op,
// not a failure.
var (
	ErrInvalidChoice         = errors.New("choice must be 'invest' or 'cash_out'")
	ErrInvestmentOutOfBounds = errors.New("investment amount outside configured bounds")
	ErrAlreadyChose          = errors.New("player already submitted a choice for this round")
	ErrInsufficientFunds     = errors.New("balance below minimum investment")
	ErrRoundSettled          = errors.New("round already settled")
	ErrGameNotActive         = errors.New("game is not active")
)
