package engine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidStake = errors.New("stake must be positive")
	ErrRoundNotOpen = errors.New("round is not open for play")
)

// SettlementError marks a failure after the stake debit but before the
// round reached a fully settled state. Real money is mid-flight: it must
// be logged with full round context and reconciled, never dropped.
type SettlementError struct {
	RoundID string
	Stage   string
	Err     error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settlement failure at %s for round %s: %v", e.Stage, e.RoundID, e.Err)
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}
