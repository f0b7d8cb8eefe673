package coin

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUserRejected means the signer declined the transaction.
	ErrUserRejected = errors.New("transaction rejected by user")
	// ErrInsufficientFunds means the payer cannot cover value plus gas.
	ErrInsufficientFunds = errors.New("insufficient funds for transaction")
)

// UnknownOutcomeError is returned when the transaction was sent but we lost
// track of it (timeout or cancellation while waiting for the receipt). The
// mint may still land on-chain; callers must not treat this as a failure or
// retry blindly.
type UnknownOutcomeError struct {
	TxHash string
	Err    error
}

func (e *UnknownOutcomeError) Error() string {
	return fmt.Sprintf("mint outcome unknown (tx %s): %v", e.TxHash, e.Err)
}

func (e *UnknownOutcomeError) Unwrap() error { return e.Err }

// Classify buckets a chain error into the small set the presentation layer
// distinguishes, matching by message pattern since RPC providers do not agree
// on error codes.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
	case strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied"):
		return fmt.Errorf("%w: %v", ErrUserRejected, err)
	default:
		return err
	}
}
