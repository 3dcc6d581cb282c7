package lifecycle

import "github.com/pkg/errors"

// Validation failures returned by the state machine. Callers classify
// them with errors.Is; all are local business-rule violations, never
// infrastructure faults, so none are retryable.
var (
	// ErrInvalidTransition means the target stage is not a permitted
	// successor of the current stage.
	ErrInvalidTransition = errors.New("invalid stage transition")

	// ErrTerminalState means the request already reached a terminal stage.
	ErrTerminalState = errors.New("request is in a terminal stage")

	// ErrAlreadyDecided guards against a duplicate approval or rejection.
	ErrAlreadyDecided = errors.New("approval already decided")

	// ErrInsufficientAuthorization means the actor's tier is too low for
	// the monetary value being approved.
	ErrInsufficientAuthorization = errors.New("insufficient authorization")

	// ErrPurchaseNotReached means a purchase record arrived before the
	// request reached the purchase_order stage.
	ErrPurchaseNotReached = errors.New("purchase stage not reached")
)
