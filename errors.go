package tollgate

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios. All are precondition
// failures detected before any mutation: a failed call leaves state exactly
// as it was, and nothing is retried internally.
var (
	// General errors
	ErrNotFound      = errors.New("tollgate: not found")
	ErrAlreadyExists = errors.New("tollgate: already exists")
	ErrInvalidInput  = errors.New("tollgate: invalid input")

	// Protocol errors
	ErrProtocolInitialized    = errors.New("tollgate: protocol already initialized")
	ErrProtocolNotInitialized = errors.New("tollgate: protocol not initialized")

	// Platform errors
	ErrPlatformNotFound = errors.New("tollgate: platform not found")
	ErrPlatformExists   = errors.New("tollgate: platform already exists")

	// Subscription errors
	ErrNoSubscription     = errors.New("tollgate: no subscription for owner")
	ErrSubscriptionExists = errors.New("tollgate: subscription already exists")

	// Payment errors
	ErrInsufficientFunds = errors.New("tollgate: payment below subscription price")
	ErrAssetNotAccepted  = errors.New("tollgate: asset not accepted by platform")
	ErrValueNotConserved = errors.New("tollgate: payment shares do not sum to payment")

	// Capability errors
	ErrInvalidCapability = errors.New("tollgate: capability does not authorize target")

	// History errors
	ErrHistoryBufferFull = errors.New("tollgate: history buffer full")

	// Store errors
	ErrStoreNotReady     = errors.New("tollgate: store not ready")
	ErrStoreClosed       = errors.New("tollgate: store is closed")
	ErrTransactionFailed = errors.New("tollgate: transaction failed")
	ErrMigrationFailed   = errors.New("tollgate: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("tollgate: validation failed for %s: %s", e.Field, e.Message)
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "tollgate: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("tollgate: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPlatformNotFound) ||
		errors.Is(err, ErrNoSubscription) ||
		errors.Is(err, ErrProtocolNotInitialized)
}

// IsPrecondition returns true if the error is a domain precondition failure
// the caller can correct and resubmit (as opposed to a store fault).
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrNoSubscription) ||
		errors.Is(err, ErrSubscriptionExists) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrAssetNotAccepted) ||
		errors.Is(err, ErrInvalidCapability) ||
		errors.Is(err, ErrNotFound)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrHistoryBufferFull) ||
		errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}
