package streampay

import (
	"errors"
	"fmt"

	"github.com/xraph/streampay/accrual"
	"github.com/xraph/streampay/registry"
	"github.com/xraph/streampay/stream"
	"github.com/xraph/streampay/token"
	"github.com/xraph/streampay/types"
)

// Sentinel errors for common failure scenarios. They are defined next to
// the code that raises them and re-exported here so callers only need this
// package.
var (
	// Validation errors
	ErrInvalidDuration     = stream.ErrInvalidDuration
	ErrInvalidAmount       = stream.ErrInvalidAmount
	ErrAssetNotWhitelisted = registry.ErrAssetNotWhitelisted
	ErrFeeRateInvalid      = accrual.ErrFeeRateInvalid

	// Authorization errors
	ErrUnauthorized = token.ErrUnauthorized
	ErrWrongStream  = token.ErrWrongStream

	// State errors
	ErrNotActive        = stream.ErrNotActive
	ErrNotPaused        = stream.ErrNotPaused
	ErrAlreadyCancelled = stream.ErrAlreadyCancelled
	ErrAlreadyStarted   = stream.ErrAlreadyStarted
	ErrNotStarted       = stream.ErrNotStarted
	ErrStreamDrained    = stream.ErrStreamDrained

	// Arithmetic and custody errors
	ErrOverflow          = accrual.ErrOverflow
	ErrAmountOverflow    = types.ErrAmountOverflow
	ErrInsufficientFunds = types.ErrInsufficientFunds
	ErrAssetMismatch     = types.ErrAssetMismatch
	ErrBalanceExceeded   = stream.ErrBalanceExceeded

	// Store errors
	ErrStreamNotFound             = stream.ErrNotFound
	ErrStreamExists               = stream.ErrAlreadyExists
	ErrConcurrentUpdate           = stream.ErrConcurrentUpdate
	ErrRegistryNotInitialized     = registry.ErrNotInitialized
	ErrRegistryAlreadyInitialized = registry.ErrAlreadyInitialized
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("streampay: validation failed for %s: %s", e.Field, e.Message)
}

// IsValidationError returns true if the request was rejected before any
// state was read or written.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrInvalidDuration) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrAssetNotWhitelisted) ||
		errors.Is(err, ErrFeeRateInvalid)
}

// IsAuthorizationError returns true if the presented token does not grant
// the operation.
func IsAuthorizationError(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrWrongStream)
}

// IsStateError returns true if the operation is illegal in the stream's
// current lifecycle state.
func IsStateError(err error) bool {
	return errors.Is(err, ErrNotActive) ||
		errors.Is(err, ErrNotPaused) ||
		errors.Is(err, ErrAlreadyCancelled) ||
		errors.Is(err, ErrAlreadyStarted) ||
		errors.Is(err, ErrNotStarted) ||
		errors.Is(err, ErrStreamDrained)
}

// IsArithmeticError returns true if an amount computation overflowed or a
// balance would go negative.
func IsArithmeticError(err error) bool {
	return errors.Is(err, ErrOverflow) ||
		errors.Is(err, ErrAmountOverflow) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrBalanceExceeded)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrStreamNotFound) ||
		errors.Is(err, ErrRegistryNotInitialized)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentUpdate)
}
