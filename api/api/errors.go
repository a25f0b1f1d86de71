/* errors.go
 * Contains the errors returned to api consumers. Transports map these to their own status codes; anything
 * that is not one of these is an internal failure and its detail should only be logged
 */

package api

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation     = errors.New("invalid request")
	ErrUnauthorized   = errors.New("caller not identified")
	ErrForbidden      = errors.New("caller is not a participant in this match")
	ErrNotFound       = errors.New("match not found")
	ErrMatchNotActive = errors.New("match is not active")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrStateConflict  = errors.New("operation not allowed in the current state")
)

// RateLimitError is returned when a caller is over its sync budget. It matches ErrRateLimited with errors.Is
type RateLimitError struct {
	Limit     int
	Remaining int
	ResetTime time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit of %d exceeded, resets at %s", e.Limit, e.ResetTime.UTC().Format(time.RFC3339))
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// validationError wraps ErrValidation with the reason shown to the caller
func validationError(reason string) error {
	return fmt.Errorf("%w: %s", ErrValidation, reason)
}
