// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

// Sentinel errors crossing component boundaries. Gateway and engine
// packages wrap these with %w so call sites can errors.Is them.
var (
	// ErrEntitlementDenied is the expected, non-fatal denial of a gated
	// action. It is always resolved by an upgrade prompt, never surfaced
	// as a server fault.
	ErrEntitlementDenied = errors.New("entitlement denied")

	// ErrValidation marks input rejected before any gateway call.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthenticated is the only fatal class: no valid session at a
	// protected entry point. Handlers abort the flow and redirect to auth.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNotFound marks a missing record (profile, match, message).
	ErrNotFound = errors.New("not found")
)

// Validationf builds an ErrValidation with an inline reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// HTTPStatus converts engine/gateway errors into an HTTP status code.
// Keeps handlers clean by centralizing error mapping.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized

	case errors.Is(err, ErrEntitlementDenied):
		// 402 signals the UI shell to open the upgrade prompt
		return http.StatusPaymentRequired

	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, context.Canceled):
		// client went away mid-request
		return 499

	default:
		return http.StatusInternalServerError
	}
}
