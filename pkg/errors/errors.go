// Package errors provides the shared error taxonomy for skyfeed.
//
// Three classes of failure exist across the codebase:
//
//   - Contract violations: a caller passed a value the callee cannot honour
//     (an offset outside the text, an overlapping facet). These fail fast and
//     are never clamped.
//   - Degraded input: short or missing ranked lists, unknown pattern entries,
//     an absent limit. These are not errors at all; callers get a smaller but
//     valid result.
//   - Upstream problems: unparsable stored JSON, failed network calls. These
//     are wrapped with ErrMalformedUpstream or returned as-is by the I/O layer.
//
// Usage:
//
//	import sferrors "github.com/otherjamesbrown/skyfeed/pkg/errors"
//
//	return fmt.Errorf("%w: offset %d beyond %d", sferrors.ErrContractViolation, i, n)
//
//	if sferrors.IsContractViolation(err) {
//	    // programmer error, do not retry
//	}
package errors

import "errors"

// Domain errors.
var (
	// ErrContractViolation indicates a caller broke an API precondition.
	ErrContractViolation = errors.New("contract violation")

	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates invalid input or configuration.
	ErrValidation = errors.New("validation error")

	// ErrMalformedUpstream indicates data read from an external store could not be parsed.
	ErrMalformedUpstream = errors.New("malformed upstream data")

	// ErrUnauthorized indicates the request lacks valid authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates the remote service asked us to slow down.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyPublished indicates a feed entry was already posted.
	ErrAlreadyPublished = errors.New("already published")
)

// IsContractViolation reports whether any error in err's chain is ErrContractViolation.
func IsContractViolation(err error) bool {
	return errors.Is(err, ErrContractViolation)
}

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsMalformedUpstream reports whether any error in err's chain is ErrMalformedUpstream.
func IsMalformedUpstream(err error) bool {
	return errors.Is(err, ErrMalformedUpstream)
}

// IsUnauthorized reports whether any error in err's chain is ErrUnauthorized.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsRateLimited reports whether any error in err's chain is ErrRateLimited.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsAlreadyPublished reports whether any error in err's chain is ErrAlreadyPublished.
func IsAlreadyPublished(err error) bool {
	return errors.Is(err, ErrAlreadyPublished)
}
