package usecase

import "errors"

// Terminal business errors. A handler failing with one of these marks the
// inbox row failed and stops retrying; anything else is treated as transient
// infrastructure trouble and the row stays claimable for the next tick.
var (
	ErrValidation          = errors.New("invalid payload")
	ErrUnauthorizedSource  = errors.New("unauthorized source service")
	ErrForbiddenTransition = errors.New("forbidden status for source")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrInvalidStatus       = errors.New("invalid status")
)

// IsTerminal reports whether err is a business error that retrying cannot fix.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnauthorizedSource) ||
		errors.Is(err, ErrForbiddenTransition) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrInvalidStatus)
}
