package lifecycle

import "errors"

var (
	// ErrInvalidTransition means the config's current status does not allow
	// the requested transition.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNotEligible means the config's latest event forbids automatic
	// re-enablement.
	ErrNotEligible = errors.New("config not eligible for automatic re-enable")
)
