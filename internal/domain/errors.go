package domain

import "errors"

// Sentinel errors for the operator-facing operations. Storage errors are
// never mapped onto these: they propagate wrapped so a lost write is
// always visible to the caller.
var (
	// ErrPermission signals an operator-only action issued by an identity
	// outside the trusted operator set.
	ErrPermission = errors.New("not permitted")

	// ErrValidation signals malformed external input: a bad date string or
	// a decision action with a broken member-ID encoding.
	ErrValidation = errors.New("invalid input")

	// ErrAlreadyGranted signals an Approve for a member who already holds a
	// live subscription end-date. The existing grant is left untouched.
	ErrAlreadyGranted = errors.New("already granted")
)
