package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrMalformedProgram  = errors.New("malformed program")
	ErrGroundFailure     = errors.New("grounding failed")
	ErrSolverFailure     = errors.New("solver failed")
	ErrObservationSyntax = errors.New("bad observation expression")
	ErrStorageShape      = errors.New("storage shape mismatch")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrInvalidConfig     = errors.New("invalid configuration")
)
