package temporal

import "errors"

var (
	// ErrInsufficientHistory indicates fewer than two glyphs to derive deltas from.
	ErrInsufficientHistory = errors.New("temporal: prediction requires at least two history glyphs")
	// ErrInvalidBeamWidth indicates a beam width below one.
	ErrInvalidBeamWidth = errors.New("temporal: beam width must be at least 1")
	// ErrInvalidSteps indicates a step count below one.
	ErrInvalidSteps = errors.New("temporal: steps must be at least 1")
)
