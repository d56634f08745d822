package hdv

import "errors"

var (
	// ErrDimensionMismatch indicates two vectors of differing width were combined.
	ErrDimensionMismatch = errors.New("hdv: dimension mismatch")
	// ErrEmptyInput indicates a bundle was requested over zero vectors.
	ErrEmptyInput = errors.New("hdv: bundle requires at least one vector")
)
