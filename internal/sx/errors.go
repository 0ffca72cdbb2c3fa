package sx

import "errors"

// Structural errors. Both indicate caller mistakes detected before any
// numerical work and are not recoverable by retry.
var (
	// ErrShapeMismatch indicates an expression was evaluated or bound
	// against a symbol set that does not match its declared inputs.
	ErrShapeMismatch = errors.New("sx: shape mismatch")

	// ErrUnsupportedDifferentiation indicates differentiation with respect
	// to a non-symbol node, or through an operator with no smooth
	// derivative (min, max).
	ErrUnsupportedDifferentiation = errors.New("sx: unsupported differentiation")
)
