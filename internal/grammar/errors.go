package grammar

import (
	"errors"
	"fmt"
)

// RecursionError reports that expansion exceeded the depth limit, which
// indicates a cyclic grammar with no reachable terminal alternative.
type RecursionError struct {
	Symbol   string
	Depth    int
	MaxDepth int
}

// Error implements the error interface.
func (e *RecursionError) Error() string {
	return fmt.Sprintf("grammar recursion limit exceeded at %q (depth %d, max %d)", e.Symbol, e.Depth, e.MaxDepth)
}

// IsRecursionError reports whether err is a RecursionError.
// Uses errors.As to handle wrapped errors.
func IsRecursionError(err error) bool {
	var re *RecursionError
	return errors.As(err, &re)
}
