package vector

import "errors"

var (
	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")

	// ErrDimensions is returned when a driver needs an explicit embedding size.
	ErrDimensions = errors.New("embedding dimensions must be configured")
)
