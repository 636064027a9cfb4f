package seaice

import (
	"fmt"
)

// DataLoadError reports an input file that is missing, unreadable or corrupt.
type DataLoadError struct {
	Path string
	Err  error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

func (e *DataLoadError) Unwrap() error { return e.Err }

// ShapePreconditionError reports arrays whose dimensions do not line up.
type ShapePreconditionError struct {
	What string
	Want []int
	Got  []int
}

func (e *ShapePreconditionError) Error() string {
	return fmt.Sprintf("shape mismatch in %s: want %v, got %v", e.What, e.Want, e.Got)
}

// ConfigError reports an invalid setting such as a threshold outside (0, 100].
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
