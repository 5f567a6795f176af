package models

import "fmt"

// ConfigurationError reports an empty or invalid required parameter. It is
// raised immediately and never retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// UnsupportedFormatError reports a file extension with no registered loader.
// Fatal in single-file mode; directory batches downgrade it to a logged skip.
type UnsupportedFormatError struct {
	Path string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format %q: %s", e.Ext, e.Path)
}

// ExternalServiceError reports a failure of an external backend (embedding,
// generation, extraction) or a missing credential for one.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s service error: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// DimensionMismatchError reports a vector whose size disagrees with the
// collection's fixed dimensionality. Only the offending record is rejected.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: collection expects %d, got %d", e.Want, e.Got)
}
