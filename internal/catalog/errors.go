package catalog

import "fmt"

// FormatError reports an artifact that was fetched but cannot be used: unknown songs
// shape, malformed index, or songs/matrix/index that are not row-aligned.
type FormatError struct {
	Artifact string
	Reason   string
	Err      error
}

func (e *FormatError) Error() string {
	msg := "catalog format: " + e.Artifact + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

func formatErrorf(artifact string, err error, format string, args ...any) *FormatError {
	return &FormatError{Artifact: artifact, Reason: fmt.Sprintf(format, args...), Err: err}
}

// SourceUnavailableError reports an artifact that could not be fetched or read.
type SourceUnavailableError struct {
	Artifact string
	Err      error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("catalog source unavailable: %s: %v", e.Artifact, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }
