package kredirect

import (
	"fmt"
)

// ParseErrorKind classifies why a version could not be parsed.
type ParseErrorKind string

const (
	MissingComponent ParseErrorKind = "missing component"
	InvalidInteger   ParseErrorKind = "invalid integer"
)

// ParseError reports malformed version text.
type ParseError struct {
	Text      string
	Component string // "major" or "minor"
	Kind      ParseErrorKind
	Err       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse version %q: %s %s", e.Text, e.Kind, e.Component)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FetchError reports a transport failure or an unexpected origin status.
// StatusCode is 0 when no response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FormatError reports a payload that does not have the expected shape.
type FormatError struct {
	Source string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed payload from %s: %v", e.Source, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }
