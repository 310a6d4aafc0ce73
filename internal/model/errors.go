package model

import (
	"errors"
)

// ErrorKind classifies a pipeline failure.
type ErrorKind string

const (
	KindFetch      ErrorKind = "fetch"
	KindParse      ErrorKind = "parse"
	KindExtraction ErrorKind = "extraction"
	KindFilesystem ErrorKind = "filesystem"
	KindConfig     ErrorKind = "config"
)

// Error tags an underlying error with the pipeline stage that produced it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind) + ": " + e.Op
	}
	return string(e.Kind) + ": " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind and the operation that failed.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// FetchError marks err as a network or HTTP failure.
func FetchError(op string, err error) *Error { return NewError(KindFetch, op, err) }

// ParseError marks err as unexpected HTML structure.
func ParseError(op string, err error) *Error { return NewError(KindParse, op, err) }

// ExtractionError marks err as an unreadable PDF.
func ExtractionError(op string, err error) *Error { return NewError(KindExtraction, op, err) }

// FilesystemError marks err as a cache or output write failure.
func FilesystemError(op string, err error) *Error { return NewError(KindFilesystem, op, err) }

// KindOf returns the kind of the first *Error in the chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err (or any error in its chain) has the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
