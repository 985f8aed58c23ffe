package thumbnail

import (
	"github.com/pkg/errors"
)

// Kinds of failure reported by Generate. Match them with errors.Is.
var (
	ErrDecode          = errors.New("image cannot be decoded")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrWrite           = errors.New("destination cannot be written")
)

// Error carries the failure kind together with its underlying cause.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "thumbnail: " + e.Kind.Error()
	}
	return "thumbnail: " + e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func decodeError(err error, msg string) error {
	return &Error{Kind: ErrDecode, Err: errors.Wrap(err, msg)}
}

func writeError(err error, msg string) error {
	return &Error{Kind: ErrWrite, Err: errors.Wrap(err, msg)}
}

func invalidArgument(format string, args ...interface{}) error {
	return &Error{Kind: ErrInvalidArgument, Err: errors.Errorf(format, args...)}
}
