package bundle

import (
	"errors"
	"fmt"
)

// Kind classifies assembly failures for presentation to the caller.
type Kind string

const (
	// KindMissingValues means the request is incomplete; re-prompt the user.
	KindMissingValues Kind = "missing_values"
	// KindFilesystem covers create, copy and write failures.
	KindFilesystem Kind = "filesystem_error"
	// KindImageEncoding means the icon source could not be decoded or re-encoded.
	KindImageEncoding Kind = "image_encoding_failed"
	// KindToolInvocation means the icon compiler could not run or failed.
	KindToolInvocation Kind = "tool_invocation_failed"
)

// Sentinels for errors.Is checks against an *Error's Kind.
var (
	ErrMissingValues        = &Error{Kind: KindMissingValues, Message: "Not all properties were given a value!"}
	ErrFilesystem           = &Error{Kind: KindFilesystem, Message: "A file or directory could not be written."}
	ErrImageEncodingFailed  = &Error{Kind: KindImageEncoding, Message: "Unable to scale and save the icon!"}
	ErrToolInvocationFailed = &Error{Kind: KindToolInvocation, Message: "The icon compiler could not be run."}
)

// An Error describes why an assembly ended in the Failed state.
type Error struct {
	Kind    Kind
	Message string
	// Path is the file or directory the failure relates to, if any.
	Path string
	Err  error
}

// Error returns the human-readable description.
func (e *Error) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

func missingValues(format string, args ...any) *Error {
	return &Error{Kind: KindMissingValues, Message: fmt.Sprintf(format, args...)}
}

func filesystemError(message, path string, err error) *Error {
	return &Error{Kind: KindFilesystem, Message: message, Path: path, Err: err}
}

func imageEncodingFailed(err error) *Error {
	return &Error{Kind: KindImageEncoding, Message: ErrImageEncodingFailed.Message, Err: err}
}

func toolInvocationFailed(path string, err error) *Error {
	return &Error{Kind: KindToolInvocation, Message: ErrToolInvocationFailed.Message, Path: path, Err: err}
}
