package dsval

import (
	"fmt"
	"strings"
)

type ErrorKind int

const (
	SerializationError ErrorKind = iota + 1
	DeserializationError
	UnsupportedValueType
	UnsupportedKeyType
	NonSelfDescribingType
	ExpectedType
	IntegerSizeMismatch
	DoubleSizeMismatch
	ParseIntError
	NotYetImplemented
	DepthLimitExceeded
)

var errorKindNames = [...]string{
	SerializationError:    "serialization error",
	DeserializationError:  "deserialization error",
	UnsupportedValueType:  "unsupported value type",
	UnsupportedKeyType:    "unsupported key type",
	NonSelfDescribingType: "non-self-describing type",
	ExpectedType:          "expected type",
	IntegerSizeMismatch:   "integer size mismatch",
	DoubleSizeMismatch:    "double size mismatch",
	ParseIntError:         "invalid integer",
	NotYetImplemented:     "not yet implemented",
	DepthLimitExceeded:    "nesting depth limit exceeded",
}

func (k ErrorKind) String() string {
	if k > 0 && int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is returned by every encoding and decoding operation of this package.
//
// Detail holds the kind-specific argument: the rejected type for
// UnsupportedValueType, the expected kind for ExpectedType, the feature for
// NotYetImplemented, or the free-form message for Serialization/DeserializationError.
// Path locates the failing value inside the tree, e.g. ".tags[2]".
type Error struct {
	Kind   ErrorKind
	Detail string
	Path   string
	Err    error
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrSerialization         = &Error{Kind: SerializationError}
	ErrDeserialization       = &Error{Kind: DeserializationError}
	ErrUnsupportedValueType  = &Error{Kind: UnsupportedValueType}
	ErrUnsupportedKeyType    = &Error{Kind: UnsupportedKeyType}
	ErrNonSelfDescribingType = &Error{Kind: NonSelfDescribingType}
	ErrExpectedType          = &Error{Kind: ExpectedType}
	ErrIntegerSizeMismatch   = &Error{Kind: IntegerSizeMismatch}
	ErrDoubleSizeMismatch    = &Error{Kind: DoubleSizeMismatch}
	ErrParseInt              = &Error{Kind: ParseIntError}
	ErrNotYetImplemented     = &Error{Kind: NotYetImplemented}
	ErrDepthLimitExceeded    = &Error{Kind: DepthLimitExceeded}
)

func errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// customErr wraps an error returned by user or library code. An *Error
// is returned unchanged; anything else, including an *Error wrapped with
// more context, becomes the cause of a new error of the given kind.
func customErr(kind ErrorKind, err error, format string, args ...any) error {
	if e, ok := err.(*Error); ok {
		return e
	}
	msg := fmt.Sprintf(format, args...)
	if msg == "" {
		msg = err.Error()
	} else {
		msg = msg + ": " + err.Error()
	}
	return &Error{Kind: kind, Detail: msg, Err: err}
}

func (e *Error) Error() string {
	var buf strings.Builder
	buf.WriteString("dsval: ")
	if e.Path != "" {
		buf.WriteString(e.Path)
		buf.WriteString(": ")
	}
	buf.WriteString(e.Kind.String())
	if e.Detail != "" {
		switch e.Kind {
		case ExpectedType:
			buf.WriteString(": wanted ")
		default:
			buf.WriteString(": ")
		}
		buf.WriteString(e.Detail)
	}
	return buf.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. A target with
// a non-empty Detail must match it too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Detail == "" || t.Detail == e.Detail)
}

// withPath prepends a path segment to err if it is an *Error.
func withPath(err error, seg string) error {
	if e, ok := err.(*Error); ok {
		cp := *e
		cp.Path = seg + e.Path
		return &cp
	}
	return err
}

func fieldSeg(name string) string {
	return "." + name
}

func indexSeg(i int) string {
	return fmt.Sprintf("[%d]", i)
}
