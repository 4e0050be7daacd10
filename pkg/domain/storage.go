package domain

import "fmt"

// ErrorKind classifies the client-facing error conditions a query or
// update can raise. The query executor and the update language both
// report failures through these kinds so the HTTP layer can translate
// them into a stable JSON error envelope (see pkg/api).
type ErrorKind string

const (
	// MissingKeys: a query/update object referenced a field with no
	// value, or a required clause argument was absent.
	MissingKeys ErrorKind = "MissingKeys"
	// WrongType: a clause argument had the wrong JSON type (e.g. a
	// #similar vector containing a non-numeric element).
	WrongType ErrorKind = "WrongType"
	// OperatorError: an unrecognized "#"-prefixed operator was used.
	OperatorError ErrorKind = "OperatorError"
	// IndexMissing: a #similar or #range clause named a field with no
	// matching Knn/Range index.
	IndexMissing ErrorKind = "IndexMissing"
	// ZeroItems: a #similar clause's vector was empty.
	ZeroItems ErrorKind = "ZeroItems"
	// JsonParseError: the request body was not valid JSON.
	JsonParseError ErrorKind = "JsonParseError"
	// InternalServerError: anything else unexpected.
	InternalServerError ErrorKind = "InternalServerError"
)

// Error is the typed error raised by the query executor and update
// language. It carries an ErrorKind so callers can branch on the
// failure class without parsing message text.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a typed Error of the given kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError builds a typed Error of the given kind wrapping a cause.
func WrapError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf returns the ErrorKind carried by err if it is (or wraps) a
// *Error, otherwise InternalServerError.
func KindOf(err error) ErrorKind {
	var typed *Error
	if asError(err, &typed) {
		return typed.Kind
	}
	return InternalServerError
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
