package remote

import (
	"errors"
	"fmt"
)

// Kind classifies a remote store failure.
type Kind int

const (
	// KindUnknown is reported for errors that did not come from this package.
	KindUnknown Kind = iota
	// KindMissingIdentifier: the operation needs a task identifier and there is none.
	KindMissingIdentifier
	// KindTransport: the request could not be completed at the network level,
	// or the server answered a fetch with a non-2xx status.
	KindTransport
	// KindEmptyResponse: the fetch succeeded but returned no body.
	KindEmptyResponse
	// KindDecode: the body is not a valid snapshot.
	KindDecode
	// KindEncode: the task could not be serialised.
	KindEncode
	// KindRepresentation: the task has no wire representation at all.
	KindRepresentation
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindMissingIdentifier:
		return "missing identifier"
	case KindTransport:
		return "transport failure"
	case KindEmptyResponse:
		return "empty response"
	case KindDecode:
		return "decode failure"
	case KindEncode:
		return "encode failure"
	case KindRepresentation:
		return "representation failure"
	default:
		return "unknown"
	}
}

// Error is returned by every Client operation.
type Error struct {
	Kind Kind
	// Op is the operation that failed: "fetch", "put" or "delete".
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same Kind, so callers can write
// errors.Is(err, &remote.Error{Kind: remote.KindTransport}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// KindOf returns the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknown
}

func newError(op string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
