package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure at an adapter boundary.
type ErrorKind int

const (
	KindServiceUnavailable ErrorKind = iota + 1
	KindDataUnknown
	KindSubmission
	KindDuplicate
)

func (k ErrorKind) String() string {
	switch k {
	case KindServiceUnavailable:
		return "ServiceUnavailable"
	case KindDataUnknown:
		return "DataUnknown"
	case KindSubmission:
		return "SubmissionError"
	case KindDuplicate:
		return "Duplicate"
	default:
		return "Unknown"
	}
}

var (
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrDataUnknown        = errors.New("data unknown")
	ErrSubmission         = errors.New("submission rejected")
	ErrDuplicate          = errors.New("duplicate action")
)

// Error carries the kind, the failing operation and the underlying cause.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match the package sentinels by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrServiceUnavailable:
		return e.Kind == KindServiceUnavailable
	case ErrDataUnknown:
		return e.Kind == KindDataUnknown
	case ErrSubmission:
		return e.Kind == KindSubmission
	case ErrDuplicate:
		return e.Kind == KindDuplicate
	}
	return false
}

func Unavailable(op string, err error) error {
	return &Error{Kind: KindServiceUnavailable, Op: op, Err: err}
}

func Unknown(op string, err error) error {
	return &Error{Kind: KindDataUnknown, Op: op, Err: err}
}

func Rejected(op string, err error) error {
	return &Error{Kind: KindSubmission, Op: op, Err: err}
}

func Duplicate(op string, err error) error {
	return &Error{Kind: KindDuplicate, Op: op, Err: err}
}

// KindOf returns the kind of err, or 0 if err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
