package service

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindNotFound
	KindUnavailable
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error is what the order workflow reports. Message is safe to show to API
// clients; Err carries the internal cause and is only logged.
type Error struct {
	Kind    Kind
	Entity  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func invalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

func notFound(entity, msg string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, Message: msg}
}

func unavailable(entity, msg string, cause error) *Error {
	return &Error{Kind: KindUnavailable, Entity: entity, Message: msg, Err: cause}
}

func persistence(msg string, cause error) *Error {
	return &Error{Kind: KindPersistence, Message: msg, Err: cause}
}
