package protocol

import "errors"

var (
	// ErrMalformed is returned when a message is not valid JSON or lacks a
	// field its type requires.
	ErrMalformed = errors.New("protocol: malformed message")

	// ErrUnknownType is returned when a message carries a "type" outside the
	// recognized set.
	ErrUnknownType = errors.New("protocol: unknown message type")

	// ErrUnknownName is returned when a state or event name is outside the
	// fixed vocabulary.
	ErrUnknownName = errors.New("protocol: unknown message name")
)
