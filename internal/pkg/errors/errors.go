package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTransport marks a network/HTTP failure talking to the broker.
	// It halts the current sync cycle for that broker.
	ErrTransport = errors.New("broker transport fault")
	// ErrProtocol marks an unexpected status code, content type or
	// malformed payload from the broker.
	ErrProtocol = errors.New("broker protocol fault")
	// ErrConsistency marks a local invariant violation with no coded
	// recovery path. It is never swallowed.
	ErrConsistency = errors.New("consistency fault")
)
