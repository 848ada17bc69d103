package domain

import "errors"

var (
	// ErrInvalidConfiguration indicates bad startup parameters, such as a
	// chunk overlap that is not smaller than the chunk size. Fatal.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidArgument indicates bad per-call input. Request-local.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound indicates an unknown, deleted, or non-ready document.
	ErrNotFound = errors.New("document not found")

	// ErrClosed indicates use of an index handle after Close.
	ErrClosed = errors.New("index is closed")

	// ErrResourceBusy indicates deletion contention that persisted after
	// retries were exhausted. Retryable by the caller.
	ErrResourceBusy = errors.New("resource busy")

	// ErrUpstreamTimeout indicates an embedding or LLM call exceeded its
	// per-call timeout.
	ErrUpstreamTimeout = errors.New("upstream timeout")

	// ErrUpstreamFailure indicates the embedding or LLM provider failed.
	ErrUpstreamFailure = errors.New("upstream failure")
)
