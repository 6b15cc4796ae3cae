package types

import "errors"

var (
	// ErrNotFound reports a missing entity: acknowledging an unknown
	// signal, or similarity lookup for an item without an embedding.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable reports a degraded dependency (embedding provider
	// or vector store down). Callers use it to distinguish "no results"
	// from "search unavailable".
	ErrUnavailable = errors.New("dependency unavailable")

	// ErrDuplicateName reports a unique-name validation failure,
	// currently only raised for topics.
	ErrDuplicateName = errors.New("duplicate name")
)
