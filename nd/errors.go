package nd

import "errors"

var (
	// ErrUnknownType indicates a node whose type tag has no registered factory.
	ErrUnknownType = errors.New("nd: unknown node type")

	// ErrWrongType indicates LoadAs found a node of a different Go type.
	ErrWrongType = errors.New("nd: node has unexpected type")

	// ErrNoRoot indicates New was given a registry without a root layout.
	ErrNoRoot = errors.New("nd: registry has no root layout")
)
