package db

import (
	"errors"
	"fmt"
)

var (
	// ErrNullAddress indicates an access through address 0.
	ErrNullAddress = errors.New("db: null address")

	// ErrOutOfRange indicates an access outside the allocated image.
	ErrOutOfRange = errors.New("db: address out of range")

	// ErrBadSize indicates a non-positive or oversized allocation request.
	ErrBadSize = errors.New("db: bad allocation size")

	// ErrNoSpace indicates the image cannot grow any further.
	ErrNoSpace = errors.New("db: database is full")

	// ErrNotAllocated indicates Free or a handle lookup on a block that is not in use.
	ErrNotAllocated = errors.New("db: block not allocated")

	// ErrPoolMismatch indicates Free was called with a pool other than the one used to allocate.
	ErrPoolMismatch = errors.New("db: pool mismatch")

	// ErrStaleHandle indicates the block behind a handle was freed (and maybe reused).
	ErrStaleHandle = errors.New("db: stale handle")

	// ErrCorrupt indicates the image failed a structural check.
	ErrCorrupt = errors.New("db: corrupt database")

	// ErrClosed indicates use of a closed database.
	ErrClosed = errors.New("db: database closed")

	// ErrInvalidString indicates text that is not valid UTF-8.
	ErrInvalidString = errors.New("db: string is not valid UTF-8")

	// ErrReadOnly indicates a write to a read-only database or store.
	ErrReadOnly = errors.New("db: read-only")
)

// IndexError is the storage-layer failure surfaced to field code. It records
// the operation and address that failed; callers must treat it as fatal to
// the current operation.
type IndexError struct {
	Op   string
	Addr Address
	Err  error
}

func indexErr(op string, addr Address, err error) error {
	return &IndexError{Op: op, Addr: addr, Err: err}
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s at 0x%x: %v", e.Op, uint32(e.Addr), e.Err)
}

func (e *IndexError) Unwrap() error {
	return e.Err
}
