package format

import "errors"

var (
	// ErrSignatureMismatch indicates the header magic is wrong.
	ErrSignatureMismatch = errors.New("format: signature mismatch")
	// ErrVersion indicates an on-disk version this build cannot read.
	ErrVersion = errors.New("format: unsupported version")
)
