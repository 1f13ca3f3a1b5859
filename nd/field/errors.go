package field

import (
	"errors"
	"fmt"
)

// ErrInconsistent indicates that the two sides of a relationship disagree.
// It is never expected; callers should treat the database as corrupt.
var ErrInconsistent = errors.New("field: inconsistent relationship")

// ConfigError is raised (as a panic) when a layout is declared incorrectly.
type ConfigError struct {
	Struct string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("field: struct %s: %s", e.Struct, e.Reason)
	}
	return fmt.Sprintf("field: %s.%s: %s", e.Struct, e.Field, e.Reason)
}

func configPanic(sd *StructDef, name, format string, args ...any) {
	panic(&ConfigError{Struct: sd.name, Field: name, Reason: fmt.Sprintf(format, args...)})
}
