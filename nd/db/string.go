package db

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/joshuapare/ndkit/internal/format"
)

// String record layout:
//
//	0x00  int32  length: >= 0 Latin-1 byte count, < 0 negated UTF-16 unit count
//	0x04  ...    encoded text
//
// Latin-1 is used whenever every rune is representable, which halves the size
// of the identifier-heavy strings an index stores.
const (
	stringLengthOffset = 0
	stringDataOffset   = 4
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// InternedString is a string record stored in the database.
type InternedString struct {
	d    *Database
	addr Address
}

// NewString stores s and returns its record.
func (d *Database) NewString(s string) (*InternedString, error) {
	data, n, err := encodeString(s)
	if err != nil {
		return nil, err
	}
	size := stringDataOffset + len(data)
	pool := format.PoolStringShort
	if size > format.MaxSingleBlockMallocSize {
		pool = format.PoolStringLong
	}
	addr, err := d.Malloc(size, pool)
	if err != nil {
		return nil, err
	}
	if err := d.PutI32(addr+stringLengthOffset, n); err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := d.PutBytes(addr+stringDataOffset, data); err != nil {
			return nil, err
		}
	}
	return &InternedString{d: d, addr: addr}, nil
}

// GetString wraps an existing string record. A null address yields nil.
func (d *Database) GetString(addr Address) *InternedString {
	if addr == 0 {
		return nil
	}
	return &InternedString{d: d, addr: addr}
}

// ValidateString reports ErrInvalidString when s cannot be stored without
// loss. Both encodings carry Unicode text, so s must be valid UTF-8.
func ValidateString(s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: %q", ErrInvalidString, s)
	}
	return nil
}

func encodeString(s string) ([]byte, int32, error) {
	if err := ValidateString(s); err != nil {
		return nil, 0, err
	}
	if latin, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s)); err == nil {
		return latin, int32(len(latin)), nil
	}
	wide, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, 0, fmt.Errorf("db: encode string: %w", err)
	}
	return wide, -int32(len(wide) / 2), nil
}

// Address returns the record address.
func (s *InternedString) Address() Address { return s.addr }

// Value decodes the stored text.
func (s *InternedString) Value() (string, error) {
	n, err := s.d.GetI32(s.addr + stringLengthOffset)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	if n > 0 {
		raw, err := s.d.GetBytes(s.addr+stringDataOffset, int(n))
		if err != nil {
			return "", err
		}
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return "", fmt.Errorf("db: decode string at %s: %w", s.addr, err)
		}
		return string(out), nil
	}
	raw, err := s.d.GetBytes(s.addr+stringDataOffset, int(-n)*2)
	if err != nil {
		return "", err
	}
	out, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("db: decode string at %s: %w", s.addr, err)
	}
	return string(out), nil
}

// String implements fmt.Stringer; decode failures render as "".
func (s *InternedString) String() string {
	v, _ := s.Value()
	return v
}

// Len returns the length in characters.
func (s *InternedString) Len() (int, error) {
	n, err := s.d.GetI32(s.addr + stringLengthOffset)
	if n < 0 {
		n = -n
	}
	return int(n), err
}

// Delete frees the record.
func (s *InternedString) Delete() error {
	n, err := s.d.GetI32(s.addr + stringLengthOffset)
	if err != nil {
		return err
	}
	size := stringDataOffset + int(n)
	if n < 0 {
		size = stringDataOffset + int(-n)*2
	}
	pool := format.PoolStringShort
	if size > format.MaxSingleBlockMallocSize {
		pool = format.PoolStringLong
	}
	return s.d.Free(s.addr, pool)
}

// Equals reports whether the stored text equals other exactly.
func (s *InternedString) Equals(other string) (bool, error) {
	v, err := s.Value()
	if err != nil {
		return false, err
	}
	return v == other, nil
}

// Compare orders s against another record.
func (s *InternedString) Compare(other *InternedString, caseSensitive bool) (int, error) {
	v, err := other.Value()
	if err != nil {
		return 0, err
	}
	return s.CompareString(v, caseSensitive)
}

// CompareString orders s against other. Case-insensitive comparison uses
// full Unicode case folding.
func (s *InternedString) CompareString(other string, caseSensitive bool) (int, error) {
	v, err := s.Value()
	if err != nil {
		return 0, err
	}
	if caseSensitive {
		return strings.Compare(v, other), nil
	}
	return strings.Compare(Fold(v), Fold(other)), nil
}

// CompareCaseInsensitive is CompareString(other, false).
func (s *InternedString) CompareCaseInsensitive(other string) (int, error) {
	return s.CompareString(other, false)
}

// ComparePrefix returns 0 when s starts with prefix, otherwise the order of
// s relative to prefix. Strings sharing a prefix are contiguous under
// CompareString with the same case sensitivity.
func (s *InternedString) ComparePrefix(prefix string, caseSensitive bool) (int, error) {
	v, err := s.Value()
	if err != nil {
		return 0, err
	}
	return ComparePrefix(v, prefix, caseSensitive), nil
}

// ComparePrefix is the plain-string form of InternedString.ComparePrefix.
func ComparePrefix(v, prefix string, caseSensitive bool) int {
	if !caseSensitive {
		v, prefix = Fold(v), Fold(prefix)
	}
	if strings.HasPrefix(v, prefix) {
		return 0
	}
	return strings.Compare(v, prefix)
}

// Fold returns the case-folded form used for case-insensitive ordering.
func Fold(s string) string {
	return cases.Fold().String(s)
}
