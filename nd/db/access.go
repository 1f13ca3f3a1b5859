package db

import (
	"github.com/joshuapare/ndkit/internal/format"
)

// Fixed-width accessors. Every accessor bounds-checks against the data area
// and returns an *IndexError on failure; writes are tracked for flushing and
// recorded in the modification log when it is enabled.

// GetU8 reads a uint8 at a.
func (d *Database) GetU8(a Address) (uint8, error) {
	b, err := d.span("getU8", a, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// PutU8 writes v at a as a uint8.
func (d *Database) PutU8(a Address, v uint8) error {
	b, err := d.span("putU8", a, 1)
	if err != nil {
		return err
	}
	b[0] = v
	d.wrote(a, 1)
	return nil
}

// GetU16 reads a little-endian uint16 at a.
func (d *Database) GetU16(a Address) (uint16, error) {
	b, err := d.span("getU16", a, 2)
	if err != nil {
		return 0, err
	}
	return format.ReadU16(b, 0), nil
}

// PutU16 writes v at a as a little-endian uint16.
func (d *Database) PutU16(a Address, v uint16) error {
	b, err := d.span("putU16", a, 2)
	if err != nil {
		return err
	}
	format.PutU16(b, 0, v)
	d.wrote(a, 2)
	return nil
}

// GetI16 reads a little-endian int16 at a.
func (d *Database) GetI16(a Address) (int16, error) {
	v, err := d.GetU16(a)
	return int16(v), err
}

// PutI16 writes v at a as a little-endian int16.
func (d *Database) PutI16(a Address, v int16) error {
	return d.PutU16(a, uint16(v))
}

// GetU32 reads a little-endian uint32 at a.
func (d *Database) GetU32(a Address) (uint32, error) {
	b, err := d.span("getU32", a, 4)
	if err != nil {
		return 0, err
	}
	return format.ReadU32(b, 0), nil
}

// PutU32 writes v at a as a little-endian uint32.
func (d *Database) PutU32(a Address, v uint32) error {
	b, err := d.span("putU32", a, 4)
	if err != nil {
		return err
	}
	format.PutU32(b, 0, v)
	d.wrote(a, 4)
	return nil
}

// GetI32 reads a little-endian int32 at a.
func (d *Database) GetI32(a Address) (int32, error) {
	v, err := d.GetU32(a)
	return int32(v), err
}

// PutI32 writes v at a as a little-endian int32.
func (d *Database) PutI32(a Address, v int32) error {
	return d.PutU32(a, uint32(v))
}

// GetU64 reads a little-endian uint64 at a.
func (d *Database) GetU64(a Address) (uint64, error) {
	b, err := d.span("getU64", a, 8)
	if err != nil {
		return 0, err
	}
	return format.ReadU64(b, 0), nil
}

// PutU64 writes v at a as a little-endian uint64.
func (d *Database) PutU64(a Address, v uint64) error {
	b, err := d.span("putU64", a, 8)
	if err != nil {
		return err
	}
	format.PutU64(b, 0, v)
	d.wrote(a, 8)
	return nil
}

// GetI64 reads a little-endian int64 at a.
func (d *Database) GetI64(a Address) (int64, error) {
	v, err := d.GetU64(a)
	return int64(v), err
}

// PutI64 writes v at a as a little-endian int64.
func (d *Database) PutI64(a Address, v int64) error {
	return d.PutU64(a, uint64(v))
}

// GetF32 reads the IEEE 754 bits at a as a float32.
func (d *Database) GetF32(a Address) (float32, error) {
	b, err := d.span("getF32", a, 4)
	if err != nil {
		return 0, err
	}
	return format.ReadF32(b, 0), nil
}

// PutF32 writes the IEEE 754 bits of v at a.
func (d *Database) PutF32(a Address, v float32) error {
	b, err := d.span("putF32", a, 4)
	if err != nil {
		return err
	}
	format.PutF32(b, 0, v)
	d.wrote(a, 4)
	return nil
}

// GetF64 reads the IEEE 754 bits at a as a float64.
func (d *Database) GetF64(a Address) (float64, error) {
	b, err := d.span("getF64", a, 8)
	if err != nil {
		return 0, err
	}
	return format.ReadF64(b, 0), nil
}

// PutF64 writes the IEEE 754 bits of v at a.
func (d *Database) PutF64(a Address, v float64) error {
	b, err := d.span("putF64", a, 8)
	if err != nil {
		return err
	}
	format.PutF64(b, 0, v)
	d.wrote(a, 8)
	return nil
}

// GetPtr reads a stored address. Zero means absent.
func (d *Database) GetPtr(a Address) (Address, error) {
	v, err := d.GetU32(a)
	return Address(v), err
}

// PutPtr stores an address.
func (d *Database) PutPtr(a Address, v Address) error {
	return d.PutU32(a, uint32(v))
}

// GetBytes copies n bytes starting at a.
func (d *Database) GetBytes(a Address, n int) ([]byte, error) {
	b, err := d.span("getBytes", a, n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// PutBytes writes p at a.
func (d *Database) PutBytes(a Address, p []byte) error {
	b, err := d.span("putBytes", a, len(p))
	if err != nil {
		return err
	}
	copy(b, p)
	d.wrote(a, len(p))
	return nil
}

// ClearRange zeroes n bytes starting at a.
func (d *Database) ClearRange(a Address, n int) error {
	if n == 0 {
		return nil
	}
	b, err := d.span("clearRange", a, n)
	if err != nil {
		return err
	}
	clear(b)
	d.wrote(a, n)
	return nil
}

// Memcpy copies n bytes from src to dst. The ranges may overlap.
func (d *Database) Memcpy(dst, src Address, n int) error {
	from, err := d.span("memcpy", src, n)
	if err != nil {
		return err
	}
	to, err := d.span("memcpy", dst, n)
	if err != nil {
		return err
	}
	copy(to, from)
	d.wrote(dst, n)
	return nil
}
