package field

import (
	"github.com/joshuapare/ndkit/internal/format"
	"github.com/joshuapare/ndkit/nd"
	"github.com/joshuapare/ndkit/nd/db"
)

// Scalar is a fixed-width value stored at a fixed offset.
type Scalar[T any] struct {
	base
	get func(*db.Database, db.Address) (T, error)
	put func(*db.Database, db.Address, T) error
}

func newScalar[T any](sd *StructDef, name string, size int,
	get func(*db.Database, db.Address) (T, error),
	put func(*db.Database, db.Address, T) error,
) *Scalar[T] {
	return &Scalar[T]{base: sd.add(name, size), get: get, put: put}
}

// Get reads the value of the record at addr.
func (f *Scalar[T]) Get(n *nd.Nd, addr db.Address) (T, error) {
	return f.get(n.DB(), f.at(addr))
}

// Put writes v into the record at addr.
func (f *Scalar[T]) Put(n *nd.Nd, addr db.Address, v T) error {
	defer f.begin(n)()
	return f.put(n.DB(), f.at(addr), v)
}

// NewUint8 declares a one-byte unsigned field.
func NewUint8(sd *StructDef, name string) *Scalar[uint8] {
	return newScalar(sd, name, 1, (*db.Database).GetU8, (*db.Database).PutU8)
}

// NewInt16 declares a two-byte signed field.
func NewInt16(sd *StructDef, name string) *Scalar[int16] {
	return newScalar(sd, name, 2, (*db.Database).GetI16, (*db.Database).PutI16)
}

// NewUint16 declares a two-byte unsigned field.
func NewUint16(sd *StructDef, name string) *Scalar[uint16] {
	return newScalar(sd, name, 2, (*db.Database).GetU16, (*db.Database).PutU16)
}

// NewInt32 declares a four-byte signed field.
func NewInt32(sd *StructDef, name string) *Scalar[int32] {
	return newScalar(sd, name, 4, (*db.Database).GetI32, (*db.Database).PutI32)
}

// NewUint32 declares a four-byte unsigned field.
func NewUint32(sd *StructDef, name string) *Scalar[uint32] {
	return newScalar(sd, name, 4, (*db.Database).GetU32, (*db.Database).PutU32)
}

// NewInt64 declares an eight-byte signed field.
func NewInt64(sd *StructDef, name string) *Scalar[int64] {
	return newScalar(sd, name, 8, (*db.Database).GetI64, (*db.Database).PutI64)
}

// NewUint64 declares an eight-byte unsigned field.
func NewUint64(sd *StructDef, name string) *Scalar[uint64] {
	return newScalar(sd, name, 8, (*db.Database).GetU64, (*db.Database).PutU64)
}

// NewFloat32 declares an IEEE 754 single-precision field.
func NewFloat32(sd *StructDef, name string) *Scalar[float32] {
	return newScalar(sd, name, 4, (*db.Database).GetF32, (*db.Database).PutF32)
}

// NewFloat64 declares an IEEE 754 double-precision field.
func NewFloat64(sd *StructDef, name string) *Scalar[float64] {
	return newScalar(sd, name, 8, (*db.Database).GetF64, (*db.Database).PutF64)
}

// NewPointer declares an untyped address field. It does no bookkeeping; use
// the relationship fields for links between nodes.
func NewPointer(sd *StructDef, name string) *Scalar[db.Address] {
	return newScalar(sd, name, format.PtrSize, (*db.Database).GetPtr, (*db.Database).PutPtr)
}
