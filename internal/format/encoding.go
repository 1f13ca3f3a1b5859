package format

import (
	"encoding/binary"
	"math"
)

// Binary encoding utilities for little-endian values.
//
// Callers are expected to have bounds-checked the offset; these helpers
// panic on short buffers like the slice expressions they wrap.

// PutU16 writes a uint16 value to the buffer at the specified offset in little-endian format.
func PutU16(b []byte, off int, v uint16) {
	binary.LittleEndian.PutUint16(b[off:off+2], v)
}

// PutU32 writes a uint32 value to the buffer at the specified offset in little-endian format.
func PutU32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:off+4], v)
}

// PutI32 writes an int32 value to the buffer at the specified offset in little-endian format.
func PutI32(b []byte, off int, v int32) {
	binary.LittleEndian.PutUint32(b[off:off+4], uint32(v))
}

// PutU64 writes a uint64 value to the buffer at the specified offset in little-endian format.
func PutU64(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:off+8], v)
}

// PutF32 writes the IEEE-754 bits of v, preserving NaN payloads.
func PutF32(b []byte, off int, v float32) {
	PutU32(b, off, math.Float32bits(v))
}

// PutF64 writes the IEEE-754 bits of v, preserving NaN payloads.
func PutF64(b []byte, off int, v float64) {
	PutU64(b, off, math.Float64bits(v))
}

// ReadU16 reads a uint16 value from the buffer at the specified offset in little-endian format.
func ReadU16(b []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(b[off : off+2])
}

// ReadU32 reads a uint32 value from the buffer at the specified offset in little-endian format.
func ReadU32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off : off+4])
}

// ReadI32 reads an int32 value from the buffer at the specified offset in little-endian format.
func ReadI32(b []byte, off int) int32 {
	return int32(binary.LittleEndian.Uint32(b[off : off+4]))
}

// ReadU64 reads a uint64 value from the buffer at the specified offset in little-endian format.
func ReadU64(b []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(b[off : off+8])
}

// ReadF32 reads the IEEE-754 bits at off.
func ReadF32(b []byte, off int) float32 {
	return math.Float32frombits(ReadU32(b, off))
}

// ReadF64 reads the IEEE-754 bits at off.
func ReadF64(b []byte, off int) float64 {
	return math.Float64frombits(ReadU64(b, off))
}
