package db

import (
	"fmt"

	"github.com/joshuapare/ndkit/internal/format"
)

// Address is an offset into the database image. Zero means absent.
type Address uint32

// Null is the absent address.
const Null Address = 0

// IsNull reports whether a is the absent address.
func (a Address) IsNull() bool { return a == 0 }

// Add returns a+off.
func (a Address) Add(off int) Address { return a + Address(off) }

func (a Address) String() string { return fmt.Sprintf("0x%x", uint32(a)) }

// Chunk returns the index of the chunk containing a.
func (a Address) Chunk() int { return format.ChunkOf(int(a)) }

// Handle pins an allocated block to the generation it had when the handle
// was taken. Freeing the block bumps its generation, so a handle that
// outlives its block is detected instead of silently reading reused bytes.
type Handle struct {
	Addr Address
	Gen  uint16
}

// IsNull reports whether the handle refers to nothing.
func (h Handle) IsNull() bool { return h.Addr == 0 }

func (h Handle) String() string { return fmt.Sprintf("%s#%d", h.Addr, h.Gen) }
