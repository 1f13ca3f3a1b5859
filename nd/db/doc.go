// Package db implements the database image that backs every nd record.
//
// # Overview
//
// A Database is a flat, growable byte space split into 4 KiB chunks. Chunk 0
// holds the header; records live in the chunks after it and are addressed by
// their offset in the image (Address). Address 0 is never a record, so it
// doubles as the null pointer.
//
// # Allocation
//
//	addr, err := d.Malloc(24, format.PoolMisc)
//	...
//	err = d.Free(addr, format.PoolMisc)
//
// Every block carries an 8-byte header (size, pool, generation). Blocks of up
// to MaxSingleBlockMallocSize payload bytes never cross a chunk boundary;
// larger requests take a run of whole chunks. Freeing a block bumps its
// generation, which is what makes Handle useful: a Handle taken before the
// free no longer validates afterwards.
//
// # Typed access
//
// GetU8/PutU8 through GetF64/PutF64, GetPtr/PutPtr, GetBytes/PutBytes,
// ClearRange and Memcpy all bounds-check and return *IndexError on failure.
// The header chunk is not reachable through them.
//
// # Strings
//
// NewString stores text as Latin-1 when possible and UTF-16LE otherwise.
// InternedString compares exactly, case-insensitively (full Unicode case
// folding) or by prefix.
//
// # Persistence
//
// Writes mark chunks dirty. Flush hands every dirty chunk to the Store and
// syncs it. MemStore, FileStore and BoltStore are provided; MappedStore
// serves read-only databases straight from a private file mapping.
//
// # Thread Safety
//
// A Database is not safe for concurrent use. Callers serialize writers.
package db
