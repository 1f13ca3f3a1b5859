package db

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/joshuapare/ndkit/internal/buf"
	"github.com/joshuapare/ndkit/internal/format"
	"github.com/joshuapare/ndkit/nd/dirty"
)

// maxImageSize is the largest image addressable with 32-bit pointers.
const maxImageSize = int64(math.MaxUint32) + 1

// Database is the growable, chunked byte space that backs every record.
//
// All record state lives in the image; the Database itself only caches the
// header fields it needs on hot paths. It is NOT thread-safe: callers
// serialize writers externally.
type Database struct {
	data  []byte
	store Store
	opts  Options
	log   *ModificationLog
	dirty *dirty.RangeTracker
	lg    *slog.Logger

	id       uuid.UUID
	counters Counters
	closed   bool
}

// Counters are process-local allocation counters. They are not persisted.
type Counters struct {
	Mallocs     uint64
	Frees       uint64
	ChunksAdded uint64
	Flushes     uint64
}

// Open loads the database from opts.Store, or initializes a fresh image when
// the store is empty.
func Open(opts Options) (*Database, error) {
	opts = opts.withDefaults()

	data, err := opts.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("db: load: %w", err)
	}

	d := &Database{
		store: opts.Store,
		opts:  opts,
		log:   newModificationLog(opts.LogCapacity, opts.LogWrites),
		dirty: dirty.NewTracker(format.ChunkSize),
		lg:    opts.Logger,
	}

	if len(data) == 0 {
		d.initHeader()
		d.lg.Debug("db: initialized", "id", d.id.String())
		return d, nil
	}

	if err := validateHeader(data); err != nil {
		return nil, err
	}
	d.data = data
	copy(d.id[:], data[format.HeaderIDOffset:format.HeaderIDOffset+16])
	d.lg.Debug("db: opened", "id", d.id.String(), "chunks", d.ChunkCount())
	return d, nil
}

// New returns a fresh in-memory database. It is a shorthand for tests and
// scratch indexes.
func New() *Database {
	d, err := Open(Options{})
	if err != nil {
		// An empty MemStore cannot fail to load.
		panic(err)
	}
	return d
}

func (d *Database) initHeader() {
	d.data = make([]byte, format.DataAreaOffset)
	copy(d.data[format.HeaderMagicOffset:], format.Magic)
	format.PutU32(d.data, format.HeaderVersionOffset, format.Version)
	d.id = uuid.New()
	copy(d.data[format.HeaderIDOffset:], d.id[:])
	format.PutU32(d.data, format.HeaderChunkCountOffset, format.NumHeaderChunks)
	d.dirty.Add(0, format.DataAreaOffset)
}

func validateHeader(data []byte) error {
	if len(data) < format.DataAreaOffset || len(data)%format.ChunkSize != 0 {
		return fmt.Errorf("%w: image size %d", ErrCorrupt, len(data))
	}
	if string(data[:4]) != string(format.Magic) {
		return format.ErrSignatureMismatch
	}
	if v := format.ReadU32(data, format.HeaderVersionOffset); v != format.Version {
		return fmt.Errorf("%w: %d", format.ErrVersion, v)
	}
	chunks := int(format.ReadU32(data, format.HeaderChunkCountOffset))
	if chunks*format.ChunkSize != len(data) {
		return fmt.Errorf("%w: header says %d chunks, image has %d",
			ErrCorrupt, chunks, len(data)/format.ChunkSize)
	}
	return nil
}

// ID returns the identity stamped into the header at creation.
func (d *Database) ID() uuid.UUID { return d.id }

// Options returns the effective options.
func (d *Database) Options() Options { return d.opts }

// Log returns the modification log.
func (d *Database) Log() *ModificationLog { return d.log }

// Logger returns the diagnostic logger.
func (d *Database) Logger() *slog.Logger { return d.lg }

// Size returns the image size in bytes.
func (d *Database) Size() int64 { return int64(len(d.data)) }

// ChunkCount returns the number of chunks, header included.
func (d *Database) ChunkCount() int {
	return int(format.ReadU32(d.data, format.HeaderChunkCountOffset))
}

// WriteNumber returns the number of completed flushes.
func (d *Database) WriteNumber() uint64 {
	return format.ReadU64(d.data, format.HeaderWriteNumberOffset)
}

// Counters returns a snapshot of the allocation counters.
func (d *Database) Counters() Counters { return d.counters }

// Root returns the root record pointer stored in the header.
func (d *Database) Root() Address {
	return Address(format.ReadU32(d.data, format.HeaderRootOffset))
}

// SetRoot stores the root record pointer in the header.
func (d *Database) SetRoot(a Address) {
	d.putHeaderU32(format.HeaderRootOffset, uint32(a))
}

// Flags returns the user flag word stored in the header.
func (d *Database) Flags() uint32 {
	return format.ReadU32(d.data, format.HeaderFlagsOffset)
}

// SetFlags stores the user flag word.
func (d *Database) SetFlags(v uint32) {
	d.putHeaderU32(format.HeaderFlagsOffset, v)
}

// Bytes exposes the raw image for inspection tools. Callers must not retain
// it across writes that may grow the image.
func (d *Database) Bytes() []byte { return d.data }

func (d *Database) putHeaderU32(off int, v uint32) {
	format.PutU32(d.data, off, v)
	d.dirty.Add(off, 4)
}

// grow appends n zeroed chunks and returns the address of the first one.
func (d *Database) grow(n int) (Address, error) {
	start := int64(len(d.data))
	end := start + int64(n)*format.ChunkSize
	if end > maxImageSize {
		return 0, indexErr("grow", Address(0), ErrNoSpace)
	}
	d.data = append(d.data, make([]byte, n*format.ChunkSize)...)
	format.PutU32(d.data, format.HeaderChunkCountOffset, uint32(end/format.ChunkSize))
	d.dirty.Add(format.HeaderChunkCountOffset, 4)
	d.dirty.Add(int(start), n*format.ChunkSize)
	d.counters.ChunksAdded += uint64(n)
	d.lg.Debug("db: grow", "chunks", n, "size", end)
	return Address(start), nil
}

// span bounds-checks [a, a+n) against the data area.
func (d *Database) span(op string, a Address, n int) ([]byte, error) {
	if d.closed {
		return nil, indexErr(op, a, ErrClosed)
	}
	if a == 0 {
		return nil, indexErr(op, a, ErrNullAddress)
	}
	if int(a) < format.DataAreaOffset {
		return nil, indexErr(op, a, ErrOutOfRange)
	}
	b, ok := buf.Slice(d.data, int(a), n)
	if !ok {
		return nil, indexErr(op, a, ErrOutOfRange)
	}
	return b, nil
}

// wrote records a completed write for flushing and for the modification log.
func (d *Database) wrote(a Address, n int) {
	d.dirty.Add(int(a), n)
	d.log.recordWrite(a, n)
}

// Flush writes every dirty chunk to the store, bumps the write number and
// syncs the store.
func (d *Database) Flush(ctx context.Context) error {
	if d.closed {
		return ErrClosed
	}
	if d.opts.ReadOnly {
		return fmt.Errorf("db: flush: %w", ErrReadOnly)
	}
	if d.dirty.Empty() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	format.PutU64(d.data, format.HeaderWriteNumberOffset, d.WriteNumber()+1)
	d.dirty.Add(format.HeaderWriteNumberOffset, 8)

	ranges := d.dirty.Ranges()
	written := 0
	for _, r := range ranges {
		for off := r.Off; off < r.End() && off < int64(len(d.data)); off += format.ChunkSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			idx := int(off / format.ChunkSize)
			if err := d.store.WriteChunk(idx, d.data[off:off+format.ChunkSize]); err != nil {
				return fmt.Errorf("db: flush chunk %d: %w", idx, err)
			}
			written++
		}
	}
	if err := d.store.Sync(ctx, d.ChunkCount()); err != nil {
		return fmt.Errorf("db: sync: %w", err)
	}
	d.dirty.Reset()
	d.counters.Flushes++
	d.lg.Debug("db: flush", "chunks", written, "write_number", d.WriteNumber())
	return nil
}

// DirtyChunks returns the number of chunks that the next Flush would write.
func (d *Database) DirtyChunks() int {
	n := 0
	for _, r := range d.dirty.Ranges() {
		n += int(r.Len / format.ChunkSize)
	}
	return n
}

// Close releases the store. Unflushed writes are lost.
func (d *Database) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.store.Close()
}
