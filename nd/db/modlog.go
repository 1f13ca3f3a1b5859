package db

import (
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// EntryKind distinguishes modification log entries.
type EntryKind uint8

const (
	EntryStart EntryKind = iota + 1
	EntryEnd
	EntryWrite
)

func (k EntryKind) String() string {
	switch k {
	case EntryStart:
		return "start"
	case EntryEnd:
		return "end"
	case EntryWrite:
		return "write"
	default:
		return "unknown"
	}
}

// LogEntry is one modification log record. Writes carry the innermost open
// tag so they can be attributed to the field that made them.
type LogEntry struct {
	Seq  uint64    `msgpack:"seq"`
	Kind EntryKind `msgpack:"kind"`
	Tag  string    `msgpack:"tag,omitempty"`
	Addr Address   `msgpack:"addr,omitempty"`
	Size int       `msgpack:"size,omitempty"`
}

// ModificationLog is a bounded ring of tagged writes. It is purely
// observational: enabling or disabling it never changes stored bytes.
type ModificationLog struct {
	enabled bool
	entries []LogEntry
	next    int
	full    bool
	seq     uint64
	tags    []string
}

func newModificationLog(capacity int, enabled bool) *ModificationLog {
	return &ModificationLog{
		enabled: enabled,
		entries: make([]LogEntry, capacity),
	}
}

// Enabled reports whether entries are being recorded.
func (l *ModificationLog) Enabled() bool { return l.enabled }

// SetEnabled turns recording on or off. Open tags are kept so that a
// Start/End pair spanning the switch stays balanced.
func (l *ModificationLog) SetEnabled(on bool) { l.enabled = on }

// Start opens a tag.
func (l *ModificationLog) Start(tag string) {
	l.tags = append(l.tags, tag)
	if l.enabled {
		l.add(LogEntry{Kind: EntryStart, Tag: tag})
	}
}

// End closes the innermost tag named tag, along with anything opened after it.
// Unknown tags are ignored.
func (l *ModificationLog) End(tag string) {
	for i := len(l.tags) - 1; i >= 0; i-- {
		if l.tags[i] == tag {
			l.tags = l.tags[:i]
			break
		}
	}
	if l.enabled {
		l.add(LogEntry{Kind: EntryEnd, Tag: tag})
	}
}

func (l *ModificationLog) recordWrite(a Address, n int) {
	if !l.enabled {
		return
	}
	tag := ""
	if len(l.tags) > 0 {
		tag = l.tags[len(l.tags)-1]
	}
	l.add(LogEntry{Kind: EntryWrite, Tag: tag, Addr: a, Size: n})
}

func (l *ModificationLog) add(e LogEntry) {
	if len(l.entries) == 0 {
		return
	}
	l.seq++
	e.Seq = l.seq
	l.entries[l.next] = e
	l.next++
	if l.next == len(l.entries) {
		l.next = 0
		l.full = true
	}
}

// Entries returns the retained entries, oldest first.
func (l *ModificationLog) Entries() []LogEntry {
	if !l.full {
		out := make([]LogEntry, l.next)
		copy(out, l.entries[:l.next])
		return out
	}
	out := make([]LogEntry, 0, len(l.entries))
	out = append(out, l.entries[l.next:]...)
	return append(out, l.entries[:l.next]...)
}

// Describe returns the retained writes that touched addr.
func (l *ModificationLog) Describe(addr Address) []LogEntry {
	var out []LogEntry
	for _, e := range l.Entries() {
		if e.Kind != EntryWrite {
			continue
		}
		if addr >= e.Addr && int(addr) < int(e.Addr)+e.Size {
			out = append(out, e)
		}
	}
	return out
}

// Clear drops all retained entries.
func (l *ModificationLog) Clear() {
	l.next = 0
	l.full = false
}

// Export writes the retained entries as a msgpack array.
func (l *ModificationLog) Export(w io.Writer) error {
	return msgpack.NewEncoder(w).Encode(l.Entries())
}

// ImportLog decodes entries previously written by Export.
func ImportLog(r io.Reader) ([]LogEntry, error) {
	var out []LogEntry
	if err := msgpack.NewDecoder(r).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
