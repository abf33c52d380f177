package source

import (
	"math"

	"github.com/pion/logging"

	ovformat "github.com/openvocs/ovformat"
)

// Mem is an in-memory byte source. In ModeRead it is a read-only view
// over a caller-supplied slice. In ModeWrite it is either a fixed view
// over a caller-supplied slice (writes beyond its length fail) or an
// auto-extending owned buffer that doubles its capacity on demand.
type Mem struct {
	mode Mode
	log  logging.LeveledLogger

	// read mode
	buf []byte
	pos int

	// write mode
	fixed    bool
	written  int
	tracker  *int
	closed   bool
}

// Mode mirrors ovformat.Mode to keep this file's field name unambiguous.
type Mode = ovformat.Mode

// FromMemory constructs a Mem source.
//
//   - mode == ModeRead: buf is read directly (no copy); NextChunk walks it.
//   - mode == ModeWrite, buf != nil: fixed-capacity write view over buf.
//   - mode == ModeWrite, buf == nil: auto-extending buffer with initial
//     capacity cap0, which must be > 0.
func FromMemory(mode ovformat.Mode, buf []byte, cap0 int, opts ...Option) (*Mem, error) {
	o := resolveOptions(opts)
	m := &Mem{mode: mode, log: o.loggerFactory.NewLogger("ovformat.source.mem")}

	switch mode {
	case ovformat.ModeRead:
		if buf == nil {
			return nil, ovformat.ErrInvalidArgument
		}
		m.buf = buf
	case ovformat.ModeWrite:
		if buf != nil {
			m.buf = buf
			m.fixed = true
		} else {
			if cap0 <= 0 {
				return nil, ovformat.ErrInvalidArgument
			}
			m.buf = make([]byte, 0, cap0)
			m.fixed = false
		}
	default:
		return nil, ovformat.ErrInvalidArgument
	}
	return m, nil
}

// Mode implements Source.
func (m *Mem) Mode() ovformat.Mode { return m.mode }

// NextChunk implements Source.
func (m *Mem) NextChunk(requested int) ([]byte, bool, error) {
	if m.mode != ovformat.ModeRead {
		return nil, false, ovformat.ErrWrongMode
	}
	remaining := len(m.buf) - m.pos
	if remaining < 0 {
		remaining = 0
	}
	n := remaining
	if requested > 0 && requested < remaining {
		n = requested
	}
	chunk := m.buf[m.pos : m.pos+n]
	m.pos += n
	return chunk, m.pos < len(m.buf), nil
}

// HasMoreData implements Source.
func (m *Mem) HasMoreData() bool {
	if m.mode == ovformat.ModeRead {
		return m.pos < len(m.buf)
	}
	return false
}

// WriteChunk implements Source.
func (m *Mem) WriteChunk(buf []byte) (int, error) {
	if m.mode != ovformat.ModeWrite {
		return 0, ovformat.ErrWrongMode
	}
	if len(buf) == 0 {
		return 0, nil
	}

	if m.fixed {
		capacity := len(m.buf)
		if m.written >= capacity {
			return 0, ovformat.ErrCapacityExceeded
		}
		n := capacity - m.written
		if n > len(buf) {
			n = len(buf)
		}
		copy(m.buf[m.written:m.written+n], buf[:n])
		m.written += n
		m.updateTracker()
		if n < len(buf) {
			return n, ovformat.ErrCapacityExceeded
		}
		return n, nil
	}

	needed := len(m.buf) + len(buf)
	if err := m.growTo(needed); err != nil {
		return 0, err
	}
	m.buf = m.buf[:needed]
	copy(m.buf[needed-len(buf):], buf)
	m.written = len(m.buf)
	m.updateTracker()
	return len(buf), nil
}

// growTo doubles capacity until it can hold `needed` bytes, matching the
// realloc-doubling behavior of the source C library but with an explicit
// overflow check instead of overcommitting.
func (m *Mem) growTo(needed int) error {
	if cap(m.buf) >= needed {
		return nil
	}
	newCap := cap(m.buf)
	if newCap == 0 {
		newCap = 1
	}
	for newCap < needed {
		if newCap > math.MaxInt/2 {
			return ovformat.ErrCapacityExceeded
		}
		newCap *= 2
	}
	grown := make([]byte, len(m.buf), newCap)
	copy(grown, m.buf)
	m.buf = grown
	return nil
}

// Overwrite implements Source.
func (m *Mem) Overwrite(offset int64, buf []byte) (int, error) {
	if m.mode != ovformat.ModeWrite {
		return 0, ovformat.ErrWrongMode
	}
	if offset < 0 {
		return 0, ovformat.ErrInvalidArgument
	}
	end := offset + int64(len(buf))
	if end > int64(m.written) {
		return 0, ovformat.ErrInvalidArgument
	}
	copy(m.buf[offset:end], buf)
	return len(buf), nil
}

// Memory implements Source.
func (m *Mem) Memory() ([]byte, error) {
	if m.mode != ovformat.ModeWrite {
		return nil, ovformat.ErrWrongMode
	}
	if m.fixed {
		return m.buf[:m.written], nil
	}
	return m.buf, nil
}

// Close implements Source.
func (m *Mem) Close() error {
	m.closed = true
	return nil
}

// AttachEndPtrTracker binds an external pointer that is kept in sync with
// the current write position. Must be detached before the source is
// closed if it is an auto-extending buffer, since the backing array may
// move out from under any raw pointer a caller derived from it.
func (m *Mem) AttachEndPtrTracker(tracker *int) error {
	if m.mode != ovformat.ModeWrite {
		return ovformat.ErrWrongMode
	}
	m.tracker = tracker
	m.updateTracker()
	return nil
}

// DetachEndPtrTracker removes a previously attached tracker.
func (m *Mem) DetachEndPtrTracker() {
	m.tracker = nil
}

func (m *Mem) updateTracker() {
	if m.tracker != nil {
		*m.tracker = m.written
	}
}
