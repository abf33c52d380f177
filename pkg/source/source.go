// Package source implements the raw byte endpoints a format stack is built
// on: an in-memory buffer (fixed or auto-extending), a memory-mapped file,
// and a buffered window used to splice decoded bytes into a higher-level
// decoder. All three share the Source interface so pkg/format can treat
// the leaf of a stack uniformly with any other layer.
package source

import (
	"github.com/pion/logging"

	ovformat "github.com/openvocs/ovformat"
)

// Source is the raw I/O endpoint terminating a format stack. Leaves never
// delegate further; `HasMoreData` and the read/write contracts are
// described in spec.md §4.1.
type Source interface {
	// Mode reports whether this source was constructed for reading or
	// writing. It never changes.
	Mode() ovformat.Mode

	// NextChunk returns up to requested octets (or all remaining data
	// when requested == 0). The returned slice is only valid until the
	// next call on this Source; callers must not retain it past that
	// point, nor mutate it. hasMore reports whether further data may be
	// available after this call.
	NextChunk(requested int) (chunk []byte, hasMore bool, err error)

	// WriteChunk appends buf and returns the number of octets actually
	// written. In auto-extend and file mode this always equals
	// len(buf); in fixed-buffer mode it may be less, in which case the
	// remainder was not written and the source is now full.
	WriteChunk(buf []byte) (int, error)

	// Overwrite replaces already-written octets in place. offset+len(buf)
	// must not exceed the number of bytes written so far; violating
	// that fails without modifying anything and leaves the write
	// position untouched.
	Overwrite(offset int64, buf []byte) (int, error)

	// HasMoreData reports whether a subsequent NextChunk call could
	// return non-empty data.
	HasMoreData() bool

	// Memory returns the full backing buffer of a WRITE source. It
	// fails for READ sources.
	Memory() ([]byte, error)

	// Close releases any resources the source owns (mapped regions,
	// file descriptors). Closing a Source more than once is safe.
	Close() error
}

// options bundles the knobs common to the leaf constructors; none of the
// three sources requires more than a logger today, but keeping an options
// struct matches how the rest of the stack takes construction options and
// leaves room for e.g. a future buffering mode without breaking callers.
type options struct {
	loggerFactory logging.LoggerFactory
}

// Option configures a leaf source at construction time.
type Option func(*options)

// WithLoggerFactory injects a logging.LoggerFactory used to scope a
// per-source logger. Defaults to logging.NewDefaultLoggerFactory().
func WithLoggerFactory(f logging.LoggerFactory) Option {
	return func(o *options) { o.loggerFactory = f }
}

func resolveOptions(opts []Option) options {
	o := options{}
	for _, apply := range opts {
		apply(&o)
	}
	if o.loggerFactory == nil {
		o.loggerFactory = logging.NewDefaultLoggerFactory()
	}
	return o
}
