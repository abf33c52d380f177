// Package format implements the stackable node abstraction described in
// spec.md §3/§4.2: a Format wraps a lower Format (or terminates a stack at
// a leaf over pkg/source), owns private state produced by its Handler,
// and exposes a uniform read/write/overwrite/close API regardless of
// which concrete wire format it is.
package format

import (
	ovformat "github.com/openvocs/ovformat"
)

// Format is one node in a format stack. The zero value is not usable;
// construct one with NewLeaf or Wrap.
type Format struct {
	typeTag string
	mode    ovformat.Mode
	handler Handler
	lower   *Format

	// State is the private data CreateData produced for this node. Each
	// concrete format package owns the concrete type stored here and is
	// responsible for casting it back; this package never inspects it.
	State any
}

// TypeTag returns the short name this node was constructed with.
func (f *Format) TypeTag() string { return f.typeTag }

// Mode returns the direction this node (and therefore the whole stack
// below it) was constructed for.
func (f *Format) Mode() ovformat.Mode { return f.mode }

// Lower returns the next format down the stack, or nil if f is the leaf.
func (f *Format) Lower() *Format { return f.lower }

// NewLeaf constructs a stack-terminating node directly from a handler and
// state, with no lower layer. pkg/source's Open/FromMemory/Buffered
// helpers use this to adapt a raw byte Source into the stack.
func NewLeaf(mode ovformat.Mode, typeTag string, handler Handler, state any) *Format {
	return &Format{typeTag: typeTag, mode: mode, handler: handler, State: state}
}

// Wrap constructs an inner node of type typeTag over lower, invoking
// handler.CreateData if present. If CreateData fails or returns no state,
// the inner node is discarded and lower is left untouched — construction
// failures never tear down a layer the caller still owns.
func Wrap(lower *Format, typeTag string, handler Handler, options any) (*Format, error) {
	if lower == nil {
		return nil, ovformat.ErrInvalidArgument
	}

	f := &Format{typeTag: typeTag, mode: lower.mode, handler: handler, lower: lower}

	if handler.CreateData != nil {
		data, err := handler.CreateData(lower, options)
		if err != nil {
			return nil, err
		}
		if data == nil {
			return nil, ovformat.ErrInvalidArgument
		}
		f.State = data
	}

	return f, nil
}

// Get searches the stack from top downward for a node whose type tag
// equals typeName, or whose ResponsibleFor callback claims it.
func Get(top *Format, typeName string) *Format {
	for f := top; f != nil; f = f.lower {
		if f.typeTag == typeName {
			return f
		}
		if f.handler.ResponsibleFor != nil {
			if found := f.handler.ResponsibleFor(f, typeName); found != nil {
				return found
			}
		}
	}
	return nil
}

// HasMoreData reports whether a subsequent ReadChunk could return data.
// A layer that does not track this itself (inner framing layers mostly
// don't need to) delegates to its lower layer.
func HasMoreData(f *Format) bool {
	if f == nil {
		return false
	}
	if f.handler.HasMoreData != nil {
		return f.handler.HasMoreData(f)
	}
	return HasMoreData(f.lower)
}

// ReadChunk returns an owned copy of up to requested octets of f's
// payload (0 requests all remaining data).
func ReadChunk(f *Format, requested int) ([]byte, error) {
	chunk, err := ReadChunkNoCopy(f, requested)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(chunk))
	copy(out, chunk)
	return out, nil
}

// ReadChunkNoCopy returns a view into f's internal buffers. The slice is
// valid only until the next operation on f.
func ReadChunkNoCopy(f *Format, requested int) ([]byte, error) {
	if f.mode != ovformat.ModeRead {
		return nil, ovformat.ErrWrongMode
	}
	if f.handler.NextChunk == nil {
		return nil, ovformat.ErrInvalidArgument
	}
	chunk, _, err := f.handler.NextChunk(f, requested)
	return chunk, err
}

// WriteChunk appends buf to f's payload, applying f's framing and every
// layer below it. It returns the number of payload octets accepted.
func WriteChunk(f *Format, buf []byte) (int, error) {
	if f.mode != ovformat.ModeWrite {
		return 0, ovformat.ErrWrongMode
	}
	if f.handler.WriteChunk == nil {
		return 0, ovformat.ErrInvalidArgument
	}
	return f.handler.WriteChunk(f, buf)
}

// Overwrite replaces already-written payload octets of f in place.
func Overwrite(f *Format, offset int64, buf []byte) (int, error) {
	if f.mode != ovformat.ModeWrite {
		return 0, ovformat.ErrWrongMode
	}
	if f.handler.Overwrite == nil {
		return 0, ovformat.ErrInvalidArgument
	}
	return f.handler.Overwrite(f, offset, buf)
}

// GetMemory runs ReadyFormat top-down over the stack (so non-streamable
// writers can back-patch headers) and returns the backing buffer of the
// memory-format leaf. It fails for READ stacks.
func GetMemory(f *Format) ([]byte, error) {
	if f.mode != ovformat.ModeWrite {
		return nil, ovformat.ErrWrongMode
	}
	for cur := f; cur != nil; cur = cur.lower {
		if cur.handler.ReadyFormat != nil {
			if err := cur.handler.ReadyFormat(cur); err != nil {
				return nil, err
			}
		}
	}
	for cur := f; cur != nil; cur = cur.lower {
		if cur.handler.Memory != nil {
			return cur.handler.Memory(cur)
		}
	}
	return nil, ovformat.ErrNotFound
}

// Close tears down the whole stack from f downward: for each node it
// runs that node's own ReadyFormat first (so a writer can back-patch its
// header through the still-open lower layer), then frees the node's
// state, then recurses into the lower layer.
func Close(f *Format) error {
	if f == nil {
		return nil
	}
	if f.handler.ReadyFormat != nil {
		if err := f.handler.ReadyFormat(f); err != nil {
			return err
		}
	}
	if f.handler.FreeData != nil {
		if err := f.handler.FreeData(f); err != nil {
			return err
		}
	}
	return Close(f.lower)
}

// CloseNonRecursive runs f's own ReadyFormat, frees only f's own state,
// detaches f from its lower layer, and returns that lower layer to the
// caller, who now owns it.
func CloseNonRecursive(f *Format) (*Format, error) {
	if f == nil {
		return nil, nil
	}
	if f.handler.ReadyFormat != nil {
		if err := f.handler.ReadyFormat(f); err != nil {
			return nil, err
		}
	}
	if f.handler.FreeData != nil {
		if err := f.handler.FreeData(f); err != nil {
			return nil, err
		}
	}
	lower := f.lower
	f.lower = nil
	return lower, nil
}

// AttachEndPtrTracker binds tracker to the write position of the
// memory-format leaf beneath f. It fails unless that leaf is a writable
// in-memory source.
func AttachEndPtrTracker(f *Format, tracker *int) error {
	leaf := f
	for leaf.lower != nil {
		leaf = leaf.lower
	}
	type endPtrTracker interface {
		AttachEndPtrTracker(*int) error
	}
	t, ok := leaf.State.(endPtrTracker)
	if !ok {
		return ovformat.ErrInvalidArgument
	}
	return t.AttachEndPtrTracker(tracker)
}
