package format

import (
	ovformat "github.com/openvocs/ovformat"
	"github.com/openvocs/ovformat/pkg/source"
)

const (
	// TypeMem is the type tag of a leaf over source.Mem.
	TypeMem = "mem"
	// TypeFile is the type tag of a leaf over source.File.
	TypeFile = "file"
	// TypeBuffered is the type tag of a leaf over source.Buffered.
	TypeBuffered = "buffered"
)

// leafHandler adapts any source.Source into a Handler: every operation is
// a straight pass-through to the Source, which is the whole point of a
// leaf — it terminates the recursion spec.md §4.2 describes.
var leafHandler = Handler{
	NextChunk: func(f *Format, requested int) ([]byte, bool, error) {
		return f.State.(source.Source).NextChunk(requested)
	},
	WriteChunk: func(f *Format, buf []byte) (int, error) {
		return f.State.(source.Source).WriteChunk(buf)
	},
	Overwrite: func(f *Format, offset int64, buf []byte) (int, error) {
		return f.State.(source.Source).Overwrite(offset, buf)
	},
	FreeData: func(f *Format) error {
		return f.State.(source.Source).Close()
	},
	HasMoreData: func(f *Format) bool {
		return f.State.(source.Source).HasMoreData()
	},
	Memory: func(f *Format) ([]byte, error) {
		return f.State.(source.Source).Memory()
	},
}

// Open constructs a leaf Format over a file. mode == ModeRead
// memory-maps the file for zero-copy delivery; ModeWrite truncates or
// creates it.
func Open(path string, mode ovformat.Mode, opts ...source.Option) (*Format, error) {
	src, err := source.Open(path, mode, opts...)
	if err != nil {
		return nil, err
	}
	return NewLeaf(mode, TypeFile, leafHandler, src), nil
}

// FromMemory constructs a leaf Format over an in-memory buffer. See
// source.FromMemory for the fixed-vs-auto-extend write semantics.
func FromMemory(mode ovformat.Mode, buf []byte, cap0 int, opts ...source.Option) (*Format, error) {
	src, err := source.FromMemory(mode, buf, cap0, opts...)
	if err != nil {
		return nil, err
	}
	return NewLeaf(mode, TypeMem, leafHandler, src), nil
}

// Buffered constructs a leaf Format whose NextChunk always returns the
// entire current window without advancing. Use BufferedUpdate to splice
// in new data.
func Buffered(buf []byte, opts ...source.Option) *Format {
	src := source.NewBuffered(buf, opts...)
	return NewLeaf(ovformat.ModeRead, TypeBuffered, leafHandler, src)
}

// BufferedUpdate replaces the backing window of a Buffered leaf anywhere
// in f's stack. It fails if no Buffered leaf is found.
func BufferedUpdate(f *Format, buf []byte) bool {
	for cur := f; cur != nil; cur = cur.lower {
		if b, ok := cur.State.(*source.Buffered); ok {
			b.Update(buf)
			return true
		}
	}
	return false
}
