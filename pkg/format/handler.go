package format

// Handler is the set of callbacks a concrete format type supplies to
// plug into a stack. Every field is optional except where a concrete
// format's semantics require it (e.g. a WRITE-only format leaves
// NextChunk nil). This is the Go realization of the "manual vtable"
// redesign flag in spec.md §9: instead of C function pointers we use a
// struct of closures, one instance per registered type, shared by every
// Format built from that type.
//
// HasMoreData and Memory are not among the seven callbacks spec.md §3
// enumerates (next_chunk, write_chunk, overwrite, ready_format,
// create_data, free_data, responsible_for); they exist only because Go
// has no equivalent of the C library's self-referencing leaf trick that
// let every node answer "do you have more data" / "give me your memory"
// by falling through to leaf internals automatically. Leaves set them;
// an inner layer that tracks end-of-stream itself (the Ogg reader) sets
// HasMoreData too, and layers that leave them nil make
// HasMoreData/GetMemory fall through to the lower layer.
type Handler struct {
	// NextChunk returns up to requested octets of this layer's payload
	// (0 means "all remaining"). Required for any format constructed in
	// ModeRead.
	NextChunk func(f *Format, requested int) (chunk []byte, hasMore bool, err error)

	// WriteChunk accepts octets of this layer's payload, applies this
	// layer's framing, and forwards to the lower layer. Required for any
	// format constructed in ModeWrite.
	WriteChunk func(f *Format, buf []byte) (int, error)

	// Overwrite replaces already-written payload octets in place.
	// Formats that cannot support random-access overwrite (most framed
	// protocols) leave this nil; Format-level Overwrite then reports
	// ErrInvalidArgument.
	Overwrite func(f *Format, offset int64, buf []byte) (int, error)

	// ReadyFormat is invoked on a node right before it is torn down (via
	// Close) or before the stack's memory is inspected (via GetMemory).
	// It lets a non-streaming writer (WAV) back-patch a header it could
	// not know in full until all payload was written.
	ReadyFormat func(f *Format) error

	// CreateData builds this node's private state from its lower layer
	// and construction options. If CreateData is registered, FreeData
	// must be registered too (enforced at Registry.Register time); a nil
	// return value without an error still fails construction.
	CreateData func(lower *Format, options any) (any, error)

	// FreeData releases whatever CreateData allocated in f.State.
	FreeData func(f *Format) error

	// ResponsibleFor lets a dispatching layer (e.g. the Ethernet-IP
	// layer owning a child IPv4/IPv6 decoder) answer a Get lookup for a
	// type name it doesn't carry as its own tag.
	ResponsibleFor func(f *Format, typeName string) *Format

	// HasMoreData reports whether a further NextChunk call could return
	// data. Leaves set this from their Source; most inner layers leave it
	// nil, while one that tracks end-of-stream itself (the Ogg reader)
	// sets it.
	HasMoreData func(f *Format) bool

	// Memory returns the full backing buffer of a WRITE leaf. Only
	// leaves set this.
	Memory func(f *Format) ([]byte, error)
}
