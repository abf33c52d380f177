// Package ovformat provides a stackable binary-format pipeline: byte
// sources and sinks, a polymorphic format node that can be layered over
// another format, a name-based format registry, a file-format registry
// mapping extensions to MIME metadata, and a small family of concrete
// decoders/encoders (PCAP, Ethernet/Linux-cooked, IPv4/IPv6, UDP, RTP,
// WAV, Ogg, Ogg/Opus, and a generic external-codec adapter) built on top
// of it. pkg/formats wires all of the latter into a shared registry.
//
// A caller builds a tower by constructing a leaf byte source
// (pkg/source) and repeatedly wrapping it with format layers
// (pkg/format). Each layer peels off (read) or prepends (write) its own
// framing and delegates to the layer below; the caller only ever reads or
// writes the payload exposed by the top of the stack.
package ovformat

// Mode is the direction a Format or Source was constructed for. A format
// created for Read must never be written, and vice versa; this is fixed
// at construction and never changes.
type Mode int

const (
	// ModeRead marks a format/source as readable only.
	ModeRead Mode = iota
	// ModeWrite marks a format/source as writable only.
	ModeWrite
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	default:
		return "unknown"
	}
}
