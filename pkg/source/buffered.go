package source

import (
	"github.com/pion/logging"

	ovformat "github.com/openvocs/ovformat"
)

// Buffered is a read-only window over a caller-supplied slice whose
// NextChunk always returns the entire current window without advancing
// any position. BufferedUpdate replaces the window wholesale; this is how
// a dispatcher layer (e.g. the Ethernet-IP dispatcher) splices a decoded
// frame's payload into a child decoder without copying it into a new
// Mem source on every packet.
type Buffered struct {
	log logging.LeveledLogger
	buf []byte
}

// NewBuffered constructs a Buffered source over buf.
func NewBuffered(buf []byte, opts ...Option) *Buffered {
	o := resolveOptions(opts)
	return &Buffered{log: o.loggerFactory.NewLogger("ovformat.source.buffered"), buf: buf}
}

// Mode implements Source; Buffered is always ModeRead.
func (b *Buffered) Mode() ovformat.Mode { return ovformat.ModeRead }

// NextChunk implements Source. It always returns the full current window
// and never advances; callers that want the next piece of data must call
// Update first.
func (b *Buffered) NextChunk(requested int) ([]byte, bool, error) {
	return b.buf, false, nil
}

// HasMoreData implements Source. A Buffered window always reports data
// available as long as it is non-empty; it is the caller's job to Update
// it to signal end-of-stream by setting an empty window.
func (b *Buffered) HasMoreData() bool {
	return len(b.buf) > 0
}

// WriteChunk implements Source; Buffered is read-only.
func (b *Buffered) WriteChunk(buf []byte) (int, error) {
	return 0, ovformat.ErrWrongMode
}

// Overwrite implements Source; Buffered is read-only.
func (b *Buffered) Overwrite(offset int64, buf []byte) (int, error) {
	return 0, ovformat.ErrWrongMode
}

// Memory implements Source; Buffered is read-only.
func (b *Buffered) Memory() ([]byte, error) {
	return nil, ovformat.ErrWrongMode
}

// Close implements Source. Buffered owns no resources.
func (b *Buffered) Close() error { return nil }

// Update replaces the backing window. Used to splice newly decoded bytes
// into a layer stacked over this source.
func (b *Buffered) Update(buf []byte) {
	b.buf = buf
}
