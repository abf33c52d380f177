// Package codecadapter implements the generic external-codec adapter
// described in spec.md §4.10: wraps a caller-supplied Codec, encoding
// each written chunk before forwarding it to the lower layer and
// decoding each chunk read from the lower layer, tracking a monotonic
// sequence number across reads.
//
// Grounded on how the teacher's pkg/media packages wrap an external
// payloader/depacketizer behind a small interface rather than embedding
// codec math directly (see e.g. pkg/media/samplebuilder's Depacketizer
// parameter) — adapted here to the stacked Format/Handler vocabulary,
// since this module, unlike the teacher, never implements the codec
// math itself (spec.md scopes that out as an external collaborator).
package codecadapter

import (
	"github.com/pkg/errors"

	ovformat "github.com/openvocs/ovformat"
	"github.com/openvocs/ovformat/pkg/format"
)

// TypeName is the tag this package registers its handler under.
const TypeName = "codecadapter"

// growthFactor is the multiplier spec.md §4.10 uses to size the
// adapter's owned decode buffer relative to a caller's requested size.
const growthFactor = 20

// Codec is the external encode/decode pair the adapter wraps, matching
// spec.md §4.10's "encode(in,out)"/"decode(seq, in, out)" shape: Decode
// writes into the adapter-owned out buffer (grown by the adapter, never
// by the codec) and returns how many bytes it produced. seq is the
// monotonically increasing sequence number of the chunk being decoded,
// mirroring codecs (e.g. audio codecs with packet-loss concealment) that
// need frame position to decode correctly.
type Codec interface {
	Encode(in []byte) ([]byte, error)
	Decode(seq uint64, out, in []byte) (n int, err error)
}

// Options configures construction of a codec-adapter format.
type Options struct {
	Codec Codec
}

type state struct {
	codec Codec
	seq   uint64

	// decodeBuf is the adapter's owned, growable scratch buffer for
	// decoded output, reallocated per spec.md §4.10 when a caller's
	// requested size times growthFactor would exceed its capacity.
	decodeBuf []byte
}

// Handler is the format.Handler for the codec-adapter.
var Handler = format.Handler{
	CreateData: createData,
	NextChunk:  nextChunk,
	WriteChunk: writeChunk,
	FreeData:   freeData,
}

func freeData(_ *format.Format) error { return nil }

func createData(_ *format.Format, options any) (any, error) {
	opts, ok := options.(Options)
	if !ok || opts.Codec == nil {
		return nil, errors.Wrap(ovformat.ErrInvalidArgument, "codecadapter: Options.Codec is required")
	}
	return &state{codec: opts.Codec}, nil
}

// New constructs a codec-adapter node stacked over lower: writes are
// encoded and forwarded, reads pull from lower and decode.
func New(lower *format.Format, options any) (*format.Format, error) {
	return format.Wrap(lower, TypeName, Handler, options)
}

// ensureDecodeCapacity grows decodeBuf so it can hold want octets,
// reallocating (never shrinking) per spec.md §4.10.
func (st *state) ensureDecodeCapacity(want int) {
	if want <= cap(st.decodeBuf) {
		return
	}
	st.decodeBuf = make([]byte, want)
}

func nextChunk(f *format.Format, requested int) ([]byte, bool, error) {
	st, ok := f.State.(*state)
	if !ok {
		return nil, false, ovformat.ErrWrongMode
	}

	raw, err := format.ReadChunkNoCopy(f.Lower(), requested)
	if err != nil {
		return nil, false, errors.Wrap(err, "codecadapter: reading from lower layer")
	}
	if len(raw) == 0 {
		return nil, format.HasMoreData(f.Lower()), nil
	}

	sized := requested
	if sized == 0 {
		sized = len(raw)
	}
	st.ensureDecodeCapacity(sized * growthFactor)

	n, err := st.codec.Decode(st.seq, st.decodeBuf, raw)
	if err != nil {
		return nil, false, errors.Wrapf(err, "codecadapter: decoding chunk %d", st.seq)
	}
	st.seq++
	return st.decodeBuf[:n], format.HasMoreData(f.Lower()), nil
}

func writeChunk(f *format.Format, buf []byte) (int, error) {
	st, ok := f.State.(*state)
	if !ok {
		return 0, ovformat.ErrWrongMode
	}
	encoded, err := st.codec.Encode(buf)
	if err != nil {
		return 0, errors.Wrap(err, "codecadapter: encoding chunk")
	}
	if _, err := format.WriteChunk(f.Lower(), encoded); err != nil {
		return 0, errors.Wrap(err, "codecadapter: writing encoded chunk to lower layer")
	}
	// the adapter's contract is "this many source octets were
	// consumed", not "this many encoded octets were written"
	return len(buf), nil
}

// SequenceNumber returns the next sequence number the adapter will pass
// to Codec.Decode, i.e. the count of chunks decoded so far.
func SequenceNumber(f *format.Format) uint64 {
	return f.State.(*state).seq
}
