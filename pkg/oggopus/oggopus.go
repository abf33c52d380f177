// Package oggopus implements the Ogg/Opus profile (RFC 7845) over
// pkg/ogg: an ID header ("OpusHead") and a comment header ("OpusTags")
// that must both precede any audio payload, with the comment header's
// emission deferred to the first audio WriteChunk on write.
//
// Grounded on the teacher's pkg/media/oggreader ParseOpusHead/
// ParseOpusTags field layout (channel count, preskip, sample rate,
// output gain, vendor string and key=value comments), adapted from a
// one-shot io.Reader parse into the stacked NextChunk/WriteChunk
// vocabulary the rest of this module uses, and extended with the write
// side spec.md §4.9 describes (which the teacher's tree does not ship).
package oggopus

import (
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"

	ovformat "github.com/openvocs/ovformat"
	"github.com/openvocs/ovformat/pkg/format"
	"github.com/openvocs/ovformat/pkg/ogg"
)

// TypeName is the tag this package registers its handler under. An
// oggopus format is always stacked directly over an "ogg" format.
const TypeName = "oggopus"

const (
	idHeaderMagic      = "OpusHead"
	commentHeaderMagic = "OpusTags"
	opusVersion        = 1

	idHeaderLen = 19 // magic(8) + version(1) + channels(1) + preskip(2) + samplerate(4) + gain(2) + mapping(1)
)

// Options configures construction of an Ogg/Opus writer.
type Options struct {
	PreSkipSamples uint16
	SampleRateHz   uint32
	// OutputGainDB is the output gain to encode as Q7.8 fixed point.
	OutputGainDB float64
	// VendorString is the comment header's vendor string (free text).
	VendorString string
}

// Comments is an ordered view over the comment header's key=value
// entries. Construction order is preserved on write.
type Comments struct {
	keys   []string
	values map[string]string
}

func newComments() *Comments {
	return &Comments{values: make(map[string]string)}
}

// set stores or replaces the value for key, appending key to the
// iteration order the first time it is seen.
func (c *Comments) set(key, value string) {
	if _, exists := c.values[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
}

// Get returns the value of the first entry whose key exactly matches
// (case-sensitive), and whether one was found.
func (c *Comments) Get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

type state struct {
	preSkip    uint16
	sampleRate uint32
	gainQ78    int16
	comments   *Comments

	// write-only
	vendor       string
	audioWritten bool
	sealed       bool
}

// Handler is the format.Handler for the Ogg/Opus profile.
var Handler = format.Handler{
	CreateData: createData,
	NextChunk:  nextChunk,
	WriteChunk: writeChunk,
	FreeData:   freeData,
}

func freeData(_ *format.Format) error { return nil }

func createData(lower *format.Format, options any) (any, error) {
	if lower.TypeTag() != ogg.TypeName {
		return nil, errors.Wrap(ovformat.ErrInvalidArgument, "oggopus: lower must be an ogg format")
	}
	switch lower.Mode() {
	case ovformat.ModeRead:
		return createDataReading(lower)
	case ovformat.ModeWrite:
		opts, _ := options.(Options)
		return createDataWriting(lower, opts)
	default:
		return nil, ovformat.ErrInvalidArgument
	}
}

// New constructs an Ogg/Opus profile stacked directly over an Ogg
// container: a reader (lower ModeRead) or a writer (lower ModeWrite,
// options an Options value).
func New(lower *format.Format, options any) (*format.Format, error) {
	return format.Wrap(lower, TypeName, Handler, options)
}

/* -----------------------------------------------------------------------
   reading
----------------------------------------------------------------------- */

func createDataReading(lower *format.Format) (any, error) {
	idPayload, err := format.ReadChunk(lower, 0)
	if err != nil {
		return nil, errors.Wrap(err, "oggopus: reading id header")
	}
	if len(idPayload) < idHeaderLen {
		return nil, errors.Wrap(ovformat.ErrShortRead, "oggopus: id header too short")
	}
	if string(idPayload[0:8]) != idHeaderMagic {
		return nil, errors.Wrap(ovformat.ErrFormatMismatch, "oggopus: missing OpusHead magic")
	}
	if idPayload[8] != opusVersion {
		return nil, errors.Wrapf(ovformat.ErrFormatMismatch, "oggopus: unexpected version %d", idPayload[8])
	}
	channels := idPayload[9]
	if channels != 1 {
		return nil, errors.Wrapf(&ovformat.UnsupportedError{Err: ovformat.ErrFormatMismatch}, "oggopus: %d channels", channels)
	}
	mappingFamily := idPayload[18]
	if mappingFamily != 0 {
		return nil, errors.Wrapf(ovformat.ErrFormatMismatch, "oggopus: unsupported channel mapping family %d", mappingFamily)
	}

	st := &state{
		preSkip:    binary.LittleEndian.Uint16(idPayload[10:12]),
		sampleRate: binary.LittleEndian.Uint32(idPayload[12:16]),
		gainQ78:    int16(binary.LittleEndian.Uint16(idPayload[16:18])),
	}

	tagsPayload, err := format.ReadChunk(lower, 0)
	if err != nil {
		return nil, errors.Wrap(err, "oggopus: reading comment header")
	}
	comments, err := parseCommentHeader(tagsPayload)
	if err != nil {
		return nil, err
	}
	st.comments = comments
	return st, nil
}

func parseCommentHeader(payload []byte) (*Comments, error) {
	if len(payload) < 8 || string(payload[0:8]) != commentHeaderMagic {
		return nil, errors.Wrap(ovformat.ErrFormatMismatch, "oggopus: missing OpusTags magic")
	}
	pos := 8
	if pos+4 > len(payload) {
		return nil, errors.Wrap(ovformat.ErrShortRead, "oggopus: comment header truncated at vendor length")
	}
	vendorLen := int(binary.LittleEndian.Uint32(payload[pos : pos+4]))
	pos += 4
	if pos+vendorLen > len(payload) {
		return nil, errors.Wrap(ovformat.ErrShortRead, "oggopus: comment header truncated at vendor string")
	}
	pos += vendorLen // vendor string itself is not surfaced on read

	if pos+4 > len(payload) {
		return nil, errors.Wrap(ovformat.ErrShortRead, "oggopus: comment header truncated at comment count")
	}
	count := int(binary.LittleEndian.Uint32(payload[pos : pos+4]))
	pos += 4

	comments := newComments()
	for i := 0; i < count; i++ {
		if pos+4 > len(payload) {
			return nil, errors.Wrapf(ovformat.ErrShortRead, "oggopus: comment %d truncated at length", i)
		}
		length := int(binary.LittleEndian.Uint32(payload[pos : pos+4]))
		pos += 4
		if pos+length > len(payload) {
			return nil, errors.Wrapf(ovformat.ErrShortRead, "oggopus: comment %d truncated", i)
		}
		entry := string(payload[pos : pos+length])
		pos += length

		kv := strings.SplitN(entry, "=", 2)
		if len(kv) != 2 {
			return nil, errors.Wrapf(ovformat.ErrFormatMismatch, "oggopus: comment %d not KEY=VALUE", i)
		}
		if _, exists := comments.values[kv[0]]; !exists {
			comments.set(kv[0], kv[1])
		}
	}
	return comments, nil
}

func nextChunk(f *format.Format, requested int) ([]byte, bool, error) {
	lower := f.Lower()
	chunk, err := format.ReadChunkNoCopy(lower, requested)
	if err != nil {
		return nil, false, err
	}
	return chunk, format.HasMoreData(lower), nil
}

/* -----------------------------------------------------------------------
   writing
----------------------------------------------------------------------- */

func createDataWriting(lower *format.Format, opts Options) (any, error) {
	idPayload := make([]byte, 0, idHeaderLen)
	idPayload = append(idPayload, idHeaderMagic...)
	idPayload = append(idPayload, opusVersion, 1) // version, channels (mono only)

	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], opts.PreSkipSamples)
	idPayload = append(idPayload, u16[:]...)

	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], opts.SampleRateHz)
	idPayload = append(idPayload, u32[:]...)

	gainQ78 := int16(opts.OutputGainDB * 256.0)
	binary.LittleEndian.PutUint16(u16[:], uint16(gainQ78))
	idPayload = append(idPayload, u16[:]...)
	idPayload = append(idPayload, 0) // channel mapping family 0

	if _, err := format.WriteChunk(lower, idPayload); err != nil {
		return nil, errors.Wrap(err, "oggopus: writing id header")
	}
	if err := ogg.NewPage(lower, 0); err != nil {
		return nil, errors.Wrap(err, "oggopus: sealing id header page")
	}

	vendor := opts.VendorString
	if vendor == "" {
		vendor = "ovformat"
	}

	return &state{
		preSkip:    opts.PreSkipSamples,
		sampleRate: opts.SampleRateHz,
		gainQ78:    gainQ78,
		comments:   newComments(),
		vendor:     vendor,
	}, nil
}

func sealCommentHeader(f *format.Format, st *state) error {
	payload := make([]byte, 0, 64)
	payload = append(payload, commentHeaderMagic...)

	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(st.vendor)))
	payload = append(payload, u32[:]...)
	payload = append(payload, st.vendor...)

	binary.LittleEndian.PutUint32(u32[:], uint32(len(st.comments.keys)))
	payload = append(payload, u32[:]...)

	for _, k := range st.comments.keys {
		entry := k + "=" + st.comments.values[k]
		binary.LittleEndian.PutUint32(u32[:], uint32(len(entry)))
		payload = append(payload, u32[:]...)
		payload = append(payload, entry...)
	}

	if _, err := format.WriteChunk(f.Lower(), payload); err != nil {
		return errors.Wrap(err, "oggopus: writing comment header")
	}
	if err := ogg.NewPage(f.Lower(), 0); err != nil {
		return errors.Wrap(err, "oggopus: sealing comment header page")
	}
	st.sealed = true
	return nil
}

func writeChunk(f *format.Format, buf []byte) (int, error) {
	st, ok := f.State.(*state)
	if !ok {
		return 0, ovformat.ErrWrongMode
	}
	if !st.sealed {
		if err := sealCommentHeader(f, st); err != nil {
			return 0, err
		}
	}
	st.audioWritten = true
	return format.WriteChunk(f.Lower(), buf)
}

// CommentSet stores key=value in the comment header. It fails once any
// audio payload has been written, since the comment header is sealed on
// the first audio WriteChunk (spec.md §4.9's one-way Preparing->Streaming
// transition).
func CommentSet(f *format.Format, key, value string) error {
	st, ok := f.State.(*state)
	if !ok {
		return ovformat.ErrWrongMode
	}
	if st.audioWritten {
		return errors.Wrap(ovformat.ErrInvalidArgument, "oggopus: comment header already sealed by audio payload")
	}
	st.comments.set(key, value)
	return nil
}

// Comment returns the value of the first comment entry whose key
// exactly matches (case-sensitive), and whether one was found.
func Comment(f *format.Format, key string) (string, bool) {
	return f.State.(*state).comments.Get(key)
}

// PreSkipSamplesOf returns the ID header's preskip field.
func PreSkipSamplesOf(f *format.Format) uint16 {
	return f.State.(*state).preSkip
}

// SampleRateOf returns the ID header's sample rate field.
func SampleRateOf(f *format.Format) uint32 {
	return f.State.(*state).sampleRate
}

// OutputGainDBOf decodes the ID header's Q7.8 fixed-point output gain
// back into decibels.
func OutputGainDBOf(f *format.Format) float64 {
	return float64(f.State.(*state).gainQ78) / 256.0
}
