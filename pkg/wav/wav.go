// Package wav implements the WAV/RIFF container: a master RIFF header,
// an arbitrary sequence of chunks of which "fmt " and "data" are
// mandatory (others are skipped), little-endian throughout. The writer
// emits a fixed-layout header with placeholder sizes at construction and
// back-patches them when the stack is closed.
//
// Grounded on original_source/ov_format_wav.c, translated into the
// CreateData/NextChunk/WriteChunk/Overwrite/ReadyFormat vocabulary the
// rest of this module uses.
package wav

import (
	"encoding/binary"

	"github.com/pkg/errors"

	ovformat "github.com/openvocs/ovformat"
	"github.com/openvocs/ovformat/pkg/format"
)

// TypeName is the tag this package registers its handler under.
const TypeName = "wav"

// FormatTag is the WAV "fmt " chunk's audio format code.
type FormatTag uint16

// Format tags this package round-trips without interpreting payload
// samples (original_source/ov_format_wav.h names only PCM as a default;
// A-law/mu-law are the other two tags openvocs' telephony stack uses).
const (
	FormatPCM   FormatTag = 1
	FormatALaw  FormatTag = 6
	FormatMuLaw FormatTag = 7
)

// Options describes (or, read back, reports) the "fmt " chunk.
type Options struct {
	Format              FormatTag
	Channels            uint16
	SampleRateHz        uint32
	BlockAlignmentBytes uint16
	BitsPerSample       uint16
}

var defaultOptions = Options{
	Format:              FormatPCM,
	Channels:            1,
	SampleRateHz:        8000,
	BlockAlignmentBytes: 2,
	BitsPerSample:       16,
}

const (
	masterRiffChunkLen  = 12 // "RIFF" + size + "WAVE"
	riffChunkHeaderLen  = 8  // id + size
	fmtChunkContentLen  = 16
	fmtChunkLen         = riffChunkHeaderLen + fmtChunkContentLen
	dataRiffHeaderLen   = riffChunkHeaderLen
	masterRiffSizeOffset = 4
	payloadSizeOffset    = masterRiffChunkLen + fmtChunkLen + 4
)

type payloadState struct {
	lengthBytes int // read mode: size from the data chunk header
	transferred int // bytes delivered (read) or accepted (write) so far
	offset      int // write mode: absolute offset of payload in the lower stream
}

type state struct {
	parameters Options
	payload    payloadState
}

// Handler is the format.Handler for the WAV reader/writer.
var Handler = format.Handler{
	CreateData: createData,
	NextChunk:  nextChunk,
	WriteChunk: writeChunk,
	Overwrite:  overwrite,
	ReadyFormat: readyFormat,
	FreeData:    freeData,
}

func createData(lower *format.Format, options any) (any, error) {
	switch lower.Mode() {
	case ovformat.ModeRead:
		return createDataReading(lower)
	case ovformat.ModeWrite:
		opts := defaultOptions
		if o, ok := options.(Options); ok {
			opts = o
		}
		return createDataWriting(lower, opts)
	default:
		return nil, ovformat.ErrInvalidArgument
	}
}

func freeData(_ *format.Format) error { return nil }

/* ---------------------------------------------------------------------
   reading
--------------------------------------------------------------------- */

func createDataReading(lower *format.Format) (any, error) {
	if _, err := readMasterHeader(lower); err != nil {
		return nil, err
	}
	st := &state{}
	if err := readChunks(lower, st); err != nil {
		return nil, err
	}
	return st, nil
}

// readMasterHeader consumes "RIFF" <size> "WAVE" and returns the
// remaining length of the RIFF payload (size, minus the 4 octets taken
// by "WAVE").
func readMasterHeader(lower *format.Format) (int, error) {
	raw, err := format.ReadChunkNoCopy(lower, masterRiffChunkLen)
	if err != nil {
		return 0, errors.Wrap(err, "wav: reading master riff header")
	}
	if len(raw) < masterRiffChunkLen {
		return 0, errors.Wrap(ovformat.ErrShortRead, "wav: master riff header")
	}
	if string(raw[0:4]) != "RIFF" {
		return 0, errors.Wrap(ovformat.ErrFormatMismatch, "wav: missing RIFF tag")
	}
	size := binary.LittleEndian.Uint32(raw[4:8])
	if string(raw[8:12]) != "WAVE" {
		return 0, errors.Wrap(ovformat.ErrFormatMismatch, "wav: missing WAVE tag")
	}
	if size < 4 {
		return 0, errors.Wrap(ovformat.ErrIntegrity, "wav: riff length too small")
	}
	return int(size) - 4, nil
}

func readChunkHeader(lower *format.Format) (id string, length uint32, err error) {
	raw, err := format.ReadChunkNoCopy(lower, riffChunkHeaderLen)
	if err != nil {
		return "", 0, errors.Wrap(err, "wav: reading chunk header")
	}
	if len(raw) < riffChunkHeaderLen {
		return "", 0, errors.Wrap(ovformat.ErrShortRead, "wav: chunk header")
	}
	return string(raw[0:4]), binary.LittleEndian.Uint32(raw[4:8]), nil
}

func readChunks(lower *format.Format, st *state) error {
	fmtRead := false
	for {
		id, length, err := readChunkHeader(lower)
		if err != nil {
			return err
		}

		switch id {
		case "fmt ":
			if err := readFmtChunk(lower, length, st); err != nil {
				return errors.Wrap(err, "wav: reading fmt chunk")
			}
			fmtRead = true
		case "data":
			if !fmtRead {
				return errors.Wrap(ovformat.ErrIntegrity, "wav: data chunk before fmt chunk")
			}
			st.payload.lengthBytes = int(length)
			return nil
		default:
			if _, err := format.ReadChunkNoCopy(lower, int(length)); err != nil {
				return errors.Wrapf(err, "wav: skipping unknown chunk %q", id)
			}
		}
	}
}

func readFmtChunk(lower *format.Format, length uint32, st *state) error {
	if length > fmtChunkContentLen {
		return errors.Wrap(ovformat.ErrIntegrity, "wav: fmt chunk too long")
	}
	raw, err := format.ReadChunkNoCopy(lower, int(length))
	if err != nil {
		return err
	}
	if len(raw) < fmtChunkContentLen {
		return errors.Wrap(ovformat.ErrShortRead, "wav: fmt chunk shorter than 16 bytes")
	}

	p := &st.parameters
	p.Format = FormatTag(binary.LittleEndian.Uint16(raw[0:2]))
	p.Channels = binary.LittleEndian.Uint16(raw[2:4])
	p.SampleRateHz = binary.LittleEndian.Uint32(raw[4:8])
	dataRate := binary.LittleEndian.Uint32(raw[8:12])
	p.BlockAlignmentBytes = binary.LittleEndian.Uint16(raw[12:14])
	p.BitsPerSample = binary.LittleEndian.Uint16(raw[14:16])

	if dataRate != uint32(p.BlockAlignmentBytes)*p.SampleRateHz {
		return errors.Wrap(ovformat.ErrIntegrity, "wav: fmt chunk data rate does not match block alignment * sample rate")
	}
	if uint32(p.BlockAlignmentBytes) < (uint32(p.Channels)*uint32(p.BitsPerSample))/8 {
		return errors.Wrap(ovformat.ErrIntegrity, "wav: fmt chunk block alignment too small")
	}
	return nil
}

func nextChunk(f *format.Format, requested int) ([]byte, bool, error) {
	st := f.State.(*state)
	lower := f.Lower()

	remaining := st.payload.lengthBytes - st.payload.transferred
	if remaining <= 0 {
		return nil, false, nil
	}
	toRead := remaining
	if requested > 0 && requested < toRead {
		toRead = requested
	}

	chunk, err := format.ReadChunk(lower, toRead)
	if err != nil {
		return nil, false, errors.Wrap(err, "wav: reading payload")
	}
	st.payload.transferred += len(chunk)
	return chunk, st.payload.transferred < st.payload.lengthBytes, nil
}

/* ---------------------------------------------------------------------
   writing
--------------------------------------------------------------------- */

func createDataWriting(lower *format.Format, opts Options) (any, error) {
	offset, err := writeHeaders(lower, opts)
	if err != nil {
		return nil, err
	}
	return &state{parameters: opts, payload: payloadState{offset: offset}}, nil
}

func writeHeaders(lower *format.Format, opts Options) (int, error) {
	buf := make([]byte, 0, masterRiffChunkLen+fmtChunkLen+dataRiffHeaderLen)
	buf = append(buf, "RIFF"...)
	buf = append(buf, 0, 0, 0, 0) // patched by readyFormat on close
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)

	var u32 [4]byte
	var u16 [2]byte

	binary.LittleEndian.PutUint32(u32[:], fmtChunkContentLen)
	buf = append(buf, u32[:]...)

	binary.LittleEndian.PutUint16(u16[:], uint16(opts.Format))
	buf = append(buf, u16[:]...)
	binary.LittleEndian.PutUint16(u16[:], opts.Channels)
	buf = append(buf, u16[:]...)
	binary.LittleEndian.PutUint32(u32[:], opts.SampleRateHz)
	buf = append(buf, u32[:]...)
	binary.LittleEndian.PutUint32(u32[:], opts.SampleRateHz*uint32(opts.BlockAlignmentBytes))
	buf = append(buf, u32[:]...)
	binary.LittleEndian.PutUint16(u16[:], opts.BlockAlignmentBytes)
	buf = append(buf, u16[:]...)
	binary.LittleEndian.PutUint16(u16[:], opts.BitsPerSample)
	buf = append(buf, u16[:]...)

	buf = append(buf, "data"...)
	buf = append(buf, 0, 0, 0, 0) // patched by readyFormat on close

	n, err := format.WriteChunk(lower, buf)
	if err != nil {
		return 0, errors.Wrap(err, "wav: writing headers")
	}
	if n != len(buf) {
		return 0, errors.Wrap(ovformat.ErrShortWrite, "wav: writing headers")
	}
	return n, nil
}

func writeChunk(f *format.Format, buf []byte) (int, error) {
	st := f.State.(*state)
	n, err := format.WriteChunk(f.Lower(), buf)
	st.payload.transferred += n
	return n, err
}

func overwrite(f *format.Format, offset int64, buf []byte) (int, error) {
	st := f.State.(*state)
	return format.Overwrite(f.Lower(), offset+int64(st.payload.offset), buf)
}

func readyFormat(f *format.Format) error {
	if f.Mode() != ovformat.ModeWrite {
		return nil
	}
	st := f.State.(*state)
	lower := f.Lower()

	var sizeBuf [4]byte
	binary.LittleEndian.PutUint32(sizeBuf[:], uint32(st.payload.transferred))
	if _, err := format.Overwrite(lower, payloadSizeOffset, sizeBuf[:]); err != nil {
		return errors.Wrap(err, "wav: patching data chunk size")
	}

	totalSize := uint32(4+dataRiffHeaderLen+fmtChunkLen) + uint32(st.payload.transferred)
	binary.LittleEndian.PutUint32(sizeBuf[:], totalSize)
	if _, err := format.Overwrite(lower, masterRiffSizeOffset, sizeBuf[:]); err != nil {
		return errors.Wrap(err, "wav: patching riff size")
	}
	return nil
}

// New constructs a WAV reader (lower in ModeRead, options ignored — pass
// nil) or writer (lower in ModeWrite, options an Options value or nil
// for the default telephony-style mono 8kHz/16-bit PCM profile).
func New(lower *format.Format, options any) (*format.Format, error) {
	return format.Wrap(lower, TypeName, Handler, options)
}

// HeaderOf returns the "fmt " parameters of f: as read from the file in
// ModeRead, or as configured at construction in ModeWrite.
func HeaderOf(f *format.Format) Options {
	return f.State.(*state).parameters
}

// PayloadLengthOf returns the "data" chunk's declared length in ModeRead.
func PayloadLengthOf(f *format.Format) int {
	return f.State.(*state).payload.lengthBytes
}
