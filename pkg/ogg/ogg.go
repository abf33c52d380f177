// Package ogg implements the Ogg container: page-level segmentation
// with a lacing (segment) table, CRC32 integrity with the header's CRC
// field zeroed during computation, and multi-stream interleaving on
// read (one active stream written at a time, per spec.md §1 Non-goals).
//
// Grounded on the page/header field layout of the teacher's
// pkg/media/oggreader (capture pattern, flags, granule position, serial,
// sequence, CRC, segment table) and its CRC32 table-building algorithm;
// the write side — absent from the teacher's tree, which only ships the
// reader — is grounded on the same header layout plus spec.md §4.8's
// segment-lacing and continuation rules.
package ogg

import (
	"encoding/binary"

	"github.com/pion/randutil"
	"github.com/pkg/errors"

	ovformat "github.com/openvocs/ovformat"
	"github.com/openvocs/ovformat/pkg/format"
)

// TypeName is the tag this package registers its handler under.
const TypeName = "ogg"

const (
	capturePattern = "OggS"
	oggVersion     = 0

	pageHeaderLen  = 27
	maxSegments    = 255
	maxSegmentByte = 255

	flagContinuation  = 0x01
	flagBeginOfStream = 0x02
	flagEndOfStream   = 0x04

	crcFieldOffset = 22
)

// Options configures construction of an Ogg writer. StreamSerial fixes
// the first stream's serial number; zero means "generate one" (via
// pion/randutil, the same generator the teacher uses for SSRC/track-id
// allocation).
type Options struct {
	StreamSerial uint32
}

// PageHeader is the header of an Ogg page. flushPage fills one in to
// serialize a page and readRawPage returns one for each page it parses;
// no accessor exposes it to callers.
type PageHeader struct {
	Continuation    bool
	BeginOfStream   bool
	EndOfStream     bool
	GranulePosition uint64
	Serial          uint32
	Sequence        uint32
	SegmentsCount   uint8
}

type writeState struct {
	serial     uint32
	sequence   uint32
	granule    uint64
	segments   []byte
	payload    []byte
	packetOpen bool // last appended segment was length 255: logical packet unterminated
	pendingContinuation bool
	firstPage  bool
	closed     bool
}

type readState struct {
	forcedSerial *uint32
	locked       bool
	activeSerial uint32

	curSegments []byte
	curPayload  []byte
	segIdx      int
	payloadPos  int

	pendingEOS bool
	ended      bool
}

// Handler is the format.Handler for the Ogg container.
var Handler = format.Handler{
	CreateData:  createData,
	NextChunk:   nextChunk,
	WriteChunk:  writeChunk,
	ReadyFormat: readyFormat,
	HasMoreData: hasMoreData,
	FreeData:    freeData,
}

func freeData(_ *format.Format) error { return nil }

func hasMoreData(f *format.Format) bool {
	if st, ok := f.State.(*readState); ok {
		return !st.ended
	}
	return false
}

func createData(lower *format.Format, options any) (any, error) {
	switch lower.Mode() {
	case ovformat.ModeRead:
		return &readState{}, nil
	case ovformat.ModeWrite:
		opts, _ := options.(Options)
		serial := opts.StreamSerial
		if serial == 0 {
			serial = randutil.NewMathRandomGenerator().Uint32()
		}
		return &writeState{serial: serial, firstPage: true}, nil
	default:
		return nil, ovformat.ErrInvalidArgument
	}
}

// New constructs an Ogg container stacked over lower: a reader when
// lower is ModeRead, a writer (options an Options value or nil) when
// lower is ModeWrite.
func New(lower *format.Format, options any) (*format.Format, error) {
	return format.Wrap(lower, TypeName, Handler, options)
}

/* -----------------------------------------------------------------------
   writing
----------------------------------------------------------------------- */

func writeChunk(f *format.Format, buf []byte) (int, error) {
	st, ok := f.State.(*writeState)
	if !ok {
		return 0, ovformat.ErrWrongMode
	}
	lower := f.Lower()

	remaining := buf
	for {
		if len(st.segments) >= maxSegments {
			if err := flushPage(lower, st, false); err != nil {
				return 0, err
			}
		}
		n := len(remaining)
		segLen := n
		terminal := true
		if segLen >= maxSegmentByte {
			segLen = maxSegmentByte
			terminal = false
		}
		st.segments = append(st.segments, byte(segLen))
		st.payload = append(st.payload, remaining[:segLen]...)
		remaining = remaining[segLen:]
		st.packetOpen = !terminal
		if terminal {
			break
		}
	}
	return len(buf), nil
}

// flushPage serializes whatever is currently buffered as one page and
// resets the accumulator. Grounded on spec.md §4.8: CRC32 computed over
// the header with its CRC field zeroed, concatenated with payload, then
// written back into the header.
func flushPage(lower *format.Format, st *writeState, endOfStream bool) error {
	hdr := PageHeader{
		Continuation:    st.pendingContinuation,
		BeginOfStream:   st.firstPage,
		EndOfStream:     endOfStream,
		GranulePosition: st.granule,
		Serial:          st.serial,
		Sequence:        st.sequence,
		SegmentsCount:   uint8(len(st.segments)),
	}

	page := make([]byte, 0, pageHeaderLen+len(st.segments)+len(st.payload))
	page = append(page, capturePattern...)
	page = append(page, oggVersion)

	var flags byte
	if hdr.Continuation {
		flags |= flagContinuation
	}
	if hdr.BeginOfStream {
		flags |= flagBeginOfStream
	}
	if hdr.EndOfStream {
		flags |= flagEndOfStream
	}
	page = append(page, flags)

	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], hdr.GranulePosition)
	page = append(page, u64[:]...)

	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], hdr.Serial)
	page = append(page, u32[:]...)
	binary.LittleEndian.PutUint32(u32[:], hdr.Sequence)
	page = append(page, u32[:]...)
	page = append(page, 0, 0, 0, 0) // CRC field, zeroed for the checksum pass
	page = append(page, hdr.SegmentsCount)

	page = append(page, st.segments...)
	page = append(page, st.payload...)

	crc := crc32Ogg(page)
	binary.LittleEndian.PutUint32(page[crcFieldOffset:crcFieldOffset+4], crc)

	n, err := format.WriteChunk(lower, page)
	if err != nil {
		return errors.Wrap(err, "ogg: writing page")
	}
	if n != len(page) {
		return errors.Wrap(ovformat.ErrShortWrite, "ogg: writing page")
	}

	st.sequence++
	st.firstPage = false
	st.pendingContinuation = st.packetOpen
	st.segments = st.segments[:0]
	st.payload = st.payload[:0]
	return nil
}

// NewPage force-flushes the current page under the given granule/sample
// position and begins a new page in the same stream.
func NewPage(f *format.Format, granulePosition uint64) error {
	st, ok := f.State.(*writeState)
	if !ok {
		return ovformat.ErrWrongMode
	}
	st.granule = granulePosition
	return flushPage(f.Lower(), st, false)
}

// NewStream finishes the current stream (flushing its final page with
// EndOfStream set and resetting the sequence counter) and begins a new
// stream identified by serial, whose first page carries BeginOfStream.
func NewStream(f *format.Format, serial uint32) error {
	st, ok := f.State.(*writeState)
	if !ok {
		return ovformat.ErrWrongMode
	}
	if err := flushPage(f.Lower(), st, true); err != nil {
		return err
	}
	st.serial = serial
	st.sequence = 0
	st.granule = 0
	st.firstPage = true
	st.pendingContinuation = false
	st.packetOpen = false
	return nil
}

func readyFormat(f *format.Format) error {
	if f.Mode() != ovformat.ModeWrite {
		return nil
	}
	st, ok := f.State.(*writeState)
	if !ok || st.closed {
		return nil
	}
	st.closed = true
	return flushPage(f.Lower(), st, true)
}

/* -----------------------------------------------------------------------
   reading
----------------------------------------------------------------------- */

// SelectStream forces the reader to gather only the stream identified by
// serial: pages of other serials are skipped until one with
// BeginOfStream and the chosen serial is found, after which only that
// stream's segments are gathered.
func SelectStream(f *format.Format, serial uint32) error {
	st, ok := f.State.(*readState)
	if !ok {
		return ovformat.ErrWrongMode
	}
	st.forcedSerial = &serial
	st.locked = false
	st.curSegments = nil
	st.curPayload = nil
	st.segIdx = 0
	st.payloadPos = 0
	st.pendingEOS = false
	st.ended = false
	return nil
}

func readRawPage(lower *format.Format) (PageHeader, []byte, []byte, bool, error) {
	raw, err := format.ReadChunk(lower, pageHeaderLen)
	if err != nil {
		return PageHeader{}, nil, nil, false, errors.Wrap(err, "ogg: reading page header")
	}
	if len(raw) == 0 {
		return PageHeader{}, nil, nil, false, nil
	}
	if len(raw) != pageHeaderLen {
		return PageHeader{}, nil, nil, false, errors.Wrap(ovformat.ErrShortRead, "ogg: short page header")
	}
	if string(raw[0:4]) != capturePattern {
		return PageHeader{}, nil, nil, false, errors.Wrap(ovformat.ErrFormatMismatch, "ogg: bad capture pattern")
	}
	if raw[4] != oggVersion {
		return PageHeader{}, nil, nil, false, errors.Wrapf(ovformat.ErrFormatMismatch, "ogg: unexpected version %d", raw[4])
	}

	flags := raw[5]
	hdr := PageHeader{
		Continuation:    flags&flagContinuation != 0,
		BeginOfStream:   flags&flagBeginOfStream != 0,
		EndOfStream:     flags&flagEndOfStream != 0,
		GranulePosition: binary.LittleEndian.Uint64(raw[6:14]),
		Serial:          binary.LittleEndian.Uint32(raw[14:18]),
		Sequence:        binary.LittleEndian.Uint32(raw[18:22]),
		SegmentsCount:   raw[26],
	}
	storedCRC := binary.LittleEndian.Uint32(raw[22:26])

	segments, err := format.ReadChunk(lower, int(hdr.SegmentsCount))
	if err != nil {
		return PageHeader{}, nil, nil, false, errors.Wrap(err, "ogg: reading segment table")
	}
	if len(segments) != int(hdr.SegmentsCount) {
		return PageHeader{}, nil, nil, false, errors.Wrap(ovformat.ErrShortRead, "ogg: short segment table")
	}

	payloadLen := 0
	for _, s := range segments {
		payloadLen += int(s)
	}
	payload, err := format.ReadChunk(lower, payloadLen)
	if err != nil {
		return PageHeader{}, nil, nil, false, errors.Wrap(err, "ogg: reading page payload")
	}
	if len(payload) != payloadLen {
		return PageHeader{}, nil, nil, false, errors.Wrap(ovformat.ErrShortRead, "ogg: short page payload")
	}

	check := make([]byte, 0, pageHeaderLen+len(segments)+len(payload))
	check = append(check, raw...)
	check[crcFieldOffset], check[crcFieldOffset+1], check[crcFieldOffset+2], check[crcFieldOffset+3] = 0, 0, 0, 0
	check = append(check, segments...)
	check = append(check, payload...)
	if crc32Ogg(check) != storedCRC {
		return PageHeader{}, nil, nil, false, errors.Wrap(ovformat.ErrIntegrity, "ogg: page crc mismatch")
	}

	return hdr, segments, payload, true, nil
}

func nextChunk(f *format.Format, _ int) ([]byte, bool, error) {
	st, ok := f.State.(*readState)
	if !ok {
		return nil, false, ovformat.ErrWrongMode
	}
	lower := f.Lower()

	if st.ended {
		return nil, false, nil
	}

	var out []byte
	for {
		if st.segIdx >= len(st.curSegments) {
			if st.pendingEOS {
				st.ended = true
				return out, false, nil
			}
			for {
				hdr, segments, payload, ok, err := readRawPage(lower)
				if err != nil {
					return out, format.HasMoreData(lower), err
				}
				if !ok {
					st.ended = true
					return out, false, nil
				}

				if st.forcedSerial != nil {
					if !st.locked {
						if !hdr.BeginOfStream || hdr.Serial != *st.forcedSerial {
							continue
						}
						st.locked = true
						st.activeSerial = hdr.Serial
					} else if hdr.Serial != st.activeSerial {
						continue
					}
				} else {
					if !st.locked {
						st.locked = true
						st.activeSerial = hdr.Serial
					} else if hdr.Serial != st.activeSerial {
						continue
					}
				}

				st.curSegments = segments
				st.curPayload = payload
				st.segIdx = 0
				st.payloadPos = 0
				st.pendingEOS = hdr.EndOfStream
				break
			}
			if len(st.curSegments) == 0 {
				// page carried no segments (e.g. a lone EOS marker page)
				if st.pendingEOS {
					st.ended = true
					return out, false, nil
				}
				continue
			}
		}

		segLen := int(st.curSegments[st.segIdx])
		out = append(out, st.curPayload[st.payloadPos:st.payloadPos+segLen]...)
		st.payloadPos += segLen
		st.segIdx++
		if segLen < maxSegmentByte {
			break
		}
	}

	if st.pendingEOS && st.segIdx >= len(st.curSegments) {
		st.ended = true
	}
	return out, !st.ended, nil
}
