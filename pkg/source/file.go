package source

import (
	"io"
	"os"

	"github.com/pion/logging"
	"golang.org/x/sys/unix"

	ovformat "github.com/openvocs/ovformat"
)

// File is a byte source backed by a file on disk. ModeRead maps the file
// into memory for zero-copy delivery; ModeWrite truncates (or creates)
// the file and writes through the descriptor.
type File struct {
	mode Mode
	log  logging.LeveledLogger

	f *os.File

	// read mode
	mapped  []byte
	pos     int
	isMmap  bool

	// write mode
	written int64
	tracker *int
}

// Open constructs a File source for path in the given mode.
func Open(path string, mode ovformat.Mode, opts ...Option) (*File, error) {
	o := resolveOptions(opts)
	fs := &File{mode: mode, log: o.loggerFactory.NewLogger("ovformat.source.file")}

	switch mode {
	case ovformat.ModeRead:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		size := info.Size()
		if size == 0 {
			fs.f = f
			fs.mapped = []byte{}
			return fs, nil
		}
		mapped, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
		if err != nil {
			f.Close()
			return nil, err
		}
		fs.f = f
		fs.mapped = mapped
		fs.isMmap = true
		return fs, nil

	case ovformat.ModeWrite:
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, err
		}
		fs.f = f
		return fs, nil

	default:
		return nil, ovformat.ErrInvalidArgument
	}
}

// Mode implements Source.
func (fs *File) Mode() ovformat.Mode { return fs.mode }

// NextChunk implements Source.
func (fs *File) NextChunk(requested int) ([]byte, bool, error) {
	if fs.mode != ovformat.ModeRead {
		return nil, false, ovformat.ErrWrongMode
	}
	remaining := len(fs.mapped) - fs.pos
	if remaining < 0 {
		remaining = 0
	}
	n := remaining
	if requested > 0 && requested < remaining {
		n = requested
	}
	chunk := fs.mapped[fs.pos : fs.pos+n]
	fs.pos += n
	return chunk, fs.pos < len(fs.mapped), nil
}

// HasMoreData implements Source.
func (fs *File) HasMoreData() bool {
	if fs.mode == ovformat.ModeRead {
		return fs.pos < len(fs.mapped)
	}
	return false
}

// WriteChunk implements Source.
func (fs *File) WriteChunk(buf []byte) (int, error) {
	if fs.mode != ovformat.ModeWrite {
		return 0, ovformat.ErrWrongMode
	}
	n, err := fs.f.Write(buf)
	fs.written += int64(n)
	fs.updateTracker()
	if err != nil {
		return n, err
	}
	if n < len(buf) {
		return n, ovformat.ErrShortWrite
	}
	return n, nil
}

// Overwrite implements Source.
func (fs *File) Overwrite(offset int64, buf []byte) (int, error) {
	if fs.mode != ovformat.ModeWrite {
		return 0, ovformat.ErrWrongMode
	}
	if offset < 0 || offset+int64(len(buf)) > fs.written {
		return 0, ovformat.ErrInvalidArgument
	}
	end, err := fs.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	if _, err := fs.f.WriteAt(buf, offset); err != nil {
		return 0, err
	}
	if _, err := fs.f.Seek(end, io.SeekStart); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// Memory implements Source. For a File this reads the whole written
// region back from disk (no mapping is kept live for the write path).
func (fs *File) Memory() ([]byte, error) {
	if fs.mode != ovformat.ModeWrite {
		return nil, ovformat.ErrWrongMode
	}
	buf := make([]byte, fs.written)
	if _, err := fs.f.ReadAt(buf, 0); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close implements Source.
func (fs *File) Close() error {
	if fs.isMmap {
		if err := unix.Munmap(fs.mapped); err != nil {
			fs.f.Close()
			return err
		}
		fs.isMmap = false
	}
	return fs.f.Close()
}

func (fs *File) updateTracker() {
	if fs.tracker != nil {
		*fs.tracker = int(fs.written)
	}
}
