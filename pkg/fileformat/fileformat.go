// Package fileformat implements the file-format registry layered above
// pkg/format's name registry: extension- and MIME-aware metadata keyed
// on a filename, plus a JSON-driven bulk loader. Grounded on the same
// read-mostly/registration-at-startup model as pkg/format's Registry,
// enriched with the path-parsing and schema-validation rules spec.md
// §4.4 describes.
package fileformat

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pion/logging"
	"github.com/pkg/errors"

	ovformat "github.com/openvocs/ovformat"
	"github.com/openvocs/ovformat/pkg/format"
	"github.com/openvocs/ovformat/pkg/source"
)

// Parameter is the value object shared (non-owning) between the name and
// extension maps: the registered format name plus its MIME description.
// The handler itself is held by the embedded format.Registry.
type Parameter struct {
	Name string
	MIME string
}

// Descriptor is the result of parsing a filename: the lowercased
// extension components in right-to-left order (Ext[len(Ext)-1] is always
// ""), and the file's byte length (-1 if it could not be stat'd).
type Descriptor struct {
	Ext   []string
	Bytes int64
}

// Registry maps format names and file extensions (both lowercase) to a
// shared Parameter, and owns an embedded format.Registry for the
// underlying handler chain.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*Parameter
	byExt   map[string]*Parameter
	formats *format.Registry

	log logging.LeveledLogger
}

// Option configures a Registry at construction.
type Option func(*Registry)

// WithLoggerFactory injects a logging.LoggerFactory for the registry's
// diagnostic logger.
func WithLoggerFactory(lf logging.LoggerFactory) Option {
	return func(r *Registry) { r.log = lf.NewLogger("ovformat.fileformat.registry") }
}

// NewRegistry constructs an empty Registry, creating its embedded
// format.Registry eagerly (unlike pkg/format's lazily-created default
// registry, since every fileformat.Registry is explicitly constructed by
// a caller, never accessed through a process-wide singleton).
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		byName:  make(map[string]*Parameter),
		byExt:   make(map[string]*Parameter),
		formats: format.NewRegistry(),
	}
	for _, apply := range opts {
		apply(r)
	}
	if r.log == nil {
		r.log = logging.NewDefaultLoggerFactory().NewLogger("ovformat.fileformat.registry")
	}
	return r
}

// Formats returns the embedded format.Registry backing this registry's
// handler chain, for stacking a format with fileformat.As.
func (r *Registry) Formats() *format.Registry { return r.formats }

func normalize(s string) string { return strings.ToLower(s) }

// Register associates name with mime and handler in the embedded format
// registry (overriding any previously registered handler of that name),
// then shares one Parameter value into both the name map and, for every
// extension that does not start with a dot, the extension map.
// Duplicate extensions override the previous owner.
func (r *Registry) Register(name, mime string, handler format.Handler, extensions []string) error {
	if name == "" {
		return ovformat.ErrInvalidArgument
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalize(name)
	r.formats.Unregister(key) // override semantics: Register alone rejects duplicates
	if err := r.formats.Register(key, handler); err != nil {
		return err
	}

	param := &Parameter{Name: name, MIME: mime}
	r.byName[key] = param
	for _, ext := range extensions {
		if strings.HasPrefix(ext, ".") {
			continue
		}
		r.byExt[normalize(ext)] = param
	}
	r.log.Debugf("registered file format %q (%d extensions)", key, len(extensions))
	return nil
}

// Get returns the Parameter registered under name.
func (r *Registry) Get(name string) (Parameter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[normalize(name)]
	if !ok {
		return Parameter{}, false
	}
	return *p, true
}

// GetExt returns the Parameter registered for extension.
func (r *Registry) GetExt(ext string) (Parameter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byExt[normalize(ext)]
	if !ok {
		return Parameter{}, false
	}
	return *p, true
}

// As looks up the handler registered for name and stacks it over lower,
// mirroring pkg/format.As but sourced from this registry's embedded
// format.Registry.
func (r *Registry) As(lower *format.Format, name string, options any) (*format.Format, error) {
	return format.As(lower, name, options, r.formats)
}

/* -----------------------------------------------------------------------
   path parsing
----------------------------------------------------------------------- */

// DescFromPath parses the filename component of path right-to-left,
// splitting on '.'. Ext[0] is the last extension, lowercased; a leading
// dot on the filename, or two consecutive dots, terminates parsing early
// (spec.md §4.4). Bytes is the file's length from stat, or -1 if it
// could not be read.
func DescFromPath(path string) Descriptor {
	base := filepath.Base(path)

	var ext []string
	if base == "" || base == "." || base[0] == '.' {
		ext = []string{""}
	} else {
		rest := base
		for {
			idx := strings.LastIndexByte(rest, '.')
			if idx <= 0 {
				break
			}
			if rest[idx-1] == '.' {
				break // two consecutive dots terminate parsing
			}
			ext = append(ext, normalize(rest[idx+1:]))
			rest = rest[:idx]
		}
		ext = append(ext, "")
	}

	bytes := int64(-1)
	if info, err := os.Stat(path); err == nil {
		bytes = info.Size()
	}
	return Descriptor{Ext: ext, Bytes: bytes}
}

// FormatDesc parses path with DescFromPath and looks up the MIME type
// for its last extension; an unrecognized extension yields an empty
// MIME string in an otherwise valid Descriptor, not an error.
func (r *Registry) FormatDesc(path string) (Descriptor, string) {
	desc := DescFromPath(path)
	mime := ""
	if len(desc.Ext) > 0 {
		if p, ok := r.GetExt(desc.Ext[0]); ok {
			mime = p.MIME
		}
	}
	return desc, mime
}

/* -----------------------------------------------------------------------
   JSON bulk registration
----------------------------------------------------------------------- */

// RegisterFromJSONPath reads every file in directory whose extension
// matches ext (default "json") as a JSON object of
// {format_name: {mime: string, extension: [string, ...]}} entries, each
// value an object of exactly those two keys, and registers each entry
// with a zero-value handler (the bulk loader carries metadata only; a
// real decoder is wired in separately via Register). Any malformed file
// fails the whole call; entries registered from files processed before
// the failure remain registered.
func (r *Registry) RegisterFromJSONPath(directory, ext string) error {
	if ext == "" {
		ext = "json"
	}
	wantSuffix := "." + strings.ToLower(strings.TrimPrefix(ext, "."))

	entries, err := os.ReadDir(directory)
	if err != nil {
		return errors.Wrap(err, "fileformat: reading directory")
	}

	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(strings.ToLower(de.Name()), wantSuffix) {
			continue
		}
		path := filepath.Join(directory, de.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "fileformat: reading %s", path)
		}
		if err := r.registerJSONDocument(data); err != nil {
			return errors.Wrapf(err, "fileformat: %s", path)
		}
	}
	return nil
}

func (r *Registry) registerJSONDocument(data []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return errors.Wrap(err, "invalid top-level JSON object")
	}

	for name, raw := range top {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return errors.Wrapf(err, "entry %q: not an object", name)
		}
		if len(fields) != 2 {
			return errors.Errorf("entry %q: expected exactly {mime, extension}, got %d keys", name, len(fields))
		}
		mimeRaw, ok := fields["mime"]
		if !ok {
			return errors.Errorf("entry %q: missing %q", name, "mime")
		}
		extRaw, ok := fields["extension"]
		if !ok {
			return errors.Errorf("entry %q: missing %q", name, "extension")
		}

		var mime string
		if err := json.Unmarshal(mimeRaw, &mime); err != nil {
			return errors.Wrapf(err, "entry %q: %q must be a string", name, "mime")
		}
		var extensions []string
		if err := json.Unmarshal(extRaw, &extensions); err != nil {
			return errors.Wrapf(err, "entry %q: %q must be a string array", name, "extension")
		}

		if err := r.Register(name, mime, format.Handler{}, extensions); err != nil {
			return errors.Wrapf(err, "entry %q", name)
		}
	}
	return nil
}

/* -----------------------------------------------------------------------
   UTF-8 validation
----------------------------------------------------------------------- */

// UTF8Validate memory-maps path (via pkg/source's File reader) and
// reports whether its full byte sequence is valid UTF-8.
func UTF8Validate(path string) (bool, error) {
	src, err := source.Open(path, ovformat.ModeRead)
	if err != nil {
		return false, errors.Wrap(err, "fileformat: opening path")
	}
	defer src.Close()

	raw, _, err := src.NextChunk(0)
	if err != nil {
		return false, errors.Wrap(err, "fileformat: reading path")
	}
	return utf8.Valid(raw), nil
}
