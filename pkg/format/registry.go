package format

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/logging"

	ovformat "github.com/openvocs/ovformat"
)

// MaxTypeNameLength is the longest name Register accepts, matching
// spec.md §4.3 ("Name length >20 is rejected").
const MaxTypeNameLength = 20

// Registry maps a lowercase type name to a Handler. Registration is
// expected at startup/teardown; concurrent lookups (Get/As/Lookup) are
// safe, concurrent mutation is not (spec.md §5).
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler

	// id is a debugging/correlation handle surfaced only through log
	// fields, not through any exported accessor that callers would
	// reasonably depend on.
	id  string
	log logging.LeveledLogger
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistryOption configures registry construction.
type DefaultRegistryOption func(*Registry)

// WithRegistryLoggerFactory injects a logging.LoggerFactory for a
// registry's diagnostic logger.
func WithRegistryLoggerFactory(lf logging.LoggerFactory) DefaultRegistryOption {
	return func(r *Registry) { r.log = lf.NewLogger("ovformat.format.registry") }
}

// NewRegistry constructs a private, empty registry.
func NewRegistry(opts ...DefaultRegistryOption) *Registry {
	r := &Registry{
		handlers: make(map[string]Handler),
		id:       uuid.NewString(),
	}
	for _, apply := range opts {
		apply(r)
	}
	if r.log == nil {
		r.log = logging.NewDefaultLoggerFactory().NewLogger("ovformat.format.registry")
	}
	return r
}

// DefaultRegistry returns the process-wide registry, creating it (empty,
// not pre-populated) on first use.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

func normalizeName(typeName string) string {
	return strings.ToLower(typeName)
}

// Register stores a copy of handler under typeName. It rejects names
// longer than MaxTypeNameLength, duplicate names, and a handler that sets
// CreateData without FreeData.
func (r *Registry) Register(typeName string, handler Handler) error {
	if typeName == "" || len(typeName) > MaxTypeNameLength {
		return ovformat.ErrRegistrationConflict
	}
	if handler.CreateData != nil && handler.FreeData == nil {
		return ovformat.ErrInvalidArgument
	}

	key := normalizeName(typeName)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[key]; exists {
		return ovformat.ErrRegistrationConflict
	}
	r.handlers[key] = handler
	r.log.Debugf("registered format %q (registry %s)", key, r.id)
	return nil
}

// Unregister removes typeName, optionally returning the handler that was
// registered for it.
func (r *Registry) Unregister(typeName string) (Handler, bool) {
	key := normalizeName(typeName)

	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handlers[key]
	if ok {
		delete(r.handlers, key)
	}
	return h, ok
}

// Clear removes every registered handler. Clearing a nil Registry (the
// default registry before first use) is a no-op.
func (r *Registry) Clear() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[string]Handler)
}

// Lookup returns the handler registered for typeName.
func (r *Registry) Lookup(typeName string) (Handler, bool) {
	key := normalizeName(typeName)

	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[key]
	return h, ok
}

// As looks up typeName in reg (the default registry if reg is nil) and
// wraps lower with it.
func As(lower *Format, typeName string, options any, reg *Registry) (*Format, error) {
	if reg == nil {
		reg = DefaultRegistry()
	}
	handler, ok := reg.Lookup(typeName)
	if !ok {
		return nil, ovformat.ErrNotFound
	}
	return Wrap(lower, typeName, handler, options)
}
