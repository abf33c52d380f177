package format_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ovformat "github.com/openvocs/ovformat"
	"github.com/openvocs/ovformat/pkg/format"
)

func TestRegistryRejectsDuplicateAndOverlongNames(t *testing.T) {
	reg := format.NewRegistry()
	require.NoError(t, reg.Register("alpha", format.Handler{}))
	require.ErrorIs(t, reg.Register("alpha", format.Handler{}), ovformat.ErrRegistrationConflict)
	require.ErrorIs(t, reg.Register("a-name-over-twenty-chars-long", format.Handler{}), ovformat.ErrRegistrationConflict)
}

func TestRegistryRejectsCreateDataWithoutFreeData(t *testing.T) {
	reg := format.NewRegistry()
	err := reg.Register("broken", format.Handler{
		CreateData: func(*format.Format, any) (any, error) { return nil, nil },
	})
	require.ErrorIs(t, err, ovformat.ErrInvalidArgument)
}

func TestRegistryUnregisterThenReregister(t *testing.T) {
	reg := format.NewRegistry()
	require.NoError(t, reg.Register("alpha", format.Handler{}))
	h, ok := reg.Unregister("alpha")
	require.True(t, ok)
	require.NoError(t, reg.Register("alpha", h))
}

// TestConcurrentLookup covers spec.md §5/§8 invariant 10: concurrent
// Lookup calls against a shared registry must not race or corrupt state.
func TestConcurrentLookup(t *testing.T) {
	reg := format.NewRegistry()
	require.NoError(t, reg.Register("alpha", format.Handler{}))
	require.NoError(t, reg.Register("beta", format.Handler{}))

	deadline := time.Now().Add(500 * time.Millisecond)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			name := "alpha"
			if id%2 == 0 {
				name = "beta"
			}
			for time.Now().Before(deadline) {
				_, _ = reg.Lookup(name)
			}
		}(i)
	}
	wg.Wait()
}

func TestDefaultRegistryIsLazilyCreatedSingleton(t *testing.T) {
	require.Same(t, format.DefaultRegistry(), format.DefaultRegistry())
}
