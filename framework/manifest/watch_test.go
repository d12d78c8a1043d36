package manifest_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/km-arc/go-container/framework/manifest"
)

func TestWatch_ReloadsOnWrite(t *testing.T) {
	manifest.DebounceDelay = 20 * time.Millisecond

	path := filepath.Join(t.TempDir(), "services.yaml")
	require.NoError(t, os.WriteFile(path, []byte("services:\n  - key: a\n    value: 1\n"), 0o600))

	core, logs := observer.New(zap.DebugLevel)
	ctx, cancel := context.WithCancel(context.Background())

	var (
		mu   sync.Mutex
		seen []*manifest.Manifest
	)
	done := make(chan error, 1)
	go func() {
		done <- manifest.Watch(ctx, path, zap.New(core), func(m *manifest.Manifest) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, m)
		})
	}()

	require.Eventually(t, func() bool {
		return logs.FilterMessage("watching manifest").Len() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// An invalid write is logged and skipped.
	require.NoError(t, os.WriteFile(path, []byte("services:\n  - key: ''\n"), 0o600))
	require.Eventually(t, func() bool {
		return logs.FilterMessage("manifest reload failed").Len() > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("services:\n  - key: b\n    value: 2\n"), 0o600))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1].Services[0].Key == "b"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := manifest.Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "services.yaml"), zap.NewNop(), func(*manifest.Manifest) {})
	assert.Error(t, err)
}
