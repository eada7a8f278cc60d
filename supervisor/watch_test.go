package supervisor_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/supervisor/messaging"
	"github.com/tailored-agentic-units/supervisor/observability"
	"github.com/tailored-agentic-units/supervisor/observability/observabilitytest"
	"github.com/tailored-agentic-units/supervisor/supervisor"
	"github.com/tailored-agentic-units/supervisor/tracker"
)

const watchedEnabled = `name: watched
observer: noop
units:
  - id: app
    desired: ENABLED
`

const watchedDisabled = `name: watched
observer: noop
units:
  - id: app
    desired: DISABLED
`

func TestSupervisor_WatchAppliesChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "units.yaml")
	require.NoError(t, os.WriteFile(path, []byte(watchedEnabled), 0o644))

	cfg, err := supervisor.LoadConfig(path)
	require.NoError(t, err)

	rec := observabilitytest.NewRecorder()
	s := newSupervisor(t, *cfg,
		supervisor.WithObserver(rec),
		supervisor.WithDebounce(10*time.Millisecond),
	)
	require.NoError(t, s.Start(waitCtx(t)))

	_, err = s.Tracker().Wait(waitCtx(t), tracker.UnitIn("app", messaging.StateStarted))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	watched := make(chan error, 1)
	go func() { watched <- s.Watch(ctx, path) }()

	// Give the watcher time to register before the file changes.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(watchedDisabled), 0o644))

	_, err = s.Tracker().Wait(waitCtx(t), tracker.UnitIn("app", messaging.StateStopped))
	require.NoError(t, err)

	cancel()
	select {
	case err := <-watched:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}

	assert.NotEmpty(t, rec.OfType(supervisor.EventReload))
}

func TestSupervisor_WatchRejectsInvalidReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "units.yaml")
	require.NoError(t, os.WriteFile(path, []byte(watchedEnabled), 0o644))

	cfg, err := supervisor.LoadConfig(path)
	require.NoError(t, err)

	rec := observabilitytest.NewRecorder()
	s := newSupervisor(t, *cfg,
		supervisor.WithObserver(rec),
		supervisor.WithDebounce(10*time.Millisecond),
	)
	require.NoError(t, s.Start(waitCtx(t)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Watch(ctx, path) }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("units: []\n"), 0o644))

	require.Eventually(t, func() bool {
		for _, ev := range rec.OfType(supervisor.EventReload) {
			if ev.Level == observability.LevelWarning {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	view, ok := s.Snapshot().Unit("app")
	require.True(t, ok)
	assert.Equal(t, messaging.DesiredEnabled, view.DesiredState())
}

func TestSupervisor_WatchMissingDirectory(t *testing.T) {
	s := newSupervisor(t, demoConfig())
	err := s.Watch(context.Background(), filepath.Join(t.TempDir(), "missing", "units.yaml"))
	assert.Error(t, err)
}
