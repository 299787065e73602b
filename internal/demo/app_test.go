package demo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/hostbridge/internal/hostloop"
	"github.com/go-drift/hostbridge/pkg/bridge"
	"github.com/go-drift/hostbridge/pkg/host"
)

func snapshot(t *testing.T, rt *bridge.Runtime, w *host.World) bridge.Snapshot {
	t.Helper()
	var snap bridge.Snapshot
	require.NoError(t, rt.Cell().Scope(w, func() error {
		snap = rt.Snapshot()
		return nil
	}))
	return snap
}

func TestApp_ShowsFrameCounter(t *testing.T) {
	w := host.NewWorld()
	Setup(w)
	rt := bridge.New()
	id, err := rt.Mount(w, App)
	require.NoError(t, err)

	snap := snapshot(t, rt, w)
	require.Len(t, snap.Roots, 1)
	assert.Contains(t, snap.Roots[0].Tree, `panel title="hostbridge"`)
	assert.Contains(t, snap.Roots[0].Tree, `"0"`)

	loop := &hostloop.Loop{World: w, Runtime: rt, Interval: time.Millisecond, Count: 3, Step: Step}
	assert.Equal(t, 3, loop.Run(context.Background()))

	snap = snapshot(t, rt, w)
	assert.Contains(t, snap.Roots[0].Tree, `"3"`)
	assert.NotContains(t, snap.Roots[0].Tree, `"0"`)
	assert.Equal(t, uint64(3), snap.Tick)

	require.NoError(t, rt.Unmount(w, id))
	for _, e := range w.Roots() {
		_, ok := w.Component(e, SessionComponent)
		assert.False(t, ok, "session entity despawned with the root")
	}
}

func TestStep_AdvancesVersion(t *testing.T) {
	w := host.NewWorld()
	Setup(w)
	before, _ := w.ResourceVersion(FrameResource)
	Step(w)
	after, _ := w.ResourceVersion(FrameResource)
	v, _ := w.Resource(FrameResource)

	assert.Equal(t, before+1, after)
	assert.Equal(t, uint64(1), v)
}
