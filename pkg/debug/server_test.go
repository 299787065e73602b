package debug

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/hostbridge/pkg/bridge"
	"github.com/go-drift/hostbridge/pkg/host"
	"github.com/go-drift/hostbridge/pkg/metrics"
	"github.com/go-drift/hostbridge/pkg/view"
)

func newRuntime(t *testing.T, opts ...bridge.Option) (*bridge.Runtime, *host.World) {
	t.Helper()
	world := host.NewWorld()
	rt := bridge.New(opts...)
	_, err := rt.Mount(world, func(*bridge.Context) view.View {
		return view.El("panel", view.Text("hi"))
	})
	require.NoError(t, err)
	return rt, world
}

// tickUntil ticks rt on the calling goroutine until get returns.
func tickUntil(t *testing.T, rt *bridge.Runtime, world *host.World, get func() *http.Response) *http.Response {
	t.Helper()
	done := make(chan *http.Response, 1)
	go func() { done <- get() }()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case resp := <-done:
			return resp
		case <-deadline:
			t.Fatal("request did not complete")
			return nil
		default:
			_, err := rt.Tick(world)
			require.NoError(t, err)
			time.Sleep(time.Millisecond)
		}
	}
}

func get(t *testing.T, url string) func() *http.Response {
	return func() *http.Response {
		resp, err := http.Get(url)
		if err != nil {
			t.Errorf("GET %s: %v", url, err)
			return nil
		}
		return resp
	}
}

func TestHealth(t *testing.T) {
	rt, _ := newRuntime(t)
	srv := httptest.NewServer(NewHandler(rt))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestTree_AnsweredByNextTick(t *testing.T) {
	rt, world := newRuntime(t)
	srv := httptest.NewServer(NewHandler(rt))
	defer srv.Close()

	resp := tickUntil(t, rt, world, get(t, srv.URL+"/tree"))
	require.NotNil(t, resp)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var snap bridge.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	require.Len(t, snap.Roots, 1)
	assert.Equal(t, "#1 root\n  #2 panel\n    #3 \"hi\"\n", snap.Roots[0].Tree)
	assert.NotEmpty(t, snap.Roots[0].Owner)
}

func TestTree_TimesOutWithoutTick(t *testing.T) {
	rt, _ := newRuntime(t)
	srv := httptest.NewServer(NewHandler(rt, WithTreeTimeout(20*time.Millisecond)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/tree")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)

	shared, _ := rt.Executor().Len()
	assert.Equal(t, 1, shared, "abandoned snapshot task stays queued")
}

func TestTicks_Filters(t *testing.T) {
	rt, world := newRuntime(t)
	for range 5 {
		_, err := rt.Tick(world)
		require.NoError(t, err)
	}
	srv := httptest.NewServer(NewHandler(rt))
	defer srv.Close()

	decode := func(query string) bridge.TickTimeline {
		resp, err := http.Get(srv.URL + "/ticks" + query)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var tl bridge.TickTimeline
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&tl))
		return tl
	}

	all := decode("")
	assert.Len(t, all.Samples, 5)

	last := decode("?limit=2")
	require.Len(t, last.Samples, 2)
	assert.Equal(t, uint64(4), last.Samples[0].Tick)
	assert.Equal(t, uint64(5), last.Samples[1].Tick)

	assert.Empty(t, decode("?failed=true").Samples)
	assert.Empty(t, decode("?min_ms=100000").Samples)
}

func TestMetrics_MountedWhenConfigured(t *testing.T) {
	collector := metrics.New()
	rt, _ := newRuntime(t, bridge.WithMetrics(collector))

	without := httptest.NewServer(NewHandler(rt))
	defer without.Close()
	resp, err := http.Get(without.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	with := httptest.NewServer(NewHandler(rt, WithMetrics(collector.Handler())))
	defer with.Close()
	resp, err = http.Get(with.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "hostbridge_roots_mounted 1")
}

func TestMethodNotAllowed(t *testing.T) {
	rt, _ := newRuntime(t)
	srv := httptest.NewServer(NewHandler(rt))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/health", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_StartStop(t *testing.T) {
	rt, _ := newRuntime(t)
	srv, err := Start("127.0.0.1:0", NewHandler(rt), nil)
	require.NoError(t, err)
	require.NotZero(t, srv.Port())

	resp, err := http.Get(fmt.Sprintf("http://%s/health", srv.Addr()))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, srv.Shutdown(ctx), "second shutdown is a no-op")

	_, err = http.Get(fmt.Sprintf("http://%s/health", srv.Addr()))
	assert.Error(t, err)
}

func TestStart_PortConflict(t *testing.T) {
	rt, _ := newRuntime(t)
	first, err := Start("127.0.0.1:0", NewHandler(rt), nil)
	require.NoError(t, err)
	defer first.Shutdown(context.Background())

	_, err = Start(first.Addr(), NewHandler(rt), nil)
	assert.ErrorContains(t, err, "debug server listen")
}
