package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"routelistener-go/pkg/capture"
	"routelistener-go/pkg/config"
	"routelistener-go/pkg/metrics"
	"routelistener-go/pkg/route"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopConfigurer struct{}

func (nopConfigurer) Configure(route.Key) route.Result { return route.Result{OK: true} }

func newTestServer(t *testing.T, rec metrics.Recorder) (*Server, *route.Store) {
	t.Helper()
	cfg := &config.Config{Interface: "eth0"}
	store := route.NewStore()
	listener := capture.NewListener(cfg, store, nopConfigurer{}, rec, zerolog.Nop())
	return NewServer(cfg, store, listener, rec, zerolog.Nop()), store
}

func TestStatusEndpoint(t *testing.T) {
	server, store := newTestServer(t, metrics.NewNoopRecorder())
	store.RecordPending(route.Key{
		Prefix: netip.MustParsePrefix("fd00::/64"),
		Router: netip.MustParseAddr("fe80::1"),
	})

	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Interface string `json:"interface"`
		State     string `json:"state"`
		Routes    int    `json:"routes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "eth0", body.Interface)
	assert.Equal(t, "idle", body.State)
	assert.Equal(t, 1, body.Routes)
}

func TestRoutesEndpoint(t *testing.T) {
	server, store := newTestServer(t, metrics.NewNoopRecorder())

	key := route.Key{
		Prefix: netip.MustParsePrefix("fd00:1234:5678::/64"),
		Router: netip.MustParseAddr("fe80::1"),
	}
	store.RecordPending(key)
	require.NoError(t, store.MarkConfigured(key))

	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/routes")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body []struct {
		Prefix string `json:"prefix"`
		Router string `json:"router"`
		State  string `json:"state"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body, 1)
	assert.Equal(t, "fd00:1234:5678::/64", body[0].Prefix)
	assert.Equal(t, "fe80::1", body[0].Router)
	assert.Equal(t, "configured", body[0].State)
}

func TestMetricsEndpointOnlyWithBackend(t *testing.T) {
	server, _ := newTestServer(t, metrics.NewNoopRecorder())
	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	promServer, _ := newTestServer(t, metrics.NewPrometheusRecorder())
	promTS := httptest.NewServer(promServer.Router())
	defer promTS.Close()

	resp, err = http.Get(promTS.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
