package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skyfare/flightsearch/internal/adapters"
	"github.com/skyfare/flightsearch/internal/adapters/synthetic"
	"github.com/skyfare/flightsearch/internal/cache"
	"github.com/skyfare/flightsearch/internal/clock/system"
	"github.com/skyfare/flightsearch/internal/config"
	"github.com/skyfare/flightsearch/internal/notify"
	"github.com/skyfare/flightsearch/internal/orchestrator"
	"github.com/skyfare/flightsearch/internal/tracker"
)

type seqIDGen struct {
	n atomic.Int64
}

func (g *seqIDGen) NewID() (string, error) {
	return fmt.Sprintf("search-%d", g.n.Add(1)), nil
}

func newTestServer(t *testing.T, cfg config.Config) *httptest.Server {
	t.Helper()
	clk := system.New()
	registry := adapters.NewRegistry(zap.NewNop())
	require.NoError(t, registry.Register(synthetic.New("alpha", synthetic.Config{Seed: 1})))
	require.NoError(t, registry.Register(synthetic.New("beta", synthetic.Config{Seed: 2})))

	publisher := notify.NewPublisher(notify.Config{})
	t.Cleanup(publisher.Close)

	orch := orchestrator.New(
		registry,
		tracker.New(clk),
		cache.New(cache.Config{}, clk),
		publisher,
		nil,
		nil,
		clk,
		&seqIDGen{},
		orchestrator.Options{},
		zap.NewNop(),
	)

	srv := httptest.NewServer(NewServer(orch, publisher, nil, cfg, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func validSearchPayload() map[string]any {
	return map[string]any{
		"origin":         "CGK",
		"destination":    "DPS",
		"departure_date": "2026-04-01",
		"passengers":     2,
	}
}

// TestSubmitSearch verifies the synchronous search endpoint returns merged
// results from every registered source.
func TestSubmitSearch(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, config.Config{})
	resp, body := postJSON(t, srv.URL+"/v1/searches", validSearchPayload())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NotEmpty(t, body["search_id"])
	require.False(t, body["cached"].(bool))
	require.Positive(t, body["total_results"].(float64))
	require.Len(t, body["sources"], 2)
}

// TestSubmitSearchValidation verifies structural failures map to 400 with
// an error message.
func TestSubmitSearchValidation(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, config.Config{})

	payload := validSearchPayload()
	payload["passengers"] = 0
	resp, body := postJSON(t, srv.URL+"/v1/searches", payload)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body["error"], "passengers")

	payload = validSearchPayload()
	payload["departure_date"] = "01/04/2026"
	resp, body = postJSON(t, srv.URL+"/v1/searches", payload)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body["error"], "departure_date")

	payload = validSearchPayload()
	payload["sources"] = []string{"ghost"}
	resp, _ = postJSON(t, srv.URL+"/v1/searches", payload)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestFilterAndSortEndpoints verifies the cache-backed refinement flow over
// HTTP.
func TestFilterAndSortEndpoints(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, config.Config{})
	_, search := postJSON(t, srv.URL+"/v1/searches", validSearchPayload())
	searchID := search["search_id"].(string)
	total := int(search["total_results"].(float64))

	resp, filtered := postJSON(t, srv.URL+"/v1/searches/"+searchID+"/filter",
		map[string]any{"max_stops": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, filtered["cached"].(bool))
	require.LessOrEqual(t, int(filtered["total_results"].(float64)), total)

	resp, sorted := postJSON(t, srv.URL+"/v1/searches/"+searchID+"/sort",
		map[string]any{"sort_by": "duration", "sort_order": "desc"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, sorted["cached"].(bool))
	require.Equal(t, filtered["total_results"], sorted["total_results"])

	resp, _ = postJSON(t, srv.URL+"/v1/searches/"+searchID+"/sort",
		map[string]any{"sort_by": "altitude"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = postJSON(t, srv.URL+"/v1/searches/ghost/filter", map[string]any{})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// TestProgressEndpoint verifies progress reads for finished and unknown
// searches.
func TestProgressEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, config.Config{})
	_, search := postJSON(t, srv.URL+"/v1/searches", validSearchPayload())
	searchID := search["search_id"].(string)

	resp, err := http.Get(srv.URL + "/v1/searches/" + searchID + "/progress")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var progress map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&progress))
	require.Equal(t, "completed", progress["status"])
	require.EqualValues(t, 1, progress["fraction"])

	missing, err := http.Get(srv.URL + "/v1/searches/ghost/progress")
	require.NoError(t, err)
	defer missing.Body.Close()
	require.Equal(t, http.StatusNotFound, missing.StatusCode)
}

// TestCancelEndpoint verifies cancelling a terminal search reports false.
func TestCancelEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, config.Config{})
	_, search := postJSON(t, srv.URL+"/v1/searches", validSearchPayload())
	searchID := search["search_id"].(string)

	resp, body := postJSON(t, srv.URL+"/v1/searches/"+searchID+"/cancel", map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.False(t, body["cancelled"].(bool))
}

// TestDeleteEndpoint verifies explicit cleanup of a finished search and
// the 404 on the follow-up progress read.
func TestDeleteEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, config.Config{})
	_, search := postJSON(t, srv.URL+"/v1/searches", validSearchPayload())
	searchID := search["search_id"].(string)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/searches/"+searchID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.DefaultClient.Do(req.Clone(req.Context()))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	getResp, err := http.Get(srv.URL + "/v1/searches/" + searchID + "/progress")
	require.NoError(t, err)
	require.NoError(t, getResp.Body.Close())
	require.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

// TestHealthEndpoints verifies the liveness, readiness, and service health
// surfaces.
func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, config.Config{})
	for _, path := range []string{"/healthz", "/readyz", "/v1/health"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		_ = resp.Body.Close()
	}
}

// TestAPIKeyMiddleware verifies requests without the configured key are
// rejected.
func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "sesame"
	srv := newTestServer(t, cfg)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "sesame")
	authed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = authed.Body.Close()
	require.Equal(t, http.StatusOK, authed.StatusCode)
}

// TestListActiveSearches verifies the active listing is empty once every
// search has finished.
func TestListActiveSearches(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, config.Config{})
	postJSON(t, srv.URL+"/v1/searches", validSearchPayload())

	resp, err := http.Get(srv.URL + "/v1/searches")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Empty(t, body["searches"])
}
