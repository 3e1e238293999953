package engine

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doRequest(t *testing.T, srv *httptest.Server, method, path, body string, header map[string]string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var out map[string]any
	if method != http.MethodHead {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}

	return resp, out
}

func TestFakeCluster_Info(t *testing.T) {
	srv := httptest.NewServer(NewFakeCluster(FakeClusterOptions{ClusterName: "unit"}))
	defer srv.Close()

	resp, body := doRequest(t, srv, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Elasticsearch", resp.Header.Get("X-Elastic-Product"))
	assert.Equal(t, "unit", body["cluster_name"])

	version, ok := body["version"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, clusterVersion, version["number"])
}

func TestFakeCluster_CannedResponses(t *testing.T) {
	srv := httptest.NewServer(NewFakeCluster(FakeClusterOptions{}))
	defer srv.Close()

	tests := []struct {
		name      string
		method    string
		path      string
		body      string
		status    int
		operation string
		key       string
	}{
		{"search", http.MethodPost, "/logs/_search", `{"query":{"match_all":{}}}`, http.StatusOK, "Search", "hits"},
		{"count", http.MethodGet, "/logs/_count", "", http.StatusOK, "Count", "count"},
		{"get doc", http.MethodGet, "/logs/_doc/7", "", http.StatusOK, "DocumentGet", "found"},
		{"index doc", http.MethodPut, "/logs/_doc/7", `{"msg":"hi"}`, http.StatusCreated, "DocumentIndex", "result"},
		{"bulk", http.MethodPost, "/_bulk", "{\"index\":{}}\n{}\n", http.StatusOK, "Bulk", "items"},
		{"fallback", http.MethodPut, "/logs", `{}`, http.StatusOK, "IndexCreate", "acknowledged"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doRequest(t, srv, tt.method, tt.path, tt.body, nil)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.operation, resp.Header.Get("X-Es-Sim-Operation"))
			assert.Contains(t, body, tt.key)
		})
	}
}

func TestFakeCluster_DocumentIDs(t *testing.T) {
	srv := httptest.NewServer(NewFakeCluster(FakeClusterOptions{}))
	defer srv.Close()

	_, body := doRequest(t, srv, http.MethodGet, "/orders/_doc/abc", "", nil)
	assert.Equal(t, "orders", body["_index"])
	assert.Equal(t, "abc", body["_id"])

	_, body = doRequest(t, srv, http.MethodPut, "/logs-2026.10.19-production/_doc/7", `{}`, nil)
	assert.Equal(t, "logs-2026.10.19-production", body["_index"])
	assert.Equal(t, "7", body["_id"])
}

func TestFakeCluster_SearchHitsUseRawIndex(t *testing.T) {
	srv := httptest.NewServer(NewFakeCluster(FakeClusterOptions{}))
	defer srv.Close()

	_, body := doRequest(t, srv, http.MethodPost, "/logs-2026.10.19/_search", `{}`, nil)

	hits, ok := body["hits"].(map[string]any)
	require.True(t, ok)
	list, ok := hits["hits"].([]any)
	require.True(t, ok)
	require.Len(t, list, 1)

	hit, ok := list[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "logs-2026.10.19", hit["_index"])
}

func TestFakeCluster_Unknown(t *testing.T) {
	srv := httptest.NewServer(NewFakeCluster(FakeClusterOptions{}))
	defer srv.Close()

	resp, body := doRequest(t, srv, http.MethodGet, "/logs/_frobnicate", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.EqualValues(t, http.StatusBadRequest, body["status"])

	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "illegal_argument_exception", errBody["type"])
}

func TestFakeCluster_Head(t *testing.T) {
	srv := httptest.NewServer(NewFakeCluster(FakeClusterOptions{}))
	defer srv.Close()

	resp, _ := doRequest(t, srv, http.MethodHead, "/", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doRequest(t, srv, http.MethodHead, "/logs", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "IndexExists", resp.Header.Get("X-Es-Sim-Operation"))
}

func TestFakeCluster_SimulatedFailure(t *testing.T) {
	srv := httptest.NewServer(NewFakeCluster(FakeClusterOptions{}))
	defer srv.Close()

	resp, body := doRequest(t, srv, http.MethodPost, "/logs/_search", `{}`, map[string]string{
		HeaderSimStatus:  "503",
		HeaderSimLatency: "1ms",
	})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "Elasticsearch", resp.Header.Get("X-Elastic-Product"))

	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "simulated_failure_exception", errBody["type"])
}

func TestFakeCluster_IgnoresInvalidSimHeaders(t *testing.T) {
	srv := httptest.NewServer(NewFakeCluster(FakeClusterOptions{}))
	defer srv.Close()

	resp, _ := doRequest(t, srv, http.MethodGet, "/logs/_count", "", map[string]string{
		HeaderSimStatus:  "200",
		HeaderSimLatency: "soon",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFakeCluster_RateLimit(t *testing.T) {
	srv := httptest.NewServer(NewFakeCluster(FakeClusterOptions{RateLimit: 1}))
	defer srv.Close()

	limited := 0
	for range 5 {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/logs/_count", nil)
		require.NoError(t, err)
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Positive(t, limited)
}
