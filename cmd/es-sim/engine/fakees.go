package engine

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/arloliu/esotx/resolver"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Request headers the engine uses to steer the fake cluster.
const (
	HeaderSimStatus  = "X-Es-Sim-Status"
	HeaderSimLatency = "X-Es-Sim-Latency"
)

const clusterVersion = "7.17.0"

// FakeClusterOptions configures NewFakeCluster.
type FakeClusterOptions struct {
	// ClusterName is reported by the info endpoint.
	ClusterName string
	// RateLimit caps requests per second across all clients; 0 disables it.
	RateLimit int
}

// NewFakeCluster returns a handler that answers Elasticsearch REST calls with
// canned bodies chosen by the resolved operation. Requests carrying
// HeaderSimStatus fail with that status; HeaderSimLatency delays the answer.
func NewFakeCluster(opts FakeClusterOptions) http.Handler {
	if opts.ClusterName == "" {
		opts.ClusterName = "es-sim"
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(productHeader)
	if opts.RateLimit > 0 {
		r.Use(httprate.LimitAll(opts.RateLimit, time.Second))
	}
	r.Use(simulate)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, infoBody(opts.ClusterName))
	})
	r.Head("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.HandleFunc("/*", answer)

	return otelhttp.NewHandler(r, "es-sim",
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return resolver.Resolve(req.Method, req.URL.EscapedPath()).Name
		}),
	)
}

func productHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		next.ServeHTTP(w, r)
	})
}

func simulate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v := r.Header.Get(HeaderSimLatency); v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				t := time.NewTimer(d)
				select {
				case <-r.Context().Done():
					t.Stop()
					return
				case <-t.C:
				}
			}
		}

		if v := r.Header.Get(HeaderSimStatus); v != "" {
			status, err := strconv.Atoi(v)
			if err == nil && status >= 400 {
				_, _ = io.Copy(io.Discard, r.Body)
				writeError(w, status, "simulated_failure_exception", "simulated failure")

				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func answer(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)

	c := resolver.Resolve(r.Method, r.URL.EscapedPath())
	if !c.Known() {
		writeError(w, http.StatusBadRequest, "illegal_argument_exception",
			"no handler found for uri ["+r.URL.Path+"] and method ["+r.Method+"]")

		return
	}

	w.Header().Set("X-Es-Sim-Operation", c.Name)
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	status, body := cannedResponse(c)
	writeJSON(w, status, body)
}

// cannedResponse returns a plausible body for the operation.
func cannedResponse(c resolver.Call) (int, map[string]any) {
	shards := map[string]any{"total": 1, "successful": 1, "skipped": 0, "failed": 0}

	switch c.Name {
	case "Search", "SearchScroll", "SearchTemplate":
		return http.StatusOK, map[string]any{
			"took":      3,
			"timed_out": false,
			"_shards":   shards,
			"hits": map[string]any{
				"total":     map[string]any{"value": 1, "relation": "eq"},
				"max_score": 1.0,
				"hits": []any{
					map[string]any{"_index": indexName(c), "_id": "1", "_score": 1.0, "_source": map[string]any{}},
				},
			},
		}
	case "MultiSearch", "MultiSearchTemplate":
		return http.StatusOK, map[string]any{"took": 5, "responses": []any{}}
	case "Count":
		return http.StatusOK, map[string]any{"count": 42, "_shards": shards}
	case "DocumentGet", "SourceGet":
		return http.StatusOK, map[string]any{
			"_index":  indexName(c),
			"_id":     documentID(c),
			"found":   true,
			"_source": map[string]any{},
		}
	case "DocumentIndex", "DocumentCreate":
		return http.StatusCreated, map[string]any{
			"_index":  indexName(c),
			"_id":     documentID(c),
			"result":  "created",
			"_shards": shards,
		}
	case "Bulk":
		return http.StatusOK, map[string]any{"took": 7, "errors": false, "items": []any{}}
	case "ClusterHealth":
		return http.StatusOK, map[string]any{"cluster_name": "es-sim", "status": "green", "number_of_nodes": 1}
	default:
		return http.StatusOK, map[string]any{"acknowledged": true}
	}
}

// indexName returns the index as sent by the client, not its metric form.
func indexName(c resolver.Call) string {
	if len(c.Scope) == 0 {
		return ""
	}

	return c.Scope[0]
}

// documentID returns the id from "/{index}/_doc/{id}" or the legacy
// "/{index}/{type}/{id}" form.
func documentID(c resolver.Call) string {
	if len(c.Operands) > 0 {
		return c.Operands[0]
	}
	if len(c.Scope) < 3 {
		return ""
	}

	return c.Scope[len(c.Scope)-1]
}

func infoBody(cluster string) map[string]any {
	return map[string]any{
		"name":         cluster + "-node-1",
		"cluster_name": cluster,
		"version": map[string]any{
			"number":       clusterVersion,
			"build_flavor": "default",
		},
		"tagline": "You Know, for Search",
	}
}

func writeError(w http.ResponseWriter, status int, typ, reason string) {
	writeJSON(w, status, map[string]any{
		"error":  map[string]any{"type": typ, "reason": reason},
		"status": status,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
