package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpoints_Loaded(t *testing.T) {
	eps := Endpoints()
	require.NotEmpty(t, eps)

	for _, ep := range eps {
		assert.Contains(t, []string{"GET", "HEAD", "POST", "PUT", "DELETE"}, ep.Method)
		assert.NotEmpty(t, ep.Template)
	}
}

func TestEndpoints_ReturnsCopy(t *testing.T) {
	eps := Endpoints()
	require.NotEmpty(t, eps)
	eps[0].Method = "MUTATED"

	assert.NotEqual(t, "MUTATED", Endpoints()[0].Method)
}

func TestEndpoints_AllKnown(t *testing.T) {
	for _, ep := range Endpoints() {
		call := ep.Resolve()
		assert.True(t, call.Known(), "%s %s resolved to %s", ep.Method, ep.Template, call.Name)
		assert.NotEmpty(t, call.Name)
	}
}

func TestEndpoint_Sample(t *testing.T) {
	tests := []struct {
		tmpl string
		want string
	}{
		{"/{index}/{type}/{id}", "/test/things/1"},
		{"/_cat/thread_pool/{thread_pool_patterns}", "/_cat/thread_pool/thread_pool_patterns"},
		{"/", "/"},
		{"{index}/_mapping", "test/_mapping"},
		{"/broken/{index", "/broken/{index"},
	}

	for _, tt := range tests {
		t.Run(tt.tmpl, func(t *testing.T) {
			assert.Equal(t, tt.want, Endpoint{Method: "GET", Template: tt.tmpl}.Sample())
		})
	}
}

func TestEndpoints_ExpectedNames(t *testing.T) {
	want := map[string]string{
		"GET /":                                        "ServerGet",
		"HEAD /":                                       "Ping",
		"GET /{index}/{type}/{id}":                     "DocumentGet",
		"POST /{index}/{type}":                         "DocumentCreate",
		"GET /_alias":                                  "IndicesGetAlias",
		"HEAD /_alias/{name}":                          "IndicesExistsAlias",
		"POST /_aliases":                               "IndicesAliases",
		"PUT /{index}/{type}/_bulk":                    "Bulk",
		"GET /_cat":                                    "Cat",
		"GET /_cat/count/{index}":                      "CatCount",
		"GET /_cluster/stats/nodes/{node_id}":          "ClusterStats",
		"GET /_cluster/nodes/{node_id}/hotthreads":     "NodeHotThreads",
		"POST /_delete_by_query/{task_id}/_rethrottle": "DeleteByQueryRethrottle",
		"POST /{index}/_doc":                           "DocumentCreate",
		"PUT /{index}/{type}/{id}/_create":             "DocumentCreate",
		"GET /_ingest/processor/grok":                  "IngestProcessorGrok",
		"GET /_mapping/{type}/field/{fields}":          "IndicesGetFieldMapping",
		"PUT {index}/_mapping":                         "IndicesPutMapping",
		"GET /_nodes/{node_id}/{metric}":               "NodeInfo",
		"GET /_nodes/stats/{metric}/{index_metric}":    "NodeStats",
		"POST /{alias}/_rollover/{new_index}":          "IndicesRollover",
		"POST /_scripts/{id}/{context}":                "PutScript",
		"GET /_snapshot":                               "SnapshotGetRepository",
		"POST /_snapshot/{repository}/_verify":         "SnapshotVerifyRepository",
		"HEAD /{index}/{type}/{id}/_source":            "SourceExists",
		"GET /{index}/{type}/{id}/_termvectors":        "TermVectors",
		"POST /{index}/{type}/{id}/_update":            "Update",
		"POST /_update_by_query/{task_id}/_rethrottle": "UpdateByQueryRethrottle",
		"GET /_render/template/{id}":                   "RenderSearchTemplate",
	}

	found := 0
	for _, ep := range Endpoints() {
		name, ok := want[ep.Method+" "+ep.Template]
		if !ok {
			continue
		}
		found++
		assert.Equal(t, name, ep.Resolve().Name, "%s %s", ep.Method, ep.Template)
	}
	assert.Equal(t, len(want), found)
}
