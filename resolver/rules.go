package resolver

import "github.com/stoewer/go-strcase"

// methodSet is a bit set of HTTP methods a rule accepts. The zero value accepts any method.
type methodSet uint8

const (
	mAny methodSet = 0
	mGet methodSet = 1 << iota
	mHead
	mPost
	mPut
	mDelete
)

func methodBit(method string) methodSet {
	switch method {
	case "GET":
		return mGet
	case "HEAD":
		return mHead
	case "POST":
		return mPost
	case "PUT":
		return mPut
	case "DELETE":
		return mDelete
	default:
		return 0
	}
}

func (s methodSet) allows(method string) bool {
	return s == mAny || s&methodBit(method) != 0
}

// matcherKind tags the segment matchers a rule pattern is made of.
type matcherKind uint8

const (
	// kindLiteral matches one fixed segment.
	kindLiteral matcherKind = iota
	// kindOperand matches one segment of user data and records it as an operand.
	kindOperand
	// kindAPI matches one segment from a fixed word set and appends its name part.
	kindAPI
	// kindOptAPI behaves like kindAPI but matches nothing when the segment is not in the set.
	kindOptAPI
	// kindRest consumes every remaining segment as operands.
	kindRest
)

type matcher struct {
	kind  matcherKind
	lit   string
	words map[string]string
}

func lit(s string) matcher                   { return matcher{kind: kindLiteral, lit: s} }
func api(words map[string]string) matcher    { return matcher{kind: kindAPI, words: words} }
func optAPI(words map[string]string) matcher { return matcher{kind: kindOptAPI, words: words} }

var (
	operand = matcher{kind: kindOperand}
	rest    = matcher{kind: kindRest}
)

// arity bounds the number of scope segments allowed before the anchor keyword.
// A negative max is unbounded.
type arity struct {
	min, max int
}

func (a arity) allows(n int) bool {
	return n >= a.min && (a.max < 0 || n <= a.max)
}

var anyScope = arity{min: 0, max: -1}

// rule maps a method constraint, a scope arity and a pattern over the segments
// following the anchor keyword to an operation name.
type rule struct {
	methods methodSet
	scope   arity
	pattern []matcher
	name    string
	noScope bool
}

func on(methods methodSet, name string, pattern ...matcher) rule {
	return rule{methods: methods, scope: anyScope, pattern: pattern, name: name}
}

func (r rule) scoped(lo, hi int) rule {
	r.scope = arity{min: lo, max: hi}
	return r
}

func (r rule) unscoped() rule {
	r.noScope = true
	return r
}

// match reports whether the rule accepts the call. Structure is checked before the method.
func (r *rule) match(method string, scope int, segs []string) (string, []string, bool) {
	if !r.scope.allows(scope) {
		return "", nil, false
	}

	name := r.name
	var operands []string
	i := 0
	for _, m := range r.pattern {
		switch m.kind {
		case kindLiteral:
			if i >= len(segs) || segs[i] != m.lit {
				return "", nil, false
			}
			i++
		case kindOperand:
			if i >= len(segs) {
				return "", nil, false
			}
			operands = append(operands, segs[i])
			i++
		case kindAPI, kindOptAPI:
			if i < len(segs) {
				if part, ok := m.words[segs[i]]; ok {
					name += part
					i++

					continue
				}
			}
			if m.kind == kindAPI {
				return "", nil, false
			}
		case kindRest:
			operands = append(operands, segs[i:]...)
			i = len(segs)
		}
	}
	if i != len(segs) {
		return "", nil, false
	}
	if !r.methods.allows(method) {
		return "", nil, false
	}

	return name, operands, true
}

// words builds an API word set whose name parts are the UpperCamelCase form of each word.
func words(ws ...string) map[string]string {
	m := make(map[string]string, len(ws))
	for _, w := range ws {
		m[w] = strcase.UpperCamelCase(w)
	}

	return m
}

var (
	catAPIs = words("aliases", "allocation", "count", "fielddata", "health", "help", "indices",
		"master", "nodeattrs", "nodes", "pending_tasks", "plugins", "recovery", "repositories",
		"segments", "shards", "snapshots", "tasks", "templates", "thread_pool")

	clusterAPIs = words("health", "pending_tasks", "reroute", "state", "stats")

	hotThreads = map[string]string{"hot_threads": "HotThreads", "hotthreads": "HotThreads"}

	nodeActions = words("stats", "usage")

	nodeMetrics = words("adaptive_selection", "breaker", "discovery", "fs", "http", "indexing_pressure",
		"indices", "ingest", "jvm", "os", "process", "script", "thread_pool", "transport")
)

const (
	mRead  = mGet | mHead
	mWrite = mPost | mPut
)

// families holds the rule table keyed by anchor keyword. The empty key holds
// the rules for paths without a keyword. Rules within a family are ordered
// most specific first and the first match wins.
var families = map[string][]rule{
	"": {
		on(mGet, "ServerGet").scoped(0, 0),
		on(mHead, "Ping").scoped(0, 0),
		on(mHead, "IndexExists").scoped(1, 1),
		on(mGet, "IndexGet").scoped(1, 1),
		on(mPut, "IndexCreate").scoped(1, 1),
		on(mDelete, "IndexDelete").scoped(1, 1),
		on(mPut, "TypeCreate").scoped(2, 2),
		on(mPost, "DocumentCreate").scoped(2, 2),
		on(mGet, "TypeGet").scoped(2, 2),
		on(mHead, "TypeExists").scoped(2, 2),
		on(mDelete, "TypeDelete").scoped(2, 2),
		on(mGet, "DocumentGet").scoped(3, 3),
		on(mHead, "DocumentExists").scoped(3, 3),
		on(mDelete, "DocumentDelete").scoped(3, 3),
		on(mPut, "DocumentIndex").scoped(3, 3),
		on(mPost, "DocumentUpdate").scoped(3, 3),
	},

	"_search": {
		on(mDelete, "ClearScroll", lit("scroll"), rest).unscoped(),
		on(mAny, "SearchScroll", lit("scroll"), rest).unscoped(),
		on(mAny, "SearchTemplate", lit("template")),
		on(mAny, "Search", rest),
	},
	"_msearch": {
		on(mAny, "MultiSearchTemplate", lit("template")),
		on(mAny, "MultiSearch"),
	},
	"_search_shards": {on(mAny, "SearchShards")},
	"_count":         {on(mAny, "Count")},
	"_bulk":          {on(mAny, "Bulk")},
	"_mget":          {on(mAny, "MultiGet")},
	"_mtermvectors":  {on(mAny, "MultiTermVectors")},
	"_field_caps":    {on(mAny, "FieldCaps")},
	"_rank_eval":     {on(mAny, "RankEval")},
	"_render": {
		on(mAny, "RenderSearchTemplate", lit("template"), rest).unscoped(),
	},

	"_doc": {
		on(mPost, "DocumentCreate").scoped(1, 1),
		on(mAny, "Update", operand, lit("_update")).scoped(1, 1),
		on(mGet, "DocumentGet", operand).scoped(1, 1),
		on(mHead, "DocumentExists", operand).scoped(1, 1),
		on(mDelete, "DocumentDelete", operand).scoped(1, 1),
		on(mPut, "DocumentIndex", operand).scoped(1, 1),
		on(mPost, "DocumentUpdate", operand).scoped(1, 1),
	},
	"_create": {
		on(mWrite, "DocumentCreate", operand).scoped(1, 2),
		on(mWrite, "DocumentCreate").scoped(3, 3),
	},
	"_update": {
		on(mAny, "Update", operand).scoped(1, 2),
		on(mAny, "Update").scoped(3, 3),
	},
	"_source": {
		on(mGet, "SourceGet", operand).scoped(1, 2),
		on(mHead, "SourceExists", operand).scoped(1, 2),
		on(mGet, "SourceGet").scoped(3, 3),
		on(mHead, "SourceExists").scoped(3, 3),
	},
	"_explain": {
		on(mAny, "Explain", operand).scoped(1, 2),
		on(mAny, "Explain").scoped(3, 3),
	},
	"_termvectors": {on(mAny, "TermVectors", rest)},
	"_delete_by_query": {
		on(mPost, "DeleteByQueryRethrottle", operand, lit("_rethrottle")).unscoped(),
		on(mAny, "DeleteByQuery"),
	},
	"_update_by_query": {
		on(mPost, "UpdateByQueryRethrottle", operand, lit("_rethrottle")).unscoped(),
		on(mAny, "UpdateByQuery"),
	},
	"_reindex": {
		on(mPost, "ReindexRethrottle", operand, lit("_rethrottle")).unscoped(),
		on(mAny, "Reindex").unscoped(),
	},

	"_alias": {
		on(mGet, "IndicesGetAlias", rest).scoped(0, 1),
		on(mHead, "IndicesExistsAlias", rest).scoped(0, 1),
		on(mWrite, "IndicesPutAlias", operand).scoped(1, 1),
		on(mDelete, "IndicesDeleteAlias", operand).scoped(1, 1),
	},
	"_aliases": {
		on(mWrite, "IndicesPutAlias", operand).scoped(1, 1),
		on(mDelete, "IndicesDeleteAlias", operand).scoped(1, 1),
		on(mGet, "IndicesGetAlias", operand).scoped(0, 1),
		on(mAny, "IndicesAliases").scoped(0, 1),
	},
	"_warmer": {
		on(mRead, "IndicesGetWarmer", rest),
		on(mWrite, "IndicesPutWarmer", rest),
		on(mDelete, "IndicesDeleteWarmer", rest),
	},
	"_mapping":  mappingRules,
	"_mappings": mappingRules,
	"_settings": {
		on(mGet, "IndicesGetSettings", rest),
		on(mWrite, "IndicesPutSettings"),
	},
	"_template": {
		on(mGet, "IndicesGetTemplate", rest).unscoped(),
		on(mHead, "IndicesExistsTemplate", operand).unscoped(),
		on(mWrite, "IndicesPutTemplate", operand).unscoped(),
		on(mDelete, "IndicesDeleteTemplate", operand).unscoped(),
	},
	"_analyze":      {on(mAny, "IndicesAnalyze")},
	"_cache":        {on(mAny, "IndicesClearCache", lit("clear"))},
	"_clone":        {on(mAny, "IndicesClone", operand).scoped(1, 1)},
	"_close":        {on(mAny, "IndicesClose")},
	"_open":         {on(mAny, "IndicesOpen")},
	"_shrink":       {on(mAny, "IndicesShrink", operand).scoped(1, 1)},
	"_split":        {on(mAny, "IndicesSplit", operand).scoped(1, 1)},
	"_rollover":     {on(mAny, "IndicesRollover", rest).scoped(1, 1)},
	"_forcemerge":   {on(mAny, "IndicesForcemerge")},
	"_refresh":      {on(mAny, "IndicesRefresh")},
	"_recovery":     {on(mAny, "IndicesRecovery")},
	"_segments":     {on(mAny, "IndicesSegments")},
	"_shard_stores": {on(mAny, "IndicesShardStores")},
	"_stats":        {on(mAny, "IndicesStats", rest)},
	"_flush": {
		on(mAny, "IndicesFlushSynced", lit("synced")),
		on(mAny, "IndicesFlush"),
	},
	"_upgrade": {
		on(mGet, "IndicesGetUpgrade"),
		on(mAny, "IndicesUpgrade"),
	},
	"_validate": {on(mAny, "IndicesValidateQuery", lit("query"))},

	"_cat": {
		on(mAny, "Cat", api(catAPIs), rest).unscoped(),
		on(mAny, "Cat", rest).unscoped(),
	},
	"_cluster": {
		on(mAny, "ClusterAllocationExplain", lit("allocation"), lit("explain")).unscoped(),
		on(mGet, "ClusterGetSettings", lit("settings")).unscoped(),
		on(mWrite, "ClusterPutSettings", lit("settings")).unscoped(),
		on(mAny, "Node", lit("nodes"), api(hotThreads)).unscoped(),
		on(mAny, "Node", lit("nodes"), operand, api(hotThreads)).unscoped(),
		on(mAny, "ClusterStats", lit("stats"), lit("nodes"), operand).unscoped(),
		on(mAny, "Cluster", api(clusterAPIs), rest).unscoped(),
	},
	"_nodes": {
		on(mAny, "Node", api(hotThreads)).unscoped(),
		on(mAny, "Node", operand, api(hotThreads)).unscoped(),
		on(mAny, "NodeReloadSecureSettings", lit("reload_secure_settings")).unscoped(),
		on(mAny, "NodeReloadSecureSettings", operand, lit("reload_secure_settings")).unscoped(),
		on(mAny, "Node", api(nodeActions), optAPI(nodeMetrics), rest).unscoped(),
		on(mAny, "Node", operand, api(nodeActions), optAPI(nodeMetrics), rest).unscoped(),
		on(mAny, "NodeInfo", rest).unscoped(),
	},

	"_ingest": {
		on(mAny, "IngestSimulate", lit("pipeline"), lit("_simulate")).unscoped(),
		on(mAny, "IngestSimulate", lit("pipeline"), operand, lit("_simulate")).unscoped(),
		on(mAny, "IngestProcessorGrok", lit("processor"), lit("grok")).unscoped(),
		on(mGet, "IngestGetPipeline", lit("pipeline"), rest).unscoped(),
		on(mWrite, "IngestPutPipeline", lit("pipeline"), operand).unscoped(),
		on(mDelete, "IngestDeletePipeline", lit("pipeline"), operand).unscoped(),
	},
	"_snapshot": {
		on(mGet, "SnapshotStatus", lit("_status")).unscoped(),
		on(mGet, "SnapshotStatus", operand, lit("_status")).unscoped(),
		on(mGet, "SnapshotStatus", operand, operand, lit("_status")).unscoped(),
		on(mPost, "SnapshotCleanupRepository", operand, lit("_cleanup")).unscoped(),
		on(mPost, "SnapshotVerifyRepository", operand, lit("_verify")).unscoped(),
		on(mPost, "SnapshotRestore", operand, operand, lit("_restore")).unscoped(),
		on(mGet, "SnapshotGetRepository").unscoped(),
		on(mGet, "SnapshotGetRepository", operand).unscoped(),
		on(mWrite, "SnapshotCreateRepository", operand).unscoped(),
		on(mDelete, "SnapshotDeleteRepository", operand).unscoped(),
		on(mGet, "SnapshotGet", operand, operand).unscoped(),
		on(mWrite, "SnapshotCreate", operand, operand).unscoped(),
		on(mDelete, "SnapshotDelete", operand, operand).unscoped(),
	},
	"_scripts": {
		on(mAny, "ScriptsPainlessExecute", lit("painless"), lit("_execute")).unscoped(),
		on(mGet, "GetScript", operand, rest).unscoped(),
		on(mWrite, "PutScript", operand, rest).unscoped(),
		on(mDelete, "DeleteScript", operand).unscoped(),
	},
	"_tasks": {
		on(mAny, "TasksCancel", lit("_cancel")).unscoped(),
		on(mAny, "TasksCancel", operand, lit("_cancel")).unscoped(),
		on(mAny, "TasksList").unscoped(),
		on(mAny, "TasksGet", operand).unscoped(),
	},
	"_remote": {on(mAny, "RemoteInfo", lit("info")).unscoped()},
}

var mappingRules = []rule{
	on(mGet, "IndicesGetFieldMapping", lit("field"), operand),
	on(mGet, "IndicesGetFieldMapping", operand, lit("field"), operand),
	on(mHead, "IndicesExistsType", operand),
	on(mGet, "IndicesGetMapping", rest),
	on(mWrite, "IndicesPutMapping", rest),
}
