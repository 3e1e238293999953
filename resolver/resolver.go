package resolver

import (
	"slices"
	"strings"
)

// Unknown is the operation name of calls no rule matches.
const Unknown = "Unknown"

// Call is the resolved form of one Elasticsearch REST call.
// A Call is immutable once returned by [Resolve].
type Call struct {
	// Method is the upper-cased HTTP method.
	Method string
	// Path is the raw request path as given.
	Path string
	// Name is the PascalCase operation name, e.g. "DocumentGet" or "ClusterPendingTasks".
	Name string
	// PathComponents are the decoded, non-empty path segments in order.
	PathComponents []string
	// Operands are the segments holding user data such as ids, alias names or node ids.
	Operands []string
	// APIName is the first reserved keyword segment, e.g. "_search_shards". Empty when absent.
	APIName string
	// Scope is the leading run of resource segments (index, type, id).
	Scope []string
	// ScopePath is Scope joined with "_".
	ScopePath string
	// Index is the normalized first scope segment. Empty when absent.
	Index string
	// Type is the normalized second scope segment. Only set when Index is set.
	Type string
}

// Known reports whether a rule matched the call.
func (c Call) Known() bool {
	return c.Name != Unknown
}

// Resolve classifies an Elasticsearch REST call by method and path.
//
// Resolve is total and pure: any input yields a Call, unmatched calls are
// named [Unknown], and the result depends only on the arguments.
func Resolve(method, path string) Call {
	method = strings.ToUpper(strings.TrimSpace(method))
	components := Normalize(path)

	scope, anchor, after := split(components)

	call := Call{
		Method:         method,
		Path:           path,
		Name:           Unknown,
		PathComponents: components,
		Operands:       []string{},
		APIName:        anchor,
		Scope:          scope,
	}

	rules := families[anchor]
	for i := range rules {
		name, operands, ok := rules[i].match(method, len(scope), after)
		if !ok {
			continue
		}
		call.Name = name
		if operands != nil {
			call.Operands = operands
		}
		if rules[i].noScope {
			call.Scope = []string{}
		}

		break
	}

	call.ScopePath = strings.Join(call.Scope, "_")
	if len(call.Scope) > 0 {
		call.Index = NormalizeName(call.Scope[0])
	}
	if call.Index != "" && len(call.Scope) > 1 {
		call.Type = NormalizeName(call.Scope[1])
	}

	return call
}

// idPosition is the index of the document id in /{index}/{type}/{id} paths.
const idPosition = 2

// split separates the leading resource segments from the anchor keyword and
// the segments after it. The "_all" pseudo-index belongs to the scope, and a
// typeless "_doc" directly followed by another keyword is skipped. Document
// ids may start with "_", so an unreserved one in the id position stays in scope.
func split(components []string) (scope []string, anchor string, after []string) {
	for i, seg := range components {
		if !isKeyword(seg) {
			continue
		}
		if i == idPosition && !isReserved(seg) {
			continue
		}
		if seg == "_doc" && i+1 < len(components) && isKeyword(components[i+1]) {
			return slices.Clone(components[:i]), components[i+1], components[i+2:]
		}

		return slices.Clone(components[:i]), seg, components[i+1:]
	}

	return slices.Clone(components), "", nil
}

func isKeyword(seg string) bool {
	return strings.HasPrefix(seg, "_") && seg != "_all"
}

// isReserved reports whether seg anchors a rule family.
func isReserved(seg string) bool {
	_, ok := families[seg]
	return ok
}
