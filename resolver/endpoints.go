package resolver

import (
	"bufio"
	_ "embed"
	"strings"
	"sync"
)

//go:embed endpoints.txt
var endpointList string

// Endpoint is one known Elasticsearch REST endpoint.
type Endpoint struct {
	Method string
	// Template is the path with {placeholder} segments, e.g. "/{index}/_doc/{id}".
	Template string
}

// sampleValues fills the placeholders used by Sample. Other placeholders are
// replaced by their own name.
var sampleValues = map[string]string{
	"index": "test",
	"type":  "things",
	"id":    "1",
}

// Sample returns a concrete path for the endpoint template.
func (e Endpoint) Sample() string {
	var b strings.Builder
	b.Grow(len(e.Template))

	tmpl := e.Template
	for {
		open := strings.IndexByte(tmpl, '{')
		if open < 0 {
			b.WriteString(tmpl)
			break
		}
		end := strings.IndexByte(tmpl[open:], '}')
		if end < 0 {
			b.WriteString(tmpl)
			break
		}
		b.WriteString(tmpl[:open])
		name := tmpl[open+1 : open+end]
		if v, ok := sampleValues[name]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(name)
		}
		tmpl = tmpl[open+end+1:]
	}

	return b.String()
}

// Resolve resolves the endpoint's sample path.
func (e Endpoint) Resolve() Call {
	return Resolve(e.Method, e.Sample())
}

var endpoints = sync.OnceValue(func() []Endpoint {
	var out []Endpoint
	sc := bufio.NewScanner(strings.NewReader(endpointList))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		method, tmpl, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		out = append(out, Endpoint{Method: method, Template: strings.TrimSpace(tmpl)})
	}

	return out
})

// Endpoints returns the Elasticsearch 7.x REST endpoints known to the rule table.
// The returned slice is a copy.
func Endpoints() []Endpoint {
	eps := endpoints()
	out := make([]Endpoint, len(eps))
	copy(out, eps)

	return out
}
