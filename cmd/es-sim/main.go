// Package main provides the es-sim CLI, which drives Elasticsearch request
// scenarios through the esotx instrumentation against an in-process fake
// cluster, and inspects how request paths resolve to operations.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
