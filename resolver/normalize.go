package resolver

import (
	"net/url"
	"strings"
)

// Normalize splits a raw request path into its decoded segments.
//
// A query string suffix and the leading slash are dropped, empty segments
// are discarded and each remaining segment is percent-decoded on its own, so
// an encoded slash ("%2F") stays inside its segment. A segment with malformed
// percent-encoding is returned as is.
func Normalize(rawPath string) []string {
	if i := strings.IndexByte(rawPath, '?'); i >= 0 {
		rawPath = rawPath[:i]
	}
	rawPath = strings.TrimPrefix(rawPath, "/")
	if rawPath == "" {
		return []string{}
	}

	components := make([]string, 0, strings.Count(rawPath, "/")+1)
	for seg := range strings.SplitSeq(rawPath, "/") {
		if seg == "" {
			continue
		}
		components = append(components, unescape(seg))
	}

	return components
}

func unescape(seg string) string {
	if strings.IndexByte(seg, '%') < 0 {
		return seg
	}
	decoded, err := url.PathUnescape(seg)
	if err != nil {
		return seg
	}

	return decoded
}
