package resolver

import (
	"strings"
	"unicode"

	"github.com/samber/lo"
	"github.com/stoewer/go-strcase"
)

// environmentWords are deployment suffixes dropped from index names so that
// per-environment copies of an index report under one name.
var environmentWords = map[string]bool{
	"production":  true,
	"staging":     true,
	"development": true,
}

// NormalizeName converts a raw index or type segment into its metric form.
//
// Each comma-separated member is split into words on runs of non-alphanumeric
// characters, a trailing environment word is dropped when other words remain,
// and the words are joined in UpperCamelCase. Members that normalize to the
// empty string are dropped.
//
//	NormalizeName("test-2020-08-24,test-2020-08-25") // "Test20200824,Test20200825"
//	NormalizeName("searchable-listings-production")  // "SearchableListings"
func NormalizeName(raw string) string {
	members := lo.FilterMap(strings.Split(raw, ","), func(member string, _ int) (string, bool) {
		name := normalizeMember(member)
		return name, name != ""
	})

	return strings.Join(members, ",")
}

func normalizeMember(member string) string {
	ws := strings.FieldsFunc(member, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(ws) > 1 && environmentWords[strings.ToLower(ws[len(ws)-1])] {
		ws = ws[:len(ws)-1]
	}
	if len(ws) == 0 {
		return ""
	}

	return strcase.UpperCamelCase(strings.Join(ws, "_"))
}
