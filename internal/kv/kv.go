package kv

import (
	"regexp"
	"sort"
	"strings"
)

// KeyValue is one extracted field. Value keeps whatever the extractor produced
// (including nil) so documents can display the raw pairs.
type KeyValue struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

var (
	reNonWord    = regexp.MustCompile(`[^\w\s]`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// NormalizeKey returns the canonical form of a field name used for fuzzy key matching:
// lowercased, punctuation dropped, whitespace runs collapsed to a single underscore.
//
// Punctuation is turned into whitespace before trimming so that "first-name!" and
// "First Name" both become "first_name".
func NormalizeKey(key string) string {
	s := strings.ToLower(key)
	s = reNonWord.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return reWhitespace.ReplaceAllString(s, "_")
}

// IsEmpty reports whether a value must be left out of the index.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch s := v.(type) {
	case string:
		return s == ""
	case String:
		return s == ""
	}
	return false
}

// PairsFromMap converts a key->value map into the ordered list form.
// Keys are sorted so the result is stable across calls.
func PairsFromMap(m map[string]any) []KeyValue {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]KeyValue, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, KeyValue{Key: k, Value: m[k]})
	}
	return pairs
}
