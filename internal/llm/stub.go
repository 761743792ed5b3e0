package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"doc-extractor/internal/kv"
)

const maxStubPairs = 20

var stubPatterns = []struct {
	key string
	re  *regexp.Regexp
}{
	{"Email", regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)},
	{"Phone", regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)},
	{"Date", regexp.MustCompile(`\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4}`)},
	{"Amount", regexp.MustCompile(`\$\d{1,3}(?:,\d{3})*(?:\.\d{2})?`)},
}

var domainTerms = []string{"license", "number", "name", "phone", "email", "address"}

const stubNotFound = "I couldn't find information related to your question in the uploaded documents."

// StubClient is the deterministic provider used without credentials and in tests.
type StubClient struct{}

func NewStubClient() *StubClient { return &StubClient{} }

func (*StubClient) Method() string { return MethodMock }

// ExtractPairs takes "Key: value" lines plus email, phone, date and amount hits,
// drops exact duplicates and keeps the first 20.
func (*StubClient) ExtractPairs(_ context.Context, text string) ([]kv.KeyValue, error) {
	type pair struct{ key, value string }
	seen := make(map[pair]struct{})
	pairs := make([]kv.KeyValue, 0)
	add := func(key, value string) bool {
		p := pair{key, value}
		if _, ok := seen[p]; ok {
			return true
		}
		seen[p] = struct{}{}
		pairs = append(pairs, kv.KeyValue{Key: key, Value: value})
		return len(pairs) < maxStubPairs
	}

	for _, line := range strings.Split(text, "\n") {
		if i := strings.Index(line, ":"); i >= 0 {
			key := strings.TrimSpace(line[:i])
			value := strings.TrimSpace(line[i+1:])
			if key != "" && value != "" && !add(key, value) {
				return pairs, nil
			}
		}
		for _, p := range stubPatterns {
			for _, m := range p.re.FindAllString(line, -1) {
				if !add(p.key, m) {
					return pairs, nil
				}
			}
		}
	}
	return pairs, nil
}

// ChatAnswer matches the query against document keys directly or through a
// shared domain term and echoes the matching values.
func (*StubClient) ChatAnswer(_ context.Context, query string, docs []DocumentContext) (string, error) {
	q := strings.ToLower(query)

	var values []string
	seen := make(map[string]struct{})
	for _, d := range docs {
		for _, p := range d.KeyValuePairs {
			key := strings.ToLower(strings.TrimSpace(p.Key))
			if key == "" || !stubMatches(q, key) {
				continue
			}
			v := kv.Display(p.Value)
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			values = append(values, v)
		}
	}

	switch n := len(values); {
	case n == 0:
		return stubNotFound, nil
	case n == 1:
		return fmt.Sprintf("Based on your documents: **%s**", values[0]), nil
	case n <= 3:
		return "I found these values in your documents: " + emphasize(values), nil
	default:
		return fmt.Sprintf("I found these values in your documents: %s and %d more", emphasize(values[:3]), n-3), nil
	}
}

func stubMatches(query, key string) bool {
	if strings.Contains(query, key) {
		return true
	}
	for _, term := range domainTerms {
		if strings.Contains(key, term) && strings.Contains(query, term) {
			return true
		}
	}
	return false
}

func emphasize(values []string) string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = "**" + v + "**"
	}
	return strings.Join(out, ", ")
}
