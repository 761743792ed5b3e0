package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"doc-extractor/internal/kv"
	"doc-extractor/internal/metrics"
)

// Completer sends one single-turn prompt to a chat model and returns the raw reply.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Name() string
}

const extractSystemPrompt = `You extract structured data from documents.
Return exactly one JSON array and nothing else. Each element must be an object with a "key" and a "value".
Use the labels as they appear in the document for keys. Values may be strings, numbers, booleans, arrays or objects.
If the document contains no recognizable fields, return [].`

const chatSystemPrompt = `You answer questions about the user's uploaded documents.
Use only the documents provided. Quote exact values where possible and say so plainly when the answer is not present.`

// PromptClient implements Client on top of any chat Completer.
type PromptClient struct {
	completer Completer
	log       *slog.Logger
}

func NewPromptClient(c Completer, log *slog.Logger) *PromptClient {
	return &PromptClient{completer: c, log: log}
}

func (c *PromptClient) Method() string { return c.completer.Name() }

func (c *PromptClient) ExtractPairs(ctx context.Context, text string) ([]kv.KeyValue, error) {
	name := c.completer.Name()
	raw, err := c.completer.Complete(ctx, extractSystemPrompt, "Document text:\n"+text)
	if err != nil {
		metrics.LLMRequests.WithLabelValues(name, "extract", "error").Inc()
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	pairs, err := ParsePairs(raw)
	if err != nil {
		metrics.LLMRequests.WithLabelValues(name, "extract", "malformed").Inc()
		c.log.Warn("model returned unparseable pairs", "provider", name, "err", err)
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	metrics.LLMRequests.WithLabelValues(name, "extract", "ok").Inc()
	return pairs, nil
}

func (c *PromptClient) ChatAnswer(ctx context.Context, query string, docs []DocumentContext) (string, error) {
	name := c.completer.Name()
	answer, err := c.completer.Complete(ctx, chatSystemPrompt, buildChatPrompt(query, docs))
	metrics.LLMRequests.WithLabelValues(name, "chat", metrics.Outcome(err)).Inc()
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return strings.TrimSpace(answer), nil
}

func buildChatPrompt(query string, docs []DocumentContext) string {
	var b strings.Builder
	b.WriteString("Documents:\n")
	for i, d := range docs {
		fmt.Fprintf(&b, "\n[%d] %s", i+1, d.Filename)
		if !d.CreatedAt.IsZero() {
			fmt.Fprintf(&b, " (uploaded %s)", d.CreatedAt.Format("2006-01-02"))
		}
		b.WriteString("\n")
		for _, p := range d.KeyValuePairs {
			fmt.Fprintf(&b, "- %s: %s\n", p.Key, kv.Display(p.Value))
		}
		if t := strings.TrimSpace(d.ExtractedText); t != "" {
			fmt.Fprintf(&b, "Text excerpt:\n%s\n", t)
		}
	}
	fmt.Fprintf(&b, "\nQuestion: %s", query)
	return b.String()
}

var reJSONArray = regexp.MustCompile(`(?s)\[.*\]`)

const maxSnippet = 200

// ParsePairs pulls the span from the first '[' to the last ']' out of free-form
// model output and decodes it as [{key, value}].
func ParsePairs(raw string) ([]kv.KeyValue, error) {
	span := reJSONArray.FindString(raw)
	if span == "" {
		return nil, fmt.Errorf("%w: no JSON array found in %q", ErrMalformedModelOutput, snippet(raw))
	}
	var items []struct {
		Key   string `json:"key"`
		Value any    `json:"value"`
	}
	if err := json.Unmarshal([]byte(span), &items); err != nil {
		return nil, fmt.Errorf("%w: %v in %q", ErrMalformedModelOutput, err, snippet(span))
	}
	pairs := make([]kv.KeyValue, 0, len(items))
	for _, it := range items {
		key := strings.TrimSpace(it.Key)
		if key == "" {
			continue
		}
		pairs = append(pairs, kv.KeyValue{Key: key, Value: it.Value})
	}
	return pairs, nil
}

func snippet(s string) string {
	r := []rune(s)
	if len(r) <= maxSnippet {
		return s
	}
	return string(r[:maxSnippet]) + "..."
}
