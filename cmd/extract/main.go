package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"doc-extractor/internal/app"
	"doc-extractor/internal/documents"
	"doc-extractor/internal/extract"
	"doc-extractor/internal/kv"
	"doc-extractor/internal/llm"
)

type options struct {
	mimeType string
	textOnly bool
	timeout  time.Duration
}

// output is what the command prints for one file.
type output struct {
	File          string        `json:"file"`
	MimeType      string        `json:"mimeType"`
	TextSource    string        `json:"textSource"`
	Pages         int           `json:"pages"`
	Warnings      []string      `json:"warnings,omitempty"`
	Text          string        `json:"text"`
	Method        string        `json:"processingMethod,omitempty"`
	KeyValuePairs []kv.KeyValue `json:"keyValuePairs,omitempty"`
	DurationMs    int64         `json:"durationMs"`
}

type failure struct {
	Error          string `json:"error"`
	Kind           string `json:"kind,omitempty"`
	ProcessingStep string `json:"processingStep,omitempty"`
	Remediation    string `json:"remediation,omitempty"`
}

// builder wires the extractor and LLM client; tests swap it out.
type builder func(ctx context.Context) (documents.Extractor, llm.Client, error)

func main() {
	if err := newRootCmd(buildFromEnv).Execute(); err != nil {
		os.Exit(1)
	}
}

func buildFromEnv(ctx context.Context) (documents.Extractor, llm.Client, error) {
	cfg, log, err := app.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	// keep stdout for the JSON result
	log = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client, err := app.BuildLLM(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return app.BuildPipeline(ctx, cfg, afero.NewOsFs(), log), client, nil
}

func newRootCmd(build builder) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract text and key-value pairs from a PDF or image",
		Long: `Runs the same text extraction and key-value extraction the gateway uses on a
local file and prints the result as JSON. Nothing is persisted.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), build, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.mimeType, "mime", "", "MIME type (detected from the extension when empty)")
	cmd.Flags().BoolVar(&opts.textOnly, "text-only", false, "skip key-value extraction")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall time limit")
	return cmd
}

func run(ctx context.Context, out io.Writer, build builder, path string, opts options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	mimeType := opts.mimeType
	if mimeType == "" {
		mimeType = mimeFromExt(path)
	}

	extractor, client, err := build(ctx)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	start := time.Now()
	res, err := extractor.ExtractText(ctx, path, mimeType)
	if err != nil {
		writeFailure(out, err)
		return err
	}

	o := output{
		File:       filepath.Base(path),
		MimeType:   mimeType,
		TextSource: res.Source,
		Pages:      res.Pages,
		Warnings:   res.Warnings,
		Text:       res.Text,
	}
	if !opts.textOnly {
		pairs, err := client.ExtractPairs(ctx, res.Text)
		if err != nil {
			writeFailure(out, err)
			return err
		}
		o.Method = client.Method()
		o.KeyValuePairs = pairs
	}
	o.DurationMs = time.Since(start).Milliseconds()
	return writeJSON(out, o)
}

func writeFailure(out io.Writer, err error) {
	f := failure{Error: err.Error()}
	var ee *extract.ExtractionError
	if errors.As(err, &ee) {
		f.Kind = string(ee.Kind)
		f.ProcessingStep = string(ee.Step)
		f.Remediation = ee.Remediation
	}
	_ = writeJSON(out, f)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func mimeFromExt(path string) string {
	switch filepath.Ext(path) {
	case ".pdf", ".PDF":
		return "application/pdf"
	case ".png", ".PNG":
		return "image/png"
	case ".jpg", ".jpeg", ".JPG", ".JPEG":
		return "image/jpeg"
	}
	return "application/octet-stream"
}
