// Package report renders analysis results for the command line in human,
// JSON, YAML and Markdown form.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/anime-shed/ingrediscan-go/pkg/models"
)

// Output formats accepted by New
const (
	FormatHuman    = "human"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatMarkdown = "markdown"
)

// Formats lists the accepted format names
var Formats = []string{FormatHuman, FormatJSON, FormatYAML, FormatMarkdown}

// Entry is the analysis of one input file
type Entry struct {
	Source   string                  `json:"source" yaml:"source"`
	Duration time.Duration           `json:"-" yaml:"-"`
	Result   *models.CanonicalResult `json:"result" yaml:"result"`
}

// Writer renders a batch of entries
type Writer interface {
	Write(entries []Entry) error
}

// New returns the writer for format
func New(format string, output io.Writer) (Writer, error) {
	switch strings.ToLower(format) {
	case FormatHuman, "":
		return NewHumanWriter(output), nil
	case FormatJSON:
		return &JSONWriter{output: output}, nil
	case FormatYAML:
		return &YAMLWriter{output: output}, nil
	case FormatMarkdown, "md":
		return NewMarkdownWriter(output), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}

// JSONWriter outputs indented JSON. A single entry is written as a bare
// result so the output matches the HTTP response body.
type JSONWriter struct {
	output io.Writer
}

func (w *JSONWriter) Write(entries []Entry) error {
	enc := json.NewEncoder(w.output)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if len(entries) == 1 {
		return enc.Encode(entries[0].Result)
	}
	return enc.Encode(entries)
}

// YAMLWriter outputs YAML documents
type YAMLWriter struct {
	output io.Writer
}

func (w *YAMLWriter) Write(entries []Entry) error {
	enc := yaml.NewEncoder(w.output)
	enc.SetIndent(2)
	defer enc.Close()

	if len(entries) == 1 {
		return enc.Encode(entries[0].Result)
	}
	return enc.Encode(entries)
}

// Failures counts entries that carry a classified failure
func Failures(entries []Entry) int {
	n := 0
	for _, e := range entries {
		if e.Result == nil || e.Result.IsFailure() {
			n++
		}
	}
	return n
}

func confidenceText(r *models.CanonicalResult) string {
	if r.Confidence == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", *r.Confidence*100)
}
