// Package parser recovers a JSON object from model replies that are only
// nearly JSON. Recovery runs as an ordered cascade of stages; each stage either
// decodes an object or falls through with the text handed to the next stage.
package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/ingrediscan-go/internal/logger"
)

const (
	// FailureMessage and FailureType form the payload returned when no stage succeeds
	FailureMessage = "data could not be parsed"
	FailureType    = "parse_error"

	logExcerptRunes = 500
)

// ErrNotObject is returned when text decodes to something other than an object
var ErrNotObject = errors.New("decoded value is not a JSON object")

// Outcome is the result of a single stage: either a decoded object, or the
// text to hand to the next stage together with the reason this one failed.
type Outcome struct {
	Payload map[string]any
	Next    string
	Err     error
}

// Decoded reports a successful stage
func Decoded(payload map[string]any) Outcome {
	return Outcome{Payload: payload}
}

// FallThrough passes next to the following stage
func FallThrough(next string, err error) Outcome {
	return Outcome{Next: next, Err: err}
}

// Stage is one pure transform-then-validate step
type Stage struct {
	Name  string
	Apply func(text string) Outcome
}

// Result is the parser output. On failure Payload is the fixed failure
// payload, Stage is empty and Err holds the last stage error.
type Result struct {
	Payload map[string]any
	Stage   string
	Err     error
}

// Failed reports whether every stage fell through
func (r Result) Failed() bool {
	return r.Stage == ""
}

// Parser runs its stages in order until one decodes an object
type Parser struct {
	stages []Stage
}

// New creates a parser from the given stages
func New(stages ...Stage) *Parser {
	return &Parser{stages: stages}
}

// Default is the parser used by the analysis pipeline
var Default = New(DefaultStages()...)

// DefaultStages returns the standard recovery cascade
func DefaultStages() []Stage {
	return []Stage{
		{Name: "strip_fences", Apply: stripFencesStage},
		{Name: "strict", Apply: strictStage},
		{Name: "extract_object", Apply: extractObjectStage},
		{Name: "repair", Apply: repairStage},
		{Name: "requote", Apply: requoteStage},
		{Name: "literal", Apply: literalStage},
	}
}

// Parse runs the default cascade on text
func Parse(text string) Result {
	return Default.Parse(context.Background(), text)
}

// Parse never panics; a panicking stage counts as a fall-through.
func (p *Parser) Parse(ctx context.Context, text string) Result {
	current := text
	var lastErr error

	for _, stage := range p.stages {
		out := apply(stage, current)
		if out.Payload != nil {
			logger.FromContext(ctx).WithField("stage", stage.Name).Debug("Model reply parsed")
			return Result{Payload: out.Payload, Stage: stage.Name}
		}
		if out.Err != nil {
			lastErr = fmt.Errorf("%s: %w", stage.Name, out.Err)
		}
		current = out.Next
	}

	if lastErr == nil {
		lastErr = errors.New("no parser stages configured")
	}

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"text_excerpt": excerpt(text, logExcerptRunes),
		"text_chars":   len([]rune(text)),
	}).WithError(lastErr).Warn("Model reply could not be parsed")

	return Result{Payload: FailurePayload(), Err: lastErr}
}

func apply(stage Stage, text string) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = FallThrough(text, fmt.Errorf("stage panicked: %v", r))
		}
	}()
	return stage.Apply(text)
}

// FailurePayload returns a fresh copy of the fixed failure payload
func FailurePayload() map[string]any {
	return map[string]any{
		"error":      FailureMessage,
		"error_type": FailureType,
	}
}

// DecodeObject strictly decodes text and requires a top-level object
func DecodeObject(text string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return obj, nil
}

func excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
