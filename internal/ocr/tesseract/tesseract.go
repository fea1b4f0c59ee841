// Package tesseract provides the gosseract-backed OCR engine. It requires cgo
// and the Tesseract libraries at build time.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Engine recognizes text with a fresh gosseract client per call
type Engine struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// New constructs the engine and verifies that Tesseract can load the
// requested languages. languages uses the "eng+chi_sim" form.
func New(languages string) (*Engine, error) {
	e := &Engine{
		languages:     splitLanguages(languages),
		clientFactory: gosseract.NewClient,
	}
	if err := e.probe(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize returns the recognized text split into lines
func (e *Engine) Recognize(ctx context.Context, img image.Image) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	c := e.clientFactory()
	defer c.Close()

	if err := e.configure(c); err != nil {
		return nil, err
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}
	return strings.Split(strings.TrimSpace(text), "\n"), nil
}

func (e *Engine) configure(c *gosseract.Client) error {
	if len(e.languages) == 0 {
		return nil
	}
	if err := c.SetLanguage(e.languages...); err != nil {
		return fmt.Errorf("set languages: %w", err)
	}
	return nil
}

// probe runs recognition on a blank image so missing language data fails at
// construction rather than on the first request.
func (e *Engine) probe() error {
	blank := image.NewGray(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	if err := png.Encode(&buf, blank); err != nil {
		return fmt.Errorf("encode probe image: %w", err)
	}

	c := e.clientFactory()
	defer c.Close()

	if err := e.configure(c); err != nil {
		return err
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return fmt.Errorf("probe set image: %w", err)
	}
	if _, err := c.Text(); err != nil {
		return fmt.Errorf("tesseract unavailable for %q: %w", strings.Join(e.languages, "+"), err)
	}
	return nil
}

func splitLanguages(languages string) []string {
	var out []string
	for _, lang := range strings.Split(languages, "+") {
		if lang = strings.TrimSpace(lang); lang != "" {
			out = append(out, lang)
		}
	}
	return out
}
