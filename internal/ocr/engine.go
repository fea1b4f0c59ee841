// Package ocr extracts text lines from label images. Engines are constructed
// lazily once per process and called through a Gateway that bounds
// concurrency and time.
package ocr

import (
	"context"
	"errors"
	"image"
)

// ErrDisabled is returned by the noop engine
var ErrDisabled = errors.New("ocr engine disabled")

// Engine recognizes text in a bitmap and returns it line by line
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image) ([]string, error)
}

// NoopEngine is used when OCR_ENGINE=none
type NoopEngine struct{}

func (NoopEngine) Name() string { return "none" }

func (NoopEngine) Recognize(ctx context.Context, img image.Image) ([]string, error) {
	return nil, ErrDisabled
}
