package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/anime-shed/ingrediscan-go/internal/logger"
)

// Gateway runs recognition on the lazily constructed engine with a per-call
// timeout and a bound on concurrent engine calls.
type Gateway struct {
	engine  *LazyEngine
	timeout time.Duration
	sem     *semaphore.Weighted
}

// NewGateway creates a gateway; maxConcurrency below 1 is treated as 1
func NewGateway(engine *LazyEngine, timeout time.Duration, maxConcurrency int64) *Gateway {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Gateway{
		engine:  engine,
		timeout: timeout,
		sem:     semaphore.NewWeighted(maxConcurrency),
	}
}

type recognition struct {
	lines []string
	err   error
}

// Extract returns the non-empty text lines found in img, in reading order.
// An image without text yields an empty slice and no error.
func (g *Gateway) Extract(ctx context.Context, img image.Image) ([]string, error) {
	engine, err := g.engine.Get()
	if err != nil {
		return nil, err
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for ocr slot: %w", err)
	}

	start := time.Now()
	done := make(chan recognition, 1)
	go func() {
		defer g.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				done <- recognition{err: fmt.Errorf("ocr engine %s panicked: %v", engine.Name(), r)}
			}
		}()
		lines, err := engine.Recognize(ctx, img)
		done <- recognition{lines: lines, err: err}
	}()

	select {
	case <-ctx.Done():
		// the engine goroutine keeps its slot until the call returns
		return nil, fmt.Errorf("ocr timed out after %s: %w", time.Since(start).Round(time.Millisecond), ctx.Err())
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("ocr recognition failed: %w", res.err)
		}
		lines := cleanLines(res.lines)
		logger.FromContext(ctx).WithFields(logrus.Fields{
			"engine":   engine.Name(),
			"lines":    len(lines),
			"duration": time.Since(start).String(),
		}).Debug("OCR completed")
		return lines, nil
	}
}

func cleanLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
