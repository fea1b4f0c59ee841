package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/text/language"

	"github.com/anime-shed/ingrediscan-go/pkg/models"
)

type stubService struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	mu       sync.Mutex
	types    []string
}

func (s *stubService) Analyze(ctx context.Context, req models.AnalysisRequest, lang language.Tag) *models.CanonicalResult {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		seen := s.maxSeen.Load()
		if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)

	s.mu.Lock()
	s.types = append(s.types, req.ImageType)
	s.mu.Unlock()

	raw, _ := base64.StdEncoding.DecodeString(req.ImageBase64)
	if string(raw) == "bad" {
		return models.Failed("not a label", "invalid_image")
	}
	confidence := 0.9
	return &models.CanonicalResult{
		HealthScore:     "A",
		Summary:         string(raw),
		Risks:           []models.RiskItem{},
		FullIngredients: []string{},
		Alternatives:    []string{},
		Confidence:      &confidence,
	}
}

func writeFiles(t *testing.T, contents map[string]string) []string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for name, body := range contents {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	return paths
}

func TestAnalyzeFiles_KeepsOrderAndBoundsConcurrency(t *testing.T) {
	contents := map[string]string{}
	for _, name := range []string{"a.jpg", "b.png", "c.jpg", "d.jpg", "e.png"} {
		contents[name] = name
	}
	files := writeFiles(t, contents)

	svc := &stubService{}
	var calls atomic.Int32
	entries, err := analyzeFiles(context.Background(), svc, files, 2, language.English, func(done, total int) {
		calls.Add(1)
		if total != len(files) {
			t.Errorf("total = %d, want %d", total, len(files))
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	for i, e := range entries {
		if e.Source != files[i] {
			t.Errorf("Entry %d source = %q, want %q", i, e.Source, files[i])
		}
		if e.Result.Summary != filepath.Base(files[i]) {
			t.Errorf("Entry %d result belongs to %q", i, e.Result.Summary)
		}
	}
	if got := svc.maxSeen.Load(); got > 2 {
		t.Errorf("Expected at most 2 concurrent analyses, saw %d", got)
	}
	if int(calls.Load()) != len(files) {
		t.Errorf("Expected %d progress calls, got %d", len(files), calls.Load())
	}
}

func TestAnalyzeFiles_FailuresStayInEntries(t *testing.T) {
	files := writeFiles(t, map[string]string{"bad.jpg": "bad"})
	files = append(files, filepath.Join(t.TempDir(), "missing.jpg"))

	entries, err := analyzeFiles(context.Background(), &stubService{}, files, 0, language.English, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Result.ErrorType != "invalid_image" {
			t.Errorf("%s: ErrorType = %q, want invalid_image", e.Source, e.Result.ErrorType)
		}
		if !e.Result.Valid() {
			t.Errorf("%s: expected the result invariant to hold", e.Source)
		}
	}
}

func TestAnalyzeFiles_SetsImageType(t *testing.T) {
	files := writeFiles(t, map[string]string{"label.png": "x"})
	svc := &stubService{}
	if _, err := analyzeFiles(context.Background(), svc, files, 1, language.Chinese, nil); err != nil {
		t.Fatal(err)
	}
	if len(svc.types) != 1 || svc.types[0] != "image/png" {
		t.Errorf("Expected image/png, got %v", svc.types)
	}
}

func TestAnalyzeFiles_Cancelled(t *testing.T) {
	files := writeFiles(t, map[string]string{"a.jpg": "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := analyzeFiles(ctx, &stubService{}, files, 1, language.Chinese, nil); err == nil {
		t.Error("Expected cancellation error")
	}
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()
	if cmd.Use != "ingrediscan" || cmd.Version == "" {
		t.Errorf("Unexpected root command %q version %q", cmd.Use, cmd.Version)
	}

	want := map[string]bool{"serve": false, "analyze": false, "version": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("Expected %s subcommand", name)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	var buf bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "ingrediscan version ") {
		t.Errorf("Unexpected output %q", buf.String())
	}
}

func TestAnalyzeCmd_RejectsUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"analyze", "-q", "-o", "xml", "label.jpg"})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "unsupported output format") {
		t.Errorf("Expected unsupported format error, got %v", err)
	}
}
