package factory

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anime-shed/ingrediscan-go/internal/config"
	"github.com/anime-shed/ingrediscan-go/internal/ocr"
	"github.com/anime-shed/ingrediscan-go/internal/storage"
)

type stubEngine struct{}

func (stubEngine) Name() string { return "stub" }

func (stubEngine) Recognize(ctx context.Context, img image.Image) ([]string, error) {
	return []string{"stub"}, nil
}

func TestEngineFactory_CreateEngine(t *testing.T) {
	var gotLanguages string
	f := &engineFactory{
		languages: "eng+chi_sim",
		tesseract: func(languages string) (ocr.Engine, error) {
			gotLanguages = languages
			return stubEngine{}, nil
		},
	}

	tests := []struct {
		name       string
		engineType EngineType
		wantName   string
		wantErr    bool
	}{
		{"Tesseract", TesseractEngine, "stub", false},
		{"Tesseract upper case", "TESSERACT", "stub", false},
		{"None", NoEngine, "none", false},
		{"Unknown", "easyocr", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			construct, err := f.CreateEngine(tt.engineType)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateEngine() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			engine, err := construct()
			if err != nil {
				t.Fatalf("construct() error = %v", err)
			}
			if engine.Name() != tt.wantName {
				t.Errorf("Engine name = %q, want %q", engine.Name(), tt.wantName)
			}
		})
	}

	if gotLanguages != "eng+chi_sim" {
		t.Errorf("Expected languages to reach the engine, got %q", gotLanguages)
	}
}

func TestEngineFactory_DefersConstruction(t *testing.T) {
	calls := 0
	f := &engineFactory{
		tesseract: func(string) (ocr.Engine, error) {
			calls++
			return nil, errors.New("tesseract not installed")
		},
	}

	construct, err := f.CreateEngine(TesseractEngine)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Fatal("Expected no construction before first use")
	}

	lazy := ocr.NewLazyEngine(construct)
	for i := 0; i < 3; i++ {
		if _, err := lazy.Get(); err == nil {
			t.Error("Expected recorded construction error")
		}
	}
	if calls != 1 {
		t.Errorf("Expected a single construction attempt, got %d", calls)
	}
}

func TestStorageFactory_CreateStorage(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.StorageConfig
		storageType StorageType
		wantErr     bool
	}{
		{"HTTP", config.StorageConfig{}, HTTPStorage, false},
		{"Azure without account", config.StorageConfig{}, AzureStorage, true},
		{"Azure anonymous", config.StorageConfig{AzureAccount: "labels"}, AzureStorage, false},
		{"Unknown", config.StorageConfig{}, "local", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher, err := NewStorageFactory(tt.cfg).CreateStorage(tt.storageType)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateStorage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && fetcher == nil {
				t.Error("Expected a fetcher")
			}
		})
	}
}

func TestImageSource(t *testing.T) {
	cfg := config.StorageConfig{AzureAccount: "labels"}
	source, err := ImageSource(NewStorageFactory(cfg), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := source.(*storage.RoutingFetcher); !ok {
		t.Errorf("Expected a routing fetcher, got %T", source)
	}

	if _, err := source.FetchImage(context.Background(), "ftp://example.com/a.png"); err == nil {
		t.Error("Expected URL validation to reject ftp")
	}
}

func TestImageSource_PrivateNetworkPolicy(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	}))
	defer server.Close()

	tests := []struct {
		name         string
		allowPrivate bool
		wantErr      bool
	}{
		{"Loopback refused by default", false, true},
		{"Loopback allowed when configured", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.StorageConfig{ImageFetchTimeout: 5 * time.Second, AllowPrivateNetworks: tt.allowPrivate}
			source, err := ImageSource(NewStorageFactory(cfg), cfg)
			if err != nil {
				t.Fatal(err)
			}

			_, err = source.FetchImage(context.Background(), server.URL+"/label.png")
			if (err != nil) != tt.wantErr {
				t.Fatalf("FetchImage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, storage.ErrNonPublicAddress) {
				t.Errorf("Expected ErrNonPublicAddress in chain, got %v", err)
			}
		})
	}
}
