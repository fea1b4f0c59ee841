package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HOST", "PORT", "REQUEST_TIMEOUT", "MAX_REQUEST_BODY_SIZE",
		"OCR_ENGINE", "OCR_LANGUAGES", "OCR_TIMEOUT", "OCR_MAX_CONCURRENCY",
		"OPENROUTER_API_KEY", "OPENROUTER_MODEL", "OPENROUTER_BASE_URL",
		"OPENROUTER_SITE_URL", "OPENROUTER_APP_NAME",
		"VLM_TIMEOUT", "VLM_MAX_TOKENS", "VLM_MAX_IMAGE_DIMENSION", "VLM_JPEG_QUALITY",
		"AZURE_STORAGE_ACCOUNT", "AZURE_STORAGE_KEY", "IMAGE_FETCH_TIMEOUT", "CONFIG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerAddress() != "0.0.0.0:8000" {
		t.Errorf("Unexpected address %s", cfg.ServerAddress())
	}
	if cfg.OCR.Engine != OCREngineTesseract || cfg.OCR.Languages != "eng+chi_sim" {
		t.Errorf("Unexpected OCR defaults %+v", cfg.OCR)
	}
	if cfg.VLM.MaxTokens != 2000 || cfg.VLM.JPEGQuality != 85 || cfg.VLM.Timeout != 90*time.Second {
		t.Errorf("Unexpected VLM defaults %+v", cfg.VLM)
	}
	if cfg.VLM.Configured() {
		t.Error("Expected VLM to be unconfigured without an API key")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "ingrediscan.yaml")
	content := []byte("port: \"9000\"\nocr:\n  engine: none\n  timeout: 5s\nvlm:\n  api_key: from-file\n  max_tokens: 500\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("OPENROUTER_API_KEY", "from-env")
	t.Setenv("OPENROUTER_BASE_URL", "http://localhost:1234/v1/")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("Expected port from file, got %s", cfg.Port)
	}
	if cfg.OCR.Engine != OCREngineNone || cfg.OCR.Timeout != 5*time.Second {
		t.Errorf("Expected OCR settings from file, got %+v", cfg.OCR)
	}
	if cfg.VLM.APIKey != "from-env" {
		t.Errorf("Expected env to override file, got %q", cfg.VLM.APIKey)
	}
	if cfg.VLM.MaxTokens != 500 {
		t.Errorf("Expected max tokens from file, got %d", cfg.VLM.MaxTokens)
	}
	if cfg.VLM.BaseURL != "http://localhost:1234/v1" {
		t.Errorf("Expected trailing slash trimmed, got %q", cfg.VLM.BaseURL)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("Expected ErrConfigNotFound, got %v", err)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"Port out of range", "PORT", "70000"},
		{"Port not numeric", "PORT", "http"},
		{"Unknown OCR engine", "OCR_ENGINE", "rapidocr"},
		{"Zero concurrency", "OCR_MAX_CONCURRENCY", "0"},
		{"JPEG quality too high", "VLM_JPEG_QUALITY", "101"},
		{"Negative body size", "MAX_REQUEST_BODY_SIZE", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			if _, err := Load(""); err == nil {
				t.Errorf("Expected validation error for %s=%s", tt.key, tt.val)
			}
		})
	}
}

func TestParseDurationOrDefault_IgnoresInvalid(t *testing.T) {
	t.Setenv("OCR_TIMEOUT", "soon")
	if got := parseDurationOrDefault("OCR_TIMEOUT", time.Second); got != time.Second {
		t.Errorf("Expected default on invalid duration, got %s", got)
	}
}
