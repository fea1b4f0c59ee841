package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// OCR engine names accepted by OCR_ENGINE
const (
	OCREngineTesseract = "tesseract"
	OCREngineNone      = "none"
)

// ErrConfigNotFound is returned when CONFIG_FILE points at a missing file.
var ErrConfigNotFound = errors.New("configuration file not found")

type Config struct {
	Host               string        `yaml:"host"`
	Port               string        `yaml:"port"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	MaxRequestBodySize int64         `yaml:"max_request_body_size"`

	OCR     OCRConfig     `yaml:"ocr"`
	VLM     VLMConfig     `yaml:"vlm"`
	Storage StorageConfig `yaml:"storage"`
}

// OCRConfig controls the text extraction engine
type OCRConfig struct {
	Engine         string        `yaml:"engine"`
	Languages      string        `yaml:"languages"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxConcurrency int64         `yaml:"max_concurrency"`
}

// VLMConfig controls the OpenRouter chat completions client
type VLMConfig struct {
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	SiteURL     string        `yaml:"site_url"`
	AppName     string        `yaml:"app_name"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxTokens   int           `yaml:"max_tokens"`
	MaxImageDim int           `yaml:"max_image_dimension"`
	JPEGQuality int           `yaml:"jpeg_quality"`
}

// Configured reports whether the model gateway has credentials
func (c VLMConfig) Configured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// StorageConfig controls image loading. MaxImagePixels bounds width*height
// of any decoded image; AllowPrivateNetworks lets image_url reach loopback
// and private addresses.
type StorageConfig struct {
	AzureAccount         string        `yaml:"azure_account"`
	AzureKey             string        `yaml:"azure_key"`
	ImageFetchTimeout    time.Duration `yaml:"image_fetch_timeout"`
	MaxImagePixels       int64         `yaml:"max_image_pixels"`
	AllowPrivateNetworks bool          `yaml:"allow_private_networks"`
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Host:               "0.0.0.0",
		Port:               "8000",
		RequestTimeout:     120 * time.Second,
		MaxRequestBodySize: 20 * 1024 * 1024, // 20MB
		OCR: OCRConfig{
			Engine:         OCREngineTesseract,
			Languages:      "eng+chi_sim",
			Timeout:        20 * time.Second,
			MaxConcurrency: 2,
		},
		VLM: VLMConfig{
			Model:       "nvidia/nemotron-nano-12b-v2-vl:free",
			BaseURL:     "https://openrouter.ai/api/v1",
			AppName:     "IngrediScan AI",
			Timeout:     90 * time.Second,
			MaxTokens:   2000,
			MaxImageDim: 2048,
			JPEGQuality: 85,
		},
		Storage: StorageConfig{
			ImageFetchTimeout: 15 * time.Second,
			MaxImagePixels:    40_000_000,
		},
	}
}

// LoadFromEnv loads the configuration, reading CONFIG_FILE first when set
func LoadFromEnv() (*Config, error) {
	return Load(os.Getenv("CONFIG_FILE"))
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order of precedence, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // operator-provided config path
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Host = getEnvOrDefault("HOST", c.Host)
	c.Port = getEnvOrDefault("PORT", c.Port)
	c.RequestTimeout = parseDurationOrDefault("REQUEST_TIMEOUT", c.RequestTimeout)
	c.MaxRequestBodySize = parseIntOrDefault("MAX_REQUEST_BODY_SIZE", c.MaxRequestBodySize)

	c.OCR.Engine = strings.ToLower(getEnvOrDefault("OCR_ENGINE", c.OCR.Engine))
	c.OCR.Languages = getEnvOrDefault("OCR_LANGUAGES", c.OCR.Languages)
	c.OCR.Timeout = parseDurationOrDefault("OCR_TIMEOUT", c.OCR.Timeout)
	c.OCR.MaxConcurrency = parseIntOrDefault("OCR_MAX_CONCURRENCY", c.OCR.MaxConcurrency)

	c.VLM.APIKey = getEnvOrDefault("OPENROUTER_API_KEY", c.VLM.APIKey)
	c.VLM.Model = getEnvOrDefault("OPENROUTER_MODEL", c.VLM.Model)
	c.VLM.BaseURL = strings.TrimRight(getEnvOrDefault("OPENROUTER_BASE_URL", c.VLM.BaseURL), "/")
	c.VLM.SiteURL = getEnvOrDefault("OPENROUTER_SITE_URL", c.VLM.SiteURL)
	c.VLM.AppName = getEnvOrDefault("OPENROUTER_APP_NAME", c.VLM.AppName)
	c.VLM.Timeout = parseDurationOrDefault("VLM_TIMEOUT", c.VLM.Timeout)
	c.VLM.MaxTokens = int(parseIntOrDefault("VLM_MAX_TOKENS", int64(c.VLM.MaxTokens)))
	c.VLM.MaxImageDim = int(parseIntOrDefault("VLM_MAX_IMAGE_DIMENSION", int64(c.VLM.MaxImageDim)))
	c.VLM.JPEGQuality = int(parseIntOrDefault("VLM_JPEG_QUALITY", int64(c.VLM.JPEGQuality)))

	c.Storage.AzureAccount = getEnvOrDefault("AZURE_STORAGE_ACCOUNT", c.Storage.AzureAccount)
	c.Storage.AzureKey = getEnvOrDefault("AZURE_STORAGE_KEY", c.Storage.AzureKey)
	c.Storage.ImageFetchTimeout = parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", c.Storage.ImageFetchTimeout)
	c.Storage.MaxImagePixels = parseIntOrDefault("MAX_IMAGE_PIXELS", c.Storage.MaxImagePixels)
	c.Storage.AllowPrivateNetworks = parseBoolOrDefault("IMAGE_FETCH_ALLOW_PRIVATE", c.Storage.AllowPrivateNetworks)
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.OCR.Timeout <= 0 || c.VLM.Timeout <= 0 || c.Storage.ImageFetchTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, ocr=%s, vlm=%s, fetch=%s)",
			c.RequestTimeout, c.OCR.Timeout, c.VLM.Timeout, c.Storage.ImageFetchTimeout)
	}
	switch c.OCR.Engine {
	case OCREngineTesseract, OCREngineNone:
	default:
		return fmt.Errorf("invalid OCR_ENGINE: %q (want %s or %s)", c.OCR.Engine, OCREngineTesseract, OCREngineNone)
	}
	if c.OCR.MaxConcurrency < 1 {
		return fmt.Errorf("OCR_MAX_CONCURRENCY must be >= 1 (got %d)", c.OCR.MaxConcurrency)
	}
	if c.Storage.MaxImagePixels < 1 {
		return fmt.Errorf("MAX_IMAGE_PIXELS must be >= 1 (got %d)", c.Storage.MaxImagePixels)
	}
	if c.VLM.MaxTokens < 1 {
		return fmt.Errorf("VLM_MAX_TOKENS must be >= 1 (got %d)", c.VLM.MaxTokens)
	}
	if c.VLM.MaxImageDim < 1 {
		return fmt.Errorf("VLM_MAX_IMAGE_DIMENSION must be >= 1 (got %d)", c.VLM.MaxImageDim)
	}
	if c.VLM.JPEGQuality < 1 || c.VLM.JPEGQuality > 100 {
		return fmt.Errorf("VLM_JPEG_QUALITY must be within 1..100 (got %d)", c.VLM.JPEGQuality)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
