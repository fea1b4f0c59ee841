package factory

import (
	"fmt"
	"strings"

	"github.com/anime-shed/ingrediscan-go/internal/config"
	"github.com/anime-shed/ingrediscan-go/internal/ocr"
	"github.com/anime-shed/ingrediscan-go/internal/ocr/tesseract"
	"github.com/anime-shed/ingrediscan-go/internal/storage"
	"github.com/anime-shed/ingrediscan-go/pkg/validation"
)

// EngineType represents the available OCR engines
type EngineType string

const (
	// TesseractEngine recognizes text with Tesseract through gosseract
	TesseractEngine EngineType = config.OCREngineTesseract
	// NoEngine disables OCR; every request degrades to visual analysis
	NoEngine EngineType = config.OCREngineNone
)

// StorageType represents different types of storage backends
type StorageType string

const (
	// HTTPStorage for HTTP-based image fetching
	HTTPStorage StorageType = "http"
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
)

// EngineFactory creates OCR engine constructors. Construction itself is
// deferred to the first request by ocr.LazyEngine.
type EngineFactory interface {
	CreateEngine(engineType EngineType) (ocr.Factory, error)
}

// StorageFactory creates storage implementations
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.ImageFetcher, error)
}

// engineFactory implements EngineFactory
type engineFactory struct {
	languages string
	tesseract func(languages string) (ocr.Engine, error)
}

// NewEngineFactory creates an engine factory for the given Tesseract languages
func NewEngineFactory(languages string) EngineFactory {
	return &engineFactory{
		languages: languages,
		tesseract: func(languages string) (ocr.Engine, error) {
			engine, err := tesseract.New(languages)
			if err != nil {
				return nil, err
			}
			return engine, nil
		},
	}
}

// CreateEngine returns the constructor for the specified engine type
func (f *engineFactory) CreateEngine(engineType EngineType) (ocr.Factory, error) {
	switch EngineType(strings.ToLower(string(engineType))) {
	case TesseractEngine:
		languages := f.languages
		return func() (ocr.Engine, error) {
			return f.tesseract(languages)
		}, nil
	case NoEngine:
		return func() (ocr.Engine, error) {
			return ocr.NoopEngine{}, nil
		}, nil
	default:
		return nil, fmt.Errorf("unsupported OCR engine: %s", engineType)
	}
}

// storageFactory implements StorageFactory
type storageFactory struct {
	cfg config.StorageConfig
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg config.StorageConfig) StorageFactory {
	return &storageFactory{cfg: cfg}
}

// CreateStorage creates a storage implementation based on the specified type
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.ImageFetcher, error) {
	switch storageType {
	case HTTPStorage:
		return storage.NewHTTPImageFetcher(f.cfg.ImageFetchTimeout,
			storage.WithMaxPixels(f.cfg.MaxImagePixels),
			storage.WithPrivateNetworks(f.cfg.AllowPrivateNetworks),
		), nil
	case AzureStorage:
		if f.cfg.AzureAccount == "" {
			return nil, fmt.Errorf("azure storage requires AZURE_STORAGE_ACCOUNT")
		}
		return storage.NewAzureStorage(f.cfg.AzureAccount, f.cfg.AzureKey, f.cfg.MaxImagePixels)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// ImageSource builds the image_url fetcher: HTTP always, plus Azure when an
// account is configured.
func ImageSource(f StorageFactory, cfg config.StorageConfig) (storage.ImageFetcher, error) {
	httpFetcher, err := f.CreateStorage(HTTPStorage)
	if err != nil {
		return nil, err
	}

	var azure storage.ImageFetcher
	if cfg.AzureAccount != "" {
		azure, err = f.CreateStorage(AzureStorage)
		if err != nil {
			return nil, fmt.Errorf("failed to create azure storage: %w", err)
		}
	}

	return storage.NewRoutingFetcher(validation.NewURLValidator(), httpFetcher, azure, cfg.AzureAccount), nil
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	EngineFactory  EngineFactory
	StorageFactory StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		EngineFactory:  NewEngineFactory(cfg.OCR.Languages),
		StorageFactory: NewStorageFactory(cfg.Storage),
	}
}
