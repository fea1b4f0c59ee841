package container

import (
	"fmt"
	"net/http"

	"github.com/anime-shed/ingrediscan-go/internal/config"
	"github.com/anime-shed/ingrediscan-go/internal/factory"
	"github.com/anime-shed/ingrediscan-go/internal/logger"
	"github.com/anime-shed/ingrediscan-go/internal/observer"
	"github.com/anime-shed/ingrediscan-go/internal/ocr"
	"github.com/anime-shed/ingrediscan-go/internal/service"
	"github.com/anime-shed/ingrediscan-go/internal/storage"
	"github.com/anime-shed/ingrediscan-go/internal/transport"
	"github.com/anime-shed/ingrediscan-go/internal/vlm"
)

// Container holds all application dependencies
type Container struct {
	config       *config.Config
	ocrEngine    *ocr.LazyEngine
	ocrGateway   *ocr.Gateway
	modelClient  *vlm.Client
	imageFetcher storage.ImageFetcher
	events       *observer.EventPublisher
	metrics      *observer.MetricsObserver
	service      service.LabelAnalysisService
	handler      http.Handler
}

type options struct {
	syncEvents   bool
	logEvents    bool
	components   *factory.ComponentFactory
	modelGateway service.ModelGateway
}

// Option customises the dependency graph
type Option func(*options)

// WithSyncEvents delivers observer events on the calling goroutine
func WithSyncEvents() Option {
	return func(o *options) { o.syncEvents = true }
}

// WithoutEventLogging drops the logging observer; metrics are still collected
func WithoutEventLogging() Option {
	return func(o *options) { o.logEvents = false }
}

// WithComponentFactory replaces the engine and storage factories
func WithComponentFactory(f *factory.ComponentFactory) Option {
	return func(o *options) { o.components = f }
}

// WithModelGateway replaces the OpenRouter client
func WithModelGateway(m service.ModelGateway) Option {
	return func(o *options) { o.modelGateway = m }
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	o := options{logEvents: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.components == nil {
		o.components = factory.NewComponentFactory(cfg)
	}

	// Build dependency graph
	construct, err := o.components.EngineFactory.CreateEngine(factory.EngineType(cfg.OCR.Engine))
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR engine factory: %w", err)
	}
	ocrEngine := ocr.NewLazyEngine(construct)
	ocrGateway := ocr.NewGateway(ocrEngine, cfg.OCR.Timeout, cfg.OCR.MaxConcurrency)

	imageFetcher, err := factory.ImageSource(o.components.StorageFactory, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create image source: %w", err)
	}

	modelClient := vlm.NewClient(cfg.VLM)
	var model service.ModelGateway = modelClient
	if o.modelGateway != nil {
		model = o.modelGateway
	}
	if !model.Configured() {
		logger.Warn("OPENROUTER_API_KEY is not set; analysis requests will fail with api_error")
	}

	events := observer.NewEventPublisher()
	if o.syncEvents {
		events = observer.NewSyncEventPublisher()
	}
	metrics := observer.NewMetricsObserver()
	events.Subscribe(metrics)
	if o.logEvents {
		events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	}

	labelService := service.NewLabelAnalysisService(imageFetcher, ocrGateway, model, events, cfg.VLM.MaxTokens,
		service.WithMaxImagePixels(cfg.Storage.MaxImagePixels))
	handler := transport.NewHandler(labelService, metrics, cfg)

	return &Container{
		config:       cfg,
		ocrEngine:    ocrEngine,
		ocrGateway:   ocrGateway,
		modelClient:  modelClient,
		imageFetcher: imageFetcher,
		events:       events,
		metrics:      metrics,
		service:      labelService,
		handler:      handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the analysis pipeline
func (c *Container) Service() service.LabelAnalysisService {
	return c.service
}

// Metrics returns the metrics observer
func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}

// OCREngine returns the process-wide lazy OCR engine handle
func (c *Container) OCREngine() *ocr.LazyEngine {
	return c.ocrEngine
}

// ModelName returns the configured model identifier
func (c *Container) ModelName() string {
	return c.modelClient.Model()
}
