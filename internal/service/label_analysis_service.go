package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	apperrors "github.com/anime-shed/ingrediscan-go/internal/errors"
	"github.com/anime-shed/ingrediscan-go/internal/imaging"
	"github.com/anime-shed/ingrediscan-go/internal/logger"
	"github.com/anime-shed/ingrediscan-go/internal/normalizer"
	"github.com/anime-shed/ingrediscan-go/internal/observer"
	"github.com/anime-shed/ingrediscan-go/internal/ocr"
	"github.com/anime-shed/ingrediscan-go/internal/parser"
	"github.com/anime-shed/ingrediscan-go/internal/storage"
	"github.com/anime-shed/ingrediscan-go/internal/vlm"
	"github.com/anime-shed/ingrediscan-go/pkg/models"
)

// Stage names the pipeline state a request is in
type Stage string

const (
	StageDecoding    Stage = "decoding"
	StageExtracting  Stage = "extracting"
	StageInvoking    Stage = "invoking"
	StageParsing     Stage = "parsing"
	StageNormalizing Stage = "normalizing"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// TextExtractor returns the text lines found in an image
type TextExtractor interface {
	Extract(ctx context.Context, img image.Image) ([]string, error)
}

// ModelGateway sends a prompt and an image to the vision language model
type ModelGateway interface {
	Invoke(ctx context.Context, prompt string, img image.Image, maxTokens int) (string, error)
	Configured() bool
}

// LabelAnalysisService turns a label photo into a canonical analysis result
type LabelAnalysisService interface {
	// Analyze never returns an error: failures are classified into the result
	Analyze(ctx context.Context, req models.AnalysisRequest, lang language.Tag) *models.CanonicalResult
}

// labelAnalysisService implements LabelAnalysisService
type labelAnalysisService struct {
	fetcher   storage.ImageFetcher
	ocr       TextExtractor
	model     ModelGateway
	parser    *parser.Parser
	events    observer.Subject
	maxTokens int
	maxPixels int64
}

// Option configures the analysis service
type Option func(*labelAnalysisService)

// WithMaxImagePixels bounds width*height of a decoded image_base64 payload
func WithMaxImagePixels(n int64) Option {
	return func(s *labelAnalysisService) { s.maxPixels = n }
}

// NewLabelAnalysisService creates the analysis pipeline. fetcher may be nil,
// in which case image_url requests are rejected. extractor may be nil to skip text
// extraction entirely.
func NewLabelAnalysisService(
	fetcher storage.ImageFetcher,
	extractor TextExtractor,
	model ModelGateway,
	events observer.Subject,
	maxTokens int,
	opts ...Option,
) LabelAnalysisService {
	if events == nil {
		events = observer.NewSyncEventPublisher()
	}
	s := &labelAnalysisService{
		fetcher:   fetcher,
		ocr:       extractor,
		model:     model,
		parser:    parser.Default,
		events:    events,
		maxTokens: maxTokens,
		maxPixels: storage.DefaultMaxPixels,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// run carries the per-request state through the pipeline
type run struct {
	ctx   context.Context
	lang  language.Tag
	stage Stage
	start time.Time
	log   *logrus.Entry
}

// Analyze runs decode, OCR, model call, parse and normalize
func (s *labelAnalysisService) Analyze(ctx context.Context, req models.AnalysisRequest, lang language.Tag) (result *models.CanonicalResult) {
	r := &run{
		ctx:   ctx,
		lang:  lang,
		start: time.Now(),
		log:   logger.FromContext(ctx),
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithFields(logrus.Fields{
				"stage": r.stage,
				"panic": fmt.Sprint(rec),
			}).Error("Analysis pipeline panicked")
			result = s.fail(r, apperrors.Recovered(rec, lang))
		}
	}()

	s.publish(r, observer.AnalysisEvent{EventType: observer.AnalysisStarted})

	s.enter(r, StageDecoding)
	img, err := s.loadImage(ctx, req)
	if err != nil {
		return s.fail(r, apperrors.NewInvalidImageError(apperrors.UserMessage(apperrors.ErrorTypeInvalidImage, lang, ""), err))
	}
	bounds := img.Bounds()
	s.publish(r, observer.AnalysisEvent{
		EventType: observer.ImageDecoded,
		Success:   true,
		Metadata: map[string]interface{}{
			"width":  bounds.Dx(),
			"height": bounds.Dy(),
		},
	})

	s.enter(r, StageExtracting)
	lines := s.extractText(r, img)

	s.enter(r, StageInvoking)
	if s.model == nil || !s.model.Configured() {
		return s.fail(r, apperrors.NewAPIError(unavailableMessage(lang), vlm.ErrUnconfigured))
	}
	text, err := s.model.Invoke(ctx, vlm.BuildPrompt(lines), img, s.maxTokens)
	if err != nil {
		return s.fail(r, apperrors.NewAPIError(s.invokeMessage(lang, err), err))
	}
	s.publish(r, observer.AnalysisEvent{
		EventType: observer.ModelInvoked,
		Success:   true,
		Metadata:  map[string]interface{}{"reply_length": len(text)},
	})

	s.enter(r, StageParsing)
	parsed := s.parser.Parse(ctx, text)
	if parsed.Failed() {
		return s.fail(r, apperrors.NewParseError(apperrors.UserMessage(apperrors.ErrorTypeParse, lang, ""), parsed.Err))
	}
	r.log.WithField("parse_stage", parsed.Stage).Debug("Model reply parsed")

	s.enter(r, StageNormalizing)
	result = normalizer.Normalize(parsed.Payload)
	if result.IsFailure() {
		// Declared by the model; its message is passed through unchanged
		r.stage = StageFailed
		s.publish(r, observer.AnalysisEvent{
			EventType:    observer.AnalysisFailed,
			ErrorType:    result.ErrorType,
			ErrorMessage: result.Error,
		})
		return result
	}

	s.enter(r, StageDone)
	s.publish(r, observer.AnalysisEvent{
		EventType: observer.AnalysisCompleted,
		Success:   true,
		Metadata: map[string]interface{}{
			"health_score": result.HealthScore,
			"ingredients":  len(result.FullIngredients),
			"risks":        len(result.Risks),
		},
	})
	return result
}

func (s *labelAnalysisService) loadImage(ctx context.Context, req models.AnalysisRequest) (image.Image, error) {
	switch {
	case req.ImageBase64 != "" && req.ImageURL != "":
		return nil, apperrors.NewInvalidImageError("only one of image_base64 or image_url may be set", nil)
	case req.ImageBase64 != "":
		img, _, err := storage.DecodePayload(req.ImageBase64, s.maxPixels)
		return img, err
	case req.ImageURL != "":
		if s.fetcher == nil {
			return nil, apperrors.NewInvalidImageError("image_url is not supported", nil)
		}
		return s.fetcher.FetchImage(ctx, req.ImageURL)
	default:
		return nil, apperrors.NewInvalidImageError("image_base64 or image_url is required", nil)
	}
}

// extractText never fails: OCR problems degrade to an empty line list
func (s *labelAnalysisService) extractText(r *run, img image.Image) []string {
	if s.ocr == nil {
		return nil
	}

	lines, err := s.ocr.Extract(r.ctx, img)
	if err == nil {
		r.log.WithField("ocr_lines", len(lines)).Debug("OCR finished")
		return lines
	}
	if errors.Is(err, ocr.ErrDisabled) {
		return nil
	}

	quality := imaging.Assess(img)
	r.log.WithError(err).WithFields(logrus.Fields{
		"width":          quality.Width,
		"height":         quality.Height,
		"laplacian_var":  quality.LaplacianVariance,
		"brightness":     quality.Brightness,
		"quality_issues": quality.Issues(),
	}).Warn("OCR failed, continuing with visual analysis only")
	s.publish(r, observer.AnalysisEvent{
		EventType:    observer.OCRDegraded,
		ErrorMessage: err.Error(),
		Metadata:     map[string]interface{}{"quality_issues": quality.Issues()},
	})
	return nil
}

func (s *labelAnalysisService) invokeMessage(lang language.Tag, err error) string {
	if errors.Is(err, vlm.ErrUnconfigured) {
		return unavailableMessage(lang)
	}
	var statusErr *vlm.StatusError
	if errors.As(err, &statusErr) {
		return apperrors.UserMessage(apperrors.ErrorTypeAPI, lang, fmt.Sprintf("HTTP %d", statusErr.Code))
	}
	return apperrors.UserMessage(apperrors.ErrorTypeAPI, lang, "")
}

func unavailableMessage(lang language.Tag) string {
	if base, _ := lang.Base(); base.String() == "en" {
		return "VLM service unavailable: check OPENROUTER_API_KEY and the OpenRouter client configuration"
	}
	return "VLM 服务不可用：请检查 OPENROUTER_API_KEY 和 OpenRouter 客户端配置"
}

func (s *labelAnalysisService) enter(r *run, stage Stage) {
	r.stage = stage
	r.log.WithFields(logrus.Fields{
		"stage":      stage,
		"elapsed_ms": time.Since(r.start).Milliseconds(),
	}).Debug("Pipeline stage entered")
}

// fail ends the run. appErr.Message is shown to the caller; the cause is
// only logged and published.
func (s *labelAnalysisService) fail(r *run, appErr *apperrors.AppError) *models.CanonicalResult {
	failedAt := r.stage
	r.stage = StageFailed
	errorType := apperrors.TypeOf(appErr)

	entry := r.log.WithFields(logrus.Fields{
		"stage":      failedAt,
		"error_type": errorType,
	})
	if appErr.Cause != nil {
		entry = entry.WithError(appErr.Cause)
	}
	entry.Warn("Analysis failed")

	event := observer.AnalysisEvent{
		EventType:    observer.AnalysisFailed,
		Stage:        string(failedAt),
		ErrorType:    string(errorType),
		ErrorMessage: appErr.Message,
	}
	if appErr.Cause != nil {
		event.ErrorMessage = appErr.Cause.Error()
	}
	s.publish(r, event)

	return models.Failed(appErr.Message, string(errorType))
}

func (s *labelAnalysisService) publish(r *run, event observer.AnalysisEvent) {
	event.RequestID = logger.RequestID(r.ctx)
	if event.Stage == "" {
		event.Stage = string(r.stage)
	}
	event.ProcessingTime = time.Since(r.start)
	s.events.NotifyObservers(r.ctx, event)
}
