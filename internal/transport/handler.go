package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/ingrediscan-go/internal/config"
	apperrors "github.com/anime-shed/ingrediscan-go/internal/errors"
	"github.com/anime-shed/ingrediscan-go/internal/logger"
	"github.com/anime-shed/ingrediscan-go/internal/observer"
	"github.com/anime-shed/ingrediscan-go/internal/service"
	"github.com/anime-shed/ingrediscan-go/pkg/models"
)

// RequestIDHeader carries the per-request correlation id
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 128

// MetricsProvider exposes the counters served on /metrics
type MetricsProvider interface {
	GetMetrics() observer.Metrics
}

// NewHandler builds the gin router. metrics may be nil.
func NewHandler(svc service.LabelAnalysisService, metrics MetricsProvider, cfg *config.Config) http.Handler {
	r := gin.New()

	// Add middleware
	r.Use(
		requestID(),
		requestLogger(),
		gin.CustomRecovery(recoveryHandler),
		requestSizeLimiter(cfg.MaxRequestBodySize),
	)

	// Configure routes
	r.GET("/", root)
	r.GET("/health", healthCheck)
	r.GET("/metrics", metricsHandler(metrics))
	r.POST("/api/v1/analyze", analyzeLabel(svc, cfg))

	return r
}

func analyzeLabel(svc service.LabelAnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout)
			defer cancel()
		}
		lang := apperrors.MatchLanguage(c.GetHeader("Accept-Language"))

		var req models.AnalysisRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.FromContext(ctx).WithError(err).WithField("ip", c.ClientIP()).Warn("Invalid request format")
			// Always 200: callers read the outcome from error_type
			c.JSON(http.StatusOK, models.Failed(
				apperrors.UserMessage(apperrors.ErrorTypeInvalidImage, lang, ""),
				string(apperrors.ErrorTypeInvalidImage),
			))
			return
		}

		result := svc.Analyze(ctx, req, lang)
		c.JSON(http.StatusOK, result)
	}
}

func root(c *gin.Context) {
	c.JSON(http.StatusOK, models.StatusResponse{
		Message: "IngrediScan AI Backend Service",
		Status:  "running",
	})
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.StatusResponse{Status: "healthy"})
}

func metricsHandler(metrics MetricsProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.JSON(http.StatusOK, observer.NewMetricsObserver().GetMetrics())
			return
		}
		c.JSON(http.StatusOK, metrics.GetMetrics())
	}
}

// Middleware and helper functions
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Set("request_id", id)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.FromContext(c.Request.Context()).WithFields(logrus.Fields{
			"method":             c.Request.Method,
			"path":               c.Request.URL.Path,
			"status":             c.Writer.Status(),
			"ip":                 c.ClientIP(),
			"user_agent":         c.Request.UserAgent(),
			"processing_time_ms": time.Since(start).Milliseconds(),
		})
		if c.Request.URL.Path == "/health" {
			entry.Debug("Request handled")
			return
		}
		entry.Info("Request handled")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// recoveryHandler keeps the always-200 contract when a handler panics
func recoveryHandler(c *gin.Context, recovered any) {
	appErr := apperrors.Recovered(recovered, apperrors.MatchLanguage(c.GetHeader("Accept-Language")))

	logger.FromContext(c.Request.Context()).WithFields(logrus.Fields{
		"panic":      fmt.Sprint(recovered),
		"error_type": appErr.Type,
		"path":       c.Request.URL.Path,
	}).Error("Request panicked")

	c.AbortWithStatusJSON(http.StatusOK, models.Failed(appErr.Message, string(appErr.Type)))
}
