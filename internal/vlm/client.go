// Package vlm calls an OpenAI-compatible chat completions endpoint
// (OpenRouter by default) with a prompt and a label image.
package vlm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/ingrediscan-go/internal/config"
	"github.com/anime-shed/ingrediscan-go/internal/imaging"
	"github.com/anime-shed/ingrediscan-go/internal/logger"
)

var (
	// ErrUnconfigured is returned when no API key is set
	ErrUnconfigured = errors.New("vlm client is not configured")
	// ErrEmptyResponse is returned when the reply has no choices
	ErrEmptyResponse = errors.New("vlm response contained no choices")
	// ErrNoContent is returned when no text could be extracted from the reply
	ErrNoContent = errors.New("vlm response contained no text content")
)

// maxErrorBody bounds how much of a failed response is kept in a StatusError
const maxErrorBody = 2048

// StatusError reports a non-2xx reply
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vlm API error (status %d): %s", e.Code, e.Body)
}

// Client is an OpenRouter chat completions client
type Client struct {
	cfg    config.VLMConfig
	client *http.Client
}

// NewClient creates a client; Invoke fails with ErrUnconfigured when cfg has no API key
func NewClient(cfg config.VLMConfig) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Configured reports whether the client has credentials
func (c *Client) Configured() bool {
	return c.cfg.Configured()
}

// Model returns the model identifier sent with each request
func (c *Client) Model() string {
	return c.cfg.Model
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// Invoke sends prompt and img to the model and returns the reply text
func (c *Client) Invoke(ctx context.Context, prompt string, img image.Image, maxTokens int) (string, error) {
	if !c.Configured() {
		return "", ErrUnconfigured
	}
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}

	jpegData, err := imaging.EncodeJPEG(img, c.cfg.MaxImageDim, c.cfg.JPEGQuality)
	if err != nil {
		return "", fmt.Errorf("prepare image: %w", err)
	}

	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegData)}},
			},
		}},
		MaxTokens: maxTokens,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.cfg.APIKey))
	if c.cfg.SiteURL != "" {
		req.Header.Set("HTTP-Referer", c.cfg.SiteURL)
	}
	if c.cfg.AppName != "" {
		req.Header.Set("X-Title", c.cfg.AppName)
	}

	start := time.Now()
	log := logger.FromContext(ctx).WithFields(logrus.Fields{
		"model":       c.cfg.Model,
		"image_bytes": len(jpegData),
	})
	log.Info("Calling VLM API")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("vlm request failed: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read vlm response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Code: resp.StatusCode, Body: truncate(string(respBytes), maxErrorBody)}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBytes, &chatResp); err != nil {
		return "", fmt.Errorf("decode vlm response: %w", err)
	}
	if chatResp.Error != nil && chatResp.Error.Message != "" {
		return "", fmt.Errorf("vlm API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	text := ExtractText(chatResp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrNoContent
	}

	log.WithFields(logrus.Fields{
		"duration":    time.Since(start).String(),
		"reply_chars": len([]rune(text)),
	}).Info("VLM API returned")
	return text, nil
}

// ExtractText accepts message content either as a string or as a list of
// parts and returns the concatenated text.
func ExtractText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		var null any
		if json.Unmarshal(raw, &null) == nil && null == nil {
			return ""
		}
		return strings.TrimSpace(string(raw))
	}

	var b strings.Builder
	for _, part := range parts {
		var obj map[string]any
		if err := json.Unmarshal(part, &obj); err == nil {
			if text, ok := obj["text"]; ok && text != nil {
				fmt.Fprint(&b, text)
				continue
			}
		}
		var str string
		if err := json.Unmarshal(part, &str); err == nil {
			b.WriteString(str)
			continue
		}
		b.Write(part)
	}
	return strings.TrimSpace(b.String())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
