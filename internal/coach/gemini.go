package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-2.0-flash"
	defaultGeminiTimeout = 45 * time.Second
)

// ErrNotConfigured is returned by clients missing credentials.
var ErrNotConfigured = errors.New("not configured")

// Generator produces a JSON object for a prompt and decodes it into out.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string, out any) error
}

// GeminiConfig captures the settings for the generateContent REST API.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// GeminiClient calls models/<model>:generateContent with JSON output.
type GeminiClient struct {
	cfg  GeminiConfig
	http *http.Client
}

// NewGeminiClient constructs a client, filling defaults.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeminiBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultGeminiModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGeminiTimeout
	}
	return &GeminiClient{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
	GenerationConfig struct {
		ResponseMimeType string `json:"responseMimeType"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateJSON sends prompt and decodes the model's JSON reply into out.
func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string, out any) error {
	if c.cfg.APIKey == "" {
		return fmt.Errorf("gemini: api key %w", ErrNotConfigured)
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return errors.New("gemini: prompt required")
	}

	var payload geminiRequest
	payload.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}}
	payload.GenerationConfig.ResponseMimeType = "application/json"
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("gemini: encode body: %w", err)
	}

	endpoint := c.cfg.BaseURL + "/models/" + url.PathEscape(c.cfg.Model) + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("gemini: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gemini: http error (timeout=%s): %w", c.cfg.Timeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("gemini: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("gemini: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("gemini: decode response: %w", err)
	}
	if parsed.Error != nil {
		return fmt.Errorf("gemini: api error: %s", strings.TrimSpace(parsed.Error.Message))
	}
	var text strings.Builder
	for _, cand := range parsed.Candidates {
		for _, part := range cand.Content.Parts {
			text.WriteString(part.Text)
		}
		if text.Len() > 0 {
			break
		}
	}
	if text.Len() == 0 {
		return errors.New("gemini: empty content")
	}
	if err := decodeModelJSON(text.String(), out); err != nil {
		return fmt.Errorf("gemini: parse payload: %w", err)
	}
	return nil
}

// decodeModelJSON tolerates code fences and surrounding prose.
func decodeModelJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	if err := json.Unmarshal([]byte(trimmed), target); err == nil {
		return nil
	}
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed[3:], "json")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	if start, end := strings.Index(trimmed, "{"), strings.LastIndex(trimmed, "}"); start >= 0 && end > start {
		trimmed = trimmed[start : end+1]
	}
	return json.Unmarshal([]byte(trimmed), target)
}
