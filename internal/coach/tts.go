package coach

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTTSBaseURL = "https://api.elevenlabs.io/v1"
	defaultTTSModel   = "eleven_multilingual_v2"
	defaultTTSTimeout = 30 * time.Second
)

// Speaker converts text to a playable audio data URI.
type Speaker interface {
	Speak(ctx context.Context, text string) (string, error)
}

// TTSConfig configures the ElevenLabs text-to-speech client.
type TTSConfig struct {
	APIKey  string
	BaseURL string
	VoiceID string
	Model   string
	Timeout time.Duration
}

// ElevenLabs calls the text-to-speech endpoint of one voice.
type ElevenLabs struct {
	cfg  TTSConfig
	http *http.Client
}

// NewElevenLabs constructs a TTS client, filling defaults.
func NewElevenLabs(cfg TTSConfig) *ElevenLabs {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.VoiceID = strings.TrimSpace(cfg.VoiceID)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTTSBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultTTSModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTTSTimeout
	}
	return &ElevenLabs{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type ttsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
	VoiceSettings struct {
		Stability       float64 `json:"stability"`
		SimilarityBoost float64 `json:"similarity_boost"`
	} `json:"voice_settings"`
}

// Speak returns text as a data:audio/mpeg;base64 URI.
func (e *ElevenLabs) Speak(ctx context.Context, text string) (string, error) {
	if e.cfg.APIKey == "" || e.cfg.VoiceID == "" {
		return "", fmt.Errorf("tts: api key or voice id %w", ErrNotConfigured)
	}

	payload := ttsRequest{Text: text, ModelID: e.cfg.Model}
	payload.VoiceSettings.Stability = 0.5
	payload.VoiceSettings.SimilarityBoost = 0.75
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("tts: encode body: %w", err)
	}

	endpoint := e.cfg.BaseURL + "/text-to-speech/" + url.PathEscape(e.cfg.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("tts: new request: %w", err)
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.cfg.APIKey)

	resp, err := e.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("tts: http request: %w", err)
	}
	defer resp.Body.Close()
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("tts: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("tts: request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(audio)))
	}
	return "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString(audio), nil
}
