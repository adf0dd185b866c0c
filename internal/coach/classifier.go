package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	csvFieldName         = "file"
	csvFileName          = "pose_data.csv"
	defaultClassifierTTL = 60 * time.Second
)

// Classifier errors.
var (
	ErrEmptyCSV = errors.New("CSV data is empty")
	ErrNoVerdicts = errors.New("analysis successful, but feedback data is missing from the response")
)

// Verdict is one classifier answer: the detected gesture label and its
// spoken error summary.
type Verdict struct {
	PoseName    string `json:"poseName"`
	SpeechText  string `json:"speechText"`
	Explanation string `json:"explanation"`
}

// Classifier turns a CSV landmark log into verdicts.
type Classifier interface {
	Classify(ctx context.Context, csvData []byte) ([]Verdict, error)
}

// HTTPClassifier posts the CSV as a multipart upload.
type HTTPClassifier struct {
	url  string
	http *http.Client
}

// NewHTTPClassifier creates a classifier client for url. A zero timeout
// selects the default.
func NewHTTPClassifier(url string, timeout time.Duration) *HTTPClassifier {
	if timeout <= 0 {
		timeout = defaultClassifierTTL
	}
	return &HTTPClassifier{
		url:  strings.TrimSpace(url),
		http: &http.Client{Timeout: timeout},
	}
}

// Classify uploads csvData and returns the feedback list.
func (c *HTTPClassifier) Classify(ctx context.Context, csvData []byte) ([]Verdict, error) {
	if len(csvData) == 0 {
		return nil, ErrEmptyCSV
	}
	if c.url == "" {
		return nil, errors.New("classifier: url not configured")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	field, err := writer.CreateFormFile(csvFieldName, csvFileName)
	if err != nil {
		return nil, fmt.Errorf("classifier: create file field: %w", err)
	}
	if _, err := field.Write(csvData); err != nil {
		return nil, fmt.Errorf("classifier: write csv: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("classifier: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, fmt.Errorf("classifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier: http request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("classifier: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		Feedbacks []Verdict `json:"feedbacks"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("classifier: decode response: %w", err)
	}
	if len(parsed.Feedbacks) == 0 {
		return nil, ErrNoVerdicts
	}
	return parsed.Feedbacks, nil
}
