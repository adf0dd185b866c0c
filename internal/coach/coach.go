package coach

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// NoFeedbackSummary is the summary of a run without any feedback.
const NoFeedbackSummary = "No feedback was provided to summarize."

// Result is the coaching outcome for one pose. When Error is set the other
// fields may be empty.
type Result struct {
	ExpectedPose string   `json:"expectedPose"`
	DetectedPose string   `json:"detectedPose,omitempty"`
	Errors       []string `json:"errorDescriptions,omitempty"`
	Unparsed     bool     `json:"unparsed,omitempty"`
	SpeechText   string   `json:"speechText,omitempty"`
	Speech       string   `json:"speech,omitempty"` // audio data URI
	Explanation  string   `json:"explanation,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Failed reports whether the result carries an error.
func (r Result) Failed() bool {
	return r.Error != ""
}

// Text returns the explanation, or the error for failed results.
func (r Result) Text() string {
	if r.Failed() {
		return r.Error
	}
	return r.Explanation
}

// Summary is the end-of-run wrap-up.
type Summary struct {
	Text   string `json:"summaryText,omitempty"`
	Speech string `json:"summarySpeech,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Config wires the external services. Speaker may be nil for text-only
// feedback.
type Config struct {
	Classifier Classifier
	Generator  Generator
	Speaker    Speaker
	Logger     *slog.Logger
}

// Coach runs the classify, explain and speak chain.
type Coach struct {
	classifier Classifier
	generator  Generator
	speaker    Speaker
	logger     *slog.Logger
}

// New creates a Coach.
func New(cfg Config) *Coach {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coach{
		classifier: cfg.Classifier,
		generator:  cfg.Generator,
		speaker:    cfg.Speaker,
		logger:     logger.With("component", "coach"),
	}
}

// Analyze classifies a recorded pose buffer and produces feedback for the
// expected pose.
func (c *Coach) Analyze(ctx context.Context, expectedPose string, samples []Sample, previous string) Result {
	csvData, err := EncodeCSV(samples)
	if err != nil {
		return c.fail(expectedPose, "encode landmarks", err)
	}
	if len(csvData) == 0 {
		return Result{ExpectedPose: expectedPose, Error: ErrEmptyCSV.Error()}
	}
	if c.classifier == nil {
		return c.fail(expectedPose, "get analysis", fmt.Errorf("classifier %w", ErrNotConfigured))
	}

	verdicts, err := c.classifier.Classify(ctx, csvData)
	if err == nil && len(verdicts) == 0 {
		err = ErrNoVerdicts
	}
	if err != nil {
		c.logger.Error("pose analysis failed", "pose", expectedPose, "frames", len(samples), "error", err)
		return Result{ExpectedPose: expectedPose, Error: "Failed to get analysis. Details: " + err.Error()}
	}
	return c.Feedback(ctx, expectedPose, verdicts[0], previous)
}

// Feedback turns one classifier verdict into coaching text and speech.
func (c *Coach) Feedback(ctx context.Context, expectedPose string, v Verdict, previous string) Result {
	details := Lookup(v.PoseName, v.SpeechText)
	res := Result{
		ExpectedPose: expectedPose,
		DetectedPose: details.GestureName,
		Errors:       details.Errors,
		Unparsed:     details.Unparsed,
	}
	if details.Unparsed {
		c.logger.Warn("could not read error codes", "pose", expectedPose, "speech_text", v.SpeechText)
	}
	if c.generator == nil {
		res.Error = fmt.Sprintf("Failed to get feedback from AI coach. Details: generator %v", ErrNotConfigured)
		return res
	}

	prompt, err := renderFeedbackPrompt(feedbackInput{
		ExpectedPose:  expectedPose,
		ActualPose:    details.GestureName,
		Errors:        details.Errors,
		Previous:      previous,
		PoseIsCorrect: expectedPose == details.GestureName,
	})
	if err != nil {
		return c.fail(expectedPose, "render prompt", err)
	}

	var out struct {
		Speech      string `json:"speech"`
		Explanation string `json:"explanation"`
	}
	if err := c.generator.GenerateJSON(ctx, prompt, &out); err != nil {
		c.logger.Error("coach feedback failed", "pose", expectedPose, "error", err)
		res.Error = "Failed to get feedback from AI coach. Details: " + err.Error()
		return res
	}
	res.SpeechText = strings.TrimSpace(out.Speech)
	res.Explanation = strings.TrimSpace(out.Explanation)
	res.Speech = c.speak(ctx, res.SpeechText)
	return res
}

// Summarize writes the final summary from per-pose feedback texts.
func (c *Coach) Summarize(ctx context.Context, items []string) Summary {
	kept := items[:0:0]
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			kept = append(kept, it)
		}
	}
	if len(kept) == 0 {
		return Summary{Text: NoFeedbackSummary}
	}
	if c.generator == nil {
		return Summary{Error: fmt.Sprintf("Failed to get final summary from AI coach. Details: generator %v", ErrNotConfigured)}
	}

	prompt, err := renderSummaryPrompt(kept)
	if err != nil {
		return Summary{Error: err.Error()}
	}
	var out struct {
		Summary string `json:"summary"`
	}
	if err := c.generator.GenerateJSON(ctx, prompt, &out); err != nil {
		c.logger.Error("coach summary failed", "items", len(kept), "error", err)
		return Summary{Error: "Failed to get final summary from AI coach. Details: " + err.Error()}
	}
	s := Summary{Text: strings.TrimSpace(out.Summary)}
	s.Speech = c.speak(ctx, s.Text)
	return s
}

// speak returns an audio URI, or "" when speech is unavailable.
func (c *Coach) speak(ctx context.Context, text string) string {
	if text == "" || c.speaker == nil {
		return ""
	}
	uri, err := c.speaker.Speak(ctx, text)
	if err != nil {
		c.logger.Warn("text to speech failed, continuing with text only", "error", err)
		return ""
	}
	return uri
}

func (c *Coach) fail(expectedPose, op string, err error) Result {
	c.logger.Error("coach "+op+" failed", "pose", expectedPose, "error", err)
	return Result{ExpectedPose: expectedPose, Error: fmt.Sprintf("%s: %v", op, err)}
}
