// Package classifier asks a multimodal chat model what civic issue a camera
// frame shows.
//
// The model is reached through langchaingo's OpenAI client, so any OpenAI
// compatible endpoint serving a vision model works:
//
//	c, err := classifier.New(classifier.Config{
//	    BaseURL: "https://api.openai.com/v1",
//	    Model:   "gpt-4o-mini",
//	    APIKey:  os.Getenv("CLASSIFIER_API_KEY"),
//	})
//	result, err := c.Classify(ctx, dataURI, types.Location{Lat: 17.38, Lng: 78.48})
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"civicwatch/pkg/types"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

var (
	// ErrNotConfigured is returned by every call when no API key is set.
	ErrNotConfigured = errors.New("classifier not configured")

	// ErrInvalidResponse indicates the model answered with something other than a verdict.
	ErrInvalidResponse = errors.New("invalid classifier response")
)

const systemPrompt = `You inspect photos taken by roadside municipal cameras and report civic infrastructure problems.
Answer with a single JSON object and nothing else, using exactly these keys:
  "issueType": a short category such as "Pothole", "Garbage Overflow", "Illegal Parking", "Road Damage", "Waterlogging" or "Streetlight Outage"; use "No Issues" when nothing needs attention,
  "severity": one of "Low", "Medium", "High",
  "aiDescription": one or two sentences describing what is visible and why it matters.`

type Config struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// Classifier turns a base64 image into a types.Classification.
type Classifier struct {
	model   llms.Model
	timeout time.Duration
}

// New builds a classifier backed by an OpenAI compatible endpoint. Without an
// API key the classifier is still returned but every call fails with
// ErrNotConfigured, which callers treat like any other outage.
func New(config Config) (*Classifier, error) {
	if config.APIKey == "" {
		return &Classifier{timeout: config.Timeout}, nil
	}

	opts := []openai.Option{
		openai.WithModel(config.Model),
		openai.WithToken(config.APIKey),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	return NewWithModel(llm, config.Timeout), nil
}

// NewWithModel wraps an existing langchaingo model.
func NewWithModel(model llms.Model, timeout time.Duration) *Classifier {
	return &Classifier{model: model, timeout: timeout}
}

func (c *Classifier) Classify(ctx context.Context, imageDataURI string, location types.Location) (*types.Classification, error) {
	if c.model == nil {
		return nil, ErrNotConfigured
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(fmt.Sprintf("Photo captured at latitude %.6f, longitude %.6f. Classify it.", location.Lat, location.Lng)),
				llms.ImageURLPart(imageDataURI),
			},
		},
	}

	resp, err := c.model.GenerateContent(ctx, messages, llms.WithTemperature(0))
	if err != nil {
		return nil, fmt.Errorf("generating classification: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrInvalidResponse)
	}

	return ParseClassification(resp.Choices[0].Content)
}

// ParseClassification reads the model's JSON verdict, tolerating markdown code
// fences and surrounding prose.
func ParseClassification(content string) (*types.Classification, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in %q", ErrInvalidResponse, content)
	}

	var result types.Classification
	if err := json.Unmarshal([]byte(content[start:end+1]), &result); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	result.IssueType = strings.TrimSpace(result.IssueType)
	if result.IssueType == "" {
		return nil, fmt.Errorf("%w: empty issue type", ErrInvalidResponse)
	}

	result.Severity = normalizeSeverity(result.Severity)
	if !result.Severity.Valid() {
		return nil, fmt.Errorf("%w: unknown severity %q", ErrInvalidResponse, result.Severity)
	}

	result.AIDescription = strings.TrimSpace(result.AIDescription)

	return &result, nil
}

func normalizeSeverity(s types.Severity) types.Severity {
	switch strings.ToLower(strings.TrimSpace(string(s))) {
	case "low":
		return types.SeverityLow
	case "medium":
		return types.SeverityMedium
	case "high":
		return types.SeverityHigh
	}
	return s
}
