// Package extract turns a captured receipt image or PDF into an expense
// draft via a single model call. Extraction never fails outward: any error
// collapses the draft to its per-field defaults.
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/agilizei/irorganiza/internal/domain"
)

// ExtractionTimeout bounds the single model round trip.
const ExtractionTimeout = 60 * time.Second

// Analyzer produces an expense draft from raw document bytes. The draft is
// always complete and typed; a non-nil error means extraction fell back to
// the defaults and says why.
type Analyzer interface {
	Analyze(ctx context.Context, data []byte, mimeType string) (domain.Draft, error)
}

// GeminiAnalyzer implements Analyzer with one Gemini GenerateContent call.
type GeminiAnalyzer struct {
	client *genai.Client
	model  string
	log    zerolog.Logger
	now    func() time.Time
}

// NewGeminiAnalyzer creates the analyzer. The client is created once and
// reused for every call.
func NewGeminiAnalyzer(ctx context.Context, apiKey, model string, log zerolog.Logger) (*GeminiAnalyzer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiAnalyzer{client: client, model: model, log: log, now: time.Now}, nil
}

// Analyze sends the document to the model and parses the response field by
// field. On any failure it returns the default draft alongside the cause, so
// the caller always has something the user can correct by hand.
func (a *GeminiAnalyzer) Analyze(ctx context.Context, data []byte, mimeType string) (domain.Draft, error) {
	ctx, cancel := context.WithTimeout(ctx, ExtractionTimeout)
	defer cancel()

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: receiptPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     data,
					},
				},
			},
		},
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, cfg)
	if err != nil {
		a.log.Warn().Err(err).Msg("Receipt extraction failed, falling back to empty draft")
		return domain.DefaultDraft(a.now()), fmt.Errorf("generate content: %w", err)
	}

	raw := resp.Text()
	if raw == "" {
		a.log.Warn().Msg("Receipt extraction returned empty response, falling back to empty draft")
		return domain.DefaultDraft(a.now()), fmt.Errorf("empty model response")
	}

	draft, err := parseDraft(raw, a.now())
	if err != nil {
		a.log.Warn().Err(err).Msg("Receipt extraction returned unparsable JSON, falling back to empty draft")
		return domain.DefaultDraft(a.now()), fmt.Errorf("unmarshal model response: %w", err)
	}
	return draft, nil
}

var _ Analyzer = (*GeminiAnalyzer)(nil)
