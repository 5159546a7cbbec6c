package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sjperalta/covenantops-api/internal/models"
)

// ErrUnavailable is returned by providers that are configured but not implemented
var ErrUnavailable = errors.New("extractor not available")

// ExtractedObligation is one obligation proposed by an extractor
type ExtractedObligation struct {
	Name             string                `json:"name"`
	ObligationType   models.ObligationType `json:"obligation_type"`
	Description      string                `json:"description"`
	PartyResponsible string                `json:"party_responsible"`
	Frequency        models.Frequency      `json:"frequency"`
	DueDate          *models.Date          `json:"due_date"`
	DueRule          *string               `json:"due_rule"`
	NextDueAt        *time.Time            `json:"next_due_at"`
	Confidence       *float64              `json:"confidence"`
	SourceExcerpt    *string               `json:"source_excerpt"`
	SourcePage       *int                  `json:"source_page"`
}

// Extractor turns loan document text into proposed obligations
type Extractor interface {
	Name() string
	Extract(ctx context.Context, text string) ([]ExtractedObligation, error)
}

// New returns the extractor for provider ("mock" or "llm")
func New(provider string, now func() time.Time) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "mock":
		return NewMock(now), nil
	case "llm":
		return LLM{}, nil
	default:
		return nil, fmt.Errorf("unknown extractor provider %q", provider)
	}
}

// LLM is the placeholder for model-backed extraction
type LLM struct{}

func (LLM) Name() string { return "llm" }

func (LLM) Extract(ctx context.Context, text string) ([]ExtractedObligation, error) {
	return nil, fmt.Errorf("llm extraction is not enabled, use the mock provider: %w", ErrUnavailable)
}
