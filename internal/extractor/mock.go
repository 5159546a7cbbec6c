package extractor

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sjperalta/covenantops-api/internal/models"
)

const (
	excerptLength  = 240
	defaultExcerpt = "Borrower shall deliver the following information within the required time periods."
)

// Mock returns a fixed set of typical credit-agreement obligations with
// deadlines relative to the clock.
type Mock struct {
	now func() time.Time
}

func NewMock(now func() time.Time) *Mock {
	if now == nil {
		now = time.Now
	}
	return &Mock{now: now}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Extract(ctx context.Context, text string) ([]ExtractedObligation, error) {
	now := m.now().UTC().Truncate(time.Second)
	today := models.DateOf(now)
	excerpt := Excerpt(text)

	in := func(days int) *time.Time {
		t := now.AddDate(0, 0, days)
		return &t
	}
	on := func(days int) *models.Date {
		d := models.DateOf(today.AddDate(0, 0, days))
		return &d
	}

	canned := []ExtractedObligation{
		{
			Name:           "Quarterly financial statements",
			ObligationType: models.ObligationTypeReporting,
			Description:    "Deliver quarterly unaudited consolidated financial statements.",
			Frequency:      models.FrequencyQuarterly,
			DueRule:        str("Within 45 days after quarter-end"),
			NextDueAt:      in(10),
			Confidence:     score(0.88),
		},
		{
			Name:           "Quarterly compliance certificate",
			ObligationType: models.ObligationTypeReporting,
			Description:    "Deliver an officer's certificate confirming covenant compliance.",
			Frequency:      models.FrequencyQuarterly,
			DueRule:        str("Together with quarterly financial statements"),
			NextDueAt:      in(10),
			Confidence:     score(0.82),
		},
		{
			Name:           "Monthly borrowing base certificate",
			ObligationType: models.ObligationTypeReporting,
			Description:    "Deliver borrowing base certificate with supporting schedules.",
			Frequency:      models.FrequencyMonthly,
			DueRule:        str("Within 15 days after month-end"),
			NextDueAt:      in(2),
			Confidence:     score(0.8),
		},
		{
			Name:           "Annual audited financial statements",
			ObligationType: models.ObligationTypeReporting,
			Description:    "Deliver annual audited financial statements.",
			Frequency:      models.FrequencyAnnual,
			DueRule:        str("Within 120 days after fiscal year-end"),
			NextDueAt:      in(60),
			Confidence:     score(0.9),
		},
		{
			Name:           "Leverage ratio maintenance covenant",
			ObligationType: models.ObligationTypeCovenant,
			Description:    "Maintain a maximum leverage ratio, tested quarterly.",
			Frequency:      models.FrequencyQuarterly,
			DueRule:        str("Tested quarterly; reported with compliance certificate"),
			NextDueAt:      in(-3),
			Confidence:     score(0.7),
		},
		{
			Name:           "Notice of Default / Event of Default",
			ObligationType: models.ObligationTypeNotice,
			Description:    "Notify Agent promptly upon becoming aware of a Default or Event of Default.",
			Frequency:      models.FrequencyAdHoc,
			DueRule:        str("Within 2 business days of awareness"),
			Confidence:     score(0.78),
		},
		{
			Name:           "Negative pledge (ongoing)",
			ObligationType: models.ObligationTypeCovenant,
			Description:    "Do not create or permit liens except as permitted under the agreement.",
			Frequency:      models.FrequencyAdHoc,
			DueRule:        str("Ongoing; monitor continuously"),
			Confidence:     score(0.65),
		},
		{
			Name:           "Annual budget delivery",
			ObligationType: models.ObligationTypeInformation,
			Description:    "Deliver annual operating budget and projections for the upcoming fiscal year.",
			Frequency:      models.FrequencyAnnual,
			DueRule:        str("No later than 30 days prior to fiscal year start"),
			NextDueAt:      in(20),
			Confidence:     score(0.74),
		},
		{
			Name:           "Material litigation notice",
			ObligationType: models.ObligationTypeEvent,
			Description:    "Notify Agent of any material litigation or governmental investigation.",
			Frequency:      models.FrequencyAdHoc,
			DueRule:        str("Promptly upon occurrence"),
			Confidence:     score(0.62),
		},
		{
			Name:           "ESG KPI report (optional)",
			ObligationType: models.ObligationTypeReporting,
			Description:    "Deliver annual ESG KPI reporting package (if applicable).",
			Frequency:      models.FrequencyAnnual,
			DueRule:        str("Annually within 90 days after fiscal year-end"),
			NextDueAt:      in(12),
			Confidence:     score(0.6),
		},
		{
			Name:           "Initial conditions precedent checklist",
			ObligationType: models.ObligationTypeInformation,
			Description:    "Provide initial closing deliverables checklist and confirmations.",
			Frequency:      models.FrequencyOnce,
			DueDate:        on(-1),
			DueRule:        str("On or before closing"),
			Confidence:     score(0.55),
		},
	}

	mentionsESG := strings.Contains(strings.ToLower(text), "esg")
	out := make([]ExtractedObligation, 0, len(canned))
	for _, o := range canned {
		if !mentionsESG && strings.Contains(o.Name, "ESG") {
			continue
		}
		o.PartyResponsible = "Borrower"
		o.SourceExcerpt = str(excerpt)
		out = append(out, o)
	}
	return out, nil
}

// Excerpt is the first 240 characters of the text on one line, or a default sentence
func Excerpt(text string) string {
	flat := strings.ReplaceAll(strings.TrimSpace(text), "\n", " ")
	if flat == "" {
		return defaultExcerpt
	}
	if utf8.RuneCountInString(flat) <= excerptLength {
		return flat
	}
	return string([]rune(flat)[:excerptLength])
}

func str(s string) *string { return &s }

func score(f float64) *float64 { return &f }
