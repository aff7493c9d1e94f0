package extract

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agilizei/irorganiza/internal/domain"
)

// modelDraft mirrors the JSON object the prompt asks for. Pointers keep
// missing and null fields distinguishable from empty ones.
type modelDraft struct {
	PayeeName   *string          `json:"payee_name"`
	TaxID       *string          `json:"tax_id"`
	Amount      *json.RawMessage `json:"amount"`
	Date        *string          `json:"date"`
	Category    *string          `json:"category"`
	Description *string          `json:"description"`
}

// parseDraft decodes the model output and applies per-field defaults. Only a
// response that is not a JSON object at all is an error; individual bad
// fields fall back independently.
func parseDraft(raw string, now time.Time) (domain.Draft, error) {
	clean := cleanModelJSON(raw)

	var m modelDraft
	if err := json.Unmarshal([]byte(clean), &m); err != nil {
		return domain.Draft{}, err
	}

	draft := domain.DefaultDraft(now)

	if m.PayeeName != nil && strings.TrimSpace(*m.PayeeName) != "" {
		draft.PayeeName = strings.TrimSpace(*m.PayeeName)
	}
	if m.TaxID != nil {
		draft.PayeeTaxID = domain.DigitsOnly(*m.TaxID)
	}
	if m.Amount != nil {
		// Accept both a JSON number and a quoted numeric string; anything
		// else leaves the amount blank for the user to fill in.
		lit := strings.Trim(strings.TrimSpace(string(*m.Amount)), `"`)
		if lit != "" && lit != "null" {
			if v, err := decimal.NewFromString(lit); err == nil {
				// A literal zero from the model is kept; the user decides.
				draft.Amount = v.String()
			}
		}
	}
	if m.Date != nil {
		if _, err := time.Parse(domain.DateLayout, *m.Date); err == nil {
			draft.Date = *m.Date
		}
	}
	if m.Category != nil {
		draft.Category = domain.CoerceCategory(*m.Category)
	}
	if m.Description != nil {
		draft.Description = strings.TrimSpace(*m.Description)
	}

	return draft, nil
}

// cleanModelJSON strips Markdown fences and surrounding junk that models
// sometimes emit despite instructions, keeping the outermost JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
