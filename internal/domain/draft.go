package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidDraft marks a draft that is missing a field required at save
// time. No write is attempted for such a draft.
var ErrInvalidDraft = errors.New("draft is missing required fields")

// FallbackPayee is the payee name used when extraction could not identify
// the payee on the document.
const FallbackPayee = "Not identified"

// Draft is an in-memory, not-yet-persisted set of expense fields, produced
// by the extraction pipeline or by manual entry. Amount stays textual until
// save time so the user can edit it freely.
type Draft struct {
	PayeeName   string   `json:"payee_name"`
	PayeeTaxID  string   `json:"payee_tax_id"`
	Amount      string   `json:"amount"`
	Date        string   `json:"date"`
	Category    Category `json:"category"`
	Dependent   string   `json:"dependent"`
	Description string   `json:"description"`
}

// DefaultDraft returns the all-defaults draft: fallback payee, today's date,
// category Other, dependent Self, everything else empty. Extraction failure
// always collapses to exactly this shape.
func DefaultDraft(now time.Time) Draft {
	return Draft{
		PayeeName: FallbackPayee,
		Date:      now.Format(DateLayout),
		Category:  CategoryOther,
		Dependent: DependentSelf,
	}
}

// Validate checks the fields required before any write is attempted:
// a non-empty payee name and a parseable amount. Positive amounts are
// expected but not enforced here.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.PayeeName) == "" {
		return fmt.Errorf("%w: payee name", ErrInvalidDraft)
	}
	if strings.TrimSpace(d.Amount) == "" {
		return fmt.Errorf("%w: amount", ErrInvalidDraft)
	}
	if _, err := decimal.NewFromString(strings.TrimSpace(d.Amount)); err != nil {
		return fmt.Errorf("%w: amount %q", ErrInvalidDraft, d.Amount)
	}
	return nil
}

// AmountValue coerces the textual amount to the numeric value persisted on
// the record.
func (d Draft) AmountValue() (float64, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(d.Amount))
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", d.Amount, err)
	}
	return v.InexactFloat64(), nil
}
