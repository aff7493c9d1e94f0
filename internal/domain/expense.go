package domain

import (
	"strings"
	"time"
)

// Category classifies a deductible expense. The four labels are fixed by the
// Brazilian income tax deduction groups the organizer covers.
type Category string

const (
	CategoryHealth    Category = "Health"
	CategoryEducation Category = "Education"
	CategoryPension   Category = "Pension"
	CategoryOther     Category = "Other"
)

// DependentSelf is the implicit dependent label for the account owner.
const DependentSelf = "Self"

// DateLayout is the calendar date form used on records and drafts.
const DateLayout = "2006-01-02"

// Categories returns all valid category labels.
func Categories() []Category {
	return []Category{CategoryHealth, CategoryEducation, CategoryPension, CategoryOther}
}

// CoerceCategory maps anything that is not a known category label to
// CategoryOther. Previously written records may carry malformed values.
func CoerceCategory(v string) Category {
	switch Category(strings.TrimSpace(v)) {
	case CategoryHealth:
		return CategoryHealth
	case CategoryEducation:
		return CategoryEducation
	case CategoryPension:
		return CategoryPension
	default:
		return CategoryOther
	}
}

// Expense is one deductible expense as held by the remote record store.
// The attachment itself never leaves the device that captured it; the record
// only carries HasAttachment and MimeType so the blob can be located and
// rendered locally.
type Expense struct {
	ID            string    `json:"id"`
	PayeeName     string    `json:"payee_name"`
	PayeeTaxID    string    `json:"payee_tax_id"`
	Amount        float64   `json:"amount"`
	Date          string    `json:"date"`
	Category      Category  `json:"category"`
	Dependent     string    `json:"dependent"`
	Description   string    `json:"description"`
	HasAttachment bool      `json:"has_attachment"`
	MimeType      string    `json:"mime_type"`
	CreatedAt     time.Time `json:"created_at"`
}

// Dependent is a person expenses can be attributed to.
type Dependent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DigitsOnly strips everything but ASCII digits. Tax ids are stored in
// digits-only form regardless of the punctuation the source document used.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
