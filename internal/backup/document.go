// Package backup defines the portable snapshot format used to move a user's
// records between accounts or installations. Attachments never travel with
// a backup; only the record metadata does.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agilizei/irorganiza/internal/domain"
)

// FormatVersion is the current backup document version.
const FormatVersion = 1

// ErrBadBackup marks a document that failed validation. Nothing from such a
// document is imported.
var ErrBadBackup = errors.New("invalid backup document")

// ExpenseRecord is an expense as carried in a backup. Ids are assigned by
// the destination store on import, so none is carried here.
type ExpenseRecord struct {
	PayeeName     string  `json:"payee_name"`
	PayeeTaxID    string  `json:"payee_tax_id"`
	Amount        float64 `json:"amount"`
	Date          string  `json:"date"`
	Category      string  `json:"category"`
	Dependent     string  `json:"dependent"`
	Description   string  `json:"description"`
	HasAttachment bool    `json:"has_attachment"`
	MimeType      string  `json:"mime_type,omitempty"`
}

// DependentRecord is a dependent as carried in a backup.
type DependentRecord struct {
	Name string `json:"name"`
}

// Document is a whole-account snapshot: every expense and dependent, plus
// the moment it was taken.
type Document struct {
	Version    int               `json:"version"`
	Date       time.Time         `json:"date"`
	Expenses   []ExpenseRecord   `json:"expenses"`
	Dependents []DependentRecord `json:"dependents"`
}

// New builds a Document from live records, taken at the given moment.
func New(expenses []domain.Expense, dependents []domain.Dependent, at time.Time) Document {
	doc := Document{
		Version:    FormatVersion,
		Date:       at,
		Expenses:   make([]ExpenseRecord, 0, len(expenses)),
		Dependents: make([]DependentRecord, 0, len(dependents)),
	}
	for _, e := range expenses {
		doc.Expenses = append(doc.Expenses, ExpenseRecord{
			PayeeName:     e.PayeeName,
			PayeeTaxID:    e.PayeeTaxID,
			Amount:        e.Amount,
			Date:          e.Date,
			Category:      string(e.Category),
			Dependent:     e.Dependent,
			Description:   e.Description,
			HasAttachment: e.HasAttachment,
			MimeType:      e.MimeType,
		})
	}
	for _, d := range dependents {
		doc.Dependents = append(doc.Dependents, DependentRecord{Name: d.Name})
	}
	return doc
}

// Validate checks the document wholesale: version must match and both
// collections must be present (empty is fine, missing is not).
func (d Document) Validate() error {
	if d.Version != FormatVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrBadBackup, d.Version)
	}
	if d.Expenses == nil {
		return fmt.Errorf("%w: missing expenses", ErrBadBackup)
	}
	if d.Dependents == nil {
		return fmt.Errorf("%w: missing dependents", ErrBadBackup)
	}
	for i, e := range d.Expenses {
		if e.PayeeName == "" {
			return fmt.Errorf("%w: expense %d has no payee name", ErrBadBackup, i)
		}
		if _, err := time.Parse(domain.DateLayout, e.Date); err != nil {
			return fmt.Errorf("%w: expense %d has bad date %q", ErrBadBackup, i, e.Date)
		}
	}
	for i, dep := range d.Dependents {
		if dep.Name == "" {
			return fmt.Errorf("%w: dependent %d has no name", ErrBadBackup, i)
		}
	}
	return nil
}

// Decode parses and validates a serialized backup.
func Decode(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrBadBackup, err)
	}
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Encode serializes the document for transfer or download.
func (d Document) Encode() ([]byte, error) {
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}
	return out, nil
}

// ToExpense converts a carried record back into a live expense. The id and
// creation time are left for the destination store to assign.
func (r ExpenseRecord) ToExpense() domain.Expense {
	return domain.Expense{
		PayeeName:     r.PayeeName,
		PayeeTaxID:    r.PayeeTaxID,
		Amount:        r.Amount,
		Date:          r.Date,
		Category:      domain.CoerceCategory(r.Category),
		Dependent:     r.Dependent,
		Description:   r.Description,
		HasAttachment: r.HasAttachment,
		MimeType:      r.MimeType,
	}
}
