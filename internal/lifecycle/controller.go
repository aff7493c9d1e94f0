// Package lifecycle coordinates the two stores behind every record
// operation: the remote record store owns the metadata and the local
// attachment store owns the bytes. The remote write always lands first;
// a failed local write degrades the record, never the operation.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agilizei/irorganiza/internal/domain"
	"github.com/agilizei/irorganiza/internal/recordstore"
)

// ErrNoIdentity reports an operation attempted without a resolved owner.
// No store is touched in that case.
var ErrNoIdentity = errors.New("no identity resolved")

// ErrEmptyName reports a dependent submitted without a name.
var ErrEmptyName = errors.New("dependent name is empty")

// AttachmentStore is the device-local blob store the controller writes
// captures to, keyed by expense id.
type AttachmentStore interface {
	Put(ctx context.Context, id string, data []byte) error
	Get(ctx context.Context, id string) ([]byte, bool)
	Delete(ctx context.Context, id string) error
}

// Capture is a document captured alongside a draft: the raw bytes plus
// their media type.
type Capture struct {
	Data     []byte
	MimeType string
}

// View is a materialized expense: the record plus its attachment bytes.
// Attachment is nil when the record has none, or when the local store can
// no longer produce it.
type View struct {
	Expense    domain.Expense
	Attachment []byte
}

// Controller implements the record lifecycle over a record store and an
// attachment store.
type Controller struct {
	records recordstore.Store
	blobs   AttachmentStore
	log     zerolog.Logger
	now     func() time.Time
}

// New creates a Controller.
func New(records recordstore.Store, blobs AttachmentStore, log zerolog.Logger) *Controller {
	return &Controller{records: records, blobs: blobs, log: log, now: time.Now}
}

func requireOwner(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return ErrNoIdentity
	}
	return nil
}

// Create validates the draft, writes the expense record remotely, then
// stores the capture locally under the new id. A failed local write is
// logged and swallowed: the record stands, flagged as having an attachment
// it can no longer produce.
func (c *Controller) Create(ctx context.Context, owner string, draft domain.Draft, capture *Capture) (domain.Expense, error) {
	if err := requireOwner(owner); err != nil {
		return domain.Expense{}, err
	}
	if err := draft.Validate(); err != nil {
		return domain.Expense{}, err
	}

	amount, err := draft.AmountValue()
	if err != nil {
		return domain.Expense{}, err
	}

	e := domain.Expense{
		PayeeName:     strings.TrimSpace(draft.PayeeName),
		PayeeTaxID:    domain.DigitsOnly(draft.PayeeTaxID),
		Amount:        amount,
		Date:          draft.Date,
		Category:      domain.CoerceCategory(string(draft.Category)),
		Dependent:     draft.Dependent,
		Description:   draft.Description,
		HasAttachment: capture != nil,
		CreatedAt:     c.now(),
	}
	if e.Dependent == "" {
		e.Dependent = domain.DependentSelf
	}
	if capture != nil {
		e.MimeType = capture.MimeType
	}

	id, err := c.records.CreateExpense(ctx, owner, e)
	if err != nil {
		return domain.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	e.ID = id

	if capture != nil {
		if err := c.blobs.Put(ctx, id, capture.Data); err != nil {
			c.log.Error().Err(err).Str("expense_id", id).Msg("Attachment write failed, record kept without local bytes")
		}
	}

	return e, nil
}

// Update replaces an existing record's fields with the draft. A new capture
// replaces the stored attachment; without one, the previous attachment state
// carries over untouched.
func (c *Controller) Update(ctx context.Context, owner, id string, draft domain.Draft, capture *Capture) (domain.Expense, error) {
	if err := requireOwner(owner); err != nil {
		return domain.Expense{}, err
	}
	if err := draft.Validate(); err != nil {
		return domain.Expense{}, err
	}

	prev, err := c.FindExpense(ctx, owner, id)
	if err != nil {
		return domain.Expense{}, err
	}

	amount, err := draft.AmountValue()
	if err != nil {
		return domain.Expense{}, err
	}

	e := domain.Expense{
		ID:            id,
		PayeeName:     strings.TrimSpace(draft.PayeeName),
		PayeeTaxID:    domain.DigitsOnly(draft.PayeeTaxID),
		Amount:        amount,
		Date:          draft.Date,
		Category:      domain.CoerceCategory(string(draft.Category)),
		Dependent:     draft.Dependent,
		Description:   draft.Description,
		HasAttachment: capture != nil || prev.HasAttachment,
		MimeType:      prev.MimeType,
		CreatedAt:     prev.CreatedAt,
	}
	if e.Dependent == "" {
		e.Dependent = domain.DependentSelf
	}
	if capture != nil {
		e.MimeType = capture.MimeType
	}

	if err := c.records.UpdateExpense(ctx, owner, id, e); err != nil {
		return domain.Expense{}, fmt.Errorf("update expense %s: %w", id, err)
	}

	if capture != nil {
		if err := c.blobs.Put(ctx, id, capture.Data); err != nil {
			c.log.Error().Err(err).Str("expense_id", id).Msg("Attachment write failed, record kept without local bytes")
		}
	}

	return e, nil
}

// Delete removes the record remotely, then clears the local attachment
// best-effort. A failed blob delete leaves an orphaned blob, which a later
// write under the same id would overwrite.
func (c *Controller) Delete(ctx context.Context, owner, id string) error {
	if err := requireOwner(owner); err != nil {
		return err
	}
	if err := c.records.DeleteExpense(ctx, owner, id); err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	if err := c.blobs.Delete(ctx, id); err != nil {
		c.log.Warn().Err(err).Str("expense_id", id).Msg("Attachment delete failed, blob orphaned")
	}
	return nil
}

// FindExpense returns the record with the given id, or
// recordstore.ErrNotFound.
func (c *Controller) FindExpense(ctx context.Context, owner, id string) (domain.Expense, error) {
	if err := requireOwner(owner); err != nil {
		return domain.Expense{}, err
	}
	list, err := c.records.ListExpenses(ctx, owner)
	if err != nil {
		return domain.Expense{}, fmt.Errorf("list expenses: %w", err)
	}
	for _, e := range list {
		if e.ID == id {
			return coerceExpense(e), nil
		}
	}
	return domain.Expense{}, fmt.Errorf("expense %s: %w", id, recordstore.ErrNotFound)
}

// Materialize joins a record with its attachment bytes. A record flagged
// with an attachment the local store cannot produce comes back with a nil
// Attachment; the caller decides how to surface the degraded state.
func (c *Controller) Materialize(ctx context.Context, owner, id string) (View, error) {
	e, err := c.FindExpense(ctx, owner, id)
	if err != nil {
		return View{}, err
	}
	v := View{Expense: e}
	if e.HasAttachment {
		if data, ok := c.blobs.Get(ctx, id); ok {
			v.Attachment = data
		}
	}
	return v, nil
}

// ListExpenses returns all records for the owner, newest date first.
func (c *Controller) ListExpenses(ctx context.Context, owner string) ([]domain.Expense, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	list, err := c.records.ListExpenses(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	coerceExpenses(list)
	sortExpenses(list)
	return list, nil
}

// ListDependents returns the owner's dependents sorted by name.
func (c *Controller) ListDependents(ctx context.Context, owner string) ([]domain.Dependent, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	list, err := c.records.ListDependents(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list dependents: %w", err)
	}
	sortDependents(list)
	return list, nil
}

// AddDependent creates a named dependent for the owner.
func (c *Controller) AddDependent(ctx context.Context, owner, name string) (domain.Dependent, error) {
	if err := requireOwner(owner); err != nil {
		return domain.Dependent{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Dependent{}, ErrEmptyName
	}
	id, err := c.records.CreateDependent(ctx, owner, domain.Dependent{Name: name})
	if err != nil {
		return domain.Dependent{}, fmt.Errorf("create dependent: %w", err)
	}
	return domain.Dependent{ID: id, Name: name}, nil
}

// DeleteDependent removes a dependent record. Expenses already attributed
// to the dependent keep the name they were saved with.
func (c *Controller) DeleteDependent(ctx context.Context, owner, id string) error {
	if err := requireOwner(owner); err != nil {
		return err
	}
	if err := c.records.DeleteDependent(ctx, owner, id); err != nil {
		return fmt.Errorf("delete dependent %s: %w", id, err)
	}
	return nil
}

// coerceExpense repairs a stored record for presentation: an unknown
// category, however it got persisted, reads as Other.
func coerceExpense(e domain.Expense) domain.Expense {
	e.Category = domain.CoerceCategory(string(e.Category))
	return e
}

func coerceExpenses(list []domain.Expense) {
	for i := range list {
		list[i] = coerceExpense(list[i])
	}
}

// sortExpenses orders newest date first, ties broken by creation time then
// id so the order is stable across snapshots.
func sortExpenses(list []domain.Expense) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Date != list[j].Date {
			return list[i].Date > list[j].Date
		}
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}

func sortDependents(list []domain.Dependent) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
}
