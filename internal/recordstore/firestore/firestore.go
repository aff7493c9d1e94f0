// Package firestore implements recordstore.Store on Cloud Firestore, with
// records under artifacts/{appID}/users/{owner}/{expenses,dependents}.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/agilizei/irorganiza/internal/domain"
	"github.com/agilizei/irorganiza/internal/recordstore"
)

// Store is the Cloud Firestore implementation of the record store
// capability. It holds a shared client for the process lifetime.
type Store struct {
	client *firestore.Client
	appID  string
	log    zerolog.Logger
}

// New creates a Store backed by the given project. Credentials come from
// the application default chain.
func New(ctx context.Context, projectID, appID string, log zerolog.Logger) (*Store, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &Store{client: client, appID: appID, log: log}, nil
}

// Close releases the client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *Store) expenses(owner string) *firestore.CollectionRef {
	return s.client.Collection("artifacts").Doc(s.appID).Collection("users").Doc(owner).Collection("expenses")
}

func (s *Store) dependents(owner string) *firestore.CollectionRef {
	return s.client.Collection("artifacts").Doc(s.appID).Collection("users").Doc(owner).Collection("dependents")
}

// expenseDoc is the stored field layout. The id lives on the document ref,
// never inside the document.
type expenseDoc struct {
	PayeeName     string    `firestore:"payee_name"`
	PayeeTaxID    string    `firestore:"payee_tax_id"`
	Amount        float64   `firestore:"amount"`
	Date          string    `firestore:"date"`
	Category      string    `firestore:"category"`
	Dependent     string    `firestore:"dependent"`
	Description   string    `firestore:"description"`
	HasAttachment bool      `firestore:"has_attachment"`
	MimeType      string    `firestore:"mime_type"`
	CreatedAt     time.Time `firestore:"created_at"`
}

type dependentDoc struct {
	Name string `firestore:"name"`
}

func toExpenseDoc(e domain.Expense) expenseDoc {
	return expenseDoc{
		PayeeName:     e.PayeeName,
		PayeeTaxID:    e.PayeeTaxID,
		Amount:        e.Amount,
		Date:          e.Date,
		Category:      string(e.Category),
		Dependent:     e.Dependent,
		Description:   e.Description,
		HasAttachment: e.HasAttachment,
		MimeType:      e.MimeType,
		CreatedAt:     e.CreatedAt,
	}
}

func (d expenseDoc) toDomain(id string) domain.Expense {
	return domain.Expense{
		ID:            id,
		PayeeName:     d.PayeeName,
		PayeeTaxID:    d.PayeeTaxID,
		Amount:        d.Amount,
		Date:          d.Date,
		Category:      domain.Category(d.Category),
		Dependent:     d.Dependent,
		Description:   d.Description,
		HasAttachment: d.HasAttachment,
		MimeType:      d.MimeType,
		CreatedAt:     d.CreatedAt,
	}
}

// CreateExpense implements recordstore.Store. The store assigns the id.
func (s *Store) CreateExpense(ctx context.Context, owner string, e domain.Expense) (string, error) {
	ref, _, err := s.expenses(owner).Add(ctx, toExpenseDoc(e))
	if err != nil {
		return "", fmt.Errorf("create expense: %w", err)
	}
	return ref.ID, nil
}

// UpdateExpense implements recordstore.Store with a whole-document write.
func (s *Store) UpdateExpense(ctx context.Context, owner, id string, e domain.Expense) error {
	if _, err := s.expenses(owner).Doc(id).Set(ctx, toExpenseDoc(e)); err != nil {
		return fmt.Errorf("update expense %s: %w", id, err)
	}
	return nil
}

// DeleteExpense implements recordstore.Store.
func (s *Store) DeleteExpense(ctx context.Context, owner, id string) error {
	if _, err := s.expenses(owner).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	return nil
}

// ListExpenses implements recordstore.Store.
func (s *Store) ListExpenses(ctx context.Context, owner string) ([]domain.Expense, error) {
	it := s.expenses(owner).Documents(ctx)
	defer it.Stop()

	var out []domain.Expense
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list expenses: %w", err)
		}
		var d expenseDoc
		if err := doc.DataTo(&d); err != nil {
			s.log.Warn().Err(err).Str("id", doc.Ref.ID).Msg("Skipping malformed expense document")
			continue
		}
		out = append(out, d.toDomain(doc.Ref.ID))
	}
	return out, nil
}

// CreateDependent implements recordstore.Store.
func (s *Store) CreateDependent(ctx context.Context, owner string, d domain.Dependent) (string, error) {
	ref, _, err := s.dependents(owner).Add(ctx, dependentDoc{Name: d.Name})
	if err != nil {
		return "", fmt.Errorf("create dependent: %w", err)
	}
	return ref.ID, nil
}

// DeleteDependent implements recordstore.Store.
func (s *Store) DeleteDependent(ctx context.Context, owner, id string) error {
	if _, err := s.dependents(owner).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete dependent %s: %w", id, err)
	}
	return nil
}

// ListDependents implements recordstore.Store.
func (s *Store) ListDependents(ctx context.Context, owner string) ([]domain.Dependent, error) {
	it := s.dependents(owner).Documents(ctx)
	defer it.Stop()

	var out []domain.Dependent
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list dependents: %w", err)
		}
		var d dependentDoc
		if err := doc.DataTo(&d); err != nil {
			s.log.Warn().Err(err).Str("id", doc.Ref.ID).Msg("Skipping malformed dependent document")
			continue
		}
		out = append(out, domain.Dependent{ID: doc.Ref.ID, Name: d.Name})
	}
	return out, nil
}

// WatchExpenses implements recordstore.Store on top of Firestore snapshot
// listeners. Each delivered slice is the full current state.
func (s *Store) WatchExpenses(ctx context.Context, owner string) (*recordstore.ExpenseSubscription, error) {
	watchCtx, cancel := context.WithCancel(ctx)
	it := s.expenses(owner).Snapshots(watchCtx)
	ch := make(chan []domain.Expense, 1)

	go func() {
		defer close(ch)
		defer it.Stop()
		for {
			qsnap, err := it.Next()
			if err != nil {
				if watchCtx.Err() == nil {
					s.log.Warn().Err(err).Str("owner", owner).Msg("Expense snapshot stream ended")
				}
				return
			}
			snap := make([]domain.Expense, 0, qsnap.Size)
			docs := qsnap.Documents
			for {
				doc, err := docs.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					s.log.Warn().Err(err).Str("owner", owner).Msg("Dropping partial expense snapshot")
					snap = nil
					break
				}
				var d expenseDoc
				if err := doc.DataTo(&d); err != nil {
					s.log.Warn().Err(err).Str("id", doc.Ref.ID).Msg("Skipping malformed expense document")
					continue
				}
				snap = append(snap, d.toDomain(doc.Ref.ID))
			}
			if snap == nil {
				continue
			}
			select {
			case ch <- snap:
			case <-watchCtx.Done():
				return
			}
		}
	}()

	return recordstore.NewExpenseSubscription(ch, cancel), nil
}

// WatchDependents implements recordstore.Store.
func (s *Store) WatchDependents(ctx context.Context, owner string) (*recordstore.DependentSubscription, error) {
	watchCtx, cancel := context.WithCancel(ctx)
	it := s.dependents(owner).Snapshots(watchCtx)
	ch := make(chan []domain.Dependent, 1)

	go func() {
		defer close(ch)
		defer it.Stop()
		for {
			qsnap, err := it.Next()
			if err != nil {
				if watchCtx.Err() == nil {
					s.log.Warn().Err(err).Str("owner", owner).Msg("Dependent snapshot stream ended")
				}
				return
			}
			snap := make([]domain.Dependent, 0, qsnap.Size)
			docs := qsnap.Documents
			for {
				doc, err := docs.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					s.log.Warn().Err(err).Str("owner", owner).Msg("Dropping partial dependent snapshot")
					snap = nil
					break
				}
				var d dependentDoc
				if err := doc.DataTo(&d); err != nil {
					s.log.Warn().Err(err).Str("id", doc.Ref.ID).Msg("Skipping malformed dependent document")
					continue
				}
				snap = append(snap, domain.Dependent{ID: doc.Ref.ID, Name: d.Name})
			}
			if snap == nil {
				continue
			}
			select {
			case ch <- snap:
			case <-watchCtx.Done():
				return
			}
		}
	}()

	return recordstore.NewDependentSubscription(ch, cancel), nil
}

// Ensure Store implements the capability.
var _ recordstore.Store = (*Store)(nil)
