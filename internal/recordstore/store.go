// Package recordstore defines the capability surface of the remote record
// store: per-owner document collections for expenses and dependents, with
// live whole-snapshot subscriptions. Implementations live in subpackages.
package recordstore

import (
	"context"
	"errors"

	"github.com/agilizei/irorganiza/internal/domain"
)

// ErrNotFound reports an update or lookup against an id the store does not
// hold for that owner.
var ErrNotFound = errors.New("record not found")

// Store is the remote record store capability. Every operation is
// namespaced by the opaque owner id; implementations must not leak records
// across owners.
type Store interface {
	// CreateExpense writes a new expense and returns the store-assigned id.
	CreateExpense(ctx context.Context, owner string, e domain.Expense) (string, error)
	// UpdateExpense replaces the stored fields for an existing id.
	UpdateExpense(ctx context.Context, owner, id string, e domain.Expense) error
	DeleteExpense(ctx context.Context, owner, id string) error
	// ListExpenses is the list-once read. Ordering is the caller's concern.
	ListExpenses(ctx context.Context, owner string) ([]domain.Expense, error)

	CreateDependent(ctx context.Context, owner string, d domain.Dependent) (string, error)
	DeleteDependent(ctx context.Context, owner, id string) error
	ListDependents(ctx context.Context, owner string) ([]domain.Dependent, error)

	// WatchExpenses delivers the full current state whenever any expense
	// changes, starting with an initial snapshot. Consumers replace their
	// state wholesale on each delivery.
	WatchExpenses(ctx context.Context, owner string) (*ExpenseSubscription, error)
	WatchDependents(ctx context.Context, owner string) (*DependentSubscription, error)

	Close() error
}
