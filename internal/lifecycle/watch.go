package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/agilizei/irorganiza/internal/domain"
)

// Session is a live view over one owner's records: each delivery on either
// channel is the full, sorted current state. Both channels close after
// Close.
type Session struct {
	Expenses   <-chan []domain.Expense
	Dependents <-chan []domain.Dependent

	once  sync.Once
	close func()
}

// Close tears the session down. Safe to call more than once.
func (s *Session) Close() {
	s.once.Do(s.close)
}

// Watch opens snapshot subscriptions on both collections and re-delivers
// them sorted. The session ends when Close is called or ctx is canceled.
func (c *Controller) Watch(ctx context.Context, owner string) (*Session, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}

	expSub, err := c.records.WatchExpenses(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("watch expenses: %w", err)
	}
	depSub, err := c.records.WatchDependents(ctx, owner)
	if err != nil {
		expSub.Stop()
		return nil, fmt.Errorf("watch dependents: %w", err)
	}

	expenses := make(chan []domain.Expense, 1)
	dependents := make(chan []domain.Dependent, 1)

	go func() {
		defer close(expenses)
		for delivered := range expSub.C {
			// Sort a copy: the store may hand the same slice to other
			// sessions watching this owner.
			snap := append([]domain.Expense(nil), delivered...)
			coerceExpenses(snap)
			sortExpenses(snap)
			select {
			case expenses <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		defer close(dependents)
		for delivered := range depSub.C {
			snap := append([]domain.Dependent(nil), delivered...)
			sortDependents(snap)
			select {
			case dependents <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()

	return &Session{
		Expenses:   expenses,
		Dependents: dependents,
		close: func() {
			expSub.Stop()
			depSub.Stop()
		},
	}, nil
}
