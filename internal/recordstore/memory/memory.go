// Package memory is an in-memory recordstore.Store used by tests and local
// runs without cloud credentials. Data is lost on process exit.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agilizei/irorganiza/internal/domain"
	"github.com/agilizei/irorganiza/internal/recordstore"
)

// Store keeps per-owner record maps guarded by one mutex and broadcasts a
// full snapshot to every subscriber on each mutation.
type Store struct {
	mu         sync.Mutex
	expenses   map[string]map[string]domain.Expense
	dependents map[string]map[string]domain.Dependent
	expSubs    map[string]map[*expenseSub]struct{}
	depSubs    map[string]map[*dependentSub]struct{}
	closed     bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		expenses:   make(map[string]map[string]domain.Expense),
		dependents: make(map[string]map[string]domain.Dependent),
		expSubs:    make(map[string]map[*expenseSub]struct{}),
		depSubs:    make(map[string]map[*dependentSub]struct{}),
	}
}

// CreateExpense implements recordstore.Store.
func (s *Store) CreateExpense(ctx context.Context, owner string, e domain.Expense) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", fmt.Errorf("store is closed")
	}

	id := uuid.NewString()
	e.ID = id
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if s.expenses[owner] == nil {
		s.expenses[owner] = make(map[string]domain.Expense)
	}
	s.expenses[owner][id] = e
	s.broadcastExpensesLocked(owner)
	return id, nil
}

// UpdateExpense implements recordstore.Store.
func (s *Store) UpdateExpense(ctx context.Context, owner, id string, e domain.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expenses[owner][id]; !ok {
		return fmt.Errorf("expense %s: %w", id, recordstore.ErrNotFound)
	}
	e.ID = id
	s.expenses[owner][id] = e
	s.broadcastExpensesLocked(owner)
	return nil
}

// DeleteExpense implements recordstore.Store. Deleting an unknown id is a
// no-op, matching remote document stores.
func (s *Store) DeleteExpense(ctx context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.expenses[owner], id)
	s.broadcastExpensesLocked(owner)
	return nil
}

// ListExpenses implements recordstore.Store.
func (s *Store) ListExpenses(ctx context.Context, owner string) ([]domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expenseSnapshotLocked(owner), nil
}

// CreateDependent implements recordstore.Store.
func (s *Store) CreateDependent(ctx context.Context, owner string, d domain.Dependent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", fmt.Errorf("store is closed")
	}

	id := uuid.NewString()
	d.ID = id
	if s.dependents[owner] == nil {
		s.dependents[owner] = make(map[string]domain.Dependent)
	}
	s.dependents[owner][id] = d
	s.broadcastDependentsLocked(owner)
	return id, nil
}

// DeleteDependent implements recordstore.Store.
func (s *Store) DeleteDependent(ctx context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.dependents[owner], id)
	s.broadcastDependentsLocked(owner)
	return nil
}

// ListDependents implements recordstore.Store.
func (s *Store) ListDependents(ctx context.Context, owner string) ([]domain.Dependent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dependentSnapshotLocked(owner), nil
}

// WatchExpenses implements recordstore.Store. The subscription receives an
// initial snapshot immediately and a fresh one after every mutation.
func (s *Store) WatchExpenses(ctx context.Context, owner string) (*recordstore.ExpenseSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	sub := &expenseSub{ch: make(chan []domain.Expense, 1)}
	if s.expSubs[owner] == nil {
		s.expSubs[owner] = make(map[*expenseSub]struct{})
	}
	s.expSubs[owner][sub] = struct{}{}
	sub.deliver(s.expenseSnapshotLocked(owner))

	stop := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.expSubs[owner][sub]; ok {
			delete(s.expSubs[owner], sub)
			close(sub.ch)
		}
	}
	go func() {
		<-ctx.Done()
		stop()
	}()
	return recordstore.NewExpenseSubscription(sub.ch, stop), nil
}

// WatchDependents implements recordstore.Store.
func (s *Store) WatchDependents(ctx context.Context, owner string) (*recordstore.DependentSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	sub := &dependentSub{ch: make(chan []domain.Dependent, 1)}
	if s.depSubs[owner] == nil {
		s.depSubs[owner] = make(map[*dependentSub]struct{})
	}
	s.depSubs[owner][sub] = struct{}{}
	sub.deliver(s.dependentSnapshotLocked(owner))

	stop := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.depSubs[owner][sub]; ok {
			delete(s.depSubs[owner], sub)
			close(sub.ch)
		}
	}
	go func() {
		<-ctx.Done()
		stop()
	}()
	return recordstore.NewDependentSubscription(sub.ch, stop), nil
}

// Close implements recordstore.Store. Active subscriptions are torn down.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	for owner, subs := range s.expSubs {
		for sub := range subs {
			close(sub.ch)
		}
		delete(s.expSubs, owner)
	}
	for owner, subs := range s.depSubs {
		for sub := range subs {
			close(sub.ch)
		}
		delete(s.depSubs, owner)
	}
	return nil
}

func (s *Store) expenseSnapshotLocked(owner string) []domain.Expense {
	snap := make([]domain.Expense, 0, len(s.expenses[owner]))
	for _, e := range s.expenses[owner] {
		snap = append(snap, e)
	}
	return snap
}

func (s *Store) dependentSnapshotLocked(owner string) []domain.Dependent {
	snap := make([]domain.Dependent, 0, len(s.dependents[owner]))
	for _, d := range s.dependents[owner] {
		snap = append(snap, d)
	}
	return snap
}

func (s *Store) broadcastExpensesLocked(owner string) {
	// Each subscriber owns its snapshot outright; consumers may sort or
	// rewrite what they receive.
	for sub := range s.expSubs[owner] {
		sub.deliver(s.expenseSnapshotLocked(owner))
	}
}

func (s *Store) broadcastDependentsLocked(owner string) {
	for sub := range s.depSubs[owner] {
		sub.deliver(s.dependentSnapshotLocked(owner))
	}
}

type expenseSub struct {
	ch chan []domain.Expense
}

// deliver replaces any undelivered snapshot with the latest one; each
// snapshot is authoritative, so a slow consumer only ever sees the newest.
func (s *expenseSub) deliver(snap []domain.Expense) {
	select {
	case s.ch <- snap:
	default:
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- snap:
		default:
		}
	}
}

type dependentSub struct {
	ch chan []domain.Dependent
}

func (s *dependentSub) deliver(snap []domain.Dependent) {
	select {
	case s.ch <- snap:
	default:
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- snap:
		default:
		}
	}
}

// Ensure Store implements the capability.
var _ recordstore.Store = (*Store)(nil)
