package recordstore

import (
	"sync"

	"github.com/agilizei/irorganiza/internal/domain"
)

// ExpenseSubscription is a lazy, infinite, cancelable sequence of full
// expense snapshots. C is closed after Stop; nothing is delivered once
// Stop returns.
type ExpenseSubscription struct {
	C <-chan []domain.Expense

	once sync.Once
	stop func()
}

// NewExpenseSubscription wraps a snapshot channel and its teardown func.
// Intended for Store implementations.
func NewExpenseSubscription(c <-chan []domain.Expense, stop func()) *ExpenseSubscription {
	return &ExpenseSubscription{C: c, stop: stop}
}

// Stop cancels the subscription and discards any snapshot still buffered,
// so nothing can be received once it returns. Safe to call more than once.
func (s *ExpenseSubscription) Stop() {
	s.once.Do(func() {
		s.stop()
		drainExpenses(s.C)
	})
}

func drainExpenses(c <-chan []domain.Expense) {
	for {
		select {
		case _, ok := <-c:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// DependentSubscription is the dependent-records counterpart of
// ExpenseSubscription.
type DependentSubscription struct {
	C <-chan []domain.Dependent

	once sync.Once
	stop func()
}

// NewDependentSubscription wraps a snapshot channel and its teardown func.
func NewDependentSubscription(c <-chan []domain.Dependent, stop func()) *DependentSubscription {
	return &DependentSubscription{C: c, stop: stop}
}

// Stop cancels the subscription and discards any snapshot still buffered.
// Safe to call more than once.
func (s *DependentSubscription) Stop() {
	s.once.Do(func() {
		s.stop()
		drainDependents(s.C)
	})
}

func drainDependents(c <-chan []domain.Dependent) {
	for {
		select {
		case _, ok := <-c:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
