package lifecycle

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/agilizei/irorganiza/internal/backup"
	"github.com/agilizei/irorganiza/internal/domain"
)

// Export snapshots the owner's records into a backup document. Both
// collections are read concurrently; either failure fails the export.
func (c *Controller) Export(ctx context.Context, owner string) (backup.Document, error) {
	if err := requireOwner(owner); err != nil {
		return backup.Document{}, err
	}

	var (
		expenses   []domain.Expense
		dependents []domain.Dependent
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = c.records.ListExpenses(gctx, owner)
		if err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		dependents, err = c.records.ListDependents(gctx, owner)
		if err != nil {
			return fmt.Errorf("list dependents: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return backup.Document{}, err
	}

	sortExpenses(expenses)
	sortDependents(dependents)
	return backup.New(expenses, dependents, c.now()), nil
}

// Import validates the document wholesale, then appends every carried
// record to the owner's collections. Attachment flags carry over as stored,
// even though the bytes did not travel; those records materialize degraded
// until re-captured.
func (c *Controller) Import(ctx context.Context, owner string, doc backup.Document) error {
	if err := requireOwner(owner); err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return err
	}

	for _, r := range doc.Expenses {
		e := r.ToExpense()
		e.CreatedAt = c.now()
		if _, err := c.records.CreateExpense(ctx, owner, e); err != nil {
			return fmt.Errorf("import expense %q: %w", r.PayeeName, err)
		}
	}
	for _, d := range doc.Dependents {
		if _, err := c.records.CreateDependent(ctx, owner, domain.Dependent{Name: d.Name}); err != nil {
			return fmt.Errorf("import dependent %q: %w", d.Name, err)
		}
	}
	return nil
}
