package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"benritz/dbstub/internal/schema"
)

// ErrPartial marks a collection that dropped at least one table.
var ErrPartial = errors.New("schema collected partially")

// Source is the catalog connection the collector reads from.
type Source interface {
	ListTables(ctx context.Context) ([]string, error)
	ForeignKeys(ctx context.Context, table string) ([]*schema.ForeignKeyRef, error)
	DescribeTable(ctx context.Context, table string) (*schema.Table, error)
	Close() error
}

// Filter selects tables. Include wins over Exclude when both are set.
type Filter struct {
	Include []string
	Exclude []string
}

// Apply returns the selected tables in listing order, each name once.
func (f Filter) Apply(tables []string) []string {
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		if f.selects(t) && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func (f Filter) selects(table string) bool {
	switch {
	case len(f.Include) > 0:
		return slices.Contains(f.Include, table)
	case len(f.Exclude) > 0:
		return !slices.Contains(f.Exclude, table)
	default:
		return true
	}
}

type Stage string

const (
	StageForeignKeys Stage = "foreign_keys"
	StageDescribe    Stage = "describe"
)

// TableError is a failure confined to one table.
type TableError struct {
	Table string
	Stage Stage
	Err   error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("table %s (%s): %v", e.Table, e.Stage, e.Err)
}

func (e *TableError) Unwrap() error { return e.Err }

// Result is a snapshot plus the per-table failures met while building it.
type Result struct {
	Snapshot *schema.Snapshot
	Errors   []*TableError
}

func (r *Result) Partial() bool { return len(r.Errors) > 0 }

// Err returns nil for a complete result, otherwise ErrPartial joined with
// every table error.
func (r *Result) Err() error {
	if !r.Partial() {
		return nil
	}
	errs := []error{ErrPartial}
	for _, e := range r.Errors {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

type Collector struct {
	src     Source
	workers int
	logger  *slog.Logger
}

type Option func(*Collector)

// WithWorkers bounds how many tables are queried at once.
func WithWorkers(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.workers = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

const DefaultWorkers = 4

func New(src Source, opts ...Option) *Collector {
	c := &Collector{src: src, workers: DefaultWorkers, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect lists the tables passing filter, reads the key metadata of every
// one of them and only then describes their columns. The source is closed
// before Collect returns. Only a failure to list tables is returned as an
// error; per-table failures are reported in the result.
func (c *Collector) Collect(ctx context.Context, filter Filter) (*Result, error) {
	defer func() {
		if err := c.src.Close(); err != nil {
			c.logger.Warn("failed to close connection", "error", err)
		}
	}()

	all, err := c.src.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	tables := filter.Apply(all)
	c.logger.Debug("collecting tables", "listed", len(all), "selected", len(tables))

	res := &Result{Snapshot: schema.NewSnapshot()}

	fks := make([][]*schema.ForeignKeyRef, len(tables))
	fkErrs := c.each(ctx, tables, func(ctx context.Context, i int, table string) error {
		refs, err := c.src.ForeignKeys(ctx, table)
		if err != nil {
			return err
		}
		fks[i] = refs
		return nil
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := map[string]bool{}
	for i, table := range tables {
		if fkErrs[i] != nil {
			res.Errors = append(res.Errors, c.tableError(table, StageForeignKeys, fkErrs[i]))
			failed[table] = true
			continue
		}
		for _, ref := range fks[i] {
			res.Snapshot.AddForeignKey(table, ref)
		}
	}

	described := make([]*schema.Table, len(tables))
	descErrs := c.each(ctx, tables, func(ctx context.Context, i int, table string) error {
		if failed[table] {
			return nil
		}
		t, err := c.src.DescribeTable(ctx, table)
		if err != nil {
			return err
		}
		described[i] = t
		return nil
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, table := range tables {
		if descErrs[i] != nil {
			res.Errors = append(res.Errors, c.tableError(table, StageDescribe, descErrs[i]))
			continue
		}
		if described[i] != nil {
			res.Snapshot.AddTable(described[i])
		}
	}

	return res, nil
}

func (c *Collector) tableError(table string, stage Stage, err error) *TableError {
	c.logger.Error("dropping table", "table", table, "stage", string(stage), "error", err)
	return &TableError{Table: table, Stage: stage, Err: err}
}

// each runs fn for every table with at most c.workers in flight. Per-table
// errors are returned by index and never cancel the other tables.
func (c *Collector) each(ctx context.Context, tables []string, fn func(context.Context, int, string) error) []error {
	errs := make([]error, len(tables))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(c.workers)

	for i, table := range tables {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				errs[i] = ctx.Err()
			default:
				errs[i] = fn(ctx, i, table)
			}
			return nil
		})
	}

	_ = eg.Wait()
	return errs
}
