package generate

import (
	"context"
	"fmt"
	"log/slog"

	"benritz/dbstub/internal/collect"
	"benritz/dbstub/internal/render"
	"benritz/dbstub/internal/source"
	"benritz/dbstub/internal/write"
)

type Generation struct {
	dialect     string
	url         string
	database    string
	schema      string
	tables      []string
	skipTables  []string
	format      render.Format
	render      render.Options
	directory   string
	camelCaseFN bool
	eslint      bool
	linter      write.Linter
	strict      bool
	workers     int
	logger      *slog.Logger
	openSource  func() (collect.Source, error)

	lastWarnings []*collect.TableError
}

type Option func(*Generation)

func New(opts ...Option) (*Generation, error) {
	g := Generation{
		format:  render.FormatModel,
		render:  render.DefaultOptions(),
		workers: collect.DefaultWorkers,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(&g)
	}

	if g.openSource == nil {
		if g.url == "" {
			return nil, fmt.Errorf("missing database connection URL")
		}
		if _, err := source.ProfileFor(g.dialect, g.schema); err != nil {
			return nil, fmt.Errorf("invalid dialect: %w", err)
		}
	}

	format, err := render.ParseFormat(string(g.format))
	if err != nil {
		return nil, err
	}
	g.format = format

	if g.render.Indentation < 0 {
		return nil, fmt.Errorf("invalid indentation: %d", g.render.Indentation)
	}

	return &g, nil
}

func WithDialect(d string) Option {
	return func(g *Generation) {
		g.dialect = d
	}
}
func WithURL(u string) Option {
	return func(g *Generation) {
		g.url = u
	}
}
func WithDatabase(name string) Option {
	return func(g *Generation) {
		g.database = name
	}
}
func WithSchema(name string) Option {
	return func(g *Generation) {
		g.schema = name
	}
}
func WithTables(tables []string) Option {
	return func(g *Generation) {
		g.tables = tables
	}
}
func WithSkipTables(tables []string) Option {
	return func(g *Generation) {
		g.skipTables = tables
	}
}
func WithFormat(f render.Format) Option {
	return func(g *Generation) {
		g.format = f
	}
}
func WithCamelCase(v bool) Option {
	return func(g *Generation) {
		g.render.CamelCase = v
	}
}
func WithCamelCaseForFileName(v bool) Option {
	return func(g *Generation) {
		g.camelCaseFN = v
	}
}
func WithSpaces(v bool) Option {
	return func(g *Generation) {
		g.render.Spaces = v
	}
}
func WithIndentation(n int) Option {
	return func(g *Generation) {
		g.render.Indentation = n
	}
}
func WithDirectory(dir string) Option {
	return func(g *Generation) {
		g.directory = dir
	}
}
func WithTypeScript(v bool) Option {
	return func(g *Generation) {
		g.render.TypeScript = v
	}
}
func WithESLint(v bool) Option {
	return func(g *Generation) {
		g.eslint = v
	}
}

// WithLinter replaces the eslint command used when eslint is enabled.
func WithLinter(l write.Linter) Option {
	return func(g *Generation) {
		g.linter = l
	}
}
func WithFreezeTableName(v bool) Option {
	return func(g *Generation) {
		g.render.FreezeTableName = v
	}
}

// WithStrict fails the run when any table could not be read.
func WithStrict(v bool) Option {
	return func(g *Generation) {
		g.strict = v
	}
}
func WithWorkers(n int) Option {
	return func(g *Generation) {
		if n > 0 {
			g.workers = n
		}
	}
}
func WithLogger(l *slog.Logger) Option {
	return func(g *Generation) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithSource reads the schema from src instead of opening a connection.
func WithSource(src collect.Source) Option {
	return func(g *Generation) {
		g.openSource = func() (collect.Source, error) { return src, nil }
	}
}

// Warnings returns the tables dropped by the last Run.
func (g *Generation) Warnings() []*collect.TableError {
	return g.lastWarnings
}

// Run introspects the database and renders one text per table. Without an
// output directory the texts are returned; otherwise they are written and
// Run returns nil.
func (g *Generation) Run(ctx context.Context) (map[string]string, error) {
	src, err := g.open()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to source: %w", err)
	}

	collector := collect.New(src, collect.WithWorkers(g.workers), collect.WithLogger(g.logger))
	res, err := collector.Collect(ctx, collect.Filter{Include: g.tables, Exclude: g.skipTables})
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	g.lastWarnings = res.Errors
	if res.Partial() {
		if g.strict {
			return nil, res.Err()
		}
		g.logger.Warn("schema is incomplete", "dropped", len(res.Errors))
	}

	renderer, err := render.New(g.format, g.render)
	if err != nil {
		return nil, err
	}
	out, err := renderer.Render(res.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", g.format, err)
	}

	if g.directory == "" {
		return out.Tables, nil
	}

	wopts := []write.Option{
		write.WithCamelCaseFileName(g.camelCaseFN),
		write.WithTypeScript(g.render.TypeScript),
		write.WithWorkers(g.workers),
		write.WithLogger(g.logger),
	}
	if g.eslint {
		linter := g.linter
		if linter == nil {
			linter = write.ESLint{}
		}
		wopts = append(wopts, write.WithLinter(linter))
	}
	w := write.New(g.directory, wopts...)
	if err := w.Write(ctx, out); err != nil {
		return nil, fmt.Errorf("failed to write output: %w", err)
	}
	g.logger.Info("generated files", "format", string(g.format), "dir", w.Dir(g.format), "tables", len(out.Tables))
	return nil, nil
}

func (g *Generation) open() (collect.Source, error) {
	if g.openSource != nil {
		return g.openSource()
	}
	src, err := source.Open(g.dialect, g.url,
		source.WithDatabase(g.database),
		source.WithSchema(g.schema),
		source.WithMaxOpenConns(g.workers),
		source.WithLogger(g.logger),
	)
	if err != nil {
		return nil, err
	}
	return src, nil
}
