package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	_ "github.com/denisenkom/go-mssqldb"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"benritz/dbstub/internal/dialect"
	mssqlprofile "benritz/dbstub/internal/dialect/mssql"
	mysqlprofile "benritz/dbstub/internal/dialect/mysql"
	"benritz/dbstub/internal/dialect/pgsql"
	sqliteprofile "benritz/dbstub/internal/dialect/sqlite"
	"benritz/dbstub/internal/schema"
)

var ErrUnknownDialect = errors.New("unknown dialect")

// Dialects lists the accepted dialect names.
var Dialects = []string{"mysql", "mariadb", "postgres", "sqlite", "mssql"}

// ProfileFor returns the catalog profile for a dialect name.
func ProfileFor(name, schemaName string) (dialect.Profile, error) {
	switch strings.ToLower(name) {
	case "mysql":
		return mysqlprofile.New(), nil
	case "mariadb":
		return mysqlprofile.NewMariaDB(), nil
	case "postgres", "postgresql", "pgsql":
		return pgsql.New(schemaName), nil
	case "sqlite", "sqlite3":
		return sqliteprofile.New(), nil
	case "mssql", "sqlserver":
		return mssqlprofile.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
}

// Source is a catalog connection for one dialect.
type Source struct {
	db       *sql.DB
	profile  dialect.Profile
	database string
	schema   string
	maxConns int
	logger   *slog.Logger
}

type Option func(*Source)

// WithDatabase overrides the database name taken from the connection URL.
func WithDatabase(name string) Option {
	return func(s *Source) {
		if name != "" {
			s.database = name
		}
	}
}

func WithSchema(name string) Option {
	return func(s *Source) {
		s.schema = name
	}
}

func WithMaxOpenConns(n int) Option {
	return func(s *Source) {
		s.maxConns = n
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open connects to the database at dsn using the driver for dialectName.
// For sqlite the dsn is the database file path.
func Open(dialectName, dsn string, opts ...Option) (*Source, error) {
	if dsn == "" {
		return nil, fmt.Errorf("missing database connection URL")
	}

	s := &Source{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	profile, err := ProfileFor(dialectName, s.schema)
	if err != nil {
		return nil, err
	}
	s.profile = profile

	if s.database == "" {
		s.database = databaseName(profile.Name(), dsn)
	}

	db, err := sql.Open(profile.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", profile.Name(), err)
	}
	if s.maxConns > 0 {
		db.SetMaxOpenConns(s.maxConns)
	}
	if profile.Name() == "sqlite" && strings.Contains(dsn, ":memory:") {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	s.db = db

	return s, nil
}

// New wraps an existing connection.
func New(db *sql.DB, profile dialect.Profile, opts ...Option) *Source {
	s := &Source{db: db, profile: profile, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func databaseName(dialectName, dsn string) string {
	switch dialectName {
	case "mysql", "mariadb":
		if cfg, err := mysql.ParseDSN(dsn); err == nil {
			return cfg.DBName
		}
	case "postgres":
		if cfg, err := pgx.ParseConfig(dsn); err == nil {
			return cfg.Database
		}
	case "mssql":
		if u, err := url.Parse(dsn); err == nil {
			return u.Query().Get("database")
		}
	case "sqlite":
		base := filepath.Base(dsn)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return ""
}

func (s *Source) Profile() dialect.Profile { return s.profile }
func (s *Source) Database() string         { return s.database }
func (s *Source) Schema() string           { return s.schema }

func (s *Source) Close() error {
	return s.db.Close()
}

// Query runs a catalog query and returns each row keyed by lower-cased column label.
func (s *Source) Query(ctx context.Context, query string, args ...any) ([]dialect.Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	for i := range cols {
		cols[i] = strings.ToLower(cols[i])
	}

	out := []dialect.Row{}
	for rows.Next() {
		values := make([]any, len(cols))
		valuePtrs := make([]any, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}
		row := make(dialect.Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Source) ListTables(ctx context.Context) ([]string, error) {
	q, args := s.profile.ListTablesQuery(s.schema)
	rows, err := s.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	tables := make([]string, 0, len(rows))
	for _, row := range rows {
		if name := row.String("table_name"); name != "" {
			tables = append(tables, name)
		}
	}
	return tables, nil
}

func (s *Source) DescribeTable(ctx context.Context, table string) (*schema.Table, error) {
	q, args := s.profile.DescribeTableQuery(table, s.schema)
	rows, err := s.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("table %s has no columns", table)
	}
	t := &schema.Table{Name: table, Columns: make([]schema.Column, 0, len(rows))}
	for _, row := range rows {
		col, err := s.profile.Column(row)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", table, err)
		}
		t.Columns = append(t.Columns, col)
	}
	return t, nil
}

// ForeignKeys returns the normalized key records of table.
func (s *Source) ForeignKeys(ctx context.Context, table string) ([]*schema.ForeignKeyRef, error) {
	q, args := s.profile.ForeignKeysQuery(table, s.database, s.schema)
	rows, err := s.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read foreign keys of %s: %w", table, err)
	}
	refs := make([]*schema.ForeignKeyRef, 0, len(rows))
	for _, row := range rows {
		row = s.profile.NormalizeForeignKey(row)
		ref := dialect.ForeignKeyRef(s.profile, table, s.database, row)
		if strings.TrimSpace(ref.SourceColumn) == "" {
			s.logger.Debug("skipping key row without source column", "table", table, "constraint", ref.Constraint)
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
