package source

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mysqlprofile "benritz/dbstub/internal/dialect/mysql"
	"benritz/dbstub/internal/dialect/pgsql"
	"benritz/dbstub/internal/schema"
)

func newMock(t *testing.T) (*Source, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	s := New(db, mysqlprofile.New(), WithDatabase("app"))
	t.Cleanup(func() { _ = s.Close() })
	return s, mock
}

func TestListTables(t *testing.T) {
	s, mock := newMock(t)
	q, _ := s.Profile().ListTablesQuery("")

	mock.ExpectQuery(q).WithArgs("").WillReturnRows(
		sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("teams").AddRow("users"),
	)

	tables, err := s.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"teams", "users"}, tables)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTablesError(t *testing.T) {
	s, mock := newMock(t)
	q, _ := s.Profile().ListTablesQuery("")
	boom := errors.New("connection refused")

	mock.ExpectQuery(q).WithArgs("").WillReturnError(boom)

	_, err := s.ListTables(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestForeignKeys(t *testing.T) {
	s, mock := newMock(t)
	q, _ := s.Profile().ForeignKeysQuery("users", "app", "")

	cols := []string{
		"constraint_name", "source_schema", "source_table", "source_column",
		"target_schema", "target_table", "target_column", "extra", "column_key",
	}
	mock.ExpectQuery(q).WithArgs("users", "app").WillReturnRows(
		sqlmock.NewRows(cols).
			AddRow("PRIMARY", "app", "users", "id", nil, nil, nil, "auto_increment", "PRI").
			AddRow("users_ibfk_1", "app", "users", "team_id", "app", "teams", "id", "", "MUL").
			AddRow("broken", "app", "users", "", nil, nil, nil, "", ""),
	)

	refs, err := s.ForeignKeys(context.Background(), "users")
	require.NoError(t, err)
	require.Len(t, refs, 2)

	assert.True(t, refs[0].IsPrimaryKey)
	assert.True(t, refs[0].IsSerialKey)
	assert.False(t, refs[0].IsForeignKey)

	assert.True(t, refs[1].IsForeignKey)
	assert.Equal(t, "teams", refs[1].TargetTable)
	assert.Equal(t, "id", refs[1].TargetColumn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestForeignKeysUseSourceSchema(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	s := New(db, pgsql.New(""), WithDatabase("app"), WithSchema("billing"))
	defer s.Close()

	q, _ := s.Profile().ForeignKeysQuery("invoices", "app", "billing")
	mock.ExpectQuery(q).WithArgs("invoices", "billing").WillReturnRows(
		sqlmock.NewRows([]string{"constraint_name", "source_column", "target_table", "target_column", "contype"}).
			AddRow("invoices_customer_id_fkey", "customer_id", "customers", "id", "f"),
	)

	refs, err := s.ForeignKeys(context.Background(), "invoices")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "customers", refs[0].TargetTable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDescribeTable(t *testing.T) {
	s, mock := newMock(t)
	q, _ := s.Profile().DescribeTableQuery("users", "")

	cols := []string{
		"column_id", "column_name", "data_type", "column_type", "max_length",
		"numeric_precision", "numeric_scale", "is_nullable", "column_default", "column_key", "extra",
	}
	mock.ExpectQuery(q).WithArgs("users", "").WillReturnRows(
		sqlmock.NewRows(cols).
			AddRow(1, "id", "int", "int(11)", nil, 10, 0, "NO", nil, "PRI", "auto_increment").
			AddRow(2, "name", "varchar", "varchar(255)", 255, nil, nil, "YES", nil, "", ""),
	)

	table, err := s.DescribeTable(context.Background(), "users")
	require.NoError(t, err)
	require.Len(t, table.Columns, 2)
	assert.Equal(t, schema.KindSerialInt32, table.Columns[0].DataType.Kind)
	assert.Equal(t, schema.DataType{Kind: schema.KindVarChar, Length: 255, Raw: "varchar(255)"}, table.Columns[1].DataType)
	assert.True(t, table.Columns[1].IsNullable)
}

func TestDescribeTableWithoutColumns(t *testing.T) {
	s, mock := newMock(t)
	q, _ := s.Profile().DescribeTableQuery("ghost", "")

	mock.ExpectQuery(q).WithArgs("ghost", "").WillReturnRows(sqlmock.NewRows([]string{"column_id"}))

	_, err := s.DescribeTable(context.Background(), "ghost")
	assert.ErrorContains(t, err, "no columns")
}

func TestProfileFor(t *testing.T) {
	for _, name := range append(Dialects, "postgresql", "sqlite3", "sqlserver", "MySQL") {
		p, err := ProfileFor(name, "")
		require.NoError(t, err, name)
		assert.NotNil(t, p)
	}

	_, err := ProfileFor("oracle", "")
	assert.ErrorIs(t, err, ErrUnknownDialect)
}

func TestDatabaseName(t *testing.T) {
	assert.Equal(t, "app", databaseName("mysql", "root:secret@tcp(localhost:3306)/app"))
	assert.Equal(t, "app", databaseName("postgres", "postgres://user:pw@localhost:5432/app?sslmode=disable"))
	assert.Equal(t, "app", databaseName("mssql", "sqlserver://sa:pw@localhost:1433?database=app"))
	assert.Equal(t, "shop", databaseName("sqlite", "/tmp/data/shop.db"))
	assert.Equal(t, "", databaseName("mysql", "not a dsn"))
}

func TestOpenRequiresURL(t *testing.T) {
	_, err := Open("sqlite", "")
	assert.Error(t, err)

	_, err = Open("oracle", "x")
	assert.ErrorIs(t, err, ErrUnknownDialect)
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE teams (id INTEGER PRIMARY KEY, name VARCHAR(100) NOT NULL)`,
		`CREATE TABLE users (id INT PRIMARY KEY NOT NULL, name VARCHAR(255), team_id INT NOT NULL REFERENCES teams(id))`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	s, err := Open("sqlite", path)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "app", s.Database())

	ctx := context.Background()

	tables, err := s.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"teams", "users"}, tables)

	refs, err := s.ForeignKeys(ctx, "users")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "team_id", refs[0].SourceColumn)
	assert.Equal(t, "teams", refs[0].TargetTable)
	assert.Equal(t, "id", refs[0].TargetColumn)
	assert.True(t, refs[0].IsForeignKey)

	users, err := s.DescribeTable(ctx, "users")
	require.NoError(t, err)
	require.Len(t, users.Columns, 3)
	assert.Equal(t, "id", users.Columns[0].Name)
	assert.True(t, users.Columns[0].IsPrimaryKey)
	assert.Equal(t, schema.KindVarChar, users.Columns[1].DataType.Kind)
	assert.Equal(t, 255, users.Columns[1].DataType.Length)
	assert.False(t, users.Columns[2].IsNullable)

	teams, err := s.DescribeTable(ctx, "teams")
	require.NoError(t, err)
	assert.True(t, teams.Columns[0].IsAutoInc)
}
