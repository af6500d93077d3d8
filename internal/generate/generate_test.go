package generate

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"benritz/dbstub/internal/collect"
	"benritz/dbstub/internal/render"
	"benritz/dbstub/internal/schema"
	"benritz/dbstub/internal/source"
)

func sqliteDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range []string{
		`CREATE TABLE teams (id INTEGER PRIMARY KEY, name VARCHAR(100) NOT NULL)`,
		`CREATE TABLE users (id INT PRIMARY KEY NOT NULL, name VARCHAR(255), team_id INT NOT NULL REFERENCES teams(id))`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return path
}

type stubSource struct {
	tables map[string]*schema.Table
	fkErr  map[string]error
}

func (s *stubSource) ListTables(context.Context) ([]string, error) {
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	return names, nil
}

func (s *stubSource) ForeignKeys(_ context.Context, table string) ([]*schema.ForeignKeyRef, error) {
	return nil, s.fkErr[table]
}

func (s *stubSource) DescribeTable(_ context.Context, table string) (*schema.Table, error) {
	return s.tables[table], nil
}

func (s *stubSource) Close() error { return nil }

func TestNewValidation(t *testing.T) {
	_, err := New(WithDialect("sqlite"))
	assert.ErrorContains(t, err, "missing database connection URL")

	_, err = New(WithDialect("oracle"), WithURL("x"))
	assert.ErrorIs(t, err, source.ErrUnknownDialect)

	_, err = New(WithDialect("sqlite"), WithURL("x"), WithFormat("graphql"))
	assert.Error(t, err)

	_, err = New(WithDialect("sqlite"), WithURL("x"), WithIndentation(-1))
	assert.Error(t, err)

	g, err := New(WithDialect("sqlite"), WithURL("x"), WithFormat(""))
	require.NoError(t, err)
	assert.Equal(t, render.FormatModel, g.format)
}

func TestRunSQLite(t *testing.T) {
	g, err := New(WithDialect("sqlite"), WithURL(sqliteDB(t)))
	require.NoError(t, err)

	out, err := g.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t,
		"const users = {\n\t'id': null,\n\t'name': null,\n\t'team_id': null,\n\t'teams': {}\n}\n\n"+
			"module.exports = Object.assign({}, users);\n",
		out["users"])
	assert.Empty(t, g.Warnings())
}

func TestRunSQLiteSwagger(t *testing.T) {
	g, err := New(
		WithDialect("sqlite"),
		WithURL(sqliteDB(t)),
		WithFormat(render.FormatSwagger),
		WithTables([]string{"teams"}),
	)
	require.NoError(t, err)

	out, err := g.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "/**\n"+
		" * @typedef teams\n"+
		" * @property {integer} id.required\n"+
		" * @property {string} name.required\n"+
		" */\n", out["teams"])
}

func TestRunWritesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "models")
	g, err := New(
		WithDialect("sqlite"),
		WithURL(sqliteDB(t)),
		WithFormat(render.FormatJoi),
		WithDirectory(dir),
		WithTypeScript(true),
		WithSkipTables([]string{"teams"}),
	)
	require.NoError(t, err)

	out, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, out)

	b, err := os.ReadFile(filepath.Join(dir, "joi", "users.ts"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "import Joi from 'joi';")
	assert.Contains(t, string(b), "'name': Joi.string().max(255).allow(null),")
	assert.FileExists(t, filepath.Join(dir, "joi", "db.d.ts"))
	assert.NoFileExists(t, filepath.Join(dir, "joi", "teams.ts"))
}

type recordingLinter struct{ dir string }

func (l *recordingLinter) Fix(_ context.Context, dir string) error {
	l.dir = dir
	return nil
}

func TestRunESLint(t *testing.T) {
	dir := t.TempDir()
	linter := &recordingLinter{}
	g, err := New(WithDialect("sqlite"), WithURL(sqliteDB(t)), WithDirectory(dir), WithESLint(true), WithLinter(linter))
	require.NoError(t, err)

	_, err = g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dir, linter.dir)
}

func TestRunPartial(t *testing.T) {
	fkErr := errors.New("permission denied")
	src := &stubSource{
		tables: map[string]*schema.Table{
			"a": {Name: "a", Columns: []schema.Column{{Name: "id", Type: "INT"}}},
			"b": {Name: "b", Columns: []schema.Column{{Name: "id", Type: "INT"}}},
		},
		fkErr: map[string]error{"b": fkErr},
	}

	g, err := New(WithSource(src))
	require.NoError(t, err)
	out, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, "a")
	assert.NotContains(t, out, "b")
	require.Len(t, g.Warnings(), 1)
	assert.Equal(t, "b", g.Warnings()[0].Table)

	g, err = New(WithSource(src), WithStrict(true))
	require.NoError(t, err)
	_, err = g.Run(context.Background())
	assert.ErrorIs(t, err, collect.ErrPartial)
	assert.ErrorIs(t, err, fkErr)
}

func TestRunUnknownTypeWritesNothing(t *testing.T) {
	src := &stubSource{tables: map[string]*schema.Table{
		"things": {Name: "things", Columns: []schema.Column{
			{Name: "id", Type: "INT"},
			{Name: "ratio", Type: "DOUBLE"},
			{Name: "shape", Type: "UNKNOWNTYPE"},
		}},
	}}
	dir := filepath.Join(t.TempDir(), "out")

	g, err := New(WithSource(src), WithFormat(render.FormatSwagger), WithDirectory(dir))
	require.NoError(t, err)
	_, err = g.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrUnknownType)
	assert.Contains(t, err.Error(), "UNKNOWNTYPE")
	assert.NoDirExists(t, dir)
}
