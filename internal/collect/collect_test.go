package collect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benritz/dbstub/internal/schema"
)

type fakeSource struct {
	mu       sync.Mutex
	calls    []string
	tables   []string
	listErr  error
	fks      map[string][]*schema.ForeignKeyRef
	fkErrs   map[string]error
	descErrs map[string]error
	closed   bool
}

func (f *fakeSource) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeSource) ListTables(context.Context) ([]string, error) {
	f.record("list")
	return f.tables, f.listErr
}

func (f *fakeSource) ForeignKeys(_ context.Context, table string) ([]*schema.ForeignKeyRef, error) {
	f.record("fk:" + table)
	if err := f.fkErrs[table]; err != nil {
		return nil, err
	}
	return f.fks[table], nil
}

func (f *fakeSource) DescribeTable(_ context.Context, table string) (*schema.Table, error) {
	f.record("describe:" + table)
	if err := f.descErrs[table]; err != nil {
		return nil, err
	}
	return &schema.Table{Name: table, Columns: []schema.Column{{Name: "id"}, {Name: "team_id"}}}, nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestFilterApply(t *testing.T) {
	tables := []string{"teams", "users", "orders", "users"}

	assert.Equal(t, []string{"teams", "users", "orders"}, Filter{}.Apply(tables))
	assert.Equal(t, []string{"users"}, Filter{Include: []string{"users", "missing"}}.Apply(tables))
	assert.Equal(t, []string{"teams", "orders"}, Filter{Exclude: []string{"users"}}.Apply(tables))
	assert.Equal(t, []string{"users"},
		Filter{Include: []string{"users"}, Exclude: []string{"users"}}.Apply(tables))
}

func TestCollect(t *testing.T) {
	src := &fakeSource{
		tables: []string{"teams", "users"},
		fks: map[string][]*schema.ForeignKeyRef{
			"users": {{SourceColumn: "team_id", TargetTable: "teams", TargetColumn: "id", IsForeignKey: true}},
		},
	}

	res, err := New(src, WithWorkers(2)).Collect(context.Background(), Filter{})
	require.NoError(t, err)
	assert.False(t, res.Partial())
	assert.NoError(t, res.Err())
	assert.True(t, src.closed)

	require.Len(t, res.Snapshot.Tables, 2)
	col, ok := res.Snapshot.Tables["users"].Column("team_id")
	require.True(t, ok)
	require.NotNil(t, col.ForeignKey)
	assert.Equal(t, "teams", col.ForeignKey.TargetTable)
}

func TestCollectReadsKeysBeforeColumns(t *testing.T) {
	tables := make([]string, 10)
	for i := range tables {
		tables[i] = fmt.Sprintf("t%d", i)
	}
	src := &fakeSource{tables: tables}

	_, err := New(src, WithWorkers(3)).Collect(context.Background(), Filter{})
	require.NoError(t, err)

	lastFK, firstDescribe := -1, len(src.calls)
	for i, call := range src.calls {
		switch call[:2] {
		case "fk":
			lastFK = i
		case "de":
			if i < firstDescribe {
				firstDescribe = i
			}
		}
	}
	assert.Less(t, lastFK, firstDescribe)
	assert.Len(t, src.calls, 1+2*len(tables))
}

func TestCollectPartial(t *testing.T) {
	fkErr := errors.New("permission denied")
	descErr := errors.New("timeout")
	src := &fakeSource{
		tables:   []string{"a", "b", "c"},
		fkErrs:   map[string]error{"a": fkErr},
		descErrs: map[string]error{"c": descErr},
	}

	res, err := New(src).Collect(context.Background(), Filter{})
	require.NoError(t, err)
	assert.True(t, res.Partial())
	assert.Equal(t, []string{"b"}, res.Snapshot.TableNames())

	require.Len(t, res.Errors, 2)
	assert.Equal(t, "a", res.Errors[0].Table)
	assert.Equal(t, StageForeignKeys, res.Errors[0].Stage)
	assert.Equal(t, "c", res.Errors[1].Table)
	assert.Equal(t, StageDescribe, res.Errors[1].Stage)

	err = res.Err()
	assert.ErrorIs(t, err, ErrPartial)
	assert.ErrorIs(t, err, fkErr)
	assert.ErrorIs(t, err, descErr)

	assert.NotContains(t, src.calls, "describe:a")
}

func TestCollectListFailure(t *testing.T) {
	boom := errors.New("no route to host")
	src := &fakeSource{listErr: boom}

	res, err := New(src).Collect(context.Background(), Filter{})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, boom)
	assert.True(t, src.closed)
}

func TestCollectCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSource{tables: []string{"a"}}

	_, err := New(src).Collect(ctx, Filter{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, src.closed)
}

func TestCollectDuplicateListing(t *testing.T) {
	// schema-less listings can name the same table twice
	src := &fakeSource{tables: []string{"users", "teams", "users"}}

	_, err := New(src).Collect(context.Background(), Filter{})
	require.NoError(t, err)

	describes := 0
	for _, call := range src.calls {
		if call == "describe:users" {
			describes++
		}
	}
	assert.Equal(t, 1, describes)
}

func TestCollectFilter(t *testing.T) {
	src := &fakeSource{tables: []string{"a", "b", "c"}}

	res, err := New(src).Collect(context.Background(), Filter{Exclude: []string{"b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, res.Snapshot.TableNames())
	assert.NotContains(t, src.calls, "fk:b")
}
