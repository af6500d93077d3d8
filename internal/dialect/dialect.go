package dialect

import (
	"fmt"
	"strconv"
	"strings"

	"benritz/dbstub/internal/schema"
)

// Row is a single catalog result row keyed by lower-cased column label.
type Row map[string]any

func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (r Row) Int(key string) int {
	switch v := r[key].(type) {
	case int64:
		return int(v)
	case int32:
		return int(v)
	case int16:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	case bool:
		if v {
			return 1
		}
		return 0
	default:
		n, err := strconv.Atoi(strings.TrimSpace(r.String(key)))
		if err != nil {
			return 0
		}
		return n
	}
}

func (r Row) Bool(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case nil:
		return false
	}
	switch strings.ToLower(strings.TrimSpace(r.String(key))) {
	case "1", "t", "true", "yes", "y":
		return true
	}
	return false
}

// Rename returns a copy of r with keys renamed through names. Keys without a
// mapping are kept as they are.
func (r Row) Rename(names map[string]string) Row {
	out := make(Row, len(r))
	for k, v := range r {
		if to, ok := names[k]; ok {
			k = to
		}
		out[k] = v
	}
	return out
}

// Canonical keys of a normalized foreign key row.
const (
	KeyConstraint   = "constraint_name"
	KeySourceSchema = "source_schema"
	KeySourceTable  = "source_table"
	KeySourceColumn = "source_column"
	KeyTargetSchema = "target_schema"
	KeyTargetTable  = "target_table"
	KeyTargetColumn = "target_column"
)

// Profile is the per-dialect description of how to read the catalog.
type Profile interface {
	Name() string
	DriverName() string
	ListTablesQuery(schemaName string) (string, []any)
	DescribeTableQuery(table, schemaName string) (string, []any)
	ForeignKeysQuery(table, database, schemaName string) (string, []any)
	// NormalizeForeignKey renames driver specific keys to the canonical
	// source_column/target_table/target_column names.
	NormalizeForeignKey(row Row) Row
	Column(row Row) (schema.Column, error)
}

type UniqueDetector interface {
	IsUnique(row Row) bool
}

type PrimaryKeyDetector interface {
	IsPrimaryKey(row Row) bool
}

type SerialKeyDetector interface {
	IsSerialKey(row Row) bool
}

func IsUnique(p Profile, row Row) bool {
	if d, ok := p.(UniqueDetector); ok {
		return d.IsUnique(row)
	}
	return false
}

func IsPrimaryKey(p Profile, row Row) bool {
	if d, ok := p.(PrimaryKeyDetector); ok {
		return d.IsPrimaryKey(row)
	}
	return false
}

func IsSerialKey(p Profile, row Row) bool {
	if d, ok := p.(SerialKeyDetector); ok {
		return d.IsSerialKey(row)
	}
	return false
}

// ForeignKeyRef builds the key record for a normalized row of table.
// Schemas default to database.
func ForeignKeyRef(p Profile, table, database string, row Row) *schema.ForeignKeyRef {
	ref := &schema.ForeignKeyRef{
		Constraint:   row.String(KeyConstraint),
		SourceSchema: row.String(KeySourceSchema),
		SourceTable:  row.String(KeySourceTable),
		SourceColumn: row.String(KeySourceColumn),
		TargetSchema: row.String(KeyTargetSchema),
		TargetTable:  row.String(KeyTargetTable),
		TargetColumn: row.String(KeyTargetColumn),
	}
	if ref.SourceTable == "" {
		ref.SourceTable = table
	}
	if ref.SourceSchema == "" {
		ref.SourceSchema = database
	}
	if ref.TargetSchema == "" {
		ref.TargetSchema = database
	}
	if strings.TrimSpace(ref.SourceColumn) != "" && strings.TrimSpace(ref.TargetColumn) != "" {
		ref.IsForeignKey = true
	}
	ref.IsUnique = IsUnique(p, row)
	ref.IsPrimaryKey = IsPrimaryKey(p, row)
	ref.IsSerialKey = IsSerialKey(p, row)
	return ref
}

// QuoteIdent wraps name in double quotes, doubling embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
