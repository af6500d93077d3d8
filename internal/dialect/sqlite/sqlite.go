package sqlite

import (
	"strings"

	"benritz/dbstub/internal/dialect"
	"benritz/dbstub/internal/schema"
)

// Profile reads SQLite through its PRAGMA functions. PRAGMA arguments cannot
// be bound, so table names are quoted into the statement.
type Profile struct{}

func New() *Profile { return &Profile{} }

func (p *Profile) Name() string       { return "sqlite" }
func (p *Profile) DriverName() string { return "sqlite" }

func (p *Profile) ListTablesQuery(string) (string, []any) {
	return `SELECT name AS table_name FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
ORDER BY name`, nil
}

func (p *Profile) DescribeTableQuery(table, _ string) (string, []any) {
	return "PRAGMA table_info(" + dialect.QuoteIdent(table) + ")", nil
}

func (p *Profile) ForeignKeysQuery(table, _, _ string) (string, []any) {
	return "PRAGMA foreign_key_list(" + dialect.QuoteIdent(table) + ")", nil
}

var pragmaKeys = map[string]string{
	"from":  dialect.KeySourceColumn,
	"to":    dialect.KeyTargetColumn,
	"table": dialect.KeyTargetTable,
}

func (p *Profile) NormalizeForeignKey(row dialect.Row) dialect.Row {
	return row.Rename(pragmaKeys)
}

func (p *Profile) Column(row dialect.Row) (schema.Column, error) {
	declared := row.String("type")
	isPrimary := row.Int("pk") > 0
	// An INTEGER PRIMARY KEY aliases the rowid and auto-increments.
	isAutoInc := isPrimary && strings.EqualFold(strings.TrimSpace(declared), "integer")

	dt, err := schema.ClassifyRaw(declared)
	if err != nil {
		dt = toDataType(declared)
	}
	if isAutoInc && dt.Kind == schema.KindInt32 {
		dt.Kind = schema.KindSerialInt32
	}

	return schema.Column{
		ColumnID:     row.Int("cid") + 1,
		Name:         row.String("name"),
		MaxLength:    dt.Length,
		IsNullable:   row.Int("notnull") == 0 && !isPrimary,
		IsAutoInc:    isAutoInc,
		IsPrimaryKey: isPrimary,
		Type:         declared,
		Default:      row.String("dflt_value"),
		DataType:     dt,
	}, nil
}

// toDataType covers the declared types the substring rules miss.
func toDataType(declared string) schema.DataType {
	raw := strings.ToLower(strings.TrimSpace(declared))
	dt := schema.DataType{Kind: schema.KindUnknown, Raw: raw}
	base, _, _ := strings.Cut(raw, "(")
	switch strings.TrimSpace(base) {
	case "bool", "boolean":
		dt.Kind = schema.KindBool
	case "real":
		dt.Kind = schema.KindFloat64
	case "numeric", "decimal":
		dt.Kind = schema.KindNumeric
	case "char", "character", "nchar", "clob", "string":
		dt.Kind = schema.KindVarChar
		dt.Length = schema.ParseLength(raw)
	case "uuid":
		dt.Kind = schema.KindUUID
	case "blob":
		dt.Kind = schema.KindBinary
	case "time":
		dt.Kind = schema.KindTime
	case "timestamp":
		dt.Kind = schema.KindTimestamp
	}
	return dt
}
