package pgsql

import (
	"strings"

	"benritz/dbstub/internal/dialect"
	"benritz/dbstub/internal/schema"
)

const DefaultSchema = "public"

// Profile reads the Postgres catalog. Tables are looked up in Schema.
type Profile struct {
	Schema string
}

func New(schemaName string) *Profile {
	if schemaName == "" {
		schemaName = DefaultSchema
	}
	return &Profile{Schema: schemaName}
}

func (p *Profile) Name() string       { return "postgres" }
func (p *Profile) DriverName() string { return "pgx" }

func (p *Profile) schemaOr(s string) string {
	if s != "" {
		return s
	}
	return p.Schema
}

func (p *Profile) ListTablesQuery(schemaName string) (string, []any) {
	return `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = $1
  AND table_type LIKE '%TABLE'
  AND table_name != 'spatial_ref_sys'
ORDER BY table_name`, []any{p.schemaOr(schemaName)}
}

func (p *Profile) DescribeTableQuery(table, schemaName string) (string, []any) {
	return `
SELECT
    a.attnum  AS column_id,
    a.attname AS column_name,
    a.atttypmod,
    t.typname AS base_type,
    NOT a.attnotnull AS is_nullable,
    (a.attidentity <> '') AS is_identity,
    (a.attgenerated <> '') AS is_generated,
    pg_get_expr(ad.adbin, ad.adrelid) AS default_expr,
    EXISTS (
        SELECT 1 FROM pg_catalog.pg_index i
        WHERE i.indrelid = c.oid AND i.indisprimary AND a.attnum = ANY(i.indkey)
    ) AS is_primary
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
JOIN pg_catalog.pg_attribute a ON a.attrelid = c.oid
JOIN pg_catalog.pg_type t ON t.oid = a.atttypid
LEFT JOIN pg_catalog.pg_attrdef ad ON ad.adrelid = c.oid AND ad.adnum = a.attnum
WHERE c.relname = $1
  AND n.nspname = $2
  AND a.attnum > 0
  AND NOT a.attisdropped
ORDER BY a.attnum ASC`, []any{table, p.schemaOr(schemaName)}
}

func (p *Profile) ForeignKeysQuery(table, _, schemaName string) (string, []any) {
	return `
SELECT
    o.conname AS constraint_name,
    (SELECT nspname FROM pg_catalog.pg_namespace WHERE oid = m.relnamespace) AS source_schema,
    m.relname AS source_table,
    (SELECT a.attname FROM pg_catalog.pg_attribute a
     WHERE a.attrelid = m.oid AND a.attnum = o.conkey[1] AND a.attisdropped = false) AS source_column,
    (SELECT nspname FROM pg_catalog.pg_namespace WHERE oid = f.relnamespace) AS target_schema,
    f.relname AS target_table,
    (SELECT a.attname FROM pg_catalog.pg_attribute a
     WHERE a.attrelid = f.oid AND a.attnum = o.confkey[1] AND a.attisdropped = false) AS target_column,
    o.contype,
    (SELECT pg_get_expr(d.adbin, d.adrelid)
     FROM pg_catalog.pg_attribute a
     LEFT JOIN pg_catalog.pg_attrdef d ON (a.attrelid, a.attnum) = (d.adrelid, d.adnum)
     WHERE NOT a.attisdropped AND a.attnum > 0 AND a.attrelid = o.conrelid AND a.attnum = o.conkey[1]
     LIMIT 1) AS extra,
    (SELECT a.attidentity <> '' FROM pg_catalog.pg_attribute a
     WHERE a.attrelid = o.conrelid AND a.attnum = o.conkey[1]) AS is_identity
FROM pg_catalog.pg_constraint o
LEFT JOIN pg_catalog.pg_class f ON f.oid = o.confrelid
LEFT JOIN pg_catalog.pg_class m ON m.oid = o.conrelid
WHERE o.conrelid = (
    SELECT c.oid FROM pg_catalog.pg_class c
    JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
    WHERE c.relname = $1 AND n.nspname = $2
    LIMIT 1
)`, []any{table, p.schemaOr(schemaName)}
}

// NormalizeForeignKey is the identity: the query already uses canonical labels.
func (p *Profile) NormalizeForeignKey(row dialect.Row) dialect.Row {
	return row
}

func (p *Profile) IsUnique(row dialect.Row) bool {
	return row.String("contype") == "u"
}

func (p *Profile) IsPrimaryKey(row dialect.Row) bool {
	return row.String("contype") == "p"
}

func (p *Profile) IsSerialKey(row dialect.Row) bool {
	return row.Bool("is_identity") || isNextval(row.String("extra"))
}

func isNextval(def string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(def)), "nextval(")
}

func (p *Profile) Column(row dialect.Row) (schema.Column, error) {
	baseType := row.String("base_type")
	attTypMod := row.Int("atttypmod")

	maxLength := 0
	precision := 0
	scale := 0

	switch baseType {
	case "varchar", "bpchar", "char":
		if attTypMod > 4 {
			maxLength = attTypMod - 4
		}
	case "numeric", "decimal":
		if attTypMod > 4 {
			typmod := attTypMod - 4
			precision = (typmod >> 16) & 0xffff
			scale = typmod & 0xffff
		}
	}

	defaultValue := row.String("default_expr")
	isAutoInc := row.Bool("is_identity")
	if !isAutoInc && isNextval(defaultValue) {
		isAutoInc = true
	}

	return schema.Column{
		ColumnID:     row.Int("column_id"),
		Name:         row.String("column_name"),
		MaxLength:    maxLength,
		Precision:    precision,
		Scale:        scale,
		IsNullable:   row.Bool("is_nullable"),
		IsComputed:   row.Bool("is_generated"),
		IsAutoInc:    isAutoInc,
		IsPrimaryKey: row.Bool("is_primary"),
		Type:         baseType,
		Default:      defaultValue,
		DataType:     toDataType(baseType, maxLength, precision, scale, isAutoInc),
	}, nil
}

func toDataType(baseType string, maxLength, precision, scale int, isAutoInc bool) schema.DataType {
	raw := strings.ToLower(baseType)
	dt := schema.DataType{Kind: schema.KindUnknown, Raw: raw}
	switch raw {
	case "bool", "boolean":
		dt.Kind = schema.KindBool
	case "smallint", "int2":
		dt.Kind = schema.KindInt16
	case "integer", "int", "int4":
		if isAutoInc {
			dt.Kind = schema.KindSerialInt32
		} else {
			dt.Kind = schema.KindInt32
		}
	case "bigint", "int8":
		if isAutoInc {
			dt.Kind = schema.KindSerialInt64
		} else {
			dt.Kind = schema.KindInt64
		}
	case "real", "float4":
		dt.Kind = schema.KindFloat32
	case "double precision", "float8":
		dt.Kind = schema.KindFloat64
	case "numeric", "decimal":
		dt.Kind = schema.KindNumeric
		dt.Precision = precision
		dt.Scale = scale
	case "money":
		dt.Kind = schema.KindMoney
	case "uuid":
		dt.Kind = schema.KindUUID
	case "varchar", "character varying", "bpchar", "char":
		if maxLength > 0 {
			dt.Kind = schema.KindVarChar
			dt.Length = maxLength
		} else {
			dt.Kind = schema.KindText
		}
	case "text", "citext", "json", "jsonb", "xml", "inet", "cidr", "interval":
		dt.Kind = schema.KindText
	case "bytea":
		dt.Kind = schema.KindBinary
	case "date":
		dt.Kind = schema.KindDate
	case "time", "timetz":
		dt.Kind = schema.KindTime
	case "timestamp":
		dt.Kind = schema.KindTimestamp
	case "timestamptz", "timestamp with time zone":
		dt.Kind = schema.KindTimestamp
		dt.Timezone = true
	default:
		if guess, err := schema.ClassifyRaw(raw); err == nil {
			dt = guess
		}
	}
	return dt
}
