package mysql

import (
	"strings"

	"benritz/dbstub/internal/dialect"
	"benritz/dbstub/internal/schema"
)

// Profile reads the MySQL catalog. MariaDB shares it under its own name.
type Profile struct {
	name string
}

func New() *Profile        { return &Profile{name: "mysql"} }
func NewMariaDB() *Profile { return &Profile{name: "mariadb"} }

func (p *Profile) Name() string       { return p.name }
func (p *Profile) DriverName() string { return "mysql" }

// An empty database name falls back to the connection's current database.
const currentSchema = `COALESCE(NULLIF(?, ''), DATABASE())`

func (p *Profile) ListTablesQuery(schemaName string) (string, []any) {
	return `SELECT TABLE_NAME AS table_name
FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_SCHEMA = ` + currentSchema + `
  AND TABLE_TYPE = 'BASE TABLE'
ORDER BY TABLE_NAME`, []any{schemaName}
}

func (p *Profile) DescribeTableQuery(table, schemaName string) (string, []any) {
	return `SELECT
  ORDINAL_POSITION AS column_id,
  COLUMN_NAME AS column_name,
  DATA_TYPE AS data_type,
  COLUMN_TYPE AS column_type,
  CHARACTER_MAXIMUM_LENGTH AS max_length,
  NUMERIC_PRECISION AS numeric_precision,
  NUMERIC_SCALE AS numeric_scale,
  IS_NULLABLE AS is_nullable,
  COLUMN_DEFAULT AS column_default,
  COLUMN_KEY AS column_key,
  EXTRA AS extra
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_NAME = ? AND TABLE_SCHEMA = ` + currentSchema + `
ORDER BY ORDINAL_POSITION`, []any{table, schemaName}
}

func (p *Profile) ForeignKeysQuery(table, database, _ string) (string, []any) {
	return `SELECT
  K.CONSTRAINT_NAME AS constraint_name,
  K.CONSTRAINT_SCHEMA AS source_schema,
  K.TABLE_NAME AS source_table,
  K.COLUMN_NAME AS source_column,
  K.REFERENCED_TABLE_SCHEMA AS target_schema,
  K.REFERENCED_TABLE_NAME AS target_table,
  K.REFERENCED_COLUMN_NAME AS target_column,
  C.EXTRA AS extra,
  C.COLUMN_KEY AS column_key
FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE AS K
LEFT JOIN INFORMATION_SCHEMA.COLUMNS AS C
  ON C.TABLE_NAME = K.TABLE_NAME AND C.COLUMN_NAME = K.COLUMN_NAME AND C.TABLE_SCHEMA = K.CONSTRAINT_SCHEMA
WHERE K.TABLE_NAME = ? AND K.CONSTRAINT_SCHEMA = ` + currentSchema, []any{table, database}
}

func (p *Profile) NormalizeForeignKey(row dialect.Row) dialect.Row {
	return row
}

func (p *Profile) IsUnique(row dialect.Row) bool {
	return strings.EqualFold(row.String("column_key"), "UNI")
}

func (p *Profile) IsPrimaryKey(row dialect.Row) bool {
	return strings.EqualFold(row.String(dialect.KeyConstraint), "PRIMARY")
}

func (p *Profile) IsSerialKey(row dialect.Row) bool {
	return strings.Contains(strings.ToLower(row.String("extra")), "auto_increment")
}

func (p *Profile) Column(row dialect.Row) (schema.Column, error) {
	dataType := row.String("data_type")
	columnType := row.String("column_type")
	if columnType == "" {
		columnType = dataType
	}
	isAutoInc := p.IsSerialKey(row)
	maxLength := row.Int("max_length")
	precision := row.Int("numeric_precision")
	scale := row.Int("numeric_scale")

	return schema.Column{
		ColumnID:     row.Int("column_id"),
		Name:         row.String("column_name"),
		MaxLength:    maxLength,
		Precision:    precision,
		Scale:        scale,
		IsNullable:   strings.EqualFold(row.String("is_nullable"), "YES"),
		IsComputed:   strings.Contains(strings.ToLower(row.String("extra")), "generated"),
		IsAutoInc:    isAutoInc,
		IsPrimaryKey: strings.EqualFold(row.String("column_key"), "PRI"),
		Type:         columnType,
		Default:      row.String("column_default"),
		DataType:     toDataType(dataType, columnType, maxLength, precision, scale, isAutoInc),
	}, nil
}

func toDataType(dataType, columnType string, maxLength, precision, scale int, isAutoInc bool) schema.DataType {
	raw := strings.ToLower(columnType)
	dt := schema.DataType{Kind: schema.KindUnknown, Raw: raw}
	switch strings.ToLower(dataType) {
	case "bit", "bool", "boolean", "tinyint":
		// tinyint is how MySQL spells boolean
		dt.Kind = schema.KindBool
	case "smallint", "year":
		dt.Kind = schema.KindInt16
	case "mediumint", "int", "integer":
		if isAutoInc {
			dt.Kind = schema.KindSerialInt32
		} else {
			dt.Kind = schema.KindInt32
		}
	case "bigint":
		if isAutoInc {
			dt.Kind = schema.KindSerialInt64
		} else {
			dt.Kind = schema.KindInt64
		}
	case "float":
		dt.Kind = schema.KindFloat32
	case "double", "real":
		dt.Kind = schema.KindFloat64
	case "decimal", "numeric":
		dt.Kind = schema.KindNumeric
		dt.Precision = precision
		dt.Scale = scale
	case "varchar", "char":
		dt.Kind = schema.KindVarChar
		dt.Length = maxLength
		if dt.Length == 0 {
			dt.Length = schema.ParseLength(raw)
		}
	case "tinytext", "text", "mediumtext", "longtext", "json", "enum", "set":
		dt.Kind = schema.KindText
	case "binary", "varbinary", "tinyblob", "blob", "mediumblob", "longblob":
		dt.Kind = schema.KindBinary
	case "date":
		dt.Kind = schema.KindDate
	case "time":
		dt.Kind = schema.KindTime
	case "datetime", "timestamp":
		dt.Kind = schema.KindTimestamp
	default:
		if guess, err := schema.ClassifyRaw(raw); err == nil {
			dt = guess
		}
	}
	return dt
}
