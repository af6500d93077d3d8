package mssql

import (
	"strings"

	"benritz/dbstub/internal/dialect"
	"benritz/dbstub/internal/schema"
)

type Profile struct{}

func New() *Profile { return &Profile{} }

func (p *Profile) Name() string       { return "mssql" }
func (p *Profile) DriverName() string { return "sqlserver" }

func (p *Profile) ListTablesQuery(schemaName string) (string, []any) {
	if schemaName == "" {
		return `select TABLE_NAME as table_name from INFORMATION_SCHEMA.TABLES
where TABLE_TYPE = 'BASE TABLE' order by TABLE_NAME`, nil
	}
	return `select TABLE_NAME as table_name from INFORMATION_SCHEMA.TABLES
where TABLE_TYPE = 'BASE TABLE' and TABLE_SCHEMA = @p1 order by TABLE_NAME`, []any{schemaName}
}

func (p *Profile) DescribeTableQuery(table, _ string) (string, []any) {
	return `select
c.column_id,
c.name as column_name,
c.max_length,
c.precision,
c.scale,
c.is_nullable,
c.is_identity,
c.is_computed,
ty.name as type,
d.definition,
cast(case when exists (
  select 1 from sys.indexes i join sys.index_columns ic
  on ic.object_id = i.object_id and ic.index_id = i.index_id
  where i.object_id = t.object_id and i.is_primary_key = 1 and ic.column_id = c.column_id
) then 1 else 0 end as bit) as is_primary
from
sys.tables t join sys.columns c on t.object_id = c.object_id
join sys.types ty on c.user_type_id = ty.user_type_id
left join sys.default_constraints d on d.parent_object_id = c.object_id and d.parent_column_id = c.column_id
where t.name = @p1
order by
c.column_id asc`, []any{table}
}

func (p *Profile) ForeignKeysQuery(table, _, _ string) (string, []any) {
	return `select
ccu.table_name as source_table,
ccu.constraint_name as constraint_name,
ccu.column_name as source_column,
kcu.table_name as target_table,
kcu.column_name as target_column,
tc.constraint_type as constraint_type,
c.is_identity as is_identity
from INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
join INFORMATION_SCHEMA.CONSTRAINT_COLUMN_USAGE ccu on tc.CONSTRAINT_NAME = ccu.CONSTRAINT_NAME
left join INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS rc on ccu.CONSTRAINT_NAME = rc.CONSTRAINT_NAME
left join INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu on kcu.CONSTRAINT_NAME = rc.UNIQUE_CONSTRAINT_NAME and tc.CONSTRAINT_TYPE = 'FOREIGN KEY'
join sys.columns c on c.name = ccu.COLUMN_NAME and c.object_id = object_id(ccu.TABLE_NAME)
where ccu.table_name = @p1`, []any{table}
}

func (p *Profile) NormalizeForeignKey(row dialect.Row) dialect.Row {
	return row
}

func (p *Profile) IsUnique(row dialect.Row) bool {
	return strings.EqualFold(row.String("constraint_type"), "UNIQUE")
}

func (p *Profile) IsPrimaryKey(row dialect.Row) bool {
	return strings.EqualFold(row.String("constraint_type"), "PRIMARY KEY")
}

func (p *Profile) IsSerialKey(row dialect.Row) bool {
	return row.Bool("is_identity")
}

func (p *Profile) Column(row dialect.Row) (schema.Column, error) {
	colType := row.String("type")
	maxLength := row.Int("max_length")
	isAutoInc := row.Bool("is_identity")

	defaultValue := row.String("definition")
	if !isAutoInc &&
		strings.HasPrefix(strings.ToLower(strings.TrimSpace(defaultValue)), "next value for ") {
		isAutoInc = true
	}

	return schema.Column{
		ColumnID:     row.Int("column_id"),
		Name:         row.String("column_name"),
		MaxLength:    maxLength,
		Precision:    row.Int("precision"),
		Scale:        row.Int("scale"),
		IsNullable:   row.Bool("is_nullable"),
		IsComputed:   row.Bool("is_computed"),
		IsAutoInc:    isAutoInc,
		IsPrimaryKey: row.Bool("is_primary"),
		Type:         colType,
		Default:      defaultValue,
		DataType:     toDataType(colType, maxLength, row.Int("precision"), row.Int("scale"), isAutoInc),
	}, nil
}

func toDataType(colType string, maxLength, precision, scale int, isAutoInc bool) schema.DataType {
	raw := strings.ToLower(colType)
	dt := schema.DataType{Kind: schema.KindUnknown, Raw: raw}
	switch raw {
	case "bit":
		dt.Kind = schema.KindBool
	case "tinyint", "smallint":
		dt.Kind = schema.KindInt16
	case "int":
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
	case "real":
		dt.Kind = schema.KindFloat32
	case "float":
		dt.Kind = schema.KindFloat64
	case "decimal", "numeric":
		dt.Kind = schema.KindNumeric
		dt.Precision = precision
		dt.Scale = scale
	case "money", "smallmoney":
		dt.Kind = schema.KindMoney
	case "uniqueidentifier":
		dt.Kind = schema.KindUUID
	case "varchar", "char", "nvarchar", "nchar":
		// max_length is in bytes and -1 for (max)
		if maxLength == -1 {
			dt.Kind = schema.KindText
			break
		}
		if raw == "nvarchar" || raw == "nchar" {
			maxLength /= 2
		}
		dt.Kind = schema.KindVarChar
		dt.Length = maxLength
	case "text", "ntext", "xml":
		dt.Kind = schema.KindText
	case "binary", "varbinary", "image", "timestamp", "rowversion":
		dt.Kind = schema.KindBinary
	case "date":
		dt.Kind = schema.KindDate
	case "time":
		dt.Kind = schema.KindTime
	case "datetime", "datetime2", "smalldatetime":
		dt.Kind = schema.KindTimestamp
	case "datetimeoffset":
		dt.Kind = schema.KindTimestamp
		dt.Timezone = true
	default:
		if guess, err := schema.ClassifyRaw(raw); err == nil {
			dt = guess
		}
	}
	return dt
}
