package schema

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

type DataTypeKind string

const (
	KindUnknown     DataTypeKind = "unknown"
	KindBool        DataTypeKind = "bool"
	KindInt16       DataTypeKind = "int16"
	KindInt32       DataTypeKind = "int32"
	KindInt64       DataTypeKind = "int64"
	KindSerialInt32 DataTypeKind = "serial_int32"
	KindSerialInt64 DataTypeKind = "serial_int64"
	KindFloat32     DataTypeKind = "float32"
	KindFloat64     DataTypeKind = "float64"
	KindNumeric     DataTypeKind = "numeric"
	KindMoney       DataTypeKind = "money"
	KindUUID        DataTypeKind = "uuid"
	KindVarChar     DataTypeKind = "varchar"
	KindText        DataTypeKind = "text"
	KindBinary      DataTypeKind = "binary"
	KindDate        DataTypeKind = "date"
	KindTime        DataTypeKind = "time"
	KindTimestamp   DataTypeKind = "timestamp"
)

// IsInteger reports whether the kind holds whole numbers.
func (k DataTypeKind) IsInteger() bool {
	switch k {
	case KindInt16, KindInt32, KindInt64, KindSerialInt32, KindSerialInt64:
		return true
	}
	return false
}

type DataType struct {
	Kind      DataTypeKind
	Length    int
	Precision int
	Scale     int
	Timezone  bool
	Raw       string
}

// ErrUnknownType is returned when a declared column type maps to no known kind.
var ErrUnknownType = errors.New("unknown column type")

var lengthSuffix = regexp.MustCompile(`\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\)`)

// ParseLength extracts the first number of a parenthesized suffix such as
// "varchar(50)" or "numeric(10,2)". It returns 0 when there is none.
func ParseLength(raw string) int {
	m := lengthSuffix.FindStringSubmatch(raw)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// ClassifyRaw maps a raw declared type onto a kind by substring, the way
// loosely typed catalogs must be read. Order matters: "tinyint" is checked
// before "int" and "varchar" before "text".
func ClassifyRaw(raw string) (DataType, error) {
	t := strings.ToLower(raw)
	dt := DataType{Kind: KindUnknown, Raw: t}
	switch {
	case strings.Contains(t, "tinyint"):
		dt.Kind = KindBool
	case strings.Contains(t, "int"):
		dt.Kind = KindInt32
	case strings.Contains(t, "double"), strings.Contains(t, "float"):
		dt.Kind = KindFloat64
	case strings.Contains(t, "varchar"):
		dt.Kind = KindVarChar
		dt.Length = ParseLength(t)
	case strings.Contains(t, "text"):
		dt.Kind = KindText
	case strings.Contains(t, "date"):
		dt.Kind = KindDate
	default:
		return dt, fmt.Errorf("%w: %q", ErrUnknownType, raw)
	}
	return dt, nil
}

type Column struct {
	ColumnID     int
	Name         string
	MaxLength    int
	Precision    int
	Scale        int
	IsNullable   bool
	IsComputed   bool
	IsAutoInc    bool
	IsPrimaryKey bool
	Type         string
	Default      string
	DataType     DataType
	ForeignKey   *ForeignKeyRef
}

type Table struct {
	Name    string
	Columns []Column
}

// Column returns the column with the given name.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// ForeignKeyRef is the normalized key metadata for a single column. Rows for
// primary keys and unique constraints land here too, with IsForeignKey unset.
type ForeignKeyRef struct {
	Constraint   string
	SourceSchema string
	SourceTable  string
	SourceColumn string
	TargetSchema string
	TargetTable  string
	TargetColumn string
	IsForeignKey bool
	IsUnique     bool
	IsPrimaryKey bool
	IsSerialKey  bool
}

// Merge folds other onto r. Flags accumulate; non-empty strings overwrite.
func (r *ForeignKeyRef) Merge(other *ForeignKeyRef) {
	if other == nil {
		return
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&r.Constraint, other.Constraint)
	set(&r.SourceSchema, other.SourceSchema)
	set(&r.SourceTable, other.SourceTable)
	set(&r.SourceColumn, other.SourceColumn)
	// A key-only row must not erase the reference of an earlier foreign key row.
	if other.IsForeignKey || !r.IsForeignKey {
		set(&r.TargetSchema, other.TargetSchema)
		set(&r.TargetTable, other.TargetTable)
		set(&r.TargetColumn, other.TargetColumn)
	}
	r.IsForeignKey = r.IsForeignKey || other.IsForeignKey
	r.IsUnique = r.IsUnique || other.IsUnique
	r.IsPrimaryKey = r.IsPrimaryKey || other.IsPrimaryKey
	r.IsSerialKey = r.IsSerialKey || other.IsSerialKey
}

// Snapshot is the introspected schema: described tables plus the key
// metadata collected for them beforehand.
type Snapshot struct {
	Tables      map[string]*Table
	ForeignKeys map[string]map[string]*ForeignKeyRef
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		Tables:      map[string]*Table{},
		ForeignKeys: map[string]map[string]*ForeignKeyRef{},
	}
}

// AddForeignKey merges ref under (table, ref.SourceColumn).
func (s *Snapshot) AddForeignKey(table string, ref *ForeignKeyRef) {
	cols, ok := s.ForeignKeys[table]
	if !ok {
		cols = map[string]*ForeignKeyRef{}
		s.ForeignKeys[table] = cols
	}
	cur, ok := cols[ref.SourceColumn]
	if !ok {
		cur = &ForeignKeyRef{}
		cols[ref.SourceColumn] = cur
	}
	cur.Merge(ref)
}

// AddTable stores t, attaching any foreign key collected for its columns.
func (s *Snapshot) AddTable(t *Table) {
	fks := s.ForeignKeys[t.Name]
	for i := range t.Columns {
		if ref, ok := fks[t.Columns[i].Name]; ok {
			t.Columns[i].ForeignKey = ref
			if ref.IsPrimaryKey {
				t.Columns[i].IsPrimaryKey = true
			}
			if ref.IsSerialKey {
				t.Columns[i].IsAutoInc = true
			}
		}
	}
	s.Tables[t.Name] = t
}

// TableNames returns table names in case-insensitive order.
func (s *Snapshot) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := strings.ToLower(names[i]), strings.ToLower(names[j])
		if a == b {
			return names[i] < names[j]
		}
		return a < b
	})
	return names
}
