package render

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"unicode"

	"github.com/go-openapi/inflect"

	"benritz/dbstub/internal/schema"
)

type Format string

const (
	FormatModel   Format = "model"
	FormatSwagger Format = "swagger"
	FormatJoi     Format = "joi"
)

var Formats = []Format{FormatModel, FormatSwagger, FormatJoi}

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatModel, FormatSwagger, FormatJoi:
		return f, nil
	case "":
		return FormatModel, nil
	default:
		return "", fmt.Errorf("invalid output format: %s", s)
	}
}

type Options struct {
	CamelCase       bool
	FreezeTableName bool
	Spaces          bool
	Indentation     int
	TypeScript      bool
}

func DefaultOptions() Options {
	return Options{FreezeTableName: true, Indentation: 1}
}

func (o Options) indent() string {
	unit := "\t"
	if o.Spaces {
		unit = " "
	}
	n := o.Indentation
	if n < 0 {
		n = 0
	}
	return strings.Repeat(unit, n)
}

// TableIdent is the identifier a table is emitted under.
func (o Options) TableIdent(name string) string {
	if !o.FreezeTableName {
		name = inflect.Singularize(name)
	}
	return o.FieldIdent(name)
}

func (o Options) FieldIdent(name string) string {
	if o.CamelCase {
		return Camelize(name)
	}
	return name
}

// Camelize converts name to lower camel case. Words are split on separators
// and case changes and lower-cased before inflect joins them, so "TEAM_ID",
// "team_id" and "TeamId" all become "teamId".
func Camelize(name string) string {
	words := splitWords(name)
	if len(words) == 0 {
		return name
	}
	return inflect.CamelizeDownFirst(strings.Join(words, "_"))
}

// splitWords breaks s at non-alphanumerics, at lower-to-upper changes and
// before the last capital of an acronym followed by a lower case letter
// ("HTTPServer" is "http", "server").
func splitWords(s string) []string {
	runes := []rune(s)
	var words []string
	start := -1
	flush := func(end int) {
		if start >= 0 && end > start {
			words = append(words, strings.ToLower(string(runes[start:end])))
		}
		start = -1
	}
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		if !unicode.IsUpper(r) {
			continue
		}
		prev := runes[i-1]
		acronymEnd := unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
		if unicode.IsLower(prev) || unicode.IsDigit(prev) || acronymEnd {
			flush(i)
			start = i
		}
	}
	flush(len(runes))
	return words
}

// Output holds one generated text per table plus the TypeScript
// declaration files when requested.
type Output struct {
	Format       Format
	Tables       map[string]string
	Declarations string
	TableIndex   string
}

type Renderer interface {
	Render(snap *schema.Snapshot) (*Output, error)
}

func New(format Format, opts Options) (Renderer, error) {
	switch format {
	case FormatModel:
		return &modelRenderer{opts: opts}, nil
	case FormatSwagger:
		return &swaggerRenderer{opts: opts}, nil
	case FormatJoi:
		return &joiRenderer{opts: opts}, nil
	default:
		return nil, fmt.Errorf("invalid output format: %s", format)
	}
}

// TypeError reports a column whose type none of the renderers can express.
type TypeError struct {
	Table  string
	Column string
	Raw    string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("unknown column type %q for %s.%s", e.Raw, e.Table, e.Column)
}

func (e *TypeError) Is(target error) bool {
	return target == schema.ErrUnknownType
}

// kindOf returns the kind the dialect assigned to c, classifying the raw
// type for columns that were built without one.
func kindOf(table string, c schema.Column) (schema.DataType, error) {
	dt := c.DataType
	if dt.Kind == "" {
		// an unclassified guess comes back as KindUnknown
		dt, _ = schema.ClassifyRaw(c.Type)
	}
	if dt.Kind == schema.KindUnknown {
		raw := c.Type
		if raw == "" {
			raw = dt.Raw
		}
		return dt, &TypeError{Table: table, Column: c.Name, Raw: raw}
	}
	return dt, nil
}

type field struct {
	Name  string
	Value string
	Sep   string
}

// separate sets the separator of every field but the last.
func separate(fields []field) []field {
	for i := range fields {
		if i < len(fields)-1 {
			fields[i].Sep = ","
		} else {
			fields[i].Sep = ""
		}
	}
	return fields
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// finish adds the TypeScript declarations to out when requested.
func finish(out *Output, snap *schema.Snapshot, opts Options) (*Output, error) {
	if !opts.TypeScript {
		return out, nil
	}
	decl, index, err := declarations(snap, opts)
	if err != nil {
		return nil, err
	}
	out.Declarations = decl
	out.TableIndex = index
	return out, nil
}
