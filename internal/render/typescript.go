package render

import (
	"text/template"

	"benritz/dbstub/internal/schema"
)

var declTmpl = template.Must(template.New("db.d.ts").Parse(`// tslint:disable
{{range .Interfaces}}
export interface {{.Name}}Attribute {
{{range .Fields}}{{$.Indent}}{{.Name}}{{if .Optional}}?{{end}}: {{.Type}};
{{end}}}
{{end}}`))

var indexTmpl = template.Must(template.New("db.tables.ts").Parse(`// tslint:disable
import * as def from './db';

export interface Tables {
{{range .Interfaces}}{{$.Indent}}{{.Name}}: def.{{.Name}}Attribute;
{{end}}}

export const tableNames = [{{range $i, $t := .Interfaces}}{{if $i}}, {{end}}'{{$t.Table}}'{{end}}];
`))

type tsField struct {
	Name     string
	Type     string
	Optional bool
}

type tsInterface struct {
	Table  string
	Name   string
	Fields []tsField
}

type tsDoc struct {
	Indent     string
	Interfaces []tsInterface
}

// declarations renders db.d.ts and db.tables.ts for snap.
func declarations(snap *schema.Snapshot, opts Options) (string, string, error) {
	doc := tsDoc{Indent: opts.indent()}
	for _, name := range snap.TableNames() {
		iface := tsInterface{Table: name, Name: opts.TableIdent(name)}
		for _, c := range snap.Tables[name].Columns {
			iface.Fields = append(iface.Fields, tsField{
				Name:     opts.FieldIdent(c.Name),
				Type:     tsType(c),
				Optional: c.IsNullable,
			})
		}
		doc.Interfaces = append(doc.Interfaces, iface)
	}

	decl, err := execute(declTmpl, doc)
	if err != nil {
		return "", "", err
	}
	index, err := execute(indexTmpl, doc)
	if err != nil {
		return "", "", err
	}
	return decl, index, nil
}

func tsType(c schema.Column) string {
	dt := c.DataType
	if dt.Kind == "" {
		dt, _ = schema.ClassifyRaw(c.Type)
	}
	switch {
	case dt.Kind == schema.KindBool:
		return "boolean"
	case dt.Kind.IsInteger():
		return "number"
	}
	switch dt.Kind {
	case schema.KindFloat32, schema.KindFloat64, schema.KindNumeric, schema.KindMoney:
		return "number"
	case schema.KindVarChar, schema.KindText, schema.KindUUID, schema.KindTime:
		return "string"
	case schema.KindDate, schema.KindTimestamp:
		return "Date"
	case schema.KindBinary:
		return "Buffer"
	default:
		return "any"
	}
}
