package render

import (
	"text/template"

	"benritz/dbstub/internal/schema"
)

var modelTmpl = template.Must(template.New("model").Parse(`const {{.Ident}} = {
{{range .Fields}}{{$.Indent}}'{{.Name}}': {{.Value}}{{.Sep}}
{{end}}}

{{if .TypeScript}}export default {{.Ident}};{{else}}module.exports = Object.assign({}, {{.Ident}});{{end}}
`))

type modelDoc struct {
	Ident      string
	Indent     string
	TypeScript bool
	Fields     []field
}

type modelRenderer struct {
	opts Options
}

func (r *modelRenderer) Render(snap *schema.Snapshot) (*Output, error) {
	out := &Output{Format: FormatModel, Tables: map[string]string{}}
	for _, name := range snap.TableNames() {
		text, err := execute(modelTmpl, r.document(snap.Tables[name]))
		if err != nil {
			return nil, err
		}
		out.Tables[name] = text
	}
	return finish(out, snap, r.opts)
}

func (r *modelRenderer) document(t *schema.Table) modelDoc {
	doc := modelDoc{
		Ident:      r.opts.TableIdent(t.Name),
		Indent:     r.opts.indent(),
		TypeScript: r.opts.TypeScript,
	}
	for _, c := range t.Columns {
		doc.Fields = append(doc.Fields, field{Name: r.opts.FieldIdent(c.Name), Value: "null"})
		if c.ForeignKey != nil && c.ForeignKey.IsForeignKey {
			doc.Fields = append(doc.Fields, field{
				Name:  r.opts.TableIdent(c.ForeignKey.TargetTable),
				Value: "{}",
			})
		}
	}
	doc.Fields = separate(doc.Fields)
	return doc
}
