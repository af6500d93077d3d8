package render

import (
	"text/template"

	"benritz/dbstub/internal/schema"
)

var swaggerTmpl = template.Must(template.New("swagger").Parse(`/**
 * @typedef {{.Ident}}
{{range .Props}} * @property {{printf "{%s}" .Type}} {{.Name}}{{if .Required}}.required{{end}}
{{end}} */
`))

type property struct {
	Type     string
	Name     string
	Required bool
}

type swaggerDoc struct {
	Ident string
	Props []property
}

func (d *swaggerDoc) add(p property) {
	for _, cur := range d.Props {
		if cur.Name == p.Name {
			return
		}
	}
	d.Props = append(d.Props, p)
}

type swaggerRenderer struct {
	opts Options
}

func (r *swaggerRenderer) Render(snap *schema.Snapshot) (*Output, error) {
	names := snap.TableNames()
	docs := make(map[string]*swaggerDoc, len(names))

	for _, name := range names {
		doc, err := r.document(snap.Tables[name])
		if err != nil {
			return nil, err
		}
		docs[name] = doc
	}

	// one-to-many back references need every table's keys
	for _, name := range names {
		for _, c := range snap.Tables[name].Columns {
			if c.ForeignKey == nil || !c.ForeignKey.IsForeignKey {
				continue
			}
			target, ok := docs[c.ForeignKey.TargetTable]
			if !ok {
				continue
			}
			ident := r.opts.TableIdent(name)
			target.add(property{Type: "Array.<" + ident + ">", Name: ident})
		}
	}

	out := &Output{Format: FormatSwagger, Tables: map[string]string{}}
	for _, name := range names {
		text, err := execute(swaggerTmpl, docs[name])
		if err != nil {
			return nil, err
		}
		out.Tables[name] = text
	}
	return finish(out, snap, r.opts)
}

func (r *swaggerRenderer) document(t *schema.Table) (*swaggerDoc, error) {
	doc := &swaggerDoc{Ident: r.opts.TableIdent(t.Name)}
	for _, c := range t.Columns {
		dt, err := kindOf(t.Name, c)
		if err != nil {
			return nil, err
		}
		doc.add(property{
			Type:     swaggerType(dt),
			Name:     r.opts.FieldIdent(c.Name),
			Required: !c.IsNullable,
		})
		if c.ForeignKey != nil && c.ForeignKey.IsForeignKey {
			target := r.opts.TableIdent(c.ForeignKey.TargetTable)
			doc.add(property{Type: target + ".model", Name: target})
		}
	}
	return doc, nil
}

func swaggerType(dt schema.DataType) string {
	switch {
	case dt.Kind == schema.KindBool:
		return "boolean"
	case dt.Kind.IsInteger():
		return "integer"
	}
	switch dt.Kind {
	case schema.KindFloat32, schema.KindFloat64, schema.KindNumeric, schema.KindMoney:
		return "number"
	default:
		return "string"
	}
}
