package render

import (
	"strconv"
	"text/template"

	"benritz/dbstub/internal/schema"
)

var joiTmpl = template.Must(template.New("joi").Parse(`{{if .TypeScript}}import Joi from 'joi';{{else}}const Joi = require('joi');{{end}}

const {{.Ident}} = {
{{range .Fields}}{{$.Indent}}'{{.Name}}': {{.Value}}{{.Sep}}
{{end}}};

{{if .TypeScript}}export default {{.Ident}};{{else}}module.exports = {{.Ident}};{{end}}
`))

// joiRenderer leaves out foreign keys and back references.
type joiRenderer struct {
	opts Options
}

func (r *joiRenderer) Render(snap *schema.Snapshot) (*Output, error) {
	out := &Output{Format: FormatJoi, Tables: map[string]string{}}
	for _, name := range snap.TableNames() {
		doc, err := r.document(snap.Tables[name])
		if err != nil {
			return nil, err
		}
		text, err := execute(joiTmpl, doc)
		if err != nil {
			return nil, err
		}
		out.Tables[name] = text
	}
	return finish(out, snap, r.opts)
}

func (r *joiRenderer) document(t *schema.Table) (modelDoc, error) {
	doc := modelDoc{
		Ident:      r.opts.TableIdent(t.Name),
		Indent:     r.opts.indent(),
		TypeScript: r.opts.TypeScript,
	}
	for _, c := range t.Columns {
		dt, err := kindOf(t.Name, c)
		if err != nil {
			return doc, err
		}
		rule := joiRule(dt)
		if c.IsNullable {
			rule += ".allow(null)"
		} else {
			rule += ".required()"
		}
		doc.Fields = append(doc.Fields, field{Name: r.opts.FieldIdent(c.Name), Value: rule})
	}
	doc.Fields = separate(doc.Fields)
	return doc, nil
}

func joiRule(dt schema.DataType) string {
	switch {
	case dt.Kind == schema.KindBool:
		return "Joi.boolean()"
	case dt.Kind.IsInteger():
		return "Joi.number().integer()"
	}
	switch dt.Kind {
	case schema.KindFloat32, schema.KindFloat64, schema.KindNumeric, schema.KindMoney:
		return "Joi.number()"
	case schema.KindVarChar:
		length := dt.Length
		if length == 0 {
			length = schema.ParseLength(dt.Raw)
		}
		if length > 0 {
			return "Joi.string().max(" + strconv.Itoa(length) + ")"
		}
		return "Joi.string()"
	case schema.KindUUID:
		return "Joi.string().guid()"
	case schema.KindDate, schema.KindTimestamp:
		return "Joi.date()"
	case schema.KindBinary:
		return "Joi.binary()"
	default:
		return "Joi.string()"
	}
}
