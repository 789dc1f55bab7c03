package evidence

import (
	"bytes"
	"text/template"
)

const literatureSystemPrompt = `You are a medical librarian. Answer only with JSON, no prose.`

const drugSystemPrompt = `You are a clinical pharmacist. Answer only with JSON, no prose.`

var literatureTemplate = template.Must(template.New("literature").Parse(
	`List up to {{.Limit}} peer-reviewed references supporting the clinical question below.
Return a JSON array of objects with the keys: title, authors (array), journal, year, pmid, doi, summary, level.

Clinical question: {{.Query}}`))

var drugTemplate = template.Must(template.New("drugs").Parse(
	`Normalise each medication line to its international non-proprietary name (DCI).
Return a JSON array, one object per input and in the same order, with the keys: input, dci, brand_names (array), atc_code, form, dosage, route.

Medications:
{{range .Drugs}}- {{.}}
{{end}}`))

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
