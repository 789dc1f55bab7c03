package agent

import (
	"bytes"
	"text/template"

	"medical-review-assistant/internal/consultation"
)

const consultationSystemPrompt = `Tu es un assistant médical qui prépare une consultation pour un médecin.
Le médecin relit et valide chaque partie. Réponds en français, sans préambule.`

// Headings must stay in sync with the aliases known to the extract package.
var consultationTemplate = template.Must(template.New("consultation").Parse(
	`Patient : {{.Name}}{{if .Age}}, {{.Age}} ans{{end}}{{if .Sex}}, {{.Sex}}{{end}}
Motif de consultation : {{.Complaint}}
{{- if .History}}
Antécédents : {{.History}}{{end}}
{{- if .Medications}}
Traitements en cours :{{range .Medications}}
- {{.}}{{end}}{{end}}
{{- if .Allergies}}
Allergies :{{range .Allergies}}
- {{.}}{{end}}{{end}}
{{- if .Vitals}}
Constantes : {{.Vitals}}{{end}}

Rédige la consultation avec exactement ces sections :

## RAPPORT
Synthèse clinique en texte libre.

## DIAGNOSTIC
Diagnostic principal : ...
Confiance : élevée | modérée | faible
Diagnostics différentiels :
- ...

## EXAMENS
Biologie :
- ...
Imagerie :
- ...

## PRESCRIPTION
- une ligne par médicament avec posologie et durée
`))

func consultationPrompt(p consultation.Patient) (string, error) {
	var buf bytes.Buffer
	if err := consultationTemplate.Execute(&buf, p); err != nil {
		return "", err
	}
	return buf.String(), nil
}
