package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medical-review-assistant/internal/review"
)

const consultationOutput = `## 1. RAPPORT
Patiente de 34 ans, céphalées pulsatiles unilatérales depuis 48 h.
Photophobie, pas de fièvre.

## DIAGNOSTIC
**Diagnostic principal** : Migraine sans aura
Confiance : élevée
Diagnostics différentiels :
- Céphalée de tension
- Sinusite aiguë

## EXAMENS COMPLÉMENTAIRES
Biologie :
- NFS
- CRP
Imagerie : IRM cérébrale

## PRESCRIPTION
1. Ibuprofène 400 mg, 3 fois par jour pendant 3 jours
2. Métoclopramide 10 mg si nausées
`

func TestParse(t *testing.T) {
	c := Parse(consultationOutput)

	assert.Equal(t, "Patiente de 34 ans, céphalées pulsatiles unilatérales depuis 48 h.\nPhotophobie, pas de fièvre.", c.Report)
	assert.Equal(t, review.Diagnosis{
		Principal:     "Migraine sans aura",
		Confidence:    "élevée",
		Differentials: []string{"Céphalée de tension", "Sinusite aiguë"},
	}, c.Diagnosis)
	assert.Equal(t, []string{"NFS", "CRP"}, c.Tests.Biology)
	assert.Equal(t, []string{"IRM cérébrale"}, c.Tests.Imaging)
	assert.Equal(t, []string{
		"Ibuprofène 400 mg, 3 fois par jour pendant 3 jours",
		"Métoclopramide 10 mg si nausées",
	}, c.Prescription)
	assert.Nil(t, c.Evidence)
}

func TestSplitSections(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[review.SectionID]string
	}{
		{
			name:  "markdown headings",
			input: "# Report\nfree text\n# Treatment\n- drug",
			want: map[review.SectionID]string{
				review.SectionReport:       "free text",
				review.SectionPrescription: "- drug",
			},
		},
		{
			name:  "bold headings with colon",
			input: "**DIAGNOSTIC**:\nPrincipal: Asthma\n**Bilan**\n- Spirometry",
			want: map[review.SectionID]string{
				review.SectionDiagnosis: "Principal: Asthma",
				review.SectionTests:     "- Spirometry",
			},
		},
		{
			name:  "no headings",
			input: "just a paragraph",
			want:  map[review.SectionID]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSections(tt.input))
		})
	}
}

func TestExtractReportFallsBackToRawText(t *testing.T) {
	assert.Equal(t, "Unstructured answer from the model.", ExtractReport("  Unstructured answer from the model.\n"))
}

func TestParseDiagnosis(t *testing.T) {
	tests := []struct {
		name  string
		block string
		want  review.Diagnosis
	}{
		{
			name:  "english keys with inline differentials",
			block: "Main diagnosis: Community-acquired pneumonia\nConfidence: moderate\nDifferential diagnoses: Bronchitis; Pulmonary embolism",
			want: review.Diagnosis{
				Principal:     "Community-acquired pneumonia",
				Confidence:    "moderate",
				Differentials: []string{"Bronchitis", "Pulmonary embolism"},
			},
		},
		{
			name:  "first plain line becomes principal",
			block: "Gastro-entérite virale\nDiagnostics différentiels:\n- Intoxication alimentaire",
			want: review.Diagnosis{
				Principal:     "Gastro-entérite virale",
				Differentials: []string{"Intoxication alimentaire"},
			},
		},
		{
			name:  "bold differentials heading without colon",
			block: "Diagnostic principal : Migraine\n**Diagnostics différentiels**\n- Céphalée de tension\n- Sinusite",
			want: review.Diagnosis{
				Principal:     "Migraine",
				Differentials: []string{"Céphalée de tension", "Sinusite"},
			},
		},
		{
			name:  "markdown differentials heading",
			block: "### Diagnostics différentiels\n- Céphalée de tension\n- Sinusite",
			want: review.Diagnosis{
				Differentials: []string{"Céphalée de tension", "Sinusite"},
			},
		},
		{
			name:  "numbered headings around values",
			block: "1. **Diagnostic principal** : Colique néphrétique\n2. Confiance : élevée\n### Differential diagnosis:\n- Appendicite",
			want: review.Diagnosis{
				Principal:     "Colique néphrétique",
				Confidence:    "élevée",
				Differentials: []string{"Appendicite"},
			},
		},
		{
			name:  "principal heading on its own line",
			block: "**Diagnostic principal**\n**Pyélonéphrite aiguë**",
			want:  review.Diagnosis{Principal: "Pyélonéphrite aiguë"},
		},
		{
			name:  "empty block",
			block: "",
			want:  review.Diagnosis{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDiagnosis(tt.block))
		})
	}
}

func TestParseTests(t *testing.T) {
	got := ParseTests("- Ionogramme\nImaging:\n- Chest X-ray\n- CT abdomen\nLab: Lipase, ALT")

	require.Len(t, got.Biology, 3)
	assert.Equal(t, []string{"Ionogramme", "Lipase", "ALT"}, got.Biology)
	assert.Equal(t, []string{"Chest X-ray", "CT abdomen"}, got.Imaging)
}

func TestParseTestsHeadingForms(t *testing.T) {
	tests := []struct {
		name    string
		block   string
		biology []string
		imaging []string
	}{
		{"markdown headings", "### Biologie\n- NFS\n### Imagerie\n- IRM", []string{"NFS"}, []string{"IRM"}},
		{"bold headings", "**Biologie**\n- CRP\n**Imagerie**\n- Échographie", []string{"CRP"}, []string{"Échographie"}},
		{"numbered headings", "1) Biologie :\n- Ionogramme\n2) Radiologie : Scanner", []string{"Ionogramme"}, []string{"Scanner"}},
		{"plain line stays in current list", "### Imagerie\nRadiographie du poignet", nil, []string{"Radiographie du poignet"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTests(tt.block)
			assert.Equal(t, tt.biology, got.Biology)
			assert.Equal(t, tt.imaging, got.Imaging)
		})
	}
}

func TestParsePrescription(t *testing.T) {
	assert.Equal(t, []string{"Amoxicilline 1 g x3/j", "Paracétamol 1 g si douleur"},
		ParsePrescription("- Amoxicilline 1 g x3/j\nParacétamol 1 g si douleur\n\n"))
	assert.Nil(t, ParsePrescription(""))
}
