// Package extract turns the consultation text produced by the LLM into the
// structured document reviewed by the clinician.
package extract

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"medical-review-assistant/internal/review"
)

var headingAliases = map[string]review.SectionID{
	"rapport":                 review.SectionReport,
	"compte rendu":            review.SectionReport,
	"compte-rendu":            review.SectionReport,
	"synthese":                review.SectionReport,
	"report":                  review.SectionReport,
	"summary":                 review.SectionReport,
	"diagnostic":              review.SectionDiagnosis,
	"diagnostics":             review.SectionDiagnosis,
	"diagnosis":               review.SectionDiagnosis,
	"examens":                 review.SectionTests,
	"examens complementaires": review.SectionTests,
	"bilan":                   review.SectionTests,
	"tests":                   review.SectionTests,
	"investigations":          review.SectionTests,
	"prescription":            review.SectionPrescription,
	"prescriptions":           review.SectionPrescription,
	"ordonnance":              review.SectionPrescription,
	"traitement":              review.SectionPrescription,
	"treatment":               review.SectionPrescription,
	"medications":             review.SectionPrescription,
}

var (
	principalKeys    = keySet("diagnostic principal", "principal", "diagnostic", "principal diagnosis", "main diagnosis", "diagnosis")
	confidenceKeys   = keySet("confiance", "niveau de confiance", "confidence", "confidence level", "certitude")
	differentialKeys = keySet("diagnostics differentiels", "diagnostic differentiel", "differentiels", "differential diagnoses", "differential diagnosis", "differentials")
	biologyKeys      = keySet("biologie", "biology", "examens biologiques", "bilan biologique", "laboratory", "lab", "labs")
	imagingKeys      = keySet("imagerie", "imaging", "radiologie", "radiology", "examens d'imagerie")
)

func diagnosisKey(key string) bool {
	return principalKeys[key] || confidenceKeys[key] || differentialKeys[key]
}

func keySet(keys ...string) map[string]bool {
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out
}

var (
	numberingRe = regexp.MustCompile(`^\d+\s*[.)]\s*`)
	bulletRe    = regexp.MustCompile(`^(?:[-*•·]|\d+\s*[.)])\s+`)
)

// Parse runs every section parser over the raw consultation text.
// Evidence is left empty; it is attached separately.
func Parse(text string) review.Content {
	blocks := SplitSections(text)
	return review.Content{
		Report:       ExtractReport(text),
		Diagnosis:    ParseDiagnosis(blocks[review.SectionDiagnosis]),
		Tests:        ParseTests(blocks[review.SectionTests]),
		Prescription: ParsePrescription(blocks[review.SectionPrescription]),
	}
}

// SplitSections groups lines under the last recognised heading. Text before
// the first heading is dropped.
func SplitSections(text string) map[review.SectionID]string {
	out := make(map[review.SectionID]string)
	var (
		current review.SectionID
		buf     []string
	)
	flush := func() {
		if current == "" {
			return
		}
		block := strings.TrimSpace(strings.Join(buf, "\n"))
		if prev, ok := out[current]; ok && prev != "" {
			block = prev + "\n" + block
		}
		out[current] = block
	}

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if id, ok := headingSection(line); ok {
			flush()
			current, buf = id, nil
			continue
		}
		buf = append(buf, line)
	}
	flush()
	return out
}

// ExtractReport returns the report block, or the whole text when the output
// has no recognisable headings.
func ExtractReport(text string) string {
	blocks := SplitSections(text)
	if len(blocks) == 0 {
		return strings.TrimSpace(text)
	}
	return blocks[review.SectionReport]
}

func ParseDiagnosis(block string) review.Diagnosis {
	var (
		d          review.Diagnosis
		inDiffs    bool
		firstPlain string
	)
	for _, raw := range nonEmptyLines(block) {
		// Sub-headings may come as "Key: value", "**Key**", "### Key" or "1. Key".
		key, value, hasColon := splitKeyValue(raw)
		if item, ok := bulletItem(raw); ok {
			if key, value, hasColon = splitKeyValue(item); !diagnosisKey(key) {
				if inDiffs {
					d.Differentials = append(d.Differentials, item)
				} else if firstPlain == "" {
					firstPlain = item
				}
				continue
			}
		}

		switch {
		case principalKeys[key]:
			inDiffs = false
			if hasColon && value != "" {
				d.Principal = value
			}
		case confidenceKeys[key]:
			inDiffs = false
			if hasColon && value != "" {
				d.Confidence = value
			}
		case differentialKeys[key]:
			inDiffs = true
			d.Differentials = append(d.Differentials, splitInline(value)...)
		case inDiffs:
			d.Differentials = append(d.Differentials, cleanLine(raw))
		case !hasColon && firstPlain == "":
			firstPlain = cleanLine(raw)
		}
	}
	if d.Principal == "" {
		d.Principal = firstPlain
	}
	return d
}

func ParseTests(block string) review.Tests {
	var (
		t      review.Tests
		target = &t.Biology
	)
	for _, raw := range nonEmptyLines(block) {
		key, value, _ := splitKeyValue(raw)
		if item, ok := bulletItem(raw); ok {
			if key, value, _ = splitKeyValue(item); !biologyKeys[key] && !imagingKeys[key] {
				*target = append(*target, item)
				continue
			}
		}
		switch {
		case biologyKeys[key]:
			target = &t.Biology
		case imagingKeys[key]:
			target = &t.Imaging
		default:
			*target = append(*target, cleanLine(raw))
			continue
		}
		*target = append(*target, splitInline(value)...)
	}
	return t
}

// ParsePrescription keeps one entry per medication line.
func ParsePrescription(block string) []string {
	var meds []string
	for _, raw := range nonEmptyLines(block) {
		if item, ok := bulletItem(raw); ok {
			meds = append(meds, item)
			continue
		}
		meds = append(meds, strings.TrimSpace(raw))
	}
	return meds
}

func headingSection(line string) (review.SectionID, bool) {
	s := strings.TrimSpace(line)
	if s == "" {
		return "", false
	}
	s = strings.Trim(s, "#*_: \t")
	s = strings.Trim(numberingRe.ReplaceAllString(s, ""), "*_: \t")
	id, ok := headingAliases[normalize(s)]
	return id, ok
}

func bulletItem(line string) (string, bool) {
	s := strings.TrimSpace(line)
	loc := bulletRe.FindStringIndex(s)
	if loc == nil {
		return "", false
	}
	item := strings.TrimSpace(s[loc[1]:])
	return strings.Trim(item, "*_ "), item != ""
}

// splitKeyValue splits "Key: value" and returns the normalised key. Markdown
// heading marks and numbering around the key are ignored.
func splitKeyValue(line string) (string, string, bool) {
	s := cleanLine(line)
	i := strings.Index(s, ":")
	if i < 0 {
		return normalize(s), "", false
	}
	key := strings.Trim(strings.TrimSpace(s[:i]), "*_ ")
	value := strings.Trim(strings.TrimSpace(s[i+1:]), "*_ ")
	return normalize(key), value, true
}

// cleanLine drops heading marks, emphasis and leading numbering.
func cleanLine(line string) string {
	s := strings.Trim(strings.TrimSpace(line), "#*_ \t")
	return strings.Trim(numberingRe.ReplaceAllString(s, ""), "#*_ \t")
}

func splitInline(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == ';' || r == ',' }) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func nonEmptyLines(block string) []string {
	var out []string
	for _, line := range strings.Split(block, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

// normalize lowercases and strips diacritics so "Diagnostics différentiels"
// matches "diagnostics differentiels".
func normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.Join(strings.Fields(out), " "))
}
