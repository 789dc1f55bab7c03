package review

import (
	"encoding/json"
	"fmt"
)

// SectionID names one part of the consultation document.
type SectionID string

const (
	SectionReport       SectionID = "report"
	SectionDiagnosis    SectionID = "diagnosis"
	SectionTests        SectionID = "tests"
	SectionPrescription SectionID = "prescription"
	SectionEvidence     SectionID = "evidence"
)

// Sections lists every section in display order.
var Sections = []SectionID{
	SectionReport,
	SectionDiagnosis,
	SectionTests,
	SectionPrescription,
	SectionEvidence,
}

// Field names accepted by the edit operations.
const (
	FieldText          = "text"
	FieldPrincipal     = "principal"
	FieldConfidence    = "confidence"
	FieldDifferentials = "differentials"
	FieldBiology       = "biologie"
	FieldImaging       = "imagerie"
	FieldMedications   = "medications"
)

func (s SectionID) Valid() bool {
	for _, id := range Sections {
		if id == s {
			return true
		}
	}
	return false
}

// Label is the human readable section name used in notifications and reports.
func (s SectionID) Label() string {
	switch s {
	case SectionReport:
		return "Report"
	case SectionDiagnosis:
		return "Diagnosis"
	case SectionTests:
		return "Tests"
	case SectionPrescription:
		return "Prescription"
	case SectionEvidence:
		return "Evidence"
	default:
		return string(s)
	}
}

func ParseSectionID(s string) (SectionID, error) {
	id := SectionID(s)
	if !id.Valid() {
		return "", fmt.Errorf("%w: unknown section %q", ErrInvalidSectionReference, s)
	}
	return id, nil
}

type Diagnosis struct {
	Principal     string   `json:"principal"`
	Confidence    string   `json:"confidence"`
	Differentials []string `json:"differentials"`
}

type Tests struct {
	Biology []string `json:"biologie"`
	Imaging []string `json:"imagerie"`
}

// Content is the structured consultation document, already normalised by the
// extraction parsers. Evidence is carried as-is and never edited field by field.
type Content struct {
	Report       string          `json:"report"`
	Diagnosis    Diagnosis       `json:"diagnosis"`
	Tests        Tests           `json:"tests"`
	Prescription []string        `json:"prescription"`
	Evidence     json.RawMessage `json:"evidence,omitempty"`
}

// Clone returns a deep copy so that sessions never share slices with callers.
func (c Content) Clone() Content {
	out := Content{
		Report: c.Report,
		Diagnosis: Diagnosis{
			Principal:     c.Diagnosis.Principal,
			Confidence:    c.Diagnosis.Confidence,
			Differentials: cloneStrings(c.Diagnosis.Differentials),
		},
		Tests: Tests{
			Biology: cloneStrings(c.Tests.Biology),
			Imaging: cloneStrings(c.Tests.Imaging),
		},
		Prescription: cloneStrings(c.Prescription),
	}
	if c.Evidence != nil {
		out.Evidence = append(json.RawMessage(nil), c.Evidence...)
	}
	return out
}

// restore copies a single section from src into c.
func (c *Content) restore(section SectionID, src Content) {
	src = src.Clone()
	switch section {
	case SectionReport:
		c.Report = src.Report
	case SectionDiagnosis:
		c.Diagnosis = src.Diagnosis
	case SectionTests:
		c.Tests = src.Tests
	case SectionPrescription:
		c.Prescription = src.Prescription
	case SectionEvidence:
		c.Evidence = src.Evidence
	}
}

func (c *Content) scalar(section SectionID, field string) (*string, error) {
	switch {
	case section == SectionReport && field == FieldText:
		return &c.Report, nil
	case section == SectionDiagnosis && field == FieldPrincipal:
		return &c.Diagnosis.Principal, nil
	case section == SectionDiagnosis && field == FieldConfidence:
		return &c.Diagnosis.Confidence, nil
	}
	return nil, fieldError(section, field)
}

func (c *Content) list(section SectionID, field string) (*[]string, error) {
	switch {
	case section == SectionDiagnosis && field == FieldDifferentials:
		return &c.Diagnosis.Differentials, nil
	case section == SectionTests && field == FieldBiology:
		return &c.Tests.Biology, nil
	case section == SectionTests && field == FieldImaging:
		return &c.Tests.Imaging, nil
	case section == SectionPrescription && field == FieldMedications:
		return &c.Prescription, nil
	}
	return nil, fieldError(section, field)
}

func fieldError(section SectionID, field string) error {
	if !section.Valid() {
		return fmt.Errorf("%w: unknown section %q", ErrInvalidSectionReference, section)
	}
	return fmt.Errorf("%w: section %q has no field %q of that kind", ErrInvalidSectionReference, section, field)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
