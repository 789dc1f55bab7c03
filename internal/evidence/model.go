package evidence

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmptyQuery = errors.New("empty query")
	ErrNoJSON     = errors.New("no JSON document found in model output")
)

// Year accepts both 2019 and "2019" since models are inconsistent about it.
type Year int

func (y *Year) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*y = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*y = Year(n)
	return nil
}

// Article is one bibliographic record backing a diagnosis.
type Article struct {
	Title   string   `json:"title"`
	Authors []string `json:"authors,omitempty"`
	Journal string   `json:"journal,omitempty"`
	Year    Year     `json:"year,omitempty"`
	PMID    string   `json:"pmid,omitempty"`
	DOI     string   `json:"doi,omitempty"`
	Summary string   `json:"summary,omitempty"`
	Level   string   `json:"level,omitempty"`
}

// UnmarshalJSON also accepts the evidence_level key some models emit.
func (a *Article) UnmarshalJSON(b []byte) error {
	type plain Article
	var v struct {
		plain
		EvidenceLevel string `json:"evidence_level"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*a = Article(v.plain)
	if a.Level == "" {
		a.Level = v.EvidenceLevel
	}
	return nil
}

type LiteratureResult struct {
	Query       string    `json:"query"`
	Articles    []Article `json:"articles"`
	Fallback    bool      `json:"fallback"`
	GeneratedAt time.Time `json:"generated_at"`
}

// DrugRecord is a free-text medication normalised to its international
// non-proprietary name (DCI).
type DrugRecord struct {
	Input      string   `json:"input"`
	DCI        string   `json:"dci"`
	BrandNames []string `json:"brand_names,omitempty"`
	ATCCode    string   `json:"atc_code,omitempty"`
	Form       string   `json:"form,omitempty"`
	Dosage     string   `json:"dosage,omitempty"`
	Route      string   `json:"route,omitempty"`
}

type DrugResult struct {
	Drugs       []DrugRecord `json:"drugs"`
	Fallback    bool         `json:"fallback"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// JSON encodes the articles the way they are stored in a consultation document.
func (r *LiteratureResult) JSON() (json.RawMessage, error) {
	return json.Marshal(r.Articles)
}
