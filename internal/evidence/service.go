package evidence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultArticleLimit = 5
	maxArticleLimit     = 10
)

// Completer sends one system/user prompt pair to the language model.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type Service struct {
	llm Completer
	log *logrus.Logger
	now func() time.Time
}

func NewService(llm Completer, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{llm: llm, log: logger, now: time.Now}
}

// SearchLiterature asks the model for references on query. Output that cannot
// be decoded is kept as a single fallback article holding the raw answer.
func (s *Service) SearchLiterature(ctx context.Context, query string, limit int) (*LiteratureResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = defaultArticleLimit
	}
	if limit > maxArticleLimit {
		limit = maxArticleLimit
	}

	prompt, err := render(literatureTemplate, struct {
		Query string
		Limit int
	}{query, limit})
	if err != nil {
		return nil, fmt.Errorf("rendering literature prompt: %w", err)
	}

	raw, err := s.llm.Complete(ctx, literatureSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("literature search: %w", err)
	}

	result := &LiteratureResult{Query: query, GeneratedAt: s.now().UTC()}
	articles, err := decodeList[Article](raw, "articles", "references", "results")
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"query": query,
			"error": err,
		}).Warn("Literature output is not JSON, using fallback")
		result.Fallback = true
		result.Articles = []Article{{Title: query, Summary: strings.TrimSpace(raw)}}
		return result, nil
	}

	if len(articles) > limit {
		articles = articles[:limit]
	}
	result.Articles = articles
	return result, nil
}

// NormalizeDrugs maps each medication line to a DrugRecord. Output that
// cannot be decoded yields one record per input with the input as DCI.
func (s *Service) NormalizeDrugs(ctx context.Context, names []string) (*DrugResult, error) {
	inputs := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			inputs = append(inputs, n)
		}
	}
	if len(inputs) == 0 {
		return nil, ErrEmptyQuery
	}

	prompt, err := render(drugTemplate, struct{ Drugs []string }{inputs})
	if err != nil {
		return nil, fmt.Errorf("rendering drug prompt: %w", err)
	}

	raw, err := s.llm.Complete(ctx, drugSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("drug normalization: %w", err)
	}

	result := &DrugResult{GeneratedAt: s.now().UTC()}
	drugs, err := decodeList[DrugRecord](raw, "drugs", "medications", "results")
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"count": len(inputs),
			"error": err,
		}).Warn("Drug normalization output is not JSON, using fallback")
		result.Fallback = true
		result.Drugs = fallbackDrugs(inputs)
		return result, nil
	}

	if len(drugs) == len(inputs) {
		for i := range drugs {
			if drugs[i].Input == "" {
				drugs[i].Input = inputs[i]
			}
		}
	}
	result.Drugs = drugs
	return result, nil
}

func fallbackDrugs(inputs []string) []DrugRecord {
	out := make([]DrugRecord, len(inputs))
	for i, in := range inputs {
		out[i] = DrugRecord{Input: in, DCI: in}
	}
	return out
}
