// Package scoring turns answers into a total score and a maturity level.
package scoring

import (
	"cicdassess/internal/catalog"
	"cicdassess/internal/model"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	MinScore = 8
	MaxScore = 32
)

var (
	ErrScoreOutOfRange = errors.New("total score out of range")
	ErrUnknownQuestion = errors.New("unknown question")
	ErrInvalidValue    = errors.New("option value must be between 1 and 4")
	ErrDuplicateAnswer = errors.New("question answered more than once")
	ErrIncomplete      = errors.New("every question must be answered")
)

var bands = []model.Interpretation{
	{Level: model.LevelInitial, Min: 8, Max: 13, Description: "Focus on getting basic CI, tests, and scripted deploys."},
	{Level: model.LevelEmerging, Min: 14, Max: 20, Description: "Standardize pipelines, security scans, and infrastructure as code."},
	{Level: model.LevelEstablished, Min: 21, Max: 27, Description: "Invest in observability, faster feedback, and more frequent releases."},
	{Level: model.LevelOptimizing, Min: 28, Max: 32, Description: "Refine with advanced testing, progressive delivery, and data-driven improvements."},
}

// Selection is what a respondent picked for one question
type Selection struct {
	QuestionID string `json:"questionId"`
	Value      int    `json:"value"`
	Experience string `json:"experience"`
}

// Result is the derived score of a full answer set
type Result struct {
	TotalScore int                 `json:"totalScore"`
	Level      model.MaturityLevel `json:"maturityLevel"`
}

// ComputeTotalScore sums answer scores. Unanswered questions count as 0.
func ComputeTotalScore(answers []model.Answer) int {
	total := 0
	for _, a := range answers {
		total += a.Score
	}
	return total
}

// ClassifyMaturity maps a total score in [8,32] to its level
func ClassifyMaturity(total int) (model.MaturityLevel, error) {
	for _, b := range bands {
		if total >= b.Min && total <= b.Max {
			return b.Level, nil
		}
	}
	return "", fmt.Errorf("%w: %d", ErrScoreOutOfRange, total)
}

// Interpretations returns the level bands in ascending order
func Interpretations() []model.Interpretation {
	return append([]model.Interpretation(nil), bands...)
}

// Interpret returns the band for a level
func Interpret(level model.MaturityLevel) (model.Interpretation, bool) {
	for _, b := range bands {
		if b.Level == level {
			return b, true
		}
	}
	return model.Interpretation{}, false
}

// BuildAnswer snapshots catalog text into an answer
func BuildAnswer(sel Selection) (model.Answer, error) {
	q, ok := catalog.Lookup(sel.QuestionID)
	if !ok {
		return model.Answer{}, fmt.Errorf("%w: %q", ErrUnknownQuestion, sel.QuestionID)
	}
	opt, ok := catalog.LookupOption(q.ID, sel.Value)
	if !ok {
		return model.Answer{}, fmt.Errorf("%w: %s=%d", ErrInvalidValue, q.ID, sel.Value)
	}
	return model.Answer{
		QuestionID:    q.ID,
		QuestionTitle: q.Title,
		SelectedValue: strconv.Itoa(opt.Value),
		SelectedLabel: opt.Label,
		SelectedText:  opt.Text,
		Experience:    strings.TrimSpace(sel.Experience),
		Score:         opt.Value,
	}, nil
}

// BuildAnswers requires exactly one selection per catalog question and
// returns the answers in catalog order.
func BuildAnswers(sels []Selection) ([]model.Answer, error) {
	byQuestion := make(map[string]model.Answer, len(sels))
	for _, sel := range sels {
		a, err := BuildAnswer(sel)
		if err != nil {
			return nil, err
		}
		if _, dup := byQuestion[a.QuestionID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAnswer, a.QuestionID)
		}
		byQuestion[a.QuestionID] = a
	}

	answers := make([]model.Answer, 0, catalog.Size())
	var missing []string
	for _, id := range catalog.IDs() {
		a, ok := byQuestion[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		answers = append(answers, a)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrIncomplete, strings.Join(missing, ", "))
	}
	return answers, nil
}

// Assess validates a complete answer set and derives its score and level
func Assess(answers []model.Answer) (Result, error) {
	if len(answers) != catalog.Size() {
		return Result{}, fmt.Errorf("%w: got %d of %d", ErrIncomplete, len(answers), catalog.Size())
	}
	for _, a := range answers {
		v, err := strconv.Atoi(a.SelectedValue)
		if err != nil || v != a.Score || v < 1 || v > 4 {
			return Result{}, fmt.Errorf("%w: %s", ErrInvalidValue, a.QuestionID)
		}
	}
	total := ComputeTotalScore(answers)
	level, err := ClassifyMaturity(total)
	if err != nil {
		return Result{}, err
	}
	return Result{TotalScore: total, Level: level}, nil
}
