// Package catalog holds the fixed set of assessment questions.
//
// Submissions copy question titles and option texts at submit time, so any
// edit here changes new submissions only. Ids, order and values must stay
// stable or re-scoring old submissions will disagree with the live catalog.
package catalog

import (
	"cicdassess/internal/model"
	"strconv"
)

var labels = [...]string{"A", "B", "C", "D"}

type entry struct {
	id      string
	title   string
	options [4]string
}

var entries = []entry{
	{"q1", "Build & Integration", [4]string{
		"Developers build and test mostly on local machines; no reliable shared CI.",
		"We have a CI server that builds main branch on push or nightly.",
		"Every merge request/PR triggers automated build and tests.",
		"Every commit runs a standardized pipeline template for all services.",
	}},
	{"q2", "Test Automation", [4]string{
		"Most testing is manual; automated tests are rare or flaky.",
		"We have some unit tests that run in CI, but coverage is limited.",
		"Unit and integration tests run on each pipeline; failures block merges.",
		"We have a solid test pyramid, including API/UI/contract tests, with reliable, fast feedback.",
	}},
	{"q3", "Deployment Process", [4]string{
		"Deployments are manual (clicks/SSH/scripts), often at night or on weekends.",
		"We have scripts or tools for deploys, but they require manual triggering.",
		"We can deploy to at least one non-prod and one prod environment via the pipeline.",
		"Deployments are fully automated, repeatable, and self-service for teams.",
	}},
	{"q4", "Release Frequency", [4]string{
		"We release a few times a year or only on big projects.",
		"We release roughly monthly.",
		"We release weekly or more often.",
		"We can release on demand and do so frequently (daily or multiple times per week).",
	}},
	{"q5", "Environments & Infrastructure", [4]string{
		"Environments are snowflakes; changes done manually on servers.",
		"Some environment setup is scripted, but not fully reproducible.",
		"We use infrastructure as code for main environments; changes are reviewed.",
		"All infra and config are defined as code, versioned, and deployed via pipeline.",
	}},
	{"q6", "Observability & Feedback", [4]string{
		"We mostly find issues from user reports; limited central logging.",
		"We have centralized logs or basic monitoring, mainly for uptime.",
		"We track key application metrics and deployment events, with alerts on failures.",
		"We have dashboards for builds, deploys, and service health; teams regularly review them and act.",
	}},
	{"q7", "Security & Compliance", [4]string{
		"No automated scans; security reviews are manual or ad-hoc before major releases.",
		"We have scans but results are hard to interpret; developers waste time on trial-and-error fixes.",
		"Scans run in pipelines with clear pass/fail gates; some remediation guidance exists.",
		"Comprehensive scanning (SAST, SCA, secrets) with actionable feedback and documented remediation paths.",
	}},
	{"q8", "Culture & Ownership", [4]string{
		"Dev and ops are siloed; handoffs for testing and releases are common.",
		"Dev and ops talk regularly but still have distinct responsibilities.",
		"A cross-functional team owns build, test, and run for their services.",
		"Teams continuously improve their delivery process and experiment with new practices.",
	}},
}

var (
	questions []model.Question
	byID      map[string]int
)

func init() {
	questions = make([]model.Question, len(entries))
	byID = make(map[string]int, len(entries))
	for i, e := range entries {
		opts := make([]model.Option, len(e.options))
		for j, text := range e.options {
			opts[j] = model.Option{Value: j + 1, Label: Label(j + 1), Text: text}
		}
		questions[i] = model.Question{ID: e.id, Title: e.title, Options: opts}
		byID[e.id] = i
	}
}

// Size is the number of questions every submission must answer
func Size() int {
	return len(questions)
}

// Questions returns the catalog in display order. The result is a copy.
func Questions() []model.Question {
	out := make([]model.Question, len(questions))
	for i, q := range questions {
		out[i] = clone(q)
	}
	return out
}

// IDs returns question ids in display order
func IDs() []string {
	ids := make([]string, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	return ids
}

// Lookup returns the question with the given id
func Lookup(id string) (model.Question, bool) {
	i, ok := byID[id]
	if !ok {
		return model.Question{}, false
	}
	return clone(questions[i]), true
}

// LookupOption returns the option of a question by its value (1-4)
func LookupOption(questionID string, value int) (model.Option, bool) {
	i, ok := byID[questionID]
	if !ok {
		return model.Option{}, false
	}
	for _, opt := range questions[i].Options {
		if opt.Value == value {
			return opt, true
		}
	}
	return model.Option{}, false
}

// Title returns the question title, or the id itself for unknown questions
func Title(id string) string {
	if i, ok := byID[id]; ok {
		return questions[i].Title
	}
	return id
}

// Label maps an option value to its display letter
func Label(value int) string {
	if value < 1 || value > len(labels) {
		return strconv.Itoa(value)
	}
	return labels[value-1]
}

func clone(q model.Question) model.Question {
	q.Options = append([]model.Option(nil), q.Options...)
	return q
}
