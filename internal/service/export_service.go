package service

import (
	"cicdassess/internal/aggregate"
	"cicdassess/internal/model"
	"context"
	"fmt"
	"math"
	"time"
)

const rankingSize = 3

// ExportOptions selects the export sections
type ExportOptions struct {
	AllResponses      bool `json:"allResponses"`
	FilteredResponses bool `json:"filteredResponses"`
	Insights          bool `json:"insights"`
	AIAnalysis        bool `json:"aiAnalysis"`
}

// Any reports whether at least one section is selected
func (o ExportOptions) Any() bool {
	return o.AllResponses || o.FilteredResponses || o.Insights || o.AIAnalysis
}

type ExportAnswer struct {
	QuestionID    string `json:"questionId"`
	QuestionTitle string `json:"questionTitle"`
	SelectedLabel string `json:"selectedLabel"`
	SelectedText  string `json:"selectedText,omitempty"`
	Score         int    `json:"score"`
	Experience    string `json:"experience"`
}

type ExportResponse struct {
	Nickname      string              `json:"nickname"`
	Role          string              `json:"role"`
	TotalScore    int                 `json:"totalScore"`
	MaturityLevel model.MaturityLevel `json:"maturityLevel"`
	SubmittedAt   time.Time           `json:"submittedAt"`
	UpdatedAt     *time.Time          `json:"updatedAt"`
	Answers       []ExportAnswer      `json:"answers"`
}

type ExportFilters struct {
	SearchTerm  *string `json:"searchTerm"`
	RoleFilter  *string `json:"roleFilter"`
	LevelFilter *string `json:"levelFilter"`
}

type FilteredExport struct {
	Filters   ExportFilters    `json:"filters"`
	Count     int              `json:"count"`
	Responses []ExportResponse `json:"responses"`
}

type QuestionInsight struct {
	QuestionID              string             `json:"questionId"`
	Title                   string             `json:"title"`
	AvgScore                float64            `json:"avgScore"`
	Distribution            map[string]int     `json:"distribution"`
	DistributionPercentages map[string]float64 `json:"distributionPercentages"`
}

type RankedQuestion struct {
	Title    string  `json:"title"`
	AvgScore float64 `json:"avgScore"`
}

type Rankings struct {
	LowestScoring  []RankedQuestion `json:"lowestScoring"`
	HighestScoring []RankedQuestion `json:"highestScoring"`
}

type Insights struct {
	TotalResponses int               `json:"totalResponses"`
	QuestionStats  []QuestionInsight `json:"questionStats"`
	Rankings       Rankings          `json:"rankings"`
}

// Export is the downloadable dashboard snapshot
type Export struct {
	ExportedAt        time.Time        `json:"exportedAt"`
	ExportOptions     ExportOptions    `json:"exportOptions"`
	AllResponses      []ExportResponse `json:"allResponses,omitempty"`
	FilteredResponses *FilteredExport  `json:"filteredResponses,omitempty"`
	Insights          *Insights        `json:"insights,omitempty"`
	AIAnalysis        *model.Analysis  `json:"aiAnalysis,omitempty"`
}

// ExportService assembles JSON exports for the dashboard
type ExportService struct {
	feedback *FeedbackService
	analysis *AnalysisService
	now      func() time.Time
}

// NewExportService creates a new export service
func NewExportService(feedback *FeedbackService, analysis *AnalysisService) *ExportService {
	return &ExportService{feedback: feedback, analysis: analysis, now: time.Now}
}

// Build assembles the selected sections. Filtered responses are only included when the
// filter actually narrows the set.
func (s *ExportService) Build(ctx context.Context, opts ExportOptions, filter ListFilter) (*Export, error) {
	if !opts.Any() {
		return nil, fmt.Errorf("%w: select at least one export section", ErrInvalidRequest)
	}
	all, err := s.feedback.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	exp := &Export{ExportedAt: s.now().UTC(), ExportOptions: opts}
	if opts.AllResponses {
		exp.AllResponses = exportResponses(all, true)
	}
	if opts.FilteredResponses && filter.Narrows() {
		filtered := ApplyFilter(all, filter)
		if len(filtered) != len(all) {
			exp.FilteredResponses = &FilteredExport{
				Filters:   exportFilters(filter),
				Count:     len(filtered),
				Responses: exportResponses(filtered, false),
			}
		}
	}
	if opts.Insights && len(all) > 0 {
		exp.Insights = buildInsights(all)
	}
	if opts.AIAnalysis {
		a, err := s.analysis.Latest(ctx)
		if err != nil {
			return nil, err
		}
		exp.AIAnalysis = a
	}
	return exp, nil
}

// Filename is the download name for an export taken at t
func Filename(t time.Time) string {
	return "cicd-assessment-export-" + t.UTC().Format("2006-01-02") + ".json"
}

func exportResponses(subs []*model.Feedback, full bool) []ExportResponse {
	out := make([]ExportResponse, 0, len(subs))
	for _, f := range subs {
		r := ExportResponse{
			Nickname:      f.Nickname,
			Role:          f.Role,
			TotalScore:    f.TotalScore,
			MaturityLevel: f.MaturityLevel,
			SubmittedAt:   f.SubmittedAt,
			Answers:       make([]ExportAnswer, 0, len(f.Answers)),
		}
		if full {
			r.UpdatedAt = f.UpdatedAt
		}
		for _, a := range f.Answers {
			ea := ExportAnswer{
				QuestionID:    a.QuestionID,
				QuestionTitle: a.QuestionTitle,
				SelectedLabel: a.SelectedLabel,
				Score:         a.Score,
				Experience:    a.Experience,
			}
			if full {
				ea.SelectedText = a.SelectedText
			}
			r.Answers = append(r.Answers, ea)
		}
		out = append(out, r)
	}
	return out
}

func exportFilters(f ListFilter) ExportFilters {
	var out ExportFilters
	if f.Search != "" {
		out.SearchTerm = &f.Search
	}
	if f.Role != "" {
		out.RoleFilter = &f.Role
	}
	if f.Level != "" {
		level := string(f.Level)
		out.LevelFilter = &level
	}
	return out
}

var distributionKeys = [4]string{"A (1)", "B (2)", "C (3)", "D (4)"}

func buildInsights(subs []*model.Feedback) *Insights {
	stats := aggregate.PerQuestionStats(subs)
	total := len(subs)

	ins := &Insights{TotalResponses: total, QuestionStats: make([]QuestionInsight, 0, len(stats))}
	for _, q := range stats {
		qi := QuestionInsight{
			QuestionID:              q.QuestionID,
			Title:                   q.Title,
			AvgScore:                round(q.AvgScore, 2),
			Distribution:            make(map[string]int, 4),
			DistributionPercentages: make(map[string]float64, 4),
		}
		for i, key := range distributionKeys {
			qi.Distribution[key] = q.Histogram[i]
			qi.DistributionPercentages[key] = round(float64(q.Histogram[i])/float64(total)*100, 1)
		}
		ins.QuestionStats = append(ins.QuestionStats, qi)
	}

	lowest, highest := aggregate.Rankings(stats, rankingSize)
	ins.Rankings = Rankings{LowestScoring: ranked(lowest), HighestScoring: ranked(highest)}
	return ins
}

func ranked(stats []aggregate.QuestionStats) []RankedQuestion {
	out := make([]RankedQuestion, 0, len(stats))
	for _, q := range stats {
		out = append(out, RankedQuestion{Title: q.Title, AvgScore: round(q.AvgScore, 2)})
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
