// Package aggregate derives cross-submission statistics. Every function is
// pure: the same input always yields the same output, so dashboards can
// recompute on each read.
package aggregate

import (
	"cicdassess/internal/catalog"
	"cicdassess/internal/model"
	"math"
	"sort"
	"strings"
)

// QuestionStats aggregates every answer given to one question
type QuestionStats struct {
	QuestionID    string   `json:"questionId"`
	Title         string   `json:"title"`
	AvgScore      float64  `json:"avgScore"`
	StdDev        float64  `json:"stdDev"`
	ResponseCount int      `json:"responseCount"`
	Histogram     [4]int   `json:"histogram"` // index 0 counts score 1
	Experiences   []string `json:"experiences"`
}

// Summary bundles the dashboard statistics for a submission set
type Summary struct {
	HasData              bool                        `json:"hasData"`
	TotalResponses       int                         `json:"totalResponses"`
	AvgScore             float64                     `json:"avgScore"`
	MaturityDistribution map[model.MaturityLevel]int `json:"maturityDistribution"`
	DominantLevel        model.MaturityLevel         `json:"dominantLevel,omitempty"`
	RoleDistribution     map[string]int              `json:"roleDistribution"`
	Questions            []QuestionStats             `json:"questions"`
	Weakest              *QuestionStats              `json:"weakest,omitempty"`
	Strongest            *QuestionStats              `json:"strongest,omitempty"`
}

// AverageScore returns the mean total score. ok is false for an empty set.
func AverageScore(subs []*model.Feedback) (avg float64, ok bool) {
	if len(subs) == 0 {
		return 0, false
	}
	sum := 0
	for _, f := range subs {
		sum += f.TotalScore
	}
	return float64(sum) / float64(len(subs)), true
}

// MaturityDistribution counts submissions per level
func MaturityDistribution(subs []*model.Feedback) map[model.MaturityLevel]int {
	dist := make(map[model.MaturityLevel]int)
	for _, f := range subs {
		dist[f.MaturityLevel]++
	}
	return dist
}

// DominantLevel returns the most common level. On a tie the less mature
// level wins; levels outside the known set are ignored.
func DominantLevel(dist map[model.MaturityLevel]int) (model.MaturityLevel, bool) {
	var (
		best  model.MaturityLevel
		count int
	)
	for _, lvl := range model.MaturityLevels {
		if n := dist[lvl]; n > count {
			best, count = lvl, n
		}
	}
	return best, count > 0
}

// RoleDistribution counts submissions per role
func RoleDistribution(subs []*model.Feedback) map[string]int {
	dist := make(map[string]int)
	for _, f := range subs {
		dist[f.Role]++
	}
	return dist
}

// PerQuestionStats returns one entry per catalog question, in catalog order.
// Answers for questions outside the catalog are skipped.
func PerQuestionStats(subs []*model.Feedback) []QuestionStats {
	ids := catalog.IDs()
	stats := make([]QuestionStats, len(ids))
	index := make(map[string]int, len(ids))
	sums := make([]int, len(ids))
	sqSums := make([]int, len(ids))
	for i, id := range ids {
		stats[i] = QuestionStats{QuestionID: id, Title: catalog.Title(id), Experiences: []string{}}
		index[id] = i
	}

	for _, f := range subs {
		for _, a := range f.Answers {
			i, ok := index[a.QuestionID]
			if !ok {
				continue
			}
			s := &stats[i]
			s.ResponseCount++
			sums[i] += a.Score
			sqSums[i] += a.Score * a.Score
			if a.Score >= 1 && a.Score <= 4 {
				s.Histogram[a.Score-1]++
			}
			if exp := strings.TrimSpace(a.Experience); exp != "" {
				s.Experiences = append(s.Experiences, exp)
			}
		}
	}

	for i := range stats {
		n := stats[i].ResponseCount
		if n == 0 {
			continue
		}
		mean := float64(sums[i]) / float64(n)
		variance := float64(sqSums[i])/float64(n) - mean*mean
		if variance < 0 {
			variance = 0
		}
		stats[i].AvgScore = mean
		stats[i].StdDev = math.Sqrt(variance)
	}
	return stats
}

// WeakestAndStrongest returns the lowest and highest average among questions
// that have data. Equal averages keep catalog order, so the weakest is the
// earliest and the strongest the latest of the tied questions.
func WeakestAndStrongest(stats []QuestionStats) (weakest, strongest QuestionStats, ok bool) {
	sorted := withData(stats)
	if len(sorted) == 0 {
		return QuestionStats{}, QuestionStats{}, false
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].AvgScore < sorted[j].AvgScore })
	return sorted[0], sorted[len(sorted)-1], true
}

// Rankings returns up to n lowest and n highest scoring questions
func Rankings(stats []QuestionStats, n int) (lowest, highest []QuestionStats) {
	asc := withData(stats)
	sort.SliceStable(asc, func(i, j int) bool { return asc[i].AvgScore < asc[j].AvgScore })
	desc := withData(stats)
	sort.SliceStable(desc, func(i, j int) bool { return desc[i].AvgScore > desc[j].AvgScore })
	if n < len(asc) {
		asc = asc[:n]
		desc = desc[:n]
	}
	return asc, desc
}

// Summarize computes every statistic for the dashboard in one pass
func Summarize(subs []*model.Feedback) Summary {
	sum := Summary{
		TotalResponses:       len(subs),
		MaturityDistribution: MaturityDistribution(subs),
		RoleDistribution:     RoleDistribution(subs),
		Questions:            PerQuestionStats(subs),
	}
	avg, ok := AverageScore(subs)
	if !ok {
		return sum
	}
	sum.HasData = true
	sum.AvgScore = avg
	sum.DominantLevel, _ = DominantLevel(sum.MaturityDistribution)
	if weakest, strongest, ok := WeakestAndStrongest(sum.Questions); ok {
		sum.Weakest = &weakest
		sum.Strongest = &strongest
	}
	return sum
}

func withData(stats []QuestionStats) []QuestionStats {
	out := make([]QuestionStats, 0, len(stats))
	for _, s := range stats {
		if s.ResponseCount > 0 {
			out = append(out, s)
		}
	}
	return out
}
