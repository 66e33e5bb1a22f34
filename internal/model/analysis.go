package model

import "time"

// AreaSummary is the generated narrative for one question
type AreaSummary struct {
	QuestionID string  `json:"questionId" bson:"questionId"`
	Title      string  `json:"title" bson:"title"`
	AvgScore   float64 `json:"avgScore" bson:"avgScore"`
	Summary    string  `json:"summary" bson:"summary"`
}

// Analysis is the cached, most recently generated summary. Only one exists.
type Analysis struct {
	ID                    string        `json:"-" bson:"_id"`
	TotalResponses        int           `json:"totalResponses" bson:"totalResponses"`
	AvgScore              float64       `json:"avgScore" bson:"avgScore"`
	DominantMaturityLevel MaturityLevel `json:"dominantMaturityLevel" bson:"dominantMaturityLevel"`
	Summary               string        `json:"summary" bson:"summary"`
	ActionItems           []string      `json:"actionItems" bson:"actionItems"`
	AreaSummaries         []AreaSummary `json:"areaSummaries" bson:"areaSummaries"`
	GeneratedAt           time.Time     `json:"generatedAt" bson:"generatedAt"`
}

// RefreshJob is a queued request to regenerate the analysis
type RefreshJob struct {
	ID          string    `json:"id"`
	Reason      string    `json:"reason"` // "submit", "update"
	RequestedAt time.Time `json:"requestedAt"`
}
