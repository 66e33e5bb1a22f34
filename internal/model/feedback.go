package model

import "time"

// Answer is one question's response inside a submission.
// QuestionTitle and SelectedText are copied from the catalog at submit time
// and are not re-synced when the catalog changes.
type Answer struct {
	QuestionID    string `json:"questionId" bson:"questionId"`
	QuestionTitle string `json:"questionTitle" bson:"questionTitle"`
	SelectedValue string `json:"selectedValue" bson:"selectedValue"` // "1".."4"
	SelectedLabel string `json:"selectedLabel" bson:"selectedLabel"`
	SelectedText  string `json:"selectedText" bson:"selectedText"`
	Experience    string `json:"experience" bson:"experience"`
	Score         int    `json:"score" bson:"score"` // always atoi(SelectedValue)
}

// Feedback is one completed assessment
type Feedback struct {
	ID            string        `json:"id" bson:"_id,omitempty"`
	EditKey       string        `json:"editKey" bson:"editKey"`
	Nickname      string        `json:"nickname" bson:"nickname"`
	Role          string        `json:"role" bson:"role"`
	Answers       []Answer      `json:"answers" bson:"answers"`
	TotalScore    int           `json:"totalScore" bson:"totalScore"`
	MaturityLevel MaturityLevel `json:"maturityLevel" bson:"maturityLevel"`
	SubmittedAt   time.Time     `json:"submittedAt" bson:"submittedAt"`
	UpdatedAt     *time.Time    `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"` // nil until first edit
}

// FeedbackPatch carries the fields an edit overwrites. TotalScore and
// MaturityLevel must be derived from Answers by the caller.
type FeedbackPatch struct {
	Nickname      string
	Role          string
	Answers       []Answer
	TotalScore    int
	MaturityLevel MaturityLevel
}
