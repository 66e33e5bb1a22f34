package service

// Dashboard event types
const (
	EventFeedbackSubmitted = "feedback_submitted"
	EventFeedbackUpdated   = "feedback_updated"
	EventAnalysisUpdated   = "analysis_updated"
)

// Broadcaster interface for WebSocket broadcasting (avoids import cycle)
type Broadcaster interface {
	Broadcast(msgType string, payload interface{})
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, interface{}) {}
