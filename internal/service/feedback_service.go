package service

import (
	"cicdassess/internal/aggregate"
	"cicdassess/internal/cache"
	"cicdassess/internal/config"
	"cicdassess/internal/editkey"
	"cicdassess/internal/logger"
	"cicdassess/internal/model"
	"cicdassess/internal/observability"
	"cicdassess/internal/repository"
	"cicdassess/internal/scoring"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

const maxKeyAttempts = 10

var errKeySpaceExhausted = errors.New("could not generate unique edit key")

// SubmitRequest is a respondent's full answer set
type SubmitRequest struct {
	Nickname string              `json:"nickname"`
	Role     string              `json:"role"`
	Answers  []scoring.Selection `json:"answers"`
}

// SubmitResult is returned after a successful submission
type SubmitResult struct {
	ID            string              `json:"id,omitempty"`
	EditKey       string              `json:"editKey,omitempty"`
	EditURL       string              `json:"editUrl,omitempty"`
	TotalScore    int                 `json:"totalScore"`
	MaturityLevel model.MaturityLevel `json:"maturityLevel"`
	DryRun        bool                `json:"dryRun,omitempty"`
}

// ListFilter narrows and orders the dashboard response table
type ListFilter struct {
	Search string
	Role   string
	Level  model.MaturityLevel
	Sort   string // "date" or "score"
	Order  string // "asc" or "desc"
}

// Narrows reports whether any filter criterion is set
func (f ListFilter) Narrows() bool {
	return strings.TrimSpace(f.Search) != "" || f.Role != "" || f.Level != ""
}

// FeedbackService handles submissions and edits
type FeedbackService struct {
	repo        repository.FeedbackRepo
	queue       cache.RefreshQueue
	survey      config.SurveyConfig
	log         *logger.Logger
	broadcaster Broadcaster
	newKey      func() (string, error)
}

// NewFeedbackService creates a new feedback service
func NewFeedbackService(repo repository.FeedbackRepo, queue cache.RefreshQueue, survey config.SurveyConfig, log *logger.Logger) *FeedbackService {
	return &FeedbackService{
		repo:        repo,
		queue:       queue,
		survey:      survey,
		log:         log.With("component", "feedback"),
		broadcaster: nopBroadcaster{},
		newKey:      editkey.Generate,
	}
}

// SetBroadcaster sets the broadcaster for dashboard events
func (s *FeedbackService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Submit validates, scores and stores a submission, then schedules an analysis refresh.
// Dry-run nicknames are scored but never stored.
func (s *FeedbackService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	nickname, role, err := s.validateIdentity(req.Nickname, req.Role)
	if err != nil {
		return nil, err
	}
	answers, result, err := s.score(req.Answers)
	if err != nil {
		return nil, err
	}

	if s.survey.IsDryRun(nickname) {
		observability.FeedbackSubmissions.WithLabelValues("dry_run").Inc()
		s.log.Info("dry-run submission scored", "totalScore", result.TotalScore)
		return &SubmitResult{TotalScore: result.TotalScore, MaturityLevel: result.Level, DryRun: true}, nil
	}

	fb := &model.Feedback{
		Nickname:      nickname,
		Role:          role,
		Answers:       answers,
		TotalScore:    result.TotalScore,
		MaturityLevel: result.Level,
	}
	id, err := s.insertWithUniqueKey(ctx, fb)
	if err != nil {
		return nil, err
	}

	observability.FeedbackSubmissions.WithLabelValues("created").Inc()
	s.log.Info("feedback submitted", "id", id, "level", fb.MaturityLevel, "totalScore", fb.TotalScore)
	s.broadcaster.Broadcast(EventFeedbackSubmitted, fb)
	s.requestRefresh(ctx, "submit")

	return &SubmitResult{
		ID:            id,
		EditKey:       fb.EditKey,
		EditURL:       s.EditURL(fb.EditKey),
		TotalScore:    fb.TotalScore,
		MaturityLevel: fb.MaturityLevel,
	}, nil
}

// GetByEditKey looks a submission up by its key, case-insensitively
func (s *FeedbackService) GetByEditKey(ctx context.Context, key string) (*model.Feedback, error) {
	key = editkey.Canonicalize(key)
	if !editkey.Valid(key) {
		return nil, ErrNotFound
	}
	fb, err := s.repo.FindByEditKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if fb == nil {
		return nil, ErrNotFound
	}
	return fb, nil
}

// Update replaces a submission's identity and answers, recomputing score and level
func (s *FeedbackService) Update(ctx context.Context, key string, req SubmitRequest) (*model.Feedback, error) {
	existing, err := s.GetByEditKey(ctx, key)
	if err != nil {
		return nil, err
	}
	nickname, role, err := s.validateIdentity(req.Nickname, req.Role)
	if err != nil {
		return nil, err
	}
	answers, result, err := s.score(req.Answers)
	if err != nil {
		return nil, err
	}

	patch := model.FeedbackPatch{
		Nickname:      nickname,
		Role:          role,
		Answers:       answers,
		TotalScore:    result.TotalScore,
		MaturityLevel: result.Level,
	}
	if err := s.repo.Patch(ctx, existing.ID, patch); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	updated, err := s.repo.FindByEditKey(ctx, existing.EditKey)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrNotFound
	}

	observability.FeedbackSubmissions.WithLabelValues("updated").Inc()
	s.log.Info("feedback updated", "id", updated.ID, "level", updated.MaturityLevel, "totalScore", updated.TotalScore)
	s.broadcaster.Broadcast(EventFeedbackUpdated, updated)
	s.requestRefresh(ctx, "update")
	return updated, nil
}

// Stats aggregates every stored submission for the dashboard
func (s *FeedbackService) Stats(ctx context.Context) (aggregate.Summary, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return aggregate.Summary{}, err
	}
	return aggregate.Summarize(all), nil
}

// ListAll returns every submission, newest first
func (s *FeedbackService) ListAll(ctx context.Context) ([]*model.Feedback, error) {
	return s.repo.ListAll(ctx)
}

// List returns submissions matching the filter in the requested order
func (s *FeedbackService) List(ctx context.Context, f ListFilter) ([]*model.Feedback, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return ApplyFilter(all, f), nil
}

// ApplyFilter narrows and sorts a submission set. Input order is preserved among equal keys.
func ApplyFilter(subs []*model.Feedback, f ListFilter) []*model.Feedback {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]*model.Feedback, 0, len(subs))
	for _, fb := range subs {
		if search != "" && !strings.Contains(strings.ToLower(fb.Nickname), search) {
			continue
		}
		if f.Role != "" && !strings.EqualFold(fb.Role, f.Role) {
			continue
		}
		if f.Level != "" && fb.MaturityLevel != f.Level {
			continue
		}
		out = append(out, fb)
	}

	asc := strings.EqualFold(f.Order, "asc")
	switch strings.ToLower(f.Sort) {
	case "score":
		sort.SliceStable(out, func(i, j int) bool {
			if asc {
				return out[i].TotalScore < out[j].TotalScore
			}
			return out[i].TotalScore > out[j].TotalScore
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			if asc {
				return out[i].SubmittedAt.Before(out[j].SubmittedAt)
			}
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		})
	}
	return out
}

// EditURL builds the shareable edit link for a key
func (s *FeedbackService) EditURL(key string) string {
	return strings.TrimRight(s.survey.PublicBaseURL, "/") + "/edit/" + key
}

func (s *FeedbackService) validateIdentity(nickname, role string) (string, string, error) {
	nickname = strings.TrimSpace(nickname)
	role = strings.ToLower(strings.TrimSpace(role))
	if nickname == "" {
		return "", "", fmt.Errorf("%w: nickname is required", ErrInvalidSubmission)
	}
	if role == "" {
		return "", "", fmt.Errorf("%w: role is required", ErrInvalidSubmission)
	}
	if !s.survey.RoleAllowed(role) {
		return "", "", fmt.Errorf("%w: unknown role %q", ErrInvalidSubmission, role)
	}
	return nickname, role, nil
}

func (s *FeedbackService) score(sels []scoring.Selection) ([]model.Answer, scoring.Result, error) {
	answers, err := scoring.BuildAnswers(sels)
	if err != nil {
		return nil, scoring.Result{}, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}
	result, err := scoring.Assess(answers)
	if err != nil {
		return nil, scoring.Result{}, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}
	return answers, result, nil
}

// insertWithUniqueKey mints keys until one is free. A concurrent insert of the
// same key is caught by the unique index and retried.
func (s *FeedbackService) insertWithUniqueKey(ctx context.Context, fb *model.Feedback) (string, error) {
	for i := 0; i < maxKeyAttempts; i++ {
		key, err := s.newKey()
		if err != nil {
			return "", err
		}
		existing, err := s.repo.FindByEditKey(ctx, key)
		if err != nil {
			return "", err
		}
		if existing != nil {
			continue
		}

		fb.EditKey = key
		id, err := s.repo.Insert(ctx, fb)
		if errors.Is(err, repository.ErrDuplicateEditKey) {
			continue
		}
		if err != nil {
			return "", err
		}
		return id, nil
	}
	return "", errKeySpaceExhausted
}

// requestRefresh schedules a background refresh; failures never reach the caller
func (s *FeedbackService) requestRefresh(ctx context.Context, reason string) {
	if s.queue == nil {
		return
	}
	queued, err := s.queue.Enqueue(context.WithoutCancel(ctx), reason)
	if err != nil {
		s.log.Warn("failed to enqueue analysis refresh", "reason", reason, "error", err)
		return
	}
	if !queued {
		s.log.Debug("analysis refresh already pending", "reason", reason)
	}
}
