package service

import (
	"cicdassess/internal/catalog"
	"cicdassess/internal/editkey"
	"cicdassess/internal/model"
	"cicdassess/internal/repository"
	"cicdassess/internal/scoring"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

type memFeedbackRepo struct {
	mu      sync.Mutex
	docs    []*model.Feedback
	clock   time.Time
	inserts int
	listErr error
}

func newMemFeedbackRepo() *memFeedbackRepo {
	return &memFeedbackRepo{clock: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (r *memFeedbackRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Minute)
	return r.clock
}

func (r *memFeedbackRepo) Insert(_ context.Context, fb *model.Feedback) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := editkey.Canonicalize(fb.EditKey)
	for _, d := range r.docs {
		if d.EditKey == key {
			return "", repository.ErrDuplicateEditKey
		}
	}
	r.inserts++
	cp := *fb
	cp.ID = fmt.Sprintf("%024x", r.inserts)
	cp.EditKey = key
	cp.SubmittedAt = r.tick()
	cp.UpdatedAt = nil
	r.docs = append(r.docs, &cp)
	fb.ID, fb.EditKey, fb.SubmittedAt, fb.UpdatedAt = cp.ID, cp.EditKey, cp.SubmittedAt, nil
	return cp.ID, nil
}

func (r *memFeedbackRepo) FindByEditKey(_ context.Context, key string) (*model.Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key = editkey.Canonicalize(key)
	for _, d := range r.docs {
		if d.EditKey == key {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memFeedbackRepo) ListAll(_ context.Context) ([]*model.Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]*model.Feedback, 0, len(r.docs))
	for i := len(r.docs) - 1; i >= 0; i-- {
		cp := *r.docs[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memFeedbackRepo) Patch(_ context.Context, id string, p model.FeedbackPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.docs {
		if d.ID == id {
			now := r.tick()
			d.Nickname, d.Role, d.Answers = p.Nickname, p.Role, p.Answers
			d.TotalScore, d.MaturityLevel = p.TotalScore, p.MaturityLevel
			d.UpdatedAt = &now
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *memFeedbackRepo) EnsureIndexes(context.Context) error { return nil }

type memAnalysisRepo struct {
	mu       sync.Mutex
	current  *model.Analysis
	replaces int
	gets     int
}

func (r *memAnalysisRepo) GetLatest(context.Context) (*model.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	if r.current == nil {
		return nil, nil
	}
	cp := *r.current
	return &cp, nil
}

func (r *memAnalysisRepo) Replace(_ context.Context, a *model.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaces++
	cp := *a
	r.current = &cp
	return nil
}

type memAnalysisCache struct {
	mu      sync.Mutex
	item    *model.Analysis
	sets    int
	deletes int
	setErr  error
}

func (c *memAnalysisCache) Get(context.Context) (*model.Analysis, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.item, nil
}

func (c *memAnalysisCache) Set(_ context.Context, a *model.Analysis) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.item = a
	return nil
}

func (c *memAnalysisCache) Delete(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	c.item = nil
	return nil
}

type stubQueue struct {
	mu      sync.Mutex
	reasons []string
	err     error
	jobs    chan *model.RefreshJob
}

func (q *stubQueue) Enqueue(_ context.Context, reason string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return false, q.err
	}
	q.reasons = append(q.reasons, reason)
	return true, nil
}

func (q *stubQueue) Next(ctx context.Context, wait time.Duration) (*model.RefreshJob, error) {
	select {
	case job := <-q.jobs:
		return job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(wait):
		return nil, nil
	}
}

func (q *stubQueue) enqueued() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.reasons...)
}

// stubGenerator answers through fn and records every call
type stubGenerator struct {
	mu    sync.Mutex
	calls []string
	fn    func(system, prompt string) (string, error)
}

func (g *stubGenerator) Generate(_ context.Context, system, prompt string) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, prompt)
	g.mu.Unlock()
	return g.fn(system, prompt)
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *recordingBroadcaster) Broadcast(msgType string, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, msgType)
}

func (b *recordingBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

var errGatewayDown = errors.New("gateway down")

func selections(values [8]int, experiences map[string]string) []scoring.Selection {
	sels := make([]scoring.Selection, 0, 8)
	for i, id := range catalog.IDs() {
		sels = append(sels, scoring.Selection{QuestionID: id, Value: values[i], Experience: experiences[id]})
	}
	return sels
}

func isOverallCall(system string) bool {
	return strings.Contains(system, `"actionItems"`)
}
