package handler

import (
	"cicdassess/internal/catalog"
	"cicdassess/internal/editkey"
	"cicdassess/internal/logger"
	"cicdassess/internal/scoring"
	"cicdassess/internal/service"
	"net/http"

	"github.com/gorilla/mux"
)

// FeedbackHandler handles survey endpoints
type FeedbackHandler struct {
	feedbackSvc *service.FeedbackService
	log         *logger.Logger
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(feedbackSvc *service.FeedbackService, log *logger.Logger) *FeedbackHandler {
	return &FeedbackHandler{feedbackSvc: feedbackSvc, log: log}
}

// Questions handles GET /v1/questions
func (h *FeedbackHandler) Questions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"questions":       catalog.Questions(),
		"interpretations": scoring.Interpretations(),
		"minScore":        scoring.MinScore,
		"maxScore":        scoring.MaxScore,
	})
}

// Submit handles POST /v1/feedback
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req service.SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.feedbackSvc.Submit(r.Context(), req)
	if err != nil {
		h.logFailure("submit feedback", err)
		writeServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if res.DryRun {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

// Get handles GET /v1/feedback/{editKey}
func (h *FeedbackHandler) Get(w http.ResponseWriter, r *http.Request) {
	fb, err := h.feedbackSvc.GetByEditKey(r.Context(), mux.Vars(r)["editKey"])
	if err != nil {
		h.logFailure("get feedback", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fb)
}

// Update handles PUT /v1/feedback/{editKey}
func (h *FeedbackHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fb, err := h.feedbackSvc.Update(r.Context(), mux.Vars(r)["editKey"], req)
	if err != nil {
		h.logFailure("update feedback", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fb)
}

// EditRedirect handles GET /edit/{editKey}, sending shared links to the canonical resource
func (h *FeedbackHandler) EditRedirect(w http.ResponseWriter, r *http.Request) {
	key := editkey.Canonicalize(mux.Vars(r)["editKey"])
	if !editkey.Valid(key) {
		writeError(w, http.StatusNotFound, service.ErrNotFound.Error())
		return
	}
	http.Redirect(w, r, "/v1/feedback/"+key, http.StatusFound)
}

func (h *FeedbackHandler) logFailure(op string, err error) {
	if isClientError(err) {
		return
	}
	h.log.Error(op+" failed", "error", err)
}
