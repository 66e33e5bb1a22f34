package handler

import (
	"cicdassess/internal/logger"
	"cicdassess/internal/service"
	"cicdassess/internal/transport/rest/middleware"
	"errors"
	"net/http"
)

// AIHandler handles text generation endpoints
type AIHandler struct {
	analysisSvc *service.AnalysisService
	log         *logger.Logger
}

// NewAIHandler creates a new AI handler
func NewAIHandler(analysisSvc *service.AnalysisService, log *logger.Logger) *AIHandler {
	return &AIHandler{analysisSvc: analysisSvc, log: log}
}

// Enhance handles POST /v1/enhance
func (h *AIHandler) Enhance(w http.ResponseWriter, r *http.Request) {
	var req service.EnhanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text, err := h.analysisSvc.Enhance(r.Context(), req)
	if err != nil {
		h.logFailure("enhance", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"enhanced": text})
}

// Summarize handles POST /v1/summarize
func (h *AIHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	var req service.SummarizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text, err := h.analysisSvc.Summarize(r.Context(), req)
	if err != nil {
		h.logFailure("summarize", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": text})
}

// Analyze handles POST /v1/analyze (host only). The refresh runs synchronously.
func (h *AIHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	h.log.Info("analysis refresh requested", "hostId", middleware.GetHostID(r.Context()))
	outcome, err := h.analysisSvc.Refresh(r.Context())
	if err != nil {
		h.logFailure("analyze", err)
		writeServiceError(w, err)
		return
	}
	if outcome.Empty {
		writeJSON(w, http.StatusOK, map[string]string{"message": "No feedback to analyze"})
		return
	}

	a := outcome.Analysis
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"totalResponses": a.TotalResponses,
		"avgScore":       a.AvgScore,
		"summary":        a.Summary,
		"actionItems":    len(a.ActionItems),
		"areaSummaries":  len(a.AreaSummaries),
	})
}

func (h *AIHandler) logFailure(op string, err error) {
	if isClientError(err) {
		return
	}
	h.log.Error(op+" failed", "error", err)
}

func isClientError(err error) bool {
	return errors.Is(err, service.ErrInvalidSubmission) ||
		errors.Is(err, service.ErrInvalidRequest) ||
		errors.Is(err, service.ErrNotFound)
}
