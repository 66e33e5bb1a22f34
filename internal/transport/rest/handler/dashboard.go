package handler

import (
	"cicdassess/internal/logger"
	"cicdassess/internal/model"
	"cicdassess/internal/service"
	"cicdassess/internal/transport/rest/middleware"
	"encoding/json"
	"net/http"
	"time"
)

// DashboardHandler handles host dashboard endpoints
type DashboardHandler struct {
	feedbackSvc *service.FeedbackService
	analysisSvc *service.AnalysisService
	exportSvc   *service.ExportService
	log         *logger.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(feedbackSvc *service.FeedbackService, analysisSvc *service.AnalysisService, exportSvc *service.ExportService, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		feedbackSvc: feedbackSvc,
		analysisSvc: analysisSvc,
		exportSvc:   exportSvc,
		log:         log,
	}
}

// Stats handles GET /v1/dashboard/stats
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	sum, err := h.feedbackSvc.Stats(r.Context())
	if err != nil {
		h.log.Error("dashboard stats failed", "error", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// List handles GET /v1/dashboard/feedback?search=&role=&level=&sort=date|score&order=asc|desc
func (h *DashboardHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r)
	subs, err := h.feedbackSvc.List(r.Context(), filter)
	if err != nil {
		h.log.Error("dashboard list failed", "error", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(subs),
		"responses": subs,
	})
}

// Analysis handles GET /v1/dashboard/analysis
func (h *DashboardHandler) Analysis(w http.ResponseWriter, r *http.Request) {
	a, err := h.analysisSvc.Latest(r.Context())
	if err != nil {
		h.log.Error("load analysis failed", "error", err)
		writeServiceError(w, err)
		return
	}
	if a == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "not_generated"})
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type exportRequest struct {
	Options service.ExportOptions `json:"options"`
	Search  string                `json:"search"`
	Role    string                `json:"role"`
	Level   string                `json:"level"`
	Sort    string                `json:"sort"`
	Order   string                `json:"order"`
}

// Export handles POST /v1/dashboard/export and returns a JSON attachment
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	filter := service.ListFilter{
		Search: req.Search,
		Role:   normalizeAll(req.Role),
		Level:  model.MaturityLevel(normalizeAll(req.Level)),
		Sort:   req.Sort,
		Order:  req.Order,
	}
	h.log.Info("export requested", "hostId", middleware.GetHostID(r.Context()), "options", req.Options)
	exp, err := h.exportSvc.Build(r.Context(), req.Options, filter)
	if err != nil {
		if !isClientError(err) {
			h.log.Error("export failed", "error", err)
		}
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+service.Filename(time.Now())+`"`)
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(exp)
}

func filterFromQuery(r *http.Request) service.ListFilter {
	q := r.URL.Query()
	return service.ListFilter{
		Search: q.Get("search"),
		Role:   normalizeAll(q.Get("role")),
		Level:  model.MaturityLevel(normalizeAll(q.Get("level"))),
		Sort:   q.Get("sort"),
		Order:  q.Get("order"),
	}
}

// normalizeAll treats the dashboard's "all" choice as no filter
func normalizeAll(v string) string {
	if v == "all" {
		return ""
	}
	return v
}
