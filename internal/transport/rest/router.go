package rest

import (
	"cicdassess/internal/config"
	"cicdassess/internal/logger"
	"cicdassess/internal/observability"
	"cicdassess/internal/service"
	"cicdassess/internal/transport/rest/handler"
	"cicdassess/internal/transport/rest/middleware"
	"cicdassess/internal/transport/ws"
	"net/http"

	"github.com/gorilla/mux"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService     *service.AuthService
	FeedbackService *service.FeedbackService
	AnalysisService *service.AnalysisService
	ExportService   *service.ExportService
	WSHub           *ws.Hub
	CORS            config.CORSConfig
	Logger          *logger.Logger
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService)
	feedbackHandler := handler.NewFeedbackHandler(c.FeedbackService, c.Logger)
	aiHandler := handler.NewAIHandler(c.AnalysisService, c.Logger)
	dashboardHandler := handler.NewDashboardHandler(c.FeedbackService, c.AnalysisService, c.ExportService, c.Logger)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.Logger)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(middleware.CORS(c.CORS))
	r.Use(observability.MetricsMiddleware)

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	r.Handle("/metrics", observability.MetricsHandler()).Methods("GET")

	// Shared edit links
	r.HandleFunc("/edit/{editKey}", feedbackHandler.EditRedirect).Methods("GET")

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	v1.HandleFunc("/questions", feedbackHandler.Questions).Methods("GET", "OPTIONS")
	v1.HandleFunc("/feedback", feedbackHandler.Submit).Methods("POST", "OPTIONS")
	v1.HandleFunc("/feedback/{editKey}", feedbackHandler.Get).Methods("GET", "OPTIONS")
	v1.HandleFunc("/feedback/{editKey}", feedbackHandler.Update).Methods("PUT", "OPTIONS")
	v1.HandleFunc("/enhance", aiHandler.Enhance).Methods("POST", "OPTIONS")
	v1.HandleFunc("/summarize", aiHandler.Summarize).Methods("POST", "OPTIONS")

	// WebSocket routes (public with token in query param)
	v1.HandleFunc("/ws/dashboard", wsHandler.DashboardWS).Methods("GET")

	// Host routes (require host auth)
	hostRoutes := v1.NewRoute().Subrouter()
	hostRoutes.Use(authMW.RequireHost)

	hostRoutes.HandleFunc("/analyze", aiHandler.Analyze).Methods("POST", "OPTIONS")
	hostRoutes.HandleFunc("/dashboard/stats", dashboardHandler.Stats).Methods("GET", "OPTIONS")
	hostRoutes.HandleFunc("/dashboard/feedback", dashboardHandler.List).Methods("GET", "OPTIONS")
	hostRoutes.HandleFunc("/dashboard/analysis", dashboardHandler.Analysis).Methods("GET", "OPTIONS")
	hostRoutes.HandleFunc("/dashboard/export", dashboardHandler.Export).Methods("POST", "OPTIONS")

	return r
}
