package api

import (
	"github.com/gorilla/mux"

	"crowdscope.io/annotate/internal/metrics"
)

// SetupRoutes configures and returns the HTTP router
func (s *Server) SetupRoutes() *mux.Router {
	r := mux.NewRouter()

	// Add middleware to all routes
	r.Use(metrics.MetricsMiddleware)

	// Session lifecycle
	r.HandleFunc("/session", s.SessionHandler).Methods("POST")

	// Annotation screen
	r.HandleFunc("/task/{session_id}", s.TaskHandler).Methods("GET")
	r.HandleFunc("/answer/{session_id}", s.AnswerHandler).Methods("POST")
	r.HandleFunc("/image/{name}", s.ImageHandler).Methods("GET")

	// Progress and aggregate state
	r.HandleFunc("/progress/{worker_id}", s.ProgressHandler).Methods("GET")
	r.HandleFunc("/stats", s.StatsHandler).Methods("GET")
	r.HandleFunc("/health", s.HealthHandler).Methods("GET")

	// Prometheus metrics endpoint
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	return r
}
