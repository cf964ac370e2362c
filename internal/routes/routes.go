package routes

import (
	"net/http"

	"github.com/fitdesk/fitdesk-api/internal/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter sets up the API routes
func NewRouter(
	queue *handlers.QueueHandler,
	template *handlers.TemplateHandler,
	log *handlers.LogHandler,
	sched *handlers.SchedulerHandler,
) *mux.Router {
	router := mux.NewRouter()

	// Operational surface
	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Notification queue
	router.HandleFunc("/api/notifications", queue.Enqueue).Methods(http.MethodPost)
	router.HandleFunc("/api/notifications", queue.List).Methods(http.MethodGet)
	router.HandleFunc("/api/notifications/{entryID}/cancel", queue.Cancel).Methods(http.MethodPost)

	// Templates
	router.HandleFunc("/api/templates", template.List).Methods(http.MethodGet)
	router.HandleFunc("/api/templates", template.Create).Methods(http.MethodPost)
	router.HandleFunc("/api/templates/{templateID}", template.Update).Methods(http.MethodPut)
	router.HandleFunc("/api/templates/{templateID}", template.Delete).Methods(http.MethodDelete)
	router.HandleFunc("/api/templates/{templateID}/deactivate", template.Deactivate).Methods(http.MethodPost)

	// Delivery log
	router.HandleFunc("/api/delivery-log", log.List).Methods(http.MethodGet)

	// Scheduler
	router.HandleFunc("/api/scheduler/stats", sched.Stats).Methods(http.MethodGet)
	router.HandleFunc("/api/alerts/process", sched.ProcessAlerts).Methods(http.MethodPost)

	return router
}
