package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/jobtracker/internal/api/middleware"
	"github.com/kiranshivaraju/jobtracker/internal/api/response"
	"github.com/kiranshivaraju/jobtracker/pkg/models"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Identity  *mw.Identity
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	// Worker queue
	MyJobs    http.HandlerFunc
	MyTimer   http.HandlerFunc
	MyReport  http.HandlerFunc
	GetJob    http.HandlerFunc
	StartWork http.HandlerFunc
	StopWork  http.HandlerFunc
	SubmitJob http.HandlerFunc

	ListNotifications        http.HandlerFunc
	MarkNotificationRead     http.HandlerFunc
	MarkAllNotificationsRead http.HandlerFunc

	Heartbeat     http.HandlerFunc
	LeavePresence http.HandlerFunc

	// Admin
	CreateJob      http.HandlerFunc
	ListJobs       http.HandlerFunc
	UpdateJob      http.HandlerFunc
	ApproveJob     http.HandlerFunc
	RequestChanges http.HandlerFunc
	TimeEntries    http.HandlerFunc
	WorkerReport   http.HandlerFunc
	Summary        http.HandlerFunc
	OnlineWorkers  http.HandlerFunc
	ListWorkers    http.HandlerFunc
	CreateWorker   http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Identified routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Identity.Resolve)
		r.Use(deps.RateLimit.Limit)

		r.Get("/api/v1/me/jobs", orNotImplemented(deps.MyJobs))
		r.Get("/api/v1/me/timer", orNotImplemented(deps.MyTimer))
		r.Get("/api/v1/me/report", orNotImplemented(deps.MyReport))

		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.GetJob))
		r.Post("/api/v1/jobs/{jobID}/start", orNotImplemented(deps.StartWork))
		r.Post("/api/v1/jobs/{jobID}/stop", orNotImplemented(deps.StopWork))
		r.Post("/api/v1/jobs/{jobID}/submit", orNotImplemented(deps.SubmitJob))

		r.Get("/api/v1/notifications", orNotImplemented(deps.ListNotifications))
		r.Post("/api/v1/notifications/read-all", orNotImplemented(deps.MarkAllNotificationsRead))
		r.Post("/api/v1/notifications/{notificationID}/read", orNotImplemented(deps.MarkNotificationRead))

		r.Post("/api/v1/presence/heartbeat", orNotImplemented(deps.Heartbeat))
		r.Delete("/api/v1/presence", orNotImplemented(deps.LeavePresence))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Identity.RequireRole(models.RoleAdmin))

			r.Post("/api/v1/jobs", orNotImplemented(deps.CreateJob))
			r.Get("/api/v1/jobs", orNotImplemented(deps.ListJobs))
			r.Patch("/api/v1/jobs/{jobID}", orNotImplemented(deps.UpdateJob))
			r.Post("/api/v1/jobs/{jobID}/approve", orNotImplemented(deps.ApproveJob))
			r.Post("/api/v1/jobs/{jobID}/request-changes", orNotImplemented(deps.RequestChanges))

			r.Get("/api/v1/reports/time-entries", orNotImplemented(deps.TimeEntries))
			r.Get("/api/v1/reports/workers/{workerID}", orNotImplemented(deps.WorkerReport))
			r.Get("/api/v1/reports/summary", orNotImplemented(deps.Summary))

			r.Get("/api/v1/presence", orNotImplemented(deps.OnlineWorkers))

			r.Get("/api/v1/workers", orNotImplemented(deps.ListWorkers))
			r.Post("/api/v1/workers", orNotImplemented(deps.CreateWorker))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Fail(w, response.CodeNotImplemented, "Endpoint not yet implemented", nil)
	}
}
