package httpx

import (
	"net/http"

	"github.com/blogi/relay/internal/core"
	"github.com/blogi/relay/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Dispatch *service.DispatchService
	Webhook  *service.WebhookService
	Console  *service.ConsoleService
	Registry core.JobRegistry
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	jobHandlers := &JobHandlers{Dispatch: services.Dispatch, Registry: services.Registry}
	webhookHandlers := &WebhookHandlers{Svc: services.Webhook}

	mux.HandleFunc("POST /api/dispatch", jobHandlers.DispatchJob)
	mux.HandleFunc("GET /api/jobs/stats", jobHandlers.JobStats)
	mux.HandleFunc("GET /api/jobs/{id}", jobHandlers.GetJob)
	mux.HandleFunc("GET /api/jobs/{id}/status", jobHandlers.JobStatus)
	mux.HandleFunc("POST /api/webhook", webhookHandlers.ReceiveCallback)

	if services.Console != nil {
		consoleHandlers := &ConsoleHandlers{Svc: services.Console}
		mux.HandleFunc("GET /api/console", consoleHandlers.Tail)
	}

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return mux
}
