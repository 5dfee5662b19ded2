package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/siteservice"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AuthEnabled   bool
	Token         string
	WebhookSecret string
	Branch        string       // pushes to other branches are ignored; empty accepts all
	Events        http.Handler // mounted at GET /events when non-nil
	Metrics       http.Handler // mounted at GET /metrics when non-nil
}

// NewRouter creates a chi router with the admin routes mounted.
func NewRouter(svc *siteservice.Service, opts RouterOptions) chi.Router {
	h := NewHandler(svc, opts.Branch)

	r := chi.NewRouter()

	// Unauthenticated.
	r.Get("/health", h.Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	r.With(WebhookSignature(opts.WebhookSecret)).Post("/webhook", h.Webhook)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(opts.AuthEnabled, opts.Token))

		r.Get("/status", h.ListStatus)
		r.Get("/status/{id}", h.GetStatus)
		r.Post("/retry/{id}", h.Retry)
		r.Post("/render", h.Render)
		r.Get("/tags", h.Tags)
		r.Get("/resolve", h.Resolve)

		if opts.Events != nil {
			r.Get("/events", opts.Events.ServeHTTP)
		}
	})

	return r
}
