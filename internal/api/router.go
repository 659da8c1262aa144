package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"cloak-engine/internal/observability"
)

func Router(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(observability.Measure)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	// Public: called by edge infrastructure and landing-page scripts.
	r.Post("/decide", h.Decide)
	r.Post("/fingerprint", h.Fingerprint)
	r.Post("/telemetry", h.Telemetry)
	r.Post("/auth/token", h.Token)

	// Authenticated config mutation.
	r.Group(func(r chi.Router) {
		r.Use(h.Auth.RequireAuth)

		r.Put("/domains/{domain}", h.UpsertDomain)
		r.Get("/domains/{domain}", h.GetDomain)
		r.Delete("/domains/{domain}", h.DeleteDomain)

		r.Post("/campaigns", h.CreateCampaign)
		r.Get("/campaigns/{domain}", h.ListCampaigns)
		r.Put("/campaigns/{domain}/{path}", h.UpdateCampaign)
		r.Delete("/campaigns/{domain}/{path}", h.DeleteCampaign)

		r.Put("/links/{id}/filters", h.UpdateLinkFilters)
		r.Get("/links/{id}/filters", h.GetLinkFilters)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", observability.MetricsHandler())
	return r
}
