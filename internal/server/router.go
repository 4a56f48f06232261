package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// System endpoints stay outside the request middleware.
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.metricsMiddleware, s.requestIDMiddleware, s.tracingMiddleware,
			s.panicRecoveryMiddleware, s.loggingMiddleware)

		r.Get("/", s.handleList)
		r.Get("/check", s.handleCheck)

		r.Route("/configs", func(r chi.Router) {
			r.Get("/new", s.handleNew)
			r.Post("/", s.handleCreate)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleShow)
				r.Post("/", s.handleUpdate)
				r.Get("/raw", s.handleRaw)
				r.Post("/rename", s.handleRename)
				r.Post("/delete", s.handleDelete)
			})
		})
	})

	return r
}
