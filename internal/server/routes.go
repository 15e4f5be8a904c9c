package server

import (
	"github.com/go-chi/chi/v5"
)

// SetupRoutes registers the API routes on router.
func (s *Server) SetupRoutes(router chi.Router) {
	router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/definitions", s.handleDefinitions)
		r.Get("/definitions/{blockType}/inputs/{input}/candidates", s.handleCandidates)
		r.Post("/generate", s.handleGenerate)
		r.Post("/run", s.handleRun)
		r.Post("/snapshots", s.handleSaveSnapshot)
		r.Get("/snapshots", s.handleListSnapshots)
		r.Get("/snapshots/{id}", s.handleGetSnapshot)
		r.Get("/events", s.handleEvents)
	})
}
