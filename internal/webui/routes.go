package webui

import "github.com/go-chi/chi/v5"

func (s *Server) setupRoutes() {
	r := s.router

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Get("/{id}", s.getSession)
		r.Get("/{id}/events", s.sessionEvents)
	})

	r.Get("/templates", s.listTemplates)
	r.Get("/groups", s.listGroups)
	r.Get("/approvals", s.listApprovals)
	r.Get("/questions", s.listQuestions)

	r.Get("/events", s.allEvents)
}
