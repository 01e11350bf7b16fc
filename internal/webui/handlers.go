package webui

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	includeDeleted := r.URL.Query().Get("includeDeleted") == "true"
	sessions, err := s.deps.Manager.List(includeDeleted)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errCodeNotFound, "invalid session id")
		return
	}
	sess, err := s.deps.Manager.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, errCodeNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	all, err := s.deps.Templates.GetAll()
	if err != nil {
		writeError(w, http.StatusInternalServerError, errCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	all, err := s.deps.Groups.GetAll()
	if err != nil {
		writeError(w, http.StatusInternalServerError, errCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) listApprovals(w http.ResponseWriter, r *http.Request) {
	all, err := s.deps.Approvals.GetAll()
	if err != nil {
		writeError(w, http.StatusInternalServerError, errCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) listQuestions(w http.ResponseWriter, r *http.Request) {
	all, err := s.deps.Questions.GetAll()
	if err != nil {
		writeError(w, http.StatusInternalServerError, errCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, all)
}
