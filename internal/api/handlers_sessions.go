package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/hl7lens/internal/session"
)

type sessionRequest struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

type selectionRequest struct {
	Path json.RawMessage `json:"path"`
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			jsonError(w, "session not found", http.StatusNotFound)
		} else {
			jsonError(w, err.Error(), http.StatusInternalServerError)
		}
		return nil, false
	}
	return sess, true
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	sess, err := s.sessions.Create(req.Name, req.Text)
	if err != nil {
		if errors.Is(err, session.ErrFull) {
			jsonError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(chi.URLParam(r, "sessionID")); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			jsonError(w, "session not found", http.StatusNotFound)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReplaceMessage swaps the session's message; the selection is cleared.
func (s *Server) handleReplaceMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var req sessionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	sess.Replace(req.Text)
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.DescribeSelection())
}

func (s *Server) handleSetSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var req selectionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Path == nil {
		jsonError(w, "path is required; send null to clear the selection", http.StatusBadRequest)
		return
	}
	sel, err := parseSelection(req.Path)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	sess.Select(sel)
	writeJSON(w, http.StatusOK, sess.DescribeSelection())
}
