// Package web exposes the dashboard session over a local JSON API so a
// rendering layer can read views and feed user actions back in.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"deckhand/internal/dashboard"
)

type Server struct {
	session *dashboard.Session
	log     *slog.Logger
}

func NewServer(session *dashboard.Session, logger *slog.Logger) *Server {
	return &Server{session: session, log: logger}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/view", s.handleView)
	mux.HandleFunc("POST /api/containers/{id}/name", s.handleSetContainerName)
	mux.HandleFunc("DELETE /api/containers/{id}/name", s.handleClearContainerName)
	mux.HandleFunc("POST /api/containers/{id}/group", s.handleSetContainerGroup)
	mux.HandleFunc("DELETE /api/containers/{id}/group", s.handleClearContainerGroup)
	mux.HandleFunc("POST /api/groups/{id}/name", s.handleSetGroupName)
	mux.HandleFunc("DELETE /api/groups/{id}/name", s.handleClearGroupName)
	mux.HandleFunc("POST /api/interactions/{reason}", s.handleBeginInteraction)
	mux.HandleFunc("DELETE /api/interactions/{reason}", s.handleEndInteraction)
	mux.HandleFunc("POST /api/edits", s.handleEdit)
	mux.HandleFunc("POST /api/prefs", s.handlePrefs)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return logMiddleware(mux, s.log)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.View())
}

type nameBody struct {
	Name string `json:"name"`
}

type groupBody struct {
	Group string `json:"group"`
}

func (s *Server) handleSetContainerName(w http.ResponseWriter, r *http.Request) {
	var body nameBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	s.session.RenameContainer(r.PathValue("id"), body.Name)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleClearContainerName(w http.ResponseWriter, r *http.Request) {
	s.session.ResetContainerName(r.PathValue("id"))
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSetContainerGroup(w http.ResponseWriter, r *http.Request) {
	var body groupBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Group == "" {
		http.Error(w, "group is required", http.StatusBadRequest)
		return
	}
	s.session.MoveToGroup(r.PathValue("id"), body.Group)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleClearContainerGroup(w http.ResponseWriter, r *http.Request) {
	s.session.ResetGroup(r.PathValue("id"))
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSetGroupName(w http.ResponseWriter, r *http.Request) {
	var body nameBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	s.session.RenameGroup(r.PathValue("id"), body.Name)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleClearGroupName(w http.ResponseWriter, r *http.Request) {
	s.session.ResetGroupName(r.PathValue("id"))
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleBeginInteraction(w http.ResponseWriter, r *http.Request) {
	reason, ok := dashboard.ParseReason(r.PathValue("reason"))
	if !ok {
		http.Error(w, "unknown interaction reason", http.StatusBadRequest)
		return
	}
	s.session.BeginInteraction(reason)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEndInteraction(w http.ResponseWriter, r *http.Request) {
	reason, ok := dashboard.ParseReason(r.PathValue("reason"))
	if !ok {
		http.Error(w, "unknown interaction reason", http.StatusBadRequest)
		return
	}
	s.session.EndInteraction(reason)
	w.WriteHeader(http.StatusNoContent)
}

type editBody struct {
	Scope   string `json:"scope"`
	Id      string `json:"id"`
	Editing bool   `json:"editing"`
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var body editBody
	if !decodeBody(w, r, &body) {
		return
	}
	switch body.Scope {
	case "container_name":
		s.session.EditContainerName(body.Id, body.Editing)
	case "group_name":
		s.session.EditGroupName(body.Id, body.Editing)
	case "container_group":
		s.session.EditContainerGroup(body.Id, body.Editing)
	default:
		http.Error(w, "unknown edit scope", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type prefsBody struct {
	SortField string `json:"sort_field"`
	SortDir   string `json:"sort_dir"`
	Mode      string `json:"mode"`
}

func (s *Server) handlePrefs(w http.ResponseWriter, r *http.Request) {
	var body prefsBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.SortField != "" {
		field, ok := dashboard.ParseSortField(body.SortField)
		if !ok {
			http.Error(w, "unknown sort field", http.StatusBadRequest)
			return
		}
		s.session.SetSortField(field)
	}
	if body.SortDir != "" {
		s.session.SetSortDir(dashboard.SortDir(body.SortDir))
	}
	if body.Mode != "" {
		s.session.SetViewMode(dashboard.ViewMode(body.Mode))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":       "ok",
		"connectivity": s.session.View().Connectivity,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
