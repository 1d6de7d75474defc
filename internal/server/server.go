package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ldi/taskboard/internal/board"
	"github.com/ldi/taskboard/pkg/models"
	log "github.com/sirupsen/logrus"
)

type Server struct {
	svc    *board.Service
	hub    *Hub
	log    log.FieldLogger
	server *http.Server
}

func NewServer(svc *board.Service, logger log.FieldLogger) *Server {
	s := &Server{
		svc: svc,
		hub: NewHub(logger),
		log: logger,
	}
	svc.OnChange(s.hub.Broadcast)
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/board", s.handleBoard)
	mux.HandleFunc("GET /api/tasks", s.handleTasks)
	mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	mux.HandleFunc("PUT /api/tasks/{id}", s.handleEditTask)
	mux.HandleFunc("POST /api/tasks/{id}/move", s.handleMoveTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)

	mux.HandleFunc("PUT /api/filters/{field}", s.handleSetFilter)

	mux.HandleFunc("GET /api/tags", s.handleTags)
	mux.HandleFunc("POST /api/tags", s.handleAddTag)
	mux.HandleFunc("PUT /api/tags/selected", s.handleSelectTag)

	mux.HandleFunc("GET /api/assignees", s.handleAssignees)
	mux.HandleFunc("POST /api/assignees", s.handleAddAssignee)
	mux.HandleFunc("PUT /api/assignees/selected", s.handleSelectAssignee)

	mux.HandleFunc("GET /ws", s.handleWebSocket)

	return s.logRequests(mux)
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	s.log.WithField("addr", addr).Info("Serving board API")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.WithFields(log.Fields{"method": r.Method, "path": r.URL.Path}).Debug("Request")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, s.svc.State())
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, s.svc.Tasks())
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var fields board.TaskFields
	if !s.decode(w, r, &fields) {
		return
	}
	t, err := s.svc.CreateTask(r.Context(), fields)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusCreated, t)
}

func (s *Server) handleEditTask(w http.ResponseWriter, r *http.Request) {
	var patch models.TaskPatch
	if !s.decode(w, r, &patch) {
		return
	}
	if patch.Status != nil {
		st, err := models.ParseTaskStatus(string(*patch.Status))
		if err != nil {
			s.fail(w, errors.Join(board.ErrInvalid, err))
			return
		}
		patch.Status = &st
	}

	id := r.PathValue("id")
	t, found, err := s.svc.EditTask(r.Context(), id, patch)
	if err != nil {
		s.fail(w, err)
		return
	}
	if !found {
		s.notFound(w, id)
		return
	}
	s.respond(w, http.StatusOK, t)
}

func (s *Server) handleMoveTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	status, err := models.ParseTaskStatus(body.Status)
	if err != nil {
		s.fail(w, errors.Join(board.ErrInvalid, err))
		return
	}

	id := r.PathValue("id")
	t, found, err := s.svc.MoveTask(r.Context(), id, status)
	if err != nil {
		s.fail(w, err)
		return
	}
	if !found {
		s.notFound(w, id)
		return
	}
	s.respond(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.svc.DeleteTask(r.Context(), id) {
		s.notFound(w, id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value string `json:"value"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.svc.SetFilter(r.Context(), r.PathValue("field"), body.Value); err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, s.svc.Filters())
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	st := s.svc.State()
	s.respond(w, http.StatusOK, map[string]any{
		"tags":     st.Tags,
		"selected": st.SelectedTag,
	})
}

func (s *Server) handleAddTag(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Label string `json:"label"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	code := http.StatusOK
	if s.svc.AddTag(r.Context(), body.Label) {
		code = http.StatusCreated
	}
	s.respond(w, code, map[string]any{"tags": s.svc.Tags()})
}

func (s *Server) handleSelectTag(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Label *string `json:"label"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	s.svc.SelectTag(r.Context(), body.Label)
	s.handleTags(w, r)
}

func (s *Server) handleAssignees(w http.ResponseWriter, r *http.Request) {
	st := s.svc.State()
	s.respond(w, http.StatusOK, map[string]any{
		"assignees": st.Assignees,
		"selected":  st.SelectedAssignee,
	})
}

func (s *Server) handleAddAssignee(w http.ResponseWriter, r *http.Request) {
	var a models.Assignee
	if !s.decode(w, r, &a) {
		return
	}
	if err := s.svc.AddAssignee(r.Context(), a); err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusCreated, a)
}

func (s *Server) handleSelectAssignee(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	s.svc.SelectAssignee(r.Context(), body.ID)
	s.handleAssignees(w, r)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.Serve(w, r, s.svc.State())
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respond(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) notFound(w http.ResponseWriter, id string) {
	s.respond(w, http.StatusNotFound, map[string]string{"error": "task not found: " + id})
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, board.ErrInvalid) {
		s.respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.log.WithError(err).Error("Request failed")
	s.respond(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func (s *Server) respond(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}
