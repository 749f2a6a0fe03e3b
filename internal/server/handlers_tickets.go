package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/switchyardhq/switchyard/internal/store"
)

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var req store.CreateTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "BAD_REQUEST")
		return
	}
	if req.Subject == "" {
		writeError(w, http.StatusBadRequest, "subject is required", "BAD_REQUEST")
		return
	}

	t, err := s.store.CreateTicket(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return
	}

	// Fill-if-empty parse pass for UI-created tickets, then the
	// after-insert routing hook.
	if s.intake != nil && req.Sender != "" {
		if _, err := s.intake.PopulateTicket(t.ID, req.Sender, req.Subject, req.Description); err != nil {
			slog.Warn("ticket populate failed", "ticket", t.ID, "error", err)
		}
	}
	if err := s.store.RouteNewTicket(t.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return
	}

	t, err = s.store.GetTicket(t.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// TicketDetail is a ticket plus its open tasks and activity trail.
type TicketDetail struct {
	store.Ticket
	OpenTasks []store.Task    `json:"open_tasks"`
	Comments  []store.Comment `json:"comments,omitempty"`
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := s.store.GetTicket(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
		return
	}
	tasks, err := s.store.ListOpenTasks(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return
	}
	comments, err := s.store.ListComments(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return
	}
	if tasks == nil {
		tasks = []store.Task{}
	}
	writeJSON(w, http.StatusOK, TicketDetail{Ticket: *t, OpenTasks: tasks, Comments: comments})
}
