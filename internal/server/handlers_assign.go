package server

import (
	"net/http"

	"github.com/switchyardhq/switchyard/internal/policy"
)

// guardDirectAssign applies the pilot-tech policy gate to the direct
// assignment RPCs. It wraps the operations rather than replacing them;
// every other role keeps the normal assign workflow.
func (s *Server) guardDirectAssign(w http.ResponseWriter, r *http.Request) bool {
	actor := actorFromContext(r.Context())
	d := policy.Evaluate(actor, policy.ActionAssignDirect)
	if !d.Allow {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error":  d.Message,
			"code":   "PERMISSION_ERROR",
			"reason": d.Reason,
		})
		return false
	}
	return true
}

type assignAddRequest struct {
	Ticket      string   `json:"ticket"`
	AssignTo    []string `json:"assign_to"`
	Description string   `json:"description"`
}

func (s *Server) handleAssignAdd(w http.ResponseWriter, r *http.Request) {
	if !s.guardDirectAssign(w, r) {
		return
	}
	var req assignAddRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "BAD_REQUEST")
		return
	}
	if req.Ticket == "" || len(req.AssignTo) == 0 {
		writeError(w, http.StatusBadRequest, "ticket and assign_to are required", "BAD_REQUEST")
		return
	}
	users, err := s.store.AddAssignees(req.Ticket, req.AssignTo, req.Description)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "ASSIGN_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"assignees": users})
}

type assignRemoveRequest struct {
	Ticket  string   `json:"ticket"`
	Tickets []string `json:"tickets"`
	User    string   `json:"user"`
}

func (s *Server) handleAssignRemove(w http.ResponseWriter, r *http.Request) {
	if !s.guardDirectAssign(w, r) {
		return
	}
	var req assignRemoveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "BAD_REQUEST")
		return
	}
	if req.Ticket == "" || req.User == "" {
		writeError(w, http.StatusBadRequest, "ticket and user are required", "BAD_REQUEST")
		return
	}
	users, err := s.store.RemoveAssignee(req.Ticket, req.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "ASSIGN_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"assignees": users})
}

func (s *Server) handleAssignRemoveMultiple(w http.ResponseWriter, r *http.Request) {
	if !s.guardDirectAssign(w, r) {
		return
	}
	var req assignRemoveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "BAD_REQUEST")
		return
	}
	if len(req.Tickets) == 0 || req.User == "" {
		writeError(w, http.StatusBadRequest, "tickets and user are required", "BAD_REQUEST")
		return
	}
	out, err := s.store.RemoveAssigneeMultiple(req.Tickets, req.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "ASSIGN_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tickets": out})
}

func (s *Server) handleAssignCloseAll(w http.ResponseWriter, r *http.Request) {
	if !s.guardDirectAssign(w, r) {
		return
	}
	var req assignRemoveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "BAD_REQUEST")
		return
	}
	if req.Ticket == "" {
		writeError(w, http.StatusBadRequest, "ticket is required", "BAD_REQUEST")
		return
	}
	users, err := s.store.CloseAllAssignments(req.Ticket)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "ASSIGN_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"assignees": users})
}
