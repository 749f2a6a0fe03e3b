package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/switchyardhq/switchyard/internal/policy"
)

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if d := policy.Evaluate(actor, policy.ActionClaim); !d.Allow {
		writeError(w, http.StatusForbidden, d.Message, "POLICY_"+d.Reason)
		return
	}

	res, err := s.store.Claim(chi.URLParam(r, "id"), actor.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type handoffRequest struct {
	ToUser string `json:"to_user"`
	Reason string `json:"reason"`
}

func (s *Server) handleHandoff(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if d := policy.Evaluate(actor, policy.ActionHandoff); !d.Allow {
		writeError(w, http.StatusForbidden, d.Message, "POLICY_"+d.Reason)
		return
	}

	var req handoffRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "BAD_REQUEST")
		return
	}

	res, err := s.store.Handoff(chi.URLParam(r, "id"), actor.Email, actor.Adminish(), req.ToUser, req.Reason)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
