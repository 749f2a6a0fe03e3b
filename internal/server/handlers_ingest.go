package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/switchyardhq/switchyard/internal/intake"
	"github.com/switchyardhq/switchyard/internal/policy"
)

type ingestRequest struct {
	Account  string `json:"account"`
	Sender   string `json:"sender"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	TicketID string `json:"ticket_id"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if d := policy.Evaluate(actor, policy.ActionIngest); !d.Allow {
		writeError(w, http.StatusForbidden, d.Message, "POLICY_"+d.Reason)
		return
	}

	raw, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body", "BAD_REQUEST")
		return
	}

	issues, err := intake.ValidateIngestPayload(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
		return
	}
	if len(issues) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":             "payload failed validation",
			"code":              "VALIDATION_ERROR",
			"validation_errors": issues,
		})
		return
	}

	var req ingestRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "BAD_REQUEST")
		return
	}

	msg, err := s.store.EnqueueInbound(req.Account, req.Sender, req.Subject, req.Body, req.TicketID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message_id": msg.ID, "state": msg.State})
}

// handleIngestStatus surfaces the pull job's breadcrumbs for external
// monitoring.
func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	keys := []string{
		"fingerprint", "last_run", "last_start", "last_ok", "last_skip",
		"last_err", "stage", "lock_acquired", "processed_last_run", "per_account",
	}
	out := map[string]string{}
	for _, k := range keys {
		v, found, err := s.cache.Get("job:pull_inboxes:" + k)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if found {
			out[k] = v
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type confirmRequest struct {
	Token string `json:"token"`
}

// handleConfirm verifies a signed customer confirm token and records the
// confirmation on the ticket's activity trail.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	signer := s.intake.Signer()
	if signer == nil {
		writeError(w, http.StatusNotFound, "confirm links are not enabled", "NOT_ENABLED")
		return
	}
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Token) == "" {
		writeError(w, http.StatusBadRequest, "token is required", "BAD_REQUEST")
		return
	}
	ticket, customer, err := signer.VerifyConfirmToken(req.Token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token", "INVALID_TOKEN")
		return
	}
	if err := s.store.AddComment(ticket, "Customer confirmed ticket details", customer); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ticket": ticket, "customer": customer, "status": "confirmed"})
}
