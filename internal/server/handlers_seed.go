package server

import (
	"net/http"

	"github.com/switchyardhq/switchyard/internal/policy"
	"github.com/switchyardhq/switchyard/internal/store"
)

func (s *Server) guardSeed(w http.ResponseWriter, r *http.Request) bool {
	actor := actorFromContext(r.Context())
	if d := policy.Evaluate(actor, policy.ActionSeed); !d.Allow {
		writeError(w, http.StatusForbidden, d.Message, "POLICY_"+d.Reason)
		return false
	}
	return true
}

func (s *Server) handleSeedUsers(w http.ResponseWriter, r *http.Request) {
	if !s.guardSeed(w, r) {
		return
	}
	var users []store.User
	if err := decodeJSON(r, &users); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "BAD_REQUEST")
		return
	}
	for _, u := range users {
		if err := s.store.UpsertUser(u); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "SEED_ERROR")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"seeded": len(users)})
}

func (s *Server) handleSeedLocations(w http.ResponseWriter, r *http.Request) {
	if !s.guardSeed(w, r) {
		return
	}
	var locations []store.Location
	if err := decodeJSON(r, &locations); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "BAD_REQUEST")
		return
	}
	for _, l := range locations {
		if err := s.store.UpsertLocation(l); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "SEED_ERROR")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"seeded": len(locations)})
}

type seedCustomer struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Contacts []string `json:"contacts"`
}

func (s *Server) handleSeedCustomers(w http.ResponseWriter, r *http.Request) {
	if !s.guardSeed(w, r) {
		return
	}
	var customers []seedCustomer
	if err := decodeJSON(r, &customers); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "BAD_REQUEST")
		return
	}
	for _, c := range customers {
		if err := s.store.UpsertCustomer(c.Name, c.Email); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "SEED_ERROR")
			return
		}
		for _, contact := range c.Contacts {
			if err := s.store.LinkContact(contact, c.Name); err != nil {
				writeError(w, http.StatusBadRequest, err.Error(), "SEED_ERROR")
				return
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"seeded": len(customers)})
}
