package server

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/switchyardhq/switchyard/internal/policy"
)

type ctxKey string

const ctxActorKey ctxKey = "auth_actor"

func hashAPIKey(v string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(v)))
	return hex.EncodeToString(sum[:])
}

// authMiddleware resolves the calling actor. With API keys configured, a
// valid X-API-Key is required and maps to a user row. With no keys (dev and
// test), the X-Switchyard-User header selects a user, defaulting to an
// anonymous admin so a fresh install is never locked out.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, status, code, msg := s.resolveActor(r)
		if status != 0 {
			writeError(w, status, msg, code)
			return
		}
		ctx := context.WithValue(r.Context(), ctxActorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFromContext(ctx context.Context) policy.Actor {
	if ctx == nil {
		return policy.Actor{Email: "anonymous", Role: policy.RoleAdmin}
	}
	if a, ok := ctx.Value(ctxActorKey).(policy.Actor); ok {
		if strings.TrimSpace(a.Role) == "" {
			a.Role = policy.RoleAgent
		}
		return a
	}
	return policy.Actor{Email: "anonymous", Role: policy.RoleAdmin}
}

func (s *Server) resolveActor(r *http.Request) (policy.Actor, int, string, string) {
	db := s.store.ReadDB()

	var keyCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM api_keys WHERE enabled = 1").Scan(&keyCount); err != nil {
		return policy.Actor{Email: "anonymous", Role: policy.RoleAdmin}, 0, "", ""
	}

	if keyCount == 0 {
		email := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Switchyard-User")))
		if email == "" {
			return policy.Actor{Email: "anonymous", Role: policy.RoleAdmin}, 0, "", ""
		}
		return s.lookupActor(email)
	}

	apiKey := strings.TrimSpace(r.Header.Get("X-API-Key"))
	if apiKey == "" {
		return policy.Actor{}, http.StatusUnauthorized, "UNAUTHORIZED", "missing API key"
	}
	h := hashAPIKey(apiKey)
	var email string
	var enabled int
	err := db.QueryRow(
		"SELECT user_email, enabled FROM api_keys WHERE key_hash = ?", h,
	).Scan(&email, &enabled)
	if err == sql.ErrNoRows || enabled == 0 {
		return policy.Actor{}, http.StatusUnauthorized, "UNAUTHORIZED", "invalid API key"
	}
	if err != nil {
		return policy.Actor{}, http.StatusUnauthorized, "UNAUTHORIZED", "invalid API key"
	}
	_, _ = s.store.ReadDB().Exec(
		"UPDATE api_keys SET last_used_at = ? WHERE key_hash = ?",
		time.Now().UTC().Format(time.RFC3339Nano), h,
	)
	return s.lookupActor(email)
}

func (s *Server) lookupActor(email string) (policy.Actor, int, string, string) {
	u, err := s.store.GetUser(email)
	if err != nil {
		return policy.Actor{}, http.StatusUnauthorized, "UNAUTHORIZED", "unknown user"
	}
	if !u.Enabled {
		return policy.Actor{}, http.StatusForbidden, "FORBIDDEN", "user disabled"
	}
	return policy.Actor{Email: u.Email, Role: u.Role}, 0, "", ""
}
