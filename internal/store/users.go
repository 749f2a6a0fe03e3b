package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// UpsertUser creates or updates an operator account.
func (s *Store) UpsertUser(u User) error {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if email == "" {
		return fmt.Errorf("upsert user: email required")
	}
	enabled := 0
	if u.Enabled {
		enabled = 1
	}
	_, err := s.writer.Execute(`
		INSERT INTO users (email, full_name, role, enabled) VALUES (?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET full_name = excluded.full_name,
			role = excluded.role, enabled = excluded.enabled
	`, email, u.FullName, u.Role, enabled)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetUser returns a user by email.
func (s *Store) GetUser(email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u User
	var enabled int
	err := s.db.Read.QueryRow(
		"SELECT email, full_name, role, enabled FROM users WHERE email = ?", email,
	).Scan(&u.Email, &u.FullName, &u.Role, &enabled)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %q not found", email)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Enabled = enabled == 1
	return &u, nil
}

// UserExists reports whether an enabled user exists for the email.
func (s *Store) UserExists(email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var n int
	err := s.db.Read.QueryRow(
		"SELECT COUNT(*) FROM users WHERE email = ? AND enabled = 1", email,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return n > 0, nil
}
