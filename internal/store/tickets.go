package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// CreateTicketRequest carries the fields for a new ticket.
type CreateTicketRequest struct {
	Subject      string `json:"subject"`
	Description  string `json:"description"`
	Group        string `json:"group"`
	EmailAccount string `json:"email_account"`
	Sender       string `json:"sender"`
	Customer     string `json:"customer"`
	Site         string `json:"site"`
	EquipmentRef string `json:"equipment_ref"`
}

// CreateTicket inserts a new ticket and returns it. Routing is a separate
// step (RouteNewTicket) so callers can decide whether the insert hook runs.
func (s *Store) CreateTicket(req CreateTicketRequest) (*Ticket, error) {
	id := NewTicketID()
	_, err := s.writer.Execute(`
		INSERT INTO tickets (id, subject, description, status, group_name, email_account, sender, customer, site, equipment_ref)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, req.Subject, req.Description, TicketOpen, req.Group, req.EmailAccount,
		strings.ToLower(strings.TrimSpace(req.Sender)), req.Customer, req.Site, req.EquipmentRef)
	if err != nil {
		return nil, fmt.Errorf("insert ticket: %w", err)
	}
	return s.GetTicket(id)
}

// GetTicket returns a ticket by id.
func (s *Store) GetTicket(id string) (*Ticket, error) {
	var t Ticket
	var assignees string
	var createdAt, updatedAt string
	err := s.db.Read.QueryRow(`
		SELECT id, subject, description, status, group_name, email_account, sender,
			customer, site, equipment_ref, assignees, created_at, updated_at
		FROM tickets WHERE id = ?
	`, id).Scan(
		&t.ID, &t.Subject, &t.Description, &t.Status, &t.Group, &t.EmailAccount, &t.Sender,
		&t.Customer, &t.Site, &t.EquipmentRef, &assignees, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("ticket %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	t.Assignees = decodeMirror(assignees)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

// TicketExists reports whether a ticket row exists.
func (s *Store) TicketExists(id string) (bool, error) {
	var n int
	if err := s.db.Read.QueryRow("SELECT COUNT(*) FROM tickets WHERE id = ?", id).Scan(&n); err != nil {
		return false, fmt.Errorf("ticket exists: %w", err)
	}
	return n > 0, nil
}

// SetTicketStatus updates the ticket lifecycle status.
func (s *Store) SetTicketStatus(id, status string) error {
	res, err := s.writer.Execute(
		"UPDATE tickets SET status = ?, updated_at = ? WHERE id = ?",
		status, nowSQLite(), id,
	)
	if err != nil {
		return fmt.Errorf("set ticket status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("ticket %q not found", id)
	}
	return nil
}

// SetTicketFields writes the given columns only where they are currently
// empty. Intake uses this so parsed values never overwrite user-entered data.
// Returns the field names actually written.
func (s *Store) SetTicketFields(id string, fields map[string]string) ([]string, error) {
	allowed := map[string]string{
		"customer":      "customer",
		"site":          "site",
		"equipment_ref": "equipment_ref",
		"group":         "group_name",
	}
	var written []string
	for name, val := range fields {
		col, ok := allowed[name]
		if !ok {
			return written, fmt.Errorf("field %q not writable", name)
		}
		if strings.TrimSpace(val) == "" {
			continue
		}
		res, err := s.writer.Execute(
			fmt.Sprintf("UPDATE tickets SET %s = ?, updated_at = ? WHERE id = ? AND %s = ''", col, col),
			val, nowSQLite(), id,
		)
		if err != nil {
			return written, fmt.Errorf("set ticket field %s: %w", name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			written = append(written, name)
		}
	}
	sort.Strings(written)
	return written, nil
}

// mirrorValue returns the raw JSON mirror string for a ticket.
func (s *Store) mirrorValue(id string) (string, error) {
	var v string
	err := s.db.Read.QueryRow("SELECT assignees FROM tickets WHERE id = ?", id).Scan(&v)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("ticket %q not found", id)
	}
	if err != nil {
		return "", fmt.Errorf("read mirror: %w", err)
	}
	return v, nil
}

// decodeMirror parses the mirror JSON leniently: a malformed mirror reads as
// unassigned rather than an error, matching the drift-tolerant design.
func decodeMirror(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return []string{}
	}
	var users []string
	if err := json.Unmarshal([]byte(v), &users); err != nil {
		return []string{}
	}
	out := make([]string, 0, len(users))
	seen := map[string]struct{}{}
	for _, u := range users {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func encodeMirror(users []string) string {
	if users == nil {
		users = []string{}
	}
	b, _ := json.Marshal(users)
	return string(b)
}

// firstAssignee returns the first user in a mirror value, or "".
func firstAssignee(mirror string) string {
	users := decodeMirror(mirror)
	if len(users) == 0 {
		return ""
	}
	return users[0]
}
