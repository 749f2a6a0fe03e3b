package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

const rotationDoctype = "rotation"

func rotationKey(group string) string {
	return "rr_idx__" + group
}

// rotationCursor reads the persisted cursor for a group. A missing or
// malformed row reads as 0.
func (s *Store) rotationCursor(group string) (int, error) {
	var v string
	err := s.db.Read.QueryRow(
		"SELECT value FROM singles WHERE doctype = ? AND field = ?",
		rotationDoctype, rotationKey(group),
	).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read rotation cursor: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (s *Store) setRotationCursor(group string, idx int) error {
	_, err := s.writer.Execute(`
		INSERT INTO singles (doctype, field, value) VALUES (?, ?, ?)
		ON CONFLICT(doctype, field) DO UPDATE SET value = excluded.value
	`, rotationDoctype, rotationKey(group), strconv.Itoa(idx))
	if err != nil {
		return fmt.Errorf("write rotation cursor: %w", err)
	}
	return nil
}

// NextAssignee returns the next user in the group's rotation and advances
// the persisted cursor. An empty or unknown group yields "", which callers
// must treat as "leave unrouted", not as an error.
func (s *Store) NextAssignee(group string) (string, error) {
	pool := s.pools[group]
	if len(pool) == 0 {
		return "", nil
	}
	idx, err := s.rotationCursor(group)
	if err != nil {
		return "", err
	}
	assignee := pool[idx%len(pool)]
	if err := s.setRotationCursor(group, idx+1); err != nil {
		return "", err
	}
	return assignee, nil
}

// RouteNewTicket runs the after-insert routing hook for a ticket. The order
// of checks is deliberate: task-store truth first, then mirror drift repair,
// and only then round-robin. Routing must never override a raced manual
// assignment and must never trust the mirror over the store.
func (s *Store) RouteNewTicket(ticketID string) error {
	open, err := s.ListOpenTasks(ticketID)
	if err != nil {
		return err
	}

	if len(open) > 0 {
		// Something else assigned first. Collapse to the newest open task
		// and resync the mirror instead of routing.
		for _, t := range open[1:] {
			if err := s.CloseTask(t.ID); err != nil {
				return fmt.Errorf("route: collapse task %s: %w", t.ID, err)
			}
		}
		if _, err := s.RecomputeMirror(ticketID); err != nil {
			return err
		}
		return nil
	}

	mirror, err := s.mirrorValue(ticketID)
	if err != nil {
		return err
	}
	if u := firstAssignee(mirror); u != "" {
		// Cache says assigned, store says not. Repair toward the mirror's
		// first user rather than routing over it.
		slog.Info("routing drift repair", "ticket", ticketID, "user", u)
		if _, err := s.CreateTask(ticketID, u, "Recreated from assignee mirror (drift repair)"); err != nil {
			return fmt.Errorf("route: drift repair: %w", err)
		}
		_, err = s.RecomputeMirror(ticketID)
		return err
	}

	t, err := s.GetTicket(ticketID)
	if err != nil {
		return err
	}
	group := strings.TrimSpace(t.Group)
	if group == "" {
		group = strings.TrimSpace(t.EmailAccount)
	}
	assignee, err := s.NextAssignee(group)
	if err != nil {
		return err
	}
	if assignee == "" {
		slog.Debug("ticket left unrouted", "ticket", ticketID, "group", group)
		return nil
	}

	if _, err := s.CreateTask(ticketID, assignee, "Auto-assigned (round-robin)"); err != nil {
		return fmt.Errorf("route: create task: %w", err)
	}
	if _, err := s.RecomputeMirror(ticketID); err != nil {
		return err
	}
	slog.Info("ticket routed", "ticket", ticketID, "group", group, "assignee", assignee)
	return nil
}
