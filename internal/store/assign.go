package store

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// The tasks table is the source of truth for assignment; the ticket's
// assignees column is a derived mirror. Every mutating operation here ends
// by recomputing the mirror from open tasks, never by editing it directly.
// The only direct mirror writes are the transient force-write at the start
// of Normalize and the conditional claim update, both confirmed by a
// recompute before returning.

// Normalize enforces the single-owner invariant for a ticket: exactly one
// open task, owned by owner; every other open task is terminated. After it
// returns, the mirror equals {owner}.
func (s *Store) Normalize(ticketID, owner, note string) error {
	ticketID = strings.TrimSpace(ticketID)
	owner = strings.TrimSpace(owner)
	if ticketID == "" || owner == "" {
		return fmt.Errorf("normalize: ticket and owner required")
	}

	// Force the mirror first so concurrent readers see the intended owner
	// immediately. Best effort; the recompute below is authoritative.
	if _, err := s.writer.Execute(
		"UPDATE tickets SET assignees = ?, updated_at = ? WHERE id = ?",
		encodeMirror([]string{owner}), nowSQLite(), ticketID,
	); err != nil {
		slog.Warn("normalize: mirror force-write failed", "ticket", ticketID, "error", err)
	}

	open, err := s.ListOpenTasks(ticketID)
	if err != nil {
		return err
	}

	kept := false
	for _, t := range open {
		if t.Assignee == owner && !kept {
			kept = true
			continue
		}
		if err := s.CloseTask(t.ID); err != nil {
			return fmt.Errorf("normalize: close task %s: %w", t.ID, err)
		}
	}

	if !kept {
		if _, err := s.CreateTask(ticketID, owner, "Assigned via pilot action"); err != nil {
			return fmt.Errorf("normalize: create owner task: %w", err)
		}
	}

	if _, err := s.RecomputeMirror(ticketID); err != nil {
		return err
	}

	if note != "" {
		// Audit trail is best effort; never fail the assignment over it.
		if err := s.AddComment(ticketID, note+" | Assigned via pilot action", ""); err != nil {
			slog.Warn("normalize: audit note failed", "ticket", ticketID, "error", err)
		}
	}
	return nil
}

// RecomputeMirror rewrites the ticket's assignee mirror strictly from the
// open task set and returns the resulting user list.
func (s *Store) RecomputeMirror(ticketID string) ([]string, error) {
	users, err := s.openAssignees(ticketID)
	if err != nil {
		return nil, err
	}
	if _, err := s.writer.Execute(
		"UPDATE tickets SET assignees = ?, updated_at = ? WHERE id = ?",
		encodeMirror(users), nowSQLite(), ticketID,
	); err != nil {
		return nil, fmt.Errorf("write mirror: %w", err)
	}
	return users, nil
}

// DedupeMirror sorts and deduplicates the mirror value in place without
// consulting the task store. The repair sweep runs it ahead of RepairTicket
// so a mirror corrupted by an external write is read in canonical order.
func (s *Store) DedupeMirror(ticketID string) error {
	raw, err := s.mirrorValue(ticketID)
	if err != nil {
		return err
	}
	users := decodeMirror(raw)
	sort.Strings(users)
	cleaned := encodeMirror(users)
	if cleaned == raw {
		return nil
	}
	if _, err := s.writer.Execute(
		"UPDATE tickets SET assignees = ? WHERE id = ?", cleaned, ticketID,
	); err != nil {
		return fmt.Errorf("dedupe mirror: %w", err)
	}
	return nil
}

// AddAssignees is the hardened direct assignment operation. For each user it
// guarantees exactly one open task: the newest existing task is kept (a
// Closed one is reopened, a Cancelled one is left alone and replaced), and
// older duplicates are cancelled. Stale Closed tasks for the ticket are then
// converted to Cancelled, and the mirror is recomputed.
func (s *Store) AddAssignees(ticketID string, users []string, description string) ([]string, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return nil, fmt.Errorf("add assignees: ticket required")
	}
	if exists, err := s.TicketExists(ticketID); err != nil {
		return nil, err
	} else if !exists {
		return nil, fmt.Errorf("ticket %q not found", ticketID)
	}

	seen := map[string]struct{}{}
	for _, raw := range users {
		u := strings.TrimSpace(raw)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}

		existing, err := s.ListTasksForAssignee(ticketID, u)
		if err != nil {
			return nil, err
		}

		if len(existing) > 0 && existing[0].Status != TaskCancelled {
			newest := existing[0]
			if newest.Status != TaskOpen {
				if _, err := s.writer.Execute(
					"UPDATE tasks SET status = ? WHERE id = ?", TaskOpen, newest.ID,
				); err != nil {
					return nil, fmt.Errorf("reopen task %s: %w", newest.ID, err)
				}
			}
			for _, td := range existing[1:] {
				if td.Status != TaskCancelled {
					if err := s.CancelTask(td.ID); err != nil {
						return nil, err
					}
				}
			}
			continue
		}

		if _, err := s.CreateTask(ticketID, u, description); err != nil {
			return nil, err
		}
	}

	// Hardening: prevents reopen-on-save weirdness with stale Closed rows.
	if err := s.cancelClosedTasks(ticketID); err != nil {
		slog.Warn("add assignees: closed->cancelled hardening failed", "ticket", ticketID, "error", err)
	}

	return s.RecomputeMirror(ticketID)
}

// RemoveAssignee cancels the open tasks a user holds on a ticket and
// recomputes the mirror.
func (s *Store) RemoveAssignee(ticketID, user string) ([]string, error) {
	user = strings.TrimSpace(user)
	if ticketID == "" || user == "" {
		return nil, fmt.Errorf("remove assignee: ticket and user required")
	}
	_, err := s.writer.Execute(
		"UPDATE tasks SET status = ? WHERE ticket_id = ? AND assignee = ? AND status = ?",
		TaskCancelled, ticketID, user, TaskOpen,
	)
	if err != nil {
		return nil, fmt.Errorf("cancel open tasks: %w", err)
	}
	return s.RecomputeMirror(ticketID)
}

// RemoveAssigneeMultiple unassigns a user from several tickets at once.
// Per-ticket failures are collected, not fatal.
func (s *Store) RemoveAssigneeMultiple(ticketIDs []string, user string) (map[string][]string, error) {
	out := make(map[string][]string, len(ticketIDs))
	for _, id := range ticketIDs {
		users, err := s.RemoveAssignee(id, user)
		if err != nil {
			slog.Warn("bulk unassign failed for ticket", "ticket", id, "user", user, "error", err)
			continue
		}
		out[id] = users
	}
	return out, nil
}

// CloseAllAssignments closes every open task on a ticket and recomputes the
// mirror (to the empty set).
func (s *Store) CloseAllAssignments(ticketID string) ([]string, error) {
	if strings.TrimSpace(ticketID) == "" {
		return nil, fmt.Errorf("close all: ticket required")
	}
	_, err := s.writer.Execute(
		"UPDATE tasks SET status = ? WHERE ticket_id = ? AND status = ?",
		TaskClosed, ticketID, TaskOpen,
	)
	if err != nil {
		return nil, fmt.Errorf("close open tasks: %w", err)
	}
	return s.RecomputeMirror(ticketID)
}

// RepairTicket re-derives a ticket's assignment state from task truth. If
// the mirror names users but no open task exists, an open task is created
// for the mirror's first user before the recompute (drift self-healing).
// Idempotent.
func (s *Store) RepairTicket(ticketID string) ([]string, error) {
	open, err := s.ListOpenTasks(ticketID)
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		raw, err := s.mirrorValue(ticketID)
		if err != nil {
			return nil, err
		}
		if u := firstAssignee(raw); u != "" {
			if _, err := s.CreateTask(ticketID, u, "Recreated from assignee mirror (drift repair)"); err != nil {
				return nil, err
			}
		}
	}
	return s.RecomputeMirror(ticketID)
}
