package store

import (
	"fmt"
	"sort"
	"strings"
)

// ListOpenTasks returns the open tasks for a ticket, newest first. The
// ordering makes "pick the most recent task as canonical owner"
// deterministic for the normalizer and the router's collapse path.
func (s *Store) ListOpenTasks(ticketID string) ([]Task, error) {
	rows, err := s.db.Read.Query(`
		SELECT id, ticket_id, assignee, status, description, created_at
		FROM tasks
		WHERE ticket_id = ? AND status = ?
		ORDER BY created_at DESC, id DESC
	`, ticketID, TaskOpen)
	if err != nil {
		return nil, fmt.Errorf("list open tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		var createdAt string
		if err := rows.Scan(&t.ID, &t.TicketID, &t.Assignee, &t.Status, &t.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.CreatedAt = parseTime(createdAt)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ListTasksForAssignee returns all tasks for a (ticket, assignee) pair,
// newest first, regardless of status.
func (s *Store) ListTasksForAssignee(ticketID, assignee string) ([]Task, error) {
	rows, err := s.db.Read.Query(`
		SELECT id, ticket_id, assignee, status, description, created_at
		FROM tasks
		WHERE ticket_id = ? AND assignee = ?
		ORDER BY created_at DESC, id DESC
	`, ticketID, assignee)
	if err != nil {
		return nil, fmt.Errorf("list tasks for assignee: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		var createdAt string
		if err := rows.Scan(&t.ID, &t.TicketID, &t.Assignee, &t.Status, &t.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.CreatedAt = parseTime(createdAt)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CreateTask inserts a new open task for an assignee.
func (s *Store) CreateTask(ticketID, assignee, description string) (*Task, error) {
	assignee = strings.TrimSpace(assignee)
	if ticketID == "" || assignee == "" {
		return nil, fmt.Errorf("create task: ticket and assignee required")
	}
	id := NewTaskID()
	_, err := s.writer.Execute(`
		INSERT INTO tasks (id, ticket_id, assignee, status, description)
		VALUES (?, ?, ?, ?, ?)
	`, id, ticketID, assignee, TaskOpen, description)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return &Task{ID: id, TicketID: ticketID, Assignee: assignee, Status: TaskOpen, Description: description}, nil
}

// CloseTask marks a task Closed (superseded assignment).
func (s *Store) CloseTask(taskID string) error {
	return s.setTaskStatus(taskID, TaskClosed)
}

// CancelTask marks a task Cancelled. Cancelled is terminal.
func (s *Store) CancelTask(taskID string) error {
	return s.setTaskStatus(taskID, TaskCancelled)
}

func (s *Store) setTaskStatus(taskID, status string) error {
	res, err := s.writer.Execute("UPDATE tasks SET status = ? WHERE id = ?", status, taskID)
	if err != nil {
		return fmt.Errorf("set task status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %q not found", taskID)
	}
	return nil
}

// openAssignees returns the sorted, deduplicated set of assignees holding an
// open task for the ticket. This is the truth the mirror is recomputed from.
func (s *Store) openAssignees(ticketID string) ([]string, error) {
	rows, err := s.db.Read.Query(
		"SELECT assignee FROM tasks WHERE ticket_id = ? AND status = ?",
		ticketID, TaskOpen,
	)
	if err != nil {
		return nil, fmt.Errorf("query open assignees: %w", err)
	}
	defer rows.Close()

	seen := map[string]struct{}{}
	out := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan assignee: %w", err)
		}
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// cancelClosedTasks converts Closed tasks for a ticket to Cancelled. Closed
// tasks were seen resurrecting to Open under certain save paths; Cancelled
// never does.
func (s *Store) cancelClosedTasks(ticketID string) error {
	_, err := s.writer.Execute(
		"UPDATE tasks SET status = ? WHERE ticket_id = ? AND status = ?",
		TaskCancelled, ticketID, TaskClosed,
	)
	if err != nil {
		return fmt.Errorf("cancel closed tasks: %w", err)
	}
	return nil
}
