package store

import (
	"fmt"
	"strings"
)

// EnqueueInbound queues a raw inbound message for the intake job.
func (s *Store) EnqueueInbound(account, sender, subject, body, ticketID string) (*InboundMessage, error) {
	id := NewMessageID()
	_, err := s.writer.Execute(`
		INSERT INTO inbound_messages (id, account, sender, subject, body, ticket_id, state)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, account, strings.ToLower(strings.TrimSpace(sender)), subject, body, ticketID, MessagePending)
	if err != nil {
		return nil, fmt.Errorf("enqueue inbound: %w", err)
	}
	return &InboundMessage{
		ID: id, Account: account, Sender: strings.ToLower(strings.TrimSpace(sender)),
		Subject: subject, Body: body, TicketID: ticketID, State: MessagePending,
	}, nil
}

// PendingInbound returns up to limit pending messages, oldest first,
// optionally restricted to one account.
func (s *Store) PendingInbound(account string, limit int) ([]InboundMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `
		SELECT id, account, sender, subject, body, ticket_id, state, error, created_at
		FROM inbound_messages WHERE state = ?`
	args := []interface{}{MessagePending}
	if account != "" {
		q += " AND account = ?"
		args = append(args, account)
	}
	q += " ORDER BY created_at, id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Read.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending inbound: %w", err)
	}
	defer rows.Close()

	var out []InboundMessage
	for rows.Next() {
		var m InboundMessage
		var createdAt string
		if err := rows.Scan(&m.ID, &m.Account, &m.Sender, &m.Subject, &m.Body,
			&m.TicketID, &m.State, &m.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scan inbound: %w", err)
		}
		m.CreatedAt = parseTime(createdAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

// InboundAccounts returns the distinct accounts with pending messages.
func (s *Store) InboundAccounts() ([]string, error) {
	rows, err := s.db.Read.Query(
		"SELECT DISTINCT account FROM inbound_messages WHERE state = ? ORDER BY account",
		MessagePending,
	)
	if err != nil {
		return nil, fmt.Errorf("list inbound accounts: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkInboundProcessed records successful intake of a message, including the
// ticket it ended up attached to.
func (s *Store) MarkInboundProcessed(id, ticketID string) error {
	_, err := s.writer.Execute(`
		UPDATE inbound_messages SET state = ?, ticket_id = ?, processed_at = ?
		WHERE id = ?
	`, MessageProcessed, ticketID, nowSQLite(), id)
	if err != nil {
		return fmt.Errorf("mark inbound processed: %w", err)
	}
	return nil
}

// MarkInboundError records a failed intake attempt. The message stays out of
// the pending set so one poison message cannot wedge the job.
func (s *Store) MarkInboundError(id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
		if len(msg) > 500 {
			msg = msg[:500]
		}
	}
	_, err := s.writer.Execute(`
		UPDATE inbound_messages SET state = ?, error = ?, processed_at = ?
		WHERE id = ?
	`, MessageError, msg, nowSQLite(), id)
	if err != nil {
		return fmt.Errorf("mark inbound error: %w", err)
	}
	return nil
}
