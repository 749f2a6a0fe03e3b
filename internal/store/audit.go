package store

import "fmt"

// AddComment appends an audit note to a ticket's activity trail.
func (s *Store) AddComment(ticketID, content, author string) error {
	_, err := s.writer.Execute(
		"INSERT INTO comments (ticket_id, content, author) VALUES (?, ?, ?)",
		ticketID, content, author,
	)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// ListComments returns a ticket's activity trail, oldest first.
func (s *Store) ListComments(ticketID string) ([]Comment, error) {
	rows, err := s.db.Read.Query(`
		SELECT id, ticket_id, content, author, created_at
		FROM comments WHERE ticket_id = ? ORDER BY id
	`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var c Comment
		var createdAt string
		if err := rows.Scan(&c.ID, &c.TicketID, &c.Content, &c.Author, &createdAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}
