package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// UpsertLocation creates or updates a location.
func (s *Store) UpsertLocation(l Location) error {
	name := strings.TrimSpace(l.Name)
	if name == "" {
		return fmt.Errorf("upsert location: name required")
	}
	_, err := s.writer.Execute(`
		INSERT INTO locations (name, display_name, parent) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET display_name = excluded.display_name,
			parent = excluded.parent
	`, name, l.DisplayName, l.Parent)
	if err != nil {
		return fmt.Errorf("upsert location: %w", err)
	}
	return nil
}

// ResolveLocation maps a SITE label to a location name. Lookup order:
// exact name, exact display name, then a conservative prefix match on
// either. Returns "" when nothing matches.
func (s *Store) ResolveLocation(label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", nil
	}

	var name string
	err := s.db.Read.QueryRow("SELECT name FROM locations WHERE name = ?", label).Scan(&name)
	if err == nil {
		return name, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("resolve location: %w", err)
	}

	err = s.db.Read.QueryRow("SELECT name FROM locations WHERE display_name = ?", label).Scan(&name)
	if err == nil {
		return name, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("resolve location: %w", err)
	}

	err = s.db.Read.QueryRow(`
		SELECT name FROM locations
		WHERE name LIKE ? OR display_name LIKE ?
		ORDER BY name LIMIT 1
	`, label+"%", label+"%").Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve location: %w", err)
	}
	return name, nil
}
