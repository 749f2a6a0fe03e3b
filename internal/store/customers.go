package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// Reason codes for customer-from-sender mapping. Kept as breadcrumbs so an
// operator can see why a ticket did or did not get a customer.
const (
	CustomerReasonEmptyEmail    = "empty_email"
	CustomerReasonContactMatch  = "contact_email_match"
	CustomerReasonNoLink        = "no_customer_link"
	CustomerReasonMultipleLinks = "multiple_customer_links"
	CustomerReasonDirectMatch   = "customer_direct_match"
	CustomerReasonNoMatch       = "no_match"
)

// CustomerFromSender maps a sender email to a customer, returning the
// customer name (or "") plus a reason code describing the outcome.
func (s *Store) CustomerFromSender(email string) (string, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", CustomerReasonEmptyEmail, nil
	}

	// 1) Contact link. Ambiguous links (a contact tied to several
	// customers) are rejected rather than guessed at.
	rows, err := s.db.Read.Query(
		"SELECT DISTINCT customer FROM contacts WHERE email = ? AND customer != '' LIMIT 2",
		email,
	)
	if err != nil {
		return "", "", fmt.Errorf("query contacts: %w", err)
	}
	var links []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			rows.Close()
			return "", "", fmt.Errorf("scan contact link: %w", err)
		}
		links = append(links, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", "", err
	}

	if len(links) == 1 {
		return links[0], CustomerReasonContactMatch, nil
	}
	if len(links) > 1 {
		return "", CustomerReasonMultipleLinks, nil
	}

	var hasContact int
	if err := s.db.Read.QueryRow("SELECT COUNT(*) FROM contacts WHERE email = ?", email).Scan(&hasContact); err != nil {
		return "", "", fmt.Errorf("count contacts: %w", err)
	}
	if hasContact > 0 {
		return "", CustomerReasonNoLink, nil
	}

	// 2) Customer direct email.
	var cust string
	err = s.db.Read.QueryRow("SELECT name FROM customers WHERE email = ?", email).Scan(&cust)
	if err == nil {
		return cust, CustomerReasonDirectMatch, nil
	}
	if err != sql.ErrNoRows {
		return "", "", fmt.Errorf("query customers: %w", err)
	}

	return "", CustomerReasonNoMatch, nil
}

// UpsertCustomer creates or updates a customer.
func (s *Store) UpsertCustomer(name, email string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("upsert customer: name required")
	}
	_, err := s.writer.Execute(`
		INSERT INTO customers (name, email) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET email = excluded.email
	`, name, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}

// LinkContact records a contact email -> customer link.
func (s *Store) LinkContact(email, customer string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("link contact: email required")
	}
	_, err := s.writer.Execute(
		"INSERT INTO contacts (email, customer) VALUES (?, ?)", email, customer,
	)
	if err != nil {
		return fmt.Errorf("link contact: %w", err)
	}
	return nil
}
