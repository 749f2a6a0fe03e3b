package intake

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSigner issues and verifies the signed tokens embedded in customer
// confirm links, so the public confirm page can verify a (ticket, customer)
// binding without a session.
type TokenSigner struct {
	secret []byte
}

// NewTokenSigner creates a signer. An empty secret disables confirm links.
func NewTokenSigner(secret string) *TokenSigner {
	if strings.TrimSpace(secret) == "" {
		return nil
	}
	return &TokenSigner{secret: []byte(secret)}
}

type confirmClaims struct {
	Ticket   string `json:"ticket"`
	Customer string `json:"customer"`
	jwt.RegisteredClaims
}

// ConfirmToken signs a confirm token for a ticket/customer pair.
func (s *TokenSigner) ConfirmToken(ticket, customer string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	c := confirmClaims{
		Ticket:   ticket,
		Customer: customer,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign confirm token: %w", err)
	}
	return signed, nil
}

// VerifyConfirmToken validates a token and returns the bound ticket and
// customer.
func (s *TokenSigner) VerifyConfirmToken(token string) (ticket, customer string, err error) {
	c := confirmClaims{}
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), &c, func(t *jwt.Token) (any, error) {
		if t.Method == nil || t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm")
		}
		return s.secret, nil
	}, jwt.WithLeeway(2*time.Minute))
	if err != nil {
		return "", "", fmt.Errorf("verify confirm token: %w", err)
	}
	if !parsed.Valid {
		return "", "", fmt.Errorf("invalid confirm token")
	}
	return c.Ticket, c.Customer, nil
}

// ConfirmLink builds the full confirm URL for a ticket/customer pair.
func (s *TokenSigner) ConfirmLink(baseURL, ticket, customer string, ttl time.Duration) (string, error) {
	token, err := s.ConfirmToken(ticket, customer, ttl)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(baseURL, "/") + "/confirm?token=" + url.QueryEscape(token), nil
}
