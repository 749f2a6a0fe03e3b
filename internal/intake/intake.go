package intake

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/switchyardhq/switchyard/internal/cache"
	"github.com/switchyardhq/switchyard/internal/config"
	"github.com/switchyardhq/switchyard/internal/store"
)

const crumbBase = "intake"

// Processor runs the intake pipeline for one inbound message: ensure a
// ticket, classify bounces, parse tokens, map the customer, and draft an
// autoreply. It is safe to call repeatedly for the same message: field
// writes are fill-if-empty and drafts are deduplicated.
type Processor struct {
	store      *store.Store
	cache      *cache.Cache
	classifier *Classifier
	signer     *TokenSigner
	autoreply  config.AutoreplyConfig
	guardTTL   time.Duration
}

// NewProcessor wires an intake processor from the pilot configuration.
func NewProcessor(st *store.Store, ca *cache.Cache, cfg config.Config) *Processor {
	return &Processor{
		store:      st,
		cache:      ca,
		classifier: NewClassifier(cfg.Bounce.SenderPrefixes, cfg.Bounce.SubjectContains),
		signer:     NewTokenSigner(cfg.Autoreply.ConfirmSecret),
		autoreply:  cfg.Autoreply,
		guardTTL:   cfg.Bounce.GuardTTL.Std(),
	}
}

// Result describes what intake did with a message.
type Result struct {
	TicketID       string   `json:"ticket_id"`
	Created        bool     `json:"created"`
	Bounce         bool     `json:"bounce"`
	FieldsWritten  []string `json:"fields_written,omitempty"`
	CustomerReason string   `json:"customer_reason,omitempty"`
	AutoreplyDraft bool     `json:"autoreply_draft,omitempty"`
}

// ProcessMessage runs intake for one inbound message. A bounce closes the
// referenced ticket and records a rate-limited bounce-guard breadcrumb; it
// never reaches the parser, the task store, or the router.
func (p *Processor) ProcessMessage(msg store.InboundMessage) (*Result, error) {
	res := &Result{TicketID: msg.TicketID}

	if res.TicketID == "" {
		t, err := p.store.CreateTicket(store.CreateTicketRequest{
			Subject:      msg.Subject,
			Description:  msg.Body,
			Group:        msg.Account,
			EmailAccount: msg.Account,
			Sender:       msg.Sender,
		})
		if err != nil {
			return nil, fmt.Errorf("intake: create ticket: %w", err)
		}
		res.TicketID = t.ID
		res.Created = true
	}

	if p.classifier.IsBounce(msg.Sender, msg.Subject) {
		res.Bounce = true
		if err := p.store.SetTicketStatus(res.TicketID, store.TicketClosed); err != nil {
			return nil, fmt.Errorf("intake: close bounced ticket: %w", err)
		}
		p.recordBounceGuard(res.TicketID, msg.Sender, msg.Subject)
		return res, nil
	}

	if err := p.populateFields(msg, res); err != nil {
		return nil, err
	}

	// Routing is the after-insert hook; only freshly created tickets route.
	if res.Created {
		if err := p.store.RouteNewTicket(res.TicketID); err != nil {
			return nil, fmt.Errorf("intake: route ticket: %w", err)
		}
	}

	if p.autoreply.Enabled {
		p.draftAutoreply(msg, res)
	}

	return res, nil
}

// populateFields parses tokens and maps the customer, writing ticket fields
// only where they are empty.
func (p *Processor) populateFields(msg store.InboundMessage, res *Result) error {
	text := msg.Subject + "\n" + msg.Body
	tokens := ParseTokens(text)

	updates := map[string]string{}

	if tokens.Site != "" {
		loc, err := p.store.ResolveLocation(tokens.Site)
		if err != nil {
			return fmt.Errorf("intake: resolve site: %w", err)
		}
		if loc != "" {
			updates["site"] = loc
		}
	}
	if tokens.Asset != "" {
		updates["equipment_ref"] = tokens.Asset
	}

	customer, reason, err := p.store.CustomerFromSender(msg.Sender)
	if err != nil {
		// Customer mapping is a best-effort enrichment; record and move on.
		slog.Warn("intake: customer lookup failed", "sender", msg.Sender, "error", err)
		reason = "lookup_error"
	}
	res.CustomerReason = reason
	if customer != "" {
		updates["customer"] = customer
	}

	p.crumb("last_sender", msg.Sender)
	p.crumb("last_customer_map_reason", reason)

	written, err := p.store.SetTicketFields(res.TicketID, updates)
	if err != nil {
		return fmt.Errorf("intake: write ticket fields: %w", err)
	}
	res.FieldsWritten = written

	if len(written) > 0 {
		p.crumb("last_ticket", res.TicketID)
		p.crumb("last_updates", strings.Join(written, ","))
	}
	return nil
}

// draftAutoreply records an autoreply draft for the message, deduplicated by
// a TTL marker so the same inbound event never drafts twice. Drafts are
// breadcrumbs only; nothing is sent.
func (p *Processor) draftAutoreply(msg store.InboundMessage, res *Result) {
	to := strings.ToLower(strings.TrimSpace(msg.Sender))
	if to == "" {
		return
	}

	t, err := p.store.GetTicket(res.TicketID)
	if err != nil {
		slog.Warn("intake: autoreply ticket read failed", "ticket", res.TicketID, "error", err)
		return
	}
	if p.autoreply.RequireCustomer && t.Customer == "" {
		return
	}

	key := "autoreply:" + fingerprint(res.TicketID, to, msg.Subject)
	won, err := p.cache.SetIfAbsent(key, nowStamp(), p.autoreply.DedupeTTL.Std())
	if err != nil {
		slog.Warn("intake: autoreply dedupe failed", "ticket", res.TicketID, "error", err)
		return
	}
	if !won {
		return
	}

	base := strings.TrimRight(p.autoreply.BaseURL, "/")
	ticketLink := base + "/tickets/" + res.TicketID

	var confirmLink string
	if p.signer != nil && t.Customer != "" {
		confirmLink, err = p.signer.ConfirmLink(base, res.TicketID, t.Customer, p.autoreply.DedupeTTL.Std())
		if err != nil {
			slog.Warn("intake: confirm link failed", "ticket", res.TicketID, "error", err)
			confirmLink = ""
		}
	}

	subject := fmt.Sprintf("Ticket %s received", res.TicketID)
	body := fmt.Sprintf("Hi,\n\nWe created Ticket %s.\n\n", res.TicketID)
	if confirmLink != "" {
		body += "Please confirm the details here:\n" + confirmLink + "\n\n"
	}
	body += "You can view the ticket here:\n" + ticketLink + "\n\nThanks."

	p.crumb("last_autoreply_to", to)
	p.crumb("last_autoreply_subject", subject)
	p.crumb("last_autoreply_body", body)
	res.AutoreplyDraft = true
}

// recordBounceGuard writes a rate-limited bounce breadcrumb keyed by a hash
// of (ticket, sender, subject).
func (p *Processor) recordBounceGuard(ticketID, sender, subject string) {
	key := "bounce:" + fingerprint(ticketID, sender, subject)
	won, err := p.cache.SetIfAbsent(key, nowStamp(), p.guardTTL)
	if err != nil {
		slog.Warn("intake: bounce guard write failed", "ticket", ticketID, "error", err)
		return
	}
	if won {
		p.crumb("last_bounce_ticket", ticketID)
		p.crumb("last_bounce_sender", strings.ToLower(strings.TrimSpace(sender)))
	}
}

// PopulateTicket runs token parsing and customer mapping against an existing
// ticket, for UI-created tickets that never pass through the message queue.
func (p *Processor) PopulateTicket(ticketID, sender, subject, body string) ([]string, error) {
	res := &Result{TicketID: ticketID}
	msg := store.InboundMessage{
		TicketID: ticketID,
		Sender:   strings.ToLower(strings.TrimSpace(sender)),
		Subject:  subject,
		Body:     body,
	}
	if err := p.populateFields(msg, res); err != nil {
		return nil, err
	}
	return res.FieldsWritten, nil
}

// Signer exposes the confirm-token signer (for the confirm endpoint).
func (p *Processor) Signer() *TokenSigner {
	return p.signer
}

func (p *Processor) crumb(key, val string) {
	if err := p.cache.Set(crumbBase+":"+key, val); err != nil {
		slog.Debug("intake breadcrumb failed", "key", key, "error", err)
	}
}

func fingerprint(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(strings.ToLower(strings.TrimSpace(part))))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
