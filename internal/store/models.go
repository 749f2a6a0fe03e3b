package store

import "time"

// Ticket statuses
const (
	TicketOpen     = "Open"
	TicketReplied  = "Replied"
	TicketResolved = "Resolved"
	TicketClosed   = "Closed"
)

// Task statuses. Cancelled is terminal: later logic must never resurrect a
// Cancelled task to Open. Closed marks superseded assignments but has been
// observed to reopen under some save paths, so hardening passes convert
// stale Closed tasks to Cancelled.
const (
	TaskOpen      = "Open"
	TaskClosed    = "Closed"
	TaskCancelled = "Cancelled"
)

// Result reason codes shared by the claim/handoff protocol and the direct
// assignment operations. Failures are reported through these structured
// results, never through raw errors, so the RPC layer stays uniform.
const (
	ReasonMissingTicket   = "missing_ticket"
	ReasonMissingArgs     = "missing_args"
	ReasonInvalidUser     = "invalid_user"
	ReasonAlreadyClaimed  = "already_claimed"
	ReasonAlreadyAssigned = "already_assigned"
	ReasonNotAssigned     = "not_assigned"
	ReasonNotOwner        = "not_owner"
)

// Ticket is a helpdesk ticket row. Assignees is the denormalized mirror of
// current assignees, derived from open tasks; the tasks table is truth.
type Ticket struct {
	ID           string    `json:"id"`
	Subject      string    `json:"subject"`
	Description  string    `json:"description"`
	Status       string    `json:"status"`
	Group        string    `json:"group"`
	EmailAccount string    `json:"email_account,omitempty"`
	Sender       string    `json:"sender,omitempty"`
	Customer     string    `json:"customer,omitempty"`
	Site         string    `json:"site,omitempty"`
	EquipmentRef string    `json:"equipment_ref,omitempty"`
	Assignees    []string  `json:"assignees"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Task is a per-assignee work item linked to a ticket.
type Task struct {
	ID          string    `json:"id"`
	TicketID    string    `json:"ticket_id"`
	Assignee    string    `json:"assignee"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// User is an operator account. Role is one of the policy package's roles.
type User struct {
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role"`
	Enabled  bool   `json:"enabled"`
}

// Comment is an audit note on a ticket's activity trail.
type Comment struct {
	ID        int64     `json:"id"`
	TicketID  string    `json:"ticket_id"`
	Content   string    `json:"content"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Location is a serviceable site.
type Location struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	Parent      string `json:"parent,omitempty"`
}

// InboundMessage is a raw inbound email-shaped message queued for intake.
type InboundMessage struct {
	ID        string    `json:"id"`
	Account   string    `json:"account"`
	Sender    string    `json:"sender"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	TicketID  string    `json:"ticket_id,omitempty"`
	State     string    `json:"state"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Inbound message states
const (
	MessagePending   = "pending"
	MessageProcessed = "processed"
	MessageError     = "error"
)

// ClaimResult is the structured outcome of a claim attempt.
type ClaimResult struct {
	OK         bool   `json:"ok"`
	Ticket     string `json:"ticket,omitempty"`
	AssignedTo string `json:"assigned_to,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// HandoffResult is the structured outcome of a handoff attempt.
type HandoffResult struct {
	OK         bool   `json:"ok"`
	Ticket     string `json:"ticket,omitempty"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Normalized bool   `json:"normalized,omitempty"`
}
