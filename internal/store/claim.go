package store

import (
	"fmt"
	"strings"
)

// Claim attempts first-claim-wins ownership of a ticket. The claim is a
// single conditional UPDATE: it succeeds only when the ticket is unassigned
// or currently owned by the shared pool identity. The row-match outcome of
// that write decides the race; there is no read-then-write window. On
// failure the result reports the current owner and no mutation is performed.
func (s *Store) Claim(ticketID, claimant string) (*ClaimResult, error) {
	ticketID = strings.TrimSpace(ticketID)
	claimant = strings.TrimSpace(claimant)
	if ticketID == "" {
		return &ClaimResult{OK: false, Reason: ReasonMissingTicket}, nil
	}
	if claimant == "" {
		return &ClaimResult{OK: false, Reason: ReasonMissingArgs}, nil
	}

	claimantMirror := encodeMirror([]string{claimant})
	poolMirror := encodeMirror([]string{s.poolUser})

	res, err := s.writer.Execute(`
		UPDATE tickets
		   SET assignees = ?, updated_at = ?
		 WHERE id = ?
		   AND (assignees = '' OR assignees = '[]' OR assignees = ?)
	`, claimantMirror, nowSQLite(), ticketID, poolMirror)
	if err != nil {
		return nil, fmt.Errorf("claim write: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim rows affected: %w", err)
	}
	if n == 0 {
		// The conditional write also misses when the ticket does not
		// exist at all; report that as its own reason, not a race loss.
		if exists, err := s.TicketExists(ticketID); err != nil {
			return nil, err
		} else if !exists {
			return &ClaimResult{OK: false, Ticket: ticketID, Reason: ReasonMissingTicket}, nil
		}
		current, err := s.mirrorValue(ticketID)
		if err != nil {
			return nil, err
		}
		return &ClaimResult{
			OK:         false,
			Ticket:     ticketID,
			AssignedTo: firstAssignee(current),
			Reason:     ReasonAlreadyClaimed,
		}, nil
	}

	if err := s.Normalize(ticketID, claimant, "Claim"); err != nil {
		return nil, err
	}
	return &ClaimResult{OK: true, Ticket: ticketID, AssignedTo: claimant}, nil
}

// Handoff reassigns a ticket from its current owner to toUser. Only the
// current owner may hand off their own ticket; adminish actors may hand off
// anything. A same-owner handoff is a no-op failure unless mirror drift is
// detected, in which case it becomes a repair (normalized=true).
func (s *Store) Handoff(ticketID, actor string, adminish bool, toUser, reason string) (*HandoffResult, error) {
	ticketID = strings.TrimSpace(ticketID)
	toUser = strings.TrimSpace(toUser)
	reason = strings.TrimSpace(reason)

	if ticketID == "" || toUser == "" {
		return &HandoffResult{OK: false, Reason: ReasonMissingArgs}, nil
	}

	exists, err := s.UserExists(toUser)
	if err != nil {
		return nil, err
	}
	if !exists {
		return &HandoffResult{OK: false, Reason: ReasonInvalidUser, To: toUser}, nil
	}

	if exists, err := s.TicketExists(ticketID); err != nil {
		return nil, err
	} else if !exists {
		return &HandoffResult{OK: false, Ticket: ticketID, Reason: ReasonMissingTicket}, nil
	}

	current, err := s.mirrorValue(ticketID)
	if err != nil {
		return nil, err
	}
	fromUser := firstAssignee(current)

	if !adminish {
		if fromUser == "" {
			return &HandoffResult{OK: false, Reason: ReasonNotAssigned}, nil
		}
		if fromUser != actor {
			return &HandoffResult{OK: false, Reason: ReasonNotOwner, From: fromUser}, nil
		}
	}

	if fromUser == toUser {
		// Multi-assignee drift: normalize anyway instead of short-circuiting.
		if len(decodeMirror(current)) > 1 {
			msg := fmt.Sprintf("Normalize: keep %s as owner", toUser)
			if reason != "" {
				msg += " | Reason: " + reason
			}
			if err := s.Normalize(ticketID, toUser, msg); err != nil {
				return nil, err
			}
			return &HandoffResult{OK: true, Ticket: ticketID, From: fromUser, To: toUser, Normalized: true}, nil
		}
		return &HandoffResult{OK: false, Ticket: ticketID, To: toUser, Reason: ReasonAlreadyAssigned}, nil
	}

	from := fromUser
	if from == "" {
		from = "Unassigned"
	}
	msg := fmt.Sprintf("Handoff: %s -> %s", from, toUser)
	if reason != "" {
		msg += " | Reason: " + reason
	}

	if err := s.Normalize(ticketID, toUser, msg); err != nil {
		return nil, err
	}
	return &HandoffResult{OK: true, Ticket: ticketID, From: fromUser, To: toUser}, nil
}
