package scheduler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Bump this any time the pull logic changes so an operator can confirm the
// scheduler is running the new code.
const jobFingerprint = "pull-inboxes/3"

const crumbBase = "job:pull_inboxes"

type accountStats struct {
	Mails     int    `json:"mails"`
	Processed int    `json:"processed"`
	Error     string `json:"error,omitempty"`
}

// PullInboxes drains pending inbound messages per account under a cache-held
// mutual-exclusion lock, recording breadcrumbs for external monitoring.
// Per-account failures do not stop the run.
func (s *Scheduler) PullInboxes() error {
	s.crumb("fingerprint", jobFingerprint)
	s.crumb("last_run", nowStamp())
	s.crumb("stage", "start")
	s.crumb("last_err", "")

	lock, acquired, err := s.cache.AcquireLock("pull_inboxes", 55*time.Second)
	if err != nil {
		return fmt.Errorf("acquire pull lock: %w", err)
	}
	if !acquired {
		s.crumb("lock_acquired", "0")
		s.crumb("last_skip", nowStamp())
		s.crumb("stage", "skipped")
		return nil
	}
	s.crumb("lock_acquired", "1")
	s.crumb("last_start", nowStamp())
	defer func() {
		if err := lock.Release(); err != nil {
			slog.Warn("pull inboxes: lock release failed", "error", err)
		}
	}()

	accounts, err := s.store.InboundAccounts()
	if err != nil {
		s.crumb("last_err", err.Error())
		s.crumb("stage", "fatal")
		return err
	}

	total := 0
	per := map[string]accountStats{}

	for _, acct := range accounts {
		s.crumb("stage", "acct:"+acct+":start")

		msgs, err := s.store.PendingInbound(acct, s.config.PullBatch)
		if err != nil {
			per[acct] = accountStats{Error: truncate(err.Error(), 500)}
			s.crumb("last_err", acct+": "+truncate(err.Error(), 500))
			s.crumb("stage", "acct:"+acct+":error")
			continue
		}

		stats := accountStats{Mails: len(msgs)}
		for _, m := range msgs {
			res, err := s.intake.ProcessMessage(m)
			if err != nil {
				if markErr := s.store.MarkInboundError(m.ID, err); markErr != nil {
					slog.Warn("pull inboxes: mark error failed", "message", m.ID, "error", markErr)
				}
				s.crumb("last_err", acct+": "+truncate(err.Error(), 500))
				continue
			}
			if err := s.store.MarkInboundProcessed(m.ID, res.TicketID); err != nil {
				slog.Warn("pull inboxes: mark processed failed", "message", m.ID, "error", err)
				continue
			}
			stats.Processed++
			s.crumb("last_ticket", res.TicketID)
		}
		total += stats.Processed
		per[acct] = stats
		s.crumb("stage", "acct:"+acct+":done")
	}

	if b, err := json.Marshal(per); err == nil {
		s.crumb("per_account", string(b))
	}
	s.crumb("processed_last_run", fmt.Sprintf("%d", total))
	s.crumb("last_ok", nowStamp())
	s.crumb("stage", "done")
	return nil
}

func (s *Scheduler) crumb(key, val string) {
	if err := s.cache.Set(crumbBase+":"+key, val); err != nil {
		slog.Debug("pull breadcrumb failed", "key", key, "error", err)
	}
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
