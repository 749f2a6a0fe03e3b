package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/switchyardhq/switchyard/internal/cache"
	"github.com/switchyardhq/switchyard/internal/intake"
	"github.com/switchyardhq/switchyard/internal/store"
)

// Config holds scheduler configuration.
type Config struct {
	Interval        time.Duration // base tick cadence (default 1s)
	PullInterval    time.Duration // drain pending inbound messages
	RepairInterval  time.Duration // re-derive mirrors from task truth
	CacheGCInterval time.Duration // badger value-log GC
	PullBatch       int           // max messages per account per pull
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:        1 * time.Second,
		PullInterval:    15 * time.Second,
		RepairInterval:  5 * time.Minute,
		CacheGCInterval: 10 * time.Minute,
		PullBatch:       50,
	}
}

// Scheduler runs the periodic jobs: the pull-inboxes drain, the assignment
// repair sweep, and cache maintenance.
type Scheduler struct {
	store  *store.Store
	cache  *cache.Cache
	intake *intake.Processor
	config Config

	lastPull   time.Time
	lastRepair time.Time
	lastGC     time.Time
}

// New creates a new Scheduler.
func New(s *store.Store, c *cache.Cache, p *intake.Processor, config Config) *Scheduler {
	def := DefaultConfig()
	if config.Interval == 0 {
		config.Interval = def.Interval
	}
	if config.PullInterval == 0 {
		config.PullInterval = def.PullInterval
	}
	if config.RepairInterval == 0 {
		config.RepairInterval = def.RepairInterval
	}
	if config.CacheGCInterval == 0 {
		config.CacheGCInterval = def.CacheGCInterval
	}
	if config.PullBatch == 0 {
		config.PullBatch = def.PullBatch
	}
	return &Scheduler{store: s, cache: c, intake: p, config: config}
}

// Run starts the scheduler loop. It blocks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("scheduler started", "interval", s.config.Interval)
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(false)
		}
	}
}

func (s *Scheduler) tick(force bool) {
	now := time.Now()

	if force || now.Sub(s.lastPull) >= s.config.PullInterval {
		if err := s.PullInboxes(); err != nil {
			slog.Error("pull inboxes", "error", err)
		}
		s.lastPull = now
	}
	if force || now.Sub(s.lastRepair) >= s.config.RepairInterval {
		if err := s.repairSweep(); err != nil {
			slog.Error("assignment repair sweep", "error", err)
		}
		s.lastRepair = now
	}
	if force || now.Sub(s.lastGC) >= s.config.CacheGCInterval {
		if err := s.cache.RunGC(); err != nil {
			slog.Error("cache gc", "error", err)
		}
		s.lastGC = now
	}
}

// RunOnce executes a single scheduler tick with all jobs forced. Useful for
// testing.
func (s *Scheduler) RunOnce() {
	s.tick(true)
}

// repairSweep re-derives the mirror from task truth for recently touched
// open tickets. Drift is never an error; it is silently repaired.
func (s *Scheduler) repairSweep() error {
	rows, err := s.store.ReadDB().Query(`
		SELECT id FROM tickets
		WHERE status != ? AND updated_at >= datetime('now', '-1 day')
		ORDER BY updated_at DESC LIMIT 500
	`, store.TicketClosed)
	if err != nil {
		return err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range ids {
		// Clean duplicate mirror entries first so the repair reads a
		// canonical list when it has to recreate a task from the mirror.
		if err := s.store.DedupeMirror(id); err != nil {
			slog.Warn("repair sweep: mirror dedupe failed", "ticket", id, "error", err)
		}
		if _, err := s.store.RepairTicket(id); err != nil {
			slog.Warn("repair sweep: ticket failed", "ticket", id, "error", err)
		}
	}
	return nil
}
