package scheduler_test

import (
	"testing"

	"github.com/switchyardhq/switchyard/internal/cache"
	"github.com/switchyardhq/switchyard/internal/config"
	"github.com/switchyardhq/switchyard/internal/intake"
	"github.com/switchyardhq/switchyard/internal/scheduler"
	"github.com/switchyardhq/switchyard/internal/store"
)

func testScheduler(t *testing.T) (*scheduler.Scheduler, *store.Store, *cache.Cache) {
	t.Helper()
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	s := store.NewStore(db)
	s.SetPoolUser("helpdesk@local.test")
	s.SetRotationPools(map[string][]string{
		"support@acme.test": {"alice@x.test", "bob@x.test"},
	})

	c, err := cache.Open(t.TempDir())
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	p := intake.NewProcessor(s, c, config.Default())
	sched := scheduler.New(s, c, p, scheduler.Config{})
	return sched, s, c
}

func TestRunOnceDrainsPendingMessages(t *testing.T) {
	sched, s, c := testScheduler(t)

	for i := 0; i < 3; i++ {
		if _, err := s.EnqueueInbound("support@acme.test", "jdoe@acme.test",
			"Machine trouble", "SITE: nowhere", ""); err != nil {
			t.Fatalf("EnqueueInbound: %v", err)
		}
	}

	sched.RunOnce()

	pending, err := s.PendingInbound("", 100)
	if err != nil {
		t.Fatalf("PendingInbound: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after run = %d, want 0", len(pending))
	}

	// Each message became a ticket, round-robined across the pool.
	var count int
	if err := s.ReadDB().QueryRow("SELECT COUNT(*) FROM tickets").Scan(&count); err != nil {
		t.Fatalf("count tickets: %v", err)
	}
	if count != 3 {
		t.Fatalf("tickets = %d, want 3", count)
	}

	if v, found, _ := c.Get("job:pull_inboxes:stage"); !found || v != "done" {
		t.Errorf("stage crumb = (%q, %v), want (done, true)", v, found)
	}
	if v, found, _ := c.Get("job:pull_inboxes:processed_last_run"); !found || v != "3" {
		t.Errorf("processed crumb = (%q, %v), want (3, true)", v, found)
	}
}

func TestPullInboxesSkipsWhenLocked(t *testing.T) {
	sched, s, c := testScheduler(t)

	if _, err := s.EnqueueInbound("support@acme.test", "jdoe@acme.test", "Hi", "", ""); err != nil {
		t.Fatalf("EnqueueInbound: %v", err)
	}

	// Another worker holds the lock.
	if _, ok, err := c.AcquireLock("pull_inboxes", 0); err != nil || !ok {
		t.Fatalf("pre-acquire lock: ok=%v err=%v", ok, err)
	}

	if err := sched.PullInboxes(); err != nil {
		t.Fatalf("PullInboxes: %v", err)
	}

	pending, err := s.PendingInbound("", 100)
	if err != nil {
		t.Fatalf("PendingInbound: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1 (run must skip under contention)", len(pending))
	}
	if v, _, _ := c.Get("job:pull_inboxes:stage"); v != "skipped" {
		t.Errorf("stage crumb = %q, want skipped", v)
	}
	if v, _, _ := c.Get("job:pull_inboxes:lock_acquired"); v != "0" {
		t.Errorf("lock crumb = %q, want 0", v)
	}
}

func TestPullInboxesMarksPoisonMessages(t *testing.T) {
	sched, s, _ := testScheduler(t)

	// A bounce referencing a missing ticket makes intake fail closing it.
	if _, err := s.EnqueueInbound("support@acme.test", "mailer-daemon@mx.test",
		"Undelivered Mail Returned to Sender", "", "tkt_missing"); err != nil {
		t.Fatalf("EnqueueInbound: %v", err)
	}
	if _, err := s.EnqueueInbound("support@acme.test", "jdoe@acme.test",
		"Legit request", "", ""); err != nil {
		t.Fatalf("EnqueueInbound: %v", err)
	}

	if err := sched.PullInboxes(); err != nil {
		t.Fatalf("PullInboxes: %v", err)
	}

	// Both messages left pending state; the poison one as error.
	pending, err := s.PendingInbound("", 100)
	if err != nil {
		t.Fatalf("PendingInbound: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending = %d, want 0", len(pending))
	}

	var states []string
	rows, err := s.ReadDB().Query("SELECT state FROM inbound_messages ORDER BY created_at, id")
	if err != nil {
		t.Fatalf("query states: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st string
		if err := rows.Scan(&st); err != nil {
			t.Fatalf("scan: %v", err)
		}
		states = append(states, st)
	}
	if len(states) != 2 || states[0] != store.MessageError || states[1] != store.MessageProcessed {
		t.Fatalf("states = %v, want [error processed]", states)
	}
}

func TestRunOnceRepairsDriftedTickets(t *testing.T) {
	sched, s, _ := testScheduler(t)

	tk, err := s.CreateTicket(store.CreateTicketRequest{Subject: "Drifted"})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if _, err := s.ReadDB().Exec(
		"UPDATE tickets SET assignees = ? WHERE id = ?", `["carol@x.test"]`, tk.ID,
	); err != nil {
		t.Fatalf("seed drift: %v", err)
	}

	sched.RunOnce()

	tasks, err := s.ListOpenTasks(tk.ID)
	if err != nil {
		t.Fatalf("ListOpenTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Assignee != "carol@x.test" {
		t.Fatalf("open tasks after sweep = %+v, want carol's recreated task", tasks)
	}
}

func TestRunOnceDedupesCorruptedMirror(t *testing.T) {
	sched, s, _ := testScheduler(t)

	tk, err := s.CreateTicket(store.CreateTicketRequest{Subject: "Doubled up"})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	// An external write appended duplicates and lost the sort order.
	if _, err := s.ReadDB().Exec(
		"UPDATE tickets SET assignees = ? WHERE id = ?",
		`["carol@x.test","alice@x.test","alice@x.test"]`, tk.ID,
	); err != nil {
		t.Fatalf("seed corrupt mirror: %v", err)
	}

	sched.RunOnce()

	// The dedupe runs before the repair, so the recreated task belongs to
	// the first user of the cleaned, sorted mirror.
	tasks, err := s.ListOpenTasks(tk.ID)
	if err != nil {
		t.Fatalf("ListOpenTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Assignee != "alice@x.test" {
		t.Fatalf("open tasks after sweep = %+v, want alice's recreated task", tasks)
	}
	got, err := s.GetTicket(tk.ID)
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if len(got.Assignees) != 1 || got.Assignees[0] != "alice@x.test" {
		t.Fatalf("mirror after sweep = %v, want [alice@x.test]", got.Assignees)
	}
}
