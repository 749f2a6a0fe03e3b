package intake_test

import (
	"testing"

	"github.com/switchyardhq/switchyard/internal/cache"
	"github.com/switchyardhq/switchyard/internal/config"
	"github.com/switchyardhq/switchyard/internal/intake"
	"github.com/switchyardhq/switchyard/internal/store"
)

func testDeps(t *testing.T) (*store.Store, *cache.Cache) {
	t.Helper()
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	s := store.NewStore(db)
	s.SetPoolUser("helpdesk@local.test")

	c, err := cache.Open(t.TempDir())
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return s, c
}

func testProcessor(t *testing.T, s *store.Store, c *cache.Cache, mutate func(*config.Config)) *intake.Processor {
	t.Helper()
	cfg := config.Default()
	cfg.Autoreply.ConfirmSecret = "test-secret"
	if mutate != nil {
		mutate(&cfg)
	}
	return intake.NewProcessor(s, c, cfg)
}

func seedLocationsAndCustomers(t *testing.T, s *store.Store) {
	t.Helper()
	if err := s.UpsertLocation(store.Location{Name: "LOC-0001", DisplayName: "North Plant"}); err != nil {
		t.Fatalf("UpsertLocation: %v", err)
	}
	if err := s.UpsertCustomer("Acme Industrial", "ops@acme.test"); err != nil {
		t.Fatalf("UpsertCustomer: %v", err)
	}
	if err := s.LinkContact("jdoe@acme.test", "Acme Industrial"); err != nil {
		t.Fatalf("LinkContact: %v", err)
	}
}

func TestProcessMessageCreatesAndEnriches(t *testing.T) {
	s, c := testDeps(t)
	seedLocationsAndCustomers(t, s)
	s.SetRotationPools(map[string][]string{
		"support@acme.test": {"alice@x.test", "bob@x.test"},
	})
	p := testProcessor(t, s, c, nil)

	res, err := p.ProcessMessage(store.InboundMessage{
		Account: "support@acme.test",
		Sender:  "jdoe@acme.test",
		Subject: "Conveyor stopped",
		Body:    "It halted at 6am.\nSITE: North Plant\nASSET: CNV-014",
	})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !res.Created {
		t.Error("expected a new ticket")
	}
	if res.Bounce {
		t.Error("message misclassified as bounce")
	}
	if res.CustomerReason != store.CustomerReasonContactMatch {
		t.Errorf("customer reason = %q, want %q", res.CustomerReason, store.CustomerReasonContactMatch)
	}

	tk, err := s.GetTicket(res.TicketID)
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if tk.Site != "LOC-0001" {
		t.Errorf("site = %q, want LOC-0001", tk.Site)
	}
	if tk.EquipmentRef != "CNV-014" {
		t.Errorf("equipment_ref = %q, want CNV-014", tk.EquipmentRef)
	}
	if tk.Customer != "Acme Industrial" {
		t.Errorf("customer = %q, want Acme Industrial", tk.Customer)
	}
	// Fresh tickets route round-robin.
	if len(tk.Assignees) != 1 || tk.Assignees[0] != "alice@x.test" {
		t.Errorf("assignees = %v, want [alice@x.test]", tk.Assignees)
	}
	if !res.AutoreplyDraft {
		t.Error("expected an autoreply draft")
	}
}

func TestProcessMessageBounceShortCircuits(t *testing.T) {
	s, c := testDeps(t)
	s.SetRotationPools(map[string][]string{
		"support@acme.test": {"alice@x.test"},
	})
	p := testProcessor(t, s, c, nil)

	tk, err := s.CreateTicket(store.CreateTicketRequest{Subject: "Original request"})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	res, err := p.ProcessMessage(store.InboundMessage{
		Account:  "support@acme.test",
		Sender:   "mailer-daemon@mx.test",
		Subject:  "Undelivered Mail Returned to Sender",
		Body:     "SITE: North Plant\nASSET: SHOULD-NOT-PARSE",
		TicketID: tk.ID,
	})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !res.Bounce {
		t.Fatal("expected bounce classification")
	}
	if res.Created {
		t.Error("bounce must not create a ticket when one is referenced")
	}

	got, err := s.GetTicket(tk.ID)
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if got.Status != store.TicketClosed {
		t.Errorf("status = %q, want Closed", got.Status)
	}
	// The parser and router never ran.
	if got.EquipmentRef != "" {
		t.Errorf("equipment_ref = %q, want empty (parser must not run on bounces)", got.EquipmentRef)
	}
	if len(got.Assignees) != 0 {
		t.Errorf("assignees = %v, want none", got.Assignees)
	}
	tasks, err := s.ListOpenTasks(tk.ID)
	if err != nil {
		t.Fatalf("ListOpenTasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("open tasks = %d, want 0", len(tasks))
	}
}

func TestProcessMessageExistingTicketDoesNotReroute(t *testing.T) {
	s, c := testDeps(t)
	s.SetRotationPools(map[string][]string{
		"support@acme.test": {"alice@x.test"},
	})
	p := testProcessor(t, s, c, nil)

	tk, err := s.CreateTicket(store.CreateTicketRequest{Subject: "Follow-up thread"})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	res, err := p.ProcessMessage(store.InboundMessage{
		Account:  "support@acme.test",
		Sender:   "jdoe@acme.test",
		Subject:  "Re: Follow-up thread",
		Body:     "Any update?",
		TicketID: tk.ID,
	})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if res.Created {
		t.Error("reply to existing ticket must not create one")
	}

	got, err := s.GetTicket(tk.ID)
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if len(got.Assignees) != 0 {
		t.Errorf("assignees = %v, want none (replies never route)", got.Assignees)
	}
}

func TestProcessMessageIsIdempotentOnFields(t *testing.T) {
	s, c := testDeps(t)
	seedLocationsAndCustomers(t, s)
	p := testProcessor(t, s, c, nil)

	tk, err := s.CreateTicket(store.CreateTicketRequest{Subject: "Panel fault"})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	msg := store.InboundMessage{
		Account:  "support@acme.test",
		Sender:   "jdoe@acme.test",
		Subject:  "Panel fault",
		Body:     "ASSET: PNL-003",
		TicketID: tk.ID,
	}
	res1, err := p.ProcessMessage(msg)
	if err != nil {
		t.Fatalf("first ProcessMessage: %v", err)
	}
	if len(res1.FieldsWritten) == 0 {
		t.Fatal("first pass wrote no fields")
	}

	res2, err := p.ProcessMessage(msg)
	if err != nil {
		t.Fatalf("second ProcessMessage: %v", err)
	}
	if len(res2.FieldsWritten) != 0 {
		t.Errorf("second pass wrote %v, want nothing", res2.FieldsWritten)
	}
}

func TestAutoreplyDraftDedupes(t *testing.T) {
	s, c := testDeps(t)
	seedLocationsAndCustomers(t, s)
	p := testProcessor(t, s, c, nil)

	tk, err := s.CreateTicket(store.CreateTicketRequest{Subject: "Noise complaint"})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	msg := store.InboundMessage{
		Account:  "support@acme.test",
		Sender:   "jdoe@acme.test",
		Subject:  "Noise complaint",
		Body:     "Loud rattling.",
		TicketID: tk.ID,
	}

	res1, err := p.ProcessMessage(msg)
	if err != nil {
		t.Fatalf("first ProcessMessage: %v", err)
	}
	if !res1.AutoreplyDraft {
		t.Fatal("first pass should draft an autoreply")
	}

	res2, err := p.ProcessMessage(msg)
	if err != nil {
		t.Fatalf("second ProcessMessage: %v", err)
	}
	if res2.AutoreplyDraft {
		t.Error("second pass drafted again; dedupe marker ignored")
	}
}

func TestAutoreplyRequireCustomerSkipsUnknownSenders(t *testing.T) {
	s, c := testDeps(t)
	p := testProcessor(t, s, c, func(cfg *config.Config) {
		cfg.Autoreply.RequireCustomer = true
	})

	res, err := p.ProcessMessage(store.InboundMessage{
		Account: "support@acme.test",
		Sender:  "stranger@elsewhere.test",
		Subject: "Hello",
		Body:    "No customer on file.",
	})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if res.AutoreplyDraft {
		t.Error("draft generated for a sender with no customer mapping")
	}
}

func TestPopulateTicket(t *testing.T) {
	s, c := testDeps(t)
	seedLocationsAndCustomers(t, s)
	p := testProcessor(t, s, c, nil)

	tk, err := s.CreateTicket(store.CreateTicketRequest{Subject: "UI-created"})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	written, err := p.PopulateTicket(tk.ID, "jdoe@acme.test", "UI-created", "SITE: North Plant")
	if err != nil {
		t.Fatalf("PopulateTicket: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("written = %v, want site and customer", written)
	}
	got, err := s.GetTicket(tk.ID)
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if got.Site != "LOC-0001" || got.Customer != "Acme Industrial" {
		t.Errorf("site/customer = %q/%q, want LOC-0001/Acme Industrial", got.Site, got.Customer)
	}
}
