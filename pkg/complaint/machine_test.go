package complaint

import (
	"testing"
	"time"
)

func TestBeginAndCollect(t *testing.T) {
	r := NewRecord()
	if r.Active() {
		t.Fatalf("new record must be inactive")
	}
	if err := r.Begin(TypeDamaged, "keyword tier"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if r.State != StateAwaitingImages {
		t.Fatalf("expected AWAITING_IMAGES, got %s", r.State)
	}
	if !r.AddImage("img-1", "order damaged", time.Now()) {
		t.Fatalf("expected image added")
	}
	if r.AddImage("img-1", "order damaged", time.Now()) {
		t.Fatalf("expected duplicate ref ignored")
	}
	if len(r.Images) != 1 {
		t.Fatalf("expected 1 image, got %d", len(r.Images))
	}
}

func TestInvalidTransition(t *testing.T) {
	r := NewRecord()
	err := r.Transition(StateComplete, "skip ahead")
	if err == nil {
		t.Fatalf("expected invalid transition error")
	}
	if _, ok := err.(*InvalidTransitionError); !ok {
		t.Fatalf("expected InvalidTransitionError, got %T", err)
	}
}

func TestOrderNumberReturnsToEvidence(t *testing.T) {
	r := NewRecord()
	if err := r.Begin(TypeUnknown, "test"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := r.Transition(StateAwaitingOrderInfo, "no order"); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	r.SetOrderNumber("CZ-100045")
	if r.State != StateAwaitingImages {
		t.Fatalf("expected AWAITING_IMAGES after order info, got %s", r.State)
	}
	if r.OrderNumber != "CZ-100045" {
		t.Fatalf("order number not recorded")
	}
}

func TestApplyIdempotent(t *testing.T) {
	r := NewRecord()
	mc := ModelContext{
		IsComplaint:   true,
		ComplaintType: "damaged",
		OrderNumber:   "CZ-100045",
	}
	if err := r.Apply(mc, time.Now()); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	before := *r
	if err := r.Apply(mc, time.Now()); err != nil {
		t.Fatalf("Apply replay: %v", err)
	}
	if r.State != before.State || r.OrderNumber != before.OrderNumber || len(r.Images) != len(before.Images) {
		t.Fatalf("replaying model context changed state: %+v vs %+v", r, before)
	}
}

func TestTicketLifecycle(t *testing.T) {
	var changes []StateChange
	r := NewRecord()
	r.OnChange(func(ev StateChange) { changes = append(changes, ev) })

	if err := r.Begin(TypeDamaged, "test"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	r.AddImage("img-1", "", time.Now())
	r.SetOrderNumber("CZ-1")
	if err := r.Transition(StateReadyForTicket, "model requested ticket"); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if err := r.Transition(StateComplete, "ticket created"); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	r.Clear("ticket created")
	if r.State != StateInactive || len(r.Images) != 0 {
		t.Fatalf("expected cleared record, got %+v", r)
	}
	if len(changes) < 3 {
		t.Fatalf("expected transition events, got %d", len(changes))
	}
}

func TestPolicyRejectionClears(t *testing.T) {
	r := NewRecord()
	_ = r.Begin(TypeRefund, "test")
	if err := r.Transition(StateRejectedByPolicy, "outside window"); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	r.Clear("policy rejection")
	if r.Active() {
		t.Fatalf("expected inactive after rejection")
	}
}
