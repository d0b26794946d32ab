package complaint

import (
	"time"
)

// StateChange represents a sub-flow transition event.
type StateChange struct {
	FromState State
	ToState   State
	Timestamp time.Time
	Reason    string
}

// EvidenceImage is one collected piece of complaint evidence.
type EvidenceImage struct {
	Ref     string    `json:"ref"`
	Caption string    `json:"caption,omitempty"`
	At      time.Time `json:"at"`
}

// Record tracks a long-running complaint interaction across turns. It lives
// on the session and is mutated only while the session lock is held.
type Record struct {
	State        State           `json:"state"`
	Type         Type            `json:"type"`
	OrderNumber  string          `json:"order_number,omitempty"`
	DeliveryDate string          `json:"delivery_date,omitempty"`
	Images       []EvidenceImage `json:"images,omitempty"`
	InitiatedAt  time.Time       `json:"initiated_at,omitzero"`

	onChange func(StateChange)
}

func NewRecord() *Record {
	return &Record{State: StateInactive, Type: TypeUnknown}
}

// Clone returns a deep copy. The transition listener does not carry
// over; it belongs to the turn that registered it.
func (r *Record) Clone() *Record {
	c := *r
	c.Images = append([]EvidenceImage(nil), r.Images...)
	c.onChange = nil
	return &c
}

// OnChange registers a transition listener (at most one; used for logging).
func (r *Record) OnChange(fn func(StateChange)) {
	r.onChange = fn
}

// Active reports whether a complaint sub-flow is in progress.
func (r *Record) Active() bool {
	switch r.State {
	case StateAwaitingImages, StateAwaitingOrderInfo, StateReadyForTicket:
		return true
	default:
		return false
	}
}

// AwaitingImages reports whether a bare image submission should be read as
// complaint evidence.
func (r *Record) AwaitingImages() bool {
	return r.State == StateAwaitingImages
}

var validTransitions = map[State][]State{
	StateInactive:          {StateAwaitingImages},
	StateAwaitingImages:    {StateAwaitingOrderInfo, StateReadyForTicket, StateRejectedByPolicy, StateInactive},
	StateAwaitingOrderInfo: {StateAwaitingImages, StateReadyForTicket, StateRejectedByPolicy, StateInactive},
	StateReadyForTicket:    {StateComplete, StateRejectedByPolicy, StateAwaitingOrderInfo, StateInactive},
	StateComplete:          {StateInactive},
	StateRejectedByPolicy:  {StateInactive},
}

// InvalidTransitionError represents an invalid state transition attempt.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return "invalid complaint transition from " + e.From.String() + " to " + e.To.String()
}

func transitionValid(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves to a new state with validation.
func (r *Record) Transition(to State, reason string) error {
	if r.State == to {
		return nil
	}
	if !transitionValid(r.State, to) {
		return &InvalidTransitionError{From: r.State, To: to}
	}
	from := r.State
	r.State = to
	if to == StateAwaitingImages && from == StateInactive {
		r.InitiatedAt = time.Now()
	}
	if r.onChange != nil {
		r.onChange(StateChange{FromState: from, ToState: to, Timestamp: time.Now(), Reason: reason})
	}
	return nil
}

// Begin activates the sub-flow from inactive, collecting evidence.
func (r *Record) Begin(t Type, reason string) error {
	if r.Active() {
		if r.Type == TypeUnknown && t != TypeUnknown {
			r.Type = t
		}
		return nil
	}
	if r.State == StateComplete || r.State == StateRejectedByPolicy {
		if err := r.Transition(StateInactive, "restart"); err != nil {
			return err
		}
	}
	r.Type = t
	return r.Transition(StateAwaitingImages, reason)
}

// AddImage appends evidence. Re-applying the same reference is a no-op so
// that recomputing from the latest model turn never duplicates evidence.
func (r *Record) AddImage(ref, caption string, at time.Time) bool {
	if ref == "" {
		return false
	}
	for _, img := range r.Images {
		if img.Ref == ref {
			return false
		}
	}
	r.Images = append(r.Images, EvidenceImage{Ref: ref, Caption: caption, At: at})
	return true
}

// SetOrderNumber records the order under complaint. Setting it from the
// order-info state returns the flow to evidence collection.
func (r *Record) SetOrderNumber(orderNo string) {
	if orderNo == "" {
		return
	}
	r.OrderNumber = orderNo
	if r.State == StateAwaitingOrderInfo {
		_ = r.Transition(StateAwaitingImages, "order number provided")
	}
}

// ImageRefs returns collected evidence references in arrival order.
func (r *Record) ImageRefs() []string {
	refs := make([]string, 0, len(r.Images))
	for _, img := range r.Images {
		refs = append(refs, img.Ref)
	}
	return refs
}

// Clear resets the record to inactive, dropping collected evidence.
func (r *Record) Clear(reason string) {
	from := r.State
	r.State = StateInactive
	r.Type = TypeUnknown
	r.OrderNumber = ""
	r.DeliveryDate = ""
	r.Images = nil
	r.InitiatedAt = time.Time{}
	if r.onChange != nil && from != StateInactive {
		r.onChange(StateChange{FromState: from, ToState: StateInactive, Timestamp: time.Now(), Reason: reason})
	}
}
