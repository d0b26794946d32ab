package complaint

import "time"

// ModelContext is the model-reported complaint block for one turn,
// flattened by the pipeline before application.
type ModelContext struct {
	IsComplaint    bool
	ComplaintType  string
	OrderNumber    string
	DeliveryDate   string
	AwaitingImages bool
	ReadyForTicket bool
}

// Apply merges a model turn into the record. Application is idempotent:
// replaying the same context leaves the record unchanged.
func (r *Record) Apply(mc ModelContext, now time.Time) error {
	if !mc.IsComplaint && !r.Active() {
		return nil
	}
	if mc.IsComplaint && !r.Active() {
		if err := r.Begin(ParseType(mc.ComplaintType), "model complaint context"); err != nil {
			return err
		}
	}
	if r.Type == TypeUnknown {
		r.Type = ParseType(mc.ComplaintType)
	}
	if mc.OrderNumber != "" {
		r.SetOrderNumber(mc.OrderNumber)
	}
	if mc.DeliveryDate != "" && r.DeliveryDate == "" {
		r.DeliveryDate = mc.DeliveryDate
	}
	if mc.ReadyForTicket && r.State != StateReadyForTicket {
		if err := r.Transition(StateReadyForTicket, "model ready for ticket"); err != nil {
			return err
		}
	}
	if !mc.ReadyForTicket && mc.IsComplaint && !mc.AwaitingImages && r.State == StateAwaitingImages && r.OrderNumber == "" {
		// Model has the evidence it needs but no order yet.
		_ = r.Transition(StateAwaitingOrderInfo, "awaiting order info")
	}
	return nil
}
