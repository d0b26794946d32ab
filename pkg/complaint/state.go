package complaint

// State is the complaint sub-flow position.
type State int

const (
	StateInactive State = iota
	StateAwaitingImages
	StateAwaitingOrderInfo
	StateReadyForTicket
	StateComplete
	StateRejectedByPolicy
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "INACTIVE"
	case StateAwaitingImages:
		return "AWAITING_IMAGES"
	case StateAwaitingOrderInfo:
		return "AWAITING_ORDER_INFO"
	case StateReadyForTicket:
		return "READY_FOR_TICKET"
	case StateComplete:
		return "COMPLETE"
	case StateRejectedByPolicy:
		return "REJECTED_BY_POLICY"
	default:
		return "UNKNOWN"
	}
}

// Type is the complaint category.
type Type string

const (
	TypeDamaged      Type = "damaged"
	TypeWrongItem    Type = "wrong_item"
	TypeMissingItem  Type = "missing_item"
	TypeLateDelivery Type = "late_delivery"
	TypeRefund       Type = "refund"
	TypeUnknown      Type = "unknown"
)

// ParseType normalizes a model-provided complaint category.
func ParseType(raw string) Type {
	switch Type(raw) {
	case TypeDamaged, TypeWrongItem, TypeMissingItem, TypeLateDelivery, TypeRefund:
		return Type(raw)
	default:
		return TypeUnknown
	}
}
