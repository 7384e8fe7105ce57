package envelope

import "encoding/json"

// OrderID extracts payload.orderId, present on every payload schema in this
// registry. Used to populate x-group-id headers and the event store's
// secondary index without each call site needing to know the concrete
// payload type.
func OrderID(e Envelope) string {
	var probe struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(e.Payload, &probe); err != nil {
		return ""
	}
	return probe.OrderID
}
