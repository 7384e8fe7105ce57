package broker

import amqp "github.com/rabbitmq/amqp091-go"

// Header names carried on every published message.
const (
	HeaderCorrelationID = "x-correlation-id"
	HeaderGroupID       = "x-group-id"
	HeaderAttempt       = "x-attempt"
	HeaderReplay        = "x-replay"
)

// Headers builds the required header set for a publish: correlation id and
// the aggregate group key (typically orderId).
func Headers(correlationID, groupID string) amqp.Table {
	return amqp.Table{
		HeaderCorrelationID: correlationID,
		HeaderGroupID:       groupID,
	}
}

// AttemptFromHeaders reads x-attempt, defaulting to 0 when absent or of an
// unexpected type.
func AttemptFromHeaders(h amqp.Table) int {
	if h == nil {
		return 0
	}
	switch v := h[HeaderAttempt].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// WithAttempt returns a copy of h with x-attempt set to attempt.
func WithAttempt(h amqp.Table, attempt int) amqp.Table {
	out := amqp.Table{}
	for k, v := range h {
		out[k] = v
	}
	out[HeaderAttempt] = int32(attempt)
	return out
}
