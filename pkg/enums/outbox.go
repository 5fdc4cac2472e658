package enums

type OutboxAggregateType string

const AggregateOrder OutboxAggregateType = "order"

func (a OutboxAggregateType) IsValid() bool { return a == AggregateOrder }

// OutboxEventType names the domain event stored in outbox_events.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order_created"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventOrderDeleted       OutboxEventType = "order_deleted"
)

var outboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventOrderDeleted,
}

func (e OutboxEventType) IsValid() bool { return oneOf(e, outboxEventTypes) }

// OutboxDLQErrorReason records why a row left the outbox for the DLQ.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
