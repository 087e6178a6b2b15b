package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Event types emitted by the mailer service.
const (
	EventCancelationSent = "mailer.cancelation.sent.v1"
	EventCancelationDLQ  = "mailer.cancelation.dlq.v1"
)
