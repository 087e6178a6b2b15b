package kafkax

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

const (
	headerEventID   = "event_id"
	headerEventType = "event_type"
)

// EventMeta is the metadata every message carries so consumers can dedup and
// route without decoding the payload.
type EventMeta struct {
	EventID   string
	EventType string
}

// MetaHeaders builds the standard header set for an outgoing message.
func MetaHeaders(eventID, eventType string) []kafka.Header {
	return []kafka.Header{
		{Key: headerEventID, Value: []byte(eventID)},
		{Key: headerEventType, Value: []byte(eventType)},
	}
}

// ExtractEventMeta reads the standard headers back, falling back to the
// message key and topic for messages produced outside this codebase.
func ExtractEventMeta(msg kafka.Message) EventMeta {
	meta := EventMeta{
		EventID:   HeaderValue(msg.Headers, headerEventID),
		EventType: HeaderValue(msg.Headers, headerEventType),
	}
	if meta.EventID == "" {
		meta.EventID = string(msg.Key)
	}
	if meta.EventType == "" {
		meta.EventType = msg.Topic
	}
	return meta
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// SplitBrokers parses a comma-separated broker list from config.
func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
