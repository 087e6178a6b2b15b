package model

import "time"

// Notification is a provider-facing notice. Immutable after creation; read in
// descending creation order.
type Notification struct {
	ID        string
	UserID    string
	Content   string
	CreatedAt time.Time
}

// CancelationNotice is the job payload for the cancelation email. It is a
// value snapshot taken at enqueue time: provider name/email and the display
// date are denormalized on purpose so the mailer never re-queries the store
// and races against later profile changes.
type CancelationNotice struct {
	AppointmentID string `json:"appointment_id"`
	ProviderName  string `json:"provider_name"`
	ProviderEmail string `json:"provider_email"`
	UserName      string `json:"user_name"`
	Date          string `json:"date"`
}

// QueuedJob is one unit of mail work. IdempotencyKey dedupes the direct
// enqueue path against the Kafka recovery path.
type QueuedJob struct {
	Key            string
	IdempotencyKey string
	Payload        []byte
}

// CancelationMailKey is the job type for cancelation notices.
const CancelationMailKey = "CancelationMail"
