package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"
)

// CancelationNotice mirrors the JSON payload enqueued by the booking service.
// It is a self-contained snapshot: rendering never queries the store.
type CancelationNotice struct {
	AppointmentID string `json:"appointment_id"`
	ProviderName  string `json:"provider_name"`
	ProviderEmail string `json:"provider_email"`
	UserName      string `json:"user_name"`
	Date          string `json:"date"`
}

const cancelationSubject = "Appointment canceled"

// Both Provider and User carry the provider's name here. That duplication
// matches the upstream product's template context; keep it until product
// decides otherwise (pinned by test).
type cancelationContext struct {
	Provider string
	User     string
	Date     string
}

var cancelationTemplate = template.Must(template.New("cancelation").Parse(
	`Hello {{.Provider}},

The appointment with {{.User}} scheduled for {{.Date}} has been canceled
and the time slot is open again.

— slotbook
`))

// RenderCancelation produces the cancelation email body for a notice.
func RenderCancelation(notice CancelationNotice) (string, error) {
	var buf bytes.Buffer
	err := cancelationTemplate.Execute(&buf, cancelationContext{
		Provider: notice.ProviderName,
		User:     notice.ProviderName,
		Date:     notice.Date,
	})
	if err != nil {
		return "", fmt.Errorf("render cancelation template: %w", err)
	}
	return buf.String(), nil
}

// SendCancelation decodes a cancelation job payload and dispatches the email.
// Errors propagate to the worker for retry; a duplicate delivery just sends
// the same email again, which is harmless.
func SendCancelation(sender Sender, payload []byte) error {
	var notice CancelationNotice
	if err := json.Unmarshal(payload, &notice); err != nil {
		return fmt.Errorf("decode cancelation notice: %w", err)
	}
	if notice.ProviderEmail == "" {
		return fmt.Errorf("cancelation notice %s has no provider email", notice.AppointmentID)
	}

	body, err := RenderCancelation(notice)
	if err != nil {
		return err
	}
	to := Address(notice.ProviderName, notice.ProviderEmail)
	if err := sender.Send(to, cancelationSubject, body); err != nil {
		return fmt.Errorf("send cancelation mail: %w", err)
	}
	return nil
}
