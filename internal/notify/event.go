// Package notify decouples the reservation engine from the chat platform.
// The engine emits notification events to a durable RabbitMQ queue after
// its transaction commits; a background consumer delivers them.  Delivery
// is fire-and-forget: publish failures are logged and never propagated to
// the reservation operation that caused them.
package notify

// RecipientKind distinguishes direct messages from channel announcements.
type RecipientKind string

const (
	// RecipientUser targets a single user (direct message).
	RecipientUser RecipientKind = "user"
	// RecipientChannel targets an announcement channel.
	RecipientChannel RecipientKind = "channel"
)

// Action is a structured quick-action attached to a notification, e.g. the
// extend/release buttons on a pre-expiry reminder.  The delivery channel
// decides how to render it.
type Action struct {
	ID      string `json:"id"`       // action identifier, e.g. "extend_default"
	Label   string `json:"label"`    // button text
	EnvName string `json:"env_name"` // environment the action applies to
	Style   string `json:"style,omitempty"`
}

// Event is one notification to deliver.
type Event struct {
	Recipient   RecipientKind `json:"recipient"`
	RecipientID string        `json:"recipient_id"`
	Text        string        `json:"text"`
	Actions     []Action      `json:"actions,omitempty"`
	EmittedAt   int64         `json:"emitted_at"` // unix seconds
}
