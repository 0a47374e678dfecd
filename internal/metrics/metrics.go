// Package metrics provides lightweight hooks for instrumentation.
package metrics

// Webhook event kinds.
const (
	EventPostback = "postback"
	EventMessage  = "message"
	EventOther    = "other"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus or keep them in memory.
type Recorder interface {
	IncUserCreated()
	IncAccountLinked()

	IncReminderCreated()
	IncReminderMarkedSent()

	// kind is one of EventPostback, EventMessage, EventOther.
	IncWebhookEvent(kind string)
	// reason is "token" or "signature".
	IncWebhookRejected(reason string)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
