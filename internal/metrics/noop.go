package metrics

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncUserCreated()                  {}
func (n *NoopRecorder) IncAccountLinked()                {}
func (n *NoopRecorder) IncReminderCreated()              {}
func (n *NoopRecorder) IncReminderMarkedSent()           {}
func (n *NoopRecorder) IncWebhookEvent(kind string)      {}
func (n *NoopRecorder) IncWebhookRejected(reason string) {}
