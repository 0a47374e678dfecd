package metrics

import (
	"sync"
	"sync/atomic"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UsersCreated        uint64
	AccountsLinked      uint64
	RemindersCreated    uint64
	RemindersMarkedSent uint64
	WebhookEvents       map[string]uint64
	WebhookRejected     map[string]uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	usersCreated        uint64
	accountsLinked      uint64
	remindersCreated    uint64
	remindersMarkedSent uint64

	mu              sync.Mutex
	webhookEvents   map[string]uint64
	webhookRejected map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		webhookEvents:   make(map[string]uint64),
		webhookRejected: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	events := make(map[string]uint64, len(m.webhookEvents))
	for k, v := range m.webhookEvents {
		events[k] = v
	}
	rejected := make(map[string]uint64, len(m.webhookRejected))
	for k, v := range m.webhookRejected {
		rejected[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		UsersCreated:        atomic.LoadUint64(&m.usersCreated),
		AccountsLinked:      atomic.LoadUint64(&m.accountsLinked),
		RemindersCreated:    atomic.LoadUint64(&m.remindersCreated),
		RemindersMarkedSent: atomic.LoadUint64(&m.remindersMarkedSent),
		WebhookEvents:       events,
		WebhookRejected:     rejected,
	}
}

// IncUserCreated increments the user created counter.
func (m *InMemoryRecorder) IncUserCreated() {
	atomic.AddUint64(&m.usersCreated, 1)
}

// IncAccountLinked increments the account linked counter.
func (m *InMemoryRecorder) IncAccountLinked() {
	atomic.AddUint64(&m.accountsLinked, 1)
}

// IncReminderCreated increments the reminder created counter.
func (m *InMemoryRecorder) IncReminderCreated() {
	atomic.AddUint64(&m.remindersCreated, 1)
}

// IncReminderMarkedSent increments the reminder acknowledged counter.
func (m *InMemoryRecorder) IncReminderMarkedSent() {
	atomic.AddUint64(&m.remindersMarkedSent, 1)
}

// IncWebhookEvent counts an inbound messaging event by kind.
func (m *InMemoryRecorder) IncWebhookEvent(kind string) {
	m.mu.Lock()
	m.webhookEvents[kind]++
	m.mu.Unlock()
}

// IncWebhookRejected counts a rejected webhook call by reason.
func (m *InMemoryRecorder) IncWebhookRejected(reason string) {
	m.mu.Lock()
	m.webhookRejected[reason]++
	m.mu.Unlock()
}
