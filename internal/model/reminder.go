package model

import "time"

// Reminder is a pending follow-up addressed to a chat platform id.
// The JSON names match what the dispatcher reads from GET /reminders/.
type Reminder struct {
	ID               int64     `json:"id"`
	UserID           string    `json:"userid"`
	FollowupUsername string    `json:"followupUsername"`
	ReminderTime     time.Time `json:"reminderTime"`
	Notes            string    `json:"notes"`
	Sent             bool      `json:"sent"`
	CreatedAt        time.Time `json:"-"`
}

// MessageText is the text delivered to the recipient: the label, a newline, then the notes.
func (r *Reminder) MessageText() string {
	return r.FollowupUsername + "\n" + r.Notes
}
