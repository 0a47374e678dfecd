package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/replyreminder/replyreminder/internal/model"
	"github.com/replyreminder/replyreminder/internal/repository"
)

// MemoryStore is an in-memory stand-in for repository.Repository.
// It returns the same sentinel errors.
type MemoryStore struct {
	mu        sync.Mutex
	persons   []*model.Person
	reminders []*model.Reminder
	nextID    int64

	// Err, when set, is returned by every method.
	Err error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// CreatePerson stores a copy of person, enforcing gsid uniqueness.
func (s *MemoryStore) CreatePerson(_ context.Context, person *model.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	for _, p := range s.persons {
		if p.GSID == person.GSID {
			return fmt.Errorf("%w: persons_gsid_key", repository.ErrConflict)
		}
	}

	s.nextID++
	person.ID = s.nextID
	person.CreatedAt = time.Now().UTC()
	cp := *person
	s.persons = append(s.persons, &cp)
	return nil
}

// GetPersonByGSID returns a copy of the stored person.
func (s *MemoryStore) GetPersonByGSID(_ context.Context, gsid string) (*model.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	for _, p := range s.persons {
		if p.GSID == gsid {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrPersonNotFound
}

// UpdatePersonPSID sets the psid of the person with id.
func (s *MemoryStore) UpdatePersonPSID(_ context.Context, id int64, psid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	for _, p := range s.persons {
		if p.ID == id {
			v := psid
			p.PSID = &v
			return nil
		}
	}
	return repository.ErrPersonNotFound
}

// CreateReminder stores a copy of reminder.
func (s *MemoryStore) CreateReminder(_ context.Context, reminder *model.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	if reminder.UserID == "" || reminder.FollowupUsername == "" {
		return fmt.Errorf("%w: reminders_not_blank", repository.ErrConflict)
	}

	s.nextID++
	reminder.ID = s.nextID
	reminder.CreatedAt = time.Now().UTC()
	cp := *reminder
	s.reminders = append(s.reminders, &cp)
	return nil
}

// ListUnsentReminders returns copies of unsent reminders in insertion order.
func (s *MemoryStore) ListUnsentReminders(_ context.Context) ([]*model.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	out := make([]*model.Reminder, 0)
	for _, r := range s.reminders {
		if !r.Sent {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// MarkReminderSent flags the reminder with id as sent.
func (s *MemoryStore) MarkReminderSent(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	for _, r := range s.reminders {
		if r.ID == id {
			r.Sent = true
			return nil
		}
	}
	return repository.ErrReminderNotFound
}

// Persons returns copies of all stored persons.
func (s *MemoryStore) Persons() []model.Person {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Person, 0, len(s.persons))
	for _, p := range s.persons {
		out = append(out, *p)
	}
	return out
}

// Reminders returns copies of all stored reminders.
func (s *MemoryStore) Reminders() []model.Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Reminder, 0, len(s.reminders))
	for _, r := range s.reminders {
		out = append(out, *r)
	}
	return out
}
