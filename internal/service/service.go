// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/replyreminder/replyreminder/internal/identity"
	"github.com/replyreminder/replyreminder/internal/messenger"
	"github.com/replyreminder/replyreminder/internal/metrics"
	"github.com/replyreminder/replyreminder/internal/model"
	"github.com/replyreminder/replyreminder/internal/repository"
)

// Store is the persistence the service needs. *repository.Repository implements it.
type Store interface {
	CreatePerson(ctx context.Context, person *model.Person) error
	GetPersonByGSID(ctx context.Context, gsid string) (*model.Person, error)
	UpdatePersonPSID(ctx context.Context, id int64, psid string) error
	CreateReminder(ctx context.Context, reminder *model.Reminder) error
	ListUnsentReminders(ctx context.Context) ([]*model.Reminder, error)
	MarkReminderSent(ctx context.Context, id int64) error
}

// Messenger is the chat platform surface used by account linking.
type Messenger interface {
	GetPSID(ctx context.Context, linkingToken string) (string, error)
	SendLoginButton(ctx context.Context, psid string) (*messenger.SendResult, error)
}

// ReminderService handles persons, account linking, reminders and webhook events.
type ReminderService struct {
	store    Store
	identity identity.Resolver
	chat     Messenger
	metrics  metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a ReminderService.
func New(store Store, resolver identity.Resolver, chat Messenger, recorder metrics.Recorder, logger *slog.Logger) *ReminderService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReminderService{
		store:    store,
		identity: resolver,
		chat:     chat,
		metrics:  recorder,
		logger:   logger.With("component", "service"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateUserInput defines input for registering a person.
// Empty optional fields are stored as NULL.
type CreateUserInput struct {
	UserID      string
	Email       string
	FirstName   string
	LastName    string
	Timezone    string
	UpdatedTime string
}

// CreateUser registers a person keyed by UserID (stored as gsid).
// Registering an existing UserID succeeds without changing it.
func (s *ReminderService) CreateUser(ctx context.Context, in CreateUserInput) error {
	if in.UserID == "" {
		return inputError("userid is required")
	}

	exists, err := s.personExists(ctx, in.UserID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	person := &model.Person{
		GSID:      in.UserID,
		Email:     optional(in.Email),
		FirstName: optional(in.FirstName),
		LastName:  optional(in.LastName),
		Timezone:  optional(in.Timezone),
	}
	if in.UpdatedTime != "" {
		t, err := parseTime(in.UpdatedTime)
		if err != nil {
			return inputError("invalid updated_time")
		}
		person.UpdatedTime = &t
	}

	if err := s.store.CreatePerson(ctx, person); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// A concurrent registration of the same userid won the insert.
			if exists, _ := s.personExists(ctx, in.UserID); exists {
				return nil
			}
			return conflictError(err)
		}
		return storeError("create person", err)
	}

	s.metrics.IncUserCreated()
	s.logger.Info("person registered", slog.Int64("person_id", person.ID))
	return nil
}

// LinkAccountInput defines input for linking a chat identity to a person.
type LinkAccountInput struct {
	GSID                string
	AccountLinkingToken string
	AuthToken           string
}

// LinkAccount verifies AuthToken belongs to GSID, exchanges the linking token
// for a psid and stores it on the person, creating the person if needed.
func (s *ReminderService) LinkAccount(ctx context.Context, in LinkAccountInput) error {
	switch {
	case in.GSID == "":
		return inputError("gsid is required")
	case in.AccountLinkingToken == "":
		return inputError("account_linking_token is required")
	case in.AuthToken == "":
		return inputError("auth_token is required")
	}

	if err := s.checkToken(ctx, in.AuthToken, in.GSID); err != nil {
		return err
	}

	psid, err := s.chat.GetPSID(ctx, in.AccountLinkingToken)
	if err != nil {
		if errors.Is(err, messenger.ErrInvalidLinkingToken) {
			return inputError("invalid account_linking_token")
		}
		return storeError("resolve psid", err)
	}

	person, err := s.store.GetPersonByGSID(ctx, in.GSID)
	switch {
	case errors.Is(err, repository.ErrPersonNotFound):
		err = s.store.CreatePerson(ctx, &model.Person{GSID: in.GSID, PSID: &psid})
		if errors.Is(err, repository.ErrConflict) {
			// Registered concurrently; fall through to the update path.
			person, err = s.store.GetPersonByGSID(ctx, in.GSID)
			if err == nil {
				err = s.updatePSID(ctx, person, psid)
			}
		}
	case err == nil:
		err = s.updatePSID(ctx, person, psid)
	}
	if err != nil {
		return storeError("link account", err)
	}

	s.metrics.IncAccountLinked()
	s.logger.Info("account linked", slog.String("gsid", in.GSID))
	return nil
}

func (s *ReminderService) updatePSID(ctx context.Context, person *model.Person, psid string) error {
	if person.LinkedPSID() == psid {
		return nil
	}
	return s.store.UpdatePersonPSID(ctx, person.ID, psid)
}

// CreateReminderInput defines input for creating a reminder.
// UserID is the owner's gsid. An empty ReminderTime means now.
type CreateReminderInput struct {
	AuthToken        string
	UserID           string
	FollowupUsername string
	ReminderTime     string
	Notes            string
}

// CreateReminder stores a reminder addressed to the owner's psid.
func (s *ReminderService) CreateReminder(ctx context.Context, in CreateReminderInput) (*model.Reminder, error) {
	switch {
	case in.AuthToken == "":
		return nil, inputError("auth_token is required")
	case in.UserID == "":
		return nil, inputError("userid is required")
	case strings.TrimSpace(in.FollowupUsername) == "":
		return nil, inputError("followupUsername is required")
	}

	at := s.now()
	if in.ReminderTime != "" {
		t, err := parseTime(in.ReminderTime)
		if err != nil {
			return nil, inputError("invalid reminderTime")
		}
		at = t
	}

	person, err := s.store.GetPersonByGSID(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrPersonNotFound) {
			return nil, inputError("unknown userid")
		}
		return nil, storeError("get person", err)
	}
	if !person.IsLinked() {
		return nil, inputError("account not linked")
	}

	if err := s.checkToken(ctx, in.AuthToken, person.GSID); err != nil {
		return nil, err
	}

	reminder := &model.Reminder{
		UserID:           person.LinkedPSID(),
		FollowupUsername: in.FollowupUsername,
		ReminderTime:     at,
		Notes:            in.Notes,
	}
	if err := s.store.CreateReminder(ctx, reminder); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, conflictError(err)
		}
		return nil, storeError("create reminder", err)
	}

	s.metrics.IncReminderCreated()
	s.logger.Info("reminder created", slog.Int64("reminder_id", reminder.ID))
	return reminder, nil
}

// ListUnsentReminders returns every reminder not yet marked sent, oldest first.
func (s *ReminderService) ListUnsentReminders(ctx context.Context) ([]*model.Reminder, error) {
	reminders, err := s.store.ListUnsentReminders(ctx)
	if err != nil {
		return nil, storeError("list unsent reminders", err)
	}
	return reminders, nil
}

// MarkReminderSent flags a reminder as delivered. Marking twice succeeds.
func (s *ReminderService) MarkReminderSent(ctx context.Context, rawID string) error {
	if rawID == "" {
		return inputError("reminderid is required")
	}
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil {
		return inputError("invalid reminderid")
	}

	if err := s.store.MarkReminderSent(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrReminderNotFound):
			return notFoundError("reminder not found", err)
		case errors.Is(err, repository.ErrConflict):
			return conflictError(err)
		}
		return storeError("mark reminder sent", err)
	}

	s.metrics.IncReminderMarkedSent()
	return nil
}

// checkToken resolves authToken and compares it with gsid.
func (s *ReminderService) checkToken(ctx context.Context, authToken, gsid string) error {
	resolved, err := s.identity.Resolve(ctx, authToken)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			return inputError(msgTokenMismatch)
		}
		return storeError("resolve auth token", err)
	}
	if resolved != gsid {
		return inputError(msgTokenMismatch)
	}
	return nil
}

func (s *ReminderService) personExists(ctx context.Context, gsid string) (bool, error) {
	_, err := s.store.GetPersonByGSID(ctx, gsid)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrPersonNotFound):
		return false, nil
	default:
		return false, storeError("get person", err)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime accepts RFC 3339 and the common naive layouts, read as UTC.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
