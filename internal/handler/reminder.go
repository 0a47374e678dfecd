package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/replyreminder/replyreminder/internal/model"
	"github.com/replyreminder/replyreminder/internal/service"
)

// ReminderAPI is the service surface behind the reminder endpoints.
type ReminderAPI interface {
	CreateUser(ctx context.Context, in service.CreateUserInput) error
	LinkAccount(ctx context.Context, in service.LinkAccountInput) error
	CreateReminder(ctx context.Context, in service.CreateReminderInput) (*model.Reminder, error)
	ListUnsentReminders(ctx context.Context) ([]*model.Reminder, error)
	MarkReminderSent(ctx context.Context, rawID string) error
}

// ReminderHandler handles the person and reminder endpoints.
type ReminderHandler struct {
	svc    ReminderAPI
	logger *slog.Logger
}

// NewReminderHandler creates a new ReminderHandler.
func NewReminderHandler(svc ReminderAPI, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{
		svc:    svc,
		logger: logger,
	}
}

// CreateUser handles POST /user/.
func (h *ReminderHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	a, ok := h.args(w, r)
	if !ok {
		return
	}

	err := h.svc.CreateUser(r.Context(), service.CreateUserInput{
		UserID:      a.Get("userid"),
		Email:       a.Get("email"),
		FirstName:   a.Get("first_name"),
		LastName:    a.Get("last_name"),
		Timezone:    a.Get("timezone"),
		UpdatedTime: a.Get("updated_time"),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeSuccess(w)
}

// LinkAccount handles POST /linkaccount/.
func (h *ReminderHandler) LinkAccount(w http.ResponseWriter, r *http.Request) {
	a, ok := h.args(w, r)
	if !ok {
		return
	}

	err := h.svc.LinkAccount(r.Context(), service.LinkAccountInput{
		GSID:                a.Get("gsid"),
		AccountLinkingToken: a.Get("account_linking_token"),
		AuthToken:           a.Get("auth_token"),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeSuccess(w)
}

// CreateReminder handles POST /reminder/.
func (h *ReminderHandler) CreateReminder(w http.ResponseWriter, r *http.Request) {
	a, ok := h.args(w, r)
	if !ok {
		return
	}

	_, err := h.svc.CreateReminder(r.Context(), service.CreateReminderInput{
		AuthToken:        a.Get("auth_token"),
		UserID:           a.Get("userid"),
		FollowupUsername: a.Get("followupUsername"),
		ReminderTime:     a.Get("reminderTime"),
		Notes:            a.Get("notes"),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeSuccess(w)
}

// ListUnsent handles GET /reminders/ with a JSON array, oldest first.
func (h *ReminderHandler) ListUnsent(w http.ResponseWriter, r *http.Request) {
	reminders, err := h.svc.ListUnsentReminders(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if reminders == nil {
		reminders = []*model.Reminder{}
	}
	writeJSON(w, http.StatusOK, reminders)
}

// MarkSent handles POST /reminder/sent/.
func (h *ReminderHandler) MarkSent(w http.ResponseWriter, r *http.Request) {
	a, ok := h.args(w, r)
	if !ok {
		return
	}

	if err := h.svc.MarkReminderSent(r.Context(), a.Get("reminderid")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeSuccess(w)
}

func (h *ReminderHandler) args(w http.ResponseWriter, r *http.Request) (args, bool) {
	a, err := parseArgs(r)
	if errors.Is(err, errBodyTooLarge) {
		writeFailure(w, http.StatusRequestEntityTooLarge, err.Error())
		return nil, false
	}
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return a, true
}
