// Package dispatcher delivers unsent reminders through the Send API and
// acknowledges them back to the reminder API.
//
// Delivery is at-least-once: a reminder whose acknowledgement fails is
// delivered again on the next run.
package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/replyreminder/replyreminder/internal/cache"
	"github.com/replyreminder/replyreminder/internal/messenger"
	"github.com/replyreminder/replyreminder/internal/model"
)

// ReminderAPI is the reminder web API as seen by the dispatcher.
type ReminderAPI interface {
	ListUnsent(ctx context.Context) ([]model.Reminder, error)
	MarkSent(ctx context.Context, id int64) error
}

// Sender delivers a text message to a recipient.
type Sender interface {
	SendText(ctx context.Context, psid, text string) (*messenger.SendResult, error)
}

// Options configures a Dispatcher.
type Options struct {
	// Locker is optional. Without it runs are not excluded.
	Locker Locker
	// DryRun lists and logs reminders without sending or acknowledging.
	DryRun bool
}

// Result summarizes one run.
type Result struct {
	RunID        string
	Skipped      bool
	Fetched      int
	Delivered    int
	Acknowledged int
	Failed       int
}

// Dispatcher runs one delivery pass per Run call.
type Dispatcher struct {
	api    ReminderAPI
	sender Sender
	opts   Options
	logger *slog.Logger
}

// New creates a Dispatcher.
func New(api ReminderAPI, sender Sender, opts Options, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		api:    api,
		sender: sender,
		opts:   opts,
		logger: logger.With("component", "dispatcher"),
	}
}

// Run lists unsent reminders and, one at a time in listing order, sends
// each and acknowledges it. A send counts as delivered when it returns no
// transport error; the platform's status is not checked. Failures are
// logged and never abort the pass.
func (d *Dispatcher) Run(ctx context.Context) Result {
	res := Result{RunID: ulid.Make().String()}
	logger := d.logger.With("run_id", res.RunID)
	start := time.Now()

	if d.opts.Locker != nil {
		unlock, err := d.opts.Locker.Lock(ctx)
		if err != nil {
			res.Skipped = true
			if errors.Is(err, cache.ErrLockHeld) {
				logger.Info("another run holds the lock, skipping")
			} else {
				logger.Error("failed to take run lock, skipping", slog.String("error", err.Error()))
			}
			return res
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("failed to release run lock", slog.String("error", err.Error()))
			}
		}()
	}

	reminders, err := d.api.ListUnsent(ctx)
	if err != nil {
		logger.Error("failed to list reminders", slog.String("error", err.Error()))
		reminders = nil
	}
	res.Fetched = len(reminders)

	for i := range reminders {
		if ctx.Err() != nil {
			logger.Warn("run cancelled", slog.Int("remaining", len(reminders)-i))
			break
		}
		d.process(ctx, logger, &reminders[i], &res)
	}

	logger.Info("run finished",
		slog.Bool("dry_run", d.opts.DryRun),
		slog.Int("fetched", res.Fetched),
		slog.Int("delivered", res.Delivered),
		slog.Int("acknowledged", res.Acknowledged),
		slog.Int("failed", res.Failed),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return res
}

func (d *Dispatcher) process(ctx context.Context, logger *slog.Logger, r *model.Reminder, res *Result) {
	logger = logger.With(slog.Int64("reminder_id", r.ID))
	text := r.MessageText()

	if d.opts.DryRun {
		logger.Info("would send reminder", slog.String("recipient", r.UserID), slog.String("text", text))
		return
	}

	result, err := d.sender.SendText(ctx, r.UserID, text)
	if err != nil {
		res.Failed++
		logger.Warn("send failed", slog.String("error", err.Error()))
		return
	}
	res.Delivered++

	status := 0
	if result != nil {
		status = result.StatusCode
	}
	logger.Info("reminder sent", slog.String("recipient", r.UserID), slog.Int("http_status", status))

	if err := d.api.MarkSent(ctx, r.ID); err != nil {
		res.Failed++
		logger.Warn("acknowledgement failed, reminder will be resent", slog.String("error", err.Error()))
		return
	}
	res.Acknowledged++
}
