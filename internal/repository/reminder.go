package repository

import (
	"context"
	"fmt"

	"github.com/replyreminder/replyreminder/internal/model"
)

// CreateReminder inserts a new reminder and fills in its ID and CreatedAt.
func (r *Repository) CreateReminder(ctx context.Context, reminder *model.Reminder) error {
	query := `
		INSERT INTO reminders (userid, followup_username, reminder_time, notes, sent)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		reminder.UserID,
		reminder.FollowupUsername,
		reminder.ReminderTime,
		reminder.Notes,
		reminder.Sent,
	).Scan(&reminder.ID, &reminder.CreatedAt)

	if err != nil {
		if IsIntegrityViolation(err) {
			return fmt.Errorf("%w: %s", ErrConflict, ConstraintName(err))
		}
		return fmt.Errorf("failed to create reminder: %w", err)
	}

	return nil
}

// ListUnsentReminders returns every reminder with sent = false, oldest first.
func (r *Repository) ListUnsentReminders(ctx context.Context) ([]*model.Reminder, error) {
	query := `
		SELECT id, userid, followup_username, reminder_time, notes, sent, created_at
		FROM reminders
		WHERE sent = false
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsent reminders: %w", err)
	}
	defer rows.Close()

	reminders := make([]*model.Reminder, 0)
	for rows.Next() {
		var rem model.Reminder
		if err := rows.Scan(
			&rem.ID,
			&rem.UserID,
			&rem.FollowupUsername,
			&rem.ReminderTime,
			&rem.Notes,
			&rem.Sent,
			&rem.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		reminders = append(reminders, &rem)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reminders: %w", err)
	}

	return reminders, nil
}

// MarkReminderSent sets sent = true. Marking an already-sent reminder succeeds.
// Returns ErrReminderNotFound if no reminder has the id.
func (r *Repository) MarkReminderSent(ctx context.Context, id int64) error {
	query := `
		UPDATE reminders
		SET sent = true
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		if IsIntegrityViolation(err) {
			return fmt.Errorf("%w: %s", ErrConflict, ConstraintName(err))
		}
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrReminderNotFound
	}

	return nil
}
