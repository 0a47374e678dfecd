// Package testutil holds shared helpers for package tests.
package testutil

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/replyreminder/replyreminder/internal/migrations"
	"github.com/replyreminder/replyreminder/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema drops the reminder tables and re-applies the embedded migrations.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `DROP TABLE IF EXISTS reminders, persons, schema_migrations`); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}

	files := migrations.Files()
	all, err := migrations.List(files)
	if err != nil {
		return err
	}

	for _, m := range all {
		raw, err := fs.ReadFile(files, m.Name)
		if err != nil {
			return fmt.Errorf("read %s: %w", m.Name, err)
		}
		if _, err := pool.Exec(ctx, string(raw)); err != nil {
			return fmt.Errorf("apply %s: %w", m.Name, err)
		}
	}

	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestPerson creates an unlinked person with the given gsid.
func NewTestPerson(t testing.TB, gsid string) *model.Person {
	t.Helper()
	email := gsid + "@example.com"
	return &model.Person{
		GSID:  gsid,
		Email: &email,
	}
}

// NewTestReminder creates an unsent reminder addressed to psid.
func NewTestReminder(t testing.TB, psid, label string) *model.Reminder {
	t.Helper()
	return &model.Reminder{
		UserID:           psid,
		FollowupUsername: label,
		ReminderTime:     time.Now().UTC().Truncate(time.Second),
		Notes:            "notes for " + label,
	}
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
