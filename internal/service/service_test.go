package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replyreminder/replyreminder/internal/messenger"
	"github.com/replyreminder/replyreminder/internal/metrics"
	"github.com/replyreminder/replyreminder/internal/testutil"
)

type fixture struct {
	svc      *ReminderService
	store    *testutil.MemoryStore
	resolver *testutil.StaticResolver
	chat     *testutil.FakeMessenger
	metrics  *metrics.InMemoryRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    testutil.NewMemoryStore(),
		resolver: &testutil.StaticResolver{Tokens: map[string]string{"tok-g1": "g1", "tok-g2": "g2"}},
		chat:     &testutil.FakeMessenger{LinkingTokens: map[string]string{"link-p1": "p1", "link-p2": "p2"}},
		metrics:  metrics.NewInMemory(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = New(f.store, f.resolver, f.chat, f.metrics, logger)
	return f
}

func (f *fixture) link(t *testing.T, gsid, token, linkToken string) {
	t.Helper()
	require.NoError(t, f.svc.LinkAccount(context.Background(), LinkAccountInput{
		GSID:                gsid,
		AccountLinkingToken: linkToken,
		AuthToken:           token,
	}))
}

func TestCreateUser_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := CreateUserInput{UserID: "g1", Email: "a@example.com", UpdatedTime: "2024-03-01T10:00:00"}
	require.NoError(t, f.svc.CreateUser(ctx, in))

	in.Email = "changed@example.com"
	require.NoError(t, f.svc.CreateUser(ctx, in))

	persons := f.store.Persons()
	require.Len(t, persons, 1)
	assert.Equal(t, "g1", persons[0].GSID)
	assert.Equal(t, "a@example.com", *persons[0].Email)
	assert.Nil(t, persons[0].FirstName)
	require.NotNil(t, persons[0].UpdatedTime)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), *persons[0].UpdatedTime)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().UsersCreated)
}

func TestCreateUser_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.CreateUser(ctx, CreateUserInput{})
	assert.Equal(t, KindInput, KindOf(err))

	err = f.svc.CreateUser(ctx, CreateUserInput{UserID: "g1", UpdatedTime: "yesterday"})
	assert.Equal(t, KindInput, KindOf(err))
	assert.Empty(t, f.store.Persons())
}

func TestCreateUser_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.store.Err = errors.New("connection refused")

	err := f.svc.CreateUser(context.Background(), CreateUserInput{UserID: "g1"})
	assert.Equal(t, KindStore, KindOf(err))
}

func TestLinkAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Linking creates the person when absent.
	f.link(t, "g1", "tok-g1", "link-p1")
	persons := f.store.Persons()
	require.Len(t, persons, 1)
	assert.Equal(t, "p1", persons[0].LinkedPSID())

	// A new psid for the same gsid replaces the old one.
	f.link(t, "g1", "tok-g1", "link-p2")
	persons = f.store.Persons()
	require.Len(t, persons, 1)
	assert.Equal(t, "p2", persons[0].LinkedPSID())

	// Registered first, linked second.
	require.NoError(t, f.svc.CreateUser(ctx, CreateUserInput{UserID: "g2"}))
	f.link(t, "g2", "tok-g2", "link-p1")
	assert.Len(t, f.store.Persons(), 2)

	assert.Equal(t, uint64(3), f.metrics.Snapshot().AccountsLinked)
}

func TestLinkAccount_Failures(t *testing.T) {
	tests := []struct {
		name     string
		in       LinkAccountInput
		setup    func(f *fixture)
		wantKind Kind
		wantMsg  string
	}{
		{
			name:     "missing gsid",
			in:       LinkAccountInput{AccountLinkingToken: "link-p1", AuthToken: "tok-g1"},
			wantKind: KindInput,
		},
		{
			name:     "missing linking token",
			in:       LinkAccountInput{GSID: "g1", AuthToken: "tok-g1"},
			wantKind: KindInput,
		},
		{
			name:     "missing auth token",
			in:       LinkAccountInput{GSID: "g1", AccountLinkingToken: "link-p1"},
			wantKind: KindInput,
		},
		{
			name:     "token for another user",
			in:       LinkAccountInput{GSID: "g1", AccountLinkingToken: "link-p1", AuthToken: "tok-g2"},
			wantKind: KindInput,
			wantMsg:  "invalid auth_token for userid",
		},
		{
			name:     "token rejected by provider",
			in:       LinkAccountInput{GSID: "g1", AccountLinkingToken: "link-p1", AuthToken: "expired"},
			wantKind: KindInput,
			wantMsg:  "invalid auth_token for userid",
		},
		{
			name:     "provider unreachable",
			in:       LinkAccountInput{GSID: "g1", AccountLinkingToken: "link-p1", AuthToken: "tok-g1"},
			setup:    func(f *fixture) { f.resolver.Err = errors.New("dial tcp: timeout") },
			wantKind: KindStore,
		},
		{
			name:     "linking token rejected",
			in:       LinkAccountInput{GSID: "g1", AccountLinkingToken: "stale", AuthToken: "tok-g1"},
			wantKind: KindInput,
		},
		{
			name:     "platform unreachable",
			in:       LinkAccountInput{GSID: "g1", AccountLinkingToken: "link-p1", AuthToken: "tok-g1"},
			setup:    func(f *fixture) { f.chat.LookupErr = errors.New("dial tcp: timeout") },
			wantKind: KindStore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}

			err := f.svc.LinkAccount(context.Background(), tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, KindOf(err))
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, MessageOf(err))
			}
			assert.Empty(t, f.store.Persons())
		})
	}
}

func TestCreateReminder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.link(t, "g1", "tok-g1", "link-p1")

	r, err := f.svc.CreateReminder(ctx, CreateReminderInput{
		AuthToken:        "tok-g1",
		UserID:           "g1",
		FollowupUsername: "Alice",
		ReminderTime:     "2024-05-01T09:30:00Z",
		Notes:            "call back",
	})
	require.NoError(t, err)

	assert.NotZero(t, r.ID)
	assert.Equal(t, "p1", r.UserID, "reminder must be addressed to the psid")
	assert.Equal(t, time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC), r.ReminderTime)
	assert.False(t, r.Sent)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().RemindersCreated)
}

func TestCreateReminder_DefaultsTimeToNow(t *testing.T) {
	f := newFixture(t)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	f.svc.now = func() time.Time { return fixed }
	f.link(t, "g1", "tok-g1", "link-p1")

	r, err := f.svc.CreateReminder(context.Background(), CreateReminderInput{
		AuthToken: "tok-g1", UserID: "g1", FollowupUsername: "Alice",
	})
	require.NoError(t, err)
	assert.Equal(t, fixed, r.ReminderTime)
	assert.Equal(t, "", r.Notes)
}

func TestCreateReminder_Failures(t *testing.T) {
	valid := CreateReminderInput{AuthToken: "tok-g1", UserID: "g1", FollowupUsername: "Alice"}

	tests := []struct {
		name     string
		mutate   func(in *CreateReminderInput)
		setup    func(t *testing.T, f *fixture)
		wantKind Kind
		wantMsg  string
	}{
		{
			name:     "missing auth token",
			mutate:   func(in *CreateReminderInput) { in.AuthToken = "" },
			wantKind: KindInput,
		},
		{
			name:     "missing userid",
			mutate:   func(in *CreateReminderInput) { in.UserID = "" },
			wantKind: KindInput,
		},
		{
			name:     "blank label",
			mutate:   func(in *CreateReminderInput) { in.FollowupUsername = "  " },
			wantKind: KindInput,
		},
		{
			name:     "bad time",
			mutate:   func(in *CreateReminderInput) { in.ReminderTime = "tomorrow" },
			wantKind: KindInput,
		},
		{
			name:     "unknown person",
			wantKind: KindInput,
		},
		{
			name: "registered but not linked",
			setup: func(t *testing.T, f *fixture) {
				require.NoError(t, f.svc.CreateUser(context.Background(), CreateUserInput{UserID: "g1"}))
			},
			wantKind: KindInput,
		},
		{
			name:     "token for another user",
			mutate:   func(in *CreateReminderInput) { in.AuthToken = "tok-g2" },
			setup:    func(t *testing.T, f *fixture) { f.link(t, "g1", "tok-g1", "link-p1") },
			wantKind: KindInput,
			wantMsg:  "invalid auth_token for userid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(t, f)
			}
			in := valid
			if tt.mutate != nil {
				tt.mutate(&in)
			}

			_, err := f.svc.CreateReminder(context.Background(), in)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, KindOf(err))
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, MessageOf(err))
			}
			assert.Empty(t, f.store.Reminders())
		})
	}
}

func TestListAndMarkSent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.link(t, "g1", "tok-g1", "link-p1")

	first, err := f.svc.CreateReminder(ctx, CreateReminderInput{AuthToken: "tok-g1", UserID: "g1", FollowupUsername: "Alice"})
	require.NoError(t, err)
	second, err := f.svc.CreateReminder(ctx, CreateReminderInput{AuthToken: "tok-g1", UserID: "g1", FollowupUsername: "Bob"})
	require.NoError(t, err)

	unsent, err := f.svc.ListUnsentReminders(ctx)
	require.NoError(t, err)
	require.Len(t, unsent, 2)
	assert.Equal(t, first.ID, unsent[0].ID)

	require.NoError(t, f.svc.MarkReminderSent(ctx, formatID(first.ID)))
	require.NoError(t, f.svc.MarkReminderSent(ctx, formatID(first.ID)), "marking twice succeeds")

	unsent, err = f.svc.ListUnsentReminders(ctx)
	require.NoError(t, err)
	require.Len(t, unsent, 1)
	assert.Equal(t, second.ID, unsent[0].ID)
	for _, r := range unsent {
		assert.False(t, r.Sent)
	}
}

func TestMarkReminderSent_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, KindInput, KindOf(f.svc.MarkReminderSent(ctx, "")))
	assert.Equal(t, KindInput, KindOf(f.svc.MarkReminderSent(ctx, "abc")))

	err := f.svc.MarkReminderSent(ctx, "999")
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "reminder not found", MessageOf(err))

	f.store.Err = errors.New("connection reset")
	assert.Equal(t, KindStore, KindOf(f.svc.MarkReminderSent(ctx, "1")))
	_, err = f.svc.ListUnsentReminders(ctx)
	assert.Equal(t, KindStore, KindOf(err))
}

func TestHandleWebhook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	payload := &messenger.Payload{
		Object: "page",
		Entry: []messenger.Entry{{
			Messaging: []messenger.Event{
				{Sender: messenger.Party{ID: "p7"}, Postback: &messenger.Postback{Payload: "get_started"}},
				{Sender: messenger.Party{ID: "p7"}, Postback: &messenger.Postback{Payload: "something_else"}},
				{Sender: messenger.Party{ID: "p7"}, Message: &messenger.Message{Text: "hello"}},
				{Sender: messenger.Party{ID: "p7"}},
			},
		}},
	}
	require.NoError(t, f.svc.HandleWebhook(ctx, payload))

	sent := f.chat.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "p7", sent[0].PSID)
	assert.True(t, sent[0].LoginButton)

	snap := f.metrics.Snapshot()
	assert.Equal(t, uint64(2), snap.WebhookEvents[metrics.EventPostback])
	assert.Equal(t, uint64(1), snap.WebhookEvents[metrics.EventMessage])
	assert.Equal(t, uint64(1), snap.WebhookEvents[metrics.EventOther])
}

func TestHandleWebhook_NotPage(t *testing.T) {
	f := newFixture(t)

	err := f.svc.HandleWebhook(context.Background(), &messenger.Payload{Object: "instagram"})
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Empty(t, f.chat.Sent())
}

func TestHandleWebhook_SendFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	f.chat.SendErr = errors.New("connection refused")

	err := f.svc.HandleWebhook(context.Background(), &messenger.Payload{
		Object: "page",
		Entry: []messenger.Entry{{Messaging: []messenger.Event{
			{Sender: messenger.Party{ID: "p7"}, Postback: &messenger.Postback{Payload: "get_started"}},
		}}},
	})
	assert.NoError(t, err)
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	for _, s := range []string{"2024-05-01T09:30:00Z", "2024-05-01T11:30:00+02:00", "2024-05-01T09:30:00", "2024-05-01 09:30:00"} {
		got, err := parseTime(s)
		require.NoError(t, err, s)
		assert.True(t, want.Equal(got), "%s parsed to %s", s, got)
	}

	got, err := parseTime("2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = parseTime("01/05/2024")
	assert.Error(t, err)
}

func TestErrorKinds(t *testing.T) {
	assert.Equal(t, KindStore, KindOf(errors.New("plain")))
	assert.Equal(t, "", MessageOf(errors.New("plain")))

	wrapped := errors.Join(errors.New("context"), inputError("bad"))
	assert.Equal(t, KindInput, KindOf(wrapped))
	assert.Equal(t, "bad", MessageOf(wrapped))

	inner := errors.New("disk full")
	assert.True(t, errors.Is(storeError("op", inner), inner))
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestLinkAccount_PlatformOutageIsInternal(t *testing.T) {
	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer graph.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	chat := messenger.NewClient(messenger.Config{
		GraphURL:        graph.URL,
		PageAccessToken: "PAGE",
		HTTPClient:      graph.Client(),
		Logger:          logger,
	})
	resolver := &testutil.StaticResolver{Tokens: map[string]string{"tok-g1": "g1"}}
	store := testutil.NewMemoryStore()
	svc := New(store, resolver, chat, metrics.NewNoop(), logger)

	err := svc.LinkAccount(context.Background(), LinkAccountInput{
		GSID:                "g1",
		AccountLinkingToken: "link-p1",
		AuthToken:           "tok-g1",
	})
	require.Error(t, err)
	assert.Equal(t, KindStore, KindOf(err))
	assert.Empty(t, MessageOf(err))
	assert.Empty(t, store.Persons())
}
