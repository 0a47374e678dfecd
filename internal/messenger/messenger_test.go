package messenger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		GraphURL:        srv.URL + "/",
		PageAccessToken: "PAGE",
		LoginURL:        "https://example.com/login",
		HTTPClient:      srv.Client(),
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestSendText(t *testing.T) {
	var got sendRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/me/messages", r.URL.Path)
		assert.Equal(t, "PAGE", r.URL.Query().Get("access_token"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"recipient_id":"p1","message_id":"m1"}`))
	})

	res, err := c.SendText(context.Background(), "p1", "Alice\ncall back")
	require.NoError(t, err)

	assert.Equal(t, "p1", got.Recipient.ID)
	assert.Equal(t, "Alice\ncall back", got.Message.Text)
	assert.Nil(t, got.Message.Attachment)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "m1", res.MessageID)
}

func TestSendText_RejectedIsNotAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad recipient"}}`))
	})

	res, err := c.SendText(context.Background(), "nobody", "hi")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestSendText_TransportErrorRedactsToken(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient(Config{GraphURL: srv.URL, PageAccessToken: "SECRETPAGE"})

	_, err := c.SendText(context.Background(), "p1", "hi")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRETPAGE")
}

func TestSendLoginButton(t *testing.T) {
	var raw map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := c.SendLoginButton(context.Background(), "p9")
	require.NoError(t, err)

	msg := raw["message"].(map[string]any)
	att := msg["attachment"].(map[string]any)
	assert.Equal(t, "template", att["type"])
	payload := att["payload"].(map[string]any)
	assert.Equal(t, "button", payload["template_type"])
	btn := payload["buttons"].([]any)[0].(map[string]any)
	assert.Equal(t, "account_link", btn["type"])
	assert.Equal(t, "https://example.com/login", btn["url"])
}

func TestGetPSID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/me", r.URL.Path)
		assert.Equal(t, "recipient", q.Get("fields"))
		assert.Equal(t, "PAGE", q.Get("access_token"))

		switch q.Get("account_linking_token") {
		case "good":
			_, _ = w.Write([]byte(`{"id":"page-1","recipient":"p1"}`))
		case "empty":
			_, _ = w.Write([]byte(`{"id":"page-1"}`))
		case "outage":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	psid, err := c.GetPSID(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "p1", psid)

	_, err = c.GetPSID(context.Background(), "bad")
	assert.True(t, errors.Is(err, ErrInvalidLinkingToken))

	_, err = c.GetPSID(context.Background(), "empty")
	assert.True(t, errors.Is(err, ErrInvalidLinkingToken))

	// Platform failures are not token rejections.
	_, err = c.GetPSID(context.Background(), "outage")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidLinkingToken))
	assert.Contains(t, err.Error(), "503")
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"object":"page","entry":[]}`)
	sig := Sign("appsecret", body)

	assert.True(t, strings.HasPrefix(sig, "sha256="))
	assert.Len(t, sig, len("sha256=")+64)

	assert.NoError(t, VerifySignature("appsecret", sig, body))
	assert.NoError(t, VerifySignature("appsecret", "sha256="+strings.ToUpper(sig[7:]), body))
	assert.ErrorIs(t, VerifySignature("other", sig, body), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature("appsecret", sig, []byte(`{}`)), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature("appsecret", "", body), ErrMissingSignature)
	assert.ErrorIs(t, VerifySignature("appsecret", "sha1=abc", body), ErrMissingSignature)
}

func TestEvent_IsGetStarted(t *testing.T) {
	var p Payload
	require.NoError(t, json.Unmarshal([]byte(`{
		"object": "page",
		"entry": [{"id": "1", "time": 1, "messaging": [
			{"sender": {"id": "p1"}, "postback": {"payload": "get_started"}},
			{"sender": {"id": "p1"}, "postback": {"payload": "other"}},
			{"sender": {"id": "p1"}, "message": {"mid": "m", "text": "hi"}}
		]}]
	}`), &p))

	events := p.Entry[0].Messaging
	assert.True(t, events[0].IsGetStarted())
	assert.False(t, events[1].IsGetStarted())
	assert.False(t, events[2].IsGetStarted())
	assert.Equal(t, "hi", events[2].Message.Text)
}
