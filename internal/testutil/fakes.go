package testutil

import (
	"context"
	"sync"

	"github.com/replyreminder/replyreminder/internal/identity"
	"github.com/replyreminder/replyreminder/internal/messenger"
)

// StaticResolver resolves auth tokens from a fixed map.
// Unknown tokens fail with identity.ErrInvalidToken; Err overrides both.
type StaticResolver struct {
	Tokens map[string]string
	Err    error
}

// Resolve implements identity.Resolver.
func (r *StaticResolver) Resolve(_ context.Context, authToken string) (string, error) {
	if r.Err != nil {
		return "", r.Err
	}
	gsid, ok := r.Tokens[authToken]
	if !ok {
		return "", identity.ErrInvalidToken
	}
	return gsid, nil
}

// SentMessage is one recorded outbound message.
type SentMessage struct {
	PSID string
	Text string
	// LoginButton is set for SendLoginButton calls.
	LoginButton bool
}

// FakeMessenger records sends and resolves linking tokens from a map.
type FakeMessenger struct {
	mu sync.Mutex

	// LinkingTokens maps account_linking_token to psid.
	LinkingTokens map[string]string
	// LookupErr, when set, is returned by GetPSID.
	LookupErr error
	// SendErr, when set, is returned by every send.
	SendErr error

	sent []SentMessage
}

// GetPSID implements the account-linking lookup.
func (m *FakeMessenger) GetPSID(_ context.Context, token string) (string, error) {
	if m.LookupErr != nil {
		return "", m.LookupErr
	}
	psid, ok := m.LinkingTokens[token]
	if !ok {
		return "", messenger.ErrInvalidLinkingToken
	}
	return psid, nil
}

// SendLoginButton records a login prompt.
func (m *FakeMessenger) SendLoginButton(_ context.Context, psid string) (*messenger.SendResult, error) {
	return m.record(SentMessage{PSID: psid, LoginButton: true})
}

// SendText records a text message.
func (m *FakeMessenger) SendText(_ context.Context, psid, text string) (*messenger.SendResult, error) {
	return m.record(SentMessage{PSID: psid, Text: text})
}

func (m *FakeMessenger) record(msg SentMessage) (*messenger.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return nil, m.SendErr
	}
	m.sent = append(m.sent, msg)
	return &messenger.SendResult{StatusCode: 200, RecipientID: msg.PSID}, nil
}

// Sent returns a copy of the recorded messages.
func (m *FakeMessenger) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.sent...)
}

// Reset clears recorded messages.
func (m *FakeMessenger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}
