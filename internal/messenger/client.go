// Package messenger talks to the Messenger Platform: the Send API,
// the account-linking PSID lookup and webhook payloads.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// DefaultGraphURL is the Graph API base the platform documents for the Send API.
const DefaultGraphURL = "https://graph.facebook.com/v2.6"

// ErrInvalidLinkingToken is returned when the platform does not resolve an
// account_linking_token to a recipient.
var ErrInvalidLinkingToken = errors.New("invalid account linking token")

// Config configures a Client.
type Config struct {
	GraphURL        string
	PageAccessToken string
	// LoginURL is the target of the account_link button.
	LoginURL   string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client calls the Graph API with the page access token.
type Client struct {
	graphURL  string
	pageToken string
	loginURL  string
	http      *http.Client
	logger    *slog.Logger
}

// NewClient creates a Client. Missing fields get defaults.
func NewClient(cfg Config) *Client {
	graphURL := strings.TrimRight(cfg.GraphURL, "/")
	if graphURL == "" {
		graphURL = DefaultGraphURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		graphURL:  graphURL,
		pageToken: cfg.PageAccessToken,
		loginURL:  cfg.LoginURL,
		http:      httpClient,
		logger:    logger.With("component", "messenger"),
	}
}

// SendResult describes the platform's answer to a send call.
// Callers that only need delivery attempted can ignore it.
type SendResult struct {
	StatusCode  int
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

// SendText posts a text message to psid.
// A non-2xx answer is not an error; only transport failures are.
func (c *Client) SendText(ctx context.Context, psid, text string) (*SendResult, error) {
	return c.send(ctx, sendRequest{
		Recipient: recipient{ID: psid},
		Message:   outMessage{Text: text},
	})
}

// SendLoginButton sends the account-link button template to psid.
func (c *Client) SendLoginButton(ctx context.Context, psid string) (*SendResult, error) {
	return c.send(ctx, sendRequest{
		Recipient: recipient{ID: psid},
		Message: outMessage{
			Attachment: &attachment{
				Type: "template",
				Payload: templatePayload{
					TemplateType: "button",
					Text:         "Log in to start receiving your reminders here.",
					Buttons: []button{
						{Type: "account_link", URL: c.loginURL},
					},
				},
			},
		},
	})
}

// GetPSID exchanges an account_linking_token for the page-scoped id of the
// user who started the linking flow.
func (c *Client) GetPSID(ctx context.Context, linkingToken string) (string, error) {
	q := url.Values{}
	q.Set("access_token", c.pageToken)
	q.Set("fields", "recipient")
	q.Set("account_linking_token", linkingToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.graphURL+"/me?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build psid request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("psid lookup: %w", redactErr(err, c.pageToken))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: status %d", ErrInvalidLinkingToken, resp.StatusCode)
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("psid lookup: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		ID        string `json:"id"`
		Recipient string `json:"recipient"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode psid response: %w", err)
	}
	if body.Recipient == "" {
		return "", ErrInvalidLinkingToken
	}
	return body.Recipient, nil
}

func (c *Client) send(ctx context.Context, msg sendRequest) (*SendResult, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	endpoint := c.graphURL + "/me/messages?access_token=" + url.QueryEscape(c.pageToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", redactErr(err, c.pageToken))
	}
	defer resp.Body.Close()

	result := &SendResult{StatusCode: resp.StatusCode}
	if resp.StatusCode/100 == 2 {
		_ = json.NewDecoder(resp.Body).Decode(result)
	} else {
		c.logger.Warn("send api rejected message",
			slog.Int("status_code", resp.StatusCode),
			slog.String("recipient", msg.Recipient.ID),
		)
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return result, nil
}

// redactErr keeps the page token out of *url.Error messages.
func redactErr(err error, token string) error {
	if token == "" {
		return err
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return &url.Error{
			Op:  uerr.Op,
			URL: strings.ReplaceAll(uerr.URL, url.QueryEscape(token), "REDACTED"),
			Err: uerr.Err,
		}
	}
	return err
}

type sendRequest struct {
	Recipient recipient  `json:"recipient"`
	Message   outMessage `json:"message"`
}

type recipient struct {
	ID string `json:"id"`
}

type outMessage struct {
	Text       string      `json:"text,omitempty"`
	Attachment *attachment `json:"attachment,omitempty"`
}

type attachment struct {
	Type    string          `json:"type"`
	Payload templatePayload `json:"payload"`
}

type templatePayload struct {
	TemplateType string   `json:"template_type"`
	Text         string   `json:"text"`
	Buttons      []button `json:"buttons"`
}

type button struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}
