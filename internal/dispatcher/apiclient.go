package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/replyreminder/replyreminder/internal/messenger"
	"github.com/replyreminder/replyreminder/internal/model"
)

// maxListBody caps how much of a listing response is read.
const maxListBody = 16 << 20

// APIClient calls the reminder web API.
type APIClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewAPIClient creates an APIClient for baseURL. token, when set, is sent
// as a bearer service token. A nil httpClient gets the tuned default.
func NewAPIClient(baseURL, token string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = messenger.NewHTTPClient(0)
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// ListUnsent fetches GET /reminders/. Any status other than 200 is an error.
func (c *APIClient) ListUnsent(ctx context.Context) ([]model.Reminder, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reminders/", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("list reminders: HTTP %d", resp.StatusCode)
	}

	var reminders []model.Reminder
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxListBody)).Decode(&reminders); err != nil {
		return nil, fmt.Errorf("decode reminders: %w", err)
	}
	return reminders, nil
}

// MarkSent posts the reminder id to POST /reminder/sent/ as a form field.
// Any status other than 200 is an error.
func (c *APIClient) MarkSent(ctx context.Context, id int64) error {
	form := url.Values{"reminderid": {strconv.FormatInt(id, 10)}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/reminder/sent/", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("mark reminder %d sent: %w", id, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mark reminder %d sent: HTTP %d", id, resp.StatusCode)
	}
	return nil
}

func (c *APIClient) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", "replyreminder-dispatcher/1.0")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}
