package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dictation/internal/domain"
)

// Pushover forwards failures to the Pushover push service. Only error and
// permission events are sent.
type Pushover struct {
	token      string
	userKey    string
	baseURL    string
	httpClient *http.Client
}

func NewPushover(token, userKey string) *Pushover {
	return NewPushoverWithURL(token, userKey, "https://api.pushover.net/1")
}

func NewPushoverWithURL(token, userKey, baseURL string) *Pushover {
	return &Pushover{
		token:      token,
		userKey:    userKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *Pushover) Notify(ctx context.Context, e domain.Event) error {
	if p.token == "" || p.userKey == "" {
		return nil
	}
	if e.Type != domain.EventError && e.Type != domain.EventPermissionWarning {
		return nil
	}
	title, body, ok := Message(e)
	if !ok {
		return nil
	}

	data := url.Values{}
	data.Set("token", p.token)
	data.Set("user", p.userKey)
	data.Set("title", title)
	data.Set("message", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages.json", strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pushover error: %s", resp.Status)
	}

	return nil
}
