package msg

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const twilioBaseURL = "https://api.twilio.com/2010-04-01"

// TwilioClient sends SMS through the Twilio Messages API. Requests are
// form-encoded with HTTP basic auth, per the provider's REST contract.
type TwilioClient struct {
	AccountSID string
	AuthToken  string
	From       string

	// BaseURL overrides the API root in tests; empty means production.
	BaseURL string
	Client  *http.Client
}

// NewTwilioClient builds a Twilio SMS client sending from the given number.
func NewTwilioClient(accountSID, authToken, from string, timeout time.Duration) *TwilioClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TwilioClient{
		AccountSID: accountSID,
		AuthToken:  authToken,
		From:       from,
		Client:     &http.Client{Timeout: timeout},
	}
}

type twilioMessageResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"` // error detail on non-2xx
	Code    int    `json:"code"`
}

// Send implements Channel.
func (t *TwilioClient) Send(ctx context.Context, to, body string) (string, error) {
	base := t.BaseURL
	if base == "" {
		base = twilioBaseURL
	}
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", base, t.AccountSID)

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", t.From)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.AccountSID, t.AuthToken)

	resp, err := t.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("twilio send: %w", err)
	}
	defer resp.Body.Close()

	var out twilioMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("twilio decode: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("twilio send failed: status %d code %d: %s", resp.StatusCode, out.Code, out.Message)
	}
	return out.SID, nil
}
