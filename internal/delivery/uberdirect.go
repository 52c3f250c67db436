package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/treehouse/go-batch-backend/internal/catalog"
)

const (
	uberAuthURL = "https://auth.uber.com/oauth/v2/token"
	uberAPIBase = "https://api.uber.com/v1"
	uberScope   = "eats.deliveries"

	// Tokens are treated as expired 10 minutes early so a token never dies
	// mid-dispatch.
	tokenExpirySlack = 10 * time.Minute
)

// UberDirect implements Provider against the Uber Direct API. OAuth tokens
// are obtained with the client-credentials grant and cached until shortly
// before expiry; the client is safe for concurrent use.
type UberDirect struct {
	ClientID     string
	ClientSecret string
	CustomerID   string

	// TestMode books a robo courier instead of a real one.
	TestMode bool

	// AuthURL and APIBase override the endpoints in tests.
	AuthURL string
	APIBase string
	Client  *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewUberDirect builds an Uber Direct client for one provider customer
// account.
func NewUberDirect(clientID, clientSecret, customerID string, testMode bool, timeout time.Duration) *UberDirect {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &UberDirect{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		CustomerID:   customerID,
		TestMode:     testMode,
		Client:       &http.Client{Timeout: timeout},
	}
}

// Quote implements Provider.
func (u *UberDirect) Quote(ctx context.Context, req Request) (Quote, error) {
	payload := map[string]any{
		"pickup_address":    formatAddress(req.Restaurant.Pickup),
		"dropoff_address":   formatAddress(req.Dropoff),
		"pickup_latitude":   req.Restaurant.Pickup.Lat,
		"pickup_longitude":  req.Restaurant.Pickup.Lng,
		"dropoff_latitude":  req.Dropoff.Lat,
		"dropoff_longitude": req.Dropoff.Lng,
	}
	addScheduleWindows(payload, req.WindowClosesAt)

	var out struct {
		ID       string `json:"id"`
		Fee      int64  `json:"fee"`
		Currency string `json:"currency"`
	}
	path := fmt.Sprintf("/customers/%s/delivery_quotes", u.CustomerID)
	if err := u.post(ctx, path, payload, &out); err != nil {
		return Quote{}, fmt.Errorf("uber quote: %w", err)
	}
	return Quote{ID: out.ID, FeeCents: out.Fee, Currency: out.Currency}, nil
}

// CreateDelivery implements Provider.
func (u *UberDirect) CreateDelivery(ctx context.Context, req Request, q Quote) (Delivery, error) {
	items := make([]map[string]any, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, map[string]any{
			"name":     manifestName(it),
			"quantity": 1,
			"weight":   500, // grams, single-meal assumption
			"dimensions": map[string]int{
				"length": 25,
				"height": 15,
				"depth":  20,
			},
		})
	}

	payload := map[string]any{
		"quote_id":             q.ID,
		"pickup_address":       formatAddress(req.Restaurant.Pickup),
		"pickup_name":          req.Restaurant.Name,
		"pickup_phone_number":  req.Restaurant.Pickup.Phone,
		"pickup_latitude":      req.Restaurant.Pickup.Lat,
		"pickup_longitude":     req.Restaurant.Pickup.Lng,
		"dropoff_address":      formatAddress(req.Dropoff),
		"dropoff_name":         req.Dropoff.Name,
		"dropoff_phone_number": req.Dropoff.Phone,
		"dropoff_latitude":     req.Dropoff.Lat,
		"dropoff_longitude":    req.Dropoff.Lng,
		"manifest_items":       items,
		"external_id":          externalID(req.Restaurant.Name, req.WindowClosesAt),
	}
	addScheduleWindows(payload, req.WindowClosesAt)
	if u.TestMode {
		payload["test_specifications"] = map[string]any{
			"robo_courier_specification": map[string]string{"mode": "auto"},
		}
	}

	var out struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		TrackingURL string `json:"tracking_url"`
	}
	path := fmt.Sprintf("/customers/%s/deliveries", u.CustomerID)
	if err := u.post(ctx, path, payload, &out); err != nil {
		return Delivery{}, fmt.Errorf("uber delivery: %w", err)
	}
	return Delivery{ID: out.ID, Status: out.Status, TrackingURL: out.TrackingURL}, nil
}

// token returns a cached access token, refreshing via the client-credentials
// grant when missing or near expiry.
func (u *UberDirect) token(ctx context.Context) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.accessToken != "" && time.Now().Before(u.tokenExpiry) {
		return u.accessToken, nil
	}

	authURL := u.AuthURL
	if authURL == "" {
		authURL = uberAuthURL
	}
	form := url.Values{}
	form.Set("client_id", u.ClientID)
	form.Set("client_secret", u.ClientSecret)
	form.Set("grant_type", "client_credentials")
	form.Set("scope", uberScope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := u.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("uber auth: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("uber auth: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("uber auth decode: %w", err)
	}
	if tok.ExpiresIn == 0 {
		tok.ExpiresIn = 3600
	}
	u.accessToken = tok.AccessToken
	u.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenExpirySlack)
	return u.accessToken, nil
}

func (u *UberDirect) post(ctx context.Context, path string, payload any, out any) error {
	tok, err := u.token(ctx)
	if err != nil {
		return err
	}
	base := u.APIBase
	if base == "" {
		base = uberAPIBase
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := u.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// manifestName renders the item label the courier sees at pickup.
func manifestName(it ManifestItem) string {
	if it.IsName {
		return "Order for " + it.Identifier
	}
	return fmt.Sprintf("Order #%s for pickup", it.Identifier)
}

// externalID is the provider-side idempotency label for a window, stable
// across retries within the same minute-resolution window.
func externalID(restaurant string, closesAt time.Time) string {
	slug := strings.ToLower(strings.ReplaceAll(restaurant, " ", "-"))
	return fmt.Sprintf("%s-batch-%s", slug, closesAt.Format("200601021504"))
}

// formatAddress renders a location as the JSON-string address the provider
// expects.
func formatAddress(l catalog.Location) string {
	b, _ := json.Marshal(map[string]any{
		"street_address": []string{l.Address},
		"city":           l.City,
		"state":          l.State,
		"zip_code":       l.Zip,
		"country":        "US",
	})
	return string(b)
}

// addScheduleWindows attaches pickup/drop-off scheduling to a quote or
// delivery payload. Couriers are asked to arrive 15 minutes after the window
// closes, with a 30-minute pickup window and a 60-minute drop-off window.
// Windows already in the past are left out so the provider treats the run
// as ASAP.
func addScheduleWindows(payload map[string]any, closesAt time.Time) {
	if closesAt.IsZero() || time.Until(closesAt) < 0 {
		return
	}
	pickupReady := closesAt.Add(15 * time.Minute)
	pickupDeadline := pickupReady.Add(30 * time.Minute)
	dropoffReady := pickupDeadline
	dropoffDeadline := dropoffReady.Add(60 * time.Minute)

	payload["pickup_ready_dt"] = pickupReady.UTC().Format(time.RFC3339)
	payload["pickup_deadline_dt"] = pickupDeadline.UTC().Format(time.RFC3339)
	payload["dropoff_ready_dt"] = dropoffReady.UTC().Format(time.RFC3339)
	payload["dropoff_deadline_dt"] = dropoffDeadline.UTC().Format(time.RFC3339)
}
