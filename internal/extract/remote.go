package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/treehouse/go-batch-backend/internal/catalog"
)

// RemoteExtractor calls an external classification endpoint that maps order
// text to one of the candidate restaurant names. Any transport or decode
// failure is logged and reported as a non-match so the Fallback combinator
// can hand the text to the keyword matcher.
type RemoteExtractor struct {
	URL    string
	Client *http.Client
	cat    *catalog.Catalog
}

// NewRemoteExtractor builds a remote extractor against url. The catalog is
// used to send candidate names with each request and to validate the reply.
func NewRemoteExtractor(url string, cat *catalog.Catalog, timeout time.Duration) *RemoteExtractor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteExtractor{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
		cat:    cat,
	}
}

type remoteRequest struct {
	Text       string   `json:"text"`
	Candidates []string `json:"candidates"`
}

type remoteResponse struct {
	Restaurant string `json:"restaurant"`
}

// ExtractRestaurant implements Extractor.
func (r *RemoteExtractor) ExtractRestaurant(ctx context.Context, text string) (string, bool) {
	body, err := json.Marshal(remoteRequest{Text: text, Candidates: r.cat.Names()})
	if err != nil {
		return "", false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("remote extractor unreachable")
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Ctx(ctx).Warn().Int("status", resp.StatusCode).Msg("remote extractor rejected request")
		return "", false
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("remote extractor returned malformed reply")
		return "", false
	}
	// The endpoint may hallucinate names; only accept catalog entries.
	rest, ok := r.cat.Lookup(out.Restaurant)
	if !ok {
		return "", false
	}
	return rest.Name, true
}
