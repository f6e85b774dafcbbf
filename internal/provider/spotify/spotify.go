package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/veldt-fm/airgraph/internal/provider"
)

const (
	defaultBaseURL  = "https://api.spotify.com"
	defaultTokenURL = "https://accounts.spotify.com/api/token"
)

// collaborationWeight converts per-track co-credit counts to edge strength.
const collaborationWeight = 1.0

// Adapter implements the provider.Client interface for Spotify using the
// client-credentials flow. Token refresh is handled by the oauth2 transport.
type Adapter struct {
	client  *http.Client
	limiter *provider.RateLimiterMap
	quota   *provider.QuotaManager
	logger  *slog.Logger
	baseURL string
	hasAuth bool
}

// New creates a Spotify adapter against the production endpoints.
func New(clientID, clientSecret string, limiter *provider.RateLimiterMap, quota *provider.QuotaManager, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(clientID, clientSecret, limiter, quota, logger, defaultBaseURL, defaultTokenURL)
}

// NewWithBaseURL creates a Spotify adapter with custom API and token
// endpoints (for testing).
func NewWithBaseURL(clientID, clientSecret string, limiter *provider.RateLimiterMap, quota *provider.QuotaManager, logger *slog.Logger, baseURL, tokenURL string) *Adapter {
	conf := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	client := conf.Client(context.Background())
	client.Timeout = 10 * time.Second

	return &Adapter{
		client:  client,
		limiter: limiter,
		quota:   quota,
		logger:  logger.With(slog.String("provider", "spotify")),
		baseURL: strings.TrimRight(baseURL, "/"),
		hasAuth: clientID != "" && clientSecret != "",
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.Name { return provider.NameSpotify }

// RequiresAuth returns whether this provider needs API credentials.
func (a *Adapter) RequiresAuth() bool { return true }

// Weight returns the collaboration-count-to-strength factor.
func (a *Adapter) Weight() float64 { return collaborationWeight }

// SearchArtist searches Spotify for the best matching artist.
func (a *Adapter) SearchArtist(ctx context.Context, name string) (*provider.Artist, error) {
	params := url.Values{
		"q":     {name},
		"type":  {"artist"},
		"limit": {"5"},
	}
	body, err := a.get(ctx, a.baseURL+"/v1/search?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}
	if len(resp.Artists.Items) == 0 {
		return nil, &provider.ErrNotFound{Provider: provider.NameSpotify, Query: name}
	}

	best := resp.Artists.Items[0]
	return &provider.Artist{
		ID:         best.ID,
		Name:       best.Name,
		Genres:     best.Genres,
		Popularity: best.Popularity,
	}, nil
}

// GetCollaborationNetwork derives collaborators from the artist's top
// tracks. Every co-credited artist on a top track counts once per track.
// Spotify exposes no label data, so the Labels map stays empty.
func (a *Adapter) GetCollaborationNetwork(ctx context.Context, id string, opts provider.CollaborationOptions) (*provider.CollaborationNetwork, error) {
	reqURL := fmt.Sprintf("%s/v1/artists/%s/top-tracks?market=US", a.baseURL, url.PathEscape(id))
	body, err := a.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp TopTracksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing top tracks response: %w", err)
	}

	network := &provider.CollaborationNetwork{
		Collaborators: make(map[string]provider.Collaborator),
		Labels:        make(map[string]provider.Label),
	}

	maxItems := opts.MaxItems
	for i, track := range resp.Tracks {
		if maxItems > 0 && i >= maxItems {
			break
		}
		for _, ta := range track.Artists {
			if ta.ID == id {
				continue
			}
			key := strings.ToLower(ta.Name)
			c, ok := network.Collaborators[key]
			if !ok {
				c = provider.Collaborator{ArtistName: ta.Name, ArtistID: ta.ID}
			}
			c.CollaborationCount++
			c.Roles = appendUnique(c.Roles, "performer")
			c.Evidence = appendUnique(c.Evidence, track.ID)
			network.Collaborators[key] = c
		}
	}

	return network, nil
}

// GetRelatedArtists fetches Spotify's taste-similarity neighbors.
func (a *Adapter) GetRelatedArtists(ctx context.Context, id string) ([]provider.RelatedArtist, error) {
	reqURL := fmt.Sprintf("%s/v1/artists/%s/related-artists", a.baseURL, url.PathEscape(id))
	body, err := a.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp RelatedArtistsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing related artists response: %w", err)
	}

	related := make([]provider.RelatedArtist, 0, len(resp.Artists))
	for _, artist := range resp.Artists {
		related = append(related, provider.RelatedArtist{
			ID:         artist.ID,
			Name:       artist.Name,
			Genres:     artist.Genres,
			Popularity: artist.Popularity,
		})
	}
	return related, nil
}

// get performs an authenticated GET with quota accounting, per-second rate
// limiting, and transient-failure retry.
func (a *Adapter) get(ctx context.Context, reqURL string) ([]byte, error) {
	if !a.hasAuth {
		return nil, &provider.ErrAuthRequired{Provider: provider.NameSpotify}
	}
	if err := a.quota.Acquire(ctx, provider.NameSpotify); err != nil {
		return nil, err
	}
	if err := a.limiter.Wait(ctx, provider.NameSpotify); err != nil {
		return nil, &provider.ErrUnavailable{
			Provider: provider.NameSpotify,
			Cause:    fmt.Errorf("rate limiter: %w", err),
		}
	}

	var body []byte
	err := provider.WithRetry(ctx, func() error {
		var reqErr error
		body, reqErr = a.doRequest(ctx, reqURL)
		return reqErr
	})
	return body, err
}

func (a *Adapter) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	a.logger.Debug("requesting", slog.String("url", reqURL))

	resp, err := a.client.Do(req)
	if err != nil {
		// A token-endpoint refusal means bad credentials, not a
		// transient outage.
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, &provider.ErrAuthRequired{Provider: provider.NameSpotify}
		}
		return nil, &provider.ErrUnavailable{Provider: provider.NameSpotify, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &provider.ErrNotFound{Provider: provider.NameSpotify, Query: reqURL}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &provider.ErrAuthRequired{Provider: provider.NameSpotify}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &provider.ErrUnavailable{
			Provider:   provider.NameSpotify,
			Cause:      fmt.Errorf("HTTP %d", resp.StatusCode),
			RetryAfter: retryAfter(resp),
		}
	case resp.StatusCode != http.StatusOK:
		return nil, &provider.ErrUnavailable{
			Provider: provider.NameSpotify,
			Cause:    fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	return io.ReadAll(resp.Body)
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

func appendUnique(s []string, v string) []string {
	for _, existing := range s {
		if existing == v {
			return s
		}
	}
	return append(s, v)
}
