package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/veldt-fm/airgraph/internal/provider"
)

const defaultBaseURL = "https://api.discogs.com"

// collaborationWeight converts Discogs release counts to edge strength.
// Discography-based counts weigh heavier than per-track credits.
const collaborationWeight = 1.5

// Adapter implements the provider.Client interface for Discogs.
type Adapter struct {
	client  *http.Client
	limiter *provider.RateLimiterMap
	quota   *provider.QuotaManager
	token   string
	logger  *slog.Logger
	baseURL string
}

// New creates a Discogs adapter with the default base URL.
func New(token string, limiter *provider.RateLimiterMap, quota *provider.QuotaManager, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(token, limiter, quota, logger, defaultBaseURL)
}

// NewWithBaseURL creates a Discogs adapter with a custom base URL (for testing).
func NewWithBaseURL(token string, limiter *provider.RateLimiterMap, quota *provider.QuotaManager, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		quota:   quota,
		token:   token,
		logger:  logger.With(slog.String("provider", "discogs")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.Name { return provider.NameDiscogs }

// RequiresAuth returns whether this provider needs an API token.
func (a *Adapter) RequiresAuth() bool { return true }

// Weight returns the collaboration-count-to-strength factor.
func (a *Adapter) Weight() float64 { return collaborationWeight }

// SearchArtist searches Discogs for the best matching artist.
func (a *Adapter) SearchArtist(ctx context.Context, name string) (*provider.Artist, error) {
	params := url.Values{
		"q":        {name},
		"type":     {"artist"},
		"per_page": {"5"},
	}
	body, err := a.get(ctx, a.baseURL+"/database/search?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}
	if len(resp.Results) == 0 {
		return nil, &provider.ErrNotFound{Provider: provider.NameDiscogs, Query: name}
	}

	best := resp.Results[0]
	return &provider.Artist{
		ID:   strconv.Itoa(best.ID),
		Name: best.Title,
	}, nil
}

// GetCollaborationNetwork derives collaborators and labels from the
// artist's release list. Collaborators are the other artists credited on
// joint releases; each shared release counts once.
func (a *Adapter) GetCollaborationNetwork(ctx context.Context, id string, opts provider.CollaborationOptions) (*provider.CollaborationNetwork, error) {
	maxItems := opts.MaxItems
	if maxItems < 1 || maxItems > 100 {
		maxItems = 100
	}

	params := url.Values{
		"sort":     {"year"},
		"per_page": {strconv.Itoa(maxItems)},
	}
	reqURL := fmt.Sprintf("%s/artists/%s/releases?%s", a.baseURL, url.PathEscape(id), params.Encode())
	body, err := a.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp ReleasesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing releases response: %w", err)
	}

	network := &provider.CollaborationNetwork{
		Collaborators: make(map[string]provider.Collaborator),
		Labels:        make(map[string]provider.Label),
	}

	for _, rel := range resp.Releases {
		role := mapRole(rel.Role)
		if role == "producer" && !opts.IncludeProducers {
			continue
		}
		releaseID := strconv.Itoa(rel.ID)

		for _, name := range splitArtists(rel.Artist) {
			key := strings.ToLower(name)
			c, ok := network.Collaborators[key]
			if !ok {
				c = provider.Collaborator{ArtistName: name}
			}
			c.CollaborationCount++
			c.Roles = appendUnique(c.Roles, role)
			c.Evidence = appendUnique(c.Evidence, releaseID)
			network.Collaborators[key] = c
		}

		if opts.IncludeLabels && rel.Label != "" {
			key := strings.ToLower(rel.Label)
			l, ok := network.Labels[key]
			if !ok {
				l = provider.Label{LabelName: rel.Label}
			}
			l.ReleaseCount++
			l.Evidence = appendUnique(l.Evidence, releaseID)
			network.Labels[key] = l
		}
	}

	return network, nil
}

// GetRelatedArtists returns nil; Discogs has no taste-similarity graph.
func (a *Adapter) GetRelatedArtists(ctx context.Context, id string) ([]provider.RelatedArtist, error) {
	return nil, nil
}

// get performs an authenticated GET with quota accounting, per-second rate
// limiting, and transient-failure retry.
func (a *Adapter) get(ctx context.Context, reqURL string) ([]byte, error) {
	if a.token == "" {
		return nil, &provider.ErrAuthRequired{Provider: provider.NameDiscogs}
	}
	if err := a.quota.Acquire(ctx, provider.NameDiscogs); err != nil {
		return nil, err
	}
	if err := a.limiter.Wait(ctx, provider.NameDiscogs); err != nil {
		return nil, &provider.ErrUnavailable{
			Provider: provider.NameDiscogs,
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
	req.Header.Set("Authorization", "Discogs token="+a.token)
	req.Header.Set("User-Agent", "Airgraph/1.0")
	req.Header.Set("Accept", "application/json")

	a.logger.Debug("requesting", slog.String("url", reqURL))

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &provider.ErrUnavailable{Provider: provider.NameDiscogs, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &provider.ErrNotFound{Provider: provider.NameDiscogs, Query: reqURL}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &provider.ErrAuthRequired{Provider: provider.NameDiscogs}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &provider.ErrUnavailable{
			Provider:   provider.NameDiscogs,
			Cause:      fmt.Errorf("HTTP %d", resp.StatusCode),
			RetryAfter: retryAfter(resp),
		}
	case resp.StatusCode != http.StatusOK:
		return nil, &provider.ErrUnavailable{
			Provider: provider.NameDiscogs,
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

// mapRole normalizes a Discogs release role.
func mapRole(role string) string {
	switch strings.ToLower(role) {
	case "remix":
		return "remixer"
	case "producer":
		return "producer"
	default:
		return "performer"
	}
}

// splitArtists breaks a joined Discogs artist display string into names.
func splitArtists(display string) []string {
	var names []string
	for _, part := range strings.FieldsFunc(display, func(r rune) bool { return r == ',' }) {
		for _, name := range strings.Split(part, " & ") {
			name = strings.TrimSpace(name)
			if name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

func appendUnique(s []string, v string) []string {
	for _, existing := range s {
		if existing == v {
			return s
		}
	}
	return append(s, v)
}
