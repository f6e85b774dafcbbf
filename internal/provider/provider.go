package provider

import (
	"context"
	"fmt"
	"time"
)

// Name uniquely identifies a metadata provider.
type Name string

// Known provider names.
const (
	NameDiscogs Name = "discogs"
	NameSpotify Name = "spotify"
)

// AllNames returns all known provider names in display order.
func AllNames() []Name {
	return []Name{NameDiscogs, NameSpotify}
}

// DisplayName returns a human-readable name for the provider.
func (n Name) DisplayName() string {
	switch n {
	case NameDiscogs:
		return "Discogs"
	case NameSpotify:
		return "Spotify"
	default:
		return string(n)
	}
}

// Artist is a provider's record for one artist.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres,omitempty"`
	Popularity int      `json:"popularity,omitempty"`
}

// CollaborationOptions bounds a collaboration-network fetch.
type CollaborationOptions struct {
	MaxItems         int
	IncludeProducers bool
	IncludeLabels    bool
}

// Collaborator is one artist found alongside the queried artist, with the
// releases/tracks that evidence the collaboration.
type Collaborator struct {
	ArtistName         string   `json:"artist_name"`
	ArtistID           string   `json:"artist_id,omitempty"`
	CollaborationCount int      `json:"collaboration_count"`
	Roles              []string `json:"roles,omitempty"`
	Evidence           []string `json:"evidence,omitempty"`
}

// Label is a record label the queried artist has released on.
type Label struct {
	LabelName    string   `json:"label_name"`
	LabelID      string   `json:"label_id,omitempty"`
	ReleaseCount int      `json:"release_count"`
	Evidence     []string `json:"evidence,omitempty"`
}

// CollaborationNetwork is the normalized result of a collaboration fetch,
// keyed by normalized collaborator/label name.
type CollaborationNetwork struct {
	Collaborators map[string]Collaborator `json:"collaborators"`
	Labels        map[string]Label        `json:"labels,omitempty"`
}

// RelatedArtist is one entry from a provider's taste-similarity graph.
type RelatedArtist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres,omitempty"`
	Popularity int      `json:"popularity"`
}

// Client is the interface all enrichment provider adapters implement.
type Client interface {
	// Name returns the unique provider identifier.
	Name() Name

	// RequiresAuth returns true if this provider needs credentials to function.
	RequiresAuth() bool

	// Weight is the provider-specific factor converting collaboration
	// counts to edge strength.
	Weight() float64

	// SearchArtist finds the best match for a name. A miss is reported as
	// an ErrNotFound, not as a nil result.
	SearchArtist(ctx context.Context, name string) (*Artist, error)

	// GetCollaborationNetwork fetches collaborators (and optionally labels)
	// for an artist by the provider's own ID.
	GetCollaborationNetwork(ctx context.Context, id string, opts CollaborationOptions) (*CollaborationNetwork, error)

	// GetRelatedArtists fetches the provider's taste-similarity neighbors.
	// Providers without a similarity graph return nil, nil.
	GetRelatedArtists(ctx context.Context, id string) ([]RelatedArtist, error)
}

// CollaborationStrength converts a provider collaboration count to an edge
// strength, bounded at 10.
func CollaborationStrength(count int, weight float64) float64 {
	s := float64(count) * weight
	if s > 10 {
		return 10
	}
	return s
}

// InfluenceStrength scores a taste-similarity link from the popularity gap
// between the two artists. Close popularity means stronger influence; the
// score never drops below 1.
func InfluenceStrength(popA, popB int) float64 {
	gap := popA - popB
	if gap < 0 {
		gap = -gap
	}
	s := 10 - float64(gap)/10
	if s < 1 {
		return 1
	}
	return s
}

// ErrUnavailable indicates a transient failure (network error, timeout,
// server error). Callers retry these with backoff.
type ErrUnavailable struct {
	Provider   Name
	Cause      error
	RetryAfter time.Duration
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Cause)
}

func (e *ErrUnavailable) Unwrap() error { return e.Cause }

// ErrNotFound indicates the provider has no match for the query. It is a
// skip condition, not a failure.
type ErrNotFound struct {
	Provider Name
	Query    string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("provider %s: no match for %q", e.Provider, e.Query)
}

// ErrAuthRequired indicates the provider needs credentials but none are
// configured.
type ErrAuthRequired struct {
	Provider Name
}

func (e *ErrAuthRequired) Error() string {
	return fmt.Sprintf("provider %s: credentials not configured", e.Provider)
}
