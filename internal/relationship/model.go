package relationship

import (
	"fmt"
	"time"
)

// Type classifies a directed edge between two artist profiles.
type Type string

// Edge types.
const (
	TypeCollaboration Type = "collaboration"
	TypeFeatured      Type = "featured"
	TypeRemix         Type = "remix"
	TypeProducer      Type = "producer"
	TypeInfluence     Type = "influence"
)

// Countable reports whether edges of this type carry a meaningful
// collaboration count. Influence edges are taste-based and are not
// countable collaborations.
func (t Type) Countable() bool {
	return t != TypeInfluence
}

// MaxStrength bounds every edge's strength score.
const MaxStrength = 10

// ClipStrength clamps a strength score to [0, MaxStrength].
func ClipStrength(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > MaxStrength {
		return MaxStrength
	}
	return s
}

// Relationship is a directed, typed edge between two artist profiles.
// Its uniqueness key is (SourceArtistID, TargetArtistID, Type); repeated
// discovery merges evidence into the existing row.
type Relationship struct {
	ID                 string            `json:"id"`
	SourceArtistID     string            `json:"source_artist_id"`
	TargetArtistID     string            `json:"target_artist_id"`
	Type               Type              `json:"type"`
	Strength           float64           `json:"strength"`
	CollaborationCount int               `json:"collaboration_count"`
	EvidenceTracks     []string          `json:"evidence_tracks,omitempty"`
	EvidenceReleases   []string          `json:"evidence_releases,omitempty"`
	SourceData         map[string]string `json:"source_data,omitempty"`
	Verified           bool              `json:"verified"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// CreditType classifies a per-track attribution.
type CreditType string

// Credit types.
const (
	CreditMainArtist     CreditType = "main_artist"
	CreditFeaturedArtist CreditType = "featured_artist"
	CreditRemixer        CreditType = "remixer"
	CreditProducer       CreditType = "producer"
)

// TrackCredit attributes one artist's role on one track. Uniqueness key is
// (TrackID, ArtistID, CreditType).
type TrackCredit struct {
	ID         string     `json:"id"`
	TrackID    string     `json:"track_id"`
	TrackTable string     `json:"track_table"`
	ArtistID   string     `json:"artist_id"`
	CreditType CreditType `json:"credit_type"`
	SourceAPI  string     `json:"source_api"`
	Confidence float64    `json:"confidence"`
	CreatedAt  time.Time  `json:"created_at"`
}

// LabelRelationship aggregates an artist's releases on a record label.
type LabelRelationship struct {
	ID              string            `json:"id"`
	ArtistID        string            `json:"artist_id"`
	LabelName       string            `json:"label_name"`
	LabelExternalID string            `json:"label_external_id"`
	ReleaseCount    int               `json:"release_count"`
	SourceData      map[string]string `json:"source_data,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// SelfEdgeError indicates an edge whose source and target are the same
// profile. Such edges are rejected before reaching storage.
type SelfEdgeError struct {
	ArtistID string
	Type     Type
}

func (e *SelfEdgeError) Error() string {
	return fmt.Sprintf("self-edge rejected: artist %s, type %s", e.ArtistID, e.Type)
}

// RelatedArtist pairs an edge with the display name of the artist on its
// far end, for the discovery read path.
type RelatedArtist struct {
	ArtistID   string  `json:"artist_id"`
	ArtistName string  `json:"artist_name"`
	Type       Type    `json:"type"`
	Strength   float64 `json:"strength"`
}
