package pipeline

import (
	"github.com/veldt-fm/airgraph/internal/provider"
	"github.com/veldt-fm/airgraph/internal/relationship"
	"github.com/veldt-fm/airgraph/internal/track"
)

// Default batch parameters.
const (
	DefaultLimit   = 100
	DefaultWorkers = 4
	sampleSize     = 5
)

// BatchRequest is one bounded unit of discovery work.
type BatchRequest struct {
	Limit     int             `json:"limit"`
	Offset    int             `json:"offset"`
	Source    track.Source    `json:"source"`
	Providers []provider.Name `json:"providers"`
}

func (r *BatchRequest) setDefaults() {
	if r.Limit < 1 {
		r.Limit = DefaultLimit
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
	if r.Source == "" {
		r.Source = track.SourceBoth
	}
	if len(r.Providers) == 0 {
		r.Providers = provider.AllNames()
	}
}

// BatchSummary reports what one discovery batch accomplished. A non-empty
// Errors list means partial success, not failure: the batch still completed
// and NextBatch is still a valid resume point.
type BatchSummary struct {
	TracksProcessed         int                          `json:"tracks_processed"`
	ArtistsFound            int                          `json:"artists_found"`
	RelationshipsDiscovered int                          `json:"relationships_discovered"`
	RelationshipsSaved      int                          `json:"relationships_saved"`
	CreditsCreated          int                          `json:"credits_created"`
	NextBatch               BatchRequest                 `json:"next_batch"`
	SampleRelationships     []*relationship.Relationship `json:"sample_relationships,omitempty"`
	Errors                  []string                     `json:"errors,omitempty"`
}

// phase names the orchestrator's state machine stages, in order. The run is
// linear: fetching, processing, enriching, writing, summarizing.
type phase string

const (
	phaseFetching    phase = "fetching"
	phaseProcessing  phase = "processing"
	phaseEnriching   phase = "enriching"
	phaseWriting     phase = "writing"
	phaseSummarizing phase = "summarizing"
)
