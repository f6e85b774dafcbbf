package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/veldt-fm/airgraph/internal/artist"
	"github.com/veldt-fm/airgraph/internal/extract"
	"github.com/veldt-fm/airgraph/internal/provider"
	"github.com/veldt-fm/airgraph/internal/relationship"
	"github.com/veldt-fm/airgraph/internal/track"
)

// Credit confidence by discovery source.
const (
	confidenceMainArtist = 1.0
	confidenceProvider   = 0.9
	confidenceParse      = 0.8
)

// Orchestrator drives one discovery batch end to end: page tracks, parse
// relationship candidates, resolve names, enrich via providers, write edges.
// Per-item failures are recorded in the summary and never abort the batch;
// only an unreachable store is fatal.
type Orchestrator struct {
	tracks    *track.Service
	artists   *artist.Service
	resolver  *artist.Resolver
	relations *relationship.Service
	writer    *relationship.Writer
	registry  *provider.Registry
	quota     *provider.QuotaManager
	extractor *extract.Extractor
	workers   int
	logger    *slog.Logger
}

// Options bundles the orchestrator's dependencies.
type Options struct {
	Tracks        *track.Service
	Artists       *artist.Service
	Resolver      *artist.Resolver
	Relationships *relationship.Service
	Writer        *relationship.Writer
	Registry      *provider.Registry
	Quota         *provider.QuotaManager
	Extractor     *extract.Extractor
	Workers       int
	Logger        *slog.Logger
}

// New creates a batch orchestrator.
func New(opts Options) *Orchestrator {
	workers := opts.Workers
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Orchestrator{
		tracks:    opts.Tracks,
		artists:   opts.Artists,
		resolver:  opts.Resolver,
		relations: opts.Relationships,
		writer:    opts.Writer,
		registry:  opts.Registry,
		quota:     opts.Quota,
		extractor: opts.Extractor,
		workers:   workers,
		logger:    opts.Logger.With(slog.String("component", "pipeline")),
	}
}

// collector accumulates discoveries across concurrent enrichment workers.
type collector struct {
	mu      sync.Mutex
	edges   []*relationship.Relationship
	credits []*relationship.TrackCredit
	labels  []*relationship.LabelRelationship
	artists map[string]*artist.Profile
	errors  []string
	halted  map[provider.Name]bool
}

func newCollector() *collector {
	return &collector{
		artists: make(map[string]*artist.Profile),
		halted:  make(map[provider.Name]bool),
	}
}

func (c *collector) addEdge(e *relationship.Relationship) {
	c.mu.Lock()
	c.edges = append(c.edges, e)
	c.mu.Unlock()
}

func (c *collector) addCredit(cr *relationship.TrackCredit) {
	c.mu.Lock()
	c.credits = append(c.credits, cr)
	c.mu.Unlock()
}

func (c *collector) addLabel(l *relationship.LabelRelationship) {
	c.mu.Lock()
	c.labels = append(c.labels, l)
	c.mu.Unlock()
}

func (c *collector) sawArtist(p *artist.Profile) {
	c.mu.Lock()
	if _, ok := c.artists[p.ID]; !ok {
		c.artists[p.ID] = p
	}
	c.mu.Unlock()
}

// profiles returns a snapshot of every artist seen so far.
func (c *collector) profiles() []*artist.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*artist.Profile, 0, len(c.artists))
	for _, p := range c.artists {
		out = append(out, p)
	}
	return out
}

func (c *collector) addError(err error) {
	c.mu.Lock()
	c.errors = append(c.errors, err.Error())
	c.mu.Unlock()
}

// haltProvider marks a provider done for the rest of the run. Returns true
// the first time, so the caller can record the reason exactly once.
func (c *collector) haltProvider(name provider.Name) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.halted[name] {
		return false
	}
	c.halted[name] = true
	return true
}

func (c *collector) providerHalted(name provider.Name) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.halted[name]
}

// Run executes one discovery batch and returns its summary. The returned
// error is non-nil only for fatal conditions (store unreachable, invalid
// request); everything else lands in the summary's error list.
func (o *Orchestrator) Run(ctx context.Context, req BatchRequest) (*BatchSummary, error) {
	req.setDefaults()

	o.logger.Info("batch starting",
		slog.String("phase", string(phaseFetching)),
		slog.Int("limit", req.Limit),
		slog.Int("offset", req.Offset),
		slog.String("source", string(req.Source)))

	page, err := o.tracks.Page(ctx, req.Source, req.Limit, req.Offset)
	if err != nil {
		return nil, fmt.Errorf("fetching track page: %w", err)
	}

	col := newCollector()

	o.logger.Info("batch processing",
		slog.String("phase", string(phaseProcessing)),
		slog.Int("tracks", len(page)))

	processed := 0
	for i := range page {
		if err := ctx.Err(); err != nil {
			col.addError(err)
			break
		}
		o.processTrack(ctx, &page[i], col)
		processed++
	}

	o.logger.Info("batch enriching",
		slog.String("phase", string(phaseEnriching)),
		slog.Int("artists", len(col.artists)),
		slog.Int("workers", o.workers))

	o.enrich(ctx, req.Providers, col)

	o.logger.Info("batch writing",
		slog.String("phase", string(phaseWriting)),
		slog.Int("edges", len(col.edges)),
		slog.Int("credits", len(col.credits)))

	writeResult := o.writer.UpsertEdges(ctx, col.edges)
	for _, werr := range writeResult.Errors {
		col.addError(werr)
	}

	creditsCreated := 0
	for _, cr := range col.credits {
		created, err := o.relations.UpsertCredit(ctx, cr)
		if err != nil {
			col.addError(err)
			continue
		}
		if created {
			creditsCreated++
		}
	}
	for _, l := range col.labels {
		if err := o.relations.UpsertLabel(ctx, l); err != nil {
			col.addError(err)
		}
	}

	summary := &BatchSummary{
		TracksProcessed:         processed,
		ArtistsFound:            len(col.artists),
		RelationshipsDiscovered: len(col.edges),
		RelationshipsSaved:      writeResult.Written,
		CreditsCreated:          creditsCreated,
		NextBatch: BatchRequest{
			Limit:     req.Limit,
			Offset:    req.Offset + req.Limit,
			Source:    req.Source,
			Providers: req.Providers,
		},
		Errors: col.errors,
	}
	if n := len(col.edges); n > 0 {
		if n > sampleSize {
			n = sampleSize
		}
		summary.SampleRelationships = col.edges[:n]
	}

	o.logger.Info("batch complete",
		slog.String("phase", string(phaseSummarizing)),
		slog.Int("tracks_processed", summary.TracksProcessed),
		slog.Int("relationships_saved", summary.RelationshipsSaved),
		slog.Int("errors", len(summary.Errors)))

	return summary, nil
}

// processTrack parses one track's strings into credits and candidate edges.
// Any failure is recorded against the batch and the track is abandoned
// without affecting its neighbors.
func (o *Orchestrator) processTrack(ctx context.Context, tr *track.Track, col *collector) {
	candidates := o.extractor.Extract(tr.Artist, tr.Title)

	// The track's principal artists: the two sides of a collaboration
	// split when one matched, otherwise the raw artist field.
	principals := []string{tr.Artist}
	for _, c := range candidates {
		if c.Type == extract.TypeCollaboration {
			principals = []string{c.Source, c.Target}
			break
		}
	}

	for _, name := range principals {
		p, err := o.resolver.Resolve(ctx, name, artist.CreatedTrackParsing)
		if err != nil {
			o.recordItemError(col, tr.ID, err)
			continue
		}
		col.sawArtist(p)
		col.addCredit(&relationship.TrackCredit{
			TrackID:    tr.ID,
			TrackTable: tr.Table,
			ArtistID:   p.ID,
			CreditType: relationship.CreditMainArtist,
			SourceAPI:  "parser",
			Confidence: confidenceMainArtist,
		})
	}

	for _, c := range candidates {
		source, err := o.resolver.Resolve(ctx, c.Source, artist.CreatedTrackParsing)
		if err != nil {
			o.recordItemError(col, tr.ID, err)
			continue
		}
		target, err := o.resolver.Resolve(ctx, c.Target, artist.CreatedTrackParsing)
		if err != nil {
			o.recordItemError(col, tr.ID, err)
			continue
		}
		col.sawArtist(source)
		col.sawArtist(target)

		// Distinct raw names can normalize to the same profile.
		if source.ID == target.ID {
			o.logger.Debug("dropping self-loop candidate",
				slog.String("track", tr.ID),
				slog.String("name", c.Source))
			continue
		}

		col.addEdge(&relationship.Relationship{
			SourceArtistID:     source.ID,
			TargetArtistID:     target.ID,
			Type:               edgeType(c.Type),
			Strength:           c.Strength,
			CollaborationCount: 1,
			EvidenceTracks:     []string{tr.ID},
			SourceData:         map[string]string{"parser": c.Rule},
		})

		if credit, ok := parseCreditType(c.Type); ok {
			col.addCredit(&relationship.TrackCredit{
				TrackID:    tr.ID,
				TrackTable: tr.Table,
				ArtistID:   target.ID,
				CreditType: credit,
				SourceAPI:  "parser",
				Confidence: confidenceParse,
			})
		}
	}
}

func (o *Orchestrator) recordItemError(col *collector, trackID string, err error) {
	var invalid *artist.InvalidNameError
	if errors.As(err, &invalid) {
		o.logger.Debug("skipping unresolvable name",
			slog.String("track", trackID),
			slog.String("error", err.Error()))
	}
	col.addError(fmt.Errorf("track %s: %w", trackID, err))
}

// edgeType maps a parse candidate type to its stored edge type.
func edgeType(t extract.RelationType) relationship.Type {
	switch t {
	case extract.TypeFeatured:
		return relationship.TypeFeatured
	case extract.TypeRemix:
		return relationship.TypeRemix
	default:
		return relationship.TypeCollaboration
	}
}

// parseCreditType maps a parse candidate type to the credit it implies for
// the target artist. Collaboration splits already credit both sides as main
// artists.
func parseCreditType(t extract.RelationType) (relationship.CreditType, bool) {
	switch t {
	case extract.TypeFeatured:
		return relationship.CreditFeaturedArtist, true
	case extract.TypeRemix:
		return relationship.CreditRemixer, true
	}
	return "", false
}
