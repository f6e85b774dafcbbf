package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/veldt-fm/airgraph/internal/artist"
	"github.com/veldt-fm/airgraph/internal/provider"
	"github.com/veldt-fm/airgraph/internal/relationship"
)

// enrichMaxItems bounds how much of a provider's collaboration network one
// artist pulls in per batch.
const enrichMaxItems = 50

// enrich fans provider lookups out over the batch's resolved artists. The
// worker pool bounds concurrency; the shared quota manager serializes
// accounting underneath it. A provider whose daily budget runs out is halted
// for the rest of the run without touching the other providers.
func (o *Orchestrator) enrich(ctx context.Context, names []provider.Name, col *collector) {
	targets := col.profiles()
	if len(targets) == 0 || len(names) == 0 {
		return
	}

	jobs := make(chan *artist.Profile)
	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				for _, name := range names {
					if ctx.Err() != nil {
						return
					}
					if col.providerHalted(name) {
						continue
					}
					client := o.registry.Get(name)
					if client == nil {
						if col.haltProvider(name) {
							o.logger.Debug("provider not configured",
								slog.String("provider", string(name)))
						}
						continue
					}
					o.enrichArtist(ctx, client, p, col)
				}
			}
		}()
	}

	for _, p := range targets {
		select {
		case <-ctx.Done():
		case jobs <- p:
			continue
		}
		break
	}
	close(jobs)
	wg.Wait()
}

// enrichArtist runs one provider's full lookup sequence for one artist:
// search, collaboration network, related artists. Failures are scoped to
// this (artist, provider) pair.
func (o *Orchestrator) enrichArtist(ctx context.Context, client provider.Client, p *artist.Profile, col *collector) {
	name := client.Name()

	found, err := client.SearchArtist(ctx, p.Name)
	if err != nil {
		o.handleProviderError(col, name, p, err)
		return
	}

	externalID := p.ExternalIDs[string(name)]
	if externalID == "" {
		externalID = found.ID
		if err := o.artists.SetExternalID(ctx, p.ID, string(name), found.ID); err != nil {
			col.addError(err)
		}
	}
	if len(found.Genres) > 0 {
		if err := o.artists.MergeGenres(ctx, p.ID, found.Genres); err != nil {
			col.addError(err)
		}
	}

	network, err := client.GetCollaborationNetwork(ctx, externalID, provider.CollaborationOptions{
		MaxItems:         enrichMaxItems,
		IncludeProducers: true,
		IncludeLabels:    true,
	})
	if err != nil {
		o.handleProviderError(col, name, p, err)
		return
	}
	o.collectNetwork(ctx, client, p, network, col)

	related, err := client.GetRelatedArtists(ctx, externalID)
	if err != nil {
		o.handleProviderError(col, name, p, err)
		return
	}
	o.collectRelated(ctx, client, p, found.Popularity, related, col)
}

// collectNetwork converts a provider collaboration network into edges,
// producer credits, and label aggregates.
func (o *Orchestrator) collectNetwork(ctx context.Context, client provider.Client, p *artist.Profile, network *provider.CollaborationNetwork, col *collector) {
	name := string(client.Name())

	for _, collab := range network.Collaborators {
		other, err := o.resolver.Resolve(ctx, collab.ArtistName, artist.CreatedEnrichment)
		if err != nil {
			var invalid *artist.InvalidNameError
			if errors.As(err, &invalid) {
				continue
			}
			col.addError(err)
			continue
		}
		if other.ID == p.ID {
			continue
		}
		col.sawArtist(other)
		if collab.ArtistID != "" {
			if err := o.artists.SetExternalID(ctx, other.ID, name, collab.ArtistID); err != nil {
				col.addError(err)
			}
		}

		typ := relationship.TypeCollaboration
		if hasRole(collab.Roles, "producer") {
			typ = relationship.TypeProducer
		}
		col.addEdge(&relationship.Relationship{
			SourceArtistID:     p.ID,
			TargetArtistID:     other.ID,
			Type:               typ,
			Strength:           provider.CollaborationStrength(collab.CollaborationCount, client.Weight()),
			CollaborationCount: collab.CollaborationCount,
			EvidenceReleases:   collab.Evidence,
			SourceData:         map[string]string{name: collab.ArtistID},
		})

		if typ == relationship.TypeProducer {
			for _, ev := range collab.Evidence {
				col.addCredit(&relationship.TrackCredit{
					TrackID:    ev,
					TrackTable: name,
					ArtistID:   other.ID,
					CreditType: relationship.CreditProducer,
					SourceAPI:  name,
					Confidence: confidenceProvider,
				})
			}
		}
	}

	for _, label := range network.Labels {
		col.addLabel(&relationship.LabelRelationship{
			ArtistID:        p.ID,
			LabelName:       label.LabelName,
			LabelExternalID: label.LabelID,
			ReleaseCount:    label.ReleaseCount,
			SourceData:      map[string]string{name: label.LabelID},
		})
	}
}

// collectRelated converts a provider's taste-similarity neighbors into
// influence edges.
func (o *Orchestrator) collectRelated(ctx context.Context, client provider.Client, p *artist.Profile, popularity int, related []provider.RelatedArtist, col *collector) {
	name := string(client.Name())

	for _, ra := range related {
		other, err := o.resolver.Resolve(ctx, ra.Name, artist.CreatedEnrichment)
		if err != nil {
			var invalid *artist.InvalidNameError
			if errors.As(err, &invalid) {
				continue
			}
			col.addError(err)
			continue
		}
		if other.ID == p.ID {
			continue
		}
		col.sawArtist(other)
		if ra.ID != "" {
			if err := o.artists.SetExternalID(ctx, other.ID, name, ra.ID); err != nil {
				col.addError(err)
			}
		}
		if len(ra.Genres) > 0 {
			if err := o.artists.MergeGenres(ctx, other.ID, ra.Genres); err != nil {
				col.addError(err)
			}
		}

		col.addEdge(&relationship.Relationship{
			SourceArtistID: p.ID,
			TargetArtistID: other.ID,
			Type:           relationship.TypeInfluence,
			Strength:       provider.InfluenceStrength(popularity, ra.Popularity),
			SourceData:     map[string]string{name: ra.ID},
		})
	}
}

// handleProviderError sorts one provider failure into skip, halt, or
// recorded error.
func (o *Orchestrator) handleProviderError(col *collector, name provider.Name, p *artist.Profile, err error) {
	var notFound *provider.ErrNotFound
	if errors.As(err, &notFound) {
		o.logger.Debug("no provider match",
			slog.String("provider", string(name)),
			slog.String("artist", p.Name))
		return
	}

	var quotaErr *provider.ErrQuotaExceeded
	if errors.As(err, &quotaErr) {
		if quotaErr.Scope == provider.ScopeDay {
			if col.haltProvider(name) {
				col.addError(err)
				o.logger.Warn("provider halted for the rest of the run",
					slog.String("provider", string(name)),
					slog.String("reason", "daily quota exhausted"))
			}
			return
		}
		// Minute-scope means the call was deferred in non-blocking
		// mode; the artist is simply skipped for this provider.
		o.logger.Info("enrichment deferred",
			slog.String("provider", string(name)),
			slog.String("artist", p.Name))
		return
	}

	var authErr *provider.ErrAuthRequired
	if errors.As(err, &authErr) {
		if col.haltProvider(name) {
			col.addError(err)
		}
		return
	}

	col.addError(err)
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
