package artist

import (
	"context"
	"log/slog"
	"sync"
)

// Resolver canonicalizes free-text artist names into profiles. Resolution is
// idempotent: the same name always yields the same profile ID, within and
// across runs. A per-run cache avoids re-querying names a batch has already
// seen; the storage layer's slug uniqueness handles races the cache misses.
type Resolver struct {
	service *Service
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]*Profile
}

// NewResolver creates a resolver over the given artist service.
func NewResolver(service *Service, logger *slog.Logger) *Resolver {
	return &Resolver{
		service: service,
		logger:  logger.With(slog.String("component", "resolver")),
		cache:   make(map[string]*Profile),
	}
}

// Resolve finds or creates the canonical profile for a name. The via
// argument records the creation context on first sight of a name; it has no
// effect on names that already resolve. Invalid names return an
// InvalidNameError and never create a profile.
func (r *Resolver) Resolve(ctx context.Context, name string, via CreatedVia) (*Profile, error) {
	norm, err := Normalize(name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if p, ok := r.cache[norm.Slug]; ok {
		r.mu.Unlock()
		return p, nil
	}
	r.mu.Unlock()

	p, err := r.service.FindOrCreate(ctx, &Profile{
		Name:       name,
		Slug:       norm.Slug,
		CreatedVia: via,
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("resolved artist", slog.String("name", name), slog.String("slug", norm.Slug))

	r.mu.Lock()
	r.cache[norm.Slug] = p
	r.mu.Unlock()

	return p, nil
}
