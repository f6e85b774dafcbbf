package relationship

import (
	"context"
	"log/slog"
)

// Writer performs deduplicating batch upserts into the relationship graph.
// Edge failures are isolated: one bad edge never blocks the rest of the
// batch.
type Writer struct {
	service *Service
	logger  *slog.Logger
}

// NewWriter creates a graph writer over the given service.
func NewWriter(service *Service, logger *slog.Logger) *Writer {
	return &Writer{
		service: service,
		logger:  logger.With(slog.String("component", "graph-writer")),
	}
}

// WriteResult summarizes one batch write.
type WriteResult struct {
	Written int
	Errors  []error
}

// UpsertEdges writes all edges, merging each into any existing row sharing
// its (source, target, type) key. Self-edges and per-edge storage failures
// are collected into the result instead of aborting the batch.
func (w *Writer) UpsertEdges(ctx context.Context, edges []*Relationship) WriteResult {
	var result WriteResult
	for _, edge := range edges {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, ctx.Err())
			return result
		}
		if err := w.service.UpsertEdge(ctx, edge); err != nil {
			w.logger.Warn("edge upsert failed",
				slog.String("source", edge.SourceArtistID),
				slog.String("target", edge.TargetArtistID),
				slog.String("type", string(edge.Type)),
				slog.String("error", err.Error()))
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Written++
	}
	return result
}
