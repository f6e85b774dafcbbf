package relationship

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veldt-fm/airgraph/internal/artist"
)

const edgeColumns = `id, source_artist_id, target_artist_id, type, strength,
	collaboration_count, evidence_tracks, evidence_releases, source_data,
	verified, created_at, updated_at`

// Service provides relationship, credit, and label data operations.
type Service struct {
	db *sql.DB
}

// NewService creates a relationship service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// UpsertEdge inserts the edge, or merges it into the existing row sharing
// its (source, target, type) key. Merging unions evidence, keeps the higher
// strength, sums collaboration counts for countable types, and preserves
// existing provenance keys. Self-edges are rejected.
func (s *Service) UpsertEdge(ctx context.Context, r *Relationship) error {
	if r.SourceArtistID == r.TargetArtistID {
		return &SelfEdgeError{ArtistID: r.SourceArtistID, Type: r.Type}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning edge transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx,
		`SELECT `+edgeColumns+` FROM relationships
		 WHERE source_artist_id = ? AND target_artist_id = ? AND type = ?`,
		r.SourceArtistID, r.TargetArtistID, string(r.Type))

	existing, err := scanEdge(row)
	now := time.Now().UTC()

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		r.Strength = ClipStrength(r.Strength)
		r.CreatedAt = now
		r.UpdatedAt = now
		res, execErr := tx.ExecContext(ctx, `
			INSERT INTO relationships (
				id, source_artist_id, target_artist_id, type, strength,
				collaboration_count, evidence_tracks, evidence_releases, source_data,
				verified, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(source_artist_id, target_artist_id, type) DO NOTHING
		`,
			r.ID, r.SourceArtistID, r.TargetArtistID, string(r.Type),
			r.Strength, r.CollaborationCount,
			artist.MarshalStringSlice(r.EvidenceTracks),
			artist.MarshalStringSlice(r.EvidenceReleases),
			artist.MarshalStringMap(r.SourceData),
			boolToInt(r.Verified),
			now.Format(time.RFC3339), now.Format(time.RFC3339),
		)
		if execErr != nil {
			return fmt.Errorf("inserting edge: %w", execErr)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Lost the insert race: the row appeared between the lookup
			// and the insert. Re-read it and merge instead.
			row := tx.QueryRowContext(ctx,
				`SELECT `+edgeColumns+` FROM relationships
				 WHERE source_artist_id = ? AND target_artist_id = ? AND type = ?`,
				r.SourceArtistID, r.TargetArtistID, string(r.Type))
			existing, readErr := scanEdge(row)
			if readErr != nil {
				return fmt.Errorf("re-reading edge after insert conflict: %w", readErr)
			}
			if err := s.mergeInto(ctx, tx, existing, r, now); err != nil {
				return err
			}
		}

	case err != nil:
		return fmt.Errorf("reading edge for merge: %w", err)

	default:
		if err := s.mergeInto(ctx, tx, existing, r, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing edge upsert: %w", err)
	}
	return nil
}

// mergeInto folds r into the stored edge and writes the result back,
// then replaces *r with the merged row.
func (s *Service) mergeInto(ctx context.Context, tx *sql.Tx, existing, r *Relationship, now time.Time) error {
	merged := mergeEdges(existing, r)
	merged.UpdatedAt = now
	_, err := tx.ExecContext(ctx, `
		UPDATE relationships SET
			strength = ?, collaboration_count = ?,
			evidence_tracks = ?, evidence_releases = ?, source_data = ?,
			updated_at = ?
		WHERE id = ?
	`,
		merged.Strength, merged.CollaborationCount,
		artist.MarshalStringSlice(merged.EvidenceTracks),
		artist.MarshalStringSlice(merged.EvidenceReleases),
		artist.MarshalStringMap(merged.SourceData),
		now.Format(time.RFC3339),
		merged.ID,
	)
	if err != nil {
		return fmt.Errorf("merging edge: %w", err)
	}
	*r = *merged
	return nil
}

// mergeEdges folds a newly discovered edge into the stored one.
func mergeEdges(existing, incoming *Relationship) *Relationship {
	merged := *existing

	if s := ClipStrength(incoming.Strength); s > merged.Strength {
		merged.Strength = s
	}
	if merged.Type.Countable() {
		merged.CollaborationCount += incoming.CollaborationCount
	}
	merged.EvidenceTracks = unionStrings(merged.EvidenceTracks, incoming.EvidenceTracks)
	merged.EvidenceReleases = unionStrings(merged.EvidenceReleases, incoming.EvidenceReleases)

	// Existing provenance wins; new sources only add keys.
	if len(incoming.SourceData) > 0 {
		if merged.SourceData == nil {
			merged.SourceData = make(map[string]string)
		}
		for k, v := range incoming.SourceData {
			if _, ok := merged.SourceData[k]; !ok {
				merged.SourceData[k] = v
			}
		}
	}

	return &merged
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := a
	for _, v := range a {
		seen[v] = true
	}
	for _, v := range b {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// GetEdge retrieves one edge by its uniqueness key. Returns nil when absent.
func (s *Service) GetEdge(ctx context.Context, sourceID, targetID string, typ Type) (*Relationship, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+edgeColumns+` FROM relationships
		 WHERE source_artist_id = ? AND target_artist_id = ? AND type = ?`,
		sourceID, targetID, string(typ))
	r, err := scanEdge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting edge: %w", err)
	}
	return r, nil
}

// CountEdges returns the total number of relationship rows.
func (s *Service) CountEdges(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM relationships`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting relationships: %w", err)
	}
	return n, nil
}

// TopRelated returns the strongest outgoing edges for an artist together
// with the target artist names, strongest first.
func (s *Service) TopRelated(ctx context.Context, artistID string, limit int) ([]RelatedArtist, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.target_artist_id, a.name, r.type, r.strength
		FROM relationships r
		JOIN artists a ON a.id = r.target_artist_id
		WHERE r.source_artist_id = ?
		ORDER BY r.strength DESC, a.name
		LIMIT ?
	`, artistID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing related artists: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var related []RelatedArtist
	for rows.Next() {
		var ra RelatedArtist
		var typ string
		if err := rows.Scan(&ra.ArtistID, &ra.ArtistName, &typ, &ra.Strength); err != nil {
			return nil, fmt.Errorf("scanning related artist: %w", err)
		}
		ra.Type = Type(typ)
		related = append(related, ra)
	}
	return related, rows.Err()
}

// UpsertCredit records a track credit, keeping the first row written for a
// given (track, artist, credit type). Returns true when a new row was created.
func (s *Service) UpsertCredit(ctx context.Context, c *TrackCredit) (bool, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO track_credits (id, track_id, track_table, artist_id, credit_type, source_api, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(track_id, artist_id, credit_type) DO NOTHING
	`,
		c.ID, c.TrackID, c.TrackTable, c.ArtistID, string(c.CreditType),
		c.SourceAPI, c.Confidence, now.Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("upserting track credit: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CountCredits returns the total number of track credit rows.
func (s *Service) CountCredits(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM track_credits`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting credits: %w", err)
	}
	return n, nil
}

// UpsertLabel records an artist-to-label aggregate. Re-discovery keeps the
// higher release count so repeated runs stay idempotent.
func (s *Service) UpsertLabel(ctx context.Context, l *LabelRelationship) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO label_relationships (id, artist_id, label_name, label_external_id, release_count, source_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(artist_id, label_name) DO UPDATE SET
			release_count = MAX(release_count, excluded.release_count),
			label_external_id = CASE WHEN label_external_id = '' THEN excluded.label_external_id ELSE label_external_id END,
			updated_at = excluded.updated_at
	`,
		l.ID, l.ArtistID, l.LabelName, l.LabelExternalID, l.ReleaseCount,
		artist.MarshalStringMap(l.SourceData), now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting label relationship: %w", err)
	}
	return nil
}

// scanEdge scans a database row into a Relationship struct.
func scanEdge(row interface{ Scan(...any) error }) (*Relationship, error) {
	var r Relationship
	var typ, tracks, releases, sourceData string
	var verified int
	var createdAt, updatedAt string

	err := row.Scan(
		&r.ID, &r.SourceArtistID, &r.TargetArtistID, &typ, &r.Strength,
		&r.CollaborationCount, &tracks, &releases, &sourceData,
		&verified, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Type = Type(typ)
	r.EvidenceTracks = artist.UnmarshalStringSlice(tracks)
	r.EvidenceReleases = artist.UnmarshalStringSlice(releases)
	r.SourceData = artist.UnmarshalStringMap(sourceData)
	r.Verified = verified == 1
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)

	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// parseTime parses a time string, handling both RFC3339 and SQLite datetime formats.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
