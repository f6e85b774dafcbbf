package track

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Source selects which play-log table(s) a batch reads from.
type Source string

// Track sources.
const (
	SourceLive    Source = "live"
	SourceArchive Source = "archive"
	SourceBoth    Source = "both"
)

// ParseSource validates a source string.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceLive, SourceArchive, SourceBoth:
		return Source(s), nil
	}
	return "", fmt.Errorf("unknown track source: %q", s)
}

// TableLive and TableArchive are the underlying play-log tables.
const (
	TableLive    = "live_tracks"
	TableArchive = "archive_tracks"
)

// Track is one logged play: a raw artist string and title as they appeared
// in the radio log or the archived-show catalog.
type Track struct {
	ID        string    `json:"id"`
	Table     string    `json:"table"`
	Artist    string    `json:"artist"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Service provides paginated reads and bulk imports over the play logs.
type Service struct {
	db *sql.DB
}

// NewService creates a track service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Page returns one page of tracks from the selected source(s), most recent
// first. Ordering is stable (created_at, then id) so that consecutive pages
// with advancing offsets are disjoint.
func (s *Service) Page(ctx context.Context, source Source, limit, offset int) ([]Track, error) {
	if limit < 1 {
		return nil, fmt.Errorf("page limit must be positive, got %d", limit)
	}
	if offset < 0 {
		return nil, fmt.Errorf("page offset must be non-negative, got %d", offset)
	}

	var query string
	switch source {
	case SourceLive:
		query = `SELECT id, artist, title, created_at, 'live_tracks' AS track_table FROM live_tracks`
	case SourceArchive:
		query = `SELECT id, artist, title, created_at, 'archive_tracks' AS track_table FROM archive_tracks`
	case SourceBoth:
		query = `SELECT id, artist, title, created_at, 'live_tracks' AS track_table FROM live_tracks
			UNION ALL
			SELECT id, artist, title, created_at, 'archive_tracks' AS track_table FROM archive_tracks`
	default:
		return nil, fmt.Errorf("unknown track source: %q", source)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("paging tracks: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var tracks []Track
	for rows.Next() {
		var tr Track
		var createdAt string
		if err := rows.Scan(&tr.ID, &tr.Artist, &tr.Title, &createdAt, &tr.Table); err != nil {
			return nil, fmt.Errorf("scanning track: %w", err)
		}
		tr.CreatedAt = parseTime(createdAt)
		tracks = append(tracks, tr)
	}
	return tracks, rows.Err()
}

// Import bulk-inserts tracks into the given source's table. Tracks without
// an ID get a fresh one; rows whose ID already exists are skipped.
func (s *Service) Import(ctx context.Context, source Source, tracks []Track) (int, error) {
	var table string
	switch source {
	case SourceLive:
		table = TableLive
	case SourceArchive:
		table = TableArchive
	default:
		return 0, fmt.Errorf("import requires a single source, got %q", source)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning import transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	inserted := 0
	for i := range tracks {
		tr := &tracks[i]
		if tr.ID == "" {
			tr.ID = uuid.New().String()
		}
		if tr.CreatedAt.IsZero() {
			tr.CreatedAt = time.Now().UTC()
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO `+table+` (id, artist, title, created_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO NOTHING`, //nolint:gosec // table is from validated switch
			tr.ID, tr.Artist, tr.Title, tr.CreatedAt.UTC().Format(time.RFC3339))
		if err != nil {
			return 0, fmt.Errorf("inserting track %s: %w", tr.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing import: %w", err)
	}
	return inserted, nil
}

// Counts returns the number of rows in each play-log table.
func (s *Service) Counts(ctx context.Context) (live, archive int, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM live_tracks`).Scan(&live); err != nil {
		return 0, 0, fmt.Errorf("counting live tracks: %w", err)
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM archive_tracks`).Scan(&archive); err != nil {
		return 0, 0, fmt.Errorf("counting archive tracks: %w", err)
	}
	return live, archive, nil
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
