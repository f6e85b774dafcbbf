package artist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// artistColumns is the ordered list of columns for SELECT queries.
const artistColumns = `id, name, slug, external_ids, genres, created_via, created_at, updated_at`

// Service provides artist profile data operations backed by SQLite.
type Service struct {
	db *sql.DB
}

// NewService creates an artist service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// FindOrCreate returns the profile for the given slug, inserting a new one
// if none exists. The slug's UNIQUE constraint is the authority under
// concurrent creation: a conflicting insert falls back to re-reading the
// winning row, so repeated calls always yield the same profile.
func (s *Service) FindOrCreate(ctx context.Context, p *Profile) (*Profile, error) {
	existing, err := s.GetBySlug(ctx, p.Slug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO artists (id, name, slug, external_ids, genres, created_via, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO NOTHING
	`,
		p.ID, p.Name, p.Slug,
		MarshalStringMap(p.ExternalIDs), MarshalStringSlice(p.Genres),
		string(p.CreatedVia),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("creating artist: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		// Lost the race; the existing row wins.
		existing, err := s.GetBySlug(ctx, p.Slug)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("artist %s vanished after insert conflict", p.Slug)
		}
		return existing, nil
	}

	return p, nil
}

// GetByID retrieves an artist by primary key.
func (s *Service) GetByID(ctx context.Context, id string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+artistColumns+` FROM artists WHERE id = ?`, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("artist not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting artist by id: %w", err)
	}
	return p, nil
}

// GetBySlug retrieves an artist by normalized slug. Returns nil when absent.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+artistColumns+` FROM artists WHERE slug = ?`, slug)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting artist by slug: %w", err)
	}
	return p, nil
}

// GetByExternalID retrieves an artist by a provider-specific ID.
// Returns nil when absent.
func (s *Service) GetByExternalID(ctx context.Context, provider, id string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+artistColumns+` FROM artists WHERE json_extract(external_ids, '$.' || ?) = ?`,
		provider, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting artist by %s id: %w", provider, err)
	}
	return p, nil
}

// SetExternalID records a provider-specific ID on a profile. An ID already
// present for that provider is left untouched. The update is a single
// json_set statement so concurrent writers setting different providers
// cannot overwrite each other's keys.
func (s *Service) SetExternalID(ctx context.Context, artistID, provider, externalID string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		UPDATE artists
		SET external_ids = json_set(external_ids, '$.' || ?, ?), updated_at = ?
		WHERE id = ? AND json_extract(external_ids, '$.' || ?) IS NULL
	`, provider, externalID, now, artistID, provider)
	if err != nil {
		return fmt.Errorf("setting %s id for artist %s: %w", provider, artistID, err)
	}
	return nil
}

// MergeGenres adds the given genres to a profile, preserving existing ones.
// Each genre is appended with a single guarded json_insert, so concurrent
// merges interleave without losing entries.
func (s *Service) MergeGenres(ctx context.Context, artistID string, genres []string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	for _, g := range genres {
		if g == "" {
			continue
		}
		_, err := s.db.ExecContext(ctx, `
			UPDATE artists
			SET genres = json_insert(genres, '$[#]', ?), updated_at = ?
			WHERE id = ? AND ? NOT IN (SELECT value FROM json_each(genres))
		`, g, now, artistID, g)
		if err != nil {
			return fmt.Errorf("merging genres for artist %s: %w", artistID, err)
		}
	}
	return nil
}

// Count returns the total number of artist profiles.
func (s *Service) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artists`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting artists: %w", err)
	}
	return n, nil
}

// scanProfile scans a database row into a Profile struct.
func scanProfile(row interface{ Scan(...any) error }) (*Profile, error) {
	var p Profile
	var externalIDs, genres, createdVia string
	var createdAt, updatedAt string

	err := row.Scan(&p.ID, &p.Name, &p.Slug, &externalIDs, &genres, &createdVia, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	p.ExternalIDs = UnmarshalStringMap(externalIDs)
	p.Genres = UnmarshalStringSlice(genres)
	p.CreatedVia = CreatedVia(createdVia)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)

	return &p, nil
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
