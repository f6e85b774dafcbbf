package artist

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/veldt-fm/airgraph/internal/database"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db
}

func TestFindOrCreateIsIdempotent(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()

	first, err := svc.FindOrCreate(ctx, &Profile{Name: "Daft Punk", Slug: "daft-punk", CreatedVia: CreatedTrackParsing})
	if err != nil {
		t.Fatalf("first FindOrCreate: %v", err)
	}
	second, err := svc.FindOrCreate(ctx, &Profile{Name: "Daft Punk", Slug: "daft-punk", CreatedVia: CreatedEnrichment})
	if err != nil {
		t.Fatalf("second FindOrCreate: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected same profile ID, got %s and %s", first.ID, second.ID)
	}
	if second.CreatedVia != CreatedTrackParsing {
		t.Errorf("expected original created_via to survive, got %s", second.CreatedVia)
	}

	n, err := svc.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 artist, got %d", n)
	}
}

func TestFindOrCreateConflictFallsBackToRead(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	// Simulate losing the insert race: the row appears between the lookup
	// and the insert. ON CONFLICT DO NOTHING must fall back to re-reading.
	if _, err := db.ExecContext(ctx, `
		INSERT INTO artists (id, name, slug, external_ids, genres, created_via, created_at, updated_at)
		VALUES ('winner', 'Daft Punk', 'daft-punk', '{}', '[]', 'manual', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')
	`); err != nil {
		t.Fatalf("seeding winner row: %v", err)
	}

	p, err := svc.FindOrCreate(ctx, &Profile{Name: "daft punk", Slug: "daft-punk", CreatedVia: CreatedTrackParsing})
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if p.ID != "winner" {
		t.Errorf("expected existing row to win, got ID %s", p.ID)
	}
}

func TestSetExternalIDDoesNotOverwrite(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()

	p, err := svc.FindOrCreate(ctx, &Profile{Name: "Aphex Twin", Slug: "aphex-twin", CreatedVia: CreatedTrackParsing})
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}

	if err := svc.SetExternalID(ctx, p.ID, "discogs", "45"); err != nil {
		t.Fatalf("SetExternalID: %v", err)
	}
	if err := svc.SetExternalID(ctx, p.ID, "discogs", "999"); err != nil {
		t.Fatalf("second SetExternalID: %v", err)
	}
	if err := svc.SetExternalID(ctx, p.ID, "spotify", "abc"); err != nil {
		t.Fatalf("SetExternalID spotify: %v", err)
	}

	got, err := svc.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ExternalIDs["discogs"] != "45" {
		t.Errorf("expected discogs ID 45 to survive, got %s", got.ExternalIDs["discogs"])
	}
	if got.ExternalIDs["spotify"] != "abc" {
		t.Errorf("expected spotify ID abc, got %s", got.ExternalIDs["spotify"])
	}

	byExt, err := svc.GetByExternalID(ctx, "discogs", "45")
	if err != nil {
		t.Fatalf("GetByExternalID: %v", err)
	}
	if byExt == nil || byExt.ID != p.ID {
		t.Error("expected lookup by external ID to find the profile")
	}
}

func TestMergeGenres(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()

	p, err := svc.FindOrCreate(ctx, &Profile{
		Name: "Burial", Slug: "burial",
		Genres:     []string{"dubstep"},
		CreatedVia: CreatedEnrichment,
	})
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}

	if err := svc.MergeGenres(ctx, p.ID, []string{"electronic", "dubstep", ""}); err != nil {
		t.Fatalf("MergeGenres: %v", err)
	}

	got, err := svc.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	want := []string{"dubstep", "electronic"}
	if len(got.Genres) != len(want) {
		t.Fatalf("expected genres %v, got %v", want, got.Genres)
	}
	for i := range want {
		if got.Genres[i] != want[i] {
			t.Errorf("genre[%d] = %s, want %s", i, got.Genres[i], want[i])
		}
	}
}

func TestSetExternalIDConcurrentProviders(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()

	p, err := svc.FindOrCreate(ctx, &Profile{Name: "Four Tet", Slug: "four-tet", CreatedVia: CreatedEnrichment})
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}

	// Writers setting distinct providers must not clobber each other.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			provider := fmt.Sprintf("p%d", n)
			if err := svc.SetExternalID(ctx, p.ID, provider, fmt.Sprintf("id-%d", n)); err != nil {
				t.Errorf("SetExternalID %s: %v", provider, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := svc.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	for i := 0; i < 10; i++ {
		provider := fmt.Sprintf("p%d", i)
		if got.ExternalIDs[provider] != fmt.Sprintf("id-%d", i) {
			t.Errorf("provider %s: expected id-%d, got %q", provider, i, got.ExternalIDs[provider])
		}
	}
}

func TestMergeGenresConcurrentWriters(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()

	p, err := svc.FindOrCreate(ctx, &Profile{Name: "Caribou", Slug: "caribou", CreatedVia: CreatedEnrichment})
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := svc.MergeGenres(ctx, p.ID, []string{fmt.Sprintf("genre-%d", n)}); err != nil {
				t.Errorf("MergeGenres %d: %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := svc.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(got.Genres) != 10 {
		t.Fatalf("expected 10 genres, got %d: %v", len(got.Genres), got.Genres)
	}
	seen := make(map[string]bool, len(got.Genres))
	for _, g := range got.Genres {
		if seen[g] {
			t.Errorf("duplicate genre %q", g)
		}
		seen[g] = true
	}
}

func TestResolverIdempotence(t *testing.T) {
	svc := NewService(openTestDB(t))
	r := NewResolver(svc, testLogger())
	ctx := context.Background()

	a, err := r.Resolve(ctx, "Boards of Canada", CreatedTrackParsing)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	b, err := r.Resolve(ctx, "boards  of canada", CreatedTrackParsing)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if a.ID != b.ID {
		t.Errorf("expected case/spacing variants to resolve to one profile, got %s and %s", a.ID, b.ID)
	}

	// A fresh resolver over the same store must agree across runs.
	r2 := NewResolver(svc, testLogger())
	c, err := r2.Resolve(ctx, "Boards of Canada", CreatedEnrichment)
	if err != nil {
		t.Fatalf("cross-run Resolve: %v", err)
	}
	if c.ID != a.ID {
		t.Errorf("expected cross-run resolution to the same profile, got %s and %s", c.ID, a.ID)
	}
}

func TestResolverRejectsInvalidName(t *testing.T) {
	svc := NewService(openTestDB(t))
	r := NewResolver(svc, testLogger())

	if _, err := r.Resolve(context.Background(), "?!", CreatedTrackParsing); err == nil {
		t.Fatal("expected error for unnormalizable name")
	}

	n, err := svc.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no profile created for invalid name, got %d", n)
	}
}
