package track

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

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

func seedTracks(t *testing.T, svc *Service, source Source, n int) {
	t.Helper()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tracks := make([]Track, 0, n)
	for i := 0; i < n; i++ {
		tracks = append(tracks, Track{
			ID:        fmt.Sprintf("%s-%03d", source, i),
			Artist:    fmt.Sprintf("Artist %d", i),
			Title:     fmt.Sprintf("Track %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	if _, err := svc.Import(context.Background(), source, tracks); err != nil {
		t.Fatalf("seeding %s tracks: %v", source, err)
	}
}

func TestPageOrderingAndDisjointness(t *testing.T) {
	svc := NewService(openTestDB(t))
	seedTracks(t, svc, SourceLive, 10)
	ctx := context.Background()

	first, err := svc.Page(ctx, SourceLive, 5, 0)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	second, err := svc.Page(ctx, SourceLive, 5, 5)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}

	if len(first) != 5 || len(second) != 5 {
		t.Fatalf("expected 5+5 tracks, got %d+%d", len(first), len(second))
	}

	// Most recent first.
	if first[0].ID != "live-009" {
		t.Errorf("expected newest track first, got %s", first[0].ID)
	}

	seen := make(map[string]bool)
	for _, tr := range first {
		seen[tr.ID] = true
	}
	for _, tr := range second {
		if seen[tr.ID] {
			t.Errorf("track %s appeared in both pages", tr.ID)
		}
	}
}

func TestPageBothSources(t *testing.T) {
	svc := NewService(openTestDB(t))
	seedTracks(t, svc, SourceLive, 3)
	seedTracks(t, svc, SourceArchive, 3)

	tracks, err := svc.Page(context.Background(), SourceBoth, 10, 0)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if len(tracks) != 6 {
		t.Fatalf("expected 6 tracks across both sources, got %d", len(tracks))
	}

	tables := make(map[string]int)
	for _, tr := range tracks {
		tables[tr.Table]++
	}
	if tables[TableLive] != 3 || tables[TableArchive] != 3 {
		t.Errorf("expected 3 tracks per table, got %v", tables)
	}
}

func TestImportSkipsDuplicates(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()

	tracks := []Track{{ID: "dup-1", Artist: "Artist A", Title: "Track"}}
	n, err := svc.Import(ctx, SourceLive, tracks)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 insert, got %d", n)
	}

	n, err = svc.Import(ctx, SourceLive, tracks)
	if err != nil {
		t.Fatalf("second Import: %v", err)
	}
	if n != 0 {
		t.Errorf("expected duplicate to be skipped, got %d inserts", n)
	}

	live, archive, err := svc.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if live != 1 || archive != 0 {
		t.Errorf("expected counts 1/0, got %d/%d", live, archive)
	}
}

func TestImportRejectsBoth(t *testing.T) {
	svc := NewService(openTestDB(t))
	if _, err := svc.Import(context.Background(), SourceBoth, nil); err == nil {
		t.Fatal("expected error importing into 'both'")
	}
}

func TestParseSource(t *testing.T) {
	for _, valid := range []string{"live", "archive", "both"} {
		if _, err := ParseSource(valid); err != nil {
			t.Errorf("ParseSource(%q): %v", valid, err)
		}
	}
	if _, err := ParseSource("stream"); err == nil {
		t.Error("expected error for unknown source")
	}
}
