package provider

import (
	"context"
	"testing"
	"time"

	"github.com/veldt-fm/airgraph/internal/database"
)

func TestQuotaStoreRoundTrip(t *testing.T) {
	db, err := database.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}

	store := NewQuotaStore(db)
	ctx := context.Background()

	m := NewQuotaManager(map[Name]Budget{NameDiscogs: {PerDay: 100}}, false, testLogger())
	for i := 0; i < 3; i++ {
		if err := m.Acquire(ctx, NameDiscogs); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if err := store.Save(ctx, m); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Saving twice must overwrite, not duplicate.
	if err := store.Save(ctx, m); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	restored := NewQuotaManager(map[Name]Budget{NameDiscogs: {PerDay: 100}}, false, testLogger())
	if err := store.Restore(ctx, restored); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	states := restored.States()
	if len(states) != 1 {
		t.Fatalf("expected 1 state, got %d", len(states))
	}
	if states[0].RequestsUsedToday != 3 {
		t.Errorf("expected restored daily counter 3, got %d", states[0].RequestsUsedToday)
	}
	if states[0].WindowResetAt.Before(time.Now().Add(-2 * time.Minute)) {
		t.Errorf("expected a current minute window, got %v", states[0].WindowResetAt)
	}
}
