package provider

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestQuota returns a manager with a controllable clock.
func newTestQuota(budgets map[Name]Budget, nonBlocking bool) (*QuotaManager, *time.Time) {
	m := NewQuotaManager(budgets, nonBlocking, testLogger())
	now := time.Date(2026, 8, 1, 12, 0, 30, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestQuotaDailyCeilingRefusesOutright(t *testing.T) {
	m, _ := newTestQuota(map[Name]Budget{NameDiscogs: {PerDay: 2}}, false)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := m.Acquire(ctx, NameDiscogs); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}

	err := m.Acquire(ctx, NameDiscogs)
	var quota *ErrQuotaExceeded
	if !errors.As(err, &quota) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if quota.Scope != ScopeDay {
		t.Errorf("expected day scope, got %s", quota.Scope)
	}
}

func TestQuotaMinuteNonBlockingDefers(t *testing.T) {
	m, _ := newTestQuota(map[Name]Budget{NameDiscogs: {PerMinute: 1}}, true)
	ctx := context.Background()

	if err := m.Acquire(ctx, NameDiscogs); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	err := m.Acquire(ctx, NameDiscogs)
	var quota *ErrQuotaExceeded
	if !errors.As(err, &quota) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if quota.Scope != ScopeMinute {
		t.Errorf("expected minute scope, got %s", quota.Scope)
	}
}

func TestQuotaMinuteWindowResets(t *testing.T) {
	m, now := newTestQuota(map[Name]Budget{NameDiscogs: {PerMinute: 1}}, true)
	ctx := context.Background()

	if err := m.Acquire(ctx, NameDiscogs); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := m.Acquire(ctx, NameDiscogs); err == nil {
		t.Fatal("expected minute quota exhausted")
	}

	// Cross the wall-clock minute boundary.
	*now = now.Add(time.Minute)
	if err := m.Acquire(ctx, NameDiscogs); err != nil {
		t.Fatalf("acquire after window reset: %v", err)
	}

	states := m.States()
	if len(states) != 1 {
		t.Fatalf("expected 1 state, got %d", len(states))
	}
	if states[0].RequestsUsedThisMinute != 1 {
		t.Errorf("expected minute counter reset to 1, got %d", states[0].RequestsUsedThisMinute)
	}
	if states[0].RequestsUsedToday != 3 {
		t.Errorf("expected daily counter to keep accumulating, got %d", states[0].RequestsUsedToday)
	}
}

func TestQuotaDailyWindowResetsAtUTCBoundary(t *testing.T) {
	m, now := newTestQuota(map[Name]Budget{NameDiscogs: {PerDay: 1}}, false)
	ctx := context.Background()

	if err := m.Acquire(ctx, NameDiscogs); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := m.Acquire(ctx, NameDiscogs); err == nil {
		t.Fatal("expected daily quota exhausted")
	}

	*now = now.Add(24 * time.Hour)
	if err := m.Acquire(ctx, NameDiscogs); err != nil {
		t.Fatalf("acquire after day rollover: %v", err)
	}
}

func TestQuotaBlockingWaitsForNextMinute(t *testing.T) {
	m := NewQuotaManager(map[Name]Budget{NameDiscogs: {PerMinute: 1}}, false, testLogger())
	base := time.Date(2026, 8, 1, 12, 0, 59, 900_000_000, time.UTC)
	// Real clock offset so the wait until the next minute boundary is tiny.
	start := time.Now()
	m.now = func() time.Time { return base.Add(time.Since(start)) }
	ctx := context.Background()

	if err := m.Acquire(ctx, NameDiscogs); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := m.Acquire(ctx, NameDiscogs); err != nil {
		t.Fatalf("blocking acquire should succeed after window rolls: %v", err)
	}
}

func TestQuotaBlockingRespectsCancellation(t *testing.T) {
	m, _ := newTestQuota(map[Name]Budget{NameDiscogs: {PerMinute: 1}}, false)
	ctx, cancel := context.WithCancel(context.Background())

	if err := m.Acquire(ctx, NameDiscogs); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	cancel()
	if err := m.Acquire(ctx, NameDiscogs); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestQuotaCheckAvailable(t *testing.T) {
	m, _ := newTestQuota(map[Name]Budget{NameDiscogs: {PerDay: 1}}, false)

	ok, _ := m.CheckAvailable(NameDiscogs)
	if !ok {
		t.Fatal("expected quota available")
	}
	if err := m.Acquire(context.Background(), NameDiscogs); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	ok, reason := m.CheckAvailable(NameDiscogs)
	if ok {
		t.Fatal("expected quota unavailable")
	}
	if reason == "" {
		t.Error("expected a refusal reason")
	}
}

func TestQuotaCountersAreMonotonic(t *testing.T) {
	m, _ := newTestQuota(map[Name]Budget{NameSpotify: {PerMinute: 100, PerDay: 100}}, false)
	ctx := context.Background()

	prev := 0
	for i := 0; i < 10; i++ {
		if err := m.Acquire(ctx, NameSpotify); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		states := m.States()
		used := states[0].RequestsUsedToday
		if used <= prev {
			t.Fatalf("counter not monotonic: %d after %d", used, prev)
		}
		prev = used
	}
}

func TestRestoreDaily(t *testing.T) {
	m, now := newTestQuota(map[Name]Budget{NameDiscogs: {PerDay: 10}}, false)

	m.RestoreDaily(NameDiscogs, now.UTC().Format("2006-01-02"), 7)
	states := m.States()
	if states[0].RequestsUsedToday != 7 {
		t.Errorf("expected restored counter 7, got %d", states[0].RequestsUsedToday)
	}

	// Stale day is ignored.
	m.RestoreDaily(NameDiscogs, "2020-01-01", 9)
	states = m.States()
	if states[0].RequestsUsedToday != 7 {
		t.Errorf("expected stale restore ignored, got %d", states[0].RequestsUsedToday)
	}
}
