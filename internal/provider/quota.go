package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// QuotaScope identifies which budget window a quota decision refers to.
type QuotaScope string

// Quota scopes.
const (
	ScopeMinute QuotaScope = "minute"
	ScopeDay    QuotaScope = "day"
)

// ErrQuotaExceeded indicates a call would overrun a provider's budget.
// A day-scope error means the provider is done for the rest of the run;
// a minute-scope error is only returned in non-blocking mode and means
// the call was deferred, not failed.
type ErrQuotaExceeded struct {
	Provider Name
	Scope    QuotaScope
}

func (e *ErrQuotaExceeded) Error() string {
	return fmt.Sprintf("provider %s: %s quota exceeded", e.Provider, e.Scope)
}

// Budget holds a provider's configured call ceilings. A zero ceiling means
// unlimited for that window.
type Budget struct {
	PerMinute int
	PerDay    int
}

// QuotaState is a snapshot of one provider's consumption.
type QuotaState struct {
	Provider               Name      `json:"provider"`
	RequestsUsedThisMinute int       `json:"requests_used_this_minute"`
	RequestsUsedToday      int       `json:"requests_used_today"`
	PerMinuteCeiling       int       `json:"per_minute_ceiling"`
	DailyCeiling           int       `json:"daily_ceiling"`
	WindowResetAt          time.Time `json:"window_reset_at"`
}

type quotaWindow struct {
	minuteStart time.Time
	usedMinute  int
	day         string
	usedDay     int
}

// QuotaManager tracks per-provider consumption against minute and day
// budgets. It is the single serialization point for all provider calls in
// a run and is safe for concurrent use. The minute window resets on
// wall-clock minute boundaries; the day window resets at UTC midnight.
type QuotaManager struct {
	mu          sync.Mutex
	budgets     map[Name]Budget
	state       map[Name]*quotaWindow
	nonBlocking bool
	logger      *slog.Logger
	now         func() time.Time
}

// NewQuotaManager creates a quota manager with the given budgets. In
// non-blocking mode, calls that would exceed the per-minute ceiling are
// refused with a minute-scope ErrQuotaExceeded instead of waiting.
func NewQuotaManager(budgets map[Name]Budget, nonBlocking bool, logger *slog.Logger) *QuotaManager {
	return &QuotaManager{
		budgets:     budgets,
		state:       make(map[Name]*quotaWindow),
		nonBlocking: nonBlocking,
		logger:      logger.With(slog.String("component", "quota")),
		now:         time.Now,
	}
}

// Acquire reserves one request against the provider's budgets, waiting for
// the next minute window if the current one is exhausted (unless in
// non-blocking mode). A day-scope error means callers must stop issuing
// this provider's calls for the remainder of the run.
func (m *QuotaManager) Acquire(ctx context.Context, name Name) error {
	for {
		m.mu.Lock()
		w := m.window(name)
		budget := m.budgets[name]

		if budget.PerDay > 0 && w.usedDay >= budget.PerDay {
			m.mu.Unlock()
			return &ErrQuotaExceeded{Provider: name, Scope: ScopeDay}
		}

		if budget.PerMinute > 0 && w.usedMinute >= budget.PerMinute {
			wait := w.minuteStart.Add(time.Minute).Sub(m.now())
			m.mu.Unlock()

			if m.nonBlocking {
				m.logger.Info("quota-deferred",
					slog.String("provider", string(name)),
					slog.Duration("retry_in", wait))
				return &ErrQuotaExceeded{Provider: name, Scope: ScopeMinute}
			}

			m.logger.Debug("minute quota exhausted, waiting",
				slog.String("provider", string(name)),
				slog.Duration("wait", wait))
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			continue
		}

		w.usedMinute++
		w.usedDay++
		m.mu.Unlock()
		return nil
	}
}

// CheckAvailable reports whether a call to the provider would be admitted
// right now, without consuming quota.
func (m *QuotaManager) CheckAvailable(name Name) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.window(name)
	budget := m.budgets[name]

	if budget.PerDay > 0 && w.usedDay >= budget.PerDay {
		return false, "daily ceiling reached"
	}
	if budget.PerMinute > 0 && w.usedMinute >= budget.PerMinute {
		return false, "per-minute ceiling reached"
	}
	return true, ""
}

// States returns a snapshot of every tracked provider's consumption.
func (m *QuotaManager) States() []QuotaState {
	m.mu.Lock()
	defer m.mu.Unlock()

	var states []QuotaState
	for _, name := range AllNames() {
		budget, ok := m.budgets[name]
		if !ok {
			continue
		}
		w := m.window(name)
		states = append(states, QuotaState{
			Provider:               name,
			RequestsUsedThisMinute: w.usedMinute,
			RequestsUsedToday:      w.usedDay,
			PerMinuteCeiling:       budget.PerMinute,
			DailyCeiling:           budget.PerDay,
			WindowResetAt:          w.minuteStart.Add(time.Minute),
		})
	}
	return states
}

// RestoreDaily seeds a provider's daily counter from persisted state, so
// the daily ceiling holds across process restarts. Counters from a
// different UTC day are ignored.
func (m *QuotaManager) RestoreDaily(name Name, day string, used int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.window(name)
	if w.day == day && used > w.usedDay {
		w.usedDay = used
	}
}

// window returns the provider's current window, rolling counters over any
// elapsed minute or day boundary. Callers must hold the lock.
func (m *QuotaManager) window(name Name) *quotaWindow {
	now := m.now()
	minuteStart := now.Truncate(time.Minute)
	day := now.UTC().Format("2006-01-02")

	w, ok := m.state[name]
	if !ok {
		w = &quotaWindow{minuteStart: minuteStart, day: day}
		m.state[name] = w
		return w
	}

	if !w.minuteStart.Equal(minuteStart) {
		w.minuteStart = minuteStart
		w.usedMinute = 0
	}
	if w.day != day {
		w.day = day
		w.usedDay = 0
	}
	return w
}
