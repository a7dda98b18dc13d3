package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/genjob-notify/internal/tracker/clock"
)

type recorder struct {
	mu       sync.Mutex
	clock    *clock.Fake
	start    time.Time
	calls    []time.Duration
	triggers []Trigger
	err      error
}

func (r *recorder) refresh(_ context.Context, trigger Trigger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, r.clock.Now().Sub(r.start))
	r.triggers = append(r.triggers, trigger)
	return r.err
}

func (r *recorder) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func newTestScheduler(t *testing.T) (*Scheduler, *recorder, *clock.Fake) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := clock.NewFake(start)
	rec := &recorder{clock: fake, start: start}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(DefaultConfig(), fake, rec.refresh, logger, WithExecutor(func(f func()) { f() }))
	s.Start()
	t.Cleanup(s.Stop)
	return s, rec, fake
}

func TestScheduler_RateLimitFloor(t *testing.T) {
	s, rec, fake := newTestScheduler(t)

	assert.True(t, s.Request(TriggerManual))
	fake.Advance(500 * time.Millisecond)
	assert.False(t, s.Request(TriggerManual))
	fake.Advance(1400 * time.Millisecond)
	assert.False(t, s.Request(TriggerManual))
	fake.Advance(200 * time.Millisecond)
	assert.True(t, s.Request(TriggerManual))

	assert.Equal(t, []time.Duration{0, 2100 * time.Millisecond}, rec.calls)
}

func TestScheduler_SteadyPollingWhileVisibleAndInFlight(t *testing.T) {
	s, rec, fake := newTestScheduler(t)

	s.SetVisible(true)
	require.Equal(t, 1, rec.count())
	assert.Equal(t, StateIdle, s.State())

	s.SetInFlight(true)
	assert.Equal(t, StatePolling, s.State())

	fake.Advance(5 * time.Second)
	fake.Advance(5 * time.Second)
	assert.Equal(t, []time.Duration{0, 5 * time.Second, 10 * time.Second}, rec.calls)
	assert.Equal(t, []Trigger{TriggerOpen, TriggerTick, TriggerTick}, rec.triggers)

	s.SetInFlight(false)
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 0, fake.Pending())

	fake.Advance(time.Minute)
	assert.Equal(t, 3, rec.count())
}

func TestScheduler_HidingStopsPolling(t *testing.T) {
	s, rec, fake := newTestScheduler(t)

	s.SetInFlight(true)
	assert.Equal(t, 0, rec.count(), "no polling while hidden")
	assert.Equal(t, 0, fake.Pending())

	s.SetVisible(true)
	s.SetVisible(true)
	assert.Equal(t, 1, rec.count())

	fake.Advance(3 * time.Second)
	s.SetVisible(false)
	assert.Equal(t, 0, fake.Pending())

	fake.Advance(time.Minute)
	assert.Equal(t, 1, rec.count())
}

func TestScheduler_ReopenIsRateLimited(t *testing.T) {
	s, rec, fake := newTestScheduler(t)

	s.SetVisible(true)
	fake.Advance(500 * time.Millisecond)
	s.SetVisible(false)
	s.SetVisible(true)
	assert.Equal(t, 1, rec.count())

	fake.Advance(2 * time.Second)
	s.SetVisible(false)
	s.SetVisible(true)
	assert.Equal(t, 2, rec.count())
}

func TestScheduler_JobSubmittedSchedulesTwoRefreshes(t *testing.T) {
	s, rec, fake := newTestScheduler(t)

	s.JobSubmitted()
	require.Equal(t, 1, rec.count())
	assert.Equal(t, 1, fake.Pending())

	fake.Advance(time.Second)
	assert.Equal(t, []time.Duration{0, time.Second}, rec.calls)
	assert.Equal(t, []Trigger{TriggerSubmit, TriggerSubmitFollowUp}, rec.triggers)
}

func TestScheduler_StopCancelsEverything(t *testing.T) {
	s, rec, fake := newTestScheduler(t)

	s.SetInFlight(true)
	s.SetVisible(true)
	fake.Advance(3 * time.Second)
	s.JobSubmitted()
	require.Equal(t, 2, rec.count())
	assert.Equal(t, 2, fake.Pending())

	s.Stop()
	assert.Equal(t, 0, fake.Pending())

	fake.Advance(time.Minute)
	assert.False(t, s.Request(TriggerManual))
	s.JobSubmitted()
	s.SetVisible(false)
	s.SetVisible(true)
	assert.Equal(t, 2, rec.count())
	assert.Equal(t, StateIdle, s.State())
}

func TestScheduler_BackoffAfterFailures(t *testing.T) {
	s, rec, fake := newTestScheduler(t)
	rec.setErr(errors.New("backend down"))

	s.SetInFlight(true)
	s.SetVisible(true)
	assert.Equal(t, StateBackoff, s.State())

	fake.Advance(5 * time.Second)
	assert.Equal(t, 2, rec.count())

	rec.setErr(nil)
	fake.Advance(19 * time.Second)
	assert.Equal(t, 2, rec.count(), "second failure doubles the interval twice")

	fake.Advance(time.Second)
	assert.Equal(t, 3, rec.count())
	assert.Equal(t, StatePolling, s.State())

	fake.Advance(5 * time.Second)
	assert.Equal(t, []time.Duration{0, 5 * time.Second, 25 * time.Second, 30 * time.Second}, rec.calls)
}

func TestScheduler_ForceRefresh(t *testing.T) {
	s, rec, fake := newTestScheduler(t)
	boom := errors.New("boom")
	rec.setErr(boom)

	err := s.ForceRefresh(context.Background())
	assert.ErrorIs(t, err, boom)

	fake.Advance(time.Second)
	assert.NoError(t, s.ForceRefresh(context.Background()), "dropped requests are not errors")
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, fake.Now().Add(-time.Second), s.LastPollAt())
}

func TestScheduler_RequestBeforeStart(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	rec := &recorder{clock: fake, start: fake.Now()}
	s := New(DefaultConfig(), fake, rec.refresh, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.False(t, s.Request(TriggerManual))
	assert.Equal(t, 0, rec.count())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "polling", StatePolling.String())
	assert.Equal(t, "backoff", StateBackoff.String())
}
