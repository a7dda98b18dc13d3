package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cuongbtq/genjob-notify/internal/tracker/clock"
	"github.com/cuongbtq/genjob-notify/internal/tracker/domain"
)

// Lister is the notification-list API.
type Lister interface {
	ListNotifications(ctx context.Context, offset, limit int) (*domain.NotificationPage, error)
}

// RefreshResult is returned by Refresh.
type RefreshResult struct {
	Old domain.Snapshot
	New domain.Snapshot
	MergeResult
	// Stale is true when a newer refresh had already been applied; the
	// response was discarded and Old == New.
	Stale bool
}

// Store holds the authoritative notification snapshot of one session.
type Store struct {
	lister Lister
	clock  clock.Clock
	logger *slog.Logger

	mu       sync.Mutex
	snapshot domain.Snapshot
	issued   uint64
}

// New creates a Store with an empty, not yet loaded snapshot.
func New(lister Lister, clk clock.Clock, logger *slog.Logger) *Store {
	if clk == nil {
		clk = clock.Real()
	}
	return &Store{
		lister: lister,
		clock:  clk,
		logger: logger,
	}
}

// Snapshot returns the currently held snapshot.
func (s *Store) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Refresh fetches one page of notifications, merges it into the held snapshot
// and returns the diff. Errors from the list API are returned unchanged.
func (s *Store) Refresh(ctx context.Context, page, pageSize int) (*RefreshResult, error) {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", pageSize)
	}

	s.mu.Lock()
	s.issued++
	seq := s.issued
	s.mu.Unlock()

	fetchedAt := s.clock.Now()
	resp, err := s.lister.ListNotifications(ctx, page*pageSize, pageSize)
	if err != nil {
		return nil, err
	}

	records := make([]*domain.NotificationRecord, 0, len(resp.Items))
	for _, item := range resp.Items {
		rec := item.Normalize()
		records = append(records, &rec)
	}
	fetched := domain.Snapshot{
		Records:   records,
		FetchedAt: fetchedAt,
		Seq:       seq,
		Loaded:    true,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.snapshot
	if seq < prev.Seq {
		s.logger.Debug("Discarding stale notification response",
			slog.Uint64("seq", seq),
			slog.Uint64("stored_seq", prev.Seq),
		)
		return &RefreshResult{Old: prev, New: prev, Stale: true}, nil
	}

	merged := MergeAndDiff(prev, fetched)
	fetched.Records = merged.Merged
	s.snapshot = fetched

	return &RefreshResult{Old: prev, New: fetched, MergeResult: merged}, nil
}

// Track inserts a freshly submitted record at the head of the snapshot so that
// it is visible before the next poll. A record that is already known is left alone.
func (s *Store) Track(rec domain.NotificationRecord) domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshot.Find(rec.ID) != nil {
		return s.snapshot
	}

	normalized := rec.Normalize()
	records := make([]*domain.NotificationRecord, 0, len(s.snapshot.Records)+1)
	records = append(records, &normalized)
	records = append(records, s.snapshot.Records...)

	next := s.snapshot
	next.Records = records
	s.snapshot = next
	return next
}
