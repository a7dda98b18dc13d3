package store

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
	"github.com/cuongbtq/genjob-notify/internal/tracker/domain"
)

var baseTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func rec(id string, status domain.Status) *domain.NotificationRecord {
	return &domain.NotificationRecord{
		ID:        id,
		Title:     "job " + id,
		Status:    status,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
}

func snap(loaded bool, records ...*domain.NotificationRecord) domain.Snapshot {
	return domain.Snapshot{Records: records, Loaded: loaded}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMergeAndDiff_IdenticalSnapshotsProduceNoChanges(t *testing.T) {
	a := snap(true, rec("1", domain.StatusRequested), rec("2", domain.StatusCompleted))
	b := snap(true, rec("1", domain.StatusRequested), rec("2", domain.StatusCompleted))

	result := MergeAndDiff(a, b)

	assert.Empty(t, result.Changed)
	assert.False(t, result.Modified)
	require.Len(t, result.Merged, 2)
	assert.Same(t, a.Records[0], result.Merged[0])
	assert.Same(t, a.Records[1], result.Merged[1])
}

func TestMergeAndDiff(t *testing.T) {
	withRef := rec("1", domain.StatusCompleted)
	withRef.ResultRef = "42"
	retitled := rec("2", domain.StatusProcessing)
	retitled.Title = "renamed"

	tests := []struct {
		name         string
		prev         domain.Snapshot
		next         domain.Snapshot
		wantChanged  []string
		wantNew      []string
		wantModified bool
	}{
		{
			name:         "initial load does not report history",
			prev:         domain.Snapshot{},
			next:         snap(true, rec("1", domain.StatusCompleted), rec("2", domain.StatusRequested)),
			wantModified: true,
		},
		{
			name:         "brand new record after initial load",
			prev:         snap(true, rec("1", domain.StatusCompleted)),
			next:         snap(true, rec("2", domain.StatusRequested), rec("1", domain.StatusCompleted)),
			wantChanged:  []string{"2"},
			wantNew:      []string{"2"},
			wantModified: true,
		},
		{
			name:         "status transition",
			prev:         snap(true, rec("1", domain.StatusProcessing)),
			next:         snap(true, withRef),
			wantChanged:  []string{"1"},
			wantModified: true,
		},
		{
			name:         "field change without status change is not reported",
			prev:         snap(true, rec("2", domain.StatusProcessing)),
			next:         snap(true, retitled),
			wantModified: true,
		},
		{
			name:         "removed record",
			prev:         snap(true, rec("1", domain.StatusCompleted), rec("2", domain.StatusFailed)),
			next:         snap(true, rec("1", domain.StatusCompleted)),
			wantModified: true,
		},
		{
			name:         "reordering is a modification",
			prev:         snap(true, rec("1", domain.StatusCompleted), rec("2", domain.StatusFailed)),
			next:         snap(true, rec("2", domain.StatusFailed), rec("1", domain.StatusCompleted)),
			wantModified: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MergeAndDiff(tt.prev, tt.next)

			var changed, fresh []string
			for _, c := range result.Changed {
				changed = append(changed, c.New.ID)
				if c.IsNew() {
					fresh = append(fresh, c.New.ID)
				}
			}
			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantNew, fresh)
			assert.Equal(t, tt.wantModified, result.Modified)
			assert.Len(t, result.Merged, len(tt.next.Records))
		})
	}
}

func TestMergeAndDiff_ChangedRecordGetsNewIdentity(t *testing.T) {
	prev := snap(true, rec("1", domain.StatusProcessing), rec("2", domain.StatusRequested))
	next := snap(true, rec("1", domain.StatusCompleted), rec("2", domain.StatusRequested))

	result := MergeAndDiff(prev, next)

	require.Len(t, result.Changed, 1)
	assert.Same(t, prev.Records[0], result.Changed[0].Old)
	assert.Same(t, next.Records[0], result.Changed[0].New)
	assert.Same(t, next.Records[0], result.Merged[0])
	assert.Same(t, prev.Records[1], result.Merged[1])
}

func TestMergeAndDiff_DuplicateIDsKeepFirst(t *testing.T) {
	next := snap(true, rec("1", domain.StatusProcessing), rec("1", domain.StatusCompleted))

	result := MergeAndDiff(snap(true), next)

	require.Len(t, result.Merged, 1)
	assert.Equal(t, domain.StatusProcessing, result.Merged[0].Status)
}

type fakeLister struct {
	mu        sync.Mutex
	responses []*domain.NotificationPage
	err       error
	calls     [][2]int
}

func (f *fakeLister) ListNotifications(_ context.Context, offset, limit int) (*domain.NotificationPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, [2]int{offset, limit})
	if f.err != nil {
		return nil, f.err
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

func page(records ...domain.NotificationRecord) *domain.NotificationPage {
	return &domain.NotificationPage{Items: records, TotalCount: len(records)}
}

func TestStore_Refresh(t *testing.T) {
	lister := &fakeLister{responses: []*domain.NotificationPage{
		page(*rec("1", domain.StatusRequested)),
		page(*rec("1", domain.StatusProcessing), *rec("2", domain.StatusRequested)),
	}}
	s := New(lister, clock.NewFake(baseTime), discardLogger())

	first, err := s.Refresh(context.Background(), 0, 20)
	require.NoError(t, err)
	assert.False(t, first.Old.Loaded)
	assert.True(t, first.New.Loaded)
	assert.Empty(t, first.Changed)
	assert.Equal(t, uint64(1), first.New.Seq)

	second, err := s.Refresh(context.Background(), 1, 20)
	require.NoError(t, err)
	require.Len(t, second.Changed, 2)
	assert.Equal(t, domain.StatusRequested, second.Changed[0].Old.Status)
	assert.True(t, second.Changed[1].IsNew())

	assert.Equal(t, [][2]int{{0, 20}, {20, 20}}, lister.calls)
	assert.Equal(t, second.New, s.Snapshot())
}

func TestStore_RefreshNormalizesRecords(t *testing.T) {
	bad := *rec("1", domain.StatusProcessing)
	bad.ResultRef = "V1"
	bad.ErrorMessage = "boom"
	s := New(&fakeLister{responses: []*domain.NotificationPage{page(bad)}}, nil, discardLogger())

	result, err := s.Refresh(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, result.New.Records, 1)
	assert.Empty(t, result.New.Records[0].ResultRef)
	assert.Empty(t, result.New.Records[0].ErrorMessage)
}

func TestStore_RefreshPropagatesErrors(t *testing.T) {
	netErr := &domain.NetworkError{Op: "list notifications", Err: errors.New("connection refused")}
	s := New(&fakeLister{err: netErr}, nil, discardLogger())

	result, err := s.Refresh(context.Background(), 0, 10)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, domain.IsNetworkError(err))
	assert.False(t, s.Snapshot().Loaded)
}

func TestStore_RefreshRejectsInvalidPageSize(t *testing.T) {
	s := New(&fakeLister{}, nil, discardLogger())

	_, err := s.Refresh(context.Background(), 0, 0)
	require.Error(t, err)
}

// blockingLister hands out responses only when the test releases them.
type blockingLister struct {
	calls chan chan *domain.NotificationPage
}

func (b *blockingLister) ListNotifications(_ context.Context, _, _ int) (*domain.NotificationPage, error) {
	reply := make(chan *domain.NotificationPage)
	b.calls <- reply
	return <-reply, nil
}

func TestStore_DiscardsStaleResponse(t *testing.T) {
	lister := &blockingLister{calls: make(chan chan *domain.NotificationPage)}
	s := New(lister, nil, discardLogger())

	type outcome struct {
		result *RefreshResult
		err    error
	}
	older := make(chan outcome, 1)
	newer := make(chan outcome, 1)

	go func() {
		r, err := s.Refresh(context.Background(), 0, 10)
		older <- outcome{r, err}
	}()
	olderReply := <-lister.calls

	go func() {
		r, err := s.Refresh(context.Background(), 0, 10)
		newer <- outcome{r, err}
	}()
	newerReply := <-lister.calls

	newerReply <- page(*rec("1", domain.StatusCompleted))
	n := <-newer
	require.NoError(t, n.err)
	assert.False(t, n.result.Stale)

	olderReply <- page(*rec("1", domain.StatusProcessing))
	o := <-older
	require.NoError(t, o.err)
	assert.True(t, o.result.Stale)
	assert.Empty(t, o.result.Changed)

	current := s.Snapshot()
	require.Len(t, current.Records, 1)
	assert.Equal(t, domain.StatusCompleted, current.Records[0].Status)
	assert.Equal(t, uint64(2), current.Seq)
}

func TestStore_Track(t *testing.T) {
	s := New(&fakeLister{responses: []*domain.NotificationPage{page(*rec("1", domain.StatusCompleted))}}, nil, discardLogger())
	_, err := s.Refresh(context.Background(), 0, 10)
	require.NoError(t, err)

	tracked := s.Track(*rec("N2", domain.StatusRequested))
	require.Len(t, tracked.Records, 2)
	assert.Equal(t, "N2", tracked.Records[0].ID)
	assert.True(t, tracked.Loaded)

	again := s.Track(*rec("N2", domain.StatusProcessing))
	require.Len(t, again.Records, 2)
	assert.Equal(t, domain.StatusRequested, again.Records[0].Status)
}
