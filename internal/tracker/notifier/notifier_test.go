package notifier

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/genjob-notify/internal/tracker/domain"
	"github.com/cuongbtq/genjob-notify/internal/tracker/store"
)

func rec(id string, status domain.Status, resultRef, errMsg string) *domain.NotificationRecord {
	return &domain.NotificationRecord{
		ID:           id,
		Title:        "demo",
		Status:       status,
		ResultRef:    resultRef,
		ErrorMessage: errMsg,
	}
}

type captured struct {
	kinds     []EventKind
	ids       []string
	refs      []string
	errors    []string
	snapshots int
}

func (c *captured) listener() Listener {
	return ListenerFuncs{
		NewNotification: func(ev Event) {
			c.kinds = append(c.kinds, ev.Kind)
			c.ids = append(c.ids, ev.NotificationID)
		},
		JobCompleted: func(id, ref string, ev Event) {
			c.kinds = append(c.kinds, ev.Kind)
			c.ids = append(c.ids, id)
			c.refs = append(c.refs, ref)
		},
		JobFailed: func(id, msg string, ev Event) {
			c.kinds = append(c.kinds, ev.Kind)
			c.ids = append(c.ids, id)
			c.errors = append(c.errors, msg)
		},
		SnapshotChanged: func([]*domain.NotificationRecord) {
			c.snapshots++
		},
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		change   domain.Change
		visible  bool
		wantKind EventKind
		wantMsg  string
		wantNone bool
	}{
		{
			name:     "completed with viewable result",
			change:   domain.Change{Old: rec("1", domain.StatusProcessing, "", ""), New: rec("1", domain.StatusCompleted, "42", "")},
			wantKind: EventJobCompleted,
			wantMsg:  "Your generation \"demo\" is ready. Open it to view the result.",
		},
		{
			name:     "completed without result ref",
			change:   domain.Change{Old: rec("1", domain.StatusProcessing, "", ""), New: rec("1", domain.StatusCompleted, "", "")},
			wantKind: EventJobCompleted,
			wantMsg:  "Your generation \"demo\" has finished. Check your work list for the result.",
		},
		{
			name:     "failed with message",
			change:   domain.Change{Old: rec("1", domain.StatusProcessing, "", ""), New: rec("1", domain.StatusFailed, "", "content policy")},
			wantKind: EventJobFailed,
			wantMsg:  "Generation \"demo\" failed: content policy",
		},
		{
			name:     "failed without message falls back",
			change:   domain.Change{Old: rec("1", domain.StatusRequested, "", ""), New: rec("1", domain.StatusFailed, "", "")},
			wantKind: EventJobFailed,
			wantMsg:  MessageGenericFailure,
		},
		{
			name:     "completion surfaces while visible",
			change:   domain.Change{Old: rec("1", domain.StatusProcessing, "", ""), New: rec("1", domain.StatusCompleted, "42", "")},
			visible:  true,
			wantKind: EventJobCompleted,
			wantMsg:  "Your generation \"demo\" is ready. Open it to view the result.",
		},
		{
			name:     "brand new while hidden",
			change:   domain.Change{New: rec("1", domain.StatusRequested, "", "")},
			wantKind: EventNewJob,
			wantMsg:  "A new generation job has been registered: demo",
		},
		{
			name:     "brand new while visible is suppressed",
			change:   domain.Change{New: rec("1", domain.StatusRequested, "", "")},
			visible:  true,
			wantNone: true,
		},
		{
			name:     "brand new terminal record reports the terminal state",
			change:   domain.Change{New: rec("1", domain.StatusCompleted, "V1", "")},
			visible:  true,
			wantKind: EventJobCompleted,
			wantMsg:  "Your generation \"demo\" is ready. Open it to view the result.",
		},
		{
			name:     "requested to processing is silent",
			change:   domain.Change{Old: rec("1", domain.StatusRequested, "", ""), New: rec("1", domain.StatusProcessing, "", "")},
			wantNone: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := Evaluate([]domain.Change{tt.change}, tt.visible)
			if tt.wantNone {
				assert.Empty(t, events)
				return
			}
			require.Len(t, events, 1)
			assert.Equal(t, tt.wantKind, events[0].Kind)
			assert.Equal(t, tt.wantMsg, events[0].Message)
			assert.Equal(t, "1", events[0].NotificationID)
		})
	}
}

func TestEvaluate_CompletionPayloadBranches(t *testing.T) {
	withRef := Evaluate([]domain.Change{{
		Old: rec("1", domain.StatusProcessing, "", ""),
		New: rec("1", domain.StatusCompleted, "42", ""),
	}}, false)
	require.Len(t, withRef, 1)
	assert.Equal(t, "42", withRef[0].ResultRef)
	assert.Contains(t, withRef[0].Message, "view the result")

	withoutRef := Evaluate([]domain.Change{{
		Old: rec("1", domain.StatusProcessing, "", ""),
		New: rec("1", domain.StatusCompleted, "", ""),
	}}, false)
	require.Len(t, withoutRef, 1)
	assert.Empty(t, withoutRef[0].ResultRef)
	assert.Contains(t, withoutRef[0].Message, "Check your work list")
}

func TestNotify_AtMostOncePerTransition(t *testing.T) {
	c := &captured{}
	n := New(c.listener(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	s0 := domain.Snapshot{Loaded: true, Records: []*domain.NotificationRecord{rec("1", domain.StatusRequested, "", "")}}
	s1 := domain.Snapshot{Loaded: true, Records: []*domain.NotificationRecord{rec("1", domain.StatusProcessing, "", "")}}
	s2 := domain.Snapshot{Loaded: true, Records: []*domain.NotificationRecord{rec("1", domain.StatusProcessing, "", "")}}
	s3 := domain.Snapshot{Loaded: true, Records: []*domain.NotificationRecord{rec("1", domain.StatusCompleted, "V9", "")}}
	s4 := domain.Snapshot{Loaded: true, Records: []*domain.NotificationRecord{rec("1", domain.StatusCompleted, "V9", "")}}

	d1 := store.MergeAndDiff(s0, s1)
	assert.Len(t, d1.Changed, 1)
	assert.Empty(t, n.Notify(d1.Changed, false))

	d2 := store.MergeAndDiff(s1, s2)
	assert.Empty(t, d2.Changed)
	assert.Empty(t, n.Notify(d2.Changed, false))

	assert.Len(t, n.Notify(store.MergeAndDiff(s2, s3).Changed, false), 1)
	assert.Empty(t, n.Notify(store.MergeAndDiff(s3, s4).Changed, false))

	assert.Equal(t, []EventKind{EventJobCompleted}, c.kinds)
	assert.Equal(t, []string{"V9"}, c.refs)
}

func TestNotify_DispatchesByKind(t *testing.T) {
	c := &captured{}
	n := New(c.listener(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	n.Notify([]domain.Change{
		{New: rec("a", domain.StatusRequested, "", "")},
		{Old: rec("b", domain.StatusProcessing, "", ""), New: rec("b", domain.StatusFailed, "", "oops")},
		{Old: rec("c", domain.StatusProcessing, "", ""), New: rec("c", domain.StatusCompleted, "", "")},
	}, false)
	n.SnapshotChanged(nil)

	assert.Equal(t, []EventKind{EventNewJob, EventJobFailed, EventJobCompleted}, c.kinds)
	assert.Equal(t, []string{"a", "b", "c"}, c.ids)
	assert.Equal(t, []string{"oops"}, c.errors)
	assert.Equal(t, []string{""}, c.refs)
	assert.Equal(t, 1, c.snapshots)
}

func TestBroadcaster(t *testing.T) {
	b := NewBroadcaster()
	first, second := &captured{}, &captured{}

	removeFirst := b.Add(first.listener())
	b.Add(second.listener())
	assert.Equal(t, 2, b.Len())

	b.OnNewNotification(Event{Kind: EventNewJob, NotificationID: "1"})
	removeFirst()
	removeFirst()
	b.OnJobFailed("2", "x", Event{Kind: EventJobFailed})

	assert.Equal(t, 1, b.Len())
	assert.Equal(t, []EventKind{EventNewJob}, first.kinds)
	assert.Equal(t, []EventKind{EventNewJob, EventJobFailed}, second.kinds)
}
