package worker

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/genjob-notify/internal/worker/domain"
)

func TestSimulatedExecutor_ReportsProgress(t *testing.T) {
	exec := &SimulatedExecutor{Duration: 4 * time.Millisecond, Steps: 4}

	var progress []int
	ref, err := exec.Execute(context.Background(), &domain.Job{Engine: "kling"}, func(p int) {
		progress = append(progress, p)
	})

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "generations/kling/"))
	assert.True(t, strings.HasSuffix(ref, ".mp4"))
	assert.Equal(t, []int{25, 50, 75, 100}, progress)
}

func TestSimulatedExecutor_Markers(t *testing.T) {
	exec := &SimulatedExecutor{}

	_, err := exec.Execute(context.Background(), &domain.Job{Prompt: "a cat " + MarkerFail}, nil)
	require.Error(t, err)
	assert.False(t, domain.IsRetryable(err))

	_, err = exec.Execute(context.Background(), &domain.Job{Prompt: MarkerFlaky}, nil)
	assert.True(t, domain.IsRetryable(err))

	_, err = exec.Execute(context.Background(), &domain.Job{Prompt: MarkerFlaky, RetryCount: 1}, nil)
	assert.NoError(t, err)
}

func TestSimulatedExecutor_Canceled(t *testing.T) {
	exec := &SimulatedExecutor{Duration: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Execute(ctx, &domain.Job{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
