package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/genjob-notify/internal/worker/domain"
)

// Prompt markers understood by SimulatedExecutor
const (
	MarkerFail  = "[fail]"
	MarkerFlaky = "[flaky]"
)

// ProgressFunc receives a completion percentage between 0 and 100
type ProgressFunc func(progress int)

// Executor runs one generation job and returns a reference to its artifact
type Executor interface {
	Execute(ctx context.Context, job *domain.Job, progress ProgressFunc) (string, error)
}

// SimulatedExecutor stands in for a real generation engine. It sleeps for
// Duration split into Steps, reporting progress after each step.
type SimulatedExecutor struct {
	Duration time.Duration
	Steps    int
}

func (e *SimulatedExecutor) Execute(ctx context.Context, job *domain.Job, progress ProgressFunc) (string, error) {
	if strings.Contains(job.Prompt, MarkerFail) {
		return "", errors.New("generation rejected by engine")
	}
	if strings.Contains(job.Prompt, MarkerFlaky) && job.RetryCount == 0 {
		return "", domain.NewRetryableError(errors.New("engine temporarily unavailable"))
	}

	steps := e.Steps
	if steps <= 0 {
		steps = 1
	}
	step := e.Duration / time.Duration(steps)

	for i := 1; i <= steps; i++ {
		timer := time.NewTimer(step)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("job execution canceled: %w", ctx.Err())
		case <-timer.C:
		}
		if progress != nil {
			progress(i * 100 / steps)
		}
	}

	return fmt.Sprintf("generations/%s/%s.mp4", job.Engine, uuid.NewString()), nil
}
