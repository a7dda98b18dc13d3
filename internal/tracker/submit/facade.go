package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cuongbtq/genjob-notify/internal/tracker/clock"
	"github.com/cuongbtq/genjob-notify/internal/tracker/domain"
)

// NotificationCreator is the notification-create API.
type NotificationCreator interface {
	CreateNotification(ctx context.Context, req domain.CreateNotificationRequest) (string, error)
}

// Generator is the job submission API shared by every engine.
type Generator interface {
	Generate(ctx context.Context, engine string, req domain.GenerationRequest) (*domain.GenerationResponse, error)
}

// Tracker is the part of the notification tracker the facade talks to.
type Tracker interface {
	// Track makes a just-created record visible before the next poll.
	Track(rec domain.NotificationRecord)
	// JobSubmitted signals the polling scheduler.
	JobSubmitted()
}

// Facade starts generation jobs so that they are trackable from the moment of submission.
type Facade struct {
	notifications NotificationCreator
	generator     Generator
	tracker       Tracker
	engines       *Registry
	validate      *validator.Validate
	clock         clock.Clock
	logger        *slog.Logger
}

// NewFacade creates a Facade. A nil registry uses DefaultEngines.
func NewFacade(notifications NotificationCreator, generator Generator, tracker Tracker, engines *Registry, clk clock.Clock, logger *slog.Logger) *Facade {
	if engines == nil {
		engines = NewRegistry(DefaultEngines()...)
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Facade{
		notifications: notifications,
		generator:     generator,
		tracker:       tracker,
		engines:       engines,
		validate:      newValidator(),
		clock:         clk,
		logger:        logger,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Engines returns the facade's engine registry.
func (f *Facade) Engines() *Registry {
	return f.engines
}

// Validate checks a job spec without submitting it.
func (f *Facade) Validate(spec domain.JobSpec) error {
	if err := f.validate.Struct(spec); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &domain.ValidationError{Field: fe.Field(), Reason: fmt.Sprintf("failed on the '%s' rule", fe.Tag())}
		}
		return &domain.ValidationError{Reason: err.Error()}
	}

	engine, ok := f.engines.Lookup(spec.Engine)
	if !ok {
		return &domain.ValidationError{Field: "engine", Reason: domain.ErrUnknownEngine.Error() + ": " + spec.Engine}
	}
	return engine.ValidateParams(f.validate, spec)
}

// Submit registers a notification, starts the generation job and signals the
// tracker. When the generation request fails after the notification was
// created, the notification id is returned together with an *domain.OrphanedJobError.
func (f *Facade) Submit(ctx context.Context, spec domain.JobSpec) (string, error) {
	if err := f.Validate(spec); err != nil {
		f.logger.Warn("Rejected job submission",
			slog.String("engine", spec.Engine),
			slog.String("error", err.Error()),
		)
		return "", err
	}
	engine, _ := f.engines.Lookup(spec.Engine)

	// Step 1: the notification must exist before any work starts.
	notificationID, err := f.notifications.CreateNotification(ctx, domain.CreateNotificationRequest{
		UserID:       spec.UserID,
		Title:        spec.Title,
		ThumbnailRef: spec.ThumbnailRef,
		JobCount:     spec.JobCount,
	})
	if err != nil {
		f.logger.Error("Failed to create notification",
			slog.String("engine", engine.Name),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("failed to create notification: %w", err)
	}

	now := f.clock.Now()
	f.tracker.Track(domain.NotificationRecord{
		ID:        notificationID,
		Title:     spec.Title,
		Status:    domain.StatusRequested,
		CreatedAt: now,
		UpdatedAt: now,
	})

	// Step 2: start the job; the backend updates the notification as it progresses.
	resp, err := f.generator.Generate(ctx, engine.Name, domain.GenerationRequest{
		UserID:         spec.UserID,
		Prompt:         spec.Prompt,
		SourceImage:    spec.SourceImage,
		NotificationID: notificationID,
		Params:         spec.Params,
	})
	if err != nil {
		f.logger.Error("Generation request failed after notification was created",
			slog.String("notification_id", notificationID),
			slog.String("engine", engine.Name),
			slog.String("error", err.Error()),
		)
		return notificationID, &domain.OrphanedJobError{NotificationID: notificationID, Err: err}
	}

	f.logger.Info("Generation job submitted",
		slog.String("notification_id", notificationID),
		slog.String("job_id", resp.JobID),
		slog.String("engine", engine.Name),
	)

	// Step 3
	f.tracker.JobSubmitted()
	return notificationID, nil
}
