package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultJanitorSpec    = "*/15 * * * *"
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	housekeepTimeout      = time.Minute
)

// Housekeeper is implemented by components that need periodic cleanup.
type Housekeeper interface {
	Housekeep(ctx context.Context, now time.Time) error
}

type Scheduler struct {
	ctx         context.Context
	cron        *cron.Cron
	spec        string
	housekeeper Housekeeper
	now         func() time.Time
	log         *slog.Logger
}

func New(ctx context.Context, spec string, housekeeper Housekeeper, log *slog.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultJanitorSpec
	}

	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:         ctx,
		cron:        c,
		spec:        spec,
		housekeeper: housekeeper,
		now:         time.Now,
		log:         log.With("component", "scheduler"),
	}
}

func (s *Scheduler) Spec() string {
	return s.spec
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.housekeep); err != nil {
		return fmt.Errorf("add janitor job (spec = %q): %w", s.spec, err)
	}

	s.cron.Start()

	return nil
}

// Stop halts the schedule and waits for a running job to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) housekeep() {
	ctx, cancel := context.WithTimeout(s.ctx, housekeepTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	start := s.now()

	if err := s.housekeeper.Housekeep(ctx, start); err != nil {
		s.log.ErrorContext(ctx, "Failed to housekeep",
			"error", err,
			"spec", s.spec)

		return
	}

	s.log.DebugContext(ctx, "Janitor run is finished",
		"spec", s.spec,
		"durationMs", time.Since(start).Milliseconds())
}
