package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Runner schedules every registered job on the same cron expression.
type Runner struct {
	cron   *cron.Cron
	logger zerolog.Logger
}

func NewRunner(schedule string, registry *Registry, timeout time.Duration, logger zerolog.Logger) (*Runner, error) {
	c := cron.New()
	for _, id := range registry.IDs() {
		jobID := id
		_, err := c.AddFunc(schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			result, err := registry.Trigger(ctx, jobID)
			if err != nil {
				logger.Error().Err(err).Str("job", jobID).Msg("scheduled job failed")
				return
			}
			logger.Info().
				Str("job", jobID).
				Int("processed", result.Processed).
				Int("skipped", result.Skipped).
				Int("errors", result.Errors).
				Msg("scheduled job completed")
		})
		if err != nil {
			return nil, err
		}
	}
	return &Runner{cron: c, logger: logger}, nil
}

func (r *Runner) Start() {
	r.cron.Start()
}

// Stop waits for any in-flight job to finish.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
}
