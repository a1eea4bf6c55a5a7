package scheduler

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Trigger is anything that can start a fetch for a location.
type Trigger interface {
	Fetch(location string)
}

// Scheduler periodically triggers fetches for a location.
type Scheduler struct {
	scheduler *gocron.Scheduler
	trigger   Trigger
	location  string
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a new Scheduler.
func New(location string, interval time.Duration, trigger Trigger, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		trigger:   trigger,
		location:  location,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run happens one interval from now; the initial fetch belongs to the
// owner's activation.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info("scheduler: refresh disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().SingletonMode().Do(s.Run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Run triggers a single refresh. Overlap with a fetch still in flight is
// resolved by the trigger's own latest-wins policy.
func (s *Scheduler) Run() {
	s.logger.Debug("scheduler: triggering refresh", "location", s.location)
	s.trigger.Fetch(s.location)
}

// Jobs returns the number of scheduled jobs.
func (s *Scheduler) Jobs() int {
	return s.scheduler.Len()
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
