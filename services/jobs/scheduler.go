package jobsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/enrolment"
)

const syncTimeout = 30 * time.Minute

// GradeSyncer is the part of enrolment.Service the scheduler runs.
type GradeSyncer interface {
	SyncAllGrades(ctx context.Context, removeOrphaned bool) (enrolment.SyncAllResult, error)
}

// Scheduler runs the periodic maintenance tasks.
type Scheduler struct {
	cron   *cron.Cron
	syncer GradeSyncer
	logger core.Logger
}

// NewScheduler registers the nightly curriculum sync on conf.Jobs.SyncSchedule.
// An empty schedule registers nothing.
func NewScheduler(conf *core.Config, syncer GradeSyncer, logger core.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		syncer: syncer,
		logger: logger,
	}
	if conf.Jobs.SyncSchedule == "" {
		return s, nil
	}
	if _, err := s.cron.AddFunc(conf.Jobs.SyncSchedule, s.syncGrades); err != nil {
		return nil, errors.Wrapf(err, "scheduling grade sync %q", conf.Jobs.SyncSchedule)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for the running tasks, or for ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) syncGrades() {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	res, err := s.syncer.SyncAllGrades(ctx, true)
	if err != nil {
		s.logger.Error("grade sync", err)
		return
	}

	var added, promoted, removed, skipped int
	for _, gRes := range res.Grades {
		added += gRes.Added
		promoted += gRes.Promoted
		removed += gRes.Removed
		skipped += gRes.Skipped
	}
	msg := fmt.Sprintf("grade sync: %d grades, %d added, %d promoted, %d removed, %d skipped",
		len(res.Grades), added, promoted, removed, skipped)
	if len(res.Failed) > 0 {
		s.logger.Warn(msg, map[string]interface{}{"failed": res.Failed})
		return
	}
	s.logger.Info(msg)
}
