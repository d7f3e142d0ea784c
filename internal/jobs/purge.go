// Package jobs holds the background work scheduled with cron.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/marketplace-backend/internal/metrics"
)

// TokenPurger deletes refresh tokens that are no longer usable.
type TokenPurger interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// purgeTimeout bounds a single purge run.
const purgeTimeout = 30 * time.Second

// PurgeTokens removes refresh tokens that expired, or were revoked, more
// than Grace ago.
type PurgeTokens struct {
	Tokens TokenPurger
	Grace  time.Duration
	Log    *logrus.Logger
	now    func() time.Time
}

// Run performs one purge.  It satisfies cron.Job.
func (p *PurgeTokens) Run() {
	if _, err := p.RunOnce(context.Background()); err != nil {
		p.Log.WithError(err).Warn("refresh token purge failed")
	}
}

// RunOnce performs one purge and reports how many rows were deleted.
func (p *PurgeTokens) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, purgeTimeout)
	defer cancel()

	now := time.Now
	if p.now != nil {
		now = p.now
	}
	n, err := p.Tokens.PurgeExpired(ctx, now().Add(-p.Grace))
	if err != nil {
		return 0, err
	}
	metrics.TokensPurged(n)
	if n > 0 {
		p.Log.WithField("deleted", n).Info("purged refresh tokens")
	}
	return n, nil
}

// Scheduler wraps a cron runner with the service's logger.
type Scheduler struct {
	cron *cron.Cron
	log  *logrus.Logger
}

// NewScheduler returns a stopped scheduler.  Panicking jobs are recovered
// and logged so one bad run does not take the process down.
func NewScheduler(log *logrus.Logger) *Scheduler {
	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cl)), cron.WithLogger(cl)),
		log:  log,
	}
}

// Add registers job under a standard five-field spec or a descriptor
// such as "@hourly".
func (s *Scheduler) Add(name, spec string, job cron.Job) error {
	if _, err := s.cron.AddJob(spec, job); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.log.WithFields(logrus.Fields{"job": name, "spec": spec}).Info("job scheduled")
	return nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("cron jobs still running at shutdown")
	}
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	log *logrus.Logger
}

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.WithFields(fields(kv)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.WithError(err).WithFields(fields(kv)).Error("cron: " + msg)
}

func fields(kv []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
