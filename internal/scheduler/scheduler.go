package scheduler

import (
	"context"
	"fmt"
	"time"

	"rentalhub/internal/config"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const jobTimeout = 10 * time.Minute

// OverdueSweeper finds late rentals and reports them.
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context) (int, error)
}

// Backupper snapshots the database.
type Backupper interface {
	Run(ctx context.Context) error
}

// Scheduler runs periodic maintenance jobs on cron specs.
type Scheduler struct {
	cron   *cron.Cron
	parser cron.Parser
	jobs   map[string]cron.EntryID
	ctx    context.Context
	cancel context.CancelFunc
	logger *zerolog.Logger
}

// New creates an empty scheduler. Specs use the standard five fields or @descriptors, in UTC.
func New(logger *zerolog.Logger) *Scheduler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   c,
		parser: parser,
		jobs:   make(map[string]cron.EntryID),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// NewFromConfig registers the overdue sweep and the backup job when enabled.
func NewFromConfig(cfg *config.Config, sweeper OverdueSweeper, backups Backupper, logger *zerolog.Logger) (*Scheduler, error) {
	s := New(logger)

	if cfg.Scheduler.Enabled && sweeper != nil {
		err := s.Add("overdue_sweep", cfg.Scheduler.OverdueSweep, func(ctx context.Context) error {
			n, err := sweeper.SweepOverdue(ctx)
			if err == nil {
				s.logger.Debug().Int("overdue", n).Msg("Overdue sweep finished")
			}
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	if cfg.Backup.Enabled && backups != nil {
		if err := s.Add("backup", cfg.Backup.Schedule, backups.Run); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Add registers fn under name. Names are unique.
func (s *Scheduler) Add(name, spec string, fn func(ctx context.Context) error) error {
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}
	schedule, err := s.parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("invalid schedule for job %q: %w", name, err)
	}

	id := s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.runJob(name, fn)
	}))
	s.jobs[name] = id
	s.logger.Info().Str("job", name).Str("spec", spec).Msg("Job registered")
	return nil
}

func (s *Scheduler) runJob(name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	if err := fn(ctx); err != nil {
		s.logger.Error().Err(err).Str("job", name).Dur("duration", time.Since(start)).Msg("Job failed")
		return
	}
	s.logger.Info().Str("job", name).Dur("duration", time.Since(start)).Msg("Job completed")
}

// Jobs returns the registered job names with their next run time.
func (s *Scheduler) Jobs() map[string]time.Time {
	out := make(map[string]time.Time, len(s.jobs))
	for name, id := range s.jobs {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

func (s *Scheduler) Start() {
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Starting cron scheduler")
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Cron scheduler stopped")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger *zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
