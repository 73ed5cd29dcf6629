// Package scheduler runs the facility's background jobs on cron schedules
// evaluated in the facility time zone.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	service     *Service
	serviceOnce sync.Once
	serviceErr  error
)

var (
	ErrNotInitialized = errors.New("scheduler not initialized")
	ErrEmptyJobName   = errors.New("job name is required")
	ErrEmptyCronExpr  = errors.New("cron expression is required")
	ErrDuplicateJob   = errors.New("job already registered")
	ErrUnknownJob     = errors.New("job not registered")
)

// JobFunc is one run of a job. ctx carries the job logger and is cancelled
// after the job timeout.
type JobFunc func(ctx context.Context) error

// JobInfo describes a registered job.
type JobInfo struct {
	Name    string
	Cron    string
	NextRun time.Time
}

type registeredJob struct {
	job  gocron.Job
	cron string
}

// Service owns the gocron scheduler and the jobs registered on it by name.
type Service struct {
	scheduler gocron.Scheduler
	loc       *time.Location
	timeout   time.Duration

	mu   sync.Mutex
	jobs map[string]registeredJob

	stopOnce sync.Once
	stopErr  error
}

// ValidateLocation reports whether gocron can evaluate cron expressions in
// loc. gocron re-resolves the zone by name, so fixed zones such as
// time.FixedZone("WIB", ...) are rejected.
func ValidateLocation(loc *time.Location) error {
	if loc == nil {
		return errors.New("scheduler location is required")
	}
	if _, err := time.LoadLocation(loc.String()); err != nil {
		return fmt.Errorf("scheduler location %q is not a loadable time zone: %w", loc.String(), err)
	}
	return nil
}

// Init creates the singleton scheduler. Cron expressions are evaluated in loc.
func Init(loc *time.Location) error {
	serviceOnce.Do(func() {
		service, serviceErr = newService(loc, jobTimeout)
	})
	return serviceErr
}

func newService(loc *time.Location, timeout time.Duration) (*Service, error) {
	if loc == nil {
		loc = time.Local
	}
	if err := ValidateLocation(loc); err != nil {
		return nil, err
	}
	sched, err := gocron.NewScheduler(
		gocron.WithLocation(loc),
		gocron.WithGlobalJobOptions(
			gocron.WithEventListeners(
				gocron.AfterJobRunsWithPanic(func(jobID uuid.UUID, jobName string, recoverData any) {
					log.Error().
						Str("job_id", jobID.String()).
						Str("job_name", jobName).
						Interface("panic", recoverData).
						Msg("Scheduler job panicked")
				}),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	log.Info().Str("location", loc.String()).Msg("Scheduler initialized")
	return &Service{
		scheduler: sched,
		loc:       loc,
		timeout:   timeout,
		jobs:      make(map[string]registeredJob),
	}, nil
}

// ServiceInstance returns the singleton created by Init.
func ServiceInstance() (*Service, error) {
	if service == nil && serviceErr == nil {
		return nil, ErrNotInitialized
	}
	return service, serviceErr
}

func Start() error {
	svc, err := ServiceInstance()
	if err != nil {
		return err
	}
	svc.Start()
	return nil
}

func Stop() error {
	svc, err := ServiceInstance()
	if err != nil {
		return err
	}
	return svc.Stop()
}

// AddJob registers task on the singleton under name.
func AddJob(name, cronExpr string, task JobFunc) error {
	svc, err := ServiceInstance()
	if err != nil {
		return err
	}
	return svc.AddJob(name, cronExpr, task)
}

// Start runs the registered jobs and logs when each fires next.
func (s *Service) Start() {
	if s == nil {
		log.Error().Msg("Scheduler start requested before initialization")
		return
	}
	s.scheduler.Start()
	for _, info := range s.Jobs() {
		log.Info().
			Str("job_name", info.Name).
			Str("cron", info.Cron).
			Time("next_run", info.NextRun).
			Msg("Scheduler job armed")
	}
}

// Stop shuts the scheduler down. Later calls return the first result.
func (s *Service) Stop() error {
	if s == nil {
		return ErrNotInitialized
	}
	s.stopOnce.Do(func() {
		log.Info().Msg("Scheduler stopping")
		s.stopErr = s.scheduler.Shutdown()
	})
	return s.stopErr
}

// AddJob registers task to run on cronExpr. Names are unique. A run that is
// still going when the next one is due pushes that run back.
func (s *Service) AddJob(name, cronExpr string, task JobFunc) error {
	if s == nil {
		return ErrNotInitialized
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyJobName
	}
	if strings.TrimSpace(cronExpr) == "" {
		return ErrEmptyCronExpr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}

	jobLogger := log.With().Str("job_name", name).Str("cron", cronExpr).Logger()
	job, err := s.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(s.runner(jobLogger, task)),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		jobLogger.Error().Err(err).Msg("Failed to register scheduler job")
		return fmt.Errorf("register job %s: %w", name, err)
	}
	s.jobs[name] = registeredJob{job: job, cron: cronExpr}
	jobLogger.Info().Msg("Scheduler job registered")
	return nil
}

// RunNow triggers the named job outside its schedule.
func (s *Service) RunNow(name string) error {
	if s == nil {
		return ErrNotInitialized
	}
	s.mu.Lock()
	registered, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return registered.job.RunNow()
}

// Jobs lists the registered jobs sorted by name. NextRun is zero until the
// scheduler has started.
func (s *Service) Jobs() []JobInfo {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, registered := range s.jobs {
		info := JobInfo{Name: name, Cron: registered.cron}
		if next, err := registered.job.NextRun(); err == nil {
			info.NextRun = next.In(s.loc)
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func (s *Service) runner(jobLogger zerolog.Logger, task JobFunc) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		ctx = jobLogger.WithContext(ctx)

		started := time.Now()
		jobLogger.Debug().Msg("Scheduler job started")
		if err := task(ctx); err != nil {
			jobLogger.Error().Err(err).Dur("duration", time.Since(started)).Msg("Scheduler job failed")
			return
		}
		jobLogger.Debug().Dur("duration", time.Since(started)).Msg("Scheduler job completed")
	}
}
