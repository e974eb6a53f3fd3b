// Package scheduler runs the periodic jobs of serve mode on gocron.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// TaskFunc is the function signature for scheduled tasks.
type TaskFunc func(ctx context.Context) error

// TaskConfig describes a scheduled task.
type TaskConfig struct {
	ID          string
	Name        string
	Description string
	Cron        string
	Func        TaskFunc
	RunOnStart  bool
}

// TaskInfo is the API view of a task.
type TaskInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Cron        string     `json:"cron"`
	LastRun     *time.Time `json:"lastRun,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	NextRun     *time.Time `json:"nextRun,omitempty"`
	Running     bool       `json:"running"`
}

type taskEntry struct {
	config  TaskConfig
	job     gocron.Job
	lastRun *time.Time
	lastErr error
	running bool
}

// Scheduler manages background tasks. A task never overlaps itself.
type Scheduler struct {
	gocron gocron.Scheduler
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	tasks map[string]*taskEntry
}

// New creates a stopped scheduler.
func New(logger zerolog.Logger) (*Scheduler, error) {
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		gocron: gs,
		logger: logger.With().Str("component", "scheduler").Logger(),
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[string]*taskEntry),
	}, nil
}

// RegisterTask adds a cron task.
func (s *Scheduler) RegisterTask(cfg TaskConfig) error {
	if cfg.Func == nil {
		return fmt.Errorf("task %q has no function", cfg.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[cfg.ID]; exists {
		return fmt.Errorf("task with ID %q already registered", cfg.ID)
	}

	id := cfg.ID
	job, err := s.gocron.NewJob(
		gocron.CronJob(cfg.Cron, false),
		gocron.NewTask(func() { s.execute(id) }),
		gocron.WithName(cfg.Name),
		gocron.WithTags(cfg.ID),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create job for task %q: %w", cfg.ID, err)
	}

	s.tasks[cfg.ID] = &taskEntry{config: cfg, job: job}
	s.logger.Info().
		Str("id", cfg.ID).
		Str("cron", cfg.Cron).
		Bool("runOnStart", cfg.RunOnStart).
		Msg("Registered task")
	return nil
}

// execute runs a task unless it is already running. It reports whether the
// task ran.
func (s *Scheduler) execute(id string) bool {
	s.mu.Lock()
	entry, ok := s.tasks[id]
	if !ok || entry.running {
		s.mu.Unlock()
		return false
	}
	entry.running = true
	s.mu.Unlock()

	start := time.Now()
	err := entry.config.Func(s.ctx)

	s.mu.Lock()
	entry.running = false
	entry.lastRun = &start
	entry.lastErr = err
	s.mu.Unlock()

	log := s.logger.With().Str("id", id).Dur("duration", time.Since(start)).Logger()
	if err != nil {
		log.Error().Err(err).Msg("Task failed")
	} else {
		log.Info().Msg("Task completed")
	}
	return true
}

// Start starts the scheduler and launches RunOnStart tasks.
func (s *Scheduler) Start() {
	s.logger.Info().Msg("Starting scheduler")
	s.gocron.Start()

	s.mu.Lock()
	var startup []string
	for id, entry := range s.tasks {
		if entry.config.RunOnStart {
			startup = append(startup, id)
		}
	}
	s.mu.Unlock()
	sort.Strings(startup)

	for _, id := range startup {
		s.goExecute(id)
	}
}

func (s *Scheduler) goExecute(id string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(id)
	}()
}

// Stop cancels running tasks and shuts gocron down.
func (s *Scheduler) Stop() error {
	s.logger.Info().Msg("Stopping scheduler")
	s.cancel()
	err := s.gocron.Shutdown()
	s.wg.Wait()
	return err
}

// RunNow triggers a task immediately in the background.
func (s *Scheduler) RunNow(id string) error {
	s.mu.Lock()
	entry, ok := s.tasks[id]
	running := ok && entry.running
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("task %q not found", id)
	}
	if running {
		return fmt.Errorf("task %q is already running", id)
	}
	s.goExecute(id)
	return nil
}

// ListTasks returns all tasks ordered by ID.
func (s *Scheduler) ListTasks() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskInfo, 0, len(s.tasks))
	for _, entry := range s.tasks {
		out = append(out, info(entry))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetTask returns one task.
func (s *Scheduler) GetTask(id string) (*TaskInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %q not found", id)
	}
	ti := info(entry)
	return &ti, nil
}

func info(entry *taskEntry) TaskInfo {
	ti := TaskInfo{
		ID:          entry.config.ID,
		Name:        entry.config.Name,
		Description: entry.config.Description,
		Cron:        entry.config.Cron,
		LastRun:     entry.lastRun,
		Running:     entry.running,
	}
	if entry.lastErr != nil {
		ti.LastError = entry.lastErr.Error()
	}
	if next, err := entry.job.NextRun(); err == nil {
		ti.NextRun = &next
	}
	return ti
}
