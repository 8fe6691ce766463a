package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"paperagent/internal/domain"
	"paperagent/internal/ports"
)

// defaultTick is how often the loop polls for due jobs.
const defaultTick = 60 * time.Second

// Trigger runs the pipeline on the configured cadence. A single background
// goroutine owns the job registry; Start and Stop are guarded by a mutex so
// concurrent lifecycle calls cannot race. Jobs missed while the process was
// down are not caught up, and Stop does not interrupt an in-flight run.
type Trigger struct {
	cfg    domain.ScheduleConfig
	tick   time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu   sync.Mutex
	jobs []*job
	stop chan struct{}
}

type job struct {
	name string
	next time.Time
	// reschedule computes the following run time once the job has fired.
	reschedule func(after time.Time) time.Time
}

var _ ports.Trigger = (*Trigger)(nil)

// New validates the cadence descriptor and returns an idle trigger.
func New(cfg domain.ScheduleConfig, logger *zap.Logger) (*Trigger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Trigger{
		cfg:    cfg,
		tick:   defaultTick,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Start registers jobs from the schedule and launches the polling loop.
// Calling Start on a running trigger is a logged no-op.
func (t *Trigger) Start(ctx context.Context, task func(time.Time)) error {
	if task == nil {
		return fmt.Errorf("no task provided")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != nil {
		t.logger.Warn("scheduler is already running")
		return nil
	}

	jobs, err := buildJobs(t.cfg, t.now())
	if err != nil {
		return err
	}
	t.jobs = jobs
	t.stop = make(chan struct{})

	for _, j := range jobs {
		t.logger.Info("scheduled job",
			zap.String("job", j.name), zap.Time("next_run", j.next))
	}

	go t.loop(ctx, t.stop, task)
	t.logger.Info("scheduler started", zap.String("frequency", t.cfg.Frequency))
	return nil
}

// Stop halts the polling loop. An in-flight run is not interrupted.
func (t *Trigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop == nil {
		return nil
	}
	close(t.stop)
	t.stop = nil
	t.logger.Info("scheduler stopped")
	return nil
}

// NextRuns reports the pending run time per job name.
func (t *Trigger) NextRuns() map[string]time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := make(map[string]time.Time, len(t.jobs))
	for _, j := range t.jobs {
		next[j.name] = j.next
	}
	return next
}

func (t *Trigger) loop(ctx context.Context, stop chan struct{}, task func(time.Time)) {
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t.runDue(now, task)
		}
	}
}

func (t *Trigger) runDue(now time.Time, task func(time.Time)) {
	t.mu.Lock()
	var due []*job
	for _, j := range t.jobs {
		if !j.next.After(now) {
			due = append(due, j)
			j.next = j.reschedule(now)
		}
	}
	t.mu.Unlock()

	for _, j := range due {
		t.logger.Info("running scheduled job", zap.String("job", j.name))
		task(now)
	}
}

func buildJobs(cfg domain.ScheduleConfig, from time.Time) ([]*job, error) {
	switch cfg.Frequency {
	case domain.FrequencyDaily:
		hour, minute, err := parseClock(cfg.Time)
		if err != nil {
			return nil, err
		}
		return []*job{{
			name: "daily_paper_monitor",
			next: nextDaily(from, hour, minute),
			reschedule: func(after time.Time) time.Time {
				return nextDaily(after, hour, minute)
			},
		}}, nil

	case domain.FrequencyWeekly:
		hour, minute, err := parseClock(cfg.Time)
		if err != nil {
			return nil, err
		}
		days := cfg.Days
		if len(days) == 0 {
			days = []string{"monday"}
		}
		jobs := make([]*job, 0, len(days))
		for _, day := range days {
			weekday, err := parseWeekday(day)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, &job{
				name: "weekly_paper_monitor_" + strings.ToLower(day),
				next: nextWeekly(from, weekday, hour, minute),
				reschedule: func(after time.Time) time.Time {
					return nextWeekly(after, weekday, hour, minute)
				},
			})
		}
		return jobs, nil

	case domain.FrequencyCustom:
		interval := time.Duration(cfg.CustomInterval) * time.Minute
		return []*job{{
			name: "custom_paper_monitor",
			next: from.Add(interval),
			reschedule: func(after time.Time) time.Time {
				return after.Add(interval)
			},
		}}, nil

	default:
		return nil, fmt.Errorf("unknown frequency %q", cfg.Frequency)
	}
}

func nextDaily(after time.Time, hour, minute int) time.Time {
	next := time.Date(after.Year(), after.Month(), after.Day(), hour, minute, 0, 0, after.Location())
	if !next.After(after) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func nextWeekly(after time.Time, weekday time.Weekday, hour, minute int) time.Time {
	next := time.Date(after.Year(), after.Month(), after.Day(), hour, minute, 0, 0, after.Location())
	offset := (int(weekday) - int(next.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, offset)
	if !next.After(after) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

func parseClock(value string) (int, int, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour, minute, nil
}

func parseWeekday(name string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	case "tuesday":
		return time.Tuesday, nil
	case "wednesday":
		return time.Wednesday, nil
	case "thursday":
		return time.Thursday, nil
	case "friday":
		return time.Friday, nil
	case "saturday":
		return time.Saturday, nil
	default:
		return time.Sunday, fmt.Errorf("unknown weekday %q", name)
	}
}
