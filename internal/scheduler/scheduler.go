package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sensorlog/internal/components/assert"
	"sensorlog/internal/components/chrono"
	"sensorlog/internal/components/telemetry"
	"sensorlog/internal/scrapers/vpktc"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("sensorlog/scheduler")

const (
	report_scheduler_start         = "scheduler.start"
	report_scheduler_load_snapshot = "scheduler.load-snapshot"
	report_scheduler_skip_tick     = "scheduler.skip-tick"
	report_scheduler_cycle_retries = "scheduler.cycle-retries"
)

const (
	// PollGranularity is the wait between two checks of the repeat interval,
	// cycles may start up to this late.
	PollGranularity = time.Second
	// MaxCycleRetries is how many times a cycle is re-run after a request
	// level failure before giving up on it.
	MaxCycleRetries = 3
)

// ErrRetriesExhausted is returned when a cycle kept failing at the request
// level through every retry.
var ErrRetriesExhausted = errors.New("scheduler: retrieving data failed")

// SensorAPI describes the remote portal a poll cycle reads from.
type SensorAPI interface {
	// Login returns a session token that is only valid for the current cycle.
	Login(ctx context.Context, creds vpktc.Credentials) (string, error)
	// Fetch returns the raw payload of a dataset, retrying empty bodies up to maxRetries times.
	Fetch(ctx context.Context, token string, code vpktc.DatasetCode, maxRetries uint8) (string, error)
}

// RecorderAPI is where finished snapshots go.
type RecorderAPI interface {
	// Append persists a snapshot, an error from it is always fatal.
	Append(snapshot vpktc.Snapshot) error
}

type Mode int

const (
	ModeOnce Mode = iota
	ModeRepeat
	ModeCron
)

func (m Mode) String() string {
	switch m {
	case ModeOnce:
		return "once"
	case ModeRepeat:
		return "repeat"
	case ModeCron:
		return "cron"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Schedule says when cycles run.
type Schedule struct {
	Mode Mode
	// Interval is used by ModeRepeat.
	Interval time.Duration
	// CronSpec is used by ModeCron.
	CronSpec string
}

func Once() Schedule {
	return Schedule{Mode: ModeOnce}
}

func Repeat(interval time.Duration) Schedule {
	return Schedule{Mode: ModeRepeat, Interval: interval}
}

func Cron(spec string) Schedule {
	return Schedule{Mode: ModeCron, CronSpec: spec}
}

type Options struct {
	Schedule    Schedule
	MaxRetries  uint8
	Credentials vpktc.Credentials
}

// Scheduler drives poll cycles: login, fetch M and K, parse, record.
type Scheduler struct {
	schedule   Schedule
	maxRetries uint8
	creds      vpktc.Credentials
	lastRun    time.Time

	sensor   SensorAPI
	recorder RecorderAPI
	time     chrono.TimeAPI
	cron     chrono.CronAPI
	tel      telemetry.API

	cycles metric.Int64Counter
}

// NewScheduler creates a Scheduler, cron may be nil unless the schedule is ModeCron.
func NewScheduler(
	opts Options,
	sensor SensorAPI,
	recorder RecorderAPI,
	clock chrono.TimeAPI,
	cron chrono.CronAPI,
	tel telemetry.API,
) *Scheduler {
	assert.NotNil(sensor)
	assert.NotNil(recorder)
	assert.NotNil(clock)
	assert.NotNil(tel)
	if opts.Schedule.Mode == ModeCron {
		assert.NotNil(cron)
		assert.NotEmptyStr(opts.Schedule.CronSpec)
	}

	cycles, _ := otel.Meter("sensorlog/scheduler").Int64Counter(
		"cycles",
		metric.WithDescription("poll cycles by outcome"),
	)

	return &Scheduler{
		schedule:   opts.Schedule,
		maxRetries: opts.MaxRetries,
		creds:      opts.Credentials,
		lastRun:    clock.Now(),
		sensor:     sensor,
		recorder:   recorder,
		time:       clock,
		cron:       cron,
		tel:        telemetry.NewScopedAPI("scheduler", tel),
		cycles:     cycles,
	}
}

// LastRun returns the start time of the most recent cycle, or the creation
// time of the scheduler if none ran yet.
func (s *Scheduler) LastRun() time.Time {
	return s.lastRun
}

// Start runs the schedule.
//
// ModeOnce runs a single cycle and returns its error, a cycle that exhausted
// its retries is fatal. ModeRepeat and ModeCron run until ctx is done and
// return nil then, a cycle that exhausted its retries only skips its tick.
// Any other error, recording errors included, is returned in every mode.
func (s *Scheduler) Start(ctx context.Context) error {
	switch s.schedule.Mode {
	case ModeOnce:
		return s.runCycle(ctx)
	case ModeRepeat:
		s.tel.ReportDebug(report_scheduler_start, "repeat every", s.schedule.Interval.String())
		return s.repeat(ctx)
	case ModeCron:
		s.tel.ReportDebug(report_scheduler_start, "cron", s.schedule.CronSpec)
		return s.startCron(ctx)
	}
	return fmt.Errorf("scheduler: unknown mode %s", s.schedule.Mode)
}

func (s *Scheduler) repeat(ctx context.Context) error {
	for {
		now := s.time.Now()
		if now.Sub(s.lastRun) >= s.schedule.Interval {
			err := s.runScheduledCycle(ctx)
			if err != nil {
				return err
			}
		}

		err := s.time.Sleep(ctx, PollGranularity)
		if err != nil {
			return nil
		}
	}
}

// runScheduledCycle runs a cycle under the long running policy: a cycle
// that exhausted its retries is skipped, cancellation ends the schedule
// cleanly and everything else is returned.
func (s *Scheduler) runScheduledCycle(ctx context.Context) error {
	err := s.runCycle(ctx)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return nil
	case errors.Is(err, ErrRetriesExhausted):
		s.tel.ReportWarning(report_scheduler_skip_tick, err)
		s.cycles.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "skipped")))
		return nil
	}
	return err
}

// runCycle runs one poll cycle and records its snapshot. lastRun is set to
// the start of the cycle whatever its outcome.
func (s *Scheduler) runCycle(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Scheduler:cycle")
	defer span.End()

	s.lastRun = s.time.Now()

	snapshot, err := s.loadSnapshot(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	err = s.recorder.Append(snapshot)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.cycles.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
		return err
	}

	span.SetAttributes(attribute.Int("records", len(snapshot)))
	s.cycles.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "recorded")))
	return nil
}

// loadSnapshot retries collect up to MaxCycleRetries times, without delay,
// as long as it fails at the request level.
func (s *Scheduler) loadSnapshot(ctx context.Context) (vpktc.Snapshot, error) {
	attempts := 0
	for {
		err := ctx.Err()
		if err != nil {
			return nil, err
		}

		snapshot, err := s.collect(ctx)
		if err == nil {
			s.tel.ReportCount(report_scheduler_cycle_retries, int64(attempts))
			return snapshot, nil
		}
		if !vpktc.IsRequestFailure(err) {
			return nil, err
		}
		if attempts >= MaxCycleRetries {
			err = fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
			s.tel.ReportBroken(report_scheduler_load_snapshot, err)
			return nil, err
		}
		attempts++
		s.tel.ReportWarning(report_scheduler_load_snapshot, err, fmt.Sprintf("retry %d/%d", attempts, MaxCycleRetries))
	}
}

// collect logs in fresh and reads both datasets with the new token.
func (s *Scheduler) collect(ctx context.Context) (vpktc.Snapshot, error) {
	token, err := s.sensor.Login(ctx, s.creds)
	if err != nil {
		return nil, err
	}

	rawM, err := s.sensor.Fetch(ctx, token, vpktc.DatasetM, s.maxRetries)
	if err != nil {
		return nil, err
	}
	rawK, err := s.sensor.Fetch(ctx, token, vpktc.DatasetK, s.maxRetries)
	if err != nil {
		return nil, err
	}

	return vpktc.Parse(rawM, rawK, s.tel), nil
}
