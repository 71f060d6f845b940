package chrono

import (
	"fmt"
	"time"

	"sensorlog/internal/components/telemetry"

	"github.com/robfig/cron/v3"
)

// CronAPI is the interface anything that needs to run on a cron schedule should use.
type CronAPI interface {
	// Cron registers callback to run on the standard 5 field cron spec.
	Cron(spec string, callback func()) error
	// Stop stops scheduling new runs, it does not wait for running ones.
	Stop()
}

// StandardCron implements CronAPI with `github.com/robfig/cron/v3`. A run
// that is still going when the next one is due causes the next one to be skipped.
type StandardCron struct {
	cron *cron.Cron
}

func NewStandardCron(tel telemetry.API, location *time.Location) StandardCron {
	logger := cronLogger{tel: telemetry.NewScopedAPI("cron", tel)}
	cronner := cron.New(
		cron.WithLogger(logger),
		cron.WithLocation(location),
		cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		),
	)
	cronner.Start()

	return StandardCron{cron: cronner}
}

func (s StandardCron) Cron(spec string, callback func()) error {
	_, err := s.cron.AddFunc(spec, callback)
	return err
}

func (s StandardCron) Stop() {
	s.cron.Stop()
}

// ValidateCronSpec reports whether spec is a schedule StandardCron accepts.
func ValidateCronSpec(spec string) error {
	_, err := cron.ParseStandard(spec)
	return err
}

type cronLogger struct {
	tel telemetry.API
}

func (l cronLogger) formatParams(keysAndValues []any) []any {
	params := []any{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		params = append(params, fmt.Sprintf("%v: %v", keysAndValues[i], keysAndValues[i+1]))
	}
	return params
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.tel.ReportDebug(msg, l.formatParams(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	params := append([]any{fmt.Errorf("%s: %w", msg, err)}, l.formatParams(keysAndValues)...)
	l.tel.ReportBroken("scheduler", params...)
}
