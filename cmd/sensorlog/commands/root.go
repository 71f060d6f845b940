package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"sensorlog/internal/components/chrono"
	"sensorlog/internal/components/serviceutil"
	"sensorlog/internal/components/telemetry"
	"sensorlog/internal/recorder"
	"sensorlog/internal/scheduler"
	"sensorlog/internal/scrapers/vpktc"

	"github.com/spf13/cobra"
)

const serviceName = "sensorlog"

var rootCmd = &cobra.Command{
	Use:   "sensorlog --csl <account> --hsl <password> [--repeat <seconds> | --cron <spec>]",
	Short: "sensorlog polls the vpktc sensor portal and appends readings to a log file.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := resolveConfig(cmd, rootFlags)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		logger := telemetry.NewLogger(os.Stderr, cfg.Verbose)
		slog.SetDefault(logger)

		err = cfg.Validate()
		if err != nil {
			serviceutil.Fatal("invalid configuration", err)
		}

		err = run(cmd.Context(), cfg, telemetry.NewSlogAPI(logger))
		if err != nil {
			serviceutil.Fatal("polling stopped", err)
		}
	},
}

var rootFlags *flagValues

func init() {
	rootFlags = registerFlags(rootCmd)
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, tel telemetry.API) error {
	location, err := chrono.LoadLocation(cfg.Timezone)
	if err != nil {
		return err
	}

	otel, err := telemetry.SetupOtel(ctx, serviceName, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setup otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := otel.Shutdown(shutdownCtx)
		if err != nil {
			slog.Warn("failed to flush telemetry", "err", err.Error())
		}
	}()

	schedule := cfg.Schedule()
	if schedule.Mode != scheduler.ModeOnce && cfg.Telemetry.Enabled() {
		telemetry.InstrumentPerfStats(ctx, tel, 15*time.Second)
	}

	clock := chrono.NewStandardTime(location)

	clientOpts := vpktc.ClientOptions{
		BaseUrl:           cfg.BaseUrl,
		RequestsPerSecond: 2,
		BrowserHeaders:    true,
	}
	if cfg.DumpHttp != "" {
		dump, err := telemetry.NewHttpDump(cfg.DumpHttp, tel, vpktc.SensitiveFields...)
		if err != nil {
			return fmt.Errorf("create http dump directory: %w", err)
		}
		clientOpts.HttpDump = &dump
	}
	client := vpktc.NewClient(clientOpts, tel, clock)
	rec := recorder.NewFileRecorder(cfg.File, clock, tel)

	var cron chrono.CronAPI
	if schedule.Mode == scheduler.ModeCron {
		cron = chrono.NewStandardCron(tel, location)
	}

	s := scheduler.NewScheduler(
		scheduler.Options{
			Schedule:    schedule,
			MaxRetries:  cfg.MaxRetries(),
			Credentials: cfg.Credentials(),
		},
		client, rec, clock, cron, tel,
	)

	slog.Info(
		"polling started",
		"mode", schedule.Mode.String(),
		"file", rec.Path(),
		"retries", cfg.MaxRetries(),
	)
	return s.Start(ctx)
}
