package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sensorlog/internal/recorder"
	"sensorlog/internal/scheduler"
	"sensorlog/internal/scrapers/vpktc"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func parseFlags(t *testing.T, args ...string) (*cobra.Command, *flagValues) {
	cmd := &cobra.Command{Use: "sensorlog"}
	flags := registerFlags(cmd)
	err := cmd.ParseFlags(args)
	if err != nil {
		t.Fatal(err)
	}
	return cmd, flags
}

func writeConfig(t *testing.T, name, contents string) string {
	path := filepath.Join(t.TempDir(), name)
	err := os.WriteFile(path, []byte(contents), 0644)
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolveConfigDefaults(t *testing.T) {
	cmd, flags := parseFlags(t, "--csl", "1234")

	cfg, err := resolveConfig(cmd, flags)
	if err != nil {
		t.Fatal(err)
	}

	require.Nil(t, cfg.Repeat)
	require.Equal(t, "", cfg.Cron)
	require.Equal(t, uint8(5), cfg.MaxRetries())
	require.Equal(t, "data.csv", cfg.File)
	require.Equal(t, "2025", cfg.Year)
	require.Equal(t, vpktc.DefaultBaseUrl, cfg.BaseUrl)
	require.False(t, cfg.Verbose)
	require.Equal(t, vpktc.Credentials{AccountId: "1234", Period: "2025"}, cfg.Credentials())
	require.Equal(t, scheduler.Once(), cfg.Schedule())
}

func TestResolveConfigPrecedence(t *testing.T) {
	path := writeConfig(t, "sensorlog.json5", `{
		// values from the file beat defaults
		csl: "1111",
		hsl: "from-file",
		year: "2024",
		retries: 2,
		repeat: 60,
		file: "readings.csv",
	}`)
	cmd, flags := parseFlags(t,
		"--config", path,
		"--hsl", "from-flag",
		"--repeat", "30",
		"--retries", "0",
	)

	cfg, err := resolveConfig(cmd, flags)
	if err != nil {
		t.Fatal(err)
	}

	require.Equal(t, vpktc.Credentials{
		AccountId: "1111",
		Password:  "from-flag",
		Period:    "2024",
	}, cfg.Credentials())
	// an explicit zero flag still overrides the file
	require.Equal(t, uint8(0), cfg.MaxRetries())
	require.Equal(t, "readings.csv", cfg.File)
	require.Equal(t, scheduler.Repeat(30*time.Second), cfg.Schedule())
}

func TestResolveConfigLocalOverride(t *testing.T) {
	path := writeConfig(t, "sensorlog.json5", `{ csl: "1111", cron: "0 * * * *" }`)
	err := os.WriteFile(filepath.Join(filepath.Dir(path), "sensorlog.local.json5"), []byte(`{ csl: "2222" }`), 0644)
	if err != nil {
		t.Fatal(err)
	}
	cmd, flags := parseFlags(t, "--config", path)

	cfg, err := resolveConfig(cmd, flags)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "2222", cfg.Csl)
	require.Equal(t, scheduler.Cron("0 * * * *"), cfg.Schedule())
}

func TestResolveConfigMissingExplicitFile(t *testing.T) {
	cmd, flags := parseFlags(t, "--config", filepath.Join(t.TempDir(), "missing.json5"))

	_, err := resolveConfig(cmd, flags)
	require.ErrorContains(t, err, "not found")
}

func TestValidate(t *testing.T) {
	zero := uint32(0)
	ten := uint32(10)

	valid := func() Config {
		cfg := defaultConfig()
		cfg.Csl = "1234"
		return cfg
	}

	testCases := []struct {
		name   string
		modify func(cfg *Config)
		errMsg string
	}{
		{
			name:   "once",
			modify: func(cfg *Config) {},
		},
		{
			name:   "repeat",
			modify: func(cfg *Config) { cfg.Repeat = &ten },
		},
		{
			name:   "cron",
			modify: func(cfg *Config) { cfg.Cron = "*/5 * * * *" },
		},
		{
			name:   "timezone",
			modify: func(cfg *Config) { cfg.Timezone = "UTC" },
		},
		{
			name:   "zero repeat",
			modify: func(cfg *Config) { cfg.Repeat = &zero },
			errMsg: "repeat must be greater than 0",
		},
		{
			name: "repeat and cron",
			modify: func(cfg *Config) {
				cfg.Repeat = &ten
				cfg.Cron = "@hourly"
			},
			errMsg: "cannot be used together",
		},
		{
			name:   "bad cron",
			modify: func(cfg *Config) { cfg.Cron = "every day" },
			errMsg: "invalid cron spec",
		},
		{
			name:   "missing csl",
			modify: func(cfg *Config) { cfg.Csl = "" },
			errMsg: "csl is required",
		},
		{
			name:   "short year",
			modify: func(cfg *Config) { cfg.Year = "25" },
			errMsg: "year must be four digits",
		},
		{
			name:   "year with letters",
			modify: func(cfg *Config) { cfg.Year = "20x5" },
			errMsg: "year must be four digits",
		},
		{
			name:   "unknown timezone",
			modify: func(cfg *Config) { cfg.Timezone = "Mars/Olympus_Mons" },
			errMsg: "Mars/Olympus_Mons",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.modify(&cfg)

			err := cfg.Validate()
			if tc.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.errMsg)
		})
	}
}

func TestRenderLines(t *testing.T) {
	buff := bytes.NewBuffer(nil)
	renderLines(buff, []recorder.Line{
		{Timestamp: "2025-04-12T09:00:00+02:00", Values: []string{"5", "7", "malformed"}},
		{Timestamp: "2025-04-12T09:10:00+02:00"},
	})

	// headers and footers are upper cased by the table style
	out := strings.ToLower(buff.String())
	require.Contains(t, out, "timestamp")
	require.Contains(t, out, "2025-04-12t09:00:00+02:00")
	require.Contains(t, out, "malformed")
	require.Contains(t, out, recorder.EmptyMarker)
	require.Contains(t, out, "2 lines")
}
