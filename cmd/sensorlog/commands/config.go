package commands

import (
	"errors"
	"fmt"
	"os"
	"time"
	"unicode"

	"sensorlog/internal/components/chrono"
	"sensorlog/internal/components/config"
	"sensorlog/internal/components/telemetry"
	"sensorlog/internal/scheduler"
	"sensorlog/internal/scrapers/vpktc"

	"github.com/spf13/cobra"
)

const (
	defaultConfigPath = "sensorlog.json5"
	defaultFile       = "data.csv"
	defaultYear       = "2025"
	defaultRetries    = uint8(5)
)

// Config is everything the poller needs to start. Pointer fields tell an
// explicit zero apart from an unset value.
type Config struct {
	// Repeat is the interval between cycles in seconds.
	Repeat *uint32 `json:"repeat"`
	Cron   string  `json:"cron"`
	// Retries is how many times an empty dataset is re-requested.
	Retries  *uint8 `json:"retries"`
	Verbose  bool   `json:"verbose"`
	File     string `json:"file"`
	Csl      string `json:"csl"`
	Hsl      string `json:"hsl"`
	Year     string `json:"year"`
	BaseUrl  string `json:"base_url"`
	Timezone string `json:"timezone"`
	// DumpHttp is a directory every http exchange is written to.
	DumpHttp string `json:"dump_http"`

	Telemetry telemetry.Config `json:"telemetry"`
}

func defaultConfig() Config {
	retries := defaultRetries
	return Config{
		Retries: &retries,
		File:    defaultFile,
		Year:    defaultYear,
		BaseUrl: vpktc.DefaultBaseUrl,
	}
}

type flagValues struct {
	config   *string
	repeat   *uint32
	cron     *string
	retries  *uint8
	info     *bool
	file     *string
	csl      *string
	hsl      *string
	year     *string
	baseUrl  *string
	timezone *string
	dumpHttp *string
}

func registerFlags(cmd *cobra.Command) *flagValues {
	flags := cmd.Flags()
	return &flagValues{
		config:   flags.String("config", defaultConfigPath, "The json5 config file to read, a missing file is ignored."),
		repeat:   flags.Uint32("repeat", 0, "Poll every <seconds> seconds instead of once."),
		cron:     flags.String("cron", "", "Poll on a 5 field cron schedule instead of once."),
		retries:  flags.Uint8("retries", defaultRetries, "How many times an empty dataset is re-requested."),
		info:     flags.Bool("info", false, "Log debug information."),
		file:     flags.String("file", defaultFile, "The file snapshots are appended to."),
		csl:      flags.String("csl", "", "The account id to log in with."),
		hsl:      flags.String("hsl", "", "The password to log in with."),
		year:     flags.String("year", defaultYear, "The year to request readings for."),
		baseUrl:  flags.String("base-url", vpktc.DefaultBaseUrl, "The base url of the sensor portal."),
		timezone: flags.String("timezone", "", "The IANA timezone for timestamps and cron schedules, defaults to local time."),
		dumpHttp: flags.String("dump-http", "", "Write every http request and response into this directory."),
	}
}

// apply copies every flag the user set explicitly onto cfg.
func (f *flagValues) apply(cmd *cobra.Command, cfg *Config) {
	changed := cmd.Flags().Changed

	if changed("repeat") {
		repeat := *f.repeat
		cfg.Repeat = &repeat
	}
	if changed("cron") {
		cfg.Cron = *f.cron
	}
	if changed("retries") {
		retries := *f.retries
		cfg.Retries = &retries
	}
	if changed("info") {
		cfg.Verbose = *f.info
	}
	if changed("file") {
		cfg.File = *f.file
	}
	if changed("csl") {
		cfg.Csl = *f.csl
	}
	if changed("hsl") {
		cfg.Hsl = *f.hsl
	}
	if changed("year") {
		cfg.Year = *f.year
	}
	if changed("base-url") {
		cfg.BaseUrl = *f.baseUrl
	}
	if changed("timezone") {
		cfg.Timezone = *f.timezone
	}
	if changed("dump-http") {
		cfg.DumpHttp = *f.dumpHttp
	}
}

// resolveConfig layers defaults, the config file and explicit flags in that
// order of precedence, lowest first.
func resolveConfig(cmd *cobra.Command, flags *flagValues) (Config, error) {
	cfg := defaultConfig()

	fromFile, err := config.Read[Config](*flags.config)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if cmd.Flags().Changed("config") {
			return cfg, fmt.Errorf("config file %s not found", *flags.config)
		}
	case err != nil:
		return cfg, err
	default:
		err = config.Overlay(&cfg, fromFile)
		if err != nil {
			return cfg, err
		}
	}

	flags.apply(cmd, &cfg)
	return cfg, nil
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var errlist []error

	if c.Repeat != nil && *c.Repeat == 0 {
		errlist = append(errlist, fmt.Errorf("repeat must be greater than 0"))
	}
	if c.Repeat != nil && c.Cron != "" {
		errlist = append(errlist, fmt.Errorf("repeat and cron cannot be used together"))
	}
	if c.Cron != "" {
		err := chrono.ValidateCronSpec(c.Cron)
		if err != nil {
			errlist = append(errlist, fmt.Errorf("invalid cron spec %q: %w", c.Cron, err))
		}
	}
	if c.Csl == "" {
		errlist = append(errlist, fmt.Errorf("csl is required"))
	}
	if !isYear(c.Year) {
		errlist = append(errlist, fmt.Errorf("year must be four digits, got %q", c.Year))
	}
	if c.File == "" {
		errlist = append(errlist, fmt.Errorf("file must not be empty"))
	}
	if c.BaseUrl == "" {
		errlist = append(errlist, fmt.Errorf("base url must not be empty"))
	}
	_, err := chrono.LoadLocation(c.Timezone)
	if err != nil {
		errlist = append(errlist, err)
	}

	return errors.Join(errlist...)
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Schedule picks the schedule mode, repeat and cron are mutually exclusive.
func (c Config) Schedule() scheduler.Schedule {
	switch {
	case c.Repeat != nil:
		return scheduler.Repeat(time.Duration(*c.Repeat) * time.Second)
	case c.Cron != "":
		return scheduler.Cron(c.Cron)
	}
	return scheduler.Once()
}

func (c Config) Credentials() vpktc.Credentials {
	return vpktc.Credentials{
		AccountId: c.Csl,
		Password:  c.Hsl,
		Period:    c.Year,
	}
}

func (c Config) MaxRetries() uint8 {
	if c.Retries == nil {
		return defaultRetries
	}
	return *c.Retries
}
