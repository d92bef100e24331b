// Package config resolves the run configuration from config.json5, its
// local overrides and the environment.
package config

import (
	"eprocure-backend/internal/components/telemetry"
	"eprocure-backend/internal/notify"
	"eprocure-backend/internal/scrapers/eprocure"
	"eprocure-backend/internal/scrapers/t247"
	"eprocure-backend/lib/configutil"
	configlibsql "eprocure-backend/lib/configutil/libsql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const DefaultCronSchedule = "*/30 * * * *"

// DefaultKeywords is searched when neither the command line, the
// environment nor the config name any keywords.
var DefaultKeywords = []string{
	"Diesel",
	"HSD",
	"Petrol",
	"Gasoline",
	"Crude",
	"Crude Oil",
	"Oil",
	"Brent",
	"WTI",
	"OPEC",
	"Refinery",
	"Refining",
	"Fuel",
	"LPG",
	"CNG",
	"PNG",
	"ATF",
	"Aviation Turbine Fuel",
	"Kerosene",
	"LSHS",
	"MDO",
	"Bitumen",
	"Asphalt",
	"Lubricant",
	"Lube",
	"Petrochemical",
	"Natural Gas",
	"Pipeline",
	"HPCL",
	"BPCL",
	"IOCL",
	"Indian Oil",
	"ONGC",
	"GAIL",
	"Reliance Industries",
	"Solvent",
}

type PortalConfig struct {
	BaseUrl           string  `json:"base_url"`
	UserAgent         string  `json:"user_agent"`
	MaxRetries        *int    `json:"max_retries"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	CloudflareBypass  bool    `json:"cloudflare_bypass"`
	// DumpDir captures every portal exchange as text files when set.
	DumpDir string `json:"dump_dir"`
}

type Config struct {
	Keywords          []string `json:"keywords"`
	OutputDir         string   `json:"output_dir"`
	DelayMs           int      `json:"delay_ms"`
	ScrapeDetails     bool     `json:"scrape_details"`
	DownloadDocuments bool     `json:"download_documents"`
	Reset             bool     `json:"reset"`

	CronSchedule string `json:"cron_schedule"`
	RunOnStartup bool   `json:"run_on_startup"`
	Timezone     string `json:"timezone"`

	Portal     PortalConfig        `json:"portal"`
	Database   configlibsql.Struct `json:"database"`
	InsertOnly bool                `json:"insert_only"`

	Smtp     notify.SmtpConfig   `json:"smtp"`
	Twilio   notify.TwilioConfig `json:"twilio"`
	Officers []notify.Officer    `json:"officers"`

	T247      t247.Options     `json:"t247"`
	Telemetry telemetry.Config `json:"telemetry"`
}

func Default() Config {
	return Config{
		OutputDir:    "output",
		DelayMs:      3000,
		CronSchedule: DefaultCronSchedule,
	}
}

// Load reads name (and its .local override) when it exists, then applies
// the environment on top. A bare file name is also looked up in the parent
// directories of the working directory.
func Load(name string, lookup func(string) (string, bool)) (Config, error) {
	config := Default()
	if name != "" {
		read, err := configutil.ReadConfig[Config](name)
		if errors.Is(err, os.ErrNotExist) && filepath.Base(name) == name {
			read, err = configutil.ReadRecursively[Config](name)
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", name, err)
		}
		if err == nil {
			config = read.withDefaults()
		}
	}
	err := config.ApplyEnv(lookup)
	if err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) withDefaults() Config {
	defaults := Default()
	if c.OutputDir == "" {
		c.OutputDir = defaults.OutputDir
	}
	if c.DelayMs == 0 {
		c.DelayMs = defaults.DelayMs
	}
	if c.CronSchedule == "" {
		c.CronSchedule = defaults.CronSchedule
	}
	return c
}

// SplitKeywords splits a comma separated list dropping blank entries.
func SplitKeywords(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseFlag(name, value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "", "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("%s: %q is not a boolean", name, value)
}

// ApplyEnv overrides the config with the variables the scraper has always
// honoured.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if raw, ok := lookup("KEYWORDS"); ok {
		if keywords := SplitKeywords(raw); len(keywords) > 0 {
			c.Keywords = keywords
		}
	}
	if raw, ok := lookup("DELAY_MS"); ok && strings.TrimSpace(raw) != "" {
		delay, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || delay < 0 {
			return fmt.Errorf("DELAY_MS: %q is not a non-negative integer", raw)
		}
		c.DelayMs = delay
	}
	if raw, ok := lookup("OUTPUT_DIR"); ok && strings.TrimSpace(raw) != "" {
		c.OutputDir = strings.TrimSpace(raw)
	}
	if raw, ok := lookup("DB_PATH"); ok && strings.TrimSpace(raw) != "" {
		c.Database = configlibsql.Struct{File: strings.TrimSpace(raw), AuthToken: c.Database.AuthToken}
	}
	if raw, ok := lookup("CRON_SCHEDULE"); ok && strings.TrimSpace(raw) != "" {
		c.CronSchedule = strings.TrimSpace(raw)
	}

	flags := []struct {
		name   string
		target *bool
	}{
		{"SCRAPE_DETAILS", &c.ScrapeDetails},
		{"DOWNLOAD_DOCUMENTS", &c.DownloadDocuments},
		{"RESET", &c.Reset},
		{"INSERT_ONLY", &c.InsertOnly},
		{"RUN_ON_STARTUP", &c.RunOnStartup},
	}
	for _, flag := range flags {
		raw, ok := lookup(flag.name)
		if !ok {
			continue
		}
		value, err := parseFlag(flag.name, raw)
		if err != nil {
			return err
		}
		*flag.target = value
	}
	return nil
}

// ResolveKeywords picks the keywords of a pass: args first, then the
// configured list (which the environment may have replaced), then the
// built-in list.
func (c Config) ResolveKeywords(args []string) []string {
	cli := []string{}
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg != "" {
			cli = append(cli, arg)
		}
	}
	if len(cli) > 0 {
		return cli
	}
	if len(c.Keywords) > 0 {
		return c.Keywords
	}
	return DefaultKeywords
}

func (c Config) KeywordDelay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

// ScraperOptions derives the portal scraper options.
func (c Config) ScraperOptions() eprocure.Options {
	opts := eprocure.DefaultOptions()
	opts.ScrapeDetails = c.ScrapeDetails
	opts.DownloadDocuments = c.DownloadDocuments
	opts.OutputDir = c.OutputDir
	if c.Portal.BaseUrl != "" {
		opts.BaseUrl = c.Portal.BaseUrl
	}
	if c.Portal.UserAgent != "" {
		opts.UserAgent = c.Portal.UserAgent
	}
	if c.Portal.MaxRetries != nil {
		opts.MaxRetries = *c.Portal.MaxRetries
	}
	opts.RequestsPerSecond = c.Portal.RequestsPerSecond
	opts.CloudflareBypass = c.Portal.CloudflareBypass
	return opts
}

// HasDatabase is false when neither a file nor a url is configured.
func (c Config) HasDatabase() bool {
	return c.Database.File != "" || c.Database.Url != ""
}
