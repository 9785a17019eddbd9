package config

import (
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone  = "UTC"
	configPathEnv    = "NEWSBRIEF_CONFIG"
	databaseDSNEnv   = "DATABASE_DSN"
	openAIAPIKeyEnv  = "OPENAI_API_KEY"
	openAIModelEnv   = "OPENAI_MODEL"
	smtpUsernameEnv  = "SMTP_USERNAME"
	smtpPasswordEnv  = "SMTP_PASSWORD"
	storagePathEnv   = "NEWSBRIEF_DATA_DIR"
	recipientListEnv = "NEWSBRIEF_RECIPIENTS"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Assembly  AssemblyConfig  `yaml:"assembly"`
	Delivery  DeliveryConfig  `yaml:"delivery"`
	Sources   []SourceConfig  `yaml:"sources"`
}

// LoggingConfig selects log verbosity and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig describes Postgres connection details. When the DSN is empty
// the file store is used instead.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// StorageConfig drives the JSON file store for run records and editions.
type StorageConfig struct {
	Path       string `yaml:"path"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// SchedulerConfig defines when recurring runs execute.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location. The
// Timezone field is honored also on hand-constructed configs that never went
// through Load.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	if s.Timezone != "" {
		if loc, err := time.LoadLocation(s.Timezone); err == nil {
			return loc
		}
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// OpenAIConfig defines how to contact the summarization model.
type OpenAIConfig struct {
	BaseURL         string `yaml:"baseUrl"`
	Model           string `yaml:"model"`
	APIKey          string `yaml:"apiKey"`
	MaxSummaryChars int    `yaml:"maxSummaryChars"`
}

// PipelineConfig carries the dedup/enrichment tuning knobs.
type PipelineConfig struct {
	SimilarityThreshold float64 `yaml:"similarityThreshold"`
	DedupWindowHours    int     `yaml:"dedupWindowHours"`
	RetryMaxAttempts    int     `yaml:"retryMaxAttempts"`
	RetryInitialMillis  int     `yaml:"retryInitialMillis"`
	RetryMaxMillis      int     `yaml:"retryMaxMillis"`
	EnrichConcurrency   int     `yaml:"enrichConcurrency"`
	IngestConcurrency   int     `yaml:"ingestConcurrency"`
}

// DedupWindow converts the configured hour count to a duration.
func (p PipelineConfig) DedupWindow() time.Duration {
	return time.Duration(p.DedupWindowHours) * time.Hour
}

// AssemblyConfig shapes the edition sections.
type AssemblyConfig struct {
	MaxPerSection    int      `yaml:"maxPerSection"`
	MinPerSection    int      `yaml:"minPerSection"`
	SectionOrder     []string `yaml:"sectionOrder"`
	Categories       []string `yaml:"categories"`
	FallbackCategory string   `yaml:"fallbackCategory"`
}

// DeliveryConfig wires outbound email.
type DeliveryConfig struct {
	SMTP       SMTPConfig `yaml:"smtp"`
	Recipients []string   `yaml:"recipients"`
	Subject    string     `yaml:"subject"`
}

// SMTPConfig holds the mail relay credentials.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SourceConfig describes a single news source with its scraper strategy.
type SourceConfig struct {
	Name       string            `yaml:"name"`
	Scraper    string            `yaml:"scraper"`
	URL        string            `yaml:"url"`
	MaxRecords int               `yaml:"maxRecords"`
	Enabled    *bool             `yaml:"enabled"`
	Options    map[string]string `yaml:"options"`
}

// IsEnabled treats an absent flag as enabled.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Load reads YAML configuration (if present) and applies environment
// overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.OpenAI.APIKey = v
	}

	if v := os.Getenv(openAIModelEnv); v != "" {
		c.OpenAI.Model = v
	}

	if v := os.Getenv(smtpUsernameEnv); v != "" {
		c.Delivery.SMTP.Username = v
	}

	if v := os.Getenv(smtpPasswordEnv); v != "" {
		c.Delivery.SMTP.Password = v
	}

	if v := os.Getenv(storagePathEnv); v != "" {
		c.Storage.Path = v
	}

	if v := os.Getenv(recipientListEnv); v != "" {
		c.Delivery.Recipients = splitList(v)
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Storage.Path != "" {
		base.Storage.Path = override.Storage.Path
	}
	if override.Storage.MaxAgeDays > 0 {
		base.Storage.MaxAgeDays = override.Storage.MaxAgeDays
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.OpenAI.BaseURL != "" {
		base.OpenAI.BaseURL = override.OpenAI.BaseURL
	}
	if override.OpenAI.Model != "" {
		base.OpenAI.Model = override.OpenAI.Model
	}
	if override.OpenAI.APIKey != "" {
		base.OpenAI.APIKey = override.OpenAI.APIKey
	}
	if override.OpenAI.MaxSummaryChars > 0 {
		base.OpenAI.MaxSummaryChars = override.OpenAI.MaxSummaryChars
	}

	if override.Pipeline.SimilarityThreshold > 0 {
		base.Pipeline.SimilarityThreshold = override.Pipeline.SimilarityThreshold
	}
	if override.Pipeline.DedupWindowHours > 0 {
		base.Pipeline.DedupWindowHours = override.Pipeline.DedupWindowHours
	}
	if override.Pipeline.RetryMaxAttempts > 0 {
		base.Pipeline.RetryMaxAttempts = override.Pipeline.RetryMaxAttempts
	}
	if override.Pipeline.RetryInitialMillis > 0 {
		base.Pipeline.RetryInitialMillis = override.Pipeline.RetryInitialMillis
	}
	if override.Pipeline.RetryMaxMillis > 0 {
		base.Pipeline.RetryMaxMillis = override.Pipeline.RetryMaxMillis
	}
	if override.Pipeline.EnrichConcurrency > 0 {
		base.Pipeline.EnrichConcurrency = override.Pipeline.EnrichConcurrency
	}
	if override.Pipeline.IngestConcurrency > 0 {
		base.Pipeline.IngestConcurrency = override.Pipeline.IngestConcurrency
	}

	if override.Assembly.MaxPerSection > 0 {
		base.Assembly.MaxPerSection = override.Assembly.MaxPerSection
	}
	if override.Assembly.MinPerSection > 0 {
		base.Assembly.MinPerSection = override.Assembly.MinPerSection
	}
	if len(override.Assembly.SectionOrder) > 0 {
		base.Assembly.SectionOrder = override.Assembly.SectionOrder
	}
	if len(override.Assembly.Categories) > 0 {
		base.Assembly.Categories = override.Assembly.Categories
	}
	if override.Assembly.FallbackCategory != "" {
		base.Assembly.FallbackCategory = override.Assembly.FallbackCategory
	}

	if override.Delivery.SMTP.Host != "" {
		base.Delivery.SMTP = override.Delivery.SMTP
	}
	if len(override.Delivery.Recipients) > 0 {
		base.Delivery.Recipients = override.Delivery.Recipients
	}
	if override.Delivery.Subject != "" {
		base.Delivery.Subject = override.Delivery.Subject
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Storage: StorageConfig{Path: "data/runs", MaxAgeDays: 7},
		Scheduler: SchedulerConfig{
			CronExpression: "0 6 * * *",
			Timezone:       defaultTimezone,
			location:       tz,
		},
		OpenAI: OpenAIConfig{
			Model:           "gpt-4o-mini",
			MaxSummaryChars: 200,
		},
		Pipeline: PipelineConfig{
			SimilarityThreshold: 0.5,
			DedupWindowHours:    48,
			RetryMaxAttempts:    3,
			RetryInitialMillis:  500,
			RetryMaxMillis:      8000,
			EnrichConcurrency:   4,
			IngestConcurrency:   5,
		},
		Assembly: AssemblyConfig{
			MaxPerSection: 10,
			MinPerSection: 1,
			SectionOrder:  []string{"technology", "business", "science"},
			Categories: []string{
				"technology", "business", "science", "health",
				"politics", "sports", "entertainment", "general",
			},
			FallbackCategory: "general",
		},
		Delivery: DeliveryConfig{
			SMTP:    SMTPConfig{Port: 587},
			Subject: "Your NewsBrief digest",
		},
		Sources: []SourceConfig{
			{
				Name:       "hn-frontpage",
				Scraper:    "web",
				URL:        "https://news.ycombinator.com/",
				MaxRecords: 20,
				Options: map[string]string{
					"itemSelector":  "tr.athing",
					"titleSelector": "span.titleline > a",
					"linkSelector":  "span.titleline > a",
				},
			},
		},
	}
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
