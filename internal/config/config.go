package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Taxonomy   TaxonomyConfig   `yaml:"taxonomy" mapstructure:"taxonomy"`
	Normalize  NormalizeConfig  `yaml:"normalize" mapstructure:"normalize"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Extractor  ExtractorConfig  `yaml:"extractor" mapstructure:"extractor"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"loglevel"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// TaxonomyConfig selects where canonical terms come from. An empty Path
// uses the embedded taxonomy; a DatabaseURL replaces its city list.
type TaxonomyConfig struct {
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// NormalizeConfig configures the row normalizer.
type NormalizeConfig struct {
	Strategy    string `yaml:"strategy" mapstructure:"strategy" validate:"oneof=direct pattern regex approximate fuzzy semantic vector progressive"`
	Workers     int    `yaml:"workers" mapstructure:"workers" validate:"gte=1,lte=256"`
	SkillColumn string `yaml:"skill_column" mapstructure:"skill_column" validate:"required"`
}

// BatchConfig configures the batch checkpoint orchestrator.
type BatchConfig struct {
	Size        int    `yaml:"size" mapstructure:"size" validate:"gte=1"`
	InputDir    string `yaml:"input_dir" mapstructure:"input_dir" validate:"required"`
	OutputDir   string `yaml:"output_dir" mapstructure:"output_dir" validate:"required"`
	BatchDir    string `yaml:"batch_dir" mapstructure:"batch_dir" validate:"required"`
	JournalPath string `yaml:"journal_path" mapstructure:"journal_path" validate:"required"`
}

// FetchConfig configures resume artifact downloads.
type FetchConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"gte=1"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency" validate:"gte=1"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec" validate:"gte=0"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// ExtractorConfig configures the resume extraction service client.
type ExtractorConfig struct {
	BaseURL             string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	Key                 string `yaml:"key" mapstructure:"key"`
	TimeoutSecs         int    `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"gte=1"`
	MaxAttempts         int    `yaml:"max_attempts" mapstructure:"max_attempts" validate:"gte=1"`
	InitialBackoffMs    int    `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms" validate:"gte=0"`
	BreakerThreshold    int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold" validate:"gte=1"`
	BreakerCooldownSecs int    `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs" validate:"gte=1"`
}

// MonitoringConfig configures metric export and run alerts.
type MonitoringConfig struct {
	TextfilePath          string  `yaml:"textfile_path" mapstructure:"textfile_path"`
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url" validate:"omitempty,url"`
	BatchFailureThreshold float64 `yaml:"batch_failure_threshold" mapstructure:"batch_failure_threshold" validate:"gte=0,lte=1"`
	FetchFailureThreshold int     `yaml:"fetch_failure_threshold" mapstructure:"fetch_failure_threshold" validate:"gte=0"`
}

// Load reads config.yaml from the working directory (if present), applies
// CANDIDATE_* environment overrides and fills defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CANDIDATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("taxonomy.path", "")
	v.SetDefault("taxonomy.database_url", "")
	v.SetDefault("normalize.strategy", "progressive")
	v.SetDefault("normalize.workers", 4)
	v.SetDefault("normalize.skill_column", "old_skills")
	v.SetDefault("batch.size", 80)
	v.SetDefault("batch.input_dir", "data/preprocessed")
	v.SetDefault("batch.output_dir", "data/processed")
	v.SetDefault("batch.batch_dir", "data/batches")
	v.SetDefault("batch.journal_path", "data/journal.db")
	v.SetDefault("fetch.timeout_secs", 10)
	v.SetDefault("fetch.concurrency", 8)
	v.SetDefault("fetch.rate_per_sec", 20)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "candidate-cli/1.0")
	v.SetDefault("extractor.base_url", "")
	v.SetDefault("extractor.key", "")
	v.SetDefault("extractor.timeout_secs", 300)
	v.SetDefault("extractor.max_attempts", 3)
	v.SetDefault("extractor.initial_backoff_ms", 1000)
	v.SetDefault("extractor.breaker_threshold", 3)
	v.SetDefault("extractor.breaker_cooldown_secs", 60)
	v.SetDefault("monitoring.textfile_path", "")
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.batch_failure_threshold", 0.5)
	v.SetDefault("monitoring.fetch_failure_threshold", 0)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for the given command. "process"
// additionally requires an extraction service URL.
func (c *Config) Validate(mode string) error {
	v := validator.New()
	if err := v.RegisterValidation("loglevel", validateLogLevel); err != nil {
		return eris.Wrap(err, "config: register validation")
	}

	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return eris.New("config: " + describe(verrs))
		}
		return eris.Wrap(err, "config: validate")
	}

	switch mode {
	case "process":
		if c.Extractor.BaseURL == "" {
			return eris.New("config: extractor.base_url is required for process")
		}
	case "normalize", "report", "match", "taxonomy", "batches", "":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	return nil
}

func validateLogLevel(fl validator.FieldLevel) bool {
	_, err := zapcore.ParseLevel(fl.Field().String())
	return err == nil
}

func describe(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		field := strings.ToLower(strings.TrimPrefix(e.Namespace(), "Config."))
		if e.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s fails %s=%s (got %v)", field, e.Tag(), e.Param(), e.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s fails %s (got %v)", field, e.Tag(), e.Value()))
		}
	}
	return strings.Join(msgs, "; ")
}

// InitLogger initializes the global zap logger based on config.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
