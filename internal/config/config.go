package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Version is the build version, set with -ldflags.
var Version = "dev"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Paths     PathsConfig     `mapstructure:"paths"`
	Seen      SeenConfig      `mapstructure:"seen"`
	Exclusion ExclusionConfig `mapstructure:"exclusion"`
	Feedback  FeedbackConfig  `mapstructure:"feedback"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Ranking   RankingConfig   `mapstructure:"ranking"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"min=1,max=65535"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=trace debug info warn warning error fatal"`
	Format     string `mapstructure:"format" validate:"oneof=console json"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"min=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"min=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"min=0"`
	Compress   bool   `mapstructure:"compress"`
}

// PathsConfig locates every input and state file.
type PathsConfig struct {
	Candidates    string `mapstructure:"candidates"`
	RatingsCSV    string `mapstructure:"ratings_csv"`
	RemoteHistory string `mapstructure:"remote_history"`
	Denylist      string `mapstructure:"denylist"`
	FeedbackState string `mapstructure:"feedback_state" validate:"required"`
	FeedbackInbox string `mapstructure:"feedback_inbox"`
	SeenIndex     string `mapstructure:"seen_index" validate:"required"`
	Weights       string `mapstructure:"weights" validate:"required"`
	Profile       string `mapstructure:"profile"`
	Enrichment    string `mapstructure:"enrichment"`
	Output        string `mapstructure:"output" validate:"required"`
}

type SeenConfig struct {
	FuzzyEnabled       bool    `mapstructure:"fuzzy_enabled"`
	FuzzyThreshold     int     `mapstructure:"fuzzy_threshold" validate:"min=0,max=100"`
	FuzzyToleranceYear int     `mapstructure:"fuzzy_tolerance_years" validate:"min=0,max=50"`
	BloomEnabled       bool    `mapstructure:"bloom_enabled"`
	BloomFPRate        float64 `mapstructure:"bloom_fp_rate" validate:"gt=0,lt=1"`
}

type ExclusionConfig struct {
	FuzzyThreshold int `mapstructure:"fuzzy_threshold" validate:"min=0,max=100"`
}

type FeedbackConfig struct {
	HalfLifeDays     float64 `mapstructure:"half_life_days" validate:"gt=0"`
	BaseTitlePenalty float64 `mapstructure:"base_title_penalty" validate:"min=0"`
	BaseGenrePenalty float64 `mapstructure:"base_genre_penalty" validate:"min=0"`
	HideThreshold    int     `mapstructure:"hide_threshold" validate:"min=1"`
	ActivityFloor    float64 `mapstructure:"activity_floor" validate:"gte=0,lt=1"`
	ResolveThreshold int     `mapstructure:"resolve_threshold" validate:"min=1,max=100"`
}

type ScoringConfig struct {
	PriorStrength      float64 `mapstructure:"prior_strength" validate:"gte=0"`
	PriorMean          float64 `mapstructure:"prior_mean" validate:"gte=0,lte=10"`
	NoveltyWindowYears float64 `mapstructure:"novelty_window_years" validate:"gt=0"`
	NeutralBase        float64 `mapstructure:"neutral_base" validate:"gte=0,lte=100"`
	GenreBand          float64 `mapstructure:"genre_band" validate:"gte=0"`
	DirectorBand       float64 `mapstructure:"director_band" validate:"gte=0"`
	AuthorityCap       float64 `mapstructure:"authority_cap" validate:"gte=0"`
}

type RankingConfig struct {
	ShortlistSize  int `mapstructure:"shortlist_size" validate:"min=1"`
	ShownSize      int `mapstructure:"shown_size" validate:"min=1,ltefield=ShortlistSize"`
	SkipWindowDays int `mapstructure:"skip_window_days" validate:"min=0"`
	Workers        int `mapstructure:"workers" validate:"min=1,max=64"`
}

// ScheduleConfig drives the periodic jobs of serve mode.
type ScheduleConfig struct {
	Cron             string `mapstructure:"cron"`
	HistoryRetention int    `mapstructure:"history_retention_days" validate:"min=1"`
}

// Default returns a Config with default values.
func Default() *Config {
	cfg := &Config{}
	v := viper.New()
	setDefaults(v)
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load reads configuration from .env, file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("reelrank")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.reelrank")
	}

	v.SetEnvPrefix("REELRANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks ranges and required paths.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8484)

	v.SetDefault("database.path", "./data/reelrank.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)

	v.SetDefault("paths.candidates", "./data/candidates.json")
	v.SetDefault("paths.ratings_csv", "./data/ratings.csv")
	v.SetDefault("paths.remote_history", "")
	v.SetDefault("paths.denylist", "./data/denylist.csv")
	v.SetDefault("paths.feedback_state", "./data/feedback.json")
	v.SetDefault("paths.feedback_inbox", "./data/inbox.jsonl")
	v.SetDefault("paths.seen_index", "./data/seen_index.json")
	v.SetDefault("paths.weights", "./data/weights.json")
	v.SetDefault("paths.profile", "./data/profile.yaml")
	v.SetDefault("paths.enrichment", "./data/enrichment.json")
	v.SetDefault("paths.output", "./data/recommendations.json")

	v.SetDefault("seen.fuzzy_enabled", true)
	v.SetDefault("seen.fuzzy_threshold", 92)
	v.SetDefault("seen.fuzzy_tolerance_years", 1)
	v.SetDefault("seen.bloom_enabled", true)
	v.SetDefault("seen.bloom_fp_rate", 0.001)

	v.SetDefault("exclusion.fuzzy_threshold", 95)

	v.SetDefault("feedback.half_life_days", 30.0)
	v.SetDefault("feedback.base_title_penalty", 20.0)
	v.SetDefault("feedback.base_genre_penalty", 8.0)
	v.SetDefault("feedback.hide_threshold", 2)
	v.SetDefault("feedback.activity_floor", 0.2)
	v.SetDefault("feedback.resolve_threshold", 90)

	v.SetDefault("scoring.prior_strength", 150.0)
	v.SetDefault("scoring.prior_mean", 6.5)
	v.SetDefault("scoring.novelty_window_years", 15.0)
	v.SetDefault("scoring.neutral_base", 60.0)
	v.SetDefault("scoring.genre_band", 15.0)
	v.SetDefault("scoring.director_band", 10.0)
	v.SetDefault("scoring.authority_cap", 5.0)

	v.SetDefault("ranking.shortlist_size", 50)
	v.SetDefault("ranking.shown_size", 10)
	v.SetDefault("ranking.skip_window_days", 4)
	v.SetDefault("ranking.workers", 4)

	v.SetDefault("schedule.cron", "0 7 * * *")
	v.SetDefault("schedule.history_retention_days", 90)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
