package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Model    ModelConfig    `mapstructure:"model"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Output   OutputConfig   `mapstructure:"output"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DatabaseConfig holds attribution warehouse connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// DSN returns the connection string for the warehouse
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// ModelConfig holds language model API configuration
type ModelConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Burst             int           `mapstructure:"burst"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryDelayBase    time.Duration `mapstructure:"retry_delay_base"`
	MinPromptChars    int           `mapstructure:"min_prompt_chars"`
	MinResponseChars  int           `mapstructure:"min_response_chars"`
}

// AnalysisConfig holds every numeric threshold used by trend assessment and
// performance classification. Keeping them in one value object means a tuned
// deployment changes config, not code, and tests can pin exact boundaries.
type AnalysisConfig struct {
	RecentWindowDays int `mapstructure:"recent_window_days"`

	// Change assessment boundaries, in percent
	SignificantChangePct float64 `mapstructure:"significant_change_pct"`
	ModerateChangePct    float64 `mapstructure:"moderate_change_pct"`

	// Weekly trend direction ratios
	ImprovingRatio float64 `mapstructure:"improving_ratio"`
	DecliningRatio float64 `mapstructure:"declining_ratio"`

	// Latest-week reporting thresholds, in percent
	EfficiencyReportPct float64 `mapstructure:"efficiency_report_pct"`
	VolumeReportPct     float64 `mapstructure:"volume_report_pct"`
	RevenueReportPct    float64 `mapstructure:"revenue_report_pct"`

	// Pattern detection
	ConsistentPatternRatio float64 `mapstructure:"consistent_pattern_ratio"`
	VolatilityCV           float64 `mapstructure:"volatility_cv"`
	StabilitySpreadRatio   float64 `mapstructure:"stability_spread_ratio"`

	// Volume and confidence cut points
	HighVolumeVisits      int `mapstructure:"high_volume_visits"`
	LowVolumeVisits       int `mapstructure:"low_volume_visits"`
	HighConfidenceSpots   int `mapstructure:"high_confidence_spots"`
	MediumConfidenceSpots int `mapstructure:"medium_confidence_spots"`
	HighConfidenceWeeks   int `mapstructure:"high_confidence_weeks"`

	// Quadrant and budget reallocation cut points
	QuadrantHighSpots     int     `mapstructure:"quadrant_high_spots"`
	QuadrantMediumSpots   int     `mapstructure:"quadrant_medium_spots"`
	ReallocationEffRatio  float64 `mapstructure:"reallocation_eff_ratio"`
	ReallocationHighSpots int     `mapstructure:"reallocation_high_spots"`
	ReallocationMaxMove   int     `mapstructure:"reallocation_max_move"`
}

// OutputConfig holds report and raw response output configuration
type OutputConfig struct {
	Dir              string `mapstructure:"dir"`
	SaveRawResponses bool   `mapstructure:"save_raw_responses"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("SPOTLENS")
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "spotlens")
	v.SetDefault("database.name", "attribution")
	v.SetDefault("database.ssl_mode", "disable")

	// Model defaults
	v.SetDefault("model.base_url", "https://api.openai.com/v1")
	v.SetDefault("model.model", "gpt-4o")
	v.SetDefault("model.requests_per_minute", 10)
	v.SetDefault("model.burst", 2)
	v.SetDefault("model.max_retries", 3)
	v.SetDefault("model.retry_delay_base", "2s")
	v.SetDefault("model.min_prompt_chars", 100)
	v.SetDefault("model.min_response_chars", 50)

	// Analysis defaults
	v.SetDefault("analysis.recent_window_days", 7)
	v.SetDefault("analysis.significant_change_pct", 10.0)
	v.SetDefault("analysis.moderate_change_pct", 5.0)
	v.SetDefault("analysis.improving_ratio", 1.1)
	v.SetDefault("analysis.declining_ratio", 0.9)
	v.SetDefault("analysis.efficiency_report_pct", 10.0)
	v.SetDefault("analysis.volume_report_pct", 15.0)
	v.SetDefault("analysis.revenue_report_pct", 10.0)
	v.SetDefault("analysis.consistent_pattern_ratio", 0.8)
	v.SetDefault("analysis.volatility_cv", 0.3)
	v.SetDefault("analysis.stability_spread_ratio", 0.3)
	v.SetDefault("analysis.high_volume_visits", 1000)
	v.SetDefault("analysis.low_volume_visits", 500)
	v.SetDefault("analysis.high_confidence_spots", 20)
	v.SetDefault("analysis.medium_confidence_spots", 10)
	v.SetDefault("analysis.high_confidence_weeks", 2)
	v.SetDefault("analysis.quadrant_high_spots", 50)
	v.SetDefault("analysis.quadrant_medium_spots", 20)
	v.SetDefault("analysis.reallocation_eff_ratio", 1.5)
	v.SetDefault("analysis.reallocation_high_spots", 40)
	v.SetDefault("analysis.reallocation_max_move", 25)

	// Output defaults
	v.SetDefault("output.dir", "./reports")
	v.SetDefault("output.save_raw_responses", true)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Database config
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("database.port must be between 1 and 65535")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}

	// Validate Model config
	if c.Model.BaseURL == "" {
		return fmt.Errorf("model.base_url is required")
	}
	if c.Model.Model == "" {
		return fmt.Errorf("model.model is required")
	}
	if c.Model.RequestsPerMinute < 1 {
		return fmt.Errorf("model.requests_per_minute must be at least 1")
	}
	if c.Model.MaxRetries < 1 {
		return fmt.Errorf("model.max_retries must be at least 1")
	}

	// Validate Analysis config
	if c.Analysis.RecentWindowDays < 1 {
		return fmt.Errorf("analysis.recent_window_days must be at least 1")
	}
	if c.Analysis.SignificantChangePct <= c.Analysis.ModerateChangePct {
		return fmt.Errorf("analysis.significant_change_pct must be greater than analysis.moderate_change_pct")
	}
	if c.Analysis.ImprovingRatio <= 1.0 {
		return fmt.Errorf("analysis.improving_ratio must be greater than 1.0")
	}
	if c.Analysis.DecliningRatio <= 0.0 || c.Analysis.DecliningRatio >= 1.0 {
		return fmt.Errorf("analysis.declining_ratio must be between 0.0 and 1.0")
	}
	if c.Analysis.ConsistentPatternRatio <= 0.5 || c.Analysis.ConsistentPatternRatio > 1.0 {
		return fmt.Errorf("analysis.consistent_pattern_ratio must be between 0.5 and 1.0")
	}
	if c.Analysis.HighVolumeVisits <= c.Analysis.LowVolumeVisits {
		return fmt.Errorf("analysis.high_volume_visits must be greater than analysis.low_volume_visits")
	}
	if c.Analysis.HighConfidenceSpots <= c.Analysis.MediumConfidenceSpots {
		return fmt.Errorf("analysis.high_confidence_spots must be greater than analysis.medium_confidence_spots")
	}
	if c.Analysis.ReallocationEffRatio <= 1.0 {
		return fmt.Errorf("analysis.reallocation_eff_ratio must be greater than 1.0")
	}
	if c.Analysis.ReallocationMaxMove < 1 {
		return fmt.Errorf("analysis.reallocation_max_move must be at least 1")
	}

	// Validate Output config
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
