package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/veckopay/verification/internal/fraud"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Verification VerificationConfig `mapstructure:"verification"`
	Assessment   AssessmentConfig   `mapstructure:"assessment"`
	Fraud        FraudConfig        `mapstructure:"fraud"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Logger       LoggerConfig       `mapstructure:"logger"`
}

// FraudConfig holds the rule-based scoring weights and the pattern
// detection thresholds
type FraudConfig struct {
	Scorer   fraud.ScorerConfig   `mapstructure:"scorer"`
	Detector fraud.DetectorConfig `mapstructure:"detector"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// VerificationConfig holds the verification workflow settings
type VerificationConfig struct {
	DeadlineDays          int           `mapstructure:"deadline_days"`
	AutoApprovalThreshold int           `mapstructure:"auto_approval_threshold"`
	PauseCutoff           time.Duration `mapstructure:"pause_cutoff"`
	HighValueAmount       float64       `mapstructure:"high_value_amount"`
	MaxRetries            int           `mapstructure:"max_retries"`
	RejectRiskThreshold   float64       `mapstructure:"reject_risk_threshold"`
	AutoApproveMinQuality float64       `mapstructure:"auto_approve_min_quality"`
	AutoRejectMaxQuality  float64       `mapstructure:"auto_reject_max_quality"`
	CommissionRate        float64       `mapstructure:"commission_rate"`
}

// AssessmentConfig holds the advisory risk assessment provider settings.
// The provider is optional: with no API key the rule-based scorer is the
// only assessment source.
type AssessmentConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// SchedulerConfig holds the deadline resolution worker settings
type SchedulerConfig struct {
	Interval            time.Duration `mapstructure:"interval"`
	GracePeriod         time.Duration `mapstructure:"grace_period"`
	ThresholdPercentage int           `mapstructure:"threshold_percentage"`
	RiskThreshold       float64       `mapstructure:"risk_threshold"`
	BatchSize           int           `mapstructure:"batch_size"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	// Read config file; a missing file is fine, defaults and env cover it
	if err := viper.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/verification.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Verification defaults
	viper.SetDefault("verification.deadline_days", 7)
	viper.SetDefault("verification.auto_approval_threshold", 30)
	viper.SetDefault("verification.pause_cutoff", 6*time.Hour)
	viper.SetDefault("verification.high_value_amount", 1000.0)
	viper.SetDefault("verification.max_retries", 3)
	viper.SetDefault("verification.reject_risk_threshold", 70.0)
	viper.SetDefault("verification.auto_approve_min_quality", 90.0)
	viper.SetDefault("verification.auto_reject_max_quality", 30.0)
	viper.SetDefault("verification.commission_rate", 0.03)

	// Assessment defaults
	viper.SetDefault("assessment.model", "gpt-4o-mini")
	viper.SetDefault("assessment.temperature", 0.2)
	viper.SetDefault("assessment.max_tokens", 800)
	viper.SetDefault("assessment.timeout", 5*time.Second)

	// Fraud defaults mirror the engine's production constants
	scorer := fraud.DefaultScorerConfig()
	viper.SetDefault("fraud.scorer.amount_weight", scorer.AmountWeight)
	viper.SetDefault("fraud.scorer.time_weight", scorer.TimeWeight)
	viper.SetDefault("fraud.scorer.reward_weight", scorer.RewardWeight)
	viper.SetDefault("fraud.scorer.quality_weight", scorer.QualityWeight)
	viper.SetDefault("fraud.scorer.history_weight", scorer.HistoryWeight)
	viper.SetDefault("fraud.scorer.day_start_hour", scorer.DayStartHour)
	viper.SetDefault("fraud.scorer.day_end_hour", scorer.DayEndHour)
	viper.SetDefault("fraud.scorer.peak_windows", scorer.PeakWindows)
	detector := fraud.DefaultDetectorConfig()
	viper.SetDefault("fraud.detector.burst_window", detector.BurstWindow)
	viper.SetDefault("fraud.detector.probe_amounts", detector.ProbeAmounts)
	viper.SetDefault("fraud.detector.probe_tolerance", detector.ProbeTolerance)
	viper.SetDefault("fraud.detector.perfect_score_count", detector.PerfectScoreCount)

	// Scheduler defaults
	viper.SetDefault("scheduler.interval", 5*time.Minute)
	viper.SetDefault("scheduler.grace_period", 2*time.Hour)
	viper.SetDefault("scheduler.threshold_percentage", 30)
	viper.SetDefault("scheduler.risk_threshold", 70.0)
	viper.SetDefault("scheduler.batch_size", 100)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("assessment.api_key", "OPENAI_API_KEY")
	viper.BindEnv("database.path", "DATABASE_PATH")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Verification.DeadlineDays <= 0 {
		return fmt.Errorf("verification.deadline_days must be positive")
	}
	if c.Verification.AutoApprovalThreshold < 0 || c.Verification.AutoApprovalThreshold > 100 {
		return fmt.Errorf("verification.auto_approval_threshold must be a percentage")
	}
	if c.Scheduler.ThresholdPercentage < 0 || c.Scheduler.ThresholdPercentage > 100 {
		return fmt.Errorf("scheduler.threshold_percentage must be a percentage")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive")
	}
	weightSum := c.Fraud.Scorer.AmountWeight + c.Fraud.Scorer.TimeWeight +
		c.Fraud.Scorer.RewardWeight + c.Fraud.Scorer.QualityWeight +
		c.Fraud.Scorer.HistoryWeight
	if math.Abs(weightSum-1.0) > 0.001 {
		return fmt.Errorf("fraud.scorer weights sum to %.3f, must sum to 1.0", weightSum)
	}
	if c.Fraud.Detector.BurstWindow <= 0 {
		return fmt.Errorf("fraud.detector.burst_window must be positive")
	}
	return nil
}
