// Package config loads service configuration from environment variables.
package config

import (
	"github.com/spf13/viper"
)

// Config holds all configuration for the batch engine service.
type Config struct {
	// DatabaseURL selects the PostgreSQL store when set; otherwise the
	// service runs on the SQLite file at SQLitePath.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`

	SchedulerEnabled       bool   `mapstructure:"SCHEDULER_ENABLED"`
	DailyAccrualSchedule   string `mapstructure:"DAILY_ACCRUAL_SCHEDULE"`
	CapitalizationSchedule string `mapstructure:"CAPITALIZATION_SCHEDULE"`
	ProvisionSchedule      string `mapstructure:"PROVISION_SCHEDULE"`

	// RunTimeoutSeconds bounds a whole batch run, whether triggered over
	// HTTP or by the scheduler.
	RunTimeoutSeconds int `mapstructure:"RUN_TIMEOUT_SECONDS"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	viper.SetDefault("SQLITE_PATH", "finbatch.db")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("SCHEDULER_ENABLED", true)
	viper.SetDefault("DAILY_ACCRUAL_SCHEDULE", "0 1 * * *")           // At 01:00 every day.
	viper.SetDefault("CAPITALIZATION_SCHEDULE", "30 1 1 1,4,7,10 *") // At 01:30 on the first day of each quarter.
	viper.SetDefault("PROVISION_SCHEDULE", "0 2 1 * *")              // At 02:00 on day-of-month 1.
	viper.SetDefault("RUN_TIMEOUT_SECONDS", 300)
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("SQLITE_PATH")
	_ = viper.BindEnv("HTTP_ADDR")
	_ = viper.BindEnv("SCHEDULER_ENABLED")
	_ = viper.BindEnv("DAILY_ACCRUAL_SCHEDULE")
	_ = viper.BindEnv("CAPITALIZATION_SCHEDULE")
	_ = viper.BindEnv("PROVISION_SCHEDULE")
	_ = viper.BindEnv("RUN_TIMEOUT_SECONDS")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
