// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, overlays configs/config.<env>.yaml and
// applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // environment overlay is optional

	return finish(v, env)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v, os.Getenv("APP_ENVIRONMENT"))
}

func finish(v *viper.Viper, env string) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = env
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders left in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets from well-known env names when the
// config file left them blank.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Leads.APIKey == "" {
		if val := os.Getenv("LEADS_API_KEY"); val != "" {
			cfg.Leads.APIKey = val
		}
	}
	if cfg.Storage.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Storage.Redis.Password = val
		}
	}
	if cfg.Storage.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Storage.Postgres.User = val
		}
	}
	if cfg.Storage.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Storage.Postgres.Password = val
		}
	}
	if cfg.Analytics.HubSpot.PortalID == "" {
		if val := os.Getenv("HUBSPOT_PORTAL_ID"); val != "" {
			cfg.Analytics.HubSpot.PortalID = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "loan-intake"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 90000
	}
	if cfg.Server.SessionIdleTTL == 0 {
		cfg.Server.SessionIdleTTL = 1800000
	}

	if cfg.Leads.Timeout == 0 {
		cfg.Leads.Timeout = 60000
	}
	if cfg.Leads.MockDelay == 0 {
		cfg.Leads.MockDelay = 800
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageDriverMemory
	}
	if cfg.Storage.SessionTTL == 0 {
		cfg.Storage.SessionTTL = 1800000
	}
	if cfg.Storage.Postgres.MaxConnections == 0 {
		cfg.Storage.Postgres.MaxConnections = 25
	}
	if cfg.Storage.Postgres.MaxIdle == 0 {
		cfg.Storage.Postgres.MaxIdle = 5
	}
	if cfg.Storage.Postgres.SSLMode == "" {
		cfg.Storage.Postgres.SSLMode = "disable"
	}

	if cfg.Intake.MaxContactAttempts == 0 {
		cfg.Intake.MaxContactAttempts = 3
	}
	if cfg.Intake.BlockDays == 0 {
		cfg.Intake.BlockDays = 30
	}
	if cfg.Intake.OffersRedirectURL == "" {
		cfg.Intake.OffersRedirectURL = "https://fiona.com/partner/symple-lending-loans/loans?results={offerId}&step=results"
	}
	if cfg.Intake.ScheduleTimezone == "" {
		cfg.Intake.ScheduleTimezone = "America/Los_Angeles"
	}

	if cfg.Analytics.HubSpot.BaseURL == "" {
		cfg.Analytics.HubSpot.BaseURL = "https://api.hsforms.com/submissions/v3/integration/submit"
	}
	if cfg.Analytics.HubSpot.Timeout == 0 {
		cfg.Analytics.HubSpot.Timeout = 10000
	}

	if cfg.IPLookup.URL == "" {
		cfg.IPLookup.URL = "https://api64.ipify.org/?format=json"
	}
	if cfg.IPLookup.Timeout == 0 {
		cfg.IPLookup.Timeout = 5000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if !cfg.Leads.MockServices {
		if cfg.Leads.APIKey == "" {
			return fmt.Errorf("leads.api_key is required unless leads.mock_services is set")
		}
		if cfg.Leads.Sym.APIBaseURL == "" {
			return fmt.Errorf("leads.sym.api_base_url is required unless leads.mock_services is set")
		}
	}

	switch cfg.Storage.Driver {
	case StorageDriverMemory:
	case StorageDriverExternal:
		if cfg.Storage.Redis.Address == "" {
			return fmt.Errorf("storage.redis.address is required")
		}
		if cfg.Storage.Postgres.Host == "" {
			return fmt.Errorf("storage.postgres.host is required")
		}
		if cfg.Storage.Postgres.Database == "" {
			return fmt.Errorf("storage.postgres.database is required")
		}
	default:
		return fmt.Errorf("storage.driver %q is not supported", cfg.Storage.Driver)
	}

	if _, err := time.LoadLocation(cfg.Intake.ScheduleTimezone); err != nil {
		return fmt.Errorf("intake.schedule_timezone: %w", err)
	}

	if cfg.Analytics.AWS.SNS.Enabled && cfg.Analytics.AWS.SNS.TopicARN == "" {
		return fmt.Errorf("analytics.aws.sns.topic_arn is required when sns is enabled")
	}

	if cfg.Analytics.HubSpot.Enabled && cfg.Analytics.HubSpot.PortalID == "" {
		return fmt.Errorf("analytics.hubspot.portal_id is required when hubspot is enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
