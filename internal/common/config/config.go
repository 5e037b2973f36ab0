// internal/common/config/config.go
package config

import (
	"fmt"
	"strings"
)

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Leads     LeadsConfig     `mapstructure:"leads"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Intake    IntakeConfig    `mapstructure:"intake"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	IPLookup  IPLookupConfig  `mapstructure:"ip_lookup"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

type ServerConfig struct {
	Address        string `mapstructure:"address"`
	ReadTimeout    int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout   int    `mapstructure:"write_timeout"`    // milliseconds
	SessionIdleTTL int    `mapstructure:"session_idle_ttl"` // milliseconds
}

// DomainConfig holds the per-brand settings selected by hostname.
type DomainConfig struct {
	APIBaseURL               string `mapstructure:"api_base_url"`
	TrustpilotBusinessUnitID string `mapstructure:"trustpilot_business_unit_id"`
	TrustpilotDomain         string `mapstructure:"trustpilot_domain"`
	GTMContainerID           string `mapstructure:"gtm_container_id"`
	RUMApplicationID         string `mapstructure:"rum_application_id"`
}

// LeadsConfig configures the leads backend client.
type LeadsConfig struct {
	APIKey       string       `mapstructure:"api_key"`
	MockServices bool         `mapstructure:"mock_services"`
	MockDelay    int          `mapstructure:"mock_delay"` // milliseconds
	Timeout      int          `mapstructure:"timeout"`    // milliseconds
	Sym          DomainConfig `mapstructure:"sym"`
	Msl          DomainConfig `mapstructure:"msl"`
	Pre          DomainConfig `mapstructure:"pre"`
}

// Domain types selected by hostname.
const (
	DomainSym = "sym"
	DomainMsl = "msl"
	DomainPre = "pre"
)

// DomainType maps a request hostname to the brand it belongs to.
func DomainType(hostname string) string {
	host := strings.ToLower(hostname)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	switch {
	case strings.HasSuffix(host, "mysympleloan.com"):
		return DomainMsl
	case strings.HasSuffix(host, "netlify.app"):
		return DomainPre
	default:
		return DomainSym
	}
}

// ForHost returns the domain settings for a hostname.
func (l LeadsConfig) ForHost(hostname string) DomainConfig {
	switch DomainType(hostname) {
	case DomainMsl:
		return l.Msl
	case DomainPre:
		return l.Pre
	default:
		return l.Sym
	}
}

type StorageConfig struct {
	Driver     string         `mapstructure:"driver"`      // "memory" or "redis+postgres"
	SessionTTL int            `mapstructure:"session_ttl"` // milliseconds
	Redis      RedisConfig    `mapstructure:"redis"`
	Postgres   PostgresConfig `mapstructure:"postgres"`
}

const (
	StorageDriverMemory   = "memory"
	StorageDriverExternal = "redis+postgres"
)

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// IntakeConfig holds the flow policy knobs.
type IntakeConfig struct {
	MaxContactAttempts  int    `mapstructure:"max_contact_attempts"`
	BlockDays           int    `mapstructure:"block_days"`
	OffersRedirectURL   string `mapstructure:"offers_redirect_url"`   // {offerId} placeholder
	OffersRedirectDelay int    `mapstructure:"offers_redirect_delay"` // milliseconds
	ScheduleTimezone    string `mapstructure:"schedule_timezone"`
}

// AnalyticsConfig holds settings for marketing integrations.
type AnalyticsConfig struct {
	HubSpot struct {
		Enabled  bool   `mapstructure:"enabled"`
		BaseURL  string `mapstructure:"base_url"`
		PortalID string `mapstructure:"portal_id"`
		Forms    struct {
			Email         string `mapstructure:"email"`
			BirthDate     string `mapstructure:"birth_date"`
			Phone         string `mapstructure:"phone"`
			ScheduledCall string `mapstructure:"scheduled_call"`
		} `mapstructure:"forms"`
		Timeout int `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"hubspot"`

	AWS struct {
		Region string `mapstructure:"region"`
		SNS    struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

type IPLookupConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
