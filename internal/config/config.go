package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration for fwdesk. It is loaded once at
// startup and passed explicitly to the components that need it.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Directory DirectoryConfig `yaml:"directory"`
	Auth      AuthConfig      `yaml:"auth"`
	DataDir   string          `yaml:"data_dir"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	CORSOrigins        []string      `yaml:"cors_origins"`
	LoginRatePerMinute int           `yaml:"login_rate_per_minute"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
}

// DirectoryConfig holds the connection settings for the LDAP directory that
// verifies credentials and resolves group membership.
type DirectoryConfig struct {
	URL          string        `yaml:"url"`           // e.g. ldap://ldap.example.com
	BaseDN       string        `yaml:"base_dn"`       // e.g. DC=example,DC=com
	DomainSuffix string        `yaml:"domain_suffix"` // e.g. @example.com
	AdminGroup   string        `yaml:"admin_group"`   // substring matched against memberOf values
	BindDN       string        `yaml:"bind_dn"`       // service account for group lookups; anonymous if empty
	BindPassword string        `yaml:"bind_password"`
	Timeout      time.Duration `yaml:"timeout"` // bound on dial + each operation
}

// AuthConfig controls session token issuance and the optional development
// bypass credential.
type AuthConfig struct {
	JWTSecret string          `yaml:"jwt_secret"`
	TokenTTL  time.Duration   `yaml:"token_ttl"`
	DevBypass DevBypassConfig `yaml:"dev_bypass"`
}

// DevBypassConfig defines a fixed credential pair that authenticates without
// contacting the directory. Disabled unless explicitly configured; intended
// for local development only.
type DevBypassConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// SetDefaults registers the default values on v. Call before Load.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.login_rate_per_minute", 10)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("directory.timeout", 10*time.Second)
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("auth.dev_bypass.enabled", false)
	v.SetDefault("auth.dev_bypass.role", "admin")
}

// Load reads the configuration out of v into a Config struct.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:               v.GetString("server.host"),
			Port:               v.GetInt("server.port"),
			CORSOrigins:        v.GetStringSlice("server.cors_origins"),
			LoginRatePerMinute: v.GetInt("server.login_rate_per_minute"),
			ShutdownTimeout:    v.GetDuration("server.shutdown_timeout"),
		},
		Directory: DirectoryConfig{
			URL:          v.GetString("directory.url"),
			BaseDN:       v.GetString("directory.base_dn"),
			DomainSuffix: v.GetString("directory.domain_suffix"),
			AdminGroup:   v.GetString("directory.admin_group"),
			BindDN:       v.GetString("directory.bind_dn"),
			BindPassword: v.GetString("directory.bind_password"),
			Timeout:      v.GetDuration("directory.timeout"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
			TokenTTL:  v.GetDuration("auth.token_ttl"),
			DevBypass: DevBypassConfig{
				Enabled:  v.GetBool("auth.dev_bypass.enabled"),
				Username: v.GetString("auth.dev_bypass.username"),
				Password: v.GetString("auth.dev_bypass.password"),
				Role:     v.GetString("auth.dev_bypass.role"),
			},
		},
		DataDir: v.GetString("data_dir"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent and that
// everything required to serve requests is present.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Directory.URL == "" && !c.Auth.DevBypass.Enabled {
		return fmt.Errorf("directory.url is required unless the dev bypass is enabled")
	}
	if c.Directory.URL != "" && c.Directory.BaseDN == "" {
		return fmt.Errorf("directory.base_dn is required")
	}
	if c.Auth.DevBypass.Enabled {
		if c.Auth.DevBypass.Username == "" || c.Auth.DevBypass.Password == "" {
			return fmt.Errorf("auth.dev_bypass requires both username and password")
		}
		if r := c.Auth.DevBypass.Role; r != "user" && r != "admin" {
			return fmt.Errorf("auth.dev_bypass.role must be user or admin, got %q", r)
		}
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	return nil
}
