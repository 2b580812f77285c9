package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/securewipe/wipe-agent/pkg/identity"
)

// Config holds all application configuration
type Config struct {
	// Control plane
	ServerURL      string        `mapstructure:"server-url"`
	PollInterval   time.Duration `mapstructure:"poll-interval"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`

	// Identity
	MachineID string `mapstructure:"machine-id"`

	// Targeting and safety
	DemoMode       bool     `mapstructure:"demo-mode"`
	SafeTarget     string   `mapstructure:"safe-target"`
	DefaultTarget  string   `mapstructure:"default-target"`
	SafetyPolicy   string   `mapstructure:"safety-policy"`
	AllowedTargets []string `mapstructure:"allowed-targets"`

	// Host tools
	WipeTool      string `mapstructure:"wipe-tool"`
	WipePasses    int    `mapstructure:"wipe-passes"`
	InventoryTool string `mapstructure:"inventory-tool"`

	// Reporting
	ReportProgress bool `mapstructure:"report-progress"`

	// Database paths
	SQLitePath string `mapstructure:"sqlite-path"`
	FSMDBPath  string `mapstructure:"fsm-db-path"`

	// Feature flags
	FSMEnabled bool `mapstructure:"fsm-enabled"`

	// Evidence archive (S3); disabled when the bucket is empty
	EvidenceBucket string `mapstructure:"evidence-bucket"`
	EvidenceRegion string `mapstructure:"evidence-region"`
	EvidencePrefix string `mapstructure:"evidence-prefix"`

	LogLevel string `mapstructure:"log-level"`
}

var (
	safetyPolicies = []string{"allowlist", "inventory", "strict"}
	logLevels      = []string{"debug", "info", "warn", "error"}
)

// SetDefaults registers every default on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server-url", "https://securewipe-backend.onrender.com/api")
	v.SetDefault("poll-interval", 5*time.Second)
	v.SetDefault("request-timeout", 30*time.Second)
	v.SetDefault("machine-id", "")
	v.SetDefault("demo-mode", false)
	v.SetDefault("safe-target", "dummy_disk.txt")
	v.SetDefault("default-target", "/dev/sda")
	v.SetDefault("safety-policy", "allowlist")
	v.SetDefault("allowed-targets", []string{"dummy_disk.txt"})
	v.SetDefault("wipe-tool", "shred")
	v.SetDefault("wipe-passes", 1)
	v.SetDefault("inventory-tool", "lsblk")
	v.SetDefault("report-progress", false)
	v.SetDefault("sqlite-path", ".artifacts/wipe-agent.db")
	v.SetDefault("fsm-db-path", ".artifacts/fsm")
	v.SetDefault("fsm-enabled", true)
	v.SetDefault("evidence-bucket", "")
	v.SetDefault("evidence-region", "us-east-1")
	v.SetDefault("evidence-prefix", "wipe-runs")
	v.SetDefault("log-level", "info")
}

// Load reads configuration from .env, environment, config file, and defaults
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load against a specific viper instance
func LoadFrom(v *viper.Viper) (*Config, error) {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	SetDefaults(v)

	// Environment variables (will be WIPE_AGENT_SERVER_URL, etc.)
	v.SetEnvPrefix("WIPE_AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Config file (optional)
	v.SetConfigName("wipe-agent")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.wipe-agent")
	v.AddConfigPath("/etc/wipe-agent")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.AllowedTargets = splitList(cfg.AllowedTargets)

	return &cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server-url cannot be empty")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server-url must be an http(s) URL: %q", c.ServerURL)
	}
	if c.MachineID != "" {
		if _, err := identity.ParseOverride(c.MachineID); err != nil {
			return fmt.Errorf("machine-id must be six colon-separated hex octets: %w", err)
		}
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll-interval must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request-timeout must be positive")
	}
	if !slices.Contains(safetyPolicies, c.SafetyPolicy) {
		return fmt.Errorf("safety-policy must be one of %s", strings.Join(safetyPolicies, ", "))
	}
	if c.SafetyPolicy != "inventory" && len(c.AllowedTargets) == 0 {
		return fmt.Errorf("allowed-targets cannot be empty for safety-policy %s", c.SafetyPolicy)
	}
	if c.DemoMode && c.SafeTarget == "" {
		return fmt.Errorf("safe-target cannot be empty in demo mode")
	}
	if c.WipeTool == "" {
		return fmt.Errorf("wipe-tool cannot be empty")
	}
	if c.WipePasses < 1 {
		return fmt.Errorf("wipe-passes must be at least 1")
	}
	if c.SQLitePath == "" {
		return fmt.Errorf("sqlite-path cannot be empty")
	}
	if c.FSMEnabled && c.FSMDBPath == "" {
		return fmt.Errorf("fsm-db-path cannot be empty")
	}
	if c.EvidenceBucket != "" && c.EvidenceRegion == "" {
		return fmt.Errorf("evidence-region cannot be empty when evidence-bucket is set")
	}
	if !slices.Contains(logLevels, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("log-level must be one of %s", strings.Join(logLevels, ", "))
	}
	return nil
}

// splitList accepts both YAML lists and comma-separated env values
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
