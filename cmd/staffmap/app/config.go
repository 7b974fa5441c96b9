package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/staffmap/pkg/constants"
	"github.com/agentstation/staffmap/pkg/errors"
)

// EnvPrefix prefixes every environment variable the CLI reads.
const EnvPrefix = "STAFFMAP"

// CheckConfig overrides one validation check. Nil fields keep the default.
type CheckConfig struct {
	Threshold *float64
	Weight    *float64
}

// Config holds the application configuration loaded from various sources
// including config files, environment variables, and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Reconciliation
	Rules                  string
	HistoryDB              string
	SlotMinutes            float64
	Suggestions            bool
	Epsilon                float64
	ViolationPenalty       float64
	SupplyMismatchPenalty  float64
	DemandMismatchPenalty  float64
	EstimatedDemandPenalty float64
	PerformanceBudget      time.Duration
	Checks                 map[string]CheckConfig
	Context                map[string]string

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables (STAFFMAP_*)
// 3. .env files
// 4. Config file (./.staffmap.yaml or ~/.staffmap.yaml)
// 5. Defaults
func LoadConfig() (*Config, error) {
	return LoadConfigFile("")
}

// LoadConfigFile is LoadConfig with an explicit config file. An explicit
// file that cannot be read is an error; the default locations are optional.
func LoadConfigFile(path string) (*Config, error) {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("config", "cannot read "+path, err)
		}
	} else {
		v.SetConfigType("yaml")
		v.SetConfigName(".staffmap")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		// Read config file (ignore error if not found)
		_ = v.ReadInConfig()
	}

	config := &Config{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		NoColor: v.GetBool("no_color"),
		Format:  v.GetString("format"),

		ConfigFile: v.ConfigFileUsed(),

		Rules:                  v.GetString("rules"),
		HistoryDB:              v.GetString("history_db"),
		SlotMinutes:            v.GetFloat64("slot_minutes"),
		Suggestions:            v.GetBool("suggestions"),
		Epsilon:                v.GetFloat64("epsilon"),
		ViolationPenalty:       v.GetFloat64("violation_penalty"),
		SupplyMismatchPenalty:  v.GetFloat64("supply_mismatch_penalty"),
		DemandMismatchPenalty:  v.GetFloat64("demand_mismatch_penalty"),
		EstimatedDemandPenalty: v.GetFloat64("estimated_demand_penalty"),
		PerformanceBudget:      v.GetDuration("performance_budget"),
		Checks:                 readChecks(v),
		Context:                v.GetStringMapString("context"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
		LogOutput: v.GetString("log_output"),
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("slot_minutes", constants.DefaultSlotMinutes)
	v.SetDefault("suggestions", true)
	v.SetDefault("epsilon", constants.DefaultEpsilon)
	v.SetDefault("violation_penalty", constants.DefaultViolationPenalty)
	v.SetDefault("supply_mismatch_penalty", constants.DefaultSupplyMismatchPenalty)
	v.SetDefault("demand_mismatch_penalty", constants.DefaultDemandMismatchPenalty)
	v.SetDefault("estimated_demand_penalty", constants.DefaultEstimatedDemandPenalty)
	v.SetDefault("performance_budget", constants.DefaultPerformanceBudget)
	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")
}

// readChecks reads checks.<name>.threshold and checks.<name>.weight.
func readChecks(v *viper.Viper) map[string]CheckConfig {
	raw := v.GetStringMap("checks")
	if len(raw) == 0 {
		return nil
	}
	checks := make(map[string]CheckConfig, len(raw))
	for name := range raw {
		var c CheckConfig
		if key := "checks." + name + ".threshold"; v.IsSet(key) {
			threshold := v.GetFloat64(key)
			c.Threshold = &threshold
		}
		if key := "checks." + name + ".weight"; v.IsSet(key) {
			weight := v.GetFloat64(key)
			c.Weight = &weight
		}
		checks[name] = c
	}
	return checks
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags to ensure flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		// godotenv.Load never overrides variables that are already set, so the
		// more specific file goes first.
		_ = godotenv.Load(envFile)
	}
}
