package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"power-saver/internal/logging"
	"power-saver/internal/schedule"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	Control   ControlConfig   `mapstructure:"control"`
	API       APIConfig       `mapstructure:"api"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs recomputation cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToSlot     bool          `mapstructure:"align_to_slot"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	Retention       time.Duration `mapstructure:"retention"`
}

// PricingConfig covers the day-ahead price feed.
type PricingConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Area           string        `mapstructure:"area"`
	Currency       string        `mapstructure:"currency"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// PlannerConfig holds the scheduling options of one appliance instance.
// Optional overrides are pointers; nil disables the feature.
type PlannerConfig struct {
	Instance string `mapstructure:"instance"`

	Mode     string `mapstructure:"mode"`
	Strategy string `mapstructure:"strategy"`

	HoursPerPeriod float64 `mapstructure:"hours_per_period"`
	PeriodFrom     string  `mapstructure:"period_from"`
	PeriodTo       string  `mapstructure:"period_to"`

	MinHoursOn         float64 `mapstructure:"min_hours_on"`
	RollingWindowHours float64 `mapstructure:"rolling_window_hours"`

	AlwaysCheapPrice     *float64 `mapstructure:"always_cheap_price"`
	AlwaysExpensivePrice *float64 `mapstructure:"always_expensive_price"`
	PriceSimilarityPct   *float64 `mapstructure:"price_similarity_pct"`
	MinConsecutiveHours  *float64 `mapstructure:"min_consecutive_hours"`
	ExcludeFrom          string   `mapstructure:"exclude_from"`
	ExcludeUntil         string   `mapstructure:"exclude_until"`
}

// ControlConfig routes on/off transitions to downstream switches.
type ControlConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	OnURL          string        `mapstructure:"on_url"`
	OffURL         string        `mapstructure:"off_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// APIConfig configures the read-only HTTP API.
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POWERSAVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "powersaver")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "15m")
	v.SetDefault("scheduler.align_to_slot", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x70777273))
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.retention", "168h")

	v.SetDefault("pricing.base_url", "https://dataportal-api.nordpoolgroup.com/api")
	v.SetDefault("pricing.area", "FI")
	v.SetDefault("pricing.currency", "EUR")
	v.SetDefault("pricing.request_timeout", "10s")
	v.SetDefault("pricing.user_agent", "powersaver/1.0")

	v.SetDefault("planner.instance", "default")
	v.SetDefault("planner.mode", string(schedule.ModeCheapest))
	v.SetDefault("planner.strategy", string(schedule.StrategyLowestPrice))
	v.SetDefault("planner.hours_per_period", 4.0)
	v.SetDefault("planner.period_from", "00:00")
	v.SetDefault("planner.period_to", "00:00")
	v.SetDefault("planner.min_hours_on", 4.0)
	v.SetDefault("planner.rolling_window_hours", 24.0)

	v.SetDefault("control.enabled", false)
	v.SetDefault("control.request_timeout", "10s")

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.listen", ":8787")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs sanity checks on the configuration values. Planner
// options are validated through the engine so that an invalid combination is
// rejected here, at load time, and never reaches a schedule computation.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Scheduler.Retention < 0 {
		return fmt.Errorf("scheduler.retention must not be negative")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Planner.Instance == "" {
		return fmt.Errorf("planner.instance must not be empty")
	}
	if c.Control.Enabled && (c.Control.OnURL == "" || c.Control.OffURL == "") {
		return fmt.Errorf("control.on_url and control.off_url required when control is enabled")
	}
	if c.API.Enabled && c.API.Listen == "" {
		return fmt.Errorf("api.listen required when the API is enabled")
	}
	if _, err := c.Planner.EngineConfig(); err != nil {
		return err
	}
	return nil
}

// EngineConfig translates the planner section into an engine configuration,
// validating it in the process.
func (p PlannerConfig) EngineConfig() (schedule.Config, error) {
	cfg := schedule.Config{
		Mode:               schedule.Mode(p.Mode),
		Strategy:           schedule.Strategy(p.Strategy),
		HoursPerPeriod:     p.HoursPerPeriod,
		MinHoursOn:         p.MinHoursOn,
		RollingWindowHours: p.RollingWindowHours,
	}

	var err error
	if cfg.PeriodFrom, err = clockOrMidnight(p.PeriodFrom); err != nil {
		return schedule.Config{}, fmt.Errorf("planner.period_from: %w", err)
	}
	if cfg.PeriodTo, err = clockOrMidnight(p.PeriodTo); err != nil {
		return schedule.Config{}, fmt.Errorf("planner.period_to: %w", err)
	}

	if p.AlwaysCheapPrice != nil {
		d := decimal.NewFromFloat(*p.AlwaysCheapPrice)
		cfg.AlwaysCheapPrice = &d
	}
	if p.AlwaysExpensivePrice != nil {
		d := decimal.NewFromFloat(*p.AlwaysExpensivePrice)
		cfg.AlwaysExpensivePrice = &d
	}
	cfg.PriceSimilarityPct = p.PriceSimilarityPct
	cfg.MinConsecutiveHours = p.MinConsecutiveHours

	if p.ExcludeFrom != "" {
		ct, err := schedule.ParseClockTime(p.ExcludeFrom)
		if err != nil {
			return schedule.Config{}, fmt.Errorf("planner.exclude_from: %w", err)
		}
		cfg.ExcludeFrom = &ct
	}
	if p.ExcludeUntil != "" {
		ct, err := schedule.ParseClockTime(p.ExcludeUntil)
		if err != nil {
			return schedule.Config{}, fmt.Errorf("planner.exclude_until: %w", err)
		}
		cfg.ExcludeUntil = &ct
	}

	if err := cfg.Validate(); err != nil {
		return schedule.Config{}, err
	}
	return cfg, nil
}

func clockOrMidnight(s string) (schedule.ClockTime, error) {
	if s == "" {
		return schedule.ClockTime{}, nil
	}
	return schedule.ParseClockTime(s)
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
