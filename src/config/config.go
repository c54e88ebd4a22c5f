package config

import (
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const ServiceName = "lob-engine"

const (
	ModeStdin = "stdin"
	ModeHTTP  = "http"
)

type LogConfig struct {
	Level  string `mapstructure:"level"`
	File   string `mapstructure:"file"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	Port                  string        `mapstructure:"port"`
	ShutdownTimeout       time.Duration `mapstructure:"shutdown_timeout"`
	MaxConcurrentRequests int64         `mapstructure:"max_concurrent_requests"`
	MaintenanceMode       bool          `mapstructure:"maintenance_mode"`
	RequestLogging        bool          `mapstructure:"request_logging"`
}

type RateLimitConfig struct {
	Disabled bool          `mapstructure:"disabled"`
	Max      int           `mapstructure:"max"`
	Window   time.Duration `mapstructure:"window"`
}

type OrderBookConfig struct {
	DefaultDepth int `mapstructure:"default_depth"`
	MaxDepth     int `mapstructure:"max_depth"`
}

type EngineConfig struct {
	ArenaBlockSize int `mapstructure:"arena_block_size"`
	QueueSize      int `mapstructure:"queue_size"`
}

type Config struct {
	Mode      string          `mapstructure:"mode"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	OrderBook OrderBookConfig `mapstructure:"orderbook"`
	Engine    EngineConfig    `mapstructure:"engine"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", ModeStdin)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "none")
	v.SetDefault("log.format", "json")

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.max_concurrent_requests", 0)
	v.SetDefault("http.maintenance_mode", false)
	v.SetDefault("http.request_logging", true)

	v.SetDefault("rate_limit.disabled", false)
	v.SetDefault("rate_limit.max", 100)
	v.SetDefault("rate_limit.window", time.Second)

	v.SetDefault("orderbook.default_depth", 10)
	v.SetDefault("orderbook.max_depth", 1000)

	v.SetDefault("engine.arena_block_size", 256)
	v.SetDefault("engine.queue_size", 1024)
}

// the flat env names the service has always honoured
var legacyEnv = map[string]string{
	"log.level":                    "LOG_LEVEL",
	"log.file":                     "LOG_FILE",
	"log.format":                   "LOG_FORMAT",
	"http.port":                    "PORT",
	"http.shutdown_timeout":        "SHUTDOWN_TIMEOUT",
	"http.max_concurrent_requests": "MAX_CONCURRENT_REQUESTS",
	"http.maintenance_mode":        "MAINTENANCE_MODE",
	"rate_limit.disabled":          "RATE_LIMIT_DISABLED",
	"rate_limit.max":               "RATE_LIMIT_MAX",
	"rate_limit.window":            "RATE_LIMIT_WINDOW",
	"orderbook.default_depth":      "ORDERBOOK_DEFAULT_DEPTH",
	"orderbook.max_depth":          "ORDERBOOK_MAX_DEPTH",
}

// New builds the viper instance: defaults, then the optional config file,
// then environment variables. An empty path searches ./config and . for
// lob-engine.yaml; a missing file is not an error.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ServiceName)
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// MODE, ENGINE_ARENA_BLOCK_SIZE, HTTP_PORT, ...
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || path != "" {
			return nil, err
		}
	}
	return v, nil
}

// Load reads the configuration once.
func Load(path string) (*Config, *viper.Viper, error) {
	v, err := New(path)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := Decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	// the legacy "0"/"1" switches
	cfg.RateLimit.Disabled = v.GetBool("rate_limit.disabled")
	cfg.HTTP.MaintenanceMode = v.GetBool("http.maintenance_mode")
	if v.GetString("REQUEST_LOGGING_DISABLED") == "1" {
		cfg.HTTP.RequestLogging = false
	}
	return &cfg, nil
}

// Watch re-decodes the configuration whenever the config file changes and
// hands the result to onChange. It does nothing when no file was loaded.
func Watch(v *viper.Viper, onChange func(*Config)) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info().
			Str("file", e.Name).
			Str("op", e.Op.String()).
			Msg("Config file changed")

		cfg, err := Decode(v)
		if err != nil {
			log.Error().Err(err).Msg("Config reload failed")
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}
