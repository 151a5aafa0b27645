package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// LoggingConfig holds the configuration for the logging system.
type LoggingConfig struct {
	Level      string `yaml:"level" envconfig:"LEVEL"`
	LogIgnored bool   `yaml:"log_ignored" envconfig:"LOG_IGNORED"`
	// IgnoredRate and IgnoredBurst bound how often ignored non-ULA
	// prefixes are logged, in lines per second.
	IgnoredRate  float64 `yaml:"ignored_rate" envconfig:"IGNORED_RATE"`
	IgnoredBurst int     `yaml:"ignored_burst" envconfig:"IGNORED_BURST"`
}

// CaptureConfig holds the pcap capture settings.
type CaptureConfig struct {
	Snaplen     int32 `yaml:"snaplen" envconfig:"SNAPLEN"`
	Promiscuous bool  `yaml:"promiscuous" envconfig:"PROMISCUOUS"`
}

// MetricsConfig holds the configuration for the metrics system.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" envconfig:"ENABLED"`
}

// StatusConfig holds the configuration for the read-only status API.
type StatusConfig struct {
	Enabled      bool          `yaml:"enabled" envconfig:"ENABLED"`
	Listen       string        `yaml:"listen" envconfig:"LISTEN"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
}

// Config holds the application configuration.
type Config struct {
	// Interface is the interface router advertisements are captured on.
	Interface string `yaml:"interface" envconfig:"INTERFACE"`

	// RouteScript is the external action invoked to install a route. It
	// receives PREFIX, ROUTER and IFACE in its environment.
	RouteScript string `yaml:"route_script" envconfig:"ROUTE_SCRIPT"`

	// SolicitInterval is how often a Router Solicitation is sent to
	// ff02::2 to prompt an immediate advertisement. Zero disables the
	// periodic send; one solicitation is always sent at startup.
	SolicitInterval time.Duration `yaml:"solicit_interval" envconfig:"SOLICIT_INTERVAL"`

	// CmdSocket is the path of the Unix socket for runtime inspection.
	// Empty disables the listener.
	CmdSocket string `yaml:"cmdsocket" envconfig:"CMDSOCKET"`

	Capture CaptureConfig `yaml:"capture"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Status  StatusConfig  `yaml:"status"`
}

// Load loads the configuration from a YAML file, and then overrides with
// environment variables prefixed ROUTELISTENER. A missing file is not an
// error; the configuration may be provided entirely by environment.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config data: %w", err)
		}
	}

	if err := envconfig.Process("routelistener", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Interface == "" {
		c.Interface = "eth0"
	}
	if c.RouteScript == "" {
		c.RouteScript = "/usr/local/lib/routelistener/configure-ipv6-route.sh"
	}
	if c.Capture.Snaplen == 0 {
		c.Capture.Snaplen = 65536
	}
	if c.Logging.IgnoredRate == 0 {
		c.Logging.IgnoredRate = 1
	}
	if c.Logging.IgnoredBurst == 0 {
		c.Logging.IgnoredBurst = 5
	}
	if c.Status.Listen == "" {
		c.Status.Listen = "127.0.0.1:9186"
	}
	if c.Status.ReadTimeout == 0 {
		c.Status.ReadTimeout = 10 * time.Second
	}
	if c.Status.WriteTimeout == 0 {
		c.Status.WriteTimeout = 10 * time.Second
	}
}
