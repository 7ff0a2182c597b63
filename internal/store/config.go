package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	ModePaper = "PAPER"
	ModeLive  = "LIVE"

	BrokerAlpaca = "ALPACA"
	BrokerKite   = "KITE"
)

type Config struct {
	Mode                  string          `yaml:"mode"`
	Broker                string          `yaml:"broker"`
	Symbol                string          `yaml:"symbol"`
	TimeBufferSeconds     int             `yaml:"time_buffer_seconds"`
	TrailPercent          decimal.Decimal `yaml:"trail_percent"`
	Quantity              decimal.Decimal `yaml:"quantity"`
	Timezone              string          `yaml:"timezone"`
	PollSeconds           int             `yaml:"poll_seconds"`
	RequestTimeoutSeconds int             `yaml:"request_timeout_seconds"`
	Journal               struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"journal"`
	Metrics struct {
		Textfile string `yaml:"textfile"`
		Listen   string `yaml:"listen"`
	} `yaml:"metrics"`
	Log struct {
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"log"`
	Alpaca struct {
		BaseURL  string `yaml:"base_url"`
		DataFeed string `yaml:"data_feed"`
	} `yaml:"alpaca"`
	Kite struct {
		Exchange string   `yaml:"exchange"`
		Product  string   `yaml:"product"`
		Timezone string   `yaml:"timezone"`
		Open     string   `yaml:"open"`
		Close    string   `yaml:"close"`
		Holidays []string `yaml:"holidays"`
	} `yaml:"kite"`
}

// TimeBuffer is how close to the open or close the engine must be to act.
func (c *Config) TimeBuffer() time.Duration {
	return time.Duration(c.TimeBufferSeconds) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c *Config) Paper() bool { return c.Mode == ModePaper }

func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func (c *Config) Validate() error {
	if c.Mode != ModePaper && c.Mode != ModeLive {
		return fmt.Errorf("invalid mode '%s': must be 'PAPER' or 'LIVE'", c.Mode)
	}
	if c.Broker != BrokerAlpaca && c.Broker != BrokerKite {
		return fmt.Errorf("invalid broker '%s': must be 'ALPACA' or 'KITE'", c.Broker)
	}
	if c.Symbol == "" {
		return errors.New("symbol cannot be empty")
	}
	if c.TimeBufferSeconds <= 0 {
		return fmt.Errorf("time_buffer_seconds must be positive, got %d", c.TimeBufferSeconds)
	}
	if !c.TrailPercent.IsPositive() || c.TrailPercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("trail_percent must be between 0-100, got %s", c.TrailPercent)
	}
	if !c.Quantity.IsPositive() {
		return fmt.Errorf("quantity must be positive, got %s", c.Quantity)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return errors.New("journal.path is required when the journal is enabled")
	}
	if c.Broker == BrokerKite && (c.Kite.Open == "" || c.Kite.Close == "") {
		return errors.New("kite.open and kite.close are required for the KITE broker")
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.Mode = strings.ToUpper(c.Mode)
	c.Broker = strings.ToUpper(c.Broker)
	c.Symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
	if c.Mode == "" {
		c.Mode = ModePaper
	}
	if c.Broker == "" {
		c.Broker = BrokerAlpaca
	}
	if c.TimeBufferSeconds == 0 {
		c.TimeBufferSeconds = 900
	}
	if c.TrailPercent.IsZero() {
		c.TrailPercent = decimal.NewFromInt(2)
	}
	if c.Quantity.IsZero() {
		c.Quantity = decimal.NewFromInt(1)
	}
	if c.PollSeconds == 0 {
		c.PollSeconds = 60
	}
	if c.RequestTimeoutSeconds == 0 {
		c.RequestTimeoutSeconds = 10
	}
	if c.Log.Dir == "" {
		c.Log.Dir = "logs"
	}
	if c.Alpaca.DataFeed == "" {
		c.Alpaca.DataFeed = "iex"
	}
	if c.Broker == BrokerKite {
		if c.Kite.Exchange == "" {
			c.Kite.Exchange = "NSE"
		}
		if c.Kite.Product == "" {
			c.Kite.Product = "CNC"
		}
		if c.Kite.Timezone == "" {
			c.Kite.Timezone = "Asia/Kolkata"
		}
		if c.Kite.Open == "" {
			c.Kite.Open = "09:15"
		}
		if c.Kite.Close == "" {
			c.Kite.Close = "15:30"
		}
		if c.Timezone == "" {
			c.Timezone = c.Kite.Timezone
		}
	}
	if c.Timezone == "" {
		c.Timezone = "America/New_York"
	}
}

// Parse decodes YAML, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	c := Config{}
	c.Journal.Enabled = true
	c.Journal.Path = "data/journal.db"
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}
