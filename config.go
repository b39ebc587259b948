package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string
	// SerialPort is the path to the module's serial port (e.g. "/dev/ttyUSB0")
	SerialPort string
	// BaudRate is the baud rate for serial communication with the module (e.g. 9600)
	BaudRate int
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string
	// Band is the LoRaWAN channel plan, "EU868" or "US915"
	Band string
	// DevEUI, AppEUI and AppKey are the OTAA credentials. Empty values keep
	// whatever the module has stored.
	DevEUI string
	AppEUI string
	AppKey string
	// ResetOnDTR drives the module reset pin from the serial DTR line
	ResetOnDTR bool
	// Debug mirrors the serial traffic to stderr
	Debug bool
}

// fileConfig is the layout of the TOML configuration file.
type fileConfig struct {
	BindAddress string `toml:"bind_address"`
	SerialPort  string `toml:"serial_port"`
	BaudRate    int    `toml:"baud_rate"`
	LogLevel    string `toml:"log_level"`
	Band        string `toml:"band"`
	DevEUI      string `toml:"dev_eui"`
	AppEUI      string `toml:"app_eui"`
	AppKey      string `toml:"app_key"`
	ResetOnDTR  bool   `toml:"reset_on_dtr"`
	Debug       bool   `toml:"debug"`
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 9600
		c.LogLevel = "info"
		c.Band = "EU868"
		return nil
	}
}

// WithDotEnv loads the given env files into the process environment so a
// later WithEnv picks them up. Missing files are skipped.
func WithDotEnv(files ...string) ConfigOption {
	return func(c *Config) error {
		for _, file := range files {
			if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", file, err)
			}
		}
		return nil
	}
}

// WithFile overlays the keys defined in a TOML file. An empty path is a
// no-op.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}

		var raw fileConfig
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return fmt.Errorf("load config file: %w", err)
		}

		if meta.IsDefined("bind_address") {
			c.BindAddress = strings.TrimSpace(raw.BindAddress)
		}
		if meta.IsDefined("serial_port") {
			c.SerialPort = strings.TrimSpace(raw.SerialPort)
		}
		if meta.IsDefined("baud_rate") {
			c.BaudRate = raw.BaudRate
		}
		if meta.IsDefined("log_level") {
			c.LogLevel = strings.TrimSpace(raw.LogLevel)
		}
		if meta.IsDefined("band") {
			c.Band = strings.ToUpper(strings.TrimSpace(raw.Band))
		}
		if meta.IsDefined("dev_eui") {
			c.DevEUI = strings.TrimSpace(raw.DevEUI)
		}
		if meta.IsDefined("app_eui") {
			c.AppEUI = strings.TrimSpace(raw.AppEUI)
		}
		if meta.IsDefined("app_key") {
			c.AppKey = strings.TrimSpace(raw.AppKey)
		}
		if meta.IsDefined("reset_on_dtr") {
			c.ResetOnDTR = raw.ResetOnDTR
		}
		if meta.IsDefined("debug") {
			c.Debug = raw.Debug
		}

		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if addr := os.Getenv("WIOE5_BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if serial := os.Getenv("WIOE5_SERIAL_PORT"); serial != "" {
			c.SerialPort = serial
		}

		if baud := os.Getenv("WIOE5_BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if level := os.Getenv("WIOE5_LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if band := os.Getenv("WIOE5_BAND"); band != "" {
			c.Band = strings.ToUpper(band)
		}

		if devEUI := os.Getenv("WIOE5_DEV_EUI"); devEUI != "" {
			c.DevEUI = devEUI
		}

		if appEUI := os.Getenv("WIOE5_APP_EUI"); appEUI != "" {
			c.AppEUI = appEUI
		}

		if appKey := os.Getenv("WIOE5_APP_KEY"); appKey != "" {
			c.AppKey = appKey
		}

		if dtr := os.Getenv("WIOE5_RESET_ON_DTR"); dtr != "" {
			if b, err := strconv.ParseBool(dtr); err == nil {
				c.ResetOnDTR = b
			}
		}

		if debug := os.Getenv("WIOE5_DEBUG"); debug != "" {
			if b, err := strconv.ParseBool(debug); err == nil {
				c.Debug = b
			}
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "serial-port":
				c.SerialPort = f.Value.String()
			case "baud-rate":
				if b, err := strconv.Atoi(f.Value.String()); err == nil {
					c.BaudRate = b
				}
			case "log-level":
				c.LogLevel = f.Value.String()
			case "band":
				c.Band = strings.ToUpper(f.Value.String())
			case "dev-eui":
				c.DevEUI = f.Value.String()
			case "app-eui":
				c.AppEUI = f.Value.String()
			case "app-key":
				c.AppKey = f.Value.String()
			case "reset-on-dtr":
				c.ResetOnDTR = f.Value.String() == "true"
			case "debug":
				c.Debug = f.Value.String() == "true"
			}
		})
		return nil
	}
}
