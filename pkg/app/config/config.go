package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"bsbtrace/pkg/tracelog"

	"github.com/womat/debug"
	"gopkg.in/yaml.v2"
)

// sources of field readings
const (
	SourceMQTT = "mqtt"
	SourceGPIO = "gpio"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the application configuration.
// Config defines the struct of global config and the struct of the configuration file
type Config struct {
	Flag      FlagConfig      `yaml:"-"`
	TraceDir  string          `yaml:"tracedir"`
	Debug     DebugConfig     `yaml:"debug"`
	Webserver WebserverConfig `yaml:"webserver"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	GPIO      GPIOConfig      `yaml:"gpio"`
	Fields    []FieldConfig   `yaml:"fields"`
}

// FlagConfig defines the configured flags (parameters)
type FlagConfig struct {
	LogLevel   string
	ConfigFile string
}

// WebserverConfig defines the struct of the webserver and webservice configuration and configuration file
type WebserverConfig struct {
	URL         string          `yaml:"url"`
	Webservices map[string]bool `yaml:"webservices"`
}

// MQTTConfig defines the struct of the mqtt client configuration and configuration file.
// Topic is the prefix of all topics, e.g. bsb:
//  bsb/get               field ids to read from the bus
//  bsb/value/<disp_id>   readings delivered by the bus gateway
//  bsb/trigger/<disp_id> trigger alerts
type MQTTConfig struct {
	Connection string `yaml:"connection"`
	Topic      string `yaml:"topic"`
	ClientID   string `yaml:"clientid"`
}

// GPIOConfig defines the gpio chip used by fields with source gpio.
type GPIOConfig struct {
	Chip string `yaml:"chip"`
}

// FieldConfig defines a logged field.
type FieldConfig struct {
	ID             int             `yaml:"disp_id"`
	Name           string          `yaml:"name"`
	Interval       int64           `yaml:"interval"`
	AtomicInterval int64           `yaml:"atomic_interval"`
	File           string          `yaml:"file"`
	Source         string          `yaml:"source"`
	Line           int             `yaml:"line"`
	Terminator     string          `yaml:"terminator"`
	Triggers       []TriggerConfig `yaml:"triggers"`
}

// TriggerConfig defines a trigger of a field.
type TriggerConfig struct {
	Type   string  `yaml:"type"`
	Param1 float64 `yaml:"param1"`
	Param2 float64 `yaml:"param2"`
}

// DebugConfig defines the struct of the debug configuration and configuration file
type DebugConfig struct {
	File       io.WriteCloser `yaml:"-"`
	Flag       int            `yaml:"-"`
	FlagString string         `yaml:"flag"`
	FileString string         `yaml:"file"`
}

func NewConfig() *Config {
	return &Config{
		Flag:     FlagConfig{},
		TraceDir: ".",
		Debug: DebugConfig{
			FileString: "stderr",
			FlagString: "standard",
		},
		Webserver: WebserverConfig{
			URL: "http://0.0.0.0:4000",
			Webservices: map[string]bool{
				"version": true,
				"health":  true,
				"data":    true,
				"metrics": true,
			},
		},
		MQTT: MQTTConfig{
			Connection: "tcp://127.0.0.1:1883",
			Topic:      "bsb",
		},
		GPIO: GPIOConfig{
			Chip: "gpiochip0",
		},
	}
}

func (c *Config) LoadConfig() error {
	if err := c.readConfigFile(); err != nil {
		return fmt.Errorf("error reading config file %q: %w", c.Flag.ConfigFile, err)
	}

	if c.Flag.LogLevel != "" {
		c.Debug.FlagString = c.Flag.LogLevel
	}
	if err := c.setDebugConfig(); err != nil {
		return fmt.Errorf("unable to open debug file %q: %w", c.Debug.FileString, err)
	}

	if err := c.validate(); err != nil {
		return err
	}

	return nil
}

// TraceFile returns the trace file path of field f.
// Relative names are resolved against the trace directory.
func (c *Config) TraceFile(f FieldConfig) string {
	name := f.File
	if name == "" {
		name = strconv.Itoa(f.ID) + ".trace"
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.TraceDir, name)
}

func (c *Config) readConfigFile() error {
	file, err := os.Open(c.Flag.ConfigFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	decoder := yaml.NewDecoder(file)
	if err = decoder.Decode(c); err != nil {
		return err
	}

	return nil
}

// validate checks the field section and fills in the defaults of a field.
func (c *Config) validate() error {
	seen := map[int]bool{}

	for i := range c.Fields {
		f := &c.Fields[i]

		if seen[f.ID] {
			return fmt.Errorf("%w: duplicate field %d", ErrInvalidConfig, f.ID)
		}
		seen[f.ID] = true

		if f.Interval == 0 {
			f.Interval = 1
		}
		if f.AtomicInterval == 0 {
			f.AtomicInterval = 1
		}
		if f.Interval < 1 || f.AtomicInterval < 1 || f.AtomicInterval > f.Interval {
			return fmt.Errorf("%w: field %d: interval %d, atomic interval %d", ErrInvalidConfig, f.ID, f.Interval, f.AtomicInterval)
		}

		switch f.Source {
		case "":
			f.Source = SourceMQTT
		case SourceMQTT, SourceGPIO:
		default:
			return fmt.Errorf("%w: field %d: unknown source %q", ErrInvalidConfig, f.ID, f.Source)
		}

		for _, t := range f.Triggers {
			if _, err := tracelog.ParseTriggerKind(t.Type); err != nil {
				return fmt.Errorf("%w: field %d: %v", ErrInvalidConfig, f.ID, err)
			}
		}
	}

	return nil
}

func (c *Config) setDebugConfig() (err error) {
	// defines Debug section of global.Config
	switch c.Debug.FlagString {
	case "trace", "full":
		c.Debug.Flag = debug.Full
	case "debug":
		c.Debug.Flag = debug.Warning | debug.Info | debug.Error | debug.Fatal | debug.Debug
	default:
		c.Debug.Flag = debug.Standard
	}

	switch c.Debug.FileString {
	case "stderr":
		c.Debug.File = os.Stderr
	case "stdout":
		c.Debug.File = os.Stdout
	default:
		if c.Debug.File, err = os.OpenFile(c.Debug.FileString, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666); err != nil {
			return
		}
	}

	return
}
