package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const (
	defaultChunkSize     = 64
	defaultLogLevel      = "info"
	defaultLogFormat     = "text"
	defaultPromNamespace = "poblado"
)

// Config is the command line tools' configuration file.
type Config struct {
	ChunkSize      int           `yaml:"chunk-size,omitempty" json:"chunk-size,omitempty"`
	ChunkInterval  time.Duration `yaml:"chunk-interval,omitempty" json:"chunk-interval,omitempty"`
	ProcessorDelay time.Duration `yaml:"processor-delay,omitempty" json:"processor-delay,omitempty"`
	Log            *LogConfig    `yaml:"log,omitempty" json:"log,omitempty"`
	Prometheus     *PromConfig   `yaml:"prometheus,omitempty" json:"prometheus,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

type PromConfig struct {
	Address   string `yaml:"address,omitempty" json:"address,omitempty"`
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}

// New reads file (if not empty) and applies defaults.
func New(file string) (*Config, error) {
	c := new(Config)
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}

		err = yaml.Unmarshal(b, c)
		if err != nil {
			return nil, fmt.Errorf("parsing config %q: %w", file, err)
		}
	}
	err := c.validateSetDefaults()
	return c, err
}

func (c *Config) validateSetDefaults() error {
	if c.ChunkSize < 0 {
		return errors.New("chunk-size must not be negative")
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = defaultChunkSize
	}
	if c.ChunkInterval < 0 {
		return errors.New("chunk-interval must not be negative")
	}
	if c.ProcessorDelay < 0 {
		return errors.New("processor-delay must not be negative")
	}
	if c.Log == nil {
		c.Log = &LogConfig{}
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if c.Prometheus != nil {
		c.Prometheus.validateSetDefaults()
	}
	return nil
}

// Validate fills in the default level and format, checks both and
// lower-cases Format.
func (l *LogConfig) Validate() error {
	if l.Level == "" {
		l.Level = defaultLogLevel
	}
	if _, err := log.ParseLevel(l.Level); err != nil {
		return err
	}
	switch strings.ToLower(l.Format) {
	case "":
		l.Format = defaultLogFormat
	case "text", "json":
		l.Format = strings.ToLower(l.Format)
	default:
		return fmt.Errorf("unknown log format %q", l.Format)
	}
	return nil
}

func (p *PromConfig) validateSetDefaults() {
	if p.Namespace == "" {
		p.Namespace = defaultPromNamespace
	}
}

// NewLogger builds a logrus logger from the log section.
func (l *LogConfig) NewLogger() (*log.Logger, error) {
	lvl, err := log.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	logger := log.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(lvl)
	if l.Format == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// MetricsEnabled reports whether a Prometheus endpoint should be served.
func (c *Config) MetricsEnabled() bool {
	return c.Prometheus != nil && c.Prometheus.Address != ""
}
