package server

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kbukum/tablemut/validation"
)

const defaultMaxBodySize = 10 * 1024 * 1024

// Config holds HTTP server configuration.
type Config struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" validate:"gte=0"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" validate:"gte=0"`
	MaxBodySize  string        `yaml:"max_body_size" mapstructure:"max_body_size"` // e.g. "10MB"
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 120 * time.Second
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "10MB"
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	v := validation.New()
	v.Merge("", validation.Validate(c))
	if c.MaxBodySize != "" && parseSize(c.MaxBodySize) <= 0 {
		v.AddError("max_body_size", "must be a size such as 512KB or 10MB")
	}
	return v.Err()
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MaxBodyBytes returns the body limit in bytes.
func (c *Config) MaxBodyBytes() int64 {
	if n := parseSize(c.MaxBodySize); n > 0 {
		return n
	}
	return defaultMaxBodySize
}

// parseSize parses "10MB", "512KB", "1GB" or a plain byte count. It returns
// -1 when s is not a size.
func parseSize(s string) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		s = s[:len(s)-2]
	}

	val, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || val <= 0 {
		return -1
	}
	return val * multiplier
}
