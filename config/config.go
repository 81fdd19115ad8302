package config

import (
	"errors"
	"fmt"
	"time"

	"swapnet/types"
)

type Configuration struct {
	// Server config
	Server struct {
		UseSSL bool `yaml:"ssl" envconfig:"SERVER_SSL"`
		Port   int  `yaml:"port" envconfig:"SERVER_PORT"`
	} `yaml:"server"`
	Redis RedisConfig `yaml:"redis"`
	Selector struct {
		TopRatio     float64       `yaml:"top_ratio" envconfig:"SELECTOR_TOP_RATIO"`
		ProbeTimeout time.Duration `yaml:"probe_timeout" envconfig:"SELECTOR_PROBE_TIMEOUT"`
		SampleCount  int           `yaml:"sample_count" envconfig:"SELECTOR_SAMPLE_COUNT"`

		// 0 seeds from the clock
		Seed int64 `yaml:"seed" envconfig:"SELECTOR_SEED"`
	} `yaml:"selector"`
	Dispatch struct {
		Timeout time.Duration `yaml:"timeout" envconfig:"DISPATCH_TIMEOUT"`
	} `yaml:"dispatch"`
	Membership struct {
		// JSON-RPC endpoint serving the metagraph; static peers are used when empty
		Endpoint string       `yaml:"endpoint" envconfig:"MEMBERSHIP_ENDPOINT"`
		Peers    []types.Peer `yaml:"peers" ignored:"true"`
	} `yaml:"membership"`
	Log struct {
		Level string `yaml:"level" envconfig:"LOG_LEVEL"`
		Dir   string `yaml:"dir" envconfig:"LOG_DIR"`
	} `yaml:"log"`
}

// RedisConfig addresses one logical DB of the backend
type RedisConfig struct {
	Host     string `yaml:"host" envconfig:"REDIS_SERVER_HOST"`
	Port     int    `yaml:"port" envconfig:"REDIS_SERVER_PORT"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
	Password string `yaml:"password" envconfig:"REDIS_SERVER_PASSWORD"`

	// values fetched must be valid UTF-8 when set
	DecodeResponses bool `yaml:"decode_responses" envconfig:"REDIS_DECODE_RESPONSES"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

const (
	DefaultRedisHost    = "localhost"
	DefaultRedisPort    = 6379
	DefaultRedisDB      = 1
	DefaultTopRatio     = 0.1
	DefaultProbeTimeout = 3 * time.Second
	DefaultSampleCount  = 1
	DefaultTimeout      = 12 * time.Second
	DefaultServerPort   = 8080
)

// Default returns the configuration used when no file or environment overrides are present.
func Default() *Configuration {
	cfg := &Configuration{}
	cfg.Server.Port = DefaultServerPort
	cfg.Redis.Host = DefaultRedisHost
	cfg.Redis.Port = DefaultRedisPort
	cfg.Redis.DB = DefaultRedisDB
	cfg.Redis.DecodeResponses = true
	cfg.Selector.TopRatio = DefaultTopRatio
	cfg.Selector.ProbeTimeout = DefaultProbeTimeout
	cfg.Selector.SampleCount = DefaultSampleCount
	cfg.Dispatch.Timeout = DefaultTimeout
	cfg.Log.Level = "info"
	cfg.Log.Dir = "logs"
	return cfg
}

func (c *Configuration) Validate() error {
	if c.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		return errors.New("redis port out of range")
	}
	if c.Redis.DB < 0 {
		return errors.New("redis db index cannot be negative")
	}
	if c.Selector.TopRatio <= 0 || c.Selector.TopRatio > 1 {
		return errors.New("selector top ratio must be in (0, 1]")
	}
	if c.Selector.ProbeTimeout <= 0 {
		return errors.New("selector probe timeout must be positive")
	}
	if c.Selector.SampleCount < 1 {
		return errors.New("selector sample count must be at least 1")
	}
	if c.Dispatch.Timeout <= 0 {
		return errors.New("dispatch timeout must be positive")
	}
	return nil
}
