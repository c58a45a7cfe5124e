package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

type AppCfg struct {
	Env                 string `mapstructure:"env"`
	Port                string `mapstructure:"port"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
	CORSOrigin          string `mapstructure:"cors_origin"`
}

type MongoCfg struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisCfg struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaCfg struct {
	Enabled          bool     `mapstructure:"enabled"`
	Brokers          []string `mapstructure:"brokers"`
	TopicMessageSent string   `mapstructure:"topic_message_sent"`
}

type JWTCfg struct {
	Secret string `mapstructure:"secret"`
}

type WSCfg struct {
	PingIntervalSeconds  int   `mapstructure:"ping_interval_seconds"`
	WriteDeadlineSeconds int   `mapstructure:"write_deadline_seconds"`
	PongWaitSeconds      int   `mapstructure:"pong_wait_seconds"`
	MaxMessageSizeBytes  int64 `mapstructure:"max_message_size_bytes"`
	SendBuffer           int   `mapstructure:"send_buffer"`
}

type RateLimitCfg struct {
	Limit         int `mapstructure:"limit"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

type Config struct {
	App       AppCfg       `mapstructure:"app"`
	Mongo     MongoCfg     `mapstructure:"mongo"`
	Redis     RedisCfg     `mapstructure:"redis"`
	Kafka     KafkaCfg     `mapstructure:"kafka"`
	JWT       JWTCfg       `mapstructure:"jwt"`
	WS        WSCfg        `mapstructure:"ws"`
	RateLimit RateLimitCfg `mapstructure:"rate_limit"`

	// Derived
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	PingInterval    time.Duration
	WriteDeadline   time.Duration
	PongWait        time.Duration
	RateLimitWindow time.Duration
}

// Load reads config from path (yaml) with APP_* env overrides, fills defaults
// and derives durations. A missing file is not an error when env vars cover
// the required keys.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// viper wraps os.ErrNotExist differently depending on path form
			if !isNotExist(err) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Port == "" {
		c.App.Port = "9000"
	}
	if c.App.ReadTimeoutSeconds == 0 {
		c.App.ReadTimeoutSeconds = 15
	}
	if c.App.WriteTimeoutSeconds == 0 {
		c.App.WriteTimeoutSeconds = 15
	}
	if c.Mongo.URI == "" {
		c.Mongo.URI = "mongodb://localhost:27017"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "roadresq"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "roadresq"
	}
	if c.Kafka.TopicMessageSent == "" {
		c.Kafka.TopicMessageSent = "chat.message.sent"
	}
	if c.WS.PingIntervalSeconds == 0 {
		c.WS.PingIntervalSeconds = 25
	}
	if c.WS.WriteDeadlineSeconds == 0 {
		c.WS.WriteDeadlineSeconds = 10
	}
	if c.WS.PongWaitSeconds == 0 {
		c.WS.PongWaitSeconds = 60
	}
	if c.WS.MaxMessageSizeBytes == 0 {
		c.WS.MaxMessageSizeBytes = 64 * 1024
	}
	if c.WS.SendBuffer == 0 {
		c.WS.SendBuffer = 256
	}
	if c.RateLimit.Limit == 0 {
		c.RateLimit.Limit = 60
	}
	if c.RateLimit.WindowSeconds == 0 {
		c.RateLimit.WindowSeconds = 60
	}

	c.ReadTimeout = time.Duration(c.App.ReadTimeoutSeconds) * time.Second
	c.WriteTimeout = time.Duration(c.App.WriteTimeoutSeconds) * time.Second
	c.PingInterval = time.Duration(c.WS.PingIntervalSeconds) * time.Second
	c.WriteDeadline = time.Duration(c.WS.WriteDeadlineSeconds) * time.Second
	c.PongWait = time.Duration(c.WS.PongWaitSeconds) * time.Second
	c.RateLimitWindow = time.Duration(c.RateLimit.WindowSeconds) * time.Second
}
