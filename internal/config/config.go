package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerCfg struct {
	Port                string `mapstructure:"port"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
	Development         bool   `mapstructure:"development"`
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
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type IdentityCfg struct {
	BaseURL       string `mapstructure:"base_url"`
	APIKey        string `mapstructure:"api_key"`
	PublicKeyPath string `mapstructure:"public_key_path"`
}

type StorageCfg struct {
	Region            string `mapstructure:"region"`
	Bucket            string `mapstructure:"bucket"`
	Endpoint          string `mapstructure:"endpoint"`
	PublicRead        bool   `mapstructure:"public_read"`
	PresignTTLMinutes int    `mapstructure:"presign_ttl_minutes"`
}

type PresenceCfg struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

type RateLimitCfg struct {
	Limit         int `mapstructure:"limit"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

type Config struct {
	Server    ServerCfg    `mapstructure:"server"`
	Mongo     MongoCfg     `mapstructure:"mongo"`
	Redis     RedisCfg     `mapstructure:"redis"`
	Kafka     KafkaCfg     `mapstructure:"kafka"`
	Identity  IdentityCfg  `mapstructure:"identity"`
	Storage   StorageCfg   `mapstructure:"storage"`
	Presence  PresenceCfg  `mapstructure:"presence"`
	RateLimit RateLimitCfg `mapstructure:"rate_limit"`

	// Derived
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PresenceTTL  time.Duration
	PresignTTL   time.Duration
	RateWindow   time.Duration
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 15
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		c.Server.WriteTimeoutSeconds = 15
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "sable"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "sable"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "sable.changefeed"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "sable-server"
	}
	if c.Presence.TTLSeconds == 0 {
		c.Presence.TTLSeconds = 90
	}
	if c.Storage.PresignTTLMinutes == 0 {
		c.Storage.PresignTTLMinutes = 15
	}
	if c.RateLimit.Limit == 0 {
		c.RateLimit.Limit = 120
	}
	if c.RateLimit.WindowSeconds == 0 {
		c.RateLimit.WindowSeconds = 60
	}
	c.ReadTimeout = time.Duration(c.Server.ReadTimeoutSeconds) * time.Second
	c.WriteTimeout = time.Duration(c.Server.WriteTimeoutSeconds) * time.Second
	c.PresenceTTL = time.Duration(c.Presence.TTLSeconds) * time.Second
	c.PresignTTL = time.Duration(c.Storage.PresignTTLMinutes) * time.Minute
	c.RateWindow = time.Duration(c.RateLimit.WindowSeconds) * time.Second
}
