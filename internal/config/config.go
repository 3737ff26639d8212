package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppConfig struct {
	Env  string `mapstructure:"env"`
	Port int    `mapstructure:"port"`
}

type StoreConfig struct {
	// Backend selects the storage adapter: memory, mongo or redis.
	Backend string `mapstructure:"backend"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type IdentityConfig struct {
	URL string `mapstructure:"url"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	TopicCommitted string   `mapstructure:"topic_committed"`
}

type BoardConfig struct {
	MessageLimit             int `mapstructure:"message_limit"`
	LiveDraftWindowSeconds   int `mapstructure:"live_draft_window_seconds"`
	HeartbeatIntervalSeconds int `mapstructure:"heartbeat_interval_seconds"`
	PresenceTTLSeconds       int `mapstructure:"presence_ttl_seconds"`
}

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Store    StoreConfig    `mapstructure:"store"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Identity IdentityConfig `mapstructure:"identity"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Board    BoardConfig    `mapstructure:"board"`

	// derived
	LiveDraftWindow   time.Duration
	HeartbeatInterval time.Duration
	PresenceTTL       time.Duration
}

func (c *Config) IsDevelopment() bool { return c.App.Env != "production" }

// Load reads the YAML config at path, with environment variables taking
// precedence. A .env file next to the process is picked up when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}

	if c.App.Port == 0 {
		c.App.Port = 8080
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.Mongo.URI == "" {
		c.Mongo.URI = "mongodb://localhost:27017"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "coolchat"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "coolchat"
	}
	if c.Identity.URL == "" {
		c.Identity.URL = "http://localhost:8081"
	}
	if c.Board.MessageLimit == 0 {
		c.Board.MessageLimit = 10
	}
	if c.Board.LiveDraftWindowSeconds == 0 {
		c.Board.LiveDraftWindowSeconds = 10
	}
	if c.Board.HeartbeatIntervalSeconds == 0 {
		c.Board.HeartbeatIntervalSeconds = 5
	}
	if c.Board.PresenceTTLSeconds == 0 {
		c.Board.PresenceTTLSeconds = 30
	}
	c.LiveDraftWindow = time.Duration(c.Board.LiveDraftWindowSeconds) * time.Second
	c.HeartbeatInterval = time.Duration(c.Board.HeartbeatIntervalSeconds) * time.Second
	c.PresenceTTL = time.Duration(c.Board.PresenceTTLSeconds) * time.Second
	return &c, nil
}
