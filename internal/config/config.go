package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds application configuration from an optional TOML file and the environment.
type Config struct {
	HTTPPort        string   `toml:"http_port"`
	DatabaseURL     string   `toml:"database_url"`
	DBPoolSize      int      `toml:"db_pool_size"`
	RedisURL        string   `toml:"redis_url"` // empty disables the cache
	RedisPoolSize   int      `toml:"redis_pool_size"`
	CacheTTL        int      `toml:"cache_ttl_sec"` // seconds
	KafkaBrokers    []string `toml:"kafka_brokers"` // empty disables change events
	KafkaTopic      string   `toml:"kafka_topic"`
	KafkaPartitions int      `toml:"kafka_partitions"`
	KafkaGroupID    string   `toml:"kafka_group_id"`
	EvictionDelayMS int      `toml:"eviction_delay_ms"`
	JWTSecret       string   `toml:"jwt_secret"` // empty leaves write routes open
	AllowedOrigins  []string `toml:"allowed_origins"`
	LogLevel        string   `toml:"log_level"`
	APIURL          string   `toml:"api_url"`
}

var (
	cfg     *Config
	cfgOnce sync.Once
)

// Get returns the application config (loads once). A broken CONFIG_FILE is
// ignored here so that the environment alone still configures the process;
// call Load to see the error.
func Get() *Config {
	cfgOnce.Do(func() {
		c, err := Load()
		if err != nil {
			fmt.Fprintln(os.Stderr, "config:", err)
			c = defaults()
			applyEnv(c)
		}
		cfg = c
	})
	return cfg
}

// Load builds a Config from defaults, then CONFIG_FILE (if set), then the environment.
func Load() (*Config, error) {
	c := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return nil, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}
	applyEnv(c)
	return c, nil
}

// CacheTTLDuration returns CacheTTL as a duration.
func (c *Config) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// EvictionDelay returns how long the worker waits before its second eviction.
func (c *Config) EvictionDelay() time.Duration {
	return time.Duration(c.EvictionDelayMS) * time.Millisecond
}

func defaults() *Config {
	return &Config{
		HTTPPort:        "8080",
		DBPoolSize:      20,
		RedisPoolSize:   50,
		CacheTTL:        300,
		KafkaTopic:      "todo-events",
		KafkaPartitions: 8,
		KafkaGroupID:    "todo-cache-evictors",
		EvictionDelayMS: 500,
		AllowedOrigins:  []string{"*"},
		LogLevel:        "info",
		APIURL:          "http://localhost:8080",
	}
}

func applyEnv(c *Config) {
	setString(&c.HTTPPort, "HTTP_PORT")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setInt(&c.DBPoolSize, "DB_POOL_SIZE")
	setString(&c.RedisURL, "REDIS_URL")
	setInt(&c.RedisPoolSize, "REDIS_POOL_SIZE")
	setInt(&c.CacheTTL, "CACHE_TTL_SEC")
	setSlice(&c.KafkaBrokers, "KAFKA_BROKERS")
	setString(&c.KafkaTopic, "KAFKA_TODO_TOPIC")
	setInt(&c.KafkaPartitions, "KAFKA_PARTITIONS")
	setString(&c.KafkaGroupID, "KAFKA_GROUP_ID")
	setInt(&c.EvictionDelayMS, "EVICTION_DELAY_MS")
	setString(&c.JWTSecret, "JWT_SECRET")
	setSlice(&c.AllowedOrigins, "ALLOWED_ORIGINS")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.APIURL, "TODO_API_URL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setSlice(dst *[]string, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}
