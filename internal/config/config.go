package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
	AllowedOrigins  []string      `mapstructure:"allowedOrigins"`
}

type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int    `mapstructure:"maxConns"`
}

type RedisConfig struct {
	Addr string        `mapstructure:"addr"`
	TTL  time.Duration `mapstructure:"ttl"`
}

type RabbitConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type ORSConfig struct {
	APIKey  string `mapstructure:"apiKey"`
	BaseURL string `mapstructure:"baseURL"`
	Profile string `mapstructure:"profile"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DispatchConfig holds the pay and batching policy. Money is in cents.
type DispatchConfig struct {
	BasePerOrderCents   int64         `mapstructure:"basePerOrderCents"`
	MileageRateCents    int64         `mapstructure:"mileageRateCents"`
	CommissionBps       int64         `mapstructure:"commissionBps"`
	LargeItemBonusCents int64         `mapstructure:"largeItemBonusCents"`
	MinOrders           int           `mapstructure:"minOrders"`
	MaxOrders           int           `mapstructure:"maxOrders"`
	ClusterRadiusMeters float64       `mapstructure:"clusterRadiusMeters"`
	MaxWait             time.Duration `mapstructure:"maxWait"`
	StaleAfter          time.Duration `mapstructure:"staleAfter"`
	AbandonAfter        time.Duration `mapstructure:"abandonAfter"`
	HeartbeatTimeout    time.Duration `mapstructure:"heartbeatTimeout"`
	PoolThreshold       int           `mapstructure:"poolThreshold"`
	BatchInterval       time.Duration `mapstructure:"batchInterval"`
	SweepInterval       time.Duration `mapstructure:"sweepInterval"`
	EnforceSlotCutoff   bool          `mapstructure:"enforceSlotCutoff"`
	Timezone            string        `mapstructure:"timezone"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Rabbit   RabbitConfig   `mapstructure:"rabbit"`
	ORS      ORSConfig      `mapstructure:"ors"`
	Log      LogConfig      `mapstructure:"log"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
}

var envBindings = map[string]string{
	"server.port":                  "PORT",
	"server.shutdownTimeout":       "SHUTDOWN_TIMEOUT",
	"database.url":                 "DATABASE_URL",
	"database.maxConns":            "DATABASE_MAX_CONNS",
	"redis.addr":                   "REDIS_ADDR",
	"redis.ttl":                    "REDIS_TTL",
	"rabbit.url":                   "RABBITMQ_URL",
	"rabbit.exchange":              "RABBITMQ_EXCHANGE",
	"ors.apiKey":                   "ORS_API_KEY",
	"ors.baseURL":                  "ORS_BASE_URL",
	"ors.profile":                  "ORS_PROFILE",
	"log.level":                    "LOG_LEVEL",
	"log.format":                   "LOG_FORMAT",
	"dispatch.maxWait":             "DISPATCH_MAX_WAIT",
	"dispatch.staleAfter":          "DISPATCH_STALE_AFTER",
	"dispatch.abandonAfter":        "DISPATCH_ABANDON_AFTER",
	"dispatch.heartbeatTimeout":    "DISPATCH_HEARTBEAT_TIMEOUT",
	"dispatch.clusterRadiusMeters": "DISPATCH_CLUSTER_RADIUS_METERS",
	"dispatch.poolThreshold":       "DISPATCH_POOL_THRESHOLD",
	"dispatch.batchInterval":       "DISPATCH_BATCH_INTERVAL",
	"dispatch.sweepInterval":       "DISPATCH_SWEEP_INTERVAL",
	"dispatch.enforceSlotCutoff":   "DISPATCH_ENFORCE_SLOT_CUTOFF",
	"dispatch.timezone":            "DISPATCH_TIMEZONE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("database.maxConns", 10)
	v.SetDefault("redis.ttl", 24*time.Hour)
	v.SetDefault("rabbit.exchange", "dispatch_topic")
	v.SetDefault("ors.baseURL", "https://api.openrouteservice.org")
	v.SetDefault("ors.profile", "driving-car")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// $4 pickup + $2 dropoff per order, $0.50/mile, 5% commission, $25 large item bonus.
	v.SetDefault("dispatch.basePerOrderCents", 600)
	v.SetDefault("dispatch.mileageRateCents", 50)
	v.SetDefault("dispatch.commissionBps", 500)
	v.SetDefault("dispatch.largeItemBonusCents", 2500)
	v.SetDefault("dispatch.minOrders", 2)
	v.SetDefault("dispatch.maxOrders", 6)
	v.SetDefault("dispatch.clusterRadiusMeters", 8046.72)
	v.SetDefault("dispatch.maxWait", 10*time.Minute)
	v.SetDefault("dispatch.staleAfter", 15*time.Minute)
	v.SetDefault("dispatch.abandonAfter", 10*time.Minute)
	v.SetDefault("dispatch.heartbeatTimeout", 2*time.Minute)
	v.SetDefault("dispatch.poolThreshold", 6)
	v.SetDefault("dispatch.batchInterval", time.Minute)
	v.SetDefault("dispatch.sweepInterval", 30*time.Second)
	v.SetDefault("dispatch.enforceSlotCutoff", true)
	v.SetDefault("dispatch.timezone", "Local")
}

// LoadConfig reads .env, then an optional config.yaml under path, then the
// environment. Later sources win.
func LoadConfig(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load config: read .env: %w", err)
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("load config: bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("load config: read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("load config: unmarshal: %w", err)
	}

	return cfg, nil
}

// Location resolves the dispatch timezone used for slot windows.
func (c DispatchConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("dispatch timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Get returns the environment value for key or fallback when unset.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
