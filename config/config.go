// config/config.go
package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Configuration stores all the configurations
type Configuration struct {
	Server        ServerConfiguration
	Log           LogConfiguration
	Store         StoreConfiguration
	Neo4j         DatabaseConfiguration
	Redis         RedisConfiguration
	Elasticsearch ElasticsearchConfiguration
	Audit         AuditConfiguration
	Auth          AuthConfiguration
	RateLimit     RateLimitConfiguration
	Cache         CacheConfiguration
	Resolver      ResolverConfiguration
	Connectors    ConnectorsConfiguration
	Retry         RetryConfiguration
	Mapper        MapperConfiguration
	Notifications NotificationConfiguration
}

// ServerConfiguration stores the port and other web server settings
type ServerConfiguration struct {
	Port string
}

type LogConfiguration struct {
	Level string
	Dir   string
}

// StoreConfiguration selects where connection and mapping records persist
type StoreConfiguration struct {
	Type string // "memory" or "neo4j"
}

// DatabaseConfiguration stores data for database connection
type DatabaseConfiguration struct {
	URI      string
	Username string
	Password string
}

// RedisConfiguration stores data for Redis connection
type RedisConfiguration struct {
	Enabled       bool
	Addr          string
	Password      string
	DB            int
	EncryptionKey string
	KeyPrefix     string
}

// ElasticsearchConfiguration stores data for Elasticsearch connection
type ElasticsearchConfiguration struct {
	URL string
}

type AuditConfiguration struct {
	Enabled bool
	Index   string
}

type AuthConfiguration struct {
	Enabled     bool
	JWTSecret   string
	AdminGroups []string
}

type RateLimitConfiguration struct {
	Requests int
	Window   time.Duration
}

type CacheConfiguration struct {
	MaxEntries      int
	MaxBytes        int64
	GracePeriod     time.Duration
	FetchTimeout    time.Duration
	SensitiveMaxTTL time.Duration
	SweepSchedule   string
}

type ResolverConfiguration struct {
	DefaultDeadline time.Duration
	MaxDeadline     time.Duration
}

type ConnectorsConfiguration struct {
	TestTimeout time.Duration
}

type RetryConfiguration struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type MapperConfiguration struct {
	CustomMaxSteps uint64
	CustomTimeout  time.Duration
}

type NotificationConfiguration struct {
	WebhookURL string
}

var config *Configuration

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.dir", "")
	viper.SetDefault("store.type", "memory")
	viper.SetDefault("neo4j.uri", "bolt://localhost:7687")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.keyPrefix", "pip")
	viper.SetDefault("elasticsearch.url", "http://localhost:9200")
	viper.SetDefault("audit.enabled", false)
	viper.SetDefault("audit.index", "pip-resolution-audit")
	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("auth.adminGroups", []string{"pip-admin"})
	viper.SetDefault("rateLimit.requests", 1000)
	viper.SetDefault("rateLimit.window", "1m")
	viper.SetDefault("cache.maxEntries", 100000)
	viper.SetDefault("cache.maxBytes", 256<<20)
	viper.SetDefault("cache.gracePeriod", "30s")
	viper.SetDefault("cache.fetchTimeout", "10s")
	viper.SetDefault("cache.sensitiveMaxTTL", "5m")
	viper.SetDefault("cache.sweepSchedule", "@every 30s")
	viper.SetDefault("resolver.defaultDeadline", "500ms")
	viper.SetDefault("resolver.maxDeadline", "5s")
	viper.SetDefault("connectors.testTimeout", "10s")
	viper.SetDefault("retry.maxAttempts", 3)
	viper.SetDefault("retry.initialInterval", "100ms")
	viper.SetDefault("retry.maxInterval", "2s")
	viper.SetDefault("mapper.customMaxSteps", 100000)
	viper.SetDefault("mapper.customTimeout", "50ms")
}

func InitConfig() error {
	viper.AddConfigPath("config") // path to look for the config file in
	viper.SetConfigName("config") // name of the config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name

	viper.SetEnvPrefix("PIP")
	viper.AutomaticEnv() // read in environment variables that match

	setDefaults()

	// Attempt to read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found. Using default settings and environment variables.")
		} else {
			return err
		}
	}

	// Unmarshal the configuration into the Configuration struct
	err := viper.Unmarshal(&config)
	if err != nil {
		return err
	}

	return nil
}

// GetConfig returns the loaded configuration
func GetConfig() *Configuration {
	return config
}

// GetString retrieves a string value from the configuration
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt retrieves an integer value from the configuration
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool retrieves a boolean value from the configuration
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration retrieves a duration value from the configuration
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}
