package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/raffle-next/internal/constants"
	"github.com/raffle-next/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Security SecurityConfig `mapstructure:"security"`
	Raffle   RaffleConfig   `mapstructure:"raffle"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver   string             `mapstructure:"driver"` // sqlite / postgres
	DSN      string             `mapstructure:"dsn"`
	LogLevel string             `mapstructure:"log_level"` // silent / error / warn / info
	Pool     DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig 后台接口 JWT 校验配置（签发由外部认证服务负责）
type JWTConfig struct {
	SecretKey string `mapstructure:"secret"`
	Issuer    string `mapstructure:"issuer"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	PurchaseRateLimit RateLimitConfig `mapstructure:"purchase_rate_limit"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

// RaffleConfig 售券与开奖配置
type RaffleConfig struct {
	AllocationMaxRetries    int    `mapstructure:"allocation_max_retries"`
	MaxTicketsPerPurchase   int    `mapstructure:"max_tickets_per_purchase"`
	MaxCapacity             int    `mapstructure:"max_capacity"`
	SelectionMode           string `mapstructure:"selection_mode"` // random / sequential
	PoolBatchSize           int    `mapstructure:"pool_batch_size"`
	StorageTimeoutMS        int    `mapstructure:"storage_timeout_ms"`
	RescanIntervalSeconds   int    `mapstructure:"rescan_interval_seconds"`
	StatsCacheTTLSeconds    int    `mapstructure:"stats_cache_ttl_seconds"`
	RescanRetryDelaySeconds int    `mapstructure:"rescan_retry_delay_seconds"`
	Currency                string `mapstructure:"currency"`
}

// StorageTimeout 单次存储调用超时
func (c RaffleConfig) StorageTimeout() time.Duration {
	if c.StorageTimeoutMS <= 0 {
		return time.Duration(constants.DefaultStorageTimeoutMS) * time.Millisecond
	}
	return time.Duration(c.StorageTimeoutMS) * time.Millisecond
}

// Normalize 补齐非法或缺省的售券参数
func (c RaffleConfig) Normalize() RaffleConfig {
	if c.AllocationMaxRetries <= 0 {
		c.AllocationMaxRetries = constants.DefaultAllocationMaxRetries
	}
	if c.MaxTicketsPerPurchase <= 0 {
		c.MaxTicketsPerPurchase = constants.DefaultMaxTicketsPerPurchase
	}
	if c.MaxCapacity <= 0 {
		c.MaxCapacity = constants.DefaultMaxCapacity
	}
	mode := strings.ToLower(strings.TrimSpace(c.SelectionMode))
	if mode != constants.SelectionModeSequential {
		mode = constants.SelectionModeRandom
	}
	c.SelectionMode = mode
	if c.PoolBatchSize <= 0 {
		c.PoolBatchSize = constants.DefaultPoolBatchSize
	}
	if c.StorageTimeoutMS <= 0 {
		c.StorageTimeoutMS = constants.DefaultStorageTimeoutMS
	}
	if c.RescanIntervalSeconds < 0 {
		c.RescanIntervalSeconds = 0
	}
	if c.StatsCacheTTLSeconds <= 0 {
		c.StatsCacheTTLSeconds = constants.DefaultStatsCacheTTLSeconds
	}
	if c.RescanRetryDelaySeconds < 0 {
		c.RescanRetryDelaySeconds = constants.DefaultRescanRetryDelaySeconds
	}
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	if c.Currency == "" {
		c.Currency = constants.CurrencyDefault
	}
	return c
}

// Load 从 config.yml 加载配置
func Load() *Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("../")   // 从 cmd/server 运行
	v.AddConfigPath("./etc") // etc 文件夹

	setDefaults(v)

	// 环境变量支持，例如 raffle.selection_mode -> RAFFLE_SELECTION_MODE
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}
	cfg.Raffle = cfg.Raffle.Normalize()
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/raffle.db")
	v.SetDefault("database.log_level", "warn")
	// sqlite 单写连接，避免并发写入触发 database is locked
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", constants.RedisPrefixDefault)
	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.queues", map[string]int{
		constants.QueueCritical: 6,
		constants.QueueDefault:  3,
	})
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
		"X-Request-ID",
	})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("security.purchase_rate_limit.window_seconds", 60)
	v.SetDefault("security.purchase_rate_limit.max_requests", 30)
	v.SetDefault("raffle.allocation_max_retries", constants.DefaultAllocationMaxRetries)
	v.SetDefault("raffle.max_tickets_per_purchase", constants.DefaultMaxTicketsPerPurchase)
	v.SetDefault("raffle.max_capacity", constants.DefaultMaxCapacity)
	v.SetDefault("raffle.selection_mode", constants.SelectionModeRandom)
	v.SetDefault("raffle.pool_batch_size", constants.DefaultPoolBatchSize)
	v.SetDefault("raffle.storage_timeout_ms", constants.DefaultStorageTimeoutMS)
	v.SetDefault("raffle.rescan_interval_seconds", 60)
	v.SetDefault("raffle.stats_cache_ttl_seconds", constants.DefaultStatsCacheTTLSeconds)
	v.SetDefault("raffle.rescan_retry_delay_seconds", constants.DefaultRescanRetryDelaySeconds)
	v.SetDefault("raffle.currency", constants.CurrencyDefault)
}
