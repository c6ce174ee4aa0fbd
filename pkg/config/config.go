// Package config 提供 TOML 配置加载、环境变量覆盖、命令行参数绑定与校验
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 GREEKS_GREEKS_MODE、GREEKS_PORTFOLIO_WORKERS
const EnvPrefix = "GREEKS"

// Config 基础配置结构
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 服务版本
	Version string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`
	// HTTP 服务配置
	HTTP HTTPConfig `mapstructure:"http"`
	// Redis 配置
	Redis RedisConfig `mapstructure:"redis"`
	// Kafka 配置
	Kafka KafkaConfig `mapstructure:"kafka"`
	// 日志配置
	Logger LoggerConfig `mapstructure:"logger"`
	// 指标配置
	Metrics MetricsConfig `mapstructure:"metrics"`
	// 希腊字母计算配置
	Greeks GreeksConfig `mapstructure:"greeks"`
	// 组合计算配置
	Portfolio PortfolioConfig `mapstructure:"portfolio"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	// 监听地址
	Host string `mapstructure:"host"`
	// 监听端口
	Port int `mapstructure:"port"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
	// 每秒请求数上限，0 表示不限流
	RateLimit float64 `mapstructure:"rate_limit"`
	// 令牌桶容量
	RateBurst int `mapstructure:"rate_burst"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 是否启用结果缓存
	Enabled bool `mapstructure:"enabled"`
	// 主机地址
	Host string `mapstructure:"host"`
	// 端口
	Port int `mapstructure:"port"`
	// 密码
	Password string `mapstructure:"password"`
	// 数据库编号
	DB int `mapstructure:"db"`
	// 最大连接数
	MaxPoolSize int `mapstructure:"max_pool_size"`
	// 连接超时（秒）
	ConnTimeout int `mapstructure:"conn_timeout"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
	// 结果缓存有效期
	TTL time.Duration `mapstructure:"ttl"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	// 是否发布领域事件
	Enabled bool `mapstructure:"enabled"`
	// Broker 地址列表
	Brokers []string `mapstructure:"brokers"`
	// 事件主题
	Topic string `mapstructure:"topic"`
	// 最大重试次数
	MaxRetries int `mapstructure:"max_retries"`
	// 重试退避（毫秒）
	RetryBackoff int `mapstructure:"retry_backoff"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	// 日志级别
	Level string `mapstructure:"level"`
	// 输出格式
	Format string `mapstructure:"format"`
	// 输出目标
	Output string `mapstructure:"output"`
	// 文件路径
	FilePath string `mapstructure:"file_path"`
	// 最大文件大小（MB）
	MaxSize int `mapstructure:"max_size"`
	// 最大备份文件数
	MaxBackups int `mapstructure:"max_backups"`
	// 最大保留天数
	MaxAge int `mapstructure:"max_age"`
	// 是否压缩
	Compress bool `mapstructure:"compress"`
	// 是否输出调用者信息
	WithCaller bool `mapstructure:"with_caller"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `mapstructure:"enabled"`
	// 指标路径
	Path string `mapstructure:"path"`
}

// GreeksConfig 希腊字母计算配置
type GreeksConfig struct {
	// 求导方式：bump, reverse, forward
	Mode string `mapstructure:"mode"`
	// 现货相对扰动
	SpotBump float64 `mapstructure:"spot_bump"`
	// 波动率绝对扰动
	VolBump float64 `mapstructure:"vol_bump"`
	// 时间扰动（年）
	TimeBump float64 `mapstructure:"time_bump"`
	// 利率绝对扰动
	RateBump float64 `mapstructure:"rate_bump"`
	// 校验相对容差
	Tolerance float64 `mapstructure:"tolerance"`
	// 校验绝对下限
	Floor float64 `mapstructure:"floor"`
	// 根种子
	Seed uint64 `mapstructure:"seed"`
	// 光滑参数，0 表示自动选择
	SmoothingEpsilon float64 `mapstructure:"smoothing_epsilon"`
	// 是否允许反向模式
	ReverseEnabled bool `mapstructure:"reverse_enabled"`
}

// PortfolioConfig 组合计算配置
type PortfolioConfig struct {
	// 工作协程数，0 表示 CPU 核数
	Workers int `mapstructure:"workers"`
	// 单次组合计算的时间预算
	Budget time.Duration `mapstructure:"budget"`
}

// flagKeys 命令行参数名到配置键的映射
var flagKeys = map[string]string{
	"mode":              "greeks.mode",
	"spot-bump":         "greeks.spot_bump",
	"vol-bump":          "greeks.vol_bump",
	"time-bump":         "greeks.time_bump",
	"rate-bump":         "greeks.rate_bump",
	"tolerance":         "greeks.tolerance",
	"floor":             "greeks.floor",
	"seed":              "greeks.seed",
	"smoothing-epsilon": "greeks.smoothing_epsilon",
	"reverse-enabled":   "greeks.reverse_enabled",
	"workers":           "portfolio.workers",
	"budget":            "portfolio.budget",
	"http-port":         "http.port",
	"log-level":         "logger.level",
}

// RegisterFlags 在命令行参数集合上注册可覆盖配置项的参数
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("mode", "bump", "differentiation method: bump, reverse or forward")
	fs.Float64("spot-bump", 0.01, "relative spot bump")
	fs.Float64("vol-bump", 0.01, "absolute volatility bump")
	fs.Float64("time-bump", 1.0/365, "time bump in years")
	fs.Float64("rate-bump", 0.0001, "absolute rate bump")
	fs.Float64("tolerance", 1e-3, "verification relative tolerance")
	fs.Float64("floor", 1e-4, "verification absolute floor")
	fs.Uint64("seed", 0x5eed1e55, "root random seed")
	fs.Float64("smoothing-epsilon", 0, "smoothing sharpness, 0 selects automatically")
	fs.Bool("reverse-enabled", true, "allow reverse-mode differentiation")
	fs.Int("workers", 0, "portfolio worker count, 0 uses all CPUs")
	fs.Duration("budget", 30*time.Second, "portfolio wall-clock budget")
	fs.Int("http-port", 8080, "HTTP listen port")
	fs.String("log-level", "info", "log level")
}

// Load 加载配置。优先级：命令行参数（显式设置时） > 环境变量 > 配置文件 > 默认值。
// configPath 为空时只使用默认值与环境变量；flags 可为空。
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 设置环境变量前缀，使用 _ 替代 .
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 验证配置
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.Portfolio.Workers < 0 {
		return fmt.Errorf("invalid portfolio workers: %d", c.Portfolio.Workers)
	}
	if c.Portfolio.Budget <= 0 {
		return fmt.Errorf("invalid portfolio budget: %s", c.Portfolio.Budget)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when kafka is enabled")
	}
	if c.Redis.Enabled && c.Redis.TTL <= 0 {
		return fmt.Errorf("invalid redis ttl: %s", c.Redis.TTL)
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "greeks")
	v.SetDefault("version", "dev")
	v.SetDefault("environment", "dev")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 60)
	v.SetDefault("http.rate_limit", 0)
	v.SetDefault("http.rate_burst", 50)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_pool_size", 10)
	v.SetDefault("redis.conn_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)
	v.SetDefault("redis.ttl", "10m")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic", "greeks.events")
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", 100)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/greeks.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("greeks.mode", "bump")
	v.SetDefault("greeks.spot_bump", 0.01)
	v.SetDefault("greeks.vol_bump", 0.01)
	v.SetDefault("greeks.time_bump", 1.0/365)
	v.SetDefault("greeks.rate_bump", 0.0001)
	v.SetDefault("greeks.tolerance", 1e-3)
	v.SetDefault("greeks.floor", 1e-4)
	v.SetDefault("greeks.seed", uint64(0x5eed1e55))
	v.SetDefault("greeks.smoothing_epsilon", 0)
	v.SetDefault("greeks.reverse_enabled", true)

	v.SetDefault("portfolio.workers", 0)
	v.SetDefault("portfolio.budget", "30s")
}

// GetEnv 获取环境变量，支持默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
