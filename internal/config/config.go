package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`  // 服务器配置
	MySQL   MySQLConfig   `mapstructure:"mysql"`   // 数据库配置
	Scraper ScraperConfig `mapstructure:"scraper"` // 抓取管线配置
	Refresh RefreshConfig `mapstructure:"refresh"` // 后台刷新配置
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 服务端口
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// MySQLConfig 数据库配置（历史原因沿用此命名，实际连 PostgreSQL）
type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`               // 连接DSN
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
}

// ScraperConfig 抓取管线配置
type ScraperConfig struct {
	ProxyBaseURL   string `mapstructure:"proxy_base_url"`  // 抓取代理服务地址
	ProxyAPIKey    string `mapstructure:"proxy_api_key"`   // 代理服务 API Key（env 覆盖）
	RequestTimeout int    `mapstructure:"request_timeout"` // 完整抓取超时（秒）
	HeadTimeout    int    `mapstructure:"head_timeout"`    // 条件 HEAD 探测超时（秒）
	RetryCount     int    `mapstructure:"retry_count"`     // 抓取重试次数
	MaxBodyBytes   int64  `mapstructure:"max_body_bytes"`  // 响应体大小上限（字节）
	UserAgent      string `mapstructure:"user_agent"`      // 抓取 User-Agent
	Proxy          string `mapstructure:"proxy"`           // 出站 HTTP 代理地址（可选）
	BlobDir        string `mapstructure:"blob_dir"`        // 页面快照库目录
}

// RefreshConfig 后台刷新配置
type RefreshConfig struct {
	Enabled       bool `mapstructure:"enabled"`       // 刷新循环总开关
	TickInterval  int  `mapstructure:"tick_interval"` // 轮询间隔（秒）
	MaxPerCycle   int  `mapstructure:"max_per_cycle"` // 单轮最多刷新数
	BatchSize     int  `mapstructure:"batch_size"`    // 并发批大小
	BatchPauseSec int  `mapstructure:"batch_pause"`   // 批间停顿（秒）
}

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig() (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	// 2. 读取 config.yaml
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	viper.SetTypeByDefaultValue(true)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 3. 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		cfg.MySQL.DSN = v
	}
	if v := os.Getenv("SCRAPER_PROXY_API_KEY"); v != "" {
		cfg.Scraper.ProxyAPIKey = v
	}
	if v := os.Getenv("SCRAPER_PROXY"); v != "" {
		cfg.Scraper.Proxy = v
	}
}

// applyDefaults 填充未配置项的默认值
func applyDefaults(cfg *Config) {
	if cfg.Scraper.RequestTimeout <= 0 {
		cfg.Scraper.RequestTimeout = 30
	}
	if cfg.Scraper.HeadTimeout <= 0 {
		cfg.Scraper.HeadTimeout = 5
	}
	if cfg.Scraper.RetryCount <= 0 {
		cfg.Scraper.RetryCount = 3
	}
	if cfg.Scraper.MaxBodyBytes <= 0 {
		cfg.Scraper.MaxBodyBytes = 10 << 20
	}
	if cfg.Refresh.TickInterval <= 0 {
		cfg.Refresh.TickInterval = 300
	}
	if cfg.Refresh.MaxPerCycle <= 0 {
		cfg.Refresh.MaxPerCycle = 50
	}
	if cfg.Refresh.BatchSize <= 0 {
		cfg.Refresh.BatchSize = 10
	}
}

// GetGORMConfig 获取数据库配置（适配GORM）
func (m *MySQLConfig) GetGORMConfig() gorm.Config {
	return gorm.Config{} // 可扩展：添加日志、命名策略等
}
