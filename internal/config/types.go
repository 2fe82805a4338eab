// Package config 统一配置管理
//
// 配置加载优先级（高→低）：
//  1. 环境变量（通过 .env 文件或 shell/systemd 注入）
//  2. YAML 配置文件（common.yaml，然后 {env}.yaml）
//  3. 代码硬编码默认值
//
// 凭据单一数据源：密码/密钥只从环境变量读取，YAML 中不存储任何密码。
//
// 配置路径确定策略：
//  1. SetConfigDir（--config 命令行参数）
//  2. CONFIG_DIR 环境变量
//  3. 按 APP_ENV 选择默认路径：prod → /etc/automarket/，dev/test → ./configs/
package config

import (
	"time"

	"automarket/pkg/logging"
)

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	APIServer APIServerConfig `yaml:"api_server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Events    EventsConfig    `yaml:"events"`
	MinIO     MinIOConfig     `yaml:"minio"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       logging.Config  `yaml:"log"`
}

// APIServerConfig API Server 配置
type APIServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"` // 商品图片上传上限
}

// AuthConfig 认证配置
// 注意：JWTSecret/AdminEmail/AdminPassword 只从环境变量读取，不存储在 YAML 中
type AuthConfig struct {
	JWTSecret       string `yaml:"-"`                 // JWT_SECRET
	AccessTokenTTL  string `yaml:"access_token_ttl"`  // 例如 "15m"
	RefreshTokenTTL string `yaml:"refresh_token_ttl"` // 例如 "168h"
	AdminEmail      string `yaml:"-"`                 // ADMIN_EMAIL
	AdminPassword   string `yaml:"-"`                 // ADMIN_PASSWORD
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "postgres", "sqlite", or "mongodb"
	Path     string `yaml:"path"`   // SQLite 文件路径
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"` // DB_PASSWORD / MONGO_ROOT_PASSWORD
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	URI      string `yaml:"uri"` // MongoDB 连接 URI（优先于 host/port）
}

// RedisConfig Redis 配置（Redis Streams 事件总线）
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"` // REDIS_PASSWORD
	URL      string `yaml:"url"`
}

// RabbitMQConfig RabbitMQ 配置
type RabbitMQConfig struct {
	URL           string `yaml:"-"` // RABBITMQ_URL
	Exchange      string `yaml:"exchange"`
	Queue         string `yaml:"queue"`
	PrefetchCount int    `yaml:"prefetch_count"`
}

// EventsConfig 审核事件总线配置
type EventsConfig struct {
	Driver    string `yaml:"driver"` // "redis", "rabbitmq", "memory" or "none"
	StreamKey string `yaml:"stream_key"`
	MaxLen    int64  `yaml:"max_len"`
}

// MinIOConfig MinIO 对象存储配置
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"` // 例如 localhost:9000，为空表示不启用
	AccessKey string `yaml:"-"`        // MINIO_ROOT_USER
	SecretKey string `yaml:"-"`        // MINIO_ROOT_PASSWORD
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
}

// Enabled 是否配置了对象存储
func (m MinIOConfig) Enabled() bool {
	return m.Endpoint != ""
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env            Environment
	DatabaseDriver string // "postgres", "sqlite", or "mongodb"
	DatabaseURL    string
	DatabaseDBName string // MongoDB 数据库名称
	RedisURL       string
	RabbitMQ       RabbitMQConfig
	Events         EventsConfig
	APIServer      APIServerConfig
	Auth           AuthConfig
	MinIO          MinIOConfig
	Log            logging.Config
	ConfigFilePath string // 实际加载的配置文件路径
}

// yamlConfigInternal 内部包装，记录配置文件来源（不参与 YAML 序列化）
type yamlConfigInternal struct {
	YAMLConfig `yaml:",inline"`
	loadedFrom string
}
