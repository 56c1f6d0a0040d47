// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Tika          TikaConfig          `mapstructure:"tika"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Assistant     AssistantConfig     `mapstructure:"assistant"`
	Drive         DriveConfig         `mapstructure:"drive"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	RefreshTokenExpireDays int    `mapstructure:"refresh_token_expire_days"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// TikaConfig 存储 Tika 服务器相关的配置。
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	// BatchSize 是单次 Embedding 请求允许的最大文本条数。
	BatchSize int `mapstructure:"batch_size"`
}

// LLMConfig 存储用于元数据抽取的大语言模型配置。
type LLMConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// AssistantConfig 存储外部向量/助手检索服务的配置。
type AssistantConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// DriveConfig 存储 Google Drive 同步来源的配置。
type DriveConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
}

// PipelineConfig 存储文档处理管道的调优参数。
type PipelineConfig struct {
	// MaxParallelism 限制同时运行的管道数量，避免压垮限流的第三方 API。
	MaxParallelism int `mapstructure:"max_parallelism"`
	// MaxAttempts 是队列层面对单个任务的最大投递次数。
	MaxAttempts int `mapstructure:"max_attempts"`
	// IndexPollInterval 是轮询外部索引状态的间隔。
	IndexPollInterval time.Duration `mapstructure:"index_poll_interval"`
	// IndexPollTimeout 是等待外部索引完成的硬上限，超时后任务置为失败。
	IndexPollTimeout time.Duration `mapstructure:"index_poll_timeout"`
	// MetadataTextLimit 是送入 LLM 做元数据抽取的文本前缀长度（字符数）。
	MetadataTextLimit int `mapstructure:"metadata_text_limit"`
	// SeedDir 是启动时自动导入的本地目录，为空则跳过。
	SeedDir string `mapstructure:"seed_dir"`
}

// Load 从指定路径读取 YAML 配置文件并解析为 Config。
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults 为未配置的管道参数填充默认值。
func (c *Config) applyDefaults() {
	if c.Pipeline.MaxParallelism <= 0 {
		c.Pipeline.MaxParallelism = 3
	}
	if c.Pipeline.MaxAttempts <= 0 {
		c.Pipeline.MaxAttempts = 3
	}
	if c.Pipeline.IndexPollInterval <= 0 {
		c.Pipeline.IndexPollInterval = 10 * time.Second
	}
	if c.Pipeline.IndexPollTimeout <= 0 {
		c.Pipeline.IndexPollTimeout = 5 * time.Minute
	}
	if c.Pipeline.MetadataTextLimit <= 0 {
		c.Pipeline.MetadataTextLimit = 15000
	}
	if c.Embedding.BatchSize <= 0 || c.Embedding.BatchSize > 128 {
		c.Embedding.BatchSize = 128
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "docflow-ingest-consumer"
	}
}
