package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Storage     StorageConfig
	Tracing     TracingConfig `mapstructure:"tracing"`
	Redis       RedisConfig
	AI          AIConfig          `mapstructure:"ai"`
	Generation  GenerationConfig  `mapstructure:"generation"`
	Translation TranslationConfig `mapstructure:"translation"`
	CORS        CORSConfig        `mapstructure:"cors"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"` // 强制执行数据库迁移
	MigrateOnly  bool `mapstructure:"-"` // 仅迁移模式（迁移后退出）
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

// AIProviderConfig 单个大模型提供商配置
// APIKey 与 APIKeys 二选一：APIKeys 非空表示该提供商使用密钥池轮换
type AIProviderConfig struct {
	Name    string   `mapstructure:"name"`
	BaseURL string   `mapstructure:"base_url"`
	Model   string   `mapstructure:"model"`
	APIKey  string   `mapstructure:"api_key"`
	APIKeys []string `mapstructure:"api_keys"`
}

// PromptBudgets 各管道阶段的提示词字符预算
type PromptBudgets struct {
	SectionIdentify int `mapstructure:"section_identify"`
	LearningObjects int `mapstructure:"learning_objects"`
	LessonSummary   int `mapstructure:"lesson_summary"`
	Ontology        int `mapstructure:"ontology"`
	Chatbot         int `mapstructure:"chatbot"`
}

type AIConfig struct {
	Providers          []AIProviderConfig `mapstructure:"providers"`
	MaxRetries         int                `mapstructure:"max_retries"`
	RetryInitialDelay  time.Duration      `mapstructure:"retry_initial_delay_seconds"`
	CallTimeoutSeconds int                `mapstructure:"call_timeout_seconds"`
	PromptBudgets      PromptBudgets      `mapstructure:"prompt_char_budgets"`
}

type GenerationConfig struct {
	QuestionsPerLevelDefault int    `mapstructure:"questions_per_level_default"`
	LessonDeletePolicy       string `mapstructure:"lesson_delete_policy"` // refuse 或 cascade
}

type TranslationConfig struct {
	Languages []string `mapstructure:"languages"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("SOLO_EDU")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// Storage
	viper.BindEnv("storage.type", "STORAGE_TYPE")
	viper.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// 管道相关默认值
	viper.SetDefault("ai.max_retries", 3)
	viper.SetDefault("ai.retry_initial_delay_seconds", 1)
	viper.SetDefault("ai.call_timeout_seconds", 60)
	viper.SetDefault("ai.prompt_char_budgets.section_identify", 15000)
	viper.SetDefault("ai.prompt_char_budgets.learning_objects", 8000)
	viper.SetDefault("ai.prompt_char_budgets.lesson_summary", 10000)
	viper.SetDefault("ai.prompt_char_budgets.ontology", 10000)
	viper.SetDefault("ai.prompt_char_budgets.chatbot", 6000)
	viper.SetDefault("generation.questions_per_level_default", 3)
	viper.SetDefault("generation.lesson_delete_policy", "refuse")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour
	cfg.AI.RetryInitialDelay = cfg.AI.RetryInitialDelay * time.Second

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if cfg.Generation.LessonDeletePolicy != "refuse" && cfg.Generation.LessonDeletePolicy != "cascade" {
		return nil, fmt.Errorf("invalid lesson_delete_policy %q, must be refuse or cascade", cfg.Generation.LessonDeletePolicy)
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}
