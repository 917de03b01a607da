package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"contract-guard/pkg/logger"
	"contract-guard/pkg/retry"
	"contract-guard/vars"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Log           logger.Config       `yaml:"log"`
	Model         ModelConfig         `yaml:"model"`
	Cache         CacheConfig         `yaml:"cache"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Minio         MinioConfig         `yaml:"minio"`
	Executor      ExecutorConfig      `yaml:"executor"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Monitor       MonitorConfig       `yaml:"monitor"`
	Risk          RiskConfig          `yaml:"risk"`
}

type ServerConfig struct {
	Port         int    `yaml:"port"`
	APIKey       string `yaml:"api_key"`
	RateLimitRPM int    `yaml:"rate_limit_rpm"`

	// FileRoot file_ref 可读取的本地目录，为空时只接受对象存储引用
	FileRoot string `yaml:"file_root"`
}

type ModelConfig struct {
	Provider    string        `yaml:"provider"` // ollama, openai
	BaseURL     string        `yaml:"base_url"`
	Name        string        `yaml:"name"`
	APIKey      string        `yaml:"api_key"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float32       `yaml:"temperature"`
}

type CacheConfig struct {
	Backend       string        `yaml:"backend"` // memory, redis
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	ArtifactTTL   time.Duration `yaml:"artifact_ttl"`
	TemplateTTL   time.Duration `yaml:"template_ttl"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	Port     string `yaml:"port"`
}

// Enabled 未配置 host 时使用内存存储
func (c PostgresConfig) Enabled() bool { return c.Host != "" }

// DSN gorm postgres 连接串
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.Host, c.User, c.Password, c.DBName, c.Port)
}

type ElasticsearchConfig struct {
	Addresses []string `yaml:"addresses"`
	Index     string   `yaml:"index"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type ExecutorConfig struct {
	Retry            retry.Policy  `yaml:"retry"`
	ExecutionTimeout time.Duration `yaml:"execution_timeout"`
}

type SchedulerConfig struct {
	Workers           int           `yaml:"workers"`
	Retry             retry.Policy  `yaml:"retry"`
	BatchConcurrency  int           `yaml:"batch_concurrency"`
	AnalysisRetention time.Duration `yaml:"analysis_retention"`
}

type MonitorConfig struct {
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures"`
	MaxQueueDepth          int `yaml:"max_queue_depth"`
}

type RiskConfig struct {
	// Weights 行业 → 类别 → 权重，覆盖内置权重表
	Weights map[string]map[string]float64 `yaml:"weights"`
}

// Load 读取 YAML 配置，文件不存在时使用默认值，之后应用环境变量覆盖
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	setDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Model.Provider = vars.GetEnv("MODEL_PROVIDER", cfg.Model.Provider)
	cfg.Model.Name = vars.GetEnv("MODEL_NAME", cfg.Model.Name)
	cfg.Model.APIKey = vars.GetEnv("OPENAI_API_KEY", cfg.Model.APIKey)
	if cfg.Model.BaseURL == "" || os.Getenv("OLLAMA_PATH") != "" {
		if cfg.Model.Provider == "" || cfg.Model.Provider == vars.ProviderOllama {
			cfg.Model.BaseURL = vars.GetEnv("OLLAMA_PATH", cfg.Model.BaseURL)
		}
	}

	cfg.Postgres.Host = vars.GetEnv("PGHOST", cfg.Postgres.Host)
	cfg.Postgres.User = vars.GetEnv("PGUSER", cfg.Postgres.User)
	cfg.Postgres.Password = vars.GetEnv("PGPWD", cfg.Postgres.Password)
	cfg.Postgres.DBName = vars.GetEnv("PGDB", cfg.Postgres.DBName)
	cfg.Postgres.Port = vars.GetEnv("PGPORT", cfg.Postgres.Port)

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
		cfg.Cache.Backend = vars.CacheRedis
	}
	if addr := os.Getenv("ESADDR"); addr != "" {
		cfg.Elasticsearch.Addresses = strings.Split(addr, ",")
	}

	cfg.Minio.Endpoint = vars.GetEnv("MINIO_ENDPOINT", cfg.Minio.Endpoint)
	cfg.Minio.AccessKey = vars.GetEnv("MINIO_ACCESS_KEY", cfg.Minio.AccessKey)
	cfg.Minio.SecretKey = vars.GetEnv("MINIO_SECRET_KEY", cfg.Minio.SecretKey)
	cfg.Minio.Bucket = vars.GetEnv("MINIO_BUCKET", cfg.Minio.Bucket)

	cfg.Server.APIKey = vars.GetEnv("API_KEY", cfg.Server.APIKey)
	cfg.Server.FileRoot = vars.GetEnv("FILE_ROOT", cfg.Server.FileRoot)
	if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil && port > 0 {
		cfg.Server.Port = port
	}
	cfg.Log.Level = vars.GetEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = vars.GetEnv("LOG_FORMAT", cfg.Log.Format)
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8081
	}
	if cfg.Server.RateLimitRPM == 0 {
		cfg.Server.RateLimitRPM = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.Model.Provider == "" {
		cfg.Model.Provider = vars.ProviderOllama
	}
	if cfg.Model.Name == "" {
		if cfg.Model.Provider == vars.ProviderOpenAI {
			cfg.Model.Name = vars.GPT4
		} else {
			cfg.Model.Name = vars.QWEN7B
		}
	}
	if cfg.Model.BaseURL == "" && cfg.Model.Provider == vars.ProviderOllama {
		cfg.Model.BaseURL = vars.OLLAMA_PATH
	}
	if cfg.Model.Timeout == 0 {
		cfg.Model.Timeout = 2 * time.Minute
	}
	if cfg.Model.MaxTokens == 0 {
		cfg.Model.MaxTokens = 2000
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = vars.CacheMemory
	}
	if cfg.Cache.ArtifactTTL == 0 {
		cfg.Cache.ArtifactTTL = vars.CacheTTLs[vars.ArtifactCache]
	}
	if cfg.Cache.TemplateTTL == 0 {
		cfg.Cache.TemplateTTL = vars.CacheTTLs[vars.TemplateCache]
	}

	if cfg.Postgres.Port == "" {
		cfg.Postgres.Port = "5432"
	}
	if cfg.Elasticsearch.Index == "" {
		cfg.Elasticsearch.Index = vars.IssueIndex
	}

	cfg.Executor.Retry = withRetryDefaults(cfg.Executor.Retry)
	if cfg.Executor.ExecutionTimeout == 0 {
		cfg.Executor.ExecutionTimeout = 5 * time.Minute
	}

	cfg.Scheduler.Retry = withRetryDefaults(cfg.Scheduler.Retry)
	if cfg.Scheduler.Workers == 0 {
		cfg.Scheduler.Workers = 4
	}
	if cfg.Scheduler.BatchConcurrency == 0 {
		cfg.Scheduler.BatchConcurrency = 4
	}
	if cfg.Scheduler.AnalysisRetention == 0 {
		cfg.Scheduler.AnalysisRetention = 90 * 24 * time.Hour
	}

	if cfg.Monitor.MaxConsecutiveFailures == 0 {
		cfg.Monitor.MaxConsecutiveFailures = 3
	}
	if cfg.Monitor.MaxQueueDepth == 0 {
		cfg.Monitor.MaxQueueDepth = 100
	}
}

func withRetryDefaults(p retry.Policy) retry.Policy {
	d := retry.DefaultPolicy()
	if p.MaxAttempts == 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.Base == 0 {
		p.Base = d.Base
	}
	if p.Factor == 0 {
		p.Factor = d.Factor
	}
	if p.Max == 0 {
		p.Max = d.Max
	}
	if p.Jitter == 0 {
		p.Jitter = d.Jitter
	}
	return p
}
