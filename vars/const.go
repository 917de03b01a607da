package vars

import (
	"os"
	"time"
)

// GetEnv 获取环境变量，如果不存在则返回默认值
func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

const (
	// 模型名称
	DEEPSEEKR1 = "deepseek-r1:7b"
	QWEN7B     = "qwen2.5:7b"
	QWEN3B     = "qwen2.5:3b"
	GPT4       = "gpt-4"

	// 模型提供方
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	// 缓存后端
	CacheMemory = "memory"
	CacheRedis  = "redis"

	// ES 索引名称
	IssueIndex = "contract_issues_v1"

	// 上传文件大小上限 10MB
	MaxUploadSize = 10 << 20
)

// 缓存名称
const (
	ArtifactCache = "artifact-cache"
	TemplateCache = "template-cache"
)

// CacheTTLs 缓存 TTL 静态表
var CacheTTLs = map[string]time.Duration{
	ArtifactCache: 3600 * time.Second,
	TemplateCache: 1800 * time.Second,
}

// 环境变量配置（支持 Docker 部署）
var (
	// OLLAMA
	OLLAMA_PATH = GetEnv("OLLAMA_PATH", "http://localhost:11434")

	// PG
	PGUSER = GetEnv("PGUSER", "root")
	PGPWD  = GetEnv("PGPWD", "")
	PGDB   = GetEnv("PGDB", "contractDB")
	PGHOST = GetEnv("PGHOST", "")
	PGPORT = GetEnv("PGPORT", "5432")

	// Redis
	REDISADDR = GetEnv("REDIS_ADDR", "")

	// ES
	ESADDR = GetEnv("ESADDR", "")

	// 提示词
	ANALYZE = `
You are an expert contract analyst specializing in {{.Industry}} industry contracts.
Analyze the contract for the following risk categories: {{.Categories}}.

For every risk you find, output exactly one line containing a JSON object:
{"type":"issue","category":"<one of: {{.Categories}}>","severity":"<low|medium|high|critical>","title":"<short title>","description":"<what is wrong>","suggested_fix":"<how to fix it>","risk_score":<0-100>,"confidence":<0-100>}

After all issues, output one final line:
{"type":"summary","summary":"<overall assessment>","recommendations":["<recommendation>", "..."]}

Rules:
1. One JSON object per line. No markdown, no code fences, no text outside JSON lines.
2. Be specific: quote or reference the clause each issue is about.
3. risk_score reflects the potential impact on the {{.Industry}} business (0 = none, 100 = severe).
4. If there are no issues, output only the summary line.

Current date: {{.CurrentDate}}
`
)
