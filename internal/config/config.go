package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
	ListenAddr  string `yaml:"listenAddr"`  // HTTP 服务监听地址
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// ProviderConfig 描述单个模型提供商的接入参数。
type ProviderConfig struct {
	APIKey  string `yaml:"apiKey"`  // API 密钥
	Model   string `yaml:"model"`   // 模型名称
	BaseURL string `yaml:"baseURL"` // 服务基础 URL (可选)
}

// LLMConfig 包含了不同 LLM 提供商的配置。
type LLMConfig struct {
	Provider string         `yaml:"provider"` // LLM 提供商 (例如: "gemini", "openai")
	Gemini   ProviderConfig `yaml:"gemini"`   // Gemini 模型配置
	OpenAI   ProviderConfig `yaml:"openai"`   // OpenAI 模型配置
}

// EmbeddingConfig 包含了不同 Embedding 提供商的配置。
type EmbeddingConfig struct {
	Provider string         `yaml:"provider"` // Embedding 提供商 (例如: "gemini", "openai", "ollama")
	Gemini   ProviderConfig `yaml:"gemini"`   // Gemini 模型配置
	OpenAI   ProviderConfig `yaml:"openai"`   // OpenAI 模型配置
	Ollama   ProviderConfig `yaml:"ollama"`   // Ollama 模型配置
}

// RedisConfig 定义了 Redis 数据库的连接配置。
type RedisConfig struct {
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
}

// MySQLConfig 定义了 MySQL 数据库的连接配置。
type MySQLConfig struct {
	Address         string `yaml:"address"`         // MySQL 服务器地址
	Username        string `yaml:"username"`        // 用户名
	Password        string `yaml:"password"`        // 密码
	Database        string `yaml:"database"`        // 数据库名称
	MaxOpenConns    int    `yaml:"maxOpenConns"`    // 最大打开连接数
	MaxIdleConns    int    `yaml:"maxIdleConns"`    // 最大空闲连接数
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // 连接最大生命周期 (秒)
}

// MilvusConfig 定义了 Milvus 向量数据库的连接配置。
type MilvusConfig struct {
	Address        string `yaml:"address"`        // Milvus 服务地址
	FactCollection string `yaml:"factCollection"` // 记忆事实集合名称
	RagCollection  string `yaml:"ragCollection"`  // RAG 文档集合名称
	Dim            int    `yaml:"dim"`            // 向量维度
}

// Neo4jConfig 定义了 Neo4j 图数据库的连接配置。
type Neo4jConfig struct {
	Uri      string `yaml:"uri"`      // Neo4j 数据库URI (例如: "bolt://localhost:7687")
	Username string `yaml:"username"` // 用户名
	Password string `yaml:"password"` // 密码
	Database string `yaml:"database"` // 数据库名称
}

// KafkaConfig 定义了 Kafka 消息队列的连接配置。
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"` // 是否启用任务事件发布
	Brokers []string `yaml:"brokers"` // Kafka Broker 地址列表
	Topic   string   `yaml:"topic"`   // 任务事件主题
}

// DatabaseConfigs 包含所有数据库的配置。
type DatabaseConfigs struct {
	Redis  RedisConfig  `yaml:"redis"`  // Redis 数据库配置
	MySQL  MySQLConfig  `yaml:"mysql"`  // MySQL 数据库配置
	Milvus MilvusConfig `yaml:"milvus"` // Milvus 数据库配置
	Neo4j  Neo4jConfig  `yaml:"neo4j"`  // Neo4j 数据库配置
	Kafka  KafkaConfig  `yaml:"kafka"`  // Kafka 消息队列配置
}

// GoogleConfig 定义了访问 Google Calendar/Gmail 的 OAuth 配置。
type GoogleConfig struct {
	CredentialsFile string `yaml:"credentialsFile"` // OAuth 客户端凭据文件路径
	TokenFile       string `yaml:"tokenFile"`       // 已授权用户令牌文件路径
	CalendarID      string `yaml:"calendarID"`      // 默认日历 ID ("primary")
}

// PerplexityConfig 定义了 Perplexity 网络搜索的接入配置。
type PerplexityConfig struct {
	APIKey  string `yaml:"apiKey"`  // API 密钥
	Model   string `yaml:"model"`   // 模型名称 (例如: "sonar")
	BaseURL string `yaml:"baseURL"` // API 基础 URL
}

// NotionConfig 定义了 Notion 任务板的接入配置。
type NotionConfig struct {
	APIKey     string `yaml:"apiKey"`     // 集成令牌
	DatabaseID string `yaml:"databaseID"` // 任务数据库 ID
}

// TelegramConfig 定义了 Telegram 通知的接入配置。
type TelegramConfig struct {
	BotToken string `yaml:"botToken"` // Bot API 令牌
}

// IntegrationConfigs 包含所有外部服务适配器的配置。
type IntegrationConfigs struct {
	Google     GoogleConfig     `yaml:"google"`
	Perplexity PerplexityConfig `yaml:"perplexity"`
	Notion     NotionConfig     `yaml:"notion"`
	Telegram   TelegramConfig   `yaml:"telegram"`
}

// OrchestratorConfig 定义了请求编排管道的调优参数。
type OrchestratorConfig struct {
	RouterThreshold    float64 `yaml:"routerThreshold"`    // 语义路由相似度阈值
	PlannerMaxSteps    int     `yaml:"plannerMaxSteps"`    // 规划器最大步骤数
	MemoryLimit        int     `yaml:"memoryLimit"`        // 每轮检索的记忆条数上限
	ExtractionLimit    int     `yaml:"extractionLimit"`    // 后台事实提取并发上限
	CacheTTLCalendar   int     `yaml:"cacheTTLCalendar"`   // 日历缓存 TTL (秒)
	CacheTTLEmail      int     `yaml:"cacheTTLEmail"`      // 邮件缓存 TTL (秒)
	CacheTTLWeb        int     `yaml:"cacheTTLWeb"`        // 网络搜索缓存 TTL (秒)
}

// WorkerConfig 定义了后台任务工作进程的调优参数。
type WorkerConfig struct {
	WorkerID            string  `yaml:"workerID"`            // 工作进程标识 (为空则自动生成)
	PollIntervalActive  float64 `yaml:"pollIntervalActive"`  // 有任务时的轮询间隔 (秒)
	PollIntervalIdle    float64 `yaml:"pollIntervalIdle"`    // 空闲时的轮询间隔 (秒)
	StaleTimeoutMinutes int     `yaml:"staleTimeoutMinutes"` // 任务被视为僵死的超时 (分钟)
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App          AppInfo            `yaml:"app"`          // 应用程序信息
	Logger       LoggerConfig       `yaml:"logger"`       // 日志记录器配置
	LLM          LLMConfig          `yaml:"llm"`          // LLM 配置部分
	Embedding    EmbeddingConfig    `yaml:"embedding"`    // Embedding 配置部分
	Databases    DatabaseConfigs    `yaml:"databases"`    // 数据库配置
	Integrations IntegrationConfigs `yaml:"integrations"` // 外部服务配置
	Orchestrator OrchestratorConfig `yaml:"orchestrator"` // 编排管道配置
	Worker       WorkerConfig       `yaml:"worker"`       // 工作进程配置
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件。
//
// 参数:
//
//	path: YAML 配置文件的路径。
//
// 返回值:
//
//	*AppConfig: 解析后的应用程序配置结构体。
//	error: 如果文件读取或解析失败，则返回错误。
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(yamlFile, cfg); err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}
	return cfg, nil
}

// defaultConfig 返回填充了调优参数默认值的配置。
func defaultConfig() *AppConfig {
	return &AppConfig{
		Logger: LoggerConfig{Level: "info"},
		Orchestrator: OrchestratorConfig{
			RouterThreshold:  0.75,
			PlannerMaxSteps:  3,
			MemoryLimit:      5,
			ExtractionLimit:  3,
			CacheTTLCalendar: 300,
			CacheTTLEmail:    60,
			CacheTTLWeb:      3600,
		},
		Worker: WorkerConfig{
			PollIntervalActive:  0.5,
			PollIntervalIdle:    1.0,
			StaleTimeoutMinutes: 30,
		},
	}
}
