package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

type BackendKind string

const (
	BackendDirect BackendKind = "direct"
	BackendTool   BackendKind = "tool"
)

type StorageDriver string

const (
	DriverSQLite StorageDriver = "sqlite"
	DriverFile   StorageDriver = "file"
)

type Config struct {
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN,required"`
	AdminUserID      int64  `env:"ADMIN_USER"`

	// Classifier LLM
	ClassifierProvider LLMProvider `env:"CLASSIFIER_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey       string      `env:"OPENAI_API_KEY"`
	OpenAIBaseURL      string      `env:"OPENAI_BASE_URL"`
	OpenAIModel        string      `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`
	YandexOAuthToken   string      `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID     string      `env:"YANDEX_FOLDER_ID"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Conversation backend
	ConversationBackend BackendKind   `env:"CONVERSATION_BACKEND" envDefault:"direct"`
	AgentURL            string        `env:"AGENT_URL" envDefault:"http://127.0.0.1:8888"`
	AgentAPIKey         string        `env:"AGENT_API_KEY"`
	AgentTimeout        time.Duration `env:"AGENT_TIMEOUT" envDefault:"120s"`
	MCPServerPath       string        `env:"MCP_SERVER_PATH" envDefault:"./agent-mcp-server"`
	MCPServerArgs       []string      `env:"MCP_SERVER_ARGS" envSeparator:" "`

	// Storage
	StorageDriver StorageDriver `env:"STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath    string        `env:"SQLITE_PATH" envDefault:"data/bot.db"`
	DataDir       string        `env:"DATA_DIR" envDefault:"data"`

	// Pipeline limits
	HistoryLimit int `env:"HISTORY_LIMIT" envDefault:"10"`
	ChunkSize    int `env:"CHUNK_SIZE" envDefault:"4000"`
	TruncateAt   int `env:"TRUNCATE_AT" envDefault:"4050"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Daily report, UTC cron spec
	ReportCron string `env:"REPORT_CRON" envDefault:"0 21 * * *"`

	Prompts Prompts
}

func Load() (*Config, error) {
	cfg := &Config{Prompts: DefaultPrompts()}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.ClassifierProvider {
	case ProviderOpenAI, ProviderYandex:
	default:
		return fmt.Errorf("unknown classifier provider: %s", c.ClassifierProvider)
	}
	switch c.ConversationBackend {
	case BackendDirect, BackendTool:
	default:
		return fmt.Errorf("unknown conversation backend: %s", c.ConversationBackend)
	}
	switch c.StorageDriver {
	case DriverSQLite, DriverFile:
	default:
		return fmt.Errorf("unknown storage driver: %s", c.StorageDriver)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be positive, got %d", c.HistoryLimit)
	}
	if c.ChunkSize <= 0 || c.TruncateAt <= 0 {
		return fmt.Errorf("CHUNK_SIZE and TRUNCATE_AT must be positive")
	}
	return nil
}
