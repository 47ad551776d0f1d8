package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverMongo  = "mongo"
	StoreDriverSQLite = "sqlite"
)

// Config represents application configuration
type Config struct {
	// Feishu transport configuration
	Feishu FeishuConfig

	// Bot identity
	Bot BotConfig

	// Generation provider configuration
	Provider ProviderConfig

	// Conversation store configuration
	Store StoreConfig

	// Context configuration
	Context ContextConfig

	// Prompts configuration (loaded from YAML)
	Prompts *PromptsConfig

	// Admin API configuration
	API APIConfig

	// Debug mode
	Debug bool
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID         string
	AppSecret     string
	ReplyInGroups bool // Quote the original message when replying in groups
}

// BotConfig contains the bot's identity
type BotConfig struct {
	Names  []string // Display names and aliases, used by the pattern fallback
	UserID string   // Bot's own transport id, used for mention checks
}

// ProviderConfig contains generation backend configuration
type ProviderConfig struct {
	Client  string // open-ai, gen-ai, ollama
	Timeout time.Duration
	OpenAI  OpenAIConfig
	Gemini  GeminiConfig
	Ollama  OllamaConfig
}

// OpenAIConfig contains OpenAI-compatible backend configuration
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// GeminiConfig contains Google Gemini configuration
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string // optional endpoint override
}

// OllamaConfig contains Ollama configuration
type OllamaConfig struct {
	Host   string
	Model  string
	APIKey string
}

// StoreConfig contains conversation store configuration
type StoreConfig struct {
	Driver        string
	MongoURI      string
	MongoDatabase string
	SQLitePath    string
	Retention     time.Duration
}

// ContextConfig contains context window and knowledge configuration
type ContextConfig struct {
	Window       int
	KnowledgeDir string
}

// APIConfig contains admin API configuration
type APIConfig struct {
	Port int // 0 disables the API
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// SQLite path
	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		homeDir, _ := os.UserHomeDir()
		sqlitePath = filepath.Join(homeDir, ".flatpee-bot", "history.db")
	}

	// Knowledge directory
	knowledgeDir := os.Getenv("KNOWLEDGE_DIR")
	if knowledgeDir == "" {
		knowledgeDir = "./knowledge"
	}

	// Load prompts from YAML
	promptsConfigPath := os.Getenv("PROMPTS_CONFIG_PATH")
	promptsConfig, err := LoadPromptsConfig(promptsConfigPath)
	if err != nil {
		fmt.Printf("[Config] %v, using defaults\n", err)
		promptsConfig = DefaultPromptsConfig()
	}

	// Override history window from env if specified
	if window := envInt("HISTORY_WINDOW", 0); window > 0 {
		promptsConfig.History.Window = window
	}

	return &Config{
		Feishu: FeishuConfig{
			AppID:         os.Getenv("FEISHU_APP_ID"),
			AppSecret:     os.Getenv("FEISHU_APP_SECRET"),
			ReplyInGroups: os.Getenv("REPLY_IN_GROUPS") == "true",
		},
		Bot: BotConfig{
			Names:  splitList(os.Getenv("BOT_NAME")),
			UserID: os.Getenv("CURRENT_USER_ID"),
		},
		Provider: ProviderConfig{
			Client:  envString("CLIENT", "ollama"),
			Timeout: time.Duration(envInt("GENERATION_TIMEOUT_SECONDS", 60)) * time.Second,
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				BaseURL: os.Getenv("OPENAI_BASE_URL"),
				Model:   envString("OPENAI_MODEL", "gpt-3.5-turbo"),
			},
			Gemini: GeminiConfig{
				APIKey:  os.Getenv("GEN_API_KEY"),
				Model:   envString("GEN_AI_MODEL", "gemini-2.5-flash"),
				BaseURL: os.Getenv("GEN_AI_BASE_URL"),
			},
			Ollama: OllamaConfig{
				Host:   envString("OLLAMA_HOST", "http://localhost:11434"),
				Model:  envString("OLLAMA_MODEL", "tinyllama"),
				APIKey: os.Getenv("OLLAMA_API_KEY"),
			},
		},
		Store: StoreConfig{
			Driver:        envString("STORE_DRIVER", StoreDriverMongo),
			MongoURI:      os.Getenv("MONGODB_URI"),
			MongoDatabase: envString("MONGODB_DATABASE", "whatsapp_bot"),
			SQLitePath:    sqlitePath,
			Retention:     time.Duration(envInt("RETENTION_DAYS", 30)) * 24 * time.Hour,
		},
		Context: ContextConfig{
			Window:       promptsConfig.History.Window,
			KnowledgeDir: knowledgeDir,
		},
		Prompts: promptsConfig,
		API: APIConfig{
			Port: envInt("API_PORT", 9876),
		},
		Debug: os.Getenv("DEBUG") == "true",
	}
}

// Validate validates the configuration for the bot process
func (c *Config) Validate() error {
	if err := c.ValidateStore(); err != nil {
		return err
	}
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
	}
	if c.Context.Window <= 0 {
		return &ConfigError{Field: "HISTORY_WINDOW", Message: "must be positive"}
	}
	return nil
}

// ValidateStore validates only the store settings
// Serving without the store is not supported, so a missing connection string is fatal
func (c *Config) ValidateStore() error {
	switch c.Store.Driver {
	case StoreDriverMongo:
		if c.Store.MongoURI == "" {
			return &ConfigError{Field: "MONGODB_URI", Message: "required"}
		}
	case StoreDriverSQLite:
		if c.Store.SQLitePath == "" {
			return &ConfigError{Field: "SQLITE_PATH", Message: "required"}
		}
	default:
		return &ConfigError{Field: "STORE_DRIVER", Message: "unknown driver " + c.Store.Driver}
	}
	if c.Store.Retention <= 0 {
		return &ConfigError{Field: "RETENTION_DAYS", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func envString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
