package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"paperagent/internal/domain"
)

const configPathEnv = "PAPER_AGENT_CONFIG"

// Config holds every setting the application needs. It is constructed once at
// process start and passed into component constructors; nothing else reads
// the environment.
type Config struct {
	Arxiv         ArxivConfig        `yaml:"arxiv"`
	LLM           LLMConfig          `yaml:"llm"`
	Notion        NotionConfig       `yaml:"notion"`
	Store         StoreConfig        `yaml:"store"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Logging       LoggingConfig      `yaml:"logging"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// ArxivConfig describes the search filter and recency window.
type ArxivConfig struct {
	Query       string   `yaml:"query"`
	MainQuery   string   `yaml:"mainQuery"`
	MaxResults  int      `yaml:"maxResults"`
	DaysBack    int      `yaml:"daysBack"`
	Categories  []string `yaml:"categories"`
	BaseURL     string   `yaml:"baseUrl"`
	ListingURLs []string `yaml:"listingUrls"`
}

// LLMConfig defines how to contact the generative-text API.
type LLMConfig struct {
	APIKey      string  `yaml:"apiKey"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"maxTokens"`
	TimeoutSecs int     `yaml:"timeoutSeconds"`
	Endpoint    string  `yaml:"endpoint"`
}

// NotionConfig wires the hosted database integration.
type NotionConfig struct {
	APIKey     string `yaml:"apiKey"`
	DatabaseID string `yaml:"databaseId"`
	PageSize   int    `yaml:"pageSize"`
	BaseURL    string `yaml:"baseUrl"`
}

// StoreConfig selects the record store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // notion or postgres
	DSN     string `yaml:"dsn"`
}

// SchedulerConfig defines the monitoring cadence.
type SchedulerConfig struct {
	Frequency      string   `yaml:"frequency"`
	Time           string   `yaml:"time"`
	Days           []string `yaml:"days"`
	CustomInterval int      `yaml:"customIntervalMinutes"`
}

// Schedule converts the raw settings into the domain cadence descriptor.
func (s SchedulerConfig) Schedule() domain.ScheduleConfig {
	return domain.ScheduleConfig{
		Frequency:      s.Frequency,
		Time:           s.Time,
		Days:           s.Days,
		CustomInterval: s.CustomInterval,
	}
}

// LoggingConfig controls level and file output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	FilePath   string `yaml:"filePath"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires the bot used for run summaries.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Load reads a .env file if present, then YAML configuration (if pointed at
// by PAPER_AGENT_CONFIG), then applies environment overrides on top of
// defaults.
func Load() Config {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			cfg = defaultConfig()
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// Validate reports fatal configuration problems: missing credentials and a
// malformed schedule. Everything else is allowed through loosely.
func (c Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("GOOGLE_API_KEY is required")
	}

	switch c.Store.Backend {
	case "notion":
		if c.Notion.APIKey == "" || c.Notion.DatabaseID == "" {
			return fmt.Errorf("NOTION_API_KEY and NOTION_DATABASE_ID are required for the notion backend")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if err := c.Scheduler.Schedule().Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	setString(&c.Arxiv.Query, "ARXIV_QUERY")
	setString(&c.Arxiv.MainQuery, "MAIN_QUERY")
	setInt(&c.Arxiv.MaxResults, "ARXIV_MAX_RESULTS")
	setInt(&c.Arxiv.DaysBack, "ARXIV_DAYS_BACK")
	setList(&c.Arxiv.Categories, "ARXIV_CATEGORIES")
	setString(&c.Arxiv.BaseURL, "ARXIV_BASE_URL")
	setList(&c.Arxiv.ListingURLs, "ARXIV_LISTING_URLS")

	setString(&c.LLM.APIKey, "GOOGLE_API_KEY")
	setString(&c.LLM.Model, "LLM_MODEL")
	setFloat(&c.LLM.Temperature, "LLM_TEMPERATURE")
	setInt(&c.LLM.MaxTokens, "LLM_MAX_TOKENS")
	setInt(&c.LLM.TimeoutSecs, "LLM_TIMEOUT")
	setString(&c.LLM.Endpoint, "LLM_ENDPOINT")

	setString(&c.Notion.APIKey, "NOTION_API_KEY")
	setString(&c.Notion.DatabaseID, "NOTION_DATABASE_ID")
	setInt(&c.Notion.PageSize, "NOTION_PAGE_SIZE")
	setString(&c.Notion.BaseURL, "NOTION_BASE_URL")

	setString(&c.Store.Backend, "STORE_BACKEND")
	setString(&c.Store.DSN, "DATABASE_DSN")

	setString(&c.Scheduler.Frequency, "SCHEDULER_FREQUENCY")
	setString(&c.Scheduler.Time, "SCHEDULER_TIME")
	setList(&c.Scheduler.Days, "SCHEDULER_DAYS")
	setInt(&c.Scheduler.CustomInterval, "SCHEDULER_CUSTOM_INTERVAL")

	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.FilePath, "LOG_FILE_PATH")
	setInt(&c.Logging.MaxSizeMB, "LOG_MAX_SIZE_MB")
	setInt(&c.Logging.MaxBackups, "LOG_BACKUP_COUNT")
	setInt(&c.Logging.MaxAgeDays, "LOG_RETENTION_DAYS")

	setString(&c.Notifications.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.Notifications.Telegram.ChatID, "TELEGRAM_CHAT_ID")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setList(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}

func defaultConfig() Config {
	return Config{
		Arxiv: ArxivConfig{
			Query:      `cat:cs.AI AND (abs:"scalable oversight" OR abs:"AI agents" OR abs:"agent oversight" OR abs:"supervision" OR abs:"alignment" OR abs:"AI safety")`,
			MainQuery:  "scalable oversight",
			MaxResults: 200,
			DaysBack:   1,
			Categories: []string{"cs.AI", "cs.LG", "cs.CL"},
			BaseURL:    "https://export.arxiv.org/api/query",
		},
		LLM: LLMConfig{
			Model:       "gemini-2.0-flash",
			Temperature: 0.3,
			MaxTokens:   1500,
			TimeoutSecs: 30,
			Endpoint:    "https://generativelanguage.googleapis.com",
		},
		Notion: NotionConfig{
			PageSize: 100,
			BaseURL:  "https://api.notion.com",
		},
		Store: StoreConfig{Backend: "notion"},
		Scheduler: SchedulerConfig{
			Frequency: domain.FrequencyDaily,
			Time:      "09:00",
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "logs/paper_agent.log",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}
