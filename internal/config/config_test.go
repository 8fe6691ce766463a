package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperagent/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "scalable oversight", cfg.Arxiv.MainQuery)
	assert.Equal(t, 200, cfg.Arxiv.MaxResults)
	assert.Equal(t, 1, cfg.Arxiv.DaysBack)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.Equal(t, "notion", cfg.Store.Backend)
	assert.Equal(t, domain.FrequencyDaily, cfg.Scheduler.Frequency)
	assert.Equal(t, "09:00", cfg.Scheduler.Time)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MAIN_QUERY", "weak supervision")
	t.Setenv("ARXIV_MAX_RESULTS", "50")
	t.Setenv("ARXIV_CATEGORIES", "cs.AI, cs.CR")
	t.Setenv("LLM_TEMPERATURE", "0.7")
	t.Setenv("SCHEDULER_FREQUENCY", "weekly")
	t.Setenv("SCHEDULER_DAYS", "monday,thursday")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DATABASE_DSN", "postgres://localhost/papers")

	cfg := Load()

	assert.Equal(t, "weak supervision", cfg.Arxiv.MainQuery)
	assert.Equal(t, 50, cfg.Arxiv.MaxResults)
	assert.Equal(t, []string{"cs.AI", "cs.CR"}, cfg.Arxiv.Categories)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 0.001)
	assert.Equal(t, "weekly", cfg.Scheduler.Frequency)
	assert.Equal(t, []string{"monday", "thursday"}, cfg.Scheduler.Days)
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, "postgres://localhost/papers", cfg.Store.DSN)
}

func TestLoadIgnoresMalformedNumericEnv(t *testing.T) {
	t.Setenv("ARXIV_MAX_RESULTS", "lots")
	t.Setenv("LLM_TEMPERATURE", "warm")

	cfg := Load()

	assert.Equal(t, 200, cfg.Arxiv.MaxResults)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 0.001)
}

func TestValidateRequiresLLMKey(t *testing.T) {
	cfg := defaultConfig()
	cfg.Notion.APIKey = "notion-key"
	cfg.Notion.DatabaseID = "db"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_API_KEY")
}

func TestValidateNotionBackendNeedsCredentials(t *testing.T) {
	cfg := defaultConfig()
	cfg.LLM.APIKey = "llm-key"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOTION_API_KEY")
}

func TestValidatePostgresBackendNeedsDSN(t *testing.T) {
	cfg := defaultConfig()
	cfg.LLM.APIKey = "llm-key"
	cfg.Store.Backend = "postgres"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_DSN")
}

func TestValidateUnknownBackend(t *testing.T) {
	cfg := defaultConfig()
	cfg.LLM.APIKey = "llm-key"
	cfg.Store.Backend = "sqlite"

	assert.Error(t, cfg.Validate())
}

func TestValidateBadSchedule(t *testing.T) {
	cfg := defaultConfig()
	cfg.LLM.APIKey = "llm-key"
	cfg.Notion.APIKey = "notion-key"
	cfg.Notion.DatabaseID = "db"
	cfg.Scheduler.Frequency = "hourly"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduler")
}

func TestValidateAccepts(t *testing.T) {
	cfg := defaultConfig()
	cfg.LLM.APIKey = "llm-key"
	cfg.Notion.APIKey = "notion-key"
	cfg.Notion.DatabaseID = "db"

	assert.NoError(t, cfg.Validate())
}
