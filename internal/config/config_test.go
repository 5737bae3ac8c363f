package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "evidence.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "evidence", cfg.Store.MongoDatabase)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "google", cfg.Search.Provider)
	assert.Equal(t, "Environmental Report", cfg.Search.Topic)
	assert.Equal(t, []string{"pdf"}, cfg.Search.Filetypes)
	assert.Equal(t, 3, cfg.Search.MaxResults)
	assert.Equal(t, "https://s.jina.ai", cfg.Search.JinaSearchBaseURL)
	assert.Equal(t, "gemini", cfg.Answer.Provider)
	assert.Equal(t, "gemini-1.5-flash-001", cfg.Answer.GeminiModel)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Answer.AnthropicModel)
	assert.Equal(t, int64(1024), cfg.Answer.MaxTokens)
	assert.Equal(t, 5, cfg.Answer.BreakerFailures)
	assert.Equal(t, int64(7_000_000), cfg.Download.PerDocumentBytes)
	assert.Equal(t, int64(3_000_000), cfg.Download.SoftCapBytes)
	assert.Equal(t, int64(10_000_000), cfg.Download.HardCapBytes)
	assert.Equal(t, int64(100_000), cfg.Download.PenaltyBytes)
	assert.Equal(t, int64(100_000_000), cfg.Download.UnknownSizeBytes)
	assert.Equal(t, 1, cfg.Download.Workers)
	assert.Equal(t, "What are the key impacts of this company?", cfg.Download.Question)
	assert.InDelta(t, 5.0, cfg.Download.RatePerHost, 0.001)
	assert.Equal(t, 600, cfg.Download.ComputeTimeoutSecs)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/evidence
log:
  level: debug
  format: console
server:
  port: 9090
download:
  workers: 4
pricing:
  claude-opus-4-1-20250805:
    input: 1.25
    output: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/evidence", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Download.Workers)
	assert.InDelta(t, 1.25, cfg.Pricing["claude-opus-4-1-20250805"].Input, 0.001)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Search.MaxResults)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("EVIDENCE_STORE_DRIVER", "mongo")
	t.Setenv("EVIDENCE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mongo", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvSecrets(t *testing.T) {
	chdirTemp(t)
	t.Setenv("EVIDENCE_ANSWER_GEMINI_KEY", "gm-key")
	t.Setenv("EVIDENCE_SEARCH_GOOGLE_CX", "cx-id")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gm-key", cfg.Answer.GeminiKey)
	assert.Equal(t, "cx-id", cfg.Search.GoogleCX)
}

func TestLoadBadFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config that passes validation for every mode.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "evidence.db"
	cfg.Search.Provider = "google"
	cfg.Search.GoogleKey = "g-key"
	cfg.Search.GoogleCX = "cx"
	cfg.Search.MaxResults = 3
	cfg.Answer.Provider = "gemini"
	cfg.Answer.GeminiKey = "gm-key"
	cfg.Download.PerDocumentBytes = 7_000_000
	cfg.Download.SoftCapBytes = 3_000_000
	cfg.Download.HardCapBytes = 10_000_000
	cfg.Download.PenaltyBytes = 100_000
	cfg.Download.Workers = 1
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_AllPresent(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"serve", "lookup", "cache"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidateLookup_MissingCredentials(t *testing.T) {
	cfg := validDefaults()
	cfg.Search.GoogleKey = ""
	cfg.Search.GoogleCX = ""
	cfg.Answer.GeminiKey = ""

	err := cfg.Validate("lookup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search.google_key is required")
	assert.Contains(t, err.Error(), "search.google_cx is required")
	assert.Contains(t, err.Error(), "answer.gemini_key is required")
}

func TestValidate_ProviderSpecificKeys(t *testing.T) {
	cfg := validDefaults()
	cfg.Search.Provider = "jina"
	cfg.Answer.Provider = "anthropic"

	err := cfg.Validate("lookup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search.jina_key is required")
	assert.Contains(t, err.Error(), "answer.anthropic_key is required")

	cfg.Search.JinaKey = "j"
	cfg.Answer.AnthropicKey = "a"
	assert.NoError(t, cfg.Validate("lookup"))
}

func TestValidate_UnknownProviders(t *testing.T) {
	cfg := validDefaults()
	cfg.Search.Provider = "bing"
	cfg.Answer.Provider = "ollama"
	cfg.Store.Driver = "redis"

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `search.provider "bing"`)
	assert.Contains(t, err.Error(), `answer.provider "ollama"`)
	assert.Contains(t, err.Error(), `store.driver "redis"`)
}

func TestValidate_CapOrdering(t *testing.T) {
	cfg := validDefaults()
	cfg.Download.SoftCapBytes = 20_000_000

	err := cfg.Validate("lookup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "soft_cap_bytes must be <= download.hard_cap_bytes")

	cfg = validDefaults()
	cfg.Download.PerDocumentBytes = 0
	err = cfg.Validate("lookup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "download caps must be > 0")
}

func TestValidate_WorkerBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Download.Workers = 0
	assert.ErrorContains(t, cfg.Validate("serve"), "download.workers must be between 1 and 16")

	cfg.Download.Workers = 17
	assert.ErrorContains(t, cfg.Validate("serve"), "download.workers must be between 1 and 16")

	cfg.Download.Workers = 16
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	assert.NoError(t, cfg.Validate("lookup"))
}

func TestValidateCache_OnlyNeedsStore(t *testing.T) {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "evidence.db"
	assert.NoError(t, cfg.Validate("cache"))

	cfg.Store.DatabaseURL = ""
	assert.Error(t, cfg.Validate("cache"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
