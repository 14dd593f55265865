package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CovenantBits/Covforge/src/internal/ai"
)

func TestAPIKeyManagerFiltersEmptyKeys(t *testing.T) {
	m := NewAPIKeyManager([]string{"", "key-a", "", "key-b"}, "fallback")
	require.True(t, m.HasKeys())
	assert.Equal(t, 2, m.GetKeyCount())
	assert.Contains(t, []string{"key-a", "key-b"}, m.GetKey())
}

func TestAPIKeyManagerFallback(t *testing.T) {
	m := NewAPIKeyManager(nil, "only-key")
	require.True(t, m.HasKeys())
	assert.Equal(t, 1, m.GetKeyCount())
	assert.Equal(t, "only-key", m.GetKey())
	assert.Equal(t, "only-key", m.GetNextKey())
	assert.Equal(t, "only-key", m.GetRandomKey())
}

func TestAPIKeyManagerNoKeys(t *testing.T) {
	m := NewAPIKeyManager([]string{"", ""}, "")
	assert.Nil(t, m)
	assert.False(t, m.HasKeys())
	assert.Zero(t, m.GetKeyCount())
	assert.Empty(t, m.GetKey())
	assert.Empty(t, m.GetNextKey())
	assert.Empty(t, m.GetRandomKey())
}

func TestAPIKeyManagerRotation(t *testing.T) {
	keys := []string{"k1", "k2", "k3"}
	m := NewAPIKeyManager(keys, "")

	seen := map[string]bool{}
	for i := 0; i < len(keys); i++ {
		seen[m.GetNextKey()] = true
	}
	assert.Len(t, seen, 3, "rotation cycles through every key")

	// GetNextKey advances; GetKey repeats the current key.
	current := m.GetKey()
	assert.Equal(t, current, m.GetKey())
	assert.Contains(t, keys, m.GetRandomKey())
}

func TestApplyDefaults(t *testing.T) {
	var c AppConfig
	c.applyDefaults()

	assert.Equal(t, 2, c.Engine.GenRetries)
	assert.Equal(t, 2, c.Engine.LintRetries)
	assert.Equal(t, 3, c.Engine.FixRetries)
	assert.Equal(t, "cashc", c.Compiler.Binary)
	assert.Equal(t, 10, c.Compiler.TimeoutSeconds)
	assert.Equal(t, "knowledge", c.Knowledge.Path)
	assert.Equal(t, "benchmark/dataset.json", c.Benchmark.Dataset)
	assert.Equal(t, 4, c.Benchmark.Concurrency)
	assert.Equal(t, "reports", c.Reports.Dir)
	assert.NotEmpty(t, c.Scoring.Penalties)
	assert.NotEmpty(t, c.Scoring.SemanticPoints)
	assert.Equal(t, 20, c.Scoring.DisplayFloor)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	c := AppConfig{
		Engine:   EngineConfig{GenRetries: 5, LintRetries: 1, FixRetries: 7},
		Compiler: CompilerConfig{Binary: "/opt/cashc", TimeoutSeconds: 30},
	}
	c.applyDefaults()

	assert.Equal(t, 5, c.Engine.GenRetries)
	assert.Equal(t, 1, c.Engine.LintRetries)
	assert.Equal(t, 7, c.Engine.FixRetries)
	assert.Equal(t, "/opt/cashc", c.Compiler.Binary)
	assert.Equal(t, 30, c.Compiler.TimeoutSeconds)
}

func TestValidateAcceptsKnownChains(t *testing.T) {
	c := AppConfig{AI: AIConfig{
		Tasks: map[string][]ai.TaskConfig{
			"generate": {{Provider: "openrouter", Model: "some/model"}},
			"intent":   {{Provider: "groq", Model: "fast-model"}},
			"fix":      {{Provider: "ollama"}},
		},
	}}
	assert.NoError(t, c.Validate())
}

func TestValidateRejectsUnknownTask(t *testing.T) {
	c := AppConfig{AI: AIConfig{
		Tasks: map[string][]ai.TaskConfig{
			"summarize": {{Provider: "openai", Model: "m"}},
		},
	}}
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown task")
}

func TestValidateRejectsEmptyChain(t *testing.T) {
	c := AppConfig{AI: AIConfig{
		Tasks: map[string][]ai.TaskConfig{"generate": {}},
	}}
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty provider chain")
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	c := AppConfig{AI: AIConfig{
		Tasks: map[string][]ai.TaskConfig{
			"generate": {{Provider: "carrier-pigeon", Model: "m"}},
		},
	}}
	assert.Error(t, c.Validate())
}

func TestValidateRequiresModelForHostedProviders(t *testing.T) {
	c := AppConfig{AI: AIConfig{
		Tasks: map[string][]ai.TaskConfig{
			"generate": {{Provider: "openai"}},
		},
	}}
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no model")
}

func TestTaskChainFallsBackToGenerate(t *testing.T) {
	generateChain := []ai.TaskConfig{{Provider: "openrouter", Model: "big/model"}}
	c := AppConfig{AI: AIConfig{
		Tasks: map[string][]ai.TaskConfig{
			"generate": generateChain,
			"intent":   {{Provider: "groq", Model: "small"}},
		},
	}}

	assert.Equal(t, "groq", c.TaskChain(ai.TaskIntent)[0].Provider)
	assert.Equal(t, generateChain, c.TaskChain(ai.TaskRepair), "unconfigured tasks reuse the generate chain")
}

func TestProviderSettings(t *testing.T) {
	c := AppConfig{AI: AIConfig{
		Providers: map[string]ProviderConfig{
			"openrouter": {
				APIKey:         "sk-single",
				BaseURL:        "https://example.test/v1",
				Proxy:          "socks5://127.0.0.1:1080",
				TimeoutSeconds: 45,
			},
			"groq": {
				APIKeys: []string{"k1", "k2"},
			},
		},
	}}

	ps := c.ProviderSettings("openrouter")
	assert.Equal(t, "sk-single", ps.APIKey)
	assert.Equal(t, "https://example.test/v1", ps.BaseURL)
	assert.Equal(t, "socks5://127.0.0.1:1080", ps.Proxy)
	assert.Equal(t, 45*time.Second, ps.Timeout)

	assert.Contains(t, []string{"k1", "k2"}, c.ProviderSettings("groq").APIKey)
	assert.Empty(t, c.ProviderSettings("missing").APIKey)
}

func TestGetDatabaseDSN(t *testing.T) {
	c := AppConfig{Database: DatabaseConfig{
		Host: "127.0.0.1", Port: "3306", User: "covforge", Password: "secret", Name: "covforge",
	}}
	assert.Equal(t,
		"covforge:secret@tcp(127.0.0.1:3306)/covforge?parseTime=true&charset=utf8mb4",
		c.GetDatabaseDSN())
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	assert.Empty(t, GetConfigPath())
	assert.Equal(t, "config", GetConfigDir())

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "settings.yaml"), []byte("engine:\n  gen_retries: 2\n"), 0o644))
	assert.Equal(t, "config/settings.yaml", GetConfigPath())
	assert.Equal(t, "config", GetConfigDir())
}
