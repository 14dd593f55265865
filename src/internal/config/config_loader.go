package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/CovenantBits/Covforge/src/internal/ai"
	"github.com/CovenantBits/Covforge/src/internal/scoring"
)

type ProviderConfig struct {
	APIKey         string   `yaml:"api_key"`
	APIKeys        []string `yaml:"api_keys"`
	BaseURL        string   `yaml:"base_url"`
	Proxy          string   `yaml:"proxy"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

type AIConfig struct {
	Providers map[string]ProviderConfig  `yaml:"providers"`
	Tasks     map[string][]ai.TaskConfig `yaml:"tasks"`
}

type EngineConfig struct {
	GenRetries  int `yaml:"gen_retries"`
	LintRetries int `yaml:"lint_retries"`
	FixRetries  int `yaml:"fix_retries"`
}

type CompilerConfig struct {
	Binary         string `yaml:"binary"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type KnowledgeConfig struct {
	Path string `yaml:"path"`
}

type BenchmarkConfig struct {
	Dataset     string `yaml:"dataset"`
	Concurrency int    `yaml:"concurrency"`
}

type ReportConfig struct {
	Dir string `yaml:"dir"`
}

type AppConfig struct {
	AI        AIConfig        `yaml:"ai"`
	Engine    EngineConfig    `yaml:"engine"`
	Compiler  CompilerConfig  `yaml:"compiler"`
	Scoring   scoring.Config  `yaml:"scoring"`
	Database  DatabaseConfig  `yaml:"database"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Benchmark BenchmarkConfig `yaml:"benchmark"`
	Reports   ReportConfig    `yaml:"reports"`
}

var GlobalConfig *AppConfig
var loadOnce sync.Once
var loadedConfig *AppConfig
var loadedErr error

// LoadConfig reads settings.yaml once and caches the result. Secrets may
// reference environment variables with ${VAR}; a .env file in the working
// directory is loaded first when present.
func LoadConfig() (*AppConfig, error) {
	loadOnce.Do(func() {
		_ = godotenv.Load()

		configPath := findConfigFile()
		if configPath == "" {
			loadedErr = fmt.Errorf("the configuration file settings.yaml was not found")
			return
		}

		data, err := os.ReadFile(configPath)
		if err != nil {
			loadedErr = fmt.Errorf("failed to read configuration file: %w", err)
			return
		}

		var config AppConfig
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
			loadedErr = fmt.Errorf("failed to parse configuration file: %w", err)
			return
		}
		config.applyDefaults()

		if err := config.Validate(); err != nil {
			loadedErr = err
			return
		}

		loadedConfig = &config
		GlobalConfig = loadedConfig
	})

	if loadedErr != nil {
		return nil, loadedErr
	}
	return loadedConfig, nil
}

func findConfigFile() string {
	possiblePaths := []string{
		"config/settings.yaml",
		"settings.yaml",
		"src/config/settings.yaml",
		"../config/settings.yaml",
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

func (c *AppConfig) applyDefaults() {
	if c.Engine.GenRetries == 0 {
		c.Engine.GenRetries = 2
	}
	if c.Engine.LintRetries == 0 {
		c.Engine.LintRetries = 2
	}
	if c.Engine.FixRetries == 0 {
		c.Engine.FixRetries = 3
	}
	if c.Compiler.Binary == "" {
		c.Compiler.Binary = "cashc"
	}
	if c.Compiler.TimeoutSeconds == 0 {
		c.Compiler.TimeoutSeconds = 10
	}
	if c.Knowledge.Path == "" {
		c.Knowledge.Path = "knowledge"
	}
	if c.Benchmark.Dataset == "" {
		c.Benchmark.Dataset = "benchmark/dataset.json"
	}
	if c.Benchmark.Concurrency == 0 {
		c.Benchmark.Concurrency = 4
	}
	if c.Reports.Dir == "" {
		c.Reports.Dir = "reports"
	}

	defaults := scoring.DefaultConfig()
	if c.Scoring.Penalties == nil {
		c.Scoring.Penalties = defaults.Penalties
	}
	if c.Scoring.SemanticPoints == nil {
		c.Scoring.SemanticPoints = defaults.SemanticPoints
	}
	if c.Scoring.DisplayFloor == 0 {
		c.Scoring.DisplayFloor = defaults.DisplayFloor
	}
	if c.Scoring.DeployDetMin == 0 {
		c.Scoring.DeployDetMin = defaults.DeployDetMin
	}
	if c.Scoring.DeployDisplayMin == 0 {
		c.Scoring.DeployDisplayMin = defaults.DeployDisplayMin
	}
}

// Validate rejects chains that name unknown tasks or providers before any
// oracle construction happens.
func (c *AppConfig) Validate() error {
	known := make(map[string]bool, len(ai.Tasks()))
	for _, task := range ai.Tasks() {
		known[string(task)] = true
	}

	for task, chain := range c.AI.Tasks {
		if !known[task] {
			return fmt.Errorf("unknown task %q in ai.tasks", task)
		}
		if len(chain) == 0 {
			return fmt.Errorf("task %q has an empty provider chain", task)
		}
		for _, entry := range chain {
			if err := ai.ValidateProvider(entry.Provider); err != nil {
				return fmt.Errorf("task %q: %w", task, err)
			}
			if entry.Model == "" && entry.Provider != "local" && entry.Provider != "ollama" {
				return fmt.Errorf("task %q: provider %q has no model", task, entry.Provider)
			}
		}
	}
	return nil
}

// TaskChain returns the configured chain for a task, falling back to the
// generate chain so a sparse config still covers every stage.
func (c *AppConfig) TaskChain(task ai.Task) []ai.TaskConfig {
	if chain, ok := c.AI.Tasks[string(task)]; ok && len(chain) > 0 {
		return chain
	}
	return c.AI.Tasks[string(ai.TaskGenerate)]
}

// ProviderSettings resolves credentials and transport options for one
// provider. Keys rotate randomly when several are configured.
func (c *AppConfig) ProviderSettings(provider string) ai.ProviderSettings {
	pc := c.AI.Providers[provider]

	apiKey := pc.APIKey
	if manager := NewAPIKeyManager(pc.APIKeys, pc.APIKey); manager.HasKeys() {
		apiKey = manager.GetRandomKey()
	}

	return ai.ProviderSettings{
		APIKey:  apiKey,
		BaseURL: pc.BaseURL,
		Timeout: time.Duration(pc.TimeoutSeconds) * time.Second,
		Proxy:   pc.Proxy,
	}
}

func (c *AppConfig) GetDatabaseDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

func GetConfigPath() string {
	return findConfigFile()
}

func GetConfigDir() string {
	configPath := findConfigFile()
	if configPath == "" {
		return "config"
	}
	return filepath.Dir(configPath)
}
