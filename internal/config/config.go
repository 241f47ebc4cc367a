package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the intentq service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Cache     CacheConfig     `yaml:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Domains   []DomainConfig  `yaml:"domains"`
	Matching  MatchingConfig  `yaml:"matching"`
	Pools     PoolsConfig     `yaml:"pools"`
	Adapters  []AdapterConfig `yaml:"adapters"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// CacheConfig holds the embedding-cache store settings.
type CacheConfig struct {
	Driver           string   `yaml:"driver"` // redis, memory (default: memory)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Providers   map[string]ProviderConfig   `yaml:"providers"`
	Vectorizers map[string]VectorizerConfig `yaml:"vectorizers"`
}

// ProviderConfig holds embedding provider credentials.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// VectorizerConfig holds vectorizer settings.
type VectorizerConfig struct {
	Provider            string `yaml:"provider"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	QueryInstruction    string `yaml:"query_instruction"`
	TemplateInstruction string `yaml:"template_instruction"`
}

// LLMConfig holds the parameter-extraction model settings. Temperature is
// pinned to zero internally so extraction is deterministic.
type LLMConfig struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// DomainConfig points at a knowledge domain's config and template libraries.
type DomainConfig struct {
	Name              string   `yaml:"name"`
	ConfigPath        string   `yaml:"config_path"`
	TemplateLibraries []string `yaml:"template_libraries"`
	WatchTemplates    bool     `yaml:"watch_templates"`
}

// MatchingConfig holds intent-matching defaults.
type MatchingConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	MaxTemplates        int     `yaml:"max_templates"`
}

// PoolsConfig sizes the bounded worker pools by workload class.
type PoolsConfig struct {
	Datasource int `yaml:"datasource"`
	Embedding  int `yaml:"embedding"`
	LLM        int `yaml:"llm"`
}

// AdapterConfig holds one backend adapter's connection and fault-tolerance
// settings. Each adapter owns exactly one circuit breaker instance.
type AdapterConfig struct {
	Name    string `yaml:"name"`
	Backend string `yaml:"backend"` // sql, elasticsearch, duckdb, http
	Domain  string `yaml:"domain"`

	// Connection settings (by backend family).
	Driver    string   `yaml:"driver"` // sql: sqlite3, duckdb, ...
	DSN       string   `yaml:"dsn"`
	Addresses []string `yaml:"addresses"` // elasticsearch
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`

	OperationTimeoutSec      int  `yaml:"operation_timeout_sec"`
	FailureThreshold         int  `yaml:"failure_threshold"`
	RecoveryTimeoutSec       int  `yaml:"recovery_timeout_sec"`
	SuccessThreshold         int  `yaml:"success_threshold"`
	MaxRecoveryTimeoutSec    int  `yaml:"max_recovery_timeout_sec"`
	EnableExponentialBackoff bool `yaml:"enable_exponential_backoff"`
	MaxRetries               int  `yaml:"max_retries"`
	RetryDelayMS             int  `yaml:"retry_delay_ms"`
	// Either isolation flag routes execution through the bounded
	// datasource pool; separate OS processes are not spawned.
	EnableThreadIsolation  bool `yaml:"enable_thread_isolation"`
	EnableProcessIsolation bool `yaml:"enable_process_isolation"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "intentq:"
	}
	if c.Matching.ConfidenceThreshold <= 0 {
		c.Matching.ConfidenceThreshold = 0.75
	}
	if c.Matching.MaxTemplates <= 0 {
		c.Matching.MaxTemplates = 5
	}
	if c.Pools.Datasource <= 0 {
		c.Pools.Datasource = 16
	}
	if c.Pools.Embedding <= 0 {
		c.Pools.Embedding = 8
	}
	if c.Pools.LLM <= 0 {
		c.Pools.LLM = 4
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 512
	}
	for i := range c.Adapters {
		a := &c.Adapters[i]
		if a.OperationTimeoutSec <= 0 {
			a.OperationTimeoutSec = 30
		}
		if a.FailureThreshold <= 0 {
			a.FailureThreshold = 5
		}
		if a.RecoveryTimeoutSec <= 0 {
			a.RecoveryTimeoutSec = 60
		}
		if a.SuccessThreshold <= 0 {
			a.SuccessThreshold = 3
		}
		if a.MaxRecoveryTimeoutSec <= 0 {
			a.MaxRecoveryTimeoutSec = 600
		}
		if a.MaxRetries < 0 {
			a.MaxRetries = 0
		}
		if a.RetryDelayMS <= 0 {
			a.RetryDelayMS = 1000
		}
	}
}

var validBackends = map[string]bool{
	"sql": true, "elasticsearch": true, "duckdb": true, "http": true,
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Cache.Driver == "redis" && len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required for the redis driver")
	}
	if len(c.Domains) == 0 {
		return fmt.Errorf("at least one domain is required")
	}
	domainNames := make(map[string]bool, len(c.Domains))
	for _, d := range c.Domains {
		if d.Name == "" {
			return fmt.Errorf("domain name is required")
		}
		if domainNames[d.Name] {
			return fmt.Errorf("duplicate domain %q", d.Name)
		}
		domainNames[d.Name] = true
		if d.ConfigPath == "" {
			return fmt.Errorf("domains.%s.config_path is required", d.Name)
		}
		if len(d.TemplateLibraries) == 0 {
			return fmt.Errorf("domains.%s.template_libraries is required", d.Name)
		}
	}
	if c.Matching.ConfidenceThreshold < 0 || c.Matching.ConfidenceThreshold > 1 {
		return fmt.Errorf("matching.confidence_threshold must be between 0 and 1, got %v", c.Matching.ConfidenceThreshold)
	}
	adapterNames := make(map[string]bool, len(c.Adapters))
	for _, a := range c.Adapters {
		if a.Name == "" {
			return fmt.Errorf("adapter name is required")
		}
		if adapterNames[a.Name] {
			return fmt.Errorf("duplicate adapter %q", a.Name)
		}
		adapterNames[a.Name] = true
		if !validBackends[a.Backend] {
			return fmt.Errorf("adapters.%s.backend must be one of sql, elasticsearch, duckdb, http; got %q", a.Name, a.Backend)
		}
		if !domainNames[a.Domain] {
			return fmt.Errorf("adapters.%s.domain %q is not a configured domain", a.Name, a.Domain)
		}
	}
	return nil
}

// ActiveVectorizer returns the vectorizer used for matching. With several
// configured, the lexicographically first name wins so startup is
// deterministic.
func (c *Config) ActiveVectorizer() (string, VectorizerConfig) {
	names := make([]string, 0, len(c.Embedding.Vectorizers))
	for name := range c.Embedding.Vectorizers {
		names = append(names, name)
	}
	if len(names) == 0 {
		return "", VectorizerConfig{}
	}
	sort.Strings(names)
	return names[0], c.Embedding.Vectorizers[names[0]]
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
