package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/sito-labs/chatmem-go/pkg/profile"
)

// Default engine limits. These mirror the behavior the engine was tuned
// for; all of them can be overridden through configuration.
const (
	// DefaultSessionID labels messages and summaries written without an
	// explicit session.
	DefaultSessionID = "chat_session"

	// DefaultSummaryInterval is the scheduler cadence.
	DefaultSummaryInterval = time.Hour

	// DefaultFreshnessWindow is the trailing interval during which a user
	// is ineligible for a new summary.
	DefaultFreshnessWindow = 24 * time.Hour

	// DefaultSummaryMinMessages is the minimum message count before a user
	// becomes eligible for summarization.
	DefaultSummaryMinMessages = 10

	// DefaultSummaryGatherLimit is how many recent messages feed one summary.
	DefaultSummaryGatherLimit = 25

	// DefaultSummaryInputBudget caps the text handed to the generative
	// collaborator, in bytes.
	DefaultSummaryInputBudget = 3000
)

// Config contains the complete configuration for the memory engine and its
// collaborators.
type Config struct {
	// LLM configures the generative collaborator.
	LLM LLMConfig `json:"llm"`

	// Language configures the understanding collaborator.
	Language LanguageConfig `json:"language"`

	// Store configures the persistence backend.
	Store StoreConfig `json:"store"`

	// Scheduler configures the background summary loop.
	Scheduler SchedulerConfig `json:"scheduler"`

	// Profile configures bootstrap defaults and the keyword table.
	Profile ProfileConfig `json:"profile"`

	// HTTP configures the inbound transport.
	HTTP HTTPConfig `json:"http"`
}

// LLMConfig contains configuration for the generative collaborator.
type LLMConfig struct {
	// Provider is the provider name. Only "openai" is supported.
	Provider string `json:"provider"`

	// APIKey is the provider API key (required at startup).
	APIKey string `json:"api_key"`

	// Model is the chat model name.
	Model string `json:"model,omitempty"`

	// BaseURL overrides the API base URL (optional).
	BaseURL string `json:"base_url,omitempty"`
}

// LanguageConfig contains configuration for the understanding collaborator.
// When both fields are empty the Google client falls back to application
// default credentials.
type LanguageConfig struct {
	// APIKey is a Google Cloud API key.
	APIKey string `json:"api_key,omitempty"`

	// CredentialsFile is a path to a service account JSON file.
	CredentialsFile string `json:"credentials_file,omitempty"`
}

// StoreConfig contains configuration for the persistence backend.
type StoreConfig struct {
	// Provider is the backend name: sqlite, postgres or mysql.
	Provider string `json:"provider"`

	// DSN is the connection string. For sqlite it is the database file
	// path (or ":memory:").
	DSN string `json:"dsn"`
}

// SchedulerConfig contains configuration for the summary scheduler.
type SchedulerConfig struct {
	// Enabled starts the scheduler with the process when true.
	Enabled bool `json:"enabled"`

	// Interval is the tick cadence.
	Interval time.Duration `json:"interval"`

	// MinMessages is the message count a user needs before becoming
	// eligible for a summary.
	MinMessages int `json:"min_messages"`

	// FreshnessWindow is the trailing dedup window.
	FreshnessWindow time.Duration `json:"freshness_window"`

	// GatherLimit is how many recent messages feed one summary.
	GatherLimit int `json:"gather_limit"`

	// InputBudget caps summary input, in bytes.
	InputBudget int `json:"input_budget"`

	// SessionID labels scheduler-written summaries.
	SessionID string `json:"session_id"`
}

// ProfileConfig contains bootstrap defaults and the keyword table source.
type ProfileConfig struct {
	// DefaultRole seeds the "role" category on first contact.
	DefaultRole string `json:"default_role"`

	// DefaultTone seeds the "tone" category on first contact.
	DefaultTone string `json:"default_tone"`

	// DefaultInterest seeds the "interest" category on first contact and
	// is the context fallback when the category is absent.
	DefaultInterest string `json:"default_interest"`

	// RulesPath points at a JSON keyword table. Empty uses the built-in
	// rules.
	RulesPath string `json:"rules_path,omitempty"`

	// Rules is the resolved rule table. Populated from RulesPath by the
	// loaders; may also be set directly.
	Rules []profile.Rule `json:"rules,omitempty"`
}

// HTTPConfig contains configuration for the HTTP transport.
type HTTPConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `json:"addr"`
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// Recognized variables: LLM_PROVIDER, LLM_API_KEY, LLM_MODEL, LLM_BASE_URL,
// LANGUAGE_API_KEY, GOOGLE_APPLICATION_CREDENTIALS, STORE_PROVIDER,
// STORE_DSN, SCHEDULER_ENABLED, SCHEDULER_INTERVAL, SUMMARY_MIN_MESSAGES,
// SUMMARY_FRESHNESS_WINDOW, PROFILE_RULES_PATH, HTTP_ADDR.
func LoadConfigFromEnv() (*Config, error) {
	cfg := &Config{
		LLM: LLMConfig{
			Provider: getEnvOrDefault("LLM_PROVIDER", "openai"),
			APIKey:   os.Getenv("LLM_API_KEY"),
			Model:    os.Getenv("LLM_MODEL"),
			BaseURL:  os.Getenv("LLM_BASE_URL"),
		},
		Language: LanguageConfig{
			APIKey:          os.Getenv("LANGUAGE_API_KEY"),
			CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		},
		Store: StoreConfig{
			Provider: getEnvOrDefault("STORE_PROVIDER", "sqlite"),
			DSN:      getEnvOrDefault("STORE_DSN", "./chatmem.db"),
		},
		Scheduler: SchedulerConfig{
			Enabled:         getEnvOrDefault("SCHEDULER_ENABLED", "true") == "true",
			Interval:        getEnvDuration("SCHEDULER_INTERVAL", DefaultSummaryInterval),
			MinMessages:     getEnvInt("SUMMARY_MIN_MESSAGES", DefaultSummaryMinMessages),
			FreshnessWindow: getEnvDuration("SUMMARY_FRESHNESS_WINDOW", DefaultFreshnessWindow),
			GatherLimit:     DefaultSummaryGatherLimit,
			InputBudget:     DefaultSummaryInputBudget,
			SessionID:       DefaultSessionID,
		},
		Profile: ProfileConfig{
			DefaultRole:     getEnvOrDefault("PROFILE_DEFAULT_ROLE", "player"),
			DefaultTone:     getEnvOrDefault("PROFILE_DEFAULT_TONE", "relaxed attitude"),
			DefaultInterest: getEnvOrDefault("PROFILE_DEFAULT_INTEREST", "survival games"),
			RulesPath:       os.Getenv("PROFILE_RULES_PATH"),
		},
		HTTP: HTTPConfig{
			Addr: getEnvOrDefault("HTTP_ADDR", ":8080"),
		},
	}

	if err := cfg.resolveRules(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadConfigFromEnvFile loads a .env file and then reads the environment.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromJSON loads configuration from a JSON file.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewEngineError("LoadConfigFromJSON", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, NewEngineError("LoadConfigFromJSON", err)
	}

	cfg.applyDefaults()
	if err := cfg.resolveRules(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that mandatory configuration is present. A failing
// Validate aborts startup; nothing in the engine retries it.
func (c *Config) Validate() error {
	if c.LLM.Provider == "" || c.LLM.APIKey == "" {
		return NewEngineError("Validate", ErrInvalidConfig)
	}
	if c.Store.Provider == "" || c.Store.DSN == "" {
		return NewEngineError("Validate", ErrInvalidConfig)
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return NewEngineError("Validate", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Store.Provider == "" {
		c.Store.Provider = "sqlite"
	}
	if c.Store.DSN == "" {
		c.Store.DSN = "./chatmem.db"
	}
	if c.Scheduler.Interval == 0 {
		c.Scheduler.Interval = DefaultSummaryInterval
	}
	if c.Scheduler.MinMessages == 0 {
		c.Scheduler.MinMessages = DefaultSummaryMinMessages
	}
	if c.Scheduler.FreshnessWindow == 0 {
		c.Scheduler.FreshnessWindow = DefaultFreshnessWindow
	}
	if c.Scheduler.GatherLimit == 0 {
		c.Scheduler.GatherLimit = DefaultSummaryGatherLimit
	}
	if c.Scheduler.InputBudget == 0 {
		c.Scheduler.InputBudget = DefaultSummaryInputBudget
	}
	if c.Scheduler.SessionID == "" {
		c.Scheduler.SessionID = DefaultSessionID
	}
	if c.Profile.DefaultRole == "" {
		c.Profile.DefaultRole = "player"
	}
	if c.Profile.DefaultTone == "" {
		c.Profile.DefaultTone = "relaxed attitude"
	}
	if c.Profile.DefaultInterest == "" {
		c.Profile.DefaultInterest = "survival games"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
}

func (c *Config) resolveRules() error {
	if c.Profile.RulesPath == "" || len(c.Profile.Rules) > 0 {
		return nil
	}
	rules, err := profile.LoadRules(c.Profile.RulesPath)
	if err != nil {
		return NewEngineError("resolveRules", err)
	}
	c.Profile.Rules = rules
	return nil
}

// FindEnvFile searches the current directory and up to five parents for a
// .env or .env.example file.
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
