package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Storage    StorageConfig    `mapstructure:"storage"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Ollama     OllamaConfig     `mapstructure:"ollama"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	IMAP       IMAPConfig       `mapstructure:"imap"`
	Inbox      InboxConfig      `mapstructure:"inbox"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
}

type ServerConfig struct {
	Port  int    `mapstructure:"port"`
	Token string `mapstructure:"token"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// LLMConfig selects the text-generation backend. Provider is "auto",
// "ollama", "openai" or "gemini".
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	Timeout     string  `mapstructure:"timeout"`
	Temperature float64 `mapstructure:"temperature"`
}

type OllamaConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type OpenAIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
}

type GeminiConfig struct {
	Model  string `mapstructure:"model"`
	APIKey string `mapstructure:"api_key"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
}

type IMAPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Mailbox  string `mapstructure:"mailbox"`
	Insecure bool   `mapstructure:"insecure"`
}

type InboxConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	PollInterval string `mapstructure:"poll_interval"`
}

type EvaluationConfig struct {
	Parallelism int `mapstructure:"parallelism"`
}

func defaults() Config {
	return Config{
		Server:  ServerConfig{Port: 4100},
		Log:     LogConfig{Level: "info"},
		Storage: StorageConfig{DataDir: defaultDataDir()},
		LLM: LLMConfig{
			Provider:    "auto",
			Timeout:     "60s",
			Temperature: 0.2,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama3.2",
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Gemini: GeminiConfig{Model: "gemini-2.5-flash"},
		SMTP:   SMTPConfig{Port: 587, FromName: "Procurement"},
		IMAP:   IMAPConfig{Port: 993, Mailbox: "INBOX"},
		Inbox:  InboxConfig{PollInterval: "2m"},
		Evaluation: EvaluationConfig{
			Parallelism: 4,
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.procura.app) and secrets
// fall back to macOS Keychain.
// Elsewhere the backend is a YAML file at $XDG_CONFIG_HOME/procura/config.yaml
// and secrets fall back to $XDG_DATA_HOME/procura/secrets.yaml.
//
// Environment variables (PROCURA_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

const keychainService = "procura"

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	for _, s := range specs {
		if !s.secret {
			continue
		}
		if cur, _ := lookup(cfg, s.key); cur != "" {
			continue
		}
		if v, err := kc.Get(keychainService, s.account()); err == nil && v != "" {
			if err := assign(&cfg, s.key, v); err != nil {
				return Config{}, err
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.LLM.Provider {
	case "auto", "ollama", "openai", "gemini":
	default:
		return fmt.Errorf("invalid llm.provider %q: want auto, ollama, openai or gemini", c.LLM.Provider)
	}
	if _, err := time.ParseDuration(c.LLM.Timeout); err != nil {
		return fmt.Errorf("invalid llm.timeout %q: %w", c.LLM.Timeout, err)
	}
	if d, err := time.ParseDuration(c.Inbox.PollInterval); err != nil || d <= 0 {
		return fmt.Errorf("invalid inbox.poll_interval %q", c.Inbox.PollInterval)
	}
	if c.Evaluation.Parallelism < 1 {
		return fmt.Errorf("evaluation.parallelism must be at least 1, got %d", c.Evaluation.Parallelism)
	}
	if c.Inbox.Enabled && c.IMAP.Host == "" {
		return fmt.Errorf("missing required config: imap.host must be set when inbox.enabled is true. " +
			"Set it via environment variable PROCURA_IMAP_HOST")
	}
	return nil
}

// LLMTimeout returns the per-request text-generation timeout.
func (c Config) LLMTimeout() time.Duration {
	d, _ := time.ParseDuration(c.LLM.Timeout)
	return d
}

// PollInterval returns the inbox polling interval.
func (c Config) PollInterval() time.Duration {
	d, _ := time.ParseDuration(c.Inbox.PollInterval)
	return d
}

// MailEnabled reports whether outbound mail is configured.
func (c Config) MailEnabled() bool {
	return c.SMTP.Host != "" && c.SMTP.From != ""
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
