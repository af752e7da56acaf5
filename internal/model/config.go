package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Auto-response delivery modes.
const (
	ModeSend  = "send"
	ModeDraft = "draft"
)

// TargetAll is the categories entry that makes every category eligible.
const TargetAll = "all"

// Scope presets offered by the settings form.
const (
	ScopePriority     = "priority"
	ScopePriorityMain = "priority_main"
	ScopeAll          = "all"
)

// LogConfig controls structured logging output.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

// MailboxConfig holds the IMAP/SMTP settings for one account.
type MailboxConfig struct {
	// Account is the label used for logs, metrics and keyring lookups.
	Account string `mapstructure:"account" yaml:"account"`

	IMAPHost string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort string `mapstructure:"imap_port" yaml:"imap_port"`
	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort string `mapstructure:"smtp_port" yaml:"smtp_port"`
	Username string `mapstructure:"username" yaml:"username"`

	// Password may be left empty; it is then read from the keyring.
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	TLS          bool   `mapstructure:"tls" yaml:"tls"`
	Folder       string `mapstructure:"folder" yaml:"folder"`
	DraftsFolder string `mapstructure:"drafts_folder" yaml:"drafts_folder"`
}

// ClassifierConfig tunes the keyword classifier.
type ClassifierConfig struct {
	// Threshold is the minimum winning confidence; below it the message
	// is demoted to needs_review.
	Threshold float64 `mapstructure:"threshold" yaml:"threshold"`

	// RuleConfidence is assigned to rules that do not set their own.
	RuleConfidence float64 `mapstructure:"rule_confidence" yaml:"rule_confidence"`

	// FallbackConfidence is assigned to the synthesized needs_review
	// candidate when no rule fires.
	FallbackConfidence float64 `mapstructure:"fallback_confidence" yaml:"fallback_confidence"`

	// RulesFile optionally replaces the built-in rule table.
	RulesFile string `mapstructure:"rules_file" yaml:"rules_file,omitempty"`
}

// AutoResponseConfig is the response policy for one orchestration pass.
// It is treated as immutable for the duration of a run.
type AutoResponseConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Categories lists eligible category identifiers, or ["all"].
	Categories []string `mapstructure:"categories" yaml:"categories"`

	WaitMinutes       int    `mapstructure:"wait_minutes" yaml:"wait_minutes"`
	SignatureName     string `mapstructure:"signature_name" yaml:"signature_name"`
	StyleInstructions string `mapstructure:"style_instructions" yaml:"style_instructions"`

	// Mode is "send" or "draft".
	Mode string `mapstructure:"mode" yaml:"mode"`

	// MinConfidence skips eligible messages classified below this score.
	MinConfidence float64 `mapstructure:"min_confidence" yaml:"min_confidence"`

	// SkipOnGenerationFailure records the message as generation-failed
	// instead of sending the templated reply when the responder fails.
	SkipOnGenerationFailure bool `mapstructure:"skip_on_generation_failure" yaml:"skip_on_generation_failure,omitempty"`

	// BodyTruncate caps how many runes of the original body are passed
	// to the responder.
	BodyTruncate int `mapstructure:"body_truncate" yaml:"body_truncate"`
}

// ResponderConfig selects the reply generator.
type ResponderConfig struct {
	// Provider is "template", "anthropic" or "openai".
	Provider  string `mapstructure:"provider" yaml:"provider"`
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`

	// APIKey may be left empty; it is then read from the keyring.
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
}

// StoreConfig locates the run history database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// MetricsConfig controls the Prometheus endpoint served by watch mode.
type MetricsConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// PollConfig controls watch mode.
type PollConfig struct {
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`
	MaxResults  int `mapstructure:"max_results" yaml:"max_results"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Log          LogConfig          `mapstructure:"log" yaml:"log"`
	Mailbox      MailboxConfig      `mapstructure:"mailbox" yaml:"mailbox"`
	Classifier   ClassifierConfig   `mapstructure:"classifier" yaml:"classifier"`
	AutoResponse AutoResponseConfig `mapstructure:"auto_response" yaml:"auto_response"`
	Responder    ResponderConfig    `mapstructure:"responder" yaml:"responder"`
	Store        StoreConfig        `mapstructure:"store" yaml:"store"`
	Metrics      MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
	Poll         PollConfig         `mapstructure:"poll" yaml:"poll"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailtriage/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultStorePath returns the default run history database path.
func DefaultStorePath() string {
	return filepath.Join(configDir(), "runs.db")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mailtriage")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Log: LogConfig{Level: "info"},
		Mailbox: MailboxConfig{
			Account:      "default",
			IMAPPort:     "993",
			SMTPPort:     "465",
			TLS:          true,
			Folder:       "INBOX",
			DraftsFolder: "Drafts",
		},
		Classifier: ClassifierConfig{
			Threshold:          0.6,
			RuleConfidence:     0.8,
			FallbackConfidence: 0.7,
		},
		AutoResponse: AutoResponseConfig{
			Enabled:       false,
			Categories:    []string{string(CategoryPriorityInbox)},
			WaitMinutes:   5,
			SignatureName: "Your Name",
			Mode:          ModeSend,
			BodyTruncate:  200,
		},
		Responder: ResponderConfig{
			Provider:  "template",
			MaxTokens: 500,
		},
		Store:   StoreConfig{Path: DefaultStorePath()},
		Metrics: MetricsConfig{Listen: ":9464"},
		Poll: PollConfig{
			IntervalSec: 300,
			MaxResults:  20,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultAppConfig()

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.json", d.Log.JSON)

	v.SetDefault("mailbox.account", d.Mailbox.Account)
	v.SetDefault("mailbox.imap_host", "")
	v.SetDefault("mailbox.imap_port", d.Mailbox.IMAPPort)
	v.SetDefault("mailbox.smtp_host", "")
	v.SetDefault("mailbox.smtp_port", d.Mailbox.SMTPPort)
	v.SetDefault("mailbox.username", "")
	v.SetDefault("mailbox.password", "")
	v.SetDefault("mailbox.tls", d.Mailbox.TLS)
	v.SetDefault("mailbox.folder", d.Mailbox.Folder)
	v.SetDefault("mailbox.drafts_folder", d.Mailbox.DraftsFolder)

	v.SetDefault("classifier.threshold", d.Classifier.Threshold)
	v.SetDefault("classifier.rule_confidence", d.Classifier.RuleConfidence)
	v.SetDefault("classifier.fallback_confidence", d.Classifier.FallbackConfidence)
	v.SetDefault("classifier.rules_file", "")

	v.SetDefault("auto_response.enabled", d.AutoResponse.Enabled)
	v.SetDefault("auto_response.categories", d.AutoResponse.Categories)
	v.SetDefault("auto_response.wait_minutes", d.AutoResponse.WaitMinutes)
	v.SetDefault("auto_response.signature_name", d.AutoResponse.SignatureName)
	v.SetDefault("auto_response.style_instructions", "")
	v.SetDefault("auto_response.mode", d.AutoResponse.Mode)
	v.SetDefault("auto_response.min_confidence", d.AutoResponse.MinConfidence)
	v.SetDefault("auto_response.body_truncate", d.AutoResponse.BodyTruncate)

	v.SetDefault("responder.provider", d.Responder.Provider)
	v.SetDefault("responder.model", "")
	v.SetDefault("responder.max_tokens", d.Responder.MaxTokens)
	v.SetDefault("responder.api_key", "")

	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("metrics.listen", d.Metrics.Listen)
	v.SetDefault("poll.interval_sec", d.Poll.IntervalSec)
	v.SetDefault("poll.max_results", d.Poll.MaxResults)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Values may be overridden by MAILTRIAGE_* environment variables
// (e.g. MAILTRIAGE_MAILBOX_PASSWORD). If the file does not exist, the
// defaults are returned with environment overrides applied.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MAILTRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed. Secrets are not written.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	mailbox := cfg.Mailbox
	mailbox.Password = ""
	responder := cfg.Responder
	responder.APIKey = ""

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("log", cfg.Log)
	v.Set("mailbox", mailbox)
	v.Set("classifier", cfg.Classifier)
	v.Set("auto_response", cfg.AutoResponse)
	v.Set("responder", responder)
	v.Set("store", cfg.Store)
	v.Set("metrics", cfg.Metrics)
	v.Set("poll", cfg.Poll)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// Validate checks value ranges that the rest of the program relies on.
func (c *AppConfig) Validate() error {
	if c.Classifier.Threshold < 0 || c.Classifier.Threshold > 1 {
		return fmt.Errorf("classifier.threshold must be within [0,1], got %v", c.Classifier.Threshold)
	}
	if c.Classifier.RuleConfidence < 0 || c.Classifier.RuleConfidence > 1 {
		return fmt.Errorf("classifier.rule_confidence must be within [0,1], got %v", c.Classifier.RuleConfidence)
	}
	if c.Classifier.FallbackConfidence < 0 || c.Classifier.FallbackConfidence > 1 {
		return fmt.Errorf("classifier.fallback_confidence must be within [0,1], got %v", c.Classifier.FallbackConfidence)
	}
	return c.AutoResponse.Validate()
}

// Validate checks the response policy fields.
func (c AutoResponseConfig) Validate() error {
	if c.WaitMinutes < 0 {
		return fmt.Errorf("auto_response.wait_minutes must be >= 0, got %d", c.WaitMinutes)
	}
	switch c.Mode {
	case ModeSend, ModeDraft, "":
	default:
		return fmt.Errorf("auto_response.mode must be %q or %q, got %q", ModeSend, ModeDraft, c.Mode)
	}
	for _, raw := range c.Categories {
		if raw == TargetAll {
			continue
		}
		if _, ok := ParseCategory(raw); !ok {
			return fmt.Errorf("auto_response.categories: unknown category %q", raw)
		}
	}
	return nil
}

// TargetsAll reports whether the policy applies to every category.
func (c AutoResponseConfig) TargetsAll() bool {
	for _, raw := range c.Categories {
		if raw == TargetAll {
			return true
		}
	}
	return false
}

// Targets reports whether cat is in the configured target set.
func (c AutoResponseConfig) Targets(cat Category) bool {
	if c.TargetsAll() {
		return true
	}
	for _, raw := range c.Categories {
		if Category(raw) == cat {
			return true
		}
	}
	return false
}

// Wait returns the configured pre-send delay.
func (c AutoResponseConfig) Wait() time.Duration {
	if c.WaitMinutes <= 0 {
		return 0
	}
	return time.Duration(c.WaitMinutes) * time.Minute
}

// ScopeCategories expands a settings-form scope preset into the
// categories list stored in AutoResponseConfig.
func ScopeCategories(scope string) ([]string, error) {
	switch scope {
	case ScopePriority:
		return []string{string(CategoryPriorityInbox)}, nil
	case ScopePriorityMain:
		return []string{string(CategoryPriorityInbox), string(CategoryMainInbox)}, nil
	case ScopeAll:
		return []string{TargetAll}, nil
	default:
		return nil, fmt.Errorf("unknown scope %q", scope)
	}
}
