package config

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone  = "Asia/Tokyo"
	configPathEnv    = "NEWSLEDGER_CONFIG"
	ledgerDSNEnv     = "LEDGER_DSN"
	geminiAPIKeyEnv  = "GEMINI_API_KEY"
	geminiModelEnv   = "GEMINI_MODEL"
	telegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	telegramChatEnv  = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Ledger        LedgerConfig       `yaml:"ledger"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Discovery     DiscoveryConfig    `yaml:"discovery"`
	Fetch         FetchConfig        `yaml:"fetch"`
	Gemini        GeminiConfig       `yaml:"gemini"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LedgerConfig describes the tabular store backend.
type LedgerConfig struct {
	DSN string `yaml:"dsn"`
}

// SchedulerConfig defines when reconciliation runs. An empty RunEvery means
// a single run per invocation.
type SchedulerConfig struct {
	RunEvery string         `yaml:"runEvery"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// Interval parses RunEvery; zero means run once.
func (s SchedulerConfig) Interval() time.Duration {
	if s.RunEvery == "" {
		return 0
	}
	d, err := time.ParseDuration(s.RunEvery)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// DiscoveryConfig describes where candidates come from.
type DiscoveryConfig struct {
	ArticlePrefix string         `yaml:"articlePrefix"`
	SearchURL     string         `yaml:"searchUrl"`
	KeywordsFile  string         `yaml:"keywordsFile"`
	Sources       []SourceConfig `yaml:"sources"`
}

// SourceConfig binds a named source to a scanner strategy plus its keywords.
// Keywords from KeywordsFile are appended to every source that declares none.
type SourceConfig struct {
	Name     string            `yaml:"name"`
	Scanner  string            `yaml:"scanner"`
	Keywords []string          `yaml:"keywords"`
	Options  map[string]string `yaml:"options"`
}

// FetchConfig tunes the HTTP side: request timeout and the politeness delays
// between successive page fetches and successive row writes.
type FetchConfig struct {
	TimeoutSeconds int `yaml:"timeoutSeconds"`
	PageDelayMs    int `yaml:"pageDelayMs"`
	RowDelayMs     int `yaml:"rowDelayMs"`
	RecencyDays    int `yaml:"recencyDays"`
}

// PageDelay is the pause between successive page fetches of one resource.
func (f FetchConfig) PageDelay() time.Duration {
	return time.Duration(f.PageDelayMs) * time.Millisecond
}

// RowDelay is the pause between successive row writes to the store.
func (f FetchConfig) RowDelay() time.Duration {
	return time.Duration(f.RowDelayMs) * time.Millisecond
}

// GeminiConfig defines how to contact the analysis API and how much of it
// one run may consume.
type GeminiConfig struct {
	Endpoint    string   `yaml:"endpoint"`
	Model       string   `yaml:"model"`
	APIKey      string   `yaml:"apiKey"`
	PromptDir   string   `yaml:"promptDir"`
	PromptFiles []string `yaml:"promptFiles"`
	MaxChars    int      `yaml:"maxChars"`
	Budget      int      `yaml:"budget"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Discovery.Sources) == 0 {
		cfg.Discovery.Sources = defaultConfig().Discovery.Sources
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(ledgerDSNEnv); v != "" {
		c.Ledger.DSN = v
	}

	if v := os.Getenv(geminiAPIKeyEnv); v != "" {
		c.Gemini.APIKey = v
	}

	if v := os.Getenv(geminiModelEnv); v != "" {
		c.Gemini.Model = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Ledger.DSN != "" {
		base.Ledger = override.Ledger
	}

	if override.Scheduler.RunEvery != "" {
		base.Scheduler.RunEvery = override.Scheduler.RunEvery
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Discovery.ArticlePrefix != "" {
		base.Discovery.ArticlePrefix = override.Discovery.ArticlePrefix
	}
	if override.Discovery.SearchURL != "" {
		base.Discovery.SearchURL = override.Discovery.SearchURL
	}
	if override.Discovery.KeywordsFile != "" {
		base.Discovery.KeywordsFile = override.Discovery.KeywordsFile
	}
	if len(override.Discovery.Sources) > 0 {
		base.Discovery.Sources = override.Discovery.Sources
	}

	if override.Fetch.TimeoutSeconds > 0 {
		base.Fetch.TimeoutSeconds = override.Fetch.TimeoutSeconds
	}
	if override.Fetch.PageDelayMs > 0 {
		base.Fetch.PageDelayMs = override.Fetch.PageDelayMs
	}
	if override.Fetch.RowDelayMs > 0 {
		base.Fetch.RowDelayMs = override.Fetch.RowDelayMs
	}
	if override.Fetch.RecencyDays > 0 {
		base.Fetch.RecencyDays = override.Fetch.RecencyDays
	}

	if override.Gemini.Endpoint != "" {
		base.Gemini.Endpoint = override.Gemini.Endpoint
	}
	if override.Gemini.Model != "" {
		base.Gemini.Model = override.Gemini.Model
	}
	if override.Gemini.APIKey != "" {
		base.Gemini.APIKey = override.Gemini.APIKey
	}
	if override.Gemini.PromptDir != "" {
		base.Gemini.PromptDir = override.Gemini.PromptDir
	}
	if len(override.Gemini.PromptFiles) > 0 {
		base.Gemini.PromptFiles = override.Gemini.PromptFiles
	}
	if override.Gemini.MaxChars > 0 {
		base.Gemini.MaxChars = override.Gemini.MaxChars
	}
	if override.Gemini.Budget > 0 {
		base.Gemini.Budget = override.Gemini.Budget
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Ledger:  LedgerConfig{DSN: "newsledger.db"},
		Scheduler: SchedulerConfig{
			RunEvery: "",
			Timezone: defaultTimezone,
			location: tz,
		},
		Discovery: DiscoveryConfig{
			ArticlePrefix: "https://news.yahoo.co.jp/articles/",
			SearchURL:     "https://news.yahoo.co.jp/search",
			KeywordsFile:  "keywords.txt",
			Sources: []SourceConfig{
				{Name: "yahoo-news", Scanner: "yahoo"},
			},
		},
		Fetch: FetchConfig{
			TimeoutSeconds: 20,
			PageDelayMs:    750,
			RowDelayMs:     1000,
			RecencyDays:    3,
		},
		Gemini: GeminiConfig{
			Endpoint: "https://generativelanguage.googleapis.com/v1beta",
			Model:    "gemini-2.5-flash",
			APIKey:   "",
			PromptFiles: []string{
				"prompt_role.txt",
				"prompt_sentiment.txt",
				"prompt_category.txt",
				"prompt_target_company.txt",
				"prompt_secondary_mention.txt",
				"prompt_secondary_sentiment.txt",
			},
			MaxChars: 15000,
			Budget:   30,
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BotToken: "", ChatID: ""},
		},
	}
}

// LoadKeywords reads one keyword per line, ignoring blanks and #-comments.
func LoadKeywords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keywords file: %w", err)
	}
	defer f.Close()

	var keywords []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keywords = append(keywords, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read keywords file: %w", err)
	}
	if len(keywords) == 0 {
		return nil, fmt.Errorf("keywords file %s contains no keywords", path)
	}
	return keywords, nil
}

// LoadPromptTemplate assembles the analysis instruction template from the
// role file followed by the section files, with the article placeholder
// appended. The first file is the role instruction.
func LoadPromptTemplate(g GeminiConfig) (string, error) {
	if len(g.PromptFiles) == 0 {
		return "", fmt.Errorf("no prompt files configured")
	}

	sections := make([]string, 0, len(g.PromptFiles))
	for _, name := range g.PromptFiles {
		raw, err := os.ReadFile(filepath.Join(g.PromptDir, name))
		if err != nil {
			return "", fmt.Errorf("read prompt file %s: %w", name, err)
		}
		content := strings.TrimSpace(string(raw))
		if content == "" {
			return "", fmt.Errorf("prompt file %s is empty", name)
		}
		sections = append(sections, content)
	}

	return strings.Join(sections, "\n") + "\n\nArticle body:\n{TEXT_TO_ANALYZE}", nil
}
