// Package config loads the brief pipeline configuration: an embedded
// default YAML document, overlaid by a user file and a few env overrides.
package config

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/deusflow/dailybrief/internal/news"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// ErrMissingCredential is returned by Validate when an enabled backend has no secret.
var ErrMissingCredential = errors.New("missing credential")

type Config struct {
	LogLevel    string            `yaml:"log_level"`
	Sources     SourcesConfig     `yaml:"sources"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Translation TranslationConfig `yaml:"translation"`
	TTS         TTSConfig         `yaml:"tts"`
	Video       VideoConfig       `yaml:"video"`
	Output      OutputConfig      `yaml:"output"`
	Storage     StorageConfig     `yaml:"storage"`
	Email       EmailConfig       `yaml:"email"`
	Telegram    TelegramConfig    `yaml:"telegram"`
	Delivery    DeliveryConfig    `yaml:"delivery"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Server      ServerConfig      `yaml:"server"`

	// Path is the file the config was read from, empty for embedded defaults.
	Path string `yaml:"-"`
}

type SourcesConfig struct {
	TimeoutS         int               `yaml:"timeout_s"`
	UserAgent        string            `yaml:"user_agent"`
	PoliteDelayS     float64           `yaml:"polite_delay_s"`
	TopNPerSource    int               `yaml:"top_n_per_source"`
	CommentsLimit    int               `yaml:"comments_limit"`
	Reddit           RedditConfig      `yaml:"reddit"`
	HackerNews       HackerNewsConfig  `yaml:"hackernews"`
	Twitter          TwitterConfig     `yaml:"twitter"`
	Moltbook         MoltbookConfig    `yaml:"moltbook"`
	ChinaNews        ChinaNewsConfig   `yaml:"chinanews"`
	AITopicSelection AISelectionConfig `yaml:"ai_topic_selection"`
}

func (s SourcesConfig) Timeout() time.Duration {
	if s.TimeoutS <= 0 {
		return 15 * time.Second
	}
	return time.Duration(s.TimeoutS) * time.Second
}

func (s SourcesConfig) PoliteDelay() time.Duration {
	if s.PoliteDelayS <= 0 {
		return 0
	}
	return time.Duration(s.PoliteDelayS * float64(time.Second))
}

type RedditConfig struct {
	Enabled           bool     `yaml:"enabled"`
	Subreddits        []string `yaml:"subreddits"`
	LimitPerSubreddit int      `yaml:"limit_per_subreddit"`
	TimeFilter        string   `yaml:"time_filter"`
}

type HackerNewsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	APIURL     string `yaml:"api_url"`
	MaxStories int    `yaml:"max_stories"`
}

type TwitterConfig struct {
	Enabled           bool     `yaml:"enabled"`
	SearchQueries     []string `yaml:"search_queries"`
	MaxTweetsPerQuery int      `yaml:"max_tweets_per_query"`
	BearerTokenEnv    string   `yaml:"bearer_token_env"`
}

type MoltbookConfig struct {
	Enabled    bool     `yaml:"enabled"`
	HotURLs    []string `yaml:"hot_urls"`
	FetchLimit int      `yaml:"fetch_limit"`
}

type ChinaNewsConfig struct {
	Enabled bool     `yaml:"enabled"`
	RSSURLs []string `yaml:"rss_urls"`
	Limit   int      `yaml:"limit"`
	// TopN overrides top_n_per_source when > 0.
	TopN int `yaml:"top_n"`
}

type AISelectionConfig struct {
	Enabled           bool     `yaml:"enabled"`
	MaxTopicsToSelect int      `yaml:"max_topics_to_select"`
	PriorityKeywords  []string `yaml:"priority_keywords"`
}

type SummarizerConfig struct {
	Backend               string       `yaml:"backend"`
	SummarySentenceCount  int          `yaml:"summary_sentence_count"`
	SkipAlreadySummarized bool         `yaml:"skip_already_summarized"`
	Bilingual             bool         `yaml:"bilingual"`
	MaxRequestsPerDay     int          `yaml:"max_requests_per_day"`
	OpenAICompatible      OpenAIConfig `yaml:"openai_compatible"`
	Gemini                GeminiConfig `yaml:"gemini"`
}

type OpenAIConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type GeminiConfig struct {
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type TranslationConfig struct {
	Enabled    bool   `yaml:"enabled"`
	TargetLang string `yaml:"target_lang"`
	// Provider is "llm" (the summarizer backend) or "google" (public gtx endpoint).
	Provider string `yaml:"provider"`
}

type TTSConfig struct {
	Backend     string        `yaml:"backend"`
	AudioFormat string        `yaml:"audio_format"`
	EdgeTTS     EdgeTTSConfig `yaml:"edge_tts"`
	Espeak      EspeakConfig  `yaml:"espeak"`
}

type EdgeTTSConfig struct {
	Voice  string `yaml:"voice"`
	Rate   string `yaml:"rate"`
	Volume string `yaml:"volume"`
}

type EspeakConfig struct {
	Rate int `yaml:"rate"`
}

type VideoConfig struct {
	Enabled               bool           `yaml:"enabled"`
	Width                 int            `yaml:"width"`
	Height                int            `yaml:"height"`
	FPS                   int            `yaml:"fps"`
	BackgroundImage       string         `yaml:"background_image"`
	BackgroundColor       string         `yaml:"background_color"`
	BackgroundMusic       string         `yaml:"background_music"`
	BackgroundMusicVolume float64        `yaml:"background_music_volume"`
	Captions              CaptionsConfig `yaml:"captions"`
	// RenderTimeoutSeconds bounds one ffmpeg run; 0 disables the limit.
	RenderTimeoutSeconds int `yaml:"render_timeout_seconds"`
}

func (v VideoConfig) RenderTimeout() time.Duration {
	return time.Duration(v.RenderTimeoutSeconds) * time.Second
}

type CaptionsConfig struct {
	FontSize int    `yaml:"font_size"`
	Font     string `yaml:"font"`
	MarginV  int    `yaml:"margin_v"`
}

type OutputConfig struct {
	RootDir     string `yaml:"root_dir"`
	WriteLatest bool   `yaml:"write_latest"`
	RetainDays  int    `yaml:"retain_days"`
}

type StorageConfig struct {
	// Driver is "sqlite", "file" or "none".
	Driver string `yaml:"driver"`
	// Path defaults to <output.root_dir>/dailybrief.db (or .json for the file driver).
	Path string `yaml:"path"`
}

type EmailConfig struct {
	Enabled                bool       `yaml:"enabled"`
	FromName               string     `yaml:"from_name"`
	FromAddress            string     `yaml:"from_address"`
	To                     []string   `yaml:"to"`
	SubjectTemplate        string     `yaml:"subject_template"`
	ChineseSubjectTemplate string     `yaml:"chinese_subject_template"`
	IncludeTopics          bool       `yaml:"include_topics"`
	IncludeSummary         bool       `yaml:"include_summary"`
	SendChinese            bool       `yaml:"send_chinese"`
	SMTP                   SMTPConfig `yaml:"smtp"`
}

type SMTPConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	UseTLS      bool   `yaml:"use_tls"`
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

type TelegramConfig struct {
	Enabled     bool   `yaml:"enabled"`
	SendChinese bool   `yaml:"send_chinese"`
	BotTokenEnv string `yaml:"bot_token_env"`
	ChatIDEnv   string `yaml:"chat_id_env"`
	MaxAttempts int    `yaml:"max_attempts"`
}

type DeliveryConfig struct {
	SkipIfSent bool `yaml:"skip_if_sent"`
}

type SchedulerConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Mode            string `yaml:"mode"`
	Time            string `yaml:"time"`
	IntervalMinutes int    `yaml:"interval_minutes"`
	RunOnStart      bool   `yaml:"run_on_start"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// DefaultConfigPath is the XDG location of the user config file.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "dailybrief", "config.yaml")
}

// Default returns the embedded defaults.
func Default() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Resolve picks the config file to read: explicit path, DAILYBRIEF_CONFIG,
// ./config.yaml, then the XDG config dir. Empty means embedded defaults only.
func Resolve(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("DAILYBRIEF_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	if p, err := xdg.SearchConfigFile(filepath.Join("dailybrief", "config.yaml")); err == nil {
		return p
	}
	return ""
}

// Load reads the defaults, overlays the resolved file and applies env overrides.
// It does not validate; callers run Validate once the command is known.
func Load(explicit string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	path := Resolve(explicit)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
		cfg.Path = path
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if os.Getenv("DEBUG") == "true" {
		c.LogLevel = "debug"
	}
	c.Output.RootDir = getEnvOrDefault("DAILYBRIEF_OUTPUT_DIR", c.Output.RootDir)
	c.Summarizer.Backend = getEnvOrDefault("DAILYBRIEF_SUMMARIZER_BACKEND", c.Summarizer.Backend)
	c.Output.RetainDays = getEnvIntOrDefault("DAILYBRIEF_RETAIN_DAYS", c.Output.RetainDays)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// Secret reads the env var named by envName.
func Secret(envName string) string {
	if envName == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(envName))
}

// StoragePath is the translation cache / delivery log location.
func (c *Config) StoragePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	name := "dailybrief.db"
	if c.Storage.Driver == "file" {
		name = "dailybrief_cache.json"
	}
	return filepath.Join(c.Output.RootDir, name)
}

// Validate checks enum values and credentials for enabled backends.
func (c *Config) Validate() error {
	switch c.Summarizer.Backend {
	case "local_dummy":
	case "openai_compatible":
		if Secret(c.Summarizer.OpenAICompatible.APIKeyEnv) == "" {
			return fmt.Errorf("summarizer openai_compatible: %s: %w", c.Summarizer.OpenAICompatible.APIKeyEnv, ErrMissingCredential)
		}
	case "gemini":
		if Secret(c.Summarizer.Gemini.APIKeyEnv) == "" {
			return fmt.Errorf("summarizer gemini: %s: %w", c.Summarizer.Gemini.APIKeyEnv, ErrMissingCredential)
		}
	default:
		return fmt.Errorf("summarizer.backend must be local_dummy, openai_compatible or gemini, got %q", c.Summarizer.Backend)
	}

	if c.Translation.Enabled {
		switch c.Translation.Provider {
		case "llm", "google":
		default:
			return fmt.Errorf("translation.provider must be llm or google, got %q", c.Translation.Provider)
		}
		if c.Translation.TargetLang == "" {
			return fmt.Errorf("translation.target_lang is required")
		}
		if !news.HasTargetScript(c.Translation.TargetLang) {
			return fmt.Errorf("translation.target_lang %q is not supported: already-translated text cannot be detected for it", c.Translation.TargetLang)
		}
	}

	switch c.TTS.AudioFormat {
	case "mp3", "wav":
	default:
		return fmt.Errorf("tts.audio_format must be mp3 or wav, got %q", c.TTS.AudioFormat)
	}
	switch c.TTS.Backend {
	case "none", "edge_tts":
	case "espeak":
		if c.TTS.AudioFormat != "wav" {
			return fmt.Errorf("tts backend espeak requires audio_format wav")
		}
	default:
		return fmt.Errorf("tts.backend must be none, edge_tts or espeak, got %q", c.TTS.Backend)
	}

	if c.Video.Enabled && (c.Video.Width <= 0 || c.Video.Height <= 0 || c.Video.FPS <= 0) {
		return fmt.Errorf("video width, height and fps must be positive")
	}
	if c.Video.RenderTimeoutSeconds < 0 {
		return fmt.Errorf("video.render_timeout_seconds must be >= 0")
	}
	if c.Output.RootDir == "" {
		return fmt.Errorf("output.root_dir is required")
	}
	if c.Output.RetainDays < 0 {
		return fmt.Errorf("output.retain_days must be >= 0")
	}

	switch c.Storage.Driver {
	case "sqlite", "file", "none":
	default:
		return fmt.Errorf("storage.driver must be sqlite, file or none, got %q", c.Storage.Driver)
	}

	if c.Email.Enabled {
		if len(c.Email.To) == 0 || c.Email.FromAddress == "" {
			return fmt.Errorf("email requires from_address and at least one recipient")
		}
		if Secret(c.Email.SMTP.PasswordEnv) == "" {
			return fmt.Errorf("email smtp: %s: %w", c.Email.SMTP.PasswordEnv, ErrMissingCredential)
		}
	}
	if c.Telegram.Enabled {
		if Secret(c.Telegram.BotTokenEnv) == "" {
			return fmt.Errorf("telegram: %s: %w", c.Telegram.BotTokenEnv, ErrMissingCredential)
		}
		if Secret(c.Telegram.ChatIDEnv) == "" {
			return fmt.Errorf("telegram: %s: %w", c.Telegram.ChatIDEnv, ErrMissingCredential)
		}
	}

	switch c.Scheduler.Mode {
	case "daily":
		if _, _, err := ParseClock(c.Scheduler.Time); err != nil {
			return err
		}
	case "hourly":
	case "interval":
		if c.Scheduler.IntervalMinutes <= 0 {
			return fmt.Errorf("scheduler.interval_minutes must be positive")
		}
	default:
		return fmt.Errorf("scheduler.mode must be daily, hourly or interval, got %q", c.Scheduler.Mode)
	}
	return nil
}

// ParseClock parses an "HH:MM" time of day.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("scheduler.time must be HH:MM, got %q", s)
	}
	return t.Hour(), t.Minute(), nil
}
