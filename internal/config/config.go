package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/rivalwatch/internal/group"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Company     string       `yaml:"company"`
	Competitors []Competitor `yaml:"competitors"`
	Pipeline    Pipeline     `yaml:"pipeline"`
	Sources     Sources      `yaml:"sources"`
	LLM         LLM          `yaml:"llm"`
	Sink        Sink         `yaml:"sink"`
	Output      Output       `yaml:"output"`
	Logging     Logging      `yaml:"logging"`
}

type Competitor struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Query    string   `yaml:"query"`
	Feeds    []Feed   `yaml:"feeds"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Pipeline struct {
	LookbackDays       int  `yaml:"lookback_days"`
	AllowUndatedItems  bool `yaml:"allow_undated_items"`
	MaxFactItems       int  `yaml:"max_fact_items"`
	FactCacheMode      bool `yaml:"fact_cache_mode"`
	WeeklyStrategyMode bool `yaml:"weekly_strategy_mode"`
	ReportOutputDays   int  `yaml:"report_output_days"`
	FetchFullText      bool `yaml:"fetch_full_text"`
}

type Sources struct {
	GoogleNews GoogleNews    `yaml:"google_news"`
	NewsAPI    NewsAPIConfig `yaml:"newsapi"`
}

type GoogleNews struct {
	Enabled     bool   `yaml:"enabled"`
	Language    string `yaml:"hl"`
	Country     string `yaml:"gl"`
	Edition     string `yaml:"ceid"`
	QuerySuffix string `yaml:"query_suffix"`
}

type NewsAPIConfig struct {
	Enabled   bool   `yaml:"enabled"`
	APIKeyEnv string `yaml:"api_key_env"`
	Language  string `yaml:"language"`
	PageSize  int    `yaml:"page_size"`
}

type LLM struct {
	Provider           string `yaml:"provider"`
	Model              string `yaml:"model"`
	OllamaURL          string `yaml:"ollama_url"`
	OpenAIModel        string `yaml:"openai_model"`
	OpenAIAPIKeyEnv    string `yaml:"openai_api_key_env"`
	AnthropicModel     string `yaml:"anthropic_model"`
	AnthropicAPIKeyEnv string `yaml:"anthropic_api_key_env"`
	MaxTokens          int    `yaml:"max_tokens"`
	RequestsPerMinute  int    `yaml:"requests_per_minute"`
}

type Sink struct {
	SlackWebhookEnv string `yaml:"slack_webhook_env"`
	SlackWebhookURL string `yaml:"slack_webhook_url"`
	ReportDir       string `yaml:"report_dir"`
	Stdout          bool   `yaml:"stdout"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// Error reports missing or invalid configuration. It is fatal at startup.
type Error struct {
	Key string
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Msg)
}

// ConfigDir returns the XDG config directory for rivalwatch.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "rivalwatch")
}

// DataDir returns the XDG data directory for rivalwatch.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "rivalwatch")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > $XDG_CONFIG_HOME/rivalwatch/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'rivalwatch init' to create a default config",
		xdgConfig,
	)
}

// Load reads a config YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data, os.LookupEnv)
}

// parse parses YAML bytes into a Config, applying defaults and then the
// environment.
func parse(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{
		Pipeline: Pipeline{
			LookbackDays:     14,
			MaxFactItems:     20,
			ReportOutputDays: 7,
		},
		Sources: Sources{
			GoogleNews: GoogleNews{
				Enabled:  true,
				Language: "ko",
				Country:  "KR",
				Edition:  "KR:ko",
			},
			NewsAPI: NewsAPIConfig{APIKeyEnv: "NEWSAPI_KEY", PageSize: 50},
		},
		LLM: LLM{
			Provider:           "ollama",
			Model:              "qwen2.5:7b",
			OllamaURL:          "http://localhost:11434",
			OpenAIModel:        "gpt-4o-mini",
			OpenAIAPIKeyEnv:    "OPENAI_API_KEY",
			AnthropicModel:     "claude-haiku-4-5",
			AnthropicAPIKeyEnv: "ANTHROPIC_API_KEY",
			MaxTokens:          2048,
		},
		Sink:    Sink{SlackWebhookEnv: "SLACK_WEBHOOK_URL"},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	ints := []struct {
		key  string
		dest *int
	}{
		{"LOOKBACK_DAYS", &cfg.Pipeline.LookbackDays},
		{"MAX_FACT_ITEMS", &cfg.Pipeline.MaxFactItems},
		{"REPORT_OUTPUT_DAYS", &cfg.Pipeline.ReportOutputDays},
	}
	for _, e := range ints {
		v, ok := lookup(e.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &Error{Key: e.key, Msg: fmt.Sprintf("invalid integer %q", v)}
		}
		*e.dest = n
	}

	bools := []struct {
		key  string
		dest *bool
	}{
		{"ALLOW_UNDATED_ITEMS", &cfg.Pipeline.AllowUndatedItems},
		{"FACT_CACHE_MODE", &cfg.Pipeline.FactCacheMode},
		{"WEEKLY_STRATEGY_MODE", &cfg.Pipeline.WeeklyStrategyMode},
	}
	for _, e := range bools {
		v, ok := lookup(e.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		b, err := parseBool(v)
		if err != nil {
			return &Error{Key: e.key, Msg: err.Error()}
		}
		*e.dest = b
	}

	if v, ok := lookup("COMPETITORS"); ok && strings.TrimSpace(v) != "" {
		cfg.Competitors = mergeCompetitors(cfg.Competitors, v)
	}
	if v, ok := lookup("LLM_PROVIDER"); ok && strings.TrimSpace(v) != "" {
		cfg.LLM.Provider = strings.TrimSpace(v)
	}
	if v, ok := lookup("LOG_LEVEL"); ok && strings.TrimSpace(v) != "" {
		cfg.Logging.Level = strings.TrimSpace(v)
	}
	return nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", v)
}

// mergeCompetitors replaces the competitor list with the comma-separated
// names, keeping keyword settings for names already configured.
func mergeCompetitors(existing []Competitor, list string) []Competitor {
	known := make(map[string]Competitor, len(existing))
	for _, c := range existing {
		known[strings.ToLower(c.Name)] = c
	}

	var out []Competitor
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if c, ok := known[strings.ToLower(name)]; ok {
			out = append(out, c)
			continue
		}
		out = append(out, Competitor{Name: name})
	}
	return out
}

// Validate checks the configuration needed before any pipeline stage runs.
func (c *Config) Validate() error {
	if len(c.Competitors) == 0 {
		return &Error{Key: "competitors", Msg: "at least one competitor is required"}
	}
	for i, comp := range c.Competitors {
		if strings.TrimSpace(comp.Name) == "" {
			return &Error{Key: fmt.Sprintf("competitors[%d].name", i), Msg: "name is required"}
		}
	}
	if c.Pipeline.LookbackDays <= 0 {
		return &Error{Key: "lookback_days", Msg: "must be positive"}
	}
	if c.Pipeline.MaxFactItems <= 0 {
		return &Error{Key: "max_fact_items", Msg: "must be positive"}
	}
	if c.Pipeline.ReportOutputDays <= 0 {
		return &Error{Key: "report_output_days", Msg: "must be positive"}
	}
	if c.SlackWebhook() == "" && c.Sink.ReportDir == "" && !c.Sink.Stdout {
		return &Error{Key: "sink", Msg: "set " + c.Sink.SlackWebhookEnv + ", sink.report_dir or sink.stdout"}
	}
	return nil
}

// SlackWebhook returns the webhook URL from config or its environment variable.
func (c *Config) SlackWebhook() string {
	if c.Sink.SlackWebhookURL != "" {
		return c.Sink.SlackWebhookURL
	}
	if c.Sink.SlackWebhookEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.Sink.SlackWebhookEnv))
}

// KeywordTable builds the company classifier table. Each competitor's name is
// its first keyword, followed by the configured synonyms.
func (c *Config) KeywordTable() group.KeywordTable {
	var rules []group.Rule
	for _, comp := range c.Competitors {
		rules = append(rules, group.Rule{Keyword: comp.Name, Company: comp.Name})
		for _, kw := range comp.Keywords {
			rules = append(rules, group.Rule{Keyword: kw, Company: comp.Name})
		}
	}
	return group.NewKeywordTable(rules...)
}

// CompetitorNames returns the configured competitor names in order.
func (c *Config) CompetitorNames() []string {
	names := make([]string, 0, len(c.Competitors))
	for _, comp := range c.Competitors {
		names = append(names, comp.Name)
	}
	return names
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// FactDir returns the fact cache root.
func (c *Config) FactDir() string {
	return filepath.Join(c.GetDataDir(), "facts")
}

// DBPath returns the run history database path.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "rivalwatch.db")
}
