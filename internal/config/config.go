package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ipcmatch/internal/engine"
	"ipcmatch/internal/logging"
)

// CorpusConfig locates the statute corpus and controls hot reload.
type CorpusConfig struct {
	Path           string `yaml:"path"`
	Watch          bool   `yaml:"watch"`
	DebounceMillis int    `yaml:"debounce_millis"`
}

// LexiconConfig overrides the embedded synonym and pattern tables. Both
// paths must be set together.
type LexiconConfig struct {
	SynonymsPath string `yaml:"synonyms_path,omitempty"`
	PatternsPath string `yaml:"patterns_path,omitempty"`
}

// EngineConfig mirrors engine.Options.
type EngineConfig struct {
	MaxVocabulary           int     `yaml:"max_vocabulary"`
	NgramMin                int     `yaml:"ngram_min"`
	NgramMax                int     `yaml:"ngram_max"`
	MinDocFreq              int     `yaml:"min_doc_freq"`
	MaxDocFreqRatio         float64 `yaml:"max_doc_freq_ratio"`
	SimilarityThreshold     float64 `yaml:"similarity_threshold"`
	VectorTopK              int     `yaml:"vector_top_k"`
	TopN                    int     `yaml:"top_n"`
	VectorPatternBoost      float64 `yaml:"vector_pattern_boost"`
	FallbackPatternBoost    float64 `yaml:"fallback_pattern_boost"`
	MatchedKeywordThreshold float64 `yaml:"matched_keyword_threshold"`
	EnableVectorSearch      bool    `yaml:"enable_vector_search"`
	EnablePatternBoost      bool    `yaml:"enable_pattern_boost"`
	EnableSynonymExpansion  bool    `yaml:"enable_synonym_expansion"`
	ExpandPatternWords      bool    `yaml:"expand_pattern_words"`
	ExpandQuerySynonyms     bool    `yaml:"expand_query_synonyms"`
}

// GeminiConfig holds configuration for the Gemini summarizer.
type GeminiConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// OpenAIConfig holds configuration for the OpenAI-compatible summarizer.
type OpenAIConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Model      string `yaml:"model"`
	MaxRetries int    `yaml:"max_retries"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string        `yaml:"type"`
	MaxSentences int           `yaml:"max_sentences"`
	TimeoutSecs  int           `yaml:"timeout_secs"`
	Gemini       *GeminiConfig `yaml:"gemini,omitempty"`
	OpenAI       *OpenAIConfig `yaml:"openai,omitempty"`
}

// Timeout bounds a single summary call.
func (s SummarizerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSecs) * time.Second
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ReadTimeoutSecs int    `yaml:"read_timeout_secs"`
	ShutdownSecs    int    `yaml:"shutdown_secs"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// ConversationLogConfig selects where analysed queries are recorded.
type ConversationLogConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Corpus          CorpusConfig          `yaml:"corpus"`
	Lexicon         LexiconConfig         `yaml:"lexicon"`
	Engine          EngineConfig          `yaml:"engine"`
	Summarizer      SummarizerConfig      `yaml:"summarizer"`
	Server          ServerConfig          `yaml:"server"`
	ConversationLog ConversationLogConfig `yaml:"conversation_log"`
	Log             logging.LogConfig     `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Fields absent from the file keep their defaults.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ipcmatch/config.yaml.
// If neither exists, it writes defaults to ~/.config/ipcmatch/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ipcmatch", "config.yaml"), nil
}

// Default returns the reference configuration.
func Default() *AppConfig {
	o := engine.DefaultOptions()
	return &AppConfig{
		Corpus: CorpusConfig{Path: "data/ipc_sections.json", DebounceMillis: 250},
		Engine: EngineConfig{
			MaxVocabulary:           o.MaxVocabulary,
			NgramMin:                o.NgramMin,
			NgramMax:                o.NgramMax,
			MinDocFreq:              o.MinDocFreq,
			MaxDocFreqRatio:         o.MaxDocFreqRatio,
			SimilarityThreshold:     o.SimilarityThreshold,
			VectorTopK:              o.VectorTopK,
			TopN:                    o.TopN,
			VectorPatternBoost:      o.VectorPatternBoost,
			FallbackPatternBoost:    o.FallbackPatternBoost,
			MatchedKeywordThreshold: o.MatchedKeywordThreshold,
			EnableVectorSearch:      o.EnableVectorSearch,
			EnablePatternBoost:      o.EnablePatternBoost,
			EnableSynonymExpansion:  o.EnableSynonymExpansion,
			ExpandPatternWords:      o.ExpandPatternWords,
			ExpandQuerySynonyms:     o.ExpandQuerySynonyms,
		},
		Summarizer:      SummarizerConfig{Type: "frequency", MaxSentences: 3, TimeoutSecs: 20},
		Server:          ServerConfig{Host: "0.0.0.0", Port: 5000, ReadTimeoutSecs: 15, ShutdownSecs: 10},
		ConversationLog: ConversationLogConfig{Type: "bolt", Path: "logs/conversations.db"},
		Log:             logging.LogConfig{Level: "info", Format: "json"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}
	if cfg.Summarizer.TimeoutSecs == 0 {
		cfg.Summarizer.TimeoutSecs = 20
	}
	if cfg.Summarizer.Type == "gemini" {
		if cfg.Summarizer.Gemini == nil {
			cfg.Summarizer.Gemini = &GeminiConfig{}
		}
		if cfg.Summarizer.Gemini.APIKeyEnv == "" {
			cfg.Summarizer.Gemini.APIKeyEnv = "GEMINI_API_KEY"
		}
		if cfg.Summarizer.Gemini.Model == "" {
			cfg.Summarizer.Gemini.Model = "gemini-1.5-pro"
		}
	}
	if cfg.Summarizer.Type == "openai" {
		if cfg.Summarizer.OpenAI == nil {
			cfg.Summarizer.OpenAI = &OpenAIConfig{}
		}
		if cfg.Summarizer.OpenAI.BaseURL == "" {
			cfg.Summarizer.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Summarizer.OpenAI.APIKeyEnv == "" {
			cfg.Summarizer.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Summarizer.OpenAI.Model == "" {
			cfg.Summarizer.OpenAI.Model = "gpt-4o-mini"
		}
		if cfg.Summarizer.OpenAI.MaxRetries == 0 {
			cfg.Summarizer.OpenAI.MaxRetries = 3
		}
	}
	if cfg.Corpus.DebounceMillis == 0 {
		cfg.Corpus.DebounceMillis = 250
	}
	if cfg.ConversationLog.Type == "" {
		cfg.ConversationLog.Type = "none"
	}
}

// ApplyEnv overrides settings from the environment variables the service
// has always honoured. Malformed numbers are reported.
func ApplyEnv(cfg *AppConfig) error {
	if v, ok := lookup("SIMILARITY_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SIMILARITY_THRESHOLD: %w", err)
		}
		cfg.Engine.SimilarityThreshold = f
	}
	if v, ok := lookup("USE_LLM_ENHANCEMENT"); ok {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("USE_LLM_ENHANCEMENT: %w", err)
		}
		switch {
		case on && cfg.Summarizer.Type != "openai":
			cfg.Summarizer.Type = "gemini"
		case !on && (cfg.Summarizer.Type == "gemini" || cfg.Summarizer.Type == "openai"):
			cfg.Summarizer.Type = "frequency"
		}
	}
	if v, ok := lookup("GEMINI_MODEL"); ok {
		if cfg.Summarizer.Gemini == nil {
			cfg.Summarizer.Gemini = &GeminiConfig{}
		}
		cfg.Summarizer.Gemini.Model = v
	}
	if v, ok := lookup("PORT"); ok {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		cfg.Server.Port = p
	}
	if v, ok := lookup("IPC_CORPUS_PATH"); ok {
		cfg.Corpus.Path = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	applyConfigDefaults(cfg)
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// Validate reports the first invalid setting.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Corpus.Path) == "" {
		return errors.New("corpus.path is required")
	}
	if (c.Lexicon.SynonymsPath == "") != (c.Lexicon.PatternsPath == "") {
		return errors.New("lexicon.synonyms_path and lexicon.patterns_path must be set together")
	}
	if err := c.EngineOptions().Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	switch c.Summarizer.Type {
	case "frequency", "gemini", "openai", "none":
	default:
		return fmt.Errorf("unknown summarizer type %q", c.Summarizer.Type)
	}
	switch c.ConversationLog.Type {
	case "bolt":
		if c.ConversationLog.Path == "" {
			return errors.New("conversation_log.path is required for bolt")
		}
	case "none":
	default:
		return fmt.Errorf("unknown conversation_log type %q", c.ConversationLog.Type)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Log.Format {
	case "json", "console", "":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// EngineOptions converts the engine section.
func (c *AppConfig) EngineOptions() engine.Options {
	e := c.Engine
	return engine.Options{
		MaxVocabulary:           e.MaxVocabulary,
		NgramMin:                e.NgramMin,
		NgramMax:                e.NgramMax,
		MinDocFreq:              e.MinDocFreq,
		MaxDocFreqRatio:         e.MaxDocFreqRatio,
		SimilarityThreshold:     e.SimilarityThreshold,
		VectorTopK:              e.VectorTopK,
		TopN:                    e.TopN,
		VectorPatternBoost:      e.VectorPatternBoost,
		FallbackPatternBoost:    e.FallbackPatternBoost,
		MatchedKeywordThreshold: e.MatchedKeywordThreshold,
		EnableVectorSearch:      e.EnableVectorSearch,
		EnablePatternBoost:      e.EnablePatternBoost,
		EnableSynonymExpansion:  e.EnableSynonymExpansion,
		ExpandPatternWords:      e.ExpandPatternWords,
		ExpandQuerySynonyms:     e.ExpandQuerySynonyms,
	}
}
