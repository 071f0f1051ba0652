package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Generation GenerationConfig `mapstructure:"generation"`
	Stream     StreamConfig     `mapstructure:"stream"`
	Player     PlayerConfig     `mapstructure:"player"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Log        LogConfig        `mapstructure:"log"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Client     ClientConfig     `mapstructure:"client"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes    int           `mapstructure:"max_header_bytes"`
	StreamTimeout     time.Duration `mapstructure:"stream_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

// LLMConfig selects the chat model backing every generation endpoint.
type LLMConfig struct {
	Provider string       `mapstructure:"provider"` // openai | doubao | qwen
	OpenAI   OpenAIConfig `mapstructure:"openai"`
	Doubao   DoubaoConfig `mapstructure:"doubao"`
	Qwen     QwenConfig   `mapstructure:"qwen"`
}

type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DoubaoConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type QwenConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Temperature  float32       `mapstructure:"temperature"`
	TopP         float32       `mapstructure:"top_p"`
	Timeout      time.Duration `mapstructure:"timeout"`
	DebugRequest bool          `mapstructure:"debug_request"`
}

type GenerationConfig struct {
	ChatPrompt         string `mapstructure:"chat_prompt"`
	PresentationPrompt string `mapstructure:"presentation_prompt"`
	MaxSourceChars     int    `mapstructure:"max_source_chars"`
	MaxHistoryMessages int    `mapstructure:"max_history_messages"`
}

// StreamConfig bounds the client-side stream assembler.
type StreamConfig struct {
	MaxPendingBytes int `mapstructure:"max_pending_bytes"`
	MaxRetries      int `mapstructure:"max_retries"`
}

type PlayerConfig struct {
	TickInterval   time.Duration `mapstructure:"tick_interval"`
	WordsPerMinute int           `mapstructure:"words_per_minute"`
	MinDuration    time.Duration `mapstructure:"min_duration"`
	MutedDuration  time.Duration `mapstructure:"muted_duration"`
	ControlsHide   time.Duration `mapstructure:"controls_hide"`
	Rate           float64       `mapstructure:"rate"`
	Pitch          float64       `mapstructure:"pitch"`
	NarratorCmd    string        `mapstructure:"narrator_cmd"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StorageConfig struct {
	Type      string `mapstructure:"type"` // memory | disk | sqlite
	DataDir   string `mapstructure:"data_dir"`
	CacheSize int    `mapstructure:"cache_size"`
}

// ClientConfig is read by the notebook CLI.
type ClientConfig struct {
	ServerURL string        `mapstructure:"server_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

var cfg *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.max_header_bytes", 1<<20)
	v.SetDefault("server.stream_timeout", 10*time.Minute)
	v.SetDefault("server.heartbeat_interval", 15*time.Second)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.openai.timeout", 90*time.Second)
	v.SetDefault("llm.doubao.max_tokens", 4096)
	v.SetDefault("llm.doubao.timeout", 90*time.Second)
	v.SetDefault("llm.qwen.base_url", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	v.SetDefault("llm.qwen.model", "qwen-plus")
	v.SetDefault("llm.qwen.max_tokens", 4096)
	v.SetDefault("llm.qwen.temperature", 0.7)
	v.SetDefault("llm.qwen.top_p", 0.9)
	v.SetDefault("llm.qwen.timeout", 90*time.Second)

	v.SetDefault("generation.max_source_chars", 12000)
	v.SetDefault("generation.max_history_messages", 20)

	v.SetDefault("stream.max_pending_bytes", 1<<20)
	v.SetDefault("stream.max_retries", 8)

	v.SetDefault("player.tick_interval", 50*time.Millisecond)
	v.SetDefault("player.words_per_minute", 140)
	v.SetDefault("player.min_duration", 3*time.Second)
	v.SetDefault("player.muted_duration", 4*time.Second)
	v.SetDefault("player.controls_hide", 3*time.Second)
	v.SetDefault("player.rate", 0.9)
	v.SetDefault("player.pitch", 1.0)
	v.SetDefault("player.narrator_cmd", "espeak")

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization"})
	v.SetDefault("cors.max_age", 43200)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.cache_size", 100)

	v.SetDefault("client.server_url", "http://localhost:8080")
	v.SetDefault("client.timeout", 0)
}

// Load reads the YAML file at configPath on top of the built-in defaults.
// A missing file is not an error; the defaults and environment are used.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("NOTEBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", configPath, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, err
	}

	// Config file wins; fall back to the usual environment variables.
	if c.LLM.OpenAI.APIKey == "" {
		c.LLM.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.LLM.Doubao.APIKey == "" {
		c.LLM.Doubao.APIKey = os.Getenv("ARK_API_KEY")
	}
	if c.LLM.Qwen.APIKey == "" {
		c.LLM.Qwen.APIKey = os.Getenv("DASHSCOPE_API_KEY")
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	cfg = c
	return c, nil
}

// Validate rejects settings the player and assembler cannot run with.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "doubao", "qwen":
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}
	switch c.Storage.Type {
	case "memory", "disk", "sqlite":
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}
	if c.Player.TickInterval <= 0 {
		return errors.New("player.tick_interval must be positive")
	}
	if c.Player.WordsPerMinute <= 0 {
		return errors.New("player.words_per_minute must be positive")
	}
	if c.Stream.MaxPendingBytes <= 0 {
		return errors.New("stream.max_pending_bytes must be positive")
	}
	return nil
}

func Get() *Config {
	return cfg
}
