// Package config handles loading and validating the nagato configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the nagato assistant.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Assistant   AssistantConfig   `mapstructure:"assistant"`
	Transports  TransportsConfig  `mapstructure:"transports"`
	Interpreter InterpreterConfig `mapstructure:"interpreter"`
	Actions     ActionsConfig     `mapstructure:"actions"`
	TTS         TTSConfig         `mapstructure:"tts"`
	Audio       AudioConfig       `mapstructure:"audio"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds the health and metrics server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// AssistantConfig holds the behavior of the command pipeline.
type AssistantConfig struct {
	Name           string `mapstructure:"name"`
	DefaultBrowser string `mapstructure:"default_browser"` // used for searches that name no browser
	VoiceEnabled   bool   `mapstructure:"voice_enabled"`   // speak responses aloud
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	GRPC    GRPCConfig    `mapstructure:"grpc"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Console ConsoleConfig `mapstructure:"console"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// ConsoleConfig configures the interactive stdin transport.
type ConsoleConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Prompt  string `mapstructure:"prompt"`
}

// InterpreterConfig selects and configures the LLM backend.
type InterpreterConfig struct {
	Backend string        `mapstructure:"backend"` // "openai", "local" or "gemini"
	Timeout time.Duration `mapstructure:"timeout"`
	OpenAI  OpenAIConfig  `mapstructure:"openai"`
	Local   LocalConfig   `mapstructure:"local"`
	Gemini  GeminiConfig  `mapstructure:"gemini"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	APIKey             string `mapstructure:"api_key"`
	BaseURL            string `mapstructure:"base_url"`
	TranscriptionModel string `mapstructure:"transcription_model"`
	CompletionModel    string `mapstructure:"completion_model"`
}

// LocalConfig holds self-hosted model settings.
type LocalConfig struct {
	WhisperEndpoint string `mapstructure:"whisper_endpoint"`
	WhisperType     string `mapstructure:"whisper_type"` // "openai" (default) or "asr" (ahmetoner/whisper-asr-webservice)
	LLMEndpoint     string `mapstructure:"llm_endpoint"`
	LLMModel        string `mapstructure:"llm_model"` // Ollama model name (e.g., "llama3.1")
	Language        string `mapstructure:"language"`  // ISO-639-1 default language (e.g., "en", "fr")
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// BreakerConfig tunes the circuit breaker wrapped around the LLM backend.
type BreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      uint32        `mapstructure:"max_requests"`      // probes allowed while half-open
	Interval         time.Duration `mapstructure:"interval"`          // closed-state counter reset period
	Timeout          time.Duration `mapstructure:"timeout"`           // open-state duration before probing
	FailureThreshold uint32        `mapstructure:"failure_threshold"` // consecutive failures that trip the breaker
}

// ActionsConfig tunes the OS automation layer.
type ActionsConfig struct {
	ScreenshotDir     string        `mapstructure:"screenshot_dir"`
	BrowserLaunchWait time.Duration `mapstructure:"browser_launch_wait"`
	AppLaunchWait     time.Duration `mapstructure:"app_launch_wait"`
	FocusWait         time.Duration `mapstructure:"focus_wait"`  // before hotkeys and typing
	HotkeyWait        time.Duration `mapstructure:"hotkey_wait"` // after a hotkey
	SubmitWait        time.Duration `mapstructure:"submit_wait"` // before pressing Return
}

// TTSConfig selects and configures the text-to-speech backend.
type TTSConfig struct {
	Enabled        bool            `mapstructure:"enabled"`
	Backend        string          `mapstructure:"backend"` // "openai" or "piper"
	Conversational bool            `mapstructure:"conversational"`
	QueueSize      int             `mapstructure:"queue_size"`
	OpenAI         OpenAITTSConfig `mapstructure:"openai"`
	Piper          PiperConfig     `mapstructure:"piper"`
}

// OpenAITTSConfig holds OpenAI speech synthesis settings.
type OpenAITTSConfig struct {
	Model  string  `mapstructure:"model"`
	Voice  string  `mapstructure:"voice"`
	Speed  float64 `mapstructure:"speed"`
	Format string  `mapstructure:"format"`
}

// PiperConfig holds Piper TTS settings (Wyoming protocol).
//
// For a single Piper instance that serves all languages, set Endpoint.
// Endpoints maps ISO-639-1 codes to per-language Wyoming TCP endpoints and
// takes precedence over Endpoint.
type PiperConfig struct {
	Endpoint  string            `mapstructure:"endpoint"`
	Endpoints map[string]string `mapstructure:"endpoints"`
	Voices    map[string]string `mapstructure:"voices"`
	Language  string            `mapstructure:"language"`
}

// AudioConfig holds microphone capture settings for voice commands.
type AudioConfig struct {
	SampleRate int           `mapstructure:"sample_rate"`
	Channels   int           `mapstructure:"channels"`
	Duration   time.Duration `mapstructure:"duration"`
	TempDir    string        `mapstructure:"temp_dir"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./nagato.yaml, ./configs/nagato.yaml, /etc/nagato/nagato.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("nagato")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/nagato")
	}

	// Environment variables: NAGATO_ASSISTANT_DEFAULT_BROWSER, NAGATO_INTERPRETER_BACKEND, etc.
	v.SetEnvPrefix("NAGATO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${OPENAI_API_KEY}").
	cfg.Interpreter.OpenAI.APIKey = resolveEnvRef(cfg.Interpreter.OpenAI.APIKey)
	cfg.Interpreter.Gemini.APIKey = resolveEnvRef(cfg.Interpreter.Gemini.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("assistant.name", "Nagato")
	v.SetDefault("assistant.default_browser", "Safari")
	v.SetDefault("assistant.voice_enabled", true)
	v.SetDefault("transports.grpc.enabled", false)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("transports.console.enabled", true)
	v.SetDefault("transports.console.prompt", "> ")
	v.SetDefault("interpreter.backend", "openai")
	v.SetDefault("interpreter.timeout", 30*time.Second)
	v.SetDefault("interpreter.openai.api_key", "${OPENAI_API_KEY}")
	v.SetDefault("interpreter.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("interpreter.openai.transcription_model", "whisper-1")
	v.SetDefault("interpreter.openai.completion_model", "gpt-4")
	v.SetDefault("interpreter.local.whisper_endpoint", "http://localhost:8000/v1/audio/transcriptions")
	v.SetDefault("interpreter.local.whisper_type", "openai")
	v.SetDefault("interpreter.local.llm_endpoint", "http://localhost:11434/v1/chat/completions")
	v.SetDefault("interpreter.local.llm_model", "llama3.1")
	v.SetDefault("interpreter.local.language", "")
	v.SetDefault("interpreter.gemini.api_key", "${GEMINI_API_KEY}")
	v.SetDefault("interpreter.gemini.model", "gemini-2.0-flash")
	v.SetDefault("interpreter.breaker.enabled", true)
	v.SetDefault("interpreter.breaker.max_requests", 1)
	v.SetDefault("interpreter.breaker.interval", time.Minute)
	v.SetDefault("interpreter.breaker.timeout", 30*time.Second)
	v.SetDefault("interpreter.breaker.failure_threshold", 3)
	v.SetDefault("actions.screenshot_dir", "screenshots")
	v.SetDefault("actions.browser_launch_wait", 3*time.Second)
	v.SetDefault("actions.app_launch_wait", time.Second)
	v.SetDefault("actions.focus_wait", 500*time.Millisecond)
	v.SetDefault("actions.hotkey_wait", 300*time.Millisecond)
	v.SetDefault("actions.submit_wait", 200*time.Millisecond)
	v.SetDefault("tts.enabled", true)
	v.SetDefault("tts.backend", "openai")
	v.SetDefault("tts.conversational", false)
	v.SetDefault("tts.queue_size", 16)
	v.SetDefault("tts.openai.model", "tts-1")
	v.SetDefault("tts.openai.voice", "nova")
	v.SetDefault("tts.openai.speed", 1.0)
	v.SetDefault("tts.openai.format", "mp3")
	v.SetDefault("tts.piper.endpoint", "localhost:10200")
	v.SetDefault("tts.piper.language", "en")
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.duration", 5*time.Second)
	v.SetDefault("audio.temp_dir", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks settings that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	switch c.Interpreter.Backend {
	case "openai", "local", "gemini":
	default:
		return fmt.Errorf("unknown interpreter backend %q", c.Interpreter.Backend)
	}
	if c.TTS.Enabled {
		switch c.TTS.Backend {
		case "openai", "piper":
		default:
			return fmt.Errorf("unknown tts backend %q", c.TTS.Backend)
		}
	}
	for name, port := range map[string]int{
		"server.health_port":   c.Server.HealthPort,
		"transports.http.port": c.Transports.HTTP.Port,
		"transports.grpc.port": c.Transports.GRPC.Port,
	} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("%s: invalid port %d", name, port)
		}
	}
	if strings.TrimSpace(c.Assistant.DefaultBrowser) == "" {
		return fmt.Errorf("assistant.default_browser must not be empty")
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
// An unset variable resolves to the empty string.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		return os.Getenv(val[2 : len(val)-1])
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
