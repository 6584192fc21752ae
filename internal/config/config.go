package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultModel              = "qwen2.5:14b-instruct"
	DefaultFallbackModel      = "qwen2.5:7b-instruct"
	DefaultTemperature        = 0.4
	DefaultNumCtx             = 8192
	DefaultNumPredict         = 1024
	DefaultFallbackNumCtx     = 4096
	DefaultFallbackNumPredict = 512
	DefaultHost               = "0.0.0.0"
	DefaultPort               = 18690
	DefaultBufSize            = 100
	DefaultHistoryLimit       = 20
	DefaultLang               = "ar"
	DefaultServiceTimeout     = 15
	DefaultCourseLimit        = 6
)

type Config struct {
	Gateway  GatewayConfig  `json:"gateway"`
	Channels ChannelsConfig `json:"channels"`
	LLM      LLMConfig      `json:"llm"`
	Services ServicesConfig `json:"services"`
	History  HistoryConfig  `json:"history"`
	Lang     string         `json:"lang"`
}

type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type ChannelsConfig struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Messenger MessengerConfig `json:"messenger"`
	Web       WebConfig       `json:"web"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
}

type MessengerConfig struct {
	Enabled     bool     `json:"enabled"`
	PageToken   string   `json:"pageToken"`
	VerifyToken string   `json:"verifyToken"`
	AppSecret   string   `json:"appSecret"`
	Port        int      `json:"port,omitempty"`
	GraphURL    string   `json:"graphUrl,omitempty"`
	AllowFrom   []string `json:"allowFrom"`
}

type WebConfig struct {
	Enabled      bool     `json:"enabled"`
	AllowFrom    []string `json:"allowFrom"`
	AllowOrigins []string `json:"allowOrigins,omitempty"`
}

type LLMConfig struct {
	BaseURL            string  `json:"baseUrl"`
	APIKey             string  `json:"apiKey,omitempty"`
	Model              string  `json:"model"`
	FallbackModel      string  `json:"fallbackModel"`
	Temperature        float64 `json:"temperature"`
	NumCtx             int     `json:"numCtx"`
	NumPredict         int     `json:"numPredict"`
	FallbackNumCtx     int     `json:"fallbackNumCtx"`
	FallbackNumPredict int     `json:"fallbackNumPredict"`
}

// ServicesConfig points at the collaborator APIs the tools call:
// market data, course catalog, analysis notes, and the booking backend
// (availability / appointments / tickets).
type ServicesConfig struct {
	PriceURL    string `json:"priceUrl"`
	CoursesURL  string `json:"coursesUrl"`
	AnalysisURL string `json:"analysisUrl"`
	BookingURL  string `json:"bookingUrl"`
	TimeoutSec  int    `json:"timeoutSec"`
}

type HistoryConfig struct {
	DBPath       string `json:"dbPath,omitempty"`
	ContextLimit int    `json:"contextLimit"`
}

func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Channels: ChannelsConfig{},
		LLM: LLMConfig{
			BaseURL:            "http://localhost:11434/v1",
			Model:              DefaultModel,
			FallbackModel:      DefaultFallbackModel,
			Temperature:        DefaultTemperature,
			NumCtx:             DefaultNumCtx,
			NumPredict:         DefaultNumPredict,
			FallbackNumCtx:     DefaultFallbackNumCtx,
			FallbackNumPredict: DefaultFallbackNumPredict,
		},
		Services: ServicesConfig{
			TimeoutSec: DefaultServiceTimeout,
		},
		History: HistoryConfig{
			ContextLimit: DefaultHistoryLimit,
		},
		Lang: DefaultLang,
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".sahmbot")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SAHMBOT_TELEGRAM_TOKEN"); v != "" {
		cfg.Channels.Telegram.Token = v
		cfg.Channels.Telegram.Enabled = true
	}
	if v := os.Getenv("SAHMBOT_MESSENGER_PAGE_TOKEN"); v != "" {
		cfg.Channels.Messenger.PageToken = v
	}
	if v := os.Getenv("SAHMBOT_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("SAHMBOT_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("SAHMBOT_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("SAHMBOT_FALLBACK_MODEL"); v != "" {
		cfg.LLM.FallbackModel = v
	}
	if v := os.Getenv("SAHMBOT_BOOKING_URL"); v != "" {
		cfg.Services.BookingURL = v
	}
	if v := os.Getenv("SAHMBOT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
}

func SaveConfig(cfg *Config) error {
	if err := os.MkdirAll(ConfigDir(), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(ConfigPath(), data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
