package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// 中文说明：
// TOML 配置。所有默认值集中在 Normalize，配置文件只写需要覆盖的项。

type Config struct {
	Server     ServerConfig     `toml:"server"`
	Log        LogConfig        `toml:"log"`
	Database   DatabaseConfig   `toml:"database"`
	Market     MarketConfig     `toml:"market"`
	AI         AIConfig         `toml:"ai"`
	Fusion     FusionConfig     `toml:"fusion"`
	Reflection ReflectionConfig `toml:"reflection"`
	Snapshot   SnapshotConfig   `toml:"snapshot"`
}

type ServerConfig struct {
	Listen string `toml:"listen"`
}

type LogConfig struct {
	Level         string `toml:"level"`
	LogLLMPayload bool   `toml:"log_llm_payload"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type MarketConfig struct {
	APIKey    string            `toml:"api_key"`
	APISecret string            `toml:"api_secret"`
	Symbols   map[string]string `toml:"symbols"`
	CacheMax  int               `toml:"cache_max"`
}

// ModelConfig 单个推理模型条目。
type ModelConfig struct {
	ID             string            `toml:"id"`
	Provider       string            `toml:"provider"`
	APIURL         string            `toml:"api_url"`
	APIKey         string            `toml:"api_key"`
	Model          string            `toml:"model"`
	Enabled        bool              `toml:"enabled"`
	SupportsVision bool              `toml:"supports_vision"`
	ExpectJSON     bool              `toml:"expect_json"`
	Headers        map[string]string `toml:"headers"`
}

type AIConfig struct {
	Models         []ModelConfig `toml:"models"`
	TimeoutSeconds int           `toml:"timeout_seconds"`
	MaxTokens      int           `toml:"max_tokens"`
}

type FusionConfig struct {
	CandleLimit int `toml:"candle_limit"`
}

type ReflectionConfig struct {
	WeightBlend float64 `toml:"weight_blend"`
}

type SnapshotConfig struct {
	Enabled        bool `toml:"enabled"`
	TimeoutSeconds int  `toml:"timeout_seconds"`
}

// Load 读取配置文件；path 为空时返回纯默认配置。
func Load(path string) (Config, error) {
	var cfg Config
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("读取配置失败: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("解析配置失败: %w", err)
		}
	}
	return Normalize(cfg), nil
}

// Normalize 填充默认值。
func Normalize(cfg Config) Config {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "forexjoey.db"
	}
	if cfg.Market.CacheMax <= 0 {
		cfg.Market.CacheMax = 500
	}
	if cfg.AI.TimeoutSeconds <= 0 {
		cfg.AI.TimeoutSeconds = 60
	}
	if cfg.AI.MaxTokens <= 0 {
		cfg.AI.MaxTokens = 4096
	}
	if cfg.Fusion.CandleLimit <= 0 {
		cfg.Fusion.CandleLimit = 200
	}
	if cfg.Reflection.WeightBlend <= 0 || cfg.Reflection.WeightBlend >= 1 {
		cfg.Reflection.WeightBlend = 0.2
	}
	if cfg.Snapshot.TimeoutSeconds <= 0 {
		cfg.Snapshot.TimeoutSeconds = 20
	}
	return cfg
}

// AITimeout 推理调用的有界超时。
func (c Config) AITimeout() time.Duration {
	return time.Duration(c.AI.TimeoutSeconds) * time.Second
}
