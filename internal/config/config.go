package config

import (
	"time"

	"github.com/shouni/go-utils/envutil"
)

// デフォルト値の定義なのだ
const (
	DefaultModel           = "gemini-3-flash-preview"
	DefaultBriaAPIURL      = "https://engine.prod.bria-api.com/v2/image/generate"
	DefaultListenAddr      = ":8000"
	DefaultHTTPTimeout     = 120 * time.Second
	DefaultEnvironment     = "development"
	DefaultSessionTTL      = 24 * time.Hour
	DefaultMaxConcurrent   = 8
	DefaultShutdownTimeout = 30 * time.Second
)

// Config はアプリケーション全体の環境設定（APIキーや接続先）を保持する構造体なのだ。
type Config struct {
	Environment  string
	BriaAPIToken string
	BriaAPIURL   string
	GeminiAPIKey string
	GeminiModel  string
	ListenAddr   string

	Options ServeOptions
}

// LoadConfig は環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	cfg := &Config{
		Environment:  envutil.GetEnv("ENVIRONMENT", DefaultEnvironment),
		BriaAPIToken: envutil.GetEnv("BRIA_API_TOKEN", ""),
		BriaAPIURL:   envutil.GetEnv("BRIA_API_URL", DefaultBriaAPIURL),
		GeminiAPIKey: envutil.GetEnv("GEMINI_API_KEY", ""),
		GeminiModel:  envutil.GetEnv("GEMINI_MODEL", DefaultModel),
		ListenAddr:   envutil.GetEnv("LISTEN_ADDR", DefaultListenAddr),
	}
	return cfg
}

// BriaConfigured は画像合成APIのトークンが設定済みかを返すのだ。
func (c *Config) BriaConfigured() bool { return c.BriaAPIToken != "" }

// LLMConfigured はテキストLLMのAPIキーが設定済みかを返すのだ。
func (c *Config) LLMConfigured() bool { return c.GeminiAPIKey != "" }

// IsProduction が真の場合、.env の読み込みをスキップするのだ。
func (c *Config) IsProduction() bool { return c.Environment == "production" }

// ServeOptions は CLI フラグから渡される実行時のパラメータなのだ。
type ServeOptions struct {
	ListenAddr string // --listen

	// 外部API制御
	HTTPTimeout  time.Duration // --http-timeout
	RateInterval time.Duration // --rate-interval: 画像合成呼び出しの最小間隔

	// 実行制御
	MaxConcurrent int           // --max-concurrent: キャラクター一括生成の並列数
	SessionTTL    time.Duration // --session-ttl
}
