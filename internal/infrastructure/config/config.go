package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig       `mapstructure:"app"`
	Server      ServerConfig    `mapstructure:"server"`
	Providers   ProvidersConfig `mapstructure:"providers"`
	Detection   DetectionConfig `mapstructure:"detection"`
	Catalog     CatalogConfig   `mapstructure:"catalog"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Breaker     BreakerConfig   `mapstructure:"breaker"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	Image       ImageConfig     `mapstructure:"image"`
	DedupWindow time.Duration   `mapstructure:"dedup_window"`
	LogLevel    string          `mapstructure:"log_level"`
	LogFile     string          `mapstructure:"log_file"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ProvidersConfig 視覺模型供應商設定
type ProvidersConfig struct {
	Primary string         `mapstructure:"primary"`
	OpenAI  ProviderConfig `mapstructure:"openai"`
	Gemini  ProviderConfig `mapstructure:"gemini"`
}

// ProviderConfig 單一供應商設定
type ProviderConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	BaseURL   string        `mapstructure:"base_url"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Configured 是否已設定金鑰
func (p ProviderConfig) Configured() bool {
	return strings.TrimSpace(p.APIKey) != ""
}

// DetectionConfig 食材辨識流程設定
type DetectionConfig struct {
	MaxResults           int     `mapstructure:"max_results"`
	ConfidenceThreshold  float64 `mapstructure:"confidence_threshold"`
	AcceptanceThreshold  float64 `mapstructure:"acceptance_threshold"`
	ResultThreshold      float64 `mapstructure:"result_threshold"`
	MinSimilarity        float64 `mapstructure:"min_similarity"`
	TrigramMinSimilarity float64 `mapstructure:"trigram_min_similarity"`
	ChunkSize            int     `mapstructure:"chunk_size"`
	ChunkConcurrency     int     `mapstructure:"chunk_concurrency"`
	Strategy             string  `mapstructure:"strategy"`
}

// CatalogConfig 食材目錄儲存設定
type CatalogConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// CacheConfig 緩存配置
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Driver          string        `mapstructure:"driver"`
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
}

// BreakerConfig 熔斷器設定
type BreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
	Burst    int           `mapstructure:"burst"`
}

// ImageConfig 圖片配置
type ImageConfig struct {
	MaxSizeBytes int64 `mapstructure:"max_size_bytes"`
}

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	StrategySubstring = "substring"
	StrategyTrigram   = "trigram"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
)

// LoadConfig 載入設定；.env 不存在時只讀環境變數
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return Load(v)
}

// Load 從給定的 viper 實例解析設定（測試時可直接注入）
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// 設定環境變數前綴
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// bindEnv 綁定常用環境變量
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("providers.primary", "VISION_PROVIDER")
	_ = v.BindEnv("providers.openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("providers.openai.model", "OPENAI_MODEL")
	_ = v.BindEnv("providers.gemini.api_key", "GEMINI_API_KEY")
	_ = v.BindEnv("providers.gemini.model", "GEMINI_MODEL")
	_ = v.BindEnv("catalog.driver", "CATALOG_DRIVER")
	_ = v.BindEnv("catalog.dsn", "DATABASE_URL")
	_ = v.BindEnv("cache.enabled", "CACHE_ENABLED")
	_ = v.BindEnv("cache.driver", "CACHE_DRIVER")
	_ = v.BindEnv("cache.redis_addr", "REDIS_ADDR")
	_ = v.BindEnv("cache.redis_password", "REDIS_PASSWORD")
	_ = v.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	_ = v.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	_ = v.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	_ = v.BindEnv("dedup_window", "DEDUP_WINDOW")
	_ = v.BindEnv("log_level", "LOG_LEVEL")
	_ = v.BindEnv("log_file", "LOG_FILE")
	_ = v.BindEnv("server.port", "PORT")
}

// MaskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "ingredient-detector")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "75s")

	// 供應商設定
	v.SetDefault("providers.primary", ProviderOpenAI)
	v.SetDefault("providers.openai.model", "gpt-4o")
	v.SetDefault("providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("providers.openai.max_tokens", 1000)
	v.SetDefault("providers.openai.timeout", "60s")
	v.SetDefault("providers.gemini.model", "gemini-2.5-flash-lite")
	v.SetDefault("providers.gemini.base_url", "https://generativelanguage.googleapis.com/v1beta/openai")
	v.SetDefault("providers.gemini.max_tokens", 1000)
	v.SetDefault("providers.gemini.timeout", "60s")

	// 辨識流程設定
	v.SetDefault("detection.max_results", 8)
	v.SetDefault("detection.confidence_threshold", 0.8)
	v.SetDefault("detection.acceptance_threshold", 0.75)
	v.SetDefault("detection.result_threshold", 0.8)
	v.SetDefault("detection.min_similarity", 0.5)
	v.SetDefault("detection.trigram_min_similarity", 0.5)
	v.SetDefault("detection.chunk_size", 5)
	v.SetDefault("detection.chunk_concurrency", 4)
	v.SetDefault("detection.strategy", StrategySubstring)

	// 目錄設定
	v.SetDefault("catalog.driver", DriverSQLite)
	v.SetDefault("catalog.dsn", "file:data/catalog.db?_pragma=busy_timeout(5000)")

	// 快取設定
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.driver", DriverMemory)
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_interval", "10m")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)

	// 熔斷器設定
	v.SetDefault("breaker.enabled", true)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.max_requests", 1)
	v.SetDefault("breaker.interval", "60s")
	v.SetDefault("breaker.timeout", "30s")

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("rate_limit.burst", 10)

	// 圖片設定
	v.SetDefault("image.max_size_bytes", 10*1024*1024) // 10MB

	v.SetDefault("dedup_window", "1s")
	v.SetDefault("log_level", "info")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 {
		return fmt.Errorf("server port is required")
	}

	switch config.Providers.Primary {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unknown primary provider %q", config.Providers.Primary)
	}

	d := config.Detection
	if d.MaxResults <= 0 {
		return fmt.Errorf("invalid detection max results")
	}
	for name, t := range map[string]float64{
		"confidence_threshold":   d.ConfidenceThreshold,
		"acceptance_threshold":   d.AcceptanceThreshold,
		"result_threshold":       d.ResultThreshold,
		"min_similarity":         d.MinSimilarity,
		"trigram_min_similarity": d.TrigramMinSimilarity,
	} {
		if t < 0 || t > 1 {
			return fmt.Errorf("detection %s must be within [0,1]", name)
		}
	}
	if d.ChunkSize <= 0 {
		return fmt.Errorf("invalid detection chunk size")
	}
	if d.ChunkConcurrency <= 0 {
		return fmt.Errorf("invalid detection chunk concurrency")
	}
	switch d.Strategy {
	case StrategySubstring, StrategyTrigram:
	default:
		return fmt.Errorf("unknown detection strategy %q", d.Strategy)
	}

	switch config.Catalog.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown catalog driver %q", config.Catalog.Driver)
	}
	if config.Catalog.DSN == "" {
		return fmt.Errorf("catalog dsn is required")
	}

	// 驗證快取設定
	if config.Cache.Enabled {
		switch config.Cache.Driver {
		case DriverMemory:
			if config.Cache.MaxSize <= 0 {
				return fmt.Errorf("invalid cache max size")
			}
			if config.Cache.CleanupInterval <= 0 {
				return fmt.Errorf("invalid cache cleanup interval")
			}
		case DriverRedis:
			if config.Cache.RedisAddr == "" {
				return fmt.Errorf("cache redis addr is required")
			}
		default:
			return fmt.Errorf("unknown cache driver %q", config.Cache.Driver)
		}
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
	}

	if config.Breaker.Enabled && config.Breaker.FailureThreshold == 0 {
		return fmt.Errorf("invalid breaker failure threshold")
	}

	if config.RateLimit.Enabled && (config.RateLimit.Requests <= 0 || config.RateLimit.Window <= 0) {
		return fmt.Errorf("invalid rate limit")
	}

	if config.Image.MaxSizeBytes <= 0 {
		return fmt.Errorf("invalid image max size")
	}

	return nil
}
