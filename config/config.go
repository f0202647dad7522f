package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port string

	// Provider selects the model backend: "gemini" (default) or "openai".
	Provider       string
	GeminiAPIKey   string
	OpenAIAPIKey   string
	PrimaryModel   string
	SecondaryModel string

	// StoreDriver selects persistence: "memory" (default), "redis" or "mysql".
	StoreDriver string
	Redis       RedisConfig
	MySQL       MySQLConfig

	LogLevel  string
	LogFormat string

	AnalyzeTimeout time.Duration
	MaxUploadBytes int64
	ScoringFile    string

	// DailyAnalysisLimit caps model-backed analyses per UTC day; 0 disables the quota.
	DailyAnalysisLimit int
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
}

type MySQLConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
}

// Default model tiers per provider.
var defaultModels = map[string][2]string{
	"gemini": {"gemini-2.5-flash", "gemini-2.5-flash-lite"},
	"openai": {"gpt-4o", "gpt-4o-mini"},
}

// Load reads .env files when present and then the process environment.
func Load(envFiles ...string) Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	provider := strings.ToLower(get("LLM_PROVIDER", "gemini"))
	if _, ok := defaultModels[provider]; !ok {
		provider = "gemini"
	}
	models := defaultModels[provider]

	return Config{
		Port:           get("PORT", "8080"),
		Provider:       provider,
		GeminiAPIKey:   get("GEMINI_API_KEY", ""),
		OpenAIAPIKey:   get("OPENAI_API_KEY", ""),
		PrimaryModel:   get("PRIMARY_MODEL", models[0]),
		SecondaryModel: get("SECONDARY_MODEL", models[1]),
		StoreDriver:    strings.ToLower(get("STORE_DRIVER", "memory")),
		Redis: RedisConfig{
			Addr:      get("REDIS_ADDR", "localhost:6379"),
			Password:  get("REDIS_PASSWORD", ""),
			DB:        getInt("REDIS_DB", 0),
			Namespace: get("REDIS_NAMESPACE", ""),
		},
		MySQL: MySQLConfig{
			User:     get("DB_USER", "root"),
			Password: get("DB_PASSWORD", ""),
			Host:     get("DB_HOST", "127.0.0.1"),
			Port:     get("DB_PORT", "3306"),
			Name:     get("DB_NAME", "yukti"),
		},
		LogLevel:       get("LOG_LEVEL", "info"),
		LogFormat:      get("LOG_FORMAT", "json"),
		AnalyzeTimeout: time.Duration(getInt("ANALYZE_TIMEOUT_SEC", 90)) * time.Second,
		MaxUploadBytes: int64(getInt("MAX_UPLOAD_MB", 20)) << 20,
		ScoringFile:    get("SCORING_FILE", ""),

		DailyAnalysisLimit: getInt("ANALYZE_DAILY_LIMIT", 0),
	}
}

func get(key, def string) string {
	if v := sanitizeEnv(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := get(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// sanitizeEnv trims whitespace and one pair of matching surrounding quotes.
func sanitizeEnv(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if (first == '"' || first == '\'') && first == last {
			return v[1 : len(v)-1]
		}
	}
	return v
}
