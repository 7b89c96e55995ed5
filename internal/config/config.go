package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	AI       AIConfig       `mapstructure:"ai"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Encrypt  EncryptConfig  `mapstructure:"encrypt"`
}

type ServerConfig struct {
	Port         int      `mapstructure:"port"`
	Mode         string   `mapstructure:"mode"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	JWTSecret      string `mapstructure:"jwt_secret"`
	ExpireHours    int    `mapstructure:"expire_hours"`
	CookieName     string `mapstructure:"cookie_name"`
	CookieSecure   bool   `mapstructure:"cookie_secure"`
	InviteTTLHours int    `mapstructure:"invite_ttl_hours"`
}

type AIConfig struct {
	Provider               string  `mapstructure:"provider"`
	AnthropicAPIKey        string  `mapstructure:"anthropic_api_key"`
	AnthropicBaseURL       string  `mapstructure:"anthropic_base_url"`
	ClaudeModel            string  `mapstructure:"claude_model"`
	OpenAIAPIKey           string  `mapstructure:"openai_api_key"`
	OpenAIBaseURL          string  `mapstructure:"openai_base_url"`
	OpenAIModel            string  `mapstructure:"openai_model"`
	GeminiAPIKey           string  `mapstructure:"gemini_api_key"`
	GeminiModel            string  `mapstructure:"gemini_model"`
	HuggingFaceAPIKey      string  `mapstructure:"huggingface_api_key"`
	HuggingFaceURL         string  `mapstructure:"huggingface_url"`
	ContradictionThreshold float64 `mapstructure:"contradiction_threshold"`
	MaxWorkers             int     `mapstructure:"max_workers"`
	RequestsPerSecond      float64 `mapstructure:"requests_per_second"`
	TimeoutSeconds         int     `mapstructure:"timeout_seconds"`
}

type StorageConfig struct {
	Driver          string `mapstructure:"driver"`
	LocalDir        string `mapstructure:"local_dir"`
	Bucket          string `mapstructure:"bucket"`
	CredentialsFile string `mapstructure:"credentials_file"`
	MaxUploadMB     int64  `mapstructure:"max_upload_mb"`
}

type NotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

type EncryptConfig struct {
	AESKey string `mapstructure:"aes_key"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.path", "reqforge.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "reqforge")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.expire_hours", 72)
	v.SetDefault("auth.cookie_name", "reqforge_session")
	v.SetDefault("auth.cookie_secure", false)
	v.SetDefault("auth.invite_ttl_hours", 72)

	v.SetDefault("ai.provider", "claude")
	v.SetDefault("ai.anthropic_api_key", "")
	v.SetDefault("ai.openai_api_key", "")
	v.SetDefault("ai.openai_base_url", "")
	v.SetDefault("ai.gemini_api_key", "")
	v.SetDefault("ai.huggingface_api_key", "")
	v.SetDefault("ai.anthropic_base_url", "https://api.anthropic.com/v1/messages")
	v.SetDefault("ai.claude_model", "claude-3-5-sonnet-20240620")
	v.SetDefault("ai.openai_model", "gpt-4o-mini")
	v.SetDefault("ai.gemini_model", "gemini-1.5-pro")
	v.SetDefault("ai.huggingface_url", "https://api-inference.huggingface.co/models/cross-encoder/nli-deberta-v3-base")
	v.SetDefault("ai.contradiction_threshold", 0.5)
	v.SetDefault("ai.max_workers", 4)
	v.SetDefault("ai.requests_per_second", 2)
	v.SetDefault("ai.timeout_seconds", 120)

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local_dir", "./data/uploads")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.credentials_file", "")
	v.SetDefault("storage.max_upload_mb", 100)

	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("encrypt.aes_key", "")
}

var Global *Config

// Load reads the YAML file at path. A missing file is tolerated so the
// service can be configured purely through REQFORGE_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("REQFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required")
	}
	Global = &cfg
	return &cfg, nil
}
