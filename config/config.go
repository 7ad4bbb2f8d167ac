package config

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Auth     AuthConfig     `yaml:"auth"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Cache    CacheConfig    `yaml:"cache"`
	Store    StoreConfig    `yaml:"store"`
	Audit    AuditConfig    `yaml:"audit"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Users    []User         `yaml:"users"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

// AnalyzerConfig configures the LLM evaluation backend. The endpoint is any
// OpenAI-compatible chat completions API.
type AnalyzerConfig struct {
	APIURL         string  `yaml:"api_url"`
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

type CacheConfig struct {
	InProgressTTLSeconds int `yaml:"in_progress_ttl_seconds"`
	CompleteTTLSeconds   int `yaml:"complete_ttl_seconds"`
}

type StoreConfig struct {
	MaxAudits int `yaml:"max_audits"`
}

type AuditConfig struct {
	MinTranscriptChars int `yaml:"min_transcript_chars"`
}

type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

var GlobalConfig *Config

func Load(path string) (*Config, error) {
	// .env is optional; real deployments set env vars directly
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Secrets can be supplied via environment instead of the yaml file
	if v := os.Getenv("ANALYZER_API_KEY"); v != "" {
		cfg.Analyzer.APIKey = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}
	if cfg.Analyzer.Model == "" {
		cfg.Analyzer.Model = "gpt-4o"
	}
	if cfg.Analyzer.TimeoutSeconds == 0 {
		cfg.Analyzer.TimeoutSeconds = 120
	}
	if cfg.Cache.InProgressTTLSeconds == 0 {
		cfg.Cache.InProgressTTLSeconds = 10
	}
	if cfg.Cache.CompleteTTLSeconds == 0 {
		cfg.Cache.CompleteTTLSeconds = 60
	}
	if cfg.Store.MaxAudits < 0 {
		cfg.Store.MaxAudits = 0
	}
	if cfg.Audit.MinTranscriptChars == 0 {
		cfg.Audit.MinTranscriptChars = 50
	}

	GlobalConfig = &cfg
	return &cfg, nil
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
