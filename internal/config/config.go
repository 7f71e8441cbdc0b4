package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"GO_ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`
	FrontendURL string `mapstructure:"FRONTEND_URL"`

	// Redis (socket event rate limiting)
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	// Chat limits
	MessageRatePerMinute int `mapstructure:"MESSAGE_RATE_PER_MINUTE"`

	// LiveKit (media transport for calls)
	LiveKitURL          string `mapstructure:"LIVEKIT_URL"`
	LiveKitAPIKey       string `mapstructure:"LIVEKIT_API_KEY"`
	LiveKitAPISecret    string `mapstructure:"LIVEKIT_API_SECRET"`
	CallTokenTTLSeconds int    `mapstructure:"CALL_TOKEN_TTL_SECONDS"`

	// R2 / S3
	R2AccountID       string `mapstructure:"R2_ACCOUNT_ID"`
	R2AccessKeyID     string `mapstructure:"R2_ACCESS_KEY_ID"`
	R2SecretAccessKey string `mapstructure:"R2_SECRET_ACCESS_KEY"`
	R2BucketName      string `mapstructure:"R2_BUCKET_NAME"`
	R2PublicURL       string `mapstructure:"R2_PUBLIC_URL"` // Custom domain

	// Comma separated hosts accepted for attachment and avatar URLs.
	// Empty means any http(s) URL.
	AttachmentHosts string `mapstructure:"ATTACHMENT_HOSTS"`
}

var AppConfig *Config

var keys = []string{
	"PORT", "GO_ENV", "DATABASE_URL", "JWT_SECRET", "FRONTEND_URL",
	"REDIS_ADDR", "REDIS_PASSWORD", "MESSAGE_RATE_PER_MINUTE",
	"LIVEKIT_URL", "LIVEKIT_API_KEY", "LIVEKIT_API_SECRET", "CALL_TOKEN_TTL_SECONDS",
	"R2_ACCOUNT_ID", "R2_ACCESS_KEY_ID", "R2_SECRET_ACCESS_KEY", "R2_BUCKET_NAME", "R2_PUBLIC_URL",
	"ATTACHMENT_HOSTS",
}

func LoadConfig() *Config {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("GO_ENV", "development")
	v.SetDefault("MESSAGE_RATE_PER_MINUTE", 60)
	v.SetDefault("CALL_TOKEN_TTL_SECONDS", 3600)

	// AutomaticEnv only resolves keys viper already knows about.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	if err := v.ReadInConfig(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}

	AppConfig = cfg
	return cfg
}

// CallTokenTTL is how long a media-transport credential stays valid.
func (c *Config) CallTokenTTL() time.Duration {
	if c.CallTokenTTLSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(c.CallTokenTTLSeconds) * time.Second
}

// AllowedAttachmentHosts returns the configured host allowlist, always
// including the public R2 domain when one is set.
func (c *Config) AllowedAttachmentHosts() []string {
	var hosts []string
	for _, h := range strings.Split(c.AttachmentHosts, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	if len(hosts) > 0 && c.R2PublicURL != "" {
		host := strings.TrimPrefix(strings.TrimPrefix(c.R2PublicURL, "https://"), "http://")
		hosts = append(hosts, strings.TrimSuffix(host, "/"))
	}
	return hosts
}
