package config

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Public  Public
	Private Private
}

type Public struct {
	ListenAddr       string        `yaml:"listen_addr"`
	BaseURL          string        `yaml:"base_url"`
	MinShortIdLength int           `yaml:"min_short_id_length"`
	MaxFileSize      int64         `yaml:"max_file_size"` // bytes, 0 disables the check
	SecureHeaders    bool          `yaml:"secure_headers"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
	AdminTokenTTL    time.Duration `yaml:"admin_token_ttl"` // 0 issues tokens without expiry
	Log              Log           `yaml:"log"`
	Telegram         Telegram      `yaml:"telegram"`
	Resolver         Resolver      `yaml:"resolver"`
	DirectStore      DirectStore   `yaml:"direct_store"`
	CORS             CORS          `yaml:"cors"`
	RateLimit        RateLimit     `yaml:"rate_limit"`
}

type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type Telegram struct {
	APIURL         string        `yaml:"api_url"`
	ChannelID      int64         `yaml:"channel_id"`    // archival channel receiving forwarded files
	DBChannelID    int64         `yaml:"db_channel_id"` // channel receiving mapping entries, defaults to ChannelID
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type Resolver struct {
	CacheTTL           time.Duration `yaml:"cache_ttl"`
	CacheSweepInterval time.Duration `yaml:"cache_sweep_interval"`
	PageSize           int           `yaml:"page_size"`
	MaxPages           int           `yaml:"max_pages"`
	ListMaxPages       int           `yaml:"list_max_pages"`
	// Sources are scanned in order. Empty means a single source reading the
	// DB channel through the primary bot.
	Sources []Source `yaml:"sources"`
}

// Source is one pagination source for the history scan.
// Bot names a token in Private.Bots; empty uses the primary bot token.
type Source struct {
	Name   string `yaml:"name"`
	ChatID int64  `yaml:"chat_id"`
	Bot    string `yaml:"bot"`
}

type DirectStore struct {
	Kind  string     `yaml:"kind"` // none, redis, pg, s3, fs
	Redis RedisStore `yaml:"redis"`
	S3    S3Store    `yaml:"s3"`
	FS    FSStore    `yaml:"fs"`
}

type FSStore struct {
	Root string `yaml:"root"`
}

type RedisStore struct {
	Addr      string `yaml:"addr"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
	TLS       bool   `yaml:"tls"`
}

type S3Store struct {
	Region   string `yaml:"region"`
	Bucket   string `yaml:"bucket"`
	Endpoint string `yaml:"endpoint"` // MinIO, R2 and friends
	Prefix   string `yaml:"prefix"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type RateLimit struct {
	DownloadsPerSecond float64       `yaml:"downloads_per_second"`
	Burst              float64       `yaml:"burst"`
	Expiration         time.Duration `yaml:"expiration"`
	TrustProxy         bool          `yaml:"trust_proxy"` // key clients by X-Forwarded-For
}

type Private struct {
	BotToken       string            `yaml:"bot_token"`
	Bots           map[string]string `yaml:"bots"`
	WebhookSecret  string            `yaml:"webhook_secret"`
	AdminJwtSecret string            `yaml:"admin_jwt_secret"`
	RedisPassword  string            `yaml:"redis_password"`
	Pg             Pg                `yaml:"pg"`
	S3             S3Credentials     `yaml:"s3"`
}

type Pg struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Dbname   string `yaml:"dbname"`
}

type S3Credentials struct {
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

const (
	DefaultAPIURL           = "https://api.telegram.org"
	DefaultMinShortIdLength = 5
	DefaultPageSize         = 100
	// MaxPageSize is the getUpdates limit ceiling.
	MaxPageSize     = 100
	DefaultMaxPages = 50
	DefaultCacheTTL = 30 * time.Minute
)

// DBChannel returns the channel that holds mapping entries.
func (c *Config) DBChannel() int64 {
	if c.Public.Telegram.DBChannelID != 0 {
		return c.Public.Telegram.DBChannelID
	}
	return c.Public.Telegram.ChannelID
}

// ScanSources returns the configured sources or the default single source.
func (c *Config) ScanSources() []Source {
	if len(c.Public.Resolver.Sources) > 0 {
		return c.Public.Resolver.Sources
	}
	return []Source{{Name: "primary", ChatID: c.DBChannel()}}
}

// BotToken resolves a source bot name to its token.
func (c *Config) BotToken(bot string) (string, error) {
	if bot == "" {
		return c.Private.BotToken, nil
	}
	token, ok := c.Private.Bots[bot]
	if !ok || token == "" {
		return "", fmt.Errorf("no token configured for bot %q", bot)
	}
	return token, nil
}

func (c *Config) setDefaults() {
	p := &c.Public
	if p.ListenAddr == "" {
		p.ListenAddr = ":8080"
	}
	if p.MinShortIdLength == 0 {
		p.MinShortIdLength = DefaultMinShortIdLength
	}
	if p.ShutdownTimeout == 0 {
		p.ShutdownTimeout = 10 * time.Second
	}
	if p.Telegram.APIURL == "" {
		p.Telegram.APIURL = DefaultAPIURL
	}
	if p.Telegram.RequestTimeout == 0 {
		p.Telegram.RequestTimeout = 30 * time.Second
	}
	if p.Resolver.CacheTTL == 0 {
		p.Resolver.CacheTTL = DefaultCacheTTL
	}
	if p.Resolver.CacheSweepInterval == 0 {
		p.Resolver.CacheSweepInterval = p.Resolver.CacheTTL
	}
	if p.Resolver.PageSize == 0 {
		p.Resolver.PageSize = DefaultPageSize
	}
	if p.Resolver.MaxPages == 0 {
		p.Resolver.MaxPages = DefaultMaxPages
	}
	if p.Resolver.ListMaxPages == 0 {
		p.Resolver.ListMaxPages = p.Resolver.MaxPages
	}
	if p.DirectStore.Kind == "" {
		p.DirectStore.Kind = "none"
	}
	if p.DirectStore.Redis.KeyPrefix == "" {
		p.DirectStore.Redis.KeyPrefix = "file:"
	}
	if p.DirectStore.FS.Root == "" {
		p.DirectStore.FS.Root = "data/mappings"
	}
	if p.RateLimit.Expiration == 0 {
		p.RateLimit.Expiration = time.Hour
	}
}

// applyEnv lets deployments keep secrets and ids out of the config files.
func (c *Config) applyEnv() {
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		c.Private.BotToken = v
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		c.Public.BaseURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Public.ListenAddr = ":" + v
	}
	if v, err := strconv.ParseInt(os.Getenv("CHANNEL_ID"), 10, 64); err == nil {
		c.Public.Telegram.ChannelID = v
	}
	if v, err := strconv.ParseInt(os.Getenv("DB_CHANNEL_ID"), 10, 64); err == nil {
		c.Public.Telegram.DBChannelID = v
	}
}

// Validate reports configuration that would make the service unusable.
func (c *Config) Validate() error {
	if c.Private.BotToken == "" {
		return fmt.Errorf("bot token is required")
	}
	if c.Public.Telegram.ChannelID == 0 {
		return fmt.Errorf("telegram.channel_id is required")
	}
	if c.Public.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.Public.Resolver.CacheTTL < 0 || c.Public.Resolver.CacheSweepInterval <= 0 {
		return fmt.Errorf("resolver.cache_ttl and resolver.cache_sweep_interval must be positive")
	}
	if r := c.Public.Resolver; r.PageSize < 1 || r.PageSize > MaxPageSize {
		return fmt.Errorf("resolver.page_size must be between 1 and %d", MaxPageSize)
	}
	if r := c.Public.Resolver; r.MaxPages < 0 || r.ListMaxPages < 0 {
		return fmt.Errorf("resolver.max_pages and resolver.list_max_pages must not be negative")
	}
	switch c.Public.DirectStore.Kind {
	case "none", "redis", "pg", "s3", "fs":
	default:
		return fmt.Errorf("unknown direct_store.kind %q", c.Public.DirectStore.Kind)
	}
	for _, s := range c.ScanSources() {
		if _, err := c.BotToken(s.Bot); err != nil {
			return fmt.Errorf("source %q: %w", s.Name, err)
		}
	}
	return nil
}

// Load reads public.yaml and private.yaml from configFolder. private.yaml is
// optional when every secret comes from the environment.
func Load(configFolder string) (*Config, error) {
	cfg := &Config{}
	if err := loadPath(path.Join(configFolder, "public.yaml"), &cfg.Public, true); err != nil {
		return nil, err
	}
	if err := loadPath(path.Join(configFolder, "private.yaml"), &cfg.Private, false); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.setDefaults()
	return cfg, nil
}

func loadPath(configPath string, output interface{}, required bool) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("read %s: %w", configPath, err)
	}
	if err := yaml.Unmarshal(data, output); err != nil {
		return fmt.Errorf("unmarshal %s: %w", configPath, err)
	}
	return nil
}

// MustLoad loads and validates the configuration, panicking on failure.
func MustLoad(configFolder string) *Config {
	cfg, err := Load(configFolder)
	if err != nil {
		panic(err.Error())
	}
	if err := cfg.Validate(); err != nil {
		panic(err.Error())
	}
	return cfg
}
