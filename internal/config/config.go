package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server        ServerConfig
	Log           LogConfig
	Completion    CompletionConfig
	Documents     DocumentsConfig
	Knowledge     KnowledgeConfig
	Conversations ConversationsConfig
	Settings      SettingsConfig
	DB            DBConfig
	Redis         RedisConfig
	NATS          NATSConfig
	XMPP          XMPPConfig
	Encryption    EncryptionConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	CORSAllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

// Completion providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

type CompletionConfig struct {
	Provider     string
	AnthropicKey string
	GeminiKey    string
	Model        string
	MaxTokens    int
	Timeout      time.Duration
}

// APIKey returns the credential for the selected provider.
func (c CompletionConfig) APIKey() string {
	if c.Provider == ProviderGemini {
		return c.GeminiKey
	}
	return c.AnthropicKey
}

// Storage backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
)

type DocumentsConfig struct {
	Backend        string
	Dir            string
	Watch          bool
	MaxUploadBytes int64
}

type KnowledgeConfig struct {
	Memoize bool
	MemoTTL time.Duration
}

type ConversationsConfig struct {
	Backend string
	TTL     time.Duration
	Max     int
}

type SettingsConfig struct {
	Backend string
	Dir     string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	URL string
}

type XMPPConfig struct {
	Enabled         bool
	ComponentHost   string
	ComponentPort   int
	ComponentName   string
	ComponentSecret string
}

func (c XMPPConfig) ComponentAddr() string {
	return fmt.Sprintf("%s:%d", c.ComponentHost, c.ComponentPort)
}

type EncryptionConfig struct {
	Key string
}

// UsesPostgres reports whether any component needs a database connection.
func (c *Config) UsesPostgres() bool {
	return c.Documents.Backend == BackendPostgres || c.Settings.Backend == BackendPostgres
}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.Conversations.Backend == BackendRedis
}

func envKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", "."))
}

func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile loads configuration from the given dotenv file (if present) and the
// process environment, which takes precedence.
func LoadFile(dotenvPath string) (*Config, error) {
	k := koanf.New(".")

	// Missing .env is fine
	_ = k.Load(file.Provider(dotenvPath), dotenv.ParserEnv("", ".", envKey))

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
			File:   k.String("log.file"),
		},
		Completion: CompletionConfig{
			Provider:     strings.ToLower(k.String("completion.provider")),
			AnthropicKey: strings.TrimSpace(k.String("anthropic.api.key")),
			GeminiKey:    strings.TrimSpace(k.String("gemini.api.key")),
			Model:        k.String("completion.model"),
			MaxTokens:    k.Int("completion.max.tokens"),
		},
		Documents: DocumentsConfig{
			Backend:        strings.ToLower(k.String("documents.backend")),
			Dir:            k.String("documents.dir"),
			Watch:          true,
			MaxUploadBytes: k.Int64("documents.max.upload.bytes"),
		},
		Knowledge: KnowledgeConfig{
			Memoize: k.Bool("knowledge.memoize"),
		},
		Conversations: ConversationsConfig{
			Backend: strings.ToLower(k.String("conversations.backend")),
			Max:     10000,
		},
		Settings: SettingsConfig{
			Backend: strings.ToLower(k.String("settings.backend")),
			Dir:     k.String("settings.dir"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		XMPP: XMPPConfig{
			Enabled:         k.Bool("xmpp.enabled"),
			ComponentHost:   k.String("xmpp.component.host"),
			ComponentPort:   k.Int("xmpp.component.port"),
			ComponentName:   k.String("xmpp.component.name"),
			ComponentSecret: k.String("xmpp.component.secret"),
		},
		Encryption: EncryptionConfig{
			Key: k.String("encryption.key"),
		},
	}

	if k.Exists("documents.watch") {
		cfg.Documents.Watch = k.Bool("documents.watch")
	}
	if k.Exists("conversations.max") {
		cfg.Conversations.Max = k.Int("conversations.max")
	}
	if origins := k.String("cors.allowed.origins"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Server.CORSAllowedOrigins = append(cfg.Server.CORSAllowedOrigins, o)
			}
		}
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if len(cfg.Server.CORSAllowedOrigins) == 0 {
		cfg.Server.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Completion.Provider == "" {
		cfg.Completion.Provider = ProviderAnthropic
	}
	if cfg.Completion.Model == "" {
		if cfg.Completion.Provider == ProviderGemini {
			cfg.Completion.Model = "gemini-2.0-flash"
		} else {
			cfg.Completion.Model = "claude-3-sonnet-20240229"
		}
	}
	if cfg.Completion.MaxTokens == 0 {
		cfg.Completion.MaxTokens = 1000
	}
	if cfg.Documents.Backend == "" {
		cfg.Documents.Backend = BackendFile
	}
	if cfg.Documents.Dir == "" {
		cfg.Documents.Dir = "docs"
	}
	if cfg.Documents.MaxUploadBytes == 0 {
		cfg.Documents.MaxUploadBytes = 10 << 20
	}
	if cfg.Conversations.Backend == "" {
		cfg.Conversations.Backend = BackendMemory
	}
	if cfg.Settings.Backend == "" {
		cfg.Settings.Backend = BackendFile
	}
	if cfg.Settings.Dir == "" {
		cfg.Settings.Dir = "data"
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "soless"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "soless"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 10
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.XMPP.ComponentHost == "" {
		cfg.XMPP.ComponentHost = "localhost"
	}
	if cfg.XMPP.ComponentPort == 0 {
		cfg.XMPP.ComponentPort = 5347
	}
	if cfg.XMPP.ComponentName == "" {
		cfg.XMPP.ComponentName = "bot.soless.local"
	}

	// Parse durations
	var err error
	cfg.Completion.Timeout, err = parseDuration(k, "completion.timeout", "60s")
	if err != nil {
		return nil, err
	}
	cfg.Knowledge.MemoTTL, err = parseDuration(k, "knowledge.memo.ttl", "10m")
	if err != nil {
		return nil, err
	}
	cfg.Conversations.TTL, err = parseDuration(k, "conversations.ttl", "24h")
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseDuration(k *koanf.Koanf, key, def string) (time.Duration, error) {
	s := k.String(key)
	if s == "" {
		s = def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}
