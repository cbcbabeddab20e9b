package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv      = "NEWSBRIEF_CONFIG"
	redisAddrEnv       = "REDIS_ADDR"
	badgerPathEnv      = "BADGER_PATH"
	storeDriverEnv     = "STORE_DRIVER"
	sqlitePathEnv      = "SQLITE_PATH"
	openAIKeyEnv       = "OPENAI_API_KEY"
	anthropicKeyEnv    = "ANTHROPIC_API_KEY"
	logLevelEnv        = "LOG_LEVEL"
	listenAddrEnv      = "LISTEN_ADDR"
	workerCountEnv     = "WORKER_CONCURRENCY"
	targetLanguageEnv  = "TARGET_LANGUAGE"
	summaryProviderEnv = "SUMMARY_PROVIDER"
)

// Store drivers.
const (
	DriverHybrid = "hybrid"
	DriverSQLite = "sqlite"
)

// Site kinds.
const (
	KindListing = "listing"
	KindFeed    = "feed"
)

// Config holds every setting the worker and the trigger commands need.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Store      StoreConfig      `yaml:"store"`
	Queue      QueueConfig      `yaml:"queue"`
	HTTP       HTTPConfig       `yaml:"http"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Worker     WorkerConfig     `yaml:"worker"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Server     ServerConfig     `yaml:"server"`
	Sites      []SiteConfig     `yaml:"sites"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// StoreConfig selects the record store backend.
type StoreConfig struct {
	Driver     string `yaml:"driver"`
	RedisAddr  string `yaml:"redisAddr"`
	BadgerPath string `yaml:"badgerPath"`
	SQLitePath string `yaml:"sqlitePath"`
}

type QueueConfig struct {
	RedisAddr string `yaml:"redisAddr"`
	Key       string `yaml:"key"`
}

// HTTPConfig applies to every outbound page fetch.
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"userAgent"`
}

type DiscoveryConfig struct {
	MaxLinks int `yaml:"maxLinks"`
}

// ProviderConfig describes one summarization backend.
type ProviderConfig struct {
	Type     string `yaml:"type"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
	Endpoint string `yaml:"endpoint"`
}

type SummarizerConfig struct {
	Primary        ProviderConfig `yaml:"primary"`
	Fallback       ProviderConfig `yaml:"fallback"`
	TargetLanguage string         `yaml:"targetLanguage"`
	MaxLength      int            `yaml:"maxLength"`
	MinLength      int            `yaml:"minLength"`
	TranslateNotes bool           `yaml:"translateNotes"`
}

// PipelineConfig holds the orchestrator knobs.
type PipelineConfig struct {
	MinContentChars  int           `yaml:"minContentChars"`
	RetryBatchSize   int           `yaml:"retryBatchSize"`
	CleanupRetention time.Duration `yaml:"cleanupRetention"`
}

type WorkerConfig struct {
	Concurrency       int           `yaml:"concurrency"`
	MaxTasksPerWorker int           `yaml:"maxTasksPerWorker"`
	TaskTimeLimit     time.Duration `yaml:"taskTimeLimit"`
}

// ScheduleConfig holds cron specs for the periodic triggers. Empty disables one.
type ScheduleConfig struct {
	Discover string `yaml:"discover"`
	Retry    string `yaml:"retry"`
	Cleanup  string `yaml:"cleanup"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// SiteConfig is one news site to discover articles from.
type SiteConfig struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Kind     string `yaml:"kind"`
	MaxLinks int    `yaml:"maxLinks"`
}

// Load reads .env, the YAML file named by NEWSBRIEF_CONFIG (if any), and
// applies environment overrides on top of the defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv(configPathEnv); path != "" {
		fileCfg, err := ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = merge(cfg, fileCfg)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ReadFile parses a YAML config file without applying defaults.
func ReadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fileCfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverHybrid, DriverSQLite:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	for _, s := range c.Sites {
		if s.URL == "" {
			return fmt.Errorf("site %q has no url", s.Name)
		}
		if s.Kind != KindListing && s.Kind != KindFeed {
			return fmt.Errorf("site %q has unknown kind %q", s.Name, s.Kind)
		}
	}
	if c.Pipeline.RetryBatchSize <= 0 {
		return fmt.Errorf("retry batch size must be positive")
	}
	if c.Pipeline.CleanupRetention <= 0 {
		return fmt.Errorf("cleanup retention must be positive")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be positive")
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Store.RedisAddr = v
		c.Queue.RedisAddr = v
	}
	if v := os.Getenv(badgerPathEnv); v != "" {
		c.Store.BadgerPath = v
	}
	if v := os.Getenv(storeDriverEnv); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv(sqlitePathEnv); v != "" {
		c.Store.SQLitePath = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(listenAddrEnv); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(targetLanguageEnv); v != "" {
		c.Summarizer.TargetLanguage = v
	}
	if v := os.Getenv(summaryProviderEnv); v != "" {
		c.Summarizer.Primary.Type = v
	}
	if v := os.Getenv(workerCountEnv); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", workerCountEnv, err)
		}
		c.Worker.Concurrency = n
	}

	// API keys follow the provider they belong to.
	for _, p := range []*ProviderConfig{&c.Summarizer.Primary, &c.Summarizer.Fallback} {
		if p.APIKey != "" {
			continue
		}
		switch p.Type {
		case "openai":
			p.APIKey = os.Getenv(openAIKeyEnv)
		case "anthropic":
			p.APIKey = os.Getenv(anthropicKeyEnv)
		}
	}
	return nil
}

func merge(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Store.Driver != "" {
		base.Store.Driver = override.Store.Driver
	}
	if override.Store.RedisAddr != "" {
		base.Store.RedisAddr = override.Store.RedisAddr
	}
	if override.Store.BadgerPath != "" {
		base.Store.BadgerPath = override.Store.BadgerPath
	}
	if override.Store.SQLitePath != "" {
		base.Store.SQLitePath = override.Store.SQLitePath
	}

	if override.Queue.RedisAddr != "" {
		base.Queue.RedisAddr = override.Queue.RedisAddr
	}
	if override.Queue.Key != "" {
		base.Queue.Key = override.Queue.Key
	}

	if override.HTTP.Timeout > 0 {
		base.HTTP.Timeout = override.HTTP.Timeout
	}
	if override.HTTP.UserAgent != "" {
		base.HTTP.UserAgent = override.HTTP.UserAgent
	}

	if override.Discovery.MaxLinks > 0 {
		base.Discovery.MaxLinks = override.Discovery.MaxLinks
	}

	if override.Summarizer.Primary.Type != "" {
		base.Summarizer.Primary = override.Summarizer.Primary
	}
	if override.Summarizer.Fallback.Type != "" {
		base.Summarizer.Fallback = override.Summarizer.Fallback
	}
	if override.Summarizer.TargetLanguage != "" {
		base.Summarizer.TargetLanguage = override.Summarizer.TargetLanguage
	}
	if override.Summarizer.MaxLength > 0 {
		base.Summarizer.MaxLength = override.Summarizer.MaxLength
	}
	if override.Summarizer.MinLength > 0 {
		base.Summarizer.MinLength = override.Summarizer.MinLength
	}
	if override.Summarizer.TranslateNotes {
		base.Summarizer.TranslateNotes = true
	}

	if override.Pipeline.MinContentChars > 0 {
		base.Pipeline.MinContentChars = override.Pipeline.MinContentChars
	}
	if override.Pipeline.RetryBatchSize > 0 {
		base.Pipeline.RetryBatchSize = override.Pipeline.RetryBatchSize
	}
	if override.Pipeline.CleanupRetention > 0 {
		base.Pipeline.CleanupRetention = override.Pipeline.CleanupRetention
	}

	if override.Worker.Concurrency > 0 {
		base.Worker.Concurrency = override.Worker.Concurrency
	}
	if override.Worker.MaxTasksPerWorker > 0 {
		base.Worker.MaxTasksPerWorker = override.Worker.MaxTasksPerWorker
	}
	if override.Worker.TaskTimeLimit > 0 {
		base.Worker.TaskTimeLimit = override.Worker.TaskTimeLimit
	}

	if override.Schedule.Discover != "" {
		base.Schedule.Discover = override.Schedule.Discover
	}
	if override.Schedule.Retry != "" {
		base.Schedule.Retry = override.Schedule.Retry
	}
	if override.Schedule.Cleanup != "" {
		base.Schedule.Cleanup = override.Schedule.Cleanup
	}

	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}

	if len(override.Sites) > 0 {
		base.Sites = override.Sites
		for i := range base.Sites {
			if base.Sites[i].Kind == "" {
				base.Sites[i].Kind = KindListing
			}
		}
	}

	return base
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Store: StoreConfig{
			Driver:     DriverHybrid,
			RedisAddr:  "localhost:6379",
			BadgerPath: "./badger-data",
			SQLitePath: "./newsbrief.db",
		},
		Queue: QueueConfig{RedisAddr: "localhost:6379", Key: "queue:tasks"},
		HTTP: HTTPConfig{
			Timeout:   15 * time.Second,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Discovery: DiscoveryConfig{MaxLinks: 5},
		Summarizer: SummarizerConfig{
			Primary:        ProviderConfig{Type: "openai", Model: "gpt-4o-mini"},
			Fallback:       ProviderConfig{Type: "extractive"},
			TargetLanguage: "uk",
			MaxLength:      150,
			MinLength:      50,
		},
		Pipeline: PipelineConfig{
			MinContentChars:  100,
			RetryBatchSize:   10,
			CleanupRetention: 30 * 24 * time.Hour,
		},
		Worker: WorkerConfig{
			Concurrency:       4,
			MaxTasksPerWorker: 100,
			TaskTimeLimit:     30 * time.Minute,
		},
		Schedule: ScheduleConfig{
			Discover: "@every 1h",
			Retry:    "@every 6h",
			Cleanup:  "@daily",
		},
		Server: ServerConfig{Addr: ":8080"},
		Sites: []SiteConfig{
			{Name: "agriculture.com", URL: "https://www.agriculture.com/news", Kind: KindListing},
			{Name: "agweb", URL: "https://www.agweb.com/news", Kind: KindListing},
			{Name: "farm-online", URL: "https://www.farm-online.com.au/news", Kind: KindListing},
			{Name: "agdaily", URL: "https://www.agdaily.com/news", Kind: KindListing},
			{Name: "farminguk", URL: "https://www.farminguk.com/news", Kind: KindListing},
			{Name: "producer", URL: "https://www.producer.com/news", Kind: KindListing},
			{Name: "grainnet", URL: "https://www.grainnet.com/news", Kind: KindListing},
			{Name: "agfax", URL: "https://agfax.com/category/news", Kind: KindListing},
		},
	}
}
