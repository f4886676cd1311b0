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
	OutputModeClassified = "classified"
	OutputModeRaw        = "raw"
)

// Feed names the classifier reads.
const (
	FeedCurrent    = "current"
	FeedSold       = "sold"
	FeedPast       = "past"
	FeedPastLeased = "pastLeased"
	FeedComingSoon = "comingSoon"
	FeedPending    = "pending"
)

var ClassifierFeeds = []string{FeedCurrent, FeedSold, FeedPast, FeedPastLeased, FeedComingSoon, FeedPending}

type Config struct {
	Agent     AgentConfig
	HTTP      HTTPConfig
	Output    OutputConfig
	Scheduler SchedulerConfig
	S3        S3Config
	Archive   ArchiveConfig
	Feeds     []FeedConfig
	DBPath    string
	LogPath   string
	LogLevel  string
}

type AgentConfig struct {
	Key     string
	OwnerRT string
	Referer string
	BaseURL string
}

type HTTPConfig struct {
	PageSize    int
	RateLimitMS int
	Timeout     time.Duration
	ProxyURL    string
}

type OutputConfig struct {
	Path         string
	Mode         string
	TimestampLog string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type S3Config struct {
	Bucket          string
	Key             string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type ArchiveConfig struct {
	DBURL string
}

// FeedConfig names one feed category. Optional feeds are allowed to fail;
// some agents have no PASTLEASED or COMINGSOON feed at all.
type FeedConfig struct {
	Name     string `yaml:"name"`
	RT       string `yaml:"rt"`
	Optional bool   `yaml:"optional"`
}

type feedsFile struct {
	Feeds []FeedConfig `yaml:"feeds"`
}

// DefaultFeeds mirrors config/feeds.yaml and is used when that file is absent.
func DefaultFeeds() []FeedConfig {
	return []FeedConfig{
		{Name: FeedCurrent, RT: "CMNCMN"},
		{Name: FeedSold, RT: "CMNSLD"},
		{Name: FeedPast, RT: "PASTTRANSACTIONS"},
		{Name: FeedPastLeased, RT: "PASTLEASED", Optional: true},
		{Name: FeedComingSoon, RT: "COMINGSOON", Optional: true},
		{Name: FeedPending, RT: "PENDING", Optional: true},
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Agent: AgentConfig{
			Key:     getEnv("AGENT_KEY", "2644"),
			OwnerRT: getEnv("OWNER_RT", "AGENT"),
			Referer: getEnv("AGENT_REFERER", "https://www.theagencyre.com/agent/joshua-kashani"),
			BaseURL: getEnv("BASE_URL", "https://www.theagencyre.com/services/agoraGetFeaturedProperties.ashx"),
		},
		HTTP: HTTPConfig{
			PageSize:    getEnvInt("PAGE_SIZE", 500),
			RateLimitMS: getEnvInt("RATE_LIMIT_MS", 0),
			Timeout:     getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
			ProxyURL:    os.Getenv("PROXY_URL"),
		},
		Output: OutputConfig{
			Path:         getEnv("OUTPUT_PATH", "public/listings.json"),
			Mode:         getEnv("OUTPUT_MODE", OutputModeClassified),
			TimestampLog: getEnvOptional("TIMESTAMP_LOG", "fetchTimestamps.log"),
		},
		Scheduler: SchedulerConfig{
			Cron:     os.Getenv("SCRAPE_CRON"),
			Interval: getEnvDuration("SCRAPE_INTERVAL", 0),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Key:             getEnv("S3_KEY", "listings.json"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		Archive: ArchiveConfig{
			DBURL: os.Getenv("ARCHIVE_DB_URL"),
		},
		DBPath:   getEnvOptional("DB_PATH", "listings.db"),
		LogPath:  getEnvOptional("LOG_PATH", "fetch.log"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	feeds, err := LoadFeeds(getEnv("FEEDS_PATH", "config/feeds.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.Feeds = feeds

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFeeds reads feed definitions from a YAML file. A missing file yields
// the defaults.
func LoadFeeds(path string) ([]FeedConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultFeeds(), nil
		}
		return nil, err
	}

	var f feedsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(f.Feeds) == 0 {
		return nil, fmt.Errorf("%s: no feeds defined", path)
	}
	for _, feed := range f.Feeds {
		if feed.Name == "" || feed.RT == "" {
			return nil, fmt.Errorf("%s: feed needs both name and rt", path)
		}
	}
	return f.Feeds, nil
}

func (c *Config) Validate() error {
	if c.Agent.Key == "" {
		return fmt.Errorf("AGENT_KEY must not be empty")
	}
	if c.HTTP.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", c.HTTP.PageSize)
	}
	switch c.Output.Mode {
	case OutputModeClassified, OutputModeRaw:
	default:
		return fmt.Errorf("unknown OUTPUT_MODE: %s (use %q or %q)", c.Output.Mode, OutputModeClassified, OutputModeRaw)
	}
	seen := make(map[string]bool)
	for _, f := range c.Feeds {
		if seen[f.Name] {
			return fmt.Errorf("duplicate feed name: %s", f.Name)
		}
		seen[f.Name] = true
	}
	if c.Output.Mode == OutputModeClassified {
		for _, name := range ClassifierFeeds {
			if !seen[name] {
				return fmt.Errorf("classified output needs a feed named %q", name)
			}
		}
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvOptional is getEnv for paths of optional sinks: a variable that is
// set but empty disables the sink instead of falling back to the default.
func getEnvOptional(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
