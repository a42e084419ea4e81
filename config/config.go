package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Sheets    SheetsConfig
	LeadsDB   LeadsDBConfig
	Scheduler SchedulerConfig
	Scraper   ScraperConfig
	Enrich    EnrichConfig
	Archive   ArchiveConfig
	DBPath    string
	LogLevel  string
	Counties  map[string]*CountyConfig
}

type SheetsConfig struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsPath string
}

// LeadsDBConfig selects the optional shared Postgres lead store. When URL is
// empty, leads are cached in local SQLite only.
type LeadsDBConfig struct {
	URL string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type ScraperConfig struct {
	DaysBack   int
	DelayMS    int
	MaxPages   int
	UserAgents []string
	AddrKeyLen int
}

type EnrichConfig struct {
	RateLimitMS int
	MaxPerRun   int
	// ValueMultiplier scales assessed value up to an estimated market
	// value. Assessed values systematically lag market; the exact factor
	// is a business constant, not derived.
	ValueMultiplier float64
}

// ArchiveConfig points export archiving at an S3-compatible bucket.
// Disabled when Bucket is empty.
type ArchiveConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type CountyConfig struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Handler   string `yaml:"handler"` // http | browser | rss
	SearchURL string `yaml:"search_url"`
	// SearchMethod is how the http handler submits the search, "get"
	// (query string, the default) or "post" (form body).
	SearchMethod string   `yaml:"search_method"`
	FeedURLs     []string `yaml:"feed_urls"`
	AssessorURL  string   `yaml:"assessor_url"`
	RateLimitMS  int      `yaml:"rate_limit_ms"`
	MaxPages     int      `yaml:"max_pages"`
	// Keywords a result row must contain (case-insensitive) to count as a
	// Notice of Default filing.
	DocKeywords []string `yaml:"doc_keywords"`
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Sheets: SheetsConfig{
			SpreadsheetID:   os.Getenv("SHEET_ID"),
			SheetName:       getEnv("SHEET_NAME", "Sheet1"),
			CredentialsPath: getEnv("SHEETS_CREDENTIALS", "credentials.json"),
		},
		LeadsDB: LeadsDBConfig{
			URL: os.Getenv("LEADS_DB_URL"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("COLLECT_CRON"),
		},
		Scraper: ScraperConfig{
			DaysBack:   getEnvInt("DAYS_BACK", 7),
			DelayMS:    getEnvInt("SCRAPE_DELAY_MS", 2000),
			MaxPages:   getEnvInt("MAX_PAGES", 4),
			UserAgents: defaultUserAgents,
			AddrKeyLen: getEnvInt("ADDR_KEY_LEN", 20),
		},
		Enrich: EnrichConfig{
			RateLimitMS:     getEnvInt("ENRICH_DELAY_MS", 5000),
			MaxPerRun:       getEnvInt("ENRICH_MAX", 0),
			ValueMultiplier: getEnvFloat("ENRICH_VALUE_MULTIPLIER", 1.5),
		},
		Archive: ArchiveConfig{
			Bucket:          os.Getenv("ARCHIVE_BUCKET"),
			Region:          getEnv("ARCHIVE_REGION", "us-east-1"),
			Endpoint:        os.Getenv("ARCHIVE_ENDPOINT"),
			AccessKeyID:     os.Getenv("ARCHIVE_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("ARCHIVE_SECRET_ACCESS_KEY"),
		},
		DBPath:   getEnv("DB_PATH", "leads.db"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Counties: make(map[string]*CountyConfig),
	}

	if interval := os.Getenv("COLLECT_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadCountyConfigs(getEnv("COUNTY_CONFIG_DIR", "config/counties")); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadCountyConfigs(configDir string) error {
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(configDir, entry.Name()))
		if err != nil {
			return err
		}

		var county CountyConfig
		if err := yaml.Unmarshal(data, &county); err != nil {
			return err
		}
		if county.MaxPages == 0 {
			county.MaxPages = c.Scraper.MaxPages
		}
		if county.RateLimitMS == 0 {
			county.RateLimitMS = c.Scraper.DelayMS
		}
		if len(county.DocKeywords) == 0 {
			county.DocKeywords = []string{"default", "nod"}
		}

		c.Counties[county.ID] = &county
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
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

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
