package config

import (
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Param is one query-string pair. Order is preserved so search URLs are
// assembled exactly as configured.
type Param struct {
	Key   string
	Value string
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	BaseURL      string
	SearchPath   string
	PhotosPath   string
	SearchParams []Param

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	RedisAddr        string

	MaxRetries        int
	BackoffBase       float64
	BackoffCap        time.Duration
	StrategyJitterMin time.Duration
	StrategyJitterMax time.Duration
	StealthTimeout    time.Duration
	BrowserTimeout    time.Duration
	HTTPTimeout       time.Duration
	UserAgent         string
	ChromeBin         string

	MaxSearchPages int
	MaxImagePages  int
	StateRetries   int

	NoDatabase bool
	NoCSV      bool
	OutputDir  string
	LogLevel   string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		BaseURL:      strings.TrimRight(getEnv("SITE_BASE_URL", "https://www.yelp.fr"), "/"),
		SearchPath:   getEnv("SITE_SEARCH_PATH", "/search"),
		PhotosPath:   getEnv("PHOTOS_PATH", "/biz_photos"),
		SearchParams: ParseParams(getEnv("SEARCH_PARAMS", "find_desc=Restaurants&find_loc=Paris")),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "listings_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		RedisAddr:        getEnv("REDIS_ADDR", ""),

		MaxRetries:        getEnvInt("MAX_RETRIES", 3),
		BackoffBase:       getEnvFloat("BACKOFF_BASE", 2),
		BackoffCap:        time.Duration(getEnvInt("BACKOFF_CAP_SECONDS", 20)) * time.Second,
		StrategyJitterMin: getEnvMillis("STRATEGY_JITTER_MIN_MS", 500),
		StrategyJitterMax: getEnvMillis("STRATEGY_JITTER_MAX_MS", 2500),
		StealthTimeout:    getEnvMillis("STEALTH_TIMEOUT_MS", 60000),
		BrowserTimeout:    getEnvMillis("BROWSER_TIMEOUT_MS", 30000),
		HTTPTimeout:       getEnvMillis("HTTP_TIMEOUT_MS", 30000),
		UserAgent: getEnv("USER_AGENT", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		ChromeBin: getEnv("CHROME_BIN", ""),

		MaxSearchPages: getEnvInt("MAX_SEARCH_PAGES", 0),
		MaxImagePages:  getEnvInt("MAX_IMAGE_PAGES", 50),
		StateRetries:   getEnvInt("STATE_RETRIES", 2),

		NoDatabase: getEnvBool("NO_DATABASE", false),
		NoCSV:      getEnvBool("NO_CSV", false),
		OutputDir:  getEnv("OUTPUT_DIR", "outputs"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// SearchURL is the search endpoint without query string.
func (c *Config) SearchURL() string {
	return c.BaseURL + c.SearchPath
}

// Param returns the value of the named search parameter, or "".
func (c *Config) Param(key string) string {
	for _, p := range c.SearchParams {
		if p.Key == key {
			return p.Value
		}
	}
	return ""
}

var nonIdent = regexp.MustCompile(`[^a-z0-9_]+`)

// TableName derives the listings table from the search description and
// location, e.g. "restaurants_paris".
func (c *Config) TableName() string {
	name := strings.ToLower(c.Param("find_desc") + "_" + c.Param("find_loc"))
	name = strings.Trim(nonIdent.ReplaceAllString(name, "_"), "_")
	if name == "" {
		return "listings"
	}
	return name
}

// CSVPath builds outputs/<loc>/<desc>/<v1>_<v2>_..._<dd_mm_yyyy>.csv.
func (c *Config) CSVPath(day time.Time) string {
	var b strings.Builder
	for _, p := range c.SearchParams {
		b.WriteString(strings.ReplaceAll(strings.ToLower(p.Value), " ", "_"))
		b.WriteString("_")
	}
	b.WriteString(day.Format("02_01_2006"))
	b.WriteString(".csv")

	loc := strings.ReplaceAll(strings.TrimSpace(strings.ToLower(c.Param("find_loc"))), " ", "_")
	desc := strings.ReplaceAll(strings.TrimSpace(strings.ToLower(c.Param("find_desc"))), " ", "_")
	return filepath.Join(c.OutputDir, loc, desc, b.String())
}

// ParseParams splits "k=v&k2=v2" into ordered pairs. Values are kept verbatim.
func ParseParams(raw string) []Param {
	var out []Param
	for _, pair := range strings.Split(raw, "&") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		out = append(out, Param{Key: strings.TrimSpace(k), Value: strings.TrimSpace(v)})
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvMillis(key string, fallbackMs int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackMs)) * time.Millisecond
}
