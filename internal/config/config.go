package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pathfinder/pkg/utils"
)

// Config represents the application configuration
type Config struct {
	DataDir string `yaml:"data_dir" validate:"required"`

	Pipeline struct {
		Sources      []string      `yaml:"sources" validate:"min=1,dive,oneof=francetravail wttj apec"`
		ChainTimeout time.Duration `yaml:"chain_timeout"` // 0 = no limit
	} `yaml:"pipeline"`

	Scraper struct {
		UserAgent      string        `yaml:"user_agent"`
		ChromePath     string        `yaml:"chrome_path"`
		HeadlessMode   bool          `yaml:"headless_mode"`
		StealthMode    bool          `yaml:"stealth_mode"`
		RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`
	} `yaml:"scraper"`

	Throttle struct {
		RateLimit    int           `yaml:"rate_limit" validate:"gte=1"` // requests per minute per host
		Burst        int           `yaml:"burst" validate:"gte=1"`
		MaxFailures  int           `yaml:"max_failures" validate:"gte=1"`
		ResetTimeout time.Duration `yaml:"reset_timeout" validate:"gt=0"`
	} `yaml:"throttle"`

	FranceTravail struct {
		ClientID         string        `yaml:"client_id"`
		ClientSecret     string        `yaml:"client_secret"`
		TokenURL         string        `yaml:"token_url" validate:"required,url"`
		APIURL           string        `yaml:"api_url" validate:"required,url"`
		WebURL           string        `yaml:"web_url" validate:"required,url"`
		Scopes           []string      `yaml:"scopes"`
		Keywords         []string      `yaml:"keywords" validate:"min=1"`
		PageSize         int           `yaml:"page_size" validate:"gte=1,lte=150"`
		MaxStart         int           `yaml:"max_start" validate:"gte=0"`
		PageDelay        time.Duration `yaml:"page_delay"`
		LookupDelay      time.Duration `yaml:"lookup_delay"`
		RateLimitBackoff time.Duration `yaml:"rate_limit_backoff"`
		MaxRetries       int           `yaml:"max_retries" validate:"gte=1"`
		StaleAfter       time.Duration `yaml:"stale_after" validate:"gt=0"`
		WebPauseMin      time.Duration `yaml:"web_pause_min"`
		WebPauseMax      time.Duration `yaml:"web_pause_max"`
		HTTPTimeout      time.Duration `yaml:"http_timeout" validate:"gt=0"`
		WebTimeout       time.Duration `yaml:"web_timeout" validate:"gt=0"`
		FlushEvery       int           `yaml:"flush_every" validate:"gte=1"`
	} `yaml:"francetravail"`

	WTTJ struct {
		BaseURL  string `yaml:"base_url" validate:"required,url"`
		Query    string `yaml:"query" validate:"required"`
		MaxPages int    `yaml:"max_pages" validate:"gte=1"`
		Scrolls  int    `yaml:"scrolls"`
		// DuplicateTolerance stops discovery after this many known links in a row
		DuplicateTolerance int           `yaml:"duplicate_tolerance" validate:"gte=1"`
		PageDelayMin       time.Duration `yaml:"page_delay_min"`
		PageDelayMax       time.Duration `yaml:"page_delay_max"`
		DetailDelayMin     time.Duration `yaml:"detail_delay_min"`
		DetailDelayMax     time.Duration `yaml:"detail_delay_max"`
		FlushEvery         int           `yaml:"flush_every" validate:"gte=1"`
	} `yaml:"wttj"`

	APEC struct {
		BaseURL            string        `yaml:"base_url" validate:"required,url"`
		Query              string        `yaml:"query" validate:"required"`
		MaxPages           int           `yaml:"max_pages" validate:"gte=1"`
		DuplicateTolerance int           `yaml:"duplicate_tolerance" validate:"gte=1"`
		PageDelayMin       time.Duration `yaml:"page_delay_min"`
		PageDelayMax       time.Duration `yaml:"page_delay_max"`
		DetailDelayMin     time.Duration `yaml:"detail_delay_min"`
		DetailDelayMax     time.Duration `yaml:"detail_delay_max"`
		FlushEvery         int           `yaml:"flush_every" validate:"gte=1"`
	} `yaml:"apec"`

	Expiry struct {
		Schedule string `yaml:"schedule"`
	} `yaml:"expiry"`

	Heuristics struct {
		File string `yaml:"file"` // optional YAML override of the built-in dictionaries
	} `yaml:"heuristics"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`

		Adapters []struct {
			Name    string                 `yaml:"name"`
			Type    string                 `yaml:"type"`
			Enabled bool                   `yaml:"enabled"`
			Options map[string]interface{} `yaml:"options"`
		} `yaml:"adapters"`
	} `yaml:"logging"`

	Redis struct {
		Enabled   bool          `yaml:"enabled"`
		URL       string        `yaml:"url" validate:"required_if=Enabled true"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		Timeout   time.Duration `yaml:"timeout"`
		KeyPrefix string        `yaml:"key_prefix"`
	} `yaml:"redis"`

	Spaces struct {
		Enabled         bool   `yaml:"enabled"`
		BucketURL       string `yaml:"bucket_url"`
		CDNEndpoint     string `yaml:"cdn_endpoint"`
		AccessKeyID     string `yaml:"access_key_id" validate:"required_if=Enabled true"`
		AccessKeySecret string `yaml:"access_key_secret" validate:"required_if=Enabled true"`
		Region          string `yaml:"region"`
		BucketName      string `yaml:"bucket_name" validate:"required_if=Enabled true"`
		ObjectKey       string `yaml:"object_key"`
	} `yaml:"spaces"`

	Postgres struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url" validate:"required_if=Enabled true"`
		Table   string `yaml:"table" validate:"required_if=Enabled true"`
	} `yaml:"postgres"`

	Telegram struct {
		Enabled bool   `yaml:"enabled"`
		Token   string `yaml:"token" validate:"required_if=Enabled true"`
		ChatID  int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
}

var (
	bracedVar = regexp.MustCompile(`\$\{([^}]+)\}`)
	bareVar   = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// expandEnvVars expands environment variables in a string using ${VAR} or $VAR syntax
func expandEnvVars(s string) string {
	s = bracedVar.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})

	return bareVar.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[1:]); val != "" {
			return val
		}
		return match
	})
}

// Default returns the configuration used when no file overrides it
func Default() *Config {
	config := &Config{}

	config.DataDir = "data"
	config.Pipeline.Sources = []string{"francetravail", "wttj", "apec"}

	config.Scraper.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	config.Scraper.HeadlessMode = true
	config.Scraper.StealthMode = true
	config.Scraper.RequestTimeout = 45 * time.Second

	config.Throttle.RateLimit = 20
	config.Throttle.Burst = 1
	config.Throttle.MaxFailures = 5
	config.Throttle.ResetTimeout = 2 * time.Minute

	ft := &config.FranceTravail
	ft.TokenURL = "https://entreprise.francetravail.fr/connexion/oauth2/access_token?realm=%2Fpartenaire"
	ft.APIURL = "https://api.francetravail.io/partenaire/offresdemploi/v2"
	ft.WebURL = "https://candidat.francetravail.fr/offres/recherche/detail"
	ft.Scopes = []string{"api_offresdemploiv2", "o2dsoffre"}
	ft.Keywords = []string{"Data Analyst", "Data Scientist", "Business Analyst", "Business Intelligence", "Analyste de données"}
	ft.PageSize = 150
	ft.MaxStart = 3000
	ft.PageDelay = 300 * time.Millisecond
	ft.LookupDelay = 200 * time.Millisecond
	ft.RateLimitBackoff = 5 * time.Second
	ft.MaxRetries = 3
	ft.StaleAfter = 72 * time.Hour
	ft.WebPauseMin = 3 * time.Second
	ft.WebPauseMax = 6 * time.Second
	ft.HTTPTimeout = 20 * time.Second
	ft.WebTimeout = 5 * time.Second
	ft.FlushEvery = 50

	config.WTTJ.BaseURL = "https://www.welcometothejungle.com"
	config.WTTJ.Query = "data analyst"
	config.WTTJ.MaxPages = 50
	config.WTTJ.Scrolls = 4
	config.WTTJ.DuplicateTolerance = 10
	config.WTTJ.PageDelayMin = 8 * time.Second
	config.WTTJ.PageDelayMax = 15 * time.Second
	config.WTTJ.DetailDelayMin = 4 * time.Second
	config.WTTJ.DetailDelayMax = 7 * time.Second
	config.WTTJ.FlushEvery = 10

	config.APEC.BaseURL = "https://www.apec.fr"
	config.APEC.Query = "Data analyst"
	config.APEC.MaxPages = 38
	config.APEC.DuplicateTolerance = 10
	config.APEC.PageDelayMin = 3 * time.Second
	config.APEC.PageDelayMax = 6 * time.Second
	config.APEC.DetailDelayMin = 4 * time.Second
	config.APEC.DetailDelayMax = 8 * time.Second
	config.APEC.FlushEvery = 20

	config.Expiry.Schedule = "@every 24h"

	config.Logging.Level = "info"
	config.Logging.Format = "text"
	config.Logging.Output = "stdout"

	config.Redis.URL = "redis://localhost:6379"
	config.Redis.Timeout = 5 * time.Second
	config.Redis.KeyPrefix = "pathfinder"

	config.Spaces.Region = "fra1"
	config.Spaces.ObjectKey = "exports/global_job_market.csv"

	config.Postgres.Table = "job_postings"

	return config
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	_ = godotenv.Load()

	config := Default()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), config); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read %s: %w", configPath, err)
		}
	}

	config.loadFromEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks struct constraints plus the cross-field rules tags cannot express
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return utils.NewValidationError(err.Error())
	}

	if c.SourceEnabled("francetravail") && (c.FranceTravail.ClientID == "" || c.FranceTravail.ClientSecret == "") {
		return utils.NewValidationError("francetravail client_id and client_secret are required when the source is enabled")
	}

	if c.Telegram.Enabled && c.Telegram.ChatID == 0 {
		return utils.NewValidationError("telegram chat_id is required when telegram is enabled")
	}

	return nil
}

// SourceEnabled reports whether slug is listed in pipeline.sources
func (c *Config) SourceEnabled(slug string) bool {
	for _, s := range c.Pipeline.Sources {
		if strings.EqualFold(s, slug) {
			return true
		}
	}
	return false
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.DataDir = dataDir
	}

	if sources := os.Getenv("PIPELINE_SOURCES"); sources != "" {
		c.Pipeline.Sources = splitAndTrim(sources)
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		c.Logging.Format = logFormat
	}

	if headless := os.Getenv("HEADLESS"); headless != "" {
		c.Scraper.HeadlessMode = headless == "true" || headless == "1"
	}

	if chromePath := os.Getenv("CHROME_PATH"); chromePath != "" {
		c.Scraper.ChromePath = chromePath
	}

	// France Travail credentials
	if clientID := os.Getenv("FT_CLIENT_ID"); clientID != "" {
		c.FranceTravail.ClientID = clientID
	}

	if clientSecret := os.Getenv("FT_CLIENT_SECRET"); clientSecret != "" {
		c.FranceTravail.ClientSecret = clientSecret
	}

	if keywords := os.Getenv("FT_KEYWORDS"); keywords != "" {
		c.FranceTravail.Keywords = splitAndTrim(keywords)
	}

	if staleAfter := os.Getenv("FT_STALE_AFTER"); staleAfter != "" {
		if d, err := time.ParseDuration(staleAfter); err == nil {
			c.FranceTravail.StaleAfter = d
		}
	}

	if heuristics := os.Getenv("HEURISTICS_FILE"); heuristics != "" {
		c.Heuristics.File = heuristics
	}

	if schedule := os.Getenv("EXPIRY_SCHEDULE"); schedule != "" {
		c.Expiry.Schedule = schedule
	}

	// Redis crawl-state mirror
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.URL = redisURL
		c.Redis.Enabled = true
	}

	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		c.Redis.Password = redisPassword
	}

	if redisDB := os.Getenv("REDIS_DB"); redisDB != "" {
		if db, err := strconv.Atoi(redisDB); err == nil {
			c.Redis.DB = db
		}
	}

	// Object storage
	if bucketURL := os.Getenv("BUCKET_URL"); bucketURL != "" {
		c.Spaces.BucketURL = bucketURL
	}

	if accessKeyID := os.Getenv("BUCKET_ACCESS_KEY_ID"); accessKeyID != "" {
		c.Spaces.AccessKeyID = accessKeyID
	}

	if accessKeySecret := os.Getenv("BUCKET_ACCESS_KEY_SECRET"); accessKeySecret != "" {
		c.Spaces.AccessKeySecret = accessKeySecret
	}

	if bucketName := os.Getenv("BUCKET_NAME"); bucketName != "" {
		c.Spaces.BucketName = bucketName
	}

	if region := os.Getenv("BUCKET_REGION"); region != "" {
		c.Spaces.Region = region
	}

	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		c.Postgres.URL = databaseURL
		c.Postgres.Enabled = true
	}

	if token := os.Getenv("TELEGRAM_TOKEN"); token != "" {
		c.Telegram.Token = token
		c.Telegram.Enabled = true
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
			c.Telegram.ChatID = id
		}
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
