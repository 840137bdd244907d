package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables honoured on top of the config file.
const (
	EnvVisionEndpoint = "COMPUTER_VISION_ENDPOINT"
	EnvVisionKey      = "COMPUTER_VISION_KEY"
	EnvTextEndpoint   = "TEXT_ANALYTICS_ENDPOINT"
	EnvTextKey        = "TEXT_ANALYTICS_KEY"
	EnvStorage        = "AzureWebJobsStorage"
	EnvOpenAIKey      = "OPENAI_API_KEY"
	EnvDatabaseDriver = "DATABASE_DRIVER"
	EnvWebhookToken   = "WEBHOOK_TOKEN"
)

const (
	defaultPort           = 8080
	defaultRegion         = "us-east-1"
	defaultTimeout        = 30 * time.Second
	defaultRateCapacity   = 60
	defaultRefillPerSec   = 10
	defaultPostgresSSL    = "disable"
	defaultNarrationModel = "gpt-4o-mini"
)

type Config struct {
	Server struct {
		Port         int      `yaml:"port"`
		WebhookToken string   `yaml:"webhookToken"`
		CORSOrigins  []string `yaml:"corsOrigins"`
		RateLimit    struct {
			Capacity        int `yaml:"capacity"`
			RefillPerSecond int `yaml:"refillPerSecond"`
		} `yaml:"rateLimit"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres | "" (no persistence)
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Storage Storage `yaml:"storage"`

	Vision    Service `yaml:"vision"`
	Text      Service `yaml:"text"`
	Cognitive struct {
		Timeout           time.Duration `yaml:"timeout"`
		RequestsPerMinute int           `yaml:"requestsPerMinute"`
	} `yaml:"cognitive"`

	OpenAI struct {
		APIKey  string `yaml:"apiKey"`
		Model   string `yaml:"model"`
		BaseURL string `yaml:"baseURL"`
	} `yaml:"openai"`
}

// Storage describes the watched bucket
type Storage struct {
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"accessKey"`
	SecretKey     string `yaml:"secretKey"`
	BucketName    string `yaml:"bucketName"`
	Region        string `yaml:"region"`
	UseSSL        bool   `yaml:"useSSL"`
	PublicBaseURL string `yaml:"publicBaseURL"`
	ResultsPrefix string `yaml:"resultsPrefix"`
	Listen        bool   `yaml:"listen"`
}

// Service is one cognitive-service endpoint and its subscription key
type Service struct {
	Endpoint string `yaml:"endpoint"`
	Key      string `yaml:"key"`
}

// Configured reports whether both endpoint and key are present.
func (s Service) Configured() bool {
	return strings.TrimSpace(s.Endpoint) != "" && strings.TrimSpace(s.Key) != ""
}

// Load reads the yaml file at path (optional when missing), then .env, then the environment.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&c.Vision.Endpoint, EnvVisionEndpoint)
	set(&c.Vision.Key, EnvVisionKey)
	set(&c.Text.Endpoint, EnvTextEndpoint)
	set(&c.Text.Key, EnvTextKey)
	set(&c.OpenAI.APIKey, EnvOpenAIKey)
	set(&c.Database.Driver, EnvDatabaseDriver)
	set(&c.Server.WebhookToken, EnvWebhookToken)

	if v, ok := lookup(EnvStorage); ok && strings.TrimSpace(v) != "" {
		st, err := ParseConnectionString(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvStorage, err)
		}
		c.Storage.merge(st)
	}
	if v, ok := lookup("PORT"); ok {
		if p, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(v), ":")); err == nil {
			c.Server.Port = p
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.RateLimit.Capacity == 0 {
		c.Server.RateLimit.Capacity = defaultRateCapacity
	}
	if c.Server.RateLimit.RefillPerSecond == 0 {
		c.Server.RateLimit.RefillPerSecond = defaultRefillPerSec
	}
	if c.Storage.Region == "" {
		c.Storage.Region = defaultRegion
	}
	if c.Storage.PublicBaseURL == "" && c.Storage.Endpoint != "" && c.Storage.BucketName != "" {
		scheme := "http"
		if c.Storage.UseSSL {
			scheme = "https"
		}
		c.Storage.PublicBaseURL = fmt.Sprintf("%s://%s/%s/", scheme, c.Storage.Endpoint, c.Storage.BucketName)
	}
	if c.Cognitive.Timeout == 0 {
		c.Cognitive.Timeout = defaultTimeout
	}
	if c.Database.Driver == "postgres" && c.Database.SSLMode == "" {
		c.Database.SSLMode = defaultPostgresSSL
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = defaultNarrationModel
	}
}

// Validate reports settings that prevent the process from starting at all.
// Analyzer credentials are checked per invocation instead.
func (c *Config) Validate() error {
	var errs []error
	if c.Storage.Endpoint == "" {
		errs = append(errs, errors.New("storage.endpoint is required"))
	}
	if c.Storage.BucketName == "" {
		errs = append(errs, errors.New("storage.bucketName is required"))
	}
	if c.Storage.PublicBaseURL != "" {
		if u, err := url.Parse(c.Storage.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("storage.publicBaseURL %q is not an absolute URL", c.Storage.PublicBaseURL))
		}
	}
	switch c.Database.Driver {
	case "", "mysql", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not one of mysql, postgres", c.Database.Driver))
	}
	return errors.Join(errs...)
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection URL.
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.Database.SSLMode),
	}
	return u.String()
}
