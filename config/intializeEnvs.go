package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	godotenv "github.com/joho/godotenv"

	"github.com/mahirjain10/go-assets/internal/thumbnail"
)

type Config struct {
	AssetsFolder  string
	TempFolder    string
	ThumbnailSize thumbnail.Size
	HTTPTimeout   time.Duration
	UpdateURL     string
	LogLevel      string
	MetricsAddr   string

	RabbitMqURL    string
	RabbitMqQueues []string
	WorkerCount    int
	AwsBucketName  string
	S3Endpoint     string
}

// InitializeEnvs loads the dotenv file for APP_ENV (falling back to .env)
// and reads the configuration from the environment. It returns the name of
// the file it loaded, or "" when only the process environment was used.
func InitializeEnvs() (*Config, string, error) {
	loaded := loadDotenv(os.Getenv("APP_ENV"))
	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		return nil, loaded, err
	}
	return cfg, loaded, nil
}

func loadDotenv(appEnv string) string {
	var candidates []string
	switch appEnv {
	case "", "dev":
		candidates = []string{".env.dev", ".env"}
	default:
		candidates = []string{".env." + appEnv, ".env"}
	}
	for _, name := range candidates {
		if err := godotenv.Overload(name); err == nil {
			return name
		}
	}
	return ""
}

// FromEnv builds a Config from getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		AssetsFolder:  getenv("ASSETS_FOLDER"),
		TempFolder:    getenv("TEMP_FOLDER"),
		ThumbnailSize: thumbnail.AssetSize,
		HTTPTimeout:   30 * time.Second,
		UpdateURL:     getenv("UPDATE_URL"),
		LogLevel:      getenv("LOG_LEVEL"),
		MetricsAddr:   getenv("METRICS_ADDR"),
		RabbitMqURL:   getenv("RABBITMQ_URL"),
		WorkerCount:   1,
		AwsBucketName: getenv("AWS_BUCKET_NAME"),
		S3Endpoint:    getenv("AWS_S3_ENDPOINT"),
	}
	if cfg.AssetsFolder == "" {
		return nil, fmt.Errorf("ASSETS_FOLDER is missing")
	}

	if v := getenv("THUMBNAIL_SIZE"); v != "" {
		size, err := ParseSize(v)
		if err != nil {
			return nil, fmt.Errorf("THUMBNAIL_SIZE: %w", err)
		}
		cfg.ThumbnailSize = size
	}
	if v := getenv("HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("HTTP_TIMEOUT must be a positive duration, got %q", v)
		}
		cfg.HTTPTimeout = d
	}
	if v := getenv("WORKER_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("WORKER_COUNT must be a positive integer, got %q", v)
		}
		cfg.WorkerCount = n
	}
	if v := getenv("RABBITMQ_QUEUES"); v != "" {
		for _, q := range strings.Split(v, ",") {
			if q = strings.TrimSpace(q); q != "" {
				cfg.RabbitMqQueues = append(cfg.RabbitMqQueues, q)
			}
		}
	}
	if cfg.RabbitMqURL != "" && len(cfg.RabbitMqQueues) == 0 {
		return nil, fmt.Errorf("RABBITMQ_URL is set but RABBITMQ_QUEUES is missing")
	}
	return cfg, nil
}

// ParseSize parses "WxH". "0x0" selects pass-through mode.
func ParseSize(s string) (thumbnail.Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return thumbnail.Size{}, fmt.Errorf("size %q is not WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return thumbnail.Size{}, fmt.Errorf("size %q: bad width: %w", s, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return thumbnail.Size{}, fmt.Errorf("size %q: bad height: %w", s, err)
	}
	size := thumbnail.Size{Width: width, Height: height}
	if err := size.Validate(); err != nil {
		return thumbnail.Size{}, err
	}
	return size, nil
}
