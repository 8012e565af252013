package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	DefaultListenAddr     = ":5000"
	DefaultMediaServerURL = "http://localhost:8888"
	DefaultStreamURL      = "https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/BigBuckBunny.mp4"
	DefaultMaxLayouts     = 10
)

// Config holds the service settings read from the environment.
type Config struct {
	ListenAddr       string
	StorageType      string
	LocalStoragePath string
	DataSourceName   string
	S3BucketName     string
	S3Prefix         string
	JWTSecret        string
	MediaServerURL   string
	DefaultStreamURL string
	// AllowedOrigins is empty when only local origins may call the API.
	AllowedOrigins []string
	MaxLayouts     int
}

// LoadDotEnv reads an optional .env file into the process environment.
func LoadDotEnv(filenames ...string) {
	if err := godotenv.Load(filenames...); err != nil {
		logrus.Info("No .env file found")
	}
}

// Load builds a Config from the environment, applying defaults.
func Load() Config {
	return Config{
		ListenAddr:       getEnv("LISTEN_ADDR", DefaultListenAddr),
		StorageType:      getEnv("STORAGE_TYPE", "memory"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./data"),
		DataSourceName:   getEnv("DATA_SOURCE_NAME", "overlays.db"),
		S3BucketName:     os.Getenv("S3_BUCKET_NAME"),
		S3Prefix:         getEnv("S3_PREFIX", "overlays"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		MediaServerURL:   getEnv("MEDIA_SERVER_URL", DefaultMediaServerURL),
		DefaultStreamURL: getEnv("DEFAULT_STREAM_URL", DefaultStreamURL),
		AllowedOrigins:   splitList(os.Getenv("ALLOWED_ORIGINS")),
		MaxLayouts:       getEnvInt("MAX_LAYOUTS", DefaultMaxLayouts),
	}
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		logrus.WithFields(logrus.Fields{"key": key, "value": raw}).Warn("Ignoring invalid integer setting")
		return fallback
	}
	return value
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
