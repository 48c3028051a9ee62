package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultProxyURL = "https://loreal-chatbot-worker.kmiddagh.workers.dev/"

type Config struct {
	ProxyURL       string
	ProxyTimeout   time.Duration
	ParamPrefix    string
	StateTable     string
	SessionTTL     time.Duration
	MaxInputLength int
	ListenAddr     string
	LogLevel       string
}

// UsesAWS reports whether any component needs AWS credentials.
func (c Config) UsesAWS() bool {
	return c.ParamPrefix != "" || c.StateTable != ""
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory if one exists. Variables already set win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	cfg := Config{
		ProxyURL:    getEnv("PROXY_URL", DefaultProxyURL),
		ParamPrefix: strings.TrimRight(getEnv("PARAM_PREFIX", ""), "/"),
		StateTable:  getEnv("STATE_TABLE", ""),
		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.ProxyTimeout, err = envDuration("PROXY_TIMEOUT", 0); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = envDuration("SESSION_TTL", 2*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.MaxInputLength, err = envInt("MAX_INPUT_LENGTH", 4000); err != nil {
		return Config{}, err
	}
	if cfg.ProxyTimeout < 0 {
		return Config{}, errors.New("config: PROXY_TIMEOUT must not be negative")
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, errors.New("config: SESSION_TTL must be positive")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
