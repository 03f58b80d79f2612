package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	defaultAPIURL          = "http://localhost:5000"
	defaultRefreshInterval = 30 * time.Second
	defaultRequestTimeout  = 10 * time.Second
	defaultProcessorDelay  = 1500 * time.Millisecond
)

// ClientConfig configures the wallet sync terminal client.
type ClientConfig struct {
	APIURL          string
	Username        string
	Password        string
	LogLevel        string
	RefreshInterval time.Duration
	RequestTimeout  time.Duration
	ProcessorDelay  time.Duration
	RedisURL        string
	NATSURL         string
	BalanceChannel  string
}

// LoadClient reads the client configuration from the environment.
func LoadClient() (ClientConfig, error) {
	if err := loadDotEnv(); err != nil {
		return ClientConfig{}, err
	}

	cfg := ClientConfig{
		APIURL:         strings.TrimRight(getEnv("API_URL", defaultAPIURL), "/"),
		Username:       os.Getenv("WALLET_USERNAME"),
		Password:       os.Getenv("WALLET_PASSWORD"),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		RedisURL:       os.Getenv("REDIS_URL"),
		NATSURL:        os.Getenv("NATS_URL"),
		BalanceChannel: getEnv("BALANCE_CHANNEL", defaultBalanceChannel),
	}

	var err error
	if cfg.RefreshInterval, err = durationEnv("", "WALLET_REFRESH_INTERVAL", defaultRefreshInterval); err != nil {
		return ClientConfig{}, err
	}
	if cfg.RequestTimeout, err = durationEnv("", "WALLET_REQUEST_TIMEOUT", defaultRequestTimeout); err != nil {
		return ClientConfig{}, err
	}
	if cfg.ProcessorDelay, err = durationEnv("", "WALLET_PROCESSOR_DELAY", defaultProcessorDelay); err != nil {
		return ClientConfig{}, err
	}
	if cfg.RefreshInterval <= 0 || cfg.RequestTimeout <= 0 {
		return ClientConfig{}, fmt.Errorf("WALLET_REFRESH_INTERVAL and WALLET_REQUEST_TIMEOUT must be positive")
	}

	return cfg, nil
}
