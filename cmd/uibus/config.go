package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/seb7887/uibus/api"
	"github.com/seb7887/uibus/cfgmng"
	"github.com/seb7887/uibus/logging"
)

type Config struct {
	Log    logging.Config `mapstructure:"log"`
	App    AppConfig      `mapstructure:"app"`
	Server ServerConfig   `mapstructure:"server"`
	Client ClientConfig   `mapstructure:"client"`
	Redis  RedisConfig    `mapstructure:"redis"`
	Nats   NatsConfig     `mapstructure:"nats"`
}

// AppConfig is what /_api/info/version reports.
type AppConfig struct {
	Version string `mapstructure:"version"`
	Title   string `mapstructure:"title"`
	Vendor  string `mapstructure:"vendor"`
}

type ServerConfig struct {
	Addr       string        `mapstructure:"addr"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`

	// TokenInfoURL and Audience configure id token verification against the
	// provider. DevTokens replaces it with a fixed "token:email" list.
	TokenInfoURL string   `mapstructure:"tokeninfo_url"`
	Audience     string   `mapstructure:"audience"`
	DevTokens    []string `mapstructure:"dev_tokens"`
}

type ClientConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Workers        int           `mapstructure:"workers"`
	MetricsAddr    string        `mapstructure:"metrics_addr"`
}

// RedisConfig selects the redis session store. Sessions stay in memory when
// Addr is empty.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NatsConfig enables the relay when URL is set.
type NatsConfig struct {
	URL           string   `mapstructure:"url"`
	SubjectPrefix string   `mapstructure:"subject_prefix"`
	Forward       []string `mapstructure:"forward"`
	Ingest        []string `mapstructure:"ingest"`
}

var defaults = map[string]any{
	"log.level":              "info",
	"log.format":             "json",
	"app.version":            "",
	"app.title":              "uibus",
	"app.vendor":             "",
	"server.addr":            ":8080",
	"server.session_ttl":     "12h",
	"server.tokeninfo_url":   api.DefaultTokenInfoURL,
	"server.audience":        "",
	"server.dev_tokens":      []string{},
	"client.base_url":        "http://localhost:8080",
	"client.poll_interval":   "1m",
	"client.retry_attempts":  3,
	"client.request_timeout": "10s",
	"client.workers":         4,
	"client.metrics_addr":    "",
	"redis.addr":             "",
	"redis.password":         "",
	"redis.db":               0,
	"nats.url":               "",
	"nats.subject_prefix":    "uibus",
	"nats.forward":           []string{},
	"nats.ingest":            []string{},
}

func loadConfig(file string) (*Config, error) {
	cfg, err := cfgmng.LoadConfig[Config](".", "uibus",
		cfgmng.WithConfigFile(file),
		cfgmng.WithEnvPrefix("UIBUS"),
		cfgmng.WithDefaults(defaults),
		cfgmng.Optional(),
	)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// devIdentities parses "token:email" pairs.
func devIdentities(entries []string) (api.StaticVerifier, error) {
	v := make(api.StaticVerifier, len(entries))
	for _, entry := range entries {
		token, email, ok := strings.Cut(entry, ":")
		if !ok || token == "" {
			return nil, fmt.Errorf("dev token %q: want token:email", entry)
		}
		v[token] = api.Identity{Subject: token, Email: email}
	}
	return v, nil
}
