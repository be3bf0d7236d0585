package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gookit/config/v2"
	"github.com/gookit/config/v2/toml"
	"github.com/gookit/config/v2/yaml"
)

type Log struct {
	Level  string `config:"level"`
	Format string `config:"format"`
}

type Database struct {
	DSN string `config:"dsn"`
}

type Session struct {
	Secret      string `config:"secret"`
	CookieName  string `config:"cookie_name"`
	Secure      bool   `config:"secure"`
	TTL         string `config:"ttl"`
	RememberTTL string `config:"remember_ttl"`
}

type Auth struct {
	JwksURL  string `config:"jwks_url"`
	Issuer   string `config:"issuer"`
	Audience string `config:"audience"`
}

type Broker struct {
	URL          string `config:"url"`
	Topic        string `config:"topic"`
	Subscription string `config:"subscription"`
}

type Config struct {
	Addr     string   `config:"addr"`
	Log      Log      `config:"log"`
	Database Database `config:"database"`
	Session  Session  `config:"session"`
	Auth     Auth     `config:"auth"`
	Broker   Broker   `config:"broker"`
}

func Default() *Config {
	return &Config{
		Addr: ":8080",
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Database: Database{
			DSN: "todos.db",
		},
		Session: Session{
			CookieName:  "todos_session",
			TTL:         "24h",
			RememberTTL: "168h",
		},
		Broker: Broker{
			Topic: "persistent://public/default/todos",
		},
	}
}

// NewConfig loads path on top of the defaults, then path's ".local" sibling
// when it exists. Values may reference the environment, e.g. ${TODOS_ADDR|:8080}.
func NewConfig(path string) (*Config, error) {
	appConfig := Default()

	c := config.New("todos")
	c.WithOptions(func(opt *config.Options) {
		opt.ParseEnv = true
		opt.DecoderConfig.TagName = "config"
	})

	c.AddDriver(yaml.Driver)
	c.AddDriver(toml.Driver)

	if err := c.LoadFiles(path); err != nil {
		return nil, err
	}

	if err := c.LoadExists(localPath(path)); err != nil {
		return nil, err
	}

	if err := c.BindStruct("", appConfig); err != nil {
		return nil, err
	}

	if err := appConfig.Validate(); err != nil {
		return nil, err
	}

	return appConfig, nil
}

func localPath(path string) string {
	ext := filepath.Ext(path)

	return strings.TrimSuffix(path, ext) + ".local" + ext
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("config: addr cannot be empty")
	}

	if c.Database.DSN == "" {
		return errors.New("config: database.dsn cannot be empty")
	}

	if c.Session.Secret == "" {
		return errors.New("config: session.secret cannot be empty")
	}

	if c.Session.CookieName == "" {
		return errors.New("config: session.cookie_name cannot be empty")
	}

	if _, err := c.SessionTTL(); err != nil {
		return err
	}

	if _, err := c.RememberTTL(); err != nil {
		return err
	}

	if c.Broker.URL != "" && c.Broker.Topic == "" {
		return errors.New("config: broker.topic is required when broker.url is set")
	}

	return nil
}

func (c *Config) SessionTTL() (time.Duration, error) {
	return parseTTL("session.ttl", c.Session.TTL)
}

func (c *Config) RememberTTL() (time.Duration, error) {
	return parseTTL("session.remember_ttl", c.Session.RememberTTL)
}

func parseTTL(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}

	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", key)
	}

	return d, nil
}
