// Package config loads the settings shared by the cookiejar binaries
// from an optional YAML file, with environment overrides.
//
// A missing file is not an error: every setting has a default so a
// development setup runs without one. A file that exists but does not
// parse is an error.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/blockberries/cookiejar/gateway"
	"github.com/blockberries/cookiejar/signing"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"
)

// Environment variables that override the file.
const (
	EnvURL       = "COOKIEJAR_URL"
	EnvEventsURL = "VALIDATOR_URL"
	EnvKey       = "COOKIEJAR_KEY"
)

// State store backends of the development node.
const (
	BackendMemory = "memory"
	BackendPebble = "pebble"
)

// ProcessorLocal makes the development node host the handler in-process.
const ProcessorLocal = "local"

// Config holds the settings of every cookiejar binary.
type Config struct {
	Client    Client    `yaml:"client"`
	Processor Processor `yaml:"processor"`
	Node      Node      `yaml:"node"`
	Log       Log       `yaml:"log"`
}

// Client configures the command line client.
type Client struct {
	// Base URL of the REST gateway.
	URL string `yaml:"url"`
	// Websocket URL for events. Derived from URL when empty.
	EventsURL string `yaml:"events_url"`
	// Key name, resolved as <KeyDir>/<KeyName>.priv.
	KeyName string `yaml:"key_name"`
	KeyDir  string `yaml:"key_dir"`
	// Explicit private key path; takes precedence over KeyName.
	KeyFile string `yaml:"key_file"`
	// How long to wait for a submitted batch to become final.
	Wait time.Duration `yaml:"wait"`
}

// Processor configures the standalone gRPC processor.
type Processor struct {
	Listen string `yaml:"listen"`
}

// Node configures the development node.
type Node struct {
	Listen string `yaml:"listen"`
	// gRPC address of the processor, or "local".
	Processor  string `yaml:"processor"`
	Backend    string `yaml:"backend"`
	DataDir    string `yaml:"data_dir"`
	QueueSize  int    `yaml:"queue_size"`
	RetryLimit int    `yaml:"retry_limit"`
}

// Log configures the zap logger built by package logging.
type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Client: Client{
			URL:     gateway.DefaultURL,
			KeyName: defaultKeyName(),
			Wait:    gateway.MaxWait,
		},
		Processor: Processor{
			Listen: "127.0.0.1:4004",
		},
		Node: Node{
			Listen:     "127.0.0.1:8008",
			Processor:  ProcessorLocal,
			Backend:    BackendMemory,
			QueueSize:  1024,
			RetryLimit: 5,
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path over the defaults and applies the
// environment overrides. An empty path or a missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.UnmarshalStrict(b, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvURL); ok && v != "" {
		c.Client.URL = v
	}
	if v, ok := lookup(EnvEventsURL); ok && v != "" {
		c.Client.EventsURL = v
	}
	if v, ok := lookup(EnvKey); ok && v != "" {
		if strings.ContainsRune(v, os.PathSeparator) || strings.HasSuffix(v, ".priv") {
			c.Client.KeyFile = v
		} else {
			c.Client.KeyName = v
		}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Client.URL == "" {
		return errors.New("config: client.url is required")
	}
	if c.Client.Wait <= 0 {
		return fmt.Errorf("config: client.wait must be positive, got %s", c.Client.Wait)
	}
	switch c.Node.Backend {
	case BackendMemory:
	case BackendPebble:
		if c.Node.DataDir == "" {
			return errors.New("config: node.data_dir is required for the pebble backend")
		}
	default:
		return fmt.Errorf("config: unknown node.backend %q", c.Node.Backend)
	}
	if c.Node.QueueSize <= 0 {
		return fmt.Errorf("config: node.queue_size must be positive, got %d", c.Node.QueueSize)
	}
	if c.Node.RetryLimit < 0 {
		return fmt.Errorf("config: node.retry_limit must not be negative, got %d", c.Node.RetryLimit)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	return nil
}

// KeyPath returns the private key file the client signs with.
func (c *Client) KeyPath() (string, error) {
	if c.KeyFile != "" {
		return c.KeyFile, nil
	}
	if c.KeyName == "" {
		return "", errors.New("config: no key name or key file configured")
	}
	dir := c.KeyDir
	if dir == "" {
		var err error
		if dir, err = signing.DefaultKeyDir(); err != nil {
			return "", err
		}
	}
	return signing.KeyFile(dir, c.KeyName), nil
}

func defaultKeyName() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "cookiejar"
}
