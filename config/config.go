// Package config holds the on-disk daemon configuration for bucketd: the
// data directory, the peer and blob listen addresses, and the sync
// manager's tunables. This package defines the struct, its defaults,
// validation, and loading and saving of the on-disk key = value format;
// command-line flag parsing lives in cmd/bucketd.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bucketmesh/bucketd/sync"
)

// Config holds bucketd's daemon-wide settings.
type Config struct {
	DataDir  string
	LogLevel string
	LogFile  string

	ListenAddr     string // peer protocol (peer.Serve)
	BlobListenAddr string // blob transfer listener

	MaxHistoryDepth int           // validated and persisted only; sync always bounds verification by the constant sync.MaxHistoryDepth
	PullInterval    time.Duration // spacing between scheduled Pull sweeps
}

// DefaultConfig returns the configuration bucketd starts from before any
// config file or flag overrides are applied.
func DefaultConfig() Config {
	return Config{
		DataDir:         DefaultDataDir(),
		LogLevel:        "info",
		LogFile:         "",
		ListenAddr:      ":8080",
		BlobListenAddr:  ":8081",
		MaxHistoryDepth: sync.MaxHistoryDepth,
		PullInterval:    30 * time.Second,
	}
}

// DefaultDataDir returns the default bucketd data directory under the
// user's home directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".bucketmesh")
}

// ConfigPath returns the path to the config file inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(filepath.Clean(dataDir), "config")
}

// configKeys maps on-disk key names to setters, so unknown keys in a
// config file are silently ignored (forward compatibility) and known
// keys always parse the same way regardless of surrounding whitespace.
var configKeys = map[string]func(*Config, string) error{
	"datadir": func(c *Config, v string) error { c.DataDir = v; return nil },
	"loglevel": func(c *Config, v string) error {
		c.LogLevel = v
		return nil
	},
	"logfile": func(c *Config, v string) error { c.LogFile = v; return nil },
	"listen":  func(c *Config, v string) error { c.ListenAddr = v; return nil },
	"blob_listen": func(c *Config, v string) error {
		c.BlobListenAddr = v
		return nil
	},
	"max_history_depth": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.MaxHistoryDepth = n
		return nil
	},
	"pull_interval": func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		c.PullInterval = d
		return nil
	},
}

// LoadConfig reads a key = value config file at path, starting from
// DefaultConfig() and overriding whichever fields the file sets.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, ErrConfigNotFound
		}
		return Config{}, fmt.Errorf("config: open: %w", err)
	}
	defer f.Close()

	cfg := DefaultConfig()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, err := parseKeyValue(line)
		if err != nil {
			return Config{}, err
		}

		set, ok := configKeys[key]
		if !ok {
			continue // unknown key, ignored for forward compatibility
		}
		if err := set(&cfg, value); err != nil {
			return Config{}, fmt.Errorf("%w: key %q: %v", ErrInvalidConfigLine, key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return Config{}, fmt.Errorf("config: read: %w", err)
	}

	return cfg, nil
}

// parseKeyValue splits a "key = value" line on the first '=', trimming
// whitespace around both halves. A line without '=' is invalid.
func parseKeyValue(line string) (key, value string, err error) {
	idx := strings.IndexByte(line, '=')
	if idx < 0 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidConfigLine, line)
	}
	key = strings.ToLower(strings.TrimSpace(line[:idx]))
	value = strings.TrimSpace(line[idx+1:])
	return key, value, nil
}

// SaveConfig writes cfg to path in the key = value format LoadConfig
// reads, creating path's parent directory if necessary.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# BucketMesh Configuration\n\n")
	fmt.Fprintf(&b, "datadir = %s\n", cfg.DataDir)
	fmt.Fprintf(&b, "loglevel = %s\n", cfg.LogLevel)
	fmt.Fprintf(&b, "logfile = %s\n", cfg.LogFile)
	fmt.Fprintf(&b, "listen = %s\n", cfg.ListenAddr)
	fmt.Fprintf(&b, "blob_listen = %s\n", cfg.BlobListenAddr)
	fmt.Fprintf(&b, "max_history_depth = %d\n", cfg.MaxHistoryDepth)
	fmt.Fprintf(&b, "pull_interval = %s\n", cfg.PullInterval)

	return os.WriteFile(path, []byte(b.String()), 0600)
}
