// Copyright © NGRSoftlab 2020-2025

package ssh

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	defaultPort        = 22
	defaultMaxSessions = 2
	maxSessionsLimit   = 8
	defaultRetryCount  = 3
	defaultTimeout     = 30 * time.Second
	defaultRetryDelay  = 5 * time.Second
	defaultKeepAlive   = 30 * time.Second
)

type ConfigOption func(*Config) error

// Config contains settings for an SSH connection used by the sftp uploader
type Config struct {
	Host           string        // *ip or hostname
	Port           int           // *port
	User           string        // *username
	timeout        time.Duration // dial timeout
	retryCount     int           // redial attempts
	retryInterval  time.Duration // delay between attempts
	keepAlive      time.Duration // keepalive request interval
	knownHostsPath string        // optional known_hosts file, host keys are not checked without it
	maxSessions    int           // concurrent sessions on one connection

	auth *auth // auth settings
}

// NewConfig creates a config with defaults and applies opts.
// A port of 0 selects 22
func NewConfig(user, host string, port int, opts ...ConfigOption) (*Config, error) {
	if port == 0 {
		port = defaultPort
	}
	cfg := &Config{
		Host:          host,
		Port:          port,
		User:          user,
		timeout:       defaultTimeout,
		retryCount:    defaultRetryCount,
		retryInterval: defaultRetryDelay,
		keepAlive:     defaultKeepAlive,
		maxSessions:   defaultMaxSessions,
		auth:          &auth{},
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("config option failed: %w", err)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// WithPort overrides the default SSH port
func WithPort(p int) ConfigOption {
	return func(cfg *Config) error {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("port must be 1-65535")
		}
		cfg.Port = p
		return nil
	}
}

// WithTimeout sets a custom dial timeout
func WithTimeout(timeout time.Duration) ConfigOption {
	return func(cfg *Config) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be >0")
		}
		cfg.timeout = timeout
		return nil
	}
}

// WithRetry sets how many times dialing is retried and the pause between attempts
func WithRetry(count int, interval time.Duration) ConfigOption {
	return func(cfg *Config) error {
		if count < 0 || interval < 0 {
			return fmt.Errorf("retry count and interval must be >=0")
		}
		cfg.retryCount = count
		cfg.retryInterval = interval
		return nil
	}
}

// WithKeepAlive sets a custom keepalive interval
func WithKeepAlive(keepAlive time.Duration) ConfigOption {
	return func(cfg *Config) error {
		if keepAlive <= 0 {
			return fmt.Errorf("keepalive must be >0")
		}
		cfg.keepAlive = keepAlive
		return nil
	}
}

// WithKnownHosts sets the path to a known_hosts file for server key verification
func WithKnownHosts(path string) ConfigOption {
	return func(cfg *Config) error {
		if path == "" {
			return fmt.Errorf("known_hosts path cannot be empty")
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("known_hosts file '%s' does not exist", filepath.Base(path))
		}
		cfg.knownHostsPath = path
		return nil
	}
}

// WithMaxSessions limits concurrent sessions opened on one connection
func WithMaxSessions(n int) ConfigOption {
	return func(cfg *Config) error {
		if n < 1 || n > maxSessionsLimit {
			return fmt.Errorf("max sessions must be 1-%d", maxSessionsLimit)
		}
		cfg.maxSessions = n
		return nil
	}
}

// WithAgentAuth enables authentication via the local SSH agent
func WithAgentAuth() ConfigOption {
	return func(cfg *Config) error {
		return cfg.auth.withAgent()
	}
}

// WithKeyBytesAuth enables in-memory private key authentication
func WithKeyBytesAuth(keyBytes []byte, passphrase string) ConfigOption {
	return func(cfg *Config) error {
		return cfg.auth.withPrivateKeyBytes(keyBytes, passphrase)
	}
}

// WithPrivateKeyPathAuth enables file-based private key authentication
func WithPrivateKeyPathAuth(path, passphrase string) ConfigOption {
	return func(cfg *Config) error {
		return cfg.auth.withPrivateKeyPath(path, passphrase)
	}
}

// WithPasswordAuth enables password-based authentication
func WithPasswordAuth(password string) ConfigOption {
	return func(cfg *Config) error {
		return cfg.auth.withPassword(password)
	}
}

// Addr returns host:port
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// validate checks that required fields in Config are set
func (c *Config) validate() error {
	if len(c.User) == 0 {
		return fmt.Errorf("user required")
	}
	if len(c.Host) == 0 {
		return fmt.Errorf("host required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

// ClientConfig builds the underlying *ssh.ClientConfig, gathering auth methods
// in priority order (agent → key path/bytes → password) and setting the host key callback
func (c *Config) ClientConfig() (*ssh.ClientConfig, error) {
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if c.auth == nil {
		c.auth = &auth{}
	}

	authMethods, err := c.auth.authMethods()
	if err != nil {
		return nil, fmt.Errorf("invalid auth methods: %w", err)
	}

	hostKeyCallback, err := c.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.timeout,
	}, nil
}

// hostKeyCallback verifies against knownHostsPath, or accepts any key if none is set
func (c *Config) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if len(c.knownHostsPath) == 0 {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	callback, err := knownhosts.New(c.knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("knownhost: %w", err)
	}
	return callback, nil
}
