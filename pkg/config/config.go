// Package config provides configuration management for the sub-document
// daemon.
//
// The package supports configuration through multiple sources with the
// following precedence:
//  1. Command-line flags (highest priority)
//  2. Environment variables
//  3. Default values (lowest priority)
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//	server := server.New(cfg)
//
// Environment variables are prefixed with "SUBDOCD_" and use uppercase
// names. For example, the server port can be set with SUBDOCD_PORT=11211.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

// Default configuration constants.
const (
	DefaultPort              = 11211
	DefaultMaxConnections    = 1000
	DefaultReadTimeoutSecs   = 30
	DefaultWriteTimeoutSecs  = 10
	DefaultMaxSubdocPaths    = 16
	DefaultMaxSubdocPathLen  = 1024
	DefaultMaxSubdocValueLen = 16 * 1024 * 1024
	DefaultMaxRetryAttempts  = 100
	DefaultMaxBuckets        = 100
	DefaultDynamicBufferMax  = 64 * 1024 * 1024
)

// Config holds all configuration for a sub-document daemon instance:
// network settings, resource limits, and the sub-document-specific knobs
// SPEC_FULL.md §4.0 names.
//
// Configuration sources (in order of precedence):
//  1. Command-line flags: -port, -host, -max-conns, etc.
//  2. Environment variables: SUBDOCD_PORT, SUBDOCD_HOST, etc.
//  3. Default values
type Config struct {
	Host         string // Host address to bind to (default: "0.0.0.0")
	LogLevel     string // Log level: debug, info, warn, error (default: "info")
	Port         int    // TCP port to listen on (default: 11211)
	MaxConns     int    // Maximum concurrent connections (default: 1000)
	ReadTimeout  int    // Read timeout in seconds (default: 30)
	WriteTimeout int    // Write timeout in seconds (default: 10)

	TLSCertFile string // Path to TLS certificate; empty disables TLS
	TLSKeyFile  string // Path to TLS private key; empty disables TLS

	MaxSubdocPaths    int // Multi-path spec count bound (spec.md §6)
	MaxSubdocPathLen  int // Path length bound in bytes (spec.md §6)
	MaxSubdocValueLen int // Per-op value length bound in bytes
	MaxRetryAttempts  int // CAS auto-retry bound (spec.md §9)
	MaxBuckets        int // Bucket registry capacity (spec.md §4.7)
	DynamicBufferMax  int // Per-connection decompression scratch bound (spec.md §4.4)
}

// Load builds a Config from command-line flags and environment variables,
// with sensible defaults.
//
// Command-line flags:
//
//	-port, -host, -max-conns, -read-timeout, -write-timeout, -log-level
//	-tls-cert, -tls-key
//	-max-subdoc-paths, -max-subdoc-path-len, -max-subdoc-value-len
//	-max-retry-attempts, -max-buckets, -dynamic-buffer-max
//
// Environment variables:
//
//	SUBDOCD_PORT, SUBDOCD_HOST, SUBDOCD_MAX_CONNS
func Load() *Config {
	cfg := &Config{
		Port:              DefaultPort,
		Host:              "0.0.0.0",
		MaxConns:          DefaultMaxConnections,
		ReadTimeout:       DefaultReadTimeoutSecs,
		WriteTimeout:      DefaultWriteTimeoutSecs,
		LogLevel:          "info",
		MaxSubdocPaths:    DefaultMaxSubdocPaths,
		MaxSubdocPathLen:  DefaultMaxSubdocPathLen,
		MaxSubdocValueLen: DefaultMaxSubdocValueLen,
		MaxRetryAttempts:  DefaultMaxRetryAttempts,
		MaxBuckets:        DefaultMaxBuckets,
		DynamicBufferMax:  DefaultDynamicBufferMax,
	}

	flag.IntVar(&cfg.Port, "port", cfg.Port, "Server port")
	flag.StringVar(&cfg.Host, "host", cfg.Host, "Server host")
	flag.IntVar(&cfg.MaxConns, "max-conns", cfg.MaxConns, "Maximum concurrent connections")
	flag.IntVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "Read timeout in seconds")
	flag.IntVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "Write timeout in seconds")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.TLSCertFile, "tls-cert", cfg.TLSCertFile, "TLS certificate file (enables TLS if set with -tls-key)")
	flag.StringVar(&cfg.TLSKeyFile, "tls-key", cfg.TLSKeyFile, "TLS private key file")
	flag.IntVar(&cfg.MaxSubdocPaths, "max-subdoc-paths", cfg.MaxSubdocPaths, "Maximum specs per multi-path request")
	flag.IntVar(&cfg.MaxSubdocPathLen, "max-subdoc-path-len", cfg.MaxSubdocPathLen, "Maximum sub-document path length in bytes")
	flag.IntVar(&cfg.MaxSubdocValueLen, "max-subdoc-value-len", cfg.MaxSubdocValueLen, "Maximum sub-document operation value length in bytes")
	flag.IntVar(&cfg.MaxRetryAttempts, "max-retry-attempts", cfg.MaxRetryAttempts, "Maximum CAS auto-retry attempts before TMPFAIL")
	flag.IntVar(&cfg.MaxBuckets, "max-buckets", cfg.MaxBuckets, "Maximum number of registered buckets")
	flag.IntVar(&cfg.DynamicBufferMax, "dynamic-buffer-max", cfg.DynamicBufferMax, "Maximum per-connection decompression buffer size in bytes")
	flag.Parse()

	overrideInt(&cfg.Port, "SUBDOCD_PORT")
	overrideString(&cfg.Host, "SUBDOCD_HOST")
	overrideInt(&cfg.MaxConns, "SUBDOCD_MAX_CONNS")
	overrideInt(&cfg.ReadTimeout, "SUBDOCD_READ_TIMEOUT")
	overrideInt(&cfg.WriteTimeout, "SUBDOCD_WRITE_TIMEOUT")
	overrideString(&cfg.LogLevel, "SUBDOCD_LOG_LEVEL")
	overrideString(&cfg.TLSCertFile, "SUBDOCD_TLS_CERT")
	overrideString(&cfg.TLSKeyFile, "SUBDOCD_TLS_KEY")
	overrideInt(&cfg.MaxSubdocPaths, "SUBDOCD_MAX_SUBDOC_PATHS")
	overrideInt(&cfg.MaxSubdocPathLen, "SUBDOCD_MAX_SUBDOC_PATH_LEN")
	overrideInt(&cfg.MaxSubdocValueLen, "SUBDOCD_MAX_SUBDOC_VALUE_LEN")
	overrideInt(&cfg.MaxRetryAttempts, "SUBDOCD_MAX_RETRY_ATTEMPTS")
	overrideInt(&cfg.MaxBuckets, "SUBDOCD_MAX_BUCKETS")
	overrideInt(&cfg.DynamicBufferMax, "SUBDOCD_DYNAMIC_BUFFER_MAX")

	return cfg
}

func overrideInt(dst *int, envVar string) {
	if v := os.Getenv(envVar); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func overrideString(dst *string, envVar string) {
	if v := os.Getenv(envVar); v != "" {
		*dst = v
	}
}

// Address returns the full address string for the server to bind to.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TLSEnabled reports whether both TLS cert and key paths are configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// Validate checks that the configuration's values are self-consistent.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MaxConns < 1 {
		return fmt.Errorf("max connections must be positive: %d", c.MaxConns)
	}
	if c.ReadTimeout < 1 {
		return fmt.Errorf("read timeout must be positive: %d", c.ReadTimeout)
	}
	if c.WriteTimeout < 1 {
		return fmt.Errorf("write timeout must be positive: %d", c.WriteTimeout)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("tls-cert and tls-key must both be set or both be empty")
	}

	if c.MaxSubdocPaths < 1 {
		return fmt.Errorf("max subdoc paths must be positive: %d", c.MaxSubdocPaths)
	}
	if c.MaxSubdocPathLen < 1 {
		return fmt.Errorf("max subdoc path length must be positive: %d", c.MaxSubdocPathLen)
	}
	if c.MaxSubdocValueLen < 1 {
		return fmt.Errorf("max subdoc value length must be positive: %d", c.MaxSubdocValueLen)
	}
	if c.MaxRetryAttempts < 1 {
		return fmt.Errorf("max retry attempts must be positive: %d", c.MaxRetryAttempts)
	}
	if c.MaxBuckets < 1 {
		return fmt.Errorf("max buckets must be positive: %d", c.MaxBuckets)
	}
	if c.DynamicBufferMax < 1 {
		return fmt.Errorf("dynamic buffer max must be positive: %d", c.DynamicBufferMax)
	}

	return nil
}
