package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func defaultValidConfig() *Config {
	return &Config{
		Host:              "0.0.0.0",
		Port:              DefaultPort,
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
}

func TestValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, defaultValidConfig().Validate())
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := defaultValidConfig()
	cfg.Port = 70000
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveMaxConns(t *testing.T) {
	cfg := defaultValidConfig()
	cfg.MaxConns = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := defaultValidConfig()
	cfg.LogLevel = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsPartialTLSConfig(t *testing.T) {
	cfg := defaultValidConfig()
	cfg.TLSCertFile = "/tmp/cert.pem"
	assert.Error(t, cfg.Validate())
}

func TestValidateAcceptsCompleteTLSConfig(t *testing.T) {
	cfg := defaultValidConfig()
	cfg.TLSCertFile = "/tmp/cert.pem"
	cfg.TLSKeyFile = "/tmp/key.pem"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveSubdocLimits(t *testing.T) {
	cfg := defaultValidConfig()
	cfg.MaxSubdocPaths = 0
	assert.Error(t, cfg.Validate())

	cfg = defaultValidConfig()
	cfg.MaxSubdocPathLen = 0
	assert.Error(t, cfg.Validate())

	cfg = defaultValidConfig()
	cfg.MaxSubdocValueLen = 0
	assert.Error(t, cfg.Validate())

	cfg = defaultValidConfig()
	cfg.MaxRetryAttempts = 0
	assert.Error(t, cfg.Validate())

	cfg = defaultValidConfig()
	cfg.MaxBuckets = 0
	assert.Error(t, cfg.Validate())

	cfg = defaultValidConfig()
	cfg.DynamicBufferMax = 0
	assert.Error(t, cfg.Validate())
}

func TestAddressFormatsHostAndPort(t *testing.T) {
	cfg := defaultValidConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 11211
	assert.Equal(t, "127.0.0.1:11211", cfg.Address())
}

func TestTLSEnabledRequiresBothFiles(t *testing.T) {
	cfg := defaultValidConfig()
	assert.False(t, cfg.TLSEnabled())

	cfg.TLSCertFile = "/tmp/cert.pem"
	assert.False(t, cfg.TLSEnabled())

	cfg.TLSKeyFile = "/tmp/key.pem"
	assert.True(t, cfg.TLSEnabled())
}

func TestOverrideIntFromEnv(t *testing.T) {
	t.Setenv("SUBDOCD_TEST_INT", "42")
	dst := 1
	overrideInt(&dst, "SUBDOCD_TEST_INT")
	assert.Equal(t, 42, dst)
}

func TestOverrideIntIgnoresUnsetEnv(t *testing.T) {
	dst := 7
	overrideInt(&dst, "SUBDOCD_TEST_INT_UNSET")
	assert.Equal(t, 7, dst)
}

func TestOverrideIntIgnoresMalformedEnv(t *testing.T) {
	t.Setenv("SUBDOCD_TEST_INT_BAD", "not-a-number")
	dst := 3
	overrideInt(&dst, "SUBDOCD_TEST_INT_BAD")
	assert.Equal(t, 3, dst)
}

func TestOverrideStringFromEnv(t *testing.T) {
	t.Setenv("SUBDOCD_TEST_STR", "custom")
	dst := "default"
	overrideString(&dst, "SUBDOCD_TEST_STR")
	assert.Equal(t, "custom", dst)
}
