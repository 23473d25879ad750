package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.HTTPServer.Port = 8080
	cfg.HTTPServer.Timeout.Read = 5 * time.Second
	cfg.HTTPServer.Timeout.Write = 10 * time.Second
	cfg.HTTPServer.Timeout.Idle = 120 * time.Second
	cfg.HTTPServer.Timeout.ReadHeader = 2 * time.Second
	cfg.Shutdown.Timeout = 5 * time.Second
	return cfg
}

func Test_Config_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing credentials are allowed", func(c *Config) {
			c.Shopify.Domain = ""
			c.Shopify.Token = ""
		}, ""},
		{"invalid port", func(c *Config) { c.HTTPServer.Port = 0 }, "port"},
		{"invalid read timeout", func(c *Config) { c.HTTPServer.Timeout.Read = 0 }, "read timeout"},
		{"malformed domain", func(c *Config) { c.Shopify.Domain = "has space.example" }, "domain"},
		{"breaker rate out of range", func(c *Config) { c.Shopify.Breaker.ErrorRatePercent = 101 }, "errorratepercent"},
		{"pprof enabled without addr", func(c *Config) { c.PProf.Enabled = true }, "pprof"},
		{"missing shutdown timeout", func(c *Config) { c.Shutdown.Timeout = 0 }, "shutdown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)

			err := cfg.Validate()

			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, strings.ToLower(err.Error()), tc.wantErr)
		})
	}
}

func Test_Config_String_MasksToken(t *testing.T) {
	cfg := validConfig()
	cfg.Shopify.Domain = "my-shop.myshopify.com"
	cfg.Shopify.Token = "shpat_secret_value"

	out := cfg.String()

	assert.NotContains(t, out, "shpat_secret_value")
	assert.Contains(t, out, "****")
	assert.Contains(t, out, "my-shop.myshopify.com")
}
