// Package config defines the storefront service configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/banerjeearin/storefront/internal/platform/configloader"
)

var _ configloader.Validator = (*Config)(nil)

type Config struct {
	HTTPServer HTTPConfig     `koanf:"server"`
	Shopify    ShopifyConfig  `koanf:"shopify"`
	Cart       CartConfig     `koanf:"cart"`
	CORS       CORSConfig     `koanf:"cors"`
	Log        LogConfig      `koanf:"log"`
	PProf      PProfConfig    `koanf:"pprof"`
	Shutdown   ShutdownConfig `koanf:"shutdown"`
}

type HTTPConfig struct {
	Port           int `koanf:"port"`
	MaxHeaderBytes int `koanf:"maxHeaderBytes"`
	Timeout        struct {
		Read       time.Duration `koanf:"read"`
		Write      time.Duration `koanf:"write"`
		Idle       time.Duration `koanf:"idle"`
		ReadHeader time.Duration `koanf:"readHeader"`
	} `koanf:"timeout"`
}

// ShopifyConfig is the Storefront API connection. Domain and token may be
// absent: the service still starts and every API call reports the missing
// configuration instead.
type ShopifyConfig struct {
	Domain     string        `koanf:"domain"`
	Token      string        `koanf:"token"`
	APIVersion string        `koanf:"apiversion"`
	Timeout    time.Duration `koanf:"timeout"`
	Breaker    BreakerConfig `koanf:"breaker"`
}

type BreakerConfig struct {
	ConsecutiveFailures uint32        `koanf:"consecutivefailures"`
	ErrorRatePercent    int           `koanf:"errorratepercent"`
	OpenTimeout         time.Duration `koanf:"opentimeout"`
}

// CartConfig controls persisted cart identifier storage. An empty IDFile
// keeps identifiers in memory only.
type CartConfig struct {
	IDFile string `koanf:"idfile"`
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowedorigins"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

type PProfConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

type ShutdownConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

func (c *Config) String() string {
	var b strings.Builder

	b.WriteString("\n--- Server Configuration ---\n")
	b.WriteString(fmt.Sprintf("  server.port: %d\n", c.HTTPServer.Port))
	b.WriteString(fmt.Sprintf("  server.maxHeaderBytes: %d\n", c.HTTPServer.MaxHeaderBytes))
	b.WriteString(fmt.Sprintf("  server.timeout.read: %v\n", c.HTTPServer.Timeout.Read))
	b.WriteString(fmt.Sprintf("  server.timeout.write: %v\n", c.HTTPServer.Timeout.Write))
	b.WriteString(fmt.Sprintf("  server.timeout.idle: %v\n", c.HTTPServer.Timeout.Idle))
	b.WriteString(fmt.Sprintf("  server.timeout.readHeader: %v\n", c.HTTPServer.Timeout.ReadHeader))

	b.WriteString("\n--- Storefront API ---\n")
	b.WriteString(fmt.Sprintf("  shopify.domain: %s\n", valueOrUnset(c.Shopify.Domain)))
	b.WriteString(fmt.Sprintf("  shopify.token: %s\n", maskToken(c.Shopify.Token)))
	b.WriteString(fmt.Sprintf("  shopify.apiversion: %s\n", valueOrUnset(c.Shopify.APIVersion)))
	b.WriteString(fmt.Sprintf("  shopify.timeout: %v\n", c.Shopify.Timeout))
	b.WriteString(fmt.Sprintf("  shopify.breaker.consecutivefailures: %d\n", c.Shopify.Breaker.ConsecutiveFailures))
	b.WriteString(fmt.Sprintf("  shopify.breaker.errorratepercent: %d\n", c.Shopify.Breaker.ErrorRatePercent))
	b.WriteString(fmt.Sprintf("  shopify.breaker.opentimeout: %v\n", c.Shopify.Breaker.OpenTimeout))

	b.WriteString("\n--- Cart ---\n")
	b.WriteString(fmt.Sprintf("  cart.idfile: %s\n", valueOrUnset(c.Cart.IDFile)))

	b.WriteString("\n--- Observability & Logging ---\n")
	b.WriteString(fmt.Sprintf("  log.level: %s\n", c.Log.Level))
	b.WriteString(fmt.Sprintf("  pprof.enabled: %t\n", c.PProf.Enabled))
	b.WriteString(fmt.Sprintf("  pprof.address: %s\n", c.PProf.Addr))

	b.WriteString("\n--- Application Behavior ---\n")
	b.WriteString(fmt.Sprintf("  cors.allowedorigins: %v\n", c.CORS.AllowedOrigins))
	b.WriteString(fmt.Sprintf("  shutdown.timeout: %s\n", c.Shutdown.Timeout))

	return b.String()
}

func valueOrUnset(v string) string {
	if v == "" {
		return "<not configured>"
	}
	return v
}

func maskToken(token string) string {
	if token == "" {
		return "<not configured>"
	}
	return fmt.Sprintf("**** (%d chars)", len(token))
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if err := c.HTTPServer.Validate(); err != nil {
		return err
	}
	if err := c.Shopify.Validate(); err != nil {
		return err
	}
	if err := c.PProf.Validate(); err != nil {
		return err
	}
	if err := c.Shutdown.Validate(); err != nil {
		return err
	}
	return nil
}

func (c *HTTPConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid HTTP server port: %d", c.Port)
	}
	if c.Timeout.Read <= 0 {
		return fmt.Errorf("invalid HTTP server read timeout: %v", c.Timeout.Read)
	}
	if c.Timeout.Write <= 0 {
		return fmt.Errorf("invalid HTTP server write timeout: %v", c.Timeout.Write)
	}
	if c.Timeout.Idle <= 0 {
		return fmt.Errorf("invalid HTTP server idle timeout: %v", c.Timeout.Idle)
	}
	if c.Timeout.ReadHeader <= 0 {
		return fmt.Errorf("invalid HTTP server read header timeout: %v", c.Timeout.ReadHeader)
	}
	return nil
}

func (c *ShopifyConfig) Validate() error {
	// Domain and token stay optional: the gateway reports NotConfigured at
	// call time. Reject only values that are present but malformed.
	if c.Domain != "" && strings.ContainsAny(c.Domain, " \t") {
		return fmt.Errorf("invalid shopify domain: %q", c.Domain)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("invalid shopify timeout: %v", c.Timeout)
	}
	if c.Breaker.ErrorRatePercent < 0 || c.Breaker.ErrorRatePercent > 100 {
		return fmt.Errorf("shopify.breaker.errorratepercent must be between 0 and 100")
	}
	return nil
}

func (c *PProfConfig) Validate() error {
	if c.Enabled && c.Addr == "" {
		return fmt.Errorf("pprof is enabled but address is not configured")
	}
	return nil
}

func (c *ShutdownConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("shutdown timeout is not configured")
	}
	return nil
}
