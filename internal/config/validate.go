package config

import (
	"fmt"
	"strings"
)

// ValidationResult collects configuration problems found before startup.
// Errors prevent the server from starting; warnings are logged and ignored.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// OK reports whether the configuration is usable.
func (r *ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate checks the configuration for inconsistent or unusable settings.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.validateDatabase(result)
	c.validateServer(result)
	c.validateSchema(result)
	c.validateObservability(result)

	return result
}

func (c *Config) validateDatabase(r *ValidationResult) {
	if _, err := c.Database.EffectiveDatabaseName(); err != nil {
		r.errorf("database: %v", err)
	}

	switch c.Database.TLS.Mode {
	case "", "off", "skip-verify", "verify-ca", "verify-full":
	default:
		r.errorf("database.tls.mode %q is not one of off, skip-verify, verify-ca, verify-full", c.Database.TLS.Mode)
	}
	if (c.Database.TLS.Mode == "verify-ca" || c.Database.TLS.Mode == "verify-full") && c.Database.TLS.CAFile == "" {
		r.errorf("database.tls.mode %q requires database.tls.ca_file", c.Database.TLS.Mode)
	}
	if c.Database.TLS.Mode == "skip-verify" {
		r.warnf("database.tls.mode skip-verify does not verify the server certificate; use verify-full in production")
	}

	if c.Database.Pool.MaxIdle > c.Database.Pool.MaxOpen {
		r.warnf("database.pool.max_idle (%d) exceeds max_open (%d); idle connections above max_open are never kept",
			c.Database.Pool.MaxIdle, c.Database.Pool.MaxOpen)
	}
}

func (c *Config) validateServer(r *ValidationResult) {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		r.errorf("server.port %d is out of valid range (1-65535)", c.Server.Port)
	}

	if c.Server.Auth.Required && c.Server.Auth.Secret == "" {
		r.errorf("server.auth.required is set but no server.auth.secret (or secret_file) is configured")
	}
	if !c.Server.Auth.Required && c.Server.Auth.Secret == "" {
		r.warnf("authentication is disabled; all callers act as the anonymous principal")
	}
	if c.Server.Auth.Secret != "" && len(c.Server.Auth.Secret) < 32 {
		r.warnf("server.auth.secret is shorter than 32 bytes; prefer a longer random secret")
	}
}

func (c *Config) validateSchema(r *ValidationResult) {
	if strings.TrimSpace(c.Schema.DescriptorFile) == "" {
		r.errorf("schema.descriptor_file must be set")
	}
}

func (c *Config) validateObservability(r *ValidationResult) {
	if c.Observability.TraceSampleRatio < 0 || c.Observability.TraceSampleRatio > 1 {
		r.errorf("observability.trace_sample_ratio %g is out of range (0.0-1.0)", c.Observability.TraceSampleRatio)
	}

	switch c.Observability.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		r.warnf("observability.logging.level %q is unknown; falling back to info", c.Observability.Logging.Level)
	}
	switch c.Observability.Logging.Format {
	case "", "json", "text":
	default:
		r.warnf("observability.logging.format %q is unknown; falling back to text", c.Observability.Logging.Format)
	}

	needsOTLP := c.Observability.TracingEnabled || c.Observability.Logging.ExportsEnabled
	if needsOTLP && strings.TrimSpace(c.Observability.OTLP.Endpoint) == "" {
		r.errorf("observability.otlp.endpoint must be set when tracing or log export is enabled")
	}
}
