package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"text/template"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gopkg.in/yaml.v3"
)

// Common errors
var (
	ErrConfigurationError = errors.New("configuration error")
	ErrInvalidOID         = errors.New("invalid OID")
)

// OIDRegex matches OID strings like "1.2.3.4"
var OIDRegex = regexp.MustCompile(`^\d+(\.\d+)+$`)

// ConfigError represents a configuration error with context.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message, Err: ErrConfigurationError}
}

// Config is the complete pkixpath configuration.
type Config struct {
	Validation ValidationConfig `yaml:"validation" json:"validation"`
	Trust      TrustConfig      `yaml:"trust" json:"trust"`
	Stores     StoresConfig     `yaml:"stores" json:"stores"`
	Fetch      FetchConfig      `yaml:"fetch" json:"fetch"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Log        LoggingConfig    `yaml:"log" json:"log"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" json:"telemetry"`
}

// ValidationConfig holds the path validation inputs.
type ValidationConfig struct {
	// Moment is the RFC 3339 validation date; empty means now.
	Moment string `yaml:"moment" json:"moment,omitempty"`

	// ValidityModel is "pkix" (alias "shell") or "chain".
	ValidityModel string `yaml:"validity-model" json:"validity_model,omitempty"`

	Revocation bool `yaml:"revocation" json:"revocation"`
	DeltaCRLs  bool `yaml:"delta-crls" json:"delta_crls"`

	// InitialPolicies is the user initial policy set; empty means any-policy.
	InitialPolicies      []string `yaml:"initial-policies" json:"initial_policies,omitempty"`
	ExplicitPolicy       bool     `yaml:"explicit-policy" json:"explicit_policy"`
	InhibitAnyPolicy     bool     `yaml:"inhibit-any-policy" json:"inhibit_any_policy"`
	InhibitPolicyMapping bool     `yaml:"inhibit-policy-mapping" json:"inhibit_policy_mapping"`

	// MaxPathLength limits the path builder; -1 disables the limit.
	MaxPathLength int `yaml:"max-path-length" json:"max_path_length"`

	// ExtKeyUsages are required of the target, by name or dotted OID.
	ExtKeyUsages []string `yaml:"ext-key-usages" json:"ext_key_usages,omitempty"`

	// AlgorithmPolicy is "strict" (reject weak digests and keys) or "permissive".
	AlgorithmPolicy string `yaml:"algorithm-policy" json:"algorithm_policy,omitempty"`
}

// Validate validates the validation section.
func (c ValidationConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Moment, validation.Date(time.RFC3339)),
		validation.Field(&c.ValidityModel, validation.In("pkix", "shell", "chain")),
		validation.Field(&c.InitialPolicies, validation.Each(validation.Match(OIDRegex))),
		validation.Field(&c.MaxPathLength, validation.Min(-1)),
		validation.Field(&c.ExtKeyUsages, validation.Each(validation.By(checkExtKeyUsage))),
		validation.Field(&c.AlgorithmPolicy, validation.In("strict", "permissive")),
	)
}

// TrustConfig lists the trust anchor files.
type TrustConfig struct {
	// Anchors are PEM or DER certificate files.
	Anchors []string `yaml:"anchors" json:"anchors"`
}

// Validate validates the trust section.
func (c TrustConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Anchors, validation.Required, validation.Each(validation.Required)),
	)
}

// StoresConfig lists local certificate and CRL files.
type StoresConfig struct {
	Certificates []string `yaml:"certificates" json:"certificates,omitempty"`
	CRLs         []string `yaml:"crls" json:"crls,omitempty"`
}

// FetchConfig configures downloads from certificate locations.
type FetchConfig struct {
	Enabled   bool          `yaml:"enabled" json:"enabled"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	Attempts  uint          `yaml:"attempts" json:"attempts"`
	Backoff   time.Duration `yaml:"backoff" json:"backoff"`
	Rate      float64       `yaml:"rate" json:"rate"`
	Burst     int           `yaml:"burst" json:"burst"`
	CacheTTL  time.Duration `yaml:"cache-ttl" json:"cache_ttl"`
	UserAgent string        `yaml:"user-agent" json:"user_agent,omitempty"`
	Proxy     string        `yaml:"proxy" json:"proxy,omitempty"`

	CircuitBreaker *CircuitBreakerConfig `yaml:"circuit-breaker" json:"circuit_breaker,omitempty"`
}

// Validate validates the fetch section.
func (c FetchConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.Backoff, validation.Min(time.Duration(0))),
		validation.Field(&c.Rate, validation.Min(0.0)),
		validation.Field(&c.Burst, validation.Min(0)),
		validation.Field(&c.CacheTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.Proxy, is.URL),
		validation.Field(&c.CircuitBreaker),
	)
}

// CircuitBreakerConfig configures the download circuit breaker.
type CircuitBreakerConfig struct {
	Failures  int           `yaml:"failures" json:"failures"`
	Successes int           `yaml:"successes" json:"successes"`
	Reset     time.Duration `yaml:"reset" json:"reset"`
}

// Validate validates the circuit breaker settings.
func (c CircuitBreakerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Failures, validation.Required, validation.Min(1)),
		validation.Field(&c.Successes, validation.Required, validation.Min(1)),
		validation.Field(&c.Reset, validation.Required),
	)
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Address      string        `yaml:"address" json:"address"`
	ReadTimeout  time.Duration `yaml:"read-timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write-timeout" json:"write_timeout"`
}

// Validate validates the server section.
func (c ServerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Address, validation.Required),
	)
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error).
	Level string `yaml:"level" json:"level,omitempty"`
}

// Validate validates the log section.
func (c LoggingConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.In("trace", "debug", "info", "warn", "warning", "error", "fatal", "panic")),
	)
}

// TelemetryConfig configures the OTLP exporter.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp-endpoint" json:"otlp_endpoint,omitempty"`
	ServiceName  string `yaml:"service-name" json:"service_name,omitempty"`
}

// Validate validates the telemetry section.
func (c TelemetryConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ServiceName, validation.When(c.OTLPEndpoint != "", validation.Required)),
	)
}

// Default returns the configuration used for keys absent from a file.
func Default() *Config {
	return &Config{
		Validation: ValidationConfig{
			ValidityModel:   "pkix",
			Revocation:      true,
			MaxPathLength:   5,
			AlgorithmPolicy: "strict",
		},
		Fetch: FetchConfig{
			Timeout:   30 * time.Second,
			Attempts:  3,
			Backoff:   500 * time.Millisecond,
			Rate:      10,
			Burst:     5,
			CacheTTL:  time.Hour,
			UserAgent: "pkixpath/1.0",
		},
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Log:       LoggingConfig{Level: "info"},
		Telemetry: TelemetryConfig{ServiceName: "pkixpath"},
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Validation),
		validation.Field(&c.Trust),
		validation.Field(&c.Fetch),
		validation.Field(&c.Server),
		validation.Field(&c.Log),
		validation.Field(&c.Telemetry),
	)
	if err != nil {
		return &ConfigError{Message: err.Error(), Err: err}
	}
	return nil
}

// Load reads a configuration file. The file is rendered as a text/template
// with the process environment as data and then passed through os.ExpandEnv,
// so both {{.HOME}} and ${HOME} are substituted.
func Load(filename string) (*Config, error) {
	t, err := template.ParseFiles(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var out strings.Builder
	if err := t.Execute(&out, environ()); err != nil {
		return nil, fmt.Errorf("failed to render config file: %w", err)
	}
	return Parse([]byte(os.ExpandEnv(out.String())))
}

// Parse parses and validates configuration from YAML data on top of Default.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		pair := strings.SplitN(kv, "=", 2)
		if len(pair) == 2 {
			env[pair[0]] = pair[1]
		}
	}
	return env
}

// ProcessOID validates a dotted-decimal OID string.
func ProcessOID(oidString string) (string, error) {
	if oidString == "" {
		return "", NewConfigError("oid", "OID string is empty")
	}
	if !OIDRegex.MatchString(oidString) {
		return "", &ConfigError{Field: "oid", Message: fmt.Sprintf("%q is not a dotted OID", oidString), Err: ErrInvalidOID}
	}
	return oidString, nil
}

// ProcessOIDs validates a list of OID strings.
func ProcessOIDs(oidStrings []string) ([]string, error) {
	result := make([]string, 0, len(oidStrings))
	for _, oid := range oidStrings {
		processed, err := ProcessOID(oid)
		if err != nil {
			return nil, err
		}
		result = append(result, processed)
	}
	return result, nil
}
