package config

import (
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/georgepadayatti/pkixpath/certvalidator"
	"github.com/georgepadayatti/pkixpath/certvalidator/fetchers"
)

// extKeyUsageAliases maps the kebab-case spellings to the names known by
// certvalidator.ExtKeyUsageByName.
var extKeyUsageAliases = map[string]string{
	"server-auth":      "serverAuth",
	"client-auth":      "clientAuth",
	"code-signing":     "codeSigning",
	"email-protection": "emailProtection",
	"time-stamping":    "timeStamping",
	"ocsp-signing":     "OCSPSigning",
}

// ExtKeyUsageOID resolves an extended key usage name or dotted OID.
func ExtKeyUsageOID(name string) (asn1.ObjectIdentifier, error) {
	if alias, ok := extKeyUsageAliases[name]; ok {
		name = alias
	}
	if oid, ok := certvalidator.ExtKeyUsageByName[name]; ok {
		return oid, nil
	}
	if _, err := ProcessOID(name); err != nil {
		return nil, &ConfigError{Field: "ext-key-usages", Message: fmt.Sprintf("unknown extended key usage %q", name), Err: err}
	}
	return ParseOID(name)
}

func checkExtKeyUsage(value interface{}) error {
	s, _ := value.(string)
	if _, err := ExtKeyUsageOID(s); err != nil {
		return errors.New("must be a known extended key usage or a dotted OID")
	}
	return nil
}

// ParseOID converts a dotted-decimal string to an object identifier.
func ParseOID(s string) (asn1.ObjectIdentifier, error) {
	if _, err := ProcessOID(s); err != nil {
		return nil, err
	}
	parts := strings.Split(s, ".")
	oid := make(asn1.ObjectIdentifier, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, &ConfigError{Field: "oid", Message: err.Error(), Err: ErrInvalidOID}
		}
		oid[i] = n
	}
	return oid, nil
}

// ValidationOptions turns the configuration into validation context options.
// Certificate and CRL files are read here; errors name the offending file.
func (c *Config) ValidationOptions(logger logrus.FieldLogger) ([]certvalidator.Option, error) {
	anchors, err := ReadCertificateFiles(c.Trust.Anchors)
	if err != nil {
		return nil, err
	}
	model, err := certvalidator.ParseValidityModel(c.Validation.ValidityModel)
	if err != nil {
		return nil, &ConfigError{Field: "validation.validity-model", Message: err.Error(), Err: err}
	}

	opts := []certvalidator.Option{
		certvalidator.WithTrustRoots(anchors...),
		certvalidator.WithRevocation(c.Validation.Revocation),
		certvalidator.WithDeltaCRLs(c.Validation.DeltaCRLs),
		certvalidator.WithValidityModel(model),
		certvalidator.WithInitialPolicies(c.Validation.InitialPolicies...),
		certvalidator.WithExplicitPolicyRequired(c.Validation.ExplicitPolicy),
		certvalidator.WithAnyPolicyInhibited(c.Validation.InhibitAnyPolicy),
		certvalidator.WithPolicyMappingInhibited(c.Validation.InhibitPolicyMapping),
		certvalidator.WithMaxPathLength(c.Validation.MaxPathLength),
	}
	if logger != nil {
		opts = append(opts, certvalidator.WithLogger(logger))
	}

	if c.Validation.Moment != "" {
		moment, err := time.Parse(time.RFC3339, c.Validation.Moment)
		if err != nil {
			return nil, &ConfigError{Field: "validation.moment", Message: err.Error(), Err: err}
		}
		opts = append(opts, certvalidator.WithMoment(moment))
	}

	if len(c.Validation.ExtKeyUsages) > 0 {
		ekus := make([]asn1.ObjectIdentifier, 0, len(c.Validation.ExtKeyUsages))
		for _, name := range c.Validation.ExtKeyUsages {
			oid, err := ExtKeyUsageOID(name)
			if err != nil {
				return nil, err
			}
			ekus = append(ekus, oid)
		}
		opts = append(opts, certvalidator.WithPathCheckers(certvalidator.NewExtKeyUsageChecker(ekus...)))
	}

	if c.Validation.AlgorithmPolicy != "permissive" {
		opts = append(opts, certvalidator.WithVerifier(
			certvalidator.NewPolicyVerifier(certvalidator.NewDisallowWeakAlgorithmsPolicy(), nil)))
	}

	if len(c.Stores.Certificates) > 0 {
		certs, err := ReadCertificateFiles(c.Stores.Certificates)
		if err != nil {
			return nil, err
		}
		opts = append(opts, certvalidator.WithCertificateSources(certvalidator.NewCertStore(certs...)))
	}
	if len(c.Stores.CRLs) > 0 {
		crls, err := readCRLFiles(c.Stores.CRLs)
		if err != nil {
			return nil, err
		}
		opts = append(opts, certvalidator.WithCRLSources(certvalidator.NewCRLStore(crls...)))
	}

	if c.Fetch.Enabled {
		fc, err := c.FetcherConfig(logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, certvalidator.WithStoreResolver(fetchers.NewStoreResolver(fetchers.NewFetcher(fc))))
	}
	return opts, nil
}

// FetcherConfig builds the downloader settings of the fetch section.
func (c *Config) FetcherConfig(logger logrus.FieldLogger) (*fetchers.FetcherConfig, error) {
	client, err := fetchers.NewHTTPClient(&fetchers.HTTPClientConfig{
		Timeout:             c.Fetch.Timeout,
		ProxyURL:            c.Fetch.Proxy,
		MinTLSVersion:       fetchers.DefaultHTTPClientConfig().MinTLSVersion,
		MaxIdleConnsPerHost: 10,
		DialTimeout:         10 * time.Second,
	})
	if err != nil {
		return nil, &ConfigError{Field: "fetch.proxy", Message: err.Error(), Err: err}
	}

	fc := fetchers.DefaultConfig()
	fc.Timeout = c.Fetch.Timeout
	fc.UserAgent = lo.Ternary(c.Fetch.UserAgent != "", c.Fetch.UserAgent, fc.UserAgent)
	fc.UseCache = c.Fetch.CacheTTL > 0
	fc.CacheTTL = c.Fetch.CacheTTL
	fc.RateLimit = rate.Limit(c.Fetch.Rate)
	fc.RateBurst = c.Fetch.Burst
	fc.HTTPClient = client
	fc.Retry = &fetchers.RetryConfig{
		MaxAttempts:  c.Fetch.Attempts,
		InitialDelay: c.Fetch.Backoff,
		MaxDelay:     fetchers.DefaultRetryConfig().MaxDelay,
	}
	if cb := c.Fetch.CircuitBreaker; cb != nil {
		fc.CircuitBreaker = fetchers.NewCircuitBreaker(cb.Failures, cb.Successes, cb.Reset, nil)
	}
	if logger != nil {
		fc.Logger = logger
	}
	return fc, nil
}

// ReadCertificateFiles loads every certificate of the PEM or DER files, in order.
func ReadCertificateFiles(paths []string) ([]*x509.Certificate, error) {
	var out []*x509.Certificate
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read certificate file: %w", err)
		}
		certs, err := fetchers.ParseCertificates(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		out = append(out, certs...)
	}
	return out, nil
}

func readCRLFiles(paths []string) ([]*x509.RevocationList, error) {
	out := make([]*x509.RevocationList, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read CRL file: %w", err)
		}
		crl, err := fetchers.ParseCRL(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		out = append(out, crl)
	}
	return out, nil
}
