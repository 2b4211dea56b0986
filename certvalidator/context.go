// Package certvalidator provides X.509 certificate path validation.
// This file contains the validation context and its functional options.
package certvalidator

import (
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// DefaultMaxPathLength is the default limit on intermediate certificates
// explored by the path builder.
const DefaultMaxPathLength = 5

// ErrNoTrustAnchors is returned when a context is created without trust anchors.
var ErrNoTrustAnchors = errors.New("trust anchor set is empty")

// ValidityModel selects the reference date used for certificate validity.
type ValidityModel int

const (
	// ValidityModelPKIX checks every certificate against the validation date.
	ValidityModelPKIX ValidityModel = iota
	// ValidityModelChain checks each CA certificate against the issuance date
	// of the certificate below it.
	ValidityModelChain
)

// String returns the configuration name of the model.
func (m ValidityModel) String() string {
	switch m {
	case ValidityModelChain:
		return "chain"
	default:
		return "pkix"
	}
}

// ParseValidityModel parses "pkix" (or "shell") and "chain".
func ParseValidityModel(s string) (ValidityModel, error) {
	switch s {
	case "", "pkix", "shell":
		return ValidityModelPKIX, nil
	case "chain":
		return ValidityModelChain, nil
	}
	return 0, fmt.Errorf("unknown validity model %q", s)
}

// ValidationContext carries every input of a validation or build call.
//
// A context is read-only once constructed and may be shared between
// goroutines; each call allocates its own working state.
type ValidationContext struct {
	TrustAnchors  *TrustAnchorStore
	CertSources   []CertificateSource
	CRLSources    []CRLSource
	Verifier      Verifier
	StoreResolver AdditionalStoreResolver
	PathCheckers  []PathChecker

	RevocationEnabled bool
	UseDeltaCRLs      bool
	ValidityModel     ValidityModel

	// Date is the validation date; the zero value means the clock's now.
	Date time.Time

	// InitialPolicies is the user initial policy set; empty means any-policy.
	InitialPolicies        OIDSet
	ExplicitPolicyRequired bool
	AnyPolicyInhibited     bool
	PolicyMappingInhibited bool

	// ExcludedCerts are never used by the path builder.
	ExcludedCerts []*x509.Certificate
	// MaxPathLength limits the builder; -1 disables the limit.
	MaxPathLength int

	Clock  clockwork.Clock
	Logger logrus.FieldLogger
}

// Option configures a ValidationContext.
type Option func(*ValidationContext) error

// NewValidationContext creates a context with revocation checking enabled,
// the PKIX validity model and any-policy as the initial policy set.
func NewValidationContext(opts ...Option) (*ValidationContext, error) {
	vc := &ValidationContext{
		TrustAnchors:      NewTrustAnchorStore(),
		Verifier:          NewDefaultVerifier(),
		RevocationEnabled: true,
		ValidityModel:     ValidityModelPKIX,
		InitialPolicies:   NewOIDSet(AnyPolicy),
		MaxPathLength:     DefaultMaxPathLength,
		Clock:             clockwork.NewRealClock(),
		Logger:            logrus.StandardLogger(),
	}
	for _, opt := range opts {
		if err := opt(vc); err != nil {
			return nil, err
		}
	}
	if vc.TrustAnchors.Count() == 0 {
		return nil, ErrNoTrustAnchors
	}
	if len(vc.InitialPolicies) == 0 {
		vc.InitialPolicies = NewOIDSet(AnyPolicy)
	}
	return vc, nil
}

// WithTrustAnchors adds trust anchors.
func WithTrustAnchors(anchors ...*TrustAnchor) Option {
	return func(vc *ValidationContext) error {
		for _, a := range anchors {
			if a == nil {
				return errors.New("nil trust anchor")
			}
			vc.TrustAnchors.Add(a)
		}
		return nil
	}
}

// WithTrustRoots adds trusted certificates as trust anchors.
func WithTrustRoots(roots ...*x509.Certificate) Option {
	return func(vc *ValidationContext) error {
		for _, root := range roots {
			vc.TrustAnchors.AddCertificate(root)
		}
		return nil
	}
}

// WithCertificateSources adds certificate sources used by the builder and for CRL signers.
func WithCertificateSources(sources ...CertificateSource) Option {
	return func(vc *ValidationContext) error {
		vc.CertSources = append(vc.CertSources, sources...)
		return nil
	}
}

// WithCRLSources adds CRL sources.
func WithCRLSources(sources ...CRLSource) Option {
	return func(vc *ValidationContext) error {
		vc.CRLSources = append(vc.CRLSources, sources...)
		return nil
	}
}

// WithVerifier replaces the signature verifier.
func WithVerifier(v Verifier) Option {
	return func(vc *ValidationContext) error {
		if v == nil {
			return errors.New("nil verifier")
		}
		vc.Verifier = v
		return nil
	}
}

// WithStoreResolver sets the resolver for issuerAltName and distribution point locations.
func WithStoreResolver(r AdditionalStoreResolver) Option {
	return func(vc *ValidationContext) error {
		vc.StoreResolver = r
		return nil
	}
}

// WithPathCheckers adds checkers for otherwise unhandled critical extensions.
func WithPathCheckers(checkers ...PathChecker) Option {
	return func(vc *ValidationContext) error {
		vc.PathCheckers = append(vc.PathCheckers, checkers...)
		return nil
	}
}

// WithRevocation enables or disables CRL checking.
func WithRevocation(enabled bool) Option {
	return func(vc *ValidationContext) error {
		vc.RevocationEnabled = enabled
		return nil
	}
}

// WithDeltaCRLs enables or disables the use of delta CRLs.
func WithDeltaCRLs(enabled bool) Option {
	return func(vc *ValidationContext) error {
		vc.UseDeltaCRLs = enabled
		return nil
	}
}

// WithValidityModel selects the validity model.
func WithValidityModel(m ValidityModel) Option {
	return func(vc *ValidationContext) error {
		vc.ValidityModel = m
		return nil
	}
}

// WithMoment sets the validation date.
func WithMoment(moment time.Time) Option {
	return func(vc *ValidationContext) error {
		vc.Date = moment
		return nil
	}
}

// WithInitialPolicies sets the user initial policy set.
func WithInitialPolicies(oids ...string) Option {
	return func(vc *ValidationContext) error {
		vc.InitialPolicies = NewOIDSet(oids...)
		return nil
	}
}

// WithExplicitPolicyRequired sets the initial-explicit-policy flag.
func WithExplicitPolicyRequired(required bool) Option {
	return func(vc *ValidationContext) error {
		vc.ExplicitPolicyRequired = required
		return nil
	}
}

// WithAnyPolicyInhibited sets the initial-any-policy-inhibit flag.
func WithAnyPolicyInhibited(inhibited bool) Option {
	return func(vc *ValidationContext) error {
		vc.AnyPolicyInhibited = inhibited
		return nil
	}
}

// WithPolicyMappingInhibited sets the initial-policy-mapping-inhibit flag.
func WithPolicyMappingInhibited(inhibited bool) Option {
	return func(vc *ValidationContext) error {
		vc.PolicyMappingInhibited = inhibited
		return nil
	}
}

// WithExcludedCertificates excludes certificates from path building.
func WithExcludedCertificates(certs ...*x509.Certificate) Option {
	return func(vc *ValidationContext) error {
		vc.ExcludedCerts = append(vc.ExcludedCerts, certs...)
		return nil
	}
}

// WithMaxPathLength limits the number of intermediates the builder explores.
func WithMaxPathLength(n int) Option {
	return func(vc *ValidationContext) error {
		if n < -1 {
			return fmt.Errorf("invalid maximum path length %d", n)
		}
		vc.MaxPathLength = n
		return nil
	}
}

// WithClock replaces the clock.
func WithClock(clock clockwork.Clock) Option {
	return func(vc *ValidationContext) error {
		vc.Clock = clock
		return nil
	}
}

// WithLogger replaces the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(vc *ValidationContext) error {
		vc.Logger = logger
		return nil
	}
}

// ValidationDate returns the configured date or the clock's current time.
func (vc *ValidationContext) ValidationDate() time.Time {
	if !vc.Date.IsZero() {
		return vc.Date
	}
	return vc.Clock.Now()
}

// now returns the current time from the clock.
func (vc *ValidationContext) now() time.Time {
	return vc.Clock.Now()
}

func (vc *ValidationContext) isExcluded(cert *x509.Certificate) bool {
	for _, ex := range vc.ExcludedCerts {
		if CompareCertificates(ex, cert) {
			return true
		}
	}
	return false
}

// withRevocation returns a shallow copy with revocation checking set to enabled.
func (vc *ValidationContext) withRevocation(enabled bool) *ValidationContext {
	cp := *vc
	cp.RevocationEnabled = enabled
	return &cp
}

