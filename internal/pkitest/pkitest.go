// Package pkitest issues throw-away certificates and CRLs for tests.
package pkitest

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// ReferenceDate is the validation date most tests use.
var ReferenceDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Default validity window and CRL update times around ReferenceDate.
var (
	DefaultNotBefore  = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	DefaultNotAfter   = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	DefaultThisUpdate = time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	DefaultNextUpdate = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
)

var serialCounter atomic.Int64

// Entity is a certificate together with its private key.
type Entity struct {
	Cert *x509.Certificate
	Key  crypto.Signer
}

// Option adjusts a certificate template.
type Option func(*x509.Certificate, *settings)

type settings struct {
	key    crypto.Signer
	noSKI  bool
	noAKI  bool
	issuer *pkix.Name
}

// Subject replaces the subject name.
func Subject(name pkix.Name) Option {
	return func(c *x509.Certificate, _ *settings) { c.Subject = name }
}

// Validity sets the validity window.
func Validity(notBefore, notAfter time.Time) Option {
	return func(c *x509.Certificate, _ *settings) {
		c.NotBefore, c.NotAfter = notBefore, notAfter
	}
}

// Serial sets the serial number.
func Serial(n int64) Option {
	return func(c *x509.Certificate, _ *settings) { c.SerialNumber = big.NewInt(n) }
}

// PathLen sets pathLenConstraint on a CA certificate.
func PathLen(n int) Option {
	return func(c *x509.Certificate, _ *settings) {
		c.MaxPathLen = n
		c.MaxPathLenZero = n == 0
	}
}

// KeyUsage replaces the key usage.
func KeyUsage(ku x509.KeyUsage) Option {
	return func(c *x509.Certificate, _ *settings) { c.KeyUsage = ku }
}

// NoBasicConstraints omits basicConstraints.
func NoBasicConstraints() Option {
	return func(c *x509.Certificate, _ *settings) {
		c.BasicConstraintsValid = false
		c.IsCA = false
		c.MaxPathLen = 0
	}
}

// NotCA issues with basicConstraints cA=false.
func NotCA() Option {
	return func(c *x509.Certificate, _ *settings) {
		c.BasicConstraintsValid = true
		c.IsCA = false
		c.MaxPathLen = 0
		c.KeyUsage &^= x509.KeyUsageCertSign | x509.KeyUsageCRLSign
	}
}

// DNSNames sets dNSName subject alternative names.
func DNSNames(names ...string) Option {
	return func(c *x509.Certificate, _ *settings) { c.DNSNames = names }
}

// EmailAddresses sets rfc822Name subject alternative names.
func EmailAddresses(addrs ...string) Option {
	return func(c *x509.Certificate, _ *settings) { c.EmailAddresses = addrs }
}

// ExtKeyUsage sets the extended key usage.
func ExtKeyUsage(usages ...x509.ExtKeyUsage) Option {
	return func(c *x509.Certificate, _ *settings) { c.ExtKeyUsage = usages }
}

// CRLDistributionPoints adds cRLDistributionPoints URIs.
func CRLDistributionPoints(urls ...string) Option {
	return func(c *x509.Certificate, _ *settings) { c.CRLDistributionPoints = urls }
}

// Extension adds an extension, replacing any generated one with the same OID.
func Extension(ext pkix.Extension) Option {
	return func(c *x509.Certificate, _ *settings) {
		c.ExtraExtensions = append(c.ExtraExtensions, ext)
	}
}

// Policies adds a non-critical certificatePolicies extension.
func Policies(oids ...string) Option {
	return Extension(PoliciesExtension(false, oids...))
}

// PolicyMappings adds a policyMappings extension.
func PolicyMappings(pairs ...[2]string) Option {
	return Extension(PolicyMappingsExtension(pairs...))
}

// PolicyConstraints adds a policyConstraints extension; negative values are omitted.
func PolicyConstraints(requireExplicitPolicy, inhibitPolicyMapping int) Option {
	return Extension(PolicyConstraintsExtension(requireExplicitPolicy, inhibitPolicyMapping))
}

// InhibitAnyPolicy adds an inhibitAnyPolicy extension.
func InhibitAnyPolicy(skipCerts int) Option {
	return Extension(InhibitAnyPolicyExtension(skipCerts))
}

// NameConstraints adds a nameConstraints extension.
func NameConstraints(permitted, excluded []Name) Option {
	return Extension(NameConstraintsExtension(permitted, excluded))
}

// DistributionPoints adds a cRLDistributionPoints extension with full control.
func DistributionPoints(dps ...DistributionPoint) Option {
	return Extension(CRLDistributionPointsExtension(dps...))
}

// WithKey issues the certificate for key instead of a fresh one.
func WithKey(key crypto.Signer) Option {
	return func(_ *x509.Certificate, s *settings) { s.key = key }
}

// NoKeyIdentifiers omits the subject and authority key identifiers.
func NoKeyIdentifiers() Option {
	return func(_ *x509.Certificate, s *settings) {
		s.noSKI = true
		s.noAKI = true
	}
}

// NewKey generates a P-256 key.
func NewKey(t testing.TB) crypto.Signer {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

// NewRoot creates a self-signed CA certificate.
func NewRoot(t testing.TB, cn string, opts ...Option) *Entity {
	t.Helper()
	tmpl := caTemplate(cn)
	s := apply(t, tmpl, opts)
	return create(t, tmpl, tmpl, s.key, s.key, s)
}

// IssueCA issues a CA certificate.
func (e *Entity) IssueCA(t testing.TB, cn string, opts ...Option) *Entity {
	t.Helper()
	tmpl := caTemplate(cn)
	s := apply(t, tmpl, opts)
	return create(t, tmpl, e.Cert, s.key, e.Key, s)
}

// IssueLeaf issues an end-entity certificate.
func (e *Entity) IssueLeaf(t testing.TB, cn string, opts ...Option) *Entity {
	t.Helper()
	tmpl := &x509.Certificate{
		Subject:               pkix.Name{CommonName: cn, Organization: []string{"Test"}},
		NotBefore:             DefaultNotBefore,
		NotAfter:              DefaultNotAfter,
		BasicConstraintsValid: false,
		KeyUsage:              x509.KeyUsageDigitalSignature,
	}
	s := apply(t, tmpl, opts)
	return create(t, tmpl, e.Cert, s.key, e.Key, s)
}

// SelfIssue issues a CA certificate whose subject equals the subject of e.
func (e *Entity) SelfIssue(t testing.TB, opts ...Option) *Entity {
	t.Helper()
	tmpl := caTemplate("")
	tmpl.RawSubject = e.Cert.RawSubject
	s := apply(t, tmpl, opts)
	return create(t, tmpl, e.Cert, s.key, e.Key, s)
}

func caTemplate(cn string) *x509.Certificate {
	return &x509.Certificate{
		Subject:               pkix.Name{CommonName: cn, Organization: []string{"Test"}},
		NotBefore:             DefaultNotBefore,
		NotAfter:              DefaultNotAfter,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            -1,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
	}
}

func apply(t testing.TB, tmpl *x509.Certificate, opts []Option) *settings {
	s := &settings{}
	for _, opt := range opts {
		opt(tmpl, s)
	}
	if tmpl.SerialNumber == nil {
		tmpl.SerialNumber = big.NewInt(1000 + serialCounter.Add(1))
	}
	if s.key == nil {
		s.key = NewKey(t)
	}
	return s
}

func create(t testing.TB, tmpl, parent *x509.Certificate, key, parentKey crypto.Signer, s *settings) *Entity {
	t.Helper()
	if !s.noSKI {
		tmpl.SubjectKeyId = KeyID(t, key.Public())
	}
	if s.noAKI {
		tmpl.AuthorityKeyId = nil
		if parent != tmpl {
			p := *parent
			p.SubjectKeyId = nil
			parent = &p
		}
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, key.Public(), parentKey)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return &Entity{Cert: cert, Key: key}
}

// KeyID derives a key identifier from a public key.
func KeyID(t testing.TB, pub crypto.PublicKey) []byte {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	sum := sha1.Sum(der) //nolint:gosec
	return sum[:]
}

// Revocation is one entry of a generated CRL.
type Revocation struct {
	Serial *big.Int
	Time   time.Time
	// Reason is the reasonCode; negative omits the extension.
	Reason     int
	Extensions []pkix.Extension
}

// Revoke describes the revocation of cert.
func Revoke(cert *x509.Certificate, when time.Time, reason int) Revocation {
	return Revocation{Serial: cert.SerialNumber, Time: when, Reason: reason}
}

// CRLOption adjusts a CRL template.
type CRLOption func(*x509.RevocationList)

// CRLNumber sets the CRL number.
func CRLNumber(n int64) CRLOption {
	return func(l *x509.RevocationList) { l.Number = big.NewInt(n) }
}

// Updates sets thisUpdate and nextUpdate.
func Updates(thisUpdate, nextUpdate time.Time) CRLOption {
	return func(l *x509.RevocationList) {
		l.ThisUpdate, l.NextUpdate = thisUpdate, nextUpdate
	}
}

// Revoked adds entries.
func Revoked(entries ...Revocation) CRLOption {
	return func(l *x509.RevocationList) {
		for _, r := range entries {
			entry := x509.RevocationListEntry{
				SerialNumber:   r.Serial,
				RevocationTime: r.Time,
			}
			if r.Reason >= 0 {
				entry.ExtraExtensions = append(entry.ExtraExtensions, ReasonCodeExtension(r.Reason))
			}
			entry.ExtraExtensions = append(entry.ExtraExtensions, r.Extensions...)
			l.RevokedCertificateEntries = append(l.RevokedCertificateEntries, entry)
		}
	}
}

// IDP adds an issuingDistributionPoint extension.
func IDP(idp IssuingDistributionPoint) CRLOption {
	return CRLExtension(IssuingDistributionPointExtension(idp))
}

// Delta marks the CRL as a delta of the CRL numbered base.
func Delta(base int64) CRLOption {
	return CRLExtension(DeltaCRLIndicatorExtension(base))
}

// CRLExtension adds an extension.
func CRLExtension(ext pkix.Extension) CRLOption {
	return func(l *x509.RevocationList) {
		l.ExtraExtensions = append(l.ExtraExtensions, ext)
	}
}

// NewCRL issues a CRL signed by e.
func (e *Entity) NewCRL(t testing.TB, opts ...CRLOption) *x509.RevocationList {
	t.Helper()
	tmpl := &x509.RevocationList{
		Number:     big.NewInt(1),
		ThisUpdate: DefaultThisUpdate,
		NextUpdate: DefaultNextUpdate,
	}
	for _, opt := range opts {
		opt(tmpl)
	}
	// The issuer is rebuilt so that any entity may sign, whatever its key usage.
	issuer := &x509.Certificate{
		RawSubject:   e.Cert.RawSubject,
		Subject:      e.Cert.Subject,
		SubjectKeyId: e.Cert.SubjectKeyId,
		KeyUsage:     x509.KeyUsageCRLSign,
	}
	if len(issuer.SubjectKeyId) == 0 {
		issuer.SubjectKeyId = KeyID(t, e.Key.Public())
	}
	der, err := x509.CreateRevocationList(rand.Reader, tmpl, issuer, e.Key)
	require.NoError(t, err)
	crl, err := x509.ParseRevocationList(der)
	require.NoError(t, err)
	return crl
}
