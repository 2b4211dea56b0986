// Package certvalidator provides X.509 certificate path validation.
// This file contains trust anchor types.
package certvalidator

import (
	"bytes"
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"errors"
	"sync"
)

// TrustAnchor is either a trusted certificate or a bare (CA name, CA public
// key) pair. Exactly one form is populated.
type TrustAnchor struct {
	cert      *x509.Certificate
	rawName   []byte
	publicKey crypto.PublicKey
	keyID     []byte

	nameConstraints *NameConstraints
}

// NewCertTrustAnchor creates a trust anchor from a trusted certificate.
func NewCertTrustAnchor(cert *x509.Certificate) *TrustAnchor {
	return &TrustAnchor{
		cert:      cert,
		rawName:   cert.RawSubject,
		publicKey: workingKeyOf(cert),
		keyID:     cert.SubjectKeyId,
	}
}

// NewNamedKeyTrustAnchor creates a trust anchor from a CA name and public key.
// keyID is optional and is matched against authorityKeyIdentifier when set.
func NewNamedKeyTrustAnchor(name pkix.RDNSequence, publicKey crypto.PublicKey, keyID []byte) (*TrustAnchor, error) {
	if publicKey == nil {
		return nil, errors.New("trust anchor requires a public key")
	}
	raw, err := asn1.Marshal(name)
	if err != nil {
		return nil, err
	}
	return &TrustAnchor{rawName: raw, publicKey: publicKey, keyID: keyID}, nil
}

// Certificate returns the trusted certificate, or nil for a named key anchor.
func (a *TrustAnchor) Certificate() *x509.Certificate {
	return a.cert
}

// RawName returns the DER encoded CA name.
func (a *TrustAnchor) RawName() []byte {
	return a.rawName
}

// Name returns the CA name.
func (a *TrustAnchor) Name() pkix.RDNSequence {
	return rdnOf(a.rawName)
}

// PublicKey returns the CA public key.
func (a *TrustAnchor) PublicKey() crypto.PublicKey {
	return a.publicKey
}

// KeyID returns the key identifier, if known.
func (a *TrustAnchor) KeyID() []byte {
	return a.keyID
}

// NameConstraints returns the name constraints that seed path validation.
// Certificate anchors use their own nameConstraints extension unless
// constraints were set with WithNameConstraints.
func (a *TrustAnchor) NameConstraints() (*NameConstraints, error) {
	if a.nameConstraints != nil || a.cert == nil {
		return a.nameConstraints, nil
	}
	return CertificateExtensions(a.cert).NameConstraints()
}

// WithNameConstraints returns a copy of the anchor carrying nc.
func (a *TrustAnchor) WithNameConstraints(nc *NameConstraints) *TrustAnchor {
	cp := *a
	cp.nameConstraints = nc
	return &cp
}

// Hashable returns a unique identifier for the anchor.
func (a *TrustAnchor) Hashable() string {
	h := sha256.New()
	if a.cert != nil {
		h.Write(a.cert.Raw)
	} else {
		h.Write(a.rawName)
		if der, err := x509.MarshalPKIXPublicKey(a.publicKey); err == nil {
			h.Write(der)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// String returns the CA name.
func (a *TrustAnchor) String() string {
	return a.Name().String()
}

// IsPotentialIssuerOf checks if this anchor could be the issuer of cert: the
// names must match and, when both sides carry a key identifier, so must those.
func (a *TrustAnchor) IsPotentialIssuerOf(cert *x509.Certificate) bool {
	if !rawNamesEqual(cert.RawIssuer, a.rawName) {
		return false
	}
	if len(cert.AuthorityKeyId) > 0 && len(a.keyID) > 0 {
		return bytes.Equal(cert.AuthorityKeyId, a.keyID)
	}
	return true
}

// TrustAnchorStore holds trust anchors. It is safe for concurrent use.
type TrustAnchorStore struct {
	mu      sync.RWMutex
	anchors []*TrustAnchor
	seen    map[string]bool
}

// NewTrustAnchorStore creates a store holding the given anchors.
func NewTrustAnchorStore(anchors ...*TrustAnchor) *TrustAnchorStore {
	s := &TrustAnchorStore{seen: make(map[string]bool)}
	for _, a := range anchors {
		s.Add(a)
	}
	return s
}

// Add adds an anchor; duplicates are ignored.
func (s *TrustAnchorStore) Add(anchor *TrustAnchor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := anchor.Hashable()
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.anchors = append(s.anchors, anchor)
}

// AddCertificate adds a trusted certificate.
func (s *TrustAnchorStore) AddCertificate(cert *x509.Certificate) {
	s.Add(NewCertTrustAnchor(cert))
}

// FindPotentialIssuers returns the anchors that could have issued cert.
func (s *TrustAnchorStore) FindPotentialIssuers(cert *x509.Certificate) []*TrustAnchor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*TrustAnchor
	for _, a := range s.anchors {
		if a.IsPotentialIssuerOf(cert) {
			out = append(out, a)
		}
	}
	return out
}

// IsAnchorCertificate reports whether cert is itself a trust anchor certificate.
func (s *TrustAnchorStore) IsAnchorCertificate(cert *x509.Certificate) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.anchors {
		if a.cert != nil && bytes.Equal(a.cert.Raw, cert.Raw) {
			return true
		}
	}
	return false
}

// All returns all anchors.
func (s *TrustAnchorStore) All() []*TrustAnchor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*TrustAnchor{}, s.anchors...)
}

// Count returns the number of anchors.
func (s *TrustAnchorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.anchors)
}
