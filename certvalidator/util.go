// Package certvalidator provides X.509 certificate path validation.
// This file contains name comparison and certificate helper functions.
package certvalidator

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var foldCaser = cases.Fold()

// normalizeDNString applies the string preparation used for name comparison:
// NFKC normalisation, case folding and whitespace collapsing.
func normalizeDNString(value string) string {
	folded := foldCaser.String(norm.NFKC.String(value))
	return strings.Join(strings.Fields(folded), " ")
}

func normalizeRDNValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return normalizeDNString(v)
	case []byte:
		return "#" + hex.EncodeToString(v)
	default:
		return normalizeDNString(fmt.Sprint(v))
	}
}

func canonicalATV(atv pkix.AttributeTypeAndValue) string {
	return atv.Type.String() + "=" + normalizeRDNValue(atv.Value)
}

// canonicalRDN renders one relative distinguished name with its attributes in a stable order.
func canonicalRDN(rdn pkix.RelativeDistinguishedNameSET) string {
	parts := make([]string, 0, len(rdn))
	for _, atv := range rdn {
		parts = append(parts, canonicalATV(atv))
	}
	sort.Strings(parts)
	return strings.Join(parts, "+")
}

// canonicalNameString renders a distinguished name for equality comparison.
func canonicalNameString(name pkix.RDNSequence) string {
	parts := make([]string, 0, len(name))
	for _, rdn := range name {
		parts = append(parts, canonicalRDN(rdn))
	}
	return strings.Join(parts, ",")
}

// rdnEqual compares two RDNs after normalisation.
func rdnEqual(a, b pkix.RelativeDistinguishedNameSET) bool {
	return canonicalRDN(a) == canonicalRDN(b)
}

// namesEqual compares two distinguished names after normalisation.
func namesEqual(a, b pkix.RDNSequence) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !rdnEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// rawNamesEqual compares two DER encoded names, falling back to normalised comparison.
func rawNamesEqual(a, b []byte) bool {
	if bytes.Equal(a, b) {
		return true
	}
	na, errA := parseRDNSequence(a)
	nb, errB := parseRDNSequence(b)
	if errA != nil || errB != nil {
		return false
	}
	return namesEqual(na, nb)
}

// NameKey returns a normalised lookup key for a DER encoded name.
func NameKey(der []byte) string {
	rdn, err := parseRDNSequence(der)
	if err != nil {
		return "raw:" + hex.EncodeToString(der)
	}
	return canonicalNameString(rdn)
}

// rdnOf decodes a DER name already validated by the x509 parser.
func rdnOf(der []byte) pkix.RDNSequence {
	rdn, err := parseRDNSequence(der)
	if err != nil {
		return nil
	}
	return rdn
}

func subjectString(cert *x509.Certificate) string {
	return rdnOf(cert.RawSubject).String()
}

func issuerString(cert *x509.Certificate) string {
	return rdnOf(cert.RawIssuer).String()
}

// IsSelfIssued reports whether the issuer and subject names of cert are equal.
// A self-issued certificate may still be signed by a different key.
func IsSelfIssued(cert *x509.Certificate) bool {
	return rawNamesEqual(cert.RawSubject, cert.RawIssuer)
}

// IsSelfSigned reports whether cert is self-issued and verifies under its own key.
func IsSelfSigned(cert *x509.Certificate, verifier Verifier) bool {
	if !IsSelfIssued(cert) {
		return false
	}
	return verifyCertificate(verifier, cert, workingKeyOf(cert)) == nil
}

// CertificateFingerprint returns the SHA-256 fingerprint of a certificate.
func CertificateFingerprint(cert *x509.Certificate) [32]byte {
	return sha256.Sum256(cert.Raw)
}

// CompareCertificates checks if two certificates are identical.
func CompareCertificates(a, b *x509.Certificate) bool {
	if a == nil || b == nil {
		return a == b
	}
	return bytes.Equal(a.Raw, b.Raw)
}

// emailAddressesInSubject returns the values of emailAddress attributes in a name.
func emailAddressesInSubject(name pkix.RDNSequence) []string {
	var out []string
	for _, rdn := range name {
		for _, atv := range rdn {
			if atv.Type.Equal(OIDEmailAddress) {
				if s, ok := atv.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

// describeCert renders a short description of a certificate for log fields and messages.
func describeCert(cert *x509.Certificate) string {
	return fmt.Sprintf("%s (serial %s)", subjectString(cert), cert.SerialNumber)
}
