// Package certvalidator provides X.509 certificate path validation.
// This file contains object identifiers and the OID set used for critical extension tracking.
package certvalidator

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"sort"

	"github.com/samber/lo"
)

// Extension and attribute identifiers consumed by path validation.
var (
	OIDSubjectKeyIdentifier     = asn1.ObjectIdentifier{2, 5, 29, 14}
	OIDKeyUsage                 = asn1.ObjectIdentifier{2, 5, 29, 15}
	OIDSubjectAltName           = asn1.ObjectIdentifier{2, 5, 29, 17}
	OIDIssuerAltName            = asn1.ObjectIdentifier{2, 5, 29, 18}
	OIDBasicConstraints         = asn1.ObjectIdentifier{2, 5, 29, 19}
	OIDCRLNumber                = asn1.ObjectIdentifier{2, 5, 29, 20}
	OIDCRLReasonCode            = asn1.ObjectIdentifier{2, 5, 29, 21}
	OIDDeltaCRLIndicator        = asn1.ObjectIdentifier{2, 5, 29, 27}
	OIDIssuingDistributionPoint = asn1.ObjectIdentifier{2, 5, 29, 28}
	OIDCertificateIssuer        = asn1.ObjectIdentifier{2, 5, 29, 29}
	OIDNameConstraints          = asn1.ObjectIdentifier{2, 5, 29, 30}
	OIDCRLDistributionPoints    = asn1.ObjectIdentifier{2, 5, 29, 31}
	OIDCertificatePolicies      = asn1.ObjectIdentifier{2, 5, 29, 32}
	OIDPolicyMappings           = asn1.ObjectIdentifier{2, 5, 29, 33}
	OIDAuthorityKeyIdentifier   = asn1.ObjectIdentifier{2, 5, 29, 35}
	OIDPolicyConstraints        = asn1.ObjectIdentifier{2, 5, 29, 36}
	OIDExtKeyUsage              = asn1.ObjectIdentifier{2, 5, 29, 37}
	OIDFreshestCRL              = asn1.ObjectIdentifier{2, 5, 29, 46}
	OIDInhibitAnyPolicy         = asn1.ObjectIdentifier{2, 5, 29, 54}
	OIDInvalidityDate           = asn1.ObjectIdentifier{2, 5, 29, 24}

	// OIDDateOfCertGen is the ISIS-MTT dateOfCertGen extension.
	OIDDateOfCertGen = asn1.ObjectIdentifier{1, 3, 36, 8, 3, 1}

	OIDEmailAddress = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 1}
	OIDSerialNumber = asn1.ObjectIdentifier{2, 5, 4, 5}
)

// OIDSet is a set of dotted-decimal object identifiers.
//
// OIDSet is used as a value: operations return new sets and never mutate the receiver.
type OIDSet map[string]struct{}

// NewOIDSet creates a set holding the given identifiers.
func NewOIDSet(oids ...string) OIDSet {
	s := make(OIDSet, len(oids))
	for _, o := range oids {
		s[o] = struct{}{}
	}
	return s
}

// Contains reports whether oid is in the set.
func (s OIDSet) Contains(oid string) bool {
	_, ok := s[oid]
	return ok
}

// Without returns a copy of the set with the given identifiers removed.
func (s OIDSet) Without(oids ...string) OIDSet {
	drop := NewOIDSet(oids...)
	return NewOIDSet(lo.Filter(lo.Keys(s), func(o string, _ int) bool {
		return !drop.Contains(o)
	})...)
}

// Union returns a new set holding the members of both sets.
func (s OIDSet) Union(other OIDSet) OIDSet {
	return NewOIDSet(append(lo.Keys(s), lo.Keys(other)...)...)
}

// Sorted returns the members in lexical order.
func (s OIDSet) Sorted() []string {
	out := lo.Keys(s)
	sort.Strings(out)
	return out
}

// Clone returns a copy of the set.
func (s OIDSet) Clone() OIDSet {
	return NewOIDSet(lo.Keys(s)...)
}

// criticalExtensionOIDs returns the identifiers of every critical extension in exts.
func criticalExtensionOIDs(exts []pkix.Extension) OIDSet {
	out := NewOIDSet()
	for _, ext := range exts {
		if ext.Critical {
			out[ext.Id.String()] = struct{}{}
		}
	}
	return out
}
