// Package certvalidator provides X.509 certificate path validation.
// This file contains the certificate and CRL source abstractions and their selectors.
package certvalidator

import (
	"bytes"
	"context"
	"crypto/x509"
	"math/big"
	"time"
)

// CertificateSource finds certificates matching a selector.
//
// Implementations may perform I/O and must honour ctx. Sources shared between
// concurrent validations must be safe for concurrent reads.
type CertificateSource interface {
	FindCertificates(ctx context.Context, sel *CertSelector) ([]*x509.Certificate, error)
}

// CRLSource finds CRLs matching a selector. validityDate is the date the
// revocation status is wanted for.
type CRLSource interface {
	FindCRLs(ctx context.Context, sel *CRLSelector, validityDate time.Time) ([]*x509.RevocationList, error)
}

// AdditionalStoreResolver resolves a location found in an issuerAltName or
// distribution point into additional stores. Either returned source may be nil.
type AdditionalStoreResolver interface {
	Resolve(ctx context.Context, location string) (CertificateSource, CRLSource, error)
}

// CertSelector selects certificates. Unset fields match everything.
type CertSelector struct {
	Certificate  *x509.Certificate
	Subject      []byte
	Issuer       []byte
	SerialNumber *big.Int
	SubjectKeyID []byte
}

// Match reports whether cert satisfies every set criterion.
func (s *CertSelector) Match(cert *x509.Certificate) bool {
	if s == nil {
		return true
	}
	if s.Certificate != nil && !bytes.Equal(s.Certificate.Raw, cert.Raw) {
		return false
	}
	if s.Subject != nil && !rawNamesEqual(s.Subject, cert.RawSubject) {
		return false
	}
	if s.Issuer != nil && !rawNamesEqual(s.Issuer, cert.RawIssuer) {
		return false
	}
	if s.SerialNumber != nil && (cert.SerialNumber == nil || s.SerialNumber.Cmp(cert.SerialNumber) != 0) {
		return false
	}
	if s.SubjectKeyID != nil && !bytes.Equal(s.SubjectKeyID, cert.SubjectKeyId) {
		return false
	}
	return true
}

// CRLSelector selects CRLs. Unset fields match everything.
type CRLSelector struct {
	// Issuers holds DER encoded issuer names; a CRL matches if its issuer equals any.
	Issuers [][]byte
	// Certificate is the certificate whose status is wanted.
	Certificate  *x509.Certificate
	CompleteOnly bool
	DeltaOnly    bool
	// IssuingDistributionPoint, when MatchIDP is set, must equal the CRL's
	// issuingDistributionPoint value; nil requires the extension to be absent.
	IssuingDistributionPoint []byte
	MatchIDP                 bool
	MinCRLNumber             *big.Int
	MaxBaseCRLNumber         *big.Int
}

// Match reports whether crl satisfies every set criterion.
func (s *CRLSelector) Match(crl *x509.RevocationList) bool {
	if s == nil {
		return true
	}
	if len(s.Issuers) > 0 {
		found := false
		for _, iss := range s.Issuers {
			if rawNamesEqual(iss, crl.RawIssuer) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	view := CRLExtensions(crl)
	delta := view.Has(OIDDeltaCRLIndicator)
	if s.CompleteOnly && delta {
		return false
	}
	if s.DeltaOnly && !delta {
		return false
	}
	if s.MatchIDP {
		ext, ok := view.Lookup(OIDIssuingDistributionPoint)
		if s.IssuingDistributionPoint == nil {
			if ok {
				return false
			}
		} else if !ok || !bytes.Equal(ext.Value, s.IssuingDistributionPoint) {
			return false
		}
	}
	if s.MinCRLNumber != nil {
		n, err := view.CRLNumber()
		if err != nil || n == nil || n.Cmp(s.MinCRLNumber) < 0 {
			return false
		}
	}
	if s.MaxBaseCRLNumber != nil {
		base, err := view.DeltaCRLIndicator()
		if err != nil || base == nil || base.Cmp(s.MaxBaseCRLNumber) > 0 {
			return false
		}
	}
	return true
}
