package certvalidator

import (
	"crypto/x509"
	"encoding/asn1"
	"fmt"

	"github.com/samber/lo"
)

// PathChecker handles critical extensions the validator does not process
// itself. Check receives the critical extension OIDs of cert that are still
// unclaimed and returns the set with the OIDs it handled removed.
type PathChecker interface {
	Check(cert *x509.Certificate, remaining OIDSet) (OIDSet, error)
}

// PathCheckerFunc adapts a function to the PathChecker interface.
type PathCheckerFunc func(cert *x509.Certificate, remaining OIDSet) (OIDSet, error)

// Check calls f.
func (f PathCheckerFunc) Check(cert *x509.Certificate, remaining OIDSet) (OIDSet, error) {
	return f(cert, remaining)
}

// ExtKeyUsageChecker requires that every certificate carrying an
// extendedKeyUsage extension allows all the Required purposes, either
// explicitly or through anyExtendedKeyUsage. It runs on CA certificates as
// well as the target, so an intermediate with extendedKeyUsage restricts the
// purposes of the certificates below it. Certificates without the extension
// are unrestricted.
type ExtKeyUsageChecker struct {
	Required []asn1.ObjectIdentifier
}

// NewExtKeyUsageChecker creates a checker for the given purposes.
func NewExtKeyUsageChecker(required ...asn1.ObjectIdentifier) *ExtKeyUsageChecker {
	return &ExtKeyUsageChecker{Required: required}
}

var oidAnyExtKeyUsage = asn1.ObjectIdentifier{2, 5, 29, 37, 0}

// Check implements PathChecker.
func (c *ExtKeyUsageChecker) Check(cert *x509.Certificate, remaining OIDSet) (OIDSet, error) {
	if !CertificateExtensions(cert).Has(OIDExtKeyUsage) {
		return remaining, nil
	}
	granted := ekuOIDs(cert)
	if !granted.Contains(oidAnyExtKeyUsage.String()) {
		missing := lo.Filter(c.Required, func(oid asn1.ObjectIdentifier, _ int) bool {
			return !granted.Contains(oid.String())
		})
		if len(missing) > 0 {
			return remaining, NewValidationError(KindUnsupportedCriticalExtension, -1,
				fmt.Sprintf("extended key usage of %s does not allow %v", describeCert(cert), missing), nil)
		}
	}
	return remaining.Without(OIDExtKeyUsage.String()), nil
}

// ekuOIDs returns the extended key usages of cert, including the ones the
// x509 package decoded into named constants.
func ekuOIDs(cert *x509.Certificate) OIDSet {
	out := NewOIDSet(lo.Map(cert.UnknownExtKeyUsage, func(oid asn1.ObjectIdentifier, _ int) string {
		return oid.String()
	})...)
	for _, eku := range cert.ExtKeyUsage {
		if oid, ok := extKeyUsageOIDs[eku]; ok {
			out[oid.String()] = struct{}{}
		}
	}
	return out
}

var extKeyUsageOIDs = map[x509.ExtKeyUsage]asn1.ObjectIdentifier{
	x509.ExtKeyUsageAny:             oidAnyExtKeyUsage,
	x509.ExtKeyUsageServerAuth:      {1, 3, 6, 1, 5, 5, 7, 3, 1},
	x509.ExtKeyUsageClientAuth:      {1, 3, 6, 1, 5, 5, 7, 3, 2},
	x509.ExtKeyUsageCodeSigning:     {1, 3, 6, 1, 5, 5, 7, 3, 3},
	x509.ExtKeyUsageEmailProtection: {1, 3, 6, 1, 5, 5, 7, 3, 4},
	x509.ExtKeyUsageTimeStamping:    {1, 3, 6, 1, 5, 5, 7, 3, 8},
	x509.ExtKeyUsageOCSPSigning:     {1, 3, 6, 1, 5, 5, 7, 3, 9},
}

// ExtKeyUsageByName maps configuration names to extended key usage OIDs.
var ExtKeyUsageByName = map[string]asn1.ObjectIdentifier{
	"any":             oidAnyExtKeyUsage,
	"serverAuth":      extKeyUsageOIDs[x509.ExtKeyUsageServerAuth],
	"clientAuth":      extKeyUsageOIDs[x509.ExtKeyUsageClientAuth],
	"codeSigning":     extKeyUsageOIDs[x509.ExtKeyUsageCodeSigning],
	"emailProtection": extKeyUsageOIDs[x509.ExtKeyUsageEmailProtection],
	"timeStamping":    extKeyUsageOIDs[x509.ExtKeyUsageTimeStamping],
	"OCSPSigning":     extKeyUsageOIDs[x509.ExtKeyUsageOCSPSigning],
}

// runPathCheckers passes the remaining critical extensions of cert through
// every checker and returns what is left unclaimed.
func runPathCheckers(checkers []PathChecker, cert *x509.Certificate, remaining OIDSet) (OIDSet, error) {
	var err error
	for _, checker := range checkers {
		remaining, err = checker.Check(cert, remaining.Clone())
		if err != nil {
			return remaining, err
		}
	}
	return remaining, nil
}
