// Package certvalidator provides X.509 certificate path validation.
// This file contains the revocation reasons mask and certificate status.
package certvalidator

import (
	"strings"
	"time"
)

// ReasonsMask is a set of CRL ReasonFlags. Bit i corresponds to ReasonFlags bit i.
type ReasonsMask uint16

const reasonFlagCount = 9

// Individual ReasonFlags bits.
const (
	ReasonUnused               ReasonsMask = 1 << 0
	ReasonKeyCompromise        ReasonsMask = 1 << 1
	ReasonCACompromise         ReasonsMask = 1 << 2
	ReasonAffiliationChanged   ReasonsMask = 1 << 3
	ReasonSuperseded           ReasonsMask = 1 << 4
	ReasonCessationOfOperation ReasonsMask = 1 << 5
	ReasonCertificateHold      ReasonsMask = 1 << 6
	ReasonPrivilegeWithdrawn   ReasonsMask = 1 << 7
	ReasonAACompromise         ReasonsMask = 1 << 8

	// AllReasons covers every reason code.
	AllReasons ReasonsMask = 1<<reasonFlagCount - 1
)

var reasonNames = []string{
	"unused", "keyCompromise", "cACompromise", "affiliationChanged", "superseded",
	"cessationOfOperation", "certificateHold", "privilegeWithdrawn", "aACompromise",
}

// Intersect returns the reasons present in both masks.
func (m ReasonsMask) Intersect(other ReasonsMask) ReasonsMask {
	return m & other
}

// Union returns the reasons present in either mask.
func (m ReasonsMask) Union(other ReasonsMask) ReasonsMask {
	return m | other
}

// AddReasons adds the reasons of other to m.
func (m *ReasonsMask) AddReasons(other ReasonsMask) {
	*m |= other
}

// HasNewReasons reports whether other contains a reason not already in m.
func (m ReasonsMask) HasNewReasons(other ReasonsMask) bool {
	return other&^m != 0
}

// IsAllReasons reports whether every reason is covered.
func (m ReasonsMask) IsAllReasons() bool {
	return m&AllReasons == AllReasons
}

func (m ReasonsMask) String() string {
	if m.IsAllReasons() {
		return "allReasons"
	}
	var parts []string
	for i, name := range reasonNames {
		if m&(1<<uint(i)) != 0 {
			parts = append(parts, name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// RevocationState is the outcome of CRL processing for one certificate.
type RevocationState int

const (
	// StatusUnrevoked means no applicable CRL lists the certificate.
	StatusUnrevoked RevocationState = iota
	// StatusUndetermined means CRL coverage was incomplete.
	StatusUndetermined
	// StatusRevoked means an applicable CRL lists the certificate; see CertStatus.Reason.
	StatusRevoked
)

// CertStatus holds the revocation state of a certificate.
type CertStatus struct {
	State          RevocationState
	Reason         CRLReason
	RevocationDate time.Time
}

// IsRevoked reports whether the status carries a revocation.
func (s *CertStatus) IsRevoked() bool {
	return s.State == StatusRevoked
}

func (s *CertStatus) setRevoked(reason CRLReason, date time.Time) {
	s.State = StatusRevoked
	s.Reason = reason
	s.RevocationDate = date
}

func (s *CertStatus) reset() {
	*s = CertStatus{State: StatusUnrevoked}
}
