// Package certvalidator provides X.509 certificate path validation.
// This file contains validation process state management.
package certvalidator

import (
	"crypto"
	"crypto/x509"
	"time"
)

// ConsList is an immutable list of the certificates whose revocation is
// being checked further up a recursion. The nil list is empty.
type ConsList[T any] struct {
	Head T
	Tail *ConsList[T]
}

// Prepend adds a new head to the cons list. It may be called on a nil list.
func (c *ConsList[T]) Prepend(head T) *ConsList[T] {
	return &ConsList[T]{Head: head, Tail: c}
}

// Len returns the length of the cons list.
func (c *ConsList[T]) Len() int {
	count := 0
	for curr := c; curr != nil; curr = curr.Tail {
		count++
	}
	return count
}

// Contains reports whether any element equals v under eq.
func (c *ConsList[T]) Contains(v T, eq func(a, b T) bool) bool {
	for curr := c; curr != nil; curr = curr.Tail {
		if eq(curr.Head, v) {
			return true
		}
	}
	return false
}

// PKIXPathValidationState is the working state of one validation run
// (RFC 5280 Section 6.1.2). It is owned by a single call and never shared.
type PKIXPathValidationState struct {
	// Path is the certification path, index 0 being the target.
	Path []*x509.Certificate
	// N is the number of certificates in the path.
	N int

	Anchor *TrustAnchor

	// ValidPolicyTree is nil once the tree has been destroyed.
	ValidPolicyTree *PolicyTree
	// AcceptablePolicies is the intersection of the policies asserted so far.
	AcceptablePolicies OIDSet

	ExplicitPolicy   int
	InhibitAnyPolicy int
	PolicyMapping    int
	MaxPathLength    int

	NameConstraints *NameConstraintValidator

	WorkingPublicKey  crypto.PublicKey
	WorkingIssuerName []byte
	// WorkingIssuerCert is the certificate holding the working key, nil for
	// a named key trust anchor.
	WorkingIssuerCert *x509.Certificate

	ValidationDate time.Time
}

// NewPKIXPathValidationState initialises the state for path from the
// context's policy inputs and the trust anchor.
func NewPKIXPathValidationState(vc *ValidationContext, path []*x509.Certificate, anchor *TrustAnchor) (*PKIXPathValidationState, error) {
	n := len(path)
	s := &PKIXPathValidationState{
		Path:               path,
		N:                  n,
		Anchor:             anchor,
		ValidPolicyTree:    NewPolicyTree(),
		AcceptablePolicies: NewOIDSet(),
		ExplicitPolicy:     n + 1,
		InhibitAnyPolicy:   n + 1,
		PolicyMapping:      n + 1,
		MaxPathLength:      n,
		NameConstraints:    NewNameConstraintValidator(),
		WorkingPublicKey:   anchor.PublicKey(),
		WorkingIssuerName:  anchor.RawName(),
		WorkingIssuerCert:  anchor.Certificate(),
		ValidationDate:     vc.ValidationDate(),
	}
	if vc.ExplicitPolicyRequired {
		s.ExplicitPolicy = 0
	}
	if vc.AnyPolicyInhibited {
		s.InhibitAnyPolicy = 0
	}
	if vc.PolicyMappingInhibited {
		s.PolicyMapping = 0
	}

	nc, err := anchor.NameConstraints()
	if err != nil {
		return nil, withIndex(err, KindMalformedExtension, -1, "trust anchor name constraints could not be read")
	}
	s.NameConstraints.AddNameConstraints(nc)
	return s, nil
}

// depth returns the RFC 5280 position i of the certificate at path index.
func (s *PKIXPathValidationState) depth(index int) int {
	return s.N - index
}

// dropPolicyTree records that the valid policy tree has become null.
func (s *PKIXPathValidationState) dropPolicyTree() {
	s.ValidPolicyTree = nil
}

// advance moves the working key and issuer name to cert.
func (s *PKIXPathValidationState) advance(cert *x509.Certificate) {
	s.WorkingPublicKey = workingKeyOf(cert)
	s.WorkingIssuerName = cert.RawSubject
	s.WorkingIssuerCert = cert
}
