// Package certvalidator provides X.509 certificate path validation.
// This file contains the RFC 5280 Section 6.1 path validation algorithm.
package certvalidator

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"time"

	otlp_util "github.com/bluexlab/otlp-util-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// certExtensionsHandled are the critical extensions processed for
// intermediate certificates.
var certExtensionsHandled = []string{
	OIDKeyUsage.String(),
	OIDCertificatePolicies.String(),
	OIDPolicyMappings.String(),
	OIDInhibitAnyPolicy.String(),
	OIDIssuingDistributionPoint.String(),
	OIDDeltaCRLIndicator.String(),
	OIDPolicyConstraints.String(),
	OIDBasicConstraints.String(),
	OIDSubjectAltName.String(),
	OIDNameConstraints.String(),
}

// targetExtensionsHandled adds the extensions understood on the target.
var targetExtensionsHandled = append(append([]string{}, certExtensionsHandled...),
	OIDCRLDistributionPoints.String(),
	OIDExtKeyUsage.String(),
)

// ValidationResult is the outcome of a successful validation.
type ValidationResult struct {
	// Path is the validated certification path, index 0 being the target.
	Path        []*x509.Certificate
	TrustAnchor *TrustAnchor
	// PolicyTree is the final valid policy tree, nil when no policy applies.
	PolicyTree *PolicyTree
	PublicKey  crypto.PublicKey
	// ValidPolicies are the policies valid for the target.
	ValidPolicies []string
}

// PathValidator validates certification paths against a ValidationContext.
type PathValidator struct {
	vc *ValidationContext
}

// NewPathValidator creates a new PathValidator.
func NewPathValidator(vc *ValidationContext) *PathValidator {
	return &PathValidator{vc: vc}
}

// Validate validates path, index 0 being the target and the last element the
// certificate issued by a trust anchor. Validation is all or nothing: any
// failure is returned as a *ValidationError carrying the failing index.
func (v *PathValidator) Validate(ctx context.Context, path []*x509.Certificate) (*ValidationResult, error) {
	ctx, span := otlp_util.Start(ctx, "certvalidator/PathValidator.Validate",
		trace.WithAttributes(attribute.Int("path.length", len(path))),
	)
	res, err := validatePath(ctx, v.vc, path, nil)
	finishSpan(ctx, span, validateCount, err)
	return res, err
}

func validatePath(ctx context.Context, vc *ValidationContext, path []*x509.Certificate, checking *ConsList[*x509.Certificate]) (*ValidationResult, error) {
	if len(path) == 0 {
		return nil, NewValidationError(KindPathNotFound, -1, "certification path is empty", nil)
	}
	anchor, err := findTrustAnchor(vc, path[len(path)-1])
	if err != nil {
		return nil, err
	}
	state, err := NewPKIXPathValidationState(vc, path, anchor)
	if err != nil {
		return nil, err
	}
	p := &pathProcessor{
		ctx:        ctx,
		vc:         vc,
		state:      state,
		revocation: &RevocationChecker{vc: vc, checking: checking},
	}
	for index := state.N - 1; index >= 0; index-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := p.ProcessCertificate(index); err != nil {
			vc.Logger.Debugf("PathValidator.Validate(): certificate %d (%s) rejected: %v", index, describeCert(path[index]), err)
			return nil, err
		}
	}
	return p.WrapUp()
}

// findTrustAnchor returns the first trust anchor whose name matches the
// issuer of cert and whose key verifies its signature.
func findTrustAnchor(vc *ValidationContext, cert *x509.Certificate) (*TrustAnchor, error) {
	var lastErr error
	for _, anchor := range vc.TrustAnchors.FindPotentialIssuers(cert) {
		if anchor.PublicKey() == nil {
			continue
		}
		if err := verifyCertificate(vc.Verifier, cert, anchor.PublicKey()); err != nil {
			lastErr = err
			continue
		}
		vc.Logger.Debugf("findTrustAnchor(): %s issued by trust anchor %s", describeCert(cert), anchor)
		return anchor, nil
	}
	if lastErr != nil {
		return nil, NewValidationError(KindTrustAnchorNotFound, -1,
			"trust anchor found but certificate validation failed", lastErr)
	}
	return nil, NewValidationError(KindTrustAnchorNotFound, -1,
		fmt.Sprintf("trust anchor for certification path not found, issuer %s", issuerString(cert)), nil)
}

// pathProcessor runs the per-certificate steps over one working state.
type pathProcessor struct {
	ctx        context.Context
	vc         *ValidationContext
	state      *PKIXPathValidationState
	revocation *RevocationChecker
}

// ProcessCertificate processes the certificate at path index (Section 6.1.3)
// and, unless it is the target, prepares for the next one (Section 6.1.4).
func (p *pathProcessor) ProcessCertificate(index int) error {
	s := p.state
	cert := s.Path[index]
	i := s.depth(index)

	if err := p.checkBasics(index); err != nil {
		return err
	}
	if err := p.checkNameConstraints(index); err != nil {
		return err
	}
	if err := p.processCertificatePolicies(index); err != nil {
		return err
	}
	if s.ExplicitPolicy <= 0 && s.ValidPolicyTree == nil {
		return NewValidationError(KindPolicyProcessingFailed, index, "no valid policy tree found when one expected", nil)
	}
	if i == s.N {
		return nil
	}

	if cert.Version == 1 {
		// A version 1 trust anchor certificate may head the path.
		if i == 1 && CompareCertificates(cert, s.Anchor.Certificate()) {
			return nil
		}
		return NewValidationError(KindBasicConstraintsViolation, index, "version 1 certificates can't be used as CA ones", nil)
	}
	return p.prepareNextCertificate(index)
}

// checkBasics verifies signature, validity, revocation and name chaining
// (Section 6.1.3 (a)).
func (p *pathProcessor) checkBasics(index int) error {
	s := p.state
	cert := s.Path[index]

	// The anchor lookup already verified the anchor-adjacent certificate.
	if index != s.N-1 {
		if err := verifyCertificate(p.vc.Verifier, cert, s.WorkingPublicKey); err != nil {
			return NewValidationError(KindSignatureVerificationFailed, index, "could not validate certificate signature", err)
		}
	}

	date, err := p.validCertDate(index)
	if err != nil {
		return err
	}
	if date.Before(cert.NotBefore) {
		return NewValidationError(KindTemporalValidityFailed, index,
			fmt.Sprintf("certificate not valid until %s", cert.NotBefore.UTC().Format(time.RFC3339)), nil)
	}
	if date.After(cert.NotAfter) {
		return NewValidationError(KindTemporalValidityFailed, index,
			fmt.Sprintf("certificate expired on %s", cert.NotAfter.UTC().Format(time.RFC3339)), nil)
	}

	if p.vc.RevocationEnabled {
		_, err := p.revocation.Check(p.ctx, &RevocationRequest{
			Certificate:       cert,
			IssuerCertificate: s.WorkingIssuerCert,
			IssuerKey:         s.WorkingPublicKey,
			Path:              s.Path,
			ValidityDate:      date,
		})
		if err != nil {
			return withIndex(err, KindRevocationIndeterminate, index, "revocation status could not be determined")
		}
	}

	if !rawNamesEqual(cert.RawIssuer, s.WorkingIssuerName) {
		return NewValidationError(KindNameChainMismatch, index,
			fmt.Sprintf("issuer name %s does not match subject name %s of signing certificate",
				issuerString(cert), rdnOf(s.WorkingIssuerName)), nil)
	}
	return nil
}

// validCertDate returns the date the certificate at index must be valid at.
// Under the chain model a CA certificate is checked at the issuance date of
// the certificate below it, taken from dateOfCertGen for the target.
func (p *pathProcessor) validCertDate(index int) (time.Time, error) {
	if p.vc.ValidityModel != ValidityModelChain || index == 0 {
		return p.state.ValidationDate, nil
	}
	issued := p.state.Path[index-1]
	if index-1 == 0 {
		date, ok, err := CertificateExtensions(issued).DateOfCertGen()
		if err != nil {
			return time.Time{}, withIndex(err, KindMalformedExtension, index-1, "date of cert gen extension could not be read")
		}
		if ok {
			return date, nil
		}
	}
	return issued.NotBefore, nil
}

// checkNameConstraints checks the subject and alternative names against the
// permitted and excluded subtrees (Section 6.1.3 (b), (c)).
func (p *pathProcessor) checkNameConstraints(index int) error {
	s := p.state
	cert := s.Path[index]
	if IsSelfIssued(cert) && s.depth(index) < s.N {
		return nil
	}

	names := []GeneralName{{Tag: GeneralNameDirectory, Value: cert.RawSubject}}
	for _, email := range emailAddressesInSubject(rdnOf(cert.RawSubject)) {
		names = append(names, EmailGeneralName(email))
	}
	alt, err := CertificateExtensions(cert).SubjectAltNames()
	if err != nil {
		return withIndex(err, KindMalformedExtension, index, "subject alternative name extension could not be decoded")
	}
	names = append(names, alt...)

	for _, name := range names {
		if err := s.NameConstraints.CheckName(name); err != nil {
			return withIndex(err, KindNameConstraintViolation, index, "name constraint check failed")
		}
	}
	return nil
}

// processCertificatePolicies updates the policy tree (Section 6.1.3 (d), (e)).
func (p *pathProcessor) processCertificatePolicies(index int) error {
	s := p.state
	cert := s.Path[index]
	view := CertificateExtensions(cert)
	if !view.Has(OIDCertificatePolicies) {
		s.dropPolicyTree()
		return nil
	}
	policies, err := view.CertificatePolicies()
	if err != nil {
		return withIndex(err, KindMalformedExtension, index, "could not read certificate policies extension")
	}
	if s.ValidPolicyTree == nil {
		return nil
	}

	asserted := NewOIDSet()
	for _, pi := range policies {
		asserted[pi.Policy] = struct{}{}
	}
	if len(s.AcceptablePolicies) == 0 || s.AcceptablePolicies.Contains(AnyPolicy) {
		s.AcceptablePolicies = asserted
	} else {
		kept := NewOIDSet()
		for oid := range s.AcceptablePolicies {
			if asserted.Contains(oid) {
				kept[oid] = struct{}{}
			}
		}
		s.AcceptablePolicies = kept
	}

	if !s.ValidPolicyTree.ProcessCertificatePolicies(s.depth(index), s.N, policies,
		view.IsCritical(OIDCertificatePolicies), s.InhibitAnyPolicy, IsSelfIssued(cert)) {
		s.dropPolicyTree()
	}
	return nil
}

// prepareNextCertificate carries the state over to the next certificate
// (Section 6.1.4).
func (p *pathProcessor) prepareNextCertificate(index int) error {
	s := p.state
	cert := s.Path[index]
	view := CertificateExtensions(cert)
	i := s.depth(index)
	selfIssued := IsSelfIssued(cert)

	// (a), (b) policy mappings
	mappings, err := view.PolicyMappings()
	if err != nil {
		return withIndex(err, KindMalformedExtension, index, "policy mappings extension could not be decoded")
	}
	for _, m := range mappings {
		if m.IssuerDomainPolicy == AnyPolicy {
			return NewValidationError(KindPolicyProcessingFailed, index, "IssuerDomainPolicy is anyPolicy", nil)
		}
		if m.SubjectDomainPolicy == AnyPolicy {
			return NewValidationError(KindPolicyProcessingFailed, index, "SubjectDomainPolicy is anyPolicy", nil)
		}
	}
	if len(mappings) > 0 && s.ValidPolicyTree != nil {
		policies, err := view.CertificatePolicies()
		if err != nil {
			return withIndex(err, KindMalformedExtension, index, "could not read certificate policies extension")
		}
		var anyQualifiers []PolicyQualifier
		for _, pi := range policies {
			if pi.Policy == AnyPolicy {
				anyQualifiers = pi.Qualifiers
				break
			}
		}
		if !s.ValidPolicyTree.ApplyPolicyMappings(i, mappings, s.PolicyMapping, anyQualifiers, view.IsCritical(OIDCertificatePolicies)) {
			s.dropPolicyTree()
		}
	}

	// (g) name constraints
	nc, err := view.NameConstraints()
	if err != nil {
		return withIndex(err, KindMalformedExtension, index, "name constraints extension could not be decoded")
	}
	s.NameConstraints.AddNameConstraints(nc)

	// (h) counters
	if !selfIssued {
		if s.ExplicitPolicy != 0 {
			s.ExplicitPolicy--
		}
		if s.PolicyMapping != 0 {
			s.PolicyMapping--
		}
		if s.InhibitAnyPolicy != 0 {
			s.InhibitAnyPolicy--
		}
	}

	// (i) policy constraints
	pc, err := view.PolicyConstraints()
	if err != nil {
		return withIndex(err, KindMalformedExtension, index, "policy constraints extension could not be decoded")
	}
	if pc != nil {
		if pc.RequireExplicitPolicy >= 0 && pc.RequireExplicitPolicy < s.ExplicitPolicy {
			s.ExplicitPolicy = pc.RequireExplicitPolicy
		}
		if pc.InhibitPolicyMapping >= 0 && pc.InhibitPolicyMapping < s.PolicyMapping {
			s.PolicyMapping = pc.InhibitPolicyMapping
		}
	}

	// (j) inhibit any-policy
	skip, ok, err := view.InhibitAnyPolicy()
	if err != nil {
		return withIndex(err, KindMalformedExtension, index, "inhibit any-policy extension could not be decoded")
	}
	if ok && skip < s.InhibitAnyPolicy {
		s.InhibitAnyPolicy = skip
	}

	// (k) basic constraints
	bc, err := view.BasicConstraints()
	if err != nil {
		return withIndex(err, KindMalformedExtension, index, "basic constraints extension could not be decoded")
	}
	if bc == nil {
		return NewValidationError(KindBasicConstraintsViolation, index, "intermediate certificate lacks basic constraints", nil)
	}
	if !bc.IsCA {
		return NewValidationError(KindBasicConstraintsViolation, index, "not a CA certificate", nil)
	}

	// (l), (m) path length
	if !selfIssued {
		if s.MaxPathLength <= 0 {
			return NewValidationError(KindBasicConstraintsViolation, index, "max path length not greater than zero", nil)
		}
		s.MaxPathLength--
	}
	if bc.PathLen >= 0 && bc.PathLen < s.MaxPathLength {
		s.MaxPathLength = bc.PathLen
	}

	// (n) key usage
	ku, present, err := view.KeyUsage()
	if err != nil {
		return withIndex(err, KindMalformedExtension, index, "key usage extension could not be decoded")
	}
	if present && ku&x509.KeyUsageCertSign == 0 {
		return NewValidationError(KindKeyUsageViolation, index, "issuer certificate keyusage extension does not permit key signing", nil)
	}

	// (o) remaining critical extensions
	if err := p.checkCriticalExtensions(index, certExtensionsHandled); err != nil {
		return err
	}

	s.advance(cert)
	return nil
}

// checkCriticalExtensions passes the unhandled critical extensions of the
// certificate at index through the path checkers and fails if any remain.
func (p *pathProcessor) checkCriticalExtensions(index int, handled []string) error {
	cert := p.state.Path[index]
	remaining := CertificateExtensions(cert).CriticalOIDs().Without(handled...)
	remaining, err := runPathCheckers(p.vc.PathCheckers, cert, remaining)
	if err != nil {
		return withIndex(err, KindUnsupportedCriticalExtension, index, "additional path checker failed")
	}
	if len(remaining) > 0 {
		return NewValidationError(KindUnsupportedCriticalExtension, index,
			fmt.Sprintf("certificate has unsupported critical extension: %v", remaining.Sorted()), nil)
	}
	return nil
}

// WrapUp runs the wrap-up procedure on the target (Section 6.1.5).
func (p *pathProcessor) WrapUp() (*ValidationResult, error) {
	s := p.state
	cert := s.Path[0]
	view := CertificateExtensions(cert)

	if !IsSelfIssued(cert) && s.ExplicitPolicy != 0 {
		s.ExplicitPolicy--
	}
	pc, err := view.PolicyConstraints()
	if err != nil {
		return nil, withIndex(err, KindMalformedExtension, 0, "policy constraints extension could not be decoded")
	}
	if pc != nil && pc.RequireExplicitPolicy == 0 {
		s.ExplicitPolicy = 0
	}

	if err := p.checkCriticalExtensions(0, targetExtensionsHandled); err != nil {
		return nil, err
	}

	intersection, err := p.intersectPolicies()
	if err != nil {
		return nil, err
	}
	if s.ExplicitPolicy <= 0 && intersection == nil {
		return nil, NewValidationError(KindPolicyProcessingFailed, -1, "path processing failed on policy", nil)
	}

	res := &ValidationResult{
		Path:        s.Path,
		TrustAnchor: s.Anchor,
		PolicyTree:  intersection,
		PublicKey:   workingKeyOf(cert),
	}
	if intersection != nil {
		res.ValidPolicies = intersection.LeafPolicies(s.N)
	}
	return res, nil
}

// intersectPolicies computes the intersection of the valid policy tree and
// the user initial policy set (Section 6.1.5 (g)).
func (p *pathProcessor) intersectPolicies() (*PolicyTree, error) {
	s := p.state
	tree := s.ValidPolicyTree
	if tree == nil {
		if p.vc.ExplicitPolicyRequired {
			return nil, NewValidationError(KindPolicyProcessingFailed, -1, "explicit policy requested but none available", nil)
		}
		return nil, nil
	}

	user := p.vc.InitialPolicies
	if len(user) == 0 || user.Contains(AnyPolicy) {
		if p.vc.ExplicitPolicyRequired {
			if len(s.AcceptablePolicies) == 0 {
				return nil, NewValidationError(KindPolicyProcessingFailed, -1, "explicit policy requested but none available", nil)
			}
			if !tree.Prune(s.N - 1) {
				return nil, nil
			}
		}
		return tree, nil
	}

	if !tree.IntersectUserPolicies(s.N, user) {
		return nil, nil
	}
	return tree, nil
}
