// Package certvalidator provides X.509 certificate path validation.
// This file contains certificate and CRL stores and the path builder.
package certvalidator

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
	"sync"
	"time"

	otlp_util "github.com/bluexlab/otlp-util-go"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrNoIssuerFound is the cause of a dead end in path building.
var ErrNoIssuerFound = errors.New("no issuer certificate found")

// CertStore is an in-memory CertificateSource. It is safe for concurrent use.
type CertStore struct {
	mu sync.RWMutex

	certs map[[32]byte]*x509.Certificate
	order []*x509.Certificate

	// Index by canonical subject name for issuer lookups
	subjectMap map[string][]*x509.Certificate

	// Index by subject key identifier
	keyIDMap map[string][]*x509.Certificate
}

// NewCertStore creates a store holding certs.
func NewCertStore(certs ...*x509.Certificate) *CertStore {
	s := &CertStore{
		certs:      make(map[[32]byte]*x509.Certificate),
		subjectMap: make(map[string][]*x509.Certificate),
		keyIDMap:   make(map[string][]*x509.Certificate),
	}
	s.AddAll(certs)
	return s
}

// Add adds a certificate to the store. It returns false if it was already present.
func (s *CertStore) Add(cert *x509.Certificate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := CertificateFingerprint(cert)
	if _, exists := s.certs[key]; exists {
		return false
	}
	s.certs[key] = cert
	s.order = append(s.order, cert)

	subjectKey := NameKey(cert.RawSubject)
	s.subjectMap[subjectKey] = append(s.subjectMap[subjectKey], cert)

	if len(cert.SubjectKeyId) > 0 {
		keyIDKey := string(cert.SubjectKeyId)
		s.keyIDMap[keyIDKey] = append(s.keyIDMap[keyIDKey], cert)
	}
	return true
}

// AddAll adds multiple certificates to the store.
func (s *CertStore) AddAll(certs []*x509.Certificate) {
	for _, cert := range certs {
		s.Add(cert)
	}
}

// FindCertificates implements CertificateSource.
func (s *CertStore) FindCertificates(ctx context.Context, sel *CertSelector) ([]*x509.Certificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := s.order
	switch {
	case sel == nil:
	case sel.Subject != nil:
		candidates = s.subjectMap[NameKey(sel.Subject)]
	case sel.SubjectKeyID != nil:
		candidates = s.keyIDMap[string(sel.SubjectKeyID)]
	}
	return lo.Filter(candidates, func(cert *x509.Certificate, _ int) bool {
		return sel.Match(cert)
	}), nil
}

// All returns all certificates in insertion order.
func (s *CertStore) All() []*x509.Certificate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*x509.Certificate{}, s.order...)
}

// Count returns the number of certificates in the store.
func (s *CertStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// CRLStore is an in-memory CRLSource. It is safe for concurrent use.
type CRLStore struct {
	mu       sync.RWMutex
	seen     map[[32]byte]bool
	byIssuer map[string][]*x509.RevocationList
	order    []*x509.RevocationList
}

// NewCRLStore creates a store holding crls.
func NewCRLStore(crls ...*x509.RevocationList) *CRLStore {
	s := &CRLStore{
		seen:     make(map[[32]byte]bool),
		byIssuer: make(map[string][]*x509.RevocationList),
	}
	for _, crl := range crls {
		s.Add(crl)
	}
	return s
}

// Add adds a CRL. It returns false if it was already present.
func (s *CRLStore) Add(crl *x509.RevocationList) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sha256.Sum256(crl.Raw)
	if s.seen[key] {
		return false
	}
	s.seen[key] = true
	issuer := NameKey(crl.RawIssuer)
	s.byIssuer[issuer] = append(s.byIssuer[issuer], crl)
	s.order = append(s.order, crl)
	return true
}

// FindCRLs implements CRLSource. Currency against validityDate is left to
// the revocation checker.
func (s *CRLStore) FindCRLs(ctx context.Context, sel *CRLSelector, _ time.Time) ([]*x509.RevocationList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := s.order
	if sel != nil && len(sel.Issuers) > 0 {
		candidates = nil
		for _, iss := range lo.Uniq(lo.Map(sel.Issuers, func(der []byte, _ int) string { return NameKey(der) })) {
			candidates = append(candidates, s.byIssuer[iss]...)
		}
	}
	return lo.Filter(candidates, func(crl *x509.RevocationList, _ int) bool {
		return sel.Match(crl)
	}), nil
}

// Count returns the number of CRLs in the store.
func (s *CRLStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// CertificateSources fans a lookup out over several sources. Results are
// de-duplicated; a failing source does not hide the results of the others,
// and its error is returned alongside them.
type CertificateSources []CertificateSource

// FindCertificates implements CertificateSource.
func (ss CertificateSources) FindCertificates(ctx context.Context, sel *CertSelector) ([]*x509.Certificate, error) {
	var (
		out  []*x509.Certificate
		errs []error
	)
	for _, src := range ss {
		if src == nil {
			continue
		}
		certs, err := src.FindCertificates(ctx, sel)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, certs...)
	}
	return uniqueCerts(out), errors.Join(errs...)
}

// CRLSources fans a lookup out over several CRL sources.
type CRLSources []CRLSource

// FindCRLs implements CRLSource.
func (ss CRLSources) FindCRLs(ctx context.Context, sel *CRLSelector, validityDate time.Time) ([]*x509.RevocationList, error) {
	var (
		out  []*x509.RevocationList
		errs []error
	)
	for _, src := range ss {
		if src == nil {
			continue
		}
		crls, err := src.FindCRLs(ctx, sel, validityDate)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, crls...)
	}
	return lo.UniqBy(out, func(crl *x509.RevocationList) [32]byte { return sha256.Sum256(crl.Raw) }), errors.Join(errs...)
}

func uniqueCerts(certs []*x509.Certificate) []*x509.Certificate {
	return lo.UniqBy(certs, CertificateFingerprint)
}

// PathBuilder searches candidate certificates for a path to a trust anchor
// that the PathValidator accepts.
type PathBuilder struct {
	vc *ValidationContext
}

// NewPathBuilder creates a new PathBuilder.
func NewPathBuilder(vc *ValidationContext) *PathBuilder {
	return &PathBuilder{vc: vc}
}

// Build returns the first valid path for a certificate matching sel. Targets
// are looked up in the context's certificate sources. When every attempt
// fails the PathNotFound error wraps the last validation failure.
func (b *PathBuilder) Build(ctx context.Context, sel *CertSelector) (*ValidationResult, error) {
	ctx, span := otlp_util.Start(ctx, "certvalidator/PathBuilder.Build")
	res, err := b.build(ctx, sel)
	finishSpan(ctx, span, buildCount, err)
	return res, err
}

// BuildFor returns the first valid path for target.
func (b *PathBuilder) BuildFor(ctx context.Context, target *x509.Certificate) (*ValidationResult, error) {
	ctx, span := otlp_util.Start(ctx, "certvalidator/PathBuilder.Build",
		trace.WithAttributes(attribute.String("target", subjectString(target))),
	)
	res, err := buildPath(ctx, b.vc, target, nil)
	finishSpan(ctx, span, buildCount, err)
	return res, err
}

func (b *PathBuilder) build(ctx context.Context, sel *CertSelector) (*ValidationResult, error) {
	targets, err := CertificateSources(b.vc.CertSources).FindCertificates(ctx, sel)
	if sel != nil && sel.Certificate != nil && len(targets) == 0 {
		targets = []*x509.Certificate{sel.Certificate}
	}
	if len(targets) == 0 {
		return nil, NewValidationError(KindPathNotFound, -1, "no certificate found matching the target selector", err)
	}
	var lastErr error
	for _, target := range targets {
		res, err := buildPath(ctx, b.vc, target, nil)
		if err == nil {
			return res, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		lastErr = err
	}
	return nil, lastErr
}

// buildFrame is one level of the search: a certificate on the path and the
// issuers still to be tried for it.
type buildFrame struct {
	cert    *x509.Certificate
	issuers []*x509.Certificate
	next    int
}

// pathSearch is the state of one depth-first search from a target.
type pathSearch struct {
	ctx      context.Context
	vc       *ValidationContext
	checking *ConsList[*x509.Certificate]
	path     []*x509.Certificate
	lastErr  error
}

// buildPath runs a depth-first search from target with an explicit stack.
func buildPath(ctx context.Context, vc *ValidationContext, target *x509.Certificate, checking *ConsList[*x509.Certificate]) (*ValidationResult, error) {
	s := &pathSearch{ctx: ctx, vc: vc, checking: checking}

	frame, res := s.enter(target)
	if res != nil {
		return res, nil
	}
	var stack []*buildFrame
	if frame != nil {
		stack = append(stack, frame)
	}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		top := stack[len(stack)-1]
		if top.next >= len(top.issuers) {
			stack = stack[:len(stack)-1]
			s.path = s.path[:len(s.path)-1]
			continue
		}
		issuer := top.issuers[top.next]
		top.next++
		frame, res := s.enter(issuer)
		if res != nil {
			return res, nil
		}
		if frame != nil {
			stack = append(stack, frame)
		}
	}

	cause := s.lastErr
	if cause == nil {
		cause = ErrNoIssuerFound
	}
	return nil, NewValidationError(KindPathNotFound, -1,
		fmt.Sprintf("unable to find certificate chain for %s", describeCert(target)), cause)
}

// enter tries to extend the path with cert. It returns a validated result if
// cert is issued by a trust anchor and the path validates, a frame if the
// search should continue through the issuers of cert, or neither.
func (s *pathSearch) enter(cert *x509.Certificate) (*buildFrame, *ValidationResult) {
	if containsCert(s.path, cert) || s.vc.isExcluded(cert) {
		return nil, nil
	}
	if s.vc.MaxPathLength != -1 && len(s.path)-1 > s.vc.MaxPathLength {
		return nil, nil
	}
	s.path = append(s.path, cert)

	// A name match is not enough: the anchor key must verify cert. When it
	// does not, or the path fails, the search goes on through pool issuers.
	var anchorErr error
	if len(s.vc.TrustAnchors.FindPotentialIssuers(cert)) > 0 {
		if _, err := findTrustAnchor(s.vc, cert); err != nil {
			anchorErr = err
		} else {
			path := append([]*x509.Certificate{}, s.path...)
			res, err := validatePath(s.ctx, s.vc, path, s.checking)
			if err == nil {
				return nil, res
			}
			s.vc.Logger.Debugf("PathBuilder.Build(): candidate path ending at %s rejected: %v", describeCert(cert), err)
			anchorErr = err
		}
		s.lastErr = anchorErr
	}

	if len(s.path) > 1 && IsSelfSigned(cert, s.vc.Verifier) {
		s.vc.Logger.Debugf("PathBuilder.Build(): skipping untrusted self-signed issuer %s", describeCert(cert))
		s.lastErr = anchorErr
		if s.lastErr == nil {
			s.lastErr = NewValidationError(KindTrustAnchorNotFound, -1,
				fmt.Sprintf("self-signed certificate %s is not a trust anchor", describeCert(cert)), nil)
		}
		s.path = s.path[:len(s.path)-1]
		return nil, nil
	}

	issuers, err := s.findIssuers(cert)
	if len(issuers) == 0 {
		if anchorErr != nil {
			err = anchorErr
		} else if err == nil {
			err = fmt.Errorf("%w for %s", ErrNoIssuerFound, describeCert(cert))
		}
		s.lastErr = err
		s.path = s.path[:len(s.path)-1]
		return nil, nil
	}
	return &buildFrame{cert: cert, issuers: issuers}, nil
}

// findIssuers looks up issuer candidates of cert in the certificate sources
// and in the stores named by its issuerAltName and distribution points.
func (s *pathSearch) findIssuers(cert *x509.Certificate) ([]*x509.Certificate, error) {
	sources := CertificateSources(append([]CertificateSource{}, s.vc.CertSources...))
	sources = append(sources, s.additionalStores(cert)...)

	found, err := sources.FindCertificates(s.ctx, &CertSelector{Subject: cert.RawIssuer})
	issuers := lo.Filter(found, func(c *x509.Certificate, _ int) bool {
		if CompareCertificates(c, cert) {
			return false
		}
		if len(cert.AuthorityKeyId) > 0 && len(c.SubjectKeyId) > 0 {
			return string(cert.AuthorityKeyId) == string(c.SubjectKeyId)
		}
		return true
	})
	return issuers, err
}

func (s *pathSearch) additionalStores(cert *x509.Certificate) []CertificateSource {
	if s.vc.StoreResolver == nil {
		return nil
	}
	view := CertificateExtensions(cert)
	var names []GeneralName
	if ian, err := view.IssuerAltNames(); err == nil {
		names = append(names, ian...)
	}
	if dps, err := view.CRLDistributionPoints(); err == nil {
		for _, dp := range dps {
			if dp.Name != nil {
				names = append(names, dp.Name.FullName...)
			}
		}
	}
	var out []CertificateSource
	for _, loc := range lo.Uniq(uriLocations(names)) {
		certSource, _, err := s.vc.StoreResolver.Resolve(s.ctx, loc)
		if err != nil {
			s.vc.Logger.Debugf("PathBuilder.Build(): fail to resolve %s: %v", loc, err)
			continue
		}
		if certSource != nil {
			out = append(out, certSource)
		}
	}
	return out
}
