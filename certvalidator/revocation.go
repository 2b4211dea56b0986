package certvalidator

import (
	"bytes"
	"context"
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"time"

	otlp_util "github.com/bluexlab/otlp-util-go"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

var (
	// ErrNoCRLsFound is returned when no CRL source holds a CRL for an issuer.
	ErrNoCRLsFound = errors.New("no CRLs found")
	// ErrNoValidCRL is returned when CRLs were found but none could be used.
	ErrNoValidCRL = errors.New("no valid CRL found")
)

// crlExtensionsHandled are the critical CRL extensions processed below.
var crlExtensionsHandled = NewOIDSet(
	OIDIssuingDistributionPoint.String(),
	OIDDeltaCRLIndicator.String(),
)

var crlEntryExtensionsHandled = NewOIDSet(
	OIDCRLReasonCode.String(),
	OIDInvalidityDate.String(),
	OIDCertificateIssuer.String(),
)

// RevocationRequest describes one certificate whose CRL status is wanted.
type RevocationRequest struct {
	Certificate *x509.Certificate
	// IssuerCertificate is nil when the issuer is a named key trust anchor.
	IssuerCertificate *x509.Certificate
	IssuerKey         crypto.PublicKey
	// Path holds the certificates of the path being validated.
	Path []*x509.Certificate
	// ValidityDate is the date the status is wanted for.
	ValidityDate time.Time
}

// RevocationChecker determines the CRL status of a certificate.
type RevocationChecker struct {
	vc *ValidationContext
	// checking holds the certificates whose status is being determined
	// further up the call chain, so signer paths do not recurse forever.
	checking *ConsList[*x509.Certificate]
}

// NewRevocationChecker creates a checker using the sources of vc.
func NewRevocationChecker(vc *ValidationContext) *RevocationChecker {
	return &RevocationChecker{vc: vc}
}

func (c *RevocationChecker) logger() logrus.FieldLogger {
	return c.vc.Logger
}

// Check determines the status of req.Certificate. It returns a
// *RevocationError if the certificate is revoked and a RevocationIndeterminate
// error if no applicable CRL settles its status. Error indexes are -1.
func (c *RevocationChecker) Check(ctx context.Context, req *RevocationRequest) (*CertStatus, error) {
	ctx, span := otlp_util.Start(ctx, "certvalidator/RevocationChecker.Check",
		trace.WithAttributes(attribute.String("subject", subjectString(req.Certificate))),
	)
	status, err := c.checkCRLs(ctx, req)
	span.SetAttributes(attribute.String("outcome", outcomeOf(err)))
	if err != nil {
		span.RecordError(err)
	}
	span.End()
	return status, err
}

func (c *RevocationChecker) checkCRLs(ctx context.Context, req *RevocationRequest) (*CertStatus, error) {
	status := &CertStatus{State: StatusUnrevoked}
	var reasons ReasonsMask
	var lastErr error
	validCRLFound := false

	dps, err := CertificateExtensions(req.Certificate).CRLDistributionPoints()
	if err != nil {
		return status, NewValidationError(KindRevocationIndeterminate, -1,
			"CRL distribution point extension could not be read", err)
	}
	for _, dp := range dps {
		if status.State != StatusUnrevoked || reasons.IsAllReasons() {
			break
		}
		if err := c.checkCRL(ctx, dp, req, status, &reasons); err != nil {
			lastErr = err
			continue
		}
		validCRLFound = true
	}

	// The certificate issuer is an implied distribution point with no
	// reason restriction.
	if status.State == StatusUnrevoked && !reasons.IsAllReasons() {
		dp := DistributionPoint{Name: &DistributionPointName{
			FullName: []GeneralName{{Tag: GeneralNameDirectory, Value: req.Certificate.RawIssuer}},
		}}
		if err := c.checkCRL(ctx, dp, req, status, &reasons); err != nil {
			lastErr = err
		} else {
			validCRLFound = true
		}
	}

	if !validCRLFound {
		if lastErr == nil {
			lastErr = ErrNoValidCRL
		}
		return status, NewValidationError(KindRevocationIndeterminate, -1, "no valid CRL found", lastErr)
	}
	if status.IsRevoked() {
		return status, NewRevocationError(-1, status.Reason, status.RevocationDate)
	}
	if !reasons.IsAllReasons() && status.State == StatusUnrevoked {
		status.State = StatusUndetermined
	}
	if status.State == StatusUndetermined {
		return status, NewValidationError(KindRevocationIndeterminate, -1,
			fmt.Sprintf("certificate status could not be determined, reasons covered: %s", reasons), lastErr)
	}
	return status, nil
}

// checkCRL processes the complete CRLs of one distribution point. It fails if
// no CRL of the distribution point could be used.
func (c *RevocationChecker) checkCRL(ctx context.Context, dp DistributionPoint, req *RevocationRequest, status *CertStatus, reasons *ReasonsMask) error {
	if req.ValidityDate.After(c.vc.now()) {
		return errors.New("validation time is in future")
	}
	crls, err := c.completeCRLs(ctx, dp, req)
	if err != nil {
		return err
	}

	var lastErr error
	validCRLFound := false
	for _, crl := range crls {
		if status.State != StatusUnrevoked || reasons.IsAllReasons() {
			break
		}
		if err := c.applyCRL(ctx, dp, crl, req, status, reasons); err != nil {
			c.logger().Debugf("RevocationChecker.checkCRL(): CRL of %s rejected: %v", rdnOf(crl.RawIssuer), err)
			lastErr = err
			continue
		}
		validCRLFound = true
	}
	if !validCRLFound {
		if lastErr == nil {
			lastErr = ErrNoValidCRL
		}
		return lastErr
	}
	return nil
}

// applyCRL runs the checks of one complete CRL and, if it is usable, updates
// status and the covered reasons.
func (c *RevocationChecker) applyCRL(ctx context.Context, dp DistributionPoint, crl *x509.RevocationList, req *RevocationRequest, status *CertStatus, reasons *ReasonsMask) error {
	view := CRLExtensions(crl)
	idp, err := view.IssuingDistributionPoint()
	if err != nil {
		return err
	}
	interim := interimReasons(dp, idp)
	if !reasons.HasNewReasons(interim) {
		return errors.New("CRL does not cover new reasons")
	}

	keys, err := c.signerKeys(ctx, crl, req)
	if err != nil {
		return err
	}
	key, err := c.verifyingKey(crl, keys)
	if err != nil {
		return err
	}

	var delta *x509.RevocationList
	if c.vc.UseDeltaCRLs {
		deltas, err := c.deltaCRLs(ctx, crl, req)
		if err != nil {
			return err
		}
		delta = c.selectDeltaCRL(deltas, key)
	}

	if c.vc.ValidityModel != ValidityModelChain && req.Certificate.NotAfter.Before(crl.ThisUpdate) {
		return errors.New("no valid CRL for current time found")
	}

	if err := checkCRLIssuer(dp, req.Certificate, crl, idp); err != nil {
		return err
	}
	if err := checkCRLScope(dp, req.Certificate, crl, idp); err != nil {
		return err
	}
	if err := checkDeltaCRL(delta, crl); err != nil {
		return err
	}

	if delta != nil {
		if err := certStatusFromCRL(req.ValidityDate, delta, req.Certificate, status); err != nil {
			return err
		}
	}
	if status.State == StatusUnrevoked {
		if err := certStatusFromCRL(req.ValidityDate, crl, req.Certificate, status); err != nil {
			return err
		}
	}
	if status.IsRevoked() && status.Reason == CRLReasonRemoveFromCRL {
		status.reset()
	}

	reasons.AddReasons(interim)

	if unknown := view.CriticalOIDs().Without(crlExtensionsHandled.Sorted()...); len(unknown) > 0 {
		return fmt.Errorf("CRL contains unsupported critical extensions: %v", unknown.Sorted())
	}
	if delta != nil {
		if unknown := CRLExtensions(delta).CriticalOIDs().Without(crlExtensionsHandled.Sorted()...); len(unknown) > 0 {
			return fmt.Errorf("delta CRL contains unsupported critical extensions: %v", unknown.Sorted())
		}
	}
	return nil
}

// interimReasons is the intersection of the distribution point reasons and
// the CRL's onlySomeReasons; an absent field covers every reason.
func interimReasons(dp DistributionPoint, idp *IssuingDistributionPoint) ReasonsMask {
	mask := AllReasons
	if dp.Reasons != nil {
		mask = mask.Intersect(*dp.Reasons)
	}
	if idp != nil && idp.OnlySomeReasons != nil {
		mask = mask.Intersect(*idp.OnlySomeReasons)
	}
	return mask
}

// completeCRLs finds complete CRLs issued by the CRL issuer of dp.
func (c *RevocationChecker) completeCRLs(ctx context.Context, dp DistributionPoint, req *RevocationRequest) ([]*x509.RevocationList, error) {
	var issuers [][]byte
	for _, gn := range dp.CRLIssuer {
		if gn.Tag == GeneralNameDirectory {
			issuers = append(issuers, gn.Value)
		}
	}
	if len(dp.CRLIssuer) == 0 {
		issuers = append(issuers, req.Certificate.RawIssuer)
	}
	if len(issuers) == 0 {
		return nil, errors.New("CRL issuer of distribution point has no directory name")
	}
	sel := &CRLSelector{Issuers: issuers, Certificate: req.Certificate, CompleteOnly: true}
	var locations []GeneralName
	if dp.Name != nil {
		locations = dp.Name.FullName
	}
	crls, err := c.findCRLs(ctx, sel, req, locations)
	if err != nil {
		return nil, err
	}
	if len(crls) == 0 {
		return nil, fmt.Errorf("%w for issuer %q", ErrNoCRLsFound, rdnOf(issuers[0]))
	}
	return crls, nil
}

// findCRLs queries every CRL source plus the stores resolved from locations
// and keeps the CRLs that are current at the validity date.
func (c *RevocationChecker) findCRLs(ctx context.Context, sel *CRLSelector, req *RevocationRequest, locations []GeneralName) ([]*x509.RevocationList, error) {
	sources := append([]CRLSource{}, c.vc.CRLSources...)
	for _, loc := range uriLocations(locations) {
		if c.vc.StoreResolver == nil {
			break
		}
		_, crlSource, err := c.vc.StoreResolver.Resolve(ctx, loc)
		if err != nil {
			c.logger().Debugf("RevocationChecker.findCRLs(): fail to resolve %s: %v", loc, err)
			continue
		}
		if crlSource != nil {
			sources = append(sources, crlSource)
		}
	}

	var (
		out      []*x509.RevocationList
		firstErr error
		seen     = make(map[[32]byte]bool)
	)
	for _, src := range sources {
		crls, err := src.FindCRLs(ctx, sel, req.ValidityDate)
		crlFetchCount.Add(ctx, 1, metric.WithAttributes(attribute.Bool("error", err != nil)))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, crl := range crls {
			key := sha256.Sum256(crl.Raw)
			if seen[key] || !sel.Match(crl) || !crlCurrent(crl, req.ValidityDate, sel.Certificate) {
				continue
			}
			seen[key] = true
			out = append(out, crl)
		}
	}
	if len(out) == 0 && firstErr != nil {
		return nil, fmt.Errorf("CRL lookup failed: %w", firstErr)
	}
	return out, nil
}

// crlCurrent reports whether crl is still valid at date and was issued
// before cert expired.
func crlCurrent(crl *x509.RevocationList, date time.Time, cert *x509.Certificate) bool {
	if !crl.NextUpdate.IsZero() && !crl.NextUpdate.After(date) {
		return false
	}
	return cert == nil || crl.ThisUpdate.Before(cert.NotAfter)
}

func uriLocations(names []GeneralName) []string {
	var out []string
	for _, gn := range names {
		if gn.Tag == GeneralNameURI {
			out = append(out, string(gn.Value))
		}
	}
	return out
}

// signerKeys returns the public keys of the certificates that may have signed
// crl. Certificates other than the issuer of the checked certificate must
// validate up to a trust anchor and allow CRL signing.
func (c *RevocationChecker) signerKeys(ctx context.Context, crl *x509.RevocationList, req *RevocationRequest) ([]crypto.PublicKey, error) {
	type signer struct {
		cert *x509.Certificate
		key  crypto.PublicKey
	}
	var signers []signer
	var lastErr error

	if rawNamesEqual(crl.RawIssuer, req.Certificate.RawIssuer) && req.IssuerKey != nil {
		signers = append(signers, signer{cert: req.IssuerCertificate, key: req.IssuerKey})
	}

	candidates, err := c.signerCandidates(ctx, crl)
	if err != nil {
		lastErr = err
	}
	checking := c.checking.Prepend(req.Certificate)
	for _, cand := range candidates {
		if req.IssuerCertificate != nil && CompareCertificates(cand, req.IssuerCertificate) {
			continue
		}
		revocation := c.vc.RevocationEnabled && !containsCert(req.Path, cand) && !checking.Contains(cand, CompareCertificates)
		res, err := buildPath(ctx, c.vc.withRevocation(revocation), cand, checking)
		if err != nil {
			c.logger().Debugf("RevocationChecker.signerKeys(): CRL signer %s rejected: %v", describeCert(cand), err)
			lastErr = fmt.Errorf("CRL signer path failed to validate: %w", err)
			continue
		}
		signers = append(signers, signer{cert: cand, key: res.PublicKey})
	}

	var keys []crypto.PublicKey
	for _, s := range signers {
		if s.cert != nil && !permitsCRLSign(s.cert) {
			lastErr = NewValidationError(KindKeyUsageViolation, -1,
				"issuer certificate key usage extension does not permit CRL signing", nil)
			continue
		}
		keys = append(keys, s.key)
	}
	if len(keys) == 0 {
		if lastErr == nil {
			lastErr = errors.New("cannot find a valid issuer certificate for CRL")
		}
		return nil, lastErr
	}
	return keys, nil
}

// signerCandidates returns certificates whose subject is the CRL issuer.
func (c *RevocationChecker) signerCandidates(ctx context.Context, crl *x509.RevocationList) ([]*x509.Certificate, error) {
	sel := &CertSelector{Subject: crl.RawIssuer}
	var out []*x509.Certificate
	for _, a := range c.vc.TrustAnchors.All() {
		if cert := a.Certificate(); cert != nil && sel.Match(cert) {
			out = append(out, cert)
		}
	}
	found, err := CertificateSources(c.vc.CertSources).FindCertificates(ctx, sel)
	out = append(out, found...)
	return uniqueCerts(out), err
}

// verifyingKey returns the first key the CRL signature verifies under.
func (c *RevocationChecker) verifyingKey(crl *x509.RevocationList, keys []crypto.PublicKey) (crypto.PublicKey, error) {
	var lastErr error
	for _, key := range keys {
		if err := verifyCRL(c.vc.Verifier, crl, key); err != nil {
			lastErr = err
			continue
		}
		return key, nil
	}
	return nil, NewValidationError(KindSignatureVerificationFailed, -1, "cannot verify CRL", lastErr)
}

// deltaCRLs finds delta CRLs for the complete CRL crl.
func (c *RevocationChecker) deltaCRLs(ctx context.Context, crl *x509.RevocationList, req *RevocationRequest) ([]*x509.RevocationList, error) {
	view := CRLExtensions(crl)
	number, err := view.CRLNumber()
	if err != nil {
		return nil, err
	}
	sel := &CRLSelector{
		Issuers:   [][]byte{crl.RawIssuer},
		DeltaOnly: true,
		MatchIDP:  true,
	}
	if ext, ok := view.Lookup(OIDIssuingDistributionPoint); ok {
		sel.IssuingDistributionPoint = ext.Value
	}
	if number != nil {
		sel.MinCRLNumber = new(big.Int).Add(number, big.NewInt(1))
		sel.MaxBaseCRLNumber = number
	}
	freshest, err := view.FreshestCRL()
	if err != nil {
		return nil, err
	}
	var locations []GeneralName
	for _, dp := range freshest {
		if dp.Name != nil {
			locations = append(locations, dp.Name.FullName...)
		}
	}
	return c.findCRLs(ctx, sel, &RevocationRequest{ValidityDate: req.ValidityDate}, locations)
}

// selectDeltaCRL returns the first delta CRL whose signature verifies under key.
func (c *RevocationChecker) selectDeltaCRL(deltas []*x509.RevocationList, key crypto.PublicKey) *x509.RevocationList {
	for _, d := range deltas {
		if err := verifyCRL(c.vc.Verifier, d, key); err == nil {
			return d
		}
	}
	return nil
}

// checkCRLIssuer verifies that the CRL issuer matches the distribution point.
func checkCRLIssuer(dp DistributionPoint, cert *x509.Certificate, crl *x509.RevocationList, idp *IssuingDistributionPoint) error {
	indirect := idp != nil && idp.IndirectCRL
	if len(dp.CRLIssuer) > 0 {
		match := false
		for _, gn := range dp.CRLIssuer {
			if gn.Tag == GeneralNameDirectory && rawNamesEqual(gn.Value, crl.RawIssuer) {
				match = true
			}
		}
		if !match {
			return errors.New("CRL issuer of CRL does not match CRL issuer of distribution point")
		}
		if !indirect {
			return errors.New("distribution point contains cRLIssuer field but CRL is not indirect")
		}
		return nil
	}
	if !rawNamesEqual(crl.RawIssuer, cert.RawIssuer) {
		return errors.New("cannot find matching CRL issuer for certificate")
	}
	return nil
}

// checkCRLScope verifies the issuingDistributionPoint of the CRL against the
// distribution point and the kind of certificate being checked.
func checkCRLScope(dp DistributionPoint, cert *x509.Certificate, crl *x509.RevocationList, idp *IssuingDistributionPoint) error {
	if idp == nil {
		return nil
	}
	if idp.Name != nil {
		idpNames, err := resolveDPName(idp.Name, [][]byte{crl.RawIssuer})
		if err != nil {
			return err
		}
		var dpNames []GeneralName
		switch {
		case dp.Name != nil:
			bases := [][]byte{cert.RawIssuer}
			if len(dp.CRLIssuer) > 0 {
				bases = nil
				for _, gn := range dp.CRLIssuer {
					if gn.Tag == GeneralNameDirectory {
						bases = append(bases, gn.Value)
					}
				}
			}
			dpNames, err = resolveDPName(dp.Name, bases)
			if err != nil {
				return err
			}
		case len(dp.CRLIssuer) > 0:
			dpNames = dp.CRLIssuer
		default:
			return errors.New("either the cRLIssuer or the distributionPoint field must be contained in DistributionPoint")
		}
		if !anyNameEqual(idpNames, dpNames) {
			return errors.New("no match for certificate CRL issuing distribution point name to cRLIssuer CRL distribution point")
		}
	}

	bc, err := CertificateExtensions(cert).BasicConstraints()
	if err != nil {
		return err
	}
	isCA := bc != nil && bc.IsCA
	if idp.OnlyContainsUserCerts && isCA {
		return errors.New("CA certificate CRL only contains user certificates")
	}
	if idp.OnlyContainsCACerts && !isCA {
		return errors.New("end entity CRL only contains CA certificates")
	}
	if idp.OnlyContainsAttributeCerts {
		return errors.New("onlyContainsAttributeCerts boolean is asserted")
	}
	return nil
}

// resolveDPName expands a distribution point name into general names. A
// name relative to the CRL issuer is appended to each of the bases.
func resolveDPName(name *DistributionPointName, bases [][]byte) ([]GeneralName, error) {
	if name.RelativeName == nil {
		return name.FullName, nil
	}
	var out []GeneralName
	for _, base := range bases {
		der, err := appendRelativeName(base, name.RelativeName)
		if err != nil {
			return nil, malformed(OIDIssuingDistributionPoint, "invalid nameRelativeToCRLIssuer: %v", err)
		}
		out = append(out, GeneralName{Tag: GeneralNameDirectory, Value: der})
	}
	return out, nil
}

// appendRelativeName returns the DER of the name base followed by the RDN
// encoded in rel as an implicitly tagged [1] SET.
func appendRelativeName(base, rel []byte) ([]byte, error) {
	seq, err := parseRDNSequence(base)
	if err != nil {
		return nil, err
	}
	input := cryptobyte.String(rel)
	var body cryptobyte.String
	if !input.ReadASN1(&body, cbasn1.Tag(1).ContextSpecific().Constructed()) {
		return nil, errors.New("invalid relative name")
	}
	var set pkix.RelativeDistinguishedNameSET
	for !body.Empty() {
		var elem cryptobyte.String
		if !body.ReadASN1Element(&elem, cbasn1.SEQUENCE) {
			return nil, errors.New("invalid attribute in relative name")
		}
		var atv pkix.AttributeTypeAndValue
		if _, err := asn1.Unmarshal(elem, &atv); err != nil {
			return nil, err
		}
		set = append(set, atv)
	}
	return asn1.Marshal(append(seq, set))
}

func anyNameEqual(a, b []GeneralName) bool {
	for _, x := range a {
		for _, y := range b {
			if x.Equal(y) {
				return true
			}
		}
	}
	return false
}

// checkDeltaCRL verifies that a delta CRL belongs to the complete CRL.
func checkDeltaCRL(delta, complete *x509.RevocationList) error {
	if delta == nil {
		return nil
	}
	if !rawNamesEqual(delta.RawIssuer, complete.RawIssuer) {
		return errors.New("complete CRL issuer does not match delta CRL issuer")
	}
	cv, dv := CRLExtensions(complete), CRLExtensions(delta)
	cIDP, cOK := cv.Lookup(OIDIssuingDistributionPoint)
	dIDP, dOK := dv.Lookup(OIDIssuingDistributionPoint)
	if cOK != dOK || !bytes.Equal(cIDP.Value, dIDP.Value) {
		return errors.New("issuing distribution point extension from delta CRL and complete CRL does not match")
	}
	cAKI, ok := cv.Lookup(OIDAuthorityKeyIdentifier)
	if !ok {
		return errors.New("CRL authority key identifier is null")
	}
	dAKI, ok := dv.Lookup(OIDAuthorityKeyIdentifier)
	if !ok {
		return errors.New("delta CRL authority key identifier is null")
	}
	if !bytes.Equal(cAKI.Value, dAKI.Value) {
		return errors.New("delta CRL authority key identifier does not match complete CRL authority key identifier")
	}
	return nil
}

// certStatusFromCRL looks cert up in crl and records a revocation in status.
func certStatusFromCRL(validDate time.Time, crl *x509.RevocationList, cert *x509.Certificate, status *CertStatus) error {
	idp, err := CRLExtensions(crl).IssuingDistributionPoint()
	if err != nil {
		return err
	}
	indirect := idp != nil && idp.IndirectCRL
	if !indirect && !rawNamesEqual(cert.RawIssuer, crl.RawIssuer) {
		return nil
	}
	entry, entryIssuer, err := findCRLEntry(crl, cert.SerialNumber, indirect)
	if err != nil || entry == nil {
		return err
	}
	if indirect && !rawNamesEqual(cert.RawIssuer, entryIssuer) {
		return nil
	}

	view := EntryExtensions(entry)
	if unknown := view.CriticalOIDs().Without(crlEntryExtensionsHandled.Sorted()...); len(unknown) > 0 {
		return fmt.Errorf("CRL entry has unsupported critical extensions: %v", unknown.Sorted())
	}
	reason, hasReason, err := view.ReasonCode()
	if err != nil {
		return err
	}
	severe := !hasReason
	switch reason {
	case CRLReasonUnspecified, CRLReasonKeyCompromise, CRLReasonCACompromise, CRLReasonAACompromise:
		severe = true
	}
	// Severe reasons revoke regardless of the revocation date.
	if !validDate.Before(entry.RevocationTime) || severe {
		if !hasReason {
			reason = CRLReasonUnspecified
		}
		status.setRevoked(reason, entry.RevocationTime)
	}
	return nil
}

// findCRLEntry returns the entry for serial and the issuer it applies to. In
// an indirect CRL the certificateIssuer entry extension carries over to the
// entries that follow it.
func findCRLEntry(crl *x509.RevocationList, serial *big.Int, indirect bool) (*x509.RevocationListEntry, []byte, error) {
	issuer := crl.RawIssuer
	for i := range crl.RevokedCertificateEntries {
		entry := &crl.RevokedCertificateEntries[i]
		if indirect {
			names, err := EntryExtensions(entry).CertificateIssuer()
			if err != nil {
				return nil, nil, err
			}
			for _, gn := range names {
				if gn.Tag == GeneralNameDirectory {
					issuer = gn.Value
					break
				}
			}
		}
		if entry.SerialNumber != nil && serial != nil && entry.SerialNumber.Cmp(serial) == 0 {
			return entry, issuer, nil
		}
	}
	return nil, nil, nil
}

// permitsCRLSign reports whether cert has no keyUsage or one asserting cRLSign.
func permitsCRLSign(cert *x509.Certificate) bool {
	ku, present, err := CertificateExtensions(cert).KeyUsage()
	if err != nil {
		return false
	}
	return !present || ku&x509.KeyUsageCRLSign != 0
}

func containsCert(certs []*x509.Certificate, cert *x509.Certificate) bool {
	for _, c := range certs {
		if CompareCertificates(c, cert) {
			return true
		}
	}
	return false
}
