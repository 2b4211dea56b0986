// Package certvalidator provides X.509 certificate path validation.
// This file contains typed accessors over certificate and CRL extensions.
package certvalidator

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// BasicConstraints is the decoded basicConstraints extension.
type BasicConstraints struct {
	IsCA bool
	// PathLen is -1 when pathLenConstraint is absent.
	PathLen int
}

// PolicyQualifier is an opaque policy qualifier.
type PolicyQualifier struct {
	ID  string
	Raw []byte
}

// PolicyInformation is one entry of the certificatePolicies extension.
type PolicyInformation struct {
	Policy     string
	Qualifiers []PolicyQualifier
}

// PolicyMapping maps an issuer domain policy to a subject domain policy.
type PolicyMapping struct {
	IssuerDomainPolicy  string
	SubjectDomainPolicy string
}

// PolicyConstraints is the decoded policyConstraints extension. Absent fields are -1.
type PolicyConstraints struct {
	RequireExplicitPolicy int
	InhibitPolicyMapping  int
}

// GeneralSubtree is one subtree of a nameConstraints extension.
type GeneralSubtree struct {
	Base GeneralName
}

// NameConstraints is the decoded nameConstraints extension.
type NameConstraints struct {
	Permitted []GeneralSubtree
	// PermittedPresent distinguishes an absent permittedSubtrees from an empty one.
	PermittedPresent bool
	Excluded         []GeneralSubtree
}

// DistributionPointName is the name of a CRL distribution point.
type DistributionPointName struct {
	FullName []GeneralName
	// RelativeName is the DER of nameRelativeToCRLIssuer, if used.
	RelativeName []byte
}

// DistributionPoint is one entry of cRLDistributionPoints or freshestCRL.
type DistributionPoint struct {
	Name *DistributionPointName
	// Reasons is nil when the reasons field is absent.
	Reasons   *ReasonsMask
	CRLIssuer []GeneralName
}

// IssuingDistributionPoint is the decoded issuingDistributionPoint CRL extension.
type IssuingDistributionPoint struct {
	Name                       *DistributionPointName
	OnlyContainsUserCerts      bool
	OnlyContainsCACerts        bool
	OnlySomeReasons            *ReasonsMask
	IndirectCRL                bool
	OnlyContainsAttributeCerts bool
	// Raw is the extension value, used for equality between complete and delta CRLs.
	Raw []byte
}

// AuthorityKeyIdentifier is the decoded authorityKeyIdentifier extension.
type AuthorityKeyIdentifier struct {
	KeyIdentifier []byte
	Issuer        []GeneralName
	SerialNumber  *big.Int
}

// ExtensionView provides typed, lazily parsed access to an extension list.
//
// Accessors return nil (or a zero value and false) when the extension is
// absent and a MalformedExtension error when its DER does not decode.
type ExtensionView struct {
	exts []pkix.Extension
}

// CertificateExtensions returns the extension view of a certificate.
func CertificateExtensions(cert *x509.Certificate) ExtensionView {
	return ExtensionView{exts: cert.Extensions}
}

// CRLExtensions returns the extension view of a CRL.
func CRLExtensions(crl *x509.RevocationList) ExtensionView {
	return ExtensionView{exts: crl.Extensions}
}

// EntryExtensions returns the extension view of a revoked CRL entry.
func EntryExtensions(entry *x509.RevocationListEntry) ExtensionView {
	return ExtensionView{exts: entry.Extensions}
}

// Lookup returns the raw extension with the given identifier.
func (v ExtensionView) Lookup(oid asn1.ObjectIdentifier) (pkix.Extension, bool) {
	for _, ext := range v.exts {
		if ext.Id.Equal(oid) {
			return ext, true
		}
	}
	return pkix.Extension{}, false
}

// Has reports whether the extension is present.
func (v ExtensionView) Has(oid asn1.ObjectIdentifier) bool {
	_, ok := v.Lookup(oid)
	return ok
}

// IsCritical reports whether the extension is present and marked critical.
func (v ExtensionView) IsCritical(oid asn1.ObjectIdentifier) bool {
	ext, ok := v.Lookup(oid)
	return ok && ext.Critical
}

// CriticalOIDs returns the identifiers of all critical extensions.
func (v ExtensionView) CriticalOIDs() OIDSet {
	return criticalExtensionOIDs(v.exts)
}

func malformed(oid asn1.ObjectIdentifier, format string, args ...interface{}) error {
	return NewValidationError(KindMalformedExtension, -1,
		fmt.Sprintf("extension %s could not be decoded", oid), fmt.Errorf(format, args...))
}

// BasicConstraints decodes basicConstraints.
func (v ExtensionView) BasicConstraints() (*BasicConstraints, error) {
	ext, ok := v.Lookup(OIDBasicConstraints)
	if !ok {
		return nil, nil
	}
	input := cryptobyte.String(ext.Value)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, malformed(ext.Id, "invalid basic constraints sequence")
	}
	bc := &BasicConstraints{PathLen: -1}
	if seq.PeekASN1Tag(cbasn1.BOOLEAN) {
		if !seq.ReadASN1Boolean(&bc.IsCA) {
			return nil, malformed(ext.Id, "invalid cA flag")
		}
	}
	if seq.PeekASN1Tag(cbasn1.INTEGER) {
		var pathLen int
		if !seq.ReadASN1Integer(&pathLen) || pathLen < 0 {
			return nil, malformed(ext.Id, "invalid pathLenConstraint")
		}
		bc.PathLen = pathLen
	}
	if !seq.Empty() {
		return nil, malformed(ext.Id, "trailing data")
	}
	return bc, nil
}

// KeyUsage decodes keyUsage. The boolean is false when the extension is absent.
func (v ExtensionView) KeyUsage() (x509.KeyUsage, bool, error) {
	ext, ok := v.Lookup(OIDKeyUsage)
	if !ok {
		return 0, false, nil
	}
	input := cryptobyte.String(ext.Value)
	var bits asn1.BitString
	if !input.ReadASN1BitString(&bits) || !input.Empty() {
		return 0, true, malformed(ext.Id, "invalid key usage bit string")
	}
	var usage int
	for i := 0; i < 9; i++ {
		if bits.At(i) != 0 {
			usage |= 1 << uint(i)
		}
	}
	return x509.KeyUsage(usage), true, nil
}

// CertificatePolicies decodes certificatePolicies. The slice is nil when the
// extension is absent.
func (v ExtensionView) CertificatePolicies() ([]PolicyInformation, error) {
	ext, ok := v.Lookup(OIDCertificatePolicies)
	if !ok {
		return nil, nil
	}
	input := cryptobyte.String(ext.Value)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, malformed(ext.Id, "invalid policies sequence")
	}
	out := []PolicyInformation{}
	for !seq.Empty() {
		var (
			info cryptobyte.String
			oid  asn1.ObjectIdentifier
		)
		if !seq.ReadASN1(&info, cbasn1.SEQUENCE) || !info.ReadASN1ObjectIdentifier(&oid) {
			return nil, malformed(ext.Id, "invalid policy information")
		}
		pi := PolicyInformation{Policy: oid.String()}
		if !info.Empty() {
			var quals cryptobyte.String
			if !info.ReadASN1(&quals, cbasn1.SEQUENCE) || !info.Empty() {
				return nil, malformed(ext.Id, "invalid policy qualifiers")
			}
			for !quals.Empty() {
				var (
					q    cryptobyte.String
					qid  asn1.ObjectIdentifier
					full cryptobyte.String
				)
				if !quals.ReadASN1Element(&full, cbasn1.SEQUENCE) {
					return nil, malformed(ext.Id, "invalid policy qualifier")
				}
				elem := full
				if !elem.ReadASN1(&q, cbasn1.SEQUENCE) || !q.ReadASN1ObjectIdentifier(&qid) {
					return nil, malformed(ext.Id, "invalid policy qualifier id")
				}
				pi.Qualifiers = append(pi.Qualifiers, PolicyQualifier{ID: qid.String(), Raw: []byte(full)})
			}
		}
		out = append(out, pi)
	}
	return out, nil
}

// PolicyMappings decodes policyMappings.
func (v ExtensionView) PolicyMappings() ([]PolicyMapping, error) {
	ext, ok := v.Lookup(OIDPolicyMappings)
	if !ok {
		return nil, nil
	}
	input := cryptobyte.String(ext.Value)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, malformed(ext.Id, "invalid mappings sequence")
	}
	var out []PolicyMapping
	for !seq.Empty() {
		var pair cryptobyte.String
		var issuerOID, subjOID asn1.ObjectIdentifier
		if !seq.ReadASN1(&pair, cbasn1.SEQUENCE) ||
			!pair.ReadASN1ObjectIdentifier(&issuerOID) ||
			!pair.ReadASN1ObjectIdentifier(&subjOID) || !pair.Empty() {
			return nil, malformed(ext.Id, "invalid policy mapping")
		}
		out = append(out, PolicyMapping{IssuerDomainPolicy: issuerOID.String(), SubjectDomainPolicy: subjOID.String()})
	}
	return out, nil
}

// PolicyConstraints decodes policyConstraints.
func (v ExtensionView) PolicyConstraints() (*PolicyConstraints, error) {
	ext, ok := v.Lookup(OIDPolicyConstraints)
	if !ok {
		return nil, nil
	}
	input := cryptobyte.String(ext.Value)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, malformed(ext.Id, "invalid policy constraints sequence")
	}
	pc := &PolicyConstraints{RequireExplicitPolicy: -1, InhibitPolicyMapping: -1}
	tagRequire := cbasn1.Tag(0).ContextSpecific()
	tagInhibit := cbasn1.Tag(1).ContextSpecific()
	if seq.PeekASN1Tag(tagRequire) {
		if !readImplicitInt(&seq, tagRequire, &pc.RequireExplicitPolicy) {
			return nil, malformed(ext.Id, "invalid requireExplicitPolicy")
		}
	}
	if seq.PeekASN1Tag(tagInhibit) {
		if !readImplicitInt(&seq, tagInhibit, &pc.InhibitPolicyMapping) {
			return nil, malformed(ext.Id, "invalid inhibitPolicyMapping")
		}
	}
	if !seq.Empty() {
		return nil, malformed(ext.Id, "trailing data")
	}
	return pc, nil
}

// readImplicitInt reads a non-negative INTEGER carried under an implicit tag.
func readImplicitInt(s *cryptobyte.String, tag cbasn1.Tag, out *int) bool {
	var v int64
	if !s.ReadASN1Int64WithTag(&v, tag) || v < 0 {
		return false
	}
	*out = int(v)
	return true
}

// InhibitAnyPolicy decodes inhibitAnyPolicy. The boolean is false when absent.
func (v ExtensionView) InhibitAnyPolicy() (int, bool, error) {
	ext, ok := v.Lookup(OIDInhibitAnyPolicy)
	if !ok {
		return 0, false, nil
	}
	input := cryptobyte.String(ext.Value)
	var skip int
	if !input.ReadASN1Integer(&skip) || !input.Empty() || skip < 0 {
		return 0, true, malformed(ext.Id, "invalid skipCerts")
	}
	return skip, true, nil
}

// NameConstraints decodes nameConstraints.
func (v ExtensionView) NameConstraints() (*NameConstraints, error) {
	ext, ok := v.Lookup(OIDNameConstraints)
	if !ok {
		return nil, nil
	}
	input := cryptobyte.String(ext.Value)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, malformed(ext.Id, "invalid name constraints sequence")
	}
	nc := &NameConstraints{}
	tagPermitted := cbasn1.Tag(0).ContextSpecific().Constructed()
	tagExcluded := cbasn1.Tag(1).ContextSpecific().Constructed()
	var err error
	if seq.PeekASN1Tag(tagPermitted) {
		var body cryptobyte.String
		if !seq.ReadASN1(&body, tagPermitted) {
			return nil, malformed(ext.Id, "invalid permittedSubtrees")
		}
		nc.PermittedPresent = true
		if nc.Permitted, err = readSubtrees(body); err != nil {
			return nil, malformed(ext.Id, "%v", err)
		}
	}
	if seq.PeekASN1Tag(tagExcluded) {
		var body cryptobyte.String
		if !seq.ReadASN1(&body, tagExcluded) {
			return nil, malformed(ext.Id, "invalid excludedSubtrees")
		}
		if nc.Excluded, err = readSubtrees(body); err != nil {
			return nil, malformed(ext.Id, "%v", err)
		}
	}
	if !seq.Empty() {
		return nil, malformed(ext.Id, "trailing data")
	}
	return nc, nil
}

func readSubtrees(body cryptobyte.String) ([]GeneralSubtree, error) {
	var out []GeneralSubtree
	for !body.Empty() {
		var subtree cryptobyte.String
		if !body.ReadASN1(&subtree, cbasn1.SEQUENCE) {
			return nil, fmt.Errorf("invalid general subtree")
		}
		base, err := readGeneralName(&subtree)
		if err != nil {
			return nil, err
		}
		// minimum and maximum are ignored; RFC 5280 fixes them at 0 and absent.
		out = append(out, GeneralSubtree{Base: base})
	}
	return out, nil
}

// SubjectAltNames decodes subjectAltName.
func (v ExtensionView) SubjectAltNames() ([]GeneralName, error) {
	return v.generalNamesExtension(OIDSubjectAltName)
}

// IssuerAltNames decodes issuerAltName.
func (v ExtensionView) IssuerAltNames() ([]GeneralName, error) {
	return v.generalNamesExtension(OIDIssuerAltName)
}

// CertificateIssuer decodes the certificateIssuer CRL entry extension.
func (v ExtensionView) CertificateIssuer() ([]GeneralName, error) {
	return v.generalNamesExtension(OIDCertificateIssuer)
}

func (v ExtensionView) generalNamesExtension(oid asn1.ObjectIdentifier) ([]GeneralName, error) {
	ext, ok := v.Lookup(oid)
	if !ok {
		return nil, nil
	}
	input := cryptobyte.String(ext.Value)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, malformed(ext.Id, "invalid general names sequence")
	}
	names, err := readGeneralNames(seq)
	if err != nil {
		return nil, malformed(ext.Id, "%v", err)
	}
	return names, nil
}

// CRLDistributionPoints decodes cRLDistributionPoints.
func (v ExtensionView) CRLDistributionPoints() ([]DistributionPoint, error) {
	return v.distributionPoints(OIDCRLDistributionPoints)
}

// FreshestCRL decodes freshestCRL.
func (v ExtensionView) FreshestCRL() ([]DistributionPoint, error) {
	return v.distributionPoints(OIDFreshestCRL)
}

func (v ExtensionView) distributionPoints(oid asn1.ObjectIdentifier) ([]DistributionPoint, error) {
	ext, ok := v.Lookup(oid)
	if !ok {
		return nil, nil
	}
	input := cryptobyte.String(ext.Value)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, malformed(ext.Id, "invalid distribution points sequence")
	}
	var out []DistributionPoint
	tagName := cbasn1.Tag(0).ContextSpecific().Constructed()
	tagReasons := cbasn1.Tag(1).ContextSpecific()
	tagIssuer := cbasn1.Tag(2).ContextSpecific().Constructed()
	for !seq.Empty() {
		var dpSeq cryptobyte.String
		if !seq.ReadASN1(&dpSeq, cbasn1.SEQUENCE) {
			return nil, malformed(ext.Id, "invalid distribution point")
		}
		var dp DistributionPoint
		if dpSeq.PeekASN1Tag(tagName) {
			var body cryptobyte.String
			if !dpSeq.ReadASN1(&body, tagName) {
				return nil, malformed(ext.Id, "invalid distribution point name")
			}
			name, err := readDistributionPointName(body)
			if err != nil {
				return nil, malformed(ext.Id, "%v", err)
			}
			dp.Name = name
		}
		if dpSeq.PeekASN1Tag(tagReasons) {
			mask, err := readReasonFlags(&dpSeq, tagReasons)
			if err != nil {
				return nil, malformed(ext.Id, "%v", err)
			}
			dp.Reasons = &mask
		}
		if dpSeq.PeekASN1Tag(tagIssuer) {
			var body cryptobyte.String
			if !dpSeq.ReadASN1(&body, tagIssuer) {
				return nil, malformed(ext.Id, "invalid cRLIssuer")
			}
			names, err := readGeneralNames(body)
			if err != nil {
				return nil, malformed(ext.Id, "%v", err)
			}
			dp.CRLIssuer = names
		}
		if !dpSeq.Empty() {
			return nil, malformed(ext.Id, "trailing data in distribution point")
		}
		out = append(out, dp)
	}
	return out, nil
}

// readDistributionPointName decodes the CHOICE inside an explicit [0] wrapper.
func readDistributionPointName(body cryptobyte.String) (*DistributionPointName, error) {
	tagFull := cbasn1.Tag(0).ContextSpecific().Constructed()
	tagRelative := cbasn1.Tag(1).ContextSpecific().Constructed()
	name := &DistributionPointName{}
	switch {
	case body.PeekASN1Tag(tagFull):
		var names cryptobyte.String
		if !body.ReadASN1(&names, tagFull) {
			return nil, fmt.Errorf("invalid fullName")
		}
		gns, err := readGeneralNames(names)
		if err != nil {
			return nil, err
		}
		name.FullName = gns
	case body.PeekASN1Tag(tagRelative):
		var rdn cryptobyte.String
		if !body.ReadASN1Element(&rdn, tagRelative) {
			return nil, fmt.Errorf("invalid nameRelativeToCRLIssuer")
		}
		name.RelativeName = []byte(rdn)
	default:
		return nil, fmt.Errorf("unknown distribution point name form")
	}
	if !body.Empty() {
		return nil, fmt.Errorf("trailing data in distribution point name")
	}
	return name, nil
}

// readReasonFlags reads a ReasonFlags BIT STRING carried under an implicit tag.
func readReasonFlags(s *cryptobyte.String, tag cbasn1.Tag) (ReasonsMask, error) {
	var body cryptobyte.String
	if !s.ReadASN1(&body, tag) || len(body) == 0 {
		return 0, fmt.Errorf("invalid reason flags")
	}
	padding := int(body[0])
	data := body[1:]
	if padding > 7 || (len(data) == 0 && padding != 0) {
		return 0, fmt.Errorf("invalid reason flags padding")
	}
	bits := asn1.BitString{Bytes: data, BitLength: len(data)*8 - padding}
	var mask ReasonsMask
	for i := 0; i < reasonFlagCount; i++ {
		if bits.At(i) != 0 {
			mask |= 1 << uint(i)
		}
	}
	return mask, nil
}

// IssuingDistributionPoint decodes the issuingDistributionPoint CRL extension.
func (v ExtensionView) IssuingDistributionPoint() (*IssuingDistributionPoint, error) {
	ext, ok := v.Lookup(OIDIssuingDistributionPoint)
	if !ok {
		return nil, nil
	}
	input := cryptobyte.String(ext.Value)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, malformed(ext.Id, "invalid issuing distribution point sequence")
	}
	idp := &IssuingDistributionPoint{Raw: append([]byte{}, ext.Value...)}
	tagName := cbasn1.Tag(0).ContextSpecific().Constructed()
	if seq.PeekASN1Tag(tagName) {
		var body cryptobyte.String
		if !seq.ReadASN1(&body, tagName) {
			return nil, malformed(ext.Id, "invalid distribution point name")
		}
		name, err := readDistributionPointName(body)
		if err != nil {
			return nil, malformed(ext.Id, "%v", err)
		}
		idp.Name = name
	}
	flags := []struct {
		tag int
		dst *bool
	}{
		{1, &idp.OnlyContainsUserCerts},
		{2, &idp.OnlyContainsCACerts},
	}
	for _, f := range flags {
		if err := readImplicitBool(&seq, f.tag, f.dst); err != nil {
			return nil, malformed(ext.Id, "%v", err)
		}
	}
	tagReasons := cbasn1.Tag(3).ContextSpecific()
	if seq.PeekASN1Tag(tagReasons) {
		mask, err := readReasonFlags(&seq, tagReasons)
		if err != nil {
			return nil, malformed(ext.Id, "%v", err)
		}
		idp.OnlySomeReasons = &mask
	}
	if err := readImplicitBool(&seq, 4, &idp.IndirectCRL); err != nil {
		return nil, malformed(ext.Id, "%v", err)
	}
	if err := readImplicitBool(&seq, 5, &idp.OnlyContainsAttributeCerts); err != nil {
		return nil, malformed(ext.Id, "%v", err)
	}
	if !seq.Empty() {
		return nil, malformed(ext.Id, "trailing data")
	}
	return idp, nil
}

func readImplicitBool(s *cryptobyte.String, tagNum int, dst *bool) error {
	tag := cbasn1.Tag(tagNum).ContextSpecific()
	if !s.PeekASN1Tag(tag) {
		return nil
	}
	var body cryptobyte.String
	if !s.ReadASN1(&body, tag) || len(body) != 1 {
		return fmt.Errorf("invalid boolean [%d]", tagNum)
	}
	*dst = body[0] != 0
	return nil
}

// AuthorityKeyIdentifier decodes authorityKeyIdentifier.
func (v ExtensionView) AuthorityKeyIdentifier() (*AuthorityKeyIdentifier, error) {
	ext, ok := v.Lookup(OIDAuthorityKeyIdentifier)
	if !ok {
		return nil, nil
	}
	input := cryptobyte.String(ext.Value)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, malformed(ext.Id, "invalid authority key identifier sequence")
	}
	aki := &AuthorityKeyIdentifier{}
	tagKeyID := cbasn1.Tag(0).ContextSpecific()
	tagIssuer := cbasn1.Tag(1).ContextSpecific().Constructed()
	tagSerial := cbasn1.Tag(2).ContextSpecific()
	if seq.PeekASN1Tag(tagKeyID) {
		var kid cryptobyte.String
		if !seq.ReadASN1(&kid, tagKeyID) {
			return nil, malformed(ext.Id, "invalid keyIdentifier")
		}
		aki.KeyIdentifier = append([]byte{}, kid...)
	}
	if seq.PeekASN1Tag(tagIssuer) {
		var body cryptobyte.String
		if !seq.ReadASN1(&body, tagIssuer) {
			return nil, malformed(ext.Id, "invalid authorityCertIssuer")
		}
		names, err := readGeneralNames(body)
		if err != nil {
			return nil, malformed(ext.Id, "%v", err)
		}
		aki.Issuer = names
	}
	if seq.PeekASN1Tag(tagSerial) {
		var body cryptobyte.String
		if !seq.ReadASN1(&body, tagSerial) || len(body) == 0 {
			return nil, malformed(ext.Id, "invalid authorityCertSerialNumber")
		}
		aki.SerialNumber = new(big.Int).SetBytes(body)
	}
	if !seq.Empty() {
		return nil, malformed(ext.Id, "trailing data")
	}
	return aki, nil
}

// SubjectKeyIdentifier decodes subjectKeyIdentifier.
func (v ExtensionView) SubjectKeyIdentifier() ([]byte, error) {
	ext, ok := v.Lookup(OIDSubjectKeyIdentifier)
	if !ok {
		return nil, nil
	}
	input := cryptobyte.String(ext.Value)
	var kid cryptobyte.String
	if !input.ReadASN1(&kid, cbasn1.OCTET_STRING) || !input.Empty() {
		return nil, malformed(ext.Id, "invalid subject key identifier")
	}
	return append([]byte{}, kid...), nil
}

// CRLNumber decodes cRLNumber.
func (v ExtensionView) CRLNumber() (*big.Int, error) {
	return v.bigIntExtension(OIDCRLNumber)
}

// DeltaCRLIndicator decodes deltaCRLIndicator, the base CRL number of a delta CRL.
func (v ExtensionView) DeltaCRLIndicator() (*big.Int, error) {
	return v.bigIntExtension(OIDDeltaCRLIndicator)
}

func (v ExtensionView) bigIntExtension(oid asn1.ObjectIdentifier) (*big.Int, error) {
	ext, ok := v.Lookup(oid)
	if !ok {
		return nil, nil
	}
	input := cryptobyte.String(ext.Value)
	n := new(big.Int)
	if !input.ReadASN1Integer(n) || !input.Empty() {
		return nil, malformed(ext.Id, "invalid integer")
	}
	return n, nil
}

// ReasonCode decodes the reasonCode CRL entry extension. The boolean is false when absent.
func (v ExtensionView) ReasonCode() (CRLReason, bool, error) {
	ext, ok := v.Lookup(OIDCRLReasonCode)
	if !ok {
		return 0, false, nil
	}
	input := cryptobyte.String(ext.Value)
	var code int
	if !input.ReadASN1Enum(&code) || !input.Empty() {
		return 0, true, malformed(ext.Id, "invalid reason code")
	}
	return CRLReason(code), true, nil
}

// DateOfCertGen decodes the ISIS-MTT dateOfCertGen extension. The boolean is false when absent.
func (v ExtensionView) DateOfCertGen() (time.Time, bool, error) {
	ext, ok := v.Lookup(OIDDateOfCertGen)
	if !ok {
		return time.Time{}, false, nil
	}
	input := cryptobyte.String(ext.Value)
	var t time.Time
	if !input.ReadASN1GeneralizedTime(&t) || !input.Empty() {
		return time.Time{}, true, malformed(ext.Id, "invalid generalized time")
	}
	return t, true, nil
}
