package pkitest

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

var (
	oidCertificatePolicies   = asn1.ObjectIdentifier{2, 5, 29, 32}
	oidPolicyMappings        = asn1.ObjectIdentifier{2, 5, 29, 33}
	oidPolicyConstraints     = asn1.ObjectIdentifier{2, 5, 29, 36}
	oidInhibitAnyPolicy      = asn1.ObjectIdentifier{2, 5, 29, 54}
	oidNameConstraints       = asn1.ObjectIdentifier{2, 5, 29, 30}
	oidCRLDistributionPoints = asn1.ObjectIdentifier{2, 5, 29, 31}
	oidFreshestCRL           = asn1.ObjectIdentifier{2, 5, 29, 46}
	oidSubjectAltName        = asn1.ObjectIdentifier{2, 5, 29, 17}
	oidIssuerAltName         = asn1.ObjectIdentifier{2, 5, 29, 18}
	oidIssuingDP             = asn1.ObjectIdentifier{2, 5, 29, 28}
	oidDeltaCRLIndicator     = asn1.ObjectIdentifier{2, 5, 29, 27}
	oidCertificateIssuer     = asn1.ObjectIdentifier{2, 5, 29, 29}
	oidReasonCode            = asn1.ObjectIdentifier{2, 5, 29, 21}
	oidDateOfCertGen         = asn1.ObjectIdentifier{1, 3, 36, 8, 3, 1}
)

// OID parses a dotted-decimal object identifier.
func OID(dotted string) asn1.ObjectIdentifier {
	parts := strings.Split(dotted, ".")
	out := make(asn1.ObjectIdentifier, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			panic(err)
		}
		out[i] = n
	}
	return out
}

func build(f func(b *cryptobyte.Builder)) []byte {
	var b cryptobyte.Builder
	f(&b)
	return b.BytesOrPanic()
}

// PoliciesExtension encodes certificatePolicies without qualifiers.
func PoliciesExtension(critical bool, oids ...string) pkix.Extension {
	return pkix.Extension{Id: oidCertificatePolicies, Critical: critical, Value: build(func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			for _, o := range oids {
				b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
					b.AddASN1ObjectIdentifier(OID(o))
				})
			}
		})
	})}
}

// PolicyMappingsExtension encodes policyMappings from issuer/subject pairs.
func PolicyMappingsExtension(pairs ...[2]string) pkix.Extension {
	return pkix.Extension{Id: oidPolicyMappings, Critical: true, Value: build(func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			for _, p := range pairs {
				b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
					b.AddASN1ObjectIdentifier(OID(p[0]))
					b.AddASN1ObjectIdentifier(OID(p[1]))
				})
			}
		})
	})}
}

// PolicyConstraintsExtension encodes policyConstraints; a negative value omits the field.
func PolicyConstraintsExtension(requireExplicitPolicy, inhibitPolicyMapping int) pkix.Extension {
	return pkix.Extension{Id: oidPolicyConstraints, Critical: true, Value: build(func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			if requireExplicitPolicy >= 0 {
				b.AddASN1Int64WithTag(int64(requireExplicitPolicy), cbasn1.Tag(0).ContextSpecific())
			}
			if inhibitPolicyMapping >= 0 {
				b.AddASN1Int64WithTag(int64(inhibitPolicyMapping), cbasn1.Tag(1).ContextSpecific())
			}
		})
	})}
}

// InhibitAnyPolicyExtension encodes inhibitAnyPolicy.
func InhibitAnyPolicyExtension(skipCerts int) pkix.Extension {
	return pkix.Extension{Id: oidInhibitAnyPolicy, Critical: true, Value: build(func(b *cryptobyte.Builder) {
		b.AddASN1Int64(int64(skipCerts))
	})}
}

// NameConstraintsExtension encodes nameConstraints. A nil list omits the field.
func NameConstraintsExtension(permitted, excluded []Name) pkix.Extension {
	subtrees := func(b *cryptobyte.Builder, tag int, names []Name) {
		if names == nil {
			return
		}
		b.AddASN1(cbasn1.Tag(tag).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
			for _, n := range names {
				b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
					n.add(b)
				})
			}
		})
	}
	return pkix.Extension{Id: oidNameConstraints, Critical: true, Value: build(func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			subtrees(b, 0, permitted)
			subtrees(b, 1, excluded)
		})
	})}
}

func distributionPoints(id asn1.ObjectIdentifier, dps []DistributionPoint) pkix.Extension {
	return pkix.Extension{Id: id, Value: build(func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			for _, dp := range dps {
				b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
					if len(dp.FullName) > 0 {
						addFullName(b, dp.FullName)
					}
					if dp.Reasons != 0 {
						addReasonFlags(b, cbasn1.Tag(1).ContextSpecific(), dp.Reasons)
					}
					if len(dp.CRLIssuer) > 0 {
						b.AddASN1(cbasn1.Tag(2).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
							addNames(b, dp.CRLIssuer)
						})
					}
				})
			}
		})
	})}
}

// CRLDistributionPointsExtension encodes cRLDistributionPoints.
func CRLDistributionPointsExtension(dps ...DistributionPoint) pkix.Extension {
	return distributionPoints(oidCRLDistributionPoints, dps)
}

// FreshestCRLExtension encodes freshestCRL.
func FreshestCRLExtension(dps ...DistributionPoint) pkix.Extension {
	return distributionPoints(oidFreshestCRL, dps)
}

func generalNames(id asn1.ObjectIdentifier, critical bool, names []Name) pkix.Extension {
	return pkix.Extension{Id: id, Critical: critical, Value: build(func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			addNames(b, names)
		})
	})}
}

// SubjectAltNameExtension encodes subjectAltName.
func SubjectAltNameExtension(names ...Name) pkix.Extension {
	return generalNames(oidSubjectAltName, false, names)
}

// IssuerAltNameExtension encodes issuerAltName.
func IssuerAltNameExtension(names ...Name) pkix.Extension {
	return generalNames(oidIssuerAltName, false, names)
}

// CertificateIssuerExtension encodes the certificateIssuer CRL entry extension.
func CertificateIssuerExtension(names ...Name) pkix.Extension {
	return generalNames(oidCertificateIssuer, true, names)
}

// IssuingDistributionPointExtension encodes issuingDistributionPoint.
func IssuingDistributionPointExtension(idp IssuingDistributionPoint) pkix.Extension {
	return pkix.Extension{Id: oidIssuingDP, Critical: true, Value: build(func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			switch {
			case len(idp.FullName) > 0:
				addFullName(b, idp.FullName)
			case len(idp.RelativeName) > 0:
				rdn, err := asn1.Marshal(pkix.RelativeDistinguishedNameSET(idp.RelativeName))
				if err != nil {
					b.SetError(err)
					return
				}
				b.AddASN1(cbasn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
					// Replace the universal SET tag with [1] IMPLICIT.
					b.AddASN1(cbasn1.Tag(1).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
						set := cryptobyte.String(rdn)
						var body cryptobyte.String
						set.ReadASN1(&body, cbasn1.SET)
						b.AddBytes(body)
					})
				})
			}
			addImplicitBool(b, 1, idp.OnlyContainsUserCerts)
			addImplicitBool(b, 2, idp.OnlyContainsCACerts)
			if idp.OnlySomeReasons != 0 {
				addReasonFlags(b, cbasn1.Tag(3).ContextSpecific(), idp.OnlySomeReasons)
			}
			addImplicitBool(b, 4, idp.IndirectCRL)
			addImplicitBool(b, 5, idp.OnlyContainsAttributeCerts)
		})
	})}
}

// DeltaCRLIndicatorExtension encodes deltaCRLIndicator with the base CRL number.
func DeltaCRLIndicatorExtension(base int64) pkix.Extension {
	return pkix.Extension{Id: oidDeltaCRLIndicator, Critical: true, Value: build(func(b *cryptobyte.Builder) {
		b.AddASN1Int64(base)
	})}
}

// ReasonCodeExtension encodes the reasonCode CRL entry extension.
func ReasonCodeExtension(reason int) pkix.Extension {
	return pkix.Extension{Id: oidReasonCode, Value: build(func(b *cryptobyte.Builder) {
		b.AddASN1Enum(int64(reason))
	})}
}

// DateOfCertGenExtension encodes the dateOfCertGen extension.
func DateOfCertGenExtension(t time.Time) pkix.Extension {
	return pkix.Extension{Id: oidDateOfCertGen, Value: build(func(b *cryptobyte.Builder) {
		b.AddASN1GeneralizedTime(t.UTC())
	})}
}
