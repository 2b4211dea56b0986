// Package certvalidator provides X.509 certificate path validation.
// This file contains algorithm usage policies applied before signature checks.
package certvalidator

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509/pkix"
	"errors"
	"fmt"
)

// ErrAlgorithmNotAllowed is returned when an algorithm policy rejects a signature.
var ErrAlgorithmNotAllowed = errors.New("algorithm not allowed")

// DefaultWeakHashAlgos are the digest algorithms rejected by default.
var DefaultWeakHashAlgos = map[crypto.Hash]bool{
	crypto.MD5:  true,
	crypto.SHA1: true,
}

// AlgorithmUsageConstraint is the outcome of an algorithm policy decision.
type AlgorithmUsageConstraint struct {
	Allowed bool
	// FailureReason describes a rejection.
	FailureReason string
}

func allowed() AlgorithmUsageConstraint { return AlgorithmUsageConstraint{Allowed: true} }

func rejected(format string, args ...any) AlgorithmUsageConstraint {
	return AlgorithmUsageConstraint{FailureReason: fmt.Sprintf(format, args...)}
}

// AlgorithmUsagePolicy decides whether a signature mechanism may be used.
type AlgorithmUsagePolicy interface {
	DigestAlgorithmAllowed(algo crypto.Hash) AlgorithmUsageConstraint
	SignatureAlgorithmAllowed(alg pkix.AlgorithmIdentifier, pub crypto.PublicKey) AlgorithmUsageConstraint
}

// DisallowWeakAlgorithmsPolicy forbids weak digests and short keys and allows everything else.
type DisallowWeakAlgorithmsPolicy struct {
	WeakHashAlgos map[crypto.Hash]bool
	// RSAKeySizeThreshold is the minimum RSA modulus size in bits.
	RSAKeySizeThreshold int
	// ECKeySizeThreshold is the minimum curve size in bits.
	ECKeySizeThreshold int
}

// NewDisallowWeakAlgorithmsPolicy creates a policy rejecting MD5, SHA-1,
// RSA keys below 2048 bits and curves below 256 bits.
func NewDisallowWeakAlgorithmsPolicy() *DisallowWeakAlgorithmsPolicy {
	return &DisallowWeakAlgorithmsPolicy{
		WeakHashAlgos:       DefaultWeakHashAlgos,
		RSAKeySizeThreshold: 2048,
		ECKeySizeThreshold:  256,
	}
}

// DigestAlgorithmAllowed checks a digest algorithm.
func (p *DisallowWeakAlgorithmsPolicy) DigestAlgorithmAllowed(algo crypto.Hash) AlgorithmUsageConstraint {
	if p.WeakHashAlgos[algo] {
		return rejected("digest algorithm %v is not allowed", algo)
	}
	return allowed()
}

// SignatureAlgorithmAllowed checks the key size and the digest of a signature mechanism.
func (p *DisallowWeakAlgorithmsPolicy) SignatureAlgorithmAllowed(alg pkix.AlgorithmIdentifier, pub crypto.PublicKey) AlgorithmUsageConstraint {
	family := GetSignatureAlgorithmFromOID(alg.Algorithm)
	size := publicKeySize(pub)
	switch family {
	case SigAlgoRSAPKCS1v15, SigAlgoRSAPSS:
		if size > 0 && size < p.RSAKeySizeThreshold {
			return rejected("key size %d for %s is too small; policy mandates >= %d", size, family, p.RSAKeySizeThreshold)
		}
	case SigAlgoECDSA:
		if size > 0 && size < p.ECKeySizeThreshold {
			return rejected("curve size %d for %s is too small; policy mandates >= %d", size, family, p.ECKeySizeThreshold)
		}
	}

	if h := GetHashAlgorithmFromSigOID(alg.Algorithm); h != 0 {
		if c := p.DigestAlgorithmAllowed(h); !c.Allowed {
			return rejected("digest algorithm %v disqualifies signature mechanism %s", h, alg.Algorithm)
		}
	}
	return allowed()
}

// AcceptAllAlgorithmsPolicy accepts every algorithm.
type AcceptAllAlgorithmsPolicy struct{}

// DigestAlgorithmAllowed always allows.
func (AcceptAllAlgorithmsPolicy) DigestAlgorithmAllowed(crypto.Hash) AlgorithmUsageConstraint {
	return allowed()
}

// SignatureAlgorithmAllowed always allows.
func (AcceptAllAlgorithmsPolicy) SignatureAlgorithmAllowed(pkix.AlgorithmIdentifier, crypto.PublicKey) AlgorithmUsageConstraint {
	return allowed()
}

// PolicyVerifier consults an algorithm policy before delegating to Next.
type PolicyVerifier struct {
	Policy AlgorithmUsagePolicy
	Next   Verifier
}

// NewPolicyVerifier wraps next with policy. A nil next uses the default verifier.
func NewPolicyVerifier(policy AlgorithmUsagePolicy, next Verifier) *PolicyVerifier {
	if next == nil {
		next = NewDefaultVerifier()
	}
	return &PolicyVerifier{Policy: policy, Next: next}
}

// Verify rejects disallowed mechanisms with ErrAlgorithmNotAllowed.
func (v *PolicyVerifier) Verify(pub crypto.PublicKey, alg pkix.AlgorithmIdentifier, tbs, signature []byte) error {
	if c := v.Policy.SignatureAlgorithmAllowed(alg, pub); !c.Allowed {
		return fmt.Errorf("%w: %s", ErrAlgorithmNotAllowed, c.FailureReason)
	}
	return v.Next.Verify(pub, alg, tbs, signature)
}

func publicKeySize(pub crypto.PublicKey) int {
	switch key := pub.(type) {
	case *rsa.PublicKey:
		return key.N.BitLen()
	case *ecdsa.PublicKey:
		if key.Curve != nil {
			return key.Curve.Params().BitSize
		}
	}
	return 0
}
