// Package certvalidator provides X.509 certificate path validation.
// This file contains signature verification for certificates and CRLs.
package certvalidator

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// Signature validation errors
var (
	// ErrAlgorithmNotSupported is returned when a signature algorithm is not supported.
	ErrAlgorithmNotSupported = errors.New("algorithm not supported")

	// ErrInvalidSignature is returned when signature verification fails.
	ErrInvalidSignature = errors.New("invalid signature")
)

// SignatureAlgorithm represents a signature algorithm family.
type SignatureAlgorithm int

const (
	SigAlgoUnknown SignatureAlgorithm = iota
	SigAlgoRSAPKCS1v15
	SigAlgoRSAPSS
	SigAlgoECDSA
	SigAlgoEd25519
	SigAlgoMLDSA44
	SigAlgoMLDSA65
	SigAlgoMLDSA87
)

// String returns the string representation of the signature algorithm.
func (a SignatureAlgorithm) String() string {
	switch a {
	case SigAlgoRSAPKCS1v15:
		return "rsassa_pkcs1v15"
	case SigAlgoRSAPSS:
		return "rsassa_pss"
	case SigAlgoECDSA:
		return "ecdsa"
	case SigAlgoEd25519:
		return "ed25519"
	case SigAlgoMLDSA44:
		return "ml-dsa-44"
	case SigAlgoMLDSA65:
		return "ml-dsa-65"
	case SigAlgoMLDSA87:
		return "ml-dsa-87"
	default:
		return "unknown"
	}
}

// OIDs for signature algorithms
var (
	OIDRSAEncryption = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	OIDRSAWithSHA1   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 5}
	OIDRSAWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	OIDRSAWithSHA384 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 12}
	OIDRSAWithSHA512 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 13}
	OIDRSAPSS        = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 10}

	OIDECDSAWithSHA1   = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 1}
	OIDECDSAWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	OIDECDSAWithSHA384 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3}
	OIDECDSAWithSHA512 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 4}

	OIDEd25519 = asn1.ObjectIdentifier{1, 3, 101, 112}

	OIDMLDSA44 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 17}
	OIDMLDSA65 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 18}
	OIDMLDSA87 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 19}

	OIDSHA1   = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	OIDSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	OIDSHA384 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	OIDSHA512 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}
)

// GetSignatureAlgorithmFromOID returns the signature algorithm family for an OID.
func GetSignatureAlgorithmFromOID(oid asn1.ObjectIdentifier) SignatureAlgorithm {
	switch {
	case oid.Equal(OIDRSAWithSHA1), oid.Equal(OIDRSAWithSHA256),
		oid.Equal(OIDRSAWithSHA384), oid.Equal(OIDRSAWithSHA512):
		return SigAlgoRSAPKCS1v15
	case oid.Equal(OIDRSAPSS):
		return SigAlgoRSAPSS
	case oid.Equal(OIDECDSAWithSHA1), oid.Equal(OIDECDSAWithSHA256),
		oid.Equal(OIDECDSAWithSHA384), oid.Equal(OIDECDSAWithSHA512):
		return SigAlgoECDSA
	case oid.Equal(OIDEd25519):
		return SigAlgoEd25519
	case oid.Equal(OIDMLDSA44):
		return SigAlgoMLDSA44
	case oid.Equal(OIDMLDSA65):
		return SigAlgoMLDSA65
	case oid.Equal(OIDMLDSA87):
		return SigAlgoMLDSA87
	default:
		return SigAlgoUnknown
	}
}

// GetHashAlgorithmFromOID returns the hash algorithm for a digest OID.
func GetHashAlgorithmFromOID(oid asn1.ObjectIdentifier) crypto.Hash {
	switch {
	case oid.Equal(OIDSHA1):
		return crypto.SHA1
	case oid.Equal(OIDSHA256):
		return crypto.SHA256
	case oid.Equal(OIDSHA384):
		return crypto.SHA384
	case oid.Equal(OIDSHA512):
		return crypto.SHA512
	default:
		return 0
	}
}

// GetHashAlgorithmFromSigOID extracts the hash algorithm from a signature algorithm OID.
func GetHashAlgorithmFromSigOID(oid asn1.ObjectIdentifier) crypto.Hash {
	switch {
	case oid.Equal(OIDRSAWithSHA1), oid.Equal(OIDECDSAWithSHA1):
		return crypto.SHA1
	case oid.Equal(OIDRSAWithSHA256), oid.Equal(OIDECDSAWithSHA256):
		return crypto.SHA256
	case oid.Equal(OIDRSAWithSHA384), oid.Equal(OIDECDSAWithSHA384):
		return crypto.SHA384
	case oid.Equal(OIDRSAWithSHA512), oid.Equal(OIDECDSAWithSHA512):
		return crypto.SHA512
	default:
		return 0
	}
}

// Verifier checks a signature over tbs made with the private key matching pub.
//
// Implementations must be safe for concurrent use.
type Verifier interface {
	Verify(pub crypto.PublicKey, alg pkix.AlgorithmIdentifier, tbs, signature []byte) error
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(pub crypto.PublicKey, alg pkix.AlgorithmIdentifier, tbs, signature []byte) error

// Verify calls f.
func (f VerifierFunc) Verify(pub crypto.PublicKey, alg pkix.AlgorithmIdentifier, tbs, signature []byte) error {
	return f(pub, alg, tbs, signature)
}

// DefaultVerifier verifies RSA, ECDSA, Ed25519 and ML-DSA signatures.
type DefaultVerifier struct{}

// NewDefaultVerifier creates a new default verifier.
func NewDefaultVerifier() *DefaultVerifier {
	return &DefaultVerifier{}
}

// Verify verifies a signature using Go's crypto libraries.
func (v *DefaultVerifier) Verify(pub crypto.PublicKey, alg pkix.AlgorithmIdentifier, tbs, signature []byte) error {
	if pub == nil {
		return fmt.Errorf("%w: no public key", ErrInvalidSignature)
	}
	sigAlgo := GetSignatureAlgorithmFromOID(alg.Algorithm)
	switch sigAlgo {
	case SigAlgoRSAPKCS1v15:
		return v.verifyRSAPKCS1v15(signature, tbs, pub, GetHashAlgorithmFromSigOID(alg.Algorithm))
	case SigAlgoRSAPSS:
		return v.verifyRSAPSS(signature, tbs, pub, alg)
	case SigAlgoECDSA:
		return v.verifyECDSA(signature, tbs, pub, GetHashAlgorithmFromSigOID(alg.Algorithm))
	case SigAlgoEd25519:
		return v.verifyEd25519(signature, tbs, pub)
	case SigAlgoMLDSA44, SigAlgoMLDSA65, SigAlgoMLDSA87:
		return v.verifyMLDSA(signature, tbs, pub, sigAlgo)
	default:
		return fmt.Errorf("%w: %s", ErrAlgorithmNotSupported, alg.Algorithm)
	}
}

func digest(hashAlgo crypto.Hash, data []byte) ([]byte, error) {
	if hashAlgo == 0 || !hashAlgo.Available() {
		return nil, fmt.Errorf("%w: hash %v", ErrAlgorithmNotSupported, hashAlgo)
	}
	h := hashAlgo.New()
	h.Write(data)
	return h.Sum(nil), nil
}

func (v *DefaultVerifier) verifyRSAPKCS1v15(signature, signedData []byte, publicKey crypto.PublicKey, hashAlgo crypto.Hash) error {
	rsaKey, ok := publicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("expected RSA public key, got %T", publicKey)
	}
	hash, err := digest(hashAlgo, signedData)
	if err != nil {
		return err
	}
	if err := rsa.VerifyPKCS1v15(rsaKey, hashAlgo, hash, signature); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// rsaPSSParams represents RSA-PSS parameters.
type rsaPSSParams struct {
	HashAlgorithm    pkix.AlgorithmIdentifier `asn1:"optional,explicit,tag:0"`
	MaskGenAlgorithm pkix.AlgorithmIdentifier `asn1:"optional,explicit,tag:1"`
	SaltLength       int                      `asn1:"optional,explicit,tag:2,default:20"`
	TrailerField     int                      `asn1:"optional,explicit,tag:3,default:1"`
}

func (v *DefaultVerifier) verifyRSAPSS(signature, signedData []byte, publicKey crypto.PublicKey, alg pkix.AlgorithmIdentifier) error {
	rsaKey, ok := publicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("expected RSA public key, got %T", publicKey)
	}
	params := rsaPSSParams{SaltLength: 20}
	if len(alg.Parameters.FullBytes) > 0 {
		if _, err := asn1.Unmarshal(alg.Parameters.FullBytes, &params); err != nil {
			return fmt.Errorf("failed to parse PSS parameters: %w", err)
		}
	}
	hashAlgo := GetHashAlgorithmFromOID(params.HashAlgorithm.Algorithm)
	if hashAlgo == 0 {
		hashAlgo = crypto.SHA1
	}
	hash, err := digest(hashAlgo, signedData)
	if err != nil {
		return err
	}
	opts := &rsa.PSSOptions{SaltLength: params.SaltLength, Hash: hashAlgo}
	if err := rsa.VerifyPSS(rsaKey, hashAlgo, hash, signature, opts); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

func (v *DefaultVerifier) verifyECDSA(signature, signedData []byte, publicKey crypto.PublicKey, hashAlgo crypto.Hash) error {
	ecdsaKey, ok := publicKey.(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("expected ECDSA public key, got %T", publicKey)
	}
	hash, err := digest(hashAlgo, signedData)
	if err != nil {
		return err
	}
	if !ecdsa.VerifyASN1(ecdsaKey, hash, signature) {
		return ErrInvalidSignature
	}
	return nil
}

func (v *DefaultVerifier) verifyEd25519(signature, signedData []byte, publicKey crypto.PublicKey) error {
	ed25519Key, ok := publicKey.(ed25519.PublicKey)
	if !ok {
		return fmt.Errorf("expected Ed25519 public key, got %T", publicKey)
	}
	if !ed25519.Verify(ed25519Key, signedData, signature) {
		return ErrInvalidSignature
	}
	return nil
}

func (v *DefaultVerifier) verifyMLDSA(signature, signedData []byte, publicKey crypto.PublicKey, algo SignatureAlgorithm) error {
	var ok bool
	switch pub := publicKey.(type) {
	case *mldsa44.PublicKey:
		ok = algo == SigAlgoMLDSA44 && mldsa44.Verify(pub, signedData, nil, signature)
	case *mldsa65.PublicKey:
		ok = algo == SigAlgoMLDSA65 && mldsa65.Verify(pub, signedData, nil, signature)
	case *mldsa87.PublicKey:
		ok = algo == SigAlgoMLDSA87 && mldsa87.Verify(pub, signedData, nil, signature)
	default:
		return fmt.Errorf("expected ML-DSA public key, got %T", publicKey)
	}
	if !ok {
		return ErrInvalidSignature
	}
	return nil
}

// parseMLDSAPublicKey decodes the raw key bytes of an ML-DSA SubjectPublicKeyInfo.
func parseMLDSAPublicKey(algo SignatureAlgorithm, data []byte) (crypto.PublicKey, error) {
	switch algo {
	case SigAlgoMLDSA44:
		pub := new(mldsa44.PublicKey)
		if err := pub.UnmarshalBinary(data); err != nil {
			return nil, err
		}
		return pub, nil
	case SigAlgoMLDSA65:
		pub := new(mldsa65.PublicKey)
		if err := pub.UnmarshalBinary(data); err != nil {
			return nil, err
		}
		return pub, nil
	case SigAlgoMLDSA87:
		pub := new(mldsa87.PublicKey)
		if err := pub.UnmarshalBinary(data); err != nil {
			return nil, err
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAlgorithmNotSupported, algo)
	}
}

// workingKeyOf returns the public key of cert. Keys the x509 package does not
// decode are read from the raw SubjectPublicKeyInfo.
func workingKeyOf(cert *x509.Certificate) crypto.PublicKey {
	if cert.PublicKey != nil {
		return cert.PublicKey
	}
	pub, err := parseSPKI(cert.RawSubjectPublicKeyInfo)
	if err != nil {
		return nil
	}
	return pub
}

func parseSPKI(spki []byte) (crypto.PublicKey, error) {
	input := cryptobyte.String(spki)
	var (
		seq, algSeq cryptobyte.String
		oid         asn1.ObjectIdentifier
		bits        asn1.BitString
	)
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) ||
		!seq.ReadASN1(&algSeq, cbasn1.SEQUENCE) ||
		!algSeq.ReadASN1ObjectIdentifier(&oid) ||
		!seq.ReadASN1BitString(&bits) {
		return nil, errors.New("invalid subject public key info")
	}
	algo := GetSignatureAlgorithmFromOID(oid)
	switch algo {
	case SigAlgoMLDSA44, SigAlgoMLDSA65, SigAlgoMLDSA87:
		return parseMLDSAPublicKey(algo, bits.RightAlign())
	}
	return x509.ParsePKIXPublicKey(spki)
}

// outerSignatureAlgorithm reads the signatureAlgorithm that follows the TBS
// part of a signed certificate or CRL.
func outerSignatureAlgorithm(raw []byte) (pkix.AlgorithmIdentifier, error) {
	input := cryptobyte.String(raw)
	var (
		outer cryptobyte.String
		alg   cryptobyte.String
	)
	if !input.ReadASN1(&outer, cbasn1.SEQUENCE) ||
		!outer.SkipASN1(cbasn1.SEQUENCE) ||
		!outer.ReadASN1Element(&alg, cbasn1.SEQUENCE) {
		return pkix.AlgorithmIdentifier{}, errors.New("invalid signed structure")
	}
	var ai pkix.AlgorithmIdentifier
	if _, err := asn1.Unmarshal(alg, &ai); err != nil {
		return pkix.AlgorithmIdentifier{}, err
	}
	return ai, nil
}

// verifyCertificate checks the signature of cert under pub.
func verifyCertificate(v Verifier, cert *x509.Certificate, pub crypto.PublicKey) error {
	alg, err := outerSignatureAlgorithm(cert.Raw)
	if err != nil {
		return err
	}
	return v.Verify(pub, alg, cert.RawTBSCertificate, cert.Signature)
}

// verifyCRL checks the signature of crl under pub.
func verifyCRL(v Verifier, crl *x509.RevocationList, pub crypto.PublicKey) error {
	alg, err := outerSignatureAlgorithm(crl.Raw)
	if err != nil {
		return err
	}
	return v.Verify(pub, alg, crl.RawTBSRevocationList, crl.Signature)
}
