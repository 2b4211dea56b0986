package certvalidator

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rsaKeyOfSize(bits int) *rsa.PublicKey {
	return &rsa.PublicKey{N: new(big.Int).Lsh(big.NewInt(1), uint(bits-1)), E: 65537}
}

func TestDisallowWeakAlgorithmsPolicy(t *testing.T) {
	policy := NewDisallowWeakAlgorithmsPolicy()
	tests := []struct {
		name    string
		alg     asn1.ObjectIdentifier
		pub     crypto.PublicKey
		allowed bool
	}{
		{"rsa sha256 2048", OIDRSAWithSHA256, rsaKeyOfSize(2048), true},
		{"rsa sha256 1024", OIDRSAWithSHA256, rsaKeyOfSize(1024), false},
		{"rsa sha1", OIDRSAWithSHA1, rsaKeyOfSize(4096), false},
		{"rsa pss short key", OIDRSAPSS, rsaKeyOfSize(1024), false},
		{"ecdsa p256", OIDECDSAWithSHA256, &ecdsa.PublicKey{Curve: elliptic.P256()}, true},
		{"ecdsa p224", OIDECDSAWithSHA256, &ecdsa.PublicKey{Curve: elliptic.P224()}, false},
		{"ecdsa sha1", OIDECDSAWithSHA1, &ecdsa.PublicKey{Curve: elliptic.P384()}, false},
		{"ed25519", OIDEd25519, ed25519.PublicKey(make([]byte, ed25519.PublicKeySize)), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := policy.SignatureAlgorithmAllowed(pkix.AlgorithmIdentifier{Algorithm: tc.alg}, tc.pub)
			assert.Equal(t, tc.allowed, c.Allowed, c.FailureReason)
			if !tc.allowed {
				assert.NotEmpty(t, c.FailureReason)
			}
		})
	}

	assert.False(t, policy.DigestAlgorithmAllowed(crypto.MD5).Allowed)
	assert.True(t, policy.DigestAlgorithmAllowed(crypto.SHA384).Allowed)
	assert.True(t, AcceptAllAlgorithmsPolicy{}.DigestAlgorithmAllowed(crypto.MD5).Allowed)
}

func TestPolicyVerifier(t *testing.T) {
	var calls int
	next := VerifierFunc(func(crypto.PublicKey, pkix.AlgorithmIdentifier, []byte, []byte) error {
		calls++
		return nil
	})
	v := NewPolicyVerifier(NewDisallowWeakAlgorithmsPolicy(), next)

	err := v.Verify(rsaKeyOfSize(1024), pkix.AlgorithmIdentifier{Algorithm: OIDRSAWithSHA256}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlgorithmNotAllowed))
	assert.Contains(t, err.Error(), "too small")
	assert.Zero(t, calls, "rejected mechanisms never reach the next verifier")

	require.NoError(t, v.Verify(rsaKeyOfSize(3072), pkix.AlgorithmIdentifier{Algorithm: OIDRSAWithSHA384}, nil, nil))
	assert.Equal(t, 1, calls)

	lenient := NewPolicyVerifier(AcceptAllAlgorithmsPolicy{}, next)
	require.NoError(t, lenient.Verify(rsaKeyOfSize(1024), pkix.AlgorithmIdentifier{Algorithm: OIDRSAWithSHA1}, nil, nil))
	assert.Equal(t, 2, calls)

	assert.NotNil(t, NewPolicyVerifier(AcceptAllAlgorithmsPolicy{}, nil).Next)
}

func TestPublicKeySize(t *testing.T) {
	assert.Equal(t, 2048, publicKeySize(rsaKeyOfSize(2048)))
	assert.Equal(t, 384, publicKeySize(&ecdsa.PublicKey{Curve: elliptic.P384()}))
	assert.Equal(t, 0, publicKeySize(&ecdsa.PublicKey{}))
	assert.Equal(t, 0, publicKeySize(ed25519.PublicKey(nil)))
}
