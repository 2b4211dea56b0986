package certvalidator

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgepadayatti/pkixpath/internal/pkitest"
)

func TestNewValidationContext(t *testing.T) {
	root := pkitest.NewRoot(t, "Root CA")

	t.Run("requires trust anchors", func(t *testing.T) {
		_, err := NewValidationContext()
		assert.ErrorIs(t, err, ErrNoTrustAnchors)
	})

	t.Run("defaults", func(t *testing.T) {
		vc, err := NewValidationContext(WithTrustRoots(root.Cert))
		require.NoError(t, err)
		assert.True(t, vc.RevocationEnabled)
		assert.False(t, vc.UseDeltaCRLs)
		assert.Equal(t, ValidityModelPKIX, vc.ValidityModel)
		assert.Equal(t, NewOIDSet(AnyPolicy), vc.InitialPolicies)
		assert.Equal(t, DefaultMaxPathLength, vc.MaxPathLength)
		assert.Equal(t, 1, vc.TrustAnchors.Count())
	})

	t.Run("empty initial policies mean any policy", func(t *testing.T) {
		vc, err := NewValidationContext(WithTrustRoots(root.Cert), WithInitialPolicies())
		require.NoError(t, err)
		assert.True(t, vc.InitialPolicies.Contains(AnyPolicy))
	})

	t.Run("option errors", func(t *testing.T) {
		_, err := NewValidationContext(WithTrustRoots(root.Cert), WithMaxPathLength(-2))
		assert.Error(t, err)
		_, err = NewValidationContext(WithTrustAnchors(nil))
		assert.Error(t, err)
		_, err = NewValidationContext(WithTrustRoots(root.Cert), WithVerifier(nil))
		assert.Error(t, err)

		vc, err := NewValidationContext(WithTrustRoots(root.Cert), WithMaxPathLength(-1))
		require.NoError(t, err)
		assert.Equal(t, -1, vc.MaxPathLength)
	})
}

func TestValidationDate(t *testing.T) {
	root := pkitest.NewRoot(t, "Root CA")
	clock := clockwork.NewFakeClockAt(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))

	vc, err := NewValidationContext(WithTrustRoots(root.Cert), WithClock(clock))
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), vc.ValidationDate())

	clock.Advance(time.Hour)
	assert.Equal(t, clock.Now(), vc.ValidationDate(), "the clock is read on every call")

	moment := time.Date(2023, 5, 5, 0, 0, 0, 0, time.UTC)
	vc, err = NewValidationContext(WithTrustRoots(root.Cert), WithClock(clock), WithMoment(moment))
	require.NoError(t, err)
	assert.Equal(t, moment, vc.ValidationDate())
	assert.Equal(t, clock.Now(), vc.now(), "now ignores the configured moment")
}

func TestParseValidityModel(t *testing.T) {
	for in, want := range map[string]ValidityModel{
		"":      ValidityModelPKIX,
		"pkix":  ValidityModelPKIX,
		"shell": ValidityModelPKIX,
		"chain": ValidityModelChain,
	} {
		got, err := ParseValidityModel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseValidityModel("hybrid")
	assert.Error(t, err)
	assert.Equal(t, "chain", ValidityModelChain.String())
	assert.Equal(t, "pkix", ValidityModelPKIX.String())
}

func TestExcludedCertificates(t *testing.T) {
	root := pkitest.NewRoot(t, "Root CA")
	ca := root.IssueCA(t, "Issuing CA")

	vc, err := NewValidationContext(WithTrustRoots(root.Cert), WithExcludedCertificates(ca.Cert))
	require.NoError(t, err)
	assert.True(t, vc.isExcluded(ca.Cert))
	assert.False(t, vc.isExcluded(root.Cert))

	off := vc.withRevocation(false)
	assert.False(t, off.RevocationEnabled)
	assert.True(t, vc.RevocationEnabled)
}
