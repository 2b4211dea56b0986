package certvalidator_test

import (
	"context"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgepadayatti/pkixpath/certvalidator"
	"github.com/georgepadayatti/pkixpath/internal/mocks"
	"github.com/georgepadayatti/pkixpath/internal/pkitest"
)

var (
	beforeReference = time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC)
	afterReference  = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
)

func withCRLs(crls ...*x509.RevocationList) []certvalidator.Option {
	return []certvalidator.Option{
		certvalidator.WithRevocation(true),
		certvalidator.WithCRLSources(certvalidator.NewCRLStore(crls...)),
	}
}

func TestRevocationStatus(t *testing.T) {
	root := pkitest.NewRoot(t, "Root CA")
	roots := []*x509.Certificate{root.Cert}

	t.Run("not listed", func(t *testing.T) {
		leaf := root.IssueLeaf(t, "leaf.example.com")
		other := root.IssueLeaf(t, "other.example.com")
		crl := root.NewCRL(t, pkitest.Revoked(pkitest.Revoke(other.Cert, beforeReference, 1)))
		_, err := validate(t, newContext(t, roots, withCRLs(crl)...), leaf)
		require.NoError(t, err)
	})

	t.Run("no CRL available", func(t *testing.T) {
		leaf := root.IssueLeaf(t, "leaf.example.com")
		_, err := validate(t, newContext(t, roots, withCRLs()...), leaf)
		requireKind(t, err, certvalidator.KindRevocationIndeterminate, 0)
		assert.ErrorIs(t, err, certvalidator.ErrNoCRLsFound)
	})

	t.Run("CRL past its next update", func(t *testing.T) {
		leaf := root.IssueLeaf(t, "leaf.example.com")
		crl := root.NewCRL(t, pkitest.Updates(time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)))
		_, err := validate(t, newContext(t, roots, withCRLs(crl)...), leaf)
		requireKind(t, err, certvalidator.KindRevocationIndeterminate, 0)
	})

	t.Run("CRL signed by another key", func(t *testing.T) {
		leaf := root.IssueLeaf(t, "leaf.example.com")
		impostor := pkitest.NewRoot(t, "Root CA")
		crl := impostor.NewCRL(t)
		_, err := validate(t, newContext(t, roots, withCRLs(crl)...), leaf)
		requireKind(t, err, certvalidator.KindRevocationIndeterminate, 0)
		assert.ErrorIs(t, err, certvalidator.KindSignatureVerificationFailed)
	})

	t.Run("validation date in the future", func(t *testing.T) {
		leaf := root.IssueLeaf(t, "leaf.example.com")
		crl := root.NewCRL(t)
		vc := newContext(t, roots, append(withCRLs(crl),
			certvalidator.WithMoment(pkitest.ReferenceDate.Add(72*time.Hour)))...)
		_, err := validate(t, vc, leaf)
		requireKind(t, err, certvalidator.KindRevocationIndeterminate, 0)
		assert.Contains(t, err.Error(), "validation time is in future")
	})

	t.Run("source failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		source := mocks.NewMockCRLSource(ctrl)
		source.EXPECT().FindCRLs(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("directory unavailable")).AnyTimes()

		leaf := root.IssueLeaf(t, "leaf.example.com")
		vc := newContext(t, roots, certvalidator.WithRevocation(true), certvalidator.WithCRLSources(source))
		_, err := validate(t, vc, leaf)
		requireKind(t, err, certvalidator.KindRevocationIndeterminate, 0)
		assert.Contains(t, err.Error(), "directory unavailable")
	})

	t.Run("intermediate revoked", func(t *testing.T) {
		ca := root.IssueCA(t, "Issuing CA")
		leaf := ca.IssueLeaf(t, "leaf.example.com")
		rootCRL := root.NewCRL(t, pkitest.Revoked(pkitest.Revoke(ca.Cert, beforeReference, int(certvalidator.CRLReasonCACompromise))))
		caCRL := ca.NewCRL(t)
		_, err := validate(t, newContext(t, roots, withCRLs(rootCRL, caCRL)...), leaf, ca)
		requireKind(t, err, certvalidator.KindCertificateRevoked, 1)
	})
}

func TestRevocationReasons(t *testing.T) {
	root := pkitest.NewRoot(t, "Root CA")
	roots := []*x509.Certificate{root.Cert}

	tests := []struct {
		name       string
		when       time.Time
		reason     int
		wantReason certvalidator.CRLReason
		revoked    bool
	}{
		{"hold before validation date", beforeReference, int(certvalidator.CRLReasonCertificateHold), certvalidator.CRLReasonCertificateHold, true},
		{"hold after validation date", afterReference, int(certvalidator.CRLReasonCertificateHold), 0, false},
		{"superseded after validation date", afterReference, int(certvalidator.CRLReasonSuperseded), 0, false},
		{"unspecified after validation date", afterReference, int(certvalidator.CRLReasonUnspecified), certvalidator.CRLReasonUnspecified, true},
		{"no reason after validation date", afterReference, -1, certvalidator.CRLReasonUnspecified, true},
		{"key compromise after validation date", afterReference, int(certvalidator.CRLReasonKeyCompromise), certvalidator.CRLReasonKeyCompromise, true},
		{"CA compromise after validation date", afterReference, int(certvalidator.CRLReasonCACompromise), certvalidator.CRLReasonCACompromise, true},
		{"AA compromise after validation date", afterReference, int(certvalidator.CRLReasonAACompromise), certvalidator.CRLReasonAACompromise, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			leaf := root.IssueLeaf(t, "leaf.example.com")
			crl := root.NewCRL(t, pkitest.Revoked(pkitest.Revoke(leaf.Cert, tc.when, tc.reason)))
			_, err := validate(t, newContext(t, roots, withCRLs(crl)...), leaf)
			if !tc.revoked {
				require.NoError(t, err)
				return
			}
			var revoked *certvalidator.RevocationError
			require.True(t, errors.As(err, &revoked), "got %v", err)
			assert.Equal(t, tc.wantReason, revoked.Reason)
			assert.True(t, tc.when.Equal(revoked.RevocationDate))
		})
	}
}

func TestDeltaCRLs(t *testing.T) {
	root := pkitest.NewRoot(t, "Root CA")
	roots := []*x509.Certificate{root.Cert}
	leaf := root.IssueLeaf(t, "leaf.example.com")

	complete := root.NewCRL(t, pkitest.CRLNumber(1),
		pkitest.Revoked(pkitest.Revoke(leaf.Cert, beforeReference, int(certvalidator.CRLReasonCertificateHold))))
	delta := root.NewCRL(t, pkitest.CRLNumber(2), pkitest.Delta(1),
		pkitest.Revoked(pkitest.Revoke(leaf.Cert, time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC), int(certvalidator.CRLReasonRemoveFromCRL))))

	t.Run("hold is released by delta", func(t *testing.T) {
		vc := newContext(t, roots, append(withCRLs(complete, delta), certvalidator.WithDeltaCRLs(true))...)
		_, err := validate(t, vc, leaf)
		require.NoError(t, err)
	})

	t.Run("deltas ignored when disabled", func(t *testing.T) {
		_, err := validate(t, newContext(t, roots, withCRLs(complete, delta)...), leaf)
		requireKind(t, err, certvalidator.KindCertificateRevoked, 0)
	})

	t.Run("delta for another base is not used", func(t *testing.T) {
		stale := root.NewCRL(t, pkitest.CRLNumber(3), pkitest.Delta(2),
			pkitest.Revoked(pkitest.Revoke(leaf.Cert, time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC), int(certvalidator.CRLReasonRemoveFromCRL))))
		vc := newContext(t, roots, append(withCRLs(complete, stale), certvalidator.WithDeltaCRLs(true))...)
		_, err := validate(t, vc, leaf)
		requireKind(t, err, certvalidator.KindCertificateRevoked, 0)
	})
}

func TestIssuingDistributionPoint(t *testing.T) {
	root := pkitest.NewRoot(t, "Root CA")
	roots := []*x509.Certificate{root.Cert}
	leaf := root.IssueLeaf(t, "leaf.example.com")

	t.Run("only some reasons leaves status undetermined", func(t *testing.T) {
		crl := root.NewCRL(t, pkitest.IDP(pkitest.IssuingDistributionPoint{
			OnlySomeReasons: uint16(certvalidator.ReasonKeyCompromise),
		}))
		_, err := validate(t, newContext(t, roots, withCRLs(crl)...), leaf)
		requireKind(t, err, certvalidator.KindRevocationIndeterminate, 0)
	})

	t.Run("partitions together cover every reason", func(t *testing.T) {
		someReasons := root.NewCRL(t, pkitest.CRLNumber(1), pkitest.IDP(pkitest.IssuingDistributionPoint{
			OnlySomeReasons: uint16(certvalidator.ReasonKeyCompromise | certvalidator.ReasonCACompromise),
		}))
		otherReasons := root.NewCRL(t, pkitest.CRLNumber(2), pkitest.IDP(pkitest.IssuingDistributionPoint{
			OnlySomeReasons: uint16(certvalidator.AllReasons &^ (certvalidator.ReasonKeyCompromise | certvalidator.ReasonCACompromise)),
		}))
		_, err := validate(t, newContext(t, roots, withCRLs(someReasons, otherReasons)...), leaf)
		require.NoError(t, err)
	})

	t.Run("CA-only CRL does not cover end entities", func(t *testing.T) {
		crl := root.NewCRL(t, pkitest.IDP(pkitest.IssuingDistributionPoint{OnlyContainsCACerts: true}))
		_, err := validate(t, newContext(t, roots, withCRLs(crl)...), leaf)
		requireKind(t, err, certvalidator.KindRevocationIndeterminate, 0)
	})

	t.Run("user-only CRL covers end entities", func(t *testing.T) {
		crl := root.NewCRL(t, pkitest.IDP(pkitest.IssuingDistributionPoint{OnlyContainsUserCerts: true}))
		_, err := validate(t, newContext(t, roots, withCRLs(crl)...), leaf)
		require.NoError(t, err)
	})

	t.Run("distribution point names must match", func(t *testing.T) {
		const location = "http://crl.example.com/root.crl"
		pointed := root.IssueLeaf(t, "pointed.example.com", pkitest.CRLDistributionPoints(location))

		match := root.NewCRL(t, pkitest.IDP(pkitest.IssuingDistributionPoint{FullName: []pkitest.Name{pkitest.URI(location)}}))
		_, err := validate(t, newContext(t, roots, withCRLs(match)...), pointed)
		require.NoError(t, err)

		mismatch := root.NewCRL(t, pkitest.IDP(pkitest.IssuingDistributionPoint{FullName: []pkitest.Name{pkitest.URI("http://crl.example.com/other.crl")}}))
		_, err = validate(t, newContext(t, roots, withCRLs(mismatch)...), pointed)
		requireKind(t, err, certvalidator.KindRevocationIndeterminate, 0)
	})

	t.Run("unknown critical CRL extension", func(t *testing.T) {
		ext := pkitest.DateOfCertGenExtension(beforeReference)
		ext.Critical = true
		crl := root.NewCRL(t, pkitest.CRLExtension(ext))
		_, err := validate(t, newContext(t, roots, withCRLs(crl)...), leaf)
		requireKind(t, err, certvalidator.KindRevocationIndeterminate, 0)
	})
}

func TestIndirectCRL(t *testing.T) {
	const location = "http://crl.example.com/indirect.crl"
	root := pkitest.NewRoot(t, "Root CA")
	roots := []*x509.Certificate{root.Cert}
	crlIssuer := root.IssueLeaf(t, "CRL Issuer", pkitest.KeyUsage(x509.KeyUsageCRLSign))
	dp := pkitest.DistributionPoint{
		FullName:  []pkitest.Name{pkitest.URI(location)},
		CRLIssuer: []pkitest.Name{pkitest.RawDirName(crlIssuer.Cert.RawSubject)},
	}
	leaf := root.IssueLeaf(t, "leaf.example.com", pkitest.DistributionPoints(dp))
	rootCRL := root.NewCRL(t)

	indirect := func(t *testing.T, entries ...pkitest.Revocation) *x509.RevocationList {
		return crlIssuer.NewCRL(t,
			pkitest.IDP(pkitest.IssuingDistributionPoint{FullName: dp.FullName, IndirectCRL: true}),
			pkitest.Revoked(entries...))
	}
	sources := func(crls ...*x509.RevocationList) []certvalidator.Option {
		return append(withCRLs(crls...), certvalidator.WithCertificateSources(certvalidator.NewCertStore(crlIssuer.Cert)))
	}

	t.Run("entry for the certificate issuer", func(t *testing.T) {
		entry := pkitest.Revoke(leaf.Cert, beforeReference, int(certvalidator.CRLReasonKeyCompromise))
		entry.Extensions = []pkix.Extension{pkitest.CertificateIssuerExtension(pkitest.RawDirName(root.Cert.RawSubject))}
		_, err := validate(t, newContext(t, roots, sources(rootCRL, indirect(t, entry))...), leaf)
		requireKind(t, err, certvalidator.KindCertificateRevoked, 0)
	})

	t.Run("entry for another issuer", func(t *testing.T) {
		entry := pkitest.Revoke(leaf.Cert, beforeReference, int(certvalidator.CRLReasonKeyCompromise))
		entry.Extensions = []pkix.Extension{pkitest.CertificateIssuerExtension(pkitest.DirName(pkix.Name{CommonName: "Someone Else"}))}
		_, err := validate(t, newContext(t, roots, sources(rootCRL, indirect(t, entry))...), leaf)
		require.NoError(t, err)
	})

	t.Run("signer without CRL signing usage", func(t *testing.T) {
		// The indirect CRL is unusable, so the status comes from the issuer's own CRL.
		signer := root.IssueLeaf(t, "CRL Issuer", pkitest.KeyUsage(x509.KeyUsageDigitalSignature), pkitest.WithKey(crlIssuer.Key))
		entry := pkitest.Revoke(leaf.Cert, beforeReference, int(certvalidator.CRLReasonKeyCompromise))
		entry.Extensions = []pkix.Extension{pkitest.CertificateIssuerExtension(pkitest.RawDirName(root.Cert.RawSubject))}
		vc := newContext(t, roots,
			certvalidator.WithRevocation(true),
			certvalidator.WithCRLSources(certvalidator.NewCRLStore(rootCRL, indirect(t, entry))),
			certvalidator.WithCertificateSources(certvalidator.NewCertStore(signer.Cert)))
		_, err := validate(t, vc, leaf)
		require.NoError(t, err)
	})

	t.Run("no CRL from either issuer", func(t *testing.T) {
		_, err := validate(t, newContext(t, roots, sources()...), leaf)
		requireKind(t, err, certvalidator.KindRevocationIndeterminate, 0)
	})
}

func TestCRLSignedByDelegate(t *testing.T) {
	root := pkitest.NewRoot(t, "Root CA")
	roots := []*x509.Certificate{root.Cert}
	leaf := root.IssueLeaf(t, "leaf.example.com")
	// The delegate shares the issuer name but holds its own key.
	delegate := root.IssueLeaf(t, "", pkitest.Subject(root.Cert.Subject), pkitest.KeyUsage(x509.KeyUsageCRLSign))
	crl := delegate.NewCRL(t, pkitest.Revoked(pkitest.Revoke(leaf.Cert, beforeReference, int(certvalidator.CRLReasonSuperseded))))

	vc := newContext(t, roots, append(withCRLs(crl),
		certvalidator.WithCertificateSources(certvalidator.NewCertStore(delegate.Cert)))...)
	_, err := validate(t, vc, leaf)
	requireKind(t, err, certvalidator.KindCertificateRevoked, 0)

	var revoked *certvalidator.RevocationError
	require.True(t, errors.As(err, &revoked))
	assert.Equal(t, certvalidator.CRLReasonSuperseded, revoked.Reason)
}

func TestRevocationChecker(t *testing.T) {
	root := pkitest.NewRoot(t, "Root CA")
	leaf := root.IssueLeaf(t, "leaf.example.com")
	crl := root.NewCRL(t, pkitest.Revoked(pkitest.Revoke(leaf.Cert, beforeReference, int(certvalidator.CRLReasonAffiliationChanged))))
	vc := newContext(t, []*x509.Certificate{root.Cert}, withCRLs(crl)...)

	status, err := certvalidator.NewRevocationChecker(vc).Check(context.Background(), &certvalidator.RevocationRequest{
		Certificate:       leaf.Cert,
		IssuerCertificate: root.Cert,
		IssuerKey:         root.Cert.PublicKey,
		ValidityDate:      pkitest.ReferenceDate,
	})
	requireKind(t, err, certvalidator.KindCertificateRevoked, -1)
	assert.True(t, status.IsRevoked())
	assert.Equal(t, certvalidator.CRLReasonAffiliationChanged, status.Reason)
}
