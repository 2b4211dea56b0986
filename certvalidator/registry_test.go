package certvalidator_test

import (
	"context"
	"crypto/x509"
	"crypto/x509/pkix"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/suite"

	"github.com/georgepadayatti/pkixpath/certvalidator"
	"github.com/georgepadayatti/pkixpath/internal/mocks"
	"github.com/georgepadayatti/pkixpath/internal/pkitest"
)

type PathBuilderTestSuite struct {
	suite.Suite
	ctx  context.Context
	ctrl *gomock.Controller

	root *pkitest.Entity
	ca   *pkitest.Entity
}

func TestPathBuilder(t *testing.T) {
	suite.Run(t, new(PathBuilderTestSuite))
}

func (s *PathBuilderTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.root = pkitest.NewRoot(s.T(), "Root CA")
	s.ca = s.root.IssueCA(s.T(), "Issuing CA")
}

func (s *PathBuilderTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *PathBuilderTestSuite) builder(opts ...certvalidator.Option) *certvalidator.PathBuilder {
	return certvalidator.NewPathBuilder(newContext(s.T(), []*x509.Certificate{s.root.Cert}, opts...))
}

func (s *PathBuilderTestSuite) TestPrefersTrustedChain() {
	subject := pkix.Name{CommonName: "target.example.com", Organization: []string{"Test"}}
	untrusted := pkitest.NewRoot(s.T(), "Untrusted CA")
	rogue := untrusted.IssueLeaf(s.T(), "", pkitest.Subject(subject))
	good := s.ca.IssueLeaf(s.T(), "", pkitest.Subject(subject))

	// The untrusted candidate and its issuer come first.
	store := certvalidator.NewCertStore(rogue.Cert, untrusted.Cert, good.Cert, s.ca.Cert)
	source := mocks.NewMockCertificateSource(s.ctrl)
	source.EXPECT().FindCertificates(gomock.Any(), gomock.Any()).DoAndReturn(store.FindCertificates).AnyTimes()

	res, err := s.builder(certvalidator.WithCertificateSources(source)).
		Build(s.ctx, &certvalidator.CertSelector{Subject: good.Cert.RawSubject})
	s.Require().NoError(err)
	s.Require().Len(res.Path, 2)
	s.True(certvalidator.CompareCertificates(good.Cert, res.Path[0]))
	s.True(certvalidator.CompareCertificates(s.ca.Cert, res.Path[1]))
	s.Equal(s.root.Cert, res.TrustAnchor.Certificate())
	for _, cert := range res.Path {
		s.False(certvalidator.CompareCertificates(untrusted.Cert, cert))
	}
}

func (s *PathBuilderTestSuite) TestBuildForTargetNotInSources() {
	sub := s.ca.IssueCA(s.T(), "Sub CA")
	leaf := sub.IssueLeaf(s.T(), "leaf.example.com")
	store := certvalidator.NewCertStore(s.ca.Cert, sub.Cert)

	res, err := s.builder(certvalidator.WithCertificateSources(store)).
		Build(s.ctx, &certvalidator.CertSelector{Certificate: leaf.Cert})
	s.Require().NoError(err)
	s.Len(res.Path, 3)

	res, err = s.builder(certvalidator.WithCertificateSources(store)).BuildFor(s.ctx, leaf.Cert)
	s.Require().NoError(err)
	s.Len(res.Path, 3)
}

func (s *PathBuilderTestSuite) TestTargetIsAnchorChild() {
	leaf := s.root.IssueLeaf(s.T(), "leaf.example.com")
	res, err := s.builder().BuildFor(s.ctx, leaf.Cert)
	s.Require().NoError(err)
	s.Len(res.Path, 1)
}

func (s *PathBuilderTestSuite) TestNoMatchingTarget() {
	_, err := s.builder().Build(s.ctx, &certvalidator.CertSelector{Subject: s.ca.Cert.RawSubject})
	s.ErrorIs(err, certvalidator.KindPathNotFound)
}

func (s *PathBuilderTestSuite) TestMissingIssuer() {
	leaf := s.ca.IssueLeaf(s.T(), "leaf.example.com")
	_, err := s.builder().BuildFor(s.ctx, leaf.Cert)
	s.ErrorIs(err, certvalidator.KindPathNotFound)
	s.ErrorIs(err, certvalidator.ErrNoIssuerFound)
	s.Equal(-1, certvalidator.IndexOf(err))
}

func (s *PathBuilderTestSuite) TestReportsLastValidationFailure() {
	leaf := s.ca.IssueLeaf(s.T(), "leaf.example.com",
		pkitest.Validity(pkitest.DefaultNotBefore, time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)))
	_, err := s.builder(certvalidator.WithCertificateSources(certvalidator.NewCertStore(s.ca.Cert))).
		BuildFor(s.ctx, leaf.Cert)
	s.ErrorIs(err, certvalidator.KindPathNotFound)
	s.ErrorIs(err, certvalidator.KindTemporalValidityFailed)
}

func (s *PathBuilderTestSuite) TestMaxPathLength() {
	sub := s.ca.IssueCA(s.T(), "Sub CA")
	leaf := sub.IssueLeaf(s.T(), "leaf.example.com")
	store := certvalidator.NewCertStore(s.ca.Cert, sub.Cert)

	_, err := s.builder(certvalidator.WithCertificateSources(store), certvalidator.WithMaxPathLength(0)).
		BuildFor(s.ctx, leaf.Cert)
	s.ErrorIs(err, certvalidator.KindPathNotFound)

	_, err = s.builder(certvalidator.WithCertificateSources(store), certvalidator.WithMaxPathLength(-1)).
		BuildFor(s.ctx, leaf.Cert)
	s.NoError(err)
}

func (s *PathBuilderTestSuite) TestExcludedCertificates() {
	// Two issuer certificates share name and key; only the second may be used.
	alt := s.root.IssueCA(s.T(), "Issuing CA", pkitest.WithKey(s.ca.Key))
	leaf := s.ca.IssueLeaf(s.T(), "leaf.example.com")
	store := certvalidator.NewCertStore(s.ca.Cert, alt.Cert)

	res, err := s.builder(certvalidator.WithCertificateSources(store), certvalidator.WithExcludedCertificates(s.ca.Cert)).
		BuildFor(s.ctx, leaf.Cert)
	s.Require().NoError(err)
	s.True(certvalidator.CompareCertificates(alt.Cert, res.Path[1]))

	_, err = s.builder(certvalidator.WithCertificateSources(store), certvalidator.WithExcludedCertificates(s.ca.Cert, alt.Cert)).
		BuildFor(s.ctx, leaf.Cert)
	s.ErrorIs(err, certvalidator.KindPathNotFound)
}

func (s *PathBuilderTestSuite) TestBacktracksPastInvalidIssuer() {
	expired := s.root.IssueCA(s.T(), "Issuing CA", pkitest.WithKey(s.ca.Key),
		pkitest.Validity(pkitest.DefaultNotBefore, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)))
	leaf := s.ca.IssueLeaf(s.T(), "leaf.example.com")
	store := certvalidator.NewCertStore(expired.Cert, s.ca.Cert)

	res, err := s.builder(certvalidator.WithCertificateSources(store)).BuildFor(s.ctx, leaf.Cert)
	s.Require().NoError(err)
	s.True(certvalidator.CompareCertificates(s.ca.Cert, res.Path[1]))
}

func (s *PathBuilderTestSuite) TestAnchorNameMatchRequiresSignature() {
	t := s.T()
	oldRoot := pkitest.NewRoot(t, "Root CA", pkitest.NoKeyIdentifiers())
	// Same name, new key, certified by the old key.
	rollover := oldRoot.IssueCA(t, "Root CA", pkitest.NoKeyIdentifiers())
	leaf := rollover.IssueLeaf(t, "leaf.example.com", pkitest.NoKeyIdentifiers())

	vc := newContext(t, []*x509.Certificate{oldRoot.Cert},
		certvalidator.WithCertificateSources(certvalidator.NewCertStore(rollover.Cert)))
	res, err := certvalidator.NewPathBuilder(vc).BuildFor(s.ctx, leaf.Cert)
	s.Require().NoError(err)
	s.Require().Len(res.Path, 2)
	s.True(certvalidator.CompareCertificates(rollover.Cert, res.Path[1]))
	s.Equal(oldRoot.Cert, res.TrustAnchor.Certificate())

	_, err = certvalidator.NewPathBuilder(newContext(t, []*x509.Certificate{oldRoot.Cert})).BuildFor(s.ctx, leaf.Cert)
	s.ErrorIs(err, certvalidator.KindPathNotFound)
	s.ErrorIs(err, certvalidator.KindTrustAnchorNotFound)
}

func (s *PathBuilderTestSuite) TestCrossCertificationLoopTerminates() {
	loopB := pkitest.NewRoot(s.T(), "Loop B")
	loopA := loopB.IssueCA(s.T(), "Loop A")
	backToB := loopA.IssueCA(s.T(), "Loop B", pkitest.WithKey(loopB.Key))
	leaf := loopA.IssueLeaf(s.T(), "leaf.example.com")

	_, err := s.builder(certvalidator.WithCertificateSources(certvalidator.NewCertStore(loopA.Cert, backToB.Cert))).
		BuildFor(s.ctx, leaf.Cert)
	s.ErrorIs(err, certvalidator.KindPathNotFound)
}

func (s *PathBuilderTestSuite) TestIssuerFromAlternativeNameLocation() {
	const location = "http://pki.example.com/issuing-ca.crt"
	leaf := s.ca.IssueLeaf(s.T(), "leaf.example.com",
		pkitest.Extension(pkitest.IssuerAltNameExtension(pkitest.URI(location))))

	resolver := mocks.NewMockAdditionalStoreResolver(s.ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), location).Return(certvalidator.NewCertStore(s.ca.Cert), nil, nil)

	res, err := s.builder(certvalidator.WithStoreResolver(resolver)).BuildFor(s.ctx, leaf.Cert)
	s.Require().NoError(err)
	s.Len(res.Path, 2)
}

func (s *PathBuilderTestSuite) TestCancelledContext() {
	leaf := s.ca.IssueLeaf(s.T(), "leaf.example.com")
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.builder(certvalidator.WithCertificateSources(certvalidator.NewCertStore(s.ca.Cert))).
		Build(ctx, &certvalidator.CertSelector{Certificate: leaf.Cert})
	s.Error(err)
}

func TestCertStore(t *testing.T) {
	root := pkitest.NewRoot(t, "Root CA")
	ca := root.IssueCA(t, "Issuing CA")
	leaf := ca.IssueLeaf(t, "leaf.example.com")
	store := certvalidator.NewCertStore(root.Cert, ca.Cert, leaf.Cert)

	t.Run("duplicates are ignored", func(t *testing.T) {
		s := certvalidator.NewCertStore(ca.Cert)
		if s.Add(ca.Cert) {
			t.Fatal("duplicate accepted")
		}
		if s.Count() != 1 {
			t.Fatalf("count = %d", s.Count())
		}
	})

	tests := []struct {
		name string
		sel  *certvalidator.CertSelector
		want []*x509.Certificate
	}{
		{"nil selector", nil, []*x509.Certificate{root.Cert, ca.Cert, leaf.Cert}},
		{"by subject", &certvalidator.CertSelector{Subject: ca.Cert.RawSubject}, []*x509.Certificate{ca.Cert}},
		{"by issuer", &certvalidator.CertSelector{Issuer: root.Cert.RawSubject}, []*x509.Certificate{root.Cert, ca.Cert}},
		{"by key id", &certvalidator.CertSelector{SubjectKeyID: ca.Cert.SubjectKeyId}, []*x509.Certificate{ca.Cert}},
		{"by serial", &certvalidator.CertSelector{SerialNumber: leaf.Cert.SerialNumber}, []*x509.Certificate{leaf.Cert}},
		{"by certificate", &certvalidator.CertSelector{Certificate: leaf.Cert}, []*x509.Certificate{leaf.Cert}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := store.FindCertificates(context.Background(), tc.sel)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d certificates, want %d", len(got), len(tc.want))
			}
			for i := range got {
				if !certvalidator.CompareCertificates(got[i], tc.want[i]) {
					t.Errorf("certificate %d mismatch", i)
				}
			}
		})
	}
}
