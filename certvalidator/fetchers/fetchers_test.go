package fetchers

import (
	"context"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgepadayatti/pkixpath/internal/pkitest"
)

func testConfig() *FetcherConfig {
	logger, _ := test.NewNullLogger()
	return &FetcherConfig{
		Timeout:         5 * time.Second,
		MaxResponseSize: 1 << 20,
		UserAgent:       "pkixpath-test",
		Retry:           &RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
		Logger:          logger,
	}
}

// countingServer answers with handler and counts the requests it receives.
func countingServer(t *testing.T, handler func(n int32, w http.ResponseWriter, r *http.Request)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(hits.Add(1), w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFetchRetries(t *testing.T) {
	t.Run("server errors are retried", func(t *testing.T) {
		srv, hits := countingServer(t, func(n int32, w http.ResponseWriter, _ *http.Request) {
			if n < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("payload"))
		})
		cfg := testConfig()
		var retries []uint
		cfg.Retry.OnRetry = func(n uint, _ error) { retries = append(retries, n) }

		data, err := NewFetcher(cfg).Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
		assert.Equal(t, int32(3), hits.Load())
		assert.Equal(t, []uint{0, 1}, retries)
	})

	t.Run("client errors are permanent", func(t *testing.T) {
		srv, hits := countingServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		_, err := NewFetcher(testConfig()).Fetch(context.Background(), srv.URL)
		assert.ErrorIs(t, err, ErrFetchFailed)
		assert.Contains(t, err.Error(), "HTTP 404")
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("attempts are bounded", func(t *testing.T) {
		srv, hits := countingServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := NewFetcher(testConfig()).Fetch(context.Background(), srv.URL)
		assert.ErrorIs(t, err, ErrFetchFailed)
		assert.Equal(t, int32(3), hits.Load())
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv, hits := countingServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("x"))
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewFetcher(testConfig()).Fetch(ctx, srv.URL)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, hits.Load())
	})
}

func TestFetchRequest(t *testing.T) {
	var agent string
	srv, _ := countingServer(t, func(_ int32, w http.ResponseWriter, r *http.Request) {
		agent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("0123456789"))
	})
	cfg := testConfig()
	cfg.MaxResponseSize = 4

	data, err := NewFetcher(cfg).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(data), "body is truncated at the size limit")
	assert.Equal(t, "pkixpath-test", agent)

	_, err = NewFetcher(cfg).Fetch(context.Background(), "ldap://ldap.example.com/cn=CA")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
	_, err = NewFetcher(cfg).Fetch(context.Background(), "http://[::1")
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestFetchCache(t *testing.T) {
	srv, hits := countingServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("cached"))
	})
	clock := clockwork.NewFakeClock()
	cfg := testConfig()
	cfg.UseCache = true
	cfg.CacheTTL = time.Minute
	cfg.Clock = clock
	f := NewFetcher(cfg)

	for i := 0; i < 3; i++ {
		data, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "cached", string(data))
	}
	assert.Equal(t, int32(1), hits.Load())

	clock.Advance(2 * time.Minute)
	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load(), "expired entries are fetched again")

	f.ClearCache()
	_, err = f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestCircuitBreaker(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cb := NewCircuitBreaker(2, 1, time.Minute, clock)
	assert.Equal(t, CircuitClosed, cb.State())

	cb.RecordFailure()
	assert.Equal(t, CircuitClosed, cb.State())
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.False(t, cb.Allow())
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)

	clock.Advance(time.Minute)
	assert.True(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.State())
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State(), "a failed probe reopens the breaker")

	clock.Advance(time.Minute)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
}

func TestFetchWithOpenCircuit(t *testing.T) {
	srv, hits := countingServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	cfg := testConfig()
	cfg.CircuitBreaker = NewCircuitBreaker(2, 1, time.Hour, clockwork.NewFakeClock())
	f := NewFetcher(cfg)

	_, err := f.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrCircuitOpen, "the breaker opens during the retries")
	assert.Equal(t, int32(2), hits.Load())

	_, err = f.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), hits.Load())
}

func TestParseCRL(t *testing.T) {
	root := pkitest.NewRoot(t, "Root CA")
	crl := root.NewCRL(t)

	parsed, err := ParseCRL(crl.Raw)
	require.NoError(t, err)
	assert.Equal(t, crl.Raw, parsed.Raw)

	parsed, err = ParseCRL(pem.EncodeToMemory(&pem.Block{Type: "X509 CRL", Bytes: crl.Raw}))
	require.NoError(t, err)
	assert.Equal(t, crl.Raw, parsed.Raw)

	_, err = ParseCRL(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: root.Cert.Raw}))
	assert.ErrorIs(t, err, ErrCRLParseFailed)
	_, err = ParseCRL([]byte("garbage"))
	assert.ErrorIs(t, err, ErrCRLParseFailed)
}

func TestParseCertificates(t *testing.T) {
	root := pkitest.NewRoot(t, "Root CA")
	ca := root.IssueCA(t, "Issuing CA")

	certs, err := ParseCertificates(root.Cert.Raw)
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.True(t, certs[0].Equal(root.Cert))

	bundle := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: ca.Cert.Raw})
	bundle = append(bundle, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte{1}})...)
	bundle = append(bundle, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: root.Cert.Raw})...)
	certs, err = ParseCertificates(bundle)
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.True(t, certs[0].Equal(ca.Cert))
	assert.True(t, certs[1].Equal(root.Cert))

	_, err = ParseCertificates([]byte("garbage"))
	assert.ErrorIs(t, err, ErrCertParseFailed)
	_, err = ParseCertificates(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{0x30}}))
	assert.ErrorIs(t, err, ErrCertParseFailed)
}

func TestCRLFetcher(t *testing.T) {
	root := pkitest.NewRoot(t, "Root CA")
	crl := root.NewCRL(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/root.crl", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write(crl.Raw) })
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	leaf := root.IssueLeaf(t, "leaf", pkitest.CRLDistributionPoints(srv.URL+"/missing.crl", srv.URL+"/root.crl"))
	f := NewCRLFetcher(NewFetcher(testConfig()))

	crls, err := f.FetchCRLsForCert(context.Background(), leaf.Cert)
	require.NoError(t, err)
	require.Len(t, crls, 1)
	assert.Equal(t, crl.Raw, crls[0].Raw)

	broken := root.IssueLeaf(t, "broken", pkitest.CRLDistributionPoints(srv.URL+"/missing.crl"))
	_, err = f.FetchCRLsForCert(context.Background(), broken.Cert)
	assert.ErrorIs(t, err, ErrFetchFailed)
}
