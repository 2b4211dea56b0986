// Package fetchers downloads certificates and CRLs from the locations named
// in certificates and exposes them to the path validator as additional stores.
package fetchers

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	ErrFetchFailed       = errors.New("fetch failed")
	ErrUnsupportedScheme = errors.New("unsupported location scheme")
	ErrCRLParseFailed    = errors.New("CRL parse failed")
	ErrCertParseFailed   = errors.New("certificate parse failed")
)

// FetcherConfig configures download behaviour.
type FetcherConfig struct {
	Timeout time.Duration
	// MaxResponseSize bounds a response body in bytes.
	MaxResponseSize int64
	UserAgent       string

	UseCache bool
	CacheTTL time.Duration

	Retry *RetryConfig

	// RateLimit bounds outgoing requests per second; zero disables limiting.
	RateLimit rate.Limit
	RateBurst int

	// CircuitBreaker, when set, guards every request.
	CircuitBreaker *CircuitBreaker

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client

	Clock  clockwork.Clock
	Logger logrus.FieldLogger
}

// DefaultConfig returns the default fetcher configuration.
func DefaultConfig() *FetcherConfig {
	return &FetcherConfig{
		Timeout:         30 * time.Second,
		MaxResponseSize: 10 * 1024 * 1024,
		UserAgent:       "pkixpath/1.0",
		UseCache:        true,
		CacheTTL:        time.Hour,
		Retry:           DefaultRetryConfig(),
		RateLimit:       10,
		RateBurst:       5,
	}
}

// Fetcher downloads documents over HTTP.
type Fetcher struct {
	config  *FetcherConfig
	client  *http.Client
	limiter *rate.Limiter
	cache   *responseCache
	logger  logrus.FieldLogger
}

// NewFetcher creates a fetcher. A nil config uses DefaultConfig.
func NewFetcher(config *FetcherConfig) *Fetcher {
	if config == nil {
		config = DefaultConfig()
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	clock := config.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := config.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	limit := config.RateLimit
	if limit == 0 {
		limit = rate.Inf
	}
	burst := config.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &Fetcher{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		cache:   newResponseCache(config.CacheTTL, clock),
		logger:  logger,
	}
}

type responseCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	clock   clockwork.Clock
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

func newResponseCache(ttl time.Duration, clock clockwork.Clock) *responseCache {
	return &responseCache{entries: make(map[string]cacheEntry), ttl: ttl, clock: clock}
}

func (c *responseCache) get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.clock.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

func (c *responseCache) set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{data: data, expiresAt: c.clock.Now().Add(c.ttl)}
}

func (c *responseCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// ClearCache drops every cached response.
func (f *Fetcher) ClearCache() {
	f.cache.clear()
}

// Fetch downloads urlStr, retrying transient failures.
func (f *Fetcher) Fetch(ctx context.Context, urlStr string) ([]byte, error) {
	if f.config.UseCache {
		if data, ok := f.cache.get(urlStr); ok {
			return data, nil
		}
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid URL: %v", ErrFetchFailed, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}

	cfg := f.config.Retry
	if cfg == nil {
		cfg = NoRetryConfig()
	}
	data, err := retry.DoWithData(func() ([]byte, error) {
		if f.config.CircuitBreaker == nil {
			return f.doFetch(ctx, urlStr)
		}
		var body []byte
		err := f.config.CircuitBreaker.Execute(func() error {
			var err error
			body, err = f.doFetch(ctx, urlStr)
			return err
		})
		if errors.Is(err, ErrCircuitOpen) {
			return nil, permanent(err)
		}
		return body, err
	}, cfg.options(ctx)...)
	if err != nil {
		f.logger.WithError(err).WithField("url", urlStr).Debug("fetch failed")
		return nil, err
	}

	if f.config.UseCache {
		f.cache.set(urlStr, data)
	}
	return data, nil
}

func (f *Fetcher) doFetch(ctx context.Context, urlStr string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, permanent(fmt.Errorf("%w: %v", ErrFetchFailed, err))
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%w: HTTP %d", ErrFetchFailed, resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, permanent(err)
		}
		return nil, err
	}

	limit := f.config.MaxResponseSize
	if limit <= 0 {
		limit = DefaultConfig().MaxResponseSize
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return data, nil
}

// CRLFetcher downloads CRLs.
type CRLFetcher struct {
	fetcher *Fetcher
}

// NewCRLFetcher creates a CRL fetcher sharing f.
func NewCRLFetcher(f *Fetcher) *CRLFetcher {
	return &CRLFetcher{fetcher: f}
}

// FetchCRL downloads and parses the CRL at urlStr. DER and PEM are accepted.
func (f *CRLFetcher) FetchCRL(ctx context.Context, urlStr string) (*x509.RevocationList, error) {
	data, err := f.fetcher.Fetch(ctx, urlStr)
	if err != nil {
		return nil, err
	}
	return ParseCRL(data)
}

// FetchCRLsForCert downloads the CRLs at every HTTP distribution point of cert.
// Failures are skipped; an error is returned only when nothing was fetched.
func (f *CRLFetcher) FetchCRLsForCert(ctx context.Context, cert *x509.Certificate) ([]*x509.RevocationList, error) {
	var (
		crls []*x509.RevocationList
		errs []error
	)
	for _, u := range cert.CRLDistributionPoints {
		crl, err := f.FetchCRL(ctx, u)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		crls = append(crls, crl)
	}
	if len(crls) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return crls, nil
}

// CertFetcher downloads certificates.
type CertFetcher struct {
	fetcher *Fetcher
}

// NewCertFetcher creates a certificate fetcher sharing f.
func NewCertFetcher(f *Fetcher) *CertFetcher {
	return &CertFetcher{fetcher: f}
}

// FetchCertificates downloads the certificates at urlStr.
func (f *CertFetcher) FetchCertificates(ctx context.Context, urlStr string) ([]*x509.Certificate, error) {
	data, err := f.fetcher.Fetch(ctx, urlStr)
	if err != nil {
		return nil, err
	}
	return ParseCertificates(data)
}

// ParseCRL parses a DER or PEM encoded CRL.
func ParseCRL(data []byte) (*x509.RevocationList, error) {
	if block, _ := pem.Decode(data); block != nil {
		if block.Type != "X509 CRL" {
			return nil, fmt.Errorf("%w: unexpected PEM block %q", ErrCRLParseFailed, block.Type)
		}
		data = block.Bytes
	}
	crl, err := x509.ParseRevocationList(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCRLParseFailed, err)
	}
	return crl, nil
}

// ParseCertificates parses one DER certificate or a sequence of PEM
// CERTIFICATE blocks. Other PEM blocks are skipped.
func ParseCertificates(data []byte) ([]*x509.Certificate, error) {
	if cert, err := x509.ParseCertificate(data); err == nil {
		return []*x509.Certificate{cert}, nil
	}

	var certs []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCertParseFailed, err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, ErrCertParseFailed
	}
	return certs, nil
}
