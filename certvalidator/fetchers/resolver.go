package fetchers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/georgepadayatti/pkixpath/certvalidator"
)

// StoreResolver resolves http and https locations into in-memory stores
// holding the certificates or the CRL found there.
type StoreResolver struct {
	fetcher *Fetcher
}

var _ certvalidator.AdditionalStoreResolver = (*StoreResolver)(nil)

// NewStoreResolver creates a resolver downloading through f.
func NewStoreResolver(f *Fetcher) *StoreResolver {
	if f == nil {
		f = NewFetcher(nil)
	}
	return &StoreResolver{fetcher: f}
}

// Resolve downloads location. A CRL yields a CRL store; one or more
// certificates yield a certificate store. Locations with other schemes
// resolve to nothing.
func (r *StoreResolver) Resolve(ctx context.Context, location string) (certvalidator.CertificateSource, certvalidator.CRLSource, error) {
	if !isHTTP(location) {
		return nil, nil, nil
	}
	data, err := r.fetcher.Fetch(ctx, location)
	if err != nil {
		return nil, nil, err
	}

	if crl, crlErr := ParseCRL(data); crlErr == nil {
		return nil, certvalidator.NewCRLStore(crl), nil
	} else if certs, certErr := ParseCertificates(data); certErr == nil {
		return certvalidator.NewCertStore(certs...), nil, nil
	} else {
		return nil, nil, fmt.Errorf("%s: %w", location, errors.Join(crlErr, certErr))
	}
}

func isHTTP(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
