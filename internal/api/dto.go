package api

import (
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/georgepadayatti/pkixpath/certvalidator"
	"github.com/georgepadayatti/pkixpath/certvalidator/fetchers"
)

// Error codes for API responses.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInternal       = "INTERNAL_ERROR"
)

// APIError is the body of every non-2xx response that is not a validation report.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ValidateRequest asks for the validation of an explicit path, target first.
// Certificates and CRLs are PEM text or base64 DER.
type ValidateRequest struct {
	Path   []string   `json:"path"`
	CRLs   []string   `json:"crls,omitempty"`
	Moment *time.Time `json:"moment,omitempty"`
}

// Validate checks the request shape.
func (r ValidateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required, validation.Each(validation.Required)),
		validation.Field(&r.CRLs, validation.Each(validation.Required)),
	)
}

// BuildRequest asks for a path to be built for Target using Intermediates
// in addition to the configured certificate stores.
type BuildRequest struct {
	Target        string     `json:"target"`
	Intermediates []string   `json:"intermediates,omitempty"`
	CRLs          []string   `json:"crls,omitempty"`
	Moment        *time.Time `json:"moment,omitempty"`
}

// Validate checks the request shape.
func (r BuildRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Target, validation.Required),
		validation.Field(&r.Intermediates, validation.Each(validation.Required)),
		validation.Field(&r.CRLs, validation.Each(validation.Required)),
	)
}

// CertificateInfo summarises one certificate of a reported path.
type CertificateInfo struct {
	Subject   string    `json:"subject"`
	Issuer    string    `json:"issuer"`
	Serial    string    `json:"serial"`
	NotBefore time.Time `json:"not_before"`
	NotAfter  time.Time `json:"not_after"`
}

// ErrorInfo describes why validation failed.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Index   int    `json:"index"`
	Message string `json:"message"`

	// Cause is the kind of the last validation failure behind a PathNotFound.
	Cause string `json:"cause,omitempty"`

	RevocationReason string     `json:"revocation_reason,omitempty"`
	RevocationDate   *time.Time `json:"revocation_date,omitempty"`
}

// ValidationReport is the result of a validate or build call, shared by the
// HTTP API and the command line.
type ValidationReport struct {
	Valid         bool              `json:"valid"`
	Path          []CertificateInfo `json:"path,omitempty"`
	TrustAnchor   string            `json:"trust_anchor,omitempty"`
	ValidPolicies []string          `json:"valid_policies,omitempty"`
	Error         *ErrorInfo        `json:"error,omitempty"`
}

// NewValidationReport converts a validator or builder outcome into a report.
func NewValidationReport(res *certvalidator.ValidationResult, err error) *ValidationReport {
	if err != nil {
		return &ValidationReport{Error: newErrorInfo(err)}
	}
	report := &ValidationReport{Valid: true, ValidPolicies: res.ValidPolicies}
	for _, cert := range res.Path {
		report.Path = append(report.Path, CertificateInfo{
			Subject:   cert.Subject.String(),
			Issuer:    cert.Issuer.String(),
			Serial:    cert.SerialNumber.String(),
			NotBefore: cert.NotBefore.UTC(),
			NotAfter:  cert.NotAfter.UTC(),
		})
	}
	if res.TrustAnchor != nil {
		report.TrustAnchor = res.TrustAnchor.String()
	}
	return report
}

func newErrorInfo(err error) *ErrorInfo {
	info := &ErrorInfo{
		Kind:    certvalidator.KindOf(err).String(),
		Index:   certvalidator.IndexOf(err),
		Message: err.Error(),
	}
	if certvalidator.KindOf(err) == 0 {
		info.Kind = "Error"
	}
	var ve *certvalidator.ValidationError
	if errors.As(err, &ve) && ve.Cause != nil {
		if kind := certvalidator.KindOf(ve.Cause); kind != 0 {
			info.Cause = kind.String()
		}
	}
	var re *certvalidator.RevocationError
	if errors.As(err, &re) {
		date := re.RevocationDate.UTC()
		info.RevocationReason = re.Reason.String()
		info.RevocationDate = &date
	}
	return info
}

// decodeBlob accepts PEM text or base64 DER.
func decodeBlob(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-----BEGIN") {
		return []byte(s), nil
	}
	der, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("neither PEM nor base64: %w", err)
	}
	return der, nil
}

// ParseCertificateBlobs decodes every blob and returns the certificates in order.
func ParseCertificateBlobs(blobs []string) ([]*x509.Certificate, error) {
	var out []*x509.Certificate
	for i, blob := range blobs {
		data, err := decodeBlob(blob)
		if err != nil {
			return nil, fmt.Errorf("certificate %d: %w", i, err)
		}
		certs, err := fetchers.ParseCertificates(data)
		if err != nil {
			return nil, fmt.Errorf("certificate %d: %w", i, err)
		}
		out = append(out, certs...)
	}
	return out, nil
}

// ParseCRLBlobs decodes every blob as a CRL.
func ParseCRLBlobs(blobs []string) ([]*x509.RevocationList, error) {
	out := make([]*x509.RevocationList, 0, len(blobs))
	for i, blob := range blobs {
		data, err := decodeBlob(blob)
		if err != nil {
			return nil, fmt.Errorf("crl %d: %w", i, err)
		}
		crl, err := fetchers.ParseCRL(data)
		if err != nil {
			return nil, fmt.Errorf("crl %d: %w", i, err)
		}
		out = append(out, crl)
	}
	return out, nil
}
