// Package certvalidator provides X.509 certificate path validation.
// This file contains error types for certificate validation.
package certvalidator

import (
	"errors"
	"fmt"
	"time"
)

// CRLReason represents the reason for certificate revocation.
type CRLReason int

const (
	CRLReasonUnspecified          CRLReason = 0
	CRLReasonKeyCompromise        CRLReason = 1
	CRLReasonCACompromise         CRLReason = 2
	CRLReasonAffiliationChanged   CRLReason = 3
	CRLReasonSuperseded           CRLReason = 4
	CRLReasonCessationOfOperation CRLReason = 5
	CRLReasonCertificateHold      CRLReason = 6
	CRLReasonRemoveFromCRL        CRLReason = 8
	CRLReasonPrivilegeWithdrawn   CRLReason = 9
	CRLReasonAACompromise         CRLReason = 10
)

// String returns the RFC 5280 name of the CRL reason.
func (r CRLReason) String() string {
	switch r {
	case CRLReasonUnspecified:
		return "unspecified"
	case CRLReasonKeyCompromise:
		return "keyCompromise"
	case CRLReasonCACompromise:
		return "cACompromise"
	case CRLReasonAffiliationChanged:
		return "affiliationChanged"
	case CRLReasonSuperseded:
		return "superseded"
	case CRLReasonCessationOfOperation:
		return "cessationOfOperation"
	case CRLReasonCertificateHold:
		return "certificateHold"
	case CRLReasonRemoveFromCRL:
		return "removeFromCRL"
	case CRLReasonPrivilegeWithdrawn:
		return "privilegeWithdrawn"
	case CRLReasonAACompromise:
		return "aACompromise"
	default:
		return fmt.Sprintf("unknown reason (%d)", int(r))
	}
}

// ErrorKind classifies a validation or building failure.
//
// ErrorKind implements error so callers can test for a kind with errors.Is:
//
//	if errors.Is(err, certvalidator.KindCertificateRevoked) { ... }
type ErrorKind int

const (
	KindSignatureVerificationFailed ErrorKind = iota + 1
	KindTemporalValidityFailed
	KindNameChainMismatch
	KindNameConstraintViolation
	KindPolicyProcessingFailed
	KindBasicConstraintsViolation
	KindKeyUsageViolation
	KindUnsupportedCriticalExtension
	KindRevocationIndeterminate
	KindCertificateRevoked
	KindTrustAnchorNotFound
	KindPathNotFound
	KindMalformedExtension
)

// String returns the name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindSignatureVerificationFailed:
		return "SignatureVerificationFailed"
	case KindTemporalValidityFailed:
		return "TemporalValidityFailed"
	case KindNameChainMismatch:
		return "NameChainMismatch"
	case KindNameConstraintViolation:
		return "NameConstraintViolation"
	case KindPolicyProcessingFailed:
		return "PolicyProcessingFailed"
	case KindBasicConstraintsViolation:
		return "BasicConstraintsViolation"
	case KindKeyUsageViolation:
		return "KeyUsageViolation"
	case KindUnsupportedCriticalExtension:
		return "UnsupportedCriticalExtension"
	case KindRevocationIndeterminate:
		return "RevocationIndeterminate"
	case KindCertificateRevoked:
		return "CertificateRevoked"
	case KindTrustAnchorNotFound:
		return "TrustAnchorNotFound"
	case KindPathNotFound:
		return "PathNotFound"
	case KindMalformedExtension:
		return "MalformedExtension"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

func (k ErrorKind) Error() string {
	return k.String()
}

// ValidationError is returned for every failed validation or build attempt.
type ValidationError struct {
	Kind ErrorKind
	// Index is the zero-based position in the certification path of the
	// failing certificate, or -1 when the failure concerns the trust anchor
	// or the final policy decision.
	Index   int
	Message string
	Cause   error
}

// NewValidationError creates a new ValidationError.
func NewValidationError(kind ErrorKind, index int, message string, cause error) *ValidationError {
	return &ValidationError{Kind: kind, Index: index, Message: message, Cause: cause}
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if e.Index >= 0 {
		msg = fmt.Sprintf("%s (certificate %d)", msg, e.Index)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the ErrorKind of this error.
func (e *ValidationError) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && k == e.Kind
}

// RevocationError indicates a certificate has been revoked.
type RevocationError struct {
	ValidationError
	Reason         CRLReason
	RevocationDate time.Time
}

// NewRevocationError creates a RevocationError for the certificate at index.
func NewRevocationError(index int, reason CRLReason, revocationDate time.Time) *RevocationError {
	msg := fmt.Sprintf("certificate revocation after %s, reason: %s",
		revocationDate.UTC().Format("2006-01-02 15:04:05 MST"), reason)
	return &RevocationError{
		ValidationError: ValidationError{Kind: KindCertificateRevoked, Index: index, Message: msg},
		Reason:          reason,
		RevocationDate:  revocationDate,
	}
}

// KindOf returns the ErrorKind carried by err, or 0 if err is not a validation error.
func KindOf(err error) ErrorKind {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	var re *RevocationError
	if errors.As(err, &re) {
		return re.Kind
	}
	return 0
}

// IndexOf returns the failing path index carried by err, or -1.
func IndexOf(err error) int {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Index
	}
	var re *RevocationError
	if errors.As(err, &re) {
		return re.Index
	}
	return -1
}

// withIndex rebinds a validation error raised by a helper to a path index.
func withIndex(err error, kind ErrorKind, index int, message string) error {
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Index == index {
		return err
	}
	var re *RevocationError
	if errors.As(err, &re) {
		if re.Index == index {
			return err
		}
		out := *re
		out.Index = index
		return &out
	}
	if ve != nil {
		return NewValidationError(ve.Kind, index, ve.Message, ve.Cause)
	}
	return NewValidationError(kind, index, message, err)
}
