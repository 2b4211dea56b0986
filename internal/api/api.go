// Package api exposes path validation and path building over HTTP.
package api

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/georgepadayatti/pkixpath/certvalidator"
)

const maxRequestBody = 8 << 20

// Config configures the HTTP API.
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Version      string

	// Options are applied to every request before the certificates and
	// CRLs the request carries.
	Options []certvalidator.Option

	Logger logrus.FieldLogger
}

// API serves path validation and path building over HTTP.
type API struct {
	options []certvalidator.Option
	version string
	logger  logrus.FieldLogger

	httpServer *http.Server
}

// NewAPI checks that cfg.Options produce a usable validation context and
// prepares the server.
func NewAPI(cfg Config) (*API, error) {
	if _, err := certvalidator.NewValidationContext(cfg.Options...); err != nil {
		return nil, fmt.Errorf("invalid validation options: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	a := &API{
		options: cfg.Options,
		version: cfg.Version,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(requestID, requestLogger(logger), recoverer(logger))
	r.Get("/health", a.health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/validate", a.validate)
		r.Post("/build", a.build)
	})

	a.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return a, nil
}

// Handler returns the router.
func (a *API) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run listens and serves until the server is closed.
func (a *API) Run() error {
	err := a.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close shuts the server down gracefully.
func (a *API) Close(ctx context.Context) error {
	a.httpServer.SetKeepAlivesEnabled(false)
	return a.httpServer.Shutdown(ctx)
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: a.version})
}

func (a *API) validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	path, err := ParseCertificateBlobs(req.Path)
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	crls, err := ParseCRLBlobs(req.CRLs)
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	vc, err := a.validationContext(req.Moment, nil, crls)
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}

	res, err := certvalidator.NewPathValidator(vc).Validate(r.Context(), path)
	a.respondReport(w, r, res, err)
}

func (a *API) build(w http.ResponseWriter, r *http.Request) {
	var req BuildRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	targets, err := ParseCertificateBlobs([]string{req.Target})
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	intermediates, err := ParseCertificateBlobs(req.Intermediates)
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	crls, err := ParseCRLBlobs(req.CRLs)
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	vc, err := a.validationContext(req.Moment, intermediates, crls)
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}

	res, err := certvalidator.NewPathBuilder(vc).BuildFor(r.Context(), targets[0])
	a.respondReport(w, r, res, err)
}

func (a *API) validationContext(moment *time.Time, certs []*x509.Certificate, crls []*x509.RevocationList) (*certvalidator.ValidationContext, error) {
	opts := append([]certvalidator.Option{}, a.options...)
	if len(certs) > 0 {
		opts = append(opts, certvalidator.WithCertificateSources(certvalidator.NewCertStore(certs...)))
	}
	if len(crls) > 0 {
		opts = append(opts, certvalidator.WithCRLSources(certvalidator.NewCRLStore(crls...)))
	}
	if moment != nil {
		opts = append(opts, certvalidator.WithMoment(*moment))
	}
	return certvalidator.NewValidationContext(opts...)
}

// respondReport answers 200 for a valid path, 422 for a validation failure
// and 500 for anything else.
func (a *API) respondReport(w http.ResponseWriter, r *http.Request, res *certvalidator.ValidationResult, err error) {
	report := NewValidationReport(res, err)
	status := http.StatusOK
	if err != nil {
		status = http.StatusUnprocessableEntity
		if certvalidator.KindOf(err) == 0 {
			status = http.StatusInternalServerError
		}
		a.logger.WithField("request_id", r.Header.Get(RequestIDHeader)).Debugf("validation failed: %v", err)
	}
	respondJSON(w, status, report)
}

func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.Warnf("failed to encode/write response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, &APIError{Code: code, Message: message})
}
