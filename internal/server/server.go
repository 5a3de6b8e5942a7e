package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rezonia/clearance-engine/internal/authority"
	"github.com/rezonia/clearance-engine/internal/certs"
	"github.com/rezonia/clearance-engine/internal/engine"
	"github.com/rezonia/clearance-engine/internal/model"
	"github.com/rezonia/clearance-engine/internal/qr"
)

// Config holds server configuration
type Config struct {
	Address      string
	AuthorityURL string
	APIVersion   string
	Certificate  *model.Certificate
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
	Logger       zerolog.Logger
}

// Server represents the HTTP API server
type Server struct {
	config *Config
	router *gin.Engine
	engine *engine.Engine
	log    zerolog.Logger

	certMu sync.RWMutex
	cert   *model.Certificate
}

// NewServer creates a new API server
func NewServer(config *Config) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if config.Debug {
		router.Use(gin.Logger())
	}

	var client *authority.Client
	var manager *certs.Manager
	if config.AuthorityURL != "" {
		client = authority.NewClient(authority.Config{
			BaseURL:    config.AuthorityURL,
			APIVersion: config.APIVersion,
			Logger:     config.Logger,
		})
		manager = certs.NewManager(client, config.Logger)
	}

	eng := engine.New(
		engine.WithClient(client),
		engine.WithCertManager(manager),
		engine.WithChainStore(engine.NewMemoryChainStore()),
		engine.WithLogger(config.Logger),
	)

	s := &Server{
		config: config,
		router: router,
		engine: eng,
		log:    config.Logger,
		cert:   config.Certificate,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// Invoice endpoints
		v1.POST("/invoices/validate", s.handleValidate)
		v1.POST("/invoices/clearance", s.handleClearance)
		v1.POST("/invoices/reporting", s.handleReporting)

		// Credential lifecycle
		v1.POST("/certificates/renewal", s.handleRenewal)

		// Offline verification payloads
		v1.POST("/qr/decode", s.handleQRDecode)
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return srv.ListenAndServe()
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) certificate() *model.Certificate {
	s.certMu.RLock()
	defer s.certMu.RUnlock()
	return s.cert
}

func (s *Server) setCertificate(cert *model.Certificate) {
	s.certMu.Lock()
	defer s.certMu.Unlock()
	s.cert = cert
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleValidate(c *gin.Context) {
	var req InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}

	result := s.engine.ValidateInvoice(req.Invoice)
	c.JSON(http.StatusOK, ValidationResponse{
		Valid:    result.Valid,
		Errors:   result.Errors,
		Warnings: result.Warnings,
	})
}

func (s *Server) handleClearance(c *gin.Context) {
	s.handleSubmission(c, true)
}

func (s *Server) handleReporting(c *gin.Context) {
	s.handleSubmission(c, false)
}

func (s *Server) handleSubmission(c *gin.Context, clearance bool) {
	var req InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}

	cert := s.certificate()
	if cert == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "no signing certificate configured"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	var result *model.SubmissionResult
	if clearance {
		result = s.engine.ClearInvoice(ctx, req.Invoice, cert)
	} else {
		result = s.engine.ReportInvoice(ctx, req.Invoice, cert)
	}

	c.JSON(submissionStatusCode(result), SubmissionResponse{
		Status:             result.Status,
		State:              result.State,
		UUID:               result.UUID,
		InvoiceHash:        result.InvoiceHash,
		AuthorityReference: result.AuthorityReference,
		QRPayload:          result.QRPayload,
		ClearedDocument:    result.ClearedDocument,
		Retryable:          result.Retryable,
		Errors:             result.Errors,
		Warnings:           result.Warnings,
	})
}

// submissionStatusCode maps the submission outcome onto an HTTP status.
// Retryable transport failures surface as 502 so callers can retry.
func submissionStatusCode(result *model.SubmissionResult) int {
	switch {
	case result.Accepted():
		return http.StatusOK
	case result.Retryable:
		return http.StatusBadGateway
	default:
		return http.StatusUnprocessableEntity
	}
}

func (s *Server) handleRenewal(c *gin.Context) {
	cert := s.certificate()
	if cert == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "no signing certificate configured"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	renewed, err := s.engine.RenewCertificate(ctx, cert)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "credential renewal failed", Details: err.Error()})
		return
	}

	if renewed != cert {
		s.setCertificate(renewed)
	}

	c.JSON(http.StatusOK, RenewalResponse{
		CredentialID: renewed.CredentialID,
		Environment:  string(renewed.Environment),
		ExpiresAt:    renewed.ExpiresAt.UTC().Format(time.RFC3339),
		Renewed:      renewed != cert,
	})
}

func (s *Server) handleQRDecode(c *gin.Context) {
	var req QRDecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}

	payload, err := qr.Decode(req.Payload)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "invalid TLV payload", Details: err.Error()})
		return
	}

	c.JSON(http.StatusOK, QRDecodeResponse{Payload: payload})
}
