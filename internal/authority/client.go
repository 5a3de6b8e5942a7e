// Package authority implements the submission client for the e-invoicing
// authority: clearance and reporting of signed invoices plus the
// credential (CSID) exchange. Every network call runs through a circuit
// breaker and a timeout; heterogeneous response shapes are normalized
// into typed results so callers never see a raw parse failure.
package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rezonia/clearance-engine/internal/authority/breaker"
	"github.com/rezonia/clearance-engine/internal/model"
)

// Endpoint paths
const (
	PathClearance         = "/invoices/clearance/single"
	PathReporting         = "/invoices/reporting/single"
	PathComplianceCSID    = "/compliance"
	PathCredentialRenewal = "/production/csids/renewal"
)

// Wire headers
const (
	HeaderAPIVersion      = "Accept-Version"
	HeaderClearanceStatus = "Clearance-Status"

	DefaultAPIVersion = "V2"
	DefaultTimeout    = 30 * time.Second
)

// Config holds client configuration
type Config struct {
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
	Monitor    breaker.Monitor
}

// Client talks to the authority REST API
type Client struct {
	baseURL    string
	apiVersion string
	timeout    time.Duration
	httpClient *http.Client
	log        zerolog.Logger

	clearance *breaker.Breaker
	reporting *breaker.Breaker
	csid      *breaker.Breaker
}

// NewClient creates an authority client. One breaker guards each
// integration so a clearance outage does not open the credential path.
func NewClient(cfg Config) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	monitor := cfg.Monitor
	if monitor == nil {
		monitor = breaker.LogMonitor{Log: cfg.Logger}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiVersion: cfg.APIVersion,
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
		log:        cfg.Logger,
		clearance:  breaker.New("clearance", monitor),
		reporting:  breaker.New("reporting", monitor),
		csid:       breaker.New("csid", monitor),
	}
}

// Clear submits a signed invoice through the synchronous pre-issuance
// clearance workflow.
func (c *Client) Clear(ctx context.Context, req *SubmissionRequest, cert *model.Certificate) *model.ClearanceResult {
	return c.submit(ctx, c.clearance, PathClearance, true, model.StatusCleared, req, cert)
}

// Report submits a signed invoice through the post-issuance reporting
// workflow.
func (c *Client) Report(ctx context.Context, req *SubmissionRequest, cert *model.Certificate) *model.ReportingResult {
	return c.submit(ctx, c.reporting, PathReporting, false, model.StatusReported, req, cert)
}

func (c *Client) submit(ctx context.Context, b *breaker.Breaker, path string, clearanceFlag bool,
	accepted model.SubmissionStatus, req *SubmissionRequest, cert *model.Certificate) *model.SubmissionResult {

	now := time.Now().UTC()
	base := model.SubmissionResult{
		InvoiceHash: req.InvoiceHash,
		UUID:        req.UUID,
		SubmittedAt: &now,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return errorResult(base, "REQUEST_ENCODING", err.Error(), false)
	}

	raw, err := b.Execute(func() (interface{}, error) {
		return c.do(ctx, http.MethodPost, path, body, cert, clearanceFlag)
	})
	if err != nil {
		return c.transportError(base, err)
	}

	resp := raw.(*Response)
	return normalize(base, resp, accepted)
}

// do performs one HTTP exchange and decodes the response defensively.
func (c *Client) do(ctx context.Context, method, path string, body []byte,
	cert *model.Certificate, clearanceFlag bool) (*Response, error) {

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(HeaderAPIVersion, c.apiVersion)
	httpReq.Header.Set("Authorization", cert.BasicAuth())
	if clearanceFlag {
		httpReq.Header.Set(HeaderClearanceStatus, "1")
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	payload, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	return decodeResponse(httpResp.StatusCode, httpResp.Header.Get("Content-Type"), payload), nil
}

// decodeResponse parses the body into the tagged response union. When the
// content type is not the expected structured type, or the JSON does not
// decode, the raw body is captured so callers get a diagnosable error
// instead of an unhandled parse exception.
func decodeResponse(statusCode int, contentType string, body []byte) *Response {
	resp := &Response{StatusCode: statusCode, RawBody: string(body)}

	if !strings.Contains(contentType, "application/json") {
		resp.Kind = KindUnparseable
		return resp
	}

	var envelope ValidationEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		resp.Kind = KindUnparseable
		return resp
	}
	if envelope.ValidationResults.Status == "" {
		// A body without a verdict would otherwise read as an empty
		// rejection. Surface the raw body instead.
		resp.Kind = KindUnparseable
		return resp
	}

	resp.Kind = KindValidation
	resp.Validation = &envelope
	return resp
}

// transportError maps network failures to a retryable typed result
func (c *Client) transportError(base model.SubmissionResult, err error) *model.SubmissionResult {
	var subErr *model.SubmissionError
	if errors.As(err, &subErr) {
		// Open circuit, already normalized by the breaker
		return errorResult(base, subErr.Code, subErr.Message, subErr.Retryable)
	}

	code := model.ErrCodeFetch
	message := "authority request failed"
	if errors.Is(err, context.DeadlineExceeded) {
		code = model.ErrCodeTimeout
		message = "authority request timed out"
	}

	c.log.Error().Str("code", code).Err(err).Msg("authority call failed")
	return errorResult(base, code, fmt.Sprintf("%s: %v", message, err), true)
}

// normalize folds a decoded response into the single result shape
func normalize(base model.SubmissionResult, resp *Response, accepted model.SubmissionStatus) *model.SubmissionResult {
	result := base

	if resp.Kind == KindUnparseable {
		result.Status = model.StatusError
		result.State = model.StateError
		result.Retryable = resp.StatusCode >= 500
		result.Errors = []model.AuthorityMessage{{
			Code:     fmt.Sprintf("HTTP-%d", resp.StatusCode),
			Category: "RESPONSE",
			Message:  "unexpected authority response: " + truncate(resp.RawBody, 512),
		}}
		return &result
	}

	vr := resp.Validation.ValidationResults
	result.Warnings = vr.WarningMessages

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && vr.Accepted() {
		result.Status = accepted
		result.State = model.StateAccepted
		result.AuthorityReference = resp.Validation.InvoiceNumber
		result.QRPayload = resp.Validation.QRCode
		result.ClearedDocument = resp.Validation.ClearedInvoice
		return &result
	}

	result.Errors = vr.ErrorMessages
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// Authority processed the submission and rejected the document
		result.Status = model.StatusRejected
		result.State = model.StateRejected
		return &result
	}

	result.Status = model.StatusError
	result.State = model.StateError
	result.Retryable = resp.StatusCode >= 500
	result.Errors = append([]model.AuthorityMessage{{
		Code:     fmt.Sprintf("HTTP-%d", resp.StatusCode),
		Category: "HTTP",
		Message:  fmt.Sprintf("authority returned status %d", resp.StatusCode),
	}}, vr.ErrorMessages...)
	return &result
}

func errorResult(base model.SubmissionResult, code, message string, retryable bool) *model.SubmissionResult {
	result := base
	result.Status = model.StatusError
	result.State = model.StateError
	result.Retryable = retryable
	result.Errors = []model.AuthorityMessage{{
		Code:     code,
		Category: "NETWORK",
		Message:  message,
	}}
	return &result
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// RenewCredential performs the credential renewal exchange, submitting
// the existing credential identifier as the CSR reference.
func (c *Client) RenewCredential(ctx context.Context, cert *model.Certificate, csrRef string) (*CredentialResponse, error) {
	return c.credentialExchange(ctx, PathCredentialRenewal, cert, csrRef)
}

// ComplianceCredential performs the initial compliance CSID exchange.
func (c *Client) ComplianceCredential(ctx context.Context, cert *model.Certificate, csr string) (*CredentialResponse, error) {
	return c.credentialExchange(ctx, PathComplianceCSID, cert, csr)
}

func (c *Client) credentialExchange(ctx context.Context, path string, cert *model.Certificate, csr string) (*CredentialResponse, error) {
	body, err := json.Marshal(CredentialRequest{CSR: csr})
	if err != nil {
		return nil, model.NewSubmissionError("REQUEST_ENCODING", "failed to encode credential request", false, err)
	}

	raw, err := c.csid.Execute(func() (interface{}, error) {
		return c.do(ctx, http.MethodPost, path, body, cert, false)
	})
	if err != nil {
		var subErr *model.SubmissionError
		if errors.As(err, &subErr) {
			return nil, subErr
		}
		code := model.ErrCodeFetch
		if errors.Is(err, context.DeadlineExceeded) {
			code = model.ErrCodeTimeout
		}
		return nil, model.NewSubmissionError(code, "credential exchange failed", true, err)
	}

	resp := raw.(*Response)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, model.NewCertificateError(model.ErrCodeRenewalFail, cert.CredentialID,
			fmt.Sprintf("authority returned status %d: %s", resp.StatusCode, truncate(resp.RawBody, 256)), nil)
	}

	var credential CredentialResponse
	if err := json.Unmarshal([]byte(resp.RawBody), &credential); err != nil {
		return nil, model.NewCertificateError(model.ErrCodeRenewalFail, cert.CredentialID,
			"unexpected credential response: "+truncate(resp.RawBody, 256), err)
	}
	if credential.BinarySecurityToken == "" {
		return nil, model.NewCertificateError(model.ErrCodeRenewalFail, cert.CredentialID,
			"credential response carries no security token", nil)
	}
	return &credential, nil
}
