package model

import "fmt"

// Error codes shared across the engine
const (
	// Network
	ErrCodeTimeout     = "TIMEOUT"
	ErrCodeFetch       = "FETCH_ERROR"
	ErrCodeCircuitOpen = "CIRCUIT_OPEN"

	// Signing
	ErrCodeKeyInvalid    = "KEY_INVALID"
	ErrCodeCertInvalid   = "CERT_INVALID"
	ErrCodeSignatureFail = "SIGNATURE_FAILED"

	// Certificate lifecycle
	ErrCodeCertExpired = "CERT_EXPIRED"
	ErrCodeRenewalFail = "RENEWAL_FAILED"
	ErrCodeEnvMismatch = "ENV_MISMATCH"

	// Documents
	ErrCodeParse = "PARSE_ERROR"
)

// ParseError represents a failure reading a document back into an invoice
type ParseError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", ErrCodeParse, e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", ErrCodeParse, e.Field, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewParseError creates a new parse error
func NewParseError(field, message string, cause error) *ParseError {
	return &ParseError{
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}

// SigningError represents a signature computation failure.
// Fatal unless the fallback strategy succeeds.
type SigningError struct {
	Code     string
	Strategy string
	Message  string
	Cause    error
}

func (e *SigningError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Code, e.Strategy, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Strategy, e.Message)
}

func (e *SigningError) Unwrap() error {
	return e.Cause
}

// NewSigningError creates a new signing error
func NewSigningError(code, strategy, message string, cause error) *SigningError {
	return &SigningError{
		Code:     code,
		Strategy: strategy,
		Message:  message,
		Cause:    cause,
	}
}

// SubmissionError represents a transport-level failure reaching the authority
type SubmissionError struct {
	Code      string
	Message   string
	Retryable bool
	Cause     error
}

func (e *SubmissionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *SubmissionError) Unwrap() error {
	return e.Cause
}

// NewSubmissionError creates a new submission error
func NewSubmissionError(code, message string, retryable bool, cause error) *SubmissionError {
	return &SubmissionError{
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// CertificateError represents a credential lifecycle failure.
// Blocks submission until renewal succeeds.
type CertificateError struct {
	Code         string
	CredentialID string
	Message      string
	Cause        error
}

func (e *CertificateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] credential %s: %s (%v)", e.Code, e.CredentialID, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] credential %s: %s", e.Code, e.CredentialID, e.Message)
}

func (e *CertificateError) Unwrap() error {
	return e.Cause
}

// NewCertificateError creates a new certificate error
func NewCertificateError(code, credentialID, message string, cause error) *CertificateError {
	return &CertificateError{
		Code:         code,
		CredentialID: credentialID,
		Message:      message,
		Cause:        cause,
	}
}
