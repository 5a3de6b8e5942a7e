package model

import "time"

// ValidationMessage is a single validation finding with a stable code
type ValidationMessage struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of invoice validation.
// Errors block document generation; warnings are advisory.
type ValidationResult struct {
	Valid    bool                `json:"valid"`
	Errors   []ValidationMessage `json:"errors,omitempty"`
	Warnings []ValidationMessage `json:"warnings,omitempty"`
}

// NewValidationResult creates an empty, valid result
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Valid:    true,
		Errors:   make([]ValidationMessage, 0),
		Warnings: make([]ValidationMessage, 0),
	}
}

// AddError records an error and marks the result invalid
func (r *ValidationResult) AddError(code, field, message string) {
	r.Errors = append(r.Errors, ValidationMessage{Code: code, Field: field, Message: message})
	r.Valid = false
}

// AddWarning records an advisory finding
func (r *ValidationResult) AddWarning(code, field, message string) {
	r.Warnings = append(r.Warnings, ValidationMessage{Code: code, Field: field, Message: message})
}

// HasErrorCode reports whether an error with the given code was recorded
func (r *ValidationResult) HasErrorCode(code string) bool {
	for _, e := range r.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}

// HasWarningCode reports whether a warning with the given code was recorded
func (r *ValidationResult) HasWarningCode(code string) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// SubmissionStatus is the terminal status of a submission attempt
type SubmissionStatus string

const (
	StatusCleared  SubmissionStatus = "CLEARED"
	StatusReported SubmissionStatus = "REPORTED"
	StatusRejected SubmissionStatus = "REJECTED"
	StatusError    SubmissionStatus = "ERROR"
)

// AuthorityMessage is a normalized authority-side error or warning
type AuthorityMessage struct {
	Type     string `json:"type,omitempty"`
	Code     string `json:"code"`
	Category string `json:"category,omitempty"`
	Message  string `json:"message"`
	Status   string `json:"status,omitempty"`
}

// SubmissionResult is the outcome of one clearance or reporting attempt.
// Created once per attempt and never mutated afterwards; retries produce
// new result objects.
type SubmissionResult struct {
	Status             SubmissionStatus   `json:"status"`
	State              SubmissionState    `json:"state"`
	InvoiceHash        string             `json:"invoice_hash,omitempty"`
	UUID               string             `json:"uuid,omitempty"`
	AuthorityReference string             `json:"authority_reference,omitempty"`
	QRPayload          string             `json:"qr_payload,omitempty"`
	ClearedDocument    string             `json:"cleared_document,omitempty"`
	SubmittedAt        *time.Time         `json:"submitted_at,omitempty"`
	Errors             []AuthorityMessage `json:"errors,omitempty"`
	Warnings           []AuthorityMessage `json:"warnings,omitempty"`

	// Retryable marks transient failures (timeouts, open circuit,
	// transport faults). Retries must re-validate certificate expiry.
	Retryable bool `json:"retryable,omitempty"`
}

// ClearanceResult is the outcome of the pre-issuance clearance workflow
type ClearanceResult = SubmissionResult

// ReportingResult is the outcome of the post-issuance reporting workflow
type ReportingResult = SubmissionResult

// Accepted reports whether the submission reached a terminal accepted status
func (r *SubmissionResult) Accepted() bool {
	return r.Status == StatusCleared || r.Status == StatusReported
}
