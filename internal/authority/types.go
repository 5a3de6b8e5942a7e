package authority

import "github.com/rezonia/clearance-engine/internal/model"

// SubmissionRequest is the wire body for clearance and reporting calls
type SubmissionRequest struct {
	InvoiceHash string `json:"invoiceHash"`
	UUID        string `json:"uuid"`
	Invoice     string `json:"invoice"` // base64(signedDocument)
}

// ResponseKind discriminates the known authority response shapes
type ResponseKind int

const (
	// KindValidation is the expected structured JSON envelope
	KindValidation ResponseKind = iota
	// KindUnparseable carries the raw body of a response that did not
	// match the expected structured type
	KindUnparseable
)

// Response is a tagged union over the authority response shapes.
// Responses that cannot be decoded keep their raw text rather than
// surfacing a parse error.
type Response struct {
	StatusCode int
	Kind       ResponseKind
	Validation *ValidationEnvelope
	RawBody    string
}

// ValidationEnvelope is the structured authority response body
type ValidationEnvelope struct {
	ValidationResults ValidationResults `json:"validationResults"`

	InvoiceHash     string `json:"invoiceHash,omitempty"`
	InvoiceNumber   string `json:"invoiceNumber,omitempty"`
	QRCode          string `json:"qrCode,omitempty"`
	ClearedInvoice  string `json:"clearedInvoice,omitempty"`
	ClearanceStatus string `json:"clearanceStatus,omitempty"`
	ReportingStatus string `json:"reportingStatus,omitempty"`
}

// ValidationResults carries the authority verdict and message lists
type ValidationResults struct {
	Status          string                   `json:"status"`
	ErrorMessages   []model.AuthorityMessage `json:"errorMessages,omitempty"`
	WarningMessages []model.AuthorityMessage `json:"warningMessages,omitempty"`
	InfoMessages    []model.AuthorityMessage `json:"infoMessages,omitempty"`
}

// Authority verdict values
const (
	VerdictPass    = "PASS"
	VerdictWarning = "WARNING"
	VerdictError   = "ERROR"
)

// Accepted reports whether the verdict allows the ACCEPTED transition
func (v ValidationResults) Accepted() bool {
	return v.Status == VerdictPass || v.Status == VerdictWarning
}

// CredentialRequest is the wire body for credential issuance and renewal
type CredentialRequest struct {
	CSR string `json:"csr"`
}

// CredentialResponse is the authority reply to a credential exchange
type CredentialResponse struct {
	RequestID           string `json:"requestID,omitempty"`
	DispositionMessage  string `json:"dispositionMessage,omitempty"`
	BinarySecurityToken string `json:"binarySecurityToken"`
	Secret              string `json:"secret"`
}
