package models

// CertificateStatus is the lifecycle status of a certificate.
type CertificateStatus string

const (
	CertificateStatusDraft   CertificateStatus = "DRAFT"
	CertificateStatusIssued  CertificateStatus = "ISSUED"
	CertificateStatusRevoked CertificateStatus = "REVOKED"
)

// Certificate mirrors the backend certificate record. Dates are kept as the
// strings the backend sends; the client never reinterprets them.
type Certificate struct {
	ID                 int64             `json:"id,omitempty"`
	Institution        int64             `json:"institution,omitempty"`
	InstitutionName    string            `json:"institution_name,omitempty"`
	InstitutionAddress string            `json:"institution_address,omitempty"`
	StudentName        string            `json:"student_name"`
	StudentID          string            `json:"student_id"`
	StudentEmail       string            `json:"student_email,omitempty"`
	Course             string            `json:"course"`
	Grade              string            `json:"grade,omitempty"`
	IssueDate          string            `json:"issue_date"`
	ExpiryDate         *string           `json:"expiry_date,omitempty"`
	CertificateID      string            `json:"certificate_id"`
	BlockchainTx       string            `json:"blockchain_tx,omitempty"`
	Status             CertificateStatus `json:"status,omitempty"`
	Metadata           map[string]any    `json:"metadata,omitempty"`
	CreatedAt          string            `json:"created_at,omitempty"`
	UpdatedAt          string            `json:"updated_at,omitempty"`
}

// IssueCertificateRequest is the body sent to create a certificate.
type IssueCertificateRequest struct {
	Institution  *int64         `json:"institution,omitempty"`
	StudentName  string         `json:"student_name"`
	StudentID    string         `json:"student_id"`
	StudentEmail string         `json:"student_email,omitempty"`
	Course       string         `json:"course"`
	Grade        string         `json:"grade"`
	IssueDate    string         `json:"issue_date"`
	ExpiryDate   string         `json:"expiry_date,omitempty"`
	Metadata     map[string]any `json:"metadata"`
}

// VerificationResult is the response of the verify endpoint.
type VerificationResult struct {
	IsValid     bool         `json:"is_valid"`
	Message     string       `json:"message,omitempty"`
	Certificate *Certificate `json:"certificate,omitempty"`
	Error       string       `json:"error,omitempty"`
}
