package domain

import "time"

type ConsentStatus string

const (
	ConsentActive  ConsentStatus = "ATIVO"
	ConsentRevoked ConsentStatus = "REVOGADO"
	ConsentExpired ConsentStatus = "EXPIRADO"
)

// MinRevocationReason is the shortest accepted motivo on revoke.
const MinRevocationReason = 5

// Consent is a consent record. SubjectID, TypeID and LegalBasisID never
// change after creation, and a revoked record never changes again.
type Consent struct {
	ID                 string
	SubjectID          string
	TypeID             string
	LegalBasisID       string
	DataClassification []string
	Channel            string
	RequestedDocuments []string
	ProofAttachment    string
	StorageLocation    string
	ProofHash          string // SHA-256 hex
	CollectedAt        time.Time
	ExpiresAt          *time.Time
	RevokedAt          *time.Time
	RevocationReason   string
	Status             ConsentStatus
	CollectorID        string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ConsentView is a consent joined with the names its listing shows.
type ConsentView struct {
	Consent
	SubjectName    string
	SubjectCPF     string // raw, masked on output
	SubjectUserID  string
	ControllerID   string // from the subject
	TypeName       string
	LegalBasisCode string
	CollectorName  string
}

// ConsentFilter narrows consent listings. Zero values mean "any".
type ConsentFilter struct {
	ControllerID string
	SubjectID    string
	SubjectUser  string
	TypeID       string
	From         *time.Time
	To           *time.Time
	Status       ConsentStatus
	Offset       int
	Limit        int
}

// ConsentPatch carries the mutable fields of an update; nil means unchanged.
type ConsentPatch struct {
	DataClassification []string
	Channel            *string
	RequestedDocuments []string
	ProofAttachment    *string
	StorageLocation    *string
	ExpiresAt          *time.Time
	ProofHash          *string
}
