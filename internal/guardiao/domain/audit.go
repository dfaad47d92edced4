package domain

import "time"

type AuditAction string

const (
	AuditLoginSuccess     AuditAction = "LOGIN_SUCCESS"
	AuditLoginFailed      AuditAction = "LOGIN_FAILED"
	AuditLoginMFARequired AuditAction = "LOGIN_MFA_REQUIRED"
	AuditMFAVerified      AuditAction = "MFA_VERIFIED"
	AuditMFAFailed        AuditAction = "MFA_FAILED"
	AuditMFAEnabled       AuditAction = "MFA_ENABLED"
	AuditMFADisabled      AuditAction = "MFA_DISABLED"
	AuditPasswordChanged  AuditAction = "PASSWORD_CHANGED"
	AuditUserRegistered   AuditAction = "USER_REGISTERED"
	AuditUserBlocked      AuditAction = "USER_BLOCKED"
	AuditTermSigned       AuditAction = "TERM_SIGNED"
	AuditLogout           AuditAction = "LOGOUT"
	AuditRefreshToken     AuditAction = "REFRESH_TOKEN"
	AuditConsentCreated   AuditAction = "CONSENT_CREATED"
	AuditConsentUpdated   AuditAction = "CONSENT_UPDATED"
	AuditConsentRevoked   AuditAction = "CONSENT_REVOKED"
	AuditConsentDeleted   AuditAction = "CONSENT_DELETED"
	AuditDSARCreated      AuditAction = "DSAR_CREATED"
	AuditDSARUpdated      AuditAction = "DSAR_UPDATED"
)

// AuditEntry is one row of the audit trail.
type AuditEntry struct {
	ID        string
	Action    AuditAction
	UserID    string
	Table     string
	RecordID  string
	IP        string
	UserAgent string
	DataAfter string // JSON
	Hash      string // FNV-1a 64, hex
	CreatedAt time.Time
}

// AuditFilter narrows audit listings.
type AuditFilter struct {
	Action AuditAction
	UserID string
	Offset int
	Limit  int
}
