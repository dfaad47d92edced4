package domain

import "time"

type MFAState string

const (
	MFADisabled MFAState = "DISABLED"
	MFAPending  MFAState = "PENDING"
	MFAActive   MFAState = "ACTIVE"
)

// Backup-code and TOTP parameters.
const (
	BackupCodeCount = 10
	TOTPDigits      = 6
	TOTPPeriod      = 30 // seconds
)

// MFA login challenge limits.
const (
	MFASessionTTL         = 5 * time.Minute
	MFASessionMaxAttempts = 5
)

// MFASession is the pending second step of a login for a user with MFA.
type MFASession struct {
	ID        string
	UserID    string
	Attempts  int
	IP        string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// MFAEnrollment is handed to the user when MFA is enabled.
type MFAEnrollment struct {
	Secret      string   `json:"secret"`
	OTPAuthURL  string   `json:"otpauth"`
	QRCodeURL   string   `json:"qrCodeUrl"` // data:image/png;base64,...
	BackupCodes []string `json:"backupCodes"`
}
