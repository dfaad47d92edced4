package domain

import "time"

type User struct {
	ID           string
	Name         string
	Email        string // always lower-case
	CPF          string
	Department   string
	PasswordHash string // bcrypt
	Role         Role
	ControllerID string // tenant; empty for platform ROOT users
	Active       bool
	Blocked      bool

	TermSigned     bool
	TermValidUntil *time.Time

	MFASecret        *string // active TOTP secret (base32)
	MFASecretPending *string // generated by enable, not yet verified
	MFAEnabledAt     *time.Time

	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MFAState derives the enrolment state from the two secret columns.
func (u User) MFAState() MFAState {
	switch {
	case u.MFASecret != nil && *u.MFASecret != "":
		return MFAActive
	case u.MFASecretPending != nil && *u.MFASecretPending != "":
		return MFAPending
	default:
		return MFADisabled
	}
}

// TermValid reports whether the confidentiality term is signed and not
// past its validity at now.
func (u User) TermValid(now time.Time) bool {
	if !u.TermSigned {
		return false
	}
	return u.TermValidUntil == nil || now.Before(*u.TermValidUntil)
}

// UserStatusUpdate is a partial change to the account flags.
type UserStatusUpdate struct {
	Active  *bool
	Blocked *bool
}
