package store

import (
	"context"
	"errors"
	"time"

	"github.com/adrisa007/guardiao/internal/guardiao/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict is returned by conditional updates whose precondition no
	// longer holds (already revoked, already answered, secret replaced).
	ErrConflict = errors.New("store: conflict")
)

// Store is the root data access interface. Concrete drivers implement this.
// It exposes sub-repositories to keep concerns tidy and testable, and so
// that a Tx-scoped Store cannot open a nested transaction.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens
	BackupCodes() BackupCodes
	MFASessions() MFASessions
	Subjects() Subjects
	Catalog() Catalog
	Consents() Consents
	DSARs() DSARs
	AuditLogs() AuditLogs

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail expects an already lower-cased e-mail.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser fails with ErrAlreadyExists on a duplicate e-mail.
	CreateUser(ctx context.Context, u domain.User) error

	// IsEmpty returns true if there are no users.
	IsEmpty(ctx context.Context) (bool, error)

	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
	SignTerm(ctx context.Context, userID string, validUntil time.Time) error
	UpdateStatus(ctx context.Context, userID string, active, blocked bool) error

	// SetPendingMFASecret stores a new pending secret, replacing any other.
	SetPendingMFASecret(ctx context.Context, userID, secret string) error

	// ActivateMFA promotes the pending secret to active only if it still
	// equals pending. Returns ErrConflict otherwise.
	ActivateMFA(ctx context.Context, userID, pending string, at time.Time) error

	// DisableMFA clears both the active and the pending secret.
	DisableMFA(ctx context.Context, userID string) error
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// ConsumeRefreshToken marks a live token as revoked and returns it.
	// Absent, revoked and expired tokens all yield ErrNotFound.
	ConsumeRefreshToken(ctx context.Context, hash string, now time.Time) (domain.RefreshToken, error)

	// RevokeRefreshToken is idempotent.
	RevokeRefreshToken(ctx context.Context, hash string) error

	RevokeUserRefreshTokens(ctx context.Context, userID string) error

	// DeleteExpiredRefreshTokens removes expired or revoked rows.
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type BackupCodes interface {
	CreateBackupCode(ctx context.Context, userID, codeHash string) error

	// ConsumeBackupCode deletes the code and reports whether it existed.
	ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error)

	// HasBackupCode checks for an unused code without consuming it.
	HasBackupCode(ctx context.Context, userID, codeHash string) (bool, error)

	DeleteAllBackupCodes(ctx context.Context, userID string) error
	CountUserBackupCodes(ctx context.Context, userID string) (int, error)
}

type MFASessions interface {
	CreateMFASession(ctx context.Context, s domain.MFASession) error

	// GetMFASession returns the session only if it has not expired at now.
	GetMFASession(ctx context.Context, id string, now time.Time) (domain.MFASession, error)

	// IncrementMFASessionAttempts bumps the failed attempt counter and
	// returns the updated session.
	IncrementMFASessionAttempts(ctx context.Context, id string) (domain.MFASession, error)

	DeleteMFASession(ctx context.Context, id string) error
	DeleteExpiredMFASessions(ctx context.Context, now time.Time) (int64, error)
}

type Subjects interface {
	// CreateSubject fails with ErrAlreadyExists when the CPF is already
	// registered for the same controller.
	CreateSubject(ctx context.Context, s domain.Subject) error
	GetSubjectByID(ctx context.Context, id string) (domain.Subject, error)
}

type Catalog interface {
	CreateConsentType(ctx context.Context, t domain.ConsentType) error
	GetConsentType(ctx context.Context, id string) (domain.ConsentType, error)

	// ListConsentTypes lists a controller's types; empty controllerID lists all.
	ListConsentTypes(ctx context.Context, controllerID string) ([]domain.ConsentType, error)

	GetLegalBasis(ctx context.Context, id string) (domain.LegalBasis, error)
	ListLegalBases(ctx context.Context) ([]domain.LegalBasis, error)
}

type Consents interface {
	CreateConsent(ctx context.Context, c domain.Consent) error
	GetConsent(ctx context.Context, id string) (domain.ConsentView, error)
	ListConsents(ctx context.Context, f domain.ConsentFilter) ([]domain.ConsentView, error)
	CountConsents(ctx context.Context, f domain.ConsentFilter) (int, error)

	// UpdateConsent applies p only while the record is ATIVO, else ErrConflict.
	UpdateConsent(ctx context.Context, id string, p domain.ConsentPatch, now time.Time) error

	// RevokeConsent flips an ATIVO record to REVOGADO, else ErrConflict.
	RevokeConsent(ctx context.Context, id, reason string, at time.Time) error

	DeleteConsent(ctx context.Context, id string) error

	// ExpireConsents marks ATIVO records past their expiry as EXPIRADO.
	ExpireConsents(ctx context.Context, now time.Time) (int64, error)
}

type DSARs interface {
	// NextProtocolSeq increments and returns the counter for year. Call it
	// inside the same transaction as CreateDSAR.
	NextProtocolSeq(ctx context.Context, year int) (int, error)

	CreateDSAR(ctx context.Context, d domain.DSAR) error
	GetDSAR(ctx context.Context, id string) (domain.DSAR, error)
	ListDSARs(ctx context.Context, f domain.DSARFilter) ([]domain.DSAR, error)
	CountDSARs(ctx context.Context, f domain.DSARFilter) (int, error)

	// AnswerDSAR applies a only while the ticket is not terminal, else
	// ErrConflict.
	AnswerDSAR(ctx context.Context, id string, a domain.DSARAnswer) error
}

type AuditLogs interface {
	InsertAuditEntry(ctx context.Context, e domain.AuditEntry) error
	ListAuditEntries(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, error)
	CountAuditEntries(ctx context.Context, f domain.AuditFilter) (int, error)
}
