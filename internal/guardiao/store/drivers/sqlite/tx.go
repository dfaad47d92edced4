package sqlite

import (
	"context"
	"database/sql"

	"github.com/adrisa007/guardiao/internal/guardiao/store"
)

type txStore struct {
	tx *sql.Tx
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{tx: tx}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // outer DB stays open

// Ping is a no-op for transactions; the connection is already held.
func (t *txStore) Ping(ctx context.Context) error {
	return nil
}

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Users() store.Users                 { return &usersRepo{q: t.tx} }
func (t *txStore) RefreshTokens() store.RefreshTokens { return &refreshTokensRepo{q: t.tx} }
func (t *txStore) BackupCodes() store.BackupCodes     { return &backupCodesRepo{q: t.tx} }
func (t *txStore) MFASessions() store.MFASessions     { return &mfaSessionsRepo{q: t.tx} }
func (t *txStore) Subjects() store.Subjects           { return &subjectsRepo{q: t.tx} }
func (t *txStore) Catalog() store.Catalog             { return &catalogRepo{q: t.tx} }
func (t *txStore) Consents() store.Consents           { return &consentsRepo{q: t.tx} }
func (t *txStore) DSARs() store.DSARs                 { return &dsarsRepo{q: t.tx} }
func (t *txStore) AuditLogs() store.AuditLogs         { return &auditLogsRepo{q: t.tx} }

func (t *txStore) ApplyMigrations() error { return nil } // apply before starting a tx
