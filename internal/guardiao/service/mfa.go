package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/adrisa007/guardiao/internal/guardiao/audit"
	"github.com/adrisa007/guardiao/internal/guardiao/domain"
	"github.com/adrisa007/guardiao/internal/guardiao/metrics"
	"github.com/adrisa007/guardiao/internal/guardiao/notify"
	"github.com/adrisa007/guardiao/internal/guardiao/store"
	"github.com/adrisa007/guardiao/pkg/cryptox"
	"github.com/adrisa007/guardiao/pkg/slogx"
)

// DefaultMFAIssuer is the issuer shown in authenticator apps.
const DefaultMFAIssuer = "Guardião LGPD"

const qrCodeSize = 256

type MFAService struct {
	Store    store.Store
	Audit    *audit.Recorder
	Notifier notify.Notifier
	Metrics  metrics.MetricsCollector
	Issuer   string
	Now      func() time.Time
}

func (s *MFAService) now() time.Time { return clock(s.Now).now() }

func (s *MFAService) metrics() metrics.MetricsCollector {
	if s.Metrics == nil {
		return metrics.Nop{}
	}
	return s.Metrics
}

// Enable starts enrolment: a new pending secret and a fresh set of backup
// codes. Calling it again while PENDING replaces both.
func (s *MFAService) Enable(ctx context.Context, userID string) (domain.MFAEnrollment, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.MFAEnrollment{}, ErrUserNotFound
		}
		return domain.MFAEnrollment{}, err
	}
	if u.MFAState() == domain.MFAActive {
		return domain.MFAEnrollment{}, ErrMFAAlreadyEnabled
	}

	issuer := s.Issuer
	if issuer == "" {
		issuer = DefaultMFAIssuer
	}
	if fn := firstName(u.Name); fn != "" {
		issuer += " - " + fn
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: u.Email,
		Period:      domain.TOTPPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.MFAEnrollment{}, fmt.Errorf("generate totp key: %w", err)
	}

	qr, err := qrDataURL(key)
	if err != nil {
		return domain.MFAEnrollment{}, err
	}

	codes, err := generateBackupCodes()
	if err != nil {
		return domain.MFAEnrollment{}, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().SetPendingMFASecret(ctx, u.ID, key.Secret()); err != nil {
			return fmt.Errorf("store pending secret: %w", err)
		}
		return replaceBackupCodes(ctx, tx, u.ID, codes)
	})
	if err != nil {
		return domain.MFAEnrollment{}, err
	}

	slogx.FromContext(ctx).Info("mfa enrolment started", slog.String("user_id", u.ID))
	notify.Async(ctx, s.Notifier, slogx.FromContext(ctx), notify.Message{
		To:      u.Email,
		Subject: "Ativação de MFA - Guardião LGPD",
		Body: fmt.Sprintf(
			"Olá %s,\n\nPara concluir a ativação do MFA, cadastre o código no seu aplicativo autenticador:\n%s\n\nCódigos de backup (uso único):\n%s\n",
			firstName(u.Name), key.URL(), strings.Join(codes, "\n"),
		),
	})

	return domain.MFAEnrollment{
		Secret:      key.Secret(),
		OTPAuthURL:  key.URL(),
		QRCodeURL:   qr,
		BackupCodes: codes,
	}, nil
}

// Verify completes enrolment. The code may be a TOTP value for the pending
// secret or one of the backup codes issued with it.
func (s *MFAService) Verify(ctx context.Context, userID, code string) error {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if u.MFASecretPending == nil || *u.MFASecretPending == "" {
		return ErrNoPendingMFA
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrMFACodeRequired
	}
	pending := *u.MFASecretPending
	now := s.now()

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if cryptox.IsBackupCodeShape(code) {
			ok, err := tx.BackupCodes().ConsumeBackupCode(ctx, u.ID, backupCodeHash(code))
			if err != nil {
				return err
			}
			if !ok {
				return ErrInvalidMFACode
			}
		} else if !validTOTP(code, pending, now) {
			return ErrInvalidMFACode
		}

		if err := tx.Users().ActivateMFA(ctx, u.ID, pending, now); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrMFAActivationRace
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidMFACode) {
			s.metrics().RecordMFAVerification(false)
			record(ctx, s.Audit, audit.Event{Action: domain.AuditMFAFailed, UserID: u.ID, Detail: map[string]any{"etapa": "ativacao"}})
		}
		return err
	}

	s.metrics().RecordMFAVerification(true)
	record(ctx, s.Audit, audit.Event{Action: domain.AuditMFAEnabled, UserID: u.ID})
	return nil
}

// Disable turns MFA off after checking a TOTP or backup code against the
// active secret.
func (s *MFAService) Disable(ctx context.Context, userID, code string) error {
	u, err := s.activeUser(ctx, userID)
	if err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		ok, err := verifyActiveCode(ctx, tx.BackupCodes(), u, code, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidMFACode
		}
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, u.ID); err != nil {
			return fmt.Errorf("delete backup codes: %w", err)
		}
		return tx.Users().DisableMFA(ctx, u.ID)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidMFACode) {
			s.metrics().RecordMFAVerification(false)
			record(ctx, s.Audit, audit.Event{Action: domain.AuditMFAFailed, UserID: u.ID, Detail: map[string]any{"etapa": "desativacao"}})
		}
		return err
	}

	record(ctx, s.Audit, audit.Event{Action: domain.AuditMFADisabled, UserID: u.ID})
	return nil
}

// RegenerateBackupCodes replaces every backup code. Only a TOTP code is
// accepted here, so a leaked backup code cannot mint new ones.
func (s *MFAService) RegenerateBackupCodes(ctx context.Context, userID, code string) ([]string, error) {
	u, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !validTOTP(strings.TrimSpace(code), *u.MFASecret, s.now()) {
		s.metrics().RecordMFAVerification(false)
		return nil, ErrInvalidTOTP
	}

	codes, err := generateBackupCodes()
	if err != nil {
		return nil, err
	}
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		return replaceBackupCodes(ctx, tx, u.ID, codes)
	})
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (s *MFAService) activeUser(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	if u.MFAState() != domain.MFAActive {
		return domain.User{}, ErrMFANotEnabled
	}
	return u, nil
}

// verifyActiveCode checks code against the active secret, falling back to
// the backup codes. A matching backup code is consumed.
func verifyActiveCode(ctx context.Context, codes store.BackupCodes, u domain.User, code string, now time.Time) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" || u.MFASecret == nil {
		return false, nil
	}
	if cryptox.IsBackupCodeShape(code) {
		return codes.ConsumeBackupCode(ctx, u.ID, backupCodeHash(code))
	}
	return validTOTP(code, *u.MFASecret, now), nil
}

// validTOTP accepts the current step and one step either side.
func validTOTP(code, secret string, now time.Time) bool {
	if len(code) != domain.TOTPDigits {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, now, totp.ValidateOpts{
		Period:    domain.TOTPPeriod,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func backupCodeHash(code string) string {
	return cryptox.FingerprintToken(cryptox.NormalizeBackupCode(code))
}

func generateBackupCodes() ([]string, error) {
	codes := make([]string, domain.BackupCodeCount)
	for i := range codes {
		c, err := cryptox.GenerateBackupCode()
		if err != nil {
			return nil, err
		}
		codes[i] = c
	}
	return codes, nil
}

func replaceBackupCodes(ctx context.Context, tx store.Tx, userID string, codes []string) error {
	if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, userID); err != nil {
		return fmt.Errorf("delete backup codes: %w", err)
	}
	for _, c := range codes {
		if err := tx.BackupCodes().CreateBackupCode(ctx, userID, backupCodeHash(c)); err != nil {
			return fmt.Errorf("store backup code: %w", err)
		}
	}
	return nil
}

func qrDataURL(key *otp.Key) (string, error) {
	img, err := key.Image(qrCodeSize, qrCodeSize)
	if err != nil {
		return "", fmt.Errorf("render qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
