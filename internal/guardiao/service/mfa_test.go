package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/adrisa007/guardiao/internal/guardiao/domain"
)

func TestMFAEnrolment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.user(t, "ana@example.com", domain.RoleDPO, uuid.NewString())

	require.ErrorIs(t, h.mfa.Verify(ctx, u.ID, "123456"), ErrNoPendingMFA)

	enr, err := h.mfa.Enable(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, enr.BackupCodes, domain.BackupCodeCount)
	require.True(t, strings.HasPrefix(enr.QRCodeURL, "data:image/png;base64,"))
	require.Contains(t, enr.OTPAuthURL, "otpauth://totp/")

	msg := h.notes.next(t)
	require.Equal(t, u.Email, msg.To)
	require.Contains(t, msg.Body, enr.BackupCodes[0])

	got, err := h.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MFAPending, got.MFAState())

	t.Run("re-enable replaces the pending secret", func(t *testing.T) {
		again, err := h.mfa.Enable(ctx, u.ID)
		require.NoError(t, err)
		h.notes.next(t)
		require.NotEqual(t, enr.Secret, again.Secret)

		old, err := totp.GenerateCode(enr.Secret, h.clock.Now())
		require.NoError(t, err)
		require.ErrorIs(t, h.mfa.Verify(ctx, u.ID, old), ErrInvalidMFACode)
		require.ErrorIs(t, h.mfa.Verify(ctx, u.ID, enr.BackupCodes[0]), ErrInvalidMFACode)
		enr = again
	})

	t.Run("wrong code keeps it pending", func(t *testing.T) {
		require.ErrorIs(t, h.mfa.Verify(ctx, u.ID, "000000"), ErrInvalidMFACode)
		got, err := h.store.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, domain.MFAPending, got.MFAState())
	})

	t.Run("verify activates", func(t *testing.T) {
		code, err := totp.GenerateCode(enr.Secret, h.clock.Now())
		require.NoError(t, err)
		require.NoError(t, h.mfa.Verify(ctx, u.ID, code))

		got, err := h.store.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, domain.MFAActive, got.MFAState())
		require.NotNil(t, got.MFAEnabledAt)

		_, err = h.mfa.Enable(ctx, u.ID)
		require.ErrorIs(t, err, ErrMFAAlreadyEnabled)
	})
}

func TestMFAVerifyWithBackupCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.user(t, "ana@example.com", domain.RoleDPO, uuid.NewString())

	enr, err := h.mfa.Enable(ctx, u.ID)
	require.NoError(t, err)
	h.notes.next(t)

	require.NoError(t, h.mfa.Verify(ctx, u.ID, strings.ToLower(enr.BackupCodes[3])))

	n, err := h.store.BackupCodes().CountUserBackupCodes(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BackupCodeCount-1, n)
}

func TestMFAConcurrentActivation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.user(t, "ana@example.com", domain.RoleDPO, uuid.NewString())

	enr, err := h.mfa.Enable(ctx, u.ID)
	require.NoError(t, err)
	h.notes.next(t)
	code, err := totp.GenerateCode(enr.Secret, h.clock.Now())
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := h.mfa.Verify(ctx, u.ID, code)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		// The loser either saw the secret already promoted or lost the
		// conditional update.
		if !errors.Is(err, ErrNoPendingMFA) {
			require.ErrorIs(t, err, ErrMFAActivationRace)
		}
	}
	require.Equal(t, 1, ok)
}

func TestMFADisable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.user(t, "ana@example.com", domain.RoleDPO, uuid.NewString())

	require.ErrorIs(t, h.mfa.Disable(ctx, u.ID, "123456"), ErrMFANotEnabled)

	enr := enableMFA(t, h, u)
	require.ErrorIs(t, h.mfa.Disable(ctx, u.ID, "000000"), ErrInvalidMFACode)

	require.NoError(t, h.mfa.Disable(ctx, u.ID, enr.BackupCodes[1]))

	got, err := h.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MFADisabled, got.MFAState())
	n, err := h.store.BackupCodes().CountUserBackupCodes(ctx, u.ID)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestMFARegenerateBackupCodes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.user(t, "ana@example.com", domain.RoleDPO, uuid.NewString())

	_, err := h.mfa.RegenerateBackupCodes(ctx, u.ID, "123456")
	require.ErrorIs(t, err, ErrMFANotEnabled)

	enr := enableMFA(t, h, u)

	_, err = h.mfa.RegenerateBackupCodes(ctx, u.ID, enr.BackupCodes[0])
	require.ErrorIs(t, err, ErrInvalidTOTP)

	code, err := totp.GenerateCode(enr.Secret, h.clock.Now())
	require.NoError(t, err)
	codes, err := h.mfa.RegenerateBackupCodes(ctx, u.ID, code)
	require.NoError(t, err)
	require.Len(t, codes, domain.BackupCodeCount)

	// Old codes stop working.
	res, err := h.auth.Login(ctx, u.Email, testPassword)
	require.NoError(t, err)
	_, err = h.auth.CompleteMFA(ctx, res.MFASessionID, enr.BackupCodes[0])
	require.ErrorIs(t, err, ErrInvalidMFACode)
	_, err = h.auth.CompleteMFA(ctx, res.MFASessionID, codes[0])
	require.NoError(t, err)
}
