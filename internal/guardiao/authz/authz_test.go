package authz

import (
	"errors"
	"testing"

	"github.com/adrisa007/guardiao/internal/guardiao/domain"
	"github.com/stretchr/testify/require"
)

func TestRequireRole(t *testing.T) {
	t.Parallel()

	allowed := []domain.Role{domain.RoleRoot, domain.RoleDPO}
	for _, role := range domain.Roles {
		t.Run(string(role), func(t *testing.T) {
			err := RequireRole(Principal{UserID: "u", Role: role}, allowed...)
			if role == domain.RoleRoot || role == domain.RoleDPO {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrForbidden)

			var roleErr *RoleError
			require.True(t, errors.As(err, &roleErr))
			require.Equal(t, allowed, roleErr.Required)
			require.Equal(t, role, roleErr.Actual)
		})
	}
}

func TestAuthorizeConsent(t *testing.T) {
	t.Parallel()

	res := Resource{
		Kind:          KindConsent,
		ControllerID:  "tenant-a",
		SubjectUserID: "titular-1",
		CollectorID:   "colab-1",
	}

	cases := []struct {
		name  string
		p     Principal
		op    Op
		allow bool
	}{
		{"root reads", Principal{UserID: "r", Role: domain.RoleRoot}, OpRead, true},
		{"root deletes", Principal{UserID: "r", Role: domain.RoleRoot}, OpDelete, true},
		{"dpo same tenant updates", Principal{UserID: "d", Role: domain.RoleDPO, ControllerID: "tenant-a"}, OpUpdate, true},
		{"dpo other tenant reads", Principal{UserID: "d", Role: domain.RoleDPO, ControllerID: "tenant-b"}, OpRead, false},
		{"dpo cannot hard delete", Principal{UserID: "d", Role: domain.RoleDPO, ControllerID: "tenant-a"}, OpDelete, false},
		{"collector revokes", Principal{UserID: "colab-1", Role: domain.RoleColaborador, ControllerID: "tenant-a"}, OpRevoke, true},
		{"other collaborator reads", Principal{UserID: "colab-2", Role: domain.RoleColaborador, ControllerID: "tenant-a"}, OpRead, false},
		{"subject reads", Principal{UserID: "titular-1", Role: domain.RoleTitular}, OpRead, true},
		{"subject revokes", Principal{UserID: "titular-1", Role: domain.RoleTitular}, OpRevoke, true},
		{"subject cannot update", Principal{UserID: "titular-1", Role: domain.RoleTitular}, OpUpdate, false},
		{"other subject reads", Principal{UserID: "titular-2", Role: domain.RoleTitular}, OpRead, false},
		{"provider same tenant reads", Principal{UserID: "p", Role: domain.RolePrestador, ControllerID: "tenant-a"}, OpRead, true},
		{"provider cannot revoke", Principal{UserID: "p", Role: domain.RolePrestador, ControllerID: "tenant-a"}, OpRevoke, false},
		{"anonymous", Principal{}, OpRead, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.op, tc.p, res)
			if tc.allow {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrForbidden)
			}
		})
	}
}

func TestAuthorizeConsentWithoutTenant(t *testing.T) {
	t.Parallel()

	// A DPO with no tenant never matches a resource with no tenant.
	err := Authorize(OpRead, Principal{UserID: "d", Role: domain.RoleDPO}, Resource{Kind: KindConsent})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeDSAR(t *testing.T) {
	t.Parallel()

	res := DSARResource(domain.DSAR{RequesterID: "titular-1"})

	require.NoError(t, Authorize(OpUpdate, Principal{UserID: "d", Role: domain.RoleDPO}, res))
	require.NoError(t, Authorize(OpRead, Principal{UserID: "titular-1", Role: domain.RoleTitular}, res))
	require.NoError(t, Authorize(OpDownload, Principal{UserID: "titular-1", Role: domain.RoleTitular}, res))
	require.ErrorIs(t, Authorize(OpUpdate, Principal{UserID: "titular-1", Role: domain.RoleTitular}, res), ErrForbidden)
	require.ErrorIs(t, Authorize(OpRead, Principal{UserID: "c", Role: domain.RoleColaborador}, res), ErrForbidden)

	var denied *DeniedError
	require.True(t, errors.As(Authorize(OpRead, Principal{UserID: "x", Role: domain.RoleTitular}, res), &denied))
	require.Contains(t, denied.Message, "DSAR")
}
