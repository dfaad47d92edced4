package service

import (
	"errors"

	"github.com/adrisa007/guardiao/internal/guardiao/authz"
)

// Error kinds. Every *Error unwraps to exactly one of these, which the
// HTTP layer maps to a status code.
var (
	ErrBadRequest   = errors.New("bad_request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = authz.ErrForbidden
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")
)

// Error is a client-facing failure: Message is safe to show to the caller.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Kind }

func newErr(kind error, msg string) *Error { return &Error{Kind: kind, Message: msg} }

// BadRequest builds an ad-hoc 400 error.
func BadRequest(msg string) *Error { return newErr(ErrBadRequest, msg) }

// Forbidden builds an ad-hoc 403 error.
func Forbidden(msg string) *Error { return newErr(ErrForbidden, msg) }

// NotFound builds an ad-hoc 404 error.
func NotFound(msg string) *Error { return newErr(ErrNotFound, msg) }

// Login and account.
var (
	ErrInvalidCredentials = newErr(ErrUnauthorized, "Credenciais inválidas")
	ErrAccountDisabled    = newErr(ErrUnauthorized, "Conta desativada ou bloqueada")
	ErrTermNotSigned      = newErr(ErrForbidden, "Termo de confidencialidade não assinado")
	ErrTermExpired        = newErr(ErrForbidden, "Termo de confidencialidade vencido")
	ErrInvalidRefresh     = newErr(ErrUnauthorized, "Refresh token inválido ou expirado")
	ErrWrongPassword      = newErr(ErrUnauthorized, "Senha atual incorreta")
	ErrPasswordMismatch   = newErr(ErrBadRequest, "As senhas não coincidem")
	ErrEmailTaken         = newErr(ErrConflict, "E-mail já cadastrado")
	ErrUserNotFound       = newErr(ErrNotFound, "Usuário não encontrado")
	ErrRegisterRoot       = newErr(ErrForbidden, "DPO não pode cadastrar usuários ROOT")
	ErrOtherTenant        = newErr(ErrForbidden, "Operação restrita à sua controladora")
	ErrBootstrapDone      = newErr(ErrConflict, "Plataforma já inicializada")
	ErrBootstrapToken     = newErr(ErrUnauthorized, "Token de inicialização inválido")
)

// MFA.
var (
	ErrMFASessionInvalid = newErr(ErrUnauthorized, "Sessão MFA inválida ou expirada")
	ErrTooManyAttempts   = newErr(ErrUnauthorized, "Número máximo de tentativas excedido")
	ErrMFACodeRequired   = newErr(ErrBadRequest, "Código MFA necessário")
	ErrNoPendingMFA      = newErr(ErrBadRequest, "MFA não foi iniciado")
	ErrMFAAlreadyEnabled = newErr(ErrBadRequest, "MFA já está ativo")
	ErrMFANotEnabled     = newErr(ErrBadRequest, "MFA não está ativo")
	ErrInvalidMFACode    = newErr(ErrUnauthorized, "Código MFA ou backup inválido")
	ErrInvalidTOTP       = newErr(ErrUnauthorized, "Código inválido")
	ErrMFAActivationRace = newErr(ErrConflict, "MFA foi reiniciado por outra requisição")
)

// Consents and catalog.
var (
	ErrConsentNotFound     = newErr(ErrNotFound, "Consentimento não encontrado")
	ErrConsentRevoked      = newErr(ErrBadRequest, "Consentimento já foi revogado")
	ErrImmutableField      = newErr(ErrForbidden, "Não é permitido alterar titular, tipo de consentimento ou base legal")
	ErrSubjectNotFound     = newErr(ErrNotFound, "Titular não encontrado")
	ErrSubjectExists       = newErr(ErrConflict, "Titular já cadastrado para esta controladora")
	ErrConsentTypeNotFound = newErr(ErrNotFound, "Tipo de consentimento não encontrado")
	ErrConsentTypeInactive = newErr(ErrForbidden, "Tipo de consentimento inativo")
	ErrConsentTypeExists   = newErr(ErrConflict, "Código de tipo de consentimento já existe")
	ErrLegalBasisNotFound  = newErr(ErrNotFound, "Base legal não encontrada")
	ErrProofRequired       = newErr(ErrBadRequest, "Este tipo de consentimento exige anexo de prova física")
	ErrExportFormat        = newErr(ErrBadRequest, "Formato deve ser csv ou json")
)

// DSARs.
var (
	ErrDSARNotFound  = newErr(ErrNotFound, "Solicitação não encontrada")
	ErrDSARClosed    = newErr(ErrBadRequest, "Solicitação já foi finalizada e não pode ser alterada")
	ErrANPDComplaint = newErr(ErrBadRequest, "Reclamações devem ser registradas diretamente na ANPD (www.gov.br/anpd)")
	ErrNoAttachment  = newErr(ErrNotFound, "Nenhum anexo disponível para esta solicitação")
)
