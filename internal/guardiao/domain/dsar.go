package domain

import (
	"fmt"
	"time"
)

type DSARType string

// The nine data subject rights of LGPD Art. 18.
const (
	DSARConfirmation      DSARType = "CONFIRMACAO_EXISTENCIA"
	DSARAccess            DSARType = "ACESSO_AOS_DADOS"
	DSARCorrection        DSARType = "CORRECAO_DE_DADOS"
	DSARErasure           DSARType = "ANONIMIZACAO_BLOQUEIO_ELIMINACAO"
	DSARPortability       DSARType = "PORTABILIDADE"
	DSARSharingInfo       DSARType = "INFORMACAO_SOBRE_COMPARTILHAMENTO"
	DSARConsentRevocation DSARType = "REVOGACAO_CONSENTIMENTO"
	DSARANPDComplaint     DSARType = "RECLAMACAO_ANPD"
	DSAROpposition        DSARType = "OPOSICAO_TRATAMENTO_IRREGULAR"
)

var DSARTypes = []DSARType{
	DSARConfirmation, DSARAccess, DSARCorrection, DSARErasure, DSARPortability,
	DSARSharingInfo, DSARConsentRevocation, DSARANPDComplaint, DSAROpposition,
}

type DSARStatus string

const (
	DSAROpen         DSARStatus = "ABERTO"
	DSARInReview     DSARStatus = "EM_ANALISE"
	DSARAwaitingInfo DSARStatus = "AGUARDANDO_COMPLEMENTO"
	DSARAnswered     DSARStatus = "RESPONDIDO"
	DSARDenied       DSARStatus = "INDEFERIDO"
	DSARCancelled    DSARStatus = "CANCELADO"
	DSARArchived     DSARStatus = "ARQUIVADO"
)

var DSARStatuses = []DSARStatus{
	DSAROpen, DSARInReview, DSARAwaitingInfo, DSARAnswered, DSARDenied, DSARCancelled, DSARArchived,
}

// TerminalDSARStatuses cannot be answered again.
var TerminalDSARStatuses = []DSARStatus{DSARAnswered, DSARDenied, DSARCancelled, DSARArchived}

// Terminal reports whether s closes the ticket.
func (s DSARStatus) Terminal() bool {
	switch s {
	case DSARAnswered, DSARDenied, DSARCancelled, DSARArchived:
		return true
	}
	return false
}

// DSARDeadline is the statutory response window.
const DSARDeadline = 15 * 24 * time.Hour

// FormatProtocol renders DSAR-<year>-<seq>.
func FormatProtocol(year, seq int) string {
	return fmt.Sprintf("DSAR-%d-%06d", year, seq)
}

// DSAR is a data subject access request ticket.
type DSAR struct {
	ID              string
	Protocol        string
	Type            DSARType
	RequesterID     string // user id when filed while authenticated
	SubjectName     string
	SubjectCPF      string
	SubjectEmail    string
	SubjectPhone    string
	Description     string
	Format          string // PORTABILIDADE only
	Status          DSARStatus
	DPOResponse     string
	AttachmentURL   string
	AttachmentPath  string
	DenialReason    string
	RespondedByID   string
	RespondedByName string
	DueAt           time.Time
	RespondedAt     *time.Time
	ArchivedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DaysOpen is the number of whole days since the ticket was filed.
func (d DSAR) DaysOpen(now time.Time) int {
	return int(now.Sub(d.CreatedAt) / (24 * time.Hour))
}

// DeadlineMet reports whether the ticket was (or still can be) answered on
// time: answered before the due date, or still open and not yet due.
func (d DSAR) DeadlineMet(now time.Time) bool {
	if d.RespondedAt != nil {
		return !d.RespondedAt.After(d.DueAt)
	}
	return !now.After(d.DueAt)
}

// DSARFilter narrows DSAR listings.
type DSARFilter struct {
	RequesterID string
	Status      DSARStatus
	Type        DSARType
	CPF         string // substring of digits
	Offset      int
	Limit       int
}

// DSARAnswer is the DPO's update of a ticket.
type DSARAnswer struct {
	Status         DSARStatus
	DPOResponse    string
	DenialReason   string
	AttachmentURL  string
	AttachmentPath string
	RespondedByID  string
	RespondedAt    time.Time
}
