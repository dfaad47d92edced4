package http

import (
	"time"

	"github.com/adrisa007/guardiao/internal/guardiao/domain"
)

// JSON shapes returned by the API. Field names follow the Portuguese
// vocabulary the clients already use.

type userView struct {
	ID             string     `json:"id"`
	Name           string     `json:"nome"`
	Email          string     `json:"email"`
	Role           string     `json:"tipo"`
	ControllerID   string     `json:"controladoraId,omitempty"`
	Department     string     `json:"departamento,omitempty"`
	Active         bool       `json:"ativo"`
	Blocked        bool       `json:"bloqueado"`
	MFAEnabled     bool       `json:"mfaEnabled"`
	TermSigned     bool       `json:"termoAssinado"`
	TermValidUntil *time.Time `json:"termoValidoAte,omitempty"`
	LastLoginAt    *time.Time `json:"ultimoLogin,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func newUserView(u domain.User) userView {
	return userView{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Role:           string(u.Role),
		ControllerID:   u.ControllerID,
		Department:     u.Department,
		Active:         u.Active,
		Blocked:        u.Blocked,
		MFAEnabled:     u.MFAState() == domain.MFAActive,
		TermSigned:     u.TermSigned,
		TermValidUntil: u.TermValidUntil,
		LastLoginAt:    u.LastLoginAt,
		CreatedAt:      u.CreatedAt,
	}
}

type consentView struct {
	ID                 string     `json:"id"`
	SubjectID          string     `json:"titularId"`
	SubjectName        string     `json:"titularNome,omitempty"`
	SubjectCPF         string     `json:"titularCpfMascarado,omitempty"`
	TypeID             string     `json:"tipoConsentimentoId"`
	TypeName           string     `json:"tipoConsentimentoNome"`
	LegalBasisID       string     `json:"baseLegalId"`
	LegalBasisCode     string     `json:"baseLegalCodigo,omitempty"`
	DataClassification []string   `json:"classificacaoDados"`
	Channel            string     `json:"canalColeta,omitempty"`
	RequestedDocuments []string   `json:"documentosSolicitados,omitempty"`
	ProofAttachment    string     `json:"anexoProva,omitempty"`
	StorageLocation    string     `json:"localArmazenamento,omitempty"`
	ProofHash          string     `json:"comprovanteHash"`
	CollectedAt        time.Time  `json:"dataColeta"`
	ExpiresAt          *time.Time `json:"dataExpiracao,omitempty"`
	RevokedAt          *time.Time `json:"dataRevogacao,omitempty"`
	RevocationReason   string     `json:"motivoRevogacao,omitempty"`
	Status             string     `json:"status"`
	CollectorID        string     `json:"colaboradorId,omitempty"`
	CollectorName      string     `json:"colaboradorNome"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func newConsentView(v domain.ConsentView) consentView {
	collector := v.CollectorName
	if collector == "" {
		collector = "Sistema"
	}
	typeName := v.TypeName
	if typeName == "" {
		typeName = v.TypeID
	}
	return consentView{
		ID:                 v.ID,
		SubjectID:          v.SubjectID,
		SubjectName:        v.SubjectName,
		SubjectCPF:         domain.MaskCPF(v.SubjectCPF),
		TypeID:             v.TypeID,
		TypeName:           typeName,
		LegalBasisID:       v.LegalBasisID,
		LegalBasisCode:     v.LegalBasisCode,
		DataClassification: v.DataClassification,
		Channel:            v.Channel,
		RequestedDocuments: v.RequestedDocuments,
		ProofAttachment:    v.ProofAttachment,
		StorageLocation:    v.StorageLocation,
		ProofHash:          v.ProofHash,
		CollectedAt:        v.CollectedAt,
		ExpiresAt:          v.ExpiresAt,
		RevokedAt:          v.RevokedAt,
		RevocationReason:   v.RevocationReason,
		Status:             string(v.Status),
		CollectorID:        v.CollectorID,
		CollectorName:      collector,
		CreatedAt:          v.CreatedAt,
		UpdatedAt:          v.UpdatedAt,
	}
}

func newConsentViews(in []domain.ConsentView) []consentView {
	out := make([]consentView, len(in))
	for i, v := range in {
		out[i] = newConsentView(v)
	}
	return out
}

type subjectView struct {
	ID           string    `json:"id"`
	Name         string    `json:"nome"`
	CPF          string    `json:"cpfMascarado"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"telefone,omitempty"`
	ControllerID string    `json:"controladoraId"`
	UserID       string    `json:"usuarioId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func newSubjectView(s domain.Subject) subjectView {
	return subjectView{
		ID:           s.ID,
		Name:         s.Name,
		CPF:          domain.MaskCPF(s.CPF),
		Email:        s.Email,
		Phone:        s.Phone,
		ControllerID: s.ControllerID,
		UserID:       s.UserID,
		CreatedAt:    s.CreatedAt,
	}
}

type consentTypeView struct {
	ID                    string `json:"id"`
	ControllerID          string `json:"controladoraId"`
	Code                  string `json:"codigo"`
	Name                  string `json:"nome"`
	Description           string `json:"descricao,omitempty"`
	Active                bool   `json:"ativo"`
	RequiresPhysicalProof bool   `json:"exigeComprovanteFisico"`
}

func newConsentTypeView(t domain.ConsentType) consentTypeView {
	return consentTypeView{
		ID:                    t.ID,
		ControllerID:          t.ControllerID,
		Code:                  t.Code,
		Name:                  t.Name,
		Description:           t.Description,
		Active:                t.Active,
		RequiresPhysicalProof: t.RequiresPhysicalProof,
	}
}

type legalBasisView struct {
	ID          string `json:"id"`
	Code        string `json:"codigo"`
	Article     string `json:"artigo"`
	Description string `json:"descricao"`
	Sensitive   bool   `json:"dadosSensiveis"`
}

type dsarView struct {
	ID              string     `json:"id"`
	Protocol        string     `json:"protocolo"`
	Type            string     `json:"tipo"`
	SubjectName     string     `json:"nome"`
	SubjectCPF      string     `json:"cpfMascarado"`
	SubjectEmail    string     `json:"email"`
	SubjectPhone    string     `json:"telefone,omitempty"`
	Description     string     `json:"descricao,omitempty"`
	Format          string     `json:"formato,omitempty"`
	Status          string     `json:"status"`
	DPOResponse     string     `json:"respostaDpo,omitempty"`
	DenialReason    string     `json:"motivoIndeferimento,omitempty"`
	AttachmentURL   string     `json:"anexoUrl,omitempty"`
	HasAttachment   bool       `json:"possuiAnexo"`
	RespondedByName string     `json:"respondidoPor,omitempty"`
	DueAt           time.Time  `json:"prazoFinal"`
	RespondedAt     *time.Time `json:"dataResposta,omitempty"`
	DaysOpen        int        `json:"diasDesdeAbertura"`
	DeadlineMet     bool       `json:"prazoAtendido"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func newDSARView(d domain.DSAR, now time.Time) dsarView {
	return dsarView{
		ID:              d.ID,
		Protocol:        d.Protocol,
		Type:            string(d.Type),
		SubjectName:     d.SubjectName,
		SubjectCPF:      domain.MaskCPF(d.SubjectCPF),
		SubjectEmail:    d.SubjectEmail,
		SubjectPhone:    d.SubjectPhone,
		Description:     d.Description,
		Format:          d.Format,
		Status:          string(d.Status),
		DPOResponse:     d.DPOResponse,
		DenialReason:    d.DenialReason,
		AttachmentURL:   d.AttachmentURL,
		HasAttachment:   d.AttachmentURL != "" || d.AttachmentPath != "",
		RespondedByName: d.RespondedByName,
		DueAt:           d.DueAt,
		RespondedAt:     d.RespondedAt,
		DaysOpen:        d.DaysOpen(now),
		DeadlineMet:     d.DeadlineMet(now),
		CreatedAt:       d.CreatedAt,
	}
}

func newDSARViews(in []domain.DSAR, now time.Time) []dsarView {
	out := make([]dsarView, len(in))
	for i, d := range in {
		out[i] = newDSARView(d, now)
	}
	return out
}

type auditView struct {
	ID        string    `json:"id"`
	Action    string    `json:"acao"`
	UserID    string    `json:"usuarioId,omitempty"`
	Table     string    `json:"tabela"`
	RecordID  string    `json:"registroId,omitempty"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	DataAfter string    `json:"dadosDepois,omitempty"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"createdAt"`
}
