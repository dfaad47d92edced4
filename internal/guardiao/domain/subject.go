package domain

import "time"

// Subject is a data subject (titular) registered by a controller. UserID
// links it to a TITULAR account when the subject can sign in.
type Subject struct {
	ID           string
	Name         string
	CPF          string // digits only
	Email        string
	Phone        string
	ControllerID string
	UserID       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MaskCPF renders ***.456.789-** keeping the middle six digits.
func MaskCPF(cpf string) string {
	if len(cpf) < 9 {
		return ""
	}
	return "***." + cpf[3:6] + "." + cpf[6:9] + "-**"
}

// ConsentType is a tenant-defined purpose for which consent is collected.
type ConsentType struct {
	ID                    string
	ControllerID          string
	Code                  string
	Name                  string
	Description           string
	Active                bool
	RequiresPhysicalProof bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// LegalBasis is one of the statutory hypotheses (LGPD Art. 7 and Art. 11).
type LegalBasis struct {
	ID          string
	Code        string
	Article     string
	Description string
	Sensitive   bool // Art. 11, sensitive personal data
}
