package domain

import "fmt"

// Role is the closed set of user types.
type Role string

const (
	RoleRoot        Role = "ROOT"
	RoleDPO         Role = "DPO"
	RoleColaborador Role = "COLABORADOR"
	RolePrestador   Role = "PRESTADOR"
	RoleTitular     Role = "TITULAR"
)

// Roles lists every role in display order.
var Roles = []Role{RoleRoot, RoleDPO, RoleColaborador, RolePrestador, RoleTitular}

// ParseRole accepts only the exact upper-case role names.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("domain: unknown role %q", s)
}

func (r Role) String() string { return string(r) }

// RoleInfo describes a role for the GET /auth/roles listing.
type RoleInfo struct {
	Role        Role   `json:"tipo"`
	Description string `json:"descricao"`
}

var roleDescriptions = map[Role]string{
	RoleRoot:        "Administrador da plataforma, acesso irrestrito",
	RoleDPO:         "Encarregado de dados da controladora",
	RoleColaborador: "Colaborador que coleta e gerencia consentimentos",
	RolePrestador:   "Operador terceirizado com acesso de leitura",
	RoleTitular:     "Titular dos dados pessoais",
}

// RoleCatalog returns the description of every role.
func RoleCatalog() []RoleInfo {
	out := make([]RoleInfo, 0, len(Roles))
	for _, r := range Roles {
		out = append(out, RoleInfo{Role: r, Description: roleDescriptions[r]})
	}
	return out
}
