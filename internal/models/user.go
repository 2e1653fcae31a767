package models

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

type UnknownUser struct {
	Login    *string `json:"login"`
	Password *string `json:"password"`
	Email    *string `json:"email,omitempty"`
}

type User struct {
	ID    string
	Login string
	Hash  string
	Email string
	Role  Role
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
