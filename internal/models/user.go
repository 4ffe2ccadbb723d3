package models

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Actor is the authenticated caller of an operation, taken from a verified
// bearer token.
type Actor struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
