package auth

import (
	"slices"

	"github.com/khanghh/kattest/model"
)

// Principal is the authenticated caller of a request. Handlers resolve it once and pass
// it explicitly to services.
type Principal struct {
	UserID    uint
	Role      string
	Email     string
	FullName  string
	IP        string
	UserAgent string
}

func (p Principal) HasRole(roles ...string) bool {
	return slices.Contains(roles, p.Role)
}

func (p Principal) IsDirector() bool {
	return p.Role == model.RoleDirecteur
}

func NewPrincipal(user *model.User, ip, userAgent string) Principal {
	return Principal{
		UserID:    user.ID,
		Role:      user.Role,
		Email:     user.Email,
		FullName:  user.FullName,
		IP:        ip,
		UserAgent: userAgent,
	}
}
