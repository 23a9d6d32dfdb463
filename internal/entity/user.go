package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// User roles.
const (
	RoleBuyer = "buyer"
	RoleAdmin = "admin"
)

// User is a registered account. Registration and login live outside this
// service; the row exists so requests can be resolved to a principal.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID           int64     `bun:",pk,autoincrement"`
	Username     string    `bun:"username"`
	Email        string    `bun:"email"`
	PasswordHash string    `bun:"password_hash,nullzero"`
	Role         string    `bun:"role"`
	APIToken     string    `bun:"api_token,nullzero"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
