package models

import "time"

// Role identifies the kind of authenticated account.
type Role string

const (
	RoleSuperAdmin Role = "SUPERADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleStudent    Role = "STUDENT"
)

// Admin represents a portal administrator stored in the admins table.
type Admin struct {
	ID           string    `db:"id" json:"id"`
	AdminID      string    `db:"admin_id" json:"admin_id"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Name         string    `db:"name" json:"name"`
	Role         Role      `db:"role" json:"role"`
	Mobile       string    `db:"mobile" json:"mobile"`
	PhotoColor   string    `db:"photo_color" json:"photo_color"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
