package models

import "time"

const (
	RoleAdmin    = "Admin"
	RoleManager  = "Manager"
	RoleEmployee = "Employee"
)

// Account is a login identity for the system. It is separate from Usuario:
// accounts authenticate, usuarios are the business-contact registry.
type Account struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string     `gorm:"column:username;type:varchar(150);uniqueIndex;not null" json:"username"`
	Email     string     `gorm:"column:email;type:varchar(254);uniqueIndex;not null" json:"email"`
	Password  string     `gorm:"column:password;type:varchar(128);not null" json:"-"`
	FirstName string     `gorm:"column:first_name;type:varchar(50)" json:"first_name"`
	LastName  string     `gorm:"column:last_name;type:varchar(50)" json:"last_name"`
	Role      string     `gorm:"column:role;type:varchar(20);not null;default:'Employee'" json:"role"`
	IsActive  bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	DeleteAt  *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`
}

func (Account) TableName() string { return "accounts" }

// HasRole reports whether the account holds any of the given roles.
func (a *Account) HasRole(roles ...string) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}
