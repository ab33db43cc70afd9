package models

import "time"

const (
	RolAdmin = "ADMIN"
	RolUser  = "USER"
)

// Usuario is the canonical business-contact record managed by the registry.
// Identity is the email, stored lowercase and trimmed. Telefono is optional
// but unique when present. Deactivation is a soft delete via IsActive.
type Usuario struct {
	ID              uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	FirstName       string     `gorm:"column:first_name;type:varchar(50);not null" json:"first_name"`
	LastName        string     `gorm:"column:last_name;type:varchar(50);not null" json:"last_name"`
	Edad            *int       `gorm:"column:edad" json:"edad,omitempty"`
	Email           string     `gorm:"column:email;type:varchar(254);uniqueIndex;not null" json:"email"`
	Telefono        *string    `gorm:"column:telefono;type:varchar(30);uniqueIndex" json:"telefono,omitempty"`
	FechaNacimiento *time.Time `gorm:"column:fecha_nacimiento" json:"fecha_nacimiento,omitempty"`
	Rol             string     `gorm:"column:rol;type:varchar(55);not null;default:'USER'" json:"rol"`
	IsActive        bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CategoriaID     *uint      `gorm:"column:categoria_id" json:"categoria_id,omitempty"`
	CreatedByID     *uint      `gorm:"column:created_by" json:"created_by,omitempty"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	// Relations
	Categoria *Categoria `gorm:"foreignKey:CategoriaID" json:"categoria,omitempty"`
	CreatedBy *Account   `gorm:"foreignKey:CreatedByID" json:"-"`
}

type Categoria struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"column:name;type:varchar(50)" json:"name"`
}

func (Usuario) TableName() string   { return "usuarios" }
func (Categoria) TableName() string { return "categorias" }
