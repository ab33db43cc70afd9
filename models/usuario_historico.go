package models

import "time"

// UsuarioHistorico is an append-only snapshot of a Usuario's fields taken
// immediately before an update. Creation of a Usuario leaves no history;
// every update produces exactly one entry. Rows are written explicitly by
// the services that mutate usuarios, never by persistence hooks.
type UsuarioHistorico struct {
	ID              uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UsuarioID       uint       `gorm:"column:usuario_id;not null;index" json:"usuario_id"`
	FirstName       string     `gorm:"column:first_name;type:varchar(100)" json:"first_name"`
	LastName        string     `gorm:"column:last_name;type:varchar(100)" json:"last_name"`
	Edad            *int       `gorm:"column:edad" json:"edad,omitempty"`
	Email           string     `gorm:"column:email;type:varchar(254)" json:"email"`
	Telefono        *string    `gorm:"column:telefono;type:varchar(30)" json:"telefono,omitempty"`
	FechaNacimiento *time.Time `gorm:"column:fecha_nacimiento" json:"fecha_nacimiento,omitempty"`
	ModifiedAt      time.Time  `gorm:"column:modified_at;autoCreateTime" json:"modified_at"`
	ModifiedByID    *uint      `gorm:"column:modified_by" json:"modified_by,omitempty"`
	ChangeReason    *string    `gorm:"column:change_reason;type:text" json:"change_reason,omitempty"`

	Usuario *Usuario `gorm:"foreignKey:UsuarioID" json:"-"`
}

func (UsuarioHistorico) TableName() string { return "usuario_historicos" }

// SnapshotOf builds a history entry from the usuario's current field values.
func SnapshotOf(u *Usuario, actorID *uint, reason string) *UsuarioHistorico {
	h := &UsuarioHistorico{
		UsuarioID:       u.ID,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Edad:            u.Edad,
		Email:           u.Email,
		Telefono:        u.Telefono,
		FechaNacimiento: u.FechaNacimiento,
		ModifiedByID:    actorID,
	}
	if reason != "" {
		h.ChangeReason = &reason
	}
	return h
}
