package models

import (
	"time"
)

// Import run lifecycle. PENDING and VALIDATED may still be cancelled;
// IMPORTED, FAILED and CANCELLED are terminal.
const (
	ImportStatusPending   = "PENDING"
	ImportStatusValidated = "VALIDATED"
	ImportStatusImporting = "IMPORTING"
	ImportStatusImported  = "IMPORTED"
	ImportStatusCancelled = "CANCELLED"
	ImportStatusFailed    = "FAILED"
)

// ImportAudit records one execution of the bulk usuario import pipeline:
// who uploaded what, how many rows were created/updated/rejected, the first
// rejected rows, and how long processing took.
type ImportAudit struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID         *uint     `gorm:"column:account_id" json:"account_id,omitempty"`
	UploadedAt        time.Time `gorm:"column:uploaded_at;autoCreateTime;index" json:"uploaded_at"`
	Filename          string    `gorm:"column:filename;type:varchar(255)" json:"filename"`
	StoredPath        string    `gorm:"column:stored_path;type:varchar(512)" json:"-"`
	RowCount          uint      `gorm:"column:row_count;not null;default:0" json:"row_count"`
	CreatedCount      uint      `gorm:"column:created_count;not null;default:0" json:"created_count"`
	UpdatedCount      uint      `gorm:"column:updated_count;not null;default:0" json:"updated_count"`
	ErrorCount        uint      `gorm:"column:error_count;not null;default:0" json:"error_count"`
	Errors            string    `gorm:"column:errors;type:json" json:"-"`
	Status            string    `gorm:"column:status;type:varchar(20);not null;default:'PENDING'" json:"status"`
	ProcessingSeconds *float64  `gorm:"column:processing_seconds" json:"processing_seconds,omitempty"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Account *Account `gorm:"foreignKey:AccountID" json:"account,omitempty"`
}

func (ImportAudit) TableName() string { return "import_audits" }

// Finalized reports whether the run has reached a terminal status and must
// no longer change.
func (a *ImportAudit) Finalized() bool {
	switch a.Status {
	case ImportStatusImported, ImportStatusFailed, ImportStatusCancelled:
		return true
	}
	return false
}
