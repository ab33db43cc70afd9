package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"nuam-exchange-api/config"
	"nuam-exchange-api/models"

	"gorm.io/gorm"
)

var (
	ErrImportRunNotFound       = errors.New("import run not found")
	ErrImportRunFinalized      = errors.New("import run already finalized")
	ErrImportRunNotCancellable = errors.New("import run can no longer be cancelled")
)

// ErrKindRunFatal tags run-level failures (unreadable file, missing columns,
// row ceiling) stored in the same error list as row errors, with Row 0.
const ErrKindRunFatal ErrorKind = "RUN_FATAL"

// Valid forward transitions of an import run. Absent source states are
// terminal.
var importTransitions = map[string][]string{
	models.ImportStatusPending:   {models.ImportStatusValidated, models.ImportStatusFailed, models.ImportStatusCancelled},
	models.ImportStatusValidated: {models.ImportStatusImporting, models.ImportStatusFailed, models.ImportStatusCancelled},
	models.ImportStatusImporting: {models.ImportStatusImported, models.ImportStatusFailed},
}

// ImportAuditService persists the audit trail of import runs and enforces
// the status lifecycle. Once a run reaches IMPORTED, FAILED or CANCELLED it
// is immutable.
type ImportAuditService struct {
	db *gorm.DB
}

func NewImportAuditService(db *gorm.DB) *ImportAuditService {
	if db == nil {
		db = config.DB
	}
	return &ImportAuditService{db: db}
}

// Start creates the PENDING run record at upload time.
func (s *ImportAuditService) Start(accountID *uint, filename, storedPath string) (*models.ImportAudit, error) {
	run := &models.ImportAudit{
		AccountID:  accountID,
		Filename:   filename,
		StoredPath: storedPath,
		Status:     models.ImportStatusPending,
		Errors:     "[]",
	}
	if err := s.db.Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// MarkValidated records that pre-checks passed and the dataset row count is
// known.
func (s *ImportAuditService) MarkValidated(run *models.ImportAudit, rowCount int) error {
	run.RowCount = uint(rowCount)
	return s.transition(run, models.ImportStatusValidated, map[string]interface{}{
		"row_count": rowCount,
	})
}

// MarkImporting flags the run as in-flight.
func (s *ImportAuditService) MarkImporting(run *models.ImportAudit) error {
	return s.transition(run, models.ImportStatusImporting, nil)
}

// Finish stores the final counts, the first StoredErrorLimit errors and the
// elapsed wall-clock time. The run ends IMPORTED when at least one row was
// created or updated, FAILED otherwise.
func (s *ImportAuditService) Finish(run *models.ImportAudit, created, updated int, rowErrors []RowError, elapsed time.Duration) error {
	status := models.ImportStatusFailed
	if created+updated > 0 {
		status = models.ImportStatusImported
	}

	stored := rowErrors
	if len(stored) > StoredErrorLimit {
		stored = stored[:StoredErrorLimit]
	}
	encoded, err := encodeRowErrors(stored)
	if err != nil {
		return err
	}

	seconds := elapsed.Seconds()
	run.CreatedCount = uint(created)
	run.UpdatedCount = uint(updated)
	run.ErrorCount = uint(len(rowErrors))
	run.Errors = encoded
	run.ProcessingSeconds = &seconds

	return s.transition(run, status, map[string]interface{}{
		"created_count":      created,
		"updated_count":      updated,
		"error_count":        len(rowErrors),
		"errors":             encoded,
		"processing_seconds": seconds,
	})
}

// Fail terminates the run with a single run-fatal message and zero counts.
func (s *ImportAuditService) Fail(run *models.ImportAudit, message string, elapsed time.Duration) error {
	encoded, err := encodeRowErrors([]RowError{{
		Row:    0,
		Errors: []FieldError{{Kind: ErrKindRunFatal, Message: message}},
	}})
	if err != nil {
		return err
	}

	seconds := elapsed.Seconds()
	run.ErrorCount = 1
	run.Errors = encoded
	run.ProcessingSeconds = &seconds

	return s.transition(run, models.ImportStatusFailed, map[string]interface{}{
		"error_count":        1,
		"errors":             encoded,
		"processing_seconds": seconds,
	})
}

// Cancel aborts a run that has not started importing yet.
func (s *ImportAuditService) Cancel(id uint) (*models.ImportAudit, error) {
	run, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.transition(run, models.ImportStatusCancelled, nil); err != nil {
		if errors.Is(err, ErrImportRunFinalized) || run.Status == models.ImportStatusImporting {
			return nil, ErrImportRunNotCancellable
		}
		return nil, err
	}
	return run, nil
}

func (s *ImportAuditService) GetByID(id uint) (*models.ImportAudit, error) {
	var run models.ImportAudit
	if err := s.db.Where("id = ?", id).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrImportRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

// List returns runs newest first, optionally filtered to one account.
func (s *ImportAuditService) List(accountID *uint, limit, offset int) ([]models.ImportAudit, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := s.db.Model(&models.ImportAudit{})
	if accountID != nil {
		query = query.Where("account_id = ?", *accountID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var runs []models.ImportAudit
	err := query.Order("uploaded_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

// transition validates the lifecycle edge and persists the status change
// together with any extra column updates.
func (s *ImportAuditService) transition(run *models.ImportAudit, to string, extra map[string]interface{}) error {
	if run.Finalized() {
		return ErrImportRunFinalized
	}

	allowed := false
	for _, next := range importTransitions[run.Status] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("invalid import run transition %s -> %s", run.Status, to)
	}

	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}

	res := s.db.Model(&models.ImportAudit{}).Where("id = ?", run.ID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrImportRunNotFound
	}

	run.Status = to
	return nil
}

func encodeRowErrors(rowErrors []RowError) (string, error) {
	if rowErrors == nil {
		rowErrors = []RowError{}
	}
	data, err := json.Marshal(rowErrors)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeRowErrors reads the stored error list back from a run record.
func DecodeRowErrors(run *models.ImportAudit) ([]RowError, error) {
	if run.Errors == "" {
		return nil, nil
	}
	var rowErrors []RowError
	if err := json.Unmarshal([]byte(run.Errors), &rowErrors); err != nil {
		return nil, err
	}
	return rowErrors, nil
}
