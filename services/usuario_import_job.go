package services

import (
	"fmt"
	"log"
	"strings"
	"time"

	"nuam-exchange-api/config"
	"nuam-exchange-api/models"
	"nuam-exchange-api/utils"

	"gorm.io/gorm"
)

const (
	// MaxImportRows bounds one run; files beyond it fail before any row is
	// processed.
	MaxImportRows = 1000
	// MaxImportFileBytes is the upload size ceiling (5 MB).
	MaxImportFileBytes = 5 * 1024 * 1024
	// StoredErrorLimit bounds the error list persisted on the run record.
	StoredErrorLimit = 20
	// ResponseErrorLimit bounds the error list returned to the caller.
	ResponseErrorLimit = 10
)

// RequiredImportColumns must all be present in the dataset header.
var RequiredImportColumns = []string{"first_name", "last_name", "email"}

// ImportChangeReason is recorded on history entries written by the pipeline.
const ImportChangeReason = "importación masiva"

var ErrRowLimitExceeded = fmt.Errorf("el archivo excede el límite de %d registros", MaxImportRows)

// MissingColumnsError is the run-fatal verdict for a dataset whose header
// lacks required columns.
type MissingColumnsError struct {
	Missing []string
	Found   []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("columnas faltantes: %s (columnas encontradas: %s)",
		strings.Join(e.Missing, ", "), strings.Join(e.Found, ", "))
}

// ImportSummary is the structured result returned to the caller. Errors is
// already truncated for display; TotalErrors carries the real count.
type ImportSummary struct {
	Created     int        `json:"creados"`
	Updated     int        `json:"actualizados"`
	Errors      []RowError `json:"errores"`
	TotalErrors int        `json:"total_errores"`
}

// ImportObserver receives pipeline events. The engine itself never writes to
// a global logger; callers decide how events are recorded.
type ImportObserver interface {
	RunStarted(run *models.ImportAudit, rows int)
	RowRejected(run *models.ImportAudit, rowErr RowError)
	RunFinished(run *models.ImportAudit, summary *ImportSummary)
}

// LogObserver records pipeline events on the standard logger. It is the
// observer used by the HTTP controllers and the CLI.
type LogObserver struct{}

func (LogObserver) RunStarted(run *models.ImportAudit, rows int) {
	log.Printf("import run %d: processing %d rows from %s", run.ID, rows, run.Filename)
}

func (LogObserver) RowRejected(run *models.ImportAudit, rowErr RowError) {
	for _, fe := range rowErr.Errors {
		log.Printf("import run %d: row %d: %s", run.ID, rowErr.Row, fe.Error())
	}
}

func (LogObserver) RunFinished(run *models.ImportAudit, summary *ImportSummary) {
	log.Printf("import run %d finished %s: %d created, %d updated, %d errors",
		run.ID, run.Status, summary.Created, summary.Updated, summary.TotalErrors)
}

type nopObserver struct{}

func (nopObserver) RunStarted(*models.ImportAudit, int)          {}
func (nopObserver) RowRejected(*models.ImportAudit, RowError)    {}
func (nopObserver) RunFinished(*models.ImportAudit, *ImportSummary) {}

// UsuarioImportJobService is the reconciliation engine: it walks a dataset
// row by row, validates, resolves duplicates, applies create-or-update
// semantics and keeps the run's audit record current.
type UsuarioImportJobService struct {
	db       *gorm.DB
	runSvc   *ImportAuditService
	usuarios *UsuarioService
	observer ImportObserver
}

func NewUsuarioImportJobService(db *gorm.DB, observer ImportObserver) *UsuarioImportJobService {
	if db == nil {
		db = config.DB
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &UsuarioImportJobService{
		db:       db,
		runSvc:   NewImportAuditService(db),
		usuarios: NewUsuarioService(db),
		observer: observer,
	}
}

// ImportFile opens a stored upload, creates the audit run and executes the
// pipeline. Run-fatal problems (unreadable file, missing columns, row
// ceiling) leave the run FAILED with zero counts and are returned as the
// error; the returned run is non-nil whenever the audit record was created.
func (s *UsuarioImportJobService) ImportFile(path, filename string, actorID *uint) (*ImportSummary, *models.ImportAudit, error) {
	started := time.Now()

	run, err := s.runSvc.Start(actorID, filename, path)
	if err != nil {
		return nil, nil, err
	}

	dataset, err := utils.ReadDatasetFile(path)
	if err != nil {
		readErr := fmt.Errorf("error al leer archivo: %w", err)
		if failErr := s.runSvc.Fail(run, readErr.Error(), time.Since(started)); failErr != nil {
			return nil, run, failErr
		}
		return nil, run, readErr
	}

	summary, err := s.run(run, dataset, actorID, started)
	return summary, run, err
}

// Run executes the pipeline over an already-parsed dataset against a fresh
// PENDING run.
func (s *UsuarioImportJobService) Run(run *models.ImportAudit, dataset *utils.Dataset, actorID *uint) (*ImportSummary, error) {
	return s.run(run, dataset, actorID, time.Now())
}

func (s *UsuarioImportJobService) run(run *models.ImportAudit, dataset *utils.Dataset, actorID *uint, started time.Time) (*ImportSummary, error) {
	// Pre-checks: either one fails the whole run before any row is touched.
	if missing := dataset.MissingColumns(RequiredImportColumns...); len(missing) > 0 {
		fatal := &MissingColumnsError{Missing: missing, Found: dataset.Columns}
		if err := s.runSvc.Fail(run, fatal.Error(), time.Since(started)); err != nil {
			return nil, err
		}
		return nil, fatal
	}

	if dataset.Len() > MaxImportRows {
		if err := s.runSvc.Fail(run, ErrRowLimitExceeded.Error(), time.Since(started)); err != nil {
			return nil, err
		}
		return nil, ErrRowLimitExceeded
	}

	if err := s.runSvc.MarkValidated(run, dataset.Len()); err != nil {
		return nil, err
	}
	if err := s.runSvc.MarkImporting(run); err != nil {
		return nil, err
	}
	s.observer.RunStarted(run, dataset.Len())

	created := 0
	updated := 0
	var rowErrors []RowError

	for i := 0; i < dataset.Len(); i++ {
		// 1-based spreadsheet numbering, header on row 1.
		rowNum := i + 2

		outcome := ValidateRow(dataset.Row(i))
		if outcome.Rejected() {
			rowErr := RowError{Row: rowNum, Errors: outcome.AllErrors()}
			rowErrors = append(rowErrors, rowErr)
			s.observer.RowRejected(run, rowErr)
			continue
		}

		if fe := s.applyRow(outcome.Record, actorID, &created, &updated); fe != nil {
			rowErr := RowError{Row: rowNum, Errors: []FieldError{*fe}}
			rowErrors = append(rowErrors, rowErr)
			s.observer.RowRejected(run, rowErr)
			continue
		}

		// Soft errors (nulled birth dates) are reported even though the row
		// was persisted.
		if len(outcome.Soft) > 0 {
			rowErrors = append(rowErrors, RowError{Row: rowNum, Errors: outcome.Soft})
		}
	}

	if err := s.runSvc.Finish(run, created, updated, rowErrors, time.Since(started)); err != nil {
		return nil, err
	}

	summary := &ImportSummary{
		Created:     created,
		Updated:     updated,
		Errors:      rowErrors,
		TotalErrors: len(rowErrors),
	}
	if len(summary.Errors) > ResponseErrorLimit {
		summary.Errors = summary.Errors[:ResponseErrorLimit]
	}

	s.observer.RunFinished(run, summary)
	return summary, nil
}

// applyRow resolves the canonical record against the stored registry and
// persists it. A non-nil return is the row-level error; the run continues.
func (s *UsuarioImportJobService) applyRow(rec *CanonicalRecord, actorID *uint, created, updated *int) *FieldError {
	existing, err := s.usuarios.FindByEmail(rec.Email)
	if err != nil {
		return &FieldError{Kind: ErrKindPersistence, Message: err.Error()}
	}

	// Secondary uniqueness: a phone held by a different usuario rejects the
	// row regardless of the NEW/EXISTING classification.
	if rec.Telefono != nil {
		taken, err := s.usuarios.PhoneHeldByOther(*rec.Telefono, rec.Email)
		if err != nil {
			return &FieldError{Kind: ErrKindPersistence, Message: err.Error()}
		}
		if taken {
			return &FieldError{
				Kind:    ErrKindDuplicatePhone,
				Message: fmt.Sprintf("el teléfono %s ya está registrado por otro usuario", *rec.Telefono),
			}
		}
	}

	if existing != nil {
		err := s.usuarios.Update(existing, actorID, ImportChangeReason, func(u *models.Usuario) {
			u.FirstName = rec.FirstName
			u.LastName = rec.LastName
			u.Edad = rec.Edad
			u.Telefono = rec.Telefono
			u.FechaNacimiento = rec.FechaNacimiento
			u.IsActive = true
		})
		if err != nil {
			return &FieldError{Kind: ErrKindPersistence, Message: err.Error()}
		}
		*updated++
		return nil
	}

	u := &models.Usuario{
		FirstName:       rec.FirstName,
		LastName:        rec.LastName,
		Edad:            rec.Edad,
		Email:           rec.Email,
		Telefono:        rec.Telefono,
		FechaNacimiento: rec.FechaNacimiento,
		Rol:             models.RolUser,
		IsActive:        true,
		CreatedByID:     actorID,
	}
	if err := s.usuarios.Create(u); err != nil {
		// Unique-constraint races between concurrent runs land here and stay
		// row-level.
		return &FieldError{Kind: ErrKindPersistence, Message: err.Error()}
	}
	*created++
	return nil
}
