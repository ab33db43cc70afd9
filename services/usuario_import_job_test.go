package services

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nuam-exchange-api/models"
	"nuam-exchange-api/utils"
)

func mustDataset(t *testing.T, raw [][]string) *utils.Dataset {
	t.Helper()
	ds, err := utils.NewDataset(raw)
	require.NoError(t, err)
	return ds
}

func startRun(t *testing.T, svc *ImportAuditService) *models.ImportAudit {
	t.Helper()
	run, err := svc.Start(nil, "usuarios.xlsx", "/tmp/usuarios.xlsx")
	require.NoError(t, err)
	return run
}

var importHeader = []string{"first_name", "last_name", "edad", "email", "telefono", "fecha_nacimiento"}

func TestImportJobCreatesUsuarios(t *testing.T) {
	db := newTestDB(t)
	job := NewUsuarioImportJobService(db, nil)
	runSvc := NewImportAuditService(db)

	ds := mustDataset(t, [][]string{
		importHeader,
		{"Juan", "Pérez", "30", "juan@ejemplo.com", "+56912345678", "1996-05-15"},
		{"María", "García", "", "maria@ejemplo.com", "", ""},
	})

	run := startRun(t, runSvc)
	summary, err := job.Run(run, ds, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 0, summary.TotalErrors)
	assert.Equal(t, models.ImportStatusImported, run.Status)

	stored, err := runSvc.GetByID(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusImported, stored.Status)
	assert.Equal(t, uint(2), stored.RowCount)
	assert.Equal(t, uint(2), stored.CreatedCount)
	assert.Equal(t, uint(0), stored.ErrorCount)
	require.NotNil(t, stored.ProcessingSeconds)

	var juan models.Usuario
	require.NoError(t, db.Where("email = ?", "juan@ejemplo.com").First(&juan).Error)
	require.NotNil(t, juan.Edad)
	assert.Equal(t, 30, *juan.Edad)
	require.NotNil(t, juan.Telefono)
	assert.Equal(t, "+56912345678", *juan.Telefono)
	assert.True(t, juan.IsActive)
	assert.Equal(t, models.RolUser, juan.Rol)
}

func TestImportJobMissingColumnFailsRun(t *testing.T) {
	db := newTestDB(t)
	job := NewUsuarioImportJobService(db, nil)
	runSvc := NewImportAuditService(db)

	ds := mustDataset(t, [][]string{
		{"first_name", "last_name"},
		{"Juan", "Pérez"},
	})

	run := startRun(t, runSvc)
	summary, err := job.Run(run, ds, nil)
	assert.Nil(t, summary)

	var missingErr *MissingColumnsError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, []string{"email"}, missingErr.Missing)
	assert.Contains(t, err.Error(), "email")

	stored, err := runSvc.GetByID(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusFailed, stored.Status)
	assert.Equal(t, uint(1), stored.ErrorCount)

	rowErrors, err := DecodeRowErrors(stored)
	require.NoError(t, err)
	require.Len(t, rowErrors, 1)
	assert.Equal(t, 0, rowErrors[0].Row)
	require.Len(t, rowErrors[0].Errors, 1)
	assert.Equal(t, ErrKindRunFatal, rowErrors[0].Errors[0].Kind)
	assert.Contains(t, rowErrors[0].Errors[0].Message, "email")

	var count int64
	require.NoError(t, db.Model(&models.Usuario{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestImportJobRowLimitFailsBeforeProcessing(t *testing.T) {
	db := newTestDB(t)
	job := NewUsuarioImportJobService(db, nil)
	runSvc := NewImportAuditService(db)

	raw := [][]string{importHeader}
	for i := 0; i < MaxImportRows+1; i++ {
		raw = append(raw, []string{"Juan", "Pérez", "", fmt.Sprintf("u%d@ejemplo.com", i), "", ""})
	}

	run := startRun(t, runSvc)
	summary, err := job.Run(run, mustDataset(t, raw), nil)
	assert.Nil(t, summary)
	require.ErrorIs(t, err, ErrRowLimitExceeded)

	stored, err := runSvc.GetByID(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusFailed, stored.Status)
	assert.Equal(t, uint(0), stored.CreatedCount)

	var count int64
	require.NoError(t, db.Model(&models.Usuario{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestImportJobIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	job := NewUsuarioImportJobService(db, nil)
	runSvc := NewImportAuditService(db)

	raw := [][]string{
		importHeader,
		{"Juan", "Pérez", "30", "juan@ejemplo.com", "+56912345678", "1996-05-15"},
		{"María", "García", "28", "maria@ejemplo.com", "+56987654321", ""},
	}

	first, err := job.Run(startRun(t, runSvc), mustDataset(t, raw), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)
	assert.Equal(t, 0, first.Updated)

	second, err := job.Run(startRun(t, runSvc), mustDataset(t, raw), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 2, second.Updated)
	assert.Equal(t, 0, second.TotalErrors)

	var count int64
	require.NoError(t, db.Model(&models.Usuario{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestImportJobWritesHistoryOnUpdateOnly(t *testing.T) {
	db := newTestDB(t)
	job := NewUsuarioImportJobService(db, nil)
	runSvc := NewImportAuditService(db)

	_, err := job.Run(startRun(t, runSvc), mustDataset(t, [][]string{
		importHeader,
		{"Juan", "Pérez", "30", "juan@ejemplo.com", "", ""},
	}), nil)
	require.NoError(t, err)

	// creates leave no trail
	var historyCount int64
	require.NoError(t, db.Model(&models.UsuarioHistorico{}).Count(&historyCount).Error)
	assert.Zero(t, historyCount)

	_, err = job.Run(startRun(t, runSvc), mustDataset(t, [][]string{
		importHeader,
		{"Juan", "González", "31", "juan@ejemplo.com", "", ""},
	}), nil)
	require.NoError(t, err)

	var entries []models.UsuarioHistorico
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, "Pérez", entries[0].LastName)
	require.NotNil(t, entries[0].ChangeReason)
	assert.Equal(t, ImportChangeReason, *entries[0].ChangeReason)

	var juan models.Usuario
	require.NoError(t, db.Where("email = ?", "juan@ejemplo.com").First(&juan).Error)
	assert.Equal(t, "González", juan.LastName)
}

func TestImportJobRejectsPhoneHeldByAnother(t *testing.T) {
	db := newTestDB(t)
	job := NewUsuarioImportJobService(db, nil)
	runSvc := NewImportAuditService(db)

	summary, err := job.Run(startRun(t, runSvc), mustDataset(t, [][]string{
		importHeader,
		{"Juan", "Pérez", "", "juan@ejemplo.com", "+56912345678", ""},
		{"María", "García", "", "maria@ejemplo.com", "+56912345678", ""},
	}), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.TotalErrors)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, 3, summary.Errors[0].Row)
	require.Len(t, summary.Errors[0].Errors, 1)
	assert.Equal(t, ErrKindDuplicatePhone, summary.Errors[0].Errors[0].Kind)

	// the rejected row never lands
	var maria models.Usuario
	err = db.Where("email = ?", "maria@ejemplo.com").First(&maria).Error
	assert.Error(t, err)
}

func TestImportJobReportsSoftDateButPersistsRow(t *testing.T) {
	db := newTestDB(t)
	job := NewUsuarioImportJobService(db, nil)
	runSvc := NewImportAuditService(db)

	run := startRun(t, runSvc)
	summary, err := job.Run(run, mustDataset(t, [][]string{
		importHeader,
		{"Juan", "Pérez", "30", "juan@ejemplo.com", "", "ayer"},
	}), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.TotalErrors)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, ErrKindInvalidDate, summary.Errors[0].Errors[0].Kind)
	assert.Equal(t, models.ImportStatusImported, run.Status)

	var juan models.Usuario
	require.NoError(t, db.Where("email = ?", "juan@ejemplo.com").First(&juan).Error)
	assert.Nil(t, juan.FechaNacimiento)
}

func TestImportJobTruncatesErrorLists(t *testing.T) {
	db := newTestDB(t)
	job := NewUsuarioImportJobService(db, nil)
	runSvc := NewImportAuditService(db)

	raw := [][]string{importHeader}
	// 25 rejected rows, one good one so the run still ends IMPORTED
	for i := 0; i < 25; i++ {
		raw = append(raw, []string{"", "", "", "", "", ""})
	}
	raw = append(raw, []string{"Juan", "Pérez", "", "juan@ejemplo.com", "", ""})

	run := startRun(t, runSvc)
	summary, err := job.Run(run, mustDataset(t, raw), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 25, summary.TotalErrors)
	assert.Len(t, summary.Errors, ResponseErrorLimit)

	stored, err := runSvc.GetByID(run.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(25), stored.ErrorCount)
	rowErrors, err := DecodeRowErrors(stored)
	require.NoError(t, err)
	assert.Len(t, rowErrors, StoredErrorLimit)
}

func TestImportJobFailsWhenNothingPersisted(t *testing.T) {
	db := newTestDB(t)
	job := NewUsuarioImportJobService(db, nil)
	runSvc := NewImportAuditService(db)

	run := startRun(t, runSvc)
	summary, err := job.Run(run, mustDataset(t, [][]string{
		importHeader,
		{"Juan", "Pérez", "", "sin-arroba", "", ""},
		{"", "García", "", "maria@ejemplo.com", "", ""},
	}), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Created)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 2, summary.TotalErrors)
	assert.Equal(t, models.ImportStatusFailed, run.Status)
}

func TestImportJobReactivatesInactiveUsuario(t *testing.T) {
	db := newTestDB(t)
	job := NewUsuarioImportJobService(db, nil)
	runSvc := NewImportAuditService(db)
	usuarios := NewUsuarioService(db)

	u := &models.Usuario{FirstName: "Juan", LastName: "Pérez", Email: "juan@ejemplo.com", Rol: models.RolUser, IsActive: true}
	require.NoError(t, usuarios.Create(u))
	require.NoError(t, usuarios.Deactivate(u, nil))

	summary, err := job.Run(startRun(t, runSvc), mustDataset(t, [][]string{
		importHeader,
		{"Juan", "Pérez", "", "juan@ejemplo.com", "", ""},
	}), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)

	reloaded, err := usuarios.GetByID(u.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsActive)
}

func TestImportFileFromCSV(t *testing.T) {
	db := newTestDB(t)
	job := NewUsuarioImportJobService(db, nil)

	path := filepath.Join(t.TempDir(), "usuarios.csv")
	csv := "first_name,last_name,edad,email,telefono,fecha_nacimiento\n" +
		"Juan,Pérez,30,juan@ejemplo.com,+56912345678,1996-05-15\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	summary, run, err := job.ImportFile(path, "usuarios.csv", nil)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, models.ImportStatusImported, run.Status)
	assert.Equal(t, "usuarios.csv", run.Filename)
}

func TestImportFileUnreadableFailsRun(t *testing.T) {
	db := newTestDB(t)
	job := NewUsuarioImportJobService(db, nil)
	runSvc := NewImportAuditService(db)

	path := filepath.Join(t.TempDir(), "usuarios.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("this is not a zip archive"), 0o644))

	summary, run, err := job.ImportFile(path, "usuarios.xlsx", nil)
	assert.Nil(t, summary)
	require.Error(t, err)
	require.NotNil(t, run)

	stored, getErr := runSvc.GetByID(run.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.ImportStatusFailed, stored.Status)
}
