package controllers

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"nuam-exchange-api/config"
	"nuam-exchange-api/models"
	"nuam-exchange-api/services"
	"nuam-exchange-api/utils"

	"github.com/gin-gonic/gin"
)

var allowedImportExtensions = map[string]bool{
	".xlsx": true,
	".xls":  true,
	".csv":  true,
}

// TemplateColumns is the canonical header set of the import template.
var TemplateColumns = []string{"first_name", "last_name", "edad", "email", "telefono", "fecha_nacimiento"}

var templateRows = [][]string{
	{"Juan", "Pérez", "25", "juan@ejemplo.com", "+56912345678", "1998-05-15"},
	{"María", "García", "30", "maria@ejemplo.com", "+56987654321", "1993-08-22"},
	{"Pedro", "López", "28", "pedro@ejemplo.com", "+56955556666", "1995-12-10"},
}

// UploadImport receives a spreadsheet/CSV, runs the import pipeline and
// returns the structured result. Run-fatal problems come back as a rejected
// request with the run already marked FAILED for audit review.
func UploadImport(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "No se seleccionó archivo"})
		return
	}
	defer file.Close()

	if header.Size > services.MaxImportFileBytes {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": fmt.Sprintf("El archivo es muy grande. Máximo %dMB", services.MaxImportFileBytes/(1024*1024)),
		})
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedImportExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Formato inválido. Use: .xlsx, .xls, .csv",
		})
		return
	}

	uploadDir := filepath.Join("uploads", "imports")
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "No se pudo preparar el directorio de carga"})
		return
	}

	safeName := utils.GenerateUniqueFilename(uploadDir, header.Filename)
	dstPath := filepath.Join(uploadDir, safeName)
	if err := c.SaveUploadedFile(header, dstPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "No se pudo guardar el archivo"})
		return
	}

	job := services.NewUsuarioImportJobService(config.DB, services.LogObserver{})
	summary, run, err := job.ImportFile(dstPath, header.Filename, actorID(c))
	if err != nil {
		// Run-fatal: the audit row is FAILED, report the reason.
		status := http.StatusBadRequest
		var mce *services.MissingColumnsError
		if !errors.As(err, &mce) && !errors.Is(err, services.ErrRowLimitExceeded) && run == nil {
			status = http.StatusInternalServerError
		}
		resp := gin.H{"status": "error", "message": err.Error()}
		if run != nil {
			resp["run_id"] = run.ID
		}
		c.JSON(status, resp)
		return
	}

	notifyImportFinished(c, run, summary)

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Importación completada",
		"run_id":  run.ID,
		"data":    summary,
	})
}

// notifyImportFinished emails the uploader a short result summary. Failures
// are logged and never affect the response.
func notifyImportFinished(c *gin.Context, run *models.ImportAudit, summary *services.ImportSummary) {
	if !config.MailConfigured() {
		return
	}
	email, ok := c.Get("email")
	if !ok {
		return
	}

	html := fmt.Sprintf(
		"<p>Importación <b>%d</b> (%s) finalizada con estado <b>%s</b>.</p>"+
			"<p>Creados: %d — Actualizados: %d — Errores: %d</p>",
		run.ID, run.Filename, run.Status,
		summary.Created, summary.Updated, summary.TotalErrors,
	)
	if err := config.SendMail([]string{email.(string)}, "Resultado de importación de usuarios", html); err != nil {
		log.Printf("import run %d: notification mail failed: %v", run.ID, err)
	}
}

// ListImportRuns lists import runs newest first. Admins see every run,
// other roles only their own.
func ListImportRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	filter := actorID(c)
	if role, ok := c.Get("role"); ok && role.(string) == models.RoleAdmin {
		filter = nil
	}

	svc := services.NewImportAuditService(config.DB)
	runs, total, err := svc.List(filter, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudieron listar las importaciones"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  runs,
		"total": total,
	})
}

// GetImportRun returns one run with its stored error detail.
func GetImportRun(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID inválido"})
		return
	}

	svc := services.NewImportAuditService(config.DB)
	run, err := svc.GetByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Importación no encontrada"})
		return
	}

	rowErrors, err := services.DecodeRowErrors(run)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo leer el detalle de errores"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   run,
		"errors": rowErrors,
	})
}

// CancelImportRun cancels a run that has not started importing.
func CancelImportRun(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID inválido"})
		return
	}

	svc := services.NewImportAuditService(config.DB)
	run, err := svc.Cancel(uint(id))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrImportRunNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Importación no encontrada"})
		case errors.Is(err, services.ErrImportRunNotCancellable):
			c.JSON(http.StatusConflict, gin.H{"error": "La importación ya no puede cancelarse"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo cancelar la importación"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Importación cancelada",
		"data":    run,
	})
}

// DownloadImportTemplate streams the example XLSX with the canonical header
// set and three sample rows.
func DownloadImportTemplate(c *gin.Context) {
	rows := append([][]string{TemplateColumns}, templateRows...)

	var buf bytes.Buffer
	if err := utils.WriteXLSX(&buf, "Usuarios", rows); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo generar la plantilla"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename=plantilla_usuarios.xlsx`)
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}
