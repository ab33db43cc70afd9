package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nuam-exchange-api/config"
	"nuam-exchange-api/models"
	"nuam-exchange-api/services"
	"nuam-exchange-api/utils"
)

// newTestDB swaps config.DB for an isolated in-memory database so the
// controllers under test hit it through the global the way they do in
// production.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, config.Migrate(db))

	prev := config.DB
	config.DB = db
	t.Cleanup(func() { config.DB = prev })
	return db
}

// asAccount stands in for AuthMiddleware in tests.
func asAccount(id uint, email, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("accountID", id)
		c.Set("email", email)
		c.Set("role", role)
		c.Next()
	}
}

func importRouter(role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/api/v1/imports", asAccount(1, "admin@nuam.cl", role))
	g.POST("", UploadImport)
	g.GET("", ListImportRuns)
	g.GET("/template", DownloadImportTemplate)
	g.GET("/:id", GetImportRun)
	g.POST("/:id/cancel", CancelImportRun)
	return r
}

func multipartFile(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func TestUploadImportCSV(t *testing.T) {
	db := newTestDB(t)
	t.Chdir(t.TempDir())
	r := importRouter(models.RoleAdmin)

	csv := "first_name,last_name,edad,email,telefono,fecha_nacimiento\n" +
		"Juan,Pérez,30,juan@ejemplo.com,+56912345678,1996-05-15\n"
	body, contentType := multipartFile(t, "file", "usuarios.csv", csv)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Status string `json:"status"`
		RunID  uint   `json:"run_id"`
		Data   struct {
			Creados      int `json:"creados"`
			Actualizados int `json:"actualizados"`
			TotalErrores int `json:"total_errores"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.NotZero(t, resp.RunID)
	assert.Equal(t, 1, resp.Data.Creados)
	assert.Zero(t, resp.Data.TotalErrores)

	var count int64
	require.NoError(t, db.Model(&models.Usuario{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUploadImportRejectsExtension(t *testing.T) {
	newTestDB(t)
	t.Chdir(t.TempDir())
	r := importRouter(models.RoleAdmin)

	body, contentType := multipartFile(t, "file", "usuarios.pdf", "no importa")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Formato inválido")
}

func TestUploadImportMissingColumnReturnsRunID(t *testing.T) {
	newTestDB(t)
	t.Chdir(t.TempDir())
	r := importRouter(models.RoleAdmin)

	body, contentType := multipartFile(t, "file", "usuarios.csv", "first_name,last_name\nJuan,Pérez\n")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		RunID   uint   `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Message, "email")
	assert.NotZero(t, resp.RunID)

	// the failed run stays queryable for audit
	svc := services.NewImportAuditService(config.DB)
	run, err := svc.GetByID(resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusFailed, run.Status)
}

func TestListImportRunsScopedByRole(t *testing.T) {
	db := newTestDB(t)

	mine := uint(1)
	other := uint(2)
	require.NoError(t, db.Create(&models.ImportAudit{AccountID: &mine, Filename: "mio.csv", Status: models.ImportStatusImported, Errors: "[]"}).Error)
	require.NoError(t, db.Create(&models.ImportAudit{AccountID: &other, Filename: "ajeno.csv", Status: models.ImportStatusImported, Errors: "[]"}).Error)

	get := func(role string) int64 {
		r := importRouter(role)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/imports", nil))
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Total int64 `json:"total"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp.Total
	}

	assert.Equal(t, int64(2), get(models.RoleAdmin))
	assert.Equal(t, int64(1), get(models.RoleEmployee))
}

func TestCancelImportRunConflict(t *testing.T) {
	db := newTestDB(t)
	r := importRouter(models.RoleAdmin)

	run := models.ImportAudit{Filename: "done.csv", Status: models.ImportStatusImported, Errors: "[]"}
	require.NoError(t, db.Create(&run).Error)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/imports/%d/cancel", run.ID), nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	pending := models.ImportAudit{Filename: "pending.csv", Status: models.ImportStatusPending, Errors: "[]"}
	require.NoError(t, db.Create(&pending).Error)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/imports/%d/cancel", pending.ID), nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDownloadImportTemplate(t *testing.T) {
	newTestDB(t)
	r := importRouter(models.RoleAdmin)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/imports/template", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "plantilla_usuarios.xlsx")

	path := filepath.Join(t.TempDir(), "plantilla.xlsx")
	require.NoError(t, os.WriteFile(path, w.Body.Bytes(), 0o644))

	rows, err := utils.ReadXLSXRows(path)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, TemplateColumns, rows[0])
	assert.Equal(t, "Juan", rows[1][0])
}
