package controllers

import (
	"net/http"
	"time"

	"nuam-exchange-api/config"
	"nuam-exchange-api/models"

	"github.com/gin-gonic/gin"
)

// GetDashboardStats returns the home-screen numbers: registry totals, what
// was created today, the caller's recent imports and the latest usuarios.
func GetDashboardStats(c *gin.Context) {
	var totalUsuarios int64
	config.DB.Model(&models.Usuario{}).Where("is_active = ?", true).Count(&totalUsuarios)

	startOfDay := time.Now().Truncate(24 * time.Hour)
	var usuariosHoy int64
	config.DB.Model(&models.Usuario{}).
		Where("created_at >= ?", startOfDay).
		Count(&usuariosHoy)

	var recentImports []models.ImportAudit
	q := config.DB.Order("uploaded_at DESC").Limit(5)
	if id := actorID(c); id != nil {
		q = q.Where("account_id = ?", *id)
	}
	q.Find(&recentImports)

	var usuariosRecientes []models.Usuario
	config.DB.Where("is_active = ?", true).
		Order("created_at DESC").
		Limit(10).
		Find(&usuariosRecientes)

	c.JSON(http.StatusOK, gin.H{
		"total_usuarios":     totalUsuarios,
		"usuarios_hoy":       usuariosHoy,
		"recent_imports":     recentImports,
		"usuarios_recientes": usuariosRecientes,
	})
}
