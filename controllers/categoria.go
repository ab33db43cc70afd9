package controllers

import (
	"net/http"
	"strings"

	"nuam-exchange-api/config"
	"nuam-exchange-api/models"

	"github.com/gin-gonic/gin"
)

// GetCategorias lists all categorias.
func GetCategorias(c *gin.Context) {
	var categorias []models.Categoria
	if err := config.DB.Order("name ASC").Find(&categorias).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudieron listar las categorías"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": categorias})
}

// CreateCategoria adds a new categoria.
func CreateCategoria(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	categoria := models.Categoria{Name: strings.TrimSpace(req.Name)}
	if err := config.DB.Create(&categoria).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo crear la categoría"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": categoria})
}
