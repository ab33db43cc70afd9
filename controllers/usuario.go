package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"nuam-exchange-api/config"
	"nuam-exchange-api/models"
	"nuam-exchange-api/services"

	"github.com/gin-gonic/gin"
)

// actorID extracts the authenticated account id for attribution fields.
func actorID(c *gin.Context) *uint {
	if v, ok := c.Get("accountID"); ok {
		if id, ok := v.(uint); ok {
			return &id
		}
	}
	return nil
}

type UsuarioRequest struct {
	FirstName       string  `json:"first_name" binding:"required"`
	LastName        string  `json:"last_name" binding:"required"`
	Email           string  `json:"email" binding:"required"`
	Edad            *int    `json:"edad"`
	Telefono        *string `json:"telefono"`
	FechaNacimiento *string `json:"fecha_nacimiento"`
	CategoriaID     *uint   `json:"categoria_id"`
	Rol             string  `json:"rol"`
}

// ListUsuarios returns active usuarios with search, ordering and pagination.
func ListUsuarios(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	svc := services.NewUsuarioService(config.DB)
	usuarios, total, err := svc.List(services.UsuarioListQuery{
		Q:       strings.TrimSpace(c.Query("q")),
		OrderBy: c.DefaultQuery("order_by", "-created_at"),
		Page:    page,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudieron listar los usuarios"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    usuarios,
		"total":   total,
		"page":    page,
	})
}

// GetUsuario returns a single usuario by id.
func GetUsuario(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID inválido"})
		return
	}

	svc := services.NewUsuarioService(config.DB)
	usuario, err := svc.GetByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Usuario no encontrado"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": usuario})
}

// CreateUsuario creates one registry record, enforcing email and phone
// uniqueness before the write.
func CreateUsuario(c *gin.Context) {
	var req UsuarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	usuario, errMsg := usuarioFromRequest(&req, nil)
	if errMsg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMsg})
		return
	}

	svc := services.NewUsuarioService(config.DB)

	if existing, err := svc.FindByEmail(usuario.Email); err == nil && existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "El email " + usuario.Email + " ya está registrado"})
		return
	}
	if usuario.Telefono != nil {
		if taken, err := svc.PhoneHeldByOther(*usuario.Telefono, usuario.Email); err == nil && taken {
			c.JSON(http.StatusConflict, gin.H{"error": "El teléfono " + *usuario.Telefono + " ya está registrado"})
			return
		}
	}

	usuario.CreatedByID = actorID(c)
	if err := svc.Create(usuario); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error al crear usuario"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Usuario " + usuario.FirstName + " " + usuario.LastName + " creado exitosamente",
		"data":    usuario,
	})
}

// UpdateUsuario overwrites the usuario's fields, writing a history snapshot
// of the prior state first.
func UpdateUsuario(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID inválido"})
		return
	}

	var req UsuarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	svc := services.NewUsuarioService(config.DB)
	existing, err := svc.GetByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Usuario no encontrado"})
		return
	}

	parsed, errMsg := usuarioFromRequest(&req, existing)
	if errMsg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMsg})
		return
	}

	// Uniqueness against other records only; keeping your own email or
	// phone is not a conflict.
	if other, err := svc.FindByEmail(parsed.Email); err == nil && other != nil && other.ID != existing.ID {
		c.JSON(http.StatusConflict, gin.H{"error": "El email " + parsed.Email + " ya está registrado por otro usuario"})
		return
	}
	if parsed.Telefono != nil {
		if taken, err := svc.PhoneHeldByOther(*parsed.Telefono, parsed.Email); err == nil && taken {
			c.JSON(http.StatusConflict, gin.H{"error": "El teléfono " + *parsed.Telefono + " ya está registrado por otro usuario"})
			return
		}
	}

	err = svc.Update(existing, actorID(c), "edición manual", func(u *models.Usuario) {
		u.FirstName = parsed.FirstName
		u.LastName = parsed.LastName
		u.Email = parsed.Email
		u.Edad = parsed.Edad
		u.Telefono = parsed.Telefono
		u.FechaNacimiento = parsed.FechaNacimiento
		u.CategoriaID = parsed.CategoriaID
		if parsed.Rol != "" {
			u.Rol = parsed.Rol
		}
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error al actualizar usuario"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Usuario actualizado correctamente",
		"data":    existing,
	})
}

// DeleteUsuario soft-deletes one usuario.
func DeleteUsuario(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID inválido"})
		return
	}

	svc := services.NewUsuarioService(config.DB)
	existing, err := svc.GetByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Usuario no encontrado"})
		return
	}

	if err := svc.Deactivate(existing, actorID(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error al eliminar usuario"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Usuario eliminado correctamente"})
}

// BulkDeleteUsuarios soft-deletes the selected usuarios.
func BulkDeleteUsuarios(c *gin.Context) {
	var req struct {
		IDs []uint `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No seleccionaste ningún usuario para eliminar"})
		return
	}

	svc := services.NewUsuarioService(config.DB)
	actor := actorID(c)
	deleted := 0
	for _, id := range req.IDs {
		existing, err := svc.GetByID(id)
		if err != nil {
			continue
		}
		if !existing.IsActive {
			continue
		}
		if err := svc.Deactivate(existing, actor); err == nil {
			deleted++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Se eliminaron " + strconv.Itoa(deleted) + " usuarios correctamente",
		"deleted": deleted,
	})
}

// GetUsuarioHistory lists the usuario's snapshots, newest first.
func GetUsuarioHistory(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID inválido"})
		return
	}

	svc := services.NewUsuarioService(config.DB)
	if _, err := svc.GetByID(uint(id)); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Usuario no encontrado"})
		return
	}

	entries, err := svc.History(uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo obtener el histórico"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  entries,
		"count": len(entries),
	})
}

// usuarioFromRequest validates a CRUD payload into a Usuario, reusing the
// import pipeline's field rules. existing carries over immutable attributes
// on updates.
func usuarioFromRequest(req *UsuarioRequest, existing *models.Usuario) (*models.Usuario, string) {
	raw := map[string]string{
		"first_name": req.FirstName,
		"last_name":  req.LastName,
		"email":      req.Email,
	}
	if req.Edad != nil {
		raw["edad"] = strconv.Itoa(*req.Edad)
	}
	if req.Telefono != nil {
		raw["telefono"] = *req.Telefono
	}
	if req.FechaNacimiento != nil {
		raw["fecha_nacimiento"] = *req.FechaNacimiento
	}

	outcome := services.ValidateRow(raw)
	if outcome.Rejected() {
		return nil, outcome.Hard[0].Message
	}
	// CRUD is stricter than the import pipeline: an unparseable date is a
	// hard error here, not a nulled field.
	if len(outcome.Soft) > 0 {
		return nil, outcome.Soft[0].Message
	}

	rec := outcome.Record
	u := &models.Usuario{
		FirstName:       rec.FirstName,
		LastName:        rec.LastName,
		Email:           rec.Email,
		Edad:            rec.Edad,
		Telefono:        rec.Telefono,
		FechaNacimiento: rec.FechaNacimiento,
		Rol:             models.RolUser,
		IsActive:        true,
		CategoriaID:     req.CategoriaID,
	}
	if req.Rol != "" {
		if req.Rol != models.RolAdmin && req.Rol != models.RolUser {
			return nil, "rol inválido"
		}
		u.Rol = req.Rol
	}
	if existing != nil {
		u.ID = existing.ID
		u.CreatedByID = existing.CreatedByID
		u.CreatedAt = existing.CreatedAt
		if req.Rol == "" {
			u.Rol = existing.Rol
		}
	}
	return u, ""
}
