package services

import (
	"errors"
	"strings"

	"nuam-exchange-api/config"
	"nuam-exchange-api/models"

	"gorm.io/gorm"
)

var ErrUsuarioNotFound = errors.New("usuario not found")

// Allowed values for ListQuery.OrderBy. Anything else falls back to newest
// first.
var allowedUsuarioOrdering = map[string]bool{
	"first_name": true, "-first_name": true,
	"last_name": true, "-last_name": true,
	"email": true, "-email": true,
	"edad": true, "-edad": true,
	"created_at": true, "-created_at": true,
}

type UsuarioListQuery struct {
	Q       string
	OrderBy string
	Page    int
	PerPage int
}

// UsuarioService owns reads and writes of the usuario registry. Every update
// passes through Update so the pre-change state is snapshotted into
// usuario_historicos — there are no persistence hooks.
type UsuarioService struct {
	db *gorm.DB
}

func NewUsuarioService(db *gorm.DB) *UsuarioService {
	if db == nil {
		db = config.DB
	}
	return &UsuarioService{db: db}
}

func (s *UsuarioService) GetByID(id uint) (*models.Usuario, error) {
	var u models.Usuario
	if err := s.db.Preload("Categoria").Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUsuarioNotFound
		}
		return nil, err
	}
	return &u, nil
}

// FindByEmail looks up a usuario by its normalized email, including inactive
// ones: a re-import of a deactivated contact reactivates it instead of
// colliding with the unique index. Returns (nil, nil) when absent.
func (s *UsuarioService) FindByEmail(email string) (*models.Usuario, error) {
	var u models.Usuario
	err := s.db.Where("email = ?", email).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// PhoneHeldByOther reports whether any usuario with a different email already
// holds the phone number.
func (s *UsuarioService) PhoneHeldByOther(telefono, email string) (bool, error) {
	var count int64
	err := s.db.Model(&models.Usuario{}).
		Where("telefono = ? AND email <> ?", telefono, email).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *UsuarioService) Create(u *models.Usuario) error {
	return s.db.Create(u).Error
}

// Update snapshots the stored state into the history table, applies mutate
// and saves, all in one transaction. mutate receives the freshly loaded
// record, so callers only set the fields they change.
func (s *UsuarioService) Update(existing *models.Usuario, actorID *uint, reason string, mutate func(u *models.Usuario)) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(models.SnapshotOf(existing, actorID, reason)).Error; err != nil {
			return err
		}
		mutate(existing)
		return tx.Save(existing).Error
	})
}

// Deactivate soft-deletes a usuario, keeping a history entry of its last
// active state.
func (s *UsuarioService) Deactivate(existing *models.Usuario, actorID *uint) error {
	return s.Update(existing, actorID, "desactivación", func(u *models.Usuario) {
		u.IsActive = false
	})
}

// History returns the usuario's snapshots, newest first.
func (s *UsuarioService) History(usuarioID uint) ([]models.UsuarioHistorico, error) {
	var entries []models.UsuarioHistorico
	err := s.db.Where("usuario_id = ?", usuarioID).
		Order("modified_at DESC").
		Find(&entries).Error
	return entries, err
}

// List returns active usuarios matching the search term, ordered and
// paginated (20 per page by default).
func (s *UsuarioService) List(q UsuarioListQuery) ([]models.Usuario, int64, error) {
	if q.PerPage <= 0 {
		q.PerPage = 20
	}
	if q.PerPage > 100 {
		q.PerPage = 100
	}
	if q.Page <= 0 {
		q.Page = 1
	}

	query := s.db.Model(&models.Usuario{}).Where("is_active = ?", true)

	if q.Q != "" {
		like := "%" + q.Q + "%"
		query = query.Where(
			"first_name LIKE ? OR last_name LIKE ? OR email LIKE ? OR telefono LIKE ?",
			like, like, like, like,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := q.OrderBy
	if !allowedUsuarioOrdering[orderBy] {
		orderBy = "-created_at"
	}
	order := orderBy
	if strings.HasPrefix(orderBy, "-") {
		order = orderBy[1:] + " DESC"
	}

	var usuarios []models.Usuario
	err := query.Order(order).
		Offset((q.Page - 1) * q.PerPage).
		Limit(q.PerPage).
		Find(&usuarios).Error
	if err != nil {
		return nil, 0, err
	}
	return usuarios, total, nil
}
