package services

import (
	"context"
	"errors"
	"strings"

	"etd-catalog/database"
	"etd-catalog/etderr"
	"etd-catalog/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserService verwaltet die Nutzerprofile zu den externen Identitäten.
type UserService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

func NewUserService(db *gorm.DB, logger *zap.Logger) *UserService {
	return &UserService{DB: db, Logger: logger}
}

// EnsureUser liefert den User zur externen ID und legt ihn beim ersten Zugriff an.
// Ein nicht leerer name überschreibt einen abweichenden gespeicherten Namen.
func (s *UserService) EnsureUser(ctx context.Context, externalID, name string) (*models.User, error) {
	externalID = strings.TrimSpace(externalID)
	name = strings.TrimSpace(name)
	if externalID == "" {
		return nil, etderr.New(etderr.ValidationFailed, "external id is required")
	}

	db := s.DB.WithContext(ctx)
	res := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "external_id"}}, DoNothing: true}).
		Create(&models.User{ExternalID: externalID, FullName: name})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		s.Logger.Info("Neuer User angelegt", zap.String("external_id", externalID))
	}

	var user models.User
	if err := db.First(&user, "external_id = ?", externalID).Error; err != nil {
		return nil, err
	}
	if name != "" && user.FullName != name {
		if err := db.Model(&user).Update("full_name", name).Error; err != nil {
			return nil, err
		}
	}
	return &user, nil
}

func (s *UserService) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).First(&user, "external_id = ?", externalID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, etderr.New(etderr.UserNotFound, "user %q not found", externalID)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserService) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (s *UserService) UpdateName(ctx context.Context, id uint, name string) error {
	res := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("full_name", strings.TrimSpace(name))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return etderr.New(etderr.UserNotFound, "user %d not found", id)
	}
	return nil
}

// Delete entfernt den User samt Favoriten und Reaktionen. Die Zähler der betroffenen
// Kommentare werden in derselben Transaktion zurückgerechnet.
func (s *UserService) Delete(ctx context.Context, id uint) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Die Sperre wartet laufende Reaktionen ab und hält neue bis zum Commit zurück.
		var locked []uint
		if err := database.Lock(tx, clause.LockingStrengthUpdate).Model(&models.User{}).
			Where("id = ?", id).Pluck("id", &locked).Error; err != nil {
			return err
		}
		if len(locked) == 0 {
			return etderr.New(etderr.UserNotFound, "user %d not found", id)
		}

		liked := tx.Model(&models.LikedComment{}).Select("claim_comment_id").Where("user_id = ?", id)
		if err := tx.Model(&models.ClaimComment{}).Where("id IN (?)", liked).
			UpdateColumn("likes", gorm.Expr("likes - 1")).Error; err != nil {
			return err
		}
		disliked := tx.Model(&models.DislikedComment{}).Select("claim_comment_id").Where("user_id = ?", id)
		if err := tx.Model(&models.ClaimComment{}).Where("id IN (?)", disliked).
			UpdateColumn("likes", gorm.Expr("likes + 1")).Error; err != nil {
			return err
		}

		if err := tx.Where("user_id = ?", id).Delete(&models.LikedComment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.DislikedComment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.FavoriteEntry{}).Error; err != nil {
			return err
		}

		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return etderr.New(etderr.UserNotFound, "user %d not found", id)
		}
		return nil
	})
	if err == nil {
		s.Logger.Info("User gelöscht", zap.Uint("user_id", id))
	}
	return err
}
