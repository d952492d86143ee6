package services

import (
	"context"
	"errors"
	"strings"

	"etd-catalog/database"
	"etd-catalog/etderr"
	"etd-catalog/models"
	"etd-catalog/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ClaimCommentService verwaltet Kommentare zu Einträgen und die Reaktionen der User darauf.
type ClaimCommentService struct {
	DB      *gorm.DB
	Entries repository.EtdEntryRepository
	Logger  *zap.Logger
}

// NewClaimCommentService erstellt eine neue Instanz des ClaimCommentService.
func NewClaimCommentService(db *gorm.DB, entries repository.EtdEntryRepository, logger *zap.Logger) *ClaimCommentService {
	return &ClaimCommentService{DB: db, Entries: entries, Logger: logger}
}

// AddComment hängt einen Kommentar an einen fertig angelegten Eintrag. Likes starten bei 0.
func (s *ClaimCommentService) AddComment(ctx context.Context, entryID uint, comment *models.ClaimComment, authorID uint) (*models.ClaimComment, error) {
	if comment == nil || strings.TrimSpace(comment.Claim) == "" {
		return nil, etderr.New(etderr.ValidationFailed, "claim is required")
	}
	if !comment.Reproducible.Valid() {
		return nil, etderr.New(etderr.ValidationFailed, "reproducible must be one of NO, PARTIALLY, YES")
	}

	c := *comment
	c.ID = 0
	c.EtdEntryID = entryID
	c.UserID = authorID
	c.Likes = 0
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Geteilte Sperre: ein paralleles Löschen des Eintrags wartet auf diesen Kommentar.
		var found []uint
		if err := database.Lock(tx, clause.LockingStrengthShare).Model(&models.EtdEntry{}).
			Where("id = ?", entryID).Pluck("id", &found).Error; err != nil {
			return err
		}
		var docs int64
		if len(found) > 0 {
			if err := tx.Model(&models.EtdDocument{}).Where("etd_entry_id = ?", entryID).Count(&docs).Error; err != nil {
				return err
			}
		}
		if docs == 0 {
			return etderr.New(etderr.RecordNotFound, "record %d not found", entryID)
		}
		return tx.Create(&c).Error
	})
	if err != nil {
		if etderr.KindOf(err) == "" {
			s.Logger.Error("Kommentar konnte nicht gespeichert werden", zap.Uint("entry_id", entryID), zap.Error(err))
		}
		return nil, err
	}
	s.Logger.Info("Kommentar angelegt", zap.Uint("entry_id", entryID), zap.Uint("comment_id", c.ID), zap.Uint("user_id", authorID))
	return &c, nil
}

// EntryComments liefert die Kommentare eines Eintrags in Erstellungsreihenfolge.
func (s *ClaimCommentService) EntryComments(ctx context.Context, entryID uint) ([]models.ClaimComment, error) {
	exists, err := s.Entries.ExistsByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, etderr.New(etderr.RecordNotFound, "record %d not found", entryID)
	}
	var comments []models.ClaimComment
	err = s.DB.WithContext(ctx).
		Where("etd_entry_id = ?", entryID).
		Order("created_at asc, id asc").
		Find(&comments).Error
	return comments, err
}

func (s *ClaimCommentService) GetComment(ctx context.Context, id uint) (*models.ClaimComment, error) {
	var c models.ClaimComment
	err := s.DB.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, etderr.New(etderr.CommentNotFound, "comment %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetComments liefert die gefundenen Kommentare in der Reihenfolge von ids.
func (s *ClaimCommentService) GetComments(ctx context.Context, ids []uint) ([]models.ClaimComment, error) {
	if len(ids) == 0 {
		return []models.ClaimComment{}, nil
	}
	var found []models.ClaimComment
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.ClaimComment, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}
	out := make([]models.ClaimComment, 0, len(found))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
			delete(byID, id)
		}
	}
	return out, nil
}

// LikesFor liefert die Zähler parallel zu comments.
func LikesFor(comments []models.ClaimComment) []int64 {
	out := make([]int64, len(comments))
	for i, c := range comments {
		out[i] = c.Likes
	}
	return out
}

// ReactionStatus liefert den Reaktionszustand des Users parallel zu comments.
// Die Mitgliedschaft wird per IN-Abfrage auf den Kanten-Tabellen geprüft, nicht über die Zähler.
func (s *ClaimCommentService) ReactionStatus(ctx context.Context, userID uint, comments []models.ClaimComment) ([]models.LikeStatus, error) {
	out := make([]models.LikeStatus, len(comments))
	if len(comments) == 0 {
		return out, nil
	}
	ids := make([]uint, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}

	var liked, disliked []uint
	db := s.DB.WithContext(ctx)
	if err := db.Model(&models.LikedComment{}).
		Where("user_id = ? AND claim_comment_id IN ?", userID, ids).
		Pluck("claim_comment_id", &liked).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.DislikedComment{}).
		Where("user_id = ? AND claim_comment_id IN ?", userID, ids).
		Pluck("claim_comment_id", &disliked).Error; err != nil {
		return nil, err
	}

	likedSet := make(map[uint]bool, len(liked))
	for _, id := range liked {
		likedSet[id] = true
	}
	dislikedSet := make(map[uint]bool, len(disliked))
	for _, id := range disliked {
		dislikedSet[id] = true
	}
	for i, id := range ids {
		switch {
		case likedSet[id]:
			out[i] = models.LikeStatusLiked
		case dislikedSet[id]:
			out[i] = models.LikeStatusDisliked
		default:
			out[i] = models.LikeStatusNone
		}
	}
	return out, nil
}
