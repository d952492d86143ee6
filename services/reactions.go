package services

import (
	"context"
	"errors"

	"etd-catalog/database"
	"etd-catalog/etderr"
	"etd-catalog/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReactionAction ist eine Anfrage an die Reaktions-Zustandsmaschine.
type ReactionAction string

const (
	ActionLike      ReactionAction = "like"
	ActionDislike   ReactionAction = "dislike"
	ActionUnlike    ReactionAction = "unlike"
	ActionUndislike ReactionAction = "undislike"
)

// transition berechnet Folgezustand und Zähleränderung. Eine Anfrage, die der aktuelle
// Zustand schon erfüllt, ist ein Konflikt.
func transition(current models.LikeStatus, action ReactionAction) (models.LikeStatus, int64, error) {
	switch action {
	case ActionLike:
		switch current {
		case models.LikeStatusLiked:
			return current, 0, etderr.New(etderr.AlreadyLiked, "comment is already liked")
		case models.LikeStatusDisliked:
			return models.LikeStatusLiked, 2, nil
		default:
			return models.LikeStatusLiked, 1, nil
		}
	case ActionDislike:
		switch current {
		case models.LikeStatusDisliked:
			return current, 0, etderr.New(etderr.AlreadyDisliked, "comment is already disliked")
		case models.LikeStatusLiked:
			return models.LikeStatusDisliked, -2, nil
		default:
			return models.LikeStatusDisliked, -1, nil
		}
	case ActionUnlike:
		if current != models.LikeStatusLiked {
			return current, 0, etderr.New(etderr.NotLiked, "comment is not liked")
		}
		return models.LikeStatusNone, -1, nil
	case ActionUndislike:
		if current != models.LikeStatusDisliked {
			return current, 0, etderr.New(etderr.NotDisliked, "comment is not disliked")
		}
		return models.LikeStatusNone, 1, nil
	}
	return current, 0, etderr.New(etderr.ValidationFailed, "unknown reaction %q", action)
}

func (s *ClaimCommentService) Like(ctx context.Context, userID, commentID uint) (*models.ClaimComment, error) {
	return s.React(ctx, userID, commentID, ActionLike)
}

func (s *ClaimCommentService) Dislike(ctx context.Context, userID, commentID uint) (*models.ClaimComment, error) {
	return s.React(ctx, userID, commentID, ActionDislike)
}

func (s *ClaimCommentService) Unlike(ctx context.Context, userID, commentID uint) (*models.ClaimComment, error) {
	return s.React(ctx, userID, commentID, ActionUnlike)
}

func (s *ClaimCommentService) Undislike(ctx context.Context, userID, commentID uint) (*models.ClaimComment, error) {
	return s.React(ctx, userID, commentID, ActionUndislike)
}

// React wendet action in einer Transaktion an: Kommentarzeile sperren, Mitgliedschaft neu lesen,
// Kanten umhängen und den Zähler relativ anpassen. Geliefert wird der Kommentar nach der Änderung.
func (s *ClaimCommentService) React(ctx context.Context, userID, commentID uint, action ReactionAction) (*models.ClaimComment, error) {
	log := s.Logger.With(zap.Uint("user_id", userID), zap.Uint("comment_id", commentID), zap.String("action", string(action)))

	var updated models.ClaimComment
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Reihenfolge User vor Kommentar, wie beim Löschen eines Users.
		if err := lockUser(tx, userID); err != nil {
			return err
		}
		if err := lockComment(tx, commentID, &updated); err != nil {
			return err
		}

		current, err := membership(tx, userID, commentID)
		if err != nil {
			return err
		}
		next, delta, err := transition(current, action)
		if err != nil {
			return err
		}

		if err := removeEdge(tx, current, userID, commentID); err != nil {
			return err
		}
		if err := addEdge(tx, next, userID, commentID); err != nil {
			return err
		}
		if err := tx.Model(&models.ClaimComment{}).
			Where("id = ?", commentID).
			UpdateColumn("likes", gorm.Expr("likes + ?", delta)).Error; err != nil {
			return err
		}
		return tx.First(&updated, "id = ?", commentID).Error
	})
	if err != nil {
		var f *etderr.Failure
		if errors.As(err, &f) {
			reactionsCounter.WithLabelValues(string(action), string(f.Kind)).Inc()
			log.Debug("Reaktion abgelehnt", zap.String("reason", string(f.Kind)))
			return nil, err
		}
		reactionsCounter.WithLabelValues(string(action), "error").Inc()
		log.Error("Reaktion fehlgeschlagen", zap.Error(err))
		return nil, err
	}

	reactionsCounter.WithLabelValues(string(action), "ok").Inc()
	log.Debug("Reaktion gespeichert", zap.Int64("likes", updated.Likes))
	return &updated, nil
}

// lockUser hält den User bis zum Commit fest, damit ein paralleles Löschen seine Kanten
// nicht zwischen Zählerkorrektur und Kantenlöschung verpasst.
func lockUser(tx *gorm.DB, userID uint) error {
	var found []uint
	if err := database.Lock(tx, clause.LockingStrengthShare).Model(&models.User{}).
		Where("id = ?", userID).Pluck("id", &found).Error; err != nil {
		return err
	}
	if len(found) == 0 {
		return etderr.New(etderr.UserNotFound, "user %d not found", userID)
	}
	return nil
}

// lockComment liest den Kommentar und sperrt die Zeile.
func lockComment(tx *gorm.DB, commentID uint, dest *models.ClaimComment) error {
	err := database.Lock(tx, clause.LockingStrengthUpdate).First(dest, "id = ?", commentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return etderr.New(etderr.CommentNotFound, "comment %d not found", commentID)
	}
	return err
}

// membership liest den Reaktionszustand aus den Kanten-Tabellen.
func membership(tx *gorm.DB, userID, commentID uint) (models.LikeStatus, error) {
	var liked, disliked int64
	if err := tx.Model(&models.LikedComment{}).
		Where("user_id = ? AND claim_comment_id = ?", userID, commentID).
		Count(&liked).Error; err != nil {
		return "", err
	}
	if err := tx.Model(&models.DislikedComment{}).
		Where("user_id = ? AND claim_comment_id = ?", userID, commentID).
		Count(&disliked).Error; err != nil {
		return "", err
	}
	switch {
	case liked > 0 && disliked > 0:
		return "", errors.New("reaction edges in both sets")
	case liked > 0:
		return models.LikeStatusLiked, nil
	case disliked > 0:
		return models.LikeStatusDisliked, nil
	}
	return models.LikeStatusNone, nil
}

func removeEdge(tx *gorm.DB, state models.LikeStatus, userID, commentID uint) error {
	var res *gorm.DB
	switch state {
	case models.LikeStatusLiked:
		res = tx.Where("user_id = ? AND claim_comment_id = ?", userID, commentID).Delete(&models.LikedComment{})
	case models.LikeStatusDisliked:
		res = tx.Where("user_id = ? AND claim_comment_id = ?", userID, commentID).Delete(&models.DislikedComment{})
	default:
		return nil
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return errors.New("reaction edge changed concurrently")
	}
	return nil
}

func addEdge(tx *gorm.DB, state models.LikeStatus, userID, commentID uint) error {
	var err error
	switch state {
	case models.LikeStatusLiked:
		err = tx.Create(&models.LikedComment{UserID: userID, ClaimCommentID: commentID}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return etderr.New(etderr.AlreadyLiked, "comment is already liked")
		}
	case models.LikeStatusDisliked:
		err = tx.Create(&models.DislikedComment{UserID: userID, ClaimCommentID: commentID}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return etderr.New(etderr.AlreadyDisliked, "comment is already disliked")
		}
	}
	return err
}
