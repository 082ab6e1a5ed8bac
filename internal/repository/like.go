package repository

import (
	"context"
	"errors"

	"commentservice/internal/models"
	"commentservice/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository keeps per-user likes and the like_count on each comment in step.
type LikeRepository interface {
	Toggle(ctx context.Context, commentID uint, authorID string) (bool, error)
	Exists(ctx context.Context, commentID uint, authorID string) (bool, error)
	Recount(ctx context.Context, commentID uint) (int, error)
}

type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new LikeRepository
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

// Toggle removes authorID's like on the comment if present, otherwise adds
// one, and adjusts like_count in the same transaction. The comment row is
// locked first so concurrent toggles on one comment are serialized. It
// returns the resulting liked state.
func (r *likeRepository) Toggle(ctx context.Context, commentID uint, authorID string) (bool, error) {
	defer observability.TrackQuery("toggle", "comment_likes")()

	var liked bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&comment, commentID).Error; err != nil {
			return err
		}

		removed := tx.Where("comment_id = ? AND author_id = ?", commentID, authorID).
			Delete(&models.CommentLike{})
		if removed.Error != nil {
			return removed.Error
		}

		counter := tx.Model(&models.Comment{}).Where("id = ?", commentID)
		if removed.RowsAffected > 0 {
			liked = false
			return counter.Update("like_count",
				gorm.Expr("CASE WHEN like_count > 0 THEN like_count - 1 ELSE 0 END")).Error
		}

		if err := tx.Create(&models.CommentLike{CommentID: commentID, AuthorID: authorID}).Error; err != nil {
			return err
		}
		liked = true
		return counter.Update("like_count", gorm.Expr("like_count + 1")).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, models.NewNotFoundError("Comment", commentID)
		}
		return false, models.NewInternalError(err)
	}

	result := "unliked"
	if liked {
		result = "liked"
	}
	observability.LikeToggles.WithLabelValues(result).Inc()

	return liked, nil
}

// Exists reports whether authorID currently likes the comment.
func (r *likeRepository) Exists(ctx context.Context, commentID uint, authorID string) (bool, error) {
	defer observability.TrackQuery("exists", "comment_likes")()

	var count int64
	err := r.db.WithContext(ctx).Model(&models.CommentLike{}).
		Where("comment_id = ? AND author_id = ?", commentID, authorID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// Recount recomputes like_count from the like records and returns it.
func (r *likeRepository) Recount(ctx context.Context, commentID uint) (int, error) {
	defer observability.TrackQuery("recount", "comment_likes")()

	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&comment, commentID).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.CommentLike{}).Where("comment_id = ?", commentID).Count(&count).Error; err != nil {
			return err
		}
		return tx.Model(&models.Comment{}).Where("id = ?", commentID).Update("like_count", count).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, models.NewNotFoundError("Comment", commentID)
		}
		return 0, models.NewInternalError(err)
	}
	return int(count), nil
}
