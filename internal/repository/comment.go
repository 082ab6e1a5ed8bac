// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"

	"commentservice/internal/models"
	"commentservice/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sort keys accepted by ListByPost.
const (
	SortByCreatedAt = "created_at"
	SortByLikeCount = "like_count"
	SortOrderDesc   = "desc"
	SortOrderAsc    = "asc"
)

// ListOptions pages and orders a comment listing. Offset is used as given;
// callers compute it as (page-1)*size.
type ListOptions struct {
	Offset    int
	Limit     int
	SortBy    string
	SortOrder string
}

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID string, opts ListOptions) ([]*models.Comment, int64, error)
	ListByAuthor(ctx context.Context, authorID string, offset, limit int) ([]*models.Comment, error)
	UpdateContent(ctx context.Context, id uint, content string) (*models.Comment, error)
	SoftDelete(ctx context.Context, id uint) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	defer observability.TrackQuery("create", "comments")()

	if comment.Status == "" {
		comment.Status = models.CommentStatusVisible
	}
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// GetByID returns the comment regardless of status.
func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	defer observability.TrackQuery("get", "comments")()

	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Comment", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &comment, nil
}

// ListByPost returns one page of visible comments on postID and the number
// of visible comments in total. An unrecognized SortBy applies no ordering.
func (r *commentRepository) ListByPost(ctx context.Context, postID string, opts ListOptions) ([]*models.Comment, int64, error) {
	defer observability.TrackQuery("list_by_post", "comments")()

	visible := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Comment{}).
			Where("post_id = ? AND status = ?", postID, models.CommentStatusVisible)
	}

	var total int64
	if err := visible().Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	query := visible()
	if order, ok := orderBy(opts.SortBy, opts.SortOrder); ok {
		query = query.Order(order)
	}

	var comments []*models.Comment
	if err := query.Offset(opts.Offset).Limit(opts.Limit).Find(&comments).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return comments, total, nil
}

func orderBy(sortBy, sortOrder string) (clause.OrderByColumn, bool) {
	switch sortBy {
	case SortByCreatedAt, SortByLikeCount:
		return clause.OrderByColumn{
			Column: clause.Column{Name: sortBy},
			Desc:   sortOrder == SortOrderDesc,
		}, true
	default:
		return clause.OrderByColumn{}, false
	}
}

// ListByAuthor returns one page of authorID's visible comments.
func (r *commentRepository) ListByAuthor(ctx context.Context, authorID string, offset, limit int) ([]*models.Comment, error) {
	defer observability.TrackQuery("list_by_author", "comments")()

	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Where("author_id = ? AND status = ?", authorID, models.CommentStatusVisible).
		Offset(offset).
		Limit(limit).
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

// UpdateContent replaces the comment body. Ownership is the caller's concern.
func (r *commentRepository) UpdateContent(ctx context.Context, id uint, content string) (*models.Comment, error) {
	defer observability.TrackQuery("update", "comments")()

	res := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).Update("content", content)
	if res.Error != nil {
		return nil, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewNotFoundError("Comment", id)
	}
	return r.GetByID(ctx, id)
}

// SoftDelete marks the comment deleted. Ownership is the caller's concern.
func (r *commentRepository) SoftDelete(ctx context.Context, id uint) error {
	defer observability.TrackQuery("soft_delete", "comments")()

	res := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).
		Update("status", models.CommentStatusDeleted)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}
