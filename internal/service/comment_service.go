// Package service holds the comment and like use cases that sit between the
// HTTP handlers and the repositories.
package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"commentservice/internal/models"
	"commentservice/internal/notifications"
	"commentservice/internal/repository"
)

// MaxCommentLength is the longest accepted comment body, in characters.
const MaxCommentLength = 10000

// EventPublisher receives domain events after successful mutations.
type EventPublisher interface {
	Publish(ctx context.Context, evt notifications.Event)
}

type CommentService struct {
	commentRepo repository.CommentRepository
	events      EventPublisher
}

type CreateCommentInput struct {
	AuthorID   string
	AuthorName string
	PostID     string
	Content    string
}

type UpdateCommentInput struct {
	AuthorID  string
	CommentID uint
	Content   string
}

type DeleteCommentInput struct {
	AuthorID  string
	CommentID uint
}

type ListPostCommentsInput struct {
	PostID    string
	Page      int
	Size      int
	SortBy    string
	SortOrder string
}

// CommentPage is one page of a post's visible comments.
type CommentPage struct {
	Comments []*models.Comment `json:"comments"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	Size     int               `json:"size"`
}

// NewCommentService creates a CommentService. events may be nil.
func NewCommentService(commentRepo repository.CommentRepository, events EventPublisher) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		events:      events,
	}
}

func (s *CommentService) publish(ctx context.Context, t notifications.EventType, c *models.Comment, actorID string) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, notifications.NewEvent(t, c, actorID))
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", models.NewValidationError("Content is required")
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return "", models.NewValidationError("Comment too long (max 10000 characters)")
	}
	return content, nil
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	if in.AuthorID == "" {
		return nil, models.NewUnauthorizedError("", "Unable to identify the caller")
	}
	if strings.TrimSpace(in.PostID) == "" {
		return nil, models.NewValidationError("Post ID is required")
	}
	content, err := validateContent(in.Content)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		PostID:     in.PostID,
		AuthorID:   in.AuthorID,
		AuthorName: in.AuthorName,
		Content:    content,
		Status:     models.CommentStatusVisible,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	s.publish(ctx, notifications.EventCommentCreated, comment, in.AuthorID)
	return comment, nil
}

// GetComment returns a comment unless it has been deleted.
func (s *CommentService) GetComment(ctx context.Context, id uint) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment.Status == models.CommentStatusDeleted {
		return nil, models.NewNotFoundError("Comment", id)
	}
	return comment, nil
}

func (s *CommentService) ListPostComments(ctx context.Context, in ListPostCommentsInput) (*CommentPage, error) {
	comments, total, err := s.commentRepo.ListByPost(ctx, in.PostID, repository.ListOptions{
		Offset:    (in.Page - 1) * in.Size,
		Limit:     in.Size,
		SortBy:    in.SortBy,
		SortOrder: in.SortOrder,
	})
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	return &CommentPage{Comments: comments, Total: total, Page: in.Page, Size: in.Size}, nil
}

func (s *CommentService) ListMyComments(ctx context.Context, authorID string, page, size int) ([]*models.Comment, error) {
	comments, err := s.commentRepo.ListByAuthor(ctx, authorID, (page-1)*size, size)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	return comments, nil
}

func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	content, err := validateContent(in.Content)
	if err != nil {
		return nil, err
	}

	comment, err := s.GetComment(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}
	if !comment.IsOwnedBy(in.AuthorID) {
		return nil, models.NewForbiddenError("You do not have permission to edit this comment")
	}

	updated, err := s.commentRepo.UpdateContent(ctx, in.CommentID, content)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notifications.EventCommentUpdated, updated, in.AuthorID)
	return updated, nil
}

func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) error {
	comment, err := s.GetComment(ctx, in.CommentID)
	if err != nil {
		return err
	}
	if !comment.IsOwnedBy(in.AuthorID) {
		return models.NewForbiddenError("You do not have permission to delete this comment")
	}

	if err := s.commentRepo.SoftDelete(ctx, in.CommentID); err != nil {
		return err
	}

	comment.Status = models.CommentStatusDeleted
	s.publish(ctx, notifications.EventCommentDeleted, comment, in.AuthorID)
	return nil
}
