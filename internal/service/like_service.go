package service

import (
	"context"

	"commentservice/internal/models"
	"commentservice/internal/notifications"
	"commentservice/internal/repository"
)

type LikeService struct {
	commentRepo repository.CommentRepository
	likeRepo    repository.LikeRepository
	events      EventPublisher
}

func NewLikeService(
	commentRepo repository.CommentRepository,
	likeRepo repository.LikeRepository,
	events EventPublisher,
) *LikeService {
	return &LikeService{
		commentRepo: commentRepo,
		likeRepo:    likeRepo,
		events:      events,
	}
}

// ToggleLike flips authorID's like on the comment and returns the new state.
// Deleted comments cannot be liked.
func (s *LikeService) ToggleLike(ctx context.Context, commentID uint, authorID string) (bool, error) {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return false, err
	}
	if comment.Status == models.CommentStatusDeleted {
		return false, models.NewNotFoundError("Comment", commentID)
	}

	liked, err := s.likeRepo.Toggle(ctx, commentID, authorID)
	if err != nil {
		return false, err
	}

	if s.events != nil {
		// Publish the post-toggle counter.
		if fresh, err := s.commentRepo.GetByID(ctx, commentID); err == nil {
			comment = fresh
		} else {
			comment.LikeCount = adjustedCount(comment.LikeCount, liked)
		}
		t := notifications.EventCommentUnliked
		if liked {
			t = notifications.EventCommentLiked
		}
		s.events.Publish(ctx, notifications.NewEvent(t, comment, authorID))
	}
	return liked, nil
}

func adjustedCount(count int, liked bool) int {
	if liked {
		return count + 1
	}
	return max(count-1, 0)
}

// LikeStatus reports whether authorID likes the comment. It does not check
// that the comment exists.
func (s *LikeService) LikeStatus(ctx context.Context, commentID uint, authorID string) (bool, error) {
	return s.likeRepo.Exists(ctx, commentID, authorID)
}

// RecountLikes rebuilds the comment's like_count from its like records.
func (s *LikeService) RecountLikes(ctx context.Context, commentID uint) (int, error) {
	return s.likeRepo.Recount(ctx, commentID)
}
