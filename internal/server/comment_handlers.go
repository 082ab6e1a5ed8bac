package server

import (
	"commentservice/internal/middleware"
	"commentservice/internal/models"
	"commentservice/internal/repository"
	"commentservice/internal/service"

	"github.com/gofiber/fiber/v2"
)

type commentRequest struct {
	Content string `json:"content"`
}

// ListPostComments returns one page of a post's visible comments (public)
func (s *Server) ListPostComments(c *fiber.Ctx) error {
	page, size, err := parsePage(c)
	if err != nil {
		return nil
	}

	result, err := s.commentService.ListPostComments(c.UserContext(), service.ListPostCommentsInput{
		PostID:    c.Params("postId"),
		Page:      page,
		Size:      size,
		SortBy:    c.Query("sort_by", repository.SortByCreatedAt),
		SortOrder: c.Query("sort_order", repository.SortOrderDesc),
	})
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "", result)
}

// CreateComment creates a comment on a post (protected)
func (s *Server) CreateComment(c *fiber.Ctx) error {
	var req commentRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}

	created, err := s.commentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		AuthorID:   middleware.UserIDFrom(c),
		AuthorName: middleware.UserNameFrom(c),
		PostID:     c.Params("postId"),
		Content:    req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusCreated, "Comment created", created)
}

// UpdateComment edits the caller's own comment (protected)
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	var req commentRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}

	updated, err := s.commentService.UpdateComment(c.UserContext(), service.UpdateCommentInput{
		AuthorID:  middleware.UserIDFrom(c),
		CommentID: commentID,
		Content:   req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "Comment updated", updated)
}

// DeleteComment soft-deletes the caller's own comment (protected)
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	if err := s.commentService.DeleteComment(c.UserContext(), service.DeleteCommentInput{
		AuthorID:  middleware.UserIDFrom(c),
		CommentID: commentID,
	}); err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "Comment deleted", nil)
}

// GetMyComments lists the caller's visible comments (protected)
func (s *Server) GetMyComments(c *fiber.Ctx) error {
	page, size, err := parsePage(c)
	if err != nil {
		return nil
	}

	comments, err := s.commentService.ListMyComments(c.UserContext(), middleware.UserIDFrom(c), page, size)
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "", comments)
}
