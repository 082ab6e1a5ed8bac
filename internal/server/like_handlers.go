package server

import (
	"commentservice/internal/middleware"
	"commentservice/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ToggleLike likes or unlikes a comment for the caller (protected)
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	liked, err := s.likeService.ToggleLike(c.UserContext(), commentID, middleware.UserIDFrom(c))
	if err != nil {
		return respondError(c, err)
	}

	message := "Comment unliked"
	if liked {
		message = "Comment liked"
	}
	return models.RespondWithData(c, fiber.StatusOK, message, fiber.Map{
		"comment_id": commentID,
		"liked":      liked,
	})
}

// GetLikeStatus reports whether the caller likes a comment (protected)
func (s *Server) GetLikeStatus(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	liked, err := s.likeService.LikeStatus(c.UserContext(), commentID, middleware.UserIDFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "", fiber.Map{
		"comment_id": commentID,
		"is_liked":   liked,
	})
}
