// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// CommentStatus is the visibility state of a comment.
type CommentStatus string

const (
	CommentStatusVisible CommentStatus = "visible"
	CommentStatusHidden  CommentStatus = "hidden"
	CommentStatusDeleted CommentStatus = "deleted"
)

// Comment is a user comment attached to a post owned by the external post service.
// Deletion is a status transition; rows are never removed.
type Comment struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	PostID     string        `gorm:"size:32;not null;index" json:"post_id"`
	AuthorID   string        `gorm:"size:100;not null;index" json:"author_id"`
	AuthorName string        `gorm:"size:100;not null" json:"author_name"`
	Content    string        `gorm:"type:text;not null" json:"content"`
	Status     CommentStatus `gorm:"size:16;not null;default:visible;index" json:"status"`
	LikeCount  int           `gorm:"not null;default:0" json:"like_count"`
	CreatedAt  time.Time     `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// IsOwnedBy reports whether authorID wrote the comment.
func (c *Comment) IsOwnedBy(authorID string) bool {
	return c != nil && authorID != "" && c.AuthorID == authorID
}
