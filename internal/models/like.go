package models

import "time"

// CommentLike records that a user liked a comment.
// The combination of CommentID and AuthorID must be unique.
type CommentLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CommentID uint      `gorm:"not null;uniqueIndex:idx_comment_like_author" json:"comment_id"`
	AuthorID  string    `gorm:"size:100;not null;uniqueIndex:idx_comment_like_author;index" json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName pins the table name used by the original schema.
func (CommentLike) TableName() string {
	return "comment_likes"
}
