// Package notifications fans comment events out to Redis, Kafka and the post service.
package notifications

import (
	"time"

	"commentservice/internal/models"

	"github.com/google/uuid"
)

// EventType names a comment lifecycle event.
type EventType string

const (
	EventCommentCreated EventType = "comment.created"
	EventCommentUpdated EventType = "comment.updated"
	EventCommentDeleted EventType = "comment.deleted"
	EventCommentLiked   EventType = "comment.liked"
	EventCommentUnliked EventType = "comment.unliked"
)

// Event is published after a successful mutation.
type Event struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	PostID     string          `json:"post_id"`
	CommentID  uint            `json:"comment_id"`
	ActorID    string          `json:"actor_id"`
	Comment    *models.Comment `json:"comment,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewEvent builds an event for comment, stamped with a fresh id.
func NewEvent(t EventType, comment *models.Comment, actorID string) Event {
	evt := Event{
		ID:         uuid.NewString(),
		Type:       t,
		ActorID:    actorID,
		Comment:    comment,
		OccurredAt: time.Now().UTC(),
	}
	if comment != nil {
		evt.PostID = comment.PostID
		evt.CommentID = comment.ID
	}
	return evt
}

// ChangesCommentCount reports whether the event alters a post's visible comment count.
func (e Event) ChangesCommentCount() bool {
	return e.Type == EventCommentCreated || e.Type == EventCommentDeleted
}
