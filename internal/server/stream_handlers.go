package server

import (
	"context"
	"log/slog"
	"time"

	"commentservice/internal/middleware"
	"commentservice/internal/notifications"
	"commentservice/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const streamWriteTimeout = 10 * time.Second

// requireUpgrade rejects plain HTTP requests on websocket routes.
func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// CommentStream relays a post's comment events to a websocket client. The
// first frame confirms the subscription; every following frame is one event.
func (s *Server) CommentStream() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		postID := conn.Params("postId")
		defer func() { _ = conn.Close() }()

		if s.redis == nil {
			_ = conn.WriteJSON(fiber.Map{"type": "error", "message": "live updates are unavailable"})
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, err := notifications.NewRedisPublisher(s.redis).SubscribePost(ctx, postID)
		if err != nil {
			middleware.Logger.Warn("comment stream subscribe failed",
				slog.String("post_id", postID),
				slog.String("error", err.Error()),
			)
			_ = conn.WriteJSON(fiber.Map{"type": "error", "message": "live updates are unavailable"})
			return
		}

		observability.ActiveStreams.Inc()
		defer observability.ActiveStreams.Dec()

		if err := conn.WriteJSON(fiber.Map{"type": "subscribed", "post_id": postID}); err != nil {
			return
		}

		// Reads only detect the client going away.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-events:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
					return
				}
			}
		}
	})
}
