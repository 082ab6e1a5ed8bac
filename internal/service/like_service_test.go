package service

import (
	"context"
	"testing"

	"commentservice/internal/models"
	"commentservice/internal/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// likeRepoStub is a stub for repository.LikeRepository.
type likeRepoStub struct {
	toggleFn  func(context.Context, uint, string) (bool, error)
	existsFn  func(context.Context, uint, string) (bool, error)
	recountFn func(context.Context, uint) (int, error)
}

func (s *likeRepoStub) Toggle(ctx context.Context, commentID uint, authorID string) (bool, error) {
	return s.toggleFn(ctx, commentID, authorID)
}
func (s *likeRepoStub) Exists(ctx context.Context, commentID uint, authorID string) (bool, error) {
	return s.existsFn(ctx, commentID, authorID)
}
func (s *likeRepoStub) Recount(ctx context.Context, commentID uint) (int, error) {
	return s.recountFn(ctx, commentID)
}

// memoryLikes toggles membership in a set.
func memoryLikes() *likeRepoStub {
	liked := map[string]bool{}
	return &likeRepoStub{
		toggleFn: func(_ context.Context, _ uint, authorID string) (bool, error) {
			liked[authorID] = !liked[authorID]
			return liked[authorID], nil
		},
		existsFn: func(_ context.Context, _ uint, authorID string) (bool, error) {
			return liked[authorID], nil
		},
		recountFn: func(_ context.Context, _ uint) (int, error) {
			n := 0
			for _, v := range liked {
				if v {
					n++
				}
			}
			return n, nil
		},
	}
}

func TestLikeService_ToggleLike(t *testing.T) {
	t.Parallel()

	events := &eventRecorder{}
	likes := memoryLikes()
	svc := NewLikeService(noopCommentRepo(), likes, events)
	ctx := context.Background()

	liked, err := svc.ToggleLike(ctx, 1, "u1")
	require.NoError(t, err)
	assert.True(t, liked)

	status, err := svc.LikeStatus(ctx, 1, "u1")
	require.NoError(t, err)
	assert.True(t, status)

	liked, err = svc.ToggleLike(ctx, 1, "u1")
	require.NoError(t, err)
	assert.False(t, liked)

	assert.Equal(t, []notifications.EventType{
		notifications.EventCommentLiked,
		notifications.EventCommentUnliked,
	}, events.types())
}

func TestLikeService_ToggleLike_MissingOrDeleted(t *testing.T) {
	t.Parallel()

	likes := memoryLikes()
	likes.toggleFn = func(_ context.Context, _ uint, _ string) (bool, error) {
		t.Fatal("toggle must not be called")
		return false, nil
	}

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		commentRepo := noopCommentRepo()
		commentRepo.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
			return nil, models.NewNotFoundError("Comment", id)
		}
		_, err := NewLikeService(commentRepo, likes, nil).ToggleLike(context.Background(), 9, "u1")
		assertAppErrorCode(t, err, models.CodeNotFound)
	})

	t.Run("deleted", func(t *testing.T) {
		t.Parallel()
		commentRepo := noopCommentRepo()
		commentRepo.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
			return &models.Comment{ID: id, Status: models.CommentStatusDeleted}, nil
		}
		_, err := NewLikeService(commentRepo, likes, nil).ToggleLike(context.Background(), 9, "u1")
		assertAppErrorCode(t, err, models.CodeNotFound)
	})
}

func TestLikeService_RecountLikes(t *testing.T) {
	t.Parallel()

	likes := memoryLikes()
	svc := NewLikeService(noopCommentRepo(), likes, nil)
	ctx := context.Background()

	for _, u := range []string{"a", "b", "c"} {
		_, err := svc.ToggleLike(ctx, 1, u)
		require.NoError(t, err)
	}
	n, err := svc.RecountLikes(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestLikeService_ToggleLike_EventCarriesNewCount(t *testing.T) {
	t.Parallel()

	likes := memoryLikes()
	commentRepo := noopCommentRepo()
	commentRepo.getByIDFn = func(ctx context.Context, id uint) (*models.Comment, error) {
		n, err := likes.recountFn(ctx, id)
		if err != nil {
			return nil, err
		}
		return &models.Comment{ID: id, PostID: "p1", Status: models.CommentStatusVisible, LikeCount: n}, nil
	}
	events := &eventRecorder{}
	svc := NewLikeService(commentRepo, likes, events)
	ctx := context.Background()

	_, err := svc.ToggleLike(ctx, 1, "a")
	require.NoError(t, err)
	_, err = svc.ToggleLike(ctx, 1, "b")
	require.NoError(t, err)
	_, err = svc.ToggleLike(ctx, 1, "a")
	require.NoError(t, err)

	require.Len(t, events.events, 3)
	counts := make([]int, 0, 3)
	for _, e := range events.events {
		require.NotNil(t, e.Comment)
		counts = append(counts, e.Comment.LikeCount)
	}
	assert.Equal(t, []int{1, 2, 1}, counts)
}

func TestLikeService_ToggleLike_RereadFailureAdjustsCount(t *testing.T) {
	t.Parallel()

	calls := 0
	commentRepo := noopCommentRepo()
	commentRepo.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
		calls++
		if calls > 1 {
			return nil, models.NewInternalError(assert.AnError)
		}
		return &models.Comment{ID: id, PostID: "p1", Status: models.CommentStatusVisible, LikeCount: 4}, nil
	}
	events := &eventRecorder{}
	svc := NewLikeService(commentRepo, memoryLikes(), events)

	liked, err := svc.ToggleLike(context.Background(), 1, "u1")
	require.NoError(t, err)
	assert.True(t, liked)
	require.Len(t, events.events, 1)
	assert.Equal(t, 5, events.events[0].Comment.LikeCount)
}
