// Package seed creates demo comments and likes for local development and tests.
package seed

import (
	"context"
	"fmt"
	"time"

	"commentservice/internal/models"
	"commentservice/internal/repository"
	"commentservice/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options controls how much data the seeder creates.
type Options struct {
	Posts           int
	Users           int
	CommentsPerPost int
	// MaxLikes caps the likes placed on any one comment.
	MaxLikes int
	// Seed makes the generated data reproducible; 0 uses the clock.
	Seed int64
}

// Stats reports what a run created.
type Stats struct {
	Comments int
	Likes    int
}

type user struct {
	id   string
	name string
}

// Seeder writes demo data through the repositories so like counts stay consistent.
type Seeder struct {
	db       *gorm.DB
	comments repository.CommentRepository
	likes    repository.LikeRepository
	likeSvc  *service.LikeService
}

func NewSeeder(db *gorm.DB) *Seeder {
	comments := repository.NewCommentRepository(db)
	likes := repository.NewLikeRepository(db)
	return &Seeder{
		db:       db,
		comments: comments,
		likes:    likes,
		likeSvc:  service.NewLikeService(comments, likes, nil),
	}
}

// ClearAll removes every comment and like.
func (s *Seeder) ClearAll() error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.CommentLike{}).Error; err != nil {
			return fmt.Errorf("clear likes: %w", err)
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Comment{}).Error; err != nil {
			return fmt.Errorf("clear comments: %w", err)
		}
		return nil
	})
}

// Run creates comments on opts.Posts synthetic posts from opts.Users
// synthetic users, then likes a random subset of them.
func (s *Seeder) Run(ctx context.Context, opts Options) (Stats, error) {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	faker := gofakeit.New(seed)

	users := make([]user, max(opts.Users, 1))
	for i := range users {
		users[i] = user{id: faker.UUID(), name: faker.Username()}
	}

	var stats Stats
	for p := 1; p <= opts.Posts; p++ {
		postID := fmt.Sprintf("post-%d", p)
		for i := 0; i < opts.CommentsPerPost; i++ {
			author := users[faker.Number(0, len(users)-1)]
			comment := &models.Comment{
				PostID:     postID,
				AuthorID:   author.id,
				AuthorName: author.name,
				Content:    faker.Sentence(faker.Number(4, 16)),
			}
			if err := s.comments.Create(ctx, comment); err != nil {
				return stats, fmt.Errorf("create comment: %w", err)
			}
			stats.Comments++

			likers := indexes(len(users))
			faker.ShuffleInts(likers)
			for _, j := range likers[:faker.Number(0, min(max(opts.MaxLikes, 0), len(users)))] {
				if _, err := s.likes.Toggle(ctx, comment.ID, users[j].id); err != nil {
					return stats, fmt.Errorf("like comment: %w", err)
				}
				stats.Likes++
			}
		}
	}
	return stats, nil
}

// RecountAll rebuilds like_count on every comment from its like rows and
// returns how many counters changed.
func (s *Seeder) RecountAll(ctx context.Context) (int, error) {
	var comments []models.Comment
	if err := s.db.WithContext(ctx).Select("id", "like_count").Order("id").Find(&comments).Error; err != nil {
		return 0, fmt.Errorf("list comments: %w", err)
	}

	fixed := 0
	for _, c := range comments {
		n, err := s.likeSvc.RecountLikes(ctx, c.ID)
		if err != nil {
			return fixed, fmt.Errorf("recount comment %d: %w", c.ID, err)
		}
		if n != c.LikeCount {
			fixed++
		}
	}
	return fixed, nil
}

func indexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
