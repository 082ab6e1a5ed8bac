// Command seed fills the database with demo comments and likes.
package main

import (
	"context"
	"flag"
	"log"

	"commentservice/internal/config"
	"commentservice/internal/database"
	"commentservice/internal/seed"
)

func main() {
	posts := flag.Int("posts", 20, "Number of posts to comment on")
	users := flag.Int("users", 30, "Number of distinct commenters")
	perPost := flag.Int("comments", 8, "Comments per post")
	maxLikes := flag.Int("likes", 10, "Maximum likes per comment")
	shouldClean := flag.Bool("clean", true, "Clean comments and likes before seeding")
	seedValue := flag.Int64("seed", 0, "Random seed (0 uses the clock)")
	recountOnly := flag.Bool("recount", false, "Only rebuild like counters from like records")
	flag.Parse()

	if !*recountOnly {
		log.Printf("Target: %d posts x %d comments from %d users, clean=%v", *posts, *perPost, *users, *shouldClean)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db)
	if *recountOnly {
		fixed, err := s.RecountAll(context.Background())
		if err != nil {
			log.Fatalf("Recount failed: %v", err)
		}
		log.Printf("Recount finished, %d counters corrected", fixed)
		return
	}

	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	stats, err := s.Run(context.Background(), seed.Options{
		Posts:           *posts,
		Users:           *users,
		CommentsPerPost: *perPost,
		MaxLikes:        *maxLikes,
		Seed:            *seedValue,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Created %d comments and %d likes", stats.Comments, stats.Likes)
}
