// Command seed fills the database with demo communities, posts, comments
// and votes.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/v1mal/open-scene-engine-sub000/internal/bootstrap"
	"github.com/v1mal/open-scene-engine-sub000/internal/config"
	"github.com/v1mal/open-scene-engine-sub000/internal/middleware"
	"github.com/v1mal/open-scene-engine-sub000/internal/seed"
)

func main() {
	communities := flag.Int("communities", 4, "Number of communities to create")
	posts := flag.Int("posts", 20, "Posts per community")
	comments := flag.Int("comments", 8, "Comments per post")
	members := flag.Int("members", 50, "Distinct member ids used as authors and voters")
	seedValue := flag.Int64("seed", 0, "Fake data seed (0 for random)")
	shouldClean := flag.Bool("clean", false, "Clean database before seeding")
	preset := flag.String("preset", "", "Apply a named preset (small, busy) instead of the count flags")
	flag.Parse()

	opts := seed.Options{
		Communities:       *communities,
		PostsPerCommunity: *posts,
		CommentsPerPost:   *comments,
		Members:           *members,
	}
	if *preset != "" {
		p, ok := seed.Presets[*preset]
		if !ok {
			log.Fatalf("Unknown preset %q", *preset)
		}
		opts = p
		log.Printf("Applying preset: %s (ignoring count flags)", *preset)
	}
	opts.Seed = *seedValue
	opts.Clean = *shouldClean

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	// Seeding writes far faster than any member would.
	cfg.RateLimitEnabled = false
	middleware.InitMiddleware(cfg)

	rt, err := bootstrap.InitRuntime(cfg, bootstrap.Options{ApplySchema: true, SkipReplica: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() { _ = rt.Close() }()

	s := seed.NewSeeder(rt.DB, rt.Services, opts, middleware.Logger)
	sum, err := s.Run(context.Background())
	if err != nil {
		log.Printf("Seeding stopped: %v", err)
	}
	if sum != nil {
		log.Printf("Created %d communities, %d posts, %d comments, %d votes",
			sum.Communities, sum.Posts, sum.Comments, sum.Votes)
	}
}
