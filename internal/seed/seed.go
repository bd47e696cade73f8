package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/v1mal/open-scene-engine-sub000/internal/database"
	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/service"

	"gorm.io/gorm"
)

// Options configures a seeding run.
type Options struct {
	Communities       int
	PostsPerCommunity int
	CommentsPerPost   int
	Members           int
	// Seed fixes the fake content. Zero picks a random seed.
	Seed  int64
	Clean bool
}

// Presets are named option sets for the seed command.
var Presets = map[string]Options{
	"small": {Communities: 3, PostsPerCommunity: 10, CommentsPerPost: 4, Members: 10},
	"busy":  {Communities: 8, PostsPerCommunity: 60, CommentsPerPost: 25, Members: 200},
}

// AdminUserID owns the seeded communities. Members take the ids after it.
const AdminUserID uint = 1

// Summary counts what a run created.
type Summary struct {
	Communities int `json:"communities"`
	Posts       int `json:"posts"`
	Comments    int `json:"comments"`
	Votes       int `json:"votes"`
}

// Seeder writes demo content through the services.
type Seeder struct {
	db      *gorm.DB
	svc     *service.Services
	factory *Factory
	opts    Options
	log     *slog.Logger
}

// NewSeeder returns a seeder. The services should be built without a rate
// limiter, or a large run will be throttled.
func NewSeeder(db *gorm.DB, svc *service.Services, opts Options, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Members <= 0 {
		opts.Members = 1
	}
	return &Seeder{db: db, svc: svc, factory: NewFactory(opts.Seed, nil), opts: opts, log: logger}
}

func admin() models.Actor {
	return models.Actor{UserID: AdminUserID, Role: models.RoleAdmin}
}

func (s *Seeder) member(i int) models.Actor {
	return models.Actor{UserID: AdminUserID + 1 + uint(i%s.opts.Members), Role: models.RoleMember}
}

// Run seeds communities, then posts in each, then threaded comments and
// votes on every post.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	started := time.Now()
	if s.opts.Clean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, fmt.Errorf("clear: %w", err)
		}
	}

	sum := &Summary{}
	prefix := fmt.Sprintf("s%d", started.Unix()%100000)
	for i := 0; i < s.opts.Communities; i++ {
		c, err := s.svc.Communities.Create(ctx, admin(), s.factory.Community(i, prefix))
		if err != nil {
			return sum, fmt.Errorf("community %d: %w", i, err)
		}
		sum.Communities++
		if err := s.seedCommunity(ctx, c, sum); err != nil {
			return sum, err
		}
	}

	s.log.Info("seeding complete",
		slog.Int("communities", sum.Communities),
		slog.Int("posts", sum.Posts),
		slog.Int("comments", sum.Comments),
		slog.Int("votes", sum.Votes),
		slog.Duration("took", time.Since(started)),
	)
	return sum, nil
}

func (s *Seeder) seedCommunity(ctx context.Context, c *models.Community, sum *Summary) error {
	text, link, media, event := computeCounts(s.opts.PostsPerCommunity, distributionFor(c.Slug))
	plan := []struct {
		typ models.PostType
		n   int
	}{
		{models.PostTypeText, text},
		{models.PostTypeLink, link},
		{models.PostTypeMedia, media},
		{models.PostTypeEvent, event},
	}

	n := 0
	for _, p := range plan {
		for i := 0; i < p.n; i++ {
			post, err := s.svc.Posts.CreatePost(ctx, s.member(n), s.factory.Post(c.ID, p.typ))
			if err != nil {
				return fmt.Errorf("post in %s: %w", c.Slug, err)
			}
			n++
			sum.Posts++
			if err := s.seedThread(ctx, post, sum); err != nil {
				return err
			}
		}
	}
	return nil
}

// seedThread attaches comments to post, each replying to a random earlier
// comment or to the post itself, and then votes on everything.
func (s *Seeder) seedThread(ctx context.Context, post *models.Post, sum *Summary) error {
	var comments []*models.Comment
	for i := 0; i < s.opts.CommentsPerPost; i++ {
		in := service.CreateCommentInput{PostID: post.ID, Body: s.factory.Comment()}
		if len(comments) > 0 && s.factory.Pick(3) > 0 {
			parent := comments[s.factory.Pick(len(comments))]
			in.ParentID = &parent.ID
		}
		comment, err := s.svc.Comments.CreateComment(ctx, s.member(i+s.factory.Pick(s.opts.Members)), in)
		if models.IsCode(err, models.CodeDepthExceeded) {
			in.ParentID = nil
			comment, err = s.svc.Comments.CreateComment(ctx, s.member(i), in)
		}
		if err != nil {
			return fmt.Errorf("comment on post %d: %w", post.ID, err)
		}
		comments = append(comments, comment)
		sum.Comments++
	}

	voters := s.factory.Pick(s.opts.Members + 1)
	for v := 0; v < voters; v++ {
		if _, err := s.svc.Votes.VotePost(ctx, s.member(v), post.ID, s.factory.Vote()); err != nil {
			return fmt.Errorf("vote on post %d: %w", post.ID, err)
		}
		sum.Votes++
	}
	for i, c := range comments {
		if s.factory.Pick(2) == 0 {
			continue
		}
		if _, err := s.svc.Votes.VoteComment(ctx, s.member(i+1), c.ID, s.factory.Vote()); err != nil {
			return fmt.Errorf("vote on comment %d: %w", c.ID, err)
		}
		sum.Votes++
	}
	return nil
}

// ClearAll removes every row of the community schema. Postgres tables are
// truncated because the moderation log rejects row deletes.
func (s *Seeder) ClearAll(ctx context.Context) error {
	s.log.Info("clearing existing data")
	if s.db.Dialector.Name() == "postgres" {
		return s.db.WithContext(ctx).Exec(`TRUNCATE TABLE vote_events, votes, saved_posts, reports, events, comments, posts, bans, moderation_logs, communities RESTART IDENTITY CASCADE`).Error
	}

	tables := database.PersistentModels()
	var errs []error
	for i := len(tables) - 1; i >= 0; i-- {
		err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(tables[i]).Error
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
