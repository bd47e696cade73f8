// Package seed provides helpers to create demo data for development and
// testing. Everything is written through the services, so seeded rows obey
// the same validation and counter rules as live traffic.
package seed

import (
	"fmt"
	"strings"
	"time"

	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/service"

	"github.com/brianvoe/gofakeit/v6"
)

// Distribution weights the post types generated per community. Weights are
// relative and need not sum to anything in particular.
type Distribution struct {
	Text  int
	Link  int
	Media int
	Event int
}

var defaultDistribution = Distribution{Text: 5, Link: 2, Media: 2, Event: 1}

// CategoryDistributions tunes the post mix for communities whose slug
// starts with the key.
var CategoryDistributions = map[string]Distribution{
	"events": {Text: 2, Link: 1, Media: 1, Event: 6},
	"mixes":  {Text: 2, Link: 6, Media: 2, Event: 0},
	"photo":  {Text: 1, Link: 1, Media: 8, Event: 0},
}

func distributionFor(slug string) Distribution {
	for prefix, d := range CategoryDistributions {
		if strings.HasPrefix(slug, prefix) {
			return d
		}
	}
	return defaultDistribution
}

// computeCounts splits n posts across the types of d. Rounding leftovers go
// to text posts.
func computeCounts(n int, d Distribution) (text, link, media, event int) {
	total := d.Text + d.Link + d.Media + d.Event
	if n <= 0 || total <= 0 {
		return n, 0, 0, 0
	}
	link = n * d.Link / total
	media = n * d.Media / total
	event = n * d.Event / total
	text = n - link - media - event
	return text, link, media, event
}

// Factory produces valid service inputs filled with fake content.
type Factory struct {
	faker *gofakeit.Faker
	now   func() time.Time
}

// NewFactory returns a factory. A zero seed picks a random one.
func NewFactory(seed int64, now func() time.Time) *Factory {
	if now == nil {
		now = time.Now
	}
	return &Factory{faker: gofakeit.New(seed), now: now}
}

// Community returns input for the i-th seeded community.
func (f *Factory) Community(i int, prefix string) service.CommunityInput {
	word := strings.ToLower(f.faker.Noun())
	slug := fmt.Sprintf("%s-%s-%d", prefix, slugify(word), i)
	if len(slug) > 63 {
		slug = strings.TrimRight(slug[:63], "-")
	}
	return service.CommunityInput{
		Name:        f.faker.HipsterWord() + " " + word,
		Slug:        slug,
		Description: f.faker.Sentence(12),
		Visibility:  string(models.VisibilityPublic),
	}
}

// Post returns input for a post of the given type in communityID.
func (f *Factory) Post(communityID uint, typ models.PostType) service.CreatePostInput {
	in := service.CreatePostInput{
		CommunityID: communityID,
		Title:       strings.TrimSuffix(f.faker.Sentence(f.faker.IntRange(3, 9)), "."),
		Type:        string(typ),
	}
	switch typ {
	case models.PostTypeLink:
		in.Body = fmt.Sprintf("https://%s/%s", f.faker.DomainName(), slugify(f.faker.Word()))
	case models.PostTypeMedia:
		in.Body = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", f.faker.UUID())
	case models.PostTypeEvent:
		in.Body = f.faker.Paragraph(1, 2, 12, "\n")
		in.Event = f.Event()
	default:
		in.Body = f.faker.Paragraph(1, 3, 14, "\n\n")
	}
	return in
}

// Event returns event details between one day and two months out.
func (f *Factory) Event() *service.EventInput {
	start := f.now().Add(time.Duration(f.faker.IntRange(24, 24*60)) * time.Hour).Truncate(time.Hour)
	end := start.Add(time.Duration(f.faker.IntRange(3, 10)) * time.Hour)
	return &service.EventInput{
		EventDate:    &start,
		EventEndDate: &end,
		VenueName:    f.faker.Company(),
		VenueAddress: fmt.Sprintf("%s, %s", f.faker.Street(), f.faker.City()),
		TicketURL:    fmt.Sprintf("https://tickets.%s/%d", f.faker.DomainName(), f.faker.IntRange(1000, 9999)),
		Metadata:     map[string]any{"lineup": []string{f.faker.Name(), f.faker.Name()}},
	}
}

// Comment returns a comment body.
func (f *Factory) Comment() string {
	return f.faker.Sentence(f.faker.IntRange(4, 24))
}

// Vote returns +1 roughly three times out of four.
func (f *Factory) Vote() int {
	if f.faker.IntRange(1, 4) == 1 {
		return -1
	}
	return 1
}

// Pick returns an index in [0, n).
func (f *Factory) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	return f.faker.IntRange(0, n-1)
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "x"
	}
	return b.String()
}
