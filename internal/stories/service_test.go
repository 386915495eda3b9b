package stories

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/suraksha-labs/suraksha/backend/internal/users"
	"gorm.io/gorm"
)

type fixture struct {
	service *Service
	db      *gorm.DB
	clock   *manualClock
}

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time {
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&users.User{}, &Story{}, &Comment{}, &Reaction{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	clock := &manualClock{now: time.Unix(1700000000, 0).UTC()}
	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      clock.Now,
		IDProvider: users.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return &fixture{service: service, db: db, clock: clock}
}

func (f *fixture) seedUser(t *testing.T, id, name, demographic string) {
	t.Helper()
	account := users.User{
		ID:           id,
		Name:         name,
		Email:        id + "@example.com",
		Demographic:  demographic,
		PasswordHash: "x",
	}
	if err := f.db.Create(&account).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
}

func (f *fixture) seedStory(t *testing.T, userID, text string, tags ...string) *Story {
	t.Helper()
	story, err := f.service.CreateStory(context.Background(), userID, text, tags)
	if err != nil {
		t.Fatalf("failed to seed story: %v", err)
	}
	return story
}

const validStoryText = "A caller claimed to be from my bank and asked for the OTP."

func TestCreateStoryRejectsShortText(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "Asha", "student")

	_, err := f.service.CreateStory(context.Background(), "u1", strings.Repeat("a", 29), nil)
	if !errors.Is(err, ErrStoryTooShort) {
		t.Fatalf("expected ErrStoryTooShort, got %v", err)
	}
	if _, err := f.service.CreateStory(context.Background(), "u1", strings.Repeat("a", 30), nil); err != nil {
		t.Fatalf("thirty characters must be accepted: %v", err)
	}
}

func TestCreateStoryRedactsAndSanitizes(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "Asha", "student")

	text := "Scammer on 9876543210 asked me to pay via victim@okaxis right away"
	story := f.seedStory(t, "u1", text, "UPI", "UPI", "Foo", "KYC", "Job", "Loan")

	if strings.Contains(story.TextRedacted, "9876543210") {
		t.Fatalf("phone leaked into redacted text: %q", story.TextRedacted)
	}
	if strings.Contains(story.TextRedacted, "victim@okaxis") {
		t.Fatalf("UPI handle leaked into redacted text: %q", story.TextRedacted)
	}
	if len(story.Tags) != 3 || story.Tags[0] != "UPI" || story.Tags[1] != "KYC" || story.Tags[2] != "Job" {
		t.Fatalf("unexpected tags: %v", story.Tags)
	}

	// The raw text is write-only at the schema level: a fresh read must not
	// bring it back.
	var reread Story
	if err := f.db.Where("id = ?", story.ID).Take(&reread).Error; err != nil {
		t.Fatalf("failed to reread story: %v", err)
	}
	if reread.TextOriginal != "" {
		t.Fatalf("text_original must never be selected back, got %q", reread.TextOriginal)
	}
	if reread.TextRedacted != story.TextRedacted {
		t.Fatalf("redacted text must round-trip")
	}
}

func TestAddCommentValidations(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "Asha", "student")
	story := f.seedStory(t, "u1", validStoryText)

	if _, err := f.service.AddComment(context.Background(), story.ID, "u1", "hey"); !errors.Is(err, ErrCommentTooShort) {
		t.Fatalf("expected ErrCommentTooShort, got %v", err)
	}
	if _, err := f.service.AddComment(context.Background(), "missing-story", "u1", "this happened to me too"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	comment, err := f.service.AddComment(context.Background(), story.ID, "u1", "call 9876543210 to verify")
	if err != nil {
		t.Fatalf("unexpected comment error: %v", err)
	}
	if strings.Contains(comment.TextRedacted, "9876543210") {
		t.Fatalf("phone leaked into comment: %q", comment.TextRedacted)
	}
}

func TestUpvoteIncrementsCounter(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "Asha", "student")
	story := f.seedStory(t, "u1", validStoryText)

	for want := int64(1); want <= 3; want++ {
		got, err := f.service.UpvoteStory(context.Background(), story.ID)
		if err != nil {
			t.Fatalf("unexpected upvote error: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d upvotes, got %d", want, got)
		}
	}

	if _, err := f.service.UpvoteStory(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReactIsIdempotentPerValue(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "Asha", "student")
	story := f.seedStory(t, "u1", validStoryText)

	first, err := f.service.ReactToStory(context.Background(), story.ID, "u1", ReactionLike)
	if err != nil {
		t.Fatalf("unexpected react error: %v", err)
	}
	if first.Like != 1 {
		t.Fatalf("expected like bucket 1, got %d", first.Like)
	}

	repeat, err := f.service.ReactToStory(context.Background(), story.ID, "u1", ReactionLike)
	if err != nil {
		t.Fatalf("unexpected react error: %v", err)
	}
	if repeat.Like != 1 {
		t.Fatalf("repeated identical reaction must not double-count, got %d", repeat.Like)
	}
}

func TestReactSwitchMovesBuckets(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "Asha", "student")
	f.seedUser(t, "u2", "Bilal", "senior")
	story := f.seedStory(t, "u1", validStoryText)

	if _, err := f.service.ReactToStory(context.Background(), story.ID, "u1", ReactionLike); err != nil {
		t.Fatalf("unexpected react error: %v", err)
	}
	if _, err := f.service.ReactToStory(context.Background(), story.ID, "u2", ReactionLike); err != nil {
		t.Fatalf("unexpected react error: %v", err)
	}

	counts, err := f.service.ReactToStory(context.Background(), story.ID, "u1", ReactionAngry)
	if err != nil {
		t.Fatalf("unexpected react error: %v", err)
	}
	if counts.Like != 1 || counts.Angry != 1 {
		t.Fatalf("expected like=1 angry=1, got %+v", counts)
	}
	if counts.Total() != 2 {
		t.Fatalf("aggregate total must equal distinct reacting users, got %d", counts.Total())
	}

	var rows []Reaction
	if err := f.db.Where("item_kind = ? AND item_id = ? AND user_id = ?", ItemStory, story.ID, "u1").Find(&rows).Error; err != nil {
		t.Fatalf("failed to read reactions: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one reaction row per user, got %d", len(rows))
	}
	if rows[0].Value != string(ReactionAngry) {
		t.Fatalf("expected stored reaction angry, got %s", rows[0].Value)
	}
}

func TestReactOnCommentAndMissingItem(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "Asha", "student")
	story := f.seedStory(t, "u1", validStoryText)
	comment, err := f.service.AddComment(context.Background(), story.ID, "u1", "same thing happened to me")
	if err != nil {
		t.Fatalf("unexpected comment error: %v", err)
	}

	counts, err := f.service.ReactToComment(context.Background(), comment.ID, "u1", ReactionSad)
	if err != nil {
		t.Fatalf("unexpected react error: %v", err)
	}
	if counts.Sad != 1 {
		t.Fatalf("expected sad bucket 1, got %d", counts.Sad)
	}

	if _, err := f.service.ReactToStory(context.Background(), "missing", "u1", ReactionLike); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestShareStoryTalliesPlatform(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "Asha", "student")
	story := f.seedStory(t, "u1", validStoryText)

	shares, err := f.service.ShareStory(context.Background(), story.ID, ShareWhatsapp)
	if err != nil {
		t.Fatalf("unexpected share error: %v", err)
	}
	if shares.Whatsapp != 1 || shares.Copy != 0 {
		t.Fatalf("unexpected share counts: %+v", shares)
	}

	shares, err = f.service.ShareStory(context.Background(), story.ID, ShareCopy)
	if err != nil {
		t.Fatalf("unexpected share error: %v", err)
	}
	if shares.Whatsapp != 1 || shares.Copy != 1 {
		t.Fatalf("unexpected share counts: %+v", shares)
	}

	if _, err := f.service.ShareStory(context.Background(), "missing", ShareCopy); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListStoriesPaginationAndFilters(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "Asha", "student")
	f.seedUser(t, "u2", "Bilal", "senior")

	first := f.seedStory(t, "u1", validStoryText, "UPI")
	f.clock.Advance(time.Minute)
	second := f.seedStory(t, "u2", validStoryText+" again", "KYC")
	f.clock.Advance(time.Minute)
	third := f.seedStory(t, "u1", validStoryText+" once more", "UPI", "Job")

	page, err := f.service.ListStories(context.Background(), ListQuery{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if page.Total != 3 {
		t.Fatalf("expected total 3, got %d", page.Total)
	}
	if len(page.Stories) != 2 {
		t.Fatalf("expected 2 stories on page, got %d", len(page.Stories))
	}
	if page.Stories[0].ID != third.ID || page.Stories[1].ID != second.ID {
		t.Fatalf("expected newest-first ordering")
	}

	tagged, err := f.service.ListStories(context.Background(), ListQuery{Tag: "UPI"})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(tagged.Stories) != 2 {
		t.Fatalf("expected 2 UPI stories, got %d", len(tagged.Stories))
	}

	if _, err := f.service.ListStories(context.Background(), ListQuery{Tag: "Foo"}); !errors.Is(err, ErrInvalidTag) {
		t.Fatalf("expected ErrInvalidTag, got %v", err)
	}

	authored, err := f.service.ListStories(context.Background(), ListQuery{AuthorID: "u2"})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(authored.Stories) != 1 || authored.Stories[0].ID != second.ID {
		t.Fatalf("expected only u2's story")
	}

	if page.Stories[1].Author == nil || page.Stories[1].Author.Name != "Bilal" || page.Stories[1].Author.Demographic != "senior" {
		t.Fatalf("expected author projection, got %+v", page.Stories[1].Author)
	}
	_ = first
}

func TestListStoriesMyReactionIsViewerScoped(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "Asha", "student")
	f.seedUser(t, "u2", "Bilal", "senior")
	story := f.seedStory(t, "u1", validStoryText)

	if _, err := f.service.ReactToStory(context.Background(), story.ID, "u2", ReactionLove); err != nil {
		t.Fatalf("unexpected react error: %v", err)
	}

	asViewer, err := f.service.ListStories(context.Background(), ListQuery{ViewerID: "u2"})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if asViewer.Stories[0].MyReaction != string(ReactionLove) {
		t.Fatalf("expected viewer's own reaction, got %q", asViewer.Stories[0].MyReaction)
	}

	asOther, err := f.service.ListStories(context.Background(), ListQuery{ViewerID: "u1"})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if asOther.Stories[0].MyReaction != "" {
		t.Fatalf("another viewer must not see someone else's reaction")
	}
	if asOther.Stories[0].Reactions.Love != 1 {
		t.Fatalf("aggregate counts must still be visible")
	}

	anonymous, err := f.service.ListStories(context.Background(), ListQuery{})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if anonymous.Stories[0].MyReaction != "" {
		t.Fatalf("anonymous callers have no reaction")
	}
}

func TestGetStoryReturnsThread(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "Asha", "student")
	f.seedUser(t, "u2", "Bilal", "senior")
	story := f.seedStory(t, "u1", validStoryText)

	if _, err := f.service.AddComment(context.Background(), story.ID, "u2", "report it to the cyber cell"); err != nil {
		t.Fatalf("unexpected comment error: %v", err)
	}
	f.clock.Advance(time.Minute)
	if _, err := f.service.AddComment(context.Background(), story.ID, "u1", "thanks, I already did that"); err != nil {
		t.Fatalf("unexpected comment error: %v", err)
	}

	detail, err := f.service.GetStory(context.Background(), story.ID, "u1")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if detail.Story.ID != story.ID {
		t.Fatalf("unexpected story id")
	}
	if len(detail.Comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(detail.Comments))
	}
	if detail.Comments[0].Author == nil || detail.Comments[0].Author.Name != "Bilal" {
		t.Fatalf("expected comment author projection")
	}

	if _, err := f.service.GetStory(context.Background(), "missing", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
