package stories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/suraksha-labs/suraksha/backend/internal/redact"
	"github.com/suraksha-labs/suraksha/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	minStoryLength   = 30
	minCommentLength = 5

	defaultPageSize = 10
	maxPageSize     = 50
)

var (
	// ErrNotFound indicates the referenced story or comment does not exist.
	ErrNotFound = errors.New("stories: not found")
	// ErrStoryTooShort indicates story text under the minimum length.
	ErrStoryTooShort = fmt.Errorf("stories: story must be at least %d characters", minStoryLength)
	// ErrCommentTooShort indicates comment text under the minimum length.
	ErrCommentTooShort = fmt.Errorf("stories: comment must be at least %d characters", minCommentLength)

	errMissingDatabase   = errors.New("stories: database handle is required")
	errMissingIDProvider = errors.New("stories: id provider is required")
)

// ServiceConfig describes the dependencies of the story service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider users.IDProvider
	Redactor   func(string) string
	Logger     *zap.Logger
}

// Service implements the story feed: creation, listing, comments, upvotes,
// reactions and share tallies.
type Service struct {
	db       *gorm.DB
	clock    func() time.Time
	ids      users.IDProvider
	redactor func(string) string
	logger   *zap.Logger
}

// NewService validates the configuration and constructs the service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	redactor := cfg.Redactor
	if redactor == nil {
		redactor = redact.Redact
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:       cfg.Database,
		clock:    clock,
		ids:      cfg.IDProvider,
		redactor: redactor,
		logger:   logger,
	}, nil
}

// CreateStory validates, redacts and persists a new story.
func (s *Service) CreateStory(ctx context.Context, userID, text string, tags []string) (*Story, error) {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < minStoryLength {
		return nil, ErrStoryTooShort
	}

	id, err := s.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("stories: id generation: %w", err)
	}

	story := Story{
		ID:           id,
		UserID:       userID,
		TextOriginal: trimmed,
		TextRedacted: s.redactor(trimmed),
		Tags:         SanitizeTags(tags),
		CreatedAt:    s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&story).Error; err != nil {
		s.logger.Error("story insert failed", zap.Error(err))
		return nil, fmt.Errorf("stories: create: %w", err)
	}
	return &story, nil
}

// AddComment validates, redacts and persists a comment on an existing story.
func (s *Service) AddComment(ctx context.Context, storyID, userID, text string) (*Comment, error) {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < minCommentLength {
		return nil, ErrCommentTooShort
	}

	var exists int64
	if err := s.db.WithContext(ctx).Model(&Story{}).Where("id = ?", storyID).Count(&exists).Error; err != nil {
		return nil, fmt.Errorf("stories: story lookup: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	id, err := s.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("stories: id generation: %w", err)
	}

	comment := Comment{
		ID:           id,
		StoryID:      storyID,
		UserID:       userID,
		TextOriginal: trimmed,
		TextRedacted: s.redactor(trimmed),
		CreatedAt:    s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		s.logger.Error("comment insert failed", zap.Error(err))
		return nil, fmt.Errorf("stories: add comment: %w", err)
	}
	return &comment, nil
}

// ListQuery selects a page of the story feed.
type ListQuery struct {
	Page     int
	Limit    int
	Tag      string
	AuthorID string
	ViewerID string
}

// StoryPage is one page of the feed plus pagination echoes.
type StoryPage struct {
	Stories []StoryView `json:"stories"`
	Page    int         `json:"page"`
	Limit   int         `json:"limit"`
	Total   int64       `json:"total"`
}

// ListStories returns a page of stories, newest first, optionally filtered by
// tag or author id.
func (s *Service) ListStories(ctx context.Context, query ListQuery) (*StoryPage, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}
	limit := query.Limit
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	scope := s.db.WithContext(ctx).Model(&Story{})
	if query.Tag != "" {
		if !IsAllowedTag(query.Tag) {
			return nil, ErrInvalidTag
		}
		// Tags are stored as a JSON array of quoted strings.
		scope = scope.Where("tags LIKE ?", `%"`+query.Tag+`"%`)
	}
	if query.AuthorID != "" {
		scope = scope.Where("user_id = ?", query.AuthorID)
	}

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("stories: count: %w", err)
	}

	var items []Story
	if err := scope.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("stories: list: %w", err)
	}

	views, err := s.storyViews(ctx, items, query.ViewerID)
	if err != nil {
		return nil, err
	}
	return &StoryPage{Stories: views, Page: page, Limit: limit, Total: total}, nil
}

// GetStory returns one story with its comment thread.
func (s *Service) GetStory(ctx context.Context, storyID, viewerID string) (*StoryDetail, error) {
	var story Story
	err := s.db.WithContext(ctx).Where("id = ?", storyID).Take(&story).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stories: get: %w", err)
	}

	storyView, err := s.storyViews(ctx, []Story{story}, viewerID)
	if err != nil {
		return nil, err
	}

	var comments []Comment
	if err := s.db.WithContext(ctx).
		Where("story_id = ?", storyID).
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("stories: comments: %w", err)
	}
	commentViews, err := s.commentViews(ctx, comments, viewerID)
	if err != nil {
		return nil, err
	}

	return &StoryDetail{Story: storyView[0], Comments: commentViews}, nil
}

// UpvoteStory atomically increments the story's upvote counter and returns
// the new tally.
func (s *Service) UpvoteStory(ctx context.Context, storyID string) (int64, error) {
	return s.upvote(ctx, &Story{}, storyID)
}

// UpvoteComment atomically increments the comment's upvote counter and
// returns the new tally.
func (s *Service) UpvoteComment(ctx context.Context, commentID string) (int64, error) {
	return s.upvote(ctx, &Comment{}, commentID)
}

func (s *Service) upvote(ctx context.Context, model interface{}, itemID string) (int64, error) {
	var upvotes int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(model).
			Where("id = ?", itemID).
			UpdateColumn("upvotes", gorm.Expr("upvotes + 1"))
		if result.Error != nil {
			return fmt.Errorf("stories: upvote: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(model).Where("id = ?", itemID).Select("upvotes").Scan(&upvotes).Error
	})
	if err != nil {
		return 0, err
	}
	return upvotes, nil
}

// ReactToStory records the caller's reaction on a story and returns the
// refreshed aggregate counts.
func (s *Service) ReactToStory(ctx context.Context, storyID, userID string, value ReactionValue) (ReactionCounts, error) {
	return s.react(ctx, ItemStory, storyID, userID, value)
}

// ReactToComment records the caller's reaction on a comment and returns the
// refreshed aggregate counts.
func (s *Service) ReactToComment(ctx context.Context, commentID, userID string, value ReactionValue) (ReactionCounts, error) {
	return s.react(ctx, ItemComment, commentID, userID, value)
}

// react moves the caller's reaction for the item from its current value to
// the requested one inside a single transaction, adjusting the aggregate
// buckets in the same step. Repeating the current value is a no-op, so rapid
// duplicate requests cannot double-count.
func (s *Service) react(ctx context.Context, kind ItemKind, itemID, userID string, value ReactionValue) (ReactionCounts, error) {
	model := itemModel(kind)

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Reaction
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("item_kind = ? AND item_id = ? AND user_id = ?", kind, itemID, userID).
			Take(&existing).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := adjustBucket(tx, model, itemID, reactionColumn(value), +1); err != nil {
				return err
			}
			return tx.Create(&Reaction{
				ItemKind:  kind,
				ItemID:    itemID,
				UserID:    userID,
				Value:     string(value),
				UpdatedAt: s.clock().UTC(),
			}).Error
		case err != nil:
			return fmt.Errorf("stories: reaction lookup: %w", err)
		case existing.Value == string(value):
			// Idempotent repeat.
			return nil
		default:
			if err := adjustBucket(tx, model, itemID, reactionColumn(ReactionValue(existing.Value)), -1); err != nil {
				return err
			}
			if err := adjustBucket(tx, model, itemID, reactionColumn(value), +1); err != nil {
				return err
			}
			return tx.Model(&Reaction{}).
				Where("item_kind = ? AND item_id = ? AND user_id = ?", kind, itemID, userID).
				Update("value", string(value)).Error
		}
	})
	if txErr != nil {
		return ReactionCounts{}, txErr
	}

	return s.reactionCounts(ctx, kind, itemID)
}

// ShareStory tallies a share on the given platform and returns the refreshed
// share counts. The increment is a single atomic update.
func (s *Service) ShareStory(ctx context.Context, storyID string, platform SharePlatform) (ShareCounts, error) {
	column := shareColumn(platform)
	result := s.db.WithContext(ctx).Model(&Story{}).
		Where("id = ?", storyID).
		UpdateColumn(column, gorm.Expr(column + " + 1"))
	if result.Error != nil {
		return ShareCounts{}, fmt.Errorf("stories: share: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ShareCounts{}, ErrNotFound
	}

	var story Story
	if err := s.db.WithContext(ctx).Where("id = ?", storyID).Take(&story).Error; err != nil {
		return ShareCounts{}, fmt.Errorf("stories: share readback: %w", err)
	}
	return story.Shares, nil
}

// adjustBucket moves one aggregate counter column by one, flooring decrements
// at zero. The column name always comes from a validated enum.
func adjustBucket(tx *gorm.DB, model interface{}, itemID, column string, delta int) error {
	var expr clause.Expr
	if delta > 0 {
		expr = gorm.Expr(column + " + 1")
	} else {
		expr = gorm.Expr("CASE WHEN " + column + " > 0 THEN " + column + " - 1 ELSE 0 END")
	}
	result := tx.Model(model).Where("id = ?", itemID).UpdateColumn(column, expr)
	if result.Error != nil {
		return fmt.Errorf("stories: counter update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) reactionCounts(ctx context.Context, kind ItemKind, itemID string) (ReactionCounts, error) {
	if kind == ItemComment {
		var comment Comment
		if err := s.db.WithContext(ctx).Where("id = ?", itemID).Take(&comment).Error; err != nil {
			return ReactionCounts{}, fmt.Errorf("stories: counts readback: %w", err)
		}
		return comment.Reactions, nil
	}
	var story Story
	if err := s.db.WithContext(ctx).Where("id = ?", itemID).Take(&story).Error; err != nil {
		return ReactionCounts{}, fmt.Errorf("stories: counts readback: %w", err)
	}
	return story.Reactions, nil
}

func itemModel(kind ItemKind) interface{} {
	if kind == ItemComment {
		return &Comment{}
	}
	return &Story{}
}

func reactionColumn(value ReactionValue) string {
	return "reactions_" + string(value)
}

func shareColumn(platform SharePlatform) string {
	return "shares_" + string(platform)
}

func (s *Service) storyViews(ctx context.Context, items []Story, viewerID string) ([]StoryView, error) {
	views := make([]StoryView, 0, len(items))
	if len(items) == 0 {
		return views, nil
	}

	ids := make([]string, 0, len(items))
	ownerIDs := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
		ownerIDs = append(ownerIDs, item.UserID)
	}

	authors, err := s.authorsByID(ctx, ownerIDs)
	if err != nil {
		return nil, err
	}
	mine, err := s.viewerReactions(ctx, ItemStory, ids, viewerID)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		view := StoryView{Story: item, MyReaction: mine[item.ID]}
		if author, ok := authors[item.UserID]; ok {
			view.Author = &author
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *Service) commentViews(ctx context.Context, items []Comment, viewerID string) ([]CommentView, error) {
	views := make([]CommentView, 0, len(items))
	if len(items) == 0 {
		return views, nil
	}

	ids := make([]string, 0, len(items))
	ownerIDs := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
		ownerIDs = append(ownerIDs, item.UserID)
	}

	authors, err := s.authorsByID(ctx, ownerIDs)
	if err != nil {
		return nil, err
	}
	mine, err := s.viewerReactions(ctx, ItemComment, ids, viewerID)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		view := CommentView{Comment: item, MyReaction: mine[item.ID]}
		if author, ok := authors[item.UserID]; ok {
			view.Author = &author
		}
		views = append(views, view)
	}
	return views, nil
}

// authorsByID projects owning users down to their public fields.
func (s *Service) authorsByID(ctx context.Context, ownerIDs []string) (map[string]Author, error) {
	var owners []users.User
	if err := s.db.WithContext(ctx).
		Where("id IN ?", ownerIDs).
		Find(&owners).Error; err != nil {
		return nil, fmt.Errorf("stories: author lookup: %w", err)
	}
	authors := make(map[string]Author, len(owners))
	for _, owner := range owners {
		authors[owner.ID] = Author{ID: owner.ID, Name: owner.Name, Demographic: owner.Demographic}
	}
	return authors, nil
}

// viewerReactions returns the caller's own reaction per item id. Only the
// caller's rows are read; other users' reactions are never surfaced.
func (s *Service) viewerReactions(ctx context.Context, kind ItemKind, itemIDs []string, viewerID string) (map[string]string, error) {
	mine := make(map[string]string, len(itemIDs))
	if viewerID == "" {
		return mine, nil
	}
	var rows []Reaction
	if err := s.db.WithContext(ctx).
		Where("item_kind = ? AND user_id = ? AND item_id IN ?", kind, viewerID, itemIDs).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("stories: viewer reactions: %w", err)
	}
	for _, row := range rows {
		mine[row.ItemID] = row.Value
	}
	return mine, nil
}
