package stories

import (
	"errors"
	"time"
)

// ReactionValue is one of the six mutually exclusive sentiments a user can
// attach to a story or comment. A user holds at most one per item.
type ReactionValue string

const (
	ReactionLike  ReactionValue = "like"
	ReactionLove  ReactionValue = "love"
	ReactionLaugh ReactionValue = "laugh"
	ReactionWow   ReactionValue = "wow"
	ReactionSad   ReactionValue = "sad"
	ReactionAngry ReactionValue = "angry"
)

// ErrInvalidReaction indicates a reaction outside the fixed value set.
var ErrInvalidReaction = errors.New("stories: invalid reaction")

// ParseReaction validates a raw reaction value.
func ParseReaction(raw string) (ReactionValue, error) {
	switch ReactionValue(raw) {
	case ReactionLike, ReactionLove, ReactionLaugh, ReactionWow, ReactionSad, ReactionAngry:
		return ReactionValue(raw), nil
	default:
		return "", ErrInvalidReaction
	}
}

// SharePlatform is one of the fixed share targets tallied per story.
type SharePlatform string

const (
	ShareWhatsapp  SharePlatform = "whatsapp"
	ShareTelegram  SharePlatform = "telegram"
	ShareInstagram SharePlatform = "instagram"
	ShareCopy      SharePlatform = "copy"
)

// ErrInvalidPlatform indicates a share platform outside the fixed set.
var ErrInvalidPlatform = errors.New("stories: invalid share platform")

// ParsePlatform validates a raw share platform.
func ParsePlatform(raw string) (SharePlatform, error) {
	switch SharePlatform(raw) {
	case ShareWhatsapp, ShareTelegram, ShareInstagram, ShareCopy:
		return SharePlatform(raw), nil
	default:
		return "", ErrInvalidPlatform
	}
}

// ReactionCounts are the aggregate per-sentiment tallies stored on the item
// row. Only aggregates are ever exposed; individual reactions stay private.
type ReactionCounts struct {
	Like  int64 `gorm:"column:reactions_like;not null;default:0" json:"like"`
	Love  int64 `gorm:"column:reactions_love;not null;default:0" json:"love"`
	Laugh int64 `gorm:"column:reactions_laugh;not null;default:0" json:"laugh"`
	Wow   int64 `gorm:"column:reactions_wow;not null;default:0" json:"wow"`
	Sad   int64 `gorm:"column:reactions_sad;not null;default:0" json:"sad"`
	Angry int64 `gorm:"column:reactions_angry;not null;default:0" json:"angry"`
}

// Total sums all sentiment buckets.
func (c ReactionCounts) Total() int64 {
	return c.Like + c.Love + c.Laugh + c.Wow + c.Sad + c.Angry
}

// ShareCounts are the per-platform share tallies stored on the story row.
type ShareCounts struct {
	Whatsapp  int64 `gorm:"column:shares_whatsapp;not null;default:0" json:"whatsapp"`
	Telegram  int64 `gorm:"column:shares_telegram;not null;default:0" json:"telegram"`
	Instagram int64 `gorm:"column:shares_instagram;not null;default:0" json:"instagram"`
	Copy      int64 `gorm:"column:shares_copy;not null;default:0" json:"copy"`
}

// Story is a community-submitted scam report. The raw text is retained for
// moderation but is write-only at the schema level; every read path sees only
// the redacted text.
type Story struct {
	ID           string         `gorm:"column:id;primaryKey;size:36;not null" json:"id"`
	UserID       string         `gorm:"column:user_id;size:36;not null;index" json:"userId"`
	TextOriginal string         `gorm:"column:text_original;type:text;not null;->:false" json:"-"`
	TextRedacted string         `gorm:"column:text_redacted;type:text;not null" json:"textRedacted"`
	Tags         []string       `gorm:"column:tags;type:text;serializer:json" json:"tags"`
	CreatedAt    time.Time      `gorm:"column:created_at;not null;index" json:"createdAt"`
	Upvotes      int64          `gorm:"column:upvotes;not null;default:0" json:"upvotes"`
	Reactions    ReactionCounts `gorm:"embedded" json:"reactions"`
	Shares       ShareCounts    `gorm:"embedded" json:"shares"`
}

// TableName provides the explicit table binding for GORM.
func (Story) TableName() string {
	return "stories"
}

// Comment is a reply on a story. Same redaction rules as stories, no tags and
// no share tallies.
type Comment struct {
	ID           string         `gorm:"column:id;primaryKey;size:36;not null" json:"id"`
	StoryID      string         `gorm:"column:story_id;size:36;not null;index" json:"storyId"`
	UserID       string         `gorm:"column:user_id;size:36;not null;index" json:"userId"`
	TextOriginal string         `gorm:"column:text_original;type:text;not null;->:false" json:"-"`
	TextRedacted string         `gorm:"column:text_redacted;type:text;not null" json:"textRedacted"`
	CreatedAt    time.Time      `gorm:"column:created_at;not null" json:"createdAt"`
	Upvotes      int64          `gorm:"column:upvotes;not null;default:0" json:"upvotes"`
	Reactions    ReactionCounts `gorm:"embedded" json:"reactions"`
}

// TableName provides the explicit table binding for GORM.
func (Comment) TableName() string {
	return "comments"
}

// ItemKind distinguishes the two reactable item types.
type ItemKind string

const (
	ItemStory   ItemKind = "story"
	ItemComment ItemKind = "comment"
)

// Reaction is one user's current sentiment on one item. The composite primary
// key keeps each user to at most one reaction per item in the schema itself.
type Reaction struct {
	ItemKind  ItemKind  `gorm:"column:item_kind;primaryKey;size:16;not null"`
	ItemID    string    `gorm:"column:item_id;primaryKey;size:36;not null"`
	UserID    string    `gorm:"column:user_id;primaryKey;size:36;not null"`
	Value     string    `gorm:"column:value;size:16;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Reaction) TableName() string {
	return "reactions"
}

// Author is the public projection of a story or comment owner.
type Author struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Demographic string `json:"demographic"`
}

// StoryView is a story as seen by one caller: aggregate counts, the owning
// author's public fields, and the caller's own reaction if any.
type StoryView struct {
	Story
	Author     *Author `json:"author,omitempty"`
	MyReaction string  `json:"myReaction,omitempty"`
}

// CommentView mirrors StoryView for comments.
type CommentView struct {
	Comment
	Author     *Author `json:"author,omitempty"`
	MyReaction string  `json:"myReaction,omitempty"`
}

// StoryDetail is a single story with its comment thread.
type StoryDetail struct {
	Story    StoryView     `json:"story"`
	Comments []CommentView `json:"comments"`
}
