// Package domain defines the persistence models for discussions, posts,
// votes, and notifications. These types are mapped with GORM and form the
// core data layer of the discussion engagement engine.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Discussion is a topic container holding a tree of posts. Authoring and
// moderation of discussions happen outside this module; the engine only
// reads the premium flag and the voting round deadline.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Title: display title used in notification messages.
//   - Active: false once moderation closes the discussion.
//   - Premium: gates access; premium discussions never grant account rewards.
//   - RoundEndsAt: optional voting round deadline.
//   - DeletedAt: soft deletion marker (purge happens externally).
type Discussion struct {
	ID          string         `json:"id"            gorm:"type:char(36);primaryKey"`
	Title       string         `json:"title"         gorm:"type:varchar(255);not null"`
	Active      bool           `json:"active"        gorm:"not null;default:true"`
	Premium     bool           `json:"premium"       gorm:"not null;default:false"`
	RoundEndsAt *time.Time     `json:"round_ends_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"             gorm:"index"`
}

// TableName returns the database table name for Discussion.
func (Discussion) TableName() string { return "discussions" }

// RoundOpen reports whether the voting round is still running at now.
// A discussion without a deadline is always open.
func (d Discussion) RoundOpen(now time.Time) bool {
	return d.RoundEndsAt == nil || now.Before(*d.RoundEndsAt)
}

// RewardEligible reports whether posts reaching the top of this discussion
// may earn account rewards (premium time or karma).
func (d Discussion) RewardEligible(now time.Time) bool {
	return !d.Premium && d.RoundOpen(now)
}

// Post is a single contribution within a discussion, optionally a reply to
// another post of the same discussion. Posts form a forest through ParentID.
//
// LikeCount and DislikeCount are derived from the vote ledger and written
// only by the tally step of a vote.
type Post struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	DiscussionID string    `json:"discussion_id" gorm:"type:char(36);not null;index:idx_discussion_rank,priority:1"`
	ParentID     *string   `json:"parent_id,omitempty" gorm:"type:char(36);index"`
	AuthorID     string    `json:"author_id"     gorm:"type:varchar(64);not null;index"`
	Content      string    `json:"content"       gorm:"type:text;not null"`
	LikeCount    int       `json:"likes"         gorm:"not null;default:0;index:idx_discussion_rank,priority:2"`
	DislikeCount int       `json:"dislikes"      gorm:"not null;default:0"`
	Hidden       bool      `json:"hidden"        gorm:"not null;default:false"`
	CreatedAt    time.Time `json:"created_at"    gorm:"index:idx_discussion_rank,priority:3"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Discussion is the owning topic. Posts are cascade-deleted with it.
	Discussion Discussion `json:"-" gorm:"foreignKey:DiscussionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Post.
func (Post) TableName() string { return "posts" }

// VoteType is the kind of reaction a voter casts on a post.
type VoteType string

const (
	VoteLike    VoteType = "like"
	VoteDislike VoteType = "dislike"
)

// Valid reports whether t is one of the known vote types.
func (t VoteType) Valid() bool {
	return t == VoteLike || t == VoteDislike
}

// Vote records that a voter cast a reaction on a post. At most one row
// exists per (post_id, voter_id); changing the reaction updates the row in
// place and retracting it deletes the row.
type Vote struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	PostID    string    `json:"post_id"    gorm:"type:char(36);not null;uniqueIndex:ux_vote_post_voter,priority:1;index:idx_vote_post_type,priority:1"`
	VoterID   string    `json:"voter_id"   gorm:"type:varchar(64);not null;uniqueIndex:ux_vote_post_voter,priority:2"`
	Type      VoteType  `json:"type"       gorm:"type:varchar(16);not null;check:type IN ('like','dislike');index:idx_vote_post_type,priority:2"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Post is the voted-on post. Votes are cascade-deleted with it.
	Post Post `json:"-" gorm:"foreignKey:PostID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Vote.
func (Vote) TableName() string { return "votes" }

// NotificationKind is the closed set of notification categories.
type NotificationKind string

const (
	NotificationTop5           NotificationKind = "top5"
	NotificationPremiumGranted NotificationKind = "premium_granted"
	NotificationPremiumBanked  NotificationKind = "premium_banked"
	NotificationKarmaBonus     NotificationKind = "karma_bonus"
	NotificationReply          NotificationKind = "reply"
	NotificationSystem         NotificationKind = "system"
)

// Notification is a message filed for a recipient about a related post.
// The unique index on (recipient_id, post_id, kind) is the idempotency gate
// that keeps rewards from being granted twice.
type Notification struct {
	ID          string           `json:"id"           gorm:"type:char(36);primaryKey"`
	RecipientID string           `json:"recipient_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_notification_recipient_post_kind,priority:1;index:idx_notification_inbox,priority:1"`
	PostID      string           `json:"post_id"      gorm:"type:char(36);not null;uniqueIndex:ux_notification_recipient_post_kind,priority:2"`
	Kind        NotificationKind `json:"kind"         gorm:"type:varchar(32);not null;uniqueIndex:ux_notification_recipient_post_kind,priority:3"`
	Message     string           `json:"message"      gorm:"type:text;not null"`
	Read        bool             `json:"read"         gorm:"not null;default:false"`
	CreatedAt   time.Time        `json:"created_at"   gorm:"index:idx_notification_inbox,priority:2"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }
