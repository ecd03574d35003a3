package domain

import "time"

// Idempotency remembers the tally a vote request produced so a retry with
// the same Idempotency-Key replays it instead of toggling again. ScopeID is
// the voted post; a key is unique per (user, post).
type Idempotency struct {
	ID      string `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID  string `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_idem_user_post_key,priority:1"`
	ScopeID string `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_idem_user_post_key,priority:2"`
	Key     string `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_idem_user_post_key,priority:3"`

	// Replayed response.
	Likes    int `gorm:"type:INTEGER NOT NULL"`
	Dislikes int `gorm:"type:INTEGER NOT NULL"`
	Status   int `gorm:"type:INTEGER NOT NULL"`

	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

func (Idempotency) TableName() string { return "idempotency" }
