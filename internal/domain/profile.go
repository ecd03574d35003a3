package domain

import "time"

// Profile is the account state this engine mutates when granting rewards.
// It is owned by the account/billing side of the application; the engine
// only ever moves it forward through a reward transition.
type Profile struct {
	UserID                string     `json:"user_id"                gorm:"type:varchar(64);primaryKey"`
	Premium               bool       `json:"premium"                gorm:"not null;default:false"`
	PremiumExpiresAt      *time.Time `json:"premium_expires_at,omitempty"`
	SubscriptionCancelled bool       `json:"subscription_cancelled" gorm:"not null;default:false"`
	BankedMonths          int        `json:"banked_months"          gorm:"not null;default:0;check:banked_months >= 0"`
	Karma                 int        `json:"karma"                  gorm:"not null;default:0;check:karma >= 0"`
	Badge                 string     `json:"badge,omitempty"        gorm:"type:varchar(32)"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }

// RewardGrant is the audit trail of every reward transition applied to a
// profile, one row per rewarded (user, post).
type RewardGrant struct {
	ID         string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID     string    `json:"user_id"    gorm:"type:varchar(64);not null;index"`
	PostID     string    `json:"post_id"    gorm:"type:char(36);not null;index"`
	Transition string    `json:"transition" gorm:"type:varchar(32);not null"`
	Amount     int       `json:"amount"     gorm:"not null;default:0"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for RewardGrant.
func (RewardGrant) TableName() string { return "reward_grants" }
