package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-discussion-engine/internal/domain"
)

// NotifyOnce files a notification unless one already exists for the
// (recipient, post, kind) triple. It reports whether a row was inserted.
//
// The insert uses ON CONFLICT DO NOTHING against the unique index, so a
// concurrent duplicate neither errors nor aborts an enclosing Postgres
// transaction; it simply affects zero rows.
func NotifyOnce(ctx context.Context, db *gorm.DB, recipientID, postID string, kind domain.NotificationKind, message string) (bool, error) {
	n := &domain.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		PostID:      postID,
		Kind:        kind,
		Message:     message,
		CreatedAt:   time.Now().UTC(),
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "recipient_id"}, {Name: "post_id"}, {Name: "kind"}},
			DoNothing: true,
		}).
		Create(n)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// NotificationExists reports whether a notification for the triple exists.
func NotificationExists(ctx context.Context, db *gorm.DB, recipientID, postID string, kind domain.NotificationKind) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("recipient_id = ? AND post_id = ? AND kind = ?", recipientID, postID, kind).
		Limit(1).
		Count(&n).Error
	return n > 0, err
}

func inbox(ctx context.Context, db *gorm.DB, recipientID string, unreadOnly bool) *gorm.DB {
	q := db.WithContext(ctx).Model(&domain.Notification{}).Where("recipient_id = ?", recipientID)
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	return q
}

// ListNotificationsPage returns a page of a recipient's notifications,
// newest first.
func ListNotificationsPage(ctx context.Context, db *gorm.DB, recipientID string, unreadOnly bool, offset, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	err := inbox(ctx, db, recipientID, unreadOnly).
		Order("created_at DESC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountNotifications returns the number of notifications in a recipient's
// inbox, optionally only the unread ones.
func CountNotifications(ctx context.Context, db *gorm.DB, recipientID string, unreadOnly bool) (int64, error) {
	var total int64
	err := inbox(ctx, db, recipientID, unreadOnly).Count(&total).Error
	return total, err
}

// MarkNotificationRead flags a notification owned by recipientID as read.
// It returns ErrNotFound when the notification is missing or not owned.
func MarkNotificationRead(ctx context.Context, db *gorm.DB, recipientID, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
