// Package services – NotificationService
//
// NotificationService exposes a user's inbox and the NotifyOnce gate used
// by other components. Notifications are unique per (recipient, post, kind);
// filing the same triple twice is a silent no-op.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-discussion-engine/internal/domain"
	"github.com/tbourn/go-discussion-engine/internal/repo"
)

// NotificationService implements inbox use-cases.
type NotificationService struct {
	DB *gorm.DB
}

// NotifyOnce files a notification unless the (recipient, post, kind)
// triple already exists, and reports whether it inserted one.
func (s *NotificationService) NotifyOnce(ctx context.Context, recipientID, postID string, kind domain.NotificationKind, msg string) (bool, error) {
	if strings.TrimSpace(recipientID) == "" {
		return false, ErrUnauthorized
	}
	ok, err := repo.NotifyOnce(ctx, s.DB, recipientID, postID, kind, msg)
	if err != nil {
		return false, storageErr(err)
	}
	return ok, nil
}

// Exists reports whether a notification for the triple exists.
func (s *NotificationService) Exists(ctx context.Context, recipientID, postID string, kind domain.NotificationKind) (bool, error) {
	ok, err := repo.NotificationExists(ctx, s.DB, recipientID, postID, kind)
	if err != nil {
		return false, storageErr(err)
	}
	return ok, nil
}

// ListPage returns a page of the recipient's notifications, newest first,
// together with the total for pagination.
func (s *NotificationService) ListPage(ctx context.Context, recipientID string, unreadOnly bool, page, pageSize int) ([]domain.Notification, int64, error) {
	if strings.TrimSpace(recipientID) == "" {
		return nil, 0, ErrUnauthorized
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountNotifications(ctx, s.DB, recipientID, unreadOnly)
	if err != nil {
		return nil, 0, storageErr(err)
	}
	if total == 0 {
		return []domain.Notification{}, 0, nil
	}
	items, err := repo.ListNotificationsPage(ctx, s.DB, recipientID, unreadOnly, offset, pageSize)
	if err != nil {
		return nil, 0, storageErr(err)
	}
	return items, total, nil
}

// UnreadCount returns the number of unread notifications.
func (s *NotificationService) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	n, err := repo.CountNotifications(ctx, s.DB, recipientID, true)
	if err != nil {
		return 0, storageErr(err)
	}
	return n, nil
}

// MarkRead flags a notification of recipientID as read.
func (s *NotificationService) MarkRead(ctx context.Context, recipientID, id string) error {
	if strings.TrimSpace(recipientID) == "" {
		return ErrUnauthorized
	}
	if err := repo.MarkNotificationRead(ctx, s.DB, recipientID, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotificationNotFound
		}
		return storageErr(err)
	}
	return nil
}
