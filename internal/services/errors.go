// Package services defines the business logic for posts, votes, rankings,
// rewards, and notifications. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrPostNotFound indicates that the post does not exist, is hidden, or
	// belongs to a discussion that is closed or deleted.
	ErrPostNotFound = errors.New("post not found")

	// ErrDiscussionNotFound indicates that the discussion does not exist, is
	// inactive, or was deleted.
	ErrDiscussionNotFound = errors.New("discussion not found")

	// ErrUnauthorized is returned when an operation requires an authenticated
	// identity and none was supplied.
	ErrUnauthorized = errors.New("authenticated user required")

	// ErrInvalidVoteType is returned for vote types other than like/dislike.
	ErrInvalidVoteType = errors.New("vote type must be like or dislike")

	// ErrInvalidParent is returned when a reply targets a post that is
	// missing or belongs to another discussion.
	ErrInvalidParent = errors.New("parent post not found in this discussion")

	// ErrEmptyContent is returned when a post has no content.
	ErrEmptyContent = errors.New("content is empty")

	// ErrContentTooLong is returned when a post exceeds the configured
	// maximum length.
	ErrContentTooLong = errors.New("content too long")

	// ErrNotificationNotFound indicates that the notification does not exist
	// or is not addressed to the current user.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrPremiumRequired is returned when a non-premium user reads a
	// premium discussion.
	ErrPremiumRequired = errors.New("premium membership required")

	// ErrStorage wraps transport or transaction failures. The operation was
	// not applied and may be retried.
	ErrStorage = errors.New("storage failure")
)

// storageErr wraps err as ErrStorage, keeping the cause in the message.
func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorage, err)
}
