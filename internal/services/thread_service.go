// Package services – ThreadService
//
// ThreadService manages discussions and the post tree inside them. Posts
// are stored flat with a nullable parent id; Thread reads every post of a
// discussion once and links children to parents through an id index, so
// nesting depth never turns into recursion or repeated queries.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-discussion-engine/internal/domain"
	"github.com/tbourn/go-discussion-engine/internal/repo"
)

// maxTitleRunes matches the width of discussions.title.
const maxTitleRunes = 255

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// ThreadNode is a post with its direct replies.
type ThreadNode struct {
	Post    domain.Post   `json:"post"`
	HTML    string        `json:"html,omitempty"`
	Replies []*ThreadNode `json:"replies"`
}

// Thread is the post forest of a discussion, roots and replies ordered by
// creation time.
type Thread struct {
	Discussion domain.Discussion `json:"discussion"`
	Posts      int               `json:"posts"`
	Roots      []*ThreadNode     `json:"roots"`
}

// ThreadService implements discussion and post use-cases.
type ThreadService struct {
	DB *gorm.DB

	// MaxPostRunes caps post length (0 = unlimited).
	MaxPostRunes int

	// Render converts post content to HTML; nil leaves HTML empty.
	Render func(string) string

	// Messages renders reply notifications; nil disables them.
	Messages *Messages
}

// CreateDiscussion opens a new discussion. Authoring is normally done by
// an external collaborator; this is the seam it uses.
func (s *ThreadService) CreateDiscussion(ctx context.Context, title string, premium bool, roundEndsAt *time.Time) (*domain.Discussion, error) {
	title = normalizeTitle(title)
	if title == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(title) > maxTitleRunes {
		title = string([]rune(title)[:maxTitleRunes])
	}
	d, err := repo.CreateDiscussion(ctx, s.DB, title, premium, roundEndsAt)
	if err != nil {
		return nil, storageErr(err)
	}
	return d, nil
}

// GetDiscussion returns a live discussion or ErrDiscussionNotFound.
func (s *ThreadService) GetDiscussion(ctx context.Context, id string) (*domain.Discussion, error) {
	d, err := repo.GetDiscussion(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrDiscussionNotFound
		}
		return nil, storageErr(err)
	}
	return d, nil
}

// CreatePost adds a post (or a reply when parentID is set) to a live
// discussion. The parent must be a post of the same discussion. The
// parent's author gets a reply notification unless replying to themselves.
func (s *ThreadService) CreatePost(ctx context.Context, discussionID, authorID string, parentID *string, content string) (*domain.Post, error) {
	tr := otel.Tracer("services/ThreadService")
	ctx, span := tr.Start(ctx, "CreatePost",
		trace.WithAttributes(
			attribute.String("discussion.id", discussionID),
			attribute.String("author.id", authorID),
		),
	)
	defer span.End()

	authorID = strings.TrimSpace(authorID)
	if authorID == "" {
		return nil, ErrUnauthorized
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if s.MaxPostRunes > 0 && utf8.RuneCountInString(content) > s.MaxPostRunes {
		return nil, ErrContentTooLong
	}
	if parentID != nil && strings.TrimSpace(*parentID) == "" {
		parentID = nil
	}

	var created *domain.Post
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		disc, err := repo.GetDiscussion(ctx, tx, discussionID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrDiscussionNotFound
			}
			return err
		}

		var parent *domain.Post
		if parentID != nil {
			parent, err = repo.GetPost(ctx, tx, *parentID)
			if errors.Is(err, repo.ErrNotFound) || (err == nil && parent.DiscussionID != discussionID) {
				return ErrInvalidParent
			}
			if err != nil {
				return err
			}
		}

		created, err = repo.CreatePost(ctx, tx, discussionID, authorID, parentID, content)
		if err != nil {
			return err
		}

		if parent != nil && parent.AuthorID != authorID && s.Messages != nil {
			if _, err := repo.NotifyOnce(ctx, tx, parent.AuthorID, created.ID, domain.NotificationReply, s.Messages.Reply(disc.Title)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isServiceErr(err) {
			return nil, err
		}
		return nil, storageErr(err)
	}
	return created, nil
}

// SetHidden sets the moderation flag of a post. Hidden posts keep their
// place in the thread but drop out of rankings and cannot be voted on.
func (s *ThreadService) SetHidden(ctx context.Context, postID string, hidden bool) error {
	if err := repo.SetPostHidden(ctx, s.DB, postID, hidden); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrPostNotFound
		}
		return storageErr(err)
	}
	return nil
}

// CloseDiscussion deactivates a discussion. Every later lookup reports it as
// not found.
func (s *ThreadService) CloseDiscussion(ctx context.Context, id string) error {
	if err := repo.DeactivateDiscussion(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrDiscussionNotFound
		}
		return storageErr(err)
	}
	return nil
}

// Thread returns the post forest of a discussion for viewerID. Premium
// discussions require an active premium profile. Hidden posts stay in place
// with their content blanked so their replies remain attached.
func (s *ThreadService) Thread(ctx context.Context, discussionID, viewerID string) (*Thread, error) {
	tr := otel.Tracer("services/ThreadService")
	ctx, span := tr.Start(ctx, "Thread",
		trace.WithAttributes(attribute.String("discussion.id", discussionID)),
	)
	defer span.End()

	disc, err := s.GetDiscussion(ctx, discussionID)
	if err != nil {
		return nil, err
	}
	if disc.Premium {
		if strings.TrimSpace(viewerID) == "" {
			return nil, ErrPremiumRequired
		}
		prof, err := repo.GetProfile(ctx, s.DB, viewerID)
		if err != nil {
			return nil, storageErr(err)
		}
		if StateOf(prof, nowUTC()) == StateNotPremium {
			return nil, ErrPremiumRequired
		}
	}

	posts, err := repo.ListPosts(ctx, s.DB, discussionID)
	if err != nil {
		return nil, storageErr(err)
	}
	span.SetAttributes(attribute.Int("thread.posts", len(posts)))

	return &Thread{
		Discussion: *disc,
		Posts:      len(posts),
		Roots:      s.buildForest(posts),
	}, nil
}

// buildForest links posts (ordered oldest first) into a forest. Nodes live
// in one slice; parents are found through an id index. A post whose parent
// is missing is promoted to a root.
func (s *ThreadService) buildForest(posts []domain.Post) []*ThreadNode {
	nodes := make([]ThreadNode, len(posts))
	index := make(map[string]int, len(posts))
	for i, p := range posts {
		if p.Hidden {
			p.Content = ""
		}
		nodes[i] = ThreadNode{Post: p, Replies: []*ThreadNode{}}
		if !p.Hidden && s.Render != nil {
			nodes[i].HTML = s.Render(p.Content)
		}
		index[p.ID] = i
	}

	roots := make([]*ThreadNode, 0)
	for i := range nodes {
		pid := nodes[i].Post.ParentID
		if pid != nil {
			if j, ok := index[*pid]; ok && j != i {
				nodes[j].Replies = append(nodes[j].Replies, &nodes[i])
				continue
			}
		}
		roots = append(roots, &nodes[i])
	}
	return roots
}

// isServiceErr reports whether err is one of this package's sentinels and
// can be returned as-is.
func isServiceErr(err error) bool {
	for _, target := range []error{
		ErrPostNotFound, ErrDiscussionNotFound, ErrUnauthorized, ErrInvalidVoteType,
		ErrInvalidParent, ErrEmptyContent, ErrContentTooLong, ErrNotificationNotFound,
		ErrPremiumRequired, ErrStorage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
