package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-discussion-engine/internal/domain"
	"github.com/tbourn/go-discussion-engine/internal/http/middleware"
	"github.com/tbourn/go-discussion-engine/internal/services"
)

// ---------- service stubs ----------

type stubVotes struct {
	calls int
	cast  func(ctx context.Context, postID, voterID string, t domain.VoteType) (*services.VoteResult, error)
}

func (s *stubVotes) CastVote(ctx context.Context, postID, voterID string, t domain.VoteType) (*services.VoteResult, error) {
	s.calls++
	if s.cast != nil {
		return s.cast(ctx, postID, voterID, t)
	}
	return &services.VoteResult{PostID: postID, Tally: services.Tally{Likes: 1}, Outcome: services.VoteCreated}, nil
}

type stubThreads struct {
	createDiscussion func(ctx context.Context, title string, premium bool, roundEndsAt *time.Time) (*domain.Discussion, error)
	getDiscussion    func(ctx context.Context, id string) (*domain.Discussion, error)
	createPost       func(ctx context.Context, discussionID, authorID string, parentID *string, content string) (*domain.Post, error)
	setHidden        func(ctx context.Context, postID string, hidden bool) error
	closeDiscussion  func(ctx context.Context, id string) error
	thread           func(ctx context.Context, discussionID, viewerID string) (*services.Thread, error)
}

func (s *stubThreads) CreateDiscussion(ctx context.Context, title string, premium bool, roundEndsAt *time.Time) (*domain.Discussion, error) {
	if s.createDiscussion != nil {
		return s.createDiscussion(ctx, title, premium, roundEndsAt)
	}
	return &domain.Discussion{ID: "d", Title: title, Premium: premium, Active: true}, nil
}

func (s *stubThreads) GetDiscussion(ctx context.Context, id string) (*domain.Discussion, error) {
	if s.getDiscussion != nil {
		return s.getDiscussion(ctx, id)
	}
	return &domain.Discussion{ID: id, Title: "t", Active: true}, nil
}

func (s *stubThreads) CreatePost(ctx context.Context, discussionID, authorID string, parentID *string, content string) (*domain.Post, error) {
	if s.createPost != nil {
		return s.createPost(ctx, discussionID, authorID, parentID, content)
	}
	return &domain.Post{ID: "p", DiscussionID: discussionID, AuthorID: authorID, ParentID: parentID, Content: content}, nil
}

func (s *stubThreads) SetHidden(ctx context.Context, postID string, hidden bool) error {
	if s.setHidden != nil {
		return s.setHidden(ctx, postID, hidden)
	}
	return nil
}

func (s *stubThreads) CloseDiscussion(ctx context.Context, id string) error {
	if s.closeDiscussion != nil {
		return s.closeDiscussion(ctx, id)
	}
	return nil
}

func (s *stubThreads) Thread(ctx context.Context, discussionID, viewerID string) (*services.Thread, error) {
	if s.thread != nil {
		return s.thread(ctx, discussionID, viewerID)
	}
	return &services.Thread{Discussion: domain.Discussion{ID: discussionID}, Roots: []*services.ThreadNode{}}, nil
}

type stubRanking struct {
	topCalls int
	top      func(ctx context.Context, discussionID string, n int) ([]services.PostSummary, error)
	rankOf   func(ctx context.Context, discussionID, postID string) (*int, error)
	stats    func(ctx context.Context, discussionID string) (int64, *time.Time, error)
}

func (s *stubRanking) TopN(ctx context.Context, discussionID string, n int) ([]services.PostSummary, error) {
	s.topCalls++
	if s.top != nil {
		return s.top(ctx, discussionID, n)
	}
	return []services.PostSummary{}, nil
}

func (s *stubRanking) RankOf(ctx context.Context, discussionID, postID string) (*int, error) {
	if s.rankOf != nil {
		return s.rankOf(ctx, discussionID, postID)
	}
	return nil, nil
}

func (s *stubRanking) Stats(ctx context.Context, discussionID string) (int64, *time.Time, error) {
	if s.stats != nil {
		return s.stats(ctx, discussionID)
	}
	return 0, nil, nil
}

type stubNotes struct {
	list     func(ctx context.Context, recipientID string, unreadOnly bool, page, pageSize int) ([]domain.Notification, int64, error)
	unread   int64
	markRead func(ctx context.Context, recipientID, id string) error
}

func (s *stubNotes) ListPage(ctx context.Context, recipientID string, unreadOnly bool, page, pageSize int) ([]domain.Notification, int64, error) {
	if s.list != nil {
		return s.list(ctx, recipientID, unreadOnly, page, pageSize)
	}
	return []domain.Notification{}, 0, nil
}

func (s *stubNotes) UnreadCount(context.Context, string) (int64, error) { return s.unread, nil }

func (s *stubNotes) MarkRead(ctx context.Context, recipientID, id string) error {
	if s.markRead != nil {
		return s.markRead(ctx, recipientID, id)
	}
	return nil
}

type stubProfiles struct {
	get func(ctx context.Context, userID string) (*services.ProfileView, error)
}

func (s *stubProfiles) Get(ctx context.Context, userID string) (*services.ProfileView, error) {
	if s.get != nil {
		return s.get(ctx, userID)
	}
	return &services.ProfileView{Profile: domain.Profile{UserID: userID}, State: "not_premium"}, nil
}

// memIdem is an in-memory IdempotencyStore.
type memIdem struct {
	recs map[string]domain.Idempotency
}

func newMemIdem() *memIdem { return &memIdem{recs: map[string]domain.Idempotency{}} }

func (m *memIdem) Lookup(_ context.Context, userID, scopeID, key string, _ time.Time) (*domain.Idempotency, error) {
	if r, ok := m.recs[userID+"|"+scopeID+"|"+key]; ok {
		return &r, nil
	}
	return nil, nil
}

func (m *memIdem) Save(_ context.Context, userID, scopeID, key string, t services.Tally, status int) error {
	m.recs[userID+"|"+scopeID+"|"+key] = domain.Idempotency{
		UserID: userID, ScopeID: scopeID, Key: key, Likes: t.Likes, Dislikes: t.Dislikes, Status: status,
	}
	return nil
}

// ---------- router + request helpers ----------

type fixture struct {
	votes    *stubVotes
	threads  *stubThreads
	ranking  *stubRanking
	notes    *stubNotes
	profiles *stubProfiles
	idem     *memIdem
	r        *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fixture{
		votes:    &stubVotes{},
		threads:  &stubThreads{},
		ranking:  &stubRanking{},
		notes:    &stubNotes{},
		profiles: &stubProfiles{},
		idem:     newMemIdem(),
	}
	h := New(f.votes, f.threads, f.ranking, f.notes, f.profiles).WithIdempotency(f.idem)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Identity())
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	r.POST("/discussions", h.CreateDiscussion)
	r.GET("/discussions/:id", h.GetDiscussion)
	r.POST("/discussions/:id/posts", h.CreatePost)
	r.GET("/discussions/:id/thread", h.GetThread)
	r.GET("/discussions/:id/top", h.TopPosts)
	r.GET("/discussions/:id/posts/:postId/rank", h.PostRank)
	r.POST("/posts/:id/votes", h.CastVote)
	r.PUT("/posts/:id/hidden", h.SetPostHidden)
	r.POST("/discussions/:id/close", h.CloseDiscussion)
	r.GET("/notifications", h.ListNotifications)
	r.POST("/notifications/:id/read", h.MarkNotificationRead)
	r.GET("/profiles/me", h.GetMyProfile)
	f.r = r
	return f
}

// do sends a request as user (empty = anonymous) with optional JSON body
// and extra headers given as key/value pairs.
func (f *fixture) do(method, path, user string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(middleware.HeaderUserID, user)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("error body is not JSON: %v (%s)", err, w.Body.String())
	}
	return er
}

// Fixed UUIDs used in paths.
const (
	discID = "141add05-4415-4938-b5a1-17e0d3171aff"
	postID = "fa4dfbe0-c3bf-47bd-b32f-d7de221cf43b"
	noteID = "7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab"
)
