package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/tbourn/go-discussion-engine/internal/services"
)

func TestTopPosts_PassesNAndETag(t *testing.T) {
	f := newFixture(t)
	ts := time.Date(2025, 5, 1, 12, 0, 0, 42, time.UTC)
	f.ranking.stats = func(context.Context, string) (int64, *time.Time, error) { return 3, &ts, nil }
	var gotN int
	f.ranking.top = func(_ context.Context, did string, n int) ([]services.PostSummary, error) {
		gotN = n
		return []services.PostSummary{{Rank: 0, ID: postID, DiscussionID: did, Likes: 4}}, nil
	}

	w := f.do(http.MethodGet, "/discussions/"+discID+"/top?n=3", "", nil)
	if w.Code != http.StatusOK || gotN != 3 {
		t.Fatalf("status=%d n=%d", w.Code, gotN)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("expected ETag")
	}
	var resp TopResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Posts) != 1 || resp.Posts[0].Likes != 4 {
		t.Fatalf("unexpected body: %+v", resp)
	}

	// Conditional request short-circuits.
	w = f.do(http.MethodGet, "/discussions/"+discID+"/top?n=3", "", nil, "If-None-Match", etag)
	if w.Code != http.StatusNotModified || f.ranking.topCalls != 1 {
		t.Fatalf("expected 304 without a query, status=%d calls=%d", w.Code, f.ranking.topCalls)
	}

	// A vote moves updated_at and invalidates the tag.
	later := ts.Add(time.Millisecond)
	f.ranking.stats = func(context.Context, string) (int64, *time.Time, error) { return 3, &later, nil }
	w = f.do(http.MethodGet, "/discussions/"+discID+"/top?n=3", "", nil, "If-None-Match", etag)
	if w.Code != http.StatusOK {
		t.Fatalf("stale tag must refetch, status=%d", w.Code)
	}
}

func TestTopPosts_DefaultNAndNotFound(t *testing.T) {
	f := newFixture(t)
	gotN := -99
	f.ranking.top = func(_ context.Context, _ string, n int) ([]services.PostSummary, error) {
		gotN = n
		return nil, services.ErrDiscussionNotFound
	}
	w := f.do(http.MethodGet, "/discussions/"+discID+"/top?n=abc", "", nil)
	if w.Code != http.StatusNotFound || gotN != 0 {
		t.Fatalf("status=%d n=%d", w.Code, gotN)
	}
}

func TestPostRank(t *testing.T) {
	f := newFixture(t)
	two := 2
	f.ranking.rankOf = func(_ context.Context, _, pid string) (*int, error) {
		if pid == postID {
			return &two, nil
		}
		return nil, nil
	}

	w := f.do(http.MethodGet, "/discussions/"+discID+"/posts/"+postID+"/rank", "", nil)
	var resp RankResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || resp.Rank == nil || *resp.Rank != 2 {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	other := "0b7d6f0e-4a8e-4c2c-9f7a-2f5b0d9e1c11"
	w = f.do(http.MethodGet, "/discussions/"+discID+"/posts/"+other+"/rank", "", nil)
	var raw map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &raw)
	if v, present := raw["rank"]; !present || v != nil {
		t.Fatalf("unranked post must report rank null, got %s", w.Body.String())
	}

	if w := f.do(http.MethodGet, "/discussions/"+discID+"/posts/x/rank", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad post id: status=%d", w.Code)
	}
}

func TestPostRank_DiscussionNotFound(t *testing.T) {
	f := newFixture(t)
	f.ranking.rankOf = func(context.Context, string, string) (*int, error) {
		return nil, services.ErrDiscussionNotFound
	}
	w := f.do(http.MethodGet, "/discussions/"+discID+"/posts/"+postID+"/rank", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", w.Code, w.Body.String())
	}
	var resp ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Code != ErrCodeNotFound {
		t.Fatalf("unexpected error code %q", resp.Code)
	}
}
