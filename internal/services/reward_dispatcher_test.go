package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-discussion-engine/internal/domain"
	"github.com/tbourn/go-discussion-engine/internal/repo"
)

func countKind(t *testing.T, db *gorm.DB, recipient string, kind domain.NotificationKind) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.Notification{}).
		Where("recipient_id = ? AND kind = ?", recipient, kind).
		Count(&n).Error; err != nil {
		t.Fatalf("count notifications: %v", err)
	}
	return n
}

func loadProfile(t *testing.T, db *gorm.DB, userID string) *domain.Profile {
	t.Helper()
	p, err := repo.GetProfile(context.Background(), db, userID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	return p
}

// A free user's post enters the top-5 and premium is activated;
// a later vote keeping it there grants nothing more.
func TestReward_NotPremium_ActivatesPremiumOnce(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	d := mustDiscussion(t, e.db, false, nil)
	p := mustPost(t, e.db, d, "U", time.Now().UTC())

	clock := time.Date(2020, 1, 15, 12, 0, 0, 0, time.UTC)
	e.rewards.Now = func() time.Time { return clock }
	if _, err := e.votes.CastVote(ctx, p, "V1", domain.VoteLike); err != nil {
		t.Fatalf("vote: %v", err)
	}

	prof := loadProfile(t, e.db, "U")
	if !prof.Premium || prof.Badge != "top_tier" || prof.PremiumExpiresAt == nil {
		t.Fatalf("expected premium with badge, got %+v", prof)
	}
	if want := time.Date(2020, 2, 15, 12, 0, 0, 0, time.UTC); !prof.PremiumExpiresAt.Equal(want) {
		t.Fatalf("expiry %v, want one month after the reward clock (%v)", prof.PremiumExpiresAt, want)
	}
	if countKind(t, e.db, "U", domain.NotificationTop5) != 1 || countKind(t, e.db, "U", domain.NotificationPremiumGranted) != 1 {
		t.Fatalf("expected one top5 and one premium_granted notification")
	}

	if _, err := e.votes.CastVote(ctx, p, "V2", domain.VoteLike); err != nil {
		t.Fatalf("second vote: %v", err)
	}
	if countKind(t, e.db, "U", domain.NotificationTop5) != 1 || countKind(t, e.db, "U", domain.NotificationPremiumGranted) != 1 {
		t.Fatalf("second vote must not file further reward notifications")
	}
	if prof2 := loadProfile(t, e.db, "U"); prof2.BankedMonths != 0 || prof2.Karma != 0 {
		t.Fatalf("second vote must not mutate the profile, got %+v", prof2)
	}
	grants, _ := repo.ListRewardGrants(ctx, e.db, "U", 10)
	if len(grants) != 1 || grants[0].Transition != string(domain.TransitionActivatePremium) {
		t.Fatalf("expected a single activation grant, got %+v", grants)
	}
	if !grants[0].CreatedAt.Equal(clock) {
		t.Fatalf("grant recorded at %v, want %v", grants[0].CreatedAt, clock)
	}
}

// Premium with nothing banked banks one month.
func TestReward_PremiumNoBank_BanksMonth(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	future := time.Now().UTC().Add(10 * 24 * time.Hour)
	if err := e.db.Create(&domain.Profile{UserID: "U", Premium: true, PremiumExpiresAt: &future}).Error; err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	d := mustDiscussion(t, e.db, false, nil)
	p := mustPost(t, e.db, d, "U", time.Now().UTC())

	if _, err := e.votes.CastVote(ctx, p, "V", domain.VoteLike); err != nil {
		t.Fatalf("vote: %v", err)
	}
	prof := loadProfile(t, e.db, "U")
	if prof.BankedMonths != 1 || prof.Karma != 0 || !prof.Premium {
		t.Fatalf("expected banked=1, got %+v", prof)
	}
	if !prof.PremiumExpiresAt.Equal(future) {
		t.Fatalf("banking must not extend the current period: %v vs %v", prof.PremiumExpiresAt, future)
	}
	if countKind(t, e.db, "U", domain.NotificationPremiumBanked) != 1 {
		t.Fatalf("expected premium_banked notification")
	}
}

// Premium with a banked month converts the reward into karma.
func TestReward_PremiumBanked_GrantsKarma(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	future := time.Now().UTC().Add(10 * 24 * time.Hour)
	if err := e.db.Create(&domain.Profile{UserID: "U", Premium: true, PremiumExpiresAt: &future, BankedMonths: 1}).Error; err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	d := mustDiscussion(t, e.db, false, nil)
	p := mustPost(t, e.db, d, "U", time.Now().UTC())

	if _, err := e.votes.CastVote(ctx, p, "V", domain.VoteLike); err != nil {
		t.Fatalf("vote: %v", err)
	}
	prof := loadProfile(t, e.db, "U")
	if prof.BankedMonths != 1 || prof.Karma != testEngagement.KarmaBonus {
		t.Fatalf("expected banked=1 karma=%d, got %+v", testEngagement.KarmaBonus, prof)
	}
	if countKind(t, e.db, "U", domain.NotificationKarmaBonus) != 1 {
		t.Fatalf("expected karma_bonus notification")
	}
}

// Premium discussions and expired rounds notify but never
// touch the profile.
func TestReward_IneligibleDiscussion_NotifiesOnly(t *testing.T) {
	past := time.Now().UTC().Add(-time.Hour)
	cases := []struct {
		name    string
		premium bool
		ends    *time.Time
	}{
		{"premium discussion", true, nil},
		{"expired round", false, &past},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEngine(t)
			ctx := context.Background()
			d := mustDiscussion(t, e.db, tc.premium, tc.ends)
			p := mustPost(t, e.db, d, "U", time.Now().UTC())

			if _, err := e.votes.CastVote(ctx, p, "V", domain.VoteLike); err != nil {
				t.Fatalf("vote: %v", err)
			}
			if countKind(t, e.db, "U", domain.NotificationTop5) != 1 {
				t.Fatalf("expected top5 notification")
			}
			for _, k := range []domain.NotificationKind{domain.NotificationPremiumGranted, domain.NotificationPremiumBanked, domain.NotificationKarmaBonus} {
				if countKind(t, e.db, "U", k) != 0 {
					t.Fatalf("unexpected %s notification", k)
				}
			}
			var profiles int64
			e.db.Model(&domain.Profile{}).Count(&profiles)
			if profiles != 0 {
				t.Fatalf("profile must not be created or mutated, found %d rows", profiles)
			}
		})
	}
}

// A newcomer overtakes the ranking. The post pushed out keeps
// a reward it already had; a post that never had one gets nothing.
func TestReward_RankingShift_RewardsAreSticky(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	d := mustDiscussion(t, e.db, false, nil)

	t0 := time.Now().UTC().Add(-time.Hour)
	likes := []int{10, 9, 8, 7, 6, 5}
	ids := make([]string, len(likes))
	authors := []string{"a0", "a1", "a2", "a3", "a4", "a5"}
	for i, n := range likes {
		ids[i] = mustPost(t, e.db, d, authors[i], t0.Add(time.Duration(i)*time.Minute))
		likeN(t, e.db, ids[i], n)
	}

	// The 6-like post (rank 4) is rewarded while it is still in the top-5.
	res, err := e.rewards.Evaluate(ctx, ids[4], "someone")
	if err != nil || res.Outcome != OutcomeRewarded {
		t.Fatalf("expected 5th place to be rewarded, got %+v err=%v", res, err)
	}
	// The 5-like post is 6th and gets nothing.
	res, err = e.rewards.Evaluate(ctx, ids[5], "someone")
	if err != nil || res.Outcome != OutcomeUnranked {
		t.Fatalf("expected 6th place to be unranked, got %+v err=%v", res, err)
	}

	newcomer := mustPost(t, e.db, d, "n", t0.Add(time.Hour))
	likeN(t, e.db, newcomer, 10)
	vr, err := e.votes.CastVote(ctx, newcomer, "closer", domain.VoteLike)
	if err != nil || vr.Tally.Likes != 11 {
		t.Fatalf("closing vote: %+v err=%v", vr, err)
	}

	top, err := e.ranking.TopN(ctx, d, 5)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	want := []string{newcomer, ids[0], ids[1], ids[2], ids[3]}
	for i, s := range top {
		if s.ID != want[i] || s.Rank != i {
			t.Fatalf("rank %d: got %s want %s", i, s.ID, want[i])
		}
	}

	if countKind(t, e.db, "n", domain.NotificationTop5) != 1 || !loadProfile(t, e.db, "n").Premium {
		t.Fatalf("newcomer should be rewarded")
	}
	// Pushed out, but keeps what it had.
	if countKind(t, e.db, "a4", domain.NotificationTop5) != 1 || !loadProfile(t, e.db, "a4").Premium {
		t.Fatalf("previously granted reward must not be revoked")
	}
	if countKind(t, e.db, "a5", domain.NotificationTop5) != 0 || loadProfile(t, e.db, "a5").Premium {
		t.Fatalf("post that never ranked must get nothing")
	}
}

func TestReward_SelfVote_NeverRewards(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	d := mustDiscussion(t, e.db, false, nil)
	p := mustPost(t, e.db, d, "U", time.Now().UTC())

	if _, err := e.votes.CastVote(ctx, p, "U", domain.VoteLike); err != nil {
		t.Fatalf("self vote: %v", err)
	}
	res, err := e.rewards.Evaluate(ctx, p, "U")
	if err != nil || res.Outcome != OutcomeSelfVote {
		t.Fatalf("expected self_vote outcome, got %+v err=%v", res, err)
	}
	if countKind(t, e.db, "U", domain.NotificationTop5) != 0 || loadProfile(t, e.db, "U").Premium {
		t.Fatalf("self vote must not reward")
	}

	// Someone else's vote still can.
	if _, err := e.votes.CastVote(ctx, p, "V", domain.VoteLike); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if countKind(t, e.db, "U", domain.NotificationTop5) != 1 {
		t.Fatalf("expected reward after a vote by another user")
	}
}

func TestReward_UnlikedPost_IsNotRewarded(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	d := mustDiscussion(t, e.db, false, nil)
	p := mustPost(t, e.db, d, "U", time.Now().UTC())

	if _, err := e.votes.CastVote(ctx, p, "V", domain.VoteDislike); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if countKind(t, e.db, "U", domain.NotificationTop5) != 0 {
		t.Fatalf("a disliked-only post must not be rewarded")
	}
}

func TestEvaluate_Twice_ExactlyOnce(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	d := mustDiscussion(t, e.db, false, nil)
	p := mustPost(t, e.db, d, "U", time.Now().UTC())
	likeN(t, e.db, p, 1)

	first, err := e.rewards.Evaluate(ctx, p, "V")
	if err != nil || first.Outcome != OutcomeRewarded || first.Kind != domain.NotificationPremiumGranted {
		t.Fatalf("first evaluate: %+v err=%v", first, err)
	}
	if first.Rank == nil || *first.Rank != 0 {
		t.Fatalf("expected rank 0, got %v", first.Rank)
	}
	second, err := e.rewards.Evaluate(ctx, p, "V")
	if err != nil || second.Outcome != OutcomeAlreadyRewarded {
		t.Fatalf("second evaluate: %+v err=%v", second, err)
	}

	grants, _ := repo.ListRewardGrants(ctx, e.db, "U", 10)
	if len(grants) != 1 || countKind(t, e.db, "U", domain.NotificationTop5) != 1 {
		t.Fatalf("expected exactly one grant and one top5 notification, got %d grants", len(grants))
	}
}

func TestEvaluate_Concurrent_ExactlyOnce(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	d := mustDiscussion(t, e.db, false, nil)
	p := mustPost(t, e.db, d, "U", time.Now().UTC())
	likeN(t, e.db, p, 2)

	const workers = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		rewarded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.rewards.Evaluate(ctx, p, "V")
			if err != nil {
				t.Errorf("evaluate: %v", err)
				return
			}
			if res.Outcome == OutcomeRewarded {
				mu.Lock()
				rewarded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if rewarded != 1 {
		t.Fatalf("expected exactly one rewarded evaluation, got %d", rewarded)
	}
	if countKind(t, e.db, "U", domain.NotificationPremiumGranted) != 1 {
		t.Fatalf("expected one premium_granted notification")
	}
}

func TestEvaluate_ConcurrentVotes_SingleReward(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	d := mustDiscussion(t, e.db, false, nil)
	p := mustPost(t, e.db, d, "U", time.Now().UTC())

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := e.votes.CastVote(ctx, p, "voter-"+string(rune('a'+i)), domain.VoteLike); err != nil {
				t.Errorf("vote: %v", err)
			}
		}(i)
	}
	wg.Wait()

	post := assertTallyMatchesLedger(t, e.db, p)
	if post.LikeCount != 12 {
		t.Fatalf("expected 12 likes, got %d", post.LikeCount)
	}
	if countKind(t, e.db, "U", domain.NotificationTop5) != 1 || countKind(t, e.db, "U", domain.NotificationPremiumGranted) != 1 {
		t.Fatalf("expected exactly one reward across concurrent votes")
	}
}

// A failure after the gate insert rolls the whole reward back; a retry
// then grants it.
func TestEvaluate_FailureRollsBack_ThenRetrySucceeds(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	d := mustDiscussion(t, e.db, false, nil)
	p := mustPost(t, e.db, d, "U", time.Now().UTC())
	likeN(t, e.db, p, 1)

	if err := e.db.Callback().Create().Before("gorm:create").Register("test:fail_grants", func(tx *gorm.DB) {
		if tx.Statement.Table == "reward_grants" {
			_ = tx.AddError(errors.New("connection reset"))
		}
	}); err != nil {
		t.Fatalf("register callback: %v", err)
	}

	if _, err := e.rewards.Evaluate(ctx, p, "V"); !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if countKind(t, e.db, "U", domain.NotificationTop5) != 0 || loadProfile(t, e.db, "U").Premium {
		t.Fatalf("failed reward must leave no trace")
	}

	if err := e.db.Callback().Create().Remove("test:fail_grants"); err != nil {
		t.Fatalf("remove callback: %v", err)
	}
	res, err := e.rewards.Evaluate(ctx, p, "V")
	if err != nil || res.Outcome != OutcomeRewarded {
		t.Fatalf("retry: %+v err=%v", res, err)
	}
}

func TestEvaluate_MissingPost_Unranked(t *testing.T) {
	e := newEngine(t)
	res, err := e.rewards.Evaluate(context.Background(), "missing", "V")
	if err != nil || res.Outcome != OutcomeUnranked {
		t.Fatalf("expected unranked for missing post, got %+v err=%v", res, err)
	}
}
