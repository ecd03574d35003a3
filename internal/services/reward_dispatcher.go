// Package services – RewardDispatcher
//
// RewardDispatcher grants the one-time reward for a post entering the top
// of its discussion. It runs after a vote has committed and is idempotent:
// the "top5" notification row is the gate, and the gate insert, the profile
// mutation, the audit row, and the reward notification share a single
// transaction. Whichever evaluation inserts the gate row performs the
// reward; every other concurrent or repeated evaluation affects zero rows
// and rolls back.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-discussion-engine/internal/config"
	"github.com/tbourn/go-discussion-engine/internal/domain"
	"github.com/tbourn/go-discussion-engine/internal/repo"
)

// RewardOutcome describes what an evaluation did.
type RewardOutcome string

const (
	// OutcomeUnranked: the post is outside the top cutoff (or gone).
	OutcomeUnranked RewardOutcome = "unranked"
	// OutcomeSelfVote: the voter is the author.
	OutcomeSelfVote RewardOutcome = "self_vote"
	// OutcomeAlreadyRewarded: the gate row already exists.
	OutcomeAlreadyRewarded RewardOutcome = "already_rewarded"
	// OutcomeNotified: the top-5 notification was filed, without an account
	// reward (premium discussion or expired round).
	OutcomeNotified RewardOutcome = "notified"
	// OutcomeRewarded: notification filed and profile transition applied.
	OutcomeRewarded RewardOutcome = "rewarded"
)

// RewardResult is returned by Evaluate.
type RewardResult struct {
	Outcome    RewardOutcome
	Rank       *int
	Transition *domain.RewardTransition
	Kind       domain.NotificationKind
}

// errAlreadyGranted rolls back the reward transaction when the gate row
// already exists.
var errAlreadyGranted = errors.New("reward already granted")

// RewardDispatcher evaluates reward eligibility after votes.
type RewardDispatcher struct {
	DB       *gorm.DB
	Ranking  *RankingService
	Policy   RewardPolicy
	Messages *Messages

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// NewRewardDispatcher wires a dispatcher from the engagement config.
func NewRewardDispatcher(db *gorm.DB, ranking *RankingService, cfg config.EngagementConfig) *RewardDispatcher {
	tag, err := language.Parse(cfg.NotifyLocale)
	if err != nil {
		tag = language.English
	}
	return &RewardDispatcher{
		DB:      db,
		Ranking: ranking,
		Policy: RewardPolicy{
			PremiumMonths: cfg.PremiumMonths,
			KarmaBonus:    cfg.KarmaBonus,
			Badge:         cfg.TopTierBadge,
		},
		Messages: NewMessages(tag),
	}
}

func (d *RewardDispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

// Evaluate checks whether postID just entered the top of its discussion on
// behalf of voterID and, if so, grants the one-time reward to the author.
//
// Evaluate is safe to call any number of times for the same post; only the
// first successful call has an effect. Errors are storage failures after
// which the caller may retry.
func (d *RewardDispatcher) Evaluate(ctx context.Context, postID, voterID string) (res *RewardResult, err error) {
	tr := otel.Tracer("services/RewardDispatcher")
	ctx, span := tr.Start(ctx, "Evaluate",
		trace.WithAttributes(
			attribute.String("post.id", postID),
			attribute.String("voter.id", voterID),
		),
	)
	defer func() {
		if err != nil {
			rewardFailures.Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "reward evaluation failed")
		} else if res != nil {
			span.SetAttributes(attribute.String("reward.outcome", string(res.Outcome)))
		}
		span.End()
	}()

	log := zerolog.Ctx(ctx)

	post, err := repo.GetVisiblePost(ctx, d.DB, postID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return &RewardResult{Outcome: OutcomeUnranked}, nil
		}
		return nil, storageErr(err)
	}
	disc, err := repo.GetDiscussion(ctx, d.DB, post.DiscussionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return &RewardResult{Outcome: OutcomeUnranked}, nil
		}
		return nil, storageErr(err)
	}

	// A post nobody liked has not "entered" anything, even in a discussion
	// with fewer posts than the cutoff.
	if post.LikeCount < 1 {
		return &RewardResult{Outcome: OutcomeUnranked}, nil
	}

	rank, err := d.Ranking.RankOf(ctx, post.DiscussionID, postID)
	if errors.Is(err, ErrDiscussionNotFound) {
		// Closed since the lookup above.
		return &RewardResult{Outcome: OutcomeUnranked}, nil
	}
	if err != nil {
		return nil, err
	}
	if rank == nil {
		return &RewardResult{Outcome: OutcomeUnranked}, nil
	}
	if post.AuthorID == voterID {
		return &RewardResult{Outcome: OutcomeSelfVote, Rank: rank}, nil
	}

	// Fast path; the unique index inside the transaction is what actually
	// decides.
	seen, err := repo.NotificationExists(ctx, d.DB, post.AuthorID, postID, domain.NotificationTop5)
	if err != nil {
		return nil, storageErr(err)
	}
	if seen {
		return &RewardResult{Outcome: OutcomeAlreadyRewarded, Rank: rank}, nil
	}

	now := d.now()
	res = &RewardResult{Outcome: OutcomeNotified, Rank: rank}
	txErr := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := repo.NotifyOnce(ctx, tx, post.AuthorID, postID, domain.NotificationTop5, d.Messages.Rank(disc.Title, *rank))
		if err != nil {
			return err
		}
		if !inserted {
			return errAlreadyGranted
		}

		if !disc.RewardEligible(now) {
			return nil
		}

		prof, err := repo.LockProfile(ctx, tx, post.AuthorID)
		if err != nil {
			return err
		}
		state := StateOf(prof, now)
		_, transition, kind := DecideReward(state, d.Policy)

		if err := repo.ApplyRewardTransition(ctx, tx, post.AuthorID, transition, now); err != nil {
			return err
		}
		if _, err := repo.CreateRewardGrant(ctx, tx, post.AuthorID, postID, transition, now); err != nil {
			return err
		}
		inserted, err = repo.NotifyOnce(ctx, tx, post.AuthorID, postID, kind, d.Messages.Reward(kind, disc.Title, transition.Amount))
		if err != nil {
			return err
		}
		if !inserted {
			return errAlreadyGranted
		}

		res.Outcome = OutcomeRewarded
		res.Transition = &transition
		res.Kind = kind
		log.Debug().
			Str("author_id", post.AuthorID).
			Str("post_id", postID).
			Str("state", state.String()).
			Str("transition", string(transition.Kind)).
			Msg("reward transition applied")
		return nil
	})
	if errors.Is(txErr, errAlreadyGranted) {
		log.Debug().Str("post_id", postID).Msg("reward already granted")
		return &RewardResult{Outcome: OutcomeAlreadyRewarded, Rank: rank}, nil
	}
	if txErr != nil {
		return nil, storageErr(txErr)
	}

	notificationsTotal.WithLabelValues(string(domain.NotificationTop5)).Inc()
	if res.Kind != "" {
		notificationsTotal.WithLabelValues(string(res.Kind)).Inc()
	}
	return res, nil
}
