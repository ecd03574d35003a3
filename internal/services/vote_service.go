// Package services – VoteService
//
// VoteService owns the vote ledger and the post counters derived from it.
// A vote is a single transaction that:
//
//  1. writes to the post row first, so concurrent votes on the same post
//     queue behind each other (row lock on Postgres, write lock on SQLite);
//  2. inserts, switches, or deletes the voter's ledger row (toggle semantics);
//  3. recounts the ledger into the post counters in one UPDATE statement.
//
// Either all three commit or none does. Reward evaluation runs after the
// commit and never fails the vote.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-discussion-engine/internal/domain"
	"github.com/tbourn/go-discussion-engine/internal/repo"
)

// VoteOutcome is the effect a vote had on the ledger.
type VoteOutcome string

const (
	VoteCreated   VoteOutcome = "created"
	VoteChanged   VoteOutcome = "changed"
	VoteRetracted VoteOutcome = "retracted"
)

// Tally is the pair of counters stored on a post.
type Tally struct {
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
}

// VoteResult is returned by CastVote.
type VoteResult struct {
	PostID  string
	Tally   Tally
	Outcome VoteOutcome
}

// RewardEvaluator is notified after every committed vote.
type RewardEvaluator interface {
	Evaluate(ctx context.Context, postID, voterID string) (*RewardResult, error)
}

// VoteService implements CastVote and RecomputeTally.
type VoteService struct {
	DB *gorm.DB

	// Rewards is optional; nil disables reward evaluation.
	Rewards RewardEvaluator
}

// CastVote applies voterID's vote of type t to postID and returns the new
// tally.
//
//   - no existing vote: a row is inserted;
//   - same type again: the vote is retracted (row deleted);
//   - other type: the row is switched in place.
//
// Errors: ErrUnauthorized (empty voter), ErrInvalidVoteType,
// ErrPostNotFound (missing/hidden post or closed discussion), ErrStorage.
func (s *VoteService) CastVote(ctx context.Context, postID, voterID string, t domain.VoteType) (res *VoteResult, err error) {
	tr := otel.Tracer("services/VoteService")
	ctx, span := tr.Start(ctx, "CastVote",
		trace.WithAttributes(
			attribute.String("post.id", postID),
			attribute.String("voter.id", voterID),
			attribute.String("vote.type", string(t)),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return nil, ErrUnauthorized
	}
	if !t.Valid() {
		return nil, ErrInvalidVoteType
	}

	res = &VoteResult{PostID: postID}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.LockPost(ctx, tx, postID); err != nil {
			return err
		}

		existing, err := repo.GetVote(ctx, tx, postID, voterID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			if _, err := repo.InsertVote(ctx, tx, postID, voterID, t); err != nil {
				return err
			}
			res.Outcome = VoteCreated
		case err != nil:
			return err
		case existing.Type == t:
			if err := repo.DeleteVote(ctx, tx, existing.ID); err != nil {
				return err
			}
			res.Outcome = VoteRetracted
		default:
			if err := repo.UpdateVoteType(ctx, tx, existing.ID, t); err != nil {
				return err
			}
			res.Outcome = VoteChanged
		}

		likes, dislikes, err := repo.RecomputeTally(ctx, tx, postID)
		if err != nil {
			return err
		}
		res.Tally = Tally{Likes: likes, Dislikes: dislikes}
		return nil
	})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		voteFailures.Inc()
		return nil, storageErr(err)
	}

	votesTotal.WithLabelValues(string(res.Outcome)).Inc()
	span.SetAttributes(
		attribute.String("vote.outcome", string(res.Outcome)),
		attribute.Int("post.likes", res.Tally.Likes),
		attribute.Int("post.dislikes", res.Tally.Dislikes),
	)

	if s.Rewards != nil {
		s.evaluateRewards(ctx, postID, voterID)
	}
	return res, nil
}

// evaluateRewards runs the reward dispatcher and absorbs its failures; a
// missed reward is logged for retry but never fails a committed vote.
func (s *VoteService) evaluateRewards(ctx context.Context, postID, voterID string) {
	log := zerolog.Ctx(ctx)
	rr, err := s.Rewards.Evaluate(ctx, postID, voterID)
	if err != nil {
		log.Warn().Err(err).
			Str("post_id", postID).
			Str("voter_id", voterID).
			Msg("reward evaluation failed")
		return
	}
	if rr != nil && rr.Outcome == OutcomeRewarded {
		log.Info().
			Str("post_id", postID).
			Str("kind", string(rr.Kind)).
			Msg("reward granted")
	}
}

// RecomputeTally recounts the ledger of postID into its counters in its own
// transaction and returns the result.
func (s *VoteService) RecomputeTally(ctx context.Context, postID string) (Tally, error) {
	tr := otel.Tracer("services/VoteService")
	ctx, span := tr.Start(ctx, "RecomputeTally",
		trace.WithAttributes(attribute.String("post.id", postID)),
	)
	defer span.End()

	var out Tally
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		likes, dislikes, err := repo.RecomputeTally(ctx, tx, postID)
		if err != nil {
			return err
		}
		out = Tally{Likes: likes, Dislikes: dislikes}
		return nil
	})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Tally{}, ErrPostNotFound
		}
		return Tally{}, storageErr(err)
	}
	return out, nil
}
