package services

import (
	"time"

	"github.com/tbourn/go-discussion-engine/internal/domain"
)

func nowUTC() time.Time { return time.Now().UTC() }

// RewardState is the reward-relevant projection of a Profile: the
// (premium, banked months) pair.
type RewardState int

const (
	// StateNotPremium: no active premium period.
	StateNotPremium RewardState = iota
	// StatePremiumNoBank: premium, nothing queued.
	StatePremiumNoBank
	// StatePremiumBanked: premium with at least one banked month queued.
	StatePremiumBanked
)

func (s RewardState) String() string {
	switch s {
	case StateNotPremium:
		return "not_premium"
	case StatePremiumNoBank:
		return "premium_no_bank"
	case StatePremiumBanked:
		return "premium_banked"
	default:
		return "unknown"
	}
}

// StateOf classifies p at now. A premium flag whose expiry has passed
// counts as not premium; renewal belongs to the billing side.
func StateOf(p *domain.Profile, now time.Time) RewardState {
	if p == nil || !p.Premium {
		return StateNotPremium
	}
	if p.PremiumExpiresAt != nil && !p.PremiumExpiresAt.After(now) {
		return StateNotPremium
	}
	if p.BankedMonths > 0 {
		return StatePremiumBanked
	}
	return StatePremiumNoBank
}

// RewardPolicy holds the amounts applied by each transition.
type RewardPolicy struct {
	PremiumMonths int
	KarmaBonus    int
	Badge         string
}

// DecideReward is the reward state machine. Every transition moves forward;
// nothing here revokes premium or consumes banked months.
//
//	NotPremium    -> ActivatePremium  (premium_granted)
//	PremiumNoBank -> BankOneMonth     (premium_banked)
//	PremiumBanked -> GrantKarma(K)    (karma_bonus)
func DecideReward(state RewardState, policy RewardPolicy) (RewardState, domain.RewardTransition, domain.NotificationKind) {
	switch state {
	case StatePremiumNoBank:
		return StatePremiumBanked,
			domain.RewardTransition{Kind: domain.TransitionBankOneMonth, Amount: 1},
			domain.NotificationPremiumBanked
	case StatePremiumBanked:
		return StatePremiumBanked,
			domain.RewardTransition{Kind: domain.TransitionGrantKarma, Amount: policy.KarmaBonus},
			domain.NotificationKarmaBonus
	default:
		months := policy.PremiumMonths
		if months < 1 {
			months = 1
		}
		return StatePremiumNoBank,
			domain.RewardTransition{Kind: domain.TransitionActivatePremium, Amount: months, Badge: policy.Badge},
			domain.NotificationPremiumGranted
	}
}
