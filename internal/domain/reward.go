package domain

// TransitionKind names a one-way change the reward state machine applies
// to a Profile.
type TransitionKind string

const (
	TransitionActivatePremium TransitionKind = "activate_premium"
	TransitionBankOneMonth    TransitionKind = "bank_one_month"
	TransitionGrantKarma      TransitionKind = "grant_karma"
)

// RewardTransition is a single profile mutation.
//
// Amount carries the premium months for ActivatePremium and the karma bonus
// for GrantKarma; BankOneMonth always banks exactly one month. Badge is
// attached on activation only.
type RewardTransition struct {
	Kind   TransitionKind
	Amount int
	Badge  string
}
