package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// votesTotal counts committed votes by outcome (created, changed, retracted).
	votesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_votes_total",
			Help: "Total number of committed votes by outcome.",
		},
		[]string{"outcome"},
	)

	// voteFailures counts votes that were rolled back.
	voteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engagement_vote_failures_total",
			Help: "Total number of votes that failed and were not applied.",
		},
	)

	// notificationsTotal counts reward-related notifications filed, by kind.
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_notifications_total",
			Help: "Total number of reward notifications filed by kind.",
		},
		[]string{"kind"},
	)

	// rewardFailures counts reward evaluations that failed after the vote
	// committed. These may be retried.
	rewardFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engagement_reward_failures_total",
			Help: "Total number of reward evaluations that failed.",
		},
	)
)

func init() {
	prometheus.MustRegister(votesTotal, voteFailures, notificationsTotal, rewardFailures)
}
