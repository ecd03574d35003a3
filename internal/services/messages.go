package services

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tbourn/go-discussion-engine/internal/domain"
)

// Messages renders notification text. Numbers are formatted for the
// configured locale (e.g. 1,000 karma in English, 1.000 in German).
type Messages struct {
	p *message.Printer
}

// NewMessages returns a Messages printer for tag. language.Und falls back
// to English.
func NewMessages(tag language.Tag) *Messages {
	if tag == language.Und {
		tag = language.English
	}
	return &Messages{p: message.NewPrinter(tag)}
}

// Rank phrases a top-5 placement. Rank 0 is "first place".
func (m *Messages) Rank(title string, rank int) string {
	if rank == 0 {
		return m.p.Sprintf("Your post is in first place in %q.", title)
	}
	return m.p.Sprintf("Your post made the top-5 in %q (#%d).", title, rank+1)
}

// Reward phrases an account reward of the given kind.
func (m *Messages) Reward(kind domain.NotificationKind, title string, amount int) string {
	switch kind {
	case domain.NotificationPremiumGranted:
		if amount == 1 {
			return m.p.Sprintf("You earned a month of premium for your top-5 post in %q.", title)
		}
		return m.p.Sprintf("You earned %d months of premium for your top-5 post in %q.", amount, title)
	case domain.NotificationPremiumBanked:
		return m.p.Sprintf("A month of premium was banked for your top-5 post in %q. It starts when your current period ends.", title)
	case domain.NotificationKarmaBonus:
		return m.p.Sprintf("You earned %d karma for your top-5 post in %q.", amount, title)
	default:
		return m.p.Sprintf("Your post in %q was rewarded.", title)
	}
}

// Reply phrases a reply notification for the parent post's author.
func (m *Messages) Reply(title string) string {
	return m.p.Sprintf("Someone replied to your post in %q.", title)
}
