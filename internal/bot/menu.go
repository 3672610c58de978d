package bot

import (
	"fmt"
	"time"

	"github.com/sdmedia/clubbot/internal/config"
	"github.com/sdmedia/clubbot/internal/domain"
	"github.com/sdmedia/clubbot/internal/subscription"
	"github.com/sdmedia/clubbot/internal/transport"
)

// Button actions for the member-facing menu.
const (
	actionMenu    = "menu"
	actionChannel = "channel"
	actionChat    = "chat"
	actionArchive = "archive"
	actionSeasons = "seasons"
	actionAccess  = "access"
	actionPay     = "pay"
	actionGift    = "gift"
	actionSupport = "support"
)

func mainMenuKeyboard() [][]transport.Button {
	return [][]transport.Button{
		{{Text: "📢 Channel", Action: actionChannel}},
		{{Text: "💬 Club chat", Action: actionChat}},
		{{Text: "📚 Knowledge archive", Action: actionArchive}},
		{{Text: "🪪 My subscription", Action: actionAccess}},
		{{Text: "💠 Pay / renew", Action: actionPay}},
		{{Text: "🎁 Gift access", Action: actionGift}},
		{{Text: "🗓️ Club seasons", Action: actionSeasons}},
		{{Text: "🤍 Contact the curator", Action: actionSupport}},
	}
}

func backKeyboard() [][]transport.Button {
	return [][]transport.Button{{{Text: "‹ Back to menu", Action: actionMenu}}}
}

func welcomeText(name string) string {
	return fmt.Sprintf(
		"Hi, %s.\nI am the club system.\nI keep you up to date on seasons, materials and access.\nNo noise, no spam.\n\nPick what you need right now:",
		name,
	)
}

const menuText = "Club menu.\nEverything you need is one tap away."

func channelText(cfg *config.Config) string {
	return fmt.Sprintf("Official club channel.\nAnnouncements and important signals.\n\n%s", cfg.ChannelLink)
}

func chatText(cfg *config.Config) string {
	return fmt.Sprintf("Members chat.\nA quiet community without noise.\n\n%s", cfg.ChatLink)
}

func seasonsText(cfg *config.Config) string {
	return fmt.Sprintf(
		"Club seasons and formats:\n\n1. Seasons — long, gentle routes.\n2. Challenges — focused work on one topic.\n3. Intensives — for those who want to go deeper.\n\nDetails and registration: %s",
		cfg.SeasonsLink,
	)
}

const giftText = "Gift club access.\n\nHow to arrange it:\n• Pay with the same requisites and mention both usernames in the comment.\n• Send the receipt here — we will activate the access."

const archiveText = "Everything calm and useful, collected in one place."

func payText(cfg *config.Config) string {
	return fmt.Sprintf(
		"Requisites for the club payment\n\nPayee: %s\nBank: %s\nCard / account: %s\nAmount: %d\nComment: club + your username\n\nAfter the payment:\n1) take a screenshot of the confirmation;\n2) send it here as one message.\n\nOnce verified, the bot activates access for %d days and lets you know here.",
		cfg.PayeeName, cfg.PayeeBank, cfg.PayeeAccount, cfg.SubscriptionPrice, cfg.SubscriptionDays,
	)
}

const supportText = "Describe your question in one message: access, payment, materials or anything else.\nI will pass it to the curator; the answer will arrive here."

// accessText renders the subscription status screen: active, expired, or
// never granted.
func accessText(record *domain.MemberRecord, today time.Time) string {
	switch {
	case subscription.MemberActive(record, today):
		return fmt.Sprintf("Your club access is active until %s.\nKeep going at your own pace.", subscription.FormatDate(*record.SubscriptionEnd))
	case record.HasGrant():
		return fmt.Sprintf(
			"Your access ran until %s and has now ended.\n\nTo come back:\n• Tap \"💠 Pay / renew\".\n• Pay with the requisites and send the receipt here.",
			subscription.FormatDate(*record.SubscriptionEnd),
		)
	default:
		return "You have no active access right now.\n\nIf you already paid — tap \"🤍 Contact the curator\" and attach the receipt.\nTo join:\n• Tap \"💠 Pay / renew\" and follow the instructions."
	}
}

func statsText(total, active int) string {
	return fmt.Sprintf("Total members: %d\nActive subscriptions: %d", total, active)
}
