package giveaway

import (
	"fmt"

	"github.com/jensholdgaard/discord-giveaway-bot/internal/duration"
)

// Embed colors.
const (
	ColorRed   = 0xE74C3C
	ColorGreen = 0x2ECC71
)

const bullet = "•"

// renderer builds every message body a session shows.
type renderer struct {
	marker string
	banner string
}

func (r renderer) header() Message {
	return Message{Content: r.marker + " **Giveaway** " + r.marker}
}

func (r renderer) card(prize, body string) Message {
	return Message{Embed: &Embed{
		Title:       "**" + prize + "**",
		Description: body,
		Color:       ColorRed,
		ImageURL:    r.banner,
		Footer:      "1 Winner",
	}}
}

func (r renderer) running(prize string, remaining int) Message {
	return r.card(prize, fmt.Sprintf("%s React with %s to enter!\n%s Ends in %s",
		bullet, r.marker, bullet, duration.Format(remaining)))
}

func (r renderer) endedBody(prize string) string {
	return fmt.Sprintf("**%s**\n%s React with %s to enter!\n%s **Giveaway Ended**",
		prize, bullet, r.marker, bullet)
}

func (r renderer) ended(prize string) Message {
	return r.card(prize, r.endedBody(prize))
}

func (r renderer) endedWithWinner(prize, winnerID string) Message {
	return r.card(prize, r.endedBody(prize)+"\n**Winners**:\n "+Mention(winnerID))
}

func (r renderer) endedNoWinner(prize string) Message {
	return r.card(prize, r.endedBody(prize)+"\n**Winners**: No Winners")
}

func (r renderer) failedToStart(prize string) Message {
	return r.card(prize, "This giveaway could not be started. Please try again later.")
}

func (r renderer) congratulations(prize, winnerID, link string) Message {
	return Message{Embed: &Embed{
		Title: r.marker + " Congratulations! " + r.marker,
		Description: fmt.Sprintf("%s has won the giveaway for **%s**! [Jump to Giveaway](%s)",
			Mention(winnerID), prize, link),
		Color: ColorGreen,
	}}
}

// Plain channel notices.
const (
	noticeNoParticipants   = "No participants in the giveaway!"
	noticeNoEligibleWinner = "The specified winner could not be found in the server or didn't participate."
)

// Mention renders a user mention.
func Mention(userID string) string { return "<@" + userID + ">" }

// JumpURL links to a message. guildID may be empty for direct messages.
func JumpURL(guildID, channelID, messageID string) string {
	if guildID == "" {
		guildID = "@me"
	}
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildID, channelID, messageID)
}
