package giveaway

import "context"

// Message is the content of a chat message. Either field may be empty.
type Message struct {
	Content string
	Embed   *Embed
}

// Embed is a rich message card.
type Embed struct {
	Title       string
	Description string
	Color       int
	ImageURL    string
	Footer      string
}

// Channel identifies a resolved chat channel.
type Channel struct {
	ID      string
	GuildID string
	Name    string
}

// User identifies a resolved chat user.
type User struct {
	ID       string
	Username string
	Bot      bool
}

// Gateway is the set of chat platform capabilities the giveaway engine uses.
// Implementations return ErrMessageNotFound, ErrChannelNotFound or
// ErrUserNotFound for missing entities and wrap ErrGatewayUnavailable for
// every other failure.
type Gateway interface {
	PostMessage(ctx context.Context, channelID string, msg Message) (messageID string, err error)
	EditMessage(ctx context.Context, channelID, messageID string, msg Message) error
	AddMarker(ctx context.Context, channelID, messageID, marker string) error
	// ListMarkerReactors returns the IDs of users who reacted with marker,
	// excluding the bot itself and other automated accounts.
	ListMarkerReactors(ctx context.Context, channelID, messageID, marker string) ([]string, error)
	ResolveChannel(ctx context.Context, channelID string) (*Channel, error)
	ResolveUser(ctx context.Context, userID string) (*User, error)
}
