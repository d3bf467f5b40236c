package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/jensholdgaard/discord-giveaway-bot/internal/giveaway"
)

// reactionPageSize is the largest page the reactions endpoint returns.
const reactionPageSize = 100

// discordAPI is the subset of *discordgo.Session the gateway calls.
type discordAPI interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	MessageReactions(channelID, messageID, emojiID string, limit int, beforeID, afterID string, options ...discordgo.RequestOption) ([]*discordgo.User, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
}

// Gateway implements giveaway.Gateway on a Discord session.
type Gateway struct {
	api   discordAPI
	state *discordgo.State
}

var _ giveaway.Gateway = (*Gateway)(nil)

// NewGateway returns a Gateway backed by s. s.State is used as a read-through
// cache for channels and to identify the bot's own account.
func NewGateway(s *discordgo.Session) *Gateway {
	return &Gateway{api: s, state: s.State}
}

func (g *Gateway) PostMessage(ctx context.Context, channelID string, msg giveaway.Message) (string, error) {
	send := &discordgo.MessageSend{Content: msg.Content}
	if msg.Embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{toEmbed(msg.Embed)}
	}
	m, err := g.api.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
	if err != nil {
		return "", mapError(err, giveaway.ErrChannelNotFound)
	}
	return m.ID, nil
}

func (g *Gateway) EditMessage(ctx context.Context, channelID, messageID string, msg giveaway.Message) error {
	edit := discordgo.NewMessageEdit(channelID, messageID)
	if msg.Content != "" {
		edit.SetContent(msg.Content)
	}
	if msg.Embed != nil {
		edit.SetEmbed(toEmbed(msg.Embed))
	}
	if _, err := g.api.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return mapError(err, giveaway.ErrMessageNotFound)
	}
	return nil
}

func (g *Gateway) AddMarker(ctx context.Context, channelID, messageID, marker string) error {
	if err := g.api.MessageReactionAdd(channelID, messageID, marker, discordgo.WithContext(ctx)); err != nil {
		return mapError(err, giveaway.ErrMessageNotFound)
	}
	return nil
}

func (g *Gateway) ListMarkerReactors(ctx context.Context, channelID, messageID, marker string) ([]string, error) {
	self := g.selfID()

	var ids []string
	afterID := ""
	for {
		page, err := g.api.MessageReactions(channelID, messageID, marker, reactionPageSize, "", afterID,
			discordgo.WithContext(ctx))
		if err != nil {
			return nil, mapError(err, giveaway.ErrMessageNotFound)
		}
		for _, u := range page {
			if u.Bot || u.ID == self {
				continue
			}
			ids = append(ids, u.ID)
		}
		if len(page) < reactionPageSize {
			return ids, nil
		}
		afterID = page[len(page)-1].ID
	}
}

func (g *Gateway) ResolveChannel(ctx context.Context, channelID string) (*giveaway.Channel, error) {
	if g.state != nil {
		if ch, err := g.state.Channel(channelID); err == nil {
			return toChannel(ch), nil
		}
	}
	ch, err := g.api.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err, giveaway.ErrChannelNotFound)
	}
	return toChannel(ch), nil
}

func (g *Gateway) ResolveUser(ctx context.Context, userID string) (*giveaway.User, error) {
	u, err := g.api.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err, giveaway.ErrUserNotFound)
	}
	return &giveaway.User{ID: u.ID, Username: u.Username, Bot: u.Bot}, nil
}

func (g *Gateway) selfID() string {
	if g.state == nil || g.state.User == nil {
		return ""
	}
	return g.state.User.ID
}

func toEmbed(e *giveaway.Embed) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	if e.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: e.ImageURL}
	}
	if e.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	return embed
}

func toChannel(ch *discordgo.Channel) *giveaway.Channel {
	return &giveaway.Channel{ID: ch.ID, GuildID: ch.GuildID, Name: ch.Name}
}

// mapError translates a discordgo failure into the giveaway error
// vocabulary. notFound is used for a bare 404 without a JSON error code.
func mapError(err error, notFound error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil {
			switch restErr.Message.Code {
			case discordgo.ErrCodeUnknownMessage:
				return fmt.Errorf("%w: %w", giveaway.ErrMessageNotFound, err)
			case discordgo.ErrCodeUnknownChannel:
				return fmt.Errorf("%w: %w", giveaway.ErrChannelNotFound, err)
			case discordgo.ErrCodeUnknownUser, discordgo.ErrCodeUnknownMember:
				return fmt.Errorf("%w: %w", giveaway.ErrUserNotFound, err)
			case discordgo.ErrCodeMissingAccess, discordgo.ErrCodeMissingPermissions:
				return fmt.Errorf("%w: %w", giveaway.ErrPermissionDenied, err)
			}
		}
		if restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %w", notFound, err)
		}
	}
	return fmt.Errorf("%w: %w", giveaway.ErrGatewayUnavailable, err)
}
