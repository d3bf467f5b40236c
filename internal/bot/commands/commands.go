package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/discord-giveaway-bot/internal/duration"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/giveaway"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/store"
)

// User-facing replies.
const (
	msgUsage            = "Usage: !giveaway <prize> <duration>"
	msgPermissionDenied = "You do not have permission to use this command."
	msgInvalidDuration  = "Invalid duration format! Use formats like `1m` for 1 minute, `10s` for 10 seconds, `1h` for 1 hour, or `2d` for 2 days (max 8 days)."
	msgStarted          = "Giveaway started!"
	msgNoGiveaways      = "No giveaways are running."
)

// Giveaways is the giveaway engine as seen by the command surface.
type Giveaways interface {
	StartGiveaway(ctx context.Context, req giveaway.StartRequest) (*giveaway.Session, error)
	Sessions() []giveaway.SessionInfo
	Record(ctx context.Context, messageID string) (*store.Giveaway, error)
}

// Handlers process Discord interactions and text commands.
type Handlers struct {
	giveaways Giveaways
	prefix    string
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewHandlers creates new command handlers. prefix introduces text commands.
func NewHandlers(giveaways Giveaways, prefix string, logger *slog.Logger, tp trace.TracerProvider) *Handlers {
	return &Handlers{
		giveaways: giveaways,
		prefix:    prefix,
		logger:    logger,
		tracer:    tp.Tracer("github.com/jensholdgaard/discord-giveaway-bot/internal/bot/commands"),
	}
}

// SlashCommands returns the slash command definitions.
func SlashCommands() []*discordgo.ApplicationCommand {
	adminOnly := int64(discordgo.PermissionAdministrator)
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "giveaway",
			Description:              "Start a giveaway in this channel (admin only)",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "prize",
					Description: "What the winner receives",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "duration",
					Description: "How long it runs, e.g. 10s, 5m, 2h, 1d (max 8 days)",
					Required:    true,
				},
			},
		},
		{
			Name:        "giveaway-list",
			Description: "List running giveaways",
		},
		{
			Name:        "giveaway-status",
			Description: "Show the stored state of a giveaway",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "message-id",
					Description: "ID of the giveaway announcement message",
					Required:    true,
				},
			},
		},
	}
}

// invocation is a giveaway start request before validation.
type invocation struct {
	Prize     string
	Duration  string
	GuildID   string
	ChannelID string
	UserID    string
	Admin     bool
}

// startGiveaway validates inv and starts the giveaway. It returns the reply
// to show the invoker.
func (h *Handlers) startGiveaway(ctx context.Context, inv invocation) string {
	if !inv.Admin {
		return msgPermissionDenied
	}
	if strings.TrimSpace(inv.Prize) == "" || strings.TrimSpace(inv.Duration) == "" {
		return msgUsage
	}

	secs, err := giveaway.ParseDuration(inv.Duration)
	if err != nil {
		return msgInvalidDuration
	}

	_, err = h.giveaways.StartGiveaway(ctx, giveaway.StartRequest{
		Prize:     inv.Prize,
		Seconds:   secs,
		GuildID:   inv.GuildID,
		ChannelID: inv.ChannelID,
		HostID:    inv.UserID,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to start giveaway",
			slog.String("prize", inv.Prize),
			slog.String("channel_id", inv.ChannelID),
			slog.Any("error", err),
		)
		switch {
		case errors.Is(err, giveaway.ErrPermissionDenied):
			return "I am missing permissions to post in this channel."
		case errors.Is(err, giveaway.ErrShuttingDown):
			return "The bot is restarting, please try again in a moment."
		default:
			return fmt.Sprintf("Failed to start giveaway: %s", err)
		}
	}
	return msgStarted
}

func (h *Handlers) listGiveaways() string {
	infos := h.giveaways.Sessions()
	if len(infos) == 0 {
		return msgNoGiveaways
	}
	var b strings.Builder
	b.WriteString("**Running giveaways:**\n")
	for idx, info := range infos {
		fmt.Fprintf(&b, "%d. **%s** in <#%s>, ends in %s (%s)\n",
			idx+1, info.Prize, info.ChannelID, duration.Format(info.Remaining), info.State)
	}
	return b.String()
}

func (h *Handlers) giveawayStatus(ctx context.Context, messageID string) string {
	g, err := h.giveaways.Record(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Sprintf("No giveaway found for message `%s`.", messageID)
		}
		return fmt.Sprintf("Error looking up giveaway: %s", err)
	}

	winner := "none"
	if g.WinnerID != nil {
		winner = giveaway.Mention(*g.WinnerID)
	}
	status := "ended"
	if g.Active() {
		status = "ends in " + duration.Format(g.RemainingSeconds)
	}
	return fmt.Sprintf("**%s** in <#%s>: %s. Winner: %s", g.Prize, g.ChannelID, status, winner)
}

// InteractionCreate handles incoming slash command interactions.
func (h *Handlers) InteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()

	ctx, span := h.tracer.Start(context.Background(), "InteractionCreate",
		trace.WithAttributes(attribute.String("command", data.Name)),
	)
	defer span.End()

	switch data.Name {
	case "giveaway":
		h.handleGiveaway(ctx, s, i, data)
	case "giveaway-list":
		respond(s, i, h.listGiveaways())
	case "giveaway-status":
		respond(s, i, h.giveawayStatus(ctx, optionString(data.Options, "message-id")))
	default:
		respond(s, i, "Unknown command")
	}
}

func (h *Handlers) handleGiveaway(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	inv := invocation{
		Prize:     optionString(data.Options, "prize"),
		Duration:  optionString(data.Options, "duration"),
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
	}
	if i.Member != nil {
		inv.UserID = i.Member.User.ID
		inv.Admin = i.Member.Permissions&discordgo.PermissionAdministrator != 0
	}

	// Posting the announcement can outlast the interaction deadline, so the
	// reply is deferred.
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}); err != nil {
		h.logger.ErrorContext(ctx, "failed to defer interaction", slog.Any("error", err))
		return
	}

	reply := h.startGiveaway(ctx, inv)
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &reply}); err != nil {
		h.logger.ErrorContext(ctx, "failed to edit interaction response", slog.Any("error", err))
	}
}

// MessageCreate handles the text form of the giveaway command.
func (h *Handlers) MessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	args, ok := ParseTextCommand(m.Content, h.prefix, "giveaway")
	if !ok {
		return
	}

	ctx, span := h.tracer.Start(context.Background(), "MessageCreate",
		trace.WithAttributes(attribute.String("command", "giveaway")),
	)
	defer span.End()

	inv := invocation{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
	}
	if len(args) >= 2 {
		inv.Prize = strings.Join(args[:len(args)-1], " ")
		inv.Duration = args[len(args)-1]
	}
	perms, err := s.UserChannelPermissions(m.Author.ID, m.ChannelID)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to compute permissions",
			slog.String("user_id", m.Author.ID),
			slog.Any("error", err),
		)
	}
	inv.Admin = perms&discordgo.PermissionAdministrator != 0

	reply := h.startGiveaway(ctx, inv)
	if reply == msgStarted {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		h.logger.ErrorContext(ctx, "failed to reply", slog.Any("error", err))
	}
}

func optionString(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, opt := range opts {
		if opt.Name == name {
			return opt.StringValue()
		}
	}
	return ""
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
		},
	})
}
