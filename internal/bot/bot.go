package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/jensholdgaard/discord-giveaway-bot/internal/bot/commands"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/config"
)

// intents covers slash commands, the text command and reaction listing.
const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsMessageContent

// Bot wraps the Discord session and command handlers.
type Bot struct {
	session *discordgo.Session
	gateway *Gateway
	cfg     config.DiscordConfig
	logger  *slog.Logger
	cmds    []*discordgo.ApplicationCommand
}

// New creates a new Bot instance. The connection is not opened until Start.
func New(cfg config.DiscordConfig, logger *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = intents

	return &Bot{
		session: session,
		gateway: NewGateway(session),
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Gateway returns the messaging gateway bound to the bot's session.
func (b *Bot) Gateway() *Gateway { return b.gateway }

// Start opens the Discord connection, routes events to h and registers
// slash commands.
func (b *Bot) Start(ctx context.Context, h *commands.Handlers) error {
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.logger.InfoContext(ctx, "bot is ready",
			slog.String("user", s.State.User.Username),
			slog.Int("guilds", len(r.Guilds)),
		)
	})

	b.session.AddHandler(h.InteractionCreate)
	b.session.AddHandler(h.MessageCreate)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}

	registered, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.cfg.GuildID, commands.SlashCommands())
	if err != nil {
		_ = b.session.Close()
		return fmt.Errorf("registering slash commands: %w", err)
	}
	b.cmds = registered

	b.logger.InfoContext(ctx, "slash commands registered", slog.Int("count", len(registered)))
	return nil
}

// Stop closes the Discord connection. Slash commands registered for a
// single development guild are removed first.
func (b *Bot) Stop() error {
	if b.cfg.GuildID != "" {
		for _, cmd := range b.cmds {
			if err := b.session.ApplicationCommandDelete(b.session.State.User.ID, b.cfg.GuildID, cmd.ID); err != nil {
				b.logger.Error("failed to delete command", slog.String("command", cmd.Name), slog.Any("error", err))
			}
		}
	}
	return b.session.Close()
}
