package giveaway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/discord-giveaway-bot/internal/event"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/store"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/telemetry"
)

// resolveTimeout bounds resolution once the countdown has reached zero.
const resolveTimeout = time.Minute

// State is the lifecycle state of a Session.
type State int

const (
	StateRunning State = iota
	StateResolving
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateResolving:
		return "resolving"
	case StateEnded:
		return "ended"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is the live countdown and resolution state machine of one
// giveaway. It owns the record keyed by its message ID for as long as it
// runs. It is safe for concurrent use.
type Session struct {
	mu        sync.RWMutex
	state     State
	remaining int
	winnerID  string
	version   int

	record store.Giveaway
	m      *Manager
	logger *slog.Logger
	done   chan struct{}
}

func newSession(m *Manager, rec store.Giveaway, version int) *Session {
	return &Session{
		state:     StateRunning,
		remaining: rec.RemainingSeconds,
		version:   version,
		record:    rec,
		m:         m,
		logger: m.logger.With(
			slog.String("message_id", rec.MessageID),
			slog.String("channel_id", rec.ChannelID),
		),
		done: make(chan struct{}),
	}
}

// MessageID returns the ID of the hosting announcement message.
func (s *Session) MessageID() string { return s.record.MessageID }

// ChannelID returns the ID of the hosting channel.
func (s *Session) ChannelID() string { return s.record.ChannelID }

// Prize returns the prize text.
func (s *Session) Prize() string { return s.record.Prize }

// Remaining returns the working countdown value in seconds.
func (s *Session) Remaining() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remaining
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// WinnerID returns the resolved winner, or "" if none.
func (s *Session) WinnerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.winnerID
}

// Done is closed when the session's run loop exits, either because it
// reached StateEnded or because the manager shut down.
func (s *Session) Done() <-chan struct{} { return s.done }

// run counts down until zero and then resolves the giveaway. A cancelled
// ctx stops the countdown without resolving; the persisted remaining time
// is picked up again by recovery. Once zero is reached, resolution is
// detached from ctx: a record stored at zero is never resumed, so it has to
// finish here.
func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	for s.Remaining() > 0 {
		select {
		case <-ctx.Done():
			s.logger.Info("giveaway session stopped before completion",
				slog.Int("remaining_seconds", s.Remaining()),
			)
			return
		case <-s.m.clock.After(s.m.opts.TickInterval):
		}
		s.tick(ctx)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
	defer cancel()
	s.resolve(ctx)
}

// tick advances the countdown by one interval, refreshes the announcement
// and persists the new remaining time. Neither failure stops the countdown.
func (s *Session) tick(ctx context.Context) {
	step := int(s.m.opts.TickInterval.Seconds())

	s.mu.Lock()
	s.remaining = max(0, s.remaining-step)
	remaining := s.remaining
	s.mu.Unlock()

	if err := s.m.gateway.EditMessage(ctx, s.record.ChannelID, s.record.MessageID,
		s.m.render.running(s.record.Prize, remaining)); err != nil {
		s.logger.WarnContext(ctx, "failed to refresh giveaway countdown", slog.Any("error", err))
	}

	persistCtx := ctx
	if remaining == 0 {
		persistCtx = context.WithoutCancel(ctx)
	}
	if err := s.m.repo.UpdateRemaining(persistCtx, s.record.MessageID, remaining); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist remaining time",
			slog.Int("remaining_seconds", remaining),
			slog.Any("error", fmt.Errorf("%w: %w", ErrPersistence, err)),
		)
	}

	s.m.metrics.ticks.Add(ctx, 1)
}

// resolve runs exactly once, after the countdown reached zero.
func (s *Session) resolve(ctx context.Context) {
	s.setState(StateResolving)

	ctx, span := s.m.tracer.Start(ctx, "Session.resolve",
		trace.WithAttributes(
			attribute.String("giveaway.message_id", s.record.MessageID),
			attribute.String("giveaway.prize", s.record.Prize),
		),
	)
	defer span.End()

	result := s.settle(ctx)
	if result.Error != "" {
		span.SetStatus(codes.Error, result.Error)
	}
	span.SetAttributes(attribute.String("giveaway.outcome", result.Outcome))

	s.appendEvent(ctx, event.GiveawayEnded, result)
	s.m.metrics.resolutions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", result.Outcome)))

	s.setState(StateEnded)
	telemetry.LogWithTrace(ctx, s.logger).InfoContext(ctx, "giveaway ended",
		slog.String("outcome", result.Outcome),
		slog.String("winner_id", result.WinnerID),
		slog.Int("participants", result.Participants),
	)
}

// settle performs the side effects of resolution and reports the outcome.
func (s *Session) settle(ctx context.Context) event.GiveawayEndedData {
	rec := s.record
	r := s.m.render

	if err := s.m.gateway.EditMessage(ctx, rec.ChannelID, rec.MessageID, r.ended(rec.Prize)); err != nil {
		s.logger.WarnContext(ctx, "failed to mark giveaway as ended", slog.Any("error", err))
	}

	participants, err := s.m.gateway.ListMarkerReactors(ctx, rec.ChannelID, rec.MessageID, s.m.opts.Marker)
	if err != nil {
		s.notify(ctx, fmt.Sprintf("Error fetching reactions: %s", err))
		return event.GiveawayEndedData{Outcome: event.OutcomeFailed, Error: err.Error()}
	}

	if len(participants) == 0 {
		s.edit(ctx, r.endedNoWinner(rec.Prize))
		s.notify(ctx, noticeNoParticipants)
		return event.GiveawayEndedData{Outcome: event.OutcomeNoParticipants}
	}

	winnerID, err := s.pickWinner(ctx, participants)
	switch {
	case errors.Is(err, ErrNoEligibleWinner):
		s.edit(ctx, r.endedNoWinner(rec.Prize))
		s.notify(ctx, noticeNoEligibleWinner)
		return event.GiveawayEndedData{Outcome: event.OutcomeNoEligibleWinner, Participants: len(participants)}
	case err != nil:
		s.notify(ctx, fmt.Sprintf("Error announcing the winner: %s", err))
		return event.GiveawayEndedData{Outcome: event.OutcomeFailed, Participants: len(participants), Error: err.Error()}
	}

	s.edit(ctx, r.endedWithWinner(rec.Prize, winnerID))

	s.mu.Lock()
	s.winnerID = winnerID
	s.mu.Unlock()

	if err := s.m.repo.UpdateWinner(ctx, rec.MessageID, winnerID); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist winner",
			slog.String("winner_id", winnerID),
			slog.Any("error", fmt.Errorf("%w: %w", ErrPersistence, err)),
		)
	}

	link := JumpURL(rec.GuildID, rec.ChannelID, rec.MessageID)
	if _, err := s.m.gateway.PostMessage(ctx, rec.ChannelID, r.congratulations(rec.Prize, winnerID, link)); err != nil {
		s.notify(ctx, fmt.Sprintf("Error announcing the winner: %s", err))
	}

	return event.GiveawayEndedData{
		Outcome:      event.OutcomeWinner,
		WinnerID:     winnerID,
		Participants: len(participants),
	}
}

// pickWinner applies the winner policy and confirms the chosen account
// still exists. An account that cannot be resolved is not eligible.
func (s *Session) pickWinner(ctx context.Context, participants []string) (string, error) {
	winnerID, err := s.m.policy.Pick(ctx, participants)
	if err != nil {
		return "", err
	}
	if _, err := s.m.gateway.ResolveUser(ctx, winnerID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", fmt.Errorf("%w: %w", ErrNoEligibleWinner, err)
		}
		return "", err
	}
	return winnerID, nil
}

func (s *Session) edit(ctx context.Context, msg Message) {
	if err := s.m.gateway.EditMessage(ctx, s.record.ChannelID, s.record.MessageID, msg); err != nil {
		s.logger.WarnContext(ctx, "failed to edit giveaway announcement", slog.Any("error", err))
	}
}

// notify posts a plain notice to the giveaway's channel.
func (s *Session) notify(ctx context.Context, text string) {
	if _, err := s.m.gateway.PostMessage(ctx, s.record.ChannelID, Message{Content: text}); err != nil {
		s.logger.ErrorContext(ctx, "failed to post giveaway notice",
			slog.String("notice", text),
			slog.Any("error", err),
		)
	}
}

// appendEvent records a lifecycle event. The event log is an audit trail,
// so failures are logged and otherwise ignored.
func (s *Session) appendEvent(ctx context.Context, t event.Type, payload any) {
	s.mu.Lock()
	s.version++
	version := s.version
	s.mu.Unlock()

	e, err := event.New(s.record.MessageID, t, version, payload)
	if err == nil {
		err = s.m.events.Append(ctx, e)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "failed to record giveaway event",
			slog.String("event_type", string(t)),
			slog.Any("error", err),
		)
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
