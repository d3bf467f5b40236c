package giveaway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/discord-giveaway-bot/internal/clock"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/duration"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/event"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/store"
)

const instrumentationName = "github.com/jensholdgaard/discord-giveaway-bot/internal/giveaway"

// Options tune session behavior.
type Options struct {
	// TickInterval is the countdown cadence. Whole seconds only.
	TickInterval time.Duration
	// Marker is the reaction participants add to enter.
	Marker string
	// BannerURL is an optional image shown on the announcement.
	BannerURL string
}

// StartRequest carries the validated arguments of a new giveaway.
type StartRequest struct {
	Prize     string
	Seconds   int
	GuildID   string
	ChannelID string
	HostID    string
}

// SessionInfo is a point-in-time view of a live session.
type SessionInfo struct {
	MessageID string
	ChannelID string
	Prize     string
	Remaining int
	State     State
}

// Manager starts, tracks and recovers giveaway sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool

	repo    store.GiveawayRepository
	events  event.Store
	gateway Gateway
	policy  WinnerPolicy
	opts    Options
	render  renderer
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *metrics
	clock   clock.Clock

	// ctx bounds every session goroutine; cancel stops them on Shutdown.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a new giveaway Manager.
func NewManager(
	repo store.GiveawayRepository,
	events event.Store,
	gw Gateway,
	policy WinnerPolicy,
	opts Options,
	logger *slog.Logger,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	clk clock.Clock,
) (*Manager, error) {
	if opts.TickInterval < time.Second || opts.TickInterval%time.Second != 0 {
		return nil, fmt.Errorf("tick interval %s must be a whole number of seconds, at least 1s", opts.TickInterval)
	}
	if opts.Marker == "" {
		return nil, fmt.Errorf("marker must not be empty")
	}

	mtr, err := newMetrics(mp.Meter(instrumentationName))
	if err != nil {
		return nil, fmt.Errorf("creating giveaway metrics: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		sessions: make(map[string]*Session),
		repo:     repo,
		events:   events,
		gateway:  gw,
		policy:   policy,
		opts:     opts,
		render:   renderer{marker: opts.Marker, banner: opts.BannerURL},
		logger:   logger,
		tracer:   tp.Tracer(instrumentationName),
		metrics:  mtr,
		clock:    clk,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// ParseDuration parses organizer input and enforces the accepted range
// (0, duration.MaxSeconds]. Callers run it before StartGiveaway so invalid
// input never reaches the store.
func ParseDuration(text string) (int, error) {
	secs, err := duration.Parse(text)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidDuration, err)
	}
	if secs <= 0 || secs > duration.MaxSeconds {
		return 0, fmt.Errorf("%w: %d seconds", ErrDurationOutOfRange, secs)
	}
	return secs, nil
}

// StartGiveaway posts the announcement, persists the record and starts the
// countdown. The returned Session is already running.
func (m *Manager) StartGiveaway(ctx context.Context, req StartRequest) (*Session, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.StartGiveaway",
		trace.WithAttributes(
			attribute.String("giveaway.prize", req.Prize),
			attribute.String("giveaway.channel_id", req.ChannelID),
			attribute.Int("giveaway.seconds", req.Seconds),
		),
	)
	defer span.End()

	if strings.TrimSpace(req.Prize) == "" {
		return nil, ErrEmptyPrize
	}
	if req.Seconds <= 0 || req.Seconds > duration.MaxSeconds {
		return nil, fmt.Errorf("%w: %d seconds", ErrDurationOutOfRange, req.Seconds)
	}
	if m.isClosed() {
		return nil, ErrShuttingDown
	}

	if _, err := m.gateway.PostMessage(ctx, req.ChannelID, m.render.header()); err != nil {
		return nil, fmt.Errorf("posting giveaway header: %w", err)
	}

	messageID, err := m.gateway.PostMessage(ctx, req.ChannelID, m.render.running(req.Prize, req.Seconds))
	if err != nil {
		return nil, fmt.Errorf("posting giveaway announcement: %w", err)
	}

	if err := m.gateway.AddMarker(ctx, req.ChannelID, messageID, m.opts.Marker); err != nil {
		m.logger.WarnContext(ctx, "failed to add opt-in marker",
			slog.String("message_id", messageID),
			slog.Any("error", err),
		)
	}

	rec := &store.Giveaway{
		Prize:            req.Prize,
		GuildID:          req.GuildID,
		ChannelID:        req.ChannelID,
		MessageID:        messageID,
		HostID:           req.HostID,
		RemainingSeconds: req.Seconds,
	}
	if err := m.repo.Create(ctx, rec); err != nil {
		if editErr := m.gateway.EditMessage(ctx, req.ChannelID, messageID, m.render.failedToStart(req.Prize)); editErr != nil {
			m.logger.WarnContext(ctx, "failed to withdraw unsaved giveaway", slog.Any("error", editErr))
		}
		return nil, fmt.Errorf("%w: creating giveaway record: %w", ErrPersistence, err)
	}

	s := newSession(m, *rec, 0)
	s.appendEvent(ctx, event.GiveawayStarted, event.GiveawayStartedData{
		Prize:     req.Prize,
		ChannelID: req.ChannelID,
		HostID:    req.HostID,
		Seconds:   req.Seconds,
	})

	if err := m.launch(ctx, s); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "giveaway started",
		slog.String("giveaway_id", rec.ID),
		slog.String("message_id", messageID),
		slog.String("prize", req.Prize),
		slog.Int("seconds", req.Seconds),
	)
	return s, nil
}

// Recover resumes every persisted giveaway that still has time left. It
// must run after the gateway is connected. Records whose channel or message
// can no longer be reached are skipped. It returns the number of sessions
// resumed.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Recover")
	defer span.End()

	records, err := m.repo.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: listing active giveaways: %w", ErrPersistence, err)
	}

	resumed := 0
	for _, rec := range records {
		if err := m.resume(ctx, rec); err != nil {
			m.logger.WarnContext(ctx, "skipping giveaway during recovery",
				slog.String("giveaway_id", rec.ID),
				slog.String("message_id", rec.MessageID),
				slog.String("channel_id", rec.ChannelID),
				slog.Any("error", err),
			)
			continue
		}
		resumed++

		m.logger.InfoContext(ctx, "resumed giveaway",
			slog.String("giveaway_id", rec.ID),
			slog.String("message_id", rec.MessageID),
			slog.String("prize", rec.Prize),
			slog.Int("remaining_seconds", rec.RemainingSeconds),
		)
	}

	span.SetAttributes(
		attribute.Int("giveaway.active_records", len(records)),
		attribute.Int("giveaway.resumed", resumed),
	)
	m.logger.InfoContext(ctx, "giveaway recovery complete",
		slog.Int("active_records", len(records)),
		slog.Int("resumed", resumed),
	)
	return resumed, nil
}

func (m *Manager) resume(ctx context.Context, rec store.Giveaway) error {
	if !rec.Active() {
		return fmt.Errorf("giveaway has no time left")
	}
	if m.Session(rec.MessageID) != nil {
		return ErrAlreadyRunning
	}

	ch, err := m.gateway.ResolveChannel(ctx, rec.ChannelID)
	if err != nil {
		return fmt.Errorf("resolving channel: %w", err)
	}
	if rec.GuildID == "" {
		rec.GuildID = ch.GuildID
	}

	if err := m.gateway.EditMessage(ctx, rec.ChannelID, rec.MessageID,
		m.render.running(rec.Prize, rec.RemainingSeconds)); err != nil {
		return fmt.Errorf("re-synchronizing announcement: %w", err)
	}

	s := newSession(m, rec, m.lastVersion(ctx, rec.MessageID))
	s.appendEvent(ctx, event.GiveawayResumed, event.GiveawayResumedData{
		RemainingSeconds: rec.RemainingSeconds,
	})
	return m.launch(ctx, s)
}

// lastVersion returns the highest event version recorded for a giveaway so
// a resumed session continues the sequence.
func (m *Manager) lastVersion(ctx context.Context, messageID string) int {
	events, err := m.events.Load(ctx, messageID)
	if err != nil {
		m.logger.WarnContext(ctx, "failed to load giveaway events",
			slog.String("message_id", messageID),
			slog.Any("error", err),
		)
		return 0
	}
	last := 0
	for _, e := range events {
		last = max(last, e.Version)
	}
	return last
}

// launch registers s and starts its run loop.
func (m *Manager) launch(ctx context.Context, s *Session) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrShuttingDown
	}
	if _, ok := m.sessions[s.MessageID()]; ok {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.sessions[s.MessageID()] = s
	m.wg.Add(1)
	m.mu.Unlock()

	m.metrics.active.Add(ctx, 1)

	go func() {
		defer m.wg.Done()
		s.run(m.ctx)
		m.forget(s)
	}()
	return nil
}

func (m *Manager) forget(s *Session) {
	m.mu.Lock()
	if cur, ok := m.sessions[s.MessageID()]; ok && cur == s {
		delete(m.sessions, s.MessageID())
	}
	m.mu.Unlock()
	m.metrics.active.Add(context.Background(), -1)
}

// Session returns the live session hosted by messageID, or nil.
func (m *Manager) Session(messageID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[messageID]
}

// Sessions returns a snapshot of all live sessions, soonest to end first.
func (m *Manager) Sessions() []SessionInfo {
	m.mu.RLock()
	infos := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, SessionInfo{
			MessageID: s.MessageID(),
			ChannelID: s.ChannelID(),
			Prize:     s.Prize(),
			Remaining: s.Remaining(),
			State:     s.State(),
		})
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Remaining != infos[j].Remaining {
			return infos[i].Remaining < infos[j].Remaining
		}
		return infos[i].MessageID < infos[j].MessageID
	})
	return infos
}

// Record returns the persisted record of a giveaway.
func (m *Manager) Record(ctx context.Context, messageID string) (*store.Giveaway, error) {
	g, err := m.repo.GetByMessageID(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return g, nil
}

// Shutdown stops every running session without resolving it and waits for
// their goroutines to exit or ctx to expire. Stopped sessions keep their
// last persisted remaining time and are resumed by the next Recover.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for giveaway sessions: %w", ctx.Err())
	}
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
