package giveaway_test

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/jensholdgaard/discord-giveaway-bot/internal/event"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/giveaway"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/store"
)

// --- mock helpers ---

type posted struct {
	ChannelID string
	MessageID string
	Msg       giveaway.Message
}

type edited struct {
	ChannelID string
	MessageID string
	Msg       giveaway.Message
}

type fakeGateway struct {
	mu     sync.Mutex
	nextID int
	posts  []posted
	edits  []edited

	postErr     error
	markerErr   error
	reactors    []string
	reactorsErr error
	channels    map[string]*giveaway.Channel
	missingUser map[string]bool
	// editErrs fails every edit of the keyed message.
	editErrs map[string]error
	// onEdit runs after an edit is recorded, outside the lock.
	onEdit func(ctx context.Context, msg giveaway.Message)
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		channels:    map[string]*giveaway.Channel{},
		missingUser: map[string]bool{},
		editErrs:    map[string]error{},
	}
}

func (g *fakeGateway) PostMessage(ctx context.Context, channelID string, msg giveaway.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.postErr != nil {
		return "", g.postErr
	}
	g.nextID++
	id := "msg-" + strconv.Itoa(g.nextID)
	g.posts = append(g.posts, posted{ChannelID: channelID, MessageID: id, Msg: msg})
	return id, nil
}

func (g *fakeGateway) EditMessage(ctx context.Context, channelID, messageID string, msg giveaway.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	if err := g.editErrs[messageID]; err != nil {
		g.mu.Unlock()
		return err
	}
	g.edits = append(g.edits, edited{ChannelID: channelID, MessageID: messageID, Msg: msg})
	hook := g.onEdit
	g.mu.Unlock()

	if hook != nil {
		hook(ctx, msg)
	}
	return ctx.Err()
}

func (g *fakeGateway) AddMarker(context.Context, string, string, string) error {
	return g.markerErr
}

func (g *fakeGateway) ListMarkerReactors(ctx context.Context, _, _, _ string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reactorsErr != nil {
		return nil, g.reactorsErr
	}
	return slices.Clone(g.reactors), nil
}

func (g *fakeGateway) ResolveChannel(_ context.Context, channelID string) (*giveaway.Channel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.channels[channelID]
	if !ok {
		return nil, giveaway.ErrChannelNotFound
	}
	return ch, nil
}

func (g *fakeGateway) ResolveUser(_ context.Context, userID string) (*giveaway.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.missingUser[userID] {
		return nil, giveaway.ErrUserNotFound
	}
	return &giveaway.User{ID: userID, Username: "user-" + userID}, nil
}

func (g *fakeGateway) Posts() []posted {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.posts)
}

func (g *fakeGateway) Edits() []edited {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.edits)
}

// noticePosted reports whether a plain notice with exactly text was posted.
func (g *fakeGateway) noticePosted(text string) bool {
	for _, p := range g.Posts() {
		if p.Msg.Embed == nil && p.Msg.Content == text {
			return true
		}
	}
	return false
}

type fakeRepo struct {
	mu          sync.Mutex
	records     map[string]*store.Giveaway
	remaining   map[string][]int
	winnerCalls map[string]int
	createErr   error
	updateErr   error
	listErr     error
	nextID      int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		records:     map[string]*store.Giveaway{},
		remaining:   map[string][]int{},
		winnerCalls: map[string]int{},
	}
}

func (r *fakeRepo) Create(_ context.Context, g *store.Giveaway) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.records[g.MessageID]; ok {
		return store.ErrDuplicate
	}
	r.nextID++
	g.ID = strconv.Itoa(r.nextID)
	cp := *g
	r.records[g.MessageID] = &cp
	return nil
}

func (r *fakeRepo) UpdateRemaining(ctx context.Context, messageID string, remaining int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	r.remaining[messageID] = append(r.remaining[messageID], remaining)
	g, ok := r.records[messageID]
	if !ok || remaining > g.RemainingSeconds {
		return nil
	}
	g.RemainingSeconds = remaining
	return nil
}

func (r *fakeRepo) UpdateWinner(ctx context.Context, messageID, winnerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.winnerCalls[messageID]++
	if g, ok := r.records[messageID]; ok {
		w := winnerID
		g.WinnerID = &w
	}
	return nil
}

func (r *fakeRepo) ListActive(context.Context) ([]store.Giveaway, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []store.Giveaway
	for _, g := range r.records {
		if g.Active() {
			out = append(out, *g)
		}
	}
	slices.SortFunc(out, func(a, b store.Giveaway) int {
		if a.MessageID < b.MessageID {
			return -1
		}
		if a.MessageID > b.MessageID {
			return 1
		}
		return 0
	})
	return out, nil
}

func (r *fakeRepo) GetByMessageID(_ context.Context, messageID string) (*store.Giveaway, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.records[messageID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (r *fakeRepo) seed(g store.Giveaway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[g.MessageID] = &g
}

func (r *fakeRepo) Remaining(messageID string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.remaining[messageID])
}

func (r *fakeRepo) WinnerCalls(messageID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.winnerCalls[messageID]
}

func (r *fakeRepo) Record(messageID string) store.Giveaway {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.records[messageID]
}

type mockEventStore struct {
	mu     sync.Mutex
	events []event.Event
}

func (m *mockEventStore) Append(_ context.Context, events ...event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *mockEventStore) Load(_ context.Context, aggregateID string) ([]event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []event.Event
	for _, e := range m.events {
		if e.AggregateID == aggregateID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockEventStore) LoadByType(_ context.Context, eventType event.Type) ([]event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []event.Event
	for _, e := range m.events {
		if e.Type == eventType {
			result = append(result, e)
		}
	}
	return result, nil
}

// stallClock never fires, keeping sessions in their countdown.
type stallClock struct{}

func (stallClock) Now() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }

func (stallClock) After(time.Duration) <-chan time.Time { return make(chan time.Time) }

func waitDone(s *giveaway.Session) error {
	select {
	case <-s.Done():
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("session %s did not finish", s.MessageID())
	}
}
