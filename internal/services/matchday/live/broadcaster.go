// Package live fans match updates out to connected viewers.
//
// The broadcaster keeps one subscriber set per match plus a ticker set that
// follows the most recently started in-progress match. Delivery is
// best-effort: a subscriber whose buffer is full is dropped and is expected to
// reconnect, which replays a fresh snapshot.
package live

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/louisbranch/matchday/internal/services/matchday/view"
)

const (
	// DefaultHeartbeat is the interval between heartbeat messages.
	DefaultHeartbeat = 15 * time.Second
	// DefaultBuffer is the per-stream message buffer.
	DefaultBuffer = 64
)

// ErrClosed is returned when subscribing after Run has returned.
var ErrClosed = errors.New("broadcaster is closed")

// Kind names a message type on the wire.
type Kind string

const (
	KindInit         Kind = "init"
	KindStarted      Kind = "started"
	KindGoal         Kind = "goal"
	KindSubstitution Kind = "substitution"
	KindEventDeleted Kind = "event_deleted"
	KindTieDecider   Kind = "tie_decider"
	KindScore        Kind = "score"
	KindFinish       Kind = "finish"
	KindDeleted      Kind = "deleted"
	KindInactive     Kind = "inactive"
	KindHeartbeat    Kind = "heartbeat"
)

// Message is one notification. EventID is set for ledger-backed kinds so a
// subscriber can skip rows already included in its snapshot.
type Message struct {
	Kind    Kind      `json:"kind"`
	MatchID int64     `json:"match_id,omitempty"`
	EventID int64     `json:"event_id,omitempty"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// Snapshot is the full state a new subscriber starts from.
type Snapshot struct {
	Match        view.Match         `json:"match"`
	Participants []view.Participant `json:"participants"`
	Events       []view.Event       `json:"events"`
	Score        view.Score         `json:"score"`
	LastEventID  int64              `json:"last_event_id"`
}

// EventUpdate is the payload of ledger notifications.
type EventUpdate struct {
	Event view.Event `json:"event"`
	Score view.Score `json:"score"`
}

// SnapshotSource loads the state subscribers are initialized with.
type SnapshotSource interface {
	MatchSnapshot(ctx context.Context, matchID int64) (Snapshot, error)
	// ActiveMatch returns the most recently started in-progress match.
	ActiveMatch(ctx context.Context) (matchID int64, ok bool, err error)
}

// Config tunes a Broadcaster.
type Config struct {
	Heartbeat time.Duration
	Buffer    int
	Clock     func() time.Time
}

// Broadcaster fans messages out to per-match and ticker subscribers.
type Broadcaster struct {
	source    SnapshotSource
	heartbeat time.Duration
	buffer    int
	clock     func() time.Time

	mu      sync.Mutex
	matches map[int64]map[*Stream]struct{}
	ticker  map[*Stream]struct{}
	active  int64
	closed  bool
}

// NewBroadcaster builds a broadcaster reading snapshots from source.
func NewBroadcaster(source SnapshotSource, config Config) *Broadcaster {
	if config.Heartbeat <= 0 {
		config.Heartbeat = DefaultHeartbeat
	}
	if config.Buffer <= 0 {
		config.Buffer = DefaultBuffer
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &Broadcaster{
		source:    source,
		heartbeat: config.Heartbeat,
		buffer:    config.Buffer,
		clock:     config.Clock,
		matches:   make(map[int64]map[*Stream]struct{}),
		ticker:    make(map[*Stream]struct{}),
	}
}

// Subscribe opens a stream for one match. The first message is an init
// snapshot; notifications published while the snapshot loads follow it.
func (b *Broadcaster) Subscribe(ctx context.Context, matchID int64) (*Stream, error) {
	stream, err := b.register(matchID, false)
	if err != nil {
		return nil, err
	}
	snapshot, err := b.source.MatchSnapshot(ctx, matchID)
	if err != nil {
		stream.Close()
		return nil, err
	}
	b.startStream(stream, Message{Kind: KindInit, MatchID: matchID, Payload: snapshot, At: b.clock()}, snapshot.LastEventID)
	go stream.watch(ctx)
	return stream, nil
}

// SubscribeTicker opens a stream that follows the active match. It starts
// with an init snapshot, or inactive when no match is in progress.
func (b *Broadcaster) SubscribeTicker(ctx context.Context) (*Stream, error) {
	stream, err := b.register(0, true)
	if err != nil {
		return nil, err
	}
	matchID, ok, err := b.source.ActiveMatch(ctx)
	if err != nil {
		stream.Close()
		return nil, err
	}
	if !ok {
		b.startStream(stream, Message{Kind: KindInactive, At: b.clock()}, 0)
		go stream.watch(ctx)
		return stream, nil
	}
	snapshot, err := b.source.MatchSnapshot(ctx, matchID)
	if err != nil {
		stream.Close()
		return nil, err
	}

	b.mu.Lock()
	if b.active == 0 {
		b.active = matchID
	}
	b.mu.Unlock()

	b.startStream(stream, Message{Kind: KindInit, MatchID: matchID, Payload: snapshot, At: b.clock()}, snapshot.LastEventID)
	go stream.watch(ctx)
	return stream, nil
}

// Publish delivers msg to the match's subscribers, and to the ticker when
// the match is the active one. It never blocks on a subscriber.
func (b *Broadcaster) Publish(ctx context.Context, msg Message) {
	if msg.At.IsZero() {
		msg.At = b.clock()
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if msg.Kind == KindStarted && msg.MatchID != 0 {
		b.active = msg.MatchID
	}
	b.fanoutLocked(b.matches[msg.MatchID], msg)
	toTicker := msg.MatchID != 0 && msg.MatchID == b.active
	if toTicker {
		b.fanoutLocked(b.ticker, msg)
	}
	b.mu.Unlock()

	if toTicker && (msg.Kind == KindFinish || msg.Kind == KindDeleted) {
		b.retarget(ctx, msg.MatchID)
	}
}

// Run sends heartbeats until ctx ends, then closes every stream.
func (b *Broadcaster) Run(ctx context.Context) error {
	if matchID, ok, err := b.source.ActiveMatch(ctx); err != nil {
		log.Printf("live: load active match: %v", err)
	} else if ok {
		b.mu.Lock()
		if b.active == 0 {
			b.active = matchID
		}
		b.mu.Unlock()
	}

	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.shutdown()
			return nil
		case <-ticker.C:
			b.beat()
		}
	}
}

// SubscriberCount returns the number of open streams for a match.
func (b *Broadcaster) SubscriberCount(matchID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.matches[matchID])
}

// TickerCount returns the number of open ticker streams.
func (b *Broadcaster) TickerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ticker)
}

// ActiveMatch returns the match the ticker follows, or 0.
func (b *Broadcaster) ActiveMatch() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

func (b *Broadcaster) register(matchID int64, ticker bool) (*Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	stream := newStream(b, matchID, ticker, b.buffer)
	if ticker {
		b.ticker[stream] = struct{}{}
		return stream, nil
	}
	set, ok := b.matches[matchID]
	if !ok {
		set = make(map[*Stream]struct{})
		b.matches[matchID] = set
	}
	set[stream] = struct{}{}
	return stream, nil
}

func (b *Broadcaster) startStream(stream *Stream, init Message, lastEventID int64) {
	if !stream.start(init, lastEventID) {
		b.drop(stream, "backlog overflow")
	}
}

// retarget moves the ticker off a match that stopped being live.
func (b *Broadcaster) retarget(ctx context.Context, previous int64) {
	next, ok, err := b.source.ActiveMatch(ctx)
	if err != nil {
		log.Printf("live: retarget ticker after match=%d: %v", previous, err)
		return
	}
	msg := Message{Kind: KindInactive, At: b.clock()}
	if ok {
		snapshot, err := b.source.MatchSnapshot(ctx, next)
		if err != nil {
			log.Printf("live: retarget ticker to match=%d: %v", next, err)
			return
		}
		msg = Message{Kind: KindInit, MatchID: next, Payload: snapshot, At: b.clock()}
	} else {
		next = 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.active != previous {
		return
	}
	b.active = next
	b.fanoutLocked(b.ticker, msg)
}

func (b *Broadcaster) beat() {
	msg := Message{Kind: KindHeartbeat, At: b.clock()}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, set := range b.matches {
		b.fanoutLocked(set, msg)
	}
	b.fanoutLocked(b.ticker, msg)
}

// fanoutLocked delivers msg to every stream in set and drops the ones whose
// buffer is full. Callers hold b.mu.
func (b *Broadcaster) fanoutLocked(set map[*Stream]struct{}, msg Message) {
	var slow []*Stream
	for stream := range set {
		if !stream.deliver(msg) {
			slow = append(slow, stream)
		}
	}
	for _, stream := range slow {
		log.Printf("live: dropping slow subscriber stream=%s match=%d kind=%s", stream.ID, stream.matchID, msg.Kind)
		b.removeLocked(stream)
		stream.finish()
	}
}

func (b *Broadcaster) drop(stream *Stream, reason string) {
	log.Printf("live: dropping subscriber stream=%s match=%d reason=%q", stream.ID, stream.matchID, reason)
	stream.Close()
}

func (b *Broadcaster) remove(stream *Stream) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(stream)
}

func (b *Broadcaster) removeLocked(stream *Stream) {
	if stream.ticker {
		delete(b.ticker, stream)
		return
	}
	set, ok := b.matches[stream.matchID]
	if !ok {
		return
	}
	delete(set, stream)
	if len(set) == 0 {
		delete(b.matches, stream.matchID)
	}
}

func (b *Broadcaster) shutdown() {
	b.mu.Lock()
	b.closed = true
	streams := make([]*Stream, 0, len(b.ticker))
	for _, set := range b.matches {
		for stream := range set {
			streams = append(streams, stream)
		}
	}
	for stream := range b.ticker {
		streams = append(streams, stream)
	}
	b.matches = make(map[int64]map[*Stream]struct{})
	b.ticker = make(map[*Stream]struct{})
	b.mu.Unlock()

	for _, stream := range streams {
		stream.finish()
	}
}
