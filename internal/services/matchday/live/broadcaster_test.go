package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/matchday/internal/services/matchday/view"
	"golang.org/x/net/websocket"
)

var errUnknownMatch = errors.New("unknown match")

type fakeSource struct {
	mu        sync.Mutex
	snapshots map[int64]Snapshot
	active    int64

	entered chan struct{}
	release chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{snapshots: make(map[int64]Snapshot)}
}

func (f *fakeSource) put(matchID int64, lastEventID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[matchID] = Snapshot{
		Match:       view.Match{ID: matchID, Status: "in_progress"},
		Score:       view.Score{MatchID: matchID, Status: "in_progress"},
		LastEventID: lastEventID,
	}
}

func (f *fakeSource) setActive(matchID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = matchID
}

func (f *fakeSource) MatchSnapshot(_ context.Context, matchID int64) (Snapshot, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot, ok := f.snapshots[matchID]
	if !ok {
		return Snapshot{}, errUnknownMatch
	}
	return snapshot, nil
}

func (f *fakeSource) ActiveMatch(context.Context) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, f.active != 0, nil
}

func next(t *testing.T, stream *Stream) Message {
	t.Helper()
	select {
	case msg := <-stream.Messages():
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func expectNone(t *testing.T, stream *Stream) {
	t.Helper()
	select {
	case msg := <-stream.Messages():
		t.Fatalf("unexpected message %+v", msg)
	case <-time.After(20 * time.Millisecond):
	}
}

func waitDone(t *testing.T, stream *Stream) {
	t.Helper()
	select {
	case <-stream.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stream was not closed")
	}
}

func TestSubscribeStartsWithSnapshot(t *testing.T) {
	source := newFakeSource()
	source.put(1, 0)
	b := NewBroadcaster(source, Config{})

	stream, err := b.Subscribe(context.Background(), 1)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer stream.Close()

	init := next(t, stream)
	if init.Kind != KindInit || init.MatchID != 1 {
		t.Fatalf("first message = %+v, want init for match 1", init)
	}
	if _, ok := init.Payload.(Snapshot); !ok {
		t.Fatalf("init payload = %T, want Snapshot", init.Payload)
	}

	b.Publish(context.Background(), Message{Kind: KindGoal, MatchID: 1, EventID: 1})
	b.Publish(context.Background(), Message{Kind: KindScore, MatchID: 1})
	b.Publish(context.Background(), Message{Kind: KindGoal, MatchID: 2, EventID: 2})

	if got := next(t, stream); got.Kind != KindGoal || got.EventID != 1 {
		t.Fatalf("second message = %+v, want goal 1", got)
	}
	if got := next(t, stream); got.Kind != KindScore {
		t.Fatalf("third message = %+v, want score", got)
	}
	expectNone(t, stream)
}

func TestSubscribeFlushesBacklogAfterSnapshot(t *testing.T) {
	source := newFakeSource()
	source.put(1, 5)
	source.entered = make(chan struct{})
	source.release = make(chan struct{})
	b := NewBroadcaster(source, Config{})

	type result struct {
		stream *Stream
		err    error
	}
	done := make(chan result, 1)
	go func() {
		stream, err := b.Subscribe(context.Background(), 1)
		done <- result{stream, err}
	}()

	<-source.entered
	b.Publish(context.Background(), Message{Kind: KindGoal, MatchID: 1, EventID: 5})
	b.Publish(context.Background(), Message{Kind: KindGoal, MatchID: 1, EventID: 6})
	b.Publish(context.Background(), Message{Kind: KindEventDeleted, MatchID: 1, EventID: 4})
	close(source.release)

	res := <-done
	if res.err != nil {
		t.Fatalf("subscribe: %v", res.err)
	}
	defer res.stream.Close()

	if got := next(t, res.stream); got.Kind != KindInit {
		t.Fatalf("first message = %+v, want init", got)
	}
	if got := next(t, res.stream); got.Kind != KindGoal || got.EventID != 6 {
		t.Fatalf("second message = %+v, want goal 6", got)
	}
	if got := next(t, res.stream); got.Kind != KindEventDeleted || got.EventID != 4 {
		t.Fatalf("third message = %+v, want event_deleted 4", got)
	}
	expectNone(t, res.stream)
}

func TestSubscribeSkipsEventsAlreadyInSnapshot(t *testing.T) {
	source := newFakeSource()
	source.put(1, 5)
	b := NewBroadcaster(source, Config{})

	stream, err := b.Subscribe(context.Background(), 1)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer stream.Close()
	if got := next(t, stream); got.Kind != KindInit {
		t.Fatalf("first message = %+v, want init", got)
	}

	// Committed before the snapshot was read, published after it was sent.
	b.Publish(context.Background(), Message{Kind: KindGoal, MatchID: 1, EventID: 5})
	b.Publish(context.Background(), Message{Kind: KindGoal, MatchID: 1, EventID: 6})

	if got := next(t, stream); got.Kind != KindGoal || got.EventID != 6 {
		t.Fatalf("second message = %+v, want goal 6", got)
	}
	expectNone(t, stream)
}

func TestTickerSkipsEventsInRetargetSnapshot(t *testing.T) {
	source := newFakeSource()
	source.put(1, 4)
	source.put(2, 0)
	source.setActive(2)
	b := NewBroadcaster(source, Config{})

	ticker, err := b.SubscribeTicker(context.Background())
	if err != nil {
		t.Fatalf("subscribe ticker: %v", err)
	}
	defer ticker.Close()
	if got := next(t, ticker); got.Kind != KindInit || got.MatchID != 2 {
		t.Fatalf("first ticker message = %+v, want init 2", got)
	}

	source.setActive(1)
	b.Publish(context.Background(), Message{Kind: KindDeleted, MatchID: 2})
	if got := next(t, ticker); got.Kind != KindDeleted {
		t.Fatalf("ticker message = %+v, want deleted", got)
	}
	if got := next(t, ticker); got.Kind != KindInit || got.MatchID != 1 {
		t.Fatalf("ticker message = %+v, want init 1", got)
	}

	b.Publish(context.Background(), Message{Kind: KindGoal, MatchID: 1, EventID: 4})
	b.Publish(context.Background(), Message{Kind: KindGoal, MatchID: 1, EventID: 5})
	if got := next(t, ticker); got.Kind != KindGoal || got.EventID != 5 {
		t.Fatalf("ticker message = %+v, want goal 5", got)
	}
	expectNone(t, ticker)
}

func TestSubscribeUnknownMatchLeavesNoSubscriber(t *testing.T) {
	b := NewBroadcaster(newFakeSource(), Config{})

	_, err := b.Subscribe(context.Background(), 9)
	if !errors.Is(err, errUnknownMatch) {
		t.Fatalf("expected unknown match error, got %v", err)
	}
	if got := b.SubscriberCount(9); got != 0 {
		t.Fatalf("subscriber count = %d, want 0", got)
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	source := newFakeSource()
	source.put(1, 0)
	b := NewBroadcaster(source, Config{Buffer: 1})

	slow, err := b.Subscribe(context.Background(), 1)
	if err != nil {
		t.Fatalf("subscribe slow: %v", err)
	}
	fast, err := b.Subscribe(context.Background(), 1)
	if err != nil {
		t.Fatalf("subscribe fast: %v", err)
	}
	defer fast.Close()
	next(t, fast)

	b.Publish(context.Background(), Message{Kind: KindScore, MatchID: 1})

	waitDone(t, slow)
	if got := next(t, fast); got.Kind != KindScore {
		t.Fatalf("fast subscriber got %+v, want score", got)
	}
	if got := b.SubscriberCount(1); got != 1 {
		t.Fatalf("subscriber count = %d, want 1", got)
	}
}

func TestCloseIsIdempotentAndPrunes(t *testing.T) {
	source := newFakeSource()
	source.put(1, 0)
	b := NewBroadcaster(source, Config{})

	stream, err := b.Subscribe(context.Background(), 1)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	stream.Close()
	stream.Close()

	waitDone(t, stream)
	if got := b.SubscriberCount(1); got != 0 {
		t.Fatalf("subscriber count = %d, want 0", got)
	}
	b.mu.Lock()
	_, ok := b.matches[1]
	b.mu.Unlock()
	if ok {
		t.Fatal("expected empty match set to be pruned")
	}
	b.Publish(context.Background(), Message{Kind: KindScore, MatchID: 1})
}

func TestContextCancelDeregisters(t *testing.T) {
	source := newFakeSource()
	source.put(1, 0)
	b := NewBroadcaster(source, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := b.Subscribe(ctx, 1)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()

	waitDone(t, stream)
	if got := b.SubscriberCount(1); got != 0 {
		t.Fatalf("subscriber count = %d, want 0", got)
	}
}

func TestTickerFollowsStartedAndFinishedMatches(t *testing.T) {
	source := newFakeSource()
	source.put(1, 0)
	b := NewBroadcaster(source, Config{})

	ticker, err := b.SubscribeTicker(context.Background())
	if err != nil {
		t.Fatalf("subscribe ticker: %v", err)
	}
	defer ticker.Close()
	if got := next(t, ticker); got.Kind != KindInactive {
		t.Fatalf("first ticker message = %+v, want inactive", got)
	}

	source.setActive(1)
	b.Publish(context.Background(), Message{Kind: KindStarted, MatchID: 1})
	if got := next(t, ticker); got.Kind != KindStarted || got.MatchID != 1 {
		t.Fatalf("ticker message = %+v, want started 1", got)
	}
	if got := b.ActiveMatch(); got != 1 {
		t.Fatalf("active match = %d, want 1", got)
	}

	b.Publish(context.Background(), Message{Kind: KindGoal, MatchID: 2, EventID: 3})
	expectNone(t, ticker)

	source.setActive(0)
	b.Publish(context.Background(), Message{Kind: KindFinish, MatchID: 1})
	if got := next(t, ticker); got.Kind != KindFinish {
		t.Fatalf("ticker message = %+v, want finish", got)
	}
	if got := next(t, ticker); got.Kind != KindInactive {
		t.Fatalf("ticker message = %+v, want inactive", got)
	}
	if got := b.ActiveMatch(); got != 0 {
		t.Fatalf("active match = %d, want 0", got)
	}
}

func TestTickerRetargetsToRemainingMatch(t *testing.T) {
	source := newFakeSource()
	source.put(1, 0)
	source.put(2, 0)
	source.setActive(2)
	b := NewBroadcaster(source, Config{})

	ticker, err := b.SubscribeTicker(context.Background())
	if err != nil {
		t.Fatalf("subscribe ticker: %v", err)
	}
	defer ticker.Close()
	if got := next(t, ticker); got.Kind != KindInit || got.MatchID != 2 {
		t.Fatalf("first ticker message = %+v, want init 2", got)
	}

	source.setActive(1)
	b.Publish(context.Background(), Message{Kind: KindDeleted, MatchID: 2})
	if got := next(t, ticker); got.Kind != KindDeleted {
		t.Fatalf("ticker message = %+v, want deleted", got)
	}
	if got := next(t, ticker); got.Kind != KindInit || got.MatchID != 1 {
		t.Fatalf("ticker message = %+v, want init 1", got)
	}
}

func TestRunSendsHeartbeatsAndClosesStreams(t *testing.T) {
	source := newFakeSource()
	source.put(1, 0)
	b := NewBroadcaster(source, Config{Heartbeat: 10 * time.Millisecond})

	stream, err := b.Subscribe(context.Background(), 1)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	next(t, stream)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() {
		runDone <- b.Run(ctx)
	}()

	if got := next(t, stream); got.Kind != KindHeartbeat {
		t.Fatalf("message = %+v, want heartbeat", got)
	}

	cancel()
	if err := <-runDone; err != nil {
		t.Fatalf("run: %v", err)
	}
	waitDone(t, stream)

	if _, err := b.Subscribe(context.Background(), 1); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after shutdown, got %v", err)
	}
}

func TestMatchHandlerWritesJSONFrames(t *testing.T) {
	source := newFakeSource()
	source.put(1, 0)
	b := NewBroadcaster(source, Config{})

	srv := httptest.NewServer(b.MatchHandler(1))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	decoder := json.NewDecoder(conn)

	var frame struct {
		Kind    string          `json:"kind"`
		MatchID int64           `json:"match_id"`
		EventID int64           `json:"event_id"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	if err := decoder.Decode(&frame); err != nil {
		t.Fatalf("decode init frame: %v", err)
	}
	if frame.Kind != string(KindInit) || frame.MatchID != 1 {
		t.Fatalf("init frame = %+v", frame)
	}
	if !strings.Contains(string(frame.Payload), `"last_event_id":0`) {
		t.Fatalf("init payload = %s, expected snapshot", frame.Payload)
	}

	waitFor(t, func() bool { return b.SubscriberCount(1) == 1 })
	b.Publish(context.Background(), Message{Kind: KindGoal, MatchID: 1, EventID: 7})

	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	if err := decoder.Decode(&frame); err != nil {
		t.Fatalf("decode goal frame: %v", err)
	}
	if frame.Kind != string(KindGoal) || frame.EventID != 7 {
		t.Fatalf("goal frame = %+v", frame)
	}

	_ = conn.Close()
	waitFor(t, func() bool { return b.SubscriberCount(1) == 0 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
