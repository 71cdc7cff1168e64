package live

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Stream is one subscriber's view of the broadcast. Read Messages until Done
// is closed.
type Stream struct {
	ID string

	b       *Broadcaster
	matchID int64
	ticker  bool
	ch      chan Message
	done    chan struct{}

	mu       sync.Mutex
	pending  bool
	backlog  []Message
	finished bool
	once     sync.Once

	// The latest snapshot sent: ledger rows up to seenEventID of seenMatch
	// are already on the viewer's side.
	seenMatch   int64
	seenEventID int64
}

func newStream(b *Broadcaster, matchID int64, ticker bool, buffer int) *Stream {
	return &Stream{
		ID:      uuid.NewString(),
		b:       b,
		matchID: matchID,
		ticker:  ticker,
		ch:      make(chan Message, buffer),
		done:    make(chan struct{}),
		pending: true,
	}
}

// Messages returns the delivery channel. It is never closed; select on Done.
func (s *Stream) Messages() <-chan Message {
	return s.ch
}

// Done is closed once the stream stops receiving.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Close deregisters the stream. It is safe to call more than once.
func (s *Stream) Close() {
	s.b.remove(s)
	s.finish()
}

func (s *Stream) finish() {
	s.once.Do(func() {
		s.mu.Lock()
		s.finished = true
		s.backlog = nil
		s.mu.Unlock()
		close(s.done)
	})
}

// start sends init followed by the backlog collected while the snapshot
// loaded. Ledger notifications already covered by a snapshot are skipped,
// now and for the rest of the stream.
func (s *Stream) start(init Message, lastEventID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return true
	}
	backlog := s.backlog
	s.backlog = nil
	s.pending = false

	s.seenMatch, s.seenEventID = init.MatchID, lastEventID
	if !s.send(init) {
		return false
	}
	for _, msg := range backlog {
		if !s.forward(msg) {
			return false
		}
	}
	return true
}

// deliver queues msg. It reports false when the buffer is full.
func (s *Stream) deliver(msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return true
	}
	if s.pending {
		s.backlog = append(s.backlog, msg)
		return true
	}
	return s.forward(msg)
}

// forward sends msg unless the last snapshot already holds it. A fresh init,
// as sent when the ticker retargets, replaces that snapshot. Callers hold mu.
func (s *Stream) forward(msg Message) bool {
	if msg.Kind == KindInit {
		if snapshot, ok := msg.Payload.(Snapshot); ok {
			s.seenMatch, s.seenEventID = msg.MatchID, snapshot.LastEventID
		}
	} else if covered(msg, s.seenMatch, s.seenEventID) {
		return true
	}
	return s.send(msg)
}

func (s *Stream) send(msg Message) bool {
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

func (s *Stream) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		s.Close()
	case <-s.done:
	}
}

func covered(msg Message, matchID int64, lastEventID int64) bool {
	if msg.MatchID != matchID || msg.EventID == 0 {
		return false
	}
	switch msg.Kind {
	case KindGoal, KindSubstitution, KindTieDecider:
		return msg.EventID <= lastEventID
	default:
		return false
	}
}
