package live

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/louisbranch/matchday/internal/platform/timeouts"
	"golang.org/x/net/websocket"
)

// MatchHandler serves a websocket stream for one match.
func (b *Broadcaster) MatchHandler(matchID int64) http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		b.serveConn(conn, func(ctx context.Context) (*Stream, error) {
			return b.Subscribe(ctx, matchID)
		})
	})
}

// TickerHandler serves a websocket stream that follows the active match.
func (b *Broadcaster) TickerHandler() http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		b.serveConn(conn, b.SubscribeTicker)
	})
}

type wsPeer struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	encoder *json.Encoder
}

// writeMessage drops viewers that cannot take a frame within ViewerWrite.
func (p *wsPeer) writeMessage(msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.conn.SetWriteDeadline(time.Now().Add(timeouts.ViewerWrite)); err != nil {
		return err
	}
	return p.encoder.Encode(msg)
}

func (b *Broadcaster) serveConn(conn *websocket.Conn, subscribe func(context.Context) (*Stream, error)) {
	defer func() {
		_ = conn.Close()
	}()

	parent := context.Background()
	if request := conn.Request(); request != nil {
		parent = request.Context()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	peer := &wsPeer{conn: conn, encoder: json.NewEncoder(conn)}
	stream, err := subscribe(ctx)
	if err != nil {
		log.Printf("live: subscribe failed remote=%s err=%v", remoteAddr(conn), err)
		_ = peer.writeMessage(Message{Kind: "error", Payload: map[string]string{"message": err.Error()}, At: b.clock()})
		return
	}
	defer stream.Close()

	// Viewers never send anything meaningful; reading only detects close.
	go func() {
		defer cancel()
		_, _ = io.Copy(io.Discard, conn)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stream.Done():
			return
		case msg := <-stream.Messages():
			if err := peer.writeMessage(msg); err != nil {
				log.Printf("live: write failed stream=%s remote=%s err=%v", stream.ID, remoteAddr(conn), err)
				return
			}
		}
	}
}

func remoteAddr(conn *websocket.Conn) string {
	if request := conn.Request(); request != nil {
		return request.RemoteAddr
	}
	return ""
}
