// Package realtime maintains the single long-lived websocket connection over
// which the ERP backend pushes session invalidation signals. The listener is
// owned by the application root and injected into whoever needs it; no guard
// instance ever creates or tears one down.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/evoquefitness/access-gateway/internal/api/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	reconnectAttempts = 10
	reconnectDelay    = time.Second
)

const (
	eventLogout   = "auth:logout"
	eventRefresh  = "auth:refresh"
	eventIdentify = "identify"
)

// frame is the JSON envelope exchanged on the channel.
type frame struct {
	Event  string `json:"event"`
	UserID string `json:"user_id,omitempty"`
}

// Handler receives the invalidation signals. HandleRevoked must act
// unconditionally and synchronously with receipt; HandleProfileChanged may
// debounce.
type Handler interface {
	HandleRevoked(ctx context.Context, userID string, at time.Time)
	HandleProfileChanged(ctx context.Context, userID string)
}

// Listener owns the process-wide realtime connection.
type Listener struct {
	url     string
	handler Handler
	log     zerolog.Logger

	mu        sync.Mutex
	announced map[string]struct{}
	conn      *websocket.Conn

	// writeMu serialises writes; gorilla connections allow one writer only.
	writeMu sync.Mutex

	startOnce sync.Once
}

// NewListener creates a Listener for the given websocket URL. Start must be
// called to open the connection.
func NewListener(url string, handler Handler, log zerolog.Logger) *Listener {
	return &Listener{
		url:       url,
		handler:   handler,
		log:       log,
		announced: make(map[string]struct{}),
	}
}

// Start opens the connection and runs the read loop until ctx is cancelled.
// It is idempotent: only the first call has any effect, so two components
// sharing the listener can both try to start it safely.
func (l *Listener) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		go l.run(ctx)
	})
}

// Announce registers a user id with the server so invalidation frames for it
// are delivered here. Safe to call before the connection is up: ids are
// re-announced on every (re)connect.
func (l *Listener) Announce(userID string) {
	if userID == "" {
		return
	}
	l.mu.Lock()
	l.announced[userID] = struct{}{}
	conn := l.conn
	l.mu.Unlock()

	if conn != nil {
		l.send(conn, frame{Event: eventIdentify, UserID: userID})
	}
}

// run keeps the connection alive: dial with bounded retries, pump until the
// connection drops, repeat. While disconnected no invalidation signals can
// arrive; stale permissions until reconnect is the accepted tradeoff.
func (l *Listener) run(ctx context.Context) {
	for ctx.Err() == nil {
		conn, err := l.dial(ctx)
		if err != nil {
			l.log.Error().Err(err).Msg("realtime channel unreachable, giving up until next start")
			return
		}

		metrics.RealtimeReconnectsTotal.Inc()
		l.identifyAll(conn)
		l.pump(ctx, conn)

		l.mu.Lock()
		l.conn = nil
		l.mu.Unlock()
		_ = conn.Close()

		if ctx.Err() == nil {
			l.log.Warn().Msg("realtime connection dropped, reconnecting")
		}
	}
}

// dial connects with bounded exponential backoff.
func (l *Listener) dial(ctx context.Context) (*websocket.Conn, error) {
	var conn *websocket.Conn
	err := retry.Do(
		func() error {
			c, _, err := websocket.DefaultDialer.DialContext(ctx, l.url, nil)
			if err != nil {
				return err
			}
			conn = c
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(reconnectAttempts),
		retry.Delay(reconnectDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			l.log.Warn().Err(err).Uint("attempt", n+1).Msg("realtime dial failed")
		}),
	)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	return conn, nil
}

// identifyAll announces every known user id on a fresh connection.
func (l *Listener) identifyAll(conn *websocket.Conn) {
	l.mu.Lock()
	ids := make([]string, 0, len(l.announced))
	for id := range l.announced {
		ids = append(ids, id)
	}
	l.mu.Unlock()

	for _, id := range ids {
		l.send(conn, frame{Event: eventIdentify, UserID: id})
	}
}

// pump reads frames until the connection errors. A revocation is dispatched
// synchronously on this goroutine; nothing may delay it.
func (l *Listener) pump(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go l.pingLoop(ctx, conn, done)
	defer close(done)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			l.log.Debug().Err(err).Msg("unparseable realtime frame dropped")
			continue
		}

		switch f.Event {
		case eventLogout:
			metrics.SessionsRevokedTotal.Inc()
			l.handler.HandleRevoked(ctx, f.UserID, time.Now().UTC())
		case eventRefresh:
			l.handler.HandleProfileChanged(ctx, f.UserID)
		default:
			l.log.Debug().Str("event", f.Event).Msg("unknown realtime event ignored")
		}
	}
}

func (l *Listener) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			l.writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			l.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (l *Listener) send(conn *websocket.Conn, f frame) {
	raw, err := json.Marshal(f)
	if err != nil {
		return
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		l.log.Warn().Err(err).Str("event", f.Event).Msg("realtime send failed")
	}
}
