package bridge

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	tapWriteWait  = 5 * time.Second
	tapPongWait   = 60 * time.Second
	tapPingPeriod = tapPongWait * 9 / 10
)

// FrameEvent is one receive or send outcome published to tap subscribers.
type FrameEvent struct {
	Seq       uint64    `json:"seq"`
	Time      time.Time `json:"time"`
	Direction string    `json:"direction"`
	Transport string    `json:"transport"`
	Payload   string    `json:"payload"`
	Length    int       `json:"length"`
	Status    bool      `json:"status"`
	Result    string    `json:"result"`
	Error     string    `json:"error,omitempty"`
}

// Tap fans frame events out to subscribers. Slow subscribers drop events.
type Tap struct {
	buffer int
	log    zerolog.Logger

	mu   sync.RWMutex
	subs map[uuid.UUID]chan FrameEvent
}

func NewTap(buffer int, logger zerolog.Logger) *Tap {
	if buffer <= 0 {
		buffer = 64
	}
	return &Tap{
		buffer: buffer,
		log:    logger,
		subs:   make(map[uuid.UUID]chan FrameEvent),
	}
}

func (t *Tap) Subscribe() (uuid.UUID, <-chan FrameEvent) {
	id := uuid.New()
	ch := make(chan FrameEvent, t.buffer)
	t.mu.Lock()
	t.subs[id] = ch
	t.mu.Unlock()
	return id, ch
}

func (t *Tap) Unsubscribe(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ch, ok := t.subs[id]; ok {
		delete(t.subs, id)
		close(ch)
	}
}

func (t *Tap) Publish(ev FrameEvent) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for id, ch := range t.subs {
		select {
		case ch <- ev:
		default:
			t.log.Debug().Str("subscriber", id.String()).Uint64("seq", ev.Seq).Msg("tap: dropped event")
		}
	}
}

func (t *Tap) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

func (t *Tap) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, ch := range t.subs {
		delete(t.subs, id)
		close(ch)
	}
}

var tapUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS streams frame events as JSON text messages until the client leaves.
func (t *Tap) ServeWS(c *gin.Context) {
	conn, err := tapUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		t.log.Warn().Err(err).Msg("tap: upgrade failed")
		return
	}
	id, events := t.Subscribe()
	t.log.Info().Str("subscriber", id.String()).Str("remote", c.ClientIP()).Msg("tap: subscribed")

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(tapPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(tapPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(tapPingPeriod)
	defer func() {
		ticker.Stop()
		t.Unsubscribe(id)
		_ = conn.Close()
		t.log.Info().Str("subscriber", id.String()).Msg("tap: unsubscribed")
	}()

	for {
		select {
		case ev, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(tapWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(tapWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
