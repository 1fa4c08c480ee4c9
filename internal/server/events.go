package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/ChessSnap-PDF/internal/obslog"
	"github.com/park285/ChessSnap-PDF/internal/service/scan"
)

// Event is one analysis lifecycle notification pushed to a session's
// websocket subscribers.
type Event struct {
	Kind   string    `json:"kind"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

type subscriber struct {
	ch chan Event
}

// Hub fans analysis events out to the websocket subscribers of each
// session. It implements the scan service's EventSink.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
	log  *zap.Logger
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[*subscriber]struct{}),
		log:  obslog.L().Named("events"),
	}
}

// Publish delivers the event to every subscriber of the session. Slow
// subscribers drop events rather than block the analysis path.
func (h *Hub) Publish(session, kind, detail string) {
	evt := Event{Kind: kind, Detail: detail, At: time.Now().UTC()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[session] {
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

func (h *Hub) subscribe(session string) *subscriber {
	sub := &subscriber{ch: make(chan Event, 16)}
	h.mu.Lock()
	if h.subs[session] == nil {
		h.subs[session] = make(map[*subscriber]struct{})
	}
	h.subs[session][sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(session string, sub *subscriber) {
	h.mu.Lock()
	if set := h.subs[session]; set != nil {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, session)
		}
	}
	h.mu.Unlock()
}

// Handler upgrades GET /events requests. The session is taken from the
// session query parameter or the X-Session-Id header.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := strings.TrimSpace(r.URL.Query().Get("session"))
		if session == "" {
			session = strings.TrimSpace(r.Header.Get("X-Session-Id"))
		}
		if session == "" {
			http.Error(w, "session required", http.StatusBadRequest)
			return
		}
		// The hub is keyed by the same hash the scan service publishes under.
		session = scan.SessionHash(session)

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			CompressionMode: websocket.CompressionNoContextTakeover,
		})
		if err != nil {
			h.log.Warn("websocket accept", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusInternalError, "closing")

		// Reads are discarded; the returned context ends when the peer
		// goes away.
		ctx := conn.CloseRead(r.Context())

		sub := h.subscribe(session)
		defer h.unsubscribe(session, sub)

		for {
			select {
			case <-ctx.Done():
				conn.Close(websocket.StatusNormalClosure, "done")
				return
			case evt := <-sub.ch:
				writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				err := wsjson.Write(writeCtx, conn, evt)
				cancel()
				if err != nil {
					return
				}
			}
		}
	})
}
