package server

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ssd-technologies/cubby/internal/ratelimit"
)

// uploadEvent is pushed to a user's event subscribers after each successful
// batch ingest, so clients can refresh their listing without polling.
type uploadEvent struct {
	Type     string   `json:"type"`
	FolderID string   `json:"folder_id"`
	Files    []string `json:"files"`
}

// eventHub fans upload events out to each owner's live websocket
// subscribers. Events for one user are never delivered to another.
type eventHub struct {
	mu   sync.Mutex
	subs map[string]map[chan uploadEvent]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[string]map[chan uploadEvent]struct{})}
}

// subscribe registers a channel for user's events.
func (h *eventHub) subscribe(user string) chan uploadEvent {
	ch := make(chan uploadEvent, 8)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[user] == nil {
		h.subs[user] = make(map[chan uploadEvent]struct{})
	}
	h.subs[user][ch] = struct{}{}
	return ch
}

// unsubscribe removes a channel registered via subscribe.
func (h *eventHub) unsubscribe(user string, ch chan uploadEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[user]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(h.subs, user)
		}
	}
}

// publish delivers ev to all of user's subscribers. Slow subscribers drop
// events rather than block the uploader.
func (h *eventHub) publish(user string, ev uploadEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[user] {
		select {
		case ch <- ev:
		default:
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const eventPingInterval = 30 * time.Second

// handleEvents handles GET /api/events — upgrade to a websocket and stream
// the caller's upload events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("events %q: websocket upgrade: %v", user, err)
		return
	}
	defer conn.Close()

	ch := s.hub.subscribe(user)
	defer s.hub.unsubscribe(user, ch)

	// The feed is push-only; the read loop exists to notice the peer
	// going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("events %q: websocket read: %v", user, err)
				}
				return
			}
		}
	}()

	limiter := ratelimit.New(60, time.Minute)
	ticker := time.NewTicker(eventPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case ev := <-ch:
			if !limiter.Allow() {
				continue
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Printf("events %q: websocket write: %v", user, err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
