package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/sameera/osem-ladders-sub001/internal/models"
)

const (
	// EventsChannel is the Redis channel report events are fanned out on
	EventsChannel = "ladders:report-events"

	subscriberBuffer = 16
	pingInterval     = 30 * time.Second
	writeWait        = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub fans report events out to websocket watchers. With a Redis client the
// events travel through pub/sub so every server instance sees them.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan models.ReportEvent
	redis       *redis.Client
}

// NewHub creates a hub; client may be nil for single-instance delivery
func NewHub(client *redis.Client) *Hub {
	return &Hub{
		subscribers: make(map[string]map[string]chan models.ReportEvent),
		redis:       client,
	}
}

// Subscribe registers a watcher for one report. The returned cancel func
// unregisters it and closes the channel.
func (h *Hub) Subscribe(reportID string) (<-chan models.ReportEvent, func()) {
	id := uuid.NewString()
	ch := make(chan models.ReportEvent, subscriberBuffer)

	h.mu.Lock()
	if h.subscribers[reportID] == nil {
		h.subscribers[reportID] = make(map[string]chan models.ReportEvent)
	}
	h.subscribers[reportID][id] = ch
	h.mu.Unlock()

	slog.Debug("report watcher subscribed", "report_id", reportID, "subscriber", id)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers[reportID], id)
			if len(h.subscribers[reportID]) == 0 {
				delete(h.subscribers, reportID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of watchers of a report
func (h *Hub) Subscribers(reportID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[reportID])
}

// Publish sends an event to every watcher of its report
func (h *Hub) Publish(ctx context.Context, ev models.ReportEvent) {
	if h.redis == nil {
		h.deliver(ev)
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("failed to encode report event", "error", err)
		return
	}
	if err := h.redis.Publish(ctx, EventsChannel, payload).Err(); err != nil {
		slog.Warn("failed to publish report event, delivering locally", "error", err)
		h.deliver(ev)
	}
}

// Run relays pub/sub messages to local watchers until ctx is done.
// It returns immediately without Redis.
func (h *Hub) Run(ctx context.Context) {
	if h.redis == nil {
		return
	}

	sub := h.redis.Subscribe(ctx, EventsChannel)
	defer sub.Close()
	slog.Info("report event relay started", "channel", EventsChannel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			slog.Info("report event relay stopped")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev models.ReportEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				slog.Warn("dropping malformed report event", "error", err)
				continue
			}
			h.deliver(ev)
		}
	}
}

// deliver never blocks; a watcher that falls behind misses events
func (h *Hub) deliver(ev models.ReportEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subscribers[ev.ReportID] {
		select {
		case ch <- ev:
		default:
			slog.Warn("report watcher too slow, event dropped", "report_id", ev.ReportID, "subscriber", id)
		}
	}
}

func (s *Server) handleWatchReport(w http.ResponseWriter, r *http.Request) {
	id, ok := reportIDParam(w, r)
	if !ok {
		return
	}

	report, err := s.repo.GetReport(r.Context(), id)
	if err != nil {
		respondRepoError(w, err, "get", id)
		return
	}

	if s.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "watch_unavailable", "report watching is disabled")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := s.hub.Subscribe(id)
	defer unsubscribe()

	slog.Info("report watcher connected", "report_id", id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the read loop only notices the peer going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("websocket read error", "error", err)
				}
				return
			}
		}
	}()

	if err := writeEvent(conn, models.ReportEvent{Type: EventSnapshot, ReportID: id, Report: report}); err != nil {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("report watcher disconnected", "report_id", id)
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev models.ReportEvent) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(ev); err != nil {
		slog.Debug("failed to send report event", "error", err)
		return err
	}
	return nil
}
