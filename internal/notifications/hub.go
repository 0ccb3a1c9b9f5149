package notifications

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ratepro/backend/internal/models"
)

// Hub fans live notifications out to each user's open websocket
// connections. Delivery is best effort; a slow consumer is dropped rather
// than allowed to back up the publisher.
type Hub struct {
	mu     sync.RWMutex
	conns  map[uuid.UUID]map[*client]struct{}
	logger *zap.Logger
}

type client struct {
	conn *websocket.Conn
	send chan *models.Notification
}

// NewHub creates a notification hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		conns:  make(map[uuid.UUID]map[*client]struct{}),
		logger: logger,
	}
}

// Register attaches a connection for the user and starts its writer. The
// returned function detaches and closes it.
func (h *Hub) Register(userID uuid.UUID, conn *websocket.Conn) func() {
	cl := &client{conn: conn, send: make(chan *models.Notification, 16)}

	h.mu.Lock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*client]struct{})
	}
	h.conns[userID][cl] = struct{}{}
	h.mu.Unlock()

	go func() {
		for n := range cl.send {
			if err := conn.WriteJSON(n); err != nil {
				h.logger.Debug("websocket write", zap.Error(err))
				return
			}
		}
	}()

	return func() {
		h.mu.Lock()
		if set := h.conns[userID]; set != nil {
			delete(set, cl)
			if len(set) == 0 {
				delete(h.conns, userID)
			}
		}
		// Closing under the lock: Publish holds the read lock while
		// sending, so no send can race the close.
		close(cl.send)
		h.mu.Unlock()
		_ = conn.Close()
	}
}

// Publish pushes a notification to the user's live connections.
func (h *Hub) Publish(n *models.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for cl := range h.conns[n.UserID] {
		select {
		case cl.send <- n:
		default:
			// Buffer full; the reader loop will notice on next write failure.
		}
	}
}
