package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/punchamoorthee/vendingops/internal/domain"
	"github.com/punchamoorthee/vendingops/internal/metrics"
)

// Outbound message types.
const (
	TypeConnected          = "Connected"
	TypeConnectionRejected = "ConnectionRejected"
	TypeDrinkUpdate        = "ReceiveDrinkUpdate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

// Message is the JSON frame written to clients.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// DrinkUpdate tells the client which drinks a completed order sold.
type DrinkUpdate struct {
	OrderID int64              `json:"orderId"`
	Items   []domain.OrderItem `json:"items"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan Message
}

// Hub serves the machine's realtime channel. Every connection is upgraded and
// then either admitted through the Lease or told it was rejected and closed.
type Hub struct {
	lease    Lease
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	client *client
}

// NewHub accepts any origin when allowedOrigins is empty.
func NewHub(lease Lease, logger *zap.Logger, allowedOrigins ...string) *Hub {
	h := &Hub{lease: lease, logger: logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
	return h
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	id := uuid.NewString()
	admitted, err := h.lease.Admit(r.Context(), id)
	if err != nil {
		h.logger.Error("session admit failed", zap.String("client_id", id), zap.Error(err))
		h.closeWith(conn, websocket.CloseInternalServerErr, "session unavailable")
		return
	}
	if !admitted {
		h.reject(conn, id)
		return
	}

	c := &client{id: id, conn: conn, send: make(chan Message, sendBuffer)}
	c.send <- Message{Type: TypeConnected, Payload: id}

	h.mu.Lock()
	h.client = c
	h.mu.Unlock()

	metrics.SessionAdmissions.WithLabelValues("admitted").Inc()
	metrics.SessionActive.Set(1)
	h.logger.Info("client connected", zap.String("client_id", id), zap.String("remote_addr", r.RemoteAddr))

	go h.writePump(c)
	h.readPump(c)
}

// SendDrinkUpdate pushes payload to the connected client, if there is one.
func (h *Hub) SendDrinkUpdate(payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.client == nil {
		return
	}
	select {
	case h.client.send <- Message{Type: TypeDrinkUpdate, Payload: payload}:
	default:
		h.logger.Warn("client send buffer full, dropping drink update", zap.String("client_id", h.client.id))
	}
}

// OrderSettled broadcasts the stock change of a completed order.
func (h *Hub) OrderSettled(_ context.Context, order domain.Order) {
	if order.Status != domain.OrderCompleted {
		return
	}
	h.SendDrinkUpdate(DrinkUpdate{OrderID: order.ID, Items: order.Items})
}

// reject never touches the lease: the binding belongs to the admitted client.
func (h *Hub) reject(conn *websocket.Conn, id string) {
	metrics.SessionAdmissions.WithLabelValues("rejected").Inc()
	h.logger.Info("connection rejected", zap.String("client_id", id), zap.String("reason", RejectReason))

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(Message{Type: TypeConnectionRejected, Payload: RejectReason}); err != nil {
		h.logger.Debug("rejection notice not delivered", zap.String("client_id", id), zap.Error(err))
	}
	h.closeWith(conn, websocket.ClosePolicyViolation, RejectReason)
}

func (h *Hub) closeWith(conn *websocket.Conn, code int, text string) {
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
	conn.Close()
}

func (h *Hub) readPump(c *client) {
	defer h.detach(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		if err := h.lease.Refresh(ctx, c.id); err != nil {
			h.logger.Warn("session refresh failed", zap.String("client_id", c.id), zap.Error(err))
		}
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("client read failed", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// detach runs once per admitted client, after its read loop ends.
func (h *Hub) detach(c *client) {
	h.mu.Lock()
	if h.client == c {
		h.client = nil
	}
	close(c.send)
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	if err := h.lease.Release(ctx, c.id); err != nil {
		h.logger.Error("session release failed", zap.String("client_id", c.id), zap.Error(err))
	}
	metrics.SessionActive.Set(0)
	h.logger.Info("client disconnected", zap.String("client_id", c.id))
}
