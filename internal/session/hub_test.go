package session

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/punchamoorthee/vendingops/internal/domain"
)

type frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestHubAdmitsOneClientAndRejectsTheRest(t *testing.T) {
	guard := NewGuard()
	hub := NewHub(guard, zaptest.NewLogger(t))
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	first := dial(t, url)
	connected := readFrame(t, first)
	assert.Equal(t, TypeConnected, connected.Type)
	holder, held := guard.Holder()
	require.True(t, held)
	assert.Equal(t, holder, connected.Payload)

	second := dial(t, url)
	rejected := readFrame(t, second)
	assert.Equal(t, TypeConnectionRejected, rejected.Type)
	assert.Equal(t, RejectReason, rejected.Payload)

	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := second.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "unexpected error: %v", err)

	// The rejection must not disturb the admitted client.
	after, _ := guard.Holder()
	assert.Equal(t, holder, after)

	hub.OrderSettled(context.Background(), domain.Order{
		ID:     7,
		Status: domain.OrderCompleted,
		Items:  []domain.OrderItem{{DrinkName: "Cola", BrandName: "Fizz", Quantity: 1}},
	})
	update := readFrame(t, first)
	assert.Equal(t, TypeDrinkUpdate, update.Type)
	payload, ok := update.Payload.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 7, payload["orderId"])
}

func TestHubFreesMachineOnDisconnect(t *testing.T) {
	guard := NewGuard()
	hub := NewHub(guard, zaptest.NewLogger(t))
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	first := dial(t, url)
	require.Equal(t, TypeConnected, readFrame(t, first).Type)
	first.Close()

	require.Eventually(t, func() bool {
		_, held := guard.Holder()
		return !held
	}, 2*time.Second, 10*time.Millisecond)

	next := dial(t, url)
	assert.Equal(t, TypeConnected, readFrame(t, next).Type)
}

func TestHubIgnoresFailedOrders(t *testing.T) {
	guard := NewGuard()
	hub := NewHub(guard, zaptest.NewLogger(t))
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn := dial(t, url)
	require.Equal(t, TypeConnected, readFrame(t, conn).Type)

	hub.OrderSettled(context.Background(), domain.Order{ID: 1, Status: domain.OrderFailed})
	hub.SendDrinkUpdate("restocked")

	f := readFrame(t, conn)
	assert.Equal(t, TypeDrinkUpdate, f.Type)
	assert.Equal(t, "restocked", f.Payload)
}
