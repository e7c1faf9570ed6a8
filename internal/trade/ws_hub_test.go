package trade

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuracoin/ledger-engine/internal/account"
	"github.com/neuracoin/ledger-engine/internal/store"
)

func dialHub(t *testing.T, hub *WSHub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWSHub_Broadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewWSHub(nil)
	go hub.Run(ctx)
	conn := dialHub(t, hub)

	hub.Broadcast(WSMessage{Type: MsgPricesUpdated, Prices: map[string]string{"bitcoin": "43750.21"}})

	msg := readMessage(t, conn)
	assert.Equal(t, MsgPricesUpdated, msg.Type)
	assert.Equal(t, "43750.21", msg.Prices["bitcoin"])
	assert.False(t, msg.SentAt.IsZero())
}

func TestWSHub_TradeAndRewardMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewWSHub(nil)
	go hub.Run(ctx)
	conn := dialHub(t, hub)

	cfg := DefaultConfig()
	cfg.TradingReward = decimal.Zero
	orch := NewOrchestrator(account.NewRepository(store.NewMemoryStore()), newFakeMarket(), hub, cfg)

	_, err := orch.OpenSession(ctx, "alice")
	require.NoError(t, err)
	msg := readMessage(t, conn)
	assert.Equal(t, MsgRewardCredited, msg.Type)
	assert.Equal(t, "welcome_bonus", msg.Reward)
	assert.Equal(t, "1000", msg.Balance)

	_, err = orch.Buy(ctx, "alice", "bitcoin", dec("0.01"), dec("45000"))
	require.NoError(t, err)
	msg = readMessage(t, conn)
	assert.Equal(t, MsgTradeExecuted, msg.Type)
	assert.Equal(t, "buy", msg.Side)
	assert.Equal(t, "bitcoin", msg.AssetID)
	assert.Equal(t, "549.55", msg.Balance)
}

func TestWSHub_ShutdownDropsClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewWSHub(nil)
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	conn := dialHub(t, hub)

	cancel()
	<-done
	assert.Equal(t, 0, hub.Clients())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
