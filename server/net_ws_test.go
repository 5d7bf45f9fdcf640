package server

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Flying-Toast/sorcerio/client"
	"github.com/Flying-Toast/sorcerio/game"
	"github.com/Flying-Toast/sorcerio/protocol"
)

type testClient struct {
	conn    *client.Conn
	session *client.Session
}

func dialTestClient(t *testing.T, baseURL, nick string) *testClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	meta, err := client.FetchMeta(ctx, baseURL, "")
	if err != nil {
		t.Fatalf("fetch meta: %v", err)
	}
	wsURL, err := client.WSURL(baseURL, "")
	if err != nil {
		t.Fatalf("ws url: %v", err)
	}
	conn, err := client.Dial(ctx, wsURL, protocol.Join{Nickname: nick}, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	s := client.NewSession(meta, nil)
	s.SetViewport(200, 100)
	s.PointerMoved(100, 50)
	return &testClient{conn: conn, session: s}
}

// frame 执行一次客户端循环：收包 → 预测 → 发包
func (c *testClient) frame(t *testing.T) {
	t.Helper()
	if err := c.conn.Drain(c.session); err != nil {
		t.Fatalf("drain: %v", err)
	}
	c.session.Frame(time.Now())
	if err := c.conn.SendInputs(c.session.FlushInputs()); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func runUntil(t *testing.T, what string, cond func() bool, clients ...*testClient) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		for _, c := range clients {
			c.frame(t)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPredictionConvergesWithServer(t *testing.T) {
	_, ts := newTestServer(t)
	a := dialTestClient(t, ts.URL, "alpha")

	runUntil(t, "first snapshot", a.session.Ready, a)
	start, _ := a.session.Confirmed()

	// 朝空间更大的一侧移动，避免边界截断掩盖位移
	dir := 1.0
	pointerX := 200.0
	if start.X > 500 {
		dir, pointerX = -1, 0
	}
	a.session.PointerMoved(pointerX, 50)
	runUntil(t, "ten confirmed moves", func() bool {
		me, _ := a.session.Confirmed()
		return me.LastAppliedInputID >= 10
	}, a)

	// 停止转向；剩余输入都是空操作，预测最终应与服务端位置一致
	a.session.PointerMoved(100, 50)
	var moved game.PlayerEntity
	runUntil(t, "prediction to settle", func() bool {
		confirmed, _ := a.session.Confirmed()
		local, _ := a.session.LocalPlayer()
		for _, in := range a.session.Pending() {
			if in.Move != nil && in.Move.FacingX != 100 {
				return false
			}
		}
		moved = confirmed
		return local.X == confirmed.X && local.Y == confirmed.Y
	}, a)

	if (moved.X-start.X)*dir < 10 {
		t.Fatalf("expected the player to move, start %v now %v", start.X, moved.X)
	}
	if moved.Y != start.Y {
		t.Fatalf("horizontal steering moved y from %v to %v", start.Y, moved.Y)
	}
}

func TestRemotePlayersAreVisible(t *testing.T) {
	srv, ts := newTestServer(t)
	a := dialTestClient(t, ts.URL, "alpha")
	b := dialTestClient(t, ts.URL, "beta")

	runUntil(t, "both players joined", func() bool {
		return a.session.Ready() && b.session.Ready()
	}, a, b)
	runUntil(t, "each sees the other", func() bool {
		ra, rb := a.session.RemotePlayers(), b.session.RemotePlayers()
		return len(ra) == 1 && ra[0].ID == b.session.ID() && len(rb) == 1 && rb[0].Nickname == "alpha"
	}, a, b)

	_ = b.conn.Close()
	room, _ := srv.Rooms().Get(DefaultRoom)
	runUntil(t, "departed player removed", func() bool {
		return len(a.session.RemotePlayers()) == 0 && room.PlayerCount() == 1
	}, a)
}

func TestUnknownAndMalformedMessagesKeepConnection(t *testing.T) {
	_, ts := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	for _, msg := range []string{`garbage`, `{"type":"teleport","data":{}}`, `{"nickname":"raw"}`} {
		if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	env, err := protocol.Decode(payload)
	if err != nil || env.Type != protocol.TypeYourID {
		t.Fatalf("expected yourId after join, got %s (%v)", payload, err)
	}
}
