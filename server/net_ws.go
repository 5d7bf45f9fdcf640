package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 1 << 20
)

// ClientConn 封装 WebSocket 连接，发送队列由 writePump 写出
type ClientConn struct {
	ws     *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once
}

func NewClientConn(ws *websocket.Conn, queue int) *ClientConn {
	if queue <= 0 {
		queue = 64
	}
	return &ClientConn{
		ws:     ws,
		send:   make(chan []byte, queue),
		closed: make(chan struct{}),
	}
}

// Enqueue 非阻塞入队；队列满时丢弃，慢客户端不会拖住 Tick
func (c *ClientConn) Enqueue(b []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// Close 关闭连接，可重复调用
func (c *ClientConn) Close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
}

func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.Close()
	for {
		select {
		case <-c.closed:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump 读协程：把客户端消息交给房间，直到连接出错
func (c *ClientConn) readPump(ctx context.Context, rooms roomSource, roomID string, rc RoomConfig) {
	in := newIntake(rooms, roomID, c, rc)
	defer c.Close()
	// 玩家由房间在自己的 Tick 协程中移除
	defer in.leave()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				Log.Debugw("connection read failed", "room", roomID, "player", in.id, "error", err)
			}
			return
		}
		if err := in.handle(ctx, payload); err != nil {
			if !errors.Is(err, context.Canceled) {
				Log.Warnw("dropping connection", "room", roomID, "player", in.id, "error", err)
			}
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWS 升级 /ws?room=<name>。收到 join 消息时才查找（必要时创建）房间
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnw("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := NewClientConn(ws, s.cfg.Room.SendQueue)
	go client.writePump()
	go client.readPump(s.ctx, s.rooms, roomParam(r), s.cfg.Room)
}
