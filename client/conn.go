package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Flying-Toast/sorcerio/game"
	"github.com/Flying-Toast/sorcerio/protocol"
)

// ErrClosed 与服务端的连接断开后返回
var ErrClosed = errors.New("connection closed")

const writeWait = 5 * time.Second

// Conn 客户端 WebSocket：发送输入批次，接收服务端消息。
// 收到的消息先缓冲，由 Drain 交给 Session
type Conn struct {
	ws       *websocket.Conn
	log      *zap.SugaredLogger
	incoming chan protocol.Envelope
	done     chan struct{}
	once     sync.Once

	writeMu sync.Mutex

	statsMu sync.Mutex
	stats   Stats

	errMu sync.Mutex
	err   error
}

// Stats Conn 的流量统计
type Stats struct {
	BytesIn       uint64
	BytesOut      uint64
	Updates       uint64
	InputsSent    uint64
	MalformedRecv uint64
}

func (c *Conn) count(f func(*Stats)) {
	c.statsMu.Lock()
	f(&c.stats)
	c.statsMu.Unlock()
}

// WSURL 把 http(s) 基础地址转换为指定房间的 WebSocket 地址
func WSURL(base, room string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", base, err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	if room != "" {
		q := u.Query()
		q.Set("room", room)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Dial 连接 wsURL 并发送 join 消息
func Dial(ctx context.Context, wsURL string, join protocol.Join, log *zap.SugaredLogger) (*Conn, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	c := &Conn{
		ws:       ws,
		log:      log,
		incoming: make(chan protocol.Envelope, 64),
		done:     make(chan struct{}),
	}
	if err := c.send(protocol.TypeJoin, join); err != nil {
		_ = ws.Close()
		return nil, err
	}
	go c.readLoop()
	return c, nil
}

func (c *Conn) readLoop() {
	defer close(c.incoming)
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			c.setErr(err)
			return
		}
		c.count(func(s *Stats) { s.BytesIn += uint64(len(payload)) })
		env, err := protocol.Decode(payload)
		if err != nil {
			c.count(func(s *Stats) { s.MalformedRecv++ })
			c.log.Warnw("discarding malformed server message", "error", err)
			continue
		}
		if env.Type == protocol.TypeUpdate {
			c.count(func(s *Stats) { s.Updates++ })
		}
		select {
		case c.incoming <- env:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

// Err 返回导致读循环结束的错误（如有）
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Incoming 收到的消息，连接关闭时通道关闭
func (c *Conn) Incoming() <-chan protocol.Envelope {
	return c.incoming
}

// Drain 非阻塞地把缓冲消息全部交给 s，连接已断开时返回 ErrClosed
func (c *Conn) Drain(s *Session) error {
	for {
		select {
		case env, ok := <-c.incoming:
			if !ok {
				return ErrClosed
			}
			if err := s.Handle(env); err != nil {
				c.log.Warnw("failed to handle server message", "type", env.Type, "error", err)
			}
		default:
			return nil
		}
	}
}

// SendInputs 发送一批输入，空批次不发送
func (c *Conn) SendInputs(batch []game.InputRecord) error {
	if len(batch) == 0 {
		return nil
	}
	if err := c.send(protocol.TypeInput, batch); err != nil {
		return err
	}
	c.count(func(s *Stats) { s.InputsSent += uint64(len(batch)) })
	return nil
}

func (c *Conn) send(t protocol.MessageType, v any) error {
	b, err := protocol.Encode(t, v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("write %s: %w", t, err)
	}
	c.count(func(s *Stats) { s.BytesOut += uint64(len(b)) })
	return nil
}

// Snapshot 返回流量统计的副本
func (c *Conn) Snapshot() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// Close 发送 goodbye 后关闭连接
func (c *Conn) Close() error {
	c.once.Do(func() { close(c.done) })
	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.writeMu.Unlock()
	return c.ws.Close()
}

// FetchMeta 读取指定房间的 /meta.json
func FetchMeta(ctx context.Context, base, room string) (protocol.Meta, error) {
	var meta protocol.Meta
	u := strings.TrimSuffix(base, "/") + "/meta.json"
	if room != "" {
		u += "?room=" + url.QueryEscape(room)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return meta, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return meta, fmt.Errorf("fetch meta: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return meta, fmt.Errorf("fetch meta: unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return meta, fmt.Errorf("decode meta: %w", err)
	}
	return meta, nil
}
