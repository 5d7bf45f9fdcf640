package server

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/Flying-Toast/sorcerio/protocol"
)

// roomSource 连接加入时按名字解析房间
type roomSource interface {
	GetOrCreateRoom(id string) (*Room, error)
}

// intake 把单个连接的消息转换为房间请求，只在该连接的读协程中运行。
// 房间在 join 时才解析，从不 join 的连接不会创建房间
type intake struct {
	rooms   roomSource
	roomID  string
	conn    Outbound
	limiter *rate.Limiter

	room  *Room
	id    PlayerID
	inbox *InputBuffer
}

func newIntake(rooms roomSource, roomID string, conn Outbound, rc RoomConfig) *intake {
	limit := rate.Inf
	if rc.InputRate > 0 {
		limit = rate.Limit(rc.InputRate)
	}
	return &intake{
		rooms:   rooms,
		roomID:  roomID,
		conn:    conn,
		limiter: rate.NewLimiter(limit, rc.InputBurst),
	}
}

func (in *intake) joined() bool { return in.inbox != nil }

// handle 处理一条原始消息，返回错误表示应关闭连接
func (in *intake) handle(ctx context.Context, payload []byte) error {
	env, err := protocol.Decode(payload)
	if err != nil {
		Log.Debugw("discarding malformed message", "room", in.roomID, "player", in.id, "error", err)
		return nil
	}

	switch env.Type {
	case protocol.TypeJoin:
		if in.joined() {
			Log.Debugw("ignoring repeated join", "room", in.roomID, "player", in.id)
			return nil
		}
		j, err := protocol.DecodeJoin(env)
		if err != nil {
			Log.Warnw("discarding malformed join", "room", in.roomID, "error", err)
			return nil
		}
		if err := in.join(ctx, j); err != nil {
			return fmt.Errorf("join: %w", err)
		}

	case protocol.TypeInput:
		if !in.joined() {
			Log.Debugw("ignoring input before join", "room", in.roomID)
			return nil
		}
		batch, err := protocol.DecodeInput(env)
		if err != nil {
			Log.Warnw("discarding malformed input batch", "room", in.roomID, "player", in.id, "error", err)
			return nil
		}
		if err := in.wait(ctx); err != nil {
			return err
		}
		if err := in.room.OnInput(in.inbox, batch); err != nil {
			return fmt.Errorf("player %s: %w", in.id, err)
		}

	default:
		Log.Infow("ignoring unknown message type", "room", in.roomID, "player", in.id, "type", env.Type)
	}
	return nil
}

// join 把连接放入房间。若房间在查找与加入之间已停止，再查找一次（会启动新房间）
func (in *intake) join(ctx context.Context, j protocol.Join) error {
	for attempt := 0; ; attempt++ {
		room, err := in.rooms.GetOrCreateRoom(in.roomID)
		if err != nil {
			return err
		}
		id, inbox, err := room.RequestJoin(ctx, in.conn, j)
		if errors.Is(err, ErrRoomClosed) && attempt == 0 {
			continue
		}
		if err != nil {
			return err
		}
		in.room, in.id, in.inbox = room, id, inbox
		return nil
	}
}

// wait 连接超出输入速率时阻塞读协程
func (in *intake) wait(ctx context.Context) error {
	if in.limiter.Allow() {
		return nil
	}
	in.room.metrics.IncRateLimited()
	return in.limiter.Wait(ctx)
}

// leave 连接断开后通知房间移除玩家
func (in *intake) leave() {
	if in.joined() {
		in.room.RequestLeave(in.id)
	}
}
