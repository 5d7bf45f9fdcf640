package server

import "github.com/Flying-Toast/sorcerio/game"

// PlayerID 房间生命周期内每个连接唯一
type PlayerID string

// ConnState 连接所处的生命周期阶段
type ConnState int

const (
	StateConnecting ConnState = iota
	StateJoined
	StatePlaying
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StatePlaying:
		return "playing"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Outbound 房间视角下连接的发送端
type Outbound interface {
	// Enqueue 不得阻塞；消息被丢弃时返回 false
	Enqueue(b []byte) bool
	Close()
}

// Player 房间内的玩家，Entity 与 State 只由 Tick 协程访问
type Player struct {
	Entity game.PlayerEntity
	State  ConnState

	Conn  Outbound
	inbox *InputBuffer

	// failures 连续应用失败的 Tick 数
	failures int
}
