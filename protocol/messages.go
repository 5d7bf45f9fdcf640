// Package protocol 游戏 WebSocket 上交换的 JSON 消息。
//
// 每帧都是信封 {"type": ..., "data": ...}；为兼容浏览器客户端，
// 裸的 {"nickname": ...} 对象也按 join 处理
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Flying-Toast/sorcerio/game"
)

// MessageType 信封 payload 的类型名
type MessageType string

const (
	TypeJoin   MessageType = "join"
	TypeInput  MessageType = "input"
	TypeYourID MessageType = "yourId"
	TypeUpdate MessageType = "update"
)

var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownType = errors.New("unknown message type")
)

// Envelope 线上所有消息的外层信封
type Envelope struct {
	Type MessageType     `json:"type" jsonschema:"required"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Join 为连接开始一局
type Join struct {
	Nickname  string           `json:"nickname" jsonschema:"required,maxLength=64"`
	Inventory []game.SpellType `json:"inventory,omitempty"`
}

// YourID 告知客户端它控制快照中的哪个实体
type YourID struct {
	ID string `json:"id" jsonschema:"required"`
}

// Meta 启动时从 /meta.json 读取一次
type Meta struct {
	InventorySize  int              `json:"inventorySize"`
	SpellTypes     []game.SpellType `json:"spellTypes"`
	TickRate       int              `json:"tickRate"`
	TickIntervalMs int64            `json:"tickIntervalMs"`
	Speed          float64          `json:"speed"`
}

// Encode 用指定类型的信封包装 v
func Encode(t MessageType, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, Data: data})
}

// Decode 解析信封，payload 保持原样，调用方先按 Type 分发
func Decode(b []byte) (Envelope, error) {
	var raw struct {
		Type     MessageType     `json:"type"`
		Data     json.RawMessage `json:"data"`
		Nickname *string         `json:"nickname"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw.Type == "" {
		if raw.Nickname == nil {
			return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
		}
		return Envelope{Type: TypeJoin, Data: json.RawMessage(b)}, nil
	}
	return Envelope{Type: raw.Type, Data: raw.Data}, nil
}

func decodeData(env Envelope, want MessageType, v any) error {
	if env.Type != want {
		return fmt.Errorf("%w: expected %s, got %s", ErrMalformed, want, env.Type)
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: %s without data", ErrMalformed, want)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, want, err)
	}
	return nil
}

func DecodeJoin(env Envelope) (Join, error) {
	var j Join
	err := decodeData(env, TypeJoin, &j)
	return j, err
}

// DecodeInput 解析一批输入并检查每条记录的结构
func DecodeInput(env Envelope) ([]game.InputRecord, error) {
	var batch []game.InputRecord
	if err := decodeData(env, TypeInput, &batch); err != nil {
		return nil, err
	}
	for _, in := range batch {
		if err := game.Validate(in); err != nil {
			return nil, fmt.Errorf("%w: input %d: %v", ErrMalformed, in.ID, err)
		}
	}
	return batch, nil
}

func DecodeYourID(env Envelope) (YourID, error) {
	var y YourID
	err := decodeData(env, TypeYourID, &y)
	return y, err
}

func DecodeUpdate(env Envelope) (game.WorldSnapshot, error) {
	var s game.WorldSnapshot
	err := decodeData(env, TypeUpdate, &s)
	return s, err
}
