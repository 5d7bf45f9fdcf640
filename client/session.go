// Package client 游戏协议的客户端预测侧：输入队列、负责本地玩家预测与校正的
// Session，以及为其供给消息的 WebSocket 连接。
//
// Session 不是并发安全的。所有调用应来自同一协程（通常是渲染循环），
// 网络消息在帧与帧之间交给它
package client

import (
	"time"

	"go.uber.org/zap"

	"github.com/Flying-Toast/sorcerio/game"
	"github.com/Flying-Toast/sorcerio/protocol"
)

// maxCatchUpSteps 卡顿后单帧最多补发的移动数，更早累积的时间直接丢弃
const maxCatchUpSteps = 5

// Session 单局客户端状态：预测的本地玩家、服务端尚未确认的输入、最近一次已知的其他玩家
type Session struct {
	log   *zap.SugaredLogger
	rules game.Rules
	step  time.Duration

	id       string
	baseline *game.PlayerEntity
	local    *game.PlayerEntity
	pending  []game.InputRecord
	queue    InputQueue

	remote   []game.PlayerEntity
	world    game.Map
	lastTick uint64
	synced   bool

	lastInventory  []game.Item
	inventoryDirty bool

	pointerX, pointerY float64
	viewW, viewH       float64

	lastFrame time.Time
	accum     time.Duration
}

// NewSession 按服务端公布的元数据创建 session
func NewSession(meta protocol.Meta, log *zap.SugaredLogger) *Session {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	step := time.Duration(meta.TickIntervalMs) * time.Millisecond
	if meta.TickRate > 0 {
		step = time.Second / time.Duration(meta.TickRate)
	}
	if step <= 0 {
		step = 50 * time.Millisecond
	}
	return &Session{
		log:   log,
		step:  step,
		rules: game.Rules{Speed: meta.Speed, Step: step.Seconds()},
	}
}

// SetID 记录本客户端控制的实体
func (s *Session) SetID(id string) {
	s.id = id
}

func (s *Session) ID() string { return s.id }

// Ready 是否已有本地玩家的权威状态
func (s *Session) Ready() bool {
	return s.id != "" && s.baseline != nil
}

// SetViewport 设置移动输入所参照的窗口尺寸
func (s *Session) SetViewport(w, h float64) {
	s.viewW, s.viewH = w, h
}

// PointerMoved 记录最新的指针位置（窗口像素）
func (s *Session) PointerMoved(x, y float64) {
	s.pointerX, s.pointerY = x, y
}

// Scroll 排入一次快捷栏切换；玩家尚不存在时丢弃
func (s *Session) Scroll(dir game.ScrollDirection) {
	if !s.Ready() {
		return
	}
	s.push(game.InputRecord{Type: game.InputScroll, Scroll: &game.ScrollPayload{Direction: dir}})
	s.predict()
}

func (s *Session) push(r game.InputRecord) {
	r = s.queue.Enqueue(r)
	s.pending = append(s.pending, r)
}

// Frame 把本地预测推进到 now：每经过一个完整步长，按指针生成一次移动输入，
// 然后在最近的权威状态上重放所有未确认输入
func (s *Session) Frame(now time.Time) {
	if s.lastFrame.IsZero() {
		s.lastFrame = now
	}
	dt := now.Sub(s.lastFrame)
	s.lastFrame = now
	if dt < 0 {
		dt = 0
	}
	if !s.Ready() {
		s.accum = 0
		return
	}

	s.accum += dt
	if limit := maxCatchUpSteps * s.step; s.accum > limit {
		s.accum = limit
	}
	for s.accum >= s.step {
		s.accum -= s.step
		if s.viewW <= 0 || s.viewH <= 0 {
			continue
		}
		s.push(game.InputRecord{Type: game.InputMove, Move: &game.MovePayload{
			FacingX:      s.pointerX,
			FacingY:      s.pointerY,
			WindowWidth:  s.viewW,
			WindowHeight: s.viewH,
		}})
	}
	s.predict()
}

func (s *Session) predict() {
	if s.baseline == nil {
		return
	}
	next := s.baseline.Clone()
	for _, in := range s.pending {
		if err := game.Apply(&next, in, s.world, s.rules); err != nil {
			s.log.Debugw("skipping input during replay", "id", in.ID, "error", err)
		}
	}
	s.local = &next
}

// Reconcile 将权威快照合入 session，返回是否找到并校正了本地玩家。
// 快照中的 speed 覆盖元数据中的值，未确认输入按服务端将使用的规则重放
func (s *Session) Reconcile(snap game.WorldSnapshot) bool {
	if s.synced && snap.Tick < s.lastTick {
		s.log.Debugw("dropping stale snapshot", "tick", snap.Tick, "last", s.lastTick)
		return false
	}
	s.synced = true
	s.lastTick = snap.Tick
	s.world = snap.Map
	if s.rules.Speed != snap.Speed {
		s.log.Infow("adopting server speed", "speed", snap.Speed, "previous", s.rules.Speed)
		s.rules.Speed = snap.Speed
	}

	s.remote = s.remote[:0]
	for _, p := range snap.Players {
		if p.ID != s.id {
			s.remote = append(s.remote, p.Clone())
		}
	}

	if s.id == "" {
		return false
	}
	me, ok := snap.Find(s.id)
	if !ok {
		return false
	}
	if s.baseline != nil && me.LastAppliedInputID < s.baseline.LastAppliedInputID {
		s.log.Warnw("server acknowledgement went backwards",
			"acked", me.LastAppliedInputID, "previous", s.baseline.LastAppliedInputID)
		return false
	}

	keep := s.pending[:0]
	for _, in := range s.pending {
		if in.ID > me.LastAppliedInputID {
			keep = append(keep, in)
		}
	}
	s.pending = keep

	if !game.InventoryEqual(me.Inventory, s.lastInventory) {
		s.inventoryDirty = true
		s.lastInventory = me.Clone().Inventory
	}

	base := me.Clone()
	local := me.Clone()
	s.baseline = &base
	s.local = &local
	return true
}

// Handle 处理一条服务端消息
func (s *Session) Handle(env protocol.Envelope) error {
	switch env.Type {
	case protocol.TypeYourID:
		y, err := protocol.DecodeYourID(env)
		if err != nil {
			return err
		}
		s.SetID(y.ID)
	case protocol.TypeUpdate:
		snap, err := protocol.DecodeUpdate(env)
		if err != nil {
			return err
		}
		s.Reconcile(snap)
	default:
		s.log.Infow("ignoring unknown message", "type", env.Type)
	}
	return nil
}

// FlushInputs 返回上次 flush 以来的输入；服务端确认前它们仍保留在重放缓冲中
func (s *Session) FlushInputs() []game.InputRecord {
	return s.queue.FlushForSend()
}

// LocalPlayer 返回预测的本地玩家
func (s *Session) LocalPlayer() (game.PlayerEntity, bool) {
	if s.local == nil {
		return game.PlayerEntity{}, false
	}
	return s.local.Clone(), true
}

// Confirmed 返回服务端最近一次报告的本地玩家
func (s *Session) Confirmed() (game.PlayerEntity, bool) {
	if s.baseline == nil {
		return game.PlayerEntity{}, false
	}
	return s.baseline.Clone(), true
}

// RemotePlayers 返回最近快照中的其他玩家
func (s *Session) RemotePlayers() []game.PlayerEntity {
	out := make([]game.PlayerEntity, len(s.remote))
	copy(out, s.remote)
	return out
}

// Pending 返回未确认输入的副本，按时间从旧到新
func (s *Session) Pending() []game.InputRecord {
	out := make([]game.InputRecord, len(s.pending))
	copy(out, s.pending)
	return out
}

func (s *Session) Map() game.Map { return s.world }

// TakeInventoryChange 快捷栏自上次调用后有变化时返回它
func (s *Session) TakeInventoryChange() ([]game.Item, bool) {
	if !s.inventoryDirty {
		return nil, false
	}
	s.inventoryDirty = false
	out := make([]game.Item, len(s.lastInventory))
	copy(out, s.lastInventory)
	return out, true
}
