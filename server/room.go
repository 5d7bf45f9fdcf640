package server

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sasha-s/go-deadlock"

	"github.com/Flying-Toast/sorcerio/game"
	"github.com/Flying-Toast/sorcerio/protocol"
)

// ErrRoomClosed 房间停止 Tick 后的请求返回此错误
var ErrRoomClosed = errors.New("room closed")

// maxPlayerFailures 玩家连续失败多少个 Tick 后断开
const maxPlayerFailures = 3

// RoomParams 房间运行中可热更新的规则，下一个 Tick 生效
type RoomParams struct {
	Speed            float64 `json:"speed"`
	MaxInputsPerTick int     `json:"maxInputsPerTick"`
}

type joinRequest struct {
	id    PlayerID
	conn  Outbound
	join  protocol.Join
	inbox *InputBuffer
}

// Room 一个权威世界。玩家、实体与快照只由 Tick 访问，
// 连接通过通道和各自的输入缓冲与房间交互
type Room struct {
	ID string

	cfg   RoomConfig
	world game.Map
	step  time.Duration

	paramsMu deadlock.RWMutex
	params   RoomParams

	players   map[PlayerID]*Player
	joinChan  chan joinRequest
	leaveChan chan PlayerID
	rng       *rand.Rand

	done     chan struct{}
	stopOnce sync.Once

	// lifeMu 使 join 预约与房间关闭互斥，保证不会回收仍有 join 在途的房间
	lifeMu       deadlock.Mutex
	closed       bool
	pendingJoins int

	keepAlive  bool      // 空置时也不回收
	emptySince time.Time // 仅 Tick 协程访问

	nextID        atomic.Uint64
	tickSeq       atomic.Uint64
	playerCount   atomic.Int64
	tickerStarted atomic.Bool
	metrics       *RoomMetrics
}

// NewRoom 创建未运行的房间。StartTicker 启动，或用 Step 手动推进
func NewRoom(id string, cfg RoomConfig) *Room {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Room{
		ID:        id,
		cfg:       cfg,
		world:     cfg.Map(),
		step:      cfg.TickInterval(),
		params:    RoomParams{Speed: cfg.Speed, MaxInputsPerTick: cfg.MaxInputsPerTick},
		players:   make(map[PlayerID]*Player),
		joinChan:  make(chan joinRequest, 64),
		leaveChan: make(chan PlayerID, 64),
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		done:      make(chan struct{}),
		metrics:   &RoomMetrics{},
	}
}

func (r *Room) Params() RoomParams {
	r.paramsMu.RLock()
	defer r.paramsMu.RUnlock()
	return r.params
}

func (r *Room) SetParams(p RoomParams) error {
	if p.Speed < 0 {
		return fmt.Errorf("speed must not be negative, got %v", p.Speed)
	}
	if p.MaxInputsPerTick < 0 {
		return fmt.Errorf("maxInputsPerTick must not be negative, got %d", p.MaxInputsPerTick)
	}
	r.paramsMu.Lock()
	r.params = p
	r.paramsMu.Unlock()
	return nil
}

func (r *Room) Metrics() *RoomMetrics { return r.metrics }
func (r *Room) Tick() uint64          { return r.tickSeq.Load() }
func (r *Room) PlayerCount() int      { return int(r.playerCount.Load()) }

// RequestJoin 为 conn 分配 id，并把 join 排入下一个 Tick；玩家输入写入返回的缓冲
func (r *Room) RequestJoin(ctx context.Context, conn Outbound, j protocol.Join) (PlayerID, *InputBuffer, error) {
	r.lifeMu.Lock()
	if r.closed {
		r.lifeMu.Unlock()
		return "", nil, ErrRoomClosed
	}
	r.pendingJoins++
	r.lifeMu.Unlock()

	id := PlayerID(strconv.FormatUint(r.nextID.Add(1), 10))
	inbox := NewInputBuffer(r.cfg.MaxPendingInputs)
	select {
	case r.joinChan <- joinRequest{id: id, conn: conn, join: j, inbox: inbox}:
		return id, inbox, nil
	case <-ctx.Done():
		r.joinSettled()
		return "", nil, ctx.Err()
	case <-r.done:
		r.joinSettled()
		return "", nil, ErrRoomClosed
	}
}

func (r *Room) joinSettled() {
	r.lifeMu.Lock()
	r.pendingJoins--
	r.lifeMu.Unlock()
}

func (r *Room) joinsInFlight() int {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()
	return r.pendingJoins
}

// RequestLeave 请求 Tick 移除玩家，阻塞到请求入队或房间停止
func (r *Room) RequestLeave(id PlayerID) {
	select {
	case r.leaveChan <- id:
	case <-r.done:
	}
}

// OnInput 缓冲收到的一批输入，下一个 Tick 才应用
func (r *Room) OnInput(inbox *InputBuffer, batch []game.InputRecord) error {
	if _, err := inbox.Append(batch); err != nil {
		if errors.Is(err, ErrInboxFull) {
			r.metrics.IncInboxOverflow()
		}
		return err
	}
	r.metrics.AddAccepted(len(batch))
	return nil
}

// Step 执行一个 Tick：成员变更 → 应用输入 → 生成快照 → 广播，返回广播的快照
func (r *Room) Step() game.WorldSnapshot {
	start := time.Now()
	tick := r.tickSeq.Add(1)
	params := r.Params()

	r.drainJoins()
	r.drainLeaves()

	ids := r.sortedIDs()
	for _, id := range ids {
		p := r.players[id]
		if p.State != StatePlaying {
			continue
		}
		if err := r.stepPlayer(p, params); err != nil {
			r.metrics.IncPlayerErrors()
			p.failures++
			if p.failures >= maxPlayerFailures {
				Log.Warnw("disconnecting player after repeated failures", "room", r.ID, "player", id, "tick", tick, "error", err)
				r.LeavePlayer(id)
				continue
			}
			Log.Warnw("player skipped for tick", "room", r.ID, "player", id, "tick", tick, "error", err)
		} else {
			p.failures = 0
		}
	}

	snap := game.WorldSnapshot{Tick: tick, Map: r.world, Speed: params.Speed, Players: make([]game.PlayerEntity, 0, len(ids))}
	for _, id := range ids {
		p, ok := r.players[id]
		if !ok {
			continue
		}
		if p.State == StateJoined || p.State == StatePlaying {
			snap.Players = append(snap.Players, p.Entity.Clone())
			p.State = StatePlaying
		}
	}
	r.Broadcast(snap)

	r.metrics.AddTick(time.Since(start).Nanoseconds())
	return snap
}

func (r *Room) drainJoins() {
	for {
		select {
		case req := <-r.joinChan:
			r.joinSettled()
			r.joinPlayer(req)
		default:
			return
		}
	}
}

func (r *Room) drainLeaves() {
	for {
		select {
		case id := <-r.leaveChan:
			r.LeavePlayer(id)
		default:
			return
		}
	}
}

func (r *Room) sortedIDs() []PlayerID {
	ids := make([]PlayerID, 0, len(r.players))
	for id := range r.players {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// joinPlayer 为排队的 join 创建实体并告知客户端 id，玩家出现在下一个快照中
func (r *Room) joinPlayer(req joinRequest) *Player {
	entity := game.PlayerEntity{
		ID:                 string(req.id),
		Nickname:           game.SanitizeNickname(req.join.Nickname),
		X:                  r.rng.Float64() * r.world.Width,
		Y:                  r.rng.Float64() * r.world.Height,
		Inventory:          game.NewInventory(r.cfg.InventorySize, req.join.Inventory, r.cfg.SpellTypes),
		LastAppliedInputID: game.NoInput,
	}
	p := &Player{Entity: entity, State: StateJoined, Conn: req.conn, inbox: req.inbox}
	r.players[req.id] = p
	r.playerCount.Add(1)

	if b, err := protocol.Encode(protocol.TypeYourID, protocol.YourID{ID: entity.ID}); err == nil {
		req.conn.Enqueue(b)
	} else {
		Log.Errorw("failed to encode yourId", "room", r.ID, "player", req.id, "error", err)
	}
	Log.Infow("player joined", "room", r.ID, "player", req.id, "nickname", entity.Nickname)
	return p
}

// LeavePlayer 移除玩家并丢弃其未处理输入
func (r *Room) LeavePlayer(id PlayerID) {
	p, ok := r.players[id]
	if !ok {
		return
	}
	p.State = StateDisconnected
	discarded := p.inbox.Discard()
	r.metrics.AddDiscarded(discarded)
	if p.Conn != nil {
		p.Conn.Close()
	}
	delete(r.players, id)
	r.playerCount.Add(-1)
	Log.Infow("player left", "room", r.ID, "player", id, "discarded", discarded)
}

// stepPlayer 应用玩家的一批输入。出错时实体保持 Tick 前状态，
// 这批输入放回缓冲；只有玩家被移除时输入才会丢失
func (r *Room) stepPlayer(p *Player, params RoomParams) (err error) {
	batch, dups := p.inbox.Drain(params.MaxInputsPerTick)
	r.metrics.AddDuplicates(dups)
	if len(batch) == 0 {
		return nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic applying inputs: %v", rec)
		}
		if err != nil {
			p.inbox.Requeue(batch)
		}
	}()

	next := p.Entity.Clone()
	rules := game.Rules{Speed: params.Speed, Step: r.step.Seconds()}
	applied := 0
	for _, in := range batch {
		if in.ID <= next.LastAppliedInputID {
			r.metrics.AddDuplicates(1)
			continue
		}
		if err := game.Apply(&next, in, r.world, rules); err != nil {
			if !errors.Is(err, game.ErrBadScroll) {
				return err
			}
			r.metrics.IncInvalidIgnored()
			Log.Debugw("ignoring input", "room", r.ID, "player", p.Entity.ID, "error", err)
		}
		next.LastAppliedInputID = in.ID
		applied++
	}
	p.Entity = next
	r.metrics.AddApplied(applied)
	return nil
}

// Broadcast 向所有游戏中的连接发送快照
func (r *Room) Broadcast(snap game.WorldSnapshot) {
	b, err := protocol.Encode(protocol.TypeUpdate, snap)
	if err != nil {
		Log.Errorw("failed to encode snapshot", "room", r.ID, "tick", snap.Tick, "error", err)
		return
	}
	for _, p := range r.players {
		if p.State != StatePlaying || p.Conn == nil {
			continue
		}
		if p.Conn.Enqueue(b) {
			r.metrics.AddBroadcast(len(b))
		} else {
			r.metrics.IncSnapshotsDropped()
		}
	}
}

// reapIfEmpty 房间无人超过 TTL 时停止房间，返回是否已停止
func (r *Room) reapIfEmpty(now time.Time) bool {
	if r.keepAlive || r.cfg.EmptyRoomTTL <= 0 {
		return false
	}
	if len(r.players) > 0 {
		r.emptySince = time.Time{}
		return false
	}
	if r.emptySince.IsZero() {
		r.emptySince = now
		return false
	}
	if now.Sub(r.emptySince) < r.cfg.EmptyRoomTTL {
		return false
	}

	r.lifeMu.Lock()
	if r.pendingJoins > 0 {
		r.lifeMu.Unlock()
		r.emptySince = time.Time{}
		return false
	}
	r.closed = true
	r.lifeMu.Unlock()
	r.stop()
	return true
}

// Stopped 房间是否已永久停止 Tick
func (r *Room) Stopped() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// stop 关闭所有连接并拒绝后续请求
func (r *Room) stop() {
	r.stopOnce.Do(func() {
		r.lifeMu.Lock()
		r.closed = true
		r.lifeMu.Unlock()
		close(r.done)
		r.rejectPendingJoins()
		for id := range r.players {
			r.LeavePlayer(id)
		}
	})
}

// rejectPendingJoins 关闭所有排队中的 join，包括关闭 done 时仍在入队的
func (r *Room) rejectPendingJoins() {
	for {
		select {
		case req := <-r.joinChan:
			r.joinSettled()
			req.inbox.Discard()
			req.conn.Close()
		default:
			if r.joinsInFlight() == 0 {
				return
			}
			runtime.Gosched()
		}
	}
}
