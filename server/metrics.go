package server

import (
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

// RoomMetrics 单个房间的统计计数，所有方法并发安全
type RoomMetrics struct {
	TickCount         int64
	InputsAccepted    int64 // 进入玩家缓冲的输入数
	InputsApplied     int64
	DuplicatesIgnored int64 // 重复或已确认 id 的输入数
	InvalidIgnored    int64 // 结构合法但无意义的输入数，例如越界滚动
	InputsDiscarded   int64 // 玩家离开时仍在缓冲中的输入数
	RateLimited       int64 // 需等待限流器的输入消息数
	InboxOverflows    int64 // 因超出待处理上限被断开的连接数
	PlayerErrors      int64 // 某 Tick 被跳过的玩家次数
	SnapshotsDropped  int64 // 发送队列满被丢弃的快照数
	BytesBroadcast    int64
	TotalTickNs       int64
}

func (m *RoomMetrics) AddAccepted(n int)    { atomic.AddInt64(&m.InputsAccepted, int64(n)) }
func (m *RoomMetrics) AddApplied(n int)     { atomic.AddInt64(&m.InputsApplied, int64(n)) }
func (m *RoomMetrics) AddDuplicates(n int)  { atomic.AddInt64(&m.DuplicatesIgnored, int64(n)) }
func (m *RoomMetrics) IncInvalidIgnored()   { atomic.AddInt64(&m.InvalidIgnored, 1) }
func (m *RoomMetrics) AddDiscarded(n int)   { atomic.AddInt64(&m.InputsDiscarded, int64(n)) }
func (m *RoomMetrics) IncRateLimited()      { atomic.AddInt64(&m.RateLimited, 1) }
func (m *RoomMetrics) IncInboxOverflow()    { atomic.AddInt64(&m.InboxOverflows, 1) }
func (m *RoomMetrics) IncPlayerErrors()     { atomic.AddInt64(&m.PlayerErrors, 1) }
func (m *RoomMetrics) IncSnapshotsDropped() { atomic.AddInt64(&m.SnapshotsDropped, 1) }
func (m *RoomMetrics) AddBroadcast(n int)   { atomic.AddInt64(&m.BytesBroadcast, int64(n)) }
func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回当前时刻的副本，用于 JSON 输出
func (m *RoomMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	bytes := atomic.LoadInt64(&m.BytesBroadcast)
	return map[string]any{
		"tick_count":         tick,
		"inputs_accepted":    atomic.LoadInt64(&m.InputsAccepted),
		"inputs_applied":     atomic.LoadInt64(&m.InputsApplied),
		"duplicates_ignored": atomic.LoadInt64(&m.DuplicatesIgnored),
		"invalid_ignored":    atomic.LoadInt64(&m.InvalidIgnored),
		"inputs_discarded":   atomic.LoadInt64(&m.InputsDiscarded),
		"rate_limited":       atomic.LoadInt64(&m.RateLimited),
		"inbox_overflows":    atomic.LoadInt64(&m.InboxOverflows),
		"player_errors":      atomic.LoadInt64(&m.PlayerErrors),
		"snapshots_dropped":  atomic.LoadInt64(&m.SnapshotsDropped),
		"bytes_broadcast":    bytes,
		"bytes_broadcast_h":  humanize.Bytes(uint64(bytes)),
		"avg_tick_ms":        avgMs,
	}
}
