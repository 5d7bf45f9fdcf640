package server

import (
	"errors"
	"slices"

	"github.com/sasha-s/go-deadlock"

	"github.com/Flying-Toast/sorcerio/game"
)

var (
	ErrInboxFull   = errors.New("input buffer full")
	ErrInboxClosed = errors.New("input buffer closed")
)

// InputBuffer 玩家已收到但尚未处理的输入。读协程追加，Tick 取出
type InputBuffer struct {
	mu      deadlock.Mutex
	records []game.InputRecord
	limit   int
	closed  bool
}

// NewInputBuffer 最多容纳 limit 条记录，0 表示不限
func NewInputBuffer(limit int) *InputBuffer {
	return &InputBuffer{limit: limit}
}

// Append 整批追加，要么全收要么全拒；返回追加后的缓冲条数
func (b *InputBuffer) Append(batch []game.InputRecord) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, ErrInboxClosed
	}
	if b.limit > 0 && len(b.records)+len(batch) > b.limit {
		return len(b.records), ErrInboxFull
	}
	b.records = append(b.records, batch...)
	return len(b.records), nil
}

// Drain 按 id 顺序取出至多 n 条（n <= 0 时全部取出）。
// 同 id 的记录只保留最先收到的一条，被合并的条数作为 dups 返回
func (b *InputBuffer) Drain(n int) (out []game.InputRecord, dups int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) == 0 {
		return nil, 0
	}
	slices.SortStableFunc(b.records, func(x, y game.InputRecord) int {
		switch {
		case x.ID < y.ID:
			return -1
		case x.ID > y.ID:
			return 1
		}
		return 0
	})
	uniq := b.records[:1]
	for _, r := range b.records[1:] {
		if r.ID == uniq[len(uniq)-1].ID {
			dups++
			continue
		}
		uniq = append(uniq, r)
	}

	if n <= 0 || n > len(uniq) {
		n = len(uniq)
	}
	out = make([]game.InputRecord, n)
	copy(out, uniq[:n])
	rest := make([]game.InputRecord, len(uniq)-n)
	copy(rest, uniq[n:])
	b.records = rest
	return out, dups
}

// Requeue 把已取出但未应用的记录放回队首（排在之后收到的输入前面）。
// 这些记录已计过一次数，不受 limit 限制
func (b *InputBuffer) Requeue(batch []game.InputRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || len(batch) == 0 {
		return
	}
	b.records = append(slices.Clone(batch), b.records...)
}

// Discard 清空并关闭缓冲，返回丢弃的条数
func (b *InputBuffer) Discard() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.records)
	b.records = nil
	b.closed = true
	return n
}

func (b *InputBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}
