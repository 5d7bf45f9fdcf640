package client

import "github.com/Flying-Toast/sorcerio/game"

// InputQueue 为输入编号并暂存到下次发送。id 从 0 开始，在队列生命周期内递增
type InputQueue struct {
	nextID  int64
	pending []game.InputRecord
}

// Enqueue 为 r 分配下一个 id 并入队，返回带 id 的记录供调用方保存用于重放
func (q *InputQueue) Enqueue(r game.InputRecord) game.InputRecord {
	r.ID = q.nextID
	q.nextID++
	q.pending = append(q.pending, r)
	return r
}

// FlushForSend 取出上次 flush 以来入队的全部输入
func (q *InputQueue) FlushForSend() []game.InputRecord {
	out := q.pending
	q.pending = nil
	return out
}

func (q *InputQueue) Len() int { return len(q.pending) }

// NextID 下一次 Enqueue 将分配的 id
func (q *InputQueue) NextID() int64 { return q.nextID }
