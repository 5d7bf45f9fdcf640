package server

import (
	"context"
	"time"
)

// StartTicker 按固定节奏推进房间，直到 ctx 取消或房间空置超过 TTL；重复调用无效
func (r *Room) StartTicker(ctx context.Context) {
	if !r.tickerStarted.CompareAndSwap(false, true) {
		return
	}
	go func() {
		ticker := time.NewTicker(r.step)
		defer ticker.Stop()
		defer r.stop()
		for {
			select {
			case <-ctx.Done():
				Log.Infow("room stopped", "room", r.ID, "tick", r.Tick())
				return
			case now := <-ticker.C:
				r.Step()
				if r.reapIfEmpty(now) {
					Log.Infow("empty room stopped", "room", r.ID, "tick", r.Tick())
					return
				}
			}
		}
	}()
}

// Done 房间停止后关闭
func (r *Room) Done() <-chan struct{} { return r.done }
