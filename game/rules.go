package game

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrUnknownInputType Apply 遇到无法识别的输入类型
	ErrUnknownInputType = errors.New("unknown input type")
	// ErrMissingPayload 输入的 payload 与类型不匹配
	ErrMissingPayload = errors.New("input payload missing")
	// ErrBadScroll 滚动方向越界；调用方视为忽略的输入而非失败
	ErrBadScroll = errors.New("invalid scroll direction")
)

// Rules 客户端预测与服务端权威模拟共用的移动参数，两端取值必须一致
type Rules struct {
	// Speed 每秒移动的世界单位
	Speed float64
	// Step 每次移动的积分步长（秒）
	Step float64
}

// Direction 返回窗口中心指向朝向点的单位向量；向量长度为 0 或数值非有限时 ok 为 false
func Direction(mv MovePayload) (dx, dy float64, ok bool) {
	vx := mv.FacingX - mv.WindowWidth/2
	vy := mv.FacingY - mv.WindowHeight/2
	l := math.Hypot(vx, vy)
	if l == 0 || math.IsNaN(l) || math.IsInf(l, 0) {
		return 0, 0, false
	}
	return vx / l, vy / l, true
}

// Clamp 把 p 限制在地图边界内
func Clamp(p *PlayerEntity, m Map) {
	p.X = clamp(p.X, m.Width)
	p.Y = clamp(p.Y, m.Height)
}

func clamp(v, hi float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}

// Scroll 按 dir 移动一格后的快捷栏下标，在 size 范围内循环
func Scroll(index, size int, dir ScrollDirection) int {
	if size <= 0 {
		return 0
	}
	index = ((index % size) + size) % size
	switch dir {
	case ScrollLeft:
		return (index - 1 + size) % size
	case ScrollRight:
		return (index + 1) % size
	}
	return index
}

// Apply 用单条输入推进 p，不修改 p.LastAppliedInputID（确认由调用方负责）
func Apply(p *PlayerEntity, in InputRecord, m Map, r Rules) error {
	switch in.Type {
	case InputMove:
		if in.Move == nil {
			return fmt.Errorf("input %d: %w", in.ID, ErrMissingPayload)
		}
		dx, dy, ok := Direction(*in.Move)
		if !ok {
			return nil
		}
		p.X += dx * r.Speed * r.Step
		p.Y += dy * r.Speed * r.Step
		p.Angle = math.Atan2(dy, dx)
		Clamp(p, m)
		return nil
	case InputScroll:
		if in.Scroll == nil {
			return fmt.Errorf("input %d: %w", in.ID, ErrMissingPayload)
		}
		if !in.Scroll.Direction.Valid() {
			return fmt.Errorf("input %d: %q: %w", in.ID, in.Scroll.Direction, ErrBadScroll)
		}
		p.SelectedItemIndex = Scroll(p.SelectedItemIndex, len(p.Inventory), in.Scroll.Direction)
		return nil
	}
	return fmt.Errorf("input %d: %q: %w", in.ID, in.Type, ErrUnknownInputType)
}

// Validate 只检查输入结构，不应用；滚动方向不在此检查，模拟时忽略非法值
func Validate(in InputRecord) error {
	switch in.Type {
	case InputMove:
		if in.Move == nil {
			return ErrMissingPayload
		}
	case InputScroll:
		if in.Scroll == nil {
			return ErrMissingPayload
		}
	default:
		return fmt.Errorf("%q: %w", in.Type, ErrUnknownInputType)
	}
	if in.ID < 0 {
		return fmt.Errorf("negative id %d", in.ID)
	}
	return nil
}
