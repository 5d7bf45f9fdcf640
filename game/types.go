package game

// NoInput 尚未应用任何输入的实体的 LastAppliedInputID，客户端 id 从 0 开始
const NoInput int64 = -1

// InputType 标识 InputRecord 携带的 payload 类型
type InputType string

const (
	InputMove   InputType = "move"
	InputScroll InputType = "scroll"
)

// ScrollDirection 快捷栏选择左移或右移一格
type ScrollDirection string

const (
	ScrollLeft  ScrollDirection = "left"
	ScrollRight ScrollDirection = "right"
)

// Valid d 是否为已知方向
func (d ScrollDirection) Valid() bool {
	return d == ScrollLeft || d == ScrollRight
}

// MovePayload 朝向点（窗口像素）及采样时的窗口尺寸，移动方向为窗口中心指向朝向点
type MovePayload struct {
	FacingX      float64 `json:"x"`
	FacingY      float64 `json:"y"`
	WindowWidth  float64 `json:"w"`
	WindowHeight float64 `json:"h"`
}

type ScrollPayload struct {
	Direction ScrollDirection `json:"direction"`
}

// InputRecord 一条客户端输入，Move 与 Scroll 按 Type 恰好设置其一
type InputRecord struct {
	ID     int64          `json:"id"`
	Type   InputType      `json:"type"`
	Move   *MovePayload   `json:"move,omitempty"`
	Scroll *ScrollPayload `json:"scroll,omitempty"`
}

// SpellType 物品种类
type SpellType string

// Item 快捷栏中的一格，Name 为空表示空格
type Item struct {
	Name SpellType `json:"name"`
}

// Empty 该格是否为空
func (it Item) Empty() bool { return it.Name == "" }

// PlayerEntity 一个在线玩家的权威状态
type PlayerEntity struct {
	ID                 string  `json:"id"`
	Nickname           string  `json:"nickname"`
	X                  float64 `json:"x"`
	Y                  float64 `json:"y"`
	Angle              float64 `json:"angle"`
	Inventory          []Item  `json:"inventory"`
	SelectedItemIndex  int     `json:"selectedItemIndex"`
	LastAppliedInputID int64   `json:"lastAppliedInputId"`
}

// Clone 返回与 p 不共享内存的副本
func (p PlayerEntity) Clone() PlayerEntity {
	out := p
	if p.Inventory != nil {
		out.Inventory = make([]Item, len(p.Inventory))
		copy(out.Inventory, p.Inventory)
	}
	return out
}

// Map 世界边界，坐标范围 [0,Width]x[0,Height]
type Map struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// WorldSnapshot 某个 Tick 的完整世界状态。Speed 为该 Tick 使用的移动速度，房间运行中可能变化
type WorldSnapshot struct {
	Tick    uint64         `json:"tick"`
	Players []PlayerEntity `json:"players"`
	Map     Map            `json:"map"`
	Speed   float64        `json:"speed"`
}

// Find 按 id 查找实体
func (s WorldSnapshot) Find(id string) (PlayerEntity, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerEntity{}, false
}
