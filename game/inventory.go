package game

// NewInventory 按请求的初始内容构建固定容量的快捷栏。
// 未知法术类型跳过，多余条目丢弃，空位留空；没有可用条目时按顺序填入允许的法术
func NewInventory(capacity int, seed, allowed []SpellType) []Item {
	if capacity <= 0 {
		return nil
	}
	known := make(map[SpellType]bool, len(allowed))
	for _, s := range allowed {
		known[s] = true
	}
	inv := make([]Item, 0, capacity)
	for _, s := range seed {
		if len(inv) == capacity {
			break
		}
		if known[s] {
			inv = append(inv, Item{Name: s})
		}
	}
	if len(inv) == 0 {
		for _, s := range allowed {
			if len(inv) == capacity {
				break
			}
			inv = append(inv, Item{Name: s})
		}
	}
	for len(inv) < capacity {
		inv = append(inv, Item{})
	}
	return inv
}

// InventoryEqual 逐格比较两个快捷栏
func InventoryEqual(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
