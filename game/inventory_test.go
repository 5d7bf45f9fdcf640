package game

import "testing"

var spells = []SpellType{"fire", "water", "earth", "air"}

func TestNewInventoryFiltersAndPads(t *testing.T) {
	inv := NewInventory(4, []SpellType{"water", "bogus", "fire"}, spells)
	want := []Item{{Name: "water"}, {Name: "fire"}, {}, {}}
	if !InventoryEqual(inv, want) {
		t.Fatalf("expected %v, got %v", want, inv)
	}
}

func TestNewInventoryTruncates(t *testing.T) {
	inv := NewInventory(2, []SpellType{"air", "earth", "fire"}, spells)
	if len(inv) != 2 || inv[0].Name != "air" || inv[1].Name != "earth" {
		t.Fatalf("unexpected inventory %v", inv)
	}
}

func TestNewInventoryDefaultsToAllowed(t *testing.T) {
	inv := NewInventory(6, nil, spells)
	if len(inv) != 6 {
		t.Fatalf("expected 6 slots, got %d", len(inv))
	}
	for i, s := range spells {
		if inv[i].Name != s {
			t.Fatalf("slot %d: expected %q, got %q", i, s, inv[i].Name)
		}
	}
	if !inv[4].Empty() || !inv[5].Empty() {
		t.Fatalf("expected trailing empty slots, got %v", inv)
	}
}

func TestCloneDoesNotShareInventory(t *testing.T) {
	p := PlayerEntity{Inventory: []Item{{Name: "fire"}}}
	c := p.Clone()
	c.Inventory[0].Name = "water"
	if p.Inventory[0].Name != "fire" {
		t.Fatalf("clone aliased the inventory")
	}
}
