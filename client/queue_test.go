package client

import (
	"testing"

	"github.com/Flying-Toast/sorcerio/game"
)

func TestInputQueueKeepsOrderAndNumbersFromCounter(t *testing.T) {
	var q InputQueue
	for i := 0; i < 3; i++ {
		q.Enqueue(game.InputRecord{Type: game.InputMove, Move: &game.MovePayload{}})
	}
	if got := q.FlushForSend(); len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}

	start := q.NextID()
	kinds := []game.InputType{game.InputScroll, game.InputMove, game.InputMove, game.InputScroll, game.InputMove}
	for _, k := range kinds {
		q.Enqueue(game.InputRecord{Type: k})
	}
	got := q.FlushForSend()
	if len(got) != len(kinds) {
		t.Fatalf("expected %d records, got %d", len(kinds), len(got))
	}
	for i, r := range got {
		if r.ID != start+int64(i) {
			t.Fatalf("record %d: expected id %d, got %d", i, start+int64(i), r.ID)
		}
		if r.Type != kinds[i] {
			t.Fatalf("record %d: expected %s, got %s", i, kinds[i], r.Type)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue after flush, got %d", q.Len())
	}
}

func TestInputQueueStartsAtZero(t *testing.T) {
	var q InputQueue
	if r := q.Enqueue(game.InputRecord{Type: game.InputMove}); r.ID != 0 {
		t.Fatalf("expected first id 0, got %d", r.ID)
	}
}
