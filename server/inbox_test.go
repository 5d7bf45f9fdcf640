package server

import (
	"errors"
	"testing"

	"github.com/Flying-Toast/sorcerio/game"
)

func ids(records []game.InputRecord) []int64 {
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestInputBufferSortsAndDeduplicates(t *testing.T) {
	b := NewInputBuffer(0)
	if _, err := b.Append([]game.InputRecord{right(4), right(2), right(4)}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := b.Append([]game.InputRecord{right(3), right(2)}); err != nil {
		t.Fatalf("append: %v", err)
	}
	out, dups := b.Drain(0)
	if got := ids(out); len(got) != 3 || got[0] != 2 || got[1] != 3 || got[2] != 4 {
		t.Fatalf("expected ids [2 3 4], got %v", got)
	}
	if dups != 2 {
		t.Fatalf("expected 2 duplicates, got %d", dups)
	}
	if b.Len() != 0 {
		t.Fatalf("expected empty buffer")
	}
}

func TestInputBufferDrainKeepsRemainder(t *testing.T) {
	b := NewInputBuffer(0)
	_, _ = b.Append([]game.InputRecord{right(5), right(1), right(3)})
	out, _ := b.Drain(2)
	if got := ids(out); got[0] != 1 || got[1] != 3 {
		t.Fatalf("expected [1 3], got %v", got)
	}
	out, _ = b.Drain(2)
	if got := ids(out); len(got) != 1 || got[0] != 5 {
		t.Fatalf("expected [5], got %v", got)
	}
	if out, _ := b.Drain(2); out != nil {
		t.Fatalf("expected nothing left, got %v", ids(out))
	}
}

func TestInputBufferLimitRejectsWholeBatch(t *testing.T) {
	b := NewInputBuffer(3)
	if _, err := b.Append([]game.InputRecord{right(0), right(1)}); err != nil {
		t.Fatalf("append: %v", err)
	}
	n, err := b.Append([]game.InputRecord{right(2), right(3)})
	if !errors.Is(err, ErrInboxFull) {
		t.Fatalf("expected ErrInboxFull, got %v", err)
	}
	if n != 2 || b.Len() != 2 {
		t.Fatalf("rejected batch was partially buffered")
	}
}

func TestInputBufferDiscard(t *testing.T) {
	b := NewInputBuffer(0)
	_, _ = b.Append([]game.InputRecord{right(0), right(1)})
	if n := b.Discard(); n != 2 {
		t.Fatalf("expected 2 discarded, got %d", n)
	}
	if _, err := b.Append([]game.InputRecord{right(2)}); !errors.Is(err, ErrInboxClosed) {
		t.Fatalf("expected ErrInboxClosed, got %v", err)
	}
}

func TestInputBufferRequeueGoesFirst(t *testing.T) {
	b := NewInputBuffer(2)
	_, _ = b.Append([]game.InputRecord{right(0), right(1)})
	out, _ := b.Drain(0)
	_, _ = b.Append([]game.InputRecord{right(2), {ID: 1, Type: game.InputScroll}})

	b.Requeue(out)
	if b.Len() != 4 {
		t.Fatalf("requeue should ignore the limit, have %d records", b.Len())
	}
	got, dups := b.Drain(0)
	if order := ids(got); len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("expected [0 1 2], got %v", order)
	}
	if dups != 1 || got[1].Type != game.InputMove {
		t.Fatalf("requeued record should win over the later duplicate, got %+v", got[1])
	}

	b.Discard()
	b.Requeue(got)
	if b.Len() != 0 {
		t.Fatalf("closed buffer accepted requeued records")
	}
}
