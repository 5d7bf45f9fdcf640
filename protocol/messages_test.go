package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Flying-Toast/sorcerio/game"
)

func TestEncodeDecodeInputBatch(t *testing.T) {
	batch := []game.InputRecord{
		{ID: 4, Type: game.InputMove, Move: &game.MovePayload{FacingX: 1, FacingY: 2, WindowWidth: 3, WindowHeight: 4}},
		{ID: 5, Type: game.InputScroll, Scroll: &game.ScrollPayload{Direction: game.ScrollLeft}},
	}
	b, err := Encode(TypeInput, batch)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, err := DecodeInput(env)
	if err != nil {
		t.Fatalf("decode input: %v", err)
	}
	if len(got) != 2 || got[0].ID != 4 || got[1].Scroll.Direction != game.ScrollLeft {
		t.Fatalf("unexpected batch %+v", got)
	}
}

func TestDecodeBareNicknameIsJoin(t *testing.T) {
	env, err := Decode([]byte(`{"nickname":"gandalf"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Type != TypeJoin {
		t.Fatalf("expected join, got %q", env.Type)
	}
	j, err := DecodeJoin(env)
	if err != nil {
		t.Fatalf("decode join: %v", err)
	}
	if j.Nickname != "gandalf" {
		t.Fatalf("unexpected nickname %q", j.Nickname)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, raw := range []string{`not json`, `{}`, `{"data":1}`} {
		if _, err := Decode([]byte(raw)); !errors.Is(err, ErrMalformed) {
			t.Errorf("Decode(%s): expected ErrMalformed, got %v", raw, err)
		}
	}
}

func TestDecodeInputRejectsMissingPayload(t *testing.T) {
	env := Envelope{Type: TypeInput, Data: json.RawMessage(`[{"id":1,"type":"move"}]`)}
	if _, err := DecodeInput(env); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestDecodeWrongType(t *testing.T) {
	env := Envelope{Type: TypeUpdate, Data: json.RawMessage(`{}`)}
	if _, err := DecodeJoin(env); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestSchemaCoversMessages(t *testing.T) {
	b, err := json.Marshal(Schema())
	if err != nil {
		t.Fatalf("marshal schema: %v", err)
	}
	out := string(b)
	for _, want := range []string{`"join"`, `"input"`, `"update"`, `"yourId"`, `"nickname"`, `"lastAppliedInputId"`} {
		if !strings.Contains(out, want) {
			t.Errorf("schema is missing %s", want)
		}
	}
}
