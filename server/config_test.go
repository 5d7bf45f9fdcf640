package server

import (
	"testing"
	"time"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil, envOf(nil), t.Logf)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":80" {
		t.Fatalf("expected default port 80, got %q", cfg.Addr)
	}
	if cfg.Room.TickInterval() != 50*time.Millisecond {
		t.Fatalf("unexpected tick interval %v", cfg.Room.TickInterval())
	}
}

func TestLoadEnvThenFlags(t *testing.T) {
	env := envOf(map[string]string{"PORT": "3000", "SORCERIO_TICK_RATE": "30"})
	cfg, err := Load(nil, env, t.Logf)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":3000" || cfg.Room.TickRate != 30 {
		t.Fatalf("env not applied: %+v", cfg)
	}

	cfg, err = Load([]string{"-addr", ":9000", "-spells", "fire, ice", "-inventory-size", "6"}, env, t.Logf)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("flag should override env, got %q", cfg.Addr)
	}
	if len(cfg.Room.SpellTypes) != 2 || cfg.Room.SpellTypes[1] != "ice" {
		t.Fatalf("unexpected spells %v", cfg.Room.SpellTypes)
	}
	if cfg.Room.InventorySize != 6 {
		t.Fatalf("unexpected inventory size %d", cfg.Room.InventorySize)
	}
}

func TestLoadIgnoresInvalidEnv(t *testing.T) {
	var logged bool
	cfg, err := Load(nil, envOf(map[string]string{"SORCERIO_TICK_RATE": "fast"}), func(string, ...any) { logged = true })
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !logged || cfg.Room.TickRate != 20 {
		t.Fatalf("invalid env should be reported and skipped, got rate %d", cfg.Room.TickRate)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	for _, args := range [][]string{
		{"-tick-rate", "0"},
		{"-inventory-size", "0"},
		{"-map-width", "-1"},
		{"-speed", "-5"},
	} {
		if _, err := Load(args, envOf(nil), t.Logf); err == nil {
			t.Errorf("Load(%v): expected an error", args)
		}
	}
}
