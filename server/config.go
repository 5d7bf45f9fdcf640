package server

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Flying-Toast/sorcerio/game"
)

// Config 进程配置。优先级：DefaultConfig < 环境变量 < 命令行参数
type Config struct {
	Addr      string
	PublicDir string
	// MaxRooms 同时存在的房间上限，0 表示不限
	MaxRooms int
	Log      LogConfig
	Room     RoomConfig
}

// RoomConfig 创建房间时使用的参数
type RoomConfig struct {
	TickRate      int // 每秒 Tick 数
	Speed         float64
	MapWidth      float64
	MapHeight     float64
	InventorySize int
	SpellTypes    []game.SpellType

	// MaxInputsPerTick 每个玩家每 Tick 最多应用的输入数，其余留到后续 Tick，0 表示不限
	MaxInputsPerTick int
	// MaxPendingInputs 玩家未处理输入的上限，超出则断开连接
	MaxPendingInputs int
	// InputRate 每连接每秒入站输入消息数；读协程等待令牌而不丢弃，0 表示不限流
	InputRate  float64
	InputBurst int
	SendQueue  int
	Seed       uint64
	// EmptyRoomTTL 非默认房间无人多久后停止，0 表示永不回收
	EmptyRoomTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:      ":80",
		PublicDir: "public",
		MaxRooms:  64,
		Log: LogConfig{
			File:  "sorcerio.log",
			Level: "info",
		},
		Room: RoomConfig{
			TickRate:         20,
			Speed:            240,
			MapWidth:         4000,
			MapHeight:        4000,
			InventorySize:    4,
			SpellTypes:       []game.SpellType{"fire", "water", "earth", "air"},
			MaxInputsPerTick: 32,
			MaxPendingInputs: 1024,
			InputRate:        120,
			InputBurst:       30,
			SendQueue:        64,
			EmptyRoomTTL:     30 * time.Second,
		},
	}
}

// TickInterval 固定模拟步长
func (rc RoomConfig) TickInterval() time.Duration {
	if rc.TickRate <= 0 {
		return 50 * time.Millisecond
	}
	return time.Second / time.Duration(rc.TickRate)
}

func (rc RoomConfig) Map() game.Map {
	return game.Map{Width: rc.MapWidth, Height: rc.MapHeight}
}

// ApplyEnv 用环境变量覆盖字段，非法值经 logf 报告后跳过
func (c *Config) ApplyEnv(getenv func(string) string, logf func(string, ...any)) {
	if port := getenv("PORT"); port != "" {
		c.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	if raw := getenv("SORCERIO_TICK_RATE"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			c.Room.TickRate = v
		} else {
			logf("invalid SORCERIO_TICK_RATE=%q", raw)
		}
	}
	if raw := getenv("SORCERIO_LOG_FILE"); raw != "" {
		c.Log.File = raw
	}
	if raw := getenv("SORCERIO_PUBLIC_DIR"); raw != "" {
		c.PublicDir = raw
	}
}

// RegisterFlags 把命令行参数绑定到 c，当前值作为默认值
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Addr, "addr", c.Addr, "listen address, e.g. :8080")
	fs.StringVar(&c.PublicDir, "public", c.PublicDir, "directory served as the public root")
	fs.StringVar(&c.Log.File, "log-file", c.Log.File, "log file path (rotated)")
	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "debug, info, warn or error")
	fs.BoolVar(&c.Log.Stderr, "log-stderr", c.Log.Stderr, "also log to stderr")
	fs.IntVar(&c.Room.TickRate, "tick-rate", c.Room.TickRate, "simulation ticks per second")
	fs.Float64Var(&c.Room.Speed, "speed", c.Room.Speed, "player speed in world units per second")
	fs.Float64Var(&c.Room.MapWidth, "map-width", c.Room.MapWidth, "world width")
	fs.Float64Var(&c.Room.MapHeight, "map-height", c.Room.MapHeight, "world height")
	fs.IntVar(&c.Room.InventorySize, "inventory-size", c.Room.InventorySize, "hotbar slots per player")
	fs.Func("spells", "comma separated spell types (default "+joinSpells(c.Room.SpellTypes)+")", func(v string) error {
		spells := splitSpells(v)
		if len(spells) == 0 {
			return errors.New("no spell types given")
		}
		c.Room.SpellTypes = spells
		return nil
	})
	fs.IntVar(&c.Room.MaxInputsPerTick, "max-inputs-per-tick", c.Room.MaxInputsPerTick, "inputs applied per player per tick, 0 for no cap")
	fs.IntVar(&c.Room.MaxPendingInputs, "max-pending-inputs", c.Room.MaxPendingInputs, "unprocessed inputs allowed per player before disconnecting")
	fs.Float64Var(&c.Room.InputRate, "input-rate", c.Room.InputRate, "input messages per second per connection, 0 for unlimited")
	fs.IntVar(&c.Room.InputBurst, "input-burst", c.Room.InputBurst, "input message burst per connection")
	fs.IntVar(&c.Room.SendQueue, "send-queue", c.Room.SendQueue, "outbound messages buffered per connection")
	fs.Uint64Var(&c.Room.Seed, "seed", c.Room.Seed, "spawn RNG seed, 0 for time based")
	fs.IntVar(&c.MaxRooms, "max-rooms", c.MaxRooms, "rooms allowed at once, 0 for no cap")
	fs.DurationVar(&c.Room.EmptyRoomTTL, "empty-room-ttl", c.Room.EmptyRoomTTL, "stop rooms that stay empty this long, 0 to keep them")
}

// Load 依次合并默认值、环境变量与 args
func Load(args []string, getenv func(string) string, logf func(string, ...any)) (Config, error) {
	cfg := DefaultConfig()
	cfg.ApplyEnv(getenv, logf)
	fs := flag.NewFlagSet("sorcerio", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	rc := c.Room
	switch {
	case c.Addr == "":
		return errors.New("config: empty listen address")
	case rc.TickRate <= 0:
		return fmt.Errorf("config: tick rate must be positive, got %d", rc.TickRate)
	case rc.Speed < 0:
		return fmt.Errorf("config: negative speed %v", rc.Speed)
	case rc.MapWidth <= 0 || rc.MapHeight <= 0:
		return fmt.Errorf("config: map must have positive size, got %vx%v", rc.MapWidth, rc.MapHeight)
	case rc.InventorySize <= 0:
		return fmt.Errorf("config: inventory size must be positive, got %d", rc.InventorySize)
	case rc.MaxInputsPerTick < 0 || rc.MaxPendingInputs < 0:
		return errors.New("config: input limits must not be negative")
	case rc.InputRate < 0:
		return fmt.Errorf("config: negative input rate %v", rc.InputRate)
	case rc.InputRate > 0 && rc.InputBurst <= 0:
		return errors.New("config: input burst must be positive when rate limiting")
	case c.MaxRooms < 0 || rc.EmptyRoomTTL < 0:
		return errors.New("config: room limits must not be negative")
	}
	return nil
}

func splitSpells(v string) []game.SpellType {
	var out []game.SpellType
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, game.SpellType(s))
		}
	}
	return out
}

func joinSpells(spells []game.SpellType) string {
	parts := make([]string, len(spells))
	for i, s := range spells {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}
