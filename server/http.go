package server

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/Flying-Toast/sorcerio/protocol"
)

// Server 把房间挂到 HTTP 路由上
type Server struct {
	ctx   context.Context
	cfg   Config
	rooms *RoomManager
}

// NewServer 创建服务端及默认房间，ctx 取消时房间停止
func NewServer(ctx context.Context, cfg Config) *Server {
	s := &Server{
		ctx:   ctx,
		cfg:   cfg,
		rooms: NewRoomManager(ctx, cfg.Room, cfg.MaxRooms),
	}
	if _, err := s.rooms.GetOrCreateRoom(DefaultRoom); err != nil {
		Log.Errorw("failed to start default room", "error", err)
	}
	return s
}

func (s *Server) Rooms() *RoomManager { return s.rooms }

// Handler 返回 HTTP 路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	mux.HandleFunc("/meta.json", s.HandleMeta)
	mux.HandleFunc("/schema.json", s.HandleSchema)
	mux.HandleFunc("/admin/config", s.HandleAdminConfig)
	mux.HandleFunc("/metrics", s.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for route, file := range map[string]string{
		"/tutorial": "tutorial.html",
		"/credits":  "credits.txt",
		"/wiki":     filepath.Join("wiki", "wiki.html"),
	} {
		path := filepath.Join(s.cfg.PublicDir, file)
		mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, path)
		})
	}
	mux.Handle("/", http.FileServer(http.Dir(s.cfg.PublicDir)))
	return mux
}

// Meta 客户端进入房间前读取的元数据，speed 反映管理接口的热更新
func (s *Server) Meta(roomID string) protocol.Meta {
	rc := s.cfg.Room
	speed := rc.Speed
	if room, ok := s.rooms.Get(roomID); ok {
		speed = room.Params().Speed
	}
	return protocol.Meta{
		InventorySize:  rc.InventorySize,
		SpellTypes:     rc.SpellTypes,
		TickRate:       rc.TickRate,
		TickIntervalMs: rc.TickInterval().Milliseconds(),
		Speed:          speed,
	}
}

// HandleMeta 处理 /meta.json?room=<name>
func (s *Server) HandleMeta(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Meta(roomParam(r)))
}

func (s *Server) HandleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, protocol.Schema())
}
