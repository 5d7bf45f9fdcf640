package server

import (
	"encoding/json"
	"net/http"
)

// HandleAdminConfig 读取或热更新房间规则
// GET  /admin/config?room=main  返回当前值
// POST /admin/config?room=main  只更新 JSON 中出现的字段
func (s *Server) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	room, ok := s.rooms.Get(roomParam(r))
	if !ok {
		http.Error(w, "unknown room", http.StatusNotFound)
		return
	}

	type cfg struct {
		Speed            *float64 `json:"speed,omitempty"`
		MaxInputsPerTick *int     `json:"maxInputsPerTick,omitempty"`
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, room.Params())
	case http.MethodPost:
		var body cfg
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		params := room.Params()
		if body.Speed != nil {
			params.Speed = *body.Speed
		}
		if body.MaxInputsPerTick != nil {
			params.MaxInputsPerTick = *body.MaxInputsPerTick
		}
		if err := room.SetParams(params); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		Log.Infow("room config updated", "room", room.ID, "speed", params.Speed, "max_inputs_per_tick", params.MaxInputsPerTick)
		writeJSON(w, map[string]any{"ok": true, "params": params})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics 返回房间统计
// GET /metrics?room=main
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	room, ok := s.rooms.Get(roomParam(r))
	if !ok {
		http.Error(w, "unknown room", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"room":    room.ID,
		"tick":    room.Tick(),
		"players": room.PlayerCount(),
		"metrics": room.Metrics().Snapshot(),
	})
}

func roomParam(r *http.Request) string {
	if id := r.URL.Query().Get("room"); id != "" {
		return id
	}
	return DefaultRoom
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Log.Debugw("failed to write response", "error", err)
	}
}
