package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/mafia-night/internal/protocol"
	"github.com/palemoky/mafia-night/internal/protocol/codec"
	"github.com/palemoky/mafia-night/internal/types"
)

// historyLimit /rooms/{code}/history 返回的记录数
const historyLimit = 20

// handleWebSocket 处理 WebSocket 连接
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientIP := GetClientIP(r)

	// 维护模式检查（最优先）
	if s.IsMaintenanceMode() {
		log.Info().Str("ip", clientIP).Msg("🔧 维护模式，拒绝新连接")
		http.Error(w, "Server is under maintenance, please try again later", http.StatusServiceUnavailable)
		return
	}

	// 连接数限制
	select {
	case s.semaphore <- struct{}{}:
	default:
		log.Warn().Int("max", s.maxConnections).Str("ip", clientIP).Msg("🚫 达到最大连接数限制")
		http.Error(w, "Server Full", http.StatusServiceUnavailable)
		return
	}
	release := true
	defer func() {
		if release {
			<-s.semaphore
		}
	}()

	if !s.ipFilter.IsAllowed(clientIP) {
		log.Warn().Str("ip", clientIP).Msg("🚫 IP 被过滤器拒绝")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if !s.originChecker.Check(r) {
		log.Warn().Str("origin", r.Header.Get("Origin")).Str("ip", clientIP).Msg("🚫 来源验证失败")
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	if !s.rateLimiter.Allow(clientIP) {
		log.Warn().Str("ip", clientIP).Msg("🚫 IP 请求过于频繁")
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		return
	}

	wc := CodecJSON
	if r.URL.Query().Get("codec") == "protobuf" {
		wc = CodecProtobuf
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("ip", clientIP).Msg("WebSocket 升级失败")
		return
	}

	client := NewClient(s, conn, wc)
	client.IP = clientIP
	s.registerClient(client)

	client.SendMessage(codec.MustNewMessage(protocol.MsgConnected, protocol.ConnectedPayload{
		ConnectionID: client.ID,
	}))

	log.Info().Str("client", client.ID).Str("ip", clientIP).Msg("✅ 新连接已建立")

	// 信号量随连接生命周期释放
	release = false
	go func() {
		defer func() { <-s.semaphore }()
		client.ReadPump()
	}()
	go client.WritePump()
}

// handleHealth 健康检查接口
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleRooms 返回 Redis 中镜像的房间号
func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	if s.redisStore == nil {
		http.NotFound(w, r)
		return
	}
	codes, err := s.redisStore.GetAllRoomCodes(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("读取房间列表失败")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"rooms": codes, "online": s.GetOnlineCount()})
}

// handleRoomSnapshot 返回房间快照（不含身份）
func (s *Server) handleRoomSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.redisStore == nil {
		http.NotFound(w, r)
		return
	}
	data, err := s.redisStore.LoadRoom(r.Context(), r.PathValue("code"))
	if err != nil {
		log.Error().Err(err).Msg("读取房间快照失败")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if data == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, data)
}

// handleRoomHistory 返回房间最近的对局记录
func (s *Server) handleRoomHistory(w http.ResponseWriter, r *http.Request) {
	if s.leaderboard == nil {
		http.NotFound(w, r)
		return
	}
	records, err := s.leaderboard.GetRoomHistory(r.Context(), r.PathValue("code"), historyLimit)
	if err != nil {
		log.Error().Err(err).Msg("读取对局历史失败")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, records)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("写入响应失败")
	}
}

// registerClient 注册客户端
func (s *Server) registerClient(client *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[client.ID] = client
}

// unregisterClient 注销客户端
func (s *Server) unregisterClient(client *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if _, ok := s.clients[client.ID]; ok {
		delete(s.clients, client.ID)
		log.Info().Str("client", client.ID).Msg("❌ 连接已断开")
	}
}

// GetClientByID 按连接 ID 查找客户端
func (s *Server) GetClientByID(id string) types.ClientInterface {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	if c, ok := s.clients[id]; ok {
		return c
	}
	return nil
}
