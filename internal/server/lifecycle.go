package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/mafia-night/internal/protocol"
	"github.com/palemoky/mafia-night/internal/protocol/codec"
)

// monitorStats 定期记录服务器状态
func (s *Server) monitorStats() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		log.Info().
			Int("online", s.GetOnlineCount()).
			Int("rooms", s.registry.Count()).
			Int("active_games", s.registry.ActiveGamesCount()).
			Int("goroutines", runtime.NumGoroutine()).
			Int("conns", len(s.semaphore)).
			Int("max_conns", s.maxConnections).
			Float64("mem_mb", float64(m.Alloc)/1024/1024).
			Msg("📊 [监控]")
	}
}

// EnterMaintenanceMode 进入维护模式：拒绝新连接和新房间
func (s *Server) EnterMaintenanceMode() {
	s.maintenanceMu.Lock()
	s.maintenanceMode = true
	s.maintenanceMu.Unlock()

	s.BroadcastToLobby(codec.NewErrorMessageWithText(protocol.ErrCodeServerMaintenance,
		"👷🏻‍♂️ 维护模式：停止新的房间创建"))

	log.Warn().Msg("🔧 进入维护模式：停止新连接和房间创建")
}

// IsMaintenanceMode 检查是否在维护模式
func (s *Server) IsMaintenanceMode() bool {
	s.maintenanceMu.RLock()
	defer s.maintenanceMu.RUnlock()
	return s.maintenanceMode
}

// GracefulShutdown 等待进行中的对局结束后关闭服务器
func (s *Server) GracefulShutdown(timeout time.Duration) {
	s.EnterMaintenanceMode()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(s.config.Game.ShutdownCheckIntervalDuration())
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		activeGames := s.registry.ActiveGamesCount()
		if activeGames == 0 {
			log.Info().Int("delay_sec", s.config.Game.RoomCleanupDelay).Msg("✅ 所有对局已结束，即将关闭服务器")
			s.Broadcast(codec.NewErrorMessageWithText(protocol.ErrCodeServerMaintenance,
				fmt.Sprintf("🚧 服务器将在 %d 秒后停机维护！", s.config.Game.RoomCleanupDelay)))
			break
		}
		log.Info().Int("active_games", activeGames).Msg("⏳ 等待对局结束...")
		<-ticker.C
	}

	if activeGames := s.registry.ActiveGamesCount(); activeGames > 0 {
		log.Warn().Int("active_games", activeGames).Msg("⚠️ 超时，仍有对局进行中，强制关闭")
	}

	s.sendShutdownNotification()
	s.Shutdown()
}

// sendShutdownNotification 向 SHUTDOWN_NOTIFY_URL 推送关闭通知（未配置时跳过）
func (s *Server) sendShutdownNotification() {
	notifyURL := os.Getenv("SHUTDOWN_NOTIFY_URL")
	if notifyURL == "" {
		return
	}

	body, _ := json.Marshal(map[string]string{"text": "狼人夜服务器已优雅关闭，开始升级吧！"})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, notifyURL, bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Msg("创建通知请求失败")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if secret := os.Getenv("SHUTDOWN_NOTIFY_SECRET"); secret != "" {
		req.Header.Set("Notify-Secret", secret)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("发送关闭通知失败")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		log.Info().Msg("🔔 已发送关闭通知")
	} else {
		log.Warn().Int("status", resp.StatusCode).Msg("通知响应异常")
	}
}

// Shutdown 关闭所有连接、房间和 Redis
func (s *Server) Shutdown() {
	time.Sleep(s.config.Game.RoomCleanupDelayDuration())

	s.clientsMu.Lock()
	for _, client := range s.clients {
		client.Close()
	}
	s.clientsMu.Unlock()

	s.registry.Close()

	if s.redis != nil {
		s.expireMirrors()
		_ = s.redis.Close()
	}

	log.Info().Msg("👋 服务器已关闭")
}

// expireMirrors 缩短残留房间镜像的过期时间
func (s *Server) expireMirrors() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	codes, err := s.redisStore.GetAllRoomCodes(ctx)
	if err != nil {
		log.Error().Err(err).Msg("读取房间镜像失败")
		return
	}
	for _, code := range codes {
		if err := s.redisStore.SetRoomExpiration(ctx, code, time.Minute); err != nil {
			log.Error().Err(err).Str("room", code).Msg("设置镜像过期失败")
		}
	}
}
