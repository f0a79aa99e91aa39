package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/palemoky/mafia-night/internal/config"
	"github.com/palemoky/mafia-night/internal/game/room"
	"github.com/palemoky/mafia-night/internal/game/rule"
	"github.com/palemoky/mafia-night/internal/server/handler"
	"github.com/palemoky/mafia-night/internal/server/storage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 来源在 handleWebSocket 中由 OriginChecker 校验
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	EnableCompression: false,
}

// Server WebSocket 服务器
type Server struct {
	config      *config.Config
	redis       *redis.Client // 未配置地址时为 nil
	redisStore  *storage.RedisStore
	leaderboard *storage.LeaderboardManager
	registry    *room.Registry
	clients     map[string]*Client
	clientsMu   sync.RWMutex
	handler     *handler.Handler

	// 安全组件
	rateLimiter    *RateLimiter
	originChecker  *OriginChecker
	messageLimiter *MessageRateLimiter
	ipFilter       *IPFilter

	// 连接控制
	maxConnections int
	semaphore      chan struct{}

	// 维护模式
	maintenanceMode bool
	maintenanceMu   sync.RWMutex
}

// SettingsFromConfig 将配置转换为房间参数
func SettingsFromConfig(cfg *config.Config) (room.Settings, error) {
	killTie, err := rule.ParseKillTieBreak(cfg.Game.KillTieBreak)
	if err != nil {
		return room.Settings{}, err
	}
	lynchTie, err := rule.ParseLynchTieBreak(cfg.Game.LynchTieBreak)
	if err != nil {
		return room.Settings{}, err
	}

	s := room.DefaultSettings()
	s.MinPlayers = cfg.Game.MinPlayers
	s.MaxPlayers = cfg.Game.MaxPlayers
	s.NightDuration = cfg.Game.NightDurationTime()
	s.DayDuration = cfg.Game.DayDurationTime()
	s.VoteDuration = cfg.Game.VoteDurationTime()
	s.NightResultDelay = cfg.Game.NightResultDelayTime()
	s.CutsceneDelay = cfg.Game.CutsceneDelayTime()
	s.VoteResultDelay = cfg.Game.VoteResultDelayTime()
	s.LobbyGrace = cfg.Game.LobbyGraceTime()
	s.MatchGrace = cfg.Game.MatchGraceTime()
	s.SweepInterval = cfg.Game.SweepIntervalTime()
	s.IdleThreshold = cfg.Game.IdleThresholdTime()
	s.ChatPerSecond = cfg.Security.ChatLimit.MaxPerSecond
	s.ChatBurst = cfg.Security.ChatLimit.Burst
	s.Policy.KillTie = killTie
	s.Policy.LynchTie = lynchTie
	return s, nil
}

// NewServer 创建服务器实例
// Redis 地址为空时不启用房间镜像和排行榜。
func NewServer(cfg *config.Config) (*Server, error) {
	settings, err := SettingsFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("游戏配置无效: %w", err)
	}
	ipFilter, err := NewIPFilter(cfg.Security.IPWhitelist, cfg.Security.IPBlacklist)
	if err != nil {
		return nil, fmt.Errorf("安全配置无效: %w", err)
	}

	s := &Server{
		config:  cfg,
		clients: make(map[string]*Client),
		rateLimiter: NewRateLimiter(
			cfg.Security.RateLimit.MaxPerSecond,
			cfg.Security.RateLimit.MaxPerMinute,
			cfg.Security.RateLimit.BanDurationTime(),
		),
		originChecker:  NewOriginChecker(cfg.Security.AllowedOrigins),
		messageLimiter: NewMessageRateLimiter(cfg.Security.MessageLimit.MaxPerSecond),
		ipFilter:       ipFilter,
		maxConnections: cfg.Server.MaxConnections,
		semaphore:      make(chan struct{}, cfg.Server.MaxConnections),
	}

	var opts []room.Option
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis 连接失败: %w", err)
		}

		s.redis = rdb
		s.redisStore = storage.NewRedisStore(rdb)
		s.leaderboard = storage.NewLeaderboardManager(rdb)
		opts = append(opts, room.WithMirror(s.redisStore), room.WithRecorder(s.leaderboard))
		log.Info().Str("addr", cfg.Redis.Addr).Msg("🗄️ Redis 已连接，启用房间镜像和排行榜")
	} else {
		log.Warn().Msg("⚠️ 未配置 Redis，房间镜像和排行榜已禁用")
	}

	s.registry = room.NewRegistry(settings, opts...)

	deps := handler.HandlerDeps{Server: s, Registry: s.registry}
	if s.leaderboard != nil {
		deps.Leaderboard = s.leaderboard
	}
	s.handler = handler.NewHandler(deps)

	log.Info().
		Int("conn_per_sec", cfg.Security.RateLimit.MaxPerSecond).
		Int("msg_per_sec", cfg.Security.MessageLimit.MaxPerSecond).
		Float64("chat_per_sec", cfg.Security.ChatLimit.MaxPerSecond).
		Int("max_conn", cfg.Server.MaxConnections).
		Msg("🔒 安全配置")

	return s, nil
}

// Routes 注册 HTTP 路由
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /rooms", s.handleRooms)
	mux.HandleFunc("GET /rooms/{code}", s.handleRoomSnapshot)
	mux.HandleFunc("GET /rooms/{code}/history", s.handleRoomHistory)
	return mux
}

// Start 启动服务器
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	go s.monitorStats()

	log.Info().Str("addr", addr).Int("cpus", runtime.NumCPU()).Msgf("🚀 服务器启动在 ws://%s/ws", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second, // 防止 Slowloris 攻击
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return server.ListenAndServe()
}
