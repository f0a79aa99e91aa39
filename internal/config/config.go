package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 默认值
const (
	defaultHost           = "0.0.0.0"
	defaultPort           = 1780
	defaultMaxConnections = 10000
	defaultLogLevel       = "info"

	defaultMinPlayers       = 4
	defaultMaxPlayers       = 12
	defaultNightDuration    = 30
	defaultDayDuration      = 60
	defaultVoteDuration     = 30
	defaultNightResultDelay = 3
	defaultCutsceneDelay    = 8
	defaultVoteResultDelay  = 5
	defaultLobbyGrace       = 10
	defaultMatchGrace       = 60
	defaultSweepInterval    = 60
	defaultIdleThreshold    = 30
	defaultKillTieBreak     = "first_vote"
	defaultLynchTieBreak    = "no_elimination"

	defaultShutdownTimeout       = 30
	defaultShutdownCheckInterval = 10
	defaultRoomCleanupDelay      = 5

	defaultRateMaxPerSecond    = 10
	defaultRateMaxPerMinute    = 60
	defaultBanDuration         = 300
	defaultMessageMaxPerSecond = 20
	defaultChatMaxPerSecond    = 1
	defaultChatBurst           = 5
)

// 环境变量
const (
	EnvServerHost     = "MAFIA_SERVER_HOST"
	EnvServerPort     = "MAFIA_SERVER_PORT"
	EnvRedisAddr      = "MAFIA_REDIS_ADDR"
	EnvRedisPassword  = "MAFIA_REDIS_PASSWORD"
	EnvLogLevel       = "MAFIA_LOG_LEVEL"
	EnvAllowedOrigins = "MAFIA_ALLOWED_ORIGINS"
	EnvIPWhitelist    = "MAFIA_IP_WHITELIST"
	EnvIPBlacklist    = "MAFIA_IP_BLACKLIST"
)

// Config 服务端配置
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
	Game     GameConfig     `yaml:"game"`
	Security SecurityConfig `yaml:"security"`
}

// ServerConfig WebSocket 服务器配置
type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	MaxConnections int    `yaml:"max_connections"`
}

// RedisConfig Redis 配置，Addr 为空时不启用镜像和排行榜
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// GameConfig 游戏配置（时长单位为秒，IdleThreshold 和 ShutdownTimeout 为分钟）
type GameConfig struct {
	MinPlayers int `yaml:"min_players"`
	MaxPlayers int `yaml:"max_players"`

	NightDuration    int `yaml:"night_duration"`
	DayDuration      int `yaml:"day_duration"`
	VoteDuration     int `yaml:"vote_duration"`
	NightResultDelay int `yaml:"night_result_delay"`
	CutsceneDelay    int `yaml:"cutscene_delay"`
	VoteResultDelay  int `yaml:"vote_result_delay"`

	LobbyGrace    int `yaml:"lobby_grace"`
	MatchGrace    int `yaml:"match_grace"`
	SweepInterval int `yaml:"sweep_interval"`
	IdleThreshold int `yaml:"idle_threshold"`

	KillTieBreak  string `yaml:"kill_tie_break"`  // first_vote/no_kill
	LynchTieBreak string `yaml:"lynch_tie_break"` // no_elimination/random

	ShutdownTimeout       int `yaml:"shutdown_timeout"`
	ShutdownCheckInterval int `yaml:"shutdown_check_interval"`
	RoomCleanupDelay      int `yaml:"room_cleanup_delay"`
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// NightDurationTime 夜晚时长
func (c *GameConfig) NightDurationTime() time.Duration { return seconds(c.NightDuration) }

// DayDurationTime 白天讨论时长
func (c *GameConfig) DayDurationTime() time.Duration { return seconds(c.DayDuration) }

// VoteDurationTime 投票时长
func (c *GameConfig) VoteDurationTime() time.Duration { return seconds(c.VoteDuration) }

// NightResultDelayTime 夜晚结算后的等待
func (c *GameConfig) NightResultDelayTime() time.Duration { return seconds(c.NightResultDelay) }

// CutsceneDelayTime 过场动画等待
func (c *GameConfig) CutsceneDelayTime() time.Duration { return seconds(c.CutsceneDelay) }

// VoteResultDelayTime 投票结算后的等待
func (c *GameConfig) VoteResultDelayTime() time.Duration { return seconds(c.VoteResultDelay) }

// LobbyGraceTime 大厅断线等待
func (c *GameConfig) LobbyGraceTime() time.Duration { return seconds(c.LobbyGrace) }

// MatchGraceTime 对局中断线等待
func (c *GameConfig) MatchGraceTime() time.Duration { return seconds(c.MatchGrace) }

// SweepIntervalTime 空闲清理间隔
func (c *GameConfig) SweepIntervalTime() time.Duration { return seconds(c.SweepInterval) }

// IdleThresholdTime 空闲阈值
func (c *GameConfig) IdleThresholdTime() time.Duration {
	return time.Duration(c.IdleThreshold) * time.Minute
}

// ShutdownTimeoutDuration 返回关闭等待超时时长
func (c *GameConfig) ShutdownTimeoutDuration() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Minute
}

// ShutdownCheckIntervalDuration 返回关闭检查间隔
func (c *GameConfig) ShutdownCheckIntervalDuration() time.Duration {
	return seconds(c.ShutdownCheckInterval)
}

// RoomCleanupDelayDuration 返回对局全部结束后到关闭的等待
func (c *GameConfig) RoomCleanupDelayDuration() time.Duration {
	return seconds(c.RoomCleanupDelay)
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	AllowedOrigins []string           `yaml:"allowed_origins"`
	IPWhitelist    []string           `yaml:"ip_whitelist"` // 地址或 CIDR，非空时只放行名单内的 IP
	IPBlacklist    []string           `yaml:"ip_blacklist"`
	RateLimit      RateLimitConfig    `yaml:"rate_limit"`
	MessageLimit   MessageLimitConfig `yaml:"message_limit"`
	ChatLimit      ChatLimitConfig    `yaml:"chat_limit"`
}

// RateLimitConfig 连接速率限制
type RateLimitConfig struct {
	MaxPerSecond int `yaml:"max_per_second"`
	MaxPerMinute int `yaml:"max_per_minute"`
	BanDuration  int `yaml:"ban_duration"` // 秒
}

// BanDurationTime 封禁时长
func (c *RateLimitConfig) BanDurationTime() time.Duration {
	return seconds(c.BanDuration)
}

// MessageLimitConfig 单连接消息速率限制
type MessageLimitConfig struct {
	MaxPerSecond int `yaml:"max_per_second"`
}

// ChatLimitConfig 聊天令牌桶
type ChatLimitConfig struct {
	MaxPerSecond float64 `yaml:"max_per_second"`
	Burst        int     `yaml:"burst"`
}

// Load 加载配置文件，并应用默认值和环境变量
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()
	return &cfg, nil
}

// LoadOrDefault 配置文件不存在时使用默认配置
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		cfg.loadFromEnv()
		return cfg, nil
	}
	return cfg, err
}

// LoadDotEnv 加载 .env 文件到环境变量（已存在的变量不覆盖），文件不存在时忽略
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Default 返回默认配置
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func setDefault[T comparable](v *T, def T) {
	var zero T
	if *v == zero {
		*v = def
	}
}

func (c *Config) applyDefaults() {
	setDefault(&c.Server.Host, defaultHost)
	setDefault(&c.Server.Port, defaultPort)
	setDefault(&c.Server.MaxConnections, defaultMaxConnections)
	setDefault(&c.Log.Level, defaultLogLevel)

	g := &c.Game
	setDefault(&g.MinPlayers, defaultMinPlayers)
	setDefault(&g.MaxPlayers, defaultMaxPlayers)
	setDefault(&g.NightDuration, defaultNightDuration)
	setDefault(&g.DayDuration, defaultDayDuration)
	setDefault(&g.VoteDuration, defaultVoteDuration)
	setDefault(&g.NightResultDelay, defaultNightResultDelay)
	setDefault(&g.CutsceneDelay, defaultCutsceneDelay)
	setDefault(&g.VoteResultDelay, defaultVoteResultDelay)
	setDefault(&g.LobbyGrace, defaultLobbyGrace)
	setDefault(&g.MatchGrace, defaultMatchGrace)
	setDefault(&g.SweepInterval, defaultSweepInterval)
	setDefault(&g.IdleThreshold, defaultIdleThreshold)
	setDefault(&g.KillTieBreak, defaultKillTieBreak)
	setDefault(&g.LynchTieBreak, defaultLynchTieBreak)
	setDefault(&g.ShutdownTimeout, defaultShutdownTimeout)
	setDefault(&g.ShutdownCheckInterval, defaultShutdownCheckInterval)
	setDefault(&g.RoomCleanupDelay, defaultRoomCleanupDelay)

	s := &c.Security
	if len(s.AllowedOrigins) == 0 {
		s.AllowedOrigins = []string{"*"}
	}
	setDefault(&s.RateLimit.MaxPerSecond, defaultRateMaxPerSecond)
	setDefault(&s.RateLimit.MaxPerMinute, defaultRateMaxPerMinute)
	setDefault(&s.RateLimit.BanDuration, defaultBanDuration)
	setDefault(&s.MessageLimit.MaxPerSecond, defaultMessageMaxPerSecond)
	setDefault(&s.ChatLimit.MaxPerSecond, float64(defaultChatMaxPerSecond))
	setDefault(&s.ChatLimit.Burst, defaultChatBurst)
}

// loadFromEnv 环境变量覆盖配置文件
func (c *Config) loadFromEnv() {
	if v := os.Getenv(EnvServerHost); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv(EnvServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v, ok := os.LookupEnv(EnvRedisAddr); ok {
		c.Redis.Addr = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvAllowedOrigins); v != "" {
		c.Security.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv(EnvIPWhitelist); v != "" {
		c.Security.IPWhitelist = splitList(v)
	}
	if v := os.Getenv(EnvIPBlacklist); v != "" {
		c.Security.IPBlacklist = splitList(v)
	}
}

// splitList 拆分逗号分隔的环境变量，忽略空项
func splitList(v string) []string {
	var out []string
	for item := range strings.SplitSeq(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
