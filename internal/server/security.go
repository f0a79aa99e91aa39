package server

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// --- 连接速率限制 ---

// RateLimiter 按 IP 限制建立连接的频率，超限后临时封禁
// 秒级和分钟级各用一个令牌桶，任一耗尽即封禁。
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*ipBucket

	perSecond   int
	perMinute   int
	banDuration time.Duration
	idleTTL     time.Duration
}

type ipBucket struct {
	second      *rate.Limiter
	minute      *rate.Limiter
	seenAt      time.Time
	bannedUntil time.Time
}

// NewRateLimiter 创建速率限制器
func NewRateLimiter(maxPerSecond, maxPerMinute int, banDuration time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets:     make(map[string]*ipBucket),
		perSecond:   maxPerSecond,
		perMinute:   maxPerMinute,
		banDuration: banDuration,
		idleTTL:     10 * time.Minute,
	}
	go rl.evictLoop(5 * time.Minute)
	return rl
}

func (rl *RateLimiter) bucketLocked(ip string) *ipBucket {
	b, ok := rl.buckets[ip]
	if !ok {
		b = &ipBucket{
			second: rate.NewLimiter(rate.Limit(rl.perSecond), rl.perSecond),
			minute: rate.NewLimiter(rate.Every(time.Minute/time.Duration(max(rl.perMinute, 1))), rl.perMinute),
		}
		rl.buckets[ip] = b
	}
	return b
}

// Allow 消耗一次连接配额，封禁期内直接拒绝
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b := rl.bucketLocked(ip)
	b.seenAt = now
	if now.Before(b.bannedUntil) {
		return false
	}

	secondOK := b.second.AllowN(now, 1)
	minuteOK := b.minute.AllowN(now, 1)
	if secondOK && minuteOK {
		return true
	}

	b.bannedUntil = now.Add(rl.banDuration)
	log.Warn().Str("ip", ip).Dur("ban", rl.banDuration).Msg("⚠️ IP 请求过于频繁，暂时封禁")
	return false
}

// IsBanned 检查 IP 是否处于封禁期
func (rl *RateLimiter) IsBanned(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[ip]
	return ok && time.Now().Before(b.bannedUntil)
}

// evictLoop 定期清理长时间没有请求且未被封禁的记录
func (rl *RateLimiter) evictLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for now := range ticker.C {
		rl.mu.Lock()
		for ip, b := range rl.buckets {
			if now.Sub(b.seenAt) > rl.idleTTL && now.After(b.bannedUntil) {
				delete(rl.buckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// --- 来源验证 ---

// OriginChecker 来源验证器，比较时忽略大小写
type OriginChecker struct {
	allowAll bool
	allowed  map[string]struct{}
}

// NewOriginChecker 创建来源验证器，"*" 表示允许所有来源
func NewOriginChecker(origins []string) *OriginChecker {
	oc := &OriginChecker{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		oc.allowAll = oc.allowAll || o == "*"
		oc.allowed[strings.ToLower(o)] = struct{}{}
	}
	return oc
}

// Check 没有 Origin 头的请求（非浏览器客户端）直接放行
func (oc *OriginChecker) Check(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if oc.allowAll || origin == "" {
		return true
	}
	_, ok := oc.allowed[strings.ToLower(origin)]
	return ok
}

// --- IP 白名单/黑名单 ---

// IPFilter IP 过滤器，条目可以是单个地址或 CIDR 网段
// 白名单非空时只放行白名单内的地址，黑名单优先于白名单。
type IPFilter struct {
	mu    sync.RWMutex
	allow []netip.Prefix
	deny  []netip.Prefix
}

// NewIPFilter 根据配置的白名单和黑名单创建过滤器
func NewIPFilter(whitelist, blacklist []string) (*IPFilter, error) {
	f := &IPFilter{}
	for _, entry := range whitelist {
		p, err := parseIPEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("白名单条目 %q 无效: %w", entry, err)
		}
		f.allow = append(f.allow, p)
	}
	for _, entry := range blacklist {
		if err := f.Block(entry); err != nil {
			return nil, fmt.Errorf("黑名单条目 %q 无效: %w", entry, err)
		}
	}
	return f, nil
}

func parseIPEntry(entry string) (netip.Prefix, error) {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		p, err := netip.ParsePrefix(entry)
		return p.Masked(), err
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Block 运行时加入黑名单
func (f *IPFilter) Block(entry string) error {
	p, err := parseIPEntry(entry)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deny = append(f.deny, p)
	return nil
}

// Unblock 从黑名单移除与 entry 完全相同的条目
func (f *IPFilter) Unblock(entry string) {
	p, err := parseIPEntry(entry)
	if err != nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.deny[:0]
	for _, d := range f.deny {
		if d != p {
			kept = append(kept, d)
		}
	}
	f.deny = kept
}

// IsAllowed 检查 IP 是否允许连接，无法解析的地址只在没有白名单时放行
func (f *IPFilter) IsAllowed(ip string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return len(f.allow) == 0
	}
	addr = addr.Unmap()
	if containsAddr(f.deny, addr) {
		return false
	}
	return len(f.allow) == 0 || containsAddr(f.allow, addr)
}

func containsAddr(prefixes []netip.Prefix, addr netip.Addr) bool {
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// GetClientIP 获取客户端 IP，依次取 X-Forwarded-For 第一跳、X-Real-IP、RemoteAddr
func GetClientIP(r *http.Request) string {
	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// --- 消息速率限制 ---

// MessageRateLimiter 已建立连接的消息速率限制（令牌桶）
// 剩余令牌不足一半时给出警告，超限计一次警告次数。
type MessageRateLimiter struct {
	mu     sync.Mutex
	limits map[string]*messageRate

	perSecond int
}

type messageRate struct {
	limiter  *rate.Limiter
	warnings int
}

// NewMessageRateLimiter 创建消息速率限制器
func NewMessageRateLimiter(maxPerSecond int) *MessageRateLimiter {
	return &MessageRateLimiter{
		limits:    make(map[string]*messageRate),
		perSecond: maxPerSecond,
	}
}

// AllowMessage 检查是否允许发送消息
func (ml *MessageRateLimiter) AllowMessage(clientID string) (allowed bool, warning bool) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	mr, ok := ml.limits[clientID]
	if !ok {
		mr = &messageRate{limiter: rate.NewLimiter(rate.Limit(ml.perSecond), ml.perSecond)}
		ml.limits[clientID] = mr
	}

	if !mr.limiter.Allow() {
		mr.warnings++
		return false, true
	}
	return true, mr.limiter.Tokens() < float64(ml.perSecond)/2
}

// GetWarningCount 获取警告次数
func (ml *MessageRateLimiter) GetWarningCount(clientID string) int {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	if mr, ok := ml.limits[clientID]; ok {
		return mr.warnings
	}
	return 0
}

// ClearRateLimit 移除客户端记录
func (ml *MessageRateLimiter) ClearRateLimit(clientID string) {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	delete(ml.limits, clientID)
}
