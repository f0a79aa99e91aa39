package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/palemoky/mafia-night/internal/logger"
	"github.com/palemoky/mafia-night/internal/protocol"
	"github.com/palemoky/mafia-night/internal/protocol/codec"
)

const (
	// 写入超时
	writeWait = 10 * time.Second

	// 读取超时（pong 等待时间）
	pongWait = 60 * time.Second

	// ping 发送间隔（必须小于 pongWait）
	pingPeriod = (pongWait * 9) / 10

	// 消息最大大小
	maxMessageSize = 4096

	// 超速警告次数超过该值断开连接
	maxRateWarnings = 5
)

// WireCodec 连接使用的编码
type WireCodec int

const (
	CodecJSON     WireCodec = iota // 文本帧 JSON
	CodecProtobuf                  // 二进制帧 protobuf Struct
)

// Client 一条 WebSocket 连接
type Client struct {
	ID string // 连接 ID，每次连接都不同
	IP string

	codec  WireCodec
	server *Server
	conn   *websocket.Conn
	send   chan []byte

	mu       sync.RWMutex
	roomCode string
	closed   bool
}

// NewClient 创建新客户端
func NewClient(s *Server, conn *websocket.Conn, wc WireCodec) *Client {
	return &Client{
		ID:     uuid.NewString(),
		codec:  wc,
		server: s,
		conn:   conn,
		send:   make(chan []byte, 256),
	}
}

// GetID 获取连接 ID
func (c *Client) GetID() string { return c.ID }

// GetRoom 获取所在房间号
func (c *Client) GetRoom() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomCode
}

// SetRoom 设置所在房间号
func (c *Client) SetRoom(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomCode = code
}

// ReadPump 从 WebSocket 读取消息
func (c *Client) ReadPump() {
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r)
		}
		c.handleDisconnect()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		frameType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("client", c.ID).Msg("读取错误")
			}
			return
		}

		allowed, warning := c.server.messageLimiter.AllowMessage(c.ID)
		if !allowed {
			log.Warn().Str("client", c.ID).Str("ip", c.IP).Msg("⚠️ 客户端消息过于频繁")
			c.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeRateLimit, "消息发送过于频繁"))
			if c.server.messageLimiter.GetWarningCount(c.ID) > maxRateWarnings {
				log.Warn().Str("client", c.ID).Msg("🚫 客户端因多次超速被断开连接")
				return
			}
			continue
		}
		if warning {
			c.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeRateLimit, "请求过于频繁，请放慢速度"))
		}

		var msg *protocol.Message
		if frameType == websocket.BinaryMessage {
			msg, err = codec.DecodeBinary(data)
		} else {
			msg, err = codec.Decode(data)
		}
		if err != nil {
			log.Debug().Err(err).Str("client", c.ID).Msg("消息解析错误")
			c.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
			continue
		}

		// 处理器同步解析 payload，不持有 msg
		c.server.handler.Handle(c, msg)
		codec.PutMessage(msg)
	}
}

// WritePump 向 WebSocket 写入消息
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	frameType := websocket.TextMessage
	if c.codec == CodecProtobuf {
		frameType = websocket.BinaryMessage
	}

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(frameType, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) encode(msg *protocol.Message) ([]byte, error) {
	if c.codec == CodecProtobuf {
		return codec.EncodeBinary(msg)
	}
	return codec.Encode(msg)
}

// SendMessage 发送消息给客户端，不阻塞
// 发送缓冲区满时关闭连接。
func (c *Client) SendMessage(msg *protocol.Message) {
	data, err := c.encode(msg)
	if err != nil {
		log.Error().Err(err).Str("type", string(msg.Type)).Msg("消息编码错误")
		return
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return
	}
	select {
	case c.send <- data:
		c.mu.RUnlock()
	default:
		c.mu.RUnlock()
		log.Warn().Str("client", c.ID).Msg("⚠️ 客户端发送缓冲区已满")
		c.Close()
	}
}

// handleDisconnect 处理断开连接
// 房间内的玩家进入断线等待，不立即移除。
func (c *Client) handleDisconnect() {
	if c.GetRoom() != "" {
		c.server.registry.Disconnect(c)
	}
	c.server.messageLimiter.ClearRateLimit(c.ID)
	c.server.unregisterClient(c)
}

// Close 关闭客户端连接
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
