//go:build !production

package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/mafia-night/internal/protocol"
	"github.com/palemoky/mafia-night/internal/protocol/codec"
)

// MockClient 实现 types.ClientInterface 的 mock
type MockClient struct {
	mock.Mock
}

func (m *MockClient) GetID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockClient) GetRoom() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockClient) SetRoom(roomCode string) {
	m.Called(roomCode)
}

func (m *MockClient) SendMessage(msg *protocol.Message) {
	m.Called(msg)
}

func (m *MockClient) Close() {
	m.Called()
}

// RecordingClient 记录收到的消息，可在计时器 goroutine 中并发使用
type RecordingClient struct {
	ID string

	mu       sync.Mutex
	roomCode string
	messages []*protocol.Message
	closed   bool
}

// NewRecordingClient 创建记录客户端
func NewRecordingClient(id string) *RecordingClient {
	return &RecordingClient{ID: id}
}

func (c *RecordingClient) GetID() string { return c.ID }

func (c *RecordingClient) GetRoom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomCode
}

func (c *RecordingClient) SetRoom(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomCode = code
}

func (c *RecordingClient) SendMessage(msg *protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

func (c *RecordingClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Closed 是否已关闭
func (c *RecordingClient) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Messages 收到的全部消息
func (c *RecordingClient) Messages() []*protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*protocol.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// OfType 指定类型的消息
func (c *RecordingClient) OfType(t protocol.MessageType) []*protocol.Message {
	var out []*protocol.Message
	for _, m := range c.Messages() {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// Count 指定类型的消息数量
func (c *RecordingClient) Count(t protocol.MessageType) int {
	return len(c.OfType(t))
}

// Last 指定类型的最后一条消息，没有时返回 nil
func (c *RecordingClient) Last(t protocol.MessageType) *protocol.Message {
	msgs := c.OfType(t)
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

// Reset 清空已记录的消息
func (c *RecordingClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}

// Payload 解析消息 payload，失败时终止测试
func Payload[T any](t testing.TB, msg *protocol.Message) T {
	t.Helper()
	require.NotNil(t, msg, "message is nil")
	p, err := codec.ParsePayload[T](msg)
	require.NoError(t, err)
	return *p
}

// LastPayload 指定类型最后一条消息的 payload
func LastPayload[T any](t testing.TB, c *RecordingClient, msgType protocol.MessageType) T {
	t.Helper()
	return Payload[T](t, c.Last(msgType))
}
