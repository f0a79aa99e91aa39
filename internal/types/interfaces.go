package types

import (
	"github.com/palemoky/mafia-night/internal/protocol"
)

// ServerInterface 定义服务器接口（用于打破循环依赖）
type ServerInterface interface {
	IsMaintenanceMode() bool
	GetOnlineCount() int
}

// ClientInterface 定义客户端接口
type ClientInterface interface {
	GetID() string
	GetRoom() string
	SetRoom(code string)
	// SendMessage 不能阻塞，房间持锁调用
	SendMessage(msg *protocol.Message)
	Close()
}
